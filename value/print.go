package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// PrStr renders v the way the reader would need to read it back
// (readably), so literal values round-trip through read/print.
func PrStr(v Value) string {
	var b strings.Builder
	writeValue(&b, v, true)
	return b.String()
}

// Str renders v the "human" way: strings and chars print without quoting.
func Str(v Value) string {
	var b strings.Builder
	writeValue(&b, v, false)
	return b.String()
}

func writeValue(b *strings.Builder, v Value, readably bool) {
	switch v.Tag {
	case TagNil:
		b.WriteString("nil")
	case TagBool:
		if AsBool(v) {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case TagInt:
		b.WriteString(strconv.FormatInt(v.I, 10))
	case TagFloat:
		b.WriteString(strconv.FormatFloat(v.F, 'g', -1, 64))
	case TagChar:
		if readably {
			b.WriteString(charLiteral(AsChar(v)))
		} else {
			b.WriteRune(AsChar(v))
		}
	case TagString:
		if readably {
			b.WriteString(strconv.Quote(StringVal(v)))
		} else {
			b.WriteString(StringVal(v))
		}
	case TagSymbol:
		ns, name := SymbolParts(v)
		if ns != "" {
			b.WriteString(ns)
			b.WriteByte('/')
		}
		b.WriteString(name)
	case TagKeyword:
		ns, name := KeywordParts(v)
		b.WriteByte(':')
		if ns != "" {
			b.WriteString(ns)
			b.WriteByte('/')
		}
		b.WriteString(name)
	case TagList:
		b.WriteByte('(')
		items := ListToSlice(v)
		for i, it := range items {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeValue(b, it, readably)
		}
		b.WriteByte(')')
	case TagVector:
		b.WriteByte('[')
		for i, it := range VectorItems(v) {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeValue(b, it, readably)
		}
		b.WriteByte(']')
	case TagMap:
		b.WriteByte('{')
		for i, e := range MapEntries(v) {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeValue(b, e.Key, readably)
			b.WriteByte(' ')
			writeValue(b, e.Val, readably)
			if i != len(MapEntries(v))-1 {
				b.WriteByte(',')
			}
		}
		b.WriteByte('}')
	case TagSet:
		b.WriteString("#{")
		for i, it := range SetItems(v) {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeValue(b, it, readably)
		}
		b.WriteByte('}')
	case TagFn:
		f := FnPayload(v)
		name := f.Name
		if name == "" {
			name = "anonymous"
		}
		fmt.Fprintf(b, "#<fn %s>", name)
	case TagMultiFn:
		fmt.Fprintf(b, "#<multi-fn %s>", MultiFnPayload(v).Name)
	case TagAtom:
		fmt.Fprintf(b, "#<atom %s>", PrStr(AtomGet(v)))
	case TagDelay:
		b.WriteString("#<delay>")
	case TagVolatile:
		fmt.Fprintf(b, "#<volatile %s>", PrStr(VolatileGet(v)))
	case TagReduced:
		fmt.Fprintf(b, "#<reduced %s>", PrStr(ReducedVal(v)))
	case TagPromise:
		b.WriteString("#<promise>")
	case TagTransient:
		b.WriteString("#<transient>")
	case TagLazySeq:
		b.WriteString("#<lazy-seq>")
	case TagVarRef:
		b.WriteString("#<var>")
	case TagFnProto:
		b.WriteString("#<fn-proto>")
	default:
		b.WriteString("#<unknown>")
	}
}

func charLiteral(r rune) string {
	switch r {
	case ' ':
		return `\space`
	case '\n':
		return `\newline`
	case '\t':
		return `\tab`
	case '\r':
		return `\return`
	default:
		return `\` + string(r)
	}
}

// Dump renders a deep, field-level debug view of v using go-spew, for
// diagnosing a structural mismatch where PrStr's readable form is too
// terse. No builtin or test in this module calls it.
func Dump(v Value) string {
	cfg := spew.ConfigState{Indent: "  ", DisableMethods: true, DisablePointerAddresses: true}
	switch v.Tag {
	case TagList:
		return cfg.Sdump(ListToSlice(v))
	case TagVector:
		return cfg.Sdump(VectorItems(v))
	case TagMap:
		return cfg.Sdump(MapEntries(v))
	case TagSet:
		return cfg.Sdump(SetItems(v))
	default:
		return cfg.Sdump(v)
	}
}
