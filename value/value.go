// Package value implements the runtime value model shared by both back
// ends: a tagged sum of immediates (nil, bool, int, float, char) and
// GC-tracked heap values (strings, symbols, keywords, collections,
// functions, lazy sequences, mutable cells).
package value

import "github.com/emberlang/ember/gc"

// Tag discriminates the Value union. Operations such as equality, printing
// and the seq functions switch on Tag, and most of those switches end in a
// default case that covers the variants they do not list, so a new variant
// compiles without touching them. GC tracing does not switch on Tag: each
// heap payload type implements gc.Tracer itself.
type Tag uint8

const (
	TagNil Tag = iota
	TagBool
	TagInt
	TagFloat
	TagChar
	TagString
	TagSymbol
	TagKeyword
	TagList
	TagVector
	TagMap
	TagSet
	TagFn
	TagMultiFn
	TagProtocol
	TagProtocolFn
	TagAtom
	TagDelay
	TagVolatile
	TagReduced
	TagPromise
	TagTransient
	TagLazySeq
	TagVarRef
	TagFnProto
)

func (t Tag) String() string {
	names := [...]string{
		"nil", "bool", "int", "float", "char", "string", "symbol", "keyword",
		"list", "vector", "map", "set", "fn", "multi-fn", "protocol", "protocol-fn",
		"atom", "delay", "volatile", "reduced", "promise", "transient", "lazy-seq",
		"var-ref", "fn-proto",
	}
	if int(t) < 0 || int(t) >= len(names) {
		return "unknown"
	}
	return names[t]
}

// Value is the tagged union itself. Immediate variants (nil/bool/int/
// float/char) carry their payload inline in I or F and never touch the
// heap. Heap variants carry a *gc.Box whose payload is one of the
// concrete Obj types in this package (ListObj, VectorObj, ...). Infra-arena
// variants (var-ref, fn-proto) carry an opaque Ptr that the GC never
// traces, breaking what would otherwise be an import cycle between this
// package and env/compiler.
type Value struct {
	Tag Tag
	I   int64
	F   float64
	Box *gc.Box
	Ptr interface{}
}

var (
	Nil   = Value{Tag: TagNil}
	True  = Value{Tag: TagBool, I: 1}
	False = Value{Tag: TagBool, I: 0}
)

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Int(i int64) Value   { return Value{Tag: TagInt, I: i} }
func Float(f float64) Value { return Value{Tag: TagFloat, F: f} }
func Char(r rune) Value   { return Value{Tag: TagChar, I: int64(r)} }

func IsNil(v Value) bool { return v.Tag == TagNil }

// Truthy reports falsiness: only nil and false are falsy.
func Truthy(v Value) bool {
	if v.Tag == TagNil {
		return false
	}
	if v.Tag == TagBool {
		return v.I != 0
	}
	return true
}

func AsBool(v Value) bool    { return v.I != 0 }
func AsInt(v Value) int64    { return v.I }
func AsFloat(v Value) float64 {
	if v.Tag == TagInt {
		return float64(v.I)
	}
	return v.F
}
func AsChar(v Value) rune { return rune(v.I) }

// payload retrieves a heap value's concrete payload, following any
// forwarding that may have happened since v was last observed.
func payload(v Value) gc.Tracer {
	if v.Box == nil {
		return nil
	}
	return v.Box.Payload()
}

// IsNumeric reports whether v participates in the numeric tower (int or
// float only; ratios/bignums are out of scope).
func IsNumeric(v Value) bool { return v.Tag == TagInt || v.Tag == TagFloat }
