// Package reader turns source text into Form values: plain runtime Values
// (nil/bool/int/float/char/string/symbol/keyword/list/vector/map/set) built
// by a hand-written recursive-descent reader, exactly as the teacher's own
// front end hand-rolls its scanning rather than reaching for a
// parser-combinator library. Collections carry their source position in a
// side table keyed by Box identity, since the Value union itself has no
// metadata field to spare.
package reader

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/emberlang/ember/errors"
	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/value"
)

// EOF is returned by Read once every form in the source has been consumed.
var EOF = fmt.Errorf("reader: end of input")

// Reader drains one Form at a time from src, tracking (file, line, column)
// as it goes so every error and every collection form can carry a position.
type Reader struct {
	src      []rune
	pos      int
	line     int
	col      int
	file     string
	heap     *gc.Heap
	interner *value.Interner
	symGen   *int

	positions map[*gc.Box]errors.Pos
	gensyms   []map[string]string // one frame per nested syntax-quote
}

func New(src, file string, heap *gc.Heap, interner *value.Interner, symGen *int) *Reader {
	return &Reader{
		src:       []rune(src),
		line:      1,
		col:       1,
		file:      file,
		heap:      heap,
		interner:  interner,
		symGen:    symGen,
		positions: map[*gc.Box]errors.Pos{},
	}
}

// PosOf returns the source position recorded for a collection Form, if any.
func (r *Reader) PosOf(v value.Value) (errors.Pos, bool) {
	if v.Box == nil {
		return errors.Pos{}, false
	}
	p, ok := r.positions[v.Box]
	return p, ok
}

func (r *Reader) recordPos(v value.Value, p errors.Pos) value.Value {
	if v.Box != nil {
		r.positions[v.Box] = p
	}
	return v
}

// ReadAll drains every top-level form.
func (r *Reader) ReadAll() ([]value.Value, error) {
	var out []value.Value
	for {
		v, err := r.Read()
		if err == EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

func (r *Reader) here() errors.Pos { return errors.Pos{File: r.file, Line: r.line, Column: r.col} }

func (r *Reader) fail(kind errors.Kind, format string, args ...interface{}) error {
	return errors.New(kind, errors.PhaseParse, r.here(), format, args...)
}

func (r *Reader) peek() (rune, bool) {
	if r.pos >= len(r.src) {
		return 0, false
	}
	return r.src[r.pos], true
}

func (r *Reader) peekAt(off int) (rune, bool) {
	i := r.pos + off
	if i >= len(r.src) {
		return 0, false
	}
	return r.src[i], true
}

func (r *Reader) advance() (rune, bool) {
	c, ok := r.peek()
	if !ok {
		return 0, false
	}
	r.pos++
	if c == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	return c, true
}

func isDelim(c rune) bool {
	switch c {
	case '(', ')', '[', ']', '{', '}', '"', ';', '\'', '`', '~', '@', '^':
		return true
	}
	return isSpace(c)
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',' || c == '\f'
}

func (r *Reader) skipAtmosphere() {
	for {
		c, ok := r.peek()
		if !ok {
			return
		}
		if isSpace(c) {
			r.advance()
			continue
		}
		if c == ';' {
			for {
				c, ok := r.peek()
				if !ok || c == '\n' {
					break
				}
				r.advance()
			}
			continue
		}
		return
	}
}

// Read returns the next Form, or EOF when the source is exhausted.
func (r *Reader) Read() (value.Value, error) {
	r.skipAtmosphere()
	if _, ok := r.peek(); !ok {
		return value.Nil, EOF
	}
	return r.readForm()
}

func (r *Reader) readForm() (value.Value, error) {
	r.skipAtmosphere()
	c, ok := r.peek()
	if !ok {
		return value.Nil, r.fail(errors.UnexpectedEof, "unexpected end of input")
	}
	switch {
	case c == '(':
		return r.readList('(', ')')
	case c == '[':
		return r.readVector()
	case c == '{':
		return r.readMap()
	case c == ')' || c == ']' || c == '}':
		return value.Nil, r.fail(errors.UnmatchedDelimiter, "unexpected %q", c)
	case c == '"':
		return r.readString()
	case c == ':':
		return r.readKeyword()
	case c == '\'':
		r.advance()
		return r.readWrapped("quote")
	case c == '`':
		r.advance()
		return r.readSyntaxQuote()
	case c == '~':
		r.advance()
		if c2, ok := r.peek(); ok && c2 == '@' {
			r.advance()
			return r.readWrapped("unquote-splicing")
		}
		return r.readWrapped("unquote")
	case c == '@':
		r.advance()
		return r.readWrapped("deref")
	case c == '^':
		r.advance()
		return r.readMetaForm()
	case c == '#':
		return r.readHash()
	case c == '\\':
		return r.readChar()
	default:
		return r.readAtom()
	}
}

func (r *Reader) readWrapped(sym string) (value.Value, error) {
	inner, err := r.readForm()
	if err != nil {
		return value.Nil, err
	}
	return r.listOf(sym, inner), nil
}

func (r *Reader) listOf(headSym string, rest ...value.Value) value.Value {
	items := append([]value.Value{r.sym(headSym)}, rest...)
	return value.ListFromSlice(r.heap, items)
}

func (r *Reader) sym(name string) value.Value {
	ns, n := splitNs(name)
	return value.NewSymbol(r.heap, r.interner, ns, n)
}

func (r *Reader) kw(name string) value.Value {
	ns, n := splitNs(name)
	return value.NewKeyword(r.heap, r.interner, ns, n)
}

func splitNs(s string) (ns, name string) {
	if i := strings.IndexByte(s, '/'); i > 0 && i < len(s)-1 {
		return s[:i], s[i+1:]
	}
	return "", s
}

func (r *Reader) readMetaForm() (value.Value, error) {
	meta, err := r.readForm()
	if err != nil {
		return value.Nil, err
	}
	target, err := r.readForm()
	if err != nil {
		return value.Nil, err
	}
	return r.listOf("with-meta", target, meta), nil
}

func (r *Reader) readHash() (value.Value, error) {
	start := r.here()
	r.advance() // consume '#'
	c, ok := r.peek()
	if !ok {
		return value.Nil, r.fail(errors.UnexpectedEof, "unexpected end of input after '#'")
	}
	switch c {
	case '{':
		return r.readSet()
	case '_':
		r.advance()
		if _, err := r.readForm(); err != nil { // discard
			return value.Nil, err
		}
		return r.readForm()
	case '"':
		return r.readRegex()
	case '(':
		return r.readFnShorthand()
	case '?':
		return r.readReaderConditional()
	default:
		return r.readTaggedLiteral(start)
	}
}

// readReaderConditional reads `#?(:clj form :cljs form :default form ...)`.
// The CORE has exactly one platform, so a conditional is resolved at read
// time rather than carried into a Form variant of its own: `:default`'s
// form wins if present, otherwise the first clause's form, otherwise nil
// (every branch discarded, matching the "no matching platform" case).
func (r *Reader) readReaderConditional() (value.Value, error) {
	r.advance() // '?'
	c, ok := r.peek()
	if !ok || c != '(' {
		return value.Nil, r.fail(errors.InvalidToken, "expected '(' after '#?'")
	}
	clauses, err := func() ([]value.Value, error) {
		r.advance()
		return r.readDelimited(')')
	}()
	if err != nil {
		return value.Nil, err
	}
	if len(clauses)%2 != 0 {
		return value.Nil, r.fail(errors.OddMapLiteral, "reader conditional requires an even number of forms")
	}
	var fallback value.Value
	hasFallback := false
	for i := 0; i < len(clauses); i += 2 {
		if clauses[i].Tag == value.TagKeyword {
			if _, name := value.KeywordParts(clauses[i]); name == "default" {
				return clauses[i+1], nil
			}
		}
		if !hasFallback {
			fallback, hasFallback = clauses[i+1], true
		}
	}
	if hasFallback {
		return fallback, nil
	}
	return value.Nil, nil
}

// readTaggedLiteral reads `#tag form` (e.g. `#inst "..."`, `#my/record
// {...}`). The CORE has no extensible tagged-literal registry (out of
// scope: no embedding-API hook for a host program to register tag
// handlers), so a tag is read and discarded and the underlying form is
// returned unchanged — a tagged literal evaluates exactly as its payload
// would without the tag.
func (r *Reader) readTaggedLiteral(start errors.Pos) (value.Value, error) {
	tag := r.readToken()
	if tag == "" {
		c, _ := r.peek()
		return value.Nil, errors.New(errors.InvalidToken, errors.PhaseParse, start, "unsupported '#' dispatch macro before %q", c)
	}
	r.skipAtmosphere()
	return r.readForm()
}

func (r *Reader) readList(open, close rune) (value.Value, error) {
	start := r.here()
	r.advance()
	items, err := r.readDelimited(close)
	if err != nil {
		return value.Nil, err
	}
	return r.recordPos(value.ListFromSlice(r.heap, items), start), nil
}

func (r *Reader) readVector() (value.Value, error) {
	start := r.here()
	r.advance()
	items, err := r.readDelimited(']')
	if err != nil {
		return value.Nil, err
	}
	return r.recordPos(value.NewVector(r.heap, items), start), nil
}

func (r *Reader) readSet() (value.Value, error) {
	start := r.here()
	r.advance() // '{'
	items, err := r.readDelimited('}')
	if err != nil {
		return value.Nil, err
	}
	return r.recordPos(value.NewSet(r.heap, items), start), nil
}

func (r *Reader) readMap() (value.Value, error) {
	start := r.here()
	r.advance()
	items, err := r.readDelimited('}')
	if err != nil {
		return value.Nil, err
	}
	if len(items)%2 != 0 {
		return value.Nil, errors.New(errors.OddMapLiteral, errors.PhaseParse, start, "map literal has an odd number of forms")
	}
	entries := make([]value.MapEntry, 0, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		entries = append(entries, value.MapEntry{Key: items[i], Val: items[i+1]})
	}
	return r.recordPos(value.NewMap(r.heap, entries), start), nil
}

func (r *Reader) readDelimited(close rune) ([]value.Value, error) {
	var out []value.Value
	for {
		r.skipAtmosphere()
		c, ok := r.peek()
		if !ok {
			return nil, r.fail(errors.UnexpectedEof, "unexpected end of input, expected %q", close)
		}
		if c == close {
			r.advance()
			return out, nil
		}
		v, err := r.readForm()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func (r *Reader) readRegex() (value.Value, error) {
	// Regex objects are out of core scope; the pattern text is preserved as
	// a plain string so regex-shaped source still reads without failing.
	r.advance() // consume opening quote
	var sb strings.Builder
	for {
		c, ok := r.advance()
		if !ok {
			return value.Nil, r.fail(errors.InvalidRegex, "unterminated regex literal")
		}
		if c == '"' {
			break
		}
		if c == '\\' {
			c2, ok := r.advance()
			if !ok {
				return value.Nil, r.fail(errors.InvalidRegex, "unterminated regex literal")
			}
			sb.WriteRune('\\')
			sb.WriteRune(c2)
			continue
		}
		sb.WriteRune(c)
	}
	return value.NewString(r.heap, sb.String()), nil
}

func (r *Reader) readFnShorthand() (value.Value, error) {
	start := r.here()
	body, err := r.readList('(', ')')
	if err != nil {
		return value.Nil, err
	}
	maxArg := 0
	variadic := false
	var scan func(value.Value)
	scan = func(v value.Value) {
		switch v.Tag {
		case value.TagSymbol:
			ns, name := value.SymbolParts(v)
			if ns != "" || len(name) == 0 || name[0] != '%' {
				return
			}
			if name == "%" {
				if maxArg < 1 {
					maxArg = 1
				}
				return
			}
			if name == "%&" {
				variadic = true
				return
			}
			if n, err := strconv.Atoi(name[1:]); err == nil && n > maxArg {
				maxArg = n
			}
		case value.TagList:
			for _, it := range value.ListToSlice(v) {
				scan(it)
			}
		case value.TagVector:
			for _, it := range value.VectorItems(v) {
				scan(it)
			}
		}
	}
	scan(body)
	params := make([]value.Value, 0, maxArg+2)
	for i := 1; i <= maxArg; i++ {
		params = append(params, r.sym(fmt.Sprintf("%%%d", i)))
	}
	if variadic {
		params = append(params, r.sym("&"), r.sym("%&"))
	}
	paramVec := value.NewVector(r.heap, params)
	return r.recordPos(value.ListFromSlice(r.heap, []value.Value{r.sym("fn*"), paramVec, body}), start), nil
}

var charNames = map[string]rune{
	"newline": '\n', "space": ' ', "tab": '\t', "backspace": '\b',
	"formfeed": '\f', "return": '\r', "null": 0,
}

func (r *Reader) readChar() (value.Value, error) {
	start := r.here()
	r.advance() // consume backslash
	// Greedily collect a run of non-delimiter characters to distinguish
	// \newline / \uXXXX from a single literal character like \a or \(.
	startPos := r.pos
	first, ok := r.advance()
	if !ok {
		return value.Nil, errors.New(errors.InvalidCharacter, errors.PhaseParse, start, "unterminated character literal")
	}
	for {
		c, ok := r.peek()
		if !ok || isDelim(c) {
			break
		}
		r.advance()
	}
	lit := string(r.src[startPos:r.pos])
	if len(lit) == 1 {
		return value.Char(first), nil
	}
	if rn, ok := charNames[lit]; ok {
		return value.Char(rn), nil
	}
	if strings.HasPrefix(lit, "u") && len(lit) > 1 {
		n, err := strconv.ParseInt(lit[1:], 16, 32)
		if err != nil {
			return value.Nil, errors.New(errors.InvalidCharacter, errors.PhaseParse, start, "invalid unicode character literal \\%s", lit)
		}
		return value.Char(rune(n)), nil
	}
	return value.Nil, errors.New(errors.InvalidCharacter, errors.PhaseParse, start, "invalid character literal \\%s", lit)
}

func (r *Reader) readString() (value.Value, error) {
	start := r.here()
	r.advance() // opening quote
	var sb strings.Builder
	for {
		c, ok := r.advance()
		if !ok {
			return value.Nil, errors.New(errors.InvalidString, errors.PhaseParse, start, "unterminated string literal")
		}
		if c == '"' {
			break
		}
		if c != '\\' {
			sb.WriteRune(c)
			continue
		}
		esc, ok := r.advance()
		if !ok {
			return value.Nil, errors.New(errors.InvalidString, errors.PhaseParse, start, "unterminated string escape")
		}
		switch esc {
		case 'n':
			sb.WriteRune('\n')
		case 't':
			sb.WriteRune('\t')
		case 'r':
			sb.WriteRune('\r')
		case 'b':
			sb.WriteRune('\b')
		case 'f':
			sb.WriteRune('\f')
		case '\\':
			sb.WriteRune('\\')
		case '"':
			sb.WriteRune('"')
		case 'u':
			var hex [4]rune
			for i := 0; i < 4; i++ {
				h, ok := r.advance()
				if !ok {
					return value.Nil, errors.New(errors.InvalidString, errors.PhaseParse, start, "truncated unicode escape")
				}
				hex[i] = h
			}
			n, err := strconv.ParseInt(string(hex[:]), 16, 32)
			if err != nil {
				return value.Nil, errors.New(errors.InvalidString, errors.PhaseParse, start, "invalid unicode escape \\u%s", string(hex[:]))
			}
			sb.WriteRune(rune(n))
		default:
			return value.Nil, errors.New(errors.InvalidString, errors.PhaseParse, start, "invalid string escape \\%c", esc)
		}
	}
	return value.NewString(r.heap, sb.String()), nil
}

func (r *Reader) readKeyword() (value.Value, error) {
	start := r.here()
	r.advance() // ':'
	tok := r.readToken()
	if tok == "" {
		return value.Nil, errors.New(errors.InvalidToken, errors.PhaseParse, start, "empty keyword")
	}
	return r.kw(tok), nil
}

func (r *Reader) readToken() string {
	startPos := r.pos
	for {
		c, ok := r.peek()
		if !ok || isDelim(c) {
			break
		}
		r.advance()
	}
	return string(r.src[startPos:r.pos])
}

func (r *Reader) readAtom() (value.Value, error) {
	start := r.here()
	tok := r.readToken()
	if tok == "" {
		c, _ := r.peek()
		return value.Nil, errors.New(errors.InvalidToken, errors.PhaseParse, start, "unexpected character %q", c)
	}
	switch tok {
	case "nil":
		return value.Nil, nil
	case "true":
		return value.True, nil
	case "false":
		return value.False, nil
	}
	if n, ok := parseNumber(tok); ok {
		return n, nil
	}
	if !utf8.ValidString(tok) {
		return value.Nil, errors.New(errors.InvalidToken, errors.PhaseParse, start, "invalid token %q", tok)
	}
	return r.sym(tok), nil
}

func parseNumber(tok string) (value.Value, bool) {
	if tok == "" {
		return value.Nil, false
	}
	c := tok[0]
	if !(c == '-' || c == '+' || (c >= '0' && c <= '9')) {
		return value.Nil, false
	}
	if (c == '-' || c == '+') && len(tok) == 1 {
		return value.Nil, false
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return value.Int(i), true
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		if strings.ContainsAny(tok, ".eE") {
			return value.Float(f), true
		}
	}
	return value.Nil, false
}

// readSyntaxQuote implements a backquote form: a code-generating expansion
// where `~` substitutes directly, `~@` splices a sequence in, and a bare
// symbol ending in '#' expands to a fresh gensym held stable across every
// occurrence within this backquote. Other symbols are quoted as written:
// they are not namespace-qualified.
func (r *Reader) readSyntaxQuote() (value.Value, error) {
	r.gensyms = append(r.gensyms, map[string]string{})
	defer func() { r.gensyms = r.gensyms[:len(r.gensyms)-1] }()
	inner, err := r.readForm()
	if err != nil {
		return value.Nil, err
	}
	return r.syntaxQuote(inner), nil
}

func (r *Reader) gensymFor(base string) string {
	frame := r.gensyms[len(r.gensyms)-1]
	if g, ok := frame[base]; ok {
		return g
	}
	*r.symGen++
	g := fmt.Sprintf("%s__%d__auto__", base, *r.symGen)
	frame[base] = g
	return g
}

func (r *Reader) syntaxQuote(form value.Value) value.Value {
	switch form.Tag {
	case value.TagSymbol:
		ns, name := value.SymbolParts(form)
		if ns == "" && strings.HasSuffix(name, "#") && name != "#" {
			return r.listOf("quote", r.sym(r.gensymFor(name[:len(name)-1])))
		}
		return r.listOf("quote", form)
	case value.TagList:
		items := value.ListToSlice(form)
		if len(items) > 0 && items[0].Tag == value.TagSymbol {
			if ns, name := value.SymbolParts(items[0]); ns == "" && name == "unquote" && len(items) == 2 {
				return items[1]
			}
		}
		return r.syntaxQuoteSeq(items, "seq")
	case value.TagVector:
		items := value.VectorItems(form)
		return r.listOf("vec", r.syntaxQuoteSeq(items, "seq"))
	default:
		return r.listOf("quote", form)
	}
}

// syntaxQuoteSeq builds (concat part...) where every element becomes a
// one-item list, unquote-splicing elements pass their argument through
// unwrapped, producing the classic syntax-quote expansion shape.
func (r *Reader) syntaxQuoteSeq(items []value.Value, wrapper string) value.Value {
	parts := make([]value.Value, 0, len(items)+1)
	parts = append(parts, r.sym("concat"))
	for _, it := range items {
		if it.Tag == value.TagList {
			sub := value.ListToSlice(it)
			if len(sub) == 2 && sub[0].Tag == value.TagSymbol {
				if ns, name := value.SymbolParts(sub[0]); ns == "" && name == "unquote-splicing" {
					parts = append(parts, sub[1])
					continue
				}
			}
		}
		parts = append(parts, value.ListFromSlice(r.heap, []value.Value{r.sym("list"), r.syntaxQuote(it)}))
	}
	return value.ListFromSlice(r.heap, parts)
}
