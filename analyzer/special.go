package analyzer

import (
	"golang.org/x/exp/slices"

	"github.com/emberlang/ember/errors"
	"github.com/emberlang/ember/value"
)

type specialFormFn func(a *Analyzer, items []value.Value, macroDepth int) (*Node, error)

var specialForms = map[string]specialFormFn{
	"quote":    analyzeQuote,
	"if":       analyzeIf,
	"do":       analyzeDo,
	"let*":     analyzeLet,
	"loop*":    analyzeLoop,
	"letfn":    analyzeLetfn,
	"recur":    analyzeRecur,
	"fn*":      analyzeFn,
	"def":      analyzeDef,
	"defonce":  analyzeDefonce,
	"defmacro": analyzeDefmacro,
	"var":      analyzeVarSpecial,
	"throw":    analyzeThrow,
	"try":      analyzeTry,
}

func analyzeQuote(a *Analyzer, items []value.Value, _ int) (*Node, error) {
	if len(items) != 2 {
		return nil, a.fail(errors.InvalidArity, errors.PhaseAnalysis, items[0], "quote takes exactly one argument")
	}
	return &Node{Kind: NLiteral, Lit: items[1], Pos: a.posOf(items[0])}, nil
}

func analyzeIf(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	if len(items) < 3 || len(items) > 4 {
		return nil, a.fail(errors.InvalidArity, errors.PhaseAnalysis, items[0], "if takes 2 or 3 arguments")
	}
	cond, err := a.analyze(items[1], depth)
	if err != nil {
		return nil, err
	}
	then, err := a.analyze(items[2], depth)
	if err != nil {
		return nil, err
	}
	var elseNode *Node
	if len(items) == 4 {
		elseNode, err = a.analyze(items[3], depth)
		if err != nil {
			return nil, err
		}
	} else {
		elseNode = &Node{Kind: NLiteral, Lit: value.Nil}
	}
	return &Node{Kind: NIf, Cond: cond, Then: then, Else: elseNode, Pos: a.posOf(items[0])}, nil
}

func analyzeDo(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	body, err := a.analyzeEach(items[1:], depth)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NDo, Items: body, Pos: a.posOf(items[0])}, nil
}

// destructureBindings flattens a `let*`/`loop*` binding vector, expanding
// vector and {:keys [...]} map-destructuring into a flat sequence of
// (name, init-expr) pairs assigned fresh slots in the current function.
func (a *Analyzer) destructureBindings(form value.Value, depth int) ([]LetBinding, error) {
	pairs := value.VectorItems(form)
	if len(pairs)%2 != 0 {
		return nil, a.fail(errors.InvalidBinding, errors.PhaseAnalysis, form, "binding vector requires an even number of forms")
	}
	var out []LetBinding
	for i := 0; i < len(pairs); i += 2 {
		target, initForm := pairs[i], pairs[i+1]
		initNode, err := a.analyze(initForm, depth)
		if err != nil {
			return nil, err
		}
		bound, err := a.destructureOne(target, initNode, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, bound...)
	}
	return out, nil
}

// destructureOne binds target (a symbol, vector pattern, or {:keys [...]}
// map pattern) against an already-analyzed init expression, synthesizing
// intermediate local bindings as needed for nested patterns.
func (a *Analyzer) destructureOne(target value.Value, init *Node, depth int) ([]LetBinding, error) {
	switch target.Tag {
	case value.TagSymbol:
		_, name := value.SymbolParts(target)
		slot := a.declareLocal(name)
		return []LetBinding{{Name: name, Slot: slot, Init: init}}, nil
	case value.TagVector:
		return a.destructureVector(target, init, depth)
	case value.TagMap:
		return a.destructureMap(target, init, depth)
	default:
		return nil, a.fail(errors.InvalidBinding, errors.PhaseAnalysis, target, "invalid binding target")
	}
}

func (a *Analyzer) destructureVector(pattern value.Value, init *Node, depth int) ([]LetBinding, error) {
	items := value.VectorItems(pattern)
	srcName := a.gensym("vec")
	srcSlot := a.declareLocal(srcName)
	out := []LetBinding{{Name: srcName, Slot: srcSlot, Init: init}}
	for i := 0; i < len(items); i++ {
		item := items[i]
		if item.Tag == value.TagKeyword {
			if ns, name := value.KeywordParts(item); ns == "" && name == "as" {
				_, asName := value.SymbolParts(items[i+1])
				slot := a.declareLocal(asName)
				out = append(out, LetBinding{Name: asName, Slot: slot, Init: localRefNode(srcName, srcSlot)})
				i++
				continue
			}
		}
		if item.Tag == value.TagSymbol {
			if ns, name := value.SymbolParts(item); ns == "" && name == "&" {
				restTarget := items[i+1]
				restInit := &Node{Kind: NCall, Items: []*Node{
					a.builtinRef("nthrest"),
					localRefNode(srcName, srcSlot),
					&Node{Kind: NLiteral, Lit: value.Int(int64(i))},
				}}
				sub, err := a.destructureOne(restTarget, restInit, depth)
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
				i++
				continue
			}
		}
		elemInit := &Node{Kind: NCall, Items: []*Node{
			a.builtinRef("nth"),
			localRefNode(srcName, srcSlot),
			&Node{Kind: NLiteral, Lit: value.Int(int64(i))},
		}}
		sub, err := a.destructureOne(item, elemInit, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// destructureMap expands {:keys [...]}/{:strs [...]}/{:syms [...]} map
// destructuring, honoring an :or default map and an :as binding to the
// whole source map, per §4.2's "associative destructuring uses get-style
// accessors with support for :keys, :strs, :syms, :or, :as".
func (a *Analyzer) destructureMap(pattern value.Value, init *Node, depth int) ([]LetBinding, error) {
	srcName := a.gensym("map")
	srcSlot := a.declareLocal(srcName)
	out := []LetBinding{{Name: srcName, Slot: srcSlot, Init: init}}

	var orDefaults []value.MapEntry
	entries := value.MapEntries(pattern)

	// First pass: pull out :or so it is available regardless of where it
	// appears relative to :keys/:strs/:syms in source order.
	for _, e := range entries {
		if e.Key.Tag == value.TagKeyword {
			if ns, name := value.KeywordParts(e.Key); ns == "" && name == "or" {
				orDefaults = value.MapEntries(e.Val)
			}
		}
	}
	defaultFor := func(name string) (value.Value, bool) {
		for _, d := range orDefaults {
			if _, dn := value.SymbolParts(d.Key); dn == name {
				return d.Val, true
			}
		}
		return value.Nil, false
	}
	// bindKeyed binds each symbol in syms by looking it up in the source
	// map under a key built by keyFor, applying any :or default found.
	bindKeyed := func(syms value.Value, keyFor func(symName string) value.Value) error {
		for _, sym := range value.VectorItems(syms) {
			_, symName := value.SymbolParts(sym)
			getInit := &Node{Kind: NCall, Items: []*Node{
				a.builtinRef("get"),
				localRefNode(srcName, srcSlot),
				&Node{Kind: NLiteral, Lit: keyFor(symName)},
			}}
			init := getInit
			if defForm, ok := defaultFor(symName); ok {
				defNode, err := a.analyze(defForm, depth)
				if err != nil {
					return err
				}
				init = &Node{Kind: NIf,
					Cond: &Node{Kind: NCall, Items: []*Node{a.builtinRef("nil?"), getInit}},
					Then: defNode,
					Else: getInit,
				}
			}
			slot := a.declareLocal(symName)
			out = append(out, LetBinding{Name: symName, Slot: slot, Init: init})
		}
		return nil
	}

	for _, e := range entries {
		if e.Key.Tag != value.TagKeyword {
			getInit := &Node{Kind: NCall, Items: []*Node{
				a.builtinRef("get"),
				localRefNode(srcName, srcSlot),
				&Node{Kind: NLiteral, Lit: e.Key},
			}}
			sub, err := a.destructureOne(e.Val, getInit, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		_, name := value.KeywordParts(e.Key)
		switch name {
		case "or":
			// already consumed above.
		case "as":
			_, asName := value.SymbolParts(e.Val)
			slot := a.declareLocal(asName)
			out = append(out, LetBinding{Name: asName, Slot: slot, Init: localRefNode(srcName, srcSlot)})
		case "keys":
			if err := bindKeyed(e.Val, func(n string) value.Value { return value.NewKeyword(a.Heap, a.interner(), "", n) }); err != nil {
				return nil, err
			}
		case "strs":
			if err := bindKeyed(e.Val, func(n string) value.Value { return value.NewString(a.Heap, n) }); err != nil {
				return nil, err
			}
		case "syms":
			if err := bindKeyed(e.Val, func(n string) value.Value { return value.NewSymbol(a.Heap, a.interner(), "", n) }); err != nil {
				return nil, err
			}
		default:
			getInit := &Node{Kind: NCall, Items: []*Node{
				a.builtinRef("get"),
				localRefNode(srcName, srcSlot),
				&Node{Kind: NLiteral, Lit: e.Key},
			}}
			sub, err := a.destructureOne(e.Val, getInit, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}

func localRefNode(name string, slot int) *Node {
	return &Node{Kind: NLocalRef, Local: &LocalSlot{Name: name, Depth: 0, Slot: slot}}
}

// builtinRef resolves a core-library helper by name for destructuring
// expansion (nth/nthrest/get); it is looked up exactly like a user
// reference would be, through the namespace registry's implicit core
// referral.
func (a *Analyzer) builtinRef(name string) *Node {
	v, ok := a.Registry.Resolve("", name)
	if !ok {
		return &Node{Kind: NLiteral, Lit: value.Nil}
	}
	return &Node{Kind: NVarRef, Var: v}
}

var gensymCounter int

func (a *Analyzer) gensym(base string) string {
	gensymCounter++
	return base + "__destructure__" + itoa(gensymCounter)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (a *Analyzer) interner() *value.Interner { return a.interned }

// declareLocal adds a new slot to the current function and binds name to
// it in the active block scope.
func (a *Analyzer) declareLocal(name string) int {
	slot := len(a.fn.locals)
	a.fn.locals = append(a.fn.locals, name)
	a.scope.names[name] = slot
	return slot
}

func (a *Analyzer) pushBlock() {
	a.scope = &blockScope{names: map[string]int{}, parent: a.scope, fn: a.fn}
}

func (a *Analyzer) popBlock() {
	a.scope = a.scope.parent
}

func analyzeLet(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	if len(items) < 2 {
		return nil, a.fail(errors.InvalidBinding, errors.PhaseAnalysis, items[0], "let* requires a binding vector")
	}
	a.pushBlock()
	defer a.popBlock()
	bindings, err := a.destructureBindings(items[1], depth)
	if err != nil {
		return nil, err
	}
	body, err := a.analyzeEach(items[2:], depth)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NLet, Bindings: bindings, Body: body, Pos: a.posOf(items[0])}, nil
}

func analyzeLoop(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	if len(items) < 2 {
		return nil, a.fail(errors.InvalidBinding, errors.PhaseAnalysis, items[0], "loop* requires a binding vector")
	}
	a.pushBlock()
	defer a.popBlock()
	bindings, err := a.destructureBindings(items[1], depth)
	if err != nil {
		return nil, err
	}
	body, err := a.analyzeEach(items[2:], depth)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NLoop, Bindings: bindings, Body: body, Pos: a.posOf(items[0])}, nil
}

// analyzeLetfn handles `(letfn [(name [params] body...) ...] & body)`.
// Every binding name is declared as a local slot before any of the fn
// literals are analyzed, so each fn's capture set (built the usual way,
// from the enclosing function's locals-so-far) already includes every
// sibling name — including its own — enabling mutual recursion without a
// fn introducing a self-name local of its own. Because this interpreter's
// closures snapshot their captured values at creation time rather than
// referencing live slots, the evaluator must patch each produced closure's
// captured siblings in after all of them exist; see treewalk's NLetfn case.
func analyzeLetfn(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	if len(items) < 2 {
		return nil, a.fail(errors.InvalidBinding, errors.PhaseAnalysis, items[0], "letfn requires a binding vector")
	}
	a.pushBlock()
	defer a.popBlock()

	specs := value.VectorItems(items[1])
	names := make([]string, len(specs))
	slots := make([]int, len(specs))
	for i, s := range specs {
		parts := value.ListToSlice(s)
		if len(parts) < 2 {
			return nil, a.fail(errors.InvalidBinding, errors.PhaseAnalysis, s, "letfn binding requires a name and parameter vector")
		}
		_, name := value.SymbolParts(parts[0])
		names[i] = name
		slots[i] = a.declareLocal(name)
	}

	bindings := make([]LetBinding, len(specs))
	for i, s := range specs {
		parts := value.ListToSlice(s)
		fnItems := append([]value.Value{items[0]}, parts[1:]...)
		fnNode, err := analyzeFn(a, fnItems, depth)
		if err != nil {
			return nil, err
		}
		fnNode.FnName = names[i]
		bindings[i] = LetBinding{Name: names[i], Slot: slots[i], Init: fnNode}
	}

	body, err := a.analyzeEach(items[2:], depth)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NLetfn, Bindings: bindings, Body: body, Pos: a.posOf(items[0])}, nil
}

func analyzeRecur(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	args, err := a.analyzeEach(items[1:], depth)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NRecur, Items: args, Pos: a.posOf(items[0])}, nil
}

func analyzeFn(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	rest := items[1:]
	name := ""
	if len(rest) > 0 && rest[0].Tag == value.TagSymbol {
		_, name = value.SymbolParts(rest[0])
		rest = rest[1:]
	}
	var arityForms [][]value.Value
	if len(rest) > 0 && rest[0].Tag == value.TagVector {
		arityForms = [][]value.Value{append([]value.Value{rest[0]}, rest[1:]...)}
	} else {
		for _, f := range rest {
			arityForms = append(arityForms, value.ListToSlice(f))
		}
	}

	outerFn := a.fn
	outerLocalsSoFar := len(outerFn.locals)
	captureNames := append(slices.Clone(outerFn.captureNames), outerFn.locals[:outerLocalsSoFar]...)

	arities := make([]FnArity, 0, len(arityForms))
	for _, af := range arityForms {
		if len(af) < 1 {
			continue
		}
		params := value.VectorItems(af[0])
		a.fn = &fnScope{parent: outerFn, captureNames: captureNames}
		a.pushBlock()

		var paramNames []string
		variadic := false
		for i := 0; i < len(params); i++ {
			_, pname := value.SymbolParts(params[i])
			if pname == "&" {
				variadic = true
				_, restName := value.SymbolParts(params[i+1])
				paramNames = append(paramNames, restName)
				a.declareLocal(restName)
				break
			}
			paramNames = append(paramNames, pname)
			a.declareLocal(pname)
		}

		body, err := a.analyzeEach(af[1:], depth)
		if err != nil {
			a.popBlock()
			a.fn = outerFn
			return nil, err
		}
		arities = append(arities, FnArity{
			Params: paramNames, Variadic: variadic,
			NumLocals: len(a.fn.locals), Body: body,
		})
		a.popBlock()
		a.fn = outerFn
	}

	return &Node{Kind: NFn, FnName: name, NumCaptures: len(captureNames), Arities: arities, Pos: a.posOf(items[0])}, nil
}

func analyzeDef(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	if len(items) < 2 {
		return nil, a.fail(errors.InvalidArity, errors.PhaseAnalysis, items[0], "def requires a symbol")
	}
	_, name := value.SymbolParts(items[1])
	v := a.Registry.Current().Intern(name)
	var init *Node
	if len(items) >= 3 {
		n, err := a.analyze(items[2], depth)
		if err != nil {
			return nil, err
		}
		init = n
	}
	return &Node{Kind: NDef, Var: v, DefSym: name, DefInit: init, Pos: a.posOf(items[0])}, nil
}

// analyzeDefonce handles `(defonce name init)`: first-write-wins semantics.
// Whether init actually runs depends on the var's Bound() state at eval
// time, not at analysis time (re-evaluating a form, e.g. reloading a file,
// must still retain the existing value), so DefInit is always analyzed
// here and the skip is left to the evaluator via the DefOnce flag.
func analyzeDefonce(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	if len(items) != 3 {
		return nil, a.fail(errors.InvalidArity, errors.PhaseAnalysis, items[0], "defonce requires a symbol and an init expression")
	}
	_, name := value.SymbolParts(items[1])
	v := a.Registry.Current().Intern(name)
	init, err := a.analyze(items[2], depth)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NDef, Var: v, DefSym: name, DefInit: init, DefOnce: true, Pos: a.posOf(items[0])}, nil
}

func analyzeDefmacro(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	if len(items) < 3 {
		return nil, a.fail(errors.InvalidArity, errors.PhaseAnalysis, items[0], "defmacro requires a name and parameter vector")
	}
	_, name := value.SymbolParts(items[1])
	v := a.Registry.Current().Intern(name)
	fnItems := append([]value.Value{items[0]}, items[2:]...)
	fnNode, err := analyzeFn(a, fnItems, depth)
	if err != nil {
		return nil, err
	}
	fnNode.FnName = name
	return &Node{Kind: NDef, Var: v, DefSym: name, DefInit: fnNode, IsMacro: true, Pos: a.posOf(items[0])}, nil
}

func analyzeVarSpecial(a *Analyzer, items []value.Value, _ int) (*Node, error) {
	if len(items) != 2 {
		return nil, a.fail(errors.InvalidArity, errors.PhaseAnalysis, items[0], "var takes exactly one symbol")
	}
	ns, name := value.SymbolParts(items[1])
	v, ok := a.Registry.Resolve(ns, name)
	if !ok {
		return nil, a.fail(errors.UndefinedSymbol, errors.PhaseAnalysis, items[1], "unable to resolve var: %s", name)
	}
	return &Node{Kind: NVarSpecial, Var: v, Pos: a.posOf(items[0])}, nil
}

func analyzeThrow(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	if len(items) != 2 {
		return nil, a.fail(errors.InvalidArity, errors.PhaseAnalysis, items[0], "throw takes exactly one argument")
	}
	expr, err := a.analyze(items[1], depth)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NThrow, ThrowExpr: expr, Pos: a.posOf(items[0])}, nil
}

func analyzeTry(a *Analyzer, items []value.Value, depth int) (*Node, error) {
	var body, finallyBody []*Node
	var catches []CatchClause
	for _, f := range items[1:] {
		if f.Tag == value.TagList && !value.IsEmptyList(f) {
			sub := value.ListToSlice(f)
			if sub[0].Tag == value.TagSymbol {
				if _, name := value.SymbolParts(sub[0]); name == "catch" {
					a.pushBlock()
					_, bindName := value.SymbolParts(sub[2])
					bindSlot := a.declareLocal(bindName)
					catchBody, err := a.analyzeEach(sub[3:], depth)
					a.popBlock()
					if err != nil {
						return nil, err
					}
					catches = append(catches, CatchClause{BindingName: bindName, Slot: bindSlot, Body: catchBody})
					continue
				}
				if _, name := value.SymbolParts(sub[0]); name == "finally" {
					fb, err := a.analyzeEach(sub[1:], depth)
					if err != nil {
						return nil, err
					}
					finallyBody = fb
					continue
				}
			}
		}
		n, err := a.analyze(f, depth)
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}
	return &Node{Kind: NTry, TryBody: body, Catches: catches, FinallyBody: finallyBody, Pos: a.posOf(items[0])}, nil
}
