package analyzer

import (
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/errors"
	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/value"
)

const maxMacroDepth = 512

// PosLookup resolves the source position recorded for a Form, if its reader
// tracked one (collections only; atoms fall back to zero position).
type PosLookup func(value.Value) (errors.Pos, bool)

// fnScope is one function-boundary's bookkeeping: append-only local slots
// plus the flattened capture-name list fixed at the point this function
// literal was analyzed.
type fnScope struct {
	parent       *fnScope
	locals       []string
	captureNames []string
}

// blockScope is one lexical block (let*/loop*/fn* params) within a
// function: a name -> slot map, chained to the enclosing block.
type blockScope struct {
	names  map[string]int
	parent *blockScope
	fn     *fnScope
}

func (b *blockScope) resolve(name string) (int, bool) {
	for s := b; s != nil && s.fn == b.fn; s = s.parent {
		if slot, ok := s.names[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

// Analyzer lowers Forms to Nodes against a namespace registry, expanding
// macros to a fixed point and tracking lexical scope as it recurses.
type Analyzer struct {
	Registry *env.Registry
	Heap     *gc.Heap
	Apply    value.Applier
	PosOf    PosLookup
	interned *value.Interner

	scope *blockScope
	fn    *fnScope
}

func New(registry *env.Registry, heap *gc.Heap, interner *value.Interner, apply value.Applier, posOf PosLookup) *Analyzer {
	top := &fnScope{}
	a := &Analyzer{Registry: registry, Heap: heap, Apply: apply, PosOf: posOf, interned: interner, fn: top}
	a.scope = &blockScope{names: map[string]int{}, fn: top}
	return a
}

func (a *Analyzer) posOf(form value.Value) errors.Pos {
	if a.PosOf == nil {
		return errors.Pos{}
	}
	p, _ := a.PosOf(form)
	return p
}

func (a *Analyzer) fail(kind errors.Kind, phase errors.Phase, form value.Value, format string, args ...interface{}) error {
	return errors.New(kind, phase, a.posOf(form), format, args...)
}

// Analyze is the entry point: lower one top-level Form to one Node. Each
// call starts a fresh top-level function scope, so bare `let*`/`loop*`
// bindings at the top level (outside any `fn*`) get slot numbers starting
// at zero every time rather than growing without bound across an entire
// REPL session; TopLocalsCount reports how large a frame the caller must
// allocate to run the returned Node.
func (a *Analyzer) Analyze(form value.Value) (*Node, error) {
	top := &fnScope{}
	a.fn = top
	a.scope = &blockScope{names: map[string]int{}, fn: top}
	node, err := a.analyze(form, 0)
	if err != nil {
		return nil, err
	}
	if err := checkTailRecur(node, false); err != nil {
		return nil, err
	}
	return node, nil
}

// TopLocalsCount reports how many local slots the most recently analyzed
// top-level form needs in its implicit top-level frame.
func (a *Analyzer) TopLocalsCount() int { return len(a.fn.locals) }

func (a *Analyzer) analyze(form value.Value, macroDepth int) (*Node, error) {
	expanded, err := a.macroexpand(form, macroDepth)
	if err != nil {
		return nil, err
	}
	form = expanded

	switch form.Tag {
	case value.TagSymbol:
		return a.analyzeSymbol(form)
	case value.TagList:
		if value.IsEmptyList(form) {
			return &Node{Kind: NLiteral, Lit: form, Pos: a.posOf(form)}, nil
		}
		return a.analyzeList(form, macroDepth)
	case value.TagVector:
		items, err := a.analyzeEach(value.VectorItems(form), macroDepth)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NVectorLit, Items: items, Pos: a.posOf(form)}, nil
	case value.TagSet:
		items, err := a.analyzeEach(value.SetItems(form), macroDepth)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NSetLit, Items: items, Pos: a.posOf(form)}, nil
	case value.TagMap:
		var kvs []*Node
		for _, e := range value.MapEntries(form) {
			kn, err := a.analyze(e.Key, macroDepth)
			if err != nil {
				return nil, err
			}
			vn, err := a.analyze(e.Val, macroDepth)
			if err != nil {
				return nil, err
			}
			kvs = append(kvs, kn, vn)
		}
		return &Node{Kind: NMapLit, Items: kvs, Pos: a.posOf(form)}, nil
	default:
		return &Node{Kind: NLiteral, Lit: form, Pos: a.posOf(form)}, nil
	}
}

func (a *Analyzer) analyzeEach(forms []value.Value, macroDepth int) ([]*Node, error) {
	out := make([]*Node, 0, len(forms))
	for _, f := range forms {
		n, err := a.analyze(f, macroDepth)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (a *Analyzer) analyzeSymbol(form value.Value) (*Node, error) {
	ns, name := value.SymbolParts(form)
	if ns == "" {
		if slot, ok := a.scope.resolve(name); ok {
			return &Node{Kind: NLocalRef, Local: &LocalSlot{Name: name, Depth: 0, Slot: slot}, Pos: a.posOf(form)}, nil
		}
		if idx, ok := captureIndex(a.fn, name); ok {
			return &Node{Kind: NLocalRef, Local: &LocalSlot{Name: name, Depth: -1, Slot: idx}, Pos: a.posOf(form)}, nil
		}
	}
	v, ok := a.Registry.Resolve(ns, name)
	if !ok {
		hint := errors.Suggestion(name, a.Registry.Current().Names())
		msg := "unable to resolve symbol: " + name
		if hint != "" {
			msg += " (did you mean " + hint + "?)"
		}
		return nil, a.fail(errors.UndefinedSymbol, errors.PhaseAnalysis, form, msg)
	}
	return &Node{Kind: NVarRef, Var: v, Pos: a.posOf(form)}, nil
}

func captureIndex(fn *fnScope, name string) (int, bool) {
	for i, n := range fn.captureNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (a *Analyzer) analyzeList(form value.Value, macroDepth int) (*Node, error) {
	items := value.ListToSlice(form)
	head := items[0]
	if head.Tag == value.TagSymbol {
		if ns, name := value.SymbolParts(head); ns == "" {
			if fn, ok := specialForms[name]; ok {
				return fn(a, items, macroDepth)
			}
		}
	}
	nodes, err := a.analyzeEach(items, macroDepth)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NCall, Items: nodes, Pos: a.posOf(form)}, nil
}

// macroexpand repeatedly expands form while its head resolves to a macro
// var, to a fixed point, bounded by maxMacroDepth to catch runaway macros.
func (a *Analyzer) macroexpand(form value.Value, depth int) (value.Value, error) {
	if depth > maxMacroDepth {
		return value.Nil, a.fail(errors.MacroError, errors.PhaseMacroexpand, form, "macro expansion exceeded depth limit")
	}
	if form.Tag != value.TagList || value.IsEmptyList(form) {
		return form, nil
	}
	items := value.ListToSlice(form)
	head := items[0]
	if head.Tag != value.TagSymbol {
		return form, nil
	}
	ns, name := value.SymbolParts(head)
	if _, isSpecial := specialForms[name]; isSpecial && ns == "" {
		return form, nil
	}
	v, ok := a.Registry.Resolve(ns, name)
	if !ok || !a.isMacroVar(v) {
		return form, nil
	}
	args := items[1:]
	expanded, err := a.Apply(v.Root, args)
	if err != nil {
		return value.Nil, errors.Wrap(err, errors.MacroError, errors.PhaseMacroexpand, a.posOf(form), "macro %s expansion failed", name)
	}
	return a.macroexpand(expanded, depth+1)
}

func (a *Analyzer) isMacroVar(v *env.Var) bool {
	if v.Root.Tag != value.TagFn {
		return false
	}
	k := value.NewKeyword(a.Heap, a.interned, "", "macro")
	flag, ok := value.MapFind(v.Meta, k)
	return ok && value.Truthy(flag)
}
