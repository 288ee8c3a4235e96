package value

import "github.com/emberlang/ember/gc"

// FnKind distinguishes the callable shapes that share TagFn: user fns,
// builtins, partials and comps. Multi-fns and protocol fns carry Tags of
// their own (TagMultiFn, TagProtocolFn).
type FnKind uint8

const (
	FnUser FnKind = iota
	FnBuiltin
	FnPartial
	FnComp
)

// Arity is one compiled/analyzed arity of a user-defined function. Body and
// Proto are stored as opaque interfaces to avoid an import cycle: analyzer
// and compiler both import value (for Value/Arity), so Arity cannot import
// them back. treewalk asserts Body.(*analyzer.Node); compiler/vm assert
// Proto.(*compiler.FnProto).
type Arity struct {
	Params     []string
	Variadic   bool
	Body       interface{} // *analyzer.Node, tree-walk back end
	Proto      interface{} // *compiler.FnProto, VM back end
	NumParams  int
}

// BuiltinFunc is the signature for every core built-in; see corelib.
type BuiltinFunc func(heap *gc.Heap, args []Value) (Value, error)

// FnObj is the payload for every TagFn value.
//
// Captured holds the closure environment for FnUser values, following the
// closure-capture contract, this is every local reachable from every
// enclosing function at the point the closure was constructed — not just
// the locals it actually reads. Its length is the capture_count the
// compiler records on the matching FnProto and that the VM's
// OpClosure instruction must read back verbatim.
type FnObj struct {
	Kind        FnKind
	Name        string
	Arities     []Arity
	Captured    []Value
	Builtin     BuiltinFunc
	PartialFn   Value
	PartialArgs []Value
	CompFns     []Value
}

func (f *FnObj) Trace(visit func(*gc.Box)) {
	for _, v := range f.Captured {
		if v.Box != nil {
			visit(v.Box)
		}
	}
	if f.PartialFn.Box != nil {
		visit(f.PartialFn.Box)
	}
	for _, v := range f.PartialArgs {
		if v.Box != nil {
			visit(v.Box)
		}
	}
	for _, v := range f.CompFns {
		if v.Box != nil {
			visit(v.Box)
		}
	}
}

func (f *FnObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	nf := &FnObj{
		Kind: f.Kind, Name: f.Name, Arities: f.Arities, Builtin: f.Builtin,
	}
	nf.Captured = make([]Value, len(f.Captured))
	for i, v := range f.Captured {
		v.Box = rewrite(v.Box)
		nf.Captured[i] = v
	}
	nf.PartialFn = f.PartialFn
	nf.PartialFn.Box = rewrite(f.PartialFn.Box)
	nf.PartialArgs = make([]Value, len(f.PartialArgs))
	for i, v := range f.PartialArgs {
		v.Box = rewrite(v.Box)
		nf.PartialArgs[i] = v
	}
	nf.CompFns = make([]Value, len(f.CompFns))
	for i, v := range f.CompFns {
		v.Box = rewrite(v.Box)
		nf.CompFns[i] = v
	}
	return nf
}

func NewUserFn(h *gc.Heap, name string, arities []Arity, captured []Value) Value {
	return Value{Tag: TagFn, Box: h.Alloc(&FnObj{Kind: FnUser, Name: name, Arities: arities, Captured: captured}, 64)}
}

func NewBuiltinFn(h *gc.Heap, name string, fn BuiltinFunc) Value {
	return Value{Tag: TagFn, Box: h.Alloc(&FnObj{Kind: FnBuiltin, Name: name, Builtin: fn}, 32)}
}

func NewPartialFn(h *gc.Heap, fn Value, fixed []Value) Value {
	return Value{Tag: TagFn, Box: h.Alloc(&FnObj{Kind: FnPartial, PartialFn: fn, PartialArgs: fixed}, 32)}
}

func NewCompFn(h *gc.Heap, fns []Value) Value {
	return Value{Tag: TagFn, Box: h.Alloc(&FnObj{Kind: FnComp, CompFns: fns}, 32)}
}

func FnPayload(v Value) *FnObj { return payload(v).(*FnObj) }

func IsFn(v Value) bool { return v.Tag == TagFn }

// --- multimethods ----------------------------------------------------------

// MultiFnObj implements `defmulti`/`defmethod`. Keys and Methods are
// parallel slices searched in order with Equal (and, at call time, isa?),
// rather than a Go map, since dispatch values can themselves be arbitrary
// Ember values (keywords are the common case).
type MultiFnObj struct {
	Name       string
	DispatchFn Value
	Keys       []Value
	Methods    []Value // parallel to Keys
	Default    Value
}

func (m *MultiFnObj) Trace(visit func(*gc.Box)) {
	if m.DispatchFn.Box != nil {
		visit(m.DispatchFn.Box)
	}
	for _, v := range m.Keys {
		if v.Box != nil {
			visit(v.Box)
		}
	}
	for _, v := range m.Methods {
		if v.Box != nil {
			visit(v.Box)
		}
	}
	if m.Default.Box != nil {
		visit(m.Default.Box)
	}
}

func (m *MultiFnObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	nm := &MultiFnObj{Name: m.Name, DispatchFn: m.DispatchFn, Default: m.Default}
	nm.DispatchFn.Box = rewrite(m.DispatchFn.Box)
	nm.Default.Box = rewrite(m.Default.Box)
	nm.Keys = make([]Value, len(m.Keys))
	nm.Methods = make([]Value, len(m.Methods))
	for i := range m.Keys {
		k, meth := m.Keys[i], m.Methods[i]
		k.Box = rewrite(k.Box)
		meth.Box = rewrite(meth.Box)
		nm.Keys[i] = k
		nm.Methods[i] = meth
	}
	return nm
}

func NewMultiFn(h *gc.Heap, name string, dispatch Value) Value {
	return Value{Tag: TagMultiFn, Box: h.Alloc(&MultiFnObj{Name: name, DispatchFn: dispatch, Default: Nil}, 48)}
}

func MultiFnPayload(v Value) *MultiFnObj { return payload(v).(*MultiFnObj) }

// MultiFnAddMethod returns a new MultiFn value with (key -> method) added
// or replacing an existing entry for an equal key. Multimethods mutate in
// place conceptually (defmethod adds to the existing var's root); callers
// are expected to re-def the var to the returned value.
func MultiFnAddMethod(h *gc.Heap, mf Value, key, method Value) Value {
	m := MultiFnPayload(mf)
	keys := append([]Value{}, m.Keys...)
	methods := append([]Value{}, m.Methods...)
	for i, k := range keys {
		if Equal(k, key) {
			methods[i] = method
			nm := &MultiFnObj{Name: m.Name, DispatchFn: m.DispatchFn, Keys: keys, Methods: methods, Default: m.Default}
			return Value{Tag: TagMultiFn, Box: h.Alloc(nm, 48)}
		}
	}
	keys = append(keys, key)
	methods = append(methods, method)
	nm := &MultiFnObj{Name: m.Name, DispatchFn: m.DispatchFn, Keys: keys, Methods: methods, Default: m.Default}
	return Value{Tag: TagMultiFn, Box: h.Alloc(nm, 48)}
}

// --- protocols ---------------------------------------------------------

// ProtocolObj names a set of method signatures (names only — arity checks
// happen when a protocol-fn is invoked).
type ProtocolObj struct {
	Name    string
	Methods []string
}

func (p *ProtocolObj) Trace(func(*gc.Box))                         {}
func (p *ProtocolObj) Relocate(func(*gc.Box) *gc.Box) gc.Tracer { return &ProtocolObj{Name: p.Name, Methods: p.Methods} }

func NewProtocol(h *gc.Heap, name string, methods []string) Value {
	return Value{Tag: TagProtocol, Box: h.Alloc(&ProtocolObj{Name: name, Methods: methods}, 32)}
}

// ProtocolFnObj dispatches on the runtime Tag of its first argument (a
// cheap, non-hierarchy-aware stand-in for the full open-dispatch system a
// production implementation would need; multimethods cover the
// hierarchy-aware case via isa?).
type ProtocolFnObj struct {
	ProtocolName string
	MethodName   string
	ImplTags     []Tag
	Impls        []Value
}

func (p *ProtocolFnObj) Trace(visit func(*gc.Box)) {
	for _, v := range p.Impls {
		if v.Box != nil {
			visit(v.Box)
		}
	}
}

func (p *ProtocolFnObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	np := &ProtocolFnObj{ProtocolName: p.ProtocolName, MethodName: p.MethodName, ImplTags: p.ImplTags}
	np.Impls = make([]Value, len(p.Impls))
	for i, v := range p.Impls {
		v.Box = rewrite(v.Box)
		np.Impls[i] = v
	}
	return np
}

func NewProtocolFn(h *gc.Heap, protocolName, methodName string) Value {
	return Value{Tag: TagProtocolFn, Box: h.Alloc(&ProtocolFnObj{ProtocolName: protocolName, MethodName: methodName}, 32)}
}

func ProtocolFnExtend(h *gc.Heap, pf Value, tag Tag, impl Value) Value {
	p := payload(pf).(*ProtocolFnObj)
	tags := append([]Tag{}, p.ImplTags...)
	impls := append([]Value{}, p.Impls...)
	for i, t := range tags {
		if t == tag {
			impls[i] = impl
			np := &ProtocolFnObj{ProtocolName: p.ProtocolName, MethodName: p.MethodName, ImplTags: tags, Impls: impls}
			return Value{Tag: TagProtocolFn, Box: h.Alloc(np, 32)}
		}
	}
	tags = append(tags, tag)
	impls = append(impls, impl)
	np := &ProtocolFnObj{ProtocolName: p.ProtocolName, MethodName: p.MethodName, ImplTags: tags, Impls: impls}
	return Value{Tag: TagProtocolFn, Box: h.Alloc(np, 32)}
}

func ProtocolFnLookup(pf Value, tag Tag) (Value, bool) {
	p := payload(pf).(*ProtocolFnObj)
	for i, t := range p.ImplTags {
		if t == tag {
			return p.Impls[i], true
		}
	}
	return Nil, false
}
