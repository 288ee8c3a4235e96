package value

import "github.com/emberlang/ember/gc"

// --- atom -------------------------------------------------------------

// AtomObj is a single mutable cell. Since the runtime is single-threaded
// cooperative, swap! is simply "read, apply, write" with no retry
// loop and no lock.
type AtomObj struct {
	Val       Value
	Watches   []Value // fns registered by add-watch; swap!/reset! do not call them
	Validator Value   // fn value or Nil; (new) -> truthy/falsy
}

func (a *AtomObj) Trace(visit func(*gc.Box)) {
	if a.Val.Box != nil {
		visit(a.Val.Box)
	}
	for _, w := range a.Watches {
		if w.Box != nil {
			visit(w.Box)
		}
	}
	if a.Validator.Box != nil {
		visit(a.Validator.Box)
	}
}

func (a *AtomObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	na := &AtomObj{Val: a.Val, Validator: a.Validator}
	na.Val.Box = rewrite(a.Val.Box)
	na.Validator.Box = rewrite(a.Validator.Box)
	na.Watches = make([]Value, len(a.Watches))
	for i, w := range a.Watches {
		w.Box = rewrite(w.Box)
		na.Watches[i] = w
	}
	return na
}

func NewAtom(h *gc.Heap, initial Value) Value {
	return Value{Tag: TagAtom, Box: h.Alloc(&AtomObj{Val: initial}, 40)}
}

func AtomGet(v Value) Value           { return payload(v).(*AtomObj).Val }
func AtomSet(v Value, nv Value)       { payload(v).(*AtomObj).Val = nv }
func atomObj(v Value) *AtomObj        { return payload(v).(*AtomObj) }
func AtomAddWatch(v, fn Value)        { a := atomObj(v); a.Watches = append(a.Watches, fn) }
func AtomWatches(v Value) []Value     { return atomObj(v).Watches }
func AtomSetValidator(v, fn Value)    { atomObj(v).Validator = fn }
func AtomValidator(v Value) Value     { return atomObj(v).Validator }

// --- delay --------------------------------------------------------------

// DelayObj holds a 0-arg thunk. corelib's force and deref call Thunk when
// Realized is false, then set Realized and Val, so a thunk that returns
// runs once. A thunk that fails is not cached (nothing sets Err), so the
// next force calls it again.
type DelayObj struct {
	Thunk    Value // 0-arg fn
	Realized bool
	Val      Value
	Err      error
}

func (d *DelayObj) Trace(visit func(*gc.Box)) {
	if d.Thunk.Box != nil {
		visit(d.Thunk.Box)
	}
	if d.Val.Box != nil {
		visit(d.Val.Box)
	}
}

func (d *DelayObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	nd := &DelayObj{Thunk: d.Thunk, Realized: d.Realized, Val: d.Val, Err: d.Err}
	nd.Thunk.Box = rewrite(d.Thunk.Box)
	nd.Val.Box = rewrite(d.Val.Box)
	return nd
}

func NewDelay(h *gc.Heap, thunk Value) Value {
	return Value{Tag: TagDelay, Box: h.Alloc(&DelayObj{Thunk: thunk}, 40)}
}

func DelayPayload(v Value) *DelayObj { return payload(v).(*DelayObj) }

// --- volatile -------------------------------------------------------------

type VolatileObj struct{ Val Value }

func (v *VolatileObj) Trace(visit func(*gc.Box)) {
	if v.Val.Box != nil {
		visit(v.Val.Box)
	}
}
func (v *VolatileObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	nv := &VolatileObj{Val: v.Val}
	nv.Val.Box = rewrite(v.Val.Box)
	return nv
}

func NewVolatile(h *gc.Heap, initial Value) Value {
	return Value{Tag: TagVolatile, Box: h.Alloc(&VolatileObj{Val: initial}, 24)}
}
func VolatileGet(v Value) Value     { return payload(v).(*VolatileObj).Val }
func VolatileSet(v Value, nv Value) { payload(v).(*VolatileObj).Val = nv }

// --- reduced ----------------------------------------------------------

// ReducedObj wraps a value to signal early termination from `reduce`.
type ReducedObj struct{ Val Value }

func (r *ReducedObj) Trace(visit func(*gc.Box)) {
	if r.Val.Box != nil {
		visit(r.Val.Box)
	}
}
func (r *ReducedObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	nr := &ReducedObj{Val: r.Val}
	nr.Val.Box = rewrite(r.Val.Box)
	return nr
}

func NewReduced(h *gc.Heap, v Value) Value {
	return Value{Tag: TagReduced, Box: h.Alloc(&ReducedObj{Val: v}, 24)}
}
func IsReduced(v Value) bool  { return v.Tag == TagReduced }
func ReducedVal(v Value) Value { return payload(v).(*ReducedObj).Val }

// --- promise ------------------------------------------------------------

type PromiseObj struct {
	Val       Value
	Delivered bool
}

func (p *PromiseObj) Trace(visit func(*gc.Box)) {
	if p.Val.Box != nil {
		visit(p.Val.Box)
	}
}
func (p *PromiseObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	np := &PromiseObj{Val: p.Val, Delivered: p.Delivered}
	np.Val.Box = rewrite(p.Val.Box)
	return np
}

func NewPromise(h *gc.Heap) Value {
	return Value{Tag: TagPromise, Box: h.Alloc(&PromiseObj{}, 24)}
}
func PromisePayload(v Value) *PromiseObj { return payload(v).(*PromiseObj) }

// --- transient ------------------------------------------------------------

// TransientObj is the payload of a TagTransient value. Persisted marks a
// transient that has been made persistent; corelib defines no transient
// builtins (conj!, assoc!, persistent!), so nothing reads or sets it
// outside this file.
type TransientObj struct {
	Kind      Tag // TagVector, TagMap, or TagSet
	Items     []Value
	Entries   []MapEntry
	Persisted bool
}

func (t *TransientObj) Trace(visit func(*gc.Box)) {
	for _, v := range t.Items {
		if v.Box != nil {
			visit(v.Box)
		}
	}
	for _, e := range t.Entries {
		if e.Key.Box != nil {
			visit(e.Key.Box)
		}
		if e.Val.Box != nil {
			visit(e.Val.Box)
		}
	}
}

func (t *TransientObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	nt := &TransientObj{Kind: t.Kind, Persisted: t.Persisted}
	nt.Items = make([]Value, len(t.Items))
	for i, v := range t.Items {
		v.Box = rewrite(v.Box)
		nt.Items[i] = v
	}
	nt.Entries = make([]MapEntry, len(t.Entries))
	for i, e := range t.Entries {
		e.Key.Box = rewrite(e.Key.Box)
		e.Val.Box = rewrite(e.Val.Box)
		nt.Entries[i] = e
	}
	return nt
}

func NewTransientVector(h *gc.Heap, items []Value) Value {
	cp := append([]Value{}, items...)
	return Value{Tag: TagTransient, Box: h.Alloc(&TransientObj{Kind: TagVector, Items: cp}, int64(len(cp))*24+16)}
}

func NewTransientMap(h *gc.Heap, entries []MapEntry) Value {
	cp := append([]MapEntry{}, entries...)
	return Value{Tag: TagTransient, Box: h.Alloc(&TransientObj{Kind: TagMap, Entries: cp}, int64(len(cp))*48+16)}
}

func TransientPayload(v Value) *TransientObj { return payload(v).(*TransientObj) }
