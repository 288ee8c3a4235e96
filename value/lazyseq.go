package value

import "github.com/emberlang/ember/gc"

// LazyKind discriminates the lazy-sequence sub-variants:
// thunk, realized, cons, transform, concat, generator.
type LazyKind uint8

const (
	LazyThunk LazyKind = iota
	LazyRealized
	LazyCons
	LazyTransform
	LazyConcat
	LazyGenerator
)

// TransformKind is the operator a LazyTransform applies element-by-element.
type TransformKind uint8

const (
	TransformMap TransformKind = iota
	TransformFilter
	TransformMapcat
)

// GenKind is the generator family a LazyGenerator produces.
type GenKind uint8

const (
	GenIterate GenKind = iota
	GenRepeat
	GenCycle
	GenRange
)

// LazySeqObj is realized at most once (realization-at-
// most-once"); Realized flips permanently true the first time Force
// succeeds, caching (head, tail, empty) for every subsequent call.
type LazySeqObj struct {
	Kind LazyKind

	Realized        bool
	RealizedHead    Value
	RealizedTail    Value
	RealizedIsEmpty bool

	// LazyThunk
	Thunk Value

	// LazyCons
	ConsHead Value
	ConsTail Value

	// LazyTransform
	TransformSrc  Value
	TransformFn   Value
	TransformKind TransformKind

	// LazyConcat
	ConcatSources []Value

	// LazyGenerator
	GenKind   GenKind
	GenFn     Value // iterate: step fn
	GenState  Value // iterate/range: current value; range: [current end step] as a 3-vector
	GenSource Value // cycle: the original seq to restart from; repeat: the value to repeat
}

func (l *LazySeqObj) Trace(visit func(*gc.Box)) {
	vs := []Value{
		l.RealizedHead, l.RealizedTail, l.Thunk, l.ConsHead, l.ConsTail,
		l.TransformSrc, l.TransformFn, l.GenFn, l.GenState, l.GenSource,
	}
	for _, v := range vs {
		if v.Box != nil {
			visit(v.Box)
		}
	}
	for _, v := range l.ConcatSources {
		if v.Box != nil {
			visit(v.Box)
		}
	}
}

func (l *LazySeqObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	nl := *l
	rw := func(v *Value) { v.Box = rewrite(v.Box) }
	rw(&nl.RealizedHead)
	rw(&nl.RealizedTail)
	rw(&nl.Thunk)
	rw(&nl.ConsHead)
	rw(&nl.ConsTail)
	rw(&nl.TransformSrc)
	rw(&nl.TransformFn)
	rw(&nl.GenFn)
	rw(&nl.GenState)
	rw(&nl.GenSource)
	nl.ConcatSources = make([]Value, len(l.ConcatSources))
	for i, v := range l.ConcatSources {
		v.Box = rewrite(v.Box)
		nl.ConcatSources[i] = v
	}
	return &nl
}

func newLazy(h *gc.Heap, obj *LazySeqObj) Value {
	return Value{Tag: TagLazySeq, Box: h.Alloc(obj, 80)}
}

func NewLazyThunk(h *gc.Heap, thunk Value) Value {
	return newLazy(h, &LazySeqObj{Kind: LazyThunk, Thunk: thunk})
}

func NewLazyCons(h *gc.Heap, head, tail Value) Value {
	return newLazy(h, &LazySeqObj{Kind: LazyCons, ConsHead: head, ConsTail: tail})
}

func NewLazyTransform(h *gc.Heap, src, fn Value, kind TransformKind) Value {
	return newLazy(h, &LazySeqObj{Kind: LazyTransform, TransformSrc: src, TransformFn: fn, TransformKind: kind})
}

func NewLazyConcat(h *gc.Heap, sources []Value) Value {
	return newLazy(h, &LazySeqObj{Kind: LazyConcat, ConcatSources: sources})
}

func NewLazyIterate(h *gc.Heap, fn, start Value) Value {
	return newLazy(h, &LazySeqObj{Kind: LazyGenerator, GenKind: GenIterate, GenFn: fn, GenState: start})
}

func NewLazyRepeat(h *gc.Heap, v Value) Value {
	return newLazy(h, &LazySeqObj{Kind: LazyGenerator, GenKind: GenRepeat, GenSource: v})
}

func NewLazyCycle(h *gc.Heap, source Value) Value {
	return newLazy(h, &LazySeqObj{Kind: LazyGenerator, GenKind: GenCycle, GenSource: source, GenState: source})
}

func NewLazyRange(h *gc.Heap, start, end, step Value) Value {
	return newLazy(h, &LazySeqObj{Kind: LazyGenerator, GenKind: GenRange, GenState: NewVector(h, []Value{start, end, step})})
}

// lazyPayload follows the forwarding chain for a TagLazySeq Value.
func lazyPayload(v Value) *LazySeqObj { return payload(v).(*LazySeqObj) }

// Force realizes one step of v: its head, and a tail that is itself
// either an empty/non-empty concrete seq or another (possibly still
// lazy) seq value, evaluating element-by-element
// for the fused-pipeline scenario. apply is used only by LazyThunk (to
// call the producing 0-arg fn) and LazyTransform/LazyGenerator (to call
// the user fn supplied to map/filter/mapcat/iterate).
func Force(h *gc.Heap, apply Applier, v Value) (head Value, tail Value, isEmpty bool, err error) {
	obj := lazyPayload(v)
	if obj.Realized {
		return obj.RealizedHead, obj.RealizedTail, obj.RealizedIsEmpty, nil
	}
	var hd, tl Value
	var empty bool
	switch obj.Kind {
	case LazyThunk:
		res, e := apply(obj.Thunk, nil)
		if e != nil {
			return Nil, Nil, false, e
		}
		hd, tl, empty, err = forceOf(h, apply, res)
	case LazyCons:
		hd, tl, empty = obj.ConsHead, obj.ConsTail, false
	case LazyTransform:
		hd, tl, empty, err = forceTransform(h, apply, obj)
	case LazyConcat:
		hd, tl, empty, err = forceConcat(h, apply, obj)
	case LazyGenerator:
		hd, tl, empty, err = forceGenerator(h, apply, obj)
	}
	if err != nil {
		return Nil, Nil, false, err
	}
	obj.Realized = true
	obj.RealizedHead, obj.RealizedTail, obj.RealizedIsEmpty = hd, tl, empty
	return hd, tl, empty, nil
}

// forceOf produces (head, tail, empty) for any seqable value, forcing one
// step if it is itself lazy.
func forceOf(h *gc.Heap, apply Applier, v Value) (Value, Value, bool, error) {
	if v.Tag == TagLazySeq {
		return Force(h, apply, v)
	}
	s := Seq(h, v)
	if IsEmptyList(s) {
		return Nil, Nil, true, nil
	}
	return ListHead(s), ListTail(s), false, nil
}

func forceTransform(h *gc.Heap, apply Applier, obj *LazySeqObj) (Value, Value, bool, error) {
	switch obj.TransformKind {
	case TransformMap:
		hd, tl, empty, err := forceOf(h, apply, obj.TransformSrc)
		if err != nil || empty {
			return Nil, Nil, true, err
		}
		mapped, err := apply(obj.TransformFn, []Value{hd})
		if err != nil {
			return Nil, Nil, false, err
		}
		return mapped, NewLazyTransform(h, tl, obj.TransformFn, TransformMap), false, nil
	case TransformFilter:
		src := obj.TransformSrc
		for {
			hd, tl, empty, err := forceOf(h, apply, src)
			if err != nil {
				return Nil, Nil, false, err
			}
			if empty {
				return Nil, Nil, true, nil
			}
			keep, err := apply(obj.TransformFn, []Value{hd})
			if err != nil {
				return Nil, Nil, false, err
			}
			if Truthy(keep) {
				return hd, NewLazyTransform(h, tl, obj.TransformFn, TransformFilter), false, nil
			}
			src = tl
		}
	case TransformMapcat:
		src := obj.TransformSrc
		for {
			hd, tl, empty, err := forceOf(h, apply, src)
			if err != nil {
				return Nil, Nil, false, err
			}
			if empty {
				return Nil, Nil, true, nil
			}
			expanded, err := apply(obj.TransformFn, []Value{hd})
			if err != nil {
				return Nil, Nil, false, err
			}
			ehd, etl, eempty, err := forceOf(h, apply, expanded)
			if err != nil {
				return Nil, Nil, false, err
			}
			if !eempty {
				rest := NewLazyConcat(h, []Value{etl, NewLazyTransform(h, tl, obj.TransformFn, TransformMapcat)})
				return ehd, rest, false, nil
			}
			src = tl
		}
	}
	return Nil, Nil, true, nil
}

func forceConcat(h *gc.Heap, apply Applier, obj *LazySeqObj) (Value, Value, bool, error) {
	sources := obj.ConcatSources
	for len(sources) > 0 {
		hd, tl, empty, err := forceOf(h, apply, sources[0])
		if err != nil {
			return Nil, Nil, false, err
		}
		if !empty {
			rest := append([]Value{tl}, sources[1:]...)
			return hd, NewLazyConcat(h, rest), false, nil
		}
		sources = sources[1:]
	}
	return Nil, Nil, true, nil
}

func forceGenerator(h *gc.Heap, apply Applier, obj *LazySeqObj) (Value, Value, bool, error) {
	switch obj.GenKind {
	case GenIterate:
		next, err := apply(obj.GenFn, []Value{obj.GenState})
		if err != nil {
			return Nil, Nil, false, err
		}
		return obj.GenState, NewLazyIterate(h, obj.GenFn, next), false, nil
	case GenRepeat:
		return obj.GenSource, NewLazyRepeat(h, obj.GenSource), false, nil
	case GenCycle:
		hd, tl, empty, err := forceOf(h, apply, obj.GenState)
		if err != nil {
			return Nil, Nil, false, err
		}
		if empty {
			// restart from the original source; an empty source cycles forever empty.
			hd, tl, empty, err = forceOf(h, apply, obj.GenSource)
			if err != nil || empty {
				return Nil, Nil, true, err
			}
		}
		nl := newLazy(h, &LazySeqObj{Kind: LazyGenerator, GenKind: GenCycle, GenSource: obj.GenSource, GenState: tl})
		return hd, nl, false, nil
	case GenRange:
		parts := VectorItems(obj.GenState)
		cur, end, step := parts[0], parts[1], parts[2]
		if end.Tag != TagNil {
			if step.I >= 0 && cur.I >= end.I {
				return Nil, Nil, true, nil
			}
			if step.I < 0 && cur.I <= end.I {
				return Nil, Nil, true, nil
			}
		}
		nextCur := Int(cur.I + step.I)
		nl := NewLazyRange(h, nextCur, end, step)
		return cur, nl, false, nil
	}
	return Nil, Nil, true, nil
}
