// Package treewalk implements the reference evaluator: a direct recursive
// walk over analyzer.Node that serves as the oracle the bytecode compiler
// and VM are checked against. It is deliberately the simpler of the two
// back ends — no instruction stream, no explicit operand stack — trading
// throughput for an implementation plain enough to trust.
package treewalk

import (
	"github.com/emberlang/ember/analyzer"
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/errors"
	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/value"
)

// Frame is one function activation: Locals holds this call's own slots
// (params plus let/loop bindings), Captured holds the flattened closure
// environment the function literal closed over at creation time.
type Frame struct {
	Locals   []value.Value
	Captured []value.Value
}

// recurSignal unwinds a loop/fn body back to its nearest recur point; it is
// never an Ember-visible error, only an internal control-transfer value.
type recurSignal struct{ args []value.Value }

func (recurSignal) Error() string { return "recur outside loop" }

// throwSignal carries a user-level `throw`n value up to the nearest catch.
type throwSignal struct{ val value.Value }

func (throwSignal) Error() string { return "uncaught throw" }

// Interp evaluates analyzed Nodes against the shared namespace registry
// and GC heap.
type Interp struct {
	Registry *env.Registry
	Heap     *gc.Heap

	// activeFrames holds one entry per Frame currently live on the Go call
	// stack (nested user-fn calls recurse through callFn rather than
	// through an explicit frame list), so a GC triggered mid-call at a
	// recur safe point can still trace every enclosing call's locals and
	// captures. Pushed/popped in lockstep with each Frame's activation
	// (callFn for a nested call, PushFrame/PopFrame for the top-level
	// frame interp.Interpreter owns).
	activeFrames []*Frame
}

func New(registry *env.Registry, heap *gc.Heap) *Interp {
	return &Interp{Registry: registry, Heap: heap}
}

// PushFrame and PopFrame register the top-level Frame the embedding API
// creates per Eval call as part of the live root set, mirroring what
// callFn already does for every nested user-fn activation.
func (in *Interp) PushFrame(f *Frame) { in.activeFrames = append(in.activeFrames, f) }
func (in *Interp) PopFrame()          { in.activeFrames = in.activeFrames[:len(in.activeFrames)-1] }

// FrameRoots returns a GC root pointer into every Value slot across every
// currently active Frame, for the recur safe point's Collect call (unlike
// the top-level expression boundary, a frame is live here, so
// Registry.CollectRoots alone would miss it).
func (in *Interp) FrameRoots() []gc.RootPtr {
	var out []gc.RootPtr
	for _, f := range in.activeFrames {
		for i := range f.Locals {
			out = append(out, &f.Locals[i].Box)
		}
		for i := range f.Captured {
			out = append(out, &f.Captured[i].Box)
		}
	}
	return out
}

// maybeCollect runs a GC cycle if the heap has crossed its trigger
// threshold, at the `recur` safe point (SPEC_FULL §4.6: "the recur opcode
// checks and may collect" so a tight loop can't starve the collector; §8:
// "a loop/recur of depth N uses O(1) frames and O(k) heap").
func (in *Interp) maybeCollect() {
	if in.Heap.ShouldCollect() {
		in.Heap.Collect(append(in.Registry.CollectRoots(), in.FrameRoots()...))
	}
}

// Apply implements value.Applier, so corelib's seq/functional builtins and
// the analyzer's macro expander can invoke arbitrary callables without
// this package depending on them.
func (in *Interp) Apply(fn value.Value, args []value.Value) (value.Value, error) {
	return in.call(fn, args)
}

// Eval runs node to completion within frame (frame may be nil at the
// top level, where only NLiteral/NVarRef/NDef/NCall/NFn/collections are
// legal — there are no locals to reference).
func (in *Interp) Eval(node *analyzer.Node, frame *Frame) (value.Value, error) {
	for {
		switch node.Kind {
		case analyzer.NLiteral:
			return node.Lit, nil
		case analyzer.NVectorLit:
			items, err := in.evalEach(node.Items, frame)
			if err != nil {
				return value.Nil, err
			}
			return value.NewVector(in.Heap, items), nil
		case analyzer.NSetLit:
			items, err := in.evalEach(node.Items, frame)
			if err != nil {
				return value.Nil, err
			}
			return value.NewSet(in.Heap, items), nil
		case analyzer.NMapLit:
			entries := make([]value.MapEntry, 0, len(node.Items)/2)
			for i := 0; i < len(node.Items); i += 2 {
				k, err := in.Eval(node.Items[i], frame)
				if err != nil {
					return value.Nil, err
				}
				v, err := in.Eval(node.Items[i+1], frame)
				if err != nil {
					return value.Nil, err
				}
				entries = append(entries, value.MapEntry{Key: k, Val: v})
			}
			return value.NewMap(in.Heap, entries), nil
		case analyzer.NLocalRef:
			if node.Local.Depth == 0 {
				return frame.Locals[node.Local.Slot], nil
			}
			return frame.Captured[node.Local.Slot], nil
		case analyzer.NVarRef:
			return env.Deref(in.Registry.Bindings, node.Var), nil
		case analyzer.NVarSpecial:
			return value.Value{Tag: value.TagVarRef, Ptr: node.Var}, nil
		case analyzer.NIf:
			cond, err := in.Eval(node.Cond, frame)
			if err != nil {
				return value.Nil, err
			}
			if value.Truthy(cond) {
				node = node.Then
			} else {
				node = node.Else
			}
			continue
		case analyzer.NDo:
			v, err := in.evalBody(node.Items, frame)
			return v, err
		case analyzer.NLet:
			for _, b := range node.Bindings {
				v, err := in.Eval(b.Init, frame)
				if err != nil {
					return value.Nil, err
				}
				frame.Locals[b.Slot] = v
			}
			return in.evalBody(node.Body, frame)
		case analyzer.NLoop:
			for _, b := range node.Bindings {
				v, err := in.Eval(b.Init, frame)
				if err != nil {
					return value.Nil, err
				}
				frame.Locals[b.Slot] = v
			}
			for {
				v, err := in.evalBody(node.Body, frame)
				if rs, ok := err.(recurSignal); ok {
					for i, nv := range rs.args {
						frame.Locals[node.Bindings[i].Slot] = nv
					}
					in.maybeCollect()
					continue
				}
				return v, err
			}
		case analyzer.NLetfn:
			for _, b := range node.Bindings {
				v, err := in.Eval(b.Init, frame)
				if err != nil {
					return value.Nil, err
				}
				frame.Locals[b.Slot] = v
			}
			// Every sibling's closure snapshot captured the other siblings'
			// slots before all of them were assigned; patch each closure's
			// tail captures (the letfn names are always the last
			// len(node.Bindings) entries, since they were the most recently declared locals in
			// scope when each fn literal was analyzed) to the final values
			// now that every binding has one.
			n := len(node.Bindings)
			for _, b := range node.Bindings {
				fnv := frame.Locals[b.Slot]
				if fnv.Tag != value.TagFn {
					continue
				}
				fo := value.FnPayload(fnv)
				base := len(fo.Captured) - n
				for j, sib := range node.Bindings {
					fo.Captured[base+j] = frame.Locals[sib.Slot]
				}
			}
			return in.evalBody(node.Body, frame)
		case analyzer.NRecur:
			args, err := in.evalEach(node.Items, frame)
			if err != nil {
				return value.Nil, err
			}
			return value.Nil, recurSignal{args: args}
		case analyzer.NFn:
			return in.makeClosure(node, frame), nil
		case analyzer.NDef:
			if node.DefOnce && node.Var.Bound() {
				return value.Value{Tag: value.TagVarRef, Ptr: node.Var}, nil
			}
			var v value.Value = value.Nil
			if node.DefInit != nil {
				var err error
				v, err = in.Eval(node.DefInit, frame)
				if err != nil {
					return value.Nil, err
				}
			}
			if node.DefInit != nil {
				_ = node.Var.Set(v)
			}
			if node.IsMacro {
				k := value.NewKeyword(in.Heap, in.Registry.Interner, "", "macro")
				node.Var.Meta = value.NewMap(in.Heap, []value.MapEntry{{Key: k, Val: value.True}})
			}
			return value.Value{Tag: value.TagVarRef, Ptr: node.Var}, nil
		case analyzer.NThrow:
			v, err := in.Eval(node.ThrowExpr, frame)
			if err != nil {
				return value.Nil, err
			}
			return value.Nil, throwSignal{val: v}
		case analyzer.NTry:
			return in.evalTry(node, frame)
		case analyzer.NCall:
			return in.evalCall(node, frame)
		default:
			return value.Nil, errors.New(errors.InternalError, errors.PhaseEval, node.Pos, "unhandled node kind %d", node.Kind)
		}
	}
}

func (in *Interp) evalEach(nodes []*analyzer.Node, frame *Frame) ([]value.Value, error) {
	out := make([]value.Value, 0, len(nodes))
	for _, n := range nodes {
		v, err := in.Eval(n, frame)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *Interp) evalBody(nodes []*analyzer.Node, frame *Frame) (value.Value, error) {
	if len(nodes) == 0 {
		return value.Nil, nil
	}
	for _, n := range nodes[:len(nodes)-1] {
		if _, err := in.Eval(n, frame); err != nil {
			return value.Nil, err
		}
	}
	return in.Eval(nodes[len(nodes)-1], frame)
}

func (in *Interp) makeClosure(node *analyzer.Node, frame *Frame) value.Value {
	captured := make([]value.Value, node.NumCaptures)
	if frame != nil {
		offset := copy(captured, frame.Captured)
		copy(captured[offset:], frame.Locals[:node.NumCaptures-offset])
	}
	arities := make([]value.Arity, len(node.Arities))
	for i, ar := range node.Arities {
		arities[i] = value.Arity{Params: ar.Params, Variadic: ar.Variadic, NumParams: len(ar.Params), Body: ar}
	}
	return value.NewUserFn(in.Heap, node.FnName, arities, captured)
}

func (in *Interp) evalTry(node *analyzer.Node, frame *Frame) (v value.Value, err error) {
	if len(node.FinallyBody) > 0 {
		defer func() {
			if _, ferr := in.evalBody(node.FinallyBody, frame); ferr != nil && err == nil {
				err = ferr
			}
		}()
	}
	v, err = in.evalBody(node.TryBody, frame)
	if err == nil {
		return v, nil
	}
	ts, ok := err.(throwSignal)
	var caught value.Value
	if ok {
		caught = ts.val
	} else if ee, ok := err.(*errors.Error); ok {
		caught = value.NewString(in.Heap, ee.Error())
	} else {
		return value.Nil, err
	}
	for _, c := range node.Catches {
		frame.Locals[c.Slot] = caught
		return in.evalBody(c.Body, frame)
	}
	return value.Nil, err
}

func (in *Interp) evalCall(node *analyzer.Node, frame *Frame) (value.Value, error) {
	fn, err := in.Eval(node.Items[0], frame)
	if err != nil {
		return value.Nil, err
	}
	args, err := in.evalEach(node.Items[1:], frame)
	if err != nil {
		return value.Nil, err
	}
	return in.call(fn, args)
}

func (in *Interp) call(fn value.Value, args []value.Value) (value.Value, error) {
	switch fn.Tag {
	case value.TagKeyword:
		if len(args) < 1 {
			return value.Nil, errors.New(errors.ArityError, errors.PhaseEval, errors.Pos{}, "keyword-as-function requires a map argument")
		}
		v, ok := value.MapFind(args[0], fn)
		if !ok {
			if len(args) > 1 {
				return args[1], nil
			}
			return value.Nil, nil
		}
		return v, nil
	case value.TagMap:
		if len(args) < 1 {
			return value.Nil, errors.New(errors.ArityError, errors.PhaseEval, errors.Pos{}, "map-as-function requires a key argument")
		}
		v, ok := value.MapFind(fn, args[0])
		if !ok {
			if len(args) > 1 {
				return args[1], nil
			}
			return value.Nil, nil
		}
		return v, nil
	case value.TagSet:
		if len(args) != 1 {
			return value.Nil, errors.New(errors.ArityError, errors.PhaseEval, errors.Pos{}, "set-as-function takes exactly one argument")
		}
		if value.SetContains(fn, args[0]) {
			return args[0], nil
		}
		return value.Nil, nil
	case value.TagFn:
		return in.callFn(fn, args)
	case value.TagMultiFn:
		return in.callMultiFn(fn, args)
	case value.TagProtocolFn:
		return in.callProtocolFn(fn, args)
	default:
		return value.Nil, errors.New(errors.TypeError, errors.PhaseEval, errors.Pos{}, "value of type %s is not callable", fn.Tag)
	}
}

func (in *Interp) callFn(fn value.Value, args []value.Value) (value.Value, error) {
	f := value.FnPayload(fn)
	switch f.Kind {
	case value.FnBuiltin:
		return f.Builtin(in.Heap, args)
	case value.FnPartial:
		return in.call(f.PartialFn, append(append([]value.Value{}, f.PartialArgs...), args...))
	case value.FnComp:
		if len(f.CompFns) == 0 {
			if len(args) == 1 {
				return args[0], nil
			}
			return value.Nil, nil
		}
		v, err := in.call(f.CompFns[len(f.CompFns)-1], args)
		if err != nil {
			return value.Nil, err
		}
		for i := len(f.CompFns) - 2; i >= 0; i-- {
			v, err = in.call(f.CompFns[i], []value.Value{v})
			if err != nil {
				return value.Nil, err
			}
		}
		return v, nil
	case value.FnUser:
		ar, err := pickArity(f, len(args))
		if err != nil {
			return value.Nil, err
		}
		node := ar.Body.(analyzer.FnArity)
		frame := &Frame{Locals: make([]value.Value, node.NumLocals), Captured: f.Captured}
		if node.Variadic {
			fixed := len(node.Params) - 1
			copy(frame.Locals, args[:fixed])
			frame.Locals[fixed] = value.ListFromSlice(in.Heap, args[fixed:])
		} else {
			copy(frame.Locals, args)
		}
		in.PushFrame(frame)
		defer in.PopFrame()
		for {
			v, err := in.evalBody(node.Body, frame)
			if rs, ok := err.(recurSignal); ok {
				for i, nv := range rs.args {
					frame.Locals[i] = nv
				}
				in.maybeCollect()
				continue
			}
			return v, err
		}
	default:
		return value.Nil, errors.New(errors.InternalError, errors.PhaseEval, errors.Pos{}, "unknown fn kind")
	}
}

func pickArity(f *value.FnObj, n int) (value.Arity, error) {
	for _, ar := range f.Arities {
		if ar.Variadic {
			if n >= ar.NumParams-1 {
				return ar, nil
			}
			continue
		}
		if n == ar.NumParams {
			return ar, nil
		}
	}
	return value.Arity{}, errors.New(errors.ArityError, errors.PhaseEval, errors.Pos{}, "no matching arity for %d arguments to %s", n, f.Name)
}

func (in *Interp) callMultiFn(fn value.Value, args []value.Value) (value.Value, error) {
	m := value.MultiFnPayload(fn)
	dv, err := in.call(m.DispatchFn, args)
	if err != nil {
		return value.Nil, err
	}
	for i, k := range m.Keys {
		if value.Equal(k, dv) || in.Registry.Hierarchy.IsA(dv, k) {
			return in.call(m.Methods[i], args)
		}
	}
	if !value.IsNil(m.Default) {
		return in.call(m.Default, args)
	}
	return value.Nil, errors.New(errors.TypeError, errors.PhaseEval, errors.Pos{}, "no method in multimethod %s for dispatch value %s", m.Name, value.PrStr(dv))
}

func (in *Interp) callProtocolFn(fn value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Nil, errors.New(errors.ArityError, errors.PhaseEval, errors.Pos{}, "protocol function requires at least one argument")
	}
	impl, ok := value.ProtocolFnLookup(fn, args[0].Tag)
	if !ok {
		return value.Nil, errors.New(errors.TypeError, errors.PhaseEval, errors.Pos{}, "no protocol implementation for type %s", args[0].Tag)
	}
	return in.call(impl, args)
}
