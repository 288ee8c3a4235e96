// Package vm implements the bytecode back end: a flat instruction
// dispatch loop over compiler.Chunk, checked against treewalk's recursive
// evaluator for structural agreement. Where treewalk unwinds recur via a Go
// error value and try/catch/finally via deferred closures, this back end
// resolves recur at compile time into a plain jump and runs try/catch/finally
// through a per-call handler stack over the compiled handler table, trading
// a more intricate interpreter loop for throughput.
package vm

import (
	"github.com/emberlang/ember/compiler"
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/errors"
	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/value"
)

// VM executes compiled FnProtos against the shared namespace registry and
// GC heap, mirroring treewalk.Interp's role for the tree-walking back end.
type VM struct {
	Registry *env.Registry
	Heap     *gc.Heap

	// activeStacks holds one entry per runFrame invocation currently live
	// on the Go call stack (nested calls recurse through runFrame rather
	// than through an explicit frame list), so a GC triggered mid-call at
	// a recur safe point can still trace every enclosing call's captures,
	// locals, and transient expression stack. Each entry is the address of
	// runFrame's own `stack` local, not a snapshot, so it always reflects
	// that call's current stack even as it grows/shrinks.
	activeStacks []*[]value.Value
}

func New(registry *env.Registry, heap *gc.Heap) *VM {
	return &VM{Registry: registry, Heap: heap}
}

// StackRoots returns a GC root pointer into every Value slot of every
// currently active runFrame call's stack, for the recur safe point's
// Collect call (unlike the top-level expression boundary, a frame is live
// here, so Registry.CollectRoots alone would miss it).
func (vm *VM) StackRoots() []gc.RootPtr {
	var out []gc.RootPtr
	for _, s := range vm.activeStacks {
		cur := *s
		for i := range cur {
			out = append(out, &cur[i].Box)
		}
	}
	return out
}

// maybeCollect runs a GC cycle if the heap has crossed its trigger
// threshold, at the `recur` safe point (SPEC_FULL §4.6: "the recur opcode
// checks and may collect" so a tight loop can't starve the collector; §8:
// "a loop/recur of depth N uses O(1) frames and O(k) heap").
func (vm *VM) maybeCollect() {
	if vm.Heap.ShouldCollect() {
		vm.Heap.Collect(append(vm.Registry.CollectRoots(), vm.StackRoots()...))
	}
}

// Apply implements value.Applier, the same contract treewalk.Interp
// satisfies, so corelib builtins work unmodified against either back end.
func (vm *VM) Apply(fn value.Value, args []value.Value) (value.Value, error) {
	return vm.call(fn, args)
}

// RunTop executes a FnProto produced by compiler.CompileTop: zero params,
// zero captures, sized to the top-level frame's local count.
func (vm *VM) RunTop(proto *compiler.FnProto) (value.Value, error) {
	return vm.runFrame(proto, nil, nil)
}

// rtHandler is one active try/catch/finally activation within a single
// runFrame call. state tracks where control currently stands relative to
// this handler's own body:
//
//	0 - the try body is running; an error here may route to this handler's
//	    catch (if it has one) or straight to its finally.
//	1 - the catch body is running (or, for a catch-less try, this state is
//	    skipped); a new error here routes straight to this handler's finally.
//	2 - the finally body is running (or this handler already completed
//	    its try normally); it is retired and cannot catch anything more —
//	    a further error here searches the next outer handler instead.
type rtHandler struct {
	desc       compiler.HandlerDesc
	stackLen   int
	state      int
	pendingErr error
}

// runFrame executes one function activation: proto's chunk, seeded with
// captured (the closure environment) and args (already evaluated actual
// parameters). Like treewalk's Frame, base is always conceptually 0 here —
// each Go-level call to runFrame owns its own stack slice, so recursion
// through runFrame (not an explicit call stack) backs nested invocations.
func (vm *VM) runFrame(proto *compiler.FnProto, captured []value.Value, args []value.Value) (value.Value, error) {
	fixed := proto.NumCaptures + proto.NumLocals
	stack := make([]value.Value, fixed, fixed+16)
	vm.activeStacks = append(vm.activeStacks, &stack)
	defer func() { vm.activeStacks = vm.activeStacks[:len(vm.activeStacks)-1] }()
	copy(stack[:proto.NumCaptures], captured)
	locals := stack[proto.NumCaptures:fixed]
	if proto.Variadic {
		nfixed := proto.NumParams - 1
		copy(locals, args[:nfixed])
		locals[nfixed] = value.ListFromSlice(vm.Heap, args[nfixed:])
	} else {
		copy(locals, args)
	}

	code := proto.Chunk.Code
	consts := proto.Chunk.Consts
	vars := proto.Chunk.Vars
	handlerDescs := proto.Chunk.Handlers
	var handlers []*rtHandler
	ip := 0

	push := func(v value.Value) { stack = append(stack, v) }
	pop := func() value.Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	popN := func(n int) []value.Value {
		out := append([]value.Value{}, stack[len(stack)-n:]...)
		stack = stack[:len(stack)-n]
		return out
	}
	u16 := func(at int) int { return int(code[at])<<8 | int(code[at+1]) }

	// route searches the active handler stack, innermost first, for one
	// that can take err: either this is its first error (routes to catch,
	// if any, else straight to finally) or its second (a new error raised
	// inside its own catch body, which also routes straight to finally).
	// Retired (state 2) handlers are skipped — an error reaching finally
	// or past a handler's normal completion searches outward instead.
	route := func(err error) (int, bool) {
		for len(handlers) > 0 {
			h := handlers[len(handlers)-1]
			if h.state == 2 {
				handlers = handlers[:len(handlers)-1]
				continue
			}
			stack = stack[:h.stackLen]
			if h.state == 0 && h.desc.HasCatch {
				push(errToValue(vm.Heap, err))
				h.state = 1
				return h.desc.TargetAddr, true
			}
			h.state = 2
			h.pendingErr = err
			return h.desc.FinallyAddr, true
		}
		return 0, false
	}

	for {
		if len(handlers) > 0 {
			top := handlers[len(handlers)-1]
			if top.state != 2 && ip == top.desc.FinallyAddr {
				top.state = 2
			}
		}

		op := compiler.Op(code[ip])
		ip++
		switch op {
		case compiler.OpConst:
			push(consts[u16(ip)])
			ip += 2
		case compiler.OpLoadLocal:
			push(stack[proto.NumCaptures+u16(ip)])
			ip += 2
		case compiler.OpLoadCaptured:
			push(stack[u16(ip)])
			ip += 2
		case compiler.OpStoreLocal:
			stack[proto.NumCaptures+u16(ip)] = pop()
			ip += 2
		case compiler.OpLoadVar:
			push(env.Deref(vm.Registry.Bindings, vars[u16(ip)]))
			ip += 2
		case compiler.OpVarSpecial:
			push(value.Value{Tag: value.TagVarRef, Ptr: vars[u16(ip)]})
			ip += 2
		case compiler.OpDef:
			idx := u16(ip)
			flags := int(code[ip+2])
			ip += 3
			v := value.Nil
			if flags&1 != 0 {
				v = pop()
			}
			va := vars[idx]
			if flags&1 != 0 {
				_ = va.Set(v)
			}
			if flags&2 != 0 {
				k := value.NewKeyword(vm.Heap, vm.Registry.Interner, "", "macro")
				va.Meta = value.NewMap(vm.Heap, []value.MapEntry{{Key: k, Val: value.True}})
			}
			push(value.Value{Tag: value.TagVarRef, Ptr: va})
		case compiler.OpVarBound:
			idx := u16(ip)
			ip += 2
			push(value.Bool(vars[idx].Bound()))
		case compiler.OpPop:
			pop()
		case compiler.OpJump:
			ip = u16(ip)
		case compiler.OpJumpIfFalse:
			target := u16(ip)
			ip += 2
			if !value.Truthy(pop()) {
				ip = target
			}
		case compiler.OpMakeVector:
			n := u16(ip)
			ip += 2
			push(value.NewVector(vm.Heap, popN(n)))
		case compiler.OpMakeSet:
			n := u16(ip)
			ip += 2
			push(value.NewSet(vm.Heap, popN(n)))
		case compiler.OpMakeMap:
			pairs := u16(ip)
			ip += 2
			items := popN(pairs * 2)
			entries := make([]value.MapEntry, pairs)
			for i := 0; i < pairs; i++ {
				entries[i] = value.MapEntry{Key: items[2*i], Val: items[2*i+1]}
			}
			push(value.NewMap(vm.Heap, entries))
		case compiler.OpCall:
			argc := u16(ip)
			ip += 2
			args := popN(argc)
			fn := pop()
			v, err := vm.call(fn, args)
			if err != nil {
				if target, ok := route(err); ok {
					ip = target
					continue
				}
				return value.Nil, err
			}
			push(v)
		case compiler.OpClosure:
			numCaptures := u16(ip)
			arityCount := int(code[ip+2])
			ip += 3
			protoIdxs := make([]int, arityCount)
			for i := 0; i < arityCount; i++ {
				protoIdxs[i] = u16(ip)
				ip += 2
			}
			capturedEnv := make([]value.Value, numCaptures)
			offset := copy(capturedEnv, stack[:proto.NumCaptures])
			copy(capturedEnv[offset:], stack[proto.NumCaptures:proto.NumCaptures+(numCaptures-offset)])
			arities := make([]value.Arity, arityCount)
			for i, idx := range protoIdxs {
				ap := consts[idx].Ptr.(*compiler.FnProto)
				arities[i] = value.Arity{Params: ap.Params, Variadic: ap.Variadic, NumParams: ap.NumParams, Proto: ap}
			}
			name := ""
			if arityCount > 0 {
				name = consts[protoIdxs[0]].Ptr.(*compiler.FnProto).Name
			}
			push(value.NewUserFn(vm.Heap, name, arities, capturedEnv))
		case compiler.OpRecur:
			count := int(code[ip])
			ip++
			slots := make([]int, count)
			for i := 0; i < count; i++ {
				slots[i] = u16(ip)
				ip += 2
			}
			addr := u16(ip)
			ip += 2
			args := popN(count)
			for i, s := range slots {
				stack[proto.NumCaptures+s] = args[i]
			}
			vm.maybeCollect()
			ip = addr
		case compiler.OpThrow:
			v := pop()
			err := throwError{val: v}
			if target, ok := route(err); ok {
				ip = target
				continue
			}
			return value.Nil, err
		case compiler.OpTryStart:
			idx := u16(ip)
			ip += 2
			handlers = append(handlers, &rtHandler{desc: handlerDescs[idx], stackLen: len(stack)})
		case compiler.OpTryEnd:
			handlers = handlers[:len(handlers)-1]
		case compiler.OpFinallyBarrier:
			// The handler responsible for this barrier, if still present,
			// was retired (state 2) the instant ip reached its FinallyAddr,
			// at the top of this loop iteration's check, above.
			var pending error
			for i := len(handlers) - 1; i >= 0; i-- {
				if handlers[i].pendingErr != nil {
					pending = handlers[i].pendingErr
					handlers = append(handlers[:i], handlers[i+1:]...)
					break
				}
			}
			if pending != nil {
				if target, ok := route(pending); ok {
					ip = target
					continue
				}
				return value.Nil, pending
			}
		case compiler.OpScopeExit:
			n := u16(ip)
			ip += 2
			v := pop()
			stack = stack[:len(stack)-n]
			push(v)
		case compiler.OpLetfnFixup:
			closureSlot := u16(ip)
			siblingBase := u16(ip + 2)
			count := u16(ip + 4)
			ip += 6
			fnv := stack[proto.NumCaptures+closureSlot]
			if fnv.Tag != value.TagFn {
				continue
			}
			fo := value.FnPayload(fnv)
			base := len(fo.Captured) - count
			for j := 0; j < count; j++ {
				fo.Captured[base+j] = stack[proto.NumCaptures+siblingBase+j]
			}
		case compiler.OpReturn:
			return pop(), nil
		case compiler.OpHalt:
			if len(stack) == 0 {
				return value.Nil, nil
			}
			return stack[len(stack)-1], nil
		default:
			return value.Nil, errors.New(errors.InternalError, errors.PhaseEval, errors.Pos{}, "unhandled opcode %s", op)
		}
	}
}

// throwError carries a user-level `throw`n value up to the nearest VM
// catch, mirroring treewalk's throwSignal.
type throwError struct{ val value.Value }

func (throwError) Error() string { return "uncaught throw" }

// errToValue turns a routed Go error into the value a catch clause's
// binding sees: the thrown value itself for a user throw, or its message
// string for an internal *errors.Error, matching treewalk.evalTry.
func errToValue(h *gc.Heap, err error) value.Value {
	if te, ok := err.(throwError); ok {
		return te.val
	}
	if ee, ok := err.(*errors.Error); ok {
		return value.NewString(h, ee.Error())
	}
	return value.NewString(h, err.Error())
}
