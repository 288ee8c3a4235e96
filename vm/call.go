package vm

import (
	"github.com/emberlang/ember/compiler"
	"github.com/emberlang/ember/errors"
	"github.com/emberlang/ember/value"
)

// call dispatches a callable Value to its implementation, mirroring
// treewalk.Interp.call exactly (keyword/map/set-as-fn, TagFn, TagMultiFn,
// TagProtocolFn) so either back end accepts the same callable shapes.
func (vm *VM) call(fn value.Value, args []value.Value) (value.Value, error) {
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
		return vm.callFn(fn, args)
	case value.TagMultiFn:
		return vm.callMultiFn(fn, args)
	case value.TagProtocolFn:
		return vm.callProtocolFn(fn, args)
	default:
		return value.Nil, errors.New(errors.TypeError, errors.PhaseEval, errors.Pos{}, "value of type %s is not callable", fn.Tag)
	}
}

func (vm *VM) callFn(fn value.Value, args []value.Value) (value.Value, error) {
	f := value.FnPayload(fn)
	switch f.Kind {
	case value.FnBuiltin:
		return f.Builtin(vm.Heap, args)
	case value.FnPartial:
		return vm.call(f.PartialFn, append(append([]value.Value{}, f.PartialArgs...), args...))
	case value.FnComp:
		if len(f.CompFns) == 0 {
			if len(args) == 1 {
				return args[0], nil
			}
			return value.Nil, nil
		}
		v, err := vm.call(f.CompFns[len(f.CompFns)-1], args)
		if err != nil {
			return value.Nil, err
		}
		for i := len(f.CompFns) - 2; i >= 0; i-- {
			v, err = vm.call(f.CompFns[i], []value.Value{v})
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
		proto := ar.Proto.(*compiler.FnProto)
		return vm.runFrame(proto, f.Captured, args)
	default:
		return value.Nil, errors.New(errors.InternalError, errors.PhaseEval, errors.Pos{}, "unknown fn kind")
	}
}

// pickArity selects the arity matching n actual arguments, identical to
// treewalk's pickArity (duplicated rather than shared: the two packages
// must not import each other, and value.Arity has no behavior of its own).
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

func (vm *VM) callMultiFn(fn value.Value, args []value.Value) (value.Value, error) {
	m := value.MultiFnPayload(fn)
	dv, err := vm.call(m.DispatchFn, args)
	if err != nil {
		return value.Nil, err
	}
	for i, k := range m.Keys {
		if value.Equal(k, dv) || vm.Registry.Hierarchy.IsA(dv, k) {
			return vm.call(m.Methods[i], args)
		}
	}
	if !value.IsNil(m.Default) {
		return vm.call(m.Default, args)
	}
	return value.Nil, errors.New(errors.TypeError, errors.PhaseEval, errors.Pos{}, "no method in multimethod %s for dispatch value %s", m.Name, value.PrStr(dv))
}

func (vm *VM) callProtocolFn(fn value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Nil, errors.New(errors.ArityError, errors.PhaseEval, errors.Pos{}, "protocol function requires at least one argument")
	}
	impl, ok := value.ProtocolFnLookup(fn, args[0].Tag)
	if !ok {
		return value.Nil, errors.New(errors.TypeError, errors.PhaseEval, errors.Pos{}, "no protocol implementation for type %s", args[0].Tag)
	}
	return vm.call(impl, args)
}
