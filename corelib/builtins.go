// Package corelib registers the built-in function table every Ember
// program sees in the core namespace, plus a small bootstrap source file
// (written in Ember itself) defining the macros built on top of those
// built-ins — natively implemented primitives below, library code layered
// on top in the language itself.
package corelib

import (
	"fmt"
	"strings"

	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/errors"
	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/value"
)

// CoreNamespace is the name every namespace implicitly refers.
const CoreNamespace = "ember.core"

func argErr(name string, got int, want string) error {
	return errors.New(errors.ArityError, errors.PhaseEval, errors.Pos{}, "%s expects %s argument(s), got %d", name, want, got)
}

func typeErr(name string, v value.Value) error {
	return errors.New(errors.TypeError, errors.PhaseEval, errors.Pos{}, "%s: unexpected argument of type %s", name, v.Tag)
}

// realize fully drains a seqable value, forcing any lazy-seq links as it
// goes, into an ordinary slice. Builtins that need every element at once
// (count, vec, drop, reduce, nthrest, cycle's source) go through
// this instead of value.ToSlice, which does not force TagLazySeq.
func realize(h *gc.Heap, apply value.Applier, v value.Value) ([]value.Value, error) {
	if v.Tag != value.TagLazySeq {
		return value.ToSlice(h, v), nil
	}
	var out []value.Value
	cur := v
	for {
		hd, tl, empty, err := value.Force(h, apply, cur)
		if err != nil {
			return nil, err
		}
		if empty {
			return out, nil
		}
		out = append(out, hd)
		cur = tl
	}
}

// Build registers every native built-in function into the core namespace
// of registry, interning keywords/symbols through interner and allocating
// through heap. apply lets seq-consuming builtins (map/filter/reduce/...)
// invoke arbitrary Ember callables without this package depending on
// either back end. Most callers want Install, which also layers the
// macro-defined standard library on top.
func Build(registry *env.Registry, heap *gc.Heap, interner *value.Interner, apply value.Applier) {
	ns := registry.FindOrCreate(CoreNamespace)
	def := func(name string, fn value.BuiltinFunc) {
		ns.Intern(name).Root = value.NewBuiltinFn(heap, name, fn)
	}

	installArithmetic(def)
	installComparison(def)
	installCollections(def, heap, apply)
	installSeqOps(def, heap, apply)
	installMutableCells(def, heap, apply)
	installMultimethodHelpers(def, heap, apply, registry)
	installPrinting(def, heap)
	installPredicates(def)
	installMisc(def, heap, interner, registry)
}

func installArithmetic(def func(string, value.BuiltinFunc)) {
	numFold := func(name string, identity int64, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) value.BuiltinFunc {
		return func(h *gc.Heap, args []value.Value) (value.Value, error) {
			if len(args) == 0 {
				return value.Int(identity), nil
			}
			allInt := true
			for _, a := range args {
				if a.Tag != value.TagInt {
					allInt = false
				}
				if !value.IsNumeric(a) {
					return value.Nil, typeErr(name, a)
				}
			}
			if allInt {
				acc := args[0].I
				for _, a := range args[1:] {
					acc = intOp(acc, a.I)
				}
				return value.Int(acc), nil
			}
			acc := value.AsFloat(args[0])
			for _, a := range args[1:] {
				acc = floatOp(acc, value.AsFloat(a))
			}
			return value.Float(acc), nil
		}
	}
	def("+", numFold("+", 0, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }))
	def("*", numFold("*", 1, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }))
	def("-", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Nil, argErr("-", 0, "at least 1")
		}
		if len(args) == 1 {
			if args[0].Tag == value.TagInt {
				return value.Int(-args[0].I), nil
			}
			return value.Float(-value.AsFloat(args[0])), nil
		}
		return numFold("-", 0, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })(h, args)
	})
	def("/", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Nil, argErr("/", 0, "at least 1")
		}
		if len(args) == 1 {
			args = []value.Value{value.Int(1), args[0]}
		}
		acc := value.AsFloat(args[0])
		allInt := args[0].Tag == value.TagInt
		for _, a := range args[1:] {
			if value.AsFloat(a) == 0 {
				return value.Nil, errors.New(errors.DivisionByZero, errors.PhaseEval, errors.Pos{}, "division by zero")
			}
			if a.Tag != value.TagInt {
				allInt = false
			}
			acc /= value.AsFloat(a)
		}
		if allInt && acc == float64(int64(acc)) {
			return value.Int(int64(acc)), nil
		}
		return value.Float(acc), nil
	})
	def("mod", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, argErr("mod", len(args), "2")
		}
		if args[1].I == 0 {
			return value.Nil, errors.New(errors.DivisionByZero, errors.PhaseEval, errors.Pos{}, "division by zero")
		}
		m := args[0].I % args[1].I
		if (m < 0) != (args[1].I < 0) && m != 0 {
			m += args[1].I
		}
		return value.Int(m), nil
	})
	def("quot", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, argErr("quot", len(args), "2")
		}
		if args[1].I == 0 {
			return value.Nil, errors.New(errors.DivisionByZero, errors.PhaseEval, errors.Pos{}, "division by zero")
		}
		return value.Int(args[0].I / args[1].I), nil
	})
	def("inc", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.Int(args[0].I + 1), nil })
	def("dec", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.Int(args[0].I - 1), nil })
}

func installComparison(def func(string, value.BuiltinFunc)) {
	chain := func(name string, intCmp func(a, b int64) bool, floatCmp func(a, b float64) bool) value.BuiltinFunc {
		return func(h *gc.Heap, args []value.Value) (value.Value, error) {
			for i := 0; i+1 < len(args); i++ {
				if !value.IsNumeric(args[i]) || !value.IsNumeric(args[i+1]) {
					return value.Nil, typeErr(name, args[i])
				}
				if args[i].Tag == value.TagInt && args[i+1].Tag == value.TagInt {
					if !intCmp(args[i].I, args[i+1].I) {
						return value.False, nil
					}
					continue
				}
				if !floatCmp(value.AsFloat(args[i]), value.AsFloat(args[i+1])) {
					return value.False, nil
				}
			}
			return value.True, nil
		}
	}
	def("<", chain("<", func(a, b int64) bool { return a < b }, func(a, b float64) bool { return a < b }))
	def("<=", chain("<=", func(a, b int64) bool { return a <= b }, func(a, b float64) bool { return a <= b }))
	def(">", chain(">", func(a, b int64) bool { return a > b }, func(a, b float64) bool { return a > b }))
	def(">=", chain(">=", func(a, b int64) bool { return a >= b }, func(a, b float64) bool { return a >= b }))
	def("==", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		for i := 0; i+1 < len(args); i++ {
			if !value.NumericEqual(args[i], args[i+1]) {
				return value.False, nil
			}
		}
		return value.True, nil
	})
	def("=", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		for i := 0; i+1 < len(args); i++ {
			if !value.Equal(args[i], args[i+1]) {
				return value.False, nil
			}
		}
		return value.True, nil
	})
	def("identical?", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, argErr("identical?", len(args), "2")
		}
		return value.Bool(value.Identical(args[0], args[1])), nil
	})
	def("not", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.Bool(!value.Truthy(args[0])), nil })
}

func installCollections(def func(string, value.BuiltinFunc), _ *gc.Heap, apply value.Applier) {
	def("list", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.ListFromSlice(h, args), nil })
	def("vector", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.NewVector(h, args), nil })
	def("hash-map", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args)%2 != 0 {
			return value.Nil, errors.New(errors.OddMapLiteral, errors.PhaseEval, errors.Pos{}, "hash-map requires an even number of arguments")
		}
		entries := make([]value.MapEntry, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			entries = append(entries, value.MapEntry{Key: args[i], Val: args[i+1]})
		}
		return value.NewMap(h, entries), nil
	})
	def("hash-set", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.NewSet(h, args), nil })
	def("vec", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, argErr("vec", len(args), "1")
		}
		items, err := realize(h, apply, args[0])
		if err != nil {
			return value.Nil, err
		}
		return value.NewVector(h, items), nil
	})
	def("count", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if args[0].Tag == value.TagLazySeq {
			items, err := realize(h, apply, args[0])
			if err != nil {
				return value.Nil, err
			}
			return value.Int(int64(len(items))), nil
		}
		return value.Int(int64(value.Count(args[0]))), nil
	})
	def("conj", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.EmptyList(), nil
		}
		coll := args[0]
		for _, item := range args[1:] {
			coll = value.Conj(h, coll, item)
		}
		return coll, nil
	})
	def("assoc", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) < 3 || len(args)%2 != 1 {
			return value.Nil, argErr("assoc", len(args), "odd, >= 3")
		}
		coll := args[0]
		for i := 1; i < len(args); i += 2 {
			coll = value.Assoc(h, coll, args[i], args[i+1])
		}
		return coll, nil
	})
	def("dissoc", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		coll := args[0]
		for _, k := range args[1:] {
			coll = value.MapDissoc(h, coll, k)
		}
		return coll, nil
	})
	def("get", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return value.Nil, argErr("get", len(args), "2 or 3")
		}
		v, ok := value.Get(h, args[0], args[1])
		if !ok {
			if len(args) == 3 {
				return args[2], nil
			}
			return value.Nil, nil
		}
		return v, nil
	})
	def("contains?", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		switch args[0].Tag {
		case value.TagSet:
			return value.Bool(value.SetContains(args[0], args[1])), nil
		case value.TagMap:
			_, ok := value.MapFind(args[0], args[1])
			return value.Bool(ok), nil
		case value.TagVector:
			return value.Bool(args[1].Tag == value.TagInt && args[1].I >= 0 && int(args[1].I) < value.VectorCount(args[0])), nil
		default:
			return value.False, nil
		}
	})
	def("first", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if args[0].Tag == value.TagLazySeq {
			hd, _, empty, err := value.Force(h, apply, args[0])
			if err != nil || empty {
				return value.Nil, err
			}
			return hd, nil
		}
		return value.First(h, args[0]), nil
	})
	def("rest", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if args[0].Tag == value.TagLazySeq {
			_, tl, empty, err := value.Force(h, apply, args[0])
			if err != nil {
				return value.Nil, err
			}
			if empty {
				return value.EmptyList(), nil
			}
			return tl, nil
		}
		return value.Rest(h, args[0]), nil
	})
	def("nth", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		n := int(args[1].I)
		v, ok := value.Nth(h, args[0], n)
		if !ok {
			if len(args) == 3 {
				return args[2], nil
			}
			return value.Nil, errors.New(errors.IndexOutOfBounds, errors.PhaseEval, errors.Pos{}, "index %d out of bounds", n)
		}
		return v, nil
	})
	def("nthrest", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		items, err := realize(h, apply, args[0])
		if err != nil {
			return value.Nil, err
		}
		n := int(args[1].I)
		if n > len(items) {
			n = len(items)
		}
		return value.ListFromSlice(h, items[n:]), nil
	})
	def("cons", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		return value.NewList(h, args[0], value.Seq(h, args[1])), nil
	})
	def("empty?", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.Bool(value.IsEmpty(h, args[0])), nil })
	def("keys", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		entries := value.MapEntries(args[0])
		out := make([]value.Value, len(entries))
		for i, e := range entries {
			out[i] = e.Key
		}
		return value.ListFromSlice(h, out), nil
	})
	def("vals", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		entries := value.MapEntries(args[0])
		out := make([]value.Value, len(entries))
		for i, e := range entries {
			out[i] = e.Val
		}
		return value.ListFromSlice(h, out), nil
	})
}

func installSeqOps(def func(string, value.BuiltinFunc), _ *gc.Heap, apply value.Applier) {
	def("map", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, argErr("map", len(args), "2")
		}
		return value.NewLazyTransform(h, args[1], args[0], value.TransformMap), nil
	})
	def("filter", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		return value.NewLazyTransform(h, args[1], args[0], value.TransformFilter), nil
	})
	def("mapcat", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		return value.NewLazyTransform(h, args[1], args[0], value.TransformMapcat), nil
	})
	def("take", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		n := args[0].I
		var out []value.Value
		cur := value.NewLazyConcat(h, []value.Value{args[1]})
		for int64(len(out)) < n {
			hd, tl, empty, err := value.Force(h, apply, cur)
			if err != nil {
				return value.Nil, err
			}
			if empty {
				break
			}
			out = append(out, hd)
			cur = tl
		}
		return value.ListFromSlice(h, out), nil
	})
	def("drop", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		n := int(args[0].I)
		items, err := realize(h, apply, args[1])
		if err != nil {
			return value.Nil, err
		}
		if n > len(items) {
			n = len(items)
		}
		if n < 0 {
			n = 0
		}
		return value.ListFromSlice(h, items[n:]), nil
	})
	def("range", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		var start, end, step value.Value = value.Int(0), value.Nil, value.Int(1)
		switch len(args) {
		case 0:
		case 1:
			end = args[0]
		case 2:
			start, end = args[0], args[1]
		case 3:
			start, end, step = args[0], args[1], args[2]
		default:
			return value.Nil, argErr("range", len(args), "0-3")
		}
		return value.NewLazyRange(h, start, end, step), nil
	})
	def("repeat", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.NewLazyRepeat(h, args[0]), nil })
	def("iterate", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.NewLazyIterate(h, args[0], args[1]), nil })
	def("cycle", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		items, err := realize(h, apply, args[0])
		if err != nil {
			return value.Nil, err
		}
		return value.NewLazyCycle(h, value.ListFromSlice(h, items)), nil
	})
	def("concat", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.NewLazyConcat(h, args), nil })
	def("reduce", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return value.Nil, argErr("reduce", len(args), "2 or 3")
		}
		fn := args[0]
		var acc value.Value
		var items []value.Value
		var err error
		if len(args) == 3 {
			acc = args[1]
			items, err = realize(h, apply, args[2])
		} else {
			items, err = realize(h, apply, args[1])
			if err == nil {
				if len(items) == 0 {
					return apply(fn, nil)
				}
				acc = items[0]
				items = items[1:]
			}
		}
		if err != nil {
			return value.Nil, err
		}
		for _, it := range items {
			v, err := apply(fn, []value.Value{acc, it})
			if err != nil {
				return value.Nil, err
			}
			if value.IsReduced(v) {
				return value.ReducedVal(v), nil
			}
			acc = v
		}
		return acc, nil
	})
	def("reduced", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.NewReduced(h, args[0]), nil })
}

func installMutableCells(def func(string, value.BuiltinFunc), _ *gc.Heap, apply value.Applier) {
	def("atom", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		init := value.Nil
		if len(args) > 0 {
			init = args[0]
		}
		return value.NewAtom(h, init), nil
	})
	def("deref", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		switch args[0].Tag {
		case value.TagAtom:
			return value.AtomGet(args[0]), nil
		case value.TagVolatile:
			return value.VolatileGet(args[0]), nil
		case value.TagDelay:
			d := value.DelayPayload(args[0])
			if !d.Realized {
				v, err := apply(d.Thunk, nil)
				if err != nil {
					return value.Nil, err
				}
				d.Realized = true
				d.Val = v
			}
			return d.Val, nil
		case value.TagPromise:
			return value.PromisePayload(args[0]).Val, nil
		case value.TagVarRef:
			v := args[0].Ptr.(*env.Var)
			return v.Root, nil
		default:
			return value.Nil, typeErr("deref", args[0])
		}
	})
	def("reset!", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if err := checkValidator(apply, args[0], args[1]); err != nil {
			return value.Nil, err
		}
		value.AtomSet(args[0], args[1])
		return args[1], nil
	})
	def("swap!", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return value.Nil, argErr("swap!", len(args), "at least 2")
		}
		cur := value.AtomGet(args[0])
		callArgs := append([]value.Value{cur}, args[2:]...)
		nv, err := apply(args[1], callArgs)
		if err != nil {
			return value.Nil, err
		}
		if err := checkValidator(apply, args[0], nv); err != nil {
			return value.Nil, err
		}
		value.AtomSet(args[0], nv)
		return nv, nil
	})
	def("set-validator!", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		value.AtomSetValidator(args[0], args[1])
		return value.Nil, nil
	})
	def("add-watch", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		value.AtomAddWatch(args[0], args[2])
		return args[0], nil
	})
	def("volatile!", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.NewVolatile(h, args[0]), nil })
	def("vswap!", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		cur := value.VolatileGet(args[0])
		nv, err := apply(args[1], append([]value.Value{cur}, args[2:]...))
		if err != nil {
			return value.Nil, err
		}
		value.VolatileSet(args[0], nv)
		return nv, nil
	})
	def("vreset!", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		value.VolatileSet(args[0], args[1])
		return args[1], nil
	})
	def("delay", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.NewDelay(h, args[0]), nil })
	def("force", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if args[0].Tag != value.TagDelay {
			return args[0], nil
		}
		d := value.DelayPayload(args[0])
		if !d.Realized {
			v, err := apply(d.Thunk, nil)
			if err != nil {
				return value.Nil, err
			}
			d.Realized = true
			d.Val = v
		}
		return d.Val, nil
	})
	def("promise", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.NewPromise(h), nil })
	def("deliver", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		p := value.PromisePayload(args[0])
		if !p.Delivered {
			p.Delivered = true
			p.Val = args[1]
		}
		return args[0], nil
	})
}

func checkValidator(apply value.Applier, atom, nv value.Value) error {
	validator := value.AtomValidator(atom)
	if value.IsNil(validator) {
		return nil
	}
	ok, err := apply(validator, []value.Value{nv})
	if err != nil {
		return err
	}
	if !value.Truthy(ok) {
		return errors.New(errors.AssertionError, errors.PhaseEval, errors.Pos{}, "validator rejected value")
	}
	return nil
}

func installMultimethodHelpers(def func(string, value.BuiltinFunc), _ *gc.Heap, apply value.Applier, registry *env.Registry) {
	def("partial", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Nil, argErr("partial", 0, "at least 1")
		}
		return value.NewPartialFn(h, args[0], args[1:]), nil
	})
	def("comp", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.NewCompFn(h, args), nil })
	def("apply", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return value.Nil, argErr("apply", len(args), "at least 2")
		}
		fn := args[0]
		tail, err := realize(h, apply, args[len(args)-1])
		if err != nil {
			return value.Nil, err
		}
		callArgs := append(append([]value.Value{}, args[1:len(args)-1]...), tail...)
		return apply(fn, callArgs)
	})
	def("make-multifn", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		name := "multifn"
		if args[0].Tag == value.TagSymbol {
			_, name = value.SymbolParts(args[0])
		}
		return value.NewMultiFn(h, name, args[1]), nil
	})
	def("add-method", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		v := args[0].Ptr.(*env.Var)
		v.Root = value.MultiFnAddMethod(h, v.Root, args[1], args[2])
		return v.Root, nil
	})
	def("push-bindings", func(h *gc.Heap, args []value.Value) (v value.Value, err error) {
		items := value.VectorItems(args[0])
		entries := make([]env.Binding, 0, len(items)/2)
		for i := 0; i+1 < len(items); i += 2 {
			entries = append(entries, env.Binding{Var: items[i].Ptr.(*env.Var), Val: items[i+1]})
		}
		frame := registry.Bindings.Push(entries)
		defer registry.Bindings.Pop(frame)
		return apply(args[1], nil)
	})
}

func installPrinting(def func(string, value.BuiltinFunc), heap *gc.Heap) {
	def("str", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(value.Str(a))
		}
		return value.NewString(h, sb.String()), nil
	})
	def("pr-str", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = value.PrStr(a)
		}
		return value.NewString(h, strings.Join(parts, " ")), nil
	})
	def("print", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = value.Str(a)
		}
		fmt.Print(strings.Join(parts, " "))
		return value.Nil, nil
	})
	def("println", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = value.Str(a)
		}
		fmt.Println(strings.Join(parts, " "))
		return value.Nil, nil
	})
}

func installPredicates(def func(string, value.BuiltinFunc)) {
	tagIs := func(t value.Tag) value.BuiltinFunc {
		return func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.Bool(args[0].Tag == t), nil }
	}
	def("nil?", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.Bool(value.IsNil(args[0])), nil })
	def("string?", tagIs(value.TagString))
	def("symbol?", tagIs(value.TagSymbol))
	def("keyword?", tagIs(value.TagKeyword))
	def("list?", tagIs(value.TagList))
	def("vector?", tagIs(value.TagVector))
	def("map?", tagIs(value.TagMap))
	def("set?", tagIs(value.TagSet))
	def("fn?", tagIs(value.TagFn))
	def("number?", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.Bool(value.IsNumeric(args[0])), nil })
	def("seq?", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.Bool(value.IsSeqable(args[0])), nil })
	def("true?", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.Bool(args[0].Tag == value.TagBool && args[0].I == 1), nil })
	def("false?", func(h *gc.Heap, args []value.Value) (value.Value, error) { return value.Bool(args[0].Tag == value.TagBool && args[0].I == 0), nil })
	def("zero?", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		return value.Bool(value.IsNumeric(args[0]) && value.AsFloat(args[0]) == 0), nil
	})
	def("odd?", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].Tag == value.TagInt && args[0].I%2 != 0), nil
	})
	def("even?", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].Tag == value.TagInt && args[0].I%2 == 0), nil
	})
}

func installMisc(def func(string, value.BuiltinFunc), heap *gc.Heap, interner *value.Interner, registry *env.Registry) {
	def("gensym", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		prefix := "G"
		if len(args) == 1 {
			prefix = value.StringVal(args[0])
		}
		gensymSeq++
		return value.NewSymbol(h, interner, "", fmt.Sprintf("%s__%d", prefix, gensymSeq)), nil
	})
	def("derive", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		registry.Hierarchy.Derive(h, args[0], args[1])
		return value.Nil, nil
	})
	def("isa?", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		return value.Bool(registry.Hierarchy.IsA(args[0], args[1])), nil
	})
}

var gensymSeq int
