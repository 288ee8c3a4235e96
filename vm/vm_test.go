package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/analyzer"
	"github.com/emberlang/ember/compiler"
	"github.com/emberlang/ember/corelib"
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/reader"
	"github.com/emberlang/ember/treewalk"
	"github.com/emberlang/ember/value"
	"github.com/emberlang/ember/vm"
)

// harness wires one full stack (heap, registry, both back ends, corelib)
// the way interp.New does, without pulling in the interp package itself —
// keeping this test grounded directly on the pieces vm.VM actually needs.
type harness struct {
	t        *testing.T
	heap     *gc.Heap
	interner *value.Interner
	registry *env.Registry
	an       *analyzer.Analyzer
	machine  *vm.VM
	symGen   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	heap := gc.NewHeap(0)
	interner := value.NewInterner()
	registry := env.NewRegistry("ember.core", heap, interner)
	tw := treewalk.New(registry, heap)
	require.NoError(t, corelib.Install(registry, heap, interner, tw))
	an := analyzer.New(registry, heap, interner, tw.Apply, nil)
	return &harness{t: t, heap: heap, interner: interner, registry: registry, an: an, machine: vm.New(registry, heap)}
}

func (h *harness) run(src string) value.Value {
	h.t.Helper()
	rd := reader.New(src, "test.ember", h.heap, h.interner, &h.symGen)
	forms, err := rd.ReadAll()
	require.NoError(h.t, err)
	h.an.PosOf = rd.PosOf
	var result value.Value
	for _, form := range forms {
		node, err := h.an.Analyze(form)
		require.NoError(h.t, err)
		proto := compiler.CompileTop(node, h.an.TopLocalsCount())
		result, err = h.machine.RunTop(proto)
		require.NoError(h.t, err)
	}
	return result
}

func TestArithmeticAndLocals(t *testing.T) {
	h := newHarness(t)
	v := h.run("(let* [x 3 y 4] (+ (* x x) (* y y)))")
	require.Equal(t, value.TagInt, v.Tag)
	require.Equal(t, int64(25), v.I)
}

func TestThreeLevelClosureCapture(t *testing.T) {
	h := newHarness(t)
	v := h.run(`
		(def make-adder
		  (fn* [a] (fn* [b] (fn* [c] (+ a (+ b c))))))
		(((make-adder 1) 2) 3)
	`)
	require.Equal(t, int64(6), v.I)
}

func TestLoopRecur(t *testing.T) {
	h := newHarness(t)
	v := h.run(`
		(loop* [i 0 acc 0]
		  (if (= i 5)
		    acc
		    (recur (+ i 1) (+ acc i))))
	`)
	require.Equal(t, int64(0+1+2+3+4), v.I)
}

func TestDirectFnRecur(t *testing.T) {
	h := newHarness(t)
	v := h.run(`
		(def count-down
		  (fn* [n acc]
		    (if (= n 0) acc (recur (- n 1) (+ acc 1)))))
		(count-down 10 0)
	`)
	require.Equal(t, int64(10), v.I)
}

func TestLetfnMutualRecursion(t *testing.T) {
	h := newHarness(t)
	v := h.run(`
		(letfn [(even? [n] (if (= n 0) true (odd? (- n 1))))
		        (odd? [n] (if (= n 0) false (even? (- n 1))))]
		  (even? 10))
	`)
	require.Equal(t, value.True, v)
}

func TestDefonceSkipsReinitOnReload(t *testing.T) {
	h := newHarness(t)
	v1 := h.run(`(defonce counter-state (atom 0))`)
	require.Equal(t, value.TagVarRef, v1.Tag)
	h.run(`(swap! counter-state inc)`)
	// Re-evaluating the defonce form must not reset the atom back to 0.
	h.run(`(defonce counter-state (atom 0))`)
	v2 := h.run(`(deref counter-state)`)
	require.Equal(t, int64(1), v2.I)
}

func TestTryCatchFinallyRunsFinallyOnBothPaths(t *testing.T) {
	h := newHarness(t)
	v := h.run(`
		(def log (atom []))
		(defn record [x] (swap! log conj x) x)
		(try
		  (record :try)
		  (throw :boom)
		  (catch e (record :caught))
		  (finally (record :finally)))
		(try
		  (record :ok)
		  (catch e (record :not-reached))
		  (finally (record :finally)))
		(deref log)
	`)
	items := value.VectorItems(v)
	require.Len(t, items, 5)
	require.Equal(t, []string{"try", "caught", "finally", "ok", "finally"}, vecKeywordNames(items))
}

func TestErrorInCatchStillRunsOwnFinally(t *testing.T) {
	h := newHarness(t)
	v := h.run(`
		(def log (atom []))
		(defn record [x] (swap! log conj x) x)
		(try
		  (try
		    (throw :boom)
		    (catch e (record :caught) (throw :second))
		    (finally (record :inner-finally)))
		  (catch e2 (record :outer-caught))
		  (finally (record :outer-finally)))
		(deref log)
	`)
	items := value.VectorItems(v)
	require.Len(t, items, 4)
	require.Equal(t, []string{"caught", "inner-finally", "outer-caught", "outer-finally"}, vecKeywordNames(items))
}

func vecKeywordNames(items []value.Value) []string {
	out := make([]string, len(items))
	for i, it := range items {
		_, name := value.KeywordParts(it)
		out[i] = name
	}
	return out
}
