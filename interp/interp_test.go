package interp_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/interp"
	"github.com/emberlang/ember/value"
)

func newInterp(t *testing.T, backend interp.Backend) *interp.Interpreter {
	t.Helper()
	it, err := interp.New(interp.Options{Backend: backend})
	require.NoError(t, err)
	return it
}

func TestEvalArithmeticBothBackends(t *testing.T) {
	for _, backend := range []interp.Backend{interp.Treewalk, interp.VM} {
		it := newInterp(t, backend)
		v, err := it.Eval("(+ 1 (* 2 3))", "user")
		require.NoError(t, err)
		require.Equal(t, int64(7), v.I)
	}
}

func TestEvalDefPersistsAcrossCalls(t *testing.T) {
	it := newInterp(t, interp.Treewalk)
	_, err := it.Eval("(def x 10)", "user")
	require.NoError(t, err)
	v, err := it.Eval("(+ x 5)", "user")
	require.NoError(t, err)
	require.Equal(t, int64(15), v.I)
}

func TestSetCurrentNamespaceIsolatesVars(t *testing.T) {
	it := newInterp(t, interp.Treewalk)
	_, err := it.Eval("(def x 1)", "ns-a")
	require.NoError(t, err)
	it.SetCurrentNamespace("ns-b")
	_, err = it.Eval("x", "ns-b")
	require.Error(t, err)
}

func TestRegisterBuiltinIsCallableFromEmberSource(t *testing.T) {
	it := newInterp(t, interp.Treewalk)
	it.RegisterBuiltin("user", "host-double", func(h *gc.Heap, args []value.Value) (value.Value, error) {
		return value.Int(args[0].I * 2), nil
	})
	v, err := it.Eval("(host-double 21)", "user")
	require.NoError(t, err)
	require.Equal(t, int64(42), v.I)
}

func TestEvalCapturesStdout(t *testing.T) {
	var buf bytes.Buffer
	it, err := interp.New(interp.Options{Stdout: &buf})
	require.NoError(t, err)
	_, err = it.Eval(`(println "hello")`, "user")
	require.NoError(t, err)
	require.Contains(t, buf.String(), "hello")
}

func TestEvalCompareAgreesOnThreeLevelClosureAndRecur(t *testing.T) {
	it := newInterp(t, interp.Treewalk)
	res, err := it.EvalCompare(`
		(def make-adder (fn* [a] (fn* [b] (fn* [c] (+ a (+ b c))))))
		(loop* [i 0 acc 0]
		  (if (= i 50)
		    (((make-adder acc) 1) 1)
		    (recur (+ i 1) (+ acc i))))
	`, "compare-ns")
	require.NoError(t, err)
	require.True(t, res.Agree(), "back ends disagreed: %s", res.Diff)
}

func TestEvalCompareAgreesOnMutualRecursionAndDynamicBinding(t *testing.T) {
	it := newInterp(t, interp.Treewalk)
	res, err := it.EvalCompare(`
		(def *factor* 1)
		(letfn [(even? [n] (if (= n 0) true (odd? (- n 1))))
		        (odd? [n] (if (= n 0) false (even? (- n 1))))]
		  (binding [*factor* 10]
		    (* *factor* (if (even? 20) 1 0))))
	`, "compare-ns-2")
	require.NoError(t, err)
	require.True(t, res.Agree(), "back ends disagreed: %s", res.Diff)
	require.Equal(t, int64(10), res.Treewalk.I)
	require.Equal(t, int64(10), res.VM.I)
}

func TestEvalVectorDestructuringWithRestAndAs(t *testing.T) {
	it := newInterp(t, interp.Treewalk)
	v, err := it.Eval(`
		(let* [[a b & more :as whole] [1 2 3 4]]
		  (list a b more (count whole)))
	`, "destructure-vec")
	require.NoError(t, err)
	require.Equal(t, "(1 2 (3 4) 4)", value.PrStr(v))
}

func TestEvalMapDestructuringWithKeysOrAndAs(t *testing.T) {
	it := newInterp(t, interp.Treewalk)
	v, err := it.Eval(`
		(let* [{:keys [a b] :or {b 20} :as whole} {:a 1}]
		  (list a b (get whole :a)))
	`, "destructure-map")
	require.NoError(t, err)
	require.Equal(t, "(1 20 1)", value.PrStr(v))
}

func TestEvalCompareAgreesOnDefonceReload(t *testing.T) {
	it := newInterp(t, interp.Treewalk)
	res, err := it.EvalCompare(`
		(defonce once-val 1)
		(defonce once-val 2)
		once-val
	`, "compare-ns-3")
	require.NoError(t, err)
	require.True(t, res.Agree(), "back ends disagreed: %s", res.Diff)
	require.Equal(t, int64(1), res.Treewalk.I)
}
