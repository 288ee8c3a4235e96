package interp

import (
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/emberlang/ember/value"
)

// CompareResult is EvalCompare's verdict: both back ends' final values,
// and Diff (empty when they agree).
type CompareResult struct {
	Treewalk value.Value
	VM       value.Value
	Diff     string
}

// Agree reports whether both back ends produced the same result.
func (r CompareResult) Agree() bool { return r.Diff == "" }

// EvalCompare reads and analyzes source once, then evaluates the resulting
// Nodes through both back ends against the same namespace and diffs their
// final values with go-cmp — directly implementing the "primary way
// compiler/VM-contract drift is caught" (SPEC_FULL §9). Because both runs
// share one mutable registry and heap, any def or other side effect in
// source happens twice (once per back end); that is the documented cost of
// comparing two execution engines against shared global state, not a bug.
func (it *Interpreter) EvalCompare(source, ns string) (CompareResult, error) {
	twResult, err := it.evalOn(source, ns, Treewalk)
	if err != nil {
		return CompareResult{}, fmt.Errorf("treewalk: %w", err)
	}
	vmResult, err := it.evalOn(source, ns, VM)
	if err != nil {
		return CompareResult{}, fmt.Errorf("vm: %w", err)
	}
	diff := cmp.Diff(twResult, vmResult, cmp.Comparer(valuesEqual))
	return CompareResult{Treewalk: twResult, VM: vmResult, Diff: diff}, nil
}

// valuesEqual lets go-cmp treat value.Value as a leaf compared by Ember's
// own equality, rather than descending into *gc.Box's unexported internal
// fields (forward pointer, mark bit, size) that cmp would otherwise panic
// on.
func valuesEqual(a, b value.Value) bool { return value.Equal(a, b) }
