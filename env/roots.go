package env

import (
	"golang.org/x/exp/maps"

	"github.com/emberlang/ember/gc"
)

// CollectRoots returns a GC root pointer into every live Value the heap
// must trace from outside itself: every namespace's interned vars, the
// global type hierarchy, every active dynamic-binding-frame entry, and
// every registered add-tap callback. Called once per collection, right
// before gc.Heap.Collect.
func (r *Registry) CollectRoots() []gc.RootPtr {
	var out []gc.RootPtr
	for _, ns := range maps.Values(r.namespaces) {
		for _, v := range ns.Vars() {
			out = append(out, &v.Root.Box)
		}
	}
	out = append(out, &r.Hierarchy.Root.Box)
	out = append(out, r.Bindings.RootPtrs()...)
	for i := range r.Taps {
		out = append(out, &r.Taps[i].Box)
	}
	return out
}
