package env

import (
	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/value"
)

// Hierarchy implements the global ad-hoc type hierarchy consulted by
// `derive`/`isa?`. It is stored as a single Value (a map from child keyword
// to the set of its direct parents) behind one field, so the GC can treat
// &Hierarchy.Root.Box as an ordinary root pointer and write back the
// relocated address after a collection.
type Hierarchy struct {
	Root value.Value // TagMap: child -> TagSet of direct parents
}

func NewHierarchy(h *gc.Heap) *Hierarchy { return &Hierarchy{Root: value.NewMap(h, nil)} }

// Derive records parent as a direct ancestor of child.
func (h *Hierarchy) Derive(heap *gc.Heap, child, parent value.Value) {
	parents, ok := value.MapFind(h.Root, child)
	if !ok {
		parents = value.NewSet(heap, nil)
	}
	parents = value.SetConj(heap, parents, parent)
	h.Root = value.MapAssoc(heap, h.Root, child, parents)
}

// Parents returns the direct parents recorded for child.
func (h *Hierarchy) Parents(child value.Value) []value.Value {
	parents, ok := value.MapFind(h.Root, child)
	if !ok {
		return nil
	}
	return value.SetItems(parents)
}

// IsA reports whether child is, directly or transitively, derived from
// ancestor, or is itself equal to ancestor.
func (h *Hierarchy) IsA(child, ancestor value.Value) bool {
	if value.Equal(child, ancestor) {
		return true
	}
	var seen []value.Value
	seenHas := func(v value.Value) bool {
		for _, s := range seen {
			if value.Equal(s, v) {
				return true
			}
		}
		return false
	}
	var walk func(value.Value) bool
	walk = func(c value.Value) bool {
		for _, p := range h.Parents(c) {
			if value.Equal(p, ancestor) {
				return true
			}
			if !seenHas(p) {
				seen = append(seen, p)
				if walk(p) {
					return true
				}
			}
		}
		return false
	}
	return walk(child)
}
