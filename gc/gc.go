// Package gc implements the copying (semispace-style) collector described
// here: mark by BFS with an explicit work queue (never the call
// stack, so deep structures cannot overflow it), relocate live objects into
// a fresh generation while building a forwarding table, then fix up every
// root and interior pointer and drop the old generation.
//
// Since Go does not let a program relocate its own pointers, the collector
// is built on one level of indirection: every heap value is reached through
// a stable *Box. Collecting an object means allocating a new Box, copying
// the (child-pointer-rewritten) payload into it, and recording
// old.forward = new. A Box whose payload has been copied away keeps only
// its forward pointer; nothing outside the collector ever reads a
// forwarded Box's stale payload again once fixup has run, which is what
// "release the old arena" amounts to under Go's own memory model: the old
// payloads become unreachable and the runtime reclaims them in bulk.
package gc

// Tracer is implemented by every heap payload type (one per GC-tracked
// Value variant: string, symbol, keyword, list, vector, map, set, fn,
// multi-fn, protocol, protocol-fn, atom, delay, volatile, reduced, promise,
// transient, lazy-seq). There is no wildcard/default case anywhere a Tracer
// is dispatched — adding a new variant without wiring Trace/Relocate is a
// compile error at the call site that constructs the Value, by design.
type Tracer interface {
	// Trace calls visit on every *Box this payload directly references,
	// for the mark phase's BFS work queue.
	Trace(visit func(*Box))
	// Relocate returns a copy of this payload with every child *Box
	// replaced by rewrite(child). Called once per live object, after every
	// reachable object already has a forwarding Box allocated, so rewrite
	// never needs to allocate.
	Relocate(rewrite func(*Box) *Box) Tracer
}

// Box is the one indirection every heap-tracked Value goes through.
// Box itself never moves (it is a normal Go pointer); what "moves" is the
// payload, via forwarding to a new Box.
type Box struct {
	forward *Box
	payload Tracer
	marked  bool
	size    int64
}

// Payload returns the live payload, following the forwarding chain if this
// Box was relocated out from under a stale reference (defensive: by the
// time user code runs again after a collection, every reachable Box has
// already been fixed up, so this is normally a direct hit).
func (b *Box) Payload() Tracer {
	for b.forward != nil {
		b = b.forward
	}
	return b.payload
}

// RootPtr is a pointer to a field holding a *Box: a Var's root, a dynamic
// binding frame entry, a slot in a Value-stack, a captured closure slot.
// The collector mutates *RootPtr in place during fixup.
type RootPtr = **Box

// Heap owns only the
// GC-tracked generation. Infrastructure objects (namespaces, vars, FnProto)
// are never allocated here.
type Heap struct {
	bytes     int64
	threshold int64
	gen       int
}

// NewHeap creates a heap that recommends a collection once at least
// thresholdBytes have been allocated since the last one.
func NewHeap(thresholdBytes int64) *Heap {
	if thresholdBytes <= 0 {
		thresholdBytes = 1 << 20
	}
	return &Heap{threshold: thresholdBytes}
}

// Alloc creates a new Box holding payload, charging size bytes against the
// collection trigger.
func (h *Heap) Alloc(payload Tracer, size int64) *Box {
	h.bytes += size
	return &Box{payload: payload, size: size}
}

// ShouldCollect reports whether the heap has crossed its trigger threshold.
// Callers check this only at documented safe points (expression
// boundaries, recur safe points).
func (h *Heap) ShouldCollect() bool { return h.bytes >= h.threshold }

// Generation returns the number of collections run so far, for diagnostics.
func (h *Heap) Generation() int { return h.gen }

// Collect runs one full mark/relocate/fixup/release cycle. roots is every
// root pointer in the system: every var's root across every namespace,
// every dynamic-binding-frame entry, the global hierarchy cell, the tap
// list, and every live Value-stack slot in every active call frame (tree
// walker and VM alike). Collect mutates every *root in place to point at
// the relocated Box and returns once the old generation is fully
// unreachable.
func (h *Heap) Collect(roots []RootPtr) {
	// Phase 1: mark. BFS over an explicit queue so a deeply right-nested
	// cons chain or mutually-self-referential closure (e.g. `(fn foo []
	// foo)`) cannot blow the Go call stack, and so that re-marking an
	// already-marked Box is a no-op that terminates the cycle.
	queue := make([]*Box, 0, len(roots))
	for _, r := range roots {
		if r == nil {
			continue
		}
		b := *r
		if b != nil {
			queue = append(queue, b)
		}
	}
	order := make([]*Box, 0, len(queue))
	for i := 0; i < len(queue); i++ {
		b := queue[i]
		if b == nil || b.marked {
			continue
		}
		b.marked = true
		order = append(order, b)
		if b.payload != nil {
			b.payload.Trace(func(child *Box) {
				if child != nil && !child.marked {
					queue = append(queue, child)
				}
			})
		}
	}

	// Phase 2: relocate + forward. First allocate a forwarding Box for
	// every live object (so any interior pointer found in phase 2b already
	// has somewhere to point), then copy payloads across, rewriting every
	// child pointer to its forward.
	for _, old := range order {
		old.forward = &Box{size: old.size}
	}
	rewrite := func(c *Box) *Box {
		if c == nil {
			return nil
		}
		return c.forward
	}
	for _, old := range order {
		if old.payload != nil {
			old.forward.payload = old.payload.Relocate(rewrite)
		}
		old.marked = false // reset for next cycle; old Box is now garbage
		old.payload = nil  // drop the old arena's contents
	}

	// Phase 3: fixup. Walk the same root set again, replacing every root
	// pointer with its forwarded Box. Interior pointers were already fixed
	// up in phase 2 as part of Relocate.
	for _, r := range roots {
		if r == nil || *r == nil {
			continue
		}
		*r = (*r).forward
	}

	// Phase 4: release. There is nothing left referencing the old
	// generation's payloads (every Box above had payload set to nil, and
	// every live root/interior pointer now points at a forward). The
	// runtime reclaims them in bulk.
	h.bytes = 0
	h.gen++
}
