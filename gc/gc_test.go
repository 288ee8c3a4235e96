package gc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/gc"
)

// selfRefObj is a minimal Tracer whose payload can point at itself (and at
// another instance), standing in for the classic `(fn foo [] foo)`
// self-referential closure case mark's BFS queue must not stack-overflow
// on.
type selfRefObj struct {
	tag  string
	next *gc.Box
}

func (o *selfRefObj) Trace(visit func(*gc.Box)) {
	if o.next != nil {
		visit(o.next)
	}
}

func (o *selfRefObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	return &selfRefObj{tag: o.tag, next: rewrite(o.next)}
}

func TestCollectRelocatesRootAndRewritesRootPtr(t *testing.T) {
	h := gc.NewHeap(1)
	box := h.Alloc(&selfRefObj{tag: "a"}, 8)
	root := box

	h.Collect([]gc.RootPtr{&root})

	require.NotNil(t, root)
	o, ok := root.Payload().(*selfRefObj)
	require.True(t, ok)
	require.Equal(t, "a", o.tag)
}

func TestCollectHandlesSelfCycleWithoutStackOverflow(t *testing.T) {
	h := gc.NewHeap(1)
	a := h.Alloc(&selfRefObj{tag: "a"}, 8)
	b := h.Alloc(&selfRefObj{tag: "b"}, 8)
	a.Payload().(*selfRefObj).next = b
	b.Payload().(*selfRefObj).next = a // cycle: a -> b -> a

	root := a
	h.Collect([]gc.RootPtr{&root})

	first := root.Payload().(*selfRefObj)
	require.Equal(t, "a", first.tag)
	second := first.next.Payload().(*selfRefObj)
	require.Equal(t, "b", second.tag)
	require.Same(t, root, second.next) // b -> a still closes the cycle post-relocation
}

func TestCollectDropsUnreachableObjects(t *testing.T) {
	h := gc.NewHeap(1)
	reachable := h.Alloc(&selfRefObj{tag: "kept"}, 8)
	_ = h.Alloc(&selfRefObj{tag: "garbage"}, 8) // no root, no referrer

	root := reachable
	before := h.Generation()
	h.Collect([]gc.RootPtr{&root})

	require.Equal(t, before+1, h.Generation())
	require.Equal(t, "kept", root.Payload().(*selfRefObj).tag)
}

func TestShouldCollectTracksThreshold(t *testing.T) {
	h := gc.NewHeap(16)
	require.False(t, h.ShouldCollect())
	h.Alloc(&selfRefObj{}, 20)
	require.True(t, h.ShouldCollect())
}
