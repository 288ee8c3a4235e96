package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/value"
)

func TestEqualStructuralAcrossSeparateAllocations(t *testing.T) {
	h := gc.NewHeap(0)
	a := value.NewVector(h, []value.Value{value.NewString(h, "x"), value.Bool(true)})
	b := value.NewVector(h, []value.Value{value.NewString(h, "x"), value.Bool(true)})
	require.NotEqual(t, a.Box, b.Box)
	require.True(t, value.Equal(a, b))
}

func TestInternedKeywordsShareOneBoxAcrossCalls(t *testing.T) {
	h := gc.NewHeap(0)
	interner := value.NewInterner()
	a := value.NewKeyword(h, interner, "ns", "foo")
	b := value.NewKeyword(h, interner, "ns", "foo")
	// Interning guarantees pointer identity for equal keywords, backing
	// `identical?`'s decided semantics (DESIGN.md).
	require.Same(t, a.Box, b.Box)

	c := value.NewKeyword(h, interner, "ns", "bar")
	require.NotSame(t, a.Box, c.Box)
	require.False(t, value.Equal(a, c))
}

func TestInternedSymbolsShareOneBoxAcrossCalls(t *testing.T) {
	h := gc.NewHeap(0)
	interner := value.NewInterner()
	a := value.NewSymbol(h, interner, "", "x")
	b := value.NewSymbol(h, interner, "", "x")
	require.Same(t, a.Box, b.Box)
	require.True(t, value.Equal(a, b))
}

func TestNumericCrossTagEqualityIsNotStructuralEquality(t *testing.T) {
	require.False(t, value.Equal(value.Value{Tag: value.TagInt, I: 1}, value.Value{Tag: value.TagFloat, F: 1.0}))
}
