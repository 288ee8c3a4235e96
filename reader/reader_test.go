package reader_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/reader"
	"github.com/emberlang/ember/value"
)

func newReader(t *testing.T, src string) *reader.Reader {
	t.Helper()
	heap := gc.NewHeap(0)
	interner := value.NewInterner()
	gen := 0
	return reader.New(src, "test.ember", heap, interner, &gen)
}

func TestReadAtoms(t *testing.T) {
	r := newReader(t, `nil true false 42 -7 3.14 "hi\n" \a \newline :kw :ns/kw sym ns/sym`)
	forms, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, forms, 13)
	require.True(t, value.IsNil(forms[0]))
	require.Equal(t, value.True, forms[1])
	require.Equal(t, value.False, forms[2])
	require.Equal(t, int64(42), forms[3].I)
	require.Equal(t, int64(-7), forms[4].I)
	require.InDelta(t, 3.14, forms[5].F, 1e-9)
	require.Equal(t, "hi\n", value.StringVal(forms[6]))
	require.Equal(t, int64('a'), forms[7].I)
	require.Equal(t, int64('\n'), forms[8].I)
}

func TestReadCollectionsAndPositions(t *testing.T) {
	r := newReader(t, "(+ 1 2)\n[1 2 3]\n{:a 1}\n#{1 2}")
	forms, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, forms, 4)
	require.Equal(t, value.TagList, forms[0].Tag)
	require.Equal(t, 3, value.ListCount(forms[0]))
	pos, ok := r.PosOf(forms[0])
	require.True(t, ok)
	require.Equal(t, 1, pos.Line)

	require.Equal(t, value.TagVector, forms[1].Tag)
	pos2, ok := r.PosOf(forms[1])
	require.True(t, ok)
	require.Equal(t, 2, pos2.Line)

	require.Equal(t, value.TagMap, forms[2].Tag)
	require.Equal(t, value.TagSet, forms[3].Tag)
}

func TestQuotingTransforms(t *testing.T) {
	r := newReader(t, "'x `x ~x ~@x @x ^:foo x")
	forms, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, forms, 6)

	head := value.ListHead(forms[0])
	ns, name := value.SymbolParts(head)
	require.Equal(t, "", ns)
	require.Equal(t, "quote", name)
}

func TestOddMapLiteralError(t *testing.T) {
	r := newReader(t, "{:a}")
	_, err := r.ReadAll()
	require.Error(t, err)
}

func TestUnmatchedDelimiterError(t *testing.T) {
	r := newReader(t, "(+ 1 2")
	_, err := r.ReadAll()
	require.Error(t, err)
}

func TestFnShorthandInfersArity(t *testing.T) {
	r := newReader(t, "#(+ %1 %2)")
	forms, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, forms, 1)
	items := value.ListToSlice(forms[0])
	require.Len(t, items, 3)
	params := value.VectorItems(items[1])
	require.Len(t, params, 2)
}

func TestReaderConditionalPicksDefault(t *testing.T) {
	r := newReader(t, `#?(:clj 1 :default 2)`)
	forms, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, forms, 1)
	require.Equal(t, int64(2), forms[0].I)
}

func TestReaderConditionalFallsBackToFirstClauseWithoutDefault(t *testing.T) {
	r := newReader(t, `#?(:clj 1 :cljs 2)`)
	forms, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, forms, 1)
	require.Equal(t, int64(1), forms[0].I)
}

func TestTaggedLiteralReturnsUnderlyingForm(t *testing.T) {
	r := newReader(t, `#inst "2020-01-01"`)
	forms, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, forms, 1)
	require.Equal(t, value.TagString, forms[0].Tag)
	require.Equal(t, "2020-01-01", value.StringVal(forms[0]))
}

func TestSyntaxQuoteGensymStability(t *testing.T) {
	r := newReader(t, "`(let [v# ~1] [v# v#])")
	forms, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, forms, 1)
	// The expansion is (concat ...) shaped.
	head := value.ListHead(forms[0])
	_, name := value.SymbolParts(head)
	require.Equal(t, "concat", name)

	// All three v# occurrences must expand to the same generated symbol:
	// collect every (quote <name>__auto__) in the expansion.
	var gensyms []string
	var walk func(v value.Value)
	walk = func(v value.Value) {
		if v.Tag != value.TagList {
			return
		}
		items := value.ListToSlice(v)
		if len(items) == 2 && items[0].Tag == value.TagSymbol && items[1].Tag == value.TagSymbol {
			if _, q := value.SymbolParts(items[0]); q == "quote" {
				if _, s := value.SymbolParts(items[1]); strings.HasSuffix(s, "__auto__") {
					gensyms = append(gensyms, s)
				}
			}
		}
		for _, it := range items {
			walk(it)
		}
	}
	walk(forms[0])
	require.Len(t, gensyms, 3)
	require.Equal(t, gensyms[0], gensyms[1])
	require.Equal(t, gensyms[0], gensyms[2])
}
