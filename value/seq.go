package value

import "github.com/emberlang/ember/gc"

// Applier lets this package force lazy sequences and call user/multimethod
// functions without importing the evaluator (which itself depends on
// value), breaking what would otherwise be a cycle. treewalk and vm each
// supply their own Applier backed by their respective call mechanism, and
// corelib's seq builtins are built against this same signature so both
// back ends see identical seq semantics.
type Applier func(fn Value, args []Value) (Value, error)

// IsSeqable reports whether v participates in the generic sequence
// operations (first/rest/cons/count/conj).
func IsSeqable(v Value) bool {
	switch v.Tag {
	case TagNil, TagList, TagVector, TagMap, TagSet, TagLazySeq, TagString:
		return true
	default:
		return false
	}
}

// Seq normalizes any seqable value into list/lazy-seq form ("the sequence
// view"), returning EmptyList() for nil and empty collections. Maps yield a
// sequence of 2-element vectors [k v]; sets and vectors yield their items
// in order; strings yield a sequence of single characters.
func Seq(h *gc.Heap, v Value) Value {
	switch v.Tag {
	case TagNil:
		return EmptyList()
	case TagList:
		return v
	case TagVector:
		return ListFromSlice(h, VectorItems(v))
	case TagSet:
		return ListFromSlice(h, SetItems(v))
	case TagMap:
		entries := MapEntries(v)
		items := make([]Value, len(entries))
		for i, e := range entries {
			items[i] = NewVector(h, []Value{e.Key, e.Val})
		}
		return ListFromSlice(h, items)
	case TagString:
		s := StringVal(v)
		items := make([]Value, 0, len(s))
		for _, r := range s {
			items = append(items, Char(r))
		}
		return ListFromSlice(h, items)
	case TagLazySeq:
		return v
	default:
		return EmptyList()
	}
}

// First/Rest/Empty over a realized (non-lazy) seqable value. Callers that
// might hold a lazy-seq must call ForceFirstRest instead, since realizing a
// lazy-seq can invoke user code.
func First(h *gc.Heap, v Value) Value {
	s := Seq(h, v)
	if IsEmptyList(s) {
		return Nil
	}
	return ListHead(s)
}

func Rest(h *gc.Heap, v Value) Value {
	s := Seq(h, v)
	if IsEmptyList(s) {
		return EmptyList()
	}
	return ListTail(s)
}

func IsEmpty(h *gc.Heap, v Value) bool {
	if v.Tag == TagLazySeq {
		return false // caller must Force to know; treated as non-empty conservatively
	}
	return IsEmptyList(Seq(h, v))
}

// Count returns the element count of any eagerly-realized collection.
// Lazy sequences must be fully realized by the caller (e.g. via `doall`)
// before Count is meaningful; Count on an un-forced lazy-seq returns -1.
func Count(v Value) int {
	switch v.Tag {
	case TagNil:
		return 0
	case TagList:
		return ListCount(v)
	case TagVector:
		return VectorCount(v)
	case TagMap:
		return len(MapEntries(v))
	case TagSet:
		return len(SetItems(v))
	case TagString:
		return len([]rune(StringVal(v)))
	case TagLazySeq:
		return -1
	default:
		return 0
	}
}

// Conj adds an item the idiomatic way for each collection kind: prepend
// for list, append for vector, add for set/map (map requires item to be a
// 2-element [k v] vector).
func Conj(h *gc.Heap, coll Value, item Value) Value {
	switch coll.Tag {
	case TagNil:
		return NewList(h, item, EmptyList())
	case TagList:
		return NewList(h, item, coll)
	case TagVector:
		return VectorConj(h, coll, item)
	case TagSet:
		return SetConj(h, coll, item)
	case TagMap:
		kv := VectorItems(item)
		return MapAssoc(h, coll, kv[0], kv[1])
	default:
		return coll
	}
}

// Nth implements index access across list/vector/string, following the
// destructuring note that sequential destructuring is "nth-style".
func Nth(h *gc.Heap, v Value, n int) (Value, bool) {
	switch v.Tag {
	case TagVector:
		items := VectorItems(v)
		if n < 0 || n >= len(items) {
			return Nil, false
		}
		return items[n], true
	case TagList:
		cur := v
		for i := 0; i < n && cur.Box != nil; i++ {
			cur = ListTail(cur)
		}
		if cur.Box == nil {
			return Nil, false
		}
		return ListHead(cur), true
	case TagString:
		r := []rune(StringVal(v))
		if n < 0 || n >= len(r) {
			return Nil, false
		}
		return Char(r[n]), true
	default:
		return Nil, false
	}
}

// Get implements associative access: map lookup by key, set membership
// test (returns the item itself or nil), or vector/list index-as-key.
func Get(h *gc.Heap, coll Value, key Value) (Value, bool) {
	switch coll.Tag {
	case TagMap:
		return MapFind(coll, key)
	case TagSet:
		if SetContains(coll, key) {
			return key, true
		}
		return Nil, false
	case TagVector, TagList:
		if key.Tag != TagInt {
			return Nil, false
		}
		return Nth(h, coll, int(key.I))
	default:
		return Nil, false
	}
}

// Assoc implements associative update: map key/val, vector index/val (must
// be an existing or one-past-end index), or promotion of nil to a map.
func Assoc(h *gc.Heap, coll Value, key, val Value) Value {
	switch coll.Tag {
	case TagNil:
		return NewMap(h, []MapEntry{{Key: key, Val: val}})
	case TagMap:
		return MapAssoc(h, coll, key, val)
	case TagVector:
		idx := int(key.I)
		if idx == VectorCount(coll) {
			return VectorConj(h, coll, val)
		}
		return VectorAssoc(h, coll, idx, val)
	default:
		return coll
	}
}

// ToSlice eagerly realizes any non-lazy seqable value into a slice, in
// traversal order.
func ToSlice(h *gc.Heap, v Value) []Value {
	s := Seq(h, v)
	return ListToSlice(s)
}
