package value

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Equal implements structural equality: two values
// are equal iff they share a tag and their contents are equal pairwise,
// recursively for collections. Numeric cross-tag equality (int vs float)
// is intentionally NOT handled here — that is a separate concern from
// generic equality; use NumericEqual for that.
func Equal(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagNil:
		return true
	case TagBool, TagInt, TagChar:
		return a.I == b.I
	case TagFloat:
		return a.F == b.F
	case TagString:
		return StringVal(a) == StringVal(b)
	case TagSymbol:
		ans, an := SymbolParts(a)
		bns, bn := SymbolParts(b)
		return ans == bns && an == bn
	case TagKeyword:
		ans, an := KeywordParts(a)
		bns, bn := KeywordParts(b)
		return ans == bns && an == bn
	case TagList:
		return equalSeq(ListToSlice(a), ListToSlice(b))
	case TagVector:
		return equalSeq(VectorItems(a), VectorItems(b))
	case TagMap:
		ae, be := MapEntries(a), MapEntries(b)
		if len(ae) != len(be) {
			return false
		}
		for _, e := range ae {
			bv, ok := MapFind(b, e.Key)
			if !ok || !Equal(e.Val, bv) {
				return false
			}
		}
		return true
	case TagSet:
		ai, bi := SetItems(a), SetItems(b)
		if len(ai) != len(bi) {
			return false
		}
		for _, it := range ai {
			if !SetContains(b, it) {
				return false
			}
		}
		return true
	default:
		// Reference-typed values (fn, atom, delay, volatile, reduced,
		// promise, transient, lazy-seq, multi-fn, protocol, protocol-fn,
		// var-ref, fn-proto) compare by identity: reference-typed wrappers
		// may differ by identity only.
		if a.Box != nil && b.Box != nil {
			return a.Box.Payload() == b.Box.Payload()
		}
		return a.Box == b.Box && a.Ptr == b.Ptr
	}
}

func equalSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Identical implements `identical?`. For interned symbols/keywords (see
// DESIGN.md's Open Questions) this is guaranteed pointer identity; for
// every other heap tag it is also pointer identity; immediates compare by
// value since Ember has no notion of boxed-immediate identity.
func Identical(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagNil:
		return true
	case TagBool, TagInt, TagChar:
		return a.I == b.I
	case TagFloat:
		return a.F == b.F
	default:
		if a.Box != nil || b.Box != nil {
			return a.Box == b.Box
		}
		return a.Ptr == b.Ptr
	}
}

// NumericEqual compares ints and floats across tags, used by `==`-style
// numeric comparison builtins distinct from generic `=`.
func NumericEqual(a, b Value) bool {
	if !IsNumeric(a) || !IsNumeric(b) {
		return Equal(a, b)
	}
	if a.Tag == TagInt && b.Tag == TagInt {
		return a.I == b.I
	}
	return AsFloat(a) == AsFloat(b)
}

// Hash computes a structural hash consistent with Equal: Equal(a,b) implies
// Hash(a) == Hash(b). It backs the swiss-table index used by Map and Set.
func Hash(v Value) uint64 {
	h := fnv.New64a()
	hashInto(h, v)
	return h.Sum64()
}

func hashInto(h interface{ Write([]byte) (int, error) }, v Value) {
	writeByte := func(b byte) { h.Write([]byte{b}) }
	writeByte(byte(v.Tag))
	switch v.Tag {
	case TagNil:
	case TagBool, TagInt, TagChar:
		writeInt64(h, v.I)
	case TagFloat:
		// The raw bits are hashed after the tag byte, so 1.0 and 1 land in
		// different buckets, matching Equal, which keeps tags distinct.
		bits := math.Float64bits(v.F)
		writeInt64(h, int64(bits))
	case TagString:
		h.Write([]byte(StringVal(v)))
	case TagSymbol:
		ns, name := SymbolParts(v)
		h.Write([]byte(ns))
		h.Write([]byte{0})
		h.Write([]byte(name))
	case TagKeyword:
		ns, name := KeywordParts(v)
		h.Write([]byte(ns))
		h.Write([]byte{0})
		h.Write([]byte(name))
	case TagList:
		for _, it := range ListToSlice(v) {
			hashInto(h, it)
		}
	case TagVector:
		for _, it := range VectorItems(v) {
			hashInto(h, it)
		}
	case TagMap:
		// Order-independent: XOR per-entry hashes together.
		var acc uint64
		for _, e := range MapEntries(v) {
			acc ^= Hash(e.Key)*31 + Hash(e.Val)
		}
		writeInt64(h, int64(acc))
	case TagSet:
		var acc uint64
		for _, it := range SetItems(v) {
			acc ^= Hash(it)
		}
		writeInt64(h, int64(acc))
	default:
		if v.Box != nil {
			h.Write([]byte(fmt.Sprintf("%p", v.Box)))
		} else {
			writeInt64(h, 0)
		}
	}
}

func writeInt64(h interface{ Write([]byte) (int, error) }, i int64) {
	var buf [8]byte
	u := uint64(i)
	for j := 0; j < 8; j++ {
		buf[j] = byte(u >> (8 * j))
	}
	h.Write(buf[:])
}
