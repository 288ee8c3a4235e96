package value

import (
	"github.com/dolthub/swiss"
	"github.com/emberlang/ember/gc"
)

// --- string / symbol / keyword -------------------------------------------

// StringObj, SymbolObj and KeywordObj are heap-tracked even though their
// Go payload (a string) is itself immutable and already managed by Go's
// own runtime; they still go through the Box indirection so the GC's
// exhaustive dispatch has one case per spec variant and so `identical?`
// (see DESIGN.md's Open Questions) can be defined as Box pointer identity
// after interning.
type StringObj struct{ S string }

func (s *StringObj) Trace(func(*gc.Box))             {}
func (s *StringObj) Relocate(func(*gc.Box) *gc.Box) gc.Tracer { return &StringObj{S: s.S} }

type SymbolObj struct{ Ns, Name string }

func (s *SymbolObj) Trace(func(*gc.Box))             {}
func (s *SymbolObj) Relocate(func(*gc.Box) *gc.Box) gc.Tracer { return &SymbolObj{Ns: s.Ns, Name: s.Name} }

type KeywordObj struct{ Ns, Name string }

func (s *KeywordObj) Trace(func(*gc.Box))             {}
func (s *KeywordObj) Relocate(func(*gc.Box) *gc.Box) gc.Tracer { return &KeywordObj{Ns: s.Ns, Name: s.Name} }

// internTable makes interned symbols/keywords compare equal by pointer
// identity, per the Open Question decision in DESIGN.md. It lives outside
// the Heap and lasts as long as its Interner (interp.New creates one per
// Interpreter): the table holds the *gc.Box itself so identical? sees the
// same Box, but the Box's payload is still allocated from (and relocated
// by) the caller's Heap.
type internTable struct {
	symbols  map[string]*gc.Box
	keywords map[string]*gc.Box
}

func newInternTable() *internTable {
	return &internTable{symbols: map[string]*gc.Box{}, keywords: map[string]*gc.Box{}}
}

// Interner is the exported handle to a symbol/keyword intern table; each
// NewInterner call makes an independent one. See DESIGN.md's Open Questions entry for identical?.
type Interner = internTable

func NewInterner() *Interner { return newInternTable() }

func qualifiedKey(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "/" + name
}

// NewString allocates a fresh (non-interned) string value.
func NewString(h *gc.Heap, s string) Value {
	return Value{Tag: TagString, Box: h.Alloc(&StringObj{S: s}, int64(len(s))+16)}
}

func StringVal(v Value) string { return payload(v).(*StringObj).S }

// NewSymbol interns symbols by (ns, name) so two references to the same
// name share one Box.
func NewSymbol(h *gc.Heap, interner *internTable, ns, name string) Value {
	key := qualifiedKey(ns, name)
	if b, ok := interner.symbols[key]; ok {
		return Value{Tag: TagSymbol, Box: b}
	}
	b := h.Alloc(&SymbolObj{Ns: ns, Name: name}, int64(len(key))+16)
	interner.symbols[key] = b
	return Value{Tag: TagSymbol, Box: b}
}

func NewKeyword(h *gc.Heap, interner *internTable, ns, name string) Value {
	key := qualifiedKey(ns, name)
	if b, ok := interner.keywords[key]; ok {
		return Value{Tag: TagKeyword, Box: b}
	}
	b := h.Alloc(&KeywordObj{Ns: ns, Name: name}, int64(len(key))+16)
	interner.keywords[key] = b
	return Value{Tag: TagKeyword, Box: b}
}

func SymbolParts(v Value) (ns, name string) {
	s := payload(v).(*SymbolObj)
	return s.Ns, s.Name
}

func KeywordParts(v Value) (ns, name string) {
	k := payload(v).(*KeywordObj)
	return k.Ns, k.Name
}

// --- list (persistent singly-linked, like a classic cons list) ----------

type ListObj struct {
	Head  Value
	Tail  Value // TagList (possibly empty) — Nil-tagged sentinel for end
	Count int
}

func (l *ListObj) Trace(visit func(*gc.Box)) {
	if l.Head.Box != nil {
		visit(l.Head.Box)
	}
	if l.Tail.Box != nil {
		visit(l.Tail.Box)
	}
}

func (l *ListObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	nl := &ListObj{Head: l.Head, Tail: l.Tail, Count: l.Count}
	nl.Head.Box = rewrite(l.Head.Box)
	nl.Tail.Box = rewrite(l.Tail.Box)
	return nl
}

// EmptyList is the canonical nil-terminated list; `(quote ())` canonicalizes
// to this same representation of "no elements", distinguished from
// Nil by tag so `(list? ())` still holds.
var emptyListSentinel = Value{Tag: TagList, Box: nil}

func EmptyList() Value { return emptyListSentinel }

func IsEmptyList(v Value) bool { return v.Tag == TagList && v.Box == nil }

func NewList(h *gc.Heap, head Value, tail Value) Value {
	cnt := 1
	if tail.Tag == TagList && tail.Box != nil {
		cnt += payload(tail).(*ListObj).Count
	}
	return Value{Tag: TagList, Box: h.Alloc(&ListObj{Head: head, Tail: tail, Count: cnt}, 48)}
}

func ListFromSlice(h *gc.Heap, items []Value) Value {
	out := EmptyList()
	for i := len(items) - 1; i >= 0; i-- {
		out = NewList(h, items[i], out)
	}
	return out
}

func ListCount(v Value) int {
	if v.Box == nil {
		return 0
	}
	return payload(v).(*ListObj).Count
}

func ListHead(v Value) Value { return payload(v).(*ListObj).Head }
func ListTail(v Value) Value { return payload(v).(*ListObj).Tail }

func ListToSlice(v Value) []Value {
	out := make([]Value, 0, ListCount(v))
	for v.Box != nil {
		l := payload(v).(*ListObj)
		out = append(out, l.Head)
		v = l.Tail
	}
	return out
}

// --- vector (copy-on-write backed; O(n) ops, HAMT left as a future option) --

type VectorObj struct{ Items []Value }

func (v *VectorObj) Trace(visit func(*gc.Box)) {
	for _, it := range v.Items {
		if it.Box != nil {
			visit(it.Box)
		}
	}
}

func (v *VectorObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	items := make([]Value, len(v.Items))
	for i, it := range v.Items {
		it.Box = rewrite(it.Box)
		items[i] = it
	}
	return &VectorObj{Items: items}
}

func NewVector(h *gc.Heap, items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{Tag: TagVector, Box: h.Alloc(&VectorObj{Items: cp}, int64(len(cp))*24+16)}
}

func VectorItems(v Value) []Value {
	if v.Box == nil {
		return nil
	}
	return payload(v).(*VectorObj).Items
}

func VectorCount(v Value) int { return len(VectorItems(v)) }

func VectorConj(h *gc.Heap, v Value, item Value) Value {
	items := VectorItems(v)
	out := make([]Value, len(items)+1)
	copy(out, items)
	out[len(items)] = item
	return NewVector(h, out)
}

func VectorAssoc(h *gc.Heap, v Value, idx int, item Value) Value {
	items := VectorItems(v)
	out := make([]Value, len(items))
	copy(out, items)
	out[idx] = item
	return NewVector(h, out)
}

// --- map (entry slice + swiss-table hash index accelerator) -------------

// MapEntry is one key/value pair. Entries preserve insertion order so
// printing and seq traversal are deterministic, matching the "ordered
// sequence" framing applied to every collection.
type MapEntry struct {
	Key Value
	Val Value
}

// MapObj backs both persistent maps and (transient-use) sets indirectly.
// Index accelerates Get/Assoc/Dissoc from O(n) to average O(1) without
// adopting a HAMT, per SPEC_FULL's DOMAIN STACK entry for
// github.com/dolthub/swiss: Index maps a structural hash to the list of
// entry slots sharing that hash (collisions resolved by re-checking
// Equal against each candidate).
type MapObj struct {
	Entries []MapEntry
	Index   *swiss.Map[uint64, []int]
}

func (m *MapObj) Trace(visit func(*gc.Box)) {
	for _, e := range m.Entries {
		if e.Key.Box != nil {
			visit(e.Key.Box)
		}
		if e.Val.Box != nil {
			visit(e.Val.Box)
		}
	}
}

func (m *MapObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	entries := make([]MapEntry, len(m.Entries))
	for i, e := range m.Entries {
		e.Key.Box = rewrite(e.Key.Box)
		e.Val.Box = rewrite(e.Val.Box)
		entries[i] = e
	}
	return buildMap(entries)
}

func buildMap(entries []MapEntry) *MapObj {
	idx := swiss.NewMap[uint64, []int](uint32(len(entries)) + 1)
	for i, e := range entries {
		h := Hash(e.Key)
		slots, _ := idx.Get(h)
		idx.Put(h, append(slots, i))
	}
	return &MapObj{Entries: entries, Index: idx}
}

func NewMap(h *gc.Heap, entries []MapEntry) Value {
	return Value{Tag: TagMap, Box: h.Alloc(buildMap(entries), int64(len(entries))*48+16)}
}

func MapEntries(v Value) []MapEntry {
	if v.Box == nil {
		return nil
	}
	return payload(v).(*MapObj).Entries
}

func MapFind(v Value, key Value) (Value, bool) {
	if v.Box == nil {
		return Nil, false
	}
	m := payload(v).(*MapObj)
	h := Hash(key)
	slots, ok := m.Index.Get(h)
	if !ok {
		return Nil, false
	}
	for _, i := range slots {
		if Equal(m.Entries[i].Key, key) {
			return m.Entries[i].Val, true
		}
	}
	return Nil, false
}

func MapAssoc(heap *gc.Heap, v Value, key, val Value) Value {
	entries := MapEntries(v)
	for i, e := range entries {
		if Equal(e.Key, key) {
			out := make([]MapEntry, len(entries))
			copy(out, entries)
			out[i] = MapEntry{Key: key, Val: val}
			return NewMap(heap, out)
		}
	}
	out := make([]MapEntry, len(entries)+1)
	copy(out, entries)
	out[len(entries)] = MapEntry{Key: key, Val: val}
	return NewMap(heap, out)
}

func MapDissoc(heap *gc.Heap, v Value, key Value) Value {
	entries := MapEntries(v)
	out := make([]MapEntry, 0, len(entries))
	for _, e := range entries {
		if !Equal(e.Key, key) {
			out = append(out, e)
		}
	}
	return NewMap(heap, out)
}

// --- set ------------------------------------------------------------------

type SetObj struct {
	Items []Value
	Index *swiss.Map[uint64, []int]
}

func (s *SetObj) Trace(visit func(*gc.Box)) {
	for _, it := range s.Items {
		if it.Box != nil {
			visit(it.Box)
		}
	}
}

func (s *SetObj) Relocate(rewrite func(*gc.Box) *gc.Box) gc.Tracer {
	items := make([]Value, len(s.Items))
	for i, it := range s.Items {
		it.Box = rewrite(it.Box)
		items[i] = it
	}
	return buildSet(items)
}

func buildSet(items []Value) *SetObj {
	idx := swiss.NewMap[uint64, []int](uint32(len(items)) + 1)
	for i, it := range items {
		h := Hash(it)
		slots, _ := idx.Get(h)
		idx.Put(h, append(slots, i))
	}
	return &SetObj{Items: items, Index: idx}
}

// NewSet deduplicates items, keeping the first occurrence's position.
func NewSet(h *gc.Heap, items []Value) Value {
	dedup := make([]Value, 0, len(items))
	for _, it := range items {
		found := false
		for _, d := range dedup {
			if Equal(d, it) {
				found = true
				break
			}
		}
		if !found {
			dedup = append(dedup, it)
		}
	}
	return Value{Tag: TagSet, Box: h.Alloc(buildSet(dedup), int64(len(dedup))*24+16)}
}

func SetItems(v Value) []Value {
	if v.Box == nil {
		return nil
	}
	return payload(v).(*SetObj).Items
}

func SetContains(v Value, item Value) bool {
	if v.Box == nil {
		return false
	}
	s := payload(v).(*SetObj)
	h := Hash(item)
	slots, ok := s.Index.Get(h)
	if !ok {
		return false
	}
	for _, i := range slots {
		if Equal(s.Items[i], item) {
			return true
		}
	}
	return false
}

func SetConj(h *gc.Heap, v Value, item Value) Value {
	if SetContains(v, item) {
		return v
	}
	return NewSet(h, append(append([]Value{}, SetItems(v)...), item))
}
