package compiler

// FnProto is one compiled arity of a user function (or a top-level
// script): the analyzer's per-arity bookkeeping (parameter names,
// variadic flag, capture/local counts) alongside the Chunk that
// implements its body. value.Arity.Proto holds one of these for every
// arity the VM back end runs; the tree-walking back end never touches it.
//
// NumCaptures values occupy the bottom of a frame's stack region (slots
// base+0 .. base+NumCaptures-1); NumLocals values (params first, then
// let/loop/destructuring temporaries) occupy base+NumCaptures ..
// base+NumCaptures+NumLocals-1. create_closure's capture_offset is zero
// relative to this same base, by construction.
type FnProto struct {
	Name        string
	Params      []string
	Variadic    bool
	NumParams   int
	NumCaptures int
	NumLocals   int
	Chunk       *Chunk
}
