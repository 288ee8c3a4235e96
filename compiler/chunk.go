package compiler

import (
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/value"
)

// HandlerDesc is one compiled try/catch/finally handler entry. TargetAddr is
// the catch body's entry point (meaningful only when HasCatch); FinallyAddr
// is the finally body's entry point, or -1 if this try has no finally. A
// handler with HasCatch stays active (it can still route a *second* error —
// one raised inside its own catch or finally body — straight to its own
// finally) until its FinallyBarrier runs, at which point it is retired.
type HandlerDesc struct {
	TargetAddr  int
	FinallyAddr int
	CatchSlot   int
	HasCatch    bool
	Rethrow     bool // true for a finally-only try with no catch clause at all
}

// Chunk is one function's compiled bytecode: instructions plus the pools
// they index into. Every FnProto owns exactly one Chunk (a fresh one per
// arity, not shared), matching the "one Chunk per compiled function" split
// common to bytecode compilers in the retrieval pack.
type Chunk struct {
	Code     []byte
	Consts   []value.Value
	Vars     []*env.Var
	Handlers []HandlerDesc
}

func NewChunk() *Chunk {
	return &Chunk{}
}

func (c *Chunk) emit(op Op, line int) int {
	pos := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return pos
}

func (c *Chunk) writeU16(n int) {
	c.Code = append(c.Code, byte(n>>8), byte(n))
}

func (c *Chunk) writeU8(n int) {
	c.Code = append(c.Code, byte(n))
}

func (c *Chunk) patchU16(at int, n int) {
	c.Code[at] = byte(n >> 8)
	c.Code[at+1] = byte(n)
}

func (c *Chunk) here() int { return len(c.Code) }

func (c *Chunk) addConst(v value.Value) int {
	c.Consts = append(c.Consts, v)
	return len(c.Consts) - 1
}

func (c *Chunk) addVar(v *env.Var) int {
	for i, existing := range c.Vars {
		if existing == v {
			return i
		}
	}
	c.Vars = append(c.Vars, v)
	return len(c.Vars) - 1
}

func (c *Chunk) addHandler(h HandlerDesc) int {
	c.Handlers = append(c.Handlers, h)
	return len(c.Handlers) - 1
}
