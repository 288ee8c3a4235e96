package compiler

import (
	"github.com/emberlang/ember/analyzer"
	"github.com/emberlang/ember/value"
)

// recurTarget is the nearest enclosing loop*/fn* arity recur can jump back
// to: the slots it rebinds (in order) and the bytecode address of the
// binding-evaluation loop's top.
type recurTarget struct {
	slots []int
	addr  int
}

// compiler lowers one analyzer.Node tree into one Chunk. A fresh compiler
// is used per FnProto (per arity, and once for the implicit top-level
// script), matching one Chunk per compiled function.
type compiler struct {
	chunk *Chunk
	recur []recurTarget
}

// CompileTop compiles one top-level Node — as produced by a single call to
// analyzer.Analyzer.Analyze, which resets its scope per call — into a
// zero-param, zero-capture FnProto. numLocals is that same call's
// TopLocalsCount(), sizing the implicit top-level frame.
func CompileTop(node *analyzer.Node, numLocals int) *FnProto {
	c := &compiler{chunk: NewChunk()}
	c.compileNode(node)
	c.chunk.emit(OpHalt, node.Pos.Line)
	return &FnProto{NumLocals: numLocals, Chunk: c.chunk}
}

// CompileArity compiles one analyzed `fn*` arity into its own FnProto.
// numCaptures is the enclosing NFn node's NumCaptures, shared by every
// arity of the same fn literal.
func CompileArity(name string, numCaptures int, ar analyzer.FnArity) *FnProto {
	c := &compiler{chunk: NewChunk()}
	slots := make([]int, len(ar.Params))
	for i := range ar.Params {
		slots[i] = i
	}
	// A `recur` directly in a fn body (no enclosing loop*) rebinds the fn's
	// own params, same as the analyzer's checkTailRecur treats the fn body
	// itself as a recur target.
	c.recur = append(c.recur, recurTarget{slots: slots, addr: 0})
	c.compileBody(ar.Body)
	c.recur = c.recur[:len(c.recur)-1]
	c.chunk.emit(OpReturn, 0)
	return &FnProto{
		Name: name, Params: ar.Params, Variadic: ar.Variadic,
		NumParams: len(ar.Params), NumCaptures: numCaptures,
		NumLocals: ar.NumLocals, Chunk: c.chunk,
	}
}

// compileBody compiles a sequence of statement Nodes, discarding every
// value but the last (which is left on the stack as the body's result).
// An empty body yields nil, matching evalBody's treatment of an empty
// `do`/`let*`/`loop*`/`fn*` body.
func (c *compiler) compileBody(nodes []*analyzer.Node) {
	if len(nodes) == 0 {
		c.emitConst(value.Nil, 0)
		return
	}
	for _, n := range nodes[:len(nodes)-1] {
		c.compileNode(n)
		c.chunk.emit(OpPop, n.Pos.Line)
	}
	c.compileNode(nodes[len(nodes)-1])
}

// compileDiscardAll compiles a sequence of statement Nodes purely for
// effect: every value, including the last, is popped. Used for `finally`
// bodies, whose own result is never the try expression's result.
func (c *compiler) compileDiscardAll(nodes []*analyzer.Node) {
	for _, n := range nodes {
		c.compileNode(n)
		c.chunk.emit(OpPop, n.Pos.Line)
	}
}

func (c *compiler) emitConst(v value.Value, line int) {
	idx := c.chunk.addConst(v)
	c.chunk.emit(OpConst, line)
	c.chunk.writeU16(idx)
}

// emitJump emits op with a placeholder u16 operand and returns the operand's
// byte offset, for a later patchU16 once the jump target is known.
func (c *compiler) emitJump(op Op, line int) int {
	c.chunk.emit(op, line)
	at := c.chunk.here()
	c.chunk.writeU16(0)
	return at
}

func (c *compiler) compileNode(node *analyzer.Node) {
	line := node.Pos.Line
	switch node.Kind {
	case analyzer.NLiteral:
		c.emitConst(node.Lit, line)

	case analyzer.NVectorLit:
		c.compileEach(node.Items)
		c.chunk.emit(OpMakeVector, line)
		c.chunk.writeU16(len(node.Items))

	case analyzer.NSetLit:
		c.compileEach(node.Items)
		c.chunk.emit(OpMakeSet, line)
		c.chunk.writeU16(len(node.Items))

	case analyzer.NMapLit:
		c.compileEach(node.Items)
		c.chunk.emit(OpMakeMap, line)
		c.chunk.writeU16(len(node.Items) / 2)

	case analyzer.NLocalRef:
		if node.Local.Depth == 0 {
			c.chunk.emit(OpLoadLocal, line)
		} else {
			c.chunk.emit(OpLoadCaptured, line)
		}
		c.chunk.writeU16(node.Local.Slot)

	case analyzer.NVarRef:
		idx := c.chunk.addVar(node.Var)
		c.chunk.emit(OpLoadVar, line)
		c.chunk.writeU16(idx)

	case analyzer.NVarSpecial:
		idx := c.chunk.addVar(node.Var)
		c.chunk.emit(OpVarSpecial, line)
		c.chunk.writeU16(idx)

	case analyzer.NIf:
		c.compileNode(node.Cond)
		jf := c.emitJump(OpJumpIfFalse, line)
		c.compileNode(node.Then)
		jend := c.emitJump(OpJump, line)
		c.chunk.patchU16(jf, c.chunk.here())
		c.compileNode(node.Else)
		c.chunk.patchU16(jend, c.chunk.here())

	case analyzer.NDo:
		c.compileBody(node.Items)

	case analyzer.NLet:
		for _, b := range node.Bindings {
			c.compileNode(b.Init)
			c.chunk.emit(OpStoreLocal, line)
			c.chunk.writeU16(b.Slot)
		}
		c.compileBody(node.Body)

	case analyzer.NLoop:
		slots := make([]int, len(node.Bindings))
		for i, b := range node.Bindings {
			c.compileNode(b.Init)
			c.chunk.emit(OpStoreLocal, line)
			c.chunk.writeU16(b.Slot)
			slots[i] = b.Slot
		}
		top := c.chunk.here()
		c.recur = append(c.recur, recurTarget{slots: slots, addr: top})
		c.compileBody(node.Body)
		c.recur = c.recur[:len(c.recur)-1]

	case analyzer.NLetfn:
		n := len(node.Bindings)
		slotBase := 0
		if n > 0 {
			slotBase = node.Bindings[0].Slot
		}
		for _, b := range node.Bindings {
			c.compileNode(b.Init)
			c.chunk.emit(OpStoreLocal, line)
			c.chunk.writeU16(b.Slot)
		}
		for _, b := range node.Bindings {
			c.chunk.emit(OpLetfnFixup, line)
			c.chunk.writeU16(b.Slot)
			c.chunk.writeU16(slotBase)
			c.chunk.writeU16(n)
		}
		c.compileBody(node.Body)

	case analyzer.NRecur:
		target := c.recur[len(c.recur)-1]
		c.compileEach(node.Items)
		c.chunk.emit(OpRecur, line)
		c.chunk.writeU8(len(target.slots))
		for _, s := range target.slots {
			c.chunk.writeU16(s)
		}
		c.chunk.writeU16(target.addr)

	case analyzer.NFn:
		protoIdxs := make([]int, len(node.Arities))
		for i, ar := range node.Arities {
			proto := CompileArity(node.FnName, node.NumCaptures, ar)
			protoIdxs[i] = c.chunk.addConst(value.Value{Tag: value.TagFnProto, Ptr: proto})
		}
		c.chunk.emit(OpClosure, line)
		c.chunk.writeU16(node.NumCaptures)
		c.chunk.writeU8(len(protoIdxs))
		for _, idx := range protoIdxs {
			c.chunk.writeU16(idx)
		}

	case analyzer.NDef:
		idx := c.chunk.addVar(node.Var)
		if node.DefOnce {
			// Unlike a plain def, defonce must not even evaluate its init
			// when the var is already bound (re-running an expensive or
			// side-effecting initializer on reload would defeat the point),
			// so the branch is compiled in rather than decided once the
			// init value is already on the stack.
			c.chunk.emit(OpVarBound, line)
			c.chunk.writeU16(idx)
			toInit := c.emitJump(OpJumpIfFalse, line)
			c.chunk.emit(OpDef, line)
			c.chunk.writeU16(idx)
			c.chunk.writeU8(0)
			toEnd := c.emitJump(OpJump, line)
			c.chunk.patchU16(toInit, c.chunk.here())
			if node.DefInit != nil {
				c.compileNode(node.DefInit)
			}
			c.chunk.emit(OpDef, line)
			c.chunk.writeU16(idx)
			c.chunk.writeU8(1)
			c.chunk.patchU16(toEnd, c.chunk.here())
			break
		}
		var flags int
		if node.DefInit != nil {
			c.compileNode(node.DefInit)
			flags |= 1
		}
		if node.IsMacro {
			flags |= 2
		}
		c.chunk.emit(OpDef, line)
		c.chunk.writeU16(idx)
		c.chunk.writeU8(flags)

	case analyzer.NThrow:
		c.compileNode(node.ThrowExpr)
		c.chunk.emit(OpThrow, line)

	case analyzer.NTry:
		c.compileTry(node)

	case analyzer.NCall:
		c.compileNode(node.Items[0])
		c.compileEach(node.Items[1:])
		c.chunk.emit(OpCall, line)
		c.chunk.writeU16(len(node.Items) - 1)

	default:
		// NHostInterop is never produced by the analyzer (host interop is a
		// documented non-goal); reaching here is a compiler/analyzer
		// contract violation, not a user-recoverable error.
		panic("compiler: unsupported node kind")
	}
}

func (c *compiler) compileEach(nodes []*analyzer.Node) {
	for _, n := range nodes {
		c.compileNode(n)
	}
}

// compileTry lowers `(try body... (catch e ...) (finally ...))`. Only the
// first catch clause is compiled — matching the tree walker's catch-all
// semantics, the decided reading of the spec's ambiguous multi-catch
// question. Layout:
//
//	TryStart h
//	<try body>
//	TryEnd
//	Jump finallyAddr        ; normal completion skips the catch block
//	catchAddr:              ; only emitted when a catch clause exists
//	  StoreLocal catchSlot
//	  <catch body>          ; falls through into finally
//	finallyAddr:
//	  <finally body, discarded>
//	  FinallyBarrier
func (c *compiler) compileTry(node *analyzer.Node) {
	line := node.Pos.Line
	hasCatch := len(node.Catches) > 0
	hasFinally := len(node.FinallyBody) > 0
	if !hasCatch && !hasFinally {
		c.compileBody(node.TryBody)
		return
	}

	h := HandlerDesc{HasCatch: hasCatch, Rethrow: !hasCatch, FinallyAddr: -1}
	if hasCatch {
		h.CatchSlot = node.Catches[0].Slot
	}
	hIdx := c.chunk.addHandler(h)

	c.chunk.emit(OpTryStart, line)
	c.chunk.writeU16(hIdx)
	c.compileBody(node.TryBody)
	c.chunk.emit(OpTryEnd, line)
	toFinally := c.emitJump(OpJump, line)

	if hasCatch {
		catchAddr := c.chunk.here()
		c.chunk.Handlers[hIdx].TargetAddr = catchAddr
		c.chunk.emit(OpStoreLocal, line)
		c.chunk.writeU16(node.Catches[0].Slot)
		c.compileBody(node.Catches[0].Body)
	}

	finallyAddr := c.chunk.here()
	c.chunk.patchU16(toFinally, finallyAddr)
	c.chunk.Handlers[hIdx].FinallyAddr = finallyAddr
	if hasFinally {
		c.compileDiscardAll(node.FinallyBody)
	}
	c.chunk.emit(OpFinallyBarrier, line)
}
