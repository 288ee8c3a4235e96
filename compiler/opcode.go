// Package compiler lowers analyzer.Node trees to flat bytecode: one
// instruction stream plus a constant pool per function prototype, mirroring
// the per-function Chunk split a from-scratch bytecode compiler normally
// uses. Unlike a compiler working from a raw AST, this one inherits
// already-resolved lexical slots and capture sets from the analyzer, so its
// own job narrows to instruction selection and jump-target patching.
package compiler

// Op is one bytecode instruction opcode. Operands are fixed-width and
// written big-endian directly into a Chunk's Code slice; disassembly walks
// Code opcode by opcode using operandWidth.
type Op byte

const (
	OpConst        Op = iota // idx u16: push Consts[idx]
	OpLoadLocal              // slot u16: push stack[base+NumCaptures+slot]
	OpLoadCaptured           // slot u16: push stack[base+slot]
	OpStoreLocal             // slot u16: pop v; stack[base+NumCaptures+slot] = v
	OpLoadVar                // idx u16 into Vars: push deref(Vars[idx])
	OpVarSpecial             // idx u16 into Vars: push var-ref(Vars[idx])
	OpDef                    // idx u16 into Vars, flags u8 (bit0 hasInit, bit1 isMacro)
	OpVarBound               // idx u16 into Vars: push bool(Vars[idx].Bound())
	OpPop                    // pop and discard
	OpJump                   // addr u16: ip = addr
	OpJumpIfFalse            // addr u16: pop v; if !truthy(v) ip = addr
	OpMakeVector             // count u16: pop count values, push vector
	OpMakeSet                // count u16: pop count values, push set
	OpMakeMap                // pairs u16: pop 2*pairs values, push map
	OpCall                   // argc u16: pop fn + argc args, push call result
	OpClosure                // numCaptures u16, arityCount u8, [protoConstIdx u16]*arityCount
	OpRecur                  // count u8, [slot u16]*count, addr u16
	OpThrow                  // pop v, raise it as a catchable throw
	OpTryStart               // handlerIdx u16: push a handler frame
	OpTryEnd                 // pop the top handler frame (no exception reached here)
	OpFinallyBarrier         // if the active frame carries a pending error, return it
	OpScopeExit              // n u16: v := pop(); drop n more; push v
	OpLetfnFixup             // closureSlot u16, siblingBase u16, count u16: patch a letfn closure's trailing captures
	OpReturn                 // pop v, return v from the current frame to its caller
	OpHalt                   // stop the top-level script frame, yielding top-of-stack
)

var operandWidth = map[Op]int{
	OpConst: 2, OpLoadLocal: 2, OpLoadCaptured: 2, OpStoreLocal: 2,
	OpLoadVar: 2, OpVarSpecial: 2, OpDef: 3, OpVarBound: 2, OpPop: 0,
	OpJump: 2, OpJumpIfFalse: 2, OpMakeVector: 2, OpMakeSet: 2, OpMakeMap: 2,
	OpCall: 2, OpRecur: -1, OpThrow: 0, OpTryStart: 2, OpTryEnd: 0,
	OpFinallyBarrier: 0, OpScopeExit: 2, OpLetfnFixup: 6, OpReturn: 0, OpHalt: 0,
	OpClosure: -1,
}

func (op Op) String() string {
	names := [...]string{
		"CONST", "LOAD_LOCAL", "LOAD_CAPTURED", "STORE_LOCAL", "LOAD_VAR",
		"VAR_SPECIAL", "DEF", "VAR_BOUND", "POP", "JUMP", "JUMP_IF_FALSE", "MAKE_VECTOR",
		"MAKE_SET", "MAKE_MAP", "CALL", "CLOSURE", "RECUR", "THROW",
		"TRY_START", "TRY_END", "FINALLY_BARRIER", "SCOPE_EXIT", "LETFN_FIXUP", "RETURN", "HALT",
	}
	if int(op) < 0 || int(op) >= len(names) {
		return "UNKNOWN"
	}
	return names[op]
}
