// Package analyzer lowers reader Forms to Nodes: it expands macros to a
// fixed point, recognizes special forms, resolves symbols against the
// lexical scope stack and the namespace registry, expands destructuring
// binding forms, and computes the capture set every `fn*` closure needs.
package analyzer

import (
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/errors"
	"github.com/emberlang/ember/value"
)

type Kind int

const (
	NLiteral Kind = iota
	NVectorLit
	NMapLit
	NSetLit
	NLocalRef
	NVarRef
	NIf
	NDo
	NLet
	NLoop
	NLetfn
	NRecur
	NFn
	NDef
	NVarSpecial
	NThrow
	NTry
	NCall
	NHostInterop
)

// LocalSlot identifies one binding visible inside the innermost enclosing
// `fn*`: Depth is 0 for a local of that function (Slot indexes its
// local-slot array) and -1 for a captured value (Slot indexes its capture
// array).
type LocalSlot struct {
	Name  string
	Depth int
	Slot  int
}

// Capture describes one value an `fn*` closure pulls in from an enclosing
// scope: FromOuterCapture is true when the value is itself one of the
// enclosing function's own captures (an inherited capture) rather than one
// of its direct locals, matching the capture_count contract: the capture
// count of an inner function is the inherited captures of the outer
// function plus the locals the outer function has declared by the point
// the inner `fn*` appears.
type Capture struct {
	Name             string
	FromOuterCapture bool
	OuterIndex       int // slot in outer Locals, or index in outer Captures
}

// CatchClause is one `catch` arm of a `try` form.
type CatchClause struct {
	BindingName string
	Slot        int
	Body        []*Node
}

// Node is the lowered form the tree walker and the compiler both consume.
// Fields are populated according to Kind; unused fields are zero.
type Node struct {
	Kind Kind
	Pos  errors.Pos

	Lit value.Value // NLiteral

	Items []*Node // NVectorLit/NSetLit items, NMapLit interleaved key/val, NDo/NLet/NTry body, NCall args (Items[0] is callee)

	Local *LocalSlot // NLocalRef
	Var   *env.Var   // NVarRef, NVarSpecial, NDef target

	Cond, Then, Else *Node // NIf

	Bindings []LetBinding // NLet/NLoop/NLetfn
	Body     []*Node      // NLet/NLoop/NLetfn/NFn body

	FnName    string
	NumCaptures int // NFn: size of the flattened capture array every arity shares
	Arities   []FnArity // NFn
	RecurNode *Node     // NRecur: Items holds the new-binding expressions

	DefSym  string // NDef
	DefInit *Node  // NDef
	IsMacro bool   // NDef: set by `defmacro`, flags the resulting var's meta
	DefOnce bool   // NDef: set by `defonce`, skip DefInit entirely once the var is already bound

	ThrowExpr *Node // NThrow

	TryBody    []*Node       // NTry
	Catches    []CatchClause // NTry
	FinallyBody []*Node      // NTry
}

// LetBinding is one `name expr` pair in a `let*`/`loop*` binding vector,
// after destructuring has been flattened to simple symbol bindings.
type LetBinding struct {
	Name string
	Slot int
	Init *Node
}

// FnArity is one analyzed arity of an `fn*` form.
type FnArity struct {
	Params    []string
	Variadic  bool
	NumLocals int // total local slots this arity's body needs, params included
	Body      []*Node
}
