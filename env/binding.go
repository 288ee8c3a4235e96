package env

import (
	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/value"
)

// Binding pairs a var with the value it is dynamically bound to within one
// frame.
type Binding struct {
	Var *Var
	Val value.Value
}

// bindingFrame is one link in the dynamic-binding-frame chain: a list
// of (var, value) entries installed by `binding`/`with-bindings`.
type bindingFrame struct {
	entries []Binding
	parent  *bindingFrame
}

// Bindings is the dynamic-binding-frame stack. push/pop must be strictly
// paired on every exit path including errors; corelib's `binding`
// macro expands to a call of the push-bindings builtin, which pops its
// frame with a Go defer, so the pop runs however the body returns.
type Bindings struct {
	top *bindingFrame
}

func NewBindings() *Bindings { return &Bindings{} }

// Push installs a new frame on top of the stack and returns a token that
// Pop uses to verify strict nesting (catching a mismatched push/pop pair,
// which would otherwise silently corrupt the dynamic-scope discipline
// frame chain is exactly what it was before the expression began.
func (b *Bindings) Push(entries []Binding) *bindingFrame {
	f := &bindingFrame{entries: entries, parent: b.top}
	b.top = f
	return f
}

// Pop removes the top frame. Callers must pop frames in exact LIFO order;
// Pop panics on misuse since that indicates a compiler/analyzer bug in
// try/finally lowering, not a user-recoverable error.
func (b *Bindings) Pop(expect *bindingFrame) {
	if b.top != expect {
		panic("env: dynamic binding frame popped out of order")
	}
	b.top = b.top.parent
}

// Lookup searches frames newest to oldest for v. On a miss, falling back to
// the root value is the caller's responsibility (Lookup only reports the
// dynamic override, if any).
func (b *Bindings) Lookup(v *Var) (value.Value, bool) {
	for f := b.top; f != nil; f = f.parent {
		for i := len(f.entries) - 1; i >= 0; i-- {
			if f.entries[i].Var == v {
				return f.entries[i].Val, true
			}
		}
	}
	return value.Nil, false
}

// Set mutates the innermost existing dynamic binding for v, for `set!`
// inside a `binding` body. Returns false if v has no active dynamic
// binding (the caller should then fall back to Var.Set on the root, which
// is itself an error for non-dynamic vars per standard semantics — decided
// the same way the reference language does it).
func (b *Bindings) Set(v *Var, nv value.Value) bool {
	for f := b.top; f != nil; f = f.parent {
		for i := len(f.entries) - 1; i >= 0; i-- {
			if f.entries[i].Var == v {
				f.entries[i].Val = nv
				return true
			}
		}
	}
	return false
}

// Depth reports the number of active frames, used by tests asserting the
// dynamic-binding-pop invariant around throw/catch.
func (b *Bindings) Depth() int {
	n := 0
	for f := b.top; f != nil; f = f.parent {
		n++
	}
	return n
}

// Frames returns every (var, value) entry across every active frame, for
// GC root collection.
func (b *Bindings) Frames() []Binding {
	var out []Binding
	for f := b.top; f != nil; f = f.parent {
		out = append(out, f.entries...)
	}
	return out
}

// RootPtrs returns a GC root pointer into every active binding-frame entry's
// value, across every frame on the stack. Unlike Frames, these point
// directly into the live entries (not a copy), so the collector's fixup
// phase can rewrite them in place after relocation.
func (b *Bindings) RootPtrs() []gc.RootPtr {
	var out []gc.RootPtr
	for f := b.top; f != nil; f = f.parent {
		for i := range f.entries {
			out = append(out, &f.entries[i].Val.Box)
		}
	}
	return out
}

// Deref resolves a var's current value: the innermost dynamic binding if
// one exists, otherwise the root.
func Deref(b *Bindings, v *Var) value.Value {
	if bv, ok := b.Lookup(v); ok {
		return bv
	}
	return v.Root
}
