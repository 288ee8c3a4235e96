// Package env implements namespaces, vars, and dynamic-binding frames: the
// mutable infrastructure that sits outside the GC heap (namespaces and vars
// live in the long-lived arena) but whose Root/binding values still point
// into the heap and so must be walked as GC roots.
package env

import "github.com/emberlang/ember/value"

// Var is a mutable cell owned by a Namespace. Vars are never
// garbage collected themselves — they live for the namespace's (i.e.
// effectively the process's) lifetime — but Root is a Value that may
// itself be heap-tracked, so &v.Root.Box is a GC root.
type Var struct {
	Sym       string
	Ns        *Namespace
	Root      value.Value
	Dynamic   bool
	Meta      value.Value
	Watches   []value.Value
	Validator value.Value
	// bound is true once a value has ever been def'd into this var,
	// distinguishing "interned with nil root" from "explicitly def'd to
	// nil" for defonce's decided semantics (DESIGN.md).
	bound bool
}

func newVar(ns *Namespace, sym string) *Var {
	return &Var{Sym: sym, Ns: ns, Root: value.Nil, Meta: value.Nil, Validator: value.Nil}
}

// Get returns the var's current root value.
func (v *Var) Get() value.Value { return v.Root }

// Set assigns root and marks the var bound. It is bookkeeping only: running
// Validator or notifying Watches means calling a Fn value, which this
// package cannot do without an import cycle with treewalk/vm, so those two
// fields are storage only here. Atom validators (corelib/builtins.go's
// checkValidator) already have a wired equivalent; a var-level def/set! validator/watch
// call would live in corelib, invoked around Set, the same way.
func (v *Var) Set(nv value.Value) error {
	v.Root = nv
	v.bound = true
	return nil
}

// Bound reports whether this var has ever been assigned a root value
// (distinct from "root is nil"), backing defonce.
func (v *Var) Bound() bool { return v.bound }
