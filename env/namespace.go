package env

import (
	"sort"

	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/value"
)

// Namespace is named by a symbol and holds three mappings: local
// symbol -> owning var, alias symbol -> namespace, referred symbol -> var
// owned by another namespace.
type Namespace struct {
	Name    string
	vars    map[string]*Var
	aliases map[string]*Namespace
	refers  map[string]*Var
}

func newNamespace(name string) *Namespace {
	return &Namespace{
		Name:    name,
		vars:    map[string]*Var{},
		aliases: map[string]*Namespace{},
		refers:  map[string]*Var{},
	}
}

// Intern returns the var for name, creating one with a nil root if this is
// the first reference. Interning a new name creates a var with a nil root.
func (ns *Namespace) Intern(name string) *Var {
	if v, ok := ns.vars[name]; ok {
		return v
	}
	v := newVar(ns, name)
	ns.vars[name] = v
	return v
}

// Lookup resolves name within this namespace only: locally interned vars
// first, then referred vars. It does not consult aliases (those are
// resolved by the qualified `ns/name` path in Registry.Resolve) or the
// implicitly-referred core namespace (Registry's job).
func (ns *Namespace) Lookup(name string) (*Var, bool) {
	if v, ok := ns.vars[name]; ok {
		return v, true
	}
	if v, ok := ns.refers[name]; ok {
		return v, true
	}
	return nil, false
}

// Refer makes other's public var for name resolvable, unqualified, from
// this namespace — the mechanism `:require ... :refer` and "the core
// namespace is implicitly referred into every new namespace both use.
func (ns *Namespace) Refer(name string, v *Var) { ns.refers[name] = v }

// ReferAll refers every var currently interned in other — used for the
// "implicitly referred core namespace" rule and bare `:require` without an
// explicit :refer list.
func (ns *Namespace) ReferAll(other *Namespace) {
	for name, v := range other.vars {
		ns.refers[name] = v
	}
}

// Alias records short -> other, so `short/sym` resolves through Registry.
func (ns *Namespace) Alias(short string, other *Namespace) { ns.aliases[short] = other }

func (ns *Namespace) ResolveAlias(short string) (*Namespace, bool) {
	n, ok := ns.aliases[short]
	return n, ok
}

// Names returns every locally interned var name plus every referred name,
// sorted, for error-message
// suggestion lookups (errors.Suggestion) and REPL introspection.
func (ns *Namespace) Names() []string {
	out := make([]string, 0, len(ns.vars)+len(ns.refers))
	for name := range ns.vars {
		out = append(out, name)
	}
	for name := range ns.refers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Vars returns every var interned directly in this namespace (not
// referred), for GC root collection.
func (ns *Namespace) Vars() []*Var {
	out := make([]*Var, 0, len(ns.vars))
	for _, v := range ns.vars {
		out = append(out, v)
	}
	return out
}

// Registry is the global, process-lifetime namespace directory: the set of
// namespaces is process-global. It, like Namespace and Var, lives
// in the infrastructure arena and is never itself GC'd; CollectRoots walks
// it to find every Value root the GC heap must trace.
type Registry struct {
	namespaces map[string]*Namespace
	current    *Namespace
	coreName   string
	Heap       *gc.Heap
	Interner   *value.Interner
	Hierarchy  *Hierarchy
	Bindings   *Bindings
	Taps       []value.Value
}

func NewRegistry(coreName string, heap *gc.Heap, interner *value.Interner) *Registry {
	r := &Registry{
		namespaces: map[string]*Namespace{},
		coreName:   coreName,
		Heap:       heap,
		Interner:   interner,
		Hierarchy:  NewHierarchy(heap),
		Bindings:   NewBindings(),
	}
	core := r.FindOrCreate(coreName)
	r.current = core
	return r
}

// FindOrCreate returns the namespace named name, creating it (and
// implicitly referring the core namespace into it) if absent.
func (r *Registry) FindOrCreate(name string) *Namespace {
	if ns, ok := r.namespaces[name]; ok {
		return ns
	}
	ns := newNamespace(name)
	r.namespaces[name] = ns
	if core, ok := r.namespaces[r.coreName]; ok && name != r.coreName {
		ns.ReferAll(core)
	}
	return ns
}

func (r *Registry) Find(name string) (*Namespace, bool) {
	ns, ok := r.namespaces[name]
	return ns, ok
}

func (r *Registry) Current() *Namespace { return r.current }

func (r *Registry) SetCurrent(ns *Namespace) { r.current = ns }

// Resolve looks up a (possibly namespace-qualified) symbol against the
// current namespace per the scope-resolution order: local scopes are
// the analyzer's job; this handles "current namespace, then referred vars,
// then [if ns is an alias] the aliased namespace, then the global core
// namespace" for `ns/name` and bare `name` forms alike.
func (r *Registry) Resolve(ns, name string) (*Var, bool) {
	if ns != "" {
		if target, ok := r.namespaces[ns]; ok {
			return target.Lookup(name)
		}
		if target, ok := r.current.ResolveAlias(ns); ok {
			return target.Lookup(name)
		}
		return nil, false
	}
	if v, ok := r.current.Lookup(name); ok {
		return v, true
	}
	if core, ok := r.namespaces[r.coreName]; ok && core != r.current {
		if v, ok := core.Lookup(name); ok {
			return v, true
		}
	}
	return nil, false
}

// Namespaces returns every namespace, for GC root collection and
// introspection builtins.
func (r *Registry) Namespaces() []*Namespace {
	out := make([]*Namespace, 0, len(r.namespaces))
	for _, ns := range r.namespaces {
		out = append(out, ns)
	}
	return out
}
