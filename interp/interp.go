// Package interp is the embedding API: the one entry point a CLI front
// end, a REPL loop, or an nREPL server builds against (§6 — each of those
// is a documented non-goal here, specified only by the interface it
// consumes). It owns interpreter construction (heap, registry, core
// library installation), source evaluation against a named namespace on
// either back end, external builtin registration, and the
// compiler/VM-vs-tree-walker comparison harness that is the primary way
// back-end drift gets caught (§9).
package interp

import (
	"bytes"
	"io"
	"os"

	"github.com/emberlang/ember/analyzer"
	"github.com/emberlang/ember/compiler"
	"github.com/emberlang/ember/corelib"
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/reader"
	"github.com/emberlang/ember/treewalk"
	"github.com/emberlang/ember/value"
	"github.com/emberlang/ember/vm"
)

// Backend selects which evaluator runs a given Eval call's Nodes.
type Backend int

const (
	// Treewalk is the oracle back end: a direct recursive walk, no
	// compile step. Kept as the default since it is the simpler,
	// more-trusted of the two (treewalk package doc).
	Treewalk Backend = iota
	// VM compiles to bytecode and runs it on the stack machine.
	VM
)

// Options configures a new Interpreter. Every field is optional; the zero
// value is a usable default (core namespace "ember.core", a 1MiB GC
// trigger threshold, the tree-walking back end, real os.Stdout/Stderr).
type Options struct {
	CoreName      string
	HeapThreshold int64
	Backend       Backend
	Stdout        io.Writer
	Stderr        io.Writer
}

// Interpreter is one self-contained Ember runtime: its own heap, namespace
// registry, and both back ends, sharing the same GC-tracked arena so a
// Value built by one back end is valid input to the other (EvalCompare's
// whole premise).
type Interpreter struct {
	Registry *env.Registry
	Heap     *gc.Heap
	Interner *value.Interner

	tree    *treewalk.Interp
	machine *vm.VM
	an      *analyzer.Analyzer

	backend Backend
	symGen  int
	stdout  io.Writer
	stderr  io.Writer
}

// New builds an Interpreter: allocates the heap, creates the namespace
// registry with its core namespace, and installs corelib's native
// built-ins plus the bootstrap.ember-defined standard library — mirroring
// the teacher's own New/Options/Eval embedding surface almost clause for
// clause (DESIGN.md).
func New(opts Options) (*Interpreter, error) {
	coreName := opts.CoreName
	if coreName == "" {
		coreName = "ember.core"
	}
	heap := gc.NewHeap(opts.HeapThreshold)
	interner := value.NewInterner()
	registry := env.NewRegistry(coreName, heap, interner)

	it := &Interpreter{
		Registry: registry,
		Heap:     heap,
		Interner: interner,
		tree:     treewalk.New(registry, heap),
		machine:  vm.New(registry, heap),
		backend:  opts.Backend,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
	}
	if it.stdout == nil {
		it.stdout = os.Stdout
	}
	if it.stderr == nil {
		it.stderr = os.Stderr
	}
	// Macro expansion always runs through the tree-walking back end,
	// regardless of which back end later executes the expanded code: a
	// macro is invoked at analysis time, before compiler.CompileTop or
	// vm.VM even exist for this form, the same way corelib's own
	// bootstrap.ember load only ever uses treewalk.Interp.
	it.an = analyzer.New(registry, heap, interner, it.tree.Apply, nil)

	if err := corelib.Install(registry, heap, interner, it.tree); err != nil {
		return nil, err
	}
	return it, nil
}

// SetCurrentNamespace switches the namespace subsequent Eval calls default
// to resolving and def'ing into, creating it (with the core namespace
// implicitly referred in) if it does not yet exist.
func (it *Interpreter) SetCurrentNamespace(name string) {
	it.Registry.SetCurrent(it.Registry.FindOrCreate(name))
}

// RegisterBuiltin installs an external native function as a var named name
// in namespace ns, creating ns if absent — the embedding API's hook for a
// host program to expose its own functions to Ember source.
func (it *Interpreter) RegisterBuiltin(ns, name string, fn value.BuiltinFunc) {
	target := it.Registry.FindOrCreate(ns)
	v := target.Intern(name)
	_ = v.Set(value.NewBuiltinFn(it.Heap, name, fn))
}

// Eval reads every form in source, analyzes and evaluates each in turn
// against namespace ns (created if absent), on the Interpreter's
// configured Backend, and returns the last form's value. A read, analysis,
// or evaluation failure on any form aborts immediately with a structured
// *errors.Error; forms before the failure keep whatever effect they already
// had (def'd vars, printed output), matching every back end's own
// single-pass, no-rollback evaluation model.
func (it *Interpreter) Eval(source, ns string) (value.Value, error) {
	return it.evalOn(source, ns, it.backend)
}

func (it *Interpreter) evalOn(source, ns string, backend Backend) (value.Value, error) {
	target := it.Registry.FindOrCreate(ns)
	prev := it.Registry.Current()
	it.Registry.SetCurrent(target)
	defer it.Registry.SetCurrent(prev)

	forms, err := it.read(source)
	if err != nil {
		return value.Nil, err
	}
	result := value.Nil
	for _, form := range forms {
		node, err := it.an.Analyze(form)
		if err != nil {
			return value.Nil, err
		}
		v, err := it.runNode(backend, node)
		if err != nil {
			return value.Nil, err
		}
		result = v
		// Expression boundary between top-level forms: the documented
		// safe point (gc.Heap.ShouldCollect's doc comment) at which either
		// back end may trigger a collection.
		if it.Heap.ShouldCollect() {
			it.Heap.Collect(it.Registry.CollectRoots())
		}
	}
	return result, nil
}

func (it *Interpreter) read(source string) ([]value.Value, error) {
	rd := reader.New(source, "<eval>", it.Heap, it.Interner, &it.symGen)
	it.an.PosOf = rd.PosOf
	return rd.ReadAll()
}

func (it *Interpreter) runNode(backend Backend, node *analyzer.Node) (value.Value, error) {
	switch backend {
	case VM:
		proto := compiler.CompileTop(node, it.an.TopLocalsCount())
		return it.withCapturedStdout(func() (value.Value, error) {
			return it.machine.RunTop(proto)
		})
	default:
		frame := &treewalk.Frame{Locals: make([]value.Value, it.an.TopLocalsCount())}
		it.tree.PushFrame(frame)
		defer it.tree.PopFrame()
		return it.withCapturedStdout(func() (value.Value, error) {
			return it.tree.Eval(node, frame)
		})
	}
}

// withCapturedStdout redirects the process-wide os.Stdout into it.stdout
// for the duration of run, when it.stdout isn't already os.Stdout —
// corelib's print/println builtins write to fmt.Print's default writer
// directly, so this is the only seam available for the embedding API's
// "optionally capturing standard output into a buffer" requirement without
// threading an io.Writer through every builtin call.
func (it *Interpreter) withCapturedStdout(run func() (value.Value, error)) (value.Value, error) {
	if it.stdout == os.Stdout {
		return run()
	}
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return run()
	}
	os.Stdout = w
	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		io.Copy(&buf, r)
		close(done)
	}()
	v, runErr := run()
	os.Stdout = origStdout
	w.Close()
	<-done
	it.stdout.Write(buf.Bytes())
	return v, runErr
}
