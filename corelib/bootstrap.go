package corelib

import (
	_ "embed"

	"github.com/emberlang/ember/analyzer"
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/errors"
	"github.com/emberlang/ember/gc"
	"github.com/emberlang/ember/reader"
	"github.com/emberlang/ember/treewalk"
	"github.com/emberlang/ember/value"
)

//go:embed bootstrap.ember
var bootstrapSource string

// Install registers every native built-in into registry's core namespace,
// then loads bootstrap.ember through interp (the tree-walking oracle) to
// layer the macro-defined standard library (defn, cond, ->, binding, ...)
// on top. interp.Registry must equal registry; the same heap and interner
// back both the native table and the bootstrap evaluation.
func Install(registry *env.Registry, heap *gc.Heap, interner *value.Interner, interp *treewalk.Interp) error {
	Build(registry, heap, interner, interp.Apply)
	return loadBootstrap(registry, heap, interner, interp)
}

func loadBootstrap(registry *env.Registry, heap *gc.Heap, interner *value.Interner, interp *treewalk.Interp) error {
	symGen := 0
	rd := reader.New(bootstrapSource, "bootstrap.ember", heap, interner, &symGen)
	forms, err := rd.ReadAll()
	if err != nil {
		return errors.Wrap(err, errors.InvalidString, errors.PhaseParse, errors.Pos{}, "reading bootstrap source")
	}
	an := analyzer.New(registry, heap, interner, interp.Apply, rd.PosOf)
	for _, form := range forms {
		node, err := an.Analyze(form)
		if err != nil {
			return err
		}
		frame := &treewalk.Frame{Locals: make([]value.Value, an.TopLocalsCount())}
		interp.PushFrame(frame)
		_, err = interp.Eval(node, frame)
		interp.PopFrame()
		if err != nil {
			return err
		}
	}
	return nil
}
