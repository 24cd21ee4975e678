package kaleido

import (
	"fmt"
	"io"
	"os"
	"strings"

	"nickandperla.net/kaleido/internal/eval"
)

// Runtime is the kaleido compiler and execution engine.
type Runtime struct {
	evaluator    *eval.Evaluator
	store        Store
	outputWriter func(text string) error
	diag         io.Writer
	prelude      string // custom prelude source (if empty, uses DefaultPrelude)
	noPrelude    bool
	persistMode  PersistMode
	dumpIR       bool
	optimize     bool
	maxDepth     int
	setupErr     error
}

// New creates a runtime, loads the prelude and restores the definitions
// held by the store.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{optimize: true}
	for _, opt := range opts {
		opt(r)
	}
	if r.setupErr != nil {
		r.closeStore()
		return nil, r.setupErr
	}

	evalOpts := []eval.Option{
		eval.WithPersistMode(r.persistMode),
		eval.WithDumpIR(r.dumpIR),
		eval.WithOptimize(r.optimize),
		eval.WithMaxDepth(r.maxDepth),
	}
	if r.store != nil {
		evalOpts = append(evalOpts, eval.WithStore(r.store))
	}
	if r.outputWriter != nil {
		evalOpts = append(evalOpts, eval.WithOutputWriter(r.outputWriter))
	}
	if r.diag != nil {
		evalOpts = append(evalOpts, eval.WithDiagnostics(r.diag))
	}
	r.evaluator = eval.New(evalOpts...)

	if !r.noPrelude {
		prelude := r.prelude
		if prelude == "" {
			prelude = DefaultPrelude
		}
		if err := r.load(prelude, "prelude"); err != nil {
			r.closeStore()
			return nil, err
		}
	}

	if _, err := r.evaluator.Restore(); err != nil {
		r.closeStore()
		return nil, fmt.Errorf("restoring definitions: %w", err)
	}
	return r, nil
}

// load runs src in load-only mode and fails on the first unit error.
func (r *Runtime) load(src, what string) error {
	outcomes, err := r.evaluator.LoadReader(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			return fmt.Errorf("%s: %w", what, o.Err)
		}
	}
	return nil
}

// Eval evaluates kaleido source. Unit errors are reported on the
// diagnostics writer and recorded in the outcomes.
func (r *Runtime) Eval(input string) ([]Outcome, error) {
	return r.evaluator.Eval(input)
}

// EvalReader evaluates kaleido from a reader.
func (r *Runtime) EvalReader(reader io.Reader) ([]Outcome, error) {
	return r.evaluator.EvalReader(reader)
}

// EvalFile evaluates a kaleido file.
func (r *Runtime) EvalFile(path string) ([]Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return r.EvalReader(f)
}

// LoadReader loads definitions and externs without running top-level
// expressions.
func (r *Runtime) LoadReader(reader io.Reader) ([]Outcome, error) {
	return r.evaluator.LoadReader(reader)
}

// LoadFile loads definitions from a file in load-only mode.
func (r *Runtime) LoadFile(path string) ([]Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return r.LoadReader(f)
}

// Incomplete reports whether src stops in the middle of a unit.
func (r *Runtime) Incomplete(src string) bool {
	return r.evaluator.Incomplete(src)
}

// Persist writes one definition to the store.
func (r *Runtime) Persist(name string) error {
	return r.evaluator.Persist(name)
}

// PersistAll writes every definition of the session to the store.
func (r *Runtime) PersistAll() error {
	return r.evaluator.PersistAll()
}

// Forget removes a definition from the session and the store.
func (r *Runtime) Forget(name string) error {
	return r.evaluator.Forget(name)
}

// History returns the stored versions of a definition, newest first.
func (r *Runtime) History(name string) ([]VersionEntry, error) {
	return r.evaluator.History(name)
}

// Operators lists the binary operator table, lowest precedence first.
func (r *Runtime) Operators() []Operator {
	return r.evaluator.Operators()
}

// Definitions lists the session's definitions and externs in order.
func (r *Runtime) Definitions() []Definition {
	return r.evaluator.Definitions()
}

// PersistMode returns the current persistence mode.
func (r *Runtime) PersistMode() PersistMode {
	return r.evaluator.PersistMode()
}

// Close releases resources.
func (r *Runtime) Close() error {
	return r.closeStore()
}

func (r *Runtime) closeStore() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}
