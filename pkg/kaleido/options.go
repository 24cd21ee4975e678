// Package kaleido provides the public API of the kaleido compiler and JIT.
package kaleido

import (
	"io"
	"os"

	"nickandperla.net/kaleido/internal/config"
	"nickandperla.net/kaleido/internal/eval"
	"nickandperla.net/kaleido/internal/optable"
	"nickandperla.net/kaleido/internal/store"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithSQLiteStore configures SQLite persistence at the given path. An open
// failure is reported by New.
func WithSQLiteStore(path string) Option {
	return func(r *Runtime) {
		s, err := store.NewSQLite(path)
		if err != nil {
			r.setupErr = err
			return
		}
		r.store = s
	}
}

// WithMemoryStore configures an in-memory store (for testing).
func WithMemoryStore() Option {
	return func(r *Runtime) {
		r.store = store.NewMemory()
	}
}

// WithStore uses a caller-provided store. Close closes it.
func WithStore(s Store) Option {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithOutputWriter sets the writer for program output.
func WithOutputWriter(writer func(text string) error) Option {
	return func(r *Runtime) {
		r.outputWriter = writer
	}
}

// WithOutput sets the io.Writer for program output.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) {
		r.outputWriter = func(text string) error {
			_, err := w.Write([]byte(text))
			return err
		}
	}
}

// WithDiagnostics sets where errors and IR dumps are written.
func WithDiagnostics(w io.Writer) Option {
	return func(r *Runtime) {
		r.diag = w
	}
}

// WithPrelude sets a custom prelude source to be loaded on startup.
// If not set, DefaultPrelude is used.
func WithPrelude(source string) Option {
	return func(r *Runtime) {
		r.prelude = source
	}
}

// WithNoPrelude disables loading the prelude.
func WithNoPrelude() Option {
	return func(r *Runtime) {
		r.noPrelude = true
	}
}

// WithDumpIR prints the IR of every generated unit.
func WithDumpIR(on bool) Option {
	return func(r *Runtime) {
		r.dumpIR = on
	}
}

// WithOptimize toggles the IR optimizer. It is on by default.
func WithOptimize(on bool) Option {
	return func(r *Runtime) {
		r.optimize = on
	}
}

// WithMaxCallDepth bounds the call depth of executed code.
func WithMaxCallDepth(n int) Option {
	return func(r *Runtime) {
		r.maxDepth = n
	}
}

// WithConfig applies a loaded config file. Options given after it
// override its values.
func WithConfig(cfg *config.Config) Option {
	return func(r *Runtime) {
		if cfg.Database != "" {
			WithSQLiteStore(cfg.Database)(r)
		}
		if mode, ok := ParsePersistMode(cfg.PersistMode); ok {
			r.persistMode = mode
		}
		r.noPrelude = !cfg.Prelude
		if cfg.PreludeFile != "" {
			src, err := os.ReadFile(cfg.PreludeFile)
			if err != nil {
				r.setupErr = err
				return
			}
			r.prelude = string(src)
		}
		r.optimize = cfg.Optimize
		r.dumpIR = cfg.DumpIR
		r.maxDepth = cfg.MaxCallDepth
	}
}

// Store interface for custom stores.
type Store = store.Store

// Definition is a stored def or extern.
type Definition = store.Definition

// VersionEntry is one stored version of a definition.
type VersionEntry = store.VersionEntry

// Outcome describes one processed top-level unit.
type Outcome = eval.Outcome

// Operator is one row of the operator precedence table.
type Operator = optable.Entry

// PersistMode controls when definitions are persisted.
type PersistMode = eval.PersistMode

// Persist mode constants.
const (
	PersistOnDemand = eval.PersistOnDemand
	PersistAlways   = eval.PersistAlways
	PersistNever    = eval.PersistNever
)

// ParsePersistMode parses a string into a PersistMode.
func ParsePersistMode(s string) (PersistMode, bool) {
	return eval.ParsePersistMode(s)
}

// WithPersistMode sets the persistence mode.
func WithPersistMode(mode PersistMode) Option {
	return func(r *Runtime) {
		r.persistMode = mode
	}
}
