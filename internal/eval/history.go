// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"fmt"
	"strings"

	"nickandperla.net/kaleido/internal/optable"
	"nickandperla.net/kaleido/internal/store"
)

// Persist writes the named definition to the store. It is a no-op in
// PersistNever and PersistAlways mode, where there is nothing left to do.
func (e *Evaluator) Persist(name string) error {
	if e.persistMode == PersistNever || e.persistMode == PersistAlways {
		return nil
	}
	if e.store == nil {
		return ErrNoStore
	}
	d, ok := e.namespace.Get(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownDefinition, name)
	}
	return e.store.Put(d)
}

// PersistAll writes every definition of the session to the store.
func (e *Evaluator) PersistAll() error {
	if e.persistMode == PersistNever || e.persistMode == PersistAlways {
		return nil
	}
	if e.store == nil {
		return ErrNoStore
	}
	for _, d := range e.namespace.List() {
		if err := e.store.Put(d); err != nil {
			return err
		}
	}
	return nil
}

// Forget removes a definition from the session and from the store. Code
// already generated against it fails with an unresolved symbol when run.
func (e *Evaluator) Forget(name string) error {
	d, ok := e.namespace.Get(name)
	if !ok {
		return e.forgetStored(name)
	}
	if h, ok := e.namespace.Handle(name); ok {
		if err := e.engine.RemoveModule(h); err != nil {
			return err
		}
	}
	if p, ok := e.gen.Prototype(name); ok && p.IsBinaryOp() && !optable.Builtin(p.OperatorName()) {
		e.ops.Delete(p.OperatorName())
	}
	e.gen.Forget(name)
	e.namespace.Delete(name)

	if e.store != nil && e.persistMode != PersistNever {
		return e.store.Delete(d.Name)
	}
	return nil
}

// forgetStored deletes a definition that is stored but was never loaded
// into the session, such as one that failed to compile on Restore.
func (e *Evaluator) forgetStored(name string) error {
	if e.store == nil || e.persistMode == PersistNever {
		return fmt.Errorf("%w %q", ErrUnknownDefinition, name)
	}
	d, err := e.store.Get(name)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("%w %q", ErrUnknownDefinition, name)
	}
	return e.store.Delete(name)
}

// Restore loads every stored definition in sequence order. Definitions
// the session already holds with the same source, such as the prelude, are
// skipped. It returns the outcome of each unit it loaded.
func (e *Evaluator) Restore() ([]Outcome, error) {
	if e.store == nil {
		return nil, nil
	}
	defs, err := e.store.List()
	if err != nil {
		return nil, err
	}

	e.restoring = true
	defer func() { e.restoring = false }()

	var outcomes []Outcome
	for _, d := range defs {
		if cur, ok := e.namespace.Get(d.Name); ok && cur.Source == d.Source {
			continue
		}
		got, err := e.LoadReader(strings.NewReader(d.Source))
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, got...)
	}
	return outcomes, nil
}

// History returns the stored versions of name, newest first.
func (e *Evaluator) History(name string) ([]store.VersionEntry, error) {
	hs := historyStore(e)
	if hs == nil {
		return nil, ErrNoStore
	}
	return hs.GetHistory(name, e.historyLimit)
}

// historyStore type-asserts the evaluator's store to HistoryStore.
func historyStore(e *Evaluator) store.HistoryStore {
	if e.store == nil {
		return nil
	}
	hs, _ := e.store.(store.HistoryStore)
	return hs
}
