// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package eval implements the kaleido top-level driver loop.
package eval

import (
	"sort"
	"sync"

	"nickandperla.net/kaleido/internal/jit"
	"nickandperla.net/kaleido/internal/store"
)

// Namespace is a thread-safe record of the definitions and externs made in
// a session, with the engine module that carries each definition's body.
type Namespace struct {
	mu      sync.RWMutex
	defs    map[string]store.Definition
	handles map[string]jit.Handle
}

// NewNamespace creates a new empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{
		defs:    make(map[string]store.Definition),
		handles: make(map[string]jit.Handle),
	}
}

// Get retrieves a definition by name.
func (n *Namespace) Get(name string) (store.Definition, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	d, ok := n.defs[name]
	return d, ok
}

// Set records a definition. h is the module holding its body; externs pass
// the zero handle.
func (n *Namespace) Set(d store.Definition, h jit.Handle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.defs[d.Name] = d
	if h != 0 {
		n.handles[d.Name] = h
	} else {
		delete(n.handles, d.Name)
	}
}

// Handle returns the module handle of a definition.
func (n *Namespace) Handle(name string) (jit.Handle, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	h, ok := n.handles[name]
	return h, ok
}

// Delete removes a name from the namespace.
func (n *Namespace) Delete(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.defs, name)
	delete(n.handles, name)
}

// List returns every definition in the order it was made.
func (n *Namespace) List() []store.Definition {
	n.mu.RLock()
	defer n.mu.RUnlock()
	defs := make([]store.Definition, 0, len(n.defs))
	for _, d := range n.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Seq < defs[j].Seq })
	return defs
}
