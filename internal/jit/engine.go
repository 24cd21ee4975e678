// Package jit executes IR modules. Modules are added and removed as units;
// calls between modules and to host functions are resolved by name when
// they execute.
package jit

import (
	"errors"
	"fmt"
	"io"
	"os"

	"nickandperla.net/kaleido/internal/ir"
)

// DefaultMaxDepth bounds nested calls when no WithMaxDepth option is given.
const DefaultMaxDepth = 10000

var (
	// ErrUnresolved is returned when a call names no added definition and no
	// host function.
	ErrUnresolved = errors.New("unresolved external symbol")
	// ErrMaxDepth is returned when nested calls exceed the depth limit.
	ErrMaxDepth = errors.New("maximum call depth exceeded")
	// ErrDuplicate is returned by AddModule when a definition is already
	// provided by another added module.
	ErrDuplicate = errors.New("duplicate definition of symbol")
	// ErrUnknownHandle is returned when removing a module that is not loaded.
	ErrUnknownHandle = errors.New("unknown module handle")
)

// Handle identifies an added module.
type Handle int

// HostFunc is a function implemented in Go and callable from kaleido code.
type HostFunc func(args []float64) (float64, error)

type host struct {
	arity int
	fn    HostFunc
}

type loaded struct {
	handle Handle
	mod    *ir.Module
}

// Engine owns the added modules and the host symbol table. It is not safe
// for concurrent use.
type Engine struct {
	modules  []loaded
	next     Handle
	hosts    map[string]host
	out      io.Writer
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutput sets the writer used by putchard and printd.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.out = w
	}
}

// WithMaxDepth sets the maximum nesting of calls.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// New creates an engine with the standard host functions registered.
func New(opts ...Option) *Engine {
	e := &Engine{
		hosts:    make(map[string]host),
		out:      os.Stdout,
		maxDepth: DefaultMaxDepth,
		next:     1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registerBuiltins()
	return e
}

// RegisterHost makes fn callable under name with the given arity. A later
// registration under the same name replaces the earlier one.
func (e *Engine) RegisterHost(name string, arity int, fn HostFunc) {
	e.hosts[name] = host{arity: arity, fn: fn}
}

// AddModule makes every function defined in m callable. The module must not
// redefine a function another loaded module already defines.
func (e *Engine) AddModule(m *ir.Module) (Handle, error) {
	for _, f := range m.Functions() {
		if f.Empty() {
			continue
		}
		if e.Defined(f.Name) {
			return 0, fmt.Errorf("%w %q", ErrDuplicate, f.Name)
		}
		if err := ir.Verify(f); err != nil {
			return 0, err
		}
	}
	h := e.next
	e.next++
	e.modules = append(e.modules, loaded{handle: h, mod: m})
	return h, nil
}

// RemoveModule unloads the module added under h.
func (e *Engine) RemoveModule(h Handle) error {
	for i, l := range e.modules {
		if l.handle == h {
			e.modules = append(e.modules[:i], e.modules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w %d", ErrUnknownHandle, h)
}

// Defined reports whether a loaded module defines name.
func (e *Engine) Defined(name string) bool {
	_, ok := e.Lookup(name)
	return ok
}

// Lookup returns the definition of name from the most recently added module
// that has one.
func (e *Engine) Lookup(name string) (*ir.Function, bool) {
	for i := len(e.modules) - 1; i >= 0; i-- {
		if f := e.modules[i].mod.Function(name); f != nil && !f.Empty() {
			return f, true
		}
	}
	return nil, false
}

// Run calls the zero-argument function name.
func (e *Engine) Run(name string) (float64, error) {
	return e.Call(name)
}

// Call resolves name and calls it with args.
func (e *Engine) Call(name string, args ...float64) (float64, error) {
	return e.invoke(name, args, 0)
}

func (e *Engine) invoke(name string, args []float64, depth int) (float64, error) {
	if f, ok := e.Lookup(name); ok {
		if len(f.Params) != len(args) {
			return 0, fmt.Errorf("symbol %q takes %d arguments, called with %d", name, len(f.Params), len(args))
		}
		return e.exec(f, args, depth)
	}
	if h, ok := e.hosts[name]; ok {
		if h.arity != len(args) {
			return 0, fmt.Errorf("symbol %q takes %d arguments, called with %d", name, h.arity, len(args))
		}
		return h.fn(args)
	}
	return 0, fmt.Errorf("%w %q", ErrUnresolved, name)
}
