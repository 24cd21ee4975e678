package codegen

import "nickandperla.net/kaleido/internal/ir"

type shadowed struct {
	name string
	prev *ir.Value
	had  bool
}

// Scope maps variable names to stack slots. Bindings introduced by nested
// constructs are recorded in an undo log so that Unwind can restore the
// exact state seen at a Mark.
type Scope struct {
	vars map[string]*ir.Value
	log  []shadowed
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]*ir.Value)}
}

// Lookup returns the slot bound to name.
func (s *Scope) Lookup(name string) (*ir.Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Shadow binds name to slot, remembering the previous binding.
func (s *Scope) Shadow(name string, slot *ir.Value) {
	prev, had := s.vars[name]
	s.log = append(s.log, shadowed{name: name, prev: prev, had: had})
	s.vars[name] = slot
}

// Mark returns a position in the undo log for a later Unwind.
func (s *Scope) Mark() int {
	return len(s.log)
}

// Unwind undoes every Shadow made since mark, newest first.
func (s *Scope) Unwind(mark int) {
	for i := len(s.log) - 1; i >= mark; i-- {
		e := s.log[i]
		if e.had {
			s.vars[e.name] = e.prev
		} else {
			delete(s.vars, e.name)
		}
	}
	s.log = s.log[:mark]
}

// Clear drops every binding.
func (s *Scope) Clear() {
	clear(s.vars)
	s.log = s.log[:0]
}

// Len returns the number of visible names.
func (s *Scope) Len() int {
	return len(s.vars)
}
