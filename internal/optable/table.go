// Package optable holds the binary operator precedence table shared by the
// parser and the code generator.
package optable

import "sort"

const (
	// MinPrecedence and MaxPrecedence bound a user-declared precedence.
	MinPrecedence = 1
	MaxPrecedence = 100
	// DefaultPrecedence applies when a binary operator declares none.
	DefaultPrecedence = 30

	// NotAnOperator is returned for characters without an entry.
	NotAnOperator = -1
)

// Table maps an operator character to its precedence. It is mutated when a
// user-defined binary operator is generated and read on every precedence
// decision made by the parser. It is not safe for concurrent use.
type Table struct {
	prec map[rune]int
}

// New returns a table seeded with the built-in operators.
func New() *Table {
	return &Table{
		prec: map[rune]int{
			'=': 2,
			'<': 10,
			'+': 20,
			'-': 20,
			'*': 40,
		},
	}
}

// Precedence returns the precedence of ch, or NotAnOperator.
func (t *Table) Precedence(ch rune) int {
	if ch >= 0x80 {
		return NotAnOperator
	}
	p, ok := t.prec[ch]
	if !ok || p <= 0 {
		return NotAnOperator
	}
	return p
}

// Set registers ch with precedence prec and returns the previous entry so the
// caller can undo the registration.
func (t *Table) Set(ch rune, prec int) (prev int, existed bool) {
	prev, existed = t.prec[ch]
	t.prec[ch] = prec
	return prev, existed
}

// Restore undoes a Set using the values it returned.
func (t *Table) Restore(ch rune, prev int, existed bool) {
	if existed {
		t.prec[ch] = prev
		return
	}
	delete(t.prec, ch)
}

// Delete removes ch from the table.
func (t *Table) Delete(ch rune) {
	delete(t.prec, ch)
}

// Builtin reports whether ch is one of the operators the backend implements
// directly.
func Builtin(ch rune) bool {
	switch ch {
	case '+', '-', '*', '<':
		return true
	}
	return false
}

// Entry is one row of a table snapshot.
type Entry struct {
	Op         rune
	Precedence int
}

// Snapshot lists the table ordered by precedence, then character.
func (t *Table) Snapshot() []Entry {
	entries := make([]Entry, 0, len(t.prec))
	for ch, p := range t.prec {
		entries = append(entries, Entry{Op: ch, Precedence: p})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Precedence != entries[j].Precedence {
			return entries[i].Precedence < entries[j].Precedence
		}
		return entries[i].Op < entries[j].Op
	})
	return entries
}
