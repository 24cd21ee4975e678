package parser

import (
	"errors"
	"fmt"
)

// Error is a parse failure: a malformed token sequence, a missing delimiter,
// an operator arity mismatch or a bad precedence literal.
type Error struct {
	Line int
	Msg  string
	// Incomplete is set when the failure happened at end of input, meaning
	// more text could still turn the unit into a valid one.
	Incomplete bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// IsIncomplete reports whether err is a parse error caused by running out of
// input.
func IsIncomplete(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Incomplete
}
