package codegen

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownVariable = errors.New("unknown variable name")
	ErrUnknownUnary    = errors.New("unknown unary operator")
	ErrUnknownBinary   = errors.New("unknown binary operator")
	ErrUnknownFunction = errors.New("unknown function referenced")
	ErrArgCount        = errors.New("incorrect number of arguments passed")
	ErrAssignTarget    = errors.New("destination of '=' must be a variable")
	ErrRedefinition    = errors.New("function cannot be redefined")
	ErrVerify          = errors.New("code generation failed")
)

// GenError is a failure to generate one top-level unit. Unit is the name of
// the function being generated, empty for top-level expressions.
type GenError struct {
	Unit string
	Err  error
}

func (e *GenError) Error() string {
	if e.Unit == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("in %s: %v", e.Unit, e.Err)
}

func (e *GenError) Unwrap() error {
	return e.Err
}
