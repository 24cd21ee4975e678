// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package ast defines the kaleido syntax tree.
//
// Every node renders itself back to source text with String. Binary
// expressions are fully parenthesised and if/for/var constructs are wrapped
// in parentheses, so parsing the rendering yields the same tree regardless
// of the operator table in effect.
package ast

import (
	"strconv"
	"strings"
)

// Expr is implemented by every expression node.
type Expr interface {
	exprNode()
	String() string
}

// Number is a numeric literal.
type Number struct {
	Value float64
}

func (*Number) exprNode() {}
func (n *Number) String() string {
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// Variable is a reference to a named slot.
type Variable struct {
	Name string
}

func (*Variable) exprNode()        {}
func (v *Variable) String() string { return v.Name }

// Unary is a prefix operator application. The operator is resolved at code
// generation time as the function "unary"+Op.
type Unary struct {
	Op      rune
	Operand Expr
}

func (*Unary) exprNode() {}
func (u *Unary) String() string {
	return string(u.Op) + u.Operand.String()
}

// Binary is an infix operator application. Op '=' is assignment.
type Binary struct {
	Op  rune
	LHS Expr
	RHS Expr
}

func (*Binary) exprNode() {}
func (b *Binary) String() string {
	return "(" + b.LHS.String() + " " + string(b.Op) + " " + b.RHS.String() + ")"
}

// Call is a function call by name.
type Call struct {
	Callee string
	Args   []Expr
}

func (*Call) exprNode() {}
func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Callee + "(" + strings.Join(args, ", ") + ")"
}

// If is if/then/else; all three parts are required.
type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (*If) exprNode() {}
func (i *If) String() string {
	return "(if " + i.Cond.String() + " then " + i.Then.String() + " else " + i.Else.String() + ")"
}

// For is a counted loop. Step is nil when omitted.
type For struct {
	Var   string
	Start Expr
	End   Expr
	Step  Expr
	Body  Expr
}

func (*For) exprNode() {}
func (f *For) String() string {
	var sb strings.Builder
	sb.WriteString("(for ")
	sb.WriteString(f.Var)
	sb.WriteString(" = ")
	sb.WriteString(f.Start.String())
	sb.WriteString(", ")
	sb.WriteString(f.End.String())
	if f.Step != nil {
		sb.WriteString(", ")
		sb.WriteString(f.Step.String())
	}
	sb.WriteString(" in ")
	sb.WriteString(f.Body.String())
	sb.WriteString(")")
	return sb.String()
}

// Binding is one name introduced by a var expression. Init is nil when the
// variable defaults to 0.
type Binding struct {
	Name string
	Init Expr
}

// Var introduces local mutable variables visible in Body.
type Var struct {
	Bindings []Binding
	Body     Expr
}

func (*Var) exprNode() {}
func (v *Var) String() string {
	parts := make([]string, len(v.Bindings))
	for i, b := range v.Bindings {
		if b.Init != nil {
			parts[i] = b.Name + " = " + b.Init.String()
		} else {
			parts[i] = b.Name
		}
	}
	return "(var " + strings.Join(parts, ", ") + " in " + v.Body.String() + ")"
}

// OpKind tells ordinary functions from operator definitions.
type OpKind int

const (
	NotOperator OpKind = iota
	UnaryOperator
	BinaryOperator
)

// Prototype is a function signature: its name, parameter names and, for
// operator definitions, the operator kind and precedence.
type Prototype struct {
	Name       string
	Params     []string
	Kind       OpKind
	Precedence int
}

// IsUnaryOp reports whether the prototype defines a prefix operator.
func (p *Prototype) IsUnaryOp() bool { return p.Kind == UnaryOperator && len(p.Params) == 1 }

// IsBinaryOp reports whether the prototype defines an infix operator.
func (p *Prototype) IsBinaryOp() bool { return p.Kind == BinaryOperator && len(p.Params) == 2 }

// OperatorName returns the operator character of an operator prototype.
func (p *Prototype) OperatorName() rune {
	r := []rune(p.Name)
	if len(r) == 0 {
		return 0
	}
	return r[len(r)-1]
}

func (p *Prototype) String() string {
	var sb strings.Builder
	sb.WriteString(p.Name)
	if p.Kind == BinaryOperator {
		sb.WriteString(" ")
		sb.WriteString(strconv.Itoa(p.Precedence))
		sb.WriteString(" ")
	}
	sb.WriteString("(")
	sb.WriteString(strings.Join(p.Params, " "))
	sb.WriteString(")")
	return sb.String()
}

// Source renders the prototype as an extern declaration.
func (p *Prototype) Source() string {
	return "extern " + p.String()
}

// Function is a prototype plus its body.
type Function struct {
	Proto *Prototype
	Body  Expr
}

func (f *Function) String() string {
	return f.Proto.String() + " " + f.Body.String()
}

// Source renders the function as a def unit.
func (f *Function) Source() string {
	return "def " + f.String()
}
