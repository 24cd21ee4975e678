// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package parser turns a kaleido token stream into syntax trees, one
// top-level unit at a time. Binary expressions are parsed by precedence
// climbing against a run-time mutable operator table.
package parser

import (
	"errors"
	"fmt"
	"math"

	"nickandperla.net/kaleido/internal/ast"
	"nickandperla.net/kaleido/internal/optable"
	"nickandperla.net/kaleido/internal/scanner"
	"nickandperla.net/kaleido/internal/token"
)

// AnonName names the wrapper function of a top-level expression. It cannot
// be produced by the scanner, so no user definition can collide with it.
const AnonName = "__anon_expr"

// UnitKind identifies what ParseTopLevel found.
type UnitKind int

const (
	UnitEOF UnitKind = iota
	UnitEmpty
	UnitDefinition
	UnitExtern
	UnitExpression
)

func (k UnitKind) String() string {
	switch k {
	case UnitEOF:
		return "EOF"
	case UnitEmpty:
		return "EMPTY"
	case UnitDefinition:
		return "DEFINITION"
	case UnitExtern:
		return "EXTERN"
	case UnitExpression:
		return "EXPRESSION"
	}
	return "UNKNOWN"
}

// Unit is one parsed top-level entity. Function is set for definitions and
// expressions, Proto for externs.
type Unit struct {
	Kind     UnitKind
	Function *ast.Function
	Proto    *ast.Prototype
}

// Parser is a recursive-descent parser over a Cursor.
type Parser struct {
	cur *Cursor
	ops *optable.Table
}

// New creates a parser reading from src and consulting ops for binary
// operator precedence.
func New(src TokenSource, ops *optable.Table) *Parser {
	return &Parser{cur: NewCursor(src), ops: ops}
}

// Current returns the lookahead token.
func (p *Parser) Current() (*token.Item, error) {
	item, err := p.cur.Current()
	if err != nil {
		return nil, p.wrapScanError(err)
	}
	return item, nil
}

// Skip discards the lookahead token. The driver loop uses it to make
// progress after a parse error.
func (p *Parser) Skip() error {
	if _, err := p.Current(); err != nil {
		return err
	}
	return p.advance()
}

// ParseTopLevel parses one unit:
//
//	top ::= definition | external | expression | ';'
func (p *Parser) ParseTopLevel() (Unit, error) {
	tok, err := p.Current()
	if err != nil {
		return Unit{}, err
	}

	switch {
	case tok.Token == token.EOF:
		return Unit{Kind: UnitEOF}, nil
	case tok.Is(';'):
		if err := p.advance(); err != nil {
			return Unit{}, err
		}
		return Unit{Kind: UnitEmpty}, nil
	case tok.Token == token.DEF:
		fn, err := p.parseDefinition()
		if err != nil {
			return Unit{}, err
		}
		return Unit{Kind: UnitDefinition, Function: fn}, nil
	case tok.Token == token.EXTERN:
		proto, err := p.parseExtern()
		if err != nil {
			return Unit{}, err
		}
		return Unit{Kind: UnitExtern, Proto: proto}, nil
	default:
		fn, err := p.parseTopLevelExpr()
		if err != nil {
			return Unit{}, err
		}
		return Unit{Kind: UnitExpression, Function: fn}, nil
	}
}

// definition ::= 'def' prototype expression
func (p *Parser) parseDefinition() (*ast.Function, error) {
	if err := p.advance(); err != nil { // eat 'def'
		return nil, err
	}
	proto, err := p.ParsePrototype()
	if err != nil {
		return nil, err
	}
	body, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Function{Proto: proto, Body: body}, nil
}

// external ::= 'extern' prototype
func (p *Parser) parseExtern() (*ast.Prototype, error) {
	if err := p.advance(); err != nil { // eat 'extern'
		return nil, err
	}
	return p.ParsePrototype()
}

// toplevelexpr ::= expression
func (p *Parser) parseTopLevelExpr() (*ast.Function, error) {
	body, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Function{Proto: &ast.Prototype{Name: AnonName}, Body: body}, nil
}

// ParseExpression parses a full expression.
//
//	expression ::= unary binoprhs
func (p *Parser) ParseExpression() (ast.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinRHS(0, lhs)
}

// ParsePrototype parses a function or operator signature.
//
//	prototype ::= id '(' id* ')'
//	          ::= 'unary' LETTER '(' id ')'
//	          ::= 'binary' LETTER number? '(' id id ')'
func (p *Parser) ParsePrototype() (*ast.Prototype, error) {
	tok, err := p.Current()
	if err != nil {
		return nil, err
	}

	proto := &ast.Prototype{}
	switch tok.Token {
	case token.IDENT:
		proto.Name = tok.Text
		if err := p.advance(); err != nil {
			return nil, err
		}

	case token.UNARY:
		if err := p.advance(); err != nil {
			return nil, err
		}
		op, err := p.Current()
		if err != nil {
			return nil, err
		}
		if !op.IsSymbol() {
			return nil, p.errorf("expected unary operator")
		}
		proto.Name = "unary" + string(op.Char)
		proto.Kind = ast.UnaryOperator
		if err := p.advance(); err != nil {
			return nil, err
		}

	case token.BINARY:
		if err := p.advance(); err != nil {
			return nil, err
		}
		op, err := p.Current()
		if err != nil {
			return nil, err
		}
		if !op.IsSymbol() {
			return nil, p.errorf("expected binary operator")
		}
		proto.Name = "binary" + string(op.Char)
		proto.Kind = ast.BinaryOperator
		proto.Precedence = optable.DefaultPrecedence
		if err := p.advance(); err != nil {
			return nil, err
		}

		// Read the precedence if present.
		num, err := p.Current()
		if err != nil {
			return nil, err
		}
		if num.Token == token.NUMBER {
			if num.Num < optable.MinPrecedence || num.Num > optable.MaxPrecedence || num.Num != math.Trunc(num.Num) {
				return nil, p.errorf("invalid precedence %s: must be an integer from %d to %d",
					num.Text, optable.MinPrecedence, optable.MaxPrecedence)
			}
			proto.Precedence = int(num.Num)
			if err := p.advance(); err != nil {
				return nil, err
			}
		}

	default:
		return nil, p.errorf("expected function name in prototype")
	}

	tok, err = p.Current()
	if err != nil {
		return nil, err
	}
	if !tok.Is('(') {
		return nil, p.errorf("expected '(' in prototype")
	}

	// Read the list of argument names.
	for {
		if err := p.advance(); err != nil {
			return nil, err
		}
		tok, err = p.Current()
		if err != nil {
			return nil, err
		}
		if tok.Token != token.IDENT {
			break
		}
		proto.Params = append(proto.Params, tok.Text)
	}
	if !tok.Is(')') {
		return nil, p.errorf("expected ')' in prototype")
	}

	// Verify right number of names for operator.
	if proto.Kind != ast.NotOperator && len(proto.Params) != int(proto.Kind) {
		return nil, p.errorf("invalid number of operands for operator %s: expected %d, got %d",
			proto.Name, int(proto.Kind), len(proto.Params))
	}

	if err := p.advance(); err != nil { // eat ')'
		return nil, err
	}
	return proto, nil
}

// unary
//
//	::= primary
//	::= '!' unary
func (p *Parser) parseUnary() (ast.Expr, error) {
	tok, err := p.Current()
	if err != nil {
		return nil, err
	}

	// If the current token is not an operator, it must be a primary expr.
	if !tok.IsSymbol() || tok.Is('(') || tok.Is(',') {
		return p.parsePrimary()
	}

	// If this is a unary operator, read it.
	op := tok.Char
	if err := p.advance(); err != nil {
		return nil, err
	}
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.Unary{Op: op, Operand: operand}, nil
}

// binoprhs
//
//	::= (binop unary)*
func (p *Parser) parseBinRHS(minPrec int, lhs ast.Expr) (ast.Expr, error) {
	for {
		tokPrec, err := p.tokPrecedence()
		if err != nil {
			return nil, err
		}

		// If this is a binop that binds at least as tightly as the current
		// binop, consume it, otherwise we are done.
		if tokPrec < minPrec {
			return lhs, nil
		}

		tok, err := p.Current()
		if err != nil {
			return nil, err
		}
		op := tok.Char
		if err := p.advance(); err != nil { // eat binop
			return nil, err
		}

		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		// If op binds less tightly with rhs than the operator after rhs, let
		// the pending operator take rhs as its lhs.
		nextPrec, err := p.tokPrecedence()
		if err != nil {
			return nil, err
		}
		if tokPrec < nextPrec {
			rhs, err = p.parseBinRHS(tokPrec+1, rhs)
			if err != nil {
				return nil, err
			}
		}

		lhs = &ast.Binary{Op: op, LHS: lhs, RHS: rhs}
	}
}

// tokPrecedence returns the precedence of the pending binary operator token,
// or optable.NotAnOperator.
func (p *Parser) tokPrecedence() (int, error) {
	tok, err := p.Current()
	if err != nil {
		return 0, err
	}
	if !tok.IsSymbol() {
		return optable.NotAnOperator, nil
	}
	return p.ops.Precedence(tok.Char), nil
}

// primary
//
//	::= identifierexpr
//	::= numberexpr
//	::= parenexpr
//	::= ifexpr
//	::= forexpr
//	::= varexpr
func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok, err := p.Current()
	if err != nil {
		return nil, err
	}

	switch {
	case tok.Token == token.IDENT:
		return p.parseIdentifierExpr()
	case tok.Token == token.NUMBER:
		n := &ast.Number{Value: tok.Num}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return n, nil
	case tok.Is('('):
		return p.parseParenExpr()
	case tok.Token == token.IF:
		return p.parseIfExpr()
	case tok.Token == token.FOR:
		return p.parseForExpr()
	case tok.Token == token.VAR:
		return p.parseVarExpr()
	}
	return nil, p.errorf("unexpected %s when expecting an expression", tok)
}

// parenexpr ::= '(' expression ')'
func (p *Parser) parseParenExpr() (ast.Expr, error) {
	if err := p.advance(); err != nil { // eat '('
		return nil, err
	}
	v, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')', "expected ')'"); err != nil {
		return nil, err
	}
	return v, nil
}

// identifierexpr
//
//	::= identifier
//	::= identifier '(' expression* ')'
func (p *Parser) parseIdentifierExpr() (ast.Expr, error) {
	tok, err := p.Current()
	if err != nil {
		return nil, err
	}
	name := tok.Text
	if err := p.advance(); err != nil { // eat identifier
		return nil, err
	}

	tok, err = p.Current()
	if err != nil {
		return nil, err
	}
	if !tok.Is('(') { // simple variable ref
		return &ast.Variable{Name: name}, nil
	}

	// Call.
	if err := p.advance(); err != nil { // eat '('
		return nil, err
	}
	var args []ast.Expr
	tok, err = p.Current()
	if err != nil {
		return nil, err
	}
	if !tok.Is(')') {
		for {
			arg, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			tok, err = p.Current()
			if err != nil {
				return nil, err
			}
			if tok.Is(')') {
				break
			}
			if !tok.Is(',') {
				return nil, p.errorf("expected ')' or ',' in argument list")
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}

	if err := p.advance(); err != nil { // eat ')'
		return nil, err
	}
	return &ast.Call{Callee: name, Args: args}, nil
}

// ifexpr ::= 'if' expression 'then' expression 'else' expression
func (p *Parser) parseIfExpr() (ast.Expr, error) {
	if err := p.advance(); err != nil { // eat 'if'
		return nil, err
	}

	cond, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword(token.THEN, "expected 'then'"); err != nil {
		return nil, err
	}

	then, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword(token.ELSE, "expected 'else'"); err != nil {
		return nil, err
	}

	els, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.If{Cond: cond, Then: then, Else: els}, nil
}

// forexpr ::= 'for' identifier '=' expr ',' expr (',' expr)? 'in' expression
func (p *Parser) parseForExpr() (ast.Expr, error) {
	if err := p.advance(); err != nil { // eat 'for'
		return nil, err
	}

	tok, err := p.Current()
	if err != nil {
		return nil, err
	}
	if tok.Token != token.IDENT {
		return nil, p.errorf("expected identifier after 'for'")
	}
	name := tok.Text
	if err := p.advance(); err != nil {
		return nil, err
	}

	if err := p.expect('=', "expected '=' after 'for'"); err != nil {
		return nil, err
	}
	start, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(',', "expected ',' after for start value"); err != nil {
		return nil, err
	}
	end, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	// The step value is optional.
	var step ast.Expr
	tok, err = p.Current()
	if err != nil {
		return nil, err
	}
	if tok.Is(',') {
		if err := p.advance(); err != nil {
			return nil, err
		}
		step, err = p.ParseExpression()
		if err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword(token.IN, "expected 'in' after for"); err != nil {
		return nil, err
	}
	body, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.For{Var: name, Start: start, End: end, Step: step, Body: body}, nil
}

// varexpr ::= 'var' identifier ('=' expression)?
//
//	(',' identifier ('=' expression)?)* 'in' expression
func (p *Parser) parseVarExpr() (ast.Expr, error) {
	if err := p.advance(); err != nil { // eat 'var'
		return nil, err
	}

	var bindings []ast.Binding
	tok, err := p.Current()
	if err != nil {
		return nil, err
	}
	if tok.Token != token.IDENT {
		return nil, p.errorf("expected identifier after 'var'")
	}

	for {
		b := ast.Binding{Name: tok.Text}
		if err := p.advance(); err != nil { // eat identifier
			return nil, err
		}

		// Read the optional initializer.
		tok, err = p.Current()
		if err != nil {
			return nil, err
		}
		if tok.Is('=') {
			if err := p.advance(); err != nil {
				return nil, err
			}
			b.Init, err = p.ParseExpression()
			if err != nil {
				return nil, err
			}
		}
		bindings = append(bindings, b)

		// End of var list, exit loop.
		tok, err = p.Current()
		if err != nil {
			return nil, err
		}
		if !tok.Is(',') {
			break
		}
		if err := p.advance(); err != nil { // eat ','
			return nil, err
		}
		tok, err = p.Current()
		if err != nil {
			return nil, err
		}
		if tok.Token != token.IDENT {
			return nil, p.errorf("expected identifier list after 'var'")
		}
	}

	if err := p.expectKeyword(token.IN, "expected 'in' keyword after 'var'"); err != nil {
		return nil, err
	}
	body, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Var{Bindings: bindings, Body: body}, nil
}

// expect consumes the character ch or fails with msg.
func (p *Parser) expect(ch rune, msg string) error {
	tok, err := p.Current()
	if err != nil {
		return err
	}
	if !tok.Is(ch) {
		return p.errorf("%s", msg)
	}
	return p.advance()
}

// expectKeyword consumes the keyword t or fails with msg.
func (p *Parser) expectKeyword(t token.Token, msg string) error {
	tok, err := p.Current()
	if err != nil {
		return err
	}
	if tok.Token != t {
		return p.errorf("%s", msg)
	}
	return p.advance()
}

func (p *Parser) advance() error {
	return p.wrapScanError(p.cur.Advance())
}

// errorf builds a parse error positioned at the lookahead token.
func (p *Parser) errorf(format string, args ...any) error {
	perr := &Error{Msg: fmt.Sprintf(format, args...)}
	if tok, err := p.cur.Current(); err == nil {
		perr.Line = tok.Line
		perr.Incomplete = tok.Token == token.EOF
	}
	return perr
}

// wrapScanError turns lexical errors into parse errors so the driver loop
// recovers from them the same way. Read errors pass through unchanged.
func (p *Parser) wrapScanError(err error) error {
	var serr *scanner.Error
	if errors.As(err, &serr) {
		return &Error{Line: serr.Line, Msg: serr.Msg}
	}
	return err
}
