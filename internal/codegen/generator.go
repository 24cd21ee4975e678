// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package codegen lowers syntax trees to IR, one top-level unit at a time.
package codegen

import (
	"fmt"

	"nickandperla.net/kaleido/internal/ast"
	"nickandperla.net/kaleido/internal/ir"
	"nickandperla.net/kaleido/internal/optable"
	"nickandperla.net/kaleido/internal/parser"
)

// Linker finds functions that already have a body outside the current
// module. *jit.Engine implements it.
type Linker interface {
	Lookup(name string) (*ir.Function, bool)
}

// Generator owns the current compilation unit, the scope of the function
// being generated and the prototype cache used to re-declare functions
// defined in earlier units.
type Generator struct {
	ops      *optable.Table
	linker   Linker
	mod      *ir.Module
	units    int
	bd       *ir.Builder
	scope    *Scope
	protos   map[string]*ast.Prototype
	optimize bool
	undo     func()
}

// Option configures a Generator.
type Option func(*Generator)

// WithOptimize enables the IR optimizer on every generated function.
func WithOptimize(on bool) Option {
	return func(g *Generator) {
		g.optimize = on
	}
}

// New creates a generator that registers operator precedences in ops and
// consults linker for redefinitions. linker may be nil.
func New(ops *optable.Table, linker Linker, opts ...Option) *Generator {
	g := &Generator{
		ops:    ops,
		linker: linker,
		bd:     ir.NewBuilder(),
		scope:  NewScope(),
		protos: make(map[string]*ast.Prototype),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.Reset()
	return g
}

// Reset discards the current module and starts a new one.
func (g *Generator) Reset() {
	g.units++
	g.mod = ir.NewModule(fmt.Sprintf("unit%d", g.units))
	g.bd.SetInsertPoint(nil)
}

// Module returns the current compilation unit.
func (g *Generator) Module() *ir.Module {
	return g.mod
}

// TakeModule returns the current module and starts a new one.
func (g *Generator) TakeModule() *ir.Module {
	m := g.mod
	g.Reset()
	return m
}

// Remember stores p in the prototype cache, replacing any previous entry.
func (g *Generator) Remember(p *ast.Prototype) {
	g.protos[p.Name] = p
}

// Prototype returns the cached prototype for name.
func (g *Generator) Prototype(name string) (*ast.Prototype, bool) {
	p, ok := g.protos[name]
	return p, ok
}

// Forget removes name from the prototype cache.
func (g *Generator) Forget(name string) {
	delete(g.protos, name)
}

// function resolves name in the current module, declaring it from the
// prototype cache if needed. It returns nil when name is unknown.
func (g *Generator) function(name string) (*ir.Function, error) {
	if f := g.mod.Function(name); f != nil {
		return f, nil
	}
	if p, ok := g.protos[name]; ok {
		return g.mod.Declare(p.Name, p.Params)
	}
	return nil, nil
}

// GenPrototype declares an extern and caches its prototype. Binary operator
// declarations register their precedence.
func (g *Generator) GenPrototype(p *ast.Prototype) (*ir.Function, error) {
	f := g.mod.Function(p.Name)
	if f != nil && len(f.Params) != len(p.Params) {
		return nil, g.fail(p, fmt.Errorf("%w with a different number of arguments", ErrRedefinition))
	}
	if def, ok := g.lookup(p.Name); ok && len(def.Params) != len(p.Params) {
		return nil, g.fail(p, fmt.Errorf("%w with a different number of arguments", ErrRedefinition))
	}
	if f == nil {
		var err error
		if f, err = g.mod.Declare(p.Name, p.Params); err != nil {
			return nil, g.fail(p, fmt.Errorf("%w: %v", ErrVerify, err))
		}
	}
	g.Remember(p)
	if p.IsBinaryOp() {
		g.ops.Set(p.OperatorName(), p.Precedence)
	}
	return f, nil
}

// GenFunction generates a complete function. On failure nothing the call
// changed survives: the partial body is discarded, the prototype cache and
// operator table are restored.
func (g *Generator) GenFunction(fn *ast.Function) (_ *ir.Function, err error) {
	p := fn.Proto
	prevProto, hadProto := g.protos[p.Name]
	g.Remember(p)
	g.undo = nil
	undo := func() { g.restoreProto(p.Name, prevProto, hadProto) }

	created := g.mod.Function(p.Name) == nil
	f, err := g.function(p.Name)
	if err != nil {
		g.restoreProto(p.Name, prevProto, hadProto)
		return nil, g.fail(p, fmt.Errorf("%w: %v", ErrVerify, err))
	}
	if len(f.Params) != len(p.Params) {
		g.restoreProto(p.Name, prevProto, hadProto)
		return nil, g.fail(p, fmt.Errorf("%w with a different number of arguments", ErrRedefinition))
	}

	if p.IsBinaryOp() {
		op := p.OperatorName()
		prev, existed := g.ops.Set(op, p.Precedence)
		undo = func() {
			g.restoreProto(p.Name, prevProto, hadProto)
			g.ops.Restore(op, prev, existed)
		}
		defer func() {
			if err != nil {
				g.ops.Restore(op, prev, existed)
			}
		}()
	}
	defer func() {
		if err != nil {
			g.restoreProto(p.Name, prevProto, hadProto)
			if created {
				g.mod.Remove(f)
			}
		}
	}()

	if _, linked := g.lookup(p.Name); !f.Empty() || linked {
		return nil, g.fail(p, ErrRedefinition)
	}

	g.scope.Clear()
	g.bd.SetInsertPoint(f.NewBlock("entry"))
	for i, name := range p.Params {
		slot := g.bd.Alloca(name)
		g.bd.Store(f.Params[i], slot)
		g.scope.Shadow(name, slot)
	}

	body, err := g.GenExpr(fn.Body)
	if err != nil {
		f.Erase()
		return nil, g.fail(p, err)
	}
	g.bd.Ret(body)

	if verr := ir.Verify(f); verr != nil {
		f.Erase()
		return nil, g.fail(p, fmt.Errorf("%w: %v", ErrVerify, verr))
	}
	if g.optimize {
		ir.Optimize(f)
	}
	g.undo = undo
	return f, nil
}

// Rollback reverts the prototype cache and operator table to their state
// before the last successful GenFunction. It is for callers whose linker
// rejects the generated module.
func (g *Generator) Rollback() {
	if g.undo != nil {
		g.undo()
		g.undo = nil
	}
}

func (g *Generator) restoreProto(name string, prev *ast.Prototype, had bool) {
	if had {
		g.protos[name] = prev
		return
	}
	delete(g.protos, name)
}

// lookup finds a body for name in a module already handed to the linker.
func (g *Generator) lookup(name string) (*ir.Function, bool) {
	if g.linker == nil {
		return nil, false
	}
	return g.linker.Lookup(name)
}

func (g *Generator) fail(p *ast.Prototype, err error) error {
	unit := p.Name
	if unit == parser.AnonName {
		unit = ""
	}
	return &GenError{Unit: unit, Err: err}
}

// GenExpr lowers e at the builder's insertion point. It is only meaningful
// while a function body is being generated.
func (g *Generator) GenExpr(e ast.Expr) (*ir.Value, error) {
	switch e := e.(type) {
	case *ast.Number:
		return ir.Const(e.Value), nil

	case *ast.Variable:
		slot, ok := g.scope.Lookup(e.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, e.Name)
		}
		return g.bd.Load(slot, e.Name), nil

	case *ast.Unary:
		operand, err := g.GenExpr(e.Operand)
		if err != nil {
			return nil, err
		}
		f, err := g.function("unary" + string(e.Op))
		if err != nil {
			return nil, err
		}
		if f == nil || len(f.Params) != 1 {
			return nil, fmt.Errorf("%w: %c", ErrUnknownUnary, e.Op)
		}
		return g.bd.Call(f, []*ir.Value{operand}, "unop"), nil

	case *ast.Binary:
		return g.genBinary(e)

	case *ast.Call:
		f, err := g.function(e.Callee)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, e.Callee)
		}
		if len(f.Params) != len(e.Args) {
			return nil, fmt.Errorf("%w to %s: expected %d, got %d", ErrArgCount, e.Callee, len(f.Params), len(e.Args))
		}
		args := make([]*ir.Value, 0, len(e.Args))
		for _, a := range e.Args {
			v, err := g.GenExpr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		return g.bd.Call(f, args, "calltmp"), nil

	case *ast.If:
		return g.genIf(e)

	case *ast.For:
		return g.genFor(e)

	case *ast.Var:
		return g.genVar(e)
	}
	return nil, fmt.Errorf("%w: unexpected node %T", ErrVerify, e)
}

func (g *Generator) genBinary(e *ast.Binary) (*ir.Value, error) {
	if e.Op == '=' {
		target, ok := e.LHS.(*ast.Variable)
		if !ok {
			return nil, ErrAssignTarget
		}
		val, err := g.GenExpr(e.RHS)
		if err != nil {
			return nil, err
		}
		slot, ok := g.scope.Lookup(target.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, target.Name)
		}
		g.bd.Store(val, slot)
		return val, nil
	}

	l, err := g.GenExpr(e.LHS)
	if err != nil {
		return nil, err
	}
	r, err := g.GenExpr(e.RHS)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case '+':
		return g.bd.FAdd(l, r, "addtmp"), nil
	case '-':
		return g.bd.FSub(l, r, "subtmp"), nil
	case '*':
		return g.bd.FMul(l, r, "multmp"), nil
	case '<':
		cmp := g.bd.FCmpULT(l, r, "cmptmp")
		return g.bd.UIToFP(cmp, "booltmp"), nil
	}

	// Not a builtin, so it must be a user-defined operator.
	f, err := g.function("binary" + string(e.Op))
	if err != nil {
		return nil, err
	}
	if f == nil || len(f.Params) != 2 {
		return nil, fmt.Errorf("%w: %c", ErrUnknownBinary, e.Op)
	}
	return g.bd.Call(f, []*ir.Value{l, r}, "binop"), nil
}

func (g *Generator) genIf(e *ast.If) (*ir.Value, error) {
	cond, err := g.GenExpr(e.Cond)
	if err != nil {
		return nil, err
	}
	test := g.bd.FCmpONE(cond, ir.Const(0), "ifcond")

	f := g.bd.Function()
	thenBB := f.NewBlock("then")
	elseBB := f.NewBlock("else")
	mergeBB := f.NewBlock("ifcont")
	g.bd.CondBr(test, thenBB, elseBB)

	g.bd.SetInsertPoint(thenBB)
	thenV, err := g.GenExpr(e.Then)
	if err != nil {
		return nil, err
	}
	g.bd.Br(mergeBB)
	// Generating the branch may have moved the insertion block.
	thenEnd := g.bd.InsertBlock()

	g.bd.SetInsertPoint(elseBB)
	elseV, err := g.GenExpr(e.Else)
	if err != nil {
		return nil, err
	}
	g.bd.Br(mergeBB)
	elseEnd := g.bd.InsertBlock()

	g.bd.SetInsertPoint(mergeBB)
	phi := g.bd.Phi("iftmp")
	ir.AddIncoming(phi, thenV, thenEnd)
	ir.AddIncoming(phi, elseV, elseEnd)
	return phi, nil
}

// genFor lowers
//
//	for x = start, end, step in body
//
// to a loop whose body runs before the end condition is tested. The
// expression always yields 0.
func (g *Generator) genFor(e *ast.For) (*ir.Value, error) {
	f := g.bd.Function()
	slot := g.bd.Alloca(e.Var)

	start, err := g.GenExpr(e.Start)
	if err != nil {
		return nil, err
	}
	g.bd.Store(start, slot)

	loopBB := f.NewBlock("loop")
	g.bd.Br(loopBB)
	g.bd.SetInsertPoint(loopBB)

	mark := g.scope.Mark()
	defer g.scope.Unwind(mark)
	g.scope.Shadow(e.Var, slot)

	if _, err := g.GenExpr(e.Body); err != nil {
		return nil, err
	}

	step := ir.Const(1)
	if e.Step != nil {
		if step, err = g.GenExpr(e.Step); err != nil {
			return nil, err
		}
	}

	end, err := g.GenExpr(e.End)
	if err != nil {
		return nil, err
	}

	// Reload, increment, and restore the loop variable. The body may have
	// assigned to it.
	cur := g.bd.Load(slot, e.Var)
	g.bd.Store(g.bd.FAdd(cur, step, "nextvar"), slot)

	endCond := g.bd.FCmpONE(end, ir.Const(0), "loopcond")
	afterBB := f.NewBlock("afterloop")
	g.bd.CondBr(endCond, loopBB, afterBB)
	g.bd.SetInsertPoint(afterBB)

	return ir.Const(0), nil
}

func (g *Generator) genVar(e *ast.Var) (*ir.Value, error) {
	mark := g.scope.Mark()
	defer g.scope.Unwind(mark)

	for _, b := range e.Bindings {
		// The initializer is generated before the name is bound, so
		// 'var a = a in ...' refers to an outer a.
		init := ir.Const(0)
		if b.Init != nil {
			v, err := g.GenExpr(b.Init)
			if err != nil {
				return nil, err
			}
			init = v
		}
		slot := g.bd.Alloca(b.Name)
		g.bd.Store(init, slot)
		g.scope.Shadow(b.Name, slot)
	}

	return g.GenExpr(e.Body)
}
