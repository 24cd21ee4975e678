package ir

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every verification failure.
var ErrInvalid = errors.New("invalid function")

// Verify checks f for structural consistency. Declarations are always valid.
func Verify(f *Function) error {
	if f.Empty() {
		return nil
	}

	owned := make(map[*Value]bool)
	blocks := make(map[*Block]bool)
	for _, p := range f.Params {
		owned[p] = true
	}
	for _, b := range f.Blocks {
		blocks[b] = true
		for _, in := range b.Instrs {
			owned[in] = true
		}
	}

	fail := func(b *Block, format string, args ...any) error {
		return fmt.Errorf("%w %s: block %s: %s", ErrInvalid, f.Name, b.Name, fmt.Sprintf(format, args...))
	}

	for _, b := range f.Blocks {
		if b.Parent != f {
			return fail(b, "block belongs to another function")
		}
		if b.Terminator() == nil {
			return fail(b, "missing terminator")
		}

		inPhis := true
		for i, in := range b.Instrs {
			if in.Block != b {
				return fail(b, "%s instruction is linked to another block", in.Op)
			}
			if in.Op.IsTerminator() && i != len(b.Instrs)-1 {
				return fail(b, "terminator %s in the middle of the block", in.Op)
			}
			if in.Op == OpPhi {
				if !inPhis {
					return fail(b, "phi %%%s is not at the top of the block", in.Name)
				}
			} else {
				inPhis = false
			}
			if in.Op == OpAlloca && b != f.Entry() {
				return fail(b, "alloca %%%s outside the entry block", in.Name)
			}

			for _, a := range in.Args {
				if a == nil {
					return fail(b, "%s has a nil operand", in.Op)
				}
				if !a.IsConst() && !owned[a] {
					return fail(b, "%s uses a value from another function", in.Op)
				}
			}
			for _, t := range in.Targets {
				if !blocks[t] {
					return fail(b, "branch to a block outside the function")
				}
			}

			if err := checkTypes(in); err != nil {
				return fail(b, "%v", err)
			}
		}

		for _, in := range b.Instrs {
			if in.Op != OpPhi {
				break
			}
			if err := checkPhi(f, b, in, owned); err != nil {
				return fail(b, "%v", err)
			}
		}
	}
	return nil
}

func checkTypes(in *Value) error {
	want := func(i int, t Type) error {
		if len(in.Args) <= i {
			return fmt.Errorf("%s: missing operand %d", in.Op, i)
		}
		if in.Args[i].Type != t {
			return fmt.Errorf("%s: operand %d is %s, expected %s", in.Op, i, in.Args[i].Type, t)
		}
		return nil
	}
	count := func(n int) error {
		if len(in.Args) != n {
			return fmt.Errorf("%s: expected %d operands, got %d", in.Op, n, len(in.Args))
		}
		return nil
	}

	switch in.Op {
	case OpAlloca:
		return count(0)
	case OpLoad:
		if err := count(1); err != nil {
			return err
		}
		if in.Args[0].Op != OpAlloca {
			return fmt.Errorf("load from a non-slot value")
		}
		return nil
	case OpStore:
		if err := count(2); err != nil {
			return err
		}
		if err := want(0, Double); err != nil {
			return err
		}
		if in.Args[1].Op != OpAlloca {
			return fmt.Errorf("store to a non-slot value")
		}
		return nil
	case OpFAdd, OpFSub, OpFMul, OpFCmpULT, OpFCmpONE:
		if err := count(2); err != nil {
			return err
		}
		if err := want(0, Double); err != nil {
			return err
		}
		return want(1, Double)
	case OpUIToFP:
		if err := count(1); err != nil {
			return err
		}
		return want(0, Bool)
	case OpCall:
		if in.Callee == nil {
			return fmt.Errorf("call without a callee")
		}
		if in.Callee.module != in.Block.Parent.module {
			return fmt.Errorf("call to @%s, which is not declared in this module", in.Callee.Name)
		}
		if len(in.Args) != len(in.Callee.Params) {
			return fmt.Errorf("call to @%s with %d arguments, expected %d", in.Callee.Name, len(in.Args), len(in.Callee.Params))
		}
		for i := range in.Args {
			if err := want(i, Double); err != nil {
				return err
			}
		}
		return nil
	case OpBr:
		if len(in.Targets) != 1 {
			return fmt.Errorf("br needs one target")
		}
		return count(0)
	case OpCondBr:
		if len(in.Targets) != 2 {
			return fmt.Errorf("conditional br needs two targets")
		}
		if err := count(1); err != nil {
			return err
		}
		return want(0, Bool)
	case OpRet:
		if err := count(1); err != nil {
			return err
		}
		return want(0, Double)
	case OpPhi:
		return count(0)
	}
	return fmt.Errorf("unexpected opcode %s", in.Op)
}

func checkPhi(f *Function, b *Block, phi *Value, owned map[*Value]bool) error {
	preds := f.Predecessors(b)
	if len(phi.Incoming) != len(preds) {
		return fmt.Errorf("phi %%%s has %d incoming values for %d predecessors", phi.Name, len(phi.Incoming), len(preds))
	}
	seen := make(map[*Block]bool)
	for _, inc := range phi.Incoming {
		if inc.Value == nil || inc.Value.Type != Double {
			return fmt.Errorf("phi %%%s has a non-double incoming value", phi.Name)
		}
		if !inc.Value.IsConst() && !owned[inc.Value] {
			return fmt.Errorf("phi %%%s uses a value from another function", phi.Name)
		}
		if seen[inc.Block] {
			return fmt.Errorf("phi %%%s lists block %s twice", phi.Name, inc.Block.Name)
		}
		seen[inc.Block] = true
	}
	for _, p := range preds {
		if !seen[p] {
			return fmt.Errorf("phi %%%s has no value for predecessor %s", phi.Name, p.Name)
		}
	}
	return nil
}
