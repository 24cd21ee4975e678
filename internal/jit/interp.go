package jit

import (
	"fmt"

	"nickandperla.net/kaleido/internal/ir"
)

type frame struct {
	regs  []float64
	slots []float64
}

func (fr *frame) value(v *ir.Value) float64 {
	if v.IsConst() {
		return v.Const
	}
	return fr.regs[v.ID]
}

func bit(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// exec interprets a defined function.
func (e *Engine) exec(f *ir.Function, args []float64, depth int) (float64, error) {
	if depth >= e.maxDepth {
		return 0, fmt.Errorf("%w (%d) in %s", ErrMaxDepth, e.maxDepth, f.Name)
	}
	fr := &frame{
		regs:  make([]float64, f.NumRegs()),
		slots: make([]float64, f.NumSlots),
	}
	for i, p := range f.Params {
		fr.regs[p.ID] = args[i]
	}

	var prev *ir.Block
	block := f.Entry()
	for {
		// Phis read their inputs before any of them is assigned.
		var phis []*ir.Value
		var vals []float64
		start := 0
		for ; start < len(block.Instrs) && block.Instrs[start].Op == ir.OpPhi; start++ {
			phi := block.Instrs[start]
			found := false
			for _, inc := range phi.Incoming {
				if inc.Block == prev {
					phis = append(phis, phi)
					vals = append(vals, fr.value(inc.Value))
					found = true
					break
				}
			}
			if !found {
				return 0, fmt.Errorf("%s: phi %%%s has no value for the edge taken", f.Name, phi.Name)
			}
		}
		for i, phi := range phis {
			fr.regs[phi.ID] = vals[i]
		}

		var next *ir.Block
		for _, in := range block.Instrs[start:] {
			switch in.Op {
			case ir.OpAlloca:
			case ir.OpLoad:
				fr.regs[in.ID] = fr.slots[in.Args[0].Slot]
			case ir.OpStore:
				fr.slots[in.Args[1].Slot] = fr.value(in.Args[0])
			case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFCmpULT, ir.OpFCmpONE:
				fr.regs[in.ID] = ir.FoldBinary(in.Op, fr.value(in.Args[0]), fr.value(in.Args[1]))
			case ir.OpUIToFP:
				fr.regs[in.ID] = bit(fr.value(in.Args[0]) != 0)
			case ir.OpCall:
				args := make([]float64, len(in.Args))
				for i, a := range in.Args {
					args[i] = fr.value(a)
				}
				var (
					r   float64
					err error
				)
				if in.Callee.Empty() {
					r, err = e.invoke(in.Callee.Name, args, depth+1)
				} else {
					r, err = e.exec(in.Callee, args, depth+1)
				}
				if err != nil {
					return 0, err
				}
				fr.regs[in.ID] = r
			case ir.OpBr:
				next = in.Targets[0]
			case ir.OpCondBr:
				if fr.value(in.Args[0]) != 0 {
					next = in.Targets[0]
				} else {
					next = in.Targets[1]
				}
			case ir.OpRet:
				return fr.value(in.Args[0]), nil
			default:
				return 0, fmt.Errorf("%s: cannot execute %s", f.Name, in.Op)
			}
		}
		if next == nil {
			return 0, fmt.Errorf("%s: block %s fell through", f.Name, block.Name)
		}
		prev, block = block, next
	}
}
