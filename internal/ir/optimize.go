package ir

import "math"

// Optimize runs simple local passes over f until none of them changes
// anything: constant folding, folding of branches on constant conditions,
// unreachable block removal, trivial phi elimination, merging of straight-line
// blocks and dead instruction removal. The result still passes Verify.
func Optimize(f *Function) {
	if f.Empty() {
		return
	}
	for {
		changed := foldConstants(f)
		changed = foldBranches(f) || changed
		changed = removeUnreachable(f) || changed
		changed = simplifyPhis(f) || changed
		changed = mergeBlocks(f) || changed
		changed = removeDead(f) || changed
		if !changed {
			return
		}
	}
}

// FoldBinary evaluates an arithmetic or comparison opcode on constants.
// Comparisons return 0 or 1.
func FoldBinary(op Op, a, b float64) float64 {
	switch op {
	case OpFAdd:
		return a + b
	case OpFSub:
		return a - b
	case OpFMul:
		return a * b
	case OpFCmpULT:
		if math.IsNaN(a) || math.IsNaN(b) || a < b {
			return 1
		}
		return 0
	case OpFCmpONE:
		if !math.IsNaN(a) && !math.IsNaN(b) && a != b {
			return 1
		}
		return 0
	}
	return math.NaN()
}

func foldConstants(f *Function) bool {
	changed := false
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			var folded *Value
			switch in.Op {
			case OpFAdd, OpFSub, OpFMul:
				if in.Args[0].IsConst() && in.Args[1].IsConst() {
					folded = Const(FoldBinary(in.Op, in.Args[0].Const, in.Args[1].Const))
				}
			case OpFCmpULT, OpFCmpONE:
				if in.Args[0].IsConst() && in.Args[1].IsConst() {
					folded = BoolConst(FoldBinary(in.Op, in.Args[0].Const, in.Args[1].Const) != 0)
				}
			case OpUIToFP:
				if in.Args[0].IsConst() {
					folded = Const(in.Args[0].Const)
				}
			}
			if folded != nil && replaceUses(f, in, folded) {
				changed = true
			}
		}
	}
	return changed
}

func foldBranches(f *Function) bool {
	changed := false
	for _, b := range f.Blocks {
		t := b.Terminator()
		if t == nil || t.Op != OpCondBr || !t.Args[0].IsConst() {
			continue
		}
		taken, dropped := t.Targets[0], t.Targets[1]
		if t.Args[0].Const == 0 {
			taken, dropped = dropped, taken
		}
		t.Op = OpBr
		t.Args = nil
		t.Targets = []*Block{taken}
		if dropped != taken {
			removeIncoming(dropped, b)
		}
		changed = true
	}
	return changed
}

func removeUnreachable(f *Function) bool {
	reached := map[*Block]bool{f.Entry(): true}
	work := []*Block{f.Entry()}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for _, s := range b.Successors() {
			if !reached[s] {
				reached[s] = true
				work = append(work, s)
			}
		}
	}
	if len(reached) == len(f.Blocks) {
		return false
	}

	live := f.Blocks[:0]
	var dead []*Block
	for _, b := range f.Blocks {
		if reached[b] {
			live = append(live, b)
		} else {
			dead = append(dead, b)
		}
	}
	f.Blocks = live
	for _, d := range dead {
		for _, b := range live {
			removeIncoming(b, d)
		}
	}
	return true
}

// simplifyPhis replaces phis whose incoming values are all the same value.
func simplifyPhis(f *Function) bool {
	changed := false
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Op != OpPhi {
				break
			}
			if v := uniqueIncoming(in); v != nil && replaceUses(f, in, v) {
				changed = true
			}
		}
	}
	return changed
}

func uniqueIncoming(phi *Value) *Value {
	var same *Value
	for _, inc := range phi.Incoming {
		v := inc.Value
		if v == phi {
			continue
		}
		switch {
		case same == nil:
			same = v
		case same == v:
		case same.IsConst() && v.IsConst() && sameConst(same.Const, v.Const):
		default:
			return nil
		}
	}
	return same
}

func sameConst(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}

// mergeBlocks folds a block into its predecessor when that predecessor is
// its only one and jumps unconditionally to it.
func mergeBlocks(f *Function) bool {
	for i := 1; i < len(f.Blocks); i++ {
		b := f.Blocks[i]
		preds := f.Predecessors(b)
		if len(preds) != 1 || preds[0] == b {
			continue
		}
		p := preds[0]
		t := p.Terminator()
		if t.Op != OpBr {
			continue
		}

		var body []*Value
		for _, in := range b.Instrs {
			if in.Op == OpPhi {
				// A single predecessor leaves exactly one incoming value.
				replaceUses(f, in, in.Incoming[0].Value)
				continue
			}
			in.Block = p
			body = append(body, in)
		}
		p.Instrs = append(p.Instrs[:len(p.Instrs)-1], body...)

		for _, s := range p.Successors() {
			for _, in := range s.Instrs {
				if in.Op != OpPhi {
					break
				}
				for k := range in.Incoming {
					if in.Incoming[k].Block == b {
						in.Incoming[k].Block = p
					}
				}
			}
		}
		f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
		return true
	}
	return false
}

func removeDead(f *Function) bool {
	used := make(map[*Value]bool)
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for _, a := range in.Args {
				used[a] = true
			}
			for _, inc := range in.Incoming {
				if inc.Value != in {
					used[inc.Value] = true
				}
			}
		}
	}

	changed := false
	for _, b := range f.Blocks {
		kept := b.Instrs[:0]
		for _, in := range b.Instrs {
			if in.Op.pure() && !used[in] {
				changed = true
				continue
			}
			kept = append(kept, in)
		}
		b.Instrs = kept
	}
	return changed
}

// replaceUses rewrites every operand that refers to old so that it refers to
// repl instead. It reports whether any operand changed.
func replaceUses(f *Function, old, repl *Value) bool {
	changed := false
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for i, a := range in.Args {
				if a == old {
					in.Args[i] = repl
					changed = true
				}
			}
			for i := range in.Incoming {
				if in.Incoming[i].Value == old {
					in.Incoming[i].Value = repl
					changed = true
				}
			}
		}
	}
	return changed
}

func removeIncoming(b, pred *Block) {
	for _, in := range b.Instrs {
		if in.Op != OpPhi {
			break
		}
		kept := in.Incoming[:0]
		for _, inc := range in.Incoming {
			if inc.Block != pred {
				kept = append(kept, inc)
			}
		}
		in.Incoming = kept
	}
}
