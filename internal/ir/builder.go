package ir

// Builder appends instructions at the end of its insertion block.
type Builder struct {
	block *Block
}

// NewBuilder returns a builder with no insertion point.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetInsertPoint makes b the block new instructions are appended to.
func (bd *Builder) SetInsertPoint(b *Block) {
	bd.block = b
}

// InsertBlock returns the current insertion block.
func (bd *Builder) InsertBlock() *Block {
	return bd.block
}

// Function returns the function being built.
func (bd *Builder) Function() *Function {
	if bd.block == nil {
		return nil
	}
	return bd.block.Parent
}

// Const returns a double constant.
func Const(v float64) *Value {
	return &Value{Op: OpConst, Type: Double, Const: v, ID: -1}
}

// BoolConst returns an i1 constant.
func BoolConst(b bool) *Value {
	v := &Value{Op: OpConst, Type: Bool, ID: -1}
	if b {
		v.Const = 1
	}
	return v
}

func (bd *Builder) insert(op Op, typ Type, name string, args ...*Value) *Value {
	v := bd.block.Parent.newValue(op, typ, name)
	v.Args = args
	v.Block = bd.block
	bd.block.Instrs = append(bd.block.Instrs, v)
	return v
}

// Alloca creates a mutable double slot. Slots are always placed at the top
// of the entry block, whatever the insertion point.
func (bd *Builder) Alloca(name string) *Value {
	f := bd.block.Parent
	entry := f.Entry()
	v := f.newValue(OpAlloca, Slot, name)
	v.Block = entry
	v.Slot = f.NumSlots
	f.NumSlots++

	pos := 0
	for pos < len(entry.Instrs) && entry.Instrs[pos].Op == OpAlloca {
		pos++
	}
	entry.Instrs = append(entry.Instrs, nil)
	copy(entry.Instrs[pos+1:], entry.Instrs[pos:])
	entry.Instrs[pos] = v
	return v
}

// Load reads a slot.
func (bd *Builder) Load(slot *Value, name string) *Value {
	return bd.insert(OpLoad, Double, name, slot)
}

// Store writes val into slot.
func (bd *Builder) Store(val, slot *Value) *Value {
	return bd.insert(OpStore, Void, "", val, slot)
}

// FAdd adds two doubles.
func (bd *Builder) FAdd(a, b *Value, name string) *Value {
	return bd.insert(OpFAdd, Double, name, a, b)
}

// FSub subtracts two doubles.
func (bd *Builder) FSub(a, b *Value, name string) *Value {
	return bd.insert(OpFSub, Double, name, a, b)
}

// FMul multiplies two doubles.
func (bd *Builder) FMul(a, b *Value, name string) *Value {
	return bd.insert(OpFMul, Double, name, a, b)
}

// FCmpULT is true if a < b or either operand is NaN.
func (bd *Builder) FCmpULT(a, b *Value, name string) *Value {
	return bd.insert(OpFCmpULT, Bool, name, a, b)
}

// FCmpONE is true if neither operand is NaN and a != b.
func (bd *Builder) FCmpONE(a, b *Value, name string) *Value {
	return bd.insert(OpFCmpONE, Bool, name, a, b)
}

// UIToFP converts an i1 to 0.0 or 1.0.
func (bd *Builder) UIToFP(v *Value, name string) *Value {
	return bd.insert(OpUIToFP, Double, name, v)
}

// Call calls fn, which must be declared in the same module.
func (bd *Builder) Call(fn *Function, args []*Value, name string) *Value {
	v := bd.insert(OpCall, Double, name, args...)
	v.Callee = fn
	return v
}

// Phi creates an empty phi; add edges with AddIncoming.
func (bd *Builder) Phi(name string) *Value {
	return bd.insert(OpPhi, Double, name)
}

// AddIncoming adds an edge to a phi.
func AddIncoming(phi, v *Value, from *Block) {
	phi.Incoming = append(phi.Incoming, Incoming{Value: v, Block: from})
}

// Br jumps to dest.
func (bd *Builder) Br(dest *Block) *Value {
	v := bd.insert(OpBr, Void, "")
	v.Targets = []*Block{dest}
	return v
}

// CondBr jumps to then if cond is true, otherwise to els.
func (bd *Builder) CondBr(cond *Value, then, els *Block) *Value {
	v := bd.insert(OpCondBr, Void, "", cond)
	v.Targets = []*Block{then, els}
	return v
}

// Ret returns v from the function.
func (bd *Builder) Ret(v *Value) *Value {
	return bd.insert(OpRet, Void, "", v)
}
