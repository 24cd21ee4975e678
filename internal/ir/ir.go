// Package ir is the code generation backend: an SSA-style intermediate
// representation with mutable stack slots, modelled on the subset of LLVM
// that kaleido needs. Functions built here are verified, optionally
// optimized, and executed by package jit.
package ir

import "fmt"

// Type is the type of a value.
type Type int

const (
	Void Type = iota
	Double
	Bool
	Slot
)

func (t Type) String() string {
	switch t {
	case Void:
		return "void"
	case Double:
		return "double"
	case Bool:
		return "i1"
	case Slot:
		return "ptr"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Op is an instruction opcode.
type Op int

const (
	OpParam Op = iota
	OpConst
	OpAlloca
	OpLoad
	OpStore
	OpFAdd
	OpFSub
	OpFMul
	OpFCmpULT
	OpFCmpONE
	OpUIToFP
	OpCall
	OpPhi
	OpBr
	OpCondBr
	OpRet
)

var opNames = [...]string{
	OpParam:   "param",
	OpConst:   "const",
	OpAlloca:  "alloca",
	OpLoad:    "load",
	OpStore:   "store",
	OpFAdd:    "fadd",
	OpFSub:    "fsub",
	OpFMul:    "fmul",
	OpFCmpULT: "fcmp ult",
	OpFCmpONE: "fcmp one",
	OpUIToFP:  "uitofp",
	OpCall:    "call",
	OpPhi:     "phi",
	OpBr:      "br",
	OpCondBr:  "br",
	OpRet:     "ret",
}

func (op Op) String() string {
	if int(op) >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// IsTerminator reports whether op ends a block.
func (op Op) IsTerminator() bool {
	return op == OpBr || op == OpCondBr || op == OpRet
}

// pure instructions can be deleted when their result is unused.
func (op Op) pure() bool {
	switch op {
	case OpLoad, OpFAdd, OpFSub, OpFMul, OpFCmpULT, OpFCmpONE, OpUIToFP, OpPhi:
		return true
	}
	return false
}

// Value is a function parameter, a constant, or an instruction and its
// result. Constants belong to no block and have ID -1.
type Value struct {
	Op       Op
	Type     Type
	Name     string
	ID       int
	Args     []*Value
	Const    float64
	Callee   *Function
	Targets  []*Block
	Incoming []Incoming
	Block    *Block
	Slot     int // OpAlloca: index into the frame's slot array
}

// Incoming is one (value, predecessor) pair of a phi.
type Incoming struct {
	Value *Value
	Block *Block
}

// IsConst reports whether v is a constant.
func (v *Value) IsConst() bool { return v != nil && v.Op == OpConst }

// Block is a basic block: a straight-line instruction list that ends with a
// terminator.
type Block struct {
	Name   string
	Instrs []*Value
	Parent *Function
}

// Terminator returns the block's final instruction if it is a terminator.
func (b *Block) Terminator() *Value {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Successors returns the blocks the terminator may branch to.
func (b *Block) Successors() []*Block {
	if t := b.Terminator(); t != nil {
		return t.Targets
	}
	return nil
}

// Function is a declaration (no blocks) or a definition.
type Function struct {
	Name     string
	Params   []*Value
	Blocks   []*Block
	NumSlots int

	module *Module
	nextID int
	names  map[string]int
}

// Module returns the module that owns f.
func (f *Function) Module() *Module { return f.module }

// Empty reports whether f is only a declaration.
func (f *Function) Empty() bool { return len(f.Blocks) == 0 }

// NumRegs is the size of the register file needed to run f.
func (f *Function) NumRegs() int { return f.nextID }

// Entry returns the entry block, or nil for a declaration.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// NewBlock appends a new basic block to f.
func (f *Function) NewBlock(name string) *Block {
	b := &Block{Name: f.uniqueName(name), Parent: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Erase drops f's body, turning it back into a declaration.
func (f *Function) Erase() {
	f.Blocks = nil
	f.NumSlots = 0
	f.nextID = len(f.Params)
	f.names = make(map[string]int)
	for _, p := range f.Params {
		f.uniqueName(p.Name)
	}
}

// Predecessors returns the blocks whose terminators branch to b.
func (f *Function) Predecessors(b *Block) []*Block {
	var preds []*Block
	for _, blk := range f.Blocks {
		for _, s := range blk.Successors() {
			if s == b {
				preds = append(preds, blk)
				break
			}
		}
	}
	return preds
}

func (f *Function) newValue(op Op, typ Type, name string) *Value {
	v := &Value{Op: op, Type: typ, ID: f.nextID}
	f.nextID++
	if typ != Void {
		v.Name = f.uniqueName(name)
	}
	return v
}

// uniqueName returns name, or name with a numeric suffix if it is taken.
func (f *Function) uniqueName(name string) string {
	if f.names == nil {
		f.names = make(map[string]int)
	}
	if name == "" {
		name = "t"
	}
	n, taken := f.names[name]
	f.names[name] = n + 1
	if !taken {
		return name
	}
	return fmt.Sprintf("%s%d", name, n)
}

// Module is a compilation unit: a named set of functions.
type Module struct {
	Name  string
	funcs map[string]*Function
	order []*Function
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name, funcs: make(map[string]*Function)}
}

// Function returns the function called name, or nil.
func (m *Module) Function(name string) *Function {
	return m.funcs[name]
}

// Functions returns the module's functions in declaration order.
func (m *Module) Functions() []*Function {
	return append([]*Function(nil), m.order...)
}

// Declare adds a function signature taking len(params) doubles and
// returning a double.
func (m *Module) Declare(name string, params []string) (*Function, error) {
	if _, exists := m.funcs[name]; exists {
		return nil, fmt.Errorf("function %q already declared in module %s", name, m.Name)
	}
	f := &Function{Name: name, module: m}
	for _, p := range params {
		f.Params = append(f.Params, f.newValue(OpParam, Double, p))
	}
	m.funcs[name] = f
	m.order = append(m.order, f)
	return f, nil
}

// Remove deletes f from the module.
func (m *Module) Remove(f *Function) {
	if m.funcs[f.Name] != f {
		return
	}
	delete(m.funcs, f.Name)
	for i, g := range m.order {
		if g == f {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
