package ir

import (
	"fmt"
	"io"
	"strings"
)

// Print writes f in an LLVM-like textual form.
func Print(w io.Writer, f *Function) error {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = "double %" + p.Name
	}
	sig := fmt.Sprintf("double @%s(%s)", f.Name, strings.Join(params, ", "))
	if f.Empty() {
		_, err := fmt.Fprintf(w, "declare %s\n", sig)
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "define %s {\n", sig)
	for i, b := range f.Blocks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s:\n", b.Name)
		for _, in := range b.Instrs {
			sb.WriteString("  ")
			sb.WriteString(formatInstr(in))
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func (m *Module) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; ModuleID = '%s'\n", m.Name)
	for _, f := range m.order {
		sb.WriteByte('\n')
		_ = Print(&sb, f)
	}
	return sb.String()
}

func operand(v *Value) string {
	if v.IsConst() {
		if v.Type == Bool {
			if v.Const != 0 {
				return "true"
			}
			return "false"
		}
		return fmt.Sprintf("%e", v.Const)
	}
	return "%" + v.Name
}

func typed(v *Value) string {
	return v.Type.String() + " " + operand(v)
}

func formatInstr(in *Value) string {
	res := "%" + in.Name + " = "
	switch in.Op {
	case OpAlloca:
		return res + "alloca double"
	case OpLoad:
		return res + "load double, ptr " + operand(in.Args[0])
	case OpStore:
		return "store " + typed(in.Args[0]) + ", ptr " + operand(in.Args[1])
	case OpFAdd, OpFSub, OpFMul, OpFCmpULT, OpFCmpONE:
		return fmt.Sprintf("%s%s double %s, %s", res, in.Op, operand(in.Args[0]), operand(in.Args[1]))
	case OpUIToFP:
		return res + "uitofp " + typed(in.Args[0]) + " to double"
	case OpCall:
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = typed(a)
		}
		return fmt.Sprintf("%scall double @%s(%s)", res, in.Callee.Name, strings.Join(args, ", "))
	case OpPhi:
		edges := make([]string, len(in.Incoming))
		for i, inc := range in.Incoming {
			edges[i] = fmt.Sprintf("[ %s, %%%s ]", operand(inc.Value), inc.Block.Name)
		}
		return res + "phi double " + strings.Join(edges, ", ")
	case OpBr:
		return "br label %" + in.Targets[0].Name
	case OpCondBr:
		return fmt.Sprintf("br %s, label %%%s, label %%%s", typed(in.Args[0]), in.Targets[0].Name, in.Targets[1].Name)
	case OpRet:
		return "ret " + typed(in.Args[0])
	}
	return in.Op.String()
}
