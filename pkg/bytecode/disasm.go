package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble returns a listing of every process in the module. The
// listing is valid assembler input: Assemble(m.Disassemble()) yields
// processes with the same behaviour.
func (m *Module) Disassemble() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; Rholang Bytecode v%d\n", m.Version))
	if m.Pool.Len() > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range m.Pool.Constants() {
			display := c.String()
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			display = strings.ReplaceAll(display, "\n", "\\n")
			sb.WriteString(fmt.Sprintf(";   [%3d] %-6s %s\n", i, c.Kind, display))
		}
	}
	for _, pc := range m.Processes {
		sb.WriteString("\n")
		sb.WriteString(DisassembleProcess(pc, m.Pool))
	}
	return sb.String()
}

// DisassembleProcess returns the listing of a single process body.
func DisassembleProcess(pc ProcessCode, pool *ConstantPool) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; === %s ===\n", pc.Name))
	sb.WriteString(".process " + pc.Name + "\n")

	byTarget := make(map[int][]string, len(pc.Labels))
	for _, name := range pc.LabelNames() {
		t := pc.Labels[name]
		byTarget[t] = append(byTarget[t], name)
	}

	for i, inst := range pc.Code {
		for _, name := range byTarget[i] {
			sb.WriteString(name + ":\n")
		}
		sb.WriteString(fmt.Sprintf("    %-32s ; %04d\n", DisassembleInstruction(inst, pool), i))
	}
	for _, name := range pc.LabelNames() {
		if t := pc.Labels[name]; t < 0 || t >= len(pc.Code) {
			sb.WriteString(name + ":\n")
		}
	}
	return sb.String()
}

// DisassembleInstruction formats one instruction, resolving pool
// operands to literals where possible.
func DisassembleInstruction(inst Instruction, pool *ConstantPool) string {
	switch inst.Op {
	case OpPushStr, OpPushName:
		if s, err := pool.Text(inst.Arg); err == nil {
			return inst.Op.String() + " " + strconv.Quote(s)
		}
		return inst.String() + " ; <bad constant>"
	case OpPushBool:
		return inst.Op.String() + " " + strconv.FormatBool(inst.Arg != 0)
	}
	return inst.String()
}
