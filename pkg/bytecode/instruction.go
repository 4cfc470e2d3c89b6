package bytecode

import "strconv"

// Instruction is one decoded VM instruction. Arg carries the literal,
// pool index, count, local slot or kind tag, depending on Op.
type Instruction struct {
	Op  Opcode `cbor:"1,keyasint"`
	Arg int64  `cbor:"2,keyasint,omitempty"`
}

// Inst builds an instruction without an operand.
func Inst(op Opcode) Instruction {
	return Instruction{Op: op}
}

// InstArg builds an instruction with an operand.
func InstArg(op Opcode, arg int64) Instruction {
	return Instruction{Op: op, Arg: arg}
}

func (i Instruction) String() string {
	if i.Op.HasOperand() {
		return i.Op.String() + " " + strconv.FormatInt(i.Arg, 10)
	}
	return i.Op.String()
}
