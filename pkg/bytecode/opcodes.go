package bytecode

import (
	"fmt"
	"sort"
)

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack and literals (0x00-0x0F)
	// ========================================================================

	OpNop      Opcode = 0x00 // No operation
	OpPushInt  Opcode = 0x01 // Push Int: PUSH_INT <value>
	OpPushBool Opcode = 0x02 // Push Bool: PUSH_BOOL <0|1>
	OpPushStr  Opcode = 0x03 // Push Str from pool: PUSH_STR <index>
	OpPushName Opcode = 0x04 // Push Name from pool: PUSH_NAME <index>
	OpPushNil  Opcode = 0x05 // Push Nil
	OpPop      Opcode = 0x06 // Discard top of stack
	OpDup      Opcode = 0x07 // Duplicate top of stack
	OpHalt     Opcode = 0x0F // Stop; the stack top is the result

	// ========================================================================
	// Arithmetic (0x10-0x1F)
	// ========================================================================

	OpAdd Opcode = 0x10 // Int+Int, Str+Str, List+List
	OpSub Opcode = 0x11 // a - b where b is TOS
	OpMul Opcode = 0x12
	OpDiv Opcode = 0x13
	OpMod Opcode = 0x14
	OpNeg Opcode = 0x15

	// ========================================================================
	// Comparison (0x20-0x2F)
	// ========================================================================

	OpCmpEq  Opcode = 0x20 // Structural equality, any types
	OpCmpNeq Opcode = 0x21
	OpCmpLt  Opcode = 0x22 // Ints only
	OpCmpLte Opcode = 0x23
	OpCmpGt  Opcode = 0x24
	OpCmpGte Opcode = 0x25

	// ========================================================================
	// Collections (0x30-0x3F)
	// ========================================================================

	OpCreateList  Opcode = 0x30 // Pop n values into a List: CREATE_LIST <n>
	OpCreateTuple Opcode = 0x31 // CREATE_TUPLE <n>
	OpCreateMap   Opcode = 0x32 // Pop n key/value pairs: CREATE_MAP <n>
	OpConcat      Opcode = 0x33 // Str+Str or List+List
	OpDiff        Opcode = 0x34 // List minus List, multiset semantics

	// ========================================================================
	// Locals (0x40-0x4F)
	// ========================================================================

	OpAllocLocal Opcode = 0x40 // Append a Nil slot
	OpLoadLocal  Opcode = 0x41 // LOAD_LOCAL <index>
	OpStoreLocal Opcode = 0x42 // STORE_LOCAL <index>

	// ========================================================================
	// Control flow (0x50-0x5F)
	// Label (Str) is pushed first, condition second.
	// ========================================================================

	OpJump          Opcode = 0x50
	OpBranchTrue    Opcode = 0x51
	OpBranchFalse   Opcode = 0x52
	OpBranchSuccess Opcode = 0x53

	// ========================================================================
	// Names and RSpace (0x60-0x6F)
	// ========================================================================

	OpNameCreate Opcode = 0x60 // Push fresh "@kind:id": NAME_CREATE <kind>
	OpTell       Opcode = 0x61 // Pop data, channel; push true: TELL <kind>
	OpAsk        Opcode = 0x62 // Pop channel; push front or Nil: ASK <kind>
	OpPeek       Opcode = 0x63 // Pop channel; push copy of front or Nil: PEEK <kind>

	// ========================================================================
	// Continuations (0x70-0x7F)
	// ========================================================================

	OpContStore  Opcode = 0x70 // Pop value, push its continuation id
	OpContResume Opcode = 0x71 // Pop id, push stored value (once) or Nil

	// ========================================================================
	// Pattern matching (0x80-0x8F) - reserved
	// ========================================================================

	OpPattern         Opcode = 0x80
	OpMatchTest       Opcode = 0x81
	OpExtractBindings Opcode = 0x82

	// ========================================================================
	// Evaluation (0x90-0x9F) - reserved
	// ========================================================================

	OpEval           Opcode = 0x90
	OpEvalBool       Opcode = 0x91
	OpEvalStar       Opcode = 0x92
	OpEvalWithLocals Opcode = 0x93
	OpEvalInBundle   Opcode = 0x94
	OpEvalToRSpace   Opcode = 0x95
	OpExec           Opcode = 0x96
	OpSpawnAsync     Opcode = 0x97

	// ========================================================================
	// Process logic (0xA0-0xAF) - reserved
	// ========================================================================

	OpProcNeg Opcode = 0xA0
	OpConj    Opcode = 0xA1
	OpDisj    Opcode = 0xA2

	// ========================================================================
	// References and methods (0xB0-0xBF) - reserved
	// ========================================================================

	OpCopy         Opcode = 0xB0
	OpMove         Opcode = 0xB1
	OpRef          Opcode = 0xB2
	OpInvokeMethod Opcode = 0xB8
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack
	HasOperand bool   // Whether the instruction's Arg is meaningful
	Reserved   bool   // Decoded but not executable by this VM
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack and literals
	OpNop:      {"NOP", 0, 0, false, false},
	OpPushInt:  {"PUSH_INT", 0, 1, true, false},
	OpPushBool: {"PUSH_BOOL", 0, 1, true, false},
	OpPushStr:  {"PUSH_STR", 0, 1, true, false},
	OpPushName: {"PUSH_NAME", 0, 1, true, false},
	OpPushNil:  {"PUSH_NIL", 0, 1, false, false},
	OpPop:      {"POP", 1, 0, false, false},
	OpDup:      {"DUP", 1, 2, false, false},
	OpHalt:     {"HALT", 0, 0, false, false},

	// Arithmetic
	OpAdd: {"ADD", 2, 1, false, false},
	OpSub: {"SUB", 2, 1, false, false},
	OpMul: {"MUL", 2, 1, false, false},
	OpDiv: {"DIV", 2, 1, false, false},
	OpMod: {"MOD", 2, 1, false, false},
	OpNeg: {"NEG", 1, 1, false, false},

	// Comparison
	OpCmpEq:  {"CMP_EQ", 2, 1, false, false},
	OpCmpNeq: {"CMP_NEQ", 2, 1, false, false},
	OpCmpLt:  {"CMP_LT", 2, 1, false, false},
	OpCmpLte: {"CMP_LTE", 2, 1, false, false},
	OpCmpGt:  {"CMP_GT", 2, 1, false, false},
	OpCmpGte: {"CMP_GTE", 2, 1, false, false},

	// Collections
	OpCreateList:  {"CREATE_LIST", -1, 1, true, false},
	OpCreateTuple: {"CREATE_TUPLE", -1, 1, true, false},
	OpCreateMap:   {"CREATE_MAP", -1, 1, true, false},
	OpConcat:      {"CONCAT", 2, 1, false, false},
	OpDiff:        {"DIFF", 2, 1, false, false},

	// Locals
	OpAllocLocal: {"ALLOC_LOCAL", 0, 0, false, false},
	OpLoadLocal:  {"LOAD_LOCAL", 0, 1, true, false},
	OpStoreLocal: {"STORE_LOCAL", 1, 0, true, false},

	// Control flow
	OpJump:          {"JUMP", 1, 0, false, false},
	OpBranchTrue:    {"BRANCH_TRUE", 2, 0, false, false},
	OpBranchFalse:   {"BRANCH_FALSE", 2, 0, false, false},
	OpBranchSuccess: {"BRANCH_SUCCESS", 2, 0, false, false},

	// Names and RSpace
	OpNameCreate: {"NAME_CREATE", 0, 1, true, false},
	OpTell:       {"TELL", 2, 1, true, false},
	OpAsk:        {"ASK", 1, 1, true, false},
	OpPeek:       {"PEEK", 1, 1, true, false},

	// Continuations
	OpContStore:  {"CONT_STORE", 1, 1, false, false},
	OpContResume: {"CONT_RESUME", 1, 1, false, false},

	// Reserved
	OpPattern:         {"PATTERN", -1, -1, false, true},
	OpMatchTest:       {"MATCH_TEST", -1, -1, false, true},
	OpExtractBindings: {"EXTRACT_BINDINGS", -1, -1, false, true},
	OpEval:            {"EVAL", -1, -1, false, true},
	OpEvalBool:        {"EVAL_BOOL", -1, -1, false, true},
	OpEvalStar:        {"EVAL_STAR", -1, -1, false, true},
	OpEvalWithLocals:  {"EVAL_WITH_LOCALS", -1, -1, false, true},
	OpEvalInBundle:    {"EVAL_IN_BUNDLE", -1, -1, false, true},
	OpEvalToRSpace:    {"EVAL_TO_RSPACE", -1, -1, false, true},
	OpExec:            {"EXEC", -1, -1, false, true},
	OpSpawnAsync:      {"SPAWN_ASYNC", -1, -1, false, true},
	OpProcNeg:         {"PROC_NEG", -1, -1, false, true},
	OpConj:            {"CONJ", -1, -1, false, true},
	OpDisj:            {"DISJ", -1, -1, false, true},
	OpCopy:            {"COPY", -1, -1, false, true},
	OpMove:            {"MOVE", -1, -1, false, true},
	OpRef:             {"REF", -1, -1, false, true},
	OpInvokeMethod:    {"INVOKE_METHOD", -1, -1, false, true},
}

// opcodesByName is the inverse of opcodeInfoTable, used by the assembler.
var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// LookupOpcode returns the opcode with the given mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// HasOperand reports whether the instruction's argument is used.
func (op Opcode) HasOperand() bool {
	return GetOpcodeInfo(op).HasOperand
}

// IsReserved returns true for opcodes that are decoded but not executed.
func (op Opcode) IsReserved() bool {
	return GetOpcodeInfo(op).Reserved
}

// IsBranch returns true if this opcode transfers control to a label.
func (op Opcode) IsBranch() bool {
	return op >= OpJump && op <= OpBranchSuccess
}

// IsRSpace returns true if this opcode touches RSpace or allocates names.
func (op Opcode) IsRSpace() bool {
	return op >= OpNameCreate && op <= OpPeek
}

// AllOpcodes returns all defined opcodes in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	sort.Slice(opcodes, func(i, j int) bool { return opcodes[i] < opcodes[j] })
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
