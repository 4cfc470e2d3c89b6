package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeNamesRoundTrip(t *testing.T) {
	for _, op := range AllOpcodes() {
		got, ok := LookupOpcode(op.String())
		if !ok || got != op {
			t.Errorf("LookupOpcode(%q) = %v, %v; want %v", op.String(), got, ok, op)
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "NOP"},
		{OpPushInt, "PUSH_INT"},
		{OpHalt, "HALT"},
		{OpCmpLte, "CMP_LTE"},
		{OpCreateMap, "CREATE_MAP"},
		{OpBranchSuccess, "BRANCH_SUCCESS"},
		{OpNameCreate, "NAME_CREATE"},
		{OpContResume, "CONT_RESUME"},
		{OpExtractBindings, "EXTRACT_BINDINGS"},
		{OpInvokeMethod, "INVOKE_METHOD"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	if op.Valid() {
		t.Fatal("0xEE should not be a valid opcode")
	}
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
}

func TestOpcodeCategories(t *testing.T) {
	for _, op := range []Opcode{OpJump, OpBranchTrue, OpBranchFalse, OpBranchSuccess} {
		if !op.IsBranch() {
			t.Errorf("%s should be a branch", op)
		}
	}
	for _, op := range []Opcode{OpNameCreate, OpTell, OpAsk, OpPeek} {
		if !op.IsRSpace() {
			t.Errorf("%s should touch RSpace", op)
		}
	}
	for _, op := range []Opcode{OpPattern, OpEval, OpSpawnAsync, OpConj, OpRef, OpInvokeMethod} {
		if !op.IsReserved() {
			t.Errorf("%s should be reserved", op)
		}
	}
	if OpAdd.IsReserved() || OpAdd.IsBranch() {
		t.Error("ADD is neither reserved nor a branch")
	}
}

func TestOpcodeOperands(t *testing.T) {
	with := []Opcode{OpPushInt, OpPushBool, OpPushStr, OpPushName, OpCreateList, OpCreateTuple,
		OpCreateMap, OpLoadLocal, OpStoreLocal, OpNameCreate, OpTell, OpAsk, OpPeek}
	for _, op := range with {
		if !op.HasOperand() {
			t.Errorf("%s should take an operand", op)
		}
	}
	without := []Opcode{OpNop, OpPop, OpHalt, OpAdd, OpJump, OpContStore, OpAllocLocal}
	for _, op := range without {
		if op.HasOperand() {
			t.Errorf("%s should not take an operand", op)
		}
	}
}

func TestInstructionString(t *testing.T) {
	if got := InstArg(OpPushInt, -3).String(); got != "PUSH_INT -3" {
		t.Errorf("got %q", got)
	}
	if got := Inst(OpAdd).String(); got != "ADD" {
		t.Errorf("got %q", got)
	}
}
