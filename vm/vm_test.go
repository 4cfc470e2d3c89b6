package vm

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/rhovm/pkg/bytecode"
	"github.com/chazu/rhovm/pkg/rho"
	"github.com/chazu/rhovm/rspace"
)

// assemble builds the first process of src over a fresh memory store.
func assemble(t *testing.T, src string) *Process {
	t.Helper()
	m, err := bytecode.Assemble(src)
	require.NoError(t, err)
	procs := ProcessesFromModule(m)
	require.NotEmpty(t, procs)
	return procs[0]
}

func run(t *testing.T, src string) (rho.Value, error) {
	t.Helper()
	return assemble(t, src).Execute()
}

func mustRun(t *testing.T, src string) rho.Value {
	t.Helper()
	v, err := run(t, src)
	require.NoError(t, err)
	return v
}

func requireExecError(t *testing.T, err error, kind ErrorKind, msg string) *ExecError {
	t.Helper()
	require.Error(t, err)
	var ee *ExecError
	require.True(t, errors.As(err, &ee), "not an ExecError: %v", err)
	assert.Equal(t, kind, ee.Kind, "kind of %q", err)
	assert.Contains(t, err.Error(), msg)
	return ee
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want rho.Value
	}{
		{"add", "PUSH_INT 2\nPUSH_INT 3\nADD\nHALT", rho.Int(5)},
		{"chain", "PUSH_INT 6\nPUSH_INT 7\nMUL\nPUSH_INT 3\nDIV\nPUSH_INT 5\nMOD\nHALT", rho.Int(4)},
		{"sub order", "PUSH_INT 10\nPUSH_INT 4\nSUB", rho.Int(6)},
		{"neg", "PUSH_INT 9\nNEG", rho.Int(-9)},
		{"truncating div", "PUSH_INT -7\nPUSH_INT 2\nDIV", rho.Int(-3)},
		{"wrapping add", fmt.Sprintf("PUSH_INT %d\nPUSH_INT 1\nADD", int64(1<<63-1)), rho.Int(-1 << 63)},
		{"str add", "PUSH_STR \"ab\"\nPUSH_STR \"cd\"\nADD", rho.Str("abcd")},
		{"list add", "PUSH_INT 1\nCREATE_LIST 1\nPUSH_INT 2\nCREATE_LIST 1\nADD", rho.List{rho.Int(1), rho.Int(2)}},
		{"concat", "PUSH_STR \"x\"\nPUSH_STR \"y\"\nCONCAT", rho.Str("xy")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRun(t, tt.src)
			assert.True(t, rho.Equal(tt.want, got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	p := assemble(t, "PUSH_INT 1\nPUSH_INT 0\nDIV")
	_, err := p.Execute()
	ee := requireExecError(t, err, ErrArithmetic, "division by zero")
	assert.Equal(t, bytecode.OpDiv, ee.Op)
	assert.Equal(t, 2, ee.PC)
	assert.True(t, errors.Is(err, &ExecError{Kind: ErrArithmetic}))

	st := p.State()
	assert.Equal(t, rho.StatusError, st.Status)
	assert.Contains(t, st.Err, "division by zero")

	_, err = run(t, "PUSH_INT 1\nPUSH_INT 0\nMOD")
	requireExecError(t, err, ErrArithmetic, "modulo by zero")
}

func TestTypeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"add", "PUSH_INT 1\nPUSH_STR \"a\"\nADD", "ADD type mismatch"},
		{"div", "PUSH_STR \"a\"\nPUSH_INT 1\nDIV", "DIV requires Ints"},
		{"neg", "PUSH_BOOL true\nNEG", "NEG requires Int"},
		{"concat ints", "PUSH_INT 1\nPUSH_INT 2\nCONCAT", "CONCAT type mismatch"},
		{"lt", "PUSH_STR \"a\"\nPUSH_STR \"b\"\nCMP_LT", "CMP_LT requires Ints"},
		{"diff", "PUSH_INT 1\nPUSH_INT 2\nDIFF", "DIFF requires Lists"},
		{"branch cond", "PUSH_STR \"l\"\nPUSH_INT 1\nBRANCH_TRUE\nl:", "BRANCH_TRUE requires Bool"},
		{"tell channel", "PUSH_INT 1\nPUSH_INT 2\nTELL 0", "TELL channel must be Name"},
		{"resume id", "PUSH_INT -1\nCONT_RESUME", "CONT_RESUME requires a non-negative Int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.src)
			requireExecError(t, err, ErrType, tt.msg)
		})
	}
}

func TestComparison(t *testing.T) {
	tests := map[string]bool{
		"PUSH_INT 1\nPUSH_INT 2\nCMP_LT":                          true,
		"PUSH_INT 2\nPUSH_INT 2\nCMP_LTE":                         true,
		"PUSH_INT 1\nPUSH_INT 2\nCMP_GT":                          false,
		"PUSH_INT 2\nPUSH_INT 2\nCMP_GTE":                         true,
		"PUSH_STR \"a\"\nPUSH_STR \"a\"\nCMP_EQ":                  true,
		"PUSH_STR \"a\"\nPUSH_NAME \"a\"\nCMP_EQ":                 false,
		"PUSH_NIL\nPUSH_NIL\nCMP_NEQ":                             false,
		"PUSH_INT 1\nPUSH_INT 2\nCREATE_TUPLE 2\nPUSH_INT 1\nPUSH_INT 2\nCREATE_TUPLE 2\nCMP_EQ": true,
	}
	for src, want := range tests {
		assert.Equal(t, rho.Bool(want), mustRun(t, src), src)
	}
}

func TestCollections(t *testing.T) {
	list := mustRun(t, "PUSH_INT 1\nPUSH_INT 2\nPUSH_INT 3\nCREATE_LIST 3")
	assert.Equal(t, rho.List{rho.Int(1), rho.Int(2), rho.Int(3)}, list)

	empty := mustRun(t, "CREATE_TUPLE 0")
	assert.True(t, rho.Equal(rho.Tuple{}, empty))

	m := mustRun(t, "PUSH_STR \"a\"\nPUSH_INT 1\nPUSH_STR \"b\"\nPUSH_INT 2\nCREATE_MAP 2")
	assert.Equal(t, rho.Map{
		{Key: rho.Str("a"), Value: rho.Int(1)},
		{Key: rho.Str("b"), Value: rho.Int(2)},
	}, m)

	diff := mustRun(t, `
		PUSH_INT 1
		PUSH_INT 2
		PUSH_INT 1
		PUSH_INT 3
		PUSH_INT 1
		CREATE_LIST 5
		PUSH_INT 1
		PUSH_INT 1
		PUSH_INT 4
		CREATE_LIST 3
		DIFF`)
	assert.Equal(t, rho.List{rho.Int(2), rho.Int(3), rho.Int(1)}, diff)

	_, err := run(t, "PUSH_INT 1\nCREATE_LIST 2")
	requireExecError(t, err, ErrStackUnderflow, "CREATE_LIST stack underflow")
	_, err = run(t, "PUSH_INT 1\nPUSH_INT 1\nPUSH_INT 1\nCREATE_MAP 2")
	requireExecError(t, err, ErrStackUnderflow, "CREATE_MAP stack underflow")
}

func TestStackOps(t *testing.T) {
	assert.Equal(t, rho.Int(1), mustRun(t, "PUSH_INT 1\nPUSH_INT 2\nPOP"))
	assert.Equal(t, rho.Int(14), mustRun(t, "PUSH_INT 7\nDUP\nADD"))
	assert.Equal(t, rho.Nil, mustRun(t, "HALT"))
	assert.Equal(t, rho.Nil, mustRun(t, "NOP"))
	assert.Equal(t, rho.Int(1), mustRun(t, "PUSH_INT 1\nHALT\nPUSH_INT 2"))

	_, err := run(t, "POP")
	requireExecError(t, err, ErrStackUnderflow, "POP stack underflow")
	_, err = run(t, "ADD")
	requireExecError(t, err, ErrStackUnderflow, "ADD stack underflow")

	_, err = run(t, "PUSH_STR 9")
	requireExecError(t, err, ErrConstantIndex, "PUSH_STR bad constant")
}

func TestLocals(t *testing.T) {
	p := assemble(t, `
		ALLOC_LOCAL
		ALLOC_LOCAL
		PUSH_INT 5
		STORE_LOCAL 1
		LOAD_LOCAL 1
		LOAD_LOCAL 0
		CREATE_TUPLE 2`)
	v, err := p.Execute()
	require.NoError(t, err)
	assert.Equal(t, rho.Tuple{rho.Int(5), rho.Nil}, v)
	assert.Equal(t, []rho.Value{rho.Nil, rho.Int(5)}, p.Locals())

	// locals persist and grow across re-execution
	_, err = p.Execute()
	require.NoError(t, err)
	assert.Len(t, p.Locals(), 4)

	_, err = run(t, "PUSH_INT 1\nSTORE_LOCAL 0")
	requireExecError(t, err, ErrLocalIndex, "STORE_LOCAL index 0 out of bounds")
	_, err = run(t, "ALLOC_LOCAL\nLOAD_LOCAL 1")
	requireExecError(t, err, ErrLocalIndex, "LOAD_LOCAL index 1 out of bounds")
}

const branchSrc = `
	PUSH_STR "yes"
	PUSH_BOOL %s
	%s
	PUSH_INT 1
	HALT
yes:
	PUSH_INT 2
	HALT
`

func TestBranches(t *testing.T) {
	tests := []struct {
		cond, op string
		want     rho.Int
	}{
		{"true", "BRANCH_TRUE", 2},
		{"false", "BRANCH_TRUE", 1},
		{"false", "BRANCH_FALSE", 2},
		{"true", "BRANCH_FALSE", 1},
	}
	for _, tt := range tests {
		t.Run(tt.op+" "+tt.cond, func(t *testing.T) {
			assert.Equal(t, tt.want, mustRun(t, fmt.Sprintf(branchSrc, tt.cond, tt.op)))
		})
	}
}

func TestBranchSuccess(t *testing.T) {
	src := `
	PUSH_STR "ok"
	%s
	BRANCH_SUCCESS
	PUSH_STR "miss"
	HALT
ok:
	PUSH_STR "hit"
`
	tests := map[string]rho.Str{
		"PUSH_NIL":       "miss",
		"PUSH_BOOL false": "miss",
		"PUSH_BOOL true": "hit",
		"PUSH_INT 0":     "hit",
		"PUSH_STR \"\"":  "hit",
	}
	for cond, want := range tests {
		assert.Equal(t, want, mustRun(t, fmt.Sprintf(src, cond)), cond)
	}
}

func TestJump(t *testing.T) {
	v := mustRun(t, `
	ALLOC_LOCAL
	PUSH_INT 0
loop:
	PUSH_INT 1
	ADD
	DUP
	PUSH_INT 5
	CMP_LT
	STORE_LOCAL 0
	PUSH_STR "loop"
	LOAD_LOCAL 0
	BRANCH_TRUE
	PUSH_STR "end"
	JUMP
	PUSH_INT 99
end:
`)
	assert.Equal(t, rho.Int(5), v)
}

func TestLabels(t *testing.T) {
	_, err := run(t, "PUSH_STR \"nowhere\"\nJUMP")
	requireExecError(t, err, ErrLabelNotFound, "label not found: nowhere")

	// untaken branches never resolve the label
	assert.Equal(t, rho.Int(3), mustRun(t, "PUSH_STR \"nowhere\"\nPUSH_BOOL false\nBRANCH_TRUE\nPUSH_INT 3"))

	// a label at the end of the code halts with the current top
	assert.Equal(t, rho.Int(1), mustRun(t, "PUSH_INT 1\nPUSH_STR \"end\"\nJUMP\nPUSH_INT 2\nend:"))

	_, err = run(t, "PUSH_INT 1\nJUMP")
	requireExecError(t, err, ErrType, "JUMP label must be Str")
}

func TestContinuations(t *testing.T) {
	v := mustRun(t, "PUSH_STR \"saved\"\nCONT_STORE\nDUP\nCONT_RESUME\nPOP\nCONT_RESUME")
	assert.Equal(t, rho.Nil, v, "second resume")

	v = mustRun(t, "PUSH_STR \"saved\"\nCONT_STORE\nCONT_RESUME")
	assert.Equal(t, rho.Str("saved"), v)

	machine := NewVM(rspace.NewMemory())
	id, err := NewProcess("store", []bytecode.Instruction{
		bytecode.InstArg(bytecode.OpPushInt, 7),
		bytecode.Inst(bytecode.OpContStore),
	}, nil, nil).Run(machine)
	require.NoError(t, err)
	assert.Equal(t, rho.Int(1), id, "ids start at 1")
	assert.Equal(t, 1, machine.Continuations())

	// the table outlives a run on the same VM
	v, err = NewProcess("resume", []bytecode.Instruction{
		bytecode.InstArg(bytecode.OpPushInt, 1),
		bytecode.Inst(bytecode.OpContResume),
	}, nil, nil).Run(machine)
	require.NoError(t, err)
	assert.Equal(t, rho.Int(7), v)
	assert.Equal(t, 0, machine.Continuations())

	assert.Equal(t, rho.Nil, mustRun(t, "PUSH_INT 42\nCONT_RESUME"))
}

func TestRSpaceOps(t *testing.T) {
	space := rspace.NewMemory()
	machine := NewVM(space)

	tellAsk := assemble(t, `
		ALLOC_LOCAL
		NAME_CREATE 0
		STORE_LOCAL 0
		LOAD_LOCAL 0
		PUSH_INT 1
		TELL 0
		POP
		LOAD_LOCAL 0
		PUSH_INT 2
		TELL 0
		POP
		LOAD_LOCAL 0
		PEEK 0
		LOAD_LOCAL 0
		ASK 0
		LOAD_LOCAL 0
		ASK 0
		LOAD_LOCAL 0
		ASK 0
		CREATE_TUPLE 4`)
	v, err := tellAsk.Run(machine)
	require.NoError(t, err)
	assert.Equal(t, rho.Tuple{rho.Int(1), rho.Int(1), rho.Int(2), rho.Nil}, v)
	assert.Equal(t, []rho.Value{rho.Name("@0:1")}, tellAsk.Locals())

	assert.False(t, space.IsSolved(rho.KindMemorySequential, "@0:1"))
	e, ok := space.Entry(rho.KindMemorySequential, "@0:1")
	require.True(t, ok)
	assert.Equal(t, rspace.EntryChannel, e.Kind())

	assert.Equal(t, rho.Bool(true), mustRun(t, "PUSH_NAME \"@2:out\"\nPUSH_STR \"hi\"\nTELL 2"))
}

func TestRSpaceErrors(t *testing.T) {
	_, err := run(t, "PUSH_NAME \"@1:x\"\nPUSH_INT 1\nTELL 0")
	ee := requireExecError(t, err, ErrRSpace, "TELL @1:x failed")
	assert.ErrorIs(t, err, rspace.ErrKindMismatch)
	assert.Equal(t, bytecode.OpTell, ee.Op)

	space := rspace.NewMemory()
	require.NoError(t, space.SetValue(rho.KindMemorySequential, "@0:v", rho.Int(1)))
	p := assemble(t, "PUSH_NAME \"@0:v\"\nASK 0")
	_, err = p.Run(NewVM(space))
	requireExecError(t, err, ErrRSpace, "ASK @0:v failed")
	assert.ErrorIs(t, err, rspace.ErrTypeMismatch)

	_, err = run(t, "NAME_CREATE 256")
	requireExecError(t, err, ErrInvalidInstruction, "NAME_CREATE invalid kind 256")
}

func TestNameCounter(t *testing.T) {
	var counter atomic.Uint64
	a := NewVM(rspace.NewMemory(), WithNameCounter(&counter))
	b := NewVM(rspace.NewMemory(), WithNameCounter(&counter))
	mk := func() *Process {
		return NewProcess("n", []bytecode.Instruction{bytecode.InstArg(bytecode.OpNameCreate, 3)}, nil, nil)
	}

	n1, err := mk().Run(a)
	require.NoError(t, err)
	n2, err := mk().Run(b)
	require.NoError(t, err)
	n3, err := mk().Run(a)
	require.NoError(t, err)
	assert.Equal(t, rho.Name("@3:1"), n1)
	assert.Equal(t, rho.Name("@3:2"), n2)
	assert.Equal(t, rho.Name("@3:3"), n3)
}

func TestUnimplementedOpcodes(t *testing.T) {
	for _, op := range bytecode.AllOpcodes() {
		if !op.IsReserved() {
			continue
		}
		t.Run(op.String(), func(t *testing.T) {
			p := NewProcess("r", []bytecode.Instruction{bytecode.InstArg(bytecode.OpPushInt, 1), bytecode.Inst(op)}, nil, nil)
			_, err := p.Execute()
			requireExecError(t, err, ErrUnimplemented, op.String()+" not implemented yet")
		})
	}

	_, err := NewProcess("bad", []bytecode.Instruction{bytecode.Inst(bytecode.Opcode(0xEE))}, nil, nil).Execute()
	requireExecError(t, err, ErrInvalidInstruction, "invalid opcode")
}

func TestStackClearedBetweenRuns(t *testing.T) {
	machine := NewVM(rspace.NewMemory())
	first := NewProcess("a", []bytecode.Instruction{
		bytecode.InstArg(bytecode.OpPushInt, 1),
		bytecode.InstArg(bytecode.OpPushInt, 2),
	}, nil, nil)
	_, err := first.Run(machine)
	require.NoError(t, err)
	assert.Len(t, machine.Stack(), 2)

	second := NewProcess("b", []bytecode.Instruction{bytecode.Inst(bytecode.OpPop), bytecode.Inst(bytecode.OpPop)}, nil, nil)
	_, err = second.Run(machine)
	requireExecError(t, err, ErrStackUnderflow, "POP stack underflow")
}

func TestProcessLifecycle(t *testing.T) {
	p := assemble(t, "PUSH_INT 2\nPUSH_INT 3\nADD")
	assert.Equal(t, rho.StatusWait, p.State().Status)
	assert.True(t, p.MarkReady())
	assert.False(t, p.MarkReady())

	var events []ProcessEvent
	p.OnEvent(func(ev ProcessEvent) { events = append(events, ev) })

	v, err := p.Execute()
	require.NoError(t, err)
	assert.Equal(t, rho.Int(5), v)
	assert.True(t, p.State().Equal(rho.ValueState(rho.Int(5))))
	require.Len(t, events, 1)
	assert.Equal(t, EventValue, events[0].Kind)
	assert.Same(t, p, events[0].Process)
	assert.NotNil(t, p.VM())

	// a Par over the finished process is resolved
	assert.True(t, rho.Resolved(rho.Par{p}))

	bad := assemble(t, "POP")
	bad.OnEvent(func(ev ProcessEvent) { events = append(events, ev) })
	_, err = bad.Execute()
	require.Error(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventError, events[1].Kind)
	assert.Equal(t, err, events[1].Err)
	assert.False(t, rho.Resolved(rho.Par{p, bad}))
}
