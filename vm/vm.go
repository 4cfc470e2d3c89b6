package vm

import (
	"strconv"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/rhovm/pkg/bytecode"
	"github.com/chazu/rhovm/pkg/rho"
	"github.com/chazu/rhovm/rspace"
)

var log = commonlog.GetLogger("rhovm.vm")

// VM executes process bytecode. It owns an operand stack, a continuation
// table and a fresh-name counter, and reaches storage through an RSpace.
//
// A VM runs one process at a time and is not safe for concurrent use.
// It may be reused for any number of sequential executions.
type VM struct {
	space rspace.RSpace

	stack []rho.Value

	conts    map[int64]rho.Value
	nextCont int64

	names *atomic.Uint64
	trace bool

	// current execution
	proc   *Process
	locals []rho.Value
	pc     int
}

// Option configures a VM.
type Option func(*VM)

// WithTrace logs every instruction at debug level.
func WithTrace(on bool) Option {
	return func(vm *VM) { vm.trace = on }
}

// WithNameCounter makes the VM draw fresh name ids from counter, so that
// VMs sharing it never mint the same name.
func WithNameCounter(counter *atomic.Uint64) Option {
	return func(vm *VM) {
		if counter != nil {
			vm.names = counter
		}
	}
}

// NewVM creates a VM over space.
func NewVM(space rspace.RSpace, opts ...Option) *VM {
	vm := &VM{
		space:    space,
		stack:    make([]rho.Value, 0, 64),
		conts:    make(map[int64]rho.Value),
		nextCont: 1,
		names:    new(atomic.Uint64),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// RSpace returns the store the VM operates on.
func (vm *VM) RSpace() rspace.RSpace {
	return vm.space
}

// Stack returns a copy of the operand stack as left by the last run.
func (vm *VM) Stack() []rho.Value {
	out := make([]rho.Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// Continuations returns the number of stored, unresumed continuations.
func (vm *VM) Continuations() int {
	return len(vm.conts)
}

// freshName mints "@{kind}:{id}" with the next id from the counter.
func (vm *VM) freshName(kind rho.Kind) rho.Name {
	id := vm.names.Add(1)
	return rho.Name(rho.FormatName(kind, strconv.FormatUint(id, 10)))
}

// execute clears the stack and runs p. Locals are taken from p and
// written back afterwards, including when execution fails.
func (vm *VM) execute(p *Process) (rho.Value, error) {
	vm.stack = vm.stack[:0]
	vm.proc = p
	vm.pc = 0

	p.mu.Lock()
	vm.locals = p.locals
	p.mu.Unlock()

	result, err := vm.run()

	p.mu.Lock()
	p.locals = vm.locals
	p.mu.Unlock()
	vm.proc = nil
	vm.locals = nil

	if err != nil {
		log.Debugf("process %s failed: %s", p.name, err)
	}
	return result, err
}

// run is the fetch-decode-execute loop.
func (vm *VM) run() (rho.Value, error) {
	code := vm.proc.code
	for vm.pc < len(code) {
		inst := code[vm.pc]
		op := inst.Op
		vm.pc++

		if vm.trace {
			log.Debugf("[%04d] %-16s %-6d sp=%d", vm.pc-1, op, inst.Arg, len(vm.stack))
		}

		var err error
		switch op {
		// ============ Stack and literals ============
		case bytecode.OpNop:

		case bytecode.OpPushInt:
			vm.push(rho.Int(inst.Arg))

		case bytecode.OpPushBool:
			vm.push(rho.Bool(inst.Arg != 0))

		case bytecode.OpPushStr, bytecode.OpPushName:
			err = vm.pushText(op, inst.Arg)

		case bytecode.OpPushNil:
			vm.push(rho.Nil)

		case bytecode.OpPop:
			_, err = vm.pop(op)

		case bytecode.OpDup:
			var v rho.Value
			if v, err = vm.peekTop(op); err == nil {
				vm.push(v)
			}

		case bytecode.OpHalt:
			return vm.top(), nil

		// ============ Arithmetic and comparison ============
		case bytecode.OpAdd, bytecode.OpConcat:
			err = vm.binary(op, addValues)

		case bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			err = vm.binary(op, intArith)

		case bytecode.OpNeg:
			err = vm.negate()

		case bytecode.OpCmpEq, bytecode.OpCmpNeq:
			err = vm.binary(op, func(op bytecode.Opcode, a, b rho.Value) (rho.Value, error) {
				return rho.Bool(rho.Equal(a, b) == (op == bytecode.OpCmpEq)), nil
			})

		case bytecode.OpCmpLt, bytecode.OpCmpLte, bytecode.OpCmpGt, bytecode.OpCmpGte:
			err = vm.binary(op, intCompare)

		// ============ Collections ============
		case bytecode.OpCreateList:
			var items []rho.Value
			if items, err = vm.popN(op, inst.Arg); err == nil {
				vm.push(rho.List(items))
			}

		case bytecode.OpCreateTuple:
			var items []rho.Value
			if items, err = vm.popN(op, inst.Arg); err == nil {
				vm.push(rho.Tuple(items))
			}

		case bytecode.OpCreateMap:
			err = vm.createMap(inst.Arg)

		case bytecode.OpDiff:
			err = vm.binary(op, diffLists)

		// ============ Locals ============
		case bytecode.OpAllocLocal:
			vm.locals = append(vm.locals, rho.Nil)

		case bytecode.OpLoadLocal:
			var idx int
			if idx, err = vm.localIndex(op, inst.Arg); err == nil {
				vm.push(vm.locals[idx])
			}

		case bytecode.OpStoreLocal:
			var idx int
			if idx, err = vm.localIndex(op, inst.Arg); err == nil {
				var v rho.Value
				if v, err = vm.pop(op); err == nil {
					vm.locals[idx] = v
				}
			}

		// ============ Control flow ============
		case bytecode.OpJump, bytecode.OpBranchTrue, bytecode.OpBranchFalse, bytecode.OpBranchSuccess:
			err = vm.branch(op)

		// ============ Names and RSpace ============
		case bytecode.OpNameCreate:
			var kind rho.Kind
			if kind, err = vm.kindOperand(op, inst.Arg); err == nil {
				vm.push(vm.freshName(kind))
			}

		case bytecode.OpTell:
			err = vm.tell(inst.Arg)

		case bytecode.OpAsk, bytecode.OpPeek:
			err = vm.receive(op, inst.Arg)

		// ============ Continuations ============
		case bytecode.OpContStore:
			var v rho.Value
			if v, err = vm.pop(op); err == nil {
				id := vm.nextCont
				vm.nextCont++
				vm.conts[id] = v
				vm.push(rho.Int(id))
			}

		case bytecode.OpContResume:
			err = vm.resume()

		default:
			err = vm.unsupported(op)
		}

		if err != nil {
			if ee, ok := err.(*ExecError); ok {
				ee.Op = op
				ee.PC = vm.pc - 1
			}
			return nil, err
		}
	}
	return vm.top(), nil
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (vm *VM) push(v rho.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop(op bytecode.Opcode) (rho.Value, error) {
	n := len(vm.stack)
	if n == 0 {
		return nil, underflow(op)
	}
	v := vm.stack[n-1]
	vm.stack[n-1] = nil
	vm.stack = vm.stack[:n-1]
	return v, nil
}

func (vm *VM) peekTop(op bytecode.Opcode) (rho.Value, error) {
	if len(vm.stack) == 0 {
		return nil, underflow(op)
	}
	return vm.stack[len(vm.stack)-1], nil
}

// top is the run result: the stack top, or Nil for an empty stack.
func (vm *VM) top() rho.Value {
	if len(vm.stack) == 0 {
		return rho.Nil
	}
	return vm.stack[len(vm.stack)-1]
}

// popN pops n values and returns them in push order.
func (vm *VM) popN(op bytecode.Opcode, n int64) ([]rho.Value, error) {
	if n < 0 {
		return nil, &ExecError{Kind: ErrInvalidInstruction, Msg: op.String() + " negative count " + strconv.FormatInt(n, 10)}
	}
	if n > int64(len(vm.stack)) {
		return nil, underflow(op)
	}
	start := len(vm.stack) - int(n)
	items := make([]rho.Value, n)
	copy(items, vm.stack[start:])
	clear(vm.stack[start:])
	vm.stack = vm.stack[:start]
	return items, nil
}

func underflow(op bytecode.Opcode) *ExecError {
	return &ExecError{Kind: ErrStackUnderflow, Msg: op.String() + " stack underflow"}
}

// pushText resolves a pool index at execution time.
func (vm *VM) pushText(op bytecode.Opcode, idx int64) error {
	s, err := vm.proc.pool.Text(idx)
	if err != nil {
		return &ExecError{Kind: ErrConstantIndex, Msg: op.String() + " bad constant", Err: err}
	}
	if op == bytecode.OpPushName {
		vm.push(rho.Name(s))
	} else {
		vm.push(rho.Str(s))
	}
	return nil
}

func (vm *VM) localIndex(op bytecode.Opcode, idx int64) (int, error) {
	if idx < 0 || idx >= int64(len(vm.locals)) {
		return 0, &ExecError{
			Kind: ErrLocalIndex,
			Msg:  op.String() + " index " + strconv.FormatInt(idx, 10) + " out of bounds (" + strconv.Itoa(len(vm.locals)) + " locals)",
		}
	}
	return int(idx), nil
}

func (vm *VM) unsupported(op bytecode.Opcode) error {
	if op.IsReserved() {
		return &ExecError{Kind: ErrUnimplemented, Msg: op.String() + " not implemented yet"}
	}
	return &ExecError{Kind: ErrInvalidInstruction, Msg: "invalid opcode " + op.String()}
}
