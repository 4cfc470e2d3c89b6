package vm

import (
	"fmt"
	"strconv"

	"github.com/chazu/rhovm/pkg/bytecode"
	"github.com/chazu/rhovm/pkg/rho"
)

type binaryFunc func(op bytecode.Opcode, a, b rho.Value) (rho.Value, error)

// binary pops b then a and pushes fn(a, b).
func (vm *VM) binary(op bytecode.Opcode, fn binaryFunc) error {
	b, err := vm.pop(op)
	if err != nil {
		return err
	}
	a, err := vm.pop(op)
	if err != nil {
		return err
	}
	v, err := fn(op, a, b)
	if err != nil {
		return err
	}
	vm.push(v)
	return nil
}

func typeError(format string, args ...any) *ExecError {
	return &ExecError{Kind: ErrType, Msg: fmt.Sprintf(format, args...)}
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// addValues implements ADD and CONCAT. ADD also accepts Ints; CONCAT
// does not. Int overflow wraps.
func addValues(op bytecode.Opcode, a, b rho.Value) (rho.Value, error) {
	switch x := a.(type) {
	case rho.Int:
		if y, ok := b.(rho.Int); ok && op == bytecode.OpAdd {
			return x + y, nil
		}
	case rho.Str:
		if y, ok := b.(rho.Str); ok {
			return x + y, nil
		}
	case rho.List:
		if y, ok := b.(rho.List); ok {
			out := make(rho.List, 0, len(x)+len(y))
			return append(append(out, x...), y...), nil
		}
	}
	return nil, typeError("%s type mismatch: %s and %s", op, rho.TypeOf(a), rho.TypeOf(b))
}

func intArith(op bytecode.Opcode, a, b rho.Value) (rho.Value, error) {
	x, okA := a.(rho.Int)
	y, okB := b.(rho.Int)
	if !okA || !okB {
		return nil, typeError("%s requires Ints, got %s and %s", op, rho.TypeOf(a), rho.TypeOf(b))
	}
	switch op {
	case bytecode.OpSub:
		return x - y, nil
	case bytecode.OpMul:
		return x * y, nil
	case bytecode.OpDiv:
		if y == 0 {
			return nil, &ExecError{Kind: ErrArithmetic, Msg: "division by zero"}
		}
		return x / y, nil
	case bytecode.OpMod:
		if y == 0 {
			return nil, &ExecError{Kind: ErrArithmetic, Msg: "modulo by zero"}
		}
		return x % y, nil
	}
	return nil, &ExecError{Kind: ErrInvalidInstruction, Msg: "invalid opcode " + op.String()}
}

func (vm *VM) negate() error {
	v, err := vm.pop(bytecode.OpNeg)
	if err != nil {
		return err
	}
	x, ok := v.(rho.Int)
	if !ok {
		return typeError("NEG requires Int, got %s", rho.TypeOf(v))
	}
	vm.push(-x)
	return nil
}

func intCompare(op bytecode.Opcode, a, b rho.Value) (rho.Value, error) {
	x, okA := a.(rho.Int)
	y, okB := b.(rho.Int)
	if !okA || !okB {
		return nil, typeError("%s requires Ints, got %s and %s", op, rho.TypeOf(a), rho.TypeOf(b))
	}
	switch op {
	case bytecode.OpCmpLt:
		return rho.Bool(x < y), nil
	case bytecode.OpCmpLte:
		return rho.Bool(x <= y), nil
	case bytecode.OpCmpGt:
		return rho.Bool(x > y), nil
	default:
		return rho.Bool(x >= y), nil
	}
}

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

// createMap pops n key/value pairs; the first pushed pair comes first.
func (vm *VM) createMap(n int64) error {
	if n < 0 {
		return &ExecError{Kind: ErrInvalidInstruction, Msg: "CREATE_MAP negative count " + strconv.FormatInt(n, 10)}
	}
	if n > int64(len(vm.stack))/2 {
		return underflow(bytecode.OpCreateMap)
	}
	items, err := vm.popN(bytecode.OpCreateMap, 2*n)
	if err != nil {
		return err
	}
	m := make(rho.Map, n)
	for i := range m {
		m[i] = rho.Pair{Key: items[2*i], Value: items[2*i+1]}
	}
	vm.push(m)
	return nil
}

// diffLists removes from a one occurrence per occurrence in b, keeping
// a's order.
func diffLists(op bytecode.Opcode, a, b rho.Value) (rho.Value, error) {
	x, okA := a.(rho.List)
	y, okB := b.(rho.List)
	if !okA || !okB {
		return nil, typeError("%s requires Lists, got %s and %s", op, rho.TypeOf(a), rho.TypeOf(b))
	}
	remove := make(map[string]int, len(y))
	for _, v := range y {
		remove[rho.Key(v)]++
	}
	out := make(rho.List, 0, len(x))
	for _, v := range x {
		k := rho.Key(v)
		if remove[k] > 0 {
			remove[k]--
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// branch pops the condition (conditional forms only), then the label.
// The label is resolved only when the branch is taken.
func (vm *VM) branch(op bytecode.Opcode) error {
	taken := true
	if op != bytecode.OpJump {
		cond, err := vm.pop(op)
		if err != nil {
			return err
		}
		switch op {
		case bytecode.OpBranchSuccess:
			taken = success(cond)
		default:
			b, ok := cond.(rho.Bool)
			if !ok {
				return typeError("%s requires Bool, got %s", op, rho.TypeOf(cond))
			}
			taken = bool(b) == (op == bytecode.OpBranchTrue)
		}
	}

	lv, err := vm.pop(op)
	if err != nil {
		return err
	}
	label, ok := lv.(rho.Str)
	if !ok {
		return typeError("%s label must be Str, got %s", op, rho.TypeOf(lv))
	}
	if !taken {
		return nil
	}

	target, ok := vm.proc.Label(string(label))
	if !ok || target < 0 || target > len(vm.proc.code) {
		return &ExecError{Kind: ErrLabelNotFound, Msg: "label not found: " + string(label)}
	}
	vm.pc = target
	return nil
}

// success is the BRANCH_SUCCESS condition: anything but Nil or false.
func success(v rho.Value) bool {
	if rho.IsNil(v) {
		return false
	}
	if b, ok := v.(rho.Bool); ok {
		return bool(b)
	}
	return true
}

// ---------------------------------------------------------------------------
// Names and RSpace
// ---------------------------------------------------------------------------

func (vm *VM) kindOperand(op bytecode.Opcode, arg int64) (rho.Kind, error) {
	if arg < 0 || arg > 0xFF {
		return 0, &ExecError{Kind: ErrInvalidInstruction, Msg: fmt.Sprintf("%s invalid kind %d", op, arg)}
	}
	return rho.Kind(arg), nil
}

// channelName accepts a Name, or a Str holding a channel name.
func channelName(op bytecode.Opcode, v rho.Value) (string, error) {
	switch x := v.(type) {
	case rho.Name:
		return string(x), nil
	case rho.Str:
		return string(x), nil
	}
	return "", typeError("%s channel must be Name, got %s", op, rho.TypeOf(v))
}

func rspaceError(op bytecode.Opcode, name string, err error) *ExecError {
	return &ExecError{Kind: ErrRSpace, Msg: fmt.Sprintf("%s %s failed", op, name), Err: err}
}

// tell pops data, then the channel, and pushes true.
func (vm *VM) tell(arg int64) error {
	kind, err := vm.kindOperand(bytecode.OpTell, arg)
	if err != nil {
		return err
	}
	data, err := vm.pop(bytecode.OpTell)
	if err != nil {
		return err
	}
	cv, err := vm.pop(bytecode.OpTell)
	if err != nil {
		return err
	}
	name, err := channelName(bytecode.OpTell, cv)
	if err != nil {
		return err
	}
	if err := vm.space.Tell(kind, name, data); err != nil {
		return rspaceError(bytecode.OpTell, name, err)
	}
	vm.push(rho.Bool(true))
	return nil
}

// receive implements ASK and PEEK: pop the channel, push the front or Nil.
func (vm *VM) receive(op bytecode.Opcode, arg int64) error {
	kind, err := vm.kindOperand(op, arg)
	if err != nil {
		return err
	}
	cv, err := vm.pop(op)
	if err != nil {
		return err
	}
	name, err := channelName(op, cv)
	if err != nil {
		return err
	}

	var (
		v  rho.Value
		ok bool
	)
	if op == bytecode.OpAsk {
		v, ok, err = vm.space.Ask(kind, name)
	} else {
		v, ok, err = vm.space.Peek(kind, name)
	}
	if err != nil {
		return rspaceError(op, name, err)
	}
	if !ok {
		v = rho.Nil
	}
	vm.push(v)
	return nil
}

// ---------------------------------------------------------------------------
// Continuations
// ---------------------------------------------------------------------------

// resume pops an id and pushes the stored value, removing it. Unknown
// or already resumed ids give Nil.
func (vm *VM) resume() error {
	v, err := vm.pop(bytecode.OpContResume)
	if err != nil {
		return err
	}
	id, ok := v.(rho.Int)
	if !ok || id < 0 {
		return typeError("CONT_RESUME requires a non-negative Int, got %s", v)
	}
	stored, ok := vm.conts[int64(id)]
	if !ok {
		vm.push(rho.Nil)
		return nil
	}
	delete(vm.conts, int64(id))
	vm.push(stored)
	return nil
}
