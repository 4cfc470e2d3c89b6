package vm

import (
	"fmt"

	"github.com/chazu/rhovm/pkg/bytecode"
)

// ErrorKind classifies execution failures.
type ErrorKind uint8

const (
	ErrType ErrorKind = iota + 1
	ErrArithmetic
	ErrStackUnderflow
	ErrLocalIndex
	ErrLabelNotFound
	ErrConstantIndex
	ErrRSpace
	ErrUnimplemented
	ErrInvalidInstruction
)

func (k ErrorKind) String() string {
	switch k {
	case ErrType:
		return "type error"
	case ErrArithmetic:
		return "arithmetic error"
	case ErrStackUnderflow:
		return "stack underflow"
	case ErrLocalIndex:
		return "local index"
	case ErrLabelNotFound:
		return "label not found"
	case ErrConstantIndex:
		return "constant index"
	case ErrRSpace:
		return "rspace error"
	case ErrUnimplemented:
		return "unimplemented"
	case ErrInvalidInstruction:
		return "invalid instruction"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// ExecError is returned when execution aborts. Msg names the opcode and
// what went wrong; Err carries the underlying RSpace or pool error.
type ExecError struct {
	Kind ErrorKind
	Op   bytecode.Opcode
	PC   int
	Msg  string
	Err  error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Is matches another *ExecError by Kind, so callers can write
// errors.Is(err, &vm.ExecError{Kind: vm.ErrArithmetic}).
func (e *ExecError) Is(target error) bool {
	t, ok := target.(*ExecError)
	return ok && t.Kind == e.Kind
}
