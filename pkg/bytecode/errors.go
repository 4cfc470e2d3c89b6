package bytecode

import "fmt"

// ErrorKind classifies bytecode-level failures.
type ErrorKind uint8

const (
	ErrInvalidConstantIndex ErrorKind = iota + 1
	ErrConstantType
	ErrInvalidOpcode
	ErrFrameFull
	ErrBindingIndex
	ErrBadModule
	ErrVersionMismatch
	ErrChecksumMismatch
	ErrAssemble
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidConstantIndex:
		return "invalid constant index"
	case ErrConstantType:
		return "constant type"
	case ErrInvalidOpcode:
		return "invalid opcode"
	case ErrFrameFull:
		return "frame full"
	case ErrBindingIndex:
		return "binding index"
	case ErrBadModule:
		return "bad module"
	case ErrVersionMismatch:
		return "version mismatch"
	case ErrChecksumMismatch:
		return "checksum mismatch"
	case ErrAssemble:
		return "assemble"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error is the single error type returned by this package.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so callers can test
// errors.Is(err, &bytecode.Error{Kind: bytecode.ErrFrameFull}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
