package rho

import "fmt"

// Status is the lifecycle phase of a process.
type Status uint8

const (
	StatusWait Status = iota
	StatusReady
	StatusValue
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusWait:
		return "Wait"
	case StatusReady:
		return "Ready"
	case StatusValue:
		return "Value"
	case StatusError:
		return "Error"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// ProcessState is the state machine Wait -> Ready -> {Value | Error}.
// Result is set only in the Value state and Err only in the Error state.
type ProcessState struct {
	Status Status
	Result Value
	Err    string
}

var (
	StateWait  = ProcessState{Status: StatusWait}
	StateReady = ProcessState{Status: StatusReady}
)

// ValueState returns the terminal success state carrying v.
func ValueState(v Value) ProcessState {
	if v == nil {
		v = Nil
	}
	return ProcessState{Status: StatusValue, Result: v}
}

// ErrorState returns the terminal failure state carrying msg.
func ErrorState(msg string) ProcessState {
	return ProcessState{Status: StatusError, Err: msg}
}

// Terminal reports whether the state is Value or Error.
func (s ProcessState) Terminal() bool {
	return s.Status == StatusValue || s.Status == StatusError
}

// Solved reports whether the process produced a value.
func (s ProcessState) Solved() bool {
	return s.Status == StatusValue
}

func (s ProcessState) String() string {
	switch s.Status {
	case StatusValue:
		return fmt.Sprintf("Value(%v)", s.Result)
	case StatusError:
		return fmt.Sprintf("Error(%q)", s.Err)
	default:
		return s.Status.String()
	}
}

// Equal compares two states structurally.
func (s ProcessState) Equal(o ProcessState) bool {
	if s.Status != o.Status || s.Err != o.Err {
		return false
	}
	if s.Status == StatusValue {
		return Equal(s.Result, o.Result)
	}
	return true
}

// ProcessHandle is a reference to a running process, as held by a Par.
// Implementations must be comparable (pointer types).
type ProcessHandle interface {
	State() ProcessState
}
