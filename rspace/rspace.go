// Package rspace implements the tuple space the VM communicates through.
//
// Every name holds one Entry: a FIFO channel, a process state or a
// write-once value. All backends satisfy the same RSpace contract and
// must be observably identical; rspacetest.Run checks this.
//
// Names follow "@{kind}:{id}". Every operation takes the kind it
// expects and rejects names whose embedded kind tag differs.
package rspace

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/rhovm/pkg/rho"
)

var log = commonlog.GetLogger("rhovm.rspace")

var (
	// ErrTypeMismatch is returned when the entry under a name is not the
	// variant the operation works on.
	ErrTypeMismatch = errors.New("entry type mismatch")

	// ErrKindMismatch is returned when a name's embedded kind tag does
	// not match the operation's kind, or the name is malformed.
	ErrKindMismatch = errors.New("kind mismatch")

	// ErrEntryExists is returned by write-once operations.
	ErrEntryExists = errors.New("entry already exists")

	// ErrNotFound is returned when updating an absent entry.
	ErrNotFound = errors.New("entry not found")

	// ErrNotPersistable is returned by persistent backends for values
	// that cannot be encoded (Par).
	ErrNotPersistable = errors.New("value cannot be persisted")
)

// RSpace is the storage contract shared by every backend. Absence is
// never an error: lookups report it through their boolean result.
//
// Implementations are not required to be safe for concurrent use; wrap
// them in Shared when several VMs use one store.
type RSpace interface {
	// Tell appends data to the channel at name, creating it if absent.
	Tell(kind rho.Kind, name string, data rho.Value) error
	// Ask pops the front of the channel at name.
	Ask(kind rho.Kind, name string) (rho.Value, bool, error)
	// Peek returns the front of the channel at name without removing it.
	Peek(kind rho.Kind, name string) (rho.Value, bool, error)

	// RegisterProcess creates a process entry; it never overwrites.
	RegisterProcess(kind rho.Kind, name string, state rho.ProcessState) error
	// UpdateProcess replaces the state of an existing process entry.
	UpdateProcess(kind rho.Kind, name string, state rho.ProcessState) error
	// ProcessState looks up a process entry's state.
	ProcessState(kind rho.Kind, name string) (rho.ProcessState, bool)

	// SetValue creates a write-once value entry.
	SetValue(kind rho.Kind, name string, v rho.Value) error
	// Value looks up a value entry.
	Value(kind rho.Kind, name string) (rho.Value, bool)

	// Entry returns a copy of whatever entry is stored at name.
	Entry(kind rho.Kind, name string) (Entry, bool)
	// IsSolved reports Entry(kind, name).Solved(), false when absent.
	IsSolved(kind rho.Kind, name string) bool

	// Reset removes every entry.
	Reset() error
}

// CheckName validates that name is well formed and carries kind.
func CheckName(kind rho.Kind, name string) error {
	ref, err := rho.ParseName(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKindMismatch, err)
	}
	if ref.Kind != kind {
		return fmt.Errorf("%w: %q carries kind %d, operation expects %d", ErrKindMismatch, name, ref.Kind, kind)
	}
	return nil
}

func typeMismatch(op, name string, got EntryKind, want EntryKind) error {
	return fmt.Errorf("%w: %s on %q: entry is a %s, not a %s", ErrTypeMismatch, op, name, got, want)
}
