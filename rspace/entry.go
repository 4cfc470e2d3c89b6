package rspace

import (
	"github.com/chazu/rhovm/pkg/rho"
)

// EntryKind names the variant of an Entry.
type EntryKind uint8

const (
	EntryChannel EntryKind = iota + 1
	EntryProcess
	EntryValue
)

func (k EntryKind) String() string {
	switch k {
	case EntryChannel:
		return "channel"
	case EntryProcess:
		return "process"
	case EntryValue:
		return "value"
	default:
		return "unknown"
	}
}

// Entry is the storage cell held under one name. A name keeps the same
// entry variant for its whole lifetime.
type Entry interface {
	Kind() EntryKind
	// Solved reports whether the entry holds usable data. It is derived
	// from the current contents on every call.
	Solved() bool
}

// ChannelEntry is a FIFO queue of values.
type ChannelEntry struct {
	Queue []rho.Value
}

// ProcessEntry wraps a process lifecycle state.
type ProcessEntry struct {
	State rho.ProcessState
}

// ValueEntry is a write-once terminal value.
type ValueEntry struct {
	Value rho.Value
}

func (ChannelEntry) Kind() EntryKind { return EntryChannel }
func (ProcessEntry) Kind() EntryKind { return EntryProcess }
func (ValueEntry) Kind() EntryKind   { return EntryValue }

// Solved is true when the queue is non-empty and its front is resolved.
func (e ChannelEntry) Solved() bool {
	return len(e.Queue) > 0 && rho.Resolved(e.Queue[0])
}

// Solved is true once the process reached a Value state.
func (e ProcessEntry) Solved() bool {
	return e.State.Solved()
}

// Solved is always true for values.
func (ValueEntry) Solved() bool {
	return true
}

// cloneEntry copies the queue so callers cannot alias backend storage.
func cloneEntry(e Entry) Entry {
	if ch, ok := e.(ChannelEntry); ok {
		q := make([]rho.Value, len(ch.Queue))
		copy(q, ch.Queue)
		return ChannelEntry{Queue: q}
	}
	return e
}

// IsSolved is the shared implementation of RSpace.IsSolved.
func IsSolved(e Entry, ok bool) bool {
	return ok && e.Solved()
}
