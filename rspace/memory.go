package rspace

import (
	"fmt"

	"github.com/chazu/rhovm/pkg/rho"
)

// memKey partitions the map by kind so that equal names of different
// kinds never collide.
type memKey struct {
	kind rho.Kind
	name string
}

// Memory is the sequential in-memory backend: a hashmap keyed by
// (kind, name). It is not safe for concurrent use.
type Memory struct {
	entries map[memKey]Entry
}

var _ RSpace = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[memKey]Entry)}
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	return len(m.entries)
}

func (m *Memory) Tell(kind rho.Kind, name string, data rho.Value) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	if data == nil {
		data = rho.Nil
	}
	k := memKey{kind, name}
	e, ok := m.entries[k]
	if !ok {
		m.entries[k] = ChannelEntry{Queue: []rho.Value{data}}
		return nil
	}
	ch, isChan := e.(ChannelEntry)
	if !isChan {
		return typeMismatch("tell", name, e.Kind(), EntryChannel)
	}
	ch.Queue = append(ch.Queue, data)
	m.entries[k] = ch
	return nil
}

func (m *Memory) Ask(kind rho.Kind, name string) (rho.Value, bool, error) {
	ch, ok, err := m.channel("ask", kind, name)
	if err != nil || !ok || len(ch.Queue) == 0 {
		return nil, false, err
	}
	front := ch.Queue[0]
	ch.Queue[0] = nil
	ch.Queue = ch.Queue[1:]
	m.entries[memKey{kind, name}] = ch
	return front, true, nil
}

func (m *Memory) Peek(kind rho.Kind, name string) (rho.Value, bool, error) {
	ch, ok, err := m.channel("peek", kind, name)
	if err != nil || !ok || len(ch.Queue) == 0 {
		return nil, false, err
	}
	return ch.Queue[0], true, nil
}

func (m *Memory) channel(op string, kind rho.Kind, name string) (ChannelEntry, bool, error) {
	if err := CheckName(kind, name); err != nil {
		return ChannelEntry{}, false, err
	}
	e, ok := m.entries[memKey{kind, name}]
	if !ok {
		return ChannelEntry{}, false, nil
	}
	ch, isChan := e.(ChannelEntry)
	if !isChan {
		return ChannelEntry{}, false, typeMismatch(op, name, e.Kind(), EntryChannel)
	}
	return ch, true, nil
}

func (m *Memory) RegisterProcess(kind rho.Kind, name string, state rho.ProcessState) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	k := memKey{kind, name}
	if e, ok := m.entries[k]; ok {
		return fmt.Errorf("%w: register process %q: holds a %s", ErrEntryExists, name, e.Kind())
	}
	m.entries[k] = ProcessEntry{State: state}
	return nil
}

func (m *Memory) UpdateProcess(kind rho.Kind, name string, state rho.ProcessState) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	k := memKey{kind, name}
	e, ok := m.entries[k]
	if !ok {
		return fmt.Errorf("%w: update process %q", ErrNotFound, name)
	}
	if e.Kind() != EntryProcess {
		return typeMismatch("update process", name, e.Kind(), EntryProcess)
	}
	m.entries[k] = ProcessEntry{State: state}
	return nil
}

func (m *Memory) ProcessState(kind rho.Kind, name string) (rho.ProcessState, bool) {
	e, ok := m.Entry(kind, name)
	if !ok {
		return rho.ProcessState{}, false
	}
	p, isProc := e.(ProcessEntry)
	return p.State, isProc
}

func (m *Memory) SetValue(kind rho.Kind, name string, v rho.Value) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	if v == nil {
		v = rho.Nil
	}
	k := memKey{kind, name}
	if e, ok := m.entries[k]; ok {
		return fmt.Errorf("%w: set value %q: holds a %s", ErrEntryExists, name, e.Kind())
	}
	m.entries[k] = ValueEntry{Value: v}
	return nil
}

func (m *Memory) Value(kind rho.Kind, name string) (rho.Value, bool) {
	e, ok := m.Entry(kind, name)
	if !ok {
		return nil, false
	}
	v, isVal := e.(ValueEntry)
	return v.Value, isVal
}

func (m *Memory) Entry(kind rho.Kind, name string) (Entry, bool) {
	if CheckName(kind, name) != nil {
		return nil, false
	}
	e, ok := m.entries[memKey{kind, name}]
	if !ok {
		return nil, false
	}
	return cloneEntry(e), true
}

func (m *Memory) IsSolved(kind rho.Kind, name string) bool {
	return IsSolved(m.Entry(kind, name))
}

func (m *Memory) Reset() error {
	log.Debugf("memory rspace reset (%d entries)", len(m.entries))
	m.entries = make(map[memKey]Entry)
	return nil
}
