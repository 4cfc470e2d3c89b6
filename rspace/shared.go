package rspace

import (
	"sync"

	"github.com/chazu/rhovm/pkg/rho"
)

// Shared guards an RSpace with a single mutex so that several VMs, each
// on its own goroutine, can use one store. Every call holds the lock for
// its whole duration; calls are atomic individually but do not compose.
type Shared struct {
	mu    sync.Mutex
	inner RSpace
}

var _ RSpace = (*Shared)(nil)

// NewShared wraps inner. inner must not be used directly afterwards.
func NewShared(inner RSpace) *Shared {
	if s, ok := inner.(*Shared); ok {
		return s
	}
	return &Shared{inner: inner}
}

// With runs fn with the lock held, giving it exclusive access to the
// wrapped store for a multi-step update.
func (s *Shared) With(fn func(RSpace) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.inner)
}

func (s *Shared) Tell(kind rho.Kind, name string, data rho.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Tell(kind, name, data)
}

func (s *Shared) Ask(kind rho.Kind, name string) (rho.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Ask(kind, name)
}

func (s *Shared) Peek(kind rho.Kind, name string) (rho.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Peek(kind, name)
}

func (s *Shared) RegisterProcess(kind rho.Kind, name string, state rho.ProcessState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.RegisterProcess(kind, name, state)
}

func (s *Shared) UpdateProcess(kind rho.Kind, name string, state rho.ProcessState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.UpdateProcess(kind, name, state)
}

func (s *Shared) ProcessState(kind rho.Kind, name string) (rho.ProcessState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ProcessState(kind, name)
}

func (s *Shared) SetValue(kind rho.Kind, name string, v rho.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SetValue(kind, name, v)
}

func (s *Shared) Value(kind rho.Kind, name string) (rho.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Value(kind, name)
}

func (s *Shared) Entry(kind rho.Kind, name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Entry(kind, name)
}

func (s *Shared) IsSolved(kind rho.Kind, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.IsSolved(kind, name)
}

func (s *Shared) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Reset()
}
