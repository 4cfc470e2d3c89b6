package bytecode

import (
	"sync"

	"github.com/chazu/rhovm/pkg/rho"
)

// MaxFrameBindings caps the number of bindings in a single frame.
const MaxFrameBindings = 65536

// Environment is one lexical frame with an optional parent. Frames are
// shared by pointer: closures built over the same frame observe each
// other's Bind and Set calls. Writes never cross frame boundaries.
type Environment struct {
	mu       sync.RWMutex
	bindings []rho.Value
	parent   *Environment
}

// NewEnvironment creates an empty frame over parent (which may be nil).
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{parent: parent}
}

// Parent returns the enclosing frame, or nil for the outermost one.
func (e *Environment) Parent() *Environment {
	return e.parent
}

// Depth returns the number of frames from e to the outermost, inclusive.
func (e *Environment) Depth() int {
	n := 0
	for f := e; f != nil; f = f.parent {
		n++
	}
	return n
}

// Len returns the number of bindings in this frame.
func (e *Environment) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.bindings)
}

// Bind appends v to this frame and returns its index.
func (e *Environment) Bind(v rho.Value) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.bindings) >= MaxFrameBindings {
		return 0, errorf(ErrFrameFull, "frame already holds %d bindings", MaxFrameBindings)
	}
	if v == nil {
		v = rho.Nil
	}
	e.bindings = append(e.bindings, v)
	return len(e.bindings) - 1, nil
}

// Get reads a binding of this frame only.
func (e *Environment) Get(idx int) (rho.Value, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if idx < 0 || idx >= len(e.bindings) {
		return nil, false
	}
	return e.bindings[idx], true
}

// Set overwrites an existing binding of this frame.
func (e *Environment) Set(idx int, v rho.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx < 0 || idx >= len(e.bindings) {
		return errorf(ErrBindingIndex, "binding %d out of range (frame size %d)", idx, len(e.bindings))
	}
	if v == nil {
		v = rho.Nil
	}
	e.bindings[idx] = v
	return nil
}

// Lookup reads binding idx from the frame depth levels out
// (0 is this frame).
func (e *Environment) Lookup(depth, idx int) (rho.Value, error) {
	f := e
	for i := 0; i < depth && f != nil; i++ {
		f = f.parent
	}
	if depth < 0 || f == nil {
		return nil, errorf(ErrBindingIndex, "no frame at depth %d", depth)
	}
	v, ok := f.Get(idx)
	if !ok {
		return nil, errorf(ErrBindingIndex, "binding %d out of range at depth %d", idx, depth)
	}
	return v, nil
}

// Find walks frames innermost to outermost and returns the first
// binding for which match returns true, with its depth and index.
func (e *Environment) Find(match func(rho.Value) bool) (v rho.Value, depth, idx int, ok bool) {
	for f := e; f != nil; f = f.parent {
		f.mu.RLock()
		for i := len(f.bindings) - 1; i >= 0; i-- {
			if match(f.bindings[i]) {
				v = f.bindings[i]
				f.mu.RUnlock()
				return v, depth, i, true
			}
		}
		f.mu.RUnlock()
		depth++
	}
	return nil, 0, 0, false
}
