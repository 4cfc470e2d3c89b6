// Package rspacetest holds the behavioral contract every rspace backend
// must satisfy. Backends call Run from their own tests.
package rspacetest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/rhovm/pkg/rho"
	"github.com/chazu/rhovm/rspace"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) rspace.RSpace

const kind = rho.KindMemorySequential

func name(id string) string {
	return rho.FormatName(kind, id)
}

// handle is a ProcessHandle with a fixed state.
type handle struct{ state rho.ProcessState }

func (h *handle) State() rho.ProcessState { return h.state }

// Run executes the contract suite against stores built by newSpace.
func Run(t *testing.T, newSpace Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, rspace.RSpace)
	}{
		{"FIFO", testFIFO},
		{"AskAbsent", testAskAbsent},
		{"Peek", testPeek},
		{"TypeMismatch", testTypeMismatch},
		{"KindMismatch", testKindMismatch},
		{"KindPartition", testKindPartition},
		{"WriteOnceValue", testWriteOnceValue},
		{"ProcessLifecycle", testProcessLifecycle},
		{"Solved", testSolved},
		{"ParFront", testParFront},
		{"EntryIsCopy", testEntryIsCopy},
		{"Reset", testReset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newSpace(t))
		})
	}
}

func testFIFO(t *testing.T, s rspace.RSpace) {
	ch := name("fifo")
	want := []rho.Value{rho.Int(1), rho.Str("two"), rho.List{rho.Int(3)}, rho.Nil, rho.Bool(false)}
	for _, v := range want {
		require.NoError(t, s.Tell(kind, ch, v))
	}
	for i, w := range want {
		got, ok, err := s.Ask(kind, ch)
		require.NoError(t, err)
		require.True(t, ok, "ask %d", i)
		assert.True(t, rho.Equal(w, got), "ask %d: want %v, got %v", i, w, got)
	}
	_, ok, err := s.Ask(kind, ch)
	require.NoError(t, err)
	assert.False(t, ok, "drained channel")
}

func testAskAbsent(t *testing.T, s rspace.RSpace) {
	v, ok, err := s.Ask(kind, name("nobody"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	_, ok, err = s.Peek(kind, name("nobody"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func testPeek(t *testing.T, s rspace.RSpace) {
	ch := name("peek")
	require.NoError(t, s.Tell(kind, ch, rho.Int(7)))
	require.NoError(t, s.Tell(kind, ch, rho.Int(8)))

	for i := 0; i < 2; i++ {
		v, ok, err := s.Peek(kind, ch)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rho.Int(7), v)
	}
	v, ok, err := s.Ask(kind, ch)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rho.Int(7), v)

	v, _, err = s.Peek(kind, ch)
	require.NoError(t, err)
	assert.Equal(t, rho.Int(8), v)
}

func testTypeMismatch(t *testing.T, s rspace.RSpace) {
	val := name("value")
	proc := name("proc")
	ch := name("chan")
	require.NoError(t, s.SetValue(kind, val, rho.Int(1)))
	require.NoError(t, s.RegisterProcess(kind, proc, rho.StateWait))
	require.NoError(t, s.Tell(kind, ch, rho.Int(1)))

	for _, n := range []string{val, proc} {
		assert.ErrorIs(t, s.Tell(kind, n, rho.Int(2)), rspace.ErrTypeMismatch, "tell %s", n)
		_, _, err := s.Ask(kind, n)
		assert.ErrorIs(t, err, rspace.ErrTypeMismatch, "ask %s", n)
		_, _, err = s.Peek(kind, n)
		assert.ErrorIs(t, err, rspace.ErrTypeMismatch, "peek %s", n)
	}
	assert.ErrorIs(t, s.UpdateProcess(kind, ch, rho.StateReady), rspace.ErrTypeMismatch)
	assert.ErrorIs(t, s.UpdateProcess(kind, val, rho.StateReady), rspace.ErrTypeMismatch)

	_, ok := s.Value(kind, ch)
	assert.False(t, ok, "value lookup on channel")
	_, ok = s.ProcessState(kind, val)
	assert.False(t, ok, "process lookup on value")

	// the variant never changes
	e, ok := s.Entry(kind, val)
	require.True(t, ok)
	assert.Equal(t, rspace.EntryValue, e.Kind())
}

func testKindMismatch(t *testing.T, s rspace.RSpace) {
	foreign := rho.FormatName(rho.KindStoreConcurrent, "x")
	assert.ErrorIs(t, s.Tell(kind, foreign, rho.Int(1)), rspace.ErrKindMismatch)
	_, _, err := s.Ask(kind, foreign)
	assert.ErrorIs(t, err, rspace.ErrKindMismatch)
	_, _, err = s.Peek(kind, foreign)
	assert.ErrorIs(t, err, rspace.ErrKindMismatch)
	assert.ErrorIs(t, s.SetValue(kind, foreign, rho.Int(1)), rspace.ErrKindMismatch)
	assert.ErrorIs(t, s.RegisterProcess(kind, foreign, rho.StateWait), rspace.ErrKindMismatch)

	for _, bad := range []string{"plain", "@x:1", "@1", ""} {
		assert.ErrorIs(t, s.Tell(kind, bad, rho.Int(1)), rspace.ErrKindMismatch, "name %q", bad)
	}
	_, ok := s.Entry(kind, foreign)
	assert.False(t, ok)
}

func testKindPartition(t *testing.T, s rspace.RSpace) {
	a := rho.FormatName(rho.KindMemorySequential, "same")
	b := rho.FormatName(rho.KindMemoryConcurrent, "same")
	require.NoError(t, s.Tell(rho.KindMemorySequential, a, rho.Int(1)))
	require.NoError(t, s.SetValue(rho.KindMemoryConcurrent, b, rho.Int(2)))

	v, ok, err := s.Peek(rho.KindMemorySequential, a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rho.Int(1), v)

	got, ok := s.Value(rho.KindMemoryConcurrent, b)
	require.True(t, ok)
	assert.Equal(t, rho.Int(2), got)

	// names containing a slash stay distinct
	c := rho.FormatName(kind, "a/b")
	require.NoError(t, s.SetValue(kind, c, rho.Str("slash")))
	got, ok = s.Value(kind, c)
	require.True(t, ok)
	assert.Equal(t, rho.Str("slash"), got)
}

func testWriteOnceValue(t *testing.T, s rspace.RSpace) {
	n := name("once")
	v := rho.Tuple{rho.Int(1), rho.Str("a")}
	require.NoError(t, s.SetValue(kind, n, v))
	assert.ErrorIs(t, s.SetValue(kind, n, rho.Int(2)), rspace.ErrEntryExists)
	assert.ErrorIs(t, s.RegisterProcess(kind, n, rho.StateWait), rspace.ErrEntryExists)

	for i := 0; i < 3; i++ {
		got, ok := s.Value(kind, n)
		require.True(t, ok)
		assert.True(t, rho.Equal(v, got), "read %d: %v", i, got)
	}
	assert.True(t, s.IsSolved(kind, n))
}

func testProcessLifecycle(t *testing.T, s rspace.RSpace) {
	n := name("p")
	assert.ErrorIs(t, s.UpdateProcess(kind, n, rho.StateReady), rspace.ErrNotFound)
	require.NoError(t, s.RegisterProcess(kind, n, rho.StateWait))
	assert.ErrorIs(t, s.RegisterProcess(kind, n, rho.StateReady), rspace.ErrEntryExists)

	st, ok := s.ProcessState(kind, n)
	require.True(t, ok)
	assert.Equal(t, rho.StatusWait, st.Status)
	assert.False(t, s.IsSolved(kind, n))

	require.NoError(t, s.UpdateProcess(kind, n, rho.StateReady))
	assert.False(t, s.IsSolved(kind, n))

	require.NoError(t, s.UpdateProcess(kind, n, rho.ValueState(rho.Int(42))))
	st, ok = s.ProcessState(kind, n)
	require.True(t, ok)
	assert.True(t, st.Equal(rho.ValueState(rho.Int(42))), "state %v", st)
	assert.True(t, s.IsSolved(kind, n))

	e := name("failed")
	require.NoError(t, s.RegisterProcess(kind, e, rho.ErrorState("boom")))
	st, ok = s.ProcessState(kind, e)
	require.True(t, ok)
	assert.Equal(t, "boom", st.Err)
	assert.False(t, s.IsSolved(kind, e))
}

func testSolved(t *testing.T, s rspace.RSpace) {
	ch := name("solved")
	assert.False(t, s.IsSolved(kind, ch), "absent")

	require.NoError(t, s.Tell(kind, ch, rho.Int(1)))
	assert.True(t, s.IsSolved(kind, ch))

	_, _, err := s.Ask(kind, ch)
	require.NoError(t, err)
	assert.False(t, s.IsSolved(kind, ch), "empty channel")

	require.NoError(t, s.RegisterProcess(kind, name("nilproc"), rho.ValueState(rho.Nil)))
	assert.True(t, s.IsSolved(kind, name("nilproc")))
}

func testParFront(t *testing.T, s rspace.RSpace) {
	ch := name("par")
	pending := &handle{state: rho.StateReady}
	done := &handle{state: rho.ValueState(rho.Int(1))}

	err := s.Tell(kind, ch, rho.Par{done, pending})
	if errors.Is(err, rspace.ErrNotPersistable) {
		t.Skip("backend does not persist Par")
	}
	require.NoError(t, err)
	assert.False(t, s.IsSolved(kind, ch), "pending member")

	// re-derived on every call
	pending.state = rho.ValueState(rho.Nil)
	assert.True(t, s.IsSolved(kind, ch))
}

func testEntryIsCopy(t *testing.T, s rspace.RSpace) {
	ch := name("copy")
	require.NoError(t, s.Tell(kind, ch, rho.Int(1)))
	e, ok := s.Entry(kind, ch)
	require.True(t, ok)
	c := e.(rspace.ChannelEntry)
	c.Queue[0] = rho.Int(99)
	c.Queue = append(c.Queue, rho.Int(100))

	v, _, err := s.Peek(kind, ch)
	require.NoError(t, err)
	assert.Equal(t, rho.Int(1), v)
	e, _ = s.Entry(kind, ch)
	assert.Len(t, e.(rspace.ChannelEntry).Queue, 1)
}

func testReset(t *testing.T, s rspace.RSpace) {
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Tell(kind, name(fmt.Sprint("c", i)), rho.Int(int64(i))))
	}
	require.NoError(t, s.SetValue(kind, name("v"), rho.Int(1)))
	require.NoError(t, s.Reset())

	for i := 0; i < 5; i++ {
		_, ok := s.Entry(kind, name(fmt.Sprint("c", i)))
		assert.False(t, ok)
	}
	// write-once is lifted by a full wipe
	assert.NoError(t, s.SetValue(kind, name("v"), rho.Int(2)))
}
