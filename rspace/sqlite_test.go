package rspace_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/rhovm/pkg/rho"
	"github.com/chazu/rhovm/rspace"
	"github.com/chazu/rhovm/rspace/rspacetest"
)

func openSQLite(t *testing.T, path string) *rspace.SQLite {
	t.Helper()
	s, err := rspace.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteContract(t *testing.T) {
	rspacetest.Run(t, func(t *testing.T) rspace.RSpace {
		return openSQLite(t, filepath.Join(t.TempDir(), "rspace.db"))
	})
}

func TestSQLitePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rspace.db")
	kind := rho.KindStoreSequential
	ch := rho.FormatName(kind, "jobs")
	val := rho.FormatName(kind, "answer")

	s, err := rspace.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Tell(kind, ch, rho.Str("first")))
	require.NoError(t, s.Tell(kind, ch, rho.Map{{Key: rho.Str("n"), Value: rho.Int(2)}}))
	require.NoError(t, s.SetValue(kind, val, rho.Int(42)))
	require.NoError(t, s.Close())

	s = openSQLite(t, path)
	v, ok, err := s.Ask(kind, ch)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rho.Str("first"), v)

	v, ok, err = s.Ask(kind, ch)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rho.Equal(rho.Map{{Key: rho.Str("n"), Value: rho.Int(2)}}, v))

	got, ok := s.Value(kind, val)
	require.True(t, ok)
	assert.Equal(t, rho.Int(42), got)
	assert.ErrorIs(t, s.SetValue(kind, val, rho.Int(1)), rspace.ErrEntryExists)
}

func TestSQLiteRejectsPar(t *testing.T) {
	s := openSQLite(t, ":memory:")
	kind := rho.KindStoreSequential
	n := rho.FormatName(kind, "p")

	assert.ErrorIs(t, s.SetValue(kind, n, rho.Par{}), rspace.ErrNotPersistable)
	assert.ErrorIs(t, s.Tell(kind, n, rho.List{rho.Par{}}), rspace.ErrNotPersistable)
	assert.ErrorIs(t, s.RegisterProcess(kind, n, rho.ValueState(rho.Par{})), rspace.ErrNotPersistable)
	_, ok := s.Entry(kind, n)
	assert.False(t, ok)
}
