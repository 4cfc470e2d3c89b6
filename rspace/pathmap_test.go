package rspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/rhovm/pkg/rho"
	"github.com/chazu/rhovm/rspace"
	"github.com/chazu/rhovm/rspace/rspacetest"
)

func TestPathMapContract(t *testing.T) {
	rspacetest.Run(t, func(t *testing.T) rspace.RSpace {
		return rspace.NewPathMap()
	})
}

func TestPathKey(t *testing.T) {
	key := rspace.PathKey(rho.KindStoreConcurrent, "@3:a/b")
	assert.Equal(t, "3/@3:a/b", key)

	kind, name, err := rspace.SplitPathKey(key)
	require.NoError(t, err)
	assert.Equal(t, rho.KindStoreConcurrent, kind)
	assert.Equal(t, "@3:a/b", name)

	_, _, err = rspace.SplitPathKey("noslash")
	assert.Error(t, err)
	_, _, err = rspace.SplitPathKey("x/name")
	assert.Error(t, err)
}

func TestPathMapNames(t *testing.T) {
	p := rspace.NewPathMap()
	seq := rho.KindMemorySequential
	conc := rho.KindMemoryConcurrent

	for _, id := range []string{"user/b", "user/a", "sys/x"} {
		require.NoError(t, p.Tell(seq, rho.FormatName(seq, id), rho.Int(1)))
	}
	require.NoError(t, p.SetValue(conc, rho.FormatName(conc, "user/z"), rho.Nil))

	assert.Equal(t, []string{"@0:user/a", "@0:user/b"}, p.Names(seq, "@0:user/"))
	assert.Equal(t, []string{"@0:sys/x", "@0:user/a", "@0:user/b"}, p.Names(seq, ""))
	assert.Equal(t, []string{"@1:user/z"}, p.Names(conc, ""))
	assert.Empty(t, p.Names(rho.KindStoreSequential, ""))
	assert.Equal(t, 4, p.Len())

	require.NoError(t, p.Reset())
	assert.Equal(t, 0, p.Len())
}
