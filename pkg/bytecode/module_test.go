package bytecode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/rhovm/pkg/rho"
)

func sampleModule() *Module {
	m := NewModule()
	done := m.Pool.AddString("done")
	m.Pool.AddValue(rho.Map{{Key: rho.Str("k"), Value: rho.List{rho.Int(1)}}})
	m.Pool.AddBytes([]byte{0xde, 0xad})
	m.Processes = append(m.Processes, ProcessCode{
		Name: "main",
		Code: []Instruction{
			InstArg(OpPushInt, 2),
			InstArg(OpPushInt, 3),
			Inst(OpAdd),
			InstArg(OpPushStr, int64(done)),
			Inst(OpJump),
			Inst(OpHalt),
		},
		Labels: map[string]int{"done": 5},
	})
	return m
}

func TestModuleRoundTrip(t *testing.T) {
	m := sampleModule()
	data, err := m.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalModule(data)
	require.NoError(t, err)
	assert.Equal(t, ModuleVersion, got.Version)
	assert.Equal(t, m.Processes, got.Processes)
	require.Equal(t, m.Pool.Len(), got.Pool.Len())
	for i, c := range m.Pool.Constants() {
		g, err := got.Pool.Get(int64(i))
		require.NoError(t, err)
		assert.True(t, c.Equal(g), "constant %d: %v != %v", i, c, g)
	}
}

func TestModuleRejectsCorruption(t *testing.T) {
	data, err := sampleModule().Marshal()
	require.NoError(t, err)

	t.Run("short", func(t *testing.T) {
		_, err := UnmarshalModule(data[:5])
		assert.ErrorIs(t, err, &Error{Kind: ErrBadModule})
	})

	t.Run("magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] = 'X'
		_, err := UnmarshalModule(bad)
		assert.ErrorIs(t, err, &Error{Kind: ErrBadModule})
	})

	t.Run("checksum", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-1] ^= 0xFF
		_, err := UnmarshalModule(bad)
		assert.ErrorIs(t, err, &Error{Kind: ErrChecksumMismatch})
	})

	t.Run("newer version", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		binary.BigEndian.PutUint16(bad[4:6], ModuleVersion+1)
		_, err := UnmarshalModule(bad)
		assert.ErrorIs(t, err, &Error{Kind: ErrVersionMismatch})
	})
}

func TestModuleRejectsPar(t *testing.T) {
	m := NewModule()
	m.Pool.AddValue(rho.Par{})
	_, err := m.Marshal()
	assert.ErrorIs(t, err, rho.ErrUnencodable)
}

func TestModuleProcessLookup(t *testing.T) {
	m := sampleModule()
	_, ok := m.Process("main")
	assert.True(t, ok)
	_, ok = m.Process("missing")
	assert.False(t, ok)
}
