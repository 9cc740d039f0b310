package tsunami

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultTopology(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, s.NumCPUs())
	require.NotNil(t, s.Cchip())
	require.NotNil(t, s.Dchip())
	require.Len(t, s.pchips, 1)
}

func TestNewRejectsBadTopology(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumCPUs = 0
	_, err := New(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.NumPchips = 3
	_, err = New(cfg)
	require.Error(t, err)
}

func TestDualPchipSetsDchipP1Present(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumPchips = 2
	s, err := New(cfg)
	require.NoError(t, err)
	require.True(t, s.Dchip().Pchip1Present())
}

func TestReadQuadwordCombinesAdjacentWords(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	s.Memory().WriteWord(0x1000/4, 0xAABBCCDD)
	s.Memory().WriteWord(0x1000/4+1, 0x11223344)

	got := s.readQuadword(0x1000)
	require.Equal(t, uint64(0x11223344AABBCCDD), got)
}

func TestStepRunsWithNoProgramLoaded(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	s.Step() // should not panic with no program loaded; fetch just reads zeros
}
