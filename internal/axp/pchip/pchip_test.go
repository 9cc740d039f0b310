package pchip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewResetValues(t *testing.T) {
	p := New(0)
	require.Equal(t, uint32(0), p.ID())
	require.Equal(t, uint64(resetPTPMax), p.PCTL().GetField(fieldPCTLPTPMax))
	require.Equal(t, uint64(resetCRQMax), p.PCTL().GetField(fieldPCTLCRQMax))
	require.Equal(t, uint64(resetCDQMax), p.PCTL().GetField(fieldPCTLCDQMax))
	require.Equal(t, uint64(1), p.wsba[3].GetField(fieldWSBASG), "WSBA3.SG resets enabled")
	require.Equal(t, uint64(0), p.wsba[0].GetField(fieldWSBAEna), "every window starts disabled")
}

func TestTranslateDirectMapped(t *testing.T) {
	p := New(0)
	p.ConfigureWindow(0, true, false, 0x80000000, 0x000FFFFF, 0x10000000)

	phys, ok := p.Translate(0x80000123)
	require.True(t, ok)
	require.Equal(t, uint64(0x10000123), phys)
}

func TestTranslateMissReportsNotOK(t *testing.T) {
	p := New(0)
	p.ConfigureWindow(0, true, false, 0x80000000, 0x000FFFFF, 0x10000000)

	_, ok := p.Translate(0x90000000)
	require.False(t, ok)
}

func TestTranslateDisabledWindowNeverMatches(t *testing.T) {
	p := New(0)
	p.ConfigureWindow(0, false, false, 0x80000000, 0x000FFFFF, 0x10000000)

	_, ok := p.Translate(0x80000000)
	require.False(t, ok)
}

func TestTranslateScatterGatherWalksPageTable(t *testing.T) {
	p := New(0)
	const tableBase = 0x20000000
	p.ConfigureWindow(0, true, true, 0x80000000, 0x000FFFFF, tableBase)

	// PCI page 2 (offset 0x4000) maps to physical frame 0x300 (<<13 = 0x600000).
	const frame = 0x300
	p.SetSGReader(func(addr uint64) uint64 {
		if addr == tableBase+2*8 {
			return (frame << 1) | 1 // valid bit set
		}
		return 0
	})

	phys, ok := p.Translate(0x80004010)
	require.True(t, ok)
	require.Equal(t, uint64(frame<<13)+0x10, phys)
}

func TestTranslateScatterGatherInvalidPTEFails(t *testing.T) {
	p := New(0)
	p.ConfigureWindow(0, true, true, 0x80000000, 0x000FFFFF, 0x20000000)
	p.SetSGReader(func(addr uint64) uint64 { return 0 }) // valid bit clear

	_, ok := p.Translate(0x80000000)
	require.False(t, ok)
}

func TestTranslateScatterGatherWithoutReaderFails(t *testing.T) {
	p := New(0)
	p.ConfigureWindow(0, true, true, 0x80000000, 0x000FFFFF, 0x20000000)

	_, ok := p.Translate(0x80000000)
	require.False(t, ok)
}
