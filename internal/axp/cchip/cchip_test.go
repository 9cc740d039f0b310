package cchip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsunami-core/axp21264/internal/axp/sysbus"
)

func TestNewResetValues(t *testing.T) {
	c := New(2)
	require.Equal(t, uint64(resetPRQMax), c.PRQMax())
	require.Equal(t, uint64(resetPDTMax), c.PDTMax())
	require.Equal(t, uint64(resetPHCW), c.MTR().GetField(fieldMTRPHCW))
	require.Equal(t, uint64(resetPHCR), c.MTR().GetField(fieldMTRPHCR))
	require.Equal(t, uint64(0), c.MTR().GetField(fieldMTRRI))
}

func TestEnqueueFillsArrayThenBackPressures(t *testing.T) {
	c := New(2)
	for i := 0; i < EntriesPerArray; i++ {
		slot, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: uint64(i * 4096)})
		require.True(t, ok, "entry %d should fit", i)
		require.Equal(t, i, slot)
	}
	_, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: 999999})
	require.False(t, ok, "a seventh request should be rejected for back-pressure")
}

func TestEnqueueClassifiesAddressMatchOverPageHit(t *testing.T) {
	c := New(2)
	_, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: 0x1000})
	require.True(t, ok)

	// Same cache line as the first entry: must be classified addr-match-wait.
	slot, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: 0x1000})
	require.True(t, ok)
	require.Equal(t, ageOlderAddrWait, c.arrays[0].entries[slot].relationships[0])

	// Same page, different line: page hit.
	slot2, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: 0x1040})
	require.True(t, ok)
	require.Equal(t, ageOlderPageHit, c.arrays[0].entries[slot2].relationships[0])

	// Different page entirely: no match.
	slot3, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: 0x9000})
	require.True(t, ok)
	require.Equal(t, ageOlderNoMatch, c.arrays[0].entries[slot3].relationships[0])
}

func TestReadyWaitsOnAddressMatch(t *testing.T) {
	c := New(2)
	_, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: 0x1000, SourceID: 0})
	require.True(t, ok)
	slot2, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: 0x1000, SourceID: 1})
	require.True(t, ok)

	c.DispatchProbes(0)
	// Entry 0 (numCPUs=2, SourceID 0) probes CPU 1; since no response has
	// arrived yet, it is not ready.
	require.False(t, c.Ready(0, 0))

	c.ServiceProbeResponse(0, 0, 1, false, false)
	require.True(t, c.Ready(0, 0))

	// The second entry address-matches the first, still in the array, so it
	// must wait even once its own probes are answered.
	c.ServiceProbeResponse(0, slot2, 0, false, false)
	require.False(t, c.Ready(0, slot2))
}

func TestArbitratePrefersPageHit(t *testing.T) {
	c := New(1)
	slotA, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: 0x2000})
	require.True(t, ok)
	slotB, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: 0x5040})
	require.True(t, ok)

	c.DispatchProbes(0) // numCPUs=1, nobody else to probe: ProbeReadHit still sent count 0
	_ = slotA
	require.True(t, c.Ready(0, slotA))
	require.True(t, c.Ready(0, slotB))

	slot, ok := c.Arbitrate(0, 0x5000) // last DRAM page matches slotB's page
	require.True(t, ok)
	require.Equal(t, slotB, slot)
}

func TestSysDcForReadBlkCleanIsReadData(t *testing.T) {
	e := &Entry{Command: sysbus.CPUReadBlk}
	require.Equal(t, sysbus.SysDcReadData, SysDcFor(e))

	e.anyDirty = true
	require.Equal(t, sysbus.SysDcReadDataDirty, SysDcFor(e))
}

func TestSysDcForChangeToDirty(t *testing.T) {
	e := &Entry{Command: sysbus.CPUChangeToDirty}
	require.Equal(t, sysbus.SysDcChangeToDirtySuccess, SysDcFor(e))
	e.anyDirty = true
	require.Equal(t, sysbus.SysDcChangeToDirtyFail, SysDcFor(e))
}

func TestCompleteFreesSlot(t *testing.T) {
	c := New(1)
	slot, ok := c.Enqueue(0, Entry{Command: sysbus.CPUReadBlk, Addr: 0x10, ReqID: 42})
	require.True(t, ok)
	c.DispatchProbes(0)

	resp := c.Complete(0, slot)
	require.Equal(t, uint32(42), resp.TargetID)
	require.False(t, c.arrays[0].entries[slot].Valid)
}

func TestMaybeRefreshInsertsPseudoRequestAtInterval(t *testing.T) {
	c := New(1)
	c.mtr.SetField(fieldMTRRI, 1) // refresh every 1*64 cycles

	for i := 0; i < 63; i++ {
		c.MaybeRefresh()
	}
	require.False(t, c.arrays[0].entries[0].Valid, "no refresh should have fired yet")

	c.MaybeRefresh() // 64th tick
	require.True(t, c.arrays[0].entries[0].Valid)
	require.True(t, c.arrays[0].entries[0].Refresh)
}

func TestMaybeRefreshDisabledWhenRIZero(t *testing.T) {
	c := New(1)
	for i := 0; i < 256; i++ {
		c.MaybeRefresh()
	}
	require.False(t, c.arrays[0].entries[0].Valid)
}

func TestProbeForReadBlkRequestsCleanShared(t *testing.T) {
	probe, next := ProbeFor(sysbus.CPUReadBlk)
	require.Equal(t, sysbus.ProbeReadHit, probe)
	require.Equal(t, sysbus.NextCleanShared, next)
}

func TestProbeForChangeToDirtyRequestsAnyInvalidate(t *testing.T) {
	probe, next := ProbeFor(sysbus.CPUChangeToDirty)
	require.Equal(t, sysbus.ProbeReadAny, probe)
	require.Equal(t, sysbus.NextTransition3, next)
}
