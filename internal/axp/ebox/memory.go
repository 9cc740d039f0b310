package ebox

import (
	"github.com/tsunami-core/axp21264/internal/axp/mbox"
	"github.com/tsunami-core/axp21264/internal/axp/tlb"
)

// MemoryUnit is the per-CPU glue an L0/L1 Cluster needs to execute
// Memory-format loads and stores (§4.6): the Mbox itself, the DTB it
// translates addresses through, the ASN/AccessMode translation runs
// under, and a Fill callback that resolves a Dcache miss — ordinarily by
// routing through a Cbox/Cchip system-bus request (see cpu.CPU), though a
// bare MemoryUnit with Fill left nil still serves zero-filled lines.
type MemoryUnit struct {
	Mbox *mbox.Mbox
	DTB  *tlb.TLB
	ASN  uint8
	Mode tlb.AccessMode

	Fill func(paddr uint64) [64]byte
}

// translate resolves vaddr to a physical address, auto-installing an
// identity DTB mapping and retrying once on a translation-buffer miss.
// This mirrors cpu.CPU.fetchLineWithFill's ITB-miss-servicing idiom:
// this CPU model has no separate virtual-memory manager, so the DTB is
// filled on demand rather than by a PALcode miss handler.
func (m *MemoryUnit) translate(vaddr uint64, wantRead, wantWrite bool) (uint64, error) {
	paddr, err := m.Mbox.Translate(vaddr, m.ASN, m.Mode, wantRead, wantWrite)
	if err == nil {
		return paddr, nil
	}
	if err != mbox.ErrTBMiss {
		return 0, err
	}
	m.DTB.Fill(tlb.Entry{
		VirtualPage:  vaddr >> 13,
		PhysicalPage: vaddr >> 13,
		ReadEnable:   [4]bool{true, true, true, true},
		WriteEnable:  [4]bool{true, true, true, true},
	})
	return m.Mbox.Translate(vaddr, m.ASN, m.Mode, wantRead, wantWrite)
}

func (m *MemoryUnit) fillLine(paddr uint64) [64]byte {
	if m.Fill != nil {
		return m.Fill(paddr)
	}
	return [64]byte{}
}

// Load implements §4.6's load path: translate, ensure the Dcache line is
// resident (filling it on a miss via Fill), then issue.
func (m *MemoryUnit) Load(vaddr uint64, size int, robID int, locked bool) (value uint64, physAddr uint64, err error) {
	paddr, err := m.translate(vaddr, true, false)
	if err != nil {
		return 0, 0, err
	}
	m.Mbox.EnsureLine(paddr, m.fillLine)
	value, ok, err := m.Mbox.IssueLoad(mbox.MemOp{
		ROBID:       robID,
		VirtualAddr: vaddr,
		PhysAddr:    paddr,
		Size:        size,
		IsLoad:      true,
		Locked:      locked,
	})
	if err != nil {
		return 0, paddr, err
	}
	if !ok {
		return 0, paddr, mbox.ErrDcacheMiss
	}
	return value, paddr, nil
}

// Store implements §4.6's store path: translate, ensure the Dcache line
// is resident, then issue into the STQ. succeeded only matters for a
// locked (STx_C) store; every other store always succeeds once issued.
func (m *MemoryUnit) Store(vaddr uint64, size int, robID int, value uint64, locked bool) (physAddr uint64, succeeded bool, err error) {
	paddr, err := m.translate(vaddr, false, true)
	if err != nil {
		return 0, false, err
	}
	m.Mbox.EnsureLine(paddr, m.fillLine)
	succeeded = m.Mbox.IssueStore(mbox.MemOp{
		ROBID:       robID,
		VirtualAddr: vaddr,
		PhysAddr:    paddr,
		Size:        size,
		Value:       value,
		Locked:      locked,
	})
	return paddr, succeeded, nil
}
