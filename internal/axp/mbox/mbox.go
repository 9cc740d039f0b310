// Package mbox implements the Alpha 21264 memory execution unit (§4.6):
// load and store queues, DTB-backed address translation, store-to-load
// forwarding, Dcache probing, load-locked/store-conditional reservation
// tracking, and servicing of inbound coherence probes.
package mbox

import (
	"errors"

	"github.com/tsunami-core/axp21264/internal/axp/dcache"
	"github.com/tsunami-core/axp21264/internal/axp/tlb"
)

var (
	ErrTBMiss          = errors.New("mbox: translation buffer miss")
	ErrAccessViolation = errors.New("mbox: access violation")
	ErrDcacheMiss      = errors.New("mbox: dcache miss, fill required")
	ErrPartialOverlap  = errors.New("mbox: partial store/load overlap, must wait")
)

// MemOp is one entry in the load or store queue (§3's LDQ/STQ, folded
// into a single type since both queues share the same age-ordered
// overlap-detection shape).
type MemOp struct {
	ROBID       int
	VirtualAddr uint64
	PhysAddr    uint64
	Size        int // bytes: 1, 2, 4, or 8
	IsLoad      bool
	Value       uint64
	Locked      bool // LDQ_L/STQ_C
	Completed   bool
}

// overlap reports whether two memory ops access any common byte, and
// whether that overlap is a full containment of b's range within a's
// (required for store->load forwarding; §4.6 only forwards full-overlap).
func overlap(a, b MemOp) (overlaps, full bool) {
	aEnd := a.PhysAddr + uint64(a.Size)
	bEnd := b.PhysAddr + uint64(b.Size)
	if b.PhysAddr >= aEnd || a.PhysAddr >= bEnd {
		return false, false
	}
	full = a.PhysAddr <= b.PhysAddr && bEnd <= aEnd
	return true, full
}

// Mbox is the memory execution unit for one CPU.
type Mbox struct {
	dtb    *tlb.TLB
	dcache *dcache.Dcache

	ldq []MemOp
	stq []MemOp

	// reservation tracks the LL/SC reservation: the physical line address
	// of the most recent load-locked, and whether it is still valid (no
	// intervening invalidation for that block).
	reservationValid bool
	reservationLine  uint64
}

// New constructs an Mbox backed by the given DTB and Dcache.
func New(dtb *tlb.TLB, dc *dcache.Dcache) *Mbox {
	return &Mbox{dtb: dtb, dcache: dc}
}

func lineAddr(paddr uint64) uint64 { return paddr &^ 0x3F } // 64-byte lines

// Translate performs the DTB lookup and protection check §4.6 steps 1-2
// require before any load or store proceeds.
func (m *Mbox) Translate(vaddr uint64, asn uint8, mode tlb.AccessMode, wantRead, wantWrite bool) (uint64, error) {
	e, _, ok := m.dtb.Lookup(vaddr>>13, asn)
	if !ok {
		return 0, ErrTBMiss
	}
	if err := e.CheckAccess(mode, wantRead, wantWrite, false); err != nil {
		return 0, ErrAccessViolation
	}
	paddr := (e.PhysicalPage << 13) | (vaddr & 0x1FFF)
	return paddr, nil
}

// IssueLoad implements §4.6 steps 3-5 for a load: insert into the LDQ,
// check the STQ for a forwardable store, and on no forward probe the
// Dcache. value is only meaningful when ok is true.
func (m *Mbox) IssueLoad(op MemOp) (value uint64, ok bool, err error) {
	m.ldq = append(m.ldq, op)

	// Store-to-load forwarding: scan the STQ youngest-to-oldest for the
	// most recent older store with a full-overlap match.
	for i := len(m.stq) - 1; i >= 0; i-- {
		st := m.stq[i]
		if st.ROBID >= op.ROBID {
			continue // only older stores can forward
		}
		ov, full := overlap(st, op)
		if !ov {
			continue
		}
		if !full {
			return 0, false, ErrPartialOverlap
		}
		return st.Value, true, nil
	}

	line, _, hit := m.dcache.Probe(op.PhysAddr)
	if !hit {
		return 0, false, ErrDcacheMiss
	}
	if op.Locked {
		m.reservationValid = true
		m.reservationLine = lineAddr(op.PhysAddr)
	}
	return extractValue(line.Data[:], op.PhysAddr, op.Size), true, nil
}

// IssueStore implements §4.6 step 6: the store completes into the STQ
// without touching the Dcache; Dcache update is deferred to retirement
// (see Retire). For STQ_C (store-conditional), success depends on the
// LL/SC reservation established by a matching load-locked still being
// valid; the destination register convention (1 success / 0 failure) is
// the caller's responsibility to apply to its own ROB/PRF bookkeeping.
func (m *Mbox) IssueStore(op MemOp) (succeeded bool) {
	if op.Locked {
		succeeded = m.reservationValid && lineAddr(op.PhysAddr) == m.reservationLine
		m.reservationValid = false
		if !succeeded {
			return false
		}
	}
	m.stq = append(m.stq, op)
	return true
}

// RetireStore applies a completed store to the Dcache (§4.6 step 6,
// "at retirement"). The caller (Cbox) is responsible for issuing a
// change-to-dirty system-bus request first if the line is not already
// Dirty-writable; RetireStore assumes that has already happened and the
// line is resident.
func (m *Mbox) RetireStore(op MemOp) bool {
	line, _, ok := m.dcache.Probe(op.PhysAddr)
	if !ok {
		return false
	}
	insertValue(line.Data[:], op.PhysAddr, op.Size, op.Value)
	for i, st := range m.stq {
		if st.ROBID == op.ROBID {
			m.stq = append(m.stq[:i], m.stq[i+1:]...)
			break
		}
	}
	return true
}

// EnsureLine guarantees the Dcache line containing paddr is resident,
// filling it from fillLine (ordinarily a Cbox-mediated system-bus read,
// see ebox.MemoryUnit) on a miss. Callers that would otherwise see
// IssueLoad/IssueStore fail with ErrDcacheMiss call this first, exactly
// once, so neither method ever needs to be retried (retrying IssueLoad
// would append its op to the LDQ a second time).
func (m *Mbox) EnsureLine(paddr uint64, fillLine func(paddr uint64) [64]byte) {
	if _, _, hit := m.dcache.Probe(paddr); hit {
		return
	}
	m.dcache.Fill(lineAddr(paddr), fillLine(lineAddr(paddr)), dcache.Clean)
}

// ServiceProbe implements §4.6's probe-servicing paragraph: inspecting
// the Dcache state (and implicitly the STQ, via the caller having already
// drained conflicting stores) to determine the response status, then
// invalidating the block if the probe demands it.
func (m *Mbox) ServiceProbe(paddr uint64, invalidate bool) (status ProbeStatus) {
	line, _, ok := m.dcache.Probe(paddr)
	if !ok {
		return ProbeMiss
	}
	switch {
	case line.State.IsDirty() && line.State.IsShared():
		status = ProbeHitSharedDirty
	case line.State.IsDirty():
		status = ProbeHitDirty
	case line.State.IsShared():
		status = ProbeHitShared
	default:
		status = ProbeHitClean
	}
	if invalidate {
		m.dcache.Invalidate(paddr)
		if lineAddr(paddr) == m.reservationLine {
			m.reservationValid = false
		}
	}
	return status
}

// ProbeStatus is the outcome §4.6 assigns a serviced probe.
type ProbeStatus int

const (
	ProbeMiss ProbeStatus = iota
	ProbeHitClean
	ProbeHitShared
	ProbeHitDirty
	ProbeHitSharedDirty
)

// Drain reports whether the STQ has fully drained to the point a memory
// barrier requires (§4.6 step 8: MB waits for all stores, WMB only for
// stores). Both barrier kinds only ever need the STQ in this model since
// loads do not buffer past completion.
func (m *Mbox) Drain() bool { return len(m.stq) == 0 }

func extractValue(data []byte, paddr uint64, size int) uint64 {
	off := paddr & 0x3F
	var v uint64
	for i := 0; i < size; i++ {
		v |= uint64(data[int(off)+i]) << (8 * i)
	}
	return v
}

func insertValue(data []byte, paddr uint64, size int, value uint64) {
	off := paddr & 0x3F
	for i := 0; i < size; i++ {
		data[int(off)+i] = byte(value >> (8 * i))
	}
}
