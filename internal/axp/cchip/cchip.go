// Package cchip implements the Tsunami/Typhoon (21274) Cchip: the
// coherence engine and DRAM arbiter shared by every CPU and Pchip in the
// system (§4.8). It owns four per-array request queues (HRM 6.1.1: one
// queue per memory array, six entries each), the per-entry age/conflict
// bit vectors used to order otherwise-equal requests, the phase0..phase3
// dispatch-probe-arbitrate-respond state machine, and the CSC/MTR/MISC
// control and status registers built on package csr.
package cchip

import (
	"github.com/tsunami-core/axp21264/internal/axp/csr"
	"github.com/tsunami-core/axp21264/internal/axp/sysbus"
)

const (
	// NumArrays is the number of memory arrays (and therefore request
	// queues) the Cchip arbitrates, per HRM 6.1.1.
	NumArrays = 4
	// EntriesPerArray is each array queue's fixed depth.
	EntriesPerArray = 6
)

// Phase is one request's position in the Cchip's dispatch pipeline (§4.8).
type Phase int

const (
	Phase0 Phase = iota // awaiting probes from other CPUs
	Phase1              // probes dispatched, awaiting responses
	Phase2              // DRAM access issued to the Dchip
	Phase3              // response being returned to the requester
)

// age is the 2-bit relationship one request bears to another, older entry
// in the same array queue (AXP_21274_Cchip.h's addrMatchWait/pageHit/
// olderRqs vectors, collapsed into the header's documented 2-bit encoding:
// address-match-wait overrides page-hit, which overrides a plain older
// match).
type age int

const (
	ageNotOlder age = iota
	ageOlderPageHit
	ageOlderAddrWait
	ageOlderNoMatch
)

// Entry is one in-flight request in an array queue.
type Entry struct {
	Valid bool

	SourceID uint32 // CPU or Pchip ID that issued the request
	ReqID    uint32 // MAF/VDB/IOWB ID to echo back in the SysDc response
	Command  sysbus.CPUCommand
	Addr     uint64
	Mask     uint64
	Refresh  bool // a refresh pseudo-request, not a real CPU/Pchip command

	Phase Phase

	// relationships holds this entry's age classification against every
	// other entry in the same array (indexed by queue slot), computed
	// fresh on every Enqueue per §4.8 step 2.
	relationships [EntriesPerArray]age

	probesSent     uint32 // bitmask of CPU IDs a probe was sent to
	probesAnswered uint32 // bitmask of CPU IDs that have responded
	anyDirty       bool   // a probe response reported a dirty copy
	anyShared      bool   // a probe response reported a shared copy

	CacheHit bool // set by ServiceProbeResponse: some other CPU held the line
}

// array is one of the Cchip's four memory-array request queues.
type array struct {
	entries [EntriesPerArray]Entry
}

// Cchip is the coherence engine and DRAM arbiter for one Tsunami/Typhoon
// system. It holds no lock of its own; like cbox and mbox, the owning
// system driver is expected to serialize access (§5).
type Cchip struct {
	arrays  [NumArrays]array
	numCPUs int

	csc *csr.Register
	mtr *csr.Register
	msc *csr.Register

	refreshCounter uint64
}

// CSC/MTR field layouts (§6, AXP_21274_Registers.h), named only for the
// fields this package actually reads.
var (
	fieldCSCPRQMax = csr.Field{Offset: 52, Width: 3}
	fieldCSCPDTMax = csr.Field{Offset: 48, Width: 3}

	fieldMTRPHCR = csr.Field{Offset: 32, Width: 4}
	fieldMTRPHCW = csr.Field{Offset: 36, Width: 4}
	fieldMTRRI   = csr.Field{Offset: 24, Width: 6}
)

// Reset power-on values (AXP_21274_Cchip.c's AXP_21274_CchipInit, carried
// forward since spec.md §6 lists the CSRs but not their reset values):
// CSC.PRQMAX=2, CSC.PDTMAX=1, MTR.PHCW=14, MTR.PHCR=15, MTR.RI=0 (refresh
// disabled until configured).
const (
	resetPRQMax = 2
	resetPDTMax = 1
	resetPHCW   = 14
	resetPHCR   = 15
	resetRI     = 0
)

// New constructs a Cchip serving numCPUs CPUs, with every CSR at its
// power-on reset value.
func New(numCPUs int) *Cchip {
	c := &Cchip{numCPUs: numCPUs}
	c.csc = csr.NewRegister(0)
	c.csc.SetField(fieldCSCPRQMax, resetPRQMax)
	c.csc.SetField(fieldCSCPDTMax, resetPDTMax)
	c.mtr = csr.NewRegister(0)
	c.mtr.SetField(fieldMTRPHCW, resetPHCW)
	c.mtr.SetField(fieldMTRPHCR, resetPHCR)
	c.mtr.SetField(fieldMTRRI, resetRI)
	c.msc = csr.NewRegister(0)
	return c
}

// CSC, MTR, and MISC expose the Cchip's three headline CSRs for CLI
// inspection and system-topology configuration.
func (c *Cchip) CSC() *csr.Register  { return c.csc }
func (c *Cchip) MTR() *csr.Register  { return c.mtr }
func (c *Cchip) MISC() *csr.Register { return c.msc }

// Enqueue places a freshly arrived request (from a CPU skid buffer or a
// Pchip) into array's queue (§4.8 step 1), computing its age/conflict
// relationship against every other currently-queued entry (step 2). It
// reports false if the array queue is full, so the caller back-pressures
// whatever skid buffer the request came from.
func (c *Cchip) Enqueue(arrayIdx int, e Entry) (slot int, ok bool) {
	a := &c.arrays[arrayIdx]
	slot = -1
	for i := range a.entries {
		if !a.entries[i].Valid {
			slot = i
			break
		}
	}
	if slot == -1 {
		return 0, false
	}

	e.Valid = true
	e.Phase = Phase0
	for i := range a.entries {
		if i == slot || !a.entries[i].Valid {
			continue
		}
		e.relationships[i] = classify(e.Addr, a.entries[i].Addr)
	}
	a.entries[slot] = e
	return slot, true
}

// classify implements §4.8 step 2's three-way comparison between a new
// request and an older one already queued in the same array.
func classify(newAddr, olderAddr uint64) age {
	const lineMask = ^uint64(63) // 64-byte cache line
	const pageMask = ^uint64(8191)
	switch {
	case newAddr&lineMask == olderAddr&lineMask:
		return ageOlderAddrWait
	case newAddr&pageMask == olderAddr&pageMask:
		return ageOlderPageHit
	default:
		return ageOlderNoMatch
	}
}

// addrMatchWaitClear reports whether every older entry this one must wait
// on (an address match) has already retired (is no longer Valid).
func (a *array) addrMatchWaitClear(idx int) bool {
	for i, rel := range a.entries[idx].relationships {
		if rel == ageOlderAddrWait && a.entries[i].Valid && i != idx {
			return false
		}
	}
	return true
}

// ProbeFor implements §4.8 step 4: the probe command and required next
// cache state a requester's command demands from every other CPU. Reads
// that only need a shared copy probe for a dirty/shared read-hit without
// forcing invalidation; reads that need exclusive ownership (ReadBlkMod,
// ReadBlkVic) probe for a dirty copy and force Transition1, and the
// to-dirty ownership changes probe for any copy and force Transition3.
func ProbeFor(cmd sysbus.CPUCommand) (sysbus.ProbeCommand, sysbus.NextState) {
	switch cmd {
	case sysbus.CPUReadBlk, sysbus.CPUReadBlkSpec:
		return sysbus.ProbeReadHit, sysbus.NextCleanShared
	case sysbus.CPUReadBlkMod, sysbus.CPUReadBlkVic:
		return sysbus.ProbeReadDirty, sysbus.NextTransition1
	case sysbus.CPUInvalToDirty, sysbus.CPUChangeToDirty, sysbus.CPUSharedToDirty:
		return sysbus.ProbeReadAny, sysbus.NextTransition3
	case sysbus.CPUWrVictimBlk, sysbus.CPUCleanVictimBlk:
		return sysbus.ProbeNop, sysbus.NextNop
	default:
		// Non-cacheable I/O-space commands (byte/LW/QW reads and writes,
		// MB, fetch hints) need no coherence probe.
		return sysbus.ProbeNop, sysbus.NextNop
	}
}

// DispatchProbes advances every Phase0 entry in array to Phase1 (§4.8
// step 3/4), returning the probe messages to send to every other CPU.
// An entry whose probe command is ProbeNop needs no round trip and is
// advanced straight to Phase2.
func (c *Cchip) DispatchProbes(arrayIdx int) []sysbus.ProbeMessage {
	a := &c.arrays[arrayIdx]
	var out []sysbus.ProbeMessage
	for i := range a.entries {
		e := &a.entries[i]
		if !e.Valid || e.Phase != Phase0 {
			continue
		}
		probe, next := ProbeFor(e.Command)
		if probe == sysbus.ProbeNop {
			e.Phase = Phase2
			continue
		}
		for cpu := 0; cpu < c.numCPUs; cpu++ {
			if uint32(cpu) == e.SourceID {
				continue
			}
			e.probesSent |= 1 << uint(cpu)
			out = append(out, sysbus.ProbeMessage{
				Address: e.Addr,
				Probe:   probe,
				Next:    next,
			})
		}
		e.Phase = Phase1
	}
	return out
}

// ServiceProbeResponse records one CPU's answer to an outstanding probe
// (§4.8 step 4/5): whether it held the line, and in what state.
func (c *Cchip) ServiceProbeResponse(arrayIdx, slot int, cpuID uint32, held, dirty bool) {
	e := &c.arrays[arrayIdx].entries[slot]
	e.probesAnswered |= 1 << uint(cpuID)
	if held {
		e.CacheHit = true
		if dirty {
			e.anyDirty = true
		} else {
			e.anyShared = true
		}
	}
}

func (e *Entry) probesComplete() bool {
	return e.probesSent == e.probesAnswered
}

// Ready reports whether an entry may be arbitrated onto the memory bus
// (§4.8 step 5): every address-match-wait predecessor has retired, and
// every probe this entry sent has been answered.
func (c *Cchip) Ready(arrayIdx, slot int) bool {
	a := &c.arrays[arrayIdx]
	e := &a.entries[slot]
	if !e.Valid || e.Phase != Phase1 && e.Phase != Phase2 {
		return false
	}
	if e.Phase == Phase1 && !e.probesComplete() {
		return false
	}
	return a.addrMatchWaitClear(slot)
}

// Arbitrate selects the next entry in array to issue to DRAM (§4.8
// step 5): among entries that are Ready, prefer a page hit against the
// most recently issued access (so MTR.PHCR/PHCW's page-hit cycle savings
// apply), falling back to the lowest-numbered ready slot otherwise; ties
// within either group also go to the lowest slot, not to the oldest request.
// It reports ok=false if nothing in the array is ready.
func (c *Cchip) Arbitrate(arrayIdx int, lastPage uint64) (slot int, ok bool) {
	a := &c.arrays[arrayIdx]
	best := -1
	bestIsPageHit := false
	for i := range a.entries {
		e := &a.entries[i]
		if e.Phase == Phase1 && e.probesComplete() {
			e.Phase = Phase2
		}
		if !c.Ready(arrayIdx, i) {
			continue
		}
		isPageHit := e.Addr&^uint64(8191) == lastPage&^uint64(8191)
		switch {
		case best == -1:
			best, bestIsPageHit = i, isPageHit
		case isPageHit && !bestIsPageHit:
			best, bestIsPageHit = i, isPageHit
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// SysDcFor implements §4.8 step 6: the completion code returned to the
// requester once its entry's DRAM access (or pure-coherence probe
// outcome) has been serviced.
func SysDcFor(e *Entry) sysbus.SysDc {
	switch e.Command {
	case sysbus.CPUReadBlk, sysbus.CPUReadBlkSpec:
		if e.anyDirty {
			return sysbus.SysDcReadDataDirty
		}
		if e.anyShared || e.CacheHit {
			return sysbus.SysDcReadDataShared
		}
		return sysbus.SysDcReadData
	case sysbus.CPUReadBlkMod, sysbus.CPUReadBlkVic:
		if e.anyShared {
			return sysbus.SysDcReadDataSharedDirty
		}
		return sysbus.SysDcReadData
	case sysbus.CPUInvalToDirty, sysbus.CPUChangeToDirty, sysbus.CPUSharedToDirty:
		if e.anyDirty {
			return sysbus.SysDcChangeToDirtyFail
		}
		return sysbus.SysDcChangeToDirtySuccess
	case sysbus.CPUWrVictimBlk, sysbus.CPUCleanVictimBlk:
		return sysbus.SysDcWriteData
	case sysbus.CPUMB:
		return sysbus.SysDcMBDone
	default:
		return sysbus.SysDcReleaseBuffer
	}
}

// Complete finishes one entry's Phase3 (§4.8 step 6): builds its SysDc
// response and frees the array slot.
func (c *Cchip) Complete(arrayIdx, slot int) sysbus.ProbeMessage {
	a := &c.arrays[arrayIdx]
	e := &a.entries[slot]
	e.Phase = Phase3
	resp := sysbus.ProbeMessage{
		Address:  e.Addr,
		Sys:      SysDcFor(e),
		TargetID: e.ReqID,
	}
	a.entries[slot] = Entry{}
	return resp
}

// MaybeRefresh implements §4.8's refresh rule: at intervals determined by
// MTR.RI (in units of 64 cycles; 0 disables refresh), insert a refresh
// pseudo-request into every array queue. Callers call this once per
// cycle; the cycle count advances regardless of whether a refresh fires.
func (c *Cchip) MaybeRefresh() {
	ri := c.mtr.GetField(fieldMTRRI)
	c.refreshCounter++
	if ri == 0 {
		return
	}
	if c.refreshCounter%(ri*64) != 0 {
		return
	}
	for i := range c.arrays {
		c.Enqueue(i, Entry{Command: sysbus.CPUNop, Refresh: true})
	}
}

// PRQMax and PDTMax read back the negotiated per-Pchip credit limits
// (§4.7's CSC.PRQMAX/PDTMAX, consumed by a Cbox's CreditLimiter).
func (c *Cchip) PRQMax() uint64 { return c.csc.GetField(fieldCSCPRQMax) }
func (c *Cchip) PDTMax() uint64 { return c.csc.GetField(fieldCSCPDTMax) }
