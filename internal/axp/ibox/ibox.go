// Package ibox implements the Alpha 21264 instruction fetch, decode,
// rename, and retirement agent (§4.2, §4.3, §4.11): it drives the
// Icache/ITB to fetch raw instruction words, decodes and renames them
// onto the reorder buffer and physical register files, dispatches ready
// entries to the integer or floating-point instruction queue, and scans
// the ROB head to retire or, on mis-speculation, roll back in-flight
// state.
package ibox

import (
	"errors"

	"github.com/tsunami-core/axp21264/internal/axp/bpred"
	"github.com/tsunami-core/axp21264/internal/axp/decode"
	"github.com/tsunami-core/axp21264/internal/axp/icache"
	"github.com/tsunami-core/axp21264/internal/axp/iqueue"
	"github.com/tsunami-core/axp21264/internal/axp/pc"
	"github.com/tsunami-core/axp21264/internal/axp/prf"
	"github.com/tsunami-core/axp21264/internal/axp/rob"
	"github.com/tsunami-core/axp21264/internal/axp/tlb"
)

var (
	ErrITBMiss         = errors.New("ibox: itb miss, translation required")
	ErrIcacheMiss      = errors.New("ibox: icache miss, fill required")
	ErrROBFull         = errors.New("ibox: reorder buffer full")
	ErrFreeListEmpty   = errors.New("ibox: destination pool exhausted")
	ErrProtectionFault = errors.New("ibox: icache line protection fault")
)

// Ibox is the fetch/decode/rename/retirement agent for one CPU.
type Ibox struct {
	VPC       *pc.List
	ITB       *tlb.TLB
	Icache    *icache.Icache
	Predictor *bpred.Predictor

	IntPRF *prf.Pool
	FPPRF  *prf.Pool

	ROB      *rob.ROB
	IntQueue *iqueue.Queue
	FPQueue  *iqueue.Queue

	ASN        uint8
	PALMode    bool
	AccessMode tlb.AccessMode

	// ShadowPAL, when true, substitutes integer register numbers 4..7
	// and 20..23 with a PAL-shadow bank at decode time (§3's PAL-shadow
	// control bit).
	ShadowPAL bool
}

// New constructs an Ibox wired to the given shared structures.
func New(vpcCapacity int, itb *tlb.TLB, ic *icache.Icache, predictor *bpred.Predictor, intPRF, fpPRF *prf.Pool, r *rob.ROB) *Ibox {
	return &Ibox{
		VPC:       pc.NewList(vpcCapacity),
		ITB:       itb,
		Icache:    ic,
		Predictor: predictor,
		IntPRF:    intPRF,
		FPPRF:     fpPRF,
		ROB:       r,
		IntQueue:  iqueue.New(),
		FPQueue:   iqueue.New(),
	}
}

// shadowRegister implements the PAL-shadow substitution (§3): in PAL
// mode with the shadow control bit set, integer architectural numbers
// 4..7 alias 32..35 and 20..23 alias 36..39 of an extended shadow bank,
// rather than the normal architectural numbers.
func shadowRegister(arch int) int {
	switch {
	case arch >= 4 && arch <= 7:
		return 32 + (arch - 4)
	case arch >= 20 && arch <= 23:
		return 36 + (arch - 20)
	default:
		return arch
	}
}

func (ib *Ibox) resolveArch(arch int) int {
	if ib.PALMode && ib.ShadowPAL && arch != -1 {
		return shadowRegister(arch)
	}
	return arch
}

func (ib *Ibox) poolFor(p Pool) *prf.Pool {
	if p == FPPool {
		return ib.FPPRF
	}
	return ib.IntPRF
}

// FetchLine requests the Icache line containing vpc, first resolving the
// virtual page through the ITB. Callers observing ErrITBMiss or
// ErrIcacheMiss are expected to service the miss (fill the TLB / issue a
// Cbox-mediated line fill) and retry.
func (ib *Ibox) FetchLine(vpc uint64) (icache.FetchOutcome, error) {
	vpage := vpc >> 13
	entry, _, ok := ib.ITB.Lookup(vpage, ib.ASN)
	if !ok {
		return icache.FetchOutcome{}, ErrITBMiss
	}
	mode := icache.AccessMode(ib.AccessMode)
	if err := entry.CheckAccess(ib.AccessMode, false, false, true); err != nil {
		return icache.FetchOutcome{}, err
	}
	outcome, ok := ib.Icache.Fetch(vpc, ib.ASN, ib.PALMode, mode)
	if !ok {
		// Icache.Fetch reports a line-level protection failure as
		// (FetchOutcome{Result: Hit}, false) rather than a distinct miss
		// outcome, so it must be distinguished from a real miss here.
		return icache.FetchOutcome{}, ErrProtectionFault
	}
	if outcome.Result != icache.Hit {
		return outcome, ErrIcacheMiss
	}
	return outcome, nil
}

// RenameDispatch implements §4.3's rename policy and §4.4's initial
// dispatch for one freshly decoded instruction at the given fetch PC. It
// records the PC in the VPC list, reads source operands from the
// current architectural map (bumping their reference counts), allocates
// a destination physical register (or keeps the fixed zero mapping),
// dispatches a ROB entry snapshotting the previous mapping for rollback,
// and enqueues the instruction onto the integer or floating-point queue
// according to its pipeline eligibility. For a Branch-format instruction
// it additionally consults the predictor (§4.1) and returns its taken/
// not-taken prediction so the caller can steer the next fetch PC.
func (ib *Ibox) RenameDispatch(fetchPC pc.PC, d decode.Decoded) (robID int, predictedTaken bool, err error) {
	if isRenamedAsMemory(d) {
		return ib.renameDispatchMemory(fetchPC, d)
	}

	raPool, rbPool, rcPool := OperandPools(d)

	var srcPhys [2]int
	var srcPool [2]int
	if raPool != NoPool && d.Ra != -1 {
		phys, _ := ib.poolFor(raPool).ReadSource(ib.resolveArch(d.Ra))
		srcPhys[0] = phys
		srcPool[0] = int(raPool)
	}
	if rbPool != NoPool && d.Rb != -1 && !d.IsLiteral {
		phys, _ := ib.poolFor(rbPool).ReadSource(ib.resolveArch(d.Rb))
		srcPhys[1] = phys
		srcPool[1] = int(rbPool)
	}

	destArch := -1
	destPhys := prf.ZeroPhys
	prevMap, prevValue := prf.ZeroPhys, uint64(0)
	if rcPool != NoPool && d.Rc != -1 {
		destArch = ib.resolveArch(d.Rc)
		pool := ib.poolFor(rcPool)
		var ok bool
		destPhys, prevMap, prevValue, ok = pool.AllocDest(destArch)
		if !ok {
			return 0, false, ErrFreeListEmpty
		}
	}

	var pred bpred.Prediction
	isBranch := d.Format == decode.FormatBranch
	if isBranch {
		pred = ib.Predictor.Predict(fetchPC.Addr())
	}

	vpcIdx := ib.VPC.Add(fetchPC)

	robID, ok := ib.ROB.Dispatch(rob.Entry{
		PC:            fetchPC.Uint64(),
		Opcode:        d.Opcode,
		State:         rob.Queued,
		DestArch:      destArch,
		DestPhys:      destPhys,
		SrcPhys:       srcPhys,
		SrcPool:       srcPool,
		PrevDestMap:   prevMap,
		PrevDestValue: prevValue,
		DestPool:      int(rcPool),

		IsBranch:         isBranch,
		BrDisp:           d.BrDisp,
		PredictedTaken:   pred.Taken,
		PredLocalTaken:   pred.LocalTaken,
		PredGlobalTaken:  pred.GlobalTaken,
		PredChooseGlobal: pred.ChooseGlobal,
	})
	if !ok || robID != vpcIdx {
		return 0, false, ErrROBFull
	}

	entry := iqueue.Entry{
		ROBID:    robID,
		Decoded:  d,
		SrcPhys:  srcPhys,
		DestPhys: destPhys,
		State:    iqueue.Queued,
		Stall:    isStalling(d),
	}
	if d.Clusters&decode.AllFP != 0 {
		ib.FPQueue.Add(entry)
	} else {
		ib.IntQueue.Add(entry)
	}
	return robID, pred.Taken, nil
}

// renameDispatchMemory implements §4.3's rename policy for the Memory
// format: Rb is always a source (the base address register), and Ra is
// either the load's destination, LDA/LDAH's address-computation
// destination, or a store's value source — never a destination, except
// for STx_C, which both reads Ra as the value to store and later
// overwrites it with its 1/0 success flag (§4.6's LL/SC scenarios), so
// it rename-allocates Ra as a destination too.
func (ib *Ibox) renameDispatchMemory(fetchPC pc.PC, d decode.Decoded) (robID int, predictedTaken bool, err error) {
	isStore := decode.IsStore(d.Opcode)
	isLoad := decode.IsLoad(d.Opcode)
	isAddrCompute := decode.IsAddressCompute(d.Opcode)

	basePhys := prf.ZeroPhys
	if d.Rb != -1 {
		basePhys, _ = ib.IntPRF.ReadSource(ib.resolveArch(d.Rb))
	}

	valuePhys := prf.ZeroPhys
	if isStore && d.Ra != -1 {
		valuePhys, _ = ib.IntPRF.ReadSource(ib.resolveArch(d.Ra))
	}

	destArch := -1
	switch {
	case (isLoad || isAddrCompute) && d.Ra != -1:
		destArch = ib.resolveArch(d.Ra)
	case isStore && decode.IsLockedMemoryOp(d.Opcode) && d.Ra != -1:
		destArch = ib.resolveArch(d.Ra)
	}

	destPhys := prf.ZeroPhys
	prevMap, prevValue := prf.ZeroPhys, uint64(0)
	if destArch != -1 {
		var ok bool
		destPhys, prevMap, prevValue, ok = ib.IntPRF.AllocDest(destArch)
		if !ok {
			return 0, false, ErrFreeListEmpty
		}
	}

	vpcIdx := ib.VPC.Add(fetchPC)

	srcPhys := [2]int{basePhys, valuePhys}
	srcPool := [2]int{int(IntPool), int(IntPool)}

	robID, ok := ib.ROB.Dispatch(rob.Entry{
		PC:            fetchPC.Uint64(),
		Opcode:        d.Opcode,
		State:         rob.Queued,
		DestArch:      destArch,
		DestPhys:      destPhys,
		SrcPhys:       srcPhys,
		SrcPool:       srcPool,
		PrevDestMap:   prevMap,
		PrevDestValue: prevValue,
		DestPool:      int(IntPool),
	})
	if !ok || robID != vpcIdx {
		return 0, false, ErrROBFull
	}

	ib.IntQueue.Add(iqueue.Entry{
		ROBID:    robID,
		Decoded:  d,
		SrcPhys:  srcPhys,
		DestPhys: destPhys,
		State:    iqueue.Queued,
		Stall:    isStalling(d),
	})
	return robID, false, nil
}

// isStalling reports whether an instruction must serialize the pipeline
// (§4.3): memory barriers, store-conditional, and HW_RET carry a stall
// bit consumed by the retirement agent before admitting younger work.
func isStalling(d decode.Decoded) bool {
	switch d.FuncName {
	case "MB", "WMB":
		return true
	}
	return d.Opcode == decode.OpSTQ_C || d.Opcode == decode.OpSTL_C || d.Opcode == decode.OpHWREI
}

// Retire implements §4.11's retirement scan: while the ROB head is
// WaitingRetirement or Retired, commit it — release the superseded
// previous destination mapping and both source operand references back
// to their pools (the "decrement refCount on all referenced physical
// registers" step) — and advance robStart. It retires at most one entry
// per call; the caller loops until it returns false.
func (ib *Ibox) Retire() (rob.Entry, bool) {
	entry, ok := ib.ROB.RetireHead()
	if !ok {
		return rob.Entry{}, false
	}

	// Release is a no-op for the fixed zero register (prf.ZeroPhys), so
	// it is safe to call unconditionally for source slots an instruction
	// never actually used (left at their zero value).
	ib.poolFor(Pool(entry.DestPool)).Release(entry.PrevDestMap)
	ib.poolFor(Pool(entry.SrcPool[0])).Release(entry.SrcPhys[0])
	ib.poolFor(Pool(entry.SrcPool[1])).Release(entry.SrcPhys[1])
	return entry, true
}

// Abort implements §4.11's mis-speculation recovery: walk the ROB
// backward from the youngest entry to rollbackTo, restoring every
// aborted entry's destination mapping to what it was before rename, then
// truncate the VPC list to match. Still-queued IQ/FQ entries for the
// aborted range are marked Aborted; the next Issue scan dequeues them.
func (ib *Ibox) Abort(rollbackTo int) {
	ib.ROB.AbortFrom(rollbackTo, func(id int, e rob.Entry) {
		if e.DestArch != -1 {
			ib.poolFor(Pool(e.DestPool)).Rollback(e.DestArch, e.DestPhys, e.PrevDestMap, e.PrevDestValue)
		}
		ib.IntQueue.MarkAborted(id)
		ib.FPQueue.MarkAborted(id)
	})
	ib.VPC.TruncateTo(rollbackTo)
}
