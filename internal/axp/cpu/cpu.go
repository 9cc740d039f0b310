// Package cpu assembles one Alpha 21264 core (§4, §5) out of the Ibox,
// the four integer execution clusters, the two floating-point clusters,
// and their shared reorder buffer and physical register files: the
// fetch/rename/issue/retire loop the rest of the axp packages are built
// to serve.
//
// Concurrency follows §5's fixed thread set — one fetch/retire agent, four
// integer cluster threads, two floating-point cluster threads — but
// collapses §5's three-mutex "queue -> ROB -> IPR" acquisition order into
// a single mutex shared by three condition variables, one per suspension
// point (integer queue non-empty, floating-point queue non-empty, ROB
// head retirable). The literal three-mutex design creates a genuine
// deadlock hazard on the branch-misprediction abort path: aborting from
// the retirement thread touches queues, ROB, and IPR together and cannot
// re-acquire a queue mutex after already holding the ROB mutex without
// violating the fixed order. A single mutex preserves the same logical
// protocol — each suspension point still has its own wait/signal channel
// — without that hazard.
package cpu

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tsunami-core/axp21264/internal/axp/bpred"
	"github.com/tsunami-core/axp21264/internal/axp/cbox"
	"github.com/tsunami-core/axp21264/internal/axp/dcache"
	"github.com/tsunami-core/axp21264/internal/axp/decode"
	"github.com/tsunami-core/axp21264/internal/axp/ebox"
	"github.com/tsunami-core/axp21264/internal/axp/except"
	"github.com/tsunami-core/axp21264/internal/axp/fbox"
	"github.com/tsunami-core/axp21264/internal/axp/ibox"
	"github.com/tsunami-core/axp21264/internal/axp/icache"
	"github.com/tsunami-core/axp21264/internal/axp/mbox"
	"github.com/tsunami-core/axp21264/internal/axp/pc"
	"github.com/tsunami-core/axp21264/internal/axp/prf"
	"github.com/tsunami-core/axp21264/internal/axp/rob"
	"github.com/tsunami-core/axp21264/internal/axp/sysbus"
	"github.com/tsunami-core/axp21264/internal/axp/tlb"
)

// Fixed Cbox sizing for the credit-limited MAF/VDB/IOWB structures and the
// inbound probe queue depth (§4.7). These are not exposed via Config: like
// the VPC list's capacity (tied to ROBCapacity), they are an implementation
// sizing detail rather than an architectural topology parameter a caller
// needs to vary.
const (
	defaultMAFCredits      = 8
	defaultVDBCredits      = 8
	defaultIOWBCredits     = 4
	defaultProbeQueueDepth = 8

	cboxAwaitTimeout = time.Second
)

// Config sizes the structures New allocates.
type Config struct {
	ROBCapacity    int // in-flight instruction limit; also the VPC list size
	IntPRFSize     int // physical integer registers, must exceed 32
	FPPRFSize      int // physical floating-point registers, must exceed 32
	ITBEntries     int
	PredictorDepth int // return-address stack depth, normally == ROBCapacity
}

// DefaultConfig returns the sizes spec.md's worked examples use.
func DefaultConfig() Config {
	return Config{
		ROBCapacity:    80,
		IntPRFSize:     80,
		FPPRFSize:      72,
		ITBEntries:     tlb.DefaultEntries,
		PredictorDepth: 80,
	}
}

// runState is the cpuState flag §5 requires every suspension point to
// check before and after waiting.
type runState int32

const (
	running runState = iota
	shuttingDown
)

// CPU is one Alpha 21264 core: the Ibox (fetch/rename/retire), four
// integer execution clusters, and two floating-point execution clusters,
// sharing one ROB and two physical register files.
type CPU struct {
	cfg Config
	mem *Memory

	mu          sync.Mutex
	intReady    *sync.Cond // signaled whenever IntQueue may have become non-empty
	fpReady     *sync.Cond // signaled whenever FPQueue may have become non-empty
	retireReady *sync.Cond // signaled whenever the ROB head may have become retirable

	state atomic.Int32

	ib *ibox.Ibox

	intClusters [4]*ebox.Cluster
	fpClusters  [2]*fbox.Cluster

	dtb *tlb.TLB // data TLB, separate from the Ibox's instruction TLB
	dc  *dcache.Dcache
	mb  *mbox.Mbox
	cb  *cbox.Cbox

	// serviceBus routes a Dcache-miss fill through an owning System's
	// coherence fabric (see tsunami.System.serviceRequest); nil for a bare
	// CPU with no System, which falls back to reading backing Memory
	// directly.
	serviceBus func(sysbus.Message) (sysbus.SysDc, [8]uint64)

	palBase uint64
	log     *slog.Logger

	fetchPC pc.PC

	RetiredCount int
}

// New constructs a CPU wired to backing memory mem, with fetch starting
// at the reset address (PC 0, non-PAL).
func New(cfg Config, mem *Memory) *CPU {
	intPool := prf.NewPool(cfg.IntPRFSize, 32)
	fpPool := prf.NewPool(cfg.FPPRFSize, 32)
	r := rob.New(cfg.ROBCapacity)
	itb := tlb.New(cfg.ITBEntries)
	dtb := tlb.New(cfg.ITBEntries)
	ic := icache.New()
	dc := dcache.New()
	predictor := bpred.New(cfg.PredictorDepth)
	mb := mbox.New(dtb, dc)
	cb := cbox.New(defaultMAFCredits, defaultVDBCredits, defaultIOWBCredits, defaultProbeQueueDepth)

	c := &CPU{
		cfg: cfg,
		mem: mem,
		ib:  ibox.New(cfg.ROBCapacity, itb, ic, predictor, intPool, fpPool, r),
		dtb: dtb,
		dc:  dc,
		mb:  mb,
		cb:  cb,
		log: slog.Default(),
		fpClusters: [2]*fbox.Cluster{
			fbox.New("Multiply", decode.Multiply),
			fbox.New("Other", decode.Other),
		},
	}

	memUnit := &ebox.MemoryUnit{Mbox: mb, DTB: dtb, Mode: tlb.Kernel, Fill: c.fillLineViaBus}
	l0 := ebox.New("L0", decode.L0)
	l1 := ebox.New("L1", decode.L1)
	l0.Mem = memUnit
	l1.Mem = memUnit
	c.intClusters = [4]*ebox.Cluster{
		l0, l1,
		ebox.New("U0", decode.U0),
		ebox.New("U1", decode.U1),
	}

	c.intReady = sync.NewCond(&c.mu)
	c.fpReady = sync.NewCond(&c.mu)
	c.retireReady = sync.NewCond(&c.mu)
	return c
}

// Ibox exposes the underlying fetch/rename/retire agent, for tests and
// for an inspector CLI that wants to read register/ROB state directly.
func (c *CPU) Ibox() *ibox.Ibox { return c.ib }

// Mbox and Cbox expose the memory and system-interface units this CPU's
// L0/L1 clusters execute Memory-format instructions through, for tests and
// for tsunami.System to wire coherence traffic against.
func (c *CPU) Mbox() *mbox.Mbox { return c.mb }
func (c *CPU) Cbox() *cbox.Cbox { return c.cb }

// SetPALBase sets the PAL base address exception dispatch composes entry
// points from (§13).
func (c *CPU) SetPALBase(addr uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.palBase = addr
}

// SetLogger overrides the default slog.Default() logger this CPU uses for
// exception and memory-system diagnostics.
func (c *CPU) SetLogger(l *slog.Logger) { c.log = l }

// SetSystemBus wires this CPU's Cbox traffic to an owning System's
// coherence fabric (see tsunami.System.serviceRequest). A CPU with no bus
// wired (the default, e.g. for a bare unit test) services Dcache misses by
// reading directly from its backing Memory instead.
func (c *CPU) SetSystemBus(f func(sysbus.Message) (sysbus.SysDc, [8]uint64)) {
	c.serviceBus = f
}

// fillLineViaBus resolves a Dcache-miss line fill, routing it through the
// Cbox/system-bus path when an owning System has wired one in, and falling
// back to a direct read of backing Memory otherwise (e.g. a CPU built and
// driven without a tsunami.System, as ebox_test.go's bare clusters do).
func (c *CPU) fillLineViaBus(paddr uint64) [64]byte {
	if c.serviceBus == nil {
		return c.readLineDirect(paddr)
	}
	id, _, ok := c.cb.MergeOrAllocate(cbox.KindMAF, paddr)
	if !ok {
		return c.readLineDirect(paddr)
	}
	msg := sysbus.Message{Command: sysbus.CPUReadBlk, Address: paddr, ID: id}
	c.cb.Send(msg)
	<-c.cb.Outbound()
	dc, data := c.serviceBus(msg)
	c.cb.Resolve(id, dc, data)
	_, data, _ = c.cb.Await(id, cboxAwaitTimeout)

	var line [64]byte
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(line[i*8:], data[i])
	}
	return line
}

// readLineDirect reads the 64-byte line containing paddr straight out of
// backing Memory, the fallback fill path for a CPU with no system bus
// wired.
func (c *CPU) readLineDirect(paddr uint64) [64]byte {
	const wordsPerLine = 16
	base := paddr &^ 0x3F
	var line [64]byte
	for i := 0; i < wordsPerLine; i++ {
		binary.LittleEndian.PutUint32(line[i*4:], c.mem.ReadWord(base/4+uint64(i)))
	}
	return line
}

// SetPC sets the next fetch address, e.g. to point at a loaded program's
// entry point before the first Step/Run.
func (c *CPU) SetPC(addr uint64, pal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchPC = pc.New(addr, pal)
}

// PC returns the current fetch address.
func (c *CPU) PC() pc.PC {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchPC
}

// RequestShutdown sets the shared cpuState flag §5's suspension points
// all check, then wakes every waiter so each thread can observe it and
// exit rather than waiting indefinitely.
func (c *CPU) RequestShutdown() {
	c.state.Store(int32(shuttingDown))
	c.mu.Lock()
	c.wakeAllLocked()
	c.mu.Unlock()
}

func (c *CPU) shuttingDown() bool {
	return runState(c.state.Load()) == shuttingDown
}

func (c *CPU) wakeAllLocked() {
	c.intReady.Broadcast()
	c.fpReady.Broadcast()
	c.retireReady.Broadcast()
}

// branchTarget computes the instruction address a branch at fromPC with
// displacement disp resolves to when taken (§6: PC-relative, relative to
// the branch's successor, in instruction units).
func branchTarget(fromPC pc.PC, disp int32) pc.PC {
	addr := int64(fromPC.Next().Addr()) + int64(disp)*4
	return pc.New(uint64(addr), fromPC.PAL())
}

// fetchOutcome reports what fetchDecodeRename accomplished, so callers
// driving the asynchronous fetch loop know whether to keep going
// immediately or back off until resources free up.
type fetchOutcome int

const (
	fetchAdvanced fetchOutcome = iota // dispatched an instruction, or skipped a fault; PC moved
	fetchStalled                      // ROB or destination pool exhausted; PC unchanged, retry later
)

// fetchDecodeRename implements one cycle of §4.2/§4.3: fetch the Icache
// line at the current PC (filling the ITB/Icache from backing memory on
// a miss), decode the instruction at that PC's slot, and rename-dispatch
// it. Callers must already hold c.mu.
func (c *CPU) fetchDecodeRename() fetchOutcome {
	vpc := c.fetchPC

	outcome, err := c.fetchLineWithFill(vpc.Addr())
	if err != nil {
		kind := except.TBMissInstruction
		if errors.Is(err, ibox.ErrProtectionFault) {
			kind = except.FaultOnExecute
		}
		c.redirectToPAL(kind)
		return fetchAdvanced
	}

	slot := (vpc.Addr() >> 2) & 0xF
	d, err := decode.Decode(decode.Raw(outcome.Instrs[slot]))
	if err != nil {
		c.redirectToPAL(except.IllegalInstruction)
		return fetchAdvanced
	}

	_, predictedTaken, err := c.ib.RenameDispatch(vpc, d)
	if err != nil {
		if errors.Is(err, ibox.ErrROBFull) || errors.Is(err, ibox.ErrFreeListEmpty) {
			return fetchStalled
		}
		c.fetchPC = vpc.Next()
		return fetchAdvanced
	}

	if d.Format == decode.FormatBranch && predictedTaken {
		c.fetchPC = branchTarget(vpc, d.BrDisp)
	} else {
		c.fetchPC = vpc.Next()
	}
	return fetchAdvanced
}

// fetchLineWithFill requests the Icache line containing vaddr, servicing
// at most one ITB fill and one Icache fill before giving up. The ITB
// fill installs an identity mapping with full read/execute permission —
// this CPU has no separate virtual memory manager of its own, consistent
// with the rest of the pack's synchronous-memory-model simplification.
func (c *CPU) fetchLineWithFill(vaddr uint64) (icache.FetchOutcome, error) {
	for attempt := 0; attempt < 3; attempt++ {
		outcome, err := c.ib.FetchLine(vaddr)
		switch {
		case err == nil:
			return outcome, nil
		case errors.Is(err, ibox.ErrITBMiss):
			c.ib.ITB.Fill(tlb.Entry{
				VirtualPage:  vaddr >> 13,
				PhysicalPage: vaddr >> 13,
				ReadEnable:   [4]bool{true, true, true, true},
			})
		case errors.Is(err, ibox.ErrIcacheMiss):
			c.fillIcacheLine(vaddr)
		default:
			return outcome, err
		}
	}
	return icache.FetchOutcome{}, ibox.ErrIcacheMiss
}

func (c *CPU) fillIcacheLine(vaddr uint64) {
	const instrsPerLine = 16
	lineBase := vaddr &^ uint64(instrsPerLine*4-1)
	var instrs [instrsPerLine]uint32
	for i := 0; i < instrsPerLine; i++ {
		instrs[i] = c.mem.ReadWord(lineBase/4 + uint64(i))
	}
	c.ib.Icache.Fill(vaddr, icache.Line{
		ReadExecute: [4]bool{true, true, true, true},
		Instrs:      instrs,
	})
}

// redirectToPAL implements §13's exception-dispatch handoff: enter PAL
// mode and steer the next fetch at kind's PAL entry point. Callers must
// already hold c.mu.
func (c *CPU) redirectToPAL(kind except.Kind) {
	c.log.Debug("redirecting to PAL", "kind", kind.String(), "pc", c.fetchPC.Addr())
	c.ib.PALMode = true
	c.fetchPC = except.EntryPC(c.palBase, kind)
}

// handleException implements §7's retirement-time exception dispatch: map
// the ROB entry's exception mask to an architectural Kind (at most one bit
// is set per entry today, so the checks below are priority-ordered rather
// than overlapping), abort every younger in-flight instruction exactly as
// a branch misprediction does, and redirect fetch into PAL mode.
func (c *CPU) handleException(entry rob.Entry) {
	var kind except.Kind
	switch {
	case entry.ExceptionMask&ebox.ExcMemoryFault != 0:
		kind = except.AccessViolation
	case entry.ExceptionMask&ebox.ExcIntegerOverflow != 0:
		kind = except.IntegerOverflow
	default:
		kind = except.IllegalInstruction
	}
	c.log.Warn("exception at retirement", "kind", kind.String(), "pc", entry.PC)

	if c.ib.ROB.Len() > 0 {
		c.ib.Abort(c.ib.ROB.Start())
	}
	c.redirectToPAL(kind)
}

// retireHeadReady peeks the ROB head without popping it, so a waiting
// retirement thread has something to check against before committing to
// sleep on retireReady.
func (c *CPU) retireHeadReady() bool {
	if c.ib.ROB.Len() == 0 {
		return false
	}
	e := c.ib.ROB.At(c.ib.ROB.Start())
	return e.State == rob.WaitingRetirement || e.State == rob.Retired
}

// retireOnce implements one cycle of §4.11's retirement scan plus §4.1's
// predictor training and mis-speculation recovery: retire the ROB head,
// and if it was a branch, update the predictor with the actual outcome
// and, on a misprediction, abort every younger in-flight instruction and
// redirect fetch to the correct successor. Reports false if the ROB head
// was not retirable.
func (c *CPU) retireOnce() bool {
	robID := c.ib.ROB.Start()
	entry, ok := c.ib.Retire()
	if !ok {
		return false
	}
	c.RetiredCount++

	if entry.ExceptionMask != 0 {
		c.handleException(entry)
		return true
	}

	if decode.IsStore(entry.Opcode) {
		c.mb.RetireStore(mbox.MemOp{
			ROBID:    robID,
			PhysAddr: entry.MemPhysAddr,
			Size:     decode.MemoryOpSize(entry.Opcode),
			Value:    entry.Value,
			Locked:   decode.IsLockedMemoryOp(entry.Opcode),
		})
	}

	if entry.IsBranch {
		pred := bpred.Prediction{
			Taken:        entry.PredictedTaken,
			LocalTaken:   entry.PredLocalTaken,
			GlobalTaken:  entry.PredGlobalTaken,
			ChooseGlobal: entry.PredChooseGlobal,
		}
		c.ib.Predictor.Update(entry.PC, entry.ActualTaken, pred)

		if entry.Mispredicted {
			// AbortFrom only makes sense when there is a younger
			// in-flight instruction to roll back; an empty ROB needs no
			// rollback at all, just a redirect.
			if c.ib.ROB.Len() > 0 {
				c.ib.Abort(c.ib.ROB.Start())
			}
			origPC := pc.PC(entry.PC)
			if entry.ActualTaken {
				c.fetchPC = branchTarget(origPC, entry.BrDisp)
			} else {
				c.fetchPC = origPC.Next()
			}
		}
	}
	return true
}

// Step runs one synchronous fetch/issue/retire cycle: one instruction
// rename-dispatched (at most), every execution cluster drained once, and
// every retirable ROB entry committed. It is deterministic given the same
// starting state, which is what makes it suitable for tests and for a
// "step" CLI subcommand; Run instead drives the same state machine as
// the concurrent thread set described in the package doc comment.
func (c *CPU) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepLocked()
}

func (c *CPU) stepLocked() {
	c.fetchDecodeRename()
	for _, cl := range c.intClusters {
		cl.Step(c.ib.IntQueue, c.ib.ROB, c.ib.IntPRF)
	}
	for _, cl := range c.fpClusters {
		cl.Step(c.ib.FPQueue, c.ib.ROB, c.ib.FPPRF)
	}
	for c.retireOnce() {
	}
}

// Run drives the CPU with the concurrent thread set described in the
// package doc comment until ctx is cancelled or RequestShutdown is
// called, whichever comes first; both paths converge on the same
// cpuState flag, so Run returns nil in either case.
func (c *CPU) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.fetchLoop(ctx) })
	for _, cl := range c.intClusters {
		cl := cl
		g.Go(func() error { return c.intClusterLoop(ctx, cl) })
	}
	for _, cl := range c.fpClusters {
		cl := cl
		g.Go(func() error { return c.fpClusterLoop(ctx, cl) })
	}
	g.Go(func() error { return c.retireLoop(ctx) })

	go func() {
		<-ctx.Done()
		c.RequestShutdown()
	}()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *CPU) fetchLoop(ctx context.Context) error {
	for {
		if c.shuttingDown() {
			return nil
		}
		c.mu.Lock()
		res := c.fetchDecodeRename()
		if res == fetchAdvanced {
			c.intReady.Broadcast()
			c.fpReady.Broadcast()
			c.mu.Unlock()
			continue
		}
		// Stalled on ROB/pool exhaustion: wait for retirement to free
		// something, re-checking cpuState on every wake per §5.
		for res == fetchStalled && !c.shuttingDown() {
			c.retireReady.Wait()
			res = c.fetchDecodeRename()
		}
		c.mu.Unlock()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *CPU) intClusterLoop(ctx context.Context, cl *ebox.Cluster) error {
	return c.clusterLoop(ctx, c.intReady, func() bool {
		return cl.Step(c.ib.IntQueue, c.ib.ROB, c.ib.IntPRF)
	}, func() bool { return c.ib.IntQueue.Len() > 0 })
}

func (c *CPU) fpClusterLoop(ctx context.Context, cl *fbox.Cluster) error {
	return c.clusterLoop(ctx, c.fpReady, func() bool {
		return cl.Step(c.ib.FPQueue, c.ib.ROB, c.ib.FPPRF)
	}, func() bool { return c.ib.FPQueue.Len() > 0 })
}

// clusterLoop is the common suspend/drain shape shared by every execution
// cluster thread (§5): block on queueReady while nonEmpty is false, then
// issue once and signal retireReady so the retirement thread can observe
// the new WaitingRetirement entry.
func (c *CPU) clusterLoop(ctx context.Context, queueReady *sync.Cond, step func() bool, nonEmpty func() bool) error {
	for {
		if c.shuttingDown() {
			return nil
		}
		c.mu.Lock()
		for !nonEmpty() && !c.shuttingDown() {
			queueReady.Wait()
		}
		if c.shuttingDown() {
			c.mu.Unlock()
			return nil
		}
		issued := step()
		if issued {
			c.retireReady.Broadcast()
		}
		c.mu.Unlock()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *CPU) retireLoop(ctx context.Context) error {
	for {
		if c.shuttingDown() {
			return nil
		}
		c.mu.Lock()
		for !c.retireHeadReady() && !c.shuttingDown() {
			c.retireReady.Wait()
		}
		if c.shuttingDown() {
			c.mu.Unlock()
			return nil
		}
		for c.retireOnce() {
		}
		c.wakeAllLocked()
		c.mu.Unlock()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
