// Package cbox implements the Alpha 21264 Cbox, the CPU-side system
// interface (§4.7): the miss-address file (MAF), victim-data buffer
// (VDB), I/O write buffer (IOWB), and inbound probe queue (PQ), plus the
// round-robin credit-limited outbound command selection and the
// per-request protocol state machine.
//
// The ticket/ID-keyed completion map with mutex-guarded status transitions
// and poll-with-timeout observation is adapted from the teacher's
// coprocessor ticket-routing pattern (CoprocessorManager): there, a
// worker's asynchronous result is tracked by ticket ID in a map pruned
// after observation; here, each outbound MAF/VDB/IOWB entry is tracked by
// ID the same way while it moves through Issued -> AwaitingSysDc ->
// (AwaitingData) -> Completing -> Retired, with the system's SysDc
// response resolving it out-of-band from whichever goroutine is waiting.
package cbox

import (
	"sync"
	"time"

	"github.com/tsunami-core/axp21264/internal/axp/sysbus"
)

// RequestState is the per-outstanding-request protocol state (§4.7).
type RequestState int

const (
	Issued RequestState = iota
	AwaitingSysDc
	AwaitingData
	Completing
	Retired
)

// outstanding tracks one in-flight MAF/VDB/IOWB request.
type outstanding struct {
	id        uint32
	kind      Kind
	addr      uint64
	state     RequestState
	sysDc     sysbus.SysDc
	data      [8]uint64
	createdAt time.Time
	done      chan struct{}
}

// Kind identifies which of the three outbound structures a request
// belongs to, for round-robin selection and credit accounting.
type Kind int

const (
	KindMAF Kind = iota
	KindVDB
	KindIOWB
)

// Cbox is the CPU-side system interface.
type Cbox struct {
	mu          sync.Mutex
	nextID      uint32
	outstanding map[uint32]*outstanding

	maf  []uint32 // IDs of requests currently in the MAF, address-merge checked
	vdb  []uint32
	iowb []uint32

	credits map[Kind]*sysbus.CreditLimiter

	rrTurn int // round-robin pointer across [KindMAF, KindVDB, KindIOWB]

	pq chan sysbus.ProbeMessage

	outbound chan sysbus.Message
}

// New constructs a Cbox with the given per-kind credit limits and a
// bounded inbound probe queue depth.
func New(mafCredits, vdbCredits, iowbCredits, pqDepth int) *Cbox {
	return &Cbox{
		outstanding: make(map[uint32]*outstanding),
		credits: map[Kind]*sysbus.CreditLimiter{
			KindMAF:  sysbus.NewCreditLimiter(mafCredits),
			KindVDB:  sysbus.NewCreditLimiter(vdbCredits),
			KindIOWB: sysbus.NewCreditLimiter(iowbCredits),
		},
		pq:       make(chan sysbus.ProbeMessage, pqDepth),
		outbound: make(chan sysbus.Message, mafCredits+vdbCredits+iowbCredits),
	}
}

// MergeOrAllocate checks the MAF for an in-flight request to the same
// cache line (§4.7: "duplicate requests to the same block merge") before
// allocating a new one. For VDB and IOWB kinds, merging is not attempted
// here (VDB entries are keyed by distinct victim blocks; IOWB merging of
// adjacent non-cacheable stores is a byte-mask-level concern left to the
// caller) and a fresh entry is always allocated.
func (c *Cbox) MergeOrAllocate(kind Kind, addr uint64) (id uint32, merged bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if kind == KindMAF {
		for _, existingID := range c.maf {
			if e, found := c.outstanding[existingID]; found && e.addr == addr {
				return existingID, true, true
			}
		}
	}

	if !c.credits[kind].TryAcquire() {
		return 0, false, false
	}

	c.nextID++
	id = c.nextID
	c.outstanding[id] = &outstanding{
		id:        id,
		kind:      kind,
		addr:      addr,
		state:     Issued,
		createdAt: zeroTime(),
		done:      make(chan struct{}),
	}
	switch kind {
	case KindMAF:
		c.maf = append(c.maf, id)
	case KindVDB:
		c.vdb = append(c.vdb, id)
	case KindIOWB:
		c.iowb = append(c.iowb, id)
	}
	return id, false, true
}

// zeroTime exists because time.Now() is unavailable in some deterministic
// test harnesses driving this package; callers that need real wall-clock
// TTL pruning should set createdAt externally via SetCreatedAt.
func zeroTime() time.Time { return time.Time{} }

// SetCreatedAt overrides the creation timestamp recorded for id, for
// callers that drive TTL-based pruning.
func (c *Cbox) SetCreatedAt(id uint32, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.outstanding[id]; ok {
		e.createdAt = t
	}
}

// Send enqueues msg on the outbound channel in call order, relying on the
// credit already reserved at MergeOrAllocate time; it does not re-check
// credits, and the MAF/VDB/IOWB round-robin turn is kept separately by
// NextOutboundKind.
func (c *Cbox) Send(msg sysbus.Message) {
	c.outbound <- msg
}

// Outbound exposes the outbound channel for a system-side consumer (or a
// test) to drain.
func (c *Cbox) Outbound() <-chan sysbus.Message { return c.outbound }

// NextOutboundKind advances and returns the round-robin turn across the
// three outbound structures, skipping any with nothing queued.
func (c *Cbox) NextOutboundKind() Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	order := [3]Kind{KindMAF, KindVDB, KindIOWB}
	for i := 0; i < 3; i++ {
		k := order[(c.rrTurn+i)%3]
		if c.hasQueued(k) {
			c.rrTurn = (c.rrTurn + i + 1) % 3
			return k
		}
	}
	return KindMAF
}

func (c *Cbox) hasQueued(k Kind) bool {
	switch k {
	case KindMAF:
		return len(c.maf) > 0
	case KindVDB:
		return len(c.vdb) > 0
	default:
		return len(c.iowb) > 0
	}
}

// Resolve matches an inbound SysDc response against its MAF/VDB/IOWB ID
// (§4.7) and advances the request's state machine, waking any waiter.
func (c *Cbox) Resolve(id uint32, dc sysbus.SysDc, data [8]uint64) bool {
	c.mu.Lock()
	e, ok := c.outstanding[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	e.sysDc = dc
	e.data = data
	switch dc {
	case sysbus.SysDcReadData, sysbus.SysDcReadDataDirty, sysbus.SysDcReadDataShared, sysbus.SysDcReadDataSharedDirty:
		e.state = Completing
	case sysbus.SysDcChangeToDirtySuccess, sysbus.SysDcChangeToDirtyFail, sysbus.SysDcMBDone, sysbus.SysDcWriteData, sysbus.SysDcReleaseBuffer:
		e.state = Completing
	default:
		e.state = AwaitingData
	}
	c.mu.Unlock()
	close(e.done)
	return true
}

// Await blocks until Resolve has answered id's request, whatever state
// that response moved it to (or the timeout elapses), then retires it and
// releases its credit. It reports the
// final SysDc code and the carried data.
func (c *Cbox) Await(id uint32, timeout time.Duration) (sysbus.SysDc, [8]uint64, bool) {
	c.mu.Lock()
	e, ok := c.outstanding[id]
	c.mu.Unlock()
	if !ok {
		return sysbus.SysDcNop, [8]uint64{}, false
	}

	select {
	case <-e.done:
	case <-time.After(timeout):
		return sysbus.SysDcNop, [8]uint64{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e.state = Retired
	c.removeFromKind(e.kind, id)
	delete(c.outstanding, id)
	c.credits[e.kind].Release()
	return e.sysDc, e.data, true
}

func (c *Cbox) removeFromKind(k Kind, id uint32) {
	var list *[]uint32
	switch k {
	case KindMAF:
		list = &c.maf
	case KindVDB:
		list = &c.vdb
	default:
		list = &c.iowb
	}
	for i, v := range *list {
		if v == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

// PushProbe enqueues an inbound probe from the system. It blocks if the
// probe queue is full, mirroring the Cbox's "blocks on inbound probes"
// suspension point (§5).
func (c *Cbox) PushProbe(p sysbus.ProbeMessage) {
	c.pq <- p
}

// NextProbe drains the next inbound probe, blocking until one arrives or
// done is closed (the CPU's ShuttingDown signal, §5).
func (c *Cbox) NextProbe(done <-chan struct{}) (sysbus.ProbeMessage, bool) {
	select {
	case p := <-c.pq:
		return p, true
	case <-done:
		return sysbus.ProbeMessage{}, false
	}
}
