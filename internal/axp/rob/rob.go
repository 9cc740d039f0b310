// Package rob implements the Alpha 21264 reorder buffer (§3, §4.11): a
// fixed-capacity ring of in-flight instruction snapshots used for
// in-order retirement and precise mis-speculation rollback.
package rob

import "github.com/tsunami-core/axp21264/internal/axp/ring"

// State is an in-flight instruction's lifecycle state as tracked by the
// ROB (mirrors the instruction queue's state machine so retirement can
// scan either structure consistently).
type State int

const (
	Queued State = iota
	Executing
	WaitingRetirement
	Retired
	Aborted
)

// Entry is a per-in-flight-ID snapshot (§3's ROB entry).
type Entry struct {
	PC            uint64
	Opcode        uint8
	State         State
	ExceptionMask uint32

	DestArch int // -1 if the instruction writes no register
	DestPhys int

	SrcPhys [2]int // physical source registers read at rename, for retirement-time refCount release
	SrcPool [2]int // which PRF pool each SrcPhys belongs to (caller-defined enum; usually == DestPool)

	PrevDestMap   int
	PrevDestValue uint64

	DestPool int // which PRF pool DestPhys belongs to (caller-defined enum)

	Value uint64
	Stall bool

	// MemPhysAddr is the physical address a Memory-format load or store
	// resolved at issue (§4.6); a retiring store reads it back to apply
	// its buffered value to the Dcache.
	MemPhysAddr uint64

	// Branch-resolution bookkeeping (§4.1, §4.11). IsBranch is set by the
	// Ibox at rename time for any FormatBranch instruction; PredictedTaken
	// and the three Pred* sub-predictor opinions mirror bpred.Prediction so
	// the retirement agent can train the predictor without the rob package
	// needing to import bpred. ActualTaken and Mispredicted are filled in by
	// the issuing execution cluster once the branch's condition register is
	// available.
	IsBranch         bool
	BrDisp           int32
	PredictedTaken   bool
	PredLocalTaken   bool
	PredGlobalTaken  bool
	PredChooseGlobal bool
	ActualTaken      bool
	Mispredicted     bool
}

// ROB is the reorder buffer: a ring of Entry wrapping the shared ring
// shape, plus the bookkeeping retirement needs.
type ROB struct {
	r *ring.Ring[Entry]
}

// New allocates a ROB with the given in-flight capacity (spec.md's
// example value is 80).
func New(capacity int) *ROB {
	return &ROB{r: ring.New[Entry](capacity)}
}

// Cap returns the ROB's fixed in-flight capacity.
func (rb *ROB) Cap() int { return rb.r.Cap() }

// Len returns the number of in-flight entries.
func (rb *ROB) Len() int { return rb.r.Len() }

// Full reports whether the ROB has no room for a new instruction.
func (rb *ROB) Full() bool { return rb.r.Full() }

// Dispatch allocates the next ROB slot for a freshly decoded instruction,
// returning its ring index (the in-flight ID used elsewhere, e.g. as the
// VPC list index). ok is false if the ROB is full.
func (rb *ROB) Dispatch(e Entry) (id int, ok bool) {
	return rb.r.TryPush(e)
}

// At returns the entry at in-flight ID id.
func (rb *ROB) At(id int) Entry { return rb.r.At(id) }

// Set overwrites the entry at in-flight ID id.
func (rb *ROB) Set(id int, e Entry) { rb.r.Set(id, e) }

// Start returns the ring index of the oldest (not-yet-retired) entry.
func (rb *ROB) Start() int { return rb.r.Start() }

// End returns the ring index one past the youngest dispatched entry.
func (rb *ROB) End() int { return rb.r.End() }

// RetireHead pops the oldest entry if it is WaitingRetirement or Retired,
// per §4.11's retirement scan, returning it and advancing robStart.
// ok is false if the ROB is empty or the head is not yet retirable.
func (rb *ROB) RetireHead() (Entry, bool) {
	e, has := rb.r.Front()
	if !has {
		return Entry{}, false
	}
	if e.State != WaitingRetirement && e.State != Retired {
		return Entry{}, false
	}
	rb.r.PopFront()
	return e, true
}

// AbortFrom walks backward from End-1 to (and including) rollbackTo,
// marking every entry still in Queued/Executing/WaitingRetirement as
// Aborted and invoking undo (with its in-flight ID, the same value
// Dispatch returned) for each so the caller can restore PRF mappings and
// dequeue the matching IQ/FQ entry (§4.11's abortInstructions). The ring
// is then truncated to rollbackTo so no aborted entry is dispatched to
// again.
func (rb *ROB) AbortFrom(rollbackTo int, undo func(id int, e Entry)) {
	n := rb.r.Cap()
	idx := (rb.r.End() - 1 + n) % n
	for {
		e := rb.r.At(idx)
		if e.State == Queued || e.State == Executing || e.State == WaitingRetirement {
			undo(idx, e)
			e.State = Aborted
			rb.r.Set(idx, e)
		}
		if idx == rollbackTo {
			break
		}
		idx = (idx - 1 + n) % n
	}
	rb.r.TruncateTo(rollbackTo)
}

// Reset empties the ROB.
func (rb *ROB) Reset() { rb.r.Reset() }
