// Package iqueue implements the Alpha 21264 integer and floating-point
// instruction queues (§2, §3, §4.4): per-entry pipeline eligibility, a
// Queued/Executing/WaitingRetirement/Retired/Aborted state machine, and
// the oldest-first scan-and-issue policy each execution cluster runs.
package iqueue

import "github.com/tsunami-core/axp21264/internal/axp/decode"

// State mirrors rob.State; duplicated here (rather than imported) because
// the instruction queue and the ROB are independently-owned structures
// that happen to share the same state vocabulary (§3).
type State int

const (
	Queued State = iota
	Executing
	WaitingRetirement
	Retired
	Aborted
)

// Entry is one IQ/FQ entry (§3).
type Entry struct {
	ROBID int // in-flight ID, indexes the ROB and VPC list

	Decoded decode.Decoded

	SrcPhys  [2]int
	DestPhys int

	State      State
	Processing bool
	Stall      bool
}

// Queue is an instruction queue (IQ or FQ): a simple unordered pool of
// entries scanned oldest-first by every eligible execution cluster. Age
// is tracked by ROBID ordering rather than queue position, since entries
// are removed from the middle as clusters drain them.
type Queue struct {
	entries []Entry
}

// New allocates an empty queue.
func New() *Queue { return &Queue{} }

// Add inserts a newly decoded instruction into the queue.
func (q *Queue) Add(e Entry) {
	q.entries = append(q.entries, e)
}

// ReadyCheck lets Issue consult the PRF without importing it: SourceValid
// reports whether a source physical register currently holds a committed
// value (state Valid); DestPending reports whether the destination
// physical register is still PendingUpdate, or is the fixed zero
// register (which is always Valid and therefore always "ready" as a
// destination too).
type ReadyCheck struct {
	SourceValid func(phys int) bool
	DestPending func(phys int) bool
}

// Issue implements §4.4's per-cycle scan: oldest-first (lowest ROBID), the
// first entry satisfying all four conditions is selected. Aborted entries
// are dequeued on sight rather than dispatched. pipeline identifies which
// cluster is calling (a single bit of the eligibility set); single-issue
// restricts the scan to the single oldest eligible entry regardless of
// readiness when true is not modeled here (the caller enforces that by
// only calling Issue from one cluster when single-issue mode is active).
func (q *Queue) Issue(pipeline decode.ClusterSet, ready ReadyCheck) (Entry, bool) {
	oldestIdx := -1
	for i := range q.entries {
		e := &q.entries[i]
		if e.State == Aborted {
			q.removeAt(i)
			return q.Issue(pipeline, ready)
		}
		if e.Decoded.Clusters&pipeline == 0 {
			continue
		}
		if e.State != Queued || e.Processing {
			continue
		}
		canIssue := ready.SourceValid(e.SrcPhys[0]) && ready.SourceValid(e.SrcPhys[1]) && ready.DestPending(e.DestPhys)
		if !canIssue {
			continue
		}
		if oldestIdx == -1 || q.entries[oldestIdx].ROBID > e.ROBID {
			oldestIdx = i
		}
	}
	if oldestIdx == -1 {
		return Entry{}, false
	}
	e := &q.entries[oldestIdx]
	e.State = Executing
	e.Processing = true
	result := *e
	q.removeAt(oldestIdx)
	return result, true
}

func (q *Queue) removeAt(i int) {
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
}

// Len returns the number of entries currently queued.
func (q *Queue) Len() int { return len(q.entries) }

// MarkAborted finds the entry with the given ROBID (if still queued) and
// marks it Aborted, to be dequeued on the next Issue scan; used by
// mis-speculation recovery for entries that have not yet been picked up
// by a cluster.
func (q *Queue) MarkAborted(robID int) {
	for i := range q.entries {
		if q.entries[i].ROBID == robID {
			q.entries[i].State = Aborted
			return
		}
	}
}

// Reset empties the queue.
func (q *Queue) Reset() { q.entries = nil }
