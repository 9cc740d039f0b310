package iqueue

import (
	"testing"

	"github.com/tsunami-core/axp21264/internal/axp/decode"
)

func alwaysReady() ReadyCheck {
	return ReadyCheck{
		SourceValid: func(int) bool { return true },
		DestPending: func(int) bool { return true },
	}
}

func TestIssueOldestFirst(t *testing.T) {
	q := New()
	q.Add(Entry{ROBID: 5, Decoded: decode.Decoded{Clusters: decode.L0}, State: Queued})
	q.Add(Entry{ROBID: 2, Decoded: decode.Decoded{Clusters: decode.L0}, State: Queued})
	q.Add(Entry{ROBID: 9, Decoded: decode.Decoded{Clusters: decode.L0}, State: Queued})

	e, ok := q.Issue(decode.L0, alwaysReady())
	if !ok || e.ROBID != 2 {
		t.Fatalf("Issue() = %+v/%v, want ROBID 2", e, ok)
	}
}

func TestIssueRespectsClusterEligibility(t *testing.T) {
	q := New()
	q.Add(Entry{ROBID: 1, Decoded: decode.Decoded{Clusters: decode.U0}, State: Queued})
	if _, ok := q.Issue(decode.L0, alwaysReady()); ok {
		t.Fatal("L0 should not be able to issue a U0-only entry")
	}
	if _, ok := q.Issue(decode.U0, alwaysReady()); !ok {
		t.Fatal("U0 should be able to issue its own entry")
	}
}

func TestIssueSkipsNotReady(t *testing.T) {
	q := New()
	q.Add(Entry{ROBID: 1, Decoded: decode.Decoded{Clusters: decode.L0}, State: Queued, SrcPhys: [2]int{5, 6}})
	notReady := ReadyCheck{
		SourceValid: func(phys int) bool { return phys != 5 },
		DestPending: func(int) bool { return true },
	}
	if _, ok := q.Issue(decode.L0, notReady); ok {
		t.Fatal("entry with an invalid source should not issue")
	}
}

func TestAbortedEntryDequeuedOnSight(t *testing.T) {
	q := New()
	q.Add(Entry{ROBID: 1, Decoded: decode.Decoded{Clusters: decode.L0}, State: Aborted})
	q.Add(Entry{ROBID: 2, Decoded: decode.Decoded{Clusters: decode.L0}, State: Queued})

	e, ok := q.Issue(decode.L0, alwaysReady())
	if !ok || e.ROBID != 2 {
		t.Fatalf("Issue() should skip the aborted entry and return ROBID 2, got %+v/%v", e, ok)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (aborted entry dequeued, issued entry removed)", q.Len())
	}
}

func TestMarkAbortedThenIssueSkipsIt(t *testing.T) {
	q := New()
	q.Add(Entry{ROBID: 3, Decoded: decode.Decoded{Clusters: decode.L0}, State: Queued})
	q.MarkAborted(3)
	if _, ok := q.Issue(decode.L0, alwaysReady()); ok {
		t.Fatal("aborted entry should never issue")
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
}
