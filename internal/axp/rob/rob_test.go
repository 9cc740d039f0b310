package rob

import "testing"

func TestDispatchAndRetireInOrder(t *testing.T) {
	r := New(8)
	id1, ok := r.Dispatch(Entry{PC: 0x10, State: Queued})
	if !ok {
		t.Fatal("dispatch 1 failed")
	}
	id2, ok := r.Dispatch(Entry{PC: 0x14, State: Queued})
	if !ok {
		t.Fatal("dispatch 2 failed")
	}

	if _, ok := r.RetireHead(); ok {
		t.Fatal("should not retire a Queued head")
	}

	e1 := r.At(id1)
	e1.State = WaitingRetirement
	r.Set(id1, e1)

	got, ok := r.RetireHead()
	if !ok || got.PC != 0x10 {
		t.Fatalf("RetireHead() = %+v/%v, want PC 0x10/true", got, ok)
	}

	e2 := r.At(id2)
	e2.State = WaitingRetirement
	r.Set(id2, e2)
	got2, ok := r.RetireHead()
	if !ok || got2.PC != 0x14 {
		t.Fatalf("RetireHead() = %+v/%v, want PC 0x14/true", got2, ok)
	}
}

// TestMispredictRollback mirrors the §8 concrete scenario: five younger
// instructions in WaitingRetirement are all aborted and the register
// mappings they had renamed are restored.
func TestMispredictRollback(t *testing.T) {
	r := New(16)
	branchID, _ := r.Dispatch(Entry{PC: 0x100, State: WaitingRetirement})
	var youngIDs []int
	for i := 0; i < 5; i++ {
		id, _ := r.Dispatch(Entry{
			PC:            uint64(0x104 + i*4),
			State:         WaitingRetirement,
			DestArch:      i + 1,
			DestPhys:      40 + i,
			PrevDestMap:   i,
			PrevDestValue: uint64(i * 100),
		})
		youngIDs = append(youngIDs, id)
	}

	var undone []Entry
	r.AbortFrom(branchID+1, func(id int, e Entry) { undone = append(undone, e) })

	if len(undone) != 5 {
		t.Fatalf("undo called %d times, want 5", len(undone))
	}
	for i, id := range youngIDs {
		e := r.At(id)
		if e.State != Aborted {
			t.Fatalf("entry %d state = %v, want Aborted", i, e.State)
		}
	}
	if r.Len() != 1 {
		t.Fatalf("Len() after rollback = %d, want 1 (branch still in flight)", r.Len())
	}
}

func TestFullROBRejectsDispatch(t *testing.T) {
	r := New(2)
	if _, ok := r.Dispatch(Entry{}); !ok {
		t.Fatal("first dispatch should succeed")
	}
	if _, ok := r.Dispatch(Entry{}); !ok {
		t.Fatal("second dispatch should succeed")
	}
	if _, ok := r.Dispatch(Entry{}); ok {
		t.Fatal("third dispatch on full ROB-of-2 should fail")
	}
}
