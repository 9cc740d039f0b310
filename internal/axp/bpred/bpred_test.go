package bpred

import "testing"

// TestLocalCounterWarmup mirrors the concrete scenario in the testable
// properties: a taken-branch loop at PC 0x40 saturates the local counter
// after 5 iterations (3-bit counter, saturates at 7, taken once it clears
// the top bit at 4), and every iteration from the 6th on predicts taken.
func TestLocalCounterWarmup(t *testing.T) {
	p := New(32)
	p.SetMode(ModeLocalOnly)
	const pc = 0x40

	for i := 0; i < 100; i++ {
		pred := p.Predict(pc)
		if i >= 5 && !pred.Taken {
			t.Fatalf("iteration %d: predicted not-taken after warmup", i)
		}
		p.Update(pc, true, pred)
	}
}

func TestChooserCounterStaysWithinTwoBits(t *testing.T) {
	p := New(32)
	p.SetMode(ModeChooser)
	const pc = 0x100

	// Train local predictor to be correct (always taken) and force the
	// chooser toward global by making global wrong for a while is not
	// directly controllable without a second PC aliasing the same global
	// path index; instead just verify Update doesn't panic and chooser
	// saturates within bounds.
	for i := 0; i < 50; i++ {
		pred := p.Predict(pc)
		p.Update(pc, true, pred)
	}
	if p.chooser[p.globalPath] > twoBitMax {
		t.Fatalf("chooser counter overflowed: %d", p.chooser[p.globalPath])
	}
}

func TestReturnStackPushPop(t *testing.T) {
	r := NewReturnStack(4)
	r.Push(0x10)
	r.Push(0x20)
	r.Push(0x30)
	if got := r.Pop(); got != 0x30 {
		t.Fatalf("Pop() = %#x, want 0x30", got)
	}
	if got := r.Pop(); got != 0x20 {
		t.Fatalf("Pop() = %#x, want 0x20", got)
	}
}

func TestReturnStackUnderflowIsDeterministic(t *testing.T) {
	r := NewReturnStack(2)
	if got := r.Pop(); got != 0 {
		t.Fatalf("Pop() on empty stack = %#x, want 0", got)
	}
}

func TestReturnStackOverflowWraps(t *testing.T) {
	r := NewReturnStack(2)
	r.Push(1)
	r.Push(2)
	r.Push(3) // overflow, should discard the oldest (1)
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if got := r.Pop(); got != 3 {
		t.Fatalf("Pop() = %d, want 3", got)
	}
	if got := r.Pop(); got != 2 {
		t.Fatalf("Pop() = %d, want 2 (entry 1 should have been discarded)", got)
	}
}
