package pc

import "testing"

func TestNewAndFields(t *testing.T) {
	p := New(0x1000, false)
	if p.PAL() {
		t.Fatal("PAL() = true, want false")
	}
	if p.Addr() != 0x1000 {
		t.Fatalf("Addr() = %#x, want %#x", p.Addr(), 0x1000)
	}

	pp := New(0x2000, true)
	if !pp.PAL() {
		t.Fatal("PAL() = false, want true")
	}
	if pp.Addr() != 0x2000 {
		t.Fatalf("Addr() = %#x, want %#x", pp.Addr(), 0x2000)
	}
}

func TestNextPreservesPAL(t *testing.T) {
	p := New(0x4000, true)
	n := p.Next()
	if !n.PAL() {
		t.Fatal("Next() lost PAL bit")
	}
	if n.Addr() != 0x4004 {
		t.Fatalf("Next().Addr() = %#x, want %#x", n.Addr(), 0x4004)
	}
}

func TestListOverwriteAndTruncate(t *testing.T) {
	l := NewList(4)
	for i := 0; i < 6; i++ {
		l.Add(New(uint64(i*4), false))
	}
	if l.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", l.Len())
	}

	l2 := NewList(8)
	var idxs []int
	for i := 0; i < 5; i++ {
		idxs = append(idxs, l2.Add(New(uint64(i*4), false)))
	}
	l2.TruncateTo(idxs[2])
	if l2.Len() != 2 {
		t.Fatalf("Len() after TruncateTo = %d, want 2", l2.Len())
	}
}
