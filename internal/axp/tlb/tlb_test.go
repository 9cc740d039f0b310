package tlb

import "testing"

func TestFillAndLookupHit(t *testing.T) {
	tb := New(4)
	tb.Fill(Entry{VirtualPage: 0x1000, PhysicalPage: 0x9000, ASN: 3})
	e, _, ok := tb.Lookup(0x1000, 3)
	if !ok {
		t.Fatal("expected TLB hit")
	}
	if e.PhysicalPage != 0x9000 {
		t.Fatalf("PhysicalPage = %#x, want %#x", e.PhysicalPage, 0x9000)
	}
}

func TestLookupMissesOnASNMismatch(t *testing.T) {
	tb := New(4)
	tb.Fill(Entry{VirtualPage: 0x1000, PhysicalPage: 0x9000, ASN: 3})
	if _, _, ok := tb.Lookup(0x1000, 4); ok {
		t.Fatal("expected miss on ASN mismatch")
	}
}

func TestASMMatchesAnyASN(t *testing.T) {
	tb := New(4)
	tb.Fill(Entry{VirtualPage: 0x2000, PhysicalPage: 0xA000, ASN: 3, ASM: true})
	if _, _, ok := tb.Lookup(0x2000, 99); !ok {
		t.Fatal("ASM entry should match any ASN")
	}
}

func TestFillEvictsLRUWhenFull(t *testing.T) {
	tb := New(2)
	tb.Fill(Entry{VirtualPage: 1, ASN: 0})
	tb.Fill(Entry{VirtualPage: 2, ASN: 0})
	// touch entry 1 so entry 2 becomes the LRU victim
	tb.Lookup(1, 0)
	tb.Fill(Entry{VirtualPage: 3, ASN: 0})
	if _, _, ok := tb.Lookup(2, 0); ok {
		t.Fatal("page 2 should have been evicted as LRU")
	}
	if _, _, ok := tb.Lookup(1, 0); !ok {
		t.Fatal("page 1 was recently touched and should survive")
	}
	if _, _, ok := tb.Lookup(3, 0); !ok {
		t.Fatal("page 3 was just filled and should be present")
	}
}

func TestCheckAccessViolation(t *testing.T) {
	e := Entry{}
	e.ReadEnable[Kernel] = true
	if err := e.CheckAccess(Kernel, true, false, false); err != nil {
		t.Fatalf("kernel read should be allowed: %v", err)
	}
	if err := e.CheckAccess(User, true, false, false); err != ErrAccessViolation {
		t.Fatalf("user read should violate, got %v", err)
	}
}
