package prf

import "testing"

func newTestPool() *Pool {
	return NewPool(40, 32)
}

func TestResetInvariant(t *testing.T) {
	p := newTestPool()
	if got, want := p.SumRefCounts()+uint(p.FreeListLen()), uint(p.Size()); got != want {
		t.Fatalf("sum(refCount)+freeList = %d, want %d (pool size)", got, want)
	}
	if p.Map(31) != ZeroPhys {
		t.Fatalf("Map(31) = %d, want %d (zero register)", p.Map(31), ZeroPhys)
	}
	if !p.IsValid(ZeroPhys) {
		t.Fatal("zero register must start Valid")
	}
}

func TestAllocDestAndRelease(t *testing.T) {
	p := newTestPool()
	newPhys, prevMap, prevValue, ok := p.AllocDest(3)
	if !ok {
		t.Fatal("AllocDest failed unexpectedly")
	}
	if prevMap != ZeroPhys || prevValue != 0 {
		t.Fatalf("prevMap/prevValue = %d/%d, want zero register mapping", prevMap, prevValue)
	}
	if p.Map(3) != newPhys {
		t.Fatalf("Map(3) = %d, want %d", p.Map(3), newPhys)
	}
	if p.IsValid(newPhys) {
		t.Fatal("newly allocated register should be PendingUpdate, not Valid")
	}

	p.SetValue(newPhys, 0xABCD)
	if !p.IsValid(newPhys) {
		t.Fatal("SetValue should mark the register Valid")
	}

	p.Release(newPhys)
	// still the live mapping for arch 3, so it must not return to the free
	// list: its RefCount is now 0 but it is not on the free list, leaving
	// the sum one short of the pool size
	if got, want := p.SumRefCounts()+uint(p.FreeListLen()), uint(p.Size()-1); got != want {
		t.Fatalf("sum(refCount)+freeList = %d, want %d (pool size - 1)", got, want)
	}
}

func TestZeroRegisterWritesDiscarded(t *testing.T) {
	p := newTestPool()
	before := p.regs[ZeroPhys].Value
	p.SetValue(ZeroPhys, 0xFFFF)
	if p.regs[ZeroPhys].Value != before {
		t.Fatal("write to zero register must be discarded")
	}
}

func TestRollbackRestoresPreviousMapping(t *testing.T) {
	p := newTestPool()
	newPhys, prevMap, prevValue, ok := p.AllocDest(5)
	if !ok {
		t.Fatal("AllocDest failed")
	}
	p.Rollback(5, newPhys, prevMap, prevValue)
	if p.Map(5) != prevMap {
		t.Fatalf("Map(5) after rollback = %d, want %d", p.Map(5), prevMap)
	}
	if got, want := p.SumRefCounts()+uint(p.FreeListLen()), uint(p.Size()); got != want {
		t.Fatalf("sum(refCount)+freeList after rollback = %d, want %d", got, want)
	}
}

func TestFreeListNoDuplicates(t *testing.T) {
	p := newTestPool()
	seen := make(map[int]bool)
	for p.freeList.Len() > 0 {
		v, _ := p.freeList.PopFront()
		if seen[v] {
			t.Fatalf("free list contains duplicate physical register %d", v)
		}
		seen[v] = true
	}
}
