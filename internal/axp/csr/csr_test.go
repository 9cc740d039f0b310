package csr

import "testing"

func TestFieldExtractInsert(t *testing.T) {
	f := Field{Offset: 4, Width: 3} // bits [4:7)
	raw := uint64(0)
	raw = f.Insert(raw, 0x5)
	if got := f.Extract(raw); got != 0x5 {
		t.Fatalf("Extract() = %#x, want %#x", got, 0x5)
	}
	if raw != 0x5<<4 {
		t.Fatalf("raw = %#x, want %#x", raw, 0x5<<4)
	}
}

func TestFieldInsertMasksOverflow(t *testing.T) {
	f := Field{Offset: 0, Width: 2}
	raw := f.Insert(0, 0xFF)
	if raw != 0x3 {
		t.Fatalf("raw = %#x, want %#x (value truncated to width)", raw, 0x3)
	}
}

func TestRegisterGetSetField(t *testing.T) {
	r := NewRegister(0)
	enable := Field{Offset: 0, Width: 1}
	mode := Field{Offset: 1, Width: 2}

	r.SetField(enable, 1)
	r.SetField(mode, 2)
	if r.GetField(enable) != 1 {
		t.Fatalf("enable = %d, want 1", r.GetField(enable))
	}
	if r.GetField(mode) != 2 {
		t.Fatalf("mode = %d, want 2", r.GetField(mode))
	}

	r.Reset(0xDEAD)
	if r.Get() != 0xDEAD {
		t.Fatalf("Get() after Reset = %#x, want %#x", r.Get(), 0xDEAD)
	}
}

func TestFileDefineAndResetAll(t *testing.T) {
	f := NewFile()
	csc := f.Define(0x00, 0x1)
	misc := f.Define(0x08, 0x2)

	csc.Set(0xFF)
	misc.Set(0xFF)

	f.ResetAll(map[uint64]uint64{0x00: 0x1, 0x08: 0x2})
	if f.At(0x00).Get() != 0x1 {
		t.Fatalf("csc after ResetAll = %#x, want 0x1", f.At(0x00).Get())
	}
	if f.At(0x08).Get() != 0x2 {
		t.Fatalf("misc after ResetAll = %#x, want 0x2", f.At(0x08).Get())
	}
	if f.At(0x10) != nil {
		t.Fatal("At() for undefined address should return nil")
	}
}
