package dcache

import "testing"

func TestFillThenProbeHit(t *testing.T) {
	d := New()
	var data [lineBytes]byte
	data[0] = 0xAB
	d.Fill(0x1000, data, Clean)

	line, _, ok := d.Probe(0x1000)
	if !ok {
		t.Fatal("expected probe hit after fill")
	}
	if line.Data[0] != 0xAB {
		t.Fatalf("Data[0] = %#x, want 0xAB", line.Data[0])
	}
	if line.State != Clean {
		t.Fatalf("State = %v, want Clean", line.State)
	}
}

func TestProbeMissOnColdLine(t *testing.T) {
	d := New()
	if _, _, ok := d.Probe(0x2000); ok {
		t.Fatal("expected miss on an empty cache")
	}
}

func TestSetStateDirtyThenInvalidate(t *testing.T) {
	d := New()
	var data [lineBytes]byte
	d.Fill(0x3000, data, Clean)
	if !d.SetState(0x3000, Dirty) {
		t.Fatal("SetState should find the resident line")
	}
	line, _, _ := d.Probe(0x3000)
	if !line.State.IsDirty() {
		t.Fatal("line should report Dirty")
	}
	d.Invalidate(0x3000)
	if _, _, ok := d.Probe(0x3000); ok {
		t.Fatal("line should be gone after Invalidate")
	}
}

func TestDirtyNeverSharedAcrossStates(t *testing.T) {
	if Dirty.IsShared() {
		t.Fatal("Dirty must not report as shared")
	}
	if !DirtyShared.IsShared() {
		t.Fatal("DirtyShared must report as shared")
	}
}
