package icache

import "testing"

func lineForMode(mode AccessMode) Line {
	l := Line{ASM: true}
	l.ReadExecute[mode] = true
	return l
}

func TestFillThenHit(t *testing.T) {
	ic := New()
	const vpc = 0x10000
	ic.Fill(vpc, lineForMode(Kernel))

	out, ok := ic.Fetch(vpc, 0, false, Kernel)
	if !ok {
		t.Fatal("fetch should be permitted")
	}
	if out.Result != Hit {
		t.Fatalf("Result = %v, want Hit", out.Result)
	}
}

func TestMissOnColdLine(t *testing.T) {
	ic := New()
	out, ok := ic.Fetch(0x20000, 0, false, Kernel)
	if !ok {
		t.Fatal("a cold miss should report ok=true (not a protection failure)")
	}
	if out.Result != Miss {
		t.Fatalf("Result = %v, want Miss", out.Result)
	}
}

func TestASNMismatchWithoutASMIsMiss(t *testing.T) {
	ic := New()
	const vpc = 0x30000
	l := Line{ASM: false, ASN: 5}
	l.ReadExecute[Kernel] = true
	ic.Fill(vpc, l)

	out, _ := ic.Fetch(vpc, 6, false, Kernel)
	if out.Result != Miss {
		t.Fatalf("Result = %v, want Miss on ASN mismatch", out.Result)
	}
}

func TestProtectionFailureReportsHitNotOK(t *testing.T) {
	ic := New()
	const vpc = 0x40000
	l := Line{ASM: true}
	l.ReadExecute[Kernel] = true // User not permitted
	ic.Fill(vpc, l)

	out, ok := ic.Fetch(vpc, 0, false, User)
	if ok {
		t.Fatal("expected protection failure (ok=false)")
	}
	if out.Result != Hit {
		t.Fatalf("Result = %v, want Hit (line found, access denied)", out.Result)
	}
}

func TestPALBitMustMatch(t *testing.T) {
	ic := New()
	const vpc = 0x50000
	l := lineForMode(Kernel)
	l.PAL = true
	ic.Fill(vpc, l)

	out, _ := ic.Fetch(vpc, 0, false, Kernel)
	if out.Result != Miss {
		t.Fatalf("Result = %v, want Miss when PAL mode differs", out.Result)
	}
}
