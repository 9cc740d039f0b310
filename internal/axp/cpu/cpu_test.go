package cpu

import (
	"testing"

	"github.com/tsunami-core/axp21264/internal/axp/decode"
	"github.com/tsunami-core/axp21264/internal/axp/pc"
	"github.com/tsunami-core/axp21264/internal/axp/prf"
	"github.com/tsunami-core/axp21264/internal/axp/tlb"
)

// testConfig sizes a CPU small enough for deterministic, quick tests.
func testConfig() Config {
	return Config{
		ROBCapacity:    8,
		IntPRFSize:     40,
		FPPRFSize:      40,
		ITBEntries:     tlb.DefaultEntries,
		PredictorDepth: 8,
	}
}

func encodeLiteralADDQ(rc int, literal uint8) uint32 {
	return uint32(decode.Encode(decode.Decoded{
		Opcode:    decode.OpINTA,
		Format:    decode.FormatOperate,
		Ra:        31,
		IsLiteral: true,
		Literal:   literal,
		Func:      0x20, // ADDQ
		Rc:        rc,
	}))
}

func encodeBEQ(ra int, disp int32) uint32 {
	return uint32(decode.Encode(decode.Decoded{
		Opcode: decode.OpBEQ,
		Format: decode.FormatBranch,
		Ra:     ra,
		BrDisp: disp,
	}))
}

// TestStepRetiresADDQ reproduces the §8 concrete scenario: an ADDQ fetched
// from backing memory runs end to end through fetch/rename/issue/retire and
// its result lands in the architectural register file.
func TestStepRetiresADDQ(t *testing.T) {
	const archRc = 3

	mem := NewMemory()
	mem.LoadProgram(0, []uint32{encodeLiteralADDQ(archRc, 42)})

	c := New(testConfig(), mem)
	c.SetPC(0, false)

	for i := 0; i < 4 && c.RetiredCount == 0; i++ {
		c.Step()
	}

	if c.RetiredCount != 1 {
		t.Fatalf("RetiredCount = %d, want 1", c.RetiredCount)
	}
	phys := c.ib.IntPRF.Map(archRc)
	if !c.ib.IntPRF.IsValid(phys) {
		t.Fatal("destination register should be Valid after retirement")
	}
	if got := c.ib.IntPRF.ReadValue(phys); got != 42 {
		t.Fatalf("R%d = %d, want 42", archRc, got)
	}
}

// TestStepRollsBackMispredictedBranch reproduces the §8 concrete
// mispredict-rollback scenario. A BEQ's condition register is left
// PendingUpdate across several Step calls, so a wrong-path instruction gets
// fetched and dispatched (and even executed) on the predicted not-taken
// path before the branch's condition becomes available; once it does, the
// branch resolves taken against a not-taken prediction, and the younger,
// already-executed wrong-path instruction's register mapping is rolled back
// rather than committed.
func TestStepRollsBackMispredictedBranch(t *testing.T) {
	const (
		archRa        = 1 // BEQ condition register
		archDecoyDest = 5 // written on the (wrong) not-taken path
		archRealDest  = 6 // the branch's taken-path target instruction
	)

	mem := NewMemory()
	mem.LoadProgram(0, []uint32{
		encodeBEQ(archRa, 1),                 // addr 0: BEQ R1, taken -> addr 8
		encodeLiteralADDQ(archDecoyDest, 77), // addr 4: fallthrough (wrong path)
		encodeLiteralADDQ(archRealDest, 99),  // addr 8: branch target (right path)
	})

	c := New(testConfig(), mem)

	// Hold the branch's condition register PendingUpdate so it cannot
	// resolve the instant it is rename-dispatched; this is what leaves a
	// window for a wrong-path instruction to be fetched and dispatched
	// before the misprediction is caught, the same way a multi-cycle
	// producer would in real hardware.
	raPhys, _, _, ok := c.ib.IntPRF.AllocDest(archRa)
	if !ok {
		t.Fatal("AllocDest for the branch condition register should succeed")
	}

	c.SetPC(0, false)

	c.Step() // fetch+dispatch BEQ; predicted not-taken (power-on predictor state)
	if c.RetiredCount != 0 {
		t.Fatalf("RetiredCount after dispatching BEQ = %d, want 0", c.RetiredCount)
	}
	if got := c.PC(); got != pc.New(4, false) {
		t.Fatalf("PC after predicted-not-taken fetch = %v, want addr 4", got)
	}

	c.Step() // fetch+dispatch+execute the decoy ADDQ; BEQ still not ready
	if c.RetiredCount != 0 {
		t.Fatal("the decoy should execute but not retire while BEQ blocks the ROB head")
	}
	if decoyPhys := c.ib.IntPRF.Map(archDecoyDest); !c.ib.IntPRF.IsValid(decoyPhys) {
		t.Fatal("decoy destination should already hold its computed value, pending retirement")
	}

	// The condition register's value becomes available: Ra == 0, so BEQ
	// actually resolves taken, disagreeing with the not-taken prediction.
	c.ib.IntPRF.SetValue(raPhys, 0)

	c.Step() // fetch+dispatch the real target; issue BEQ; retire+abort

	if c.RetiredCount != 1 {
		t.Fatalf("RetiredCount = %d, want 1 (only the branch itself)", c.RetiredCount)
	}
	if c.ib.ROB.Len() != 0 {
		t.Fatalf("ROB.Len() = %d, want 0 (decoy and speculative copy both aborted)", c.ib.ROB.Len())
	}
	if got := c.ib.IntPRF.Map(archDecoyDest); got != prf.ZeroPhys {
		t.Fatalf("Map(archDecoyDest) = %d, want rolled back to ZeroPhys", got)
	}
	if got := c.ib.IntPRF.Map(archRealDest); got != prf.ZeroPhys {
		t.Fatalf("Map(archRealDest) = %d, want rolled back to ZeroPhys (its speculative dispatch was also younger than the branch)", got)
	}
	if got := c.PC(); got != pc.New(8, false) {
		t.Fatalf("PC after misprediction recovery = %v, want the branch target, addr 8", got)
	}

	// Re-fetching the branch target now runs for real, on the
	// architecturally-correct path.
	for i := 0; i < 4 && c.RetiredCount < 2; i++ {
		c.Step()
	}
	if c.RetiredCount != 2 {
		t.Fatalf("RetiredCount = %d, want 2 after the target instruction retires", c.RetiredCount)
	}
	realPhys := c.ib.IntPRF.Map(archRealDest)
	if got := c.ib.IntPRF.ReadValue(realPhys); got != 99 {
		t.Fatalf("R%d = %d, want 99", archRealDest, got)
	}
}

// TestStepStallsOnROBExhaustion exercises the fetchStalled path: with a
// one-entry ROB already occupied by an unretirable instruction, a second
// fetch must leave the PC unchanged rather than overrun the ROB.
func TestStepStallsOnROBExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.ROBCapacity = 1

	mem := NewMemory()
	mem.LoadProgram(0, []uint32{
		encodeBEQ(1, 0),
		encodeLiteralADDQ(2, 1),
	})

	c := New(cfg, mem)
	raPhys, _, _, ok := c.ib.IntPRF.AllocDest(1)
	if !ok {
		t.Fatal("AllocDest should succeed")
	}
	_ = raPhys
	c.SetPC(0, false)

	c.Step() // BEQ occupies the single ROB slot and cannot retire yet
	if c.ib.ROB.Len() != 1 {
		t.Fatalf("ROB.Len() = %d, want 1", c.ib.ROB.Len())
	}
	pcBefore := c.PC()

	c.Step() // fetch must stall: ROB has no room for a second entry
	if got := c.PC(); got != pcBefore {
		t.Fatalf("PC after a stalled fetch = %v, want unchanged %v", got, pcBefore)
	}
}
