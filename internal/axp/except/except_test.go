package except

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPALEntryPCIsAlwaysPALMode(t *testing.T) {
	got := EntryPC(0x8000000000000000, IllegalInstruction)
	require.True(t, got.PAL())
}

func TestPALEntryPCDistinctPerKind(t *testing.T) {
	const palBase = 0x8000000000000000
	seen := map[pcAddr]bool{}
	kinds := []Kind{
		IllegalInstruction, ArithmeticInvalid, ArithmeticDivideByZero,
		ArithmeticOverflow, ArithmeticUnderflow, ArithmeticInexact,
		IntegerOverflow, AccessViolation, FaultOnRead, FaultOnWrite,
		FaultOnExecute, TBMissInstruction, TBMissDataSingle,
		TBMissDataDouble, Unaligned, Breakpoint, Bugcheck, MachineCheck,
	}
	for _, k := range kinds {
		addr := pcAddr(EntryPC(palBase, k).Addr())
		require.False(t, seen[addr], "kind %v collided with another kind's entry PC", k)
		seen[addr] = true
	}
}

func TestPALEntryPCPreservesPALBaseHighBits(t *testing.T) {
	// Kept within the PC's 62-bit address field (pc.New strips the top two
	// bits for its own PAL/reserved flags), so the comparison isn't
	// confused by those separately-managed bits.
	const palBase = 0x0000100000010000
	got := PALEntryPC(palBase, PALFunc(MachineCheck))
	require.Equal(t, palBase&^uint64(0x7fff), got.Addr()&^uint64(0x7fff))
}

func TestKindStringIsHumanReadable(t *testing.T) {
	require.Equal(t, "MachineCheck", MachineCheck.String())
	require.Equal(t, "Unknown", Kind(999).String())
}

// pcAddr is a local alias so the distinctness test can key a map on the
// composed address without importing package pc's type directly twice.
type pcAddr = uint64
