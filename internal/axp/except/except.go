// Package except defines the architectural exception kinds the Ibox can
// raise during execute/retire (§7) and composes the PAL-mode program
// counter an exception or a CALL_PAL instruction dispatches to.
package except

import (
	"github.com/tsunami-core/axp21264/internal/axp/pc"
)

// Kind is one architectural exception (§7's enumerated list).
type Kind int

const (
	IllegalInstruction Kind = iota
	ArithmeticInvalid
	ArithmeticDivideByZero
	ArithmeticOverflow
	ArithmeticUnderflow
	ArithmeticInexact
	IntegerOverflow
	AccessViolation
	FaultOnRead
	FaultOnWrite
	FaultOnExecute
	TBMissInstruction
	TBMissDataSingle
	TBMissDataDouble
	Unaligned
	Breakpoint
	Bugcheck
	MachineCheck
)

// String names a Kind for logging and CLI inspection.
func (k Kind) String() string {
	switch k {
	case IllegalInstruction:
		return "IllegalInstruction"
	case ArithmeticInvalid:
		return "ArithmeticInvalid"
	case ArithmeticDivideByZero:
		return "ArithmeticDivideByZero"
	case ArithmeticOverflow:
		return "ArithmeticOverflow"
	case ArithmeticUnderflow:
		return "ArithmeticUnderflow"
	case ArithmeticInexact:
		return "ArithmeticInexact"
	case IntegerOverflow:
		return "IntegerOverflow"
	case AccessViolation:
		return "AccessViolation"
	case FaultOnRead:
		return "FaultOnRead"
	case FaultOnWrite:
		return "FaultOnWrite"
	case FaultOnExecute:
		return "FaultOnExecute"
	case TBMissInstruction:
		return "TBMissInstruction"
	case TBMissDataSingle:
		return "TBMissDataSingle"
	case TBMissDataDouble:
		return "TBMissDataDouble"
	case Unaligned:
		return "Unaligned"
	case Breakpoint:
		return "Breakpoint"
	case Bugcheck:
		return "Bugcheck"
	case MachineCheck:
		return "MachineCheck"
	default:
		return "Unknown"
	}
}

// palFunc is the 7-bit PALcode function field (func_7:func_5_0) each
// exception kind dispatches to, a distinct entry point per kind in the
// legal [0x00, 0x3f] "privileged" range CALL_PAL's OPCDEC check reserves
// for hardware-originated traps (§13's PAL-mode-PC-composition note).
// The retrieved original_source shows how a func value becomes a PC
// (AXP_21264_GetPALFuncVPC) but not the architecture's hardware-defined
// entry-point table itself, so this assignment is a reasoned, internally
// consistent substitute: each Kind gets its own offset, ordered the same
// way §7's exception list enumerates them. See the except package's
// DESIGN.md entry for this Open Question's resolution.
var palFunc = map[Kind]uint32{
	IllegalInstruction:     0x00,
	ArithmeticInvalid:      0x01,
	ArithmeticDivideByZero: 0x02,
	ArithmeticOverflow:     0x03,
	ArithmeticUnderflow:    0x04,
	ArithmeticInexact:      0x05,
	IntegerOverflow:        0x06,
	AccessViolation:        0x07,
	FaultOnRead:            0x08,
	FaultOnWrite:           0x09,
	FaultOnExecute:         0x0a,
	TBMissInstruction:      0x0b,
	TBMissDataSingle:       0x0c,
	TBMissDataDouble:       0x0d,
	Unaligned:              0x0e,
	Breakpoint:             0x0f,
	Bugcheck:               0x10,
	MachineCheck:           0x11,
}

// PALFunc returns the PALcode function field k dispatches to.
func PALFunc(k Kind) uint32 { return palFunc[k] }

// PALEntryPC composes the PAL-mode virtual PC for a PALcode function
// field, per AXP_21264_GetPALFuncVPC's EV6 bit layout: the function
// field's low 6 bits and high bit are placed at fixed offsets within the
// low 15 bits of the PC, with the mbo/mbz reserved bits forced to their
// architected values, and palBase's bits from 15 up supply the rest. PAL
// mode is carried by pc.PC's own PAL bit (bit 63), which pc.New sets.
//
//	bits 0-5    mbz_1     (forced to 0)
//	bits 6-11   func_5_0
//	bit 12      func_7
//	bit 13      mbo       (forced to 1)
//	bit 14      mbz_2     (forced to 0)
//	bits 15-61  highPC    (from palBase; pc.New drops bits 62-63)
func PALEntryPC(palBase uint64, fn uint32) pc.PC {
	const highPCShift = 15
	highPC := (palBase >> highPCShift) << highPCShift

	func50 := uint64(fn&0x3f) << 6
	func7 := uint64((fn>>6)&0x1) << 12
	const mbo = uint64(1) << 13

	raw := highPC | func7 | func50 | mbo
	return pc.New(raw, true)
}

// EntryPC is the convenience form Ibox retirement calls: the PAL entry
// address for exception kind k, given the CPU's current PAL base.
func EntryPC(palBase uint64, k Kind) pc.PC {
	return PALEntryPC(palBase, PALFunc(k))
}
