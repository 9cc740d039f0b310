package ibox

import "github.com/tsunami-core/axp21264/internal/axp/decode"

// Pool identifies which physical register file an operand belongs to.
type Pool int

const (
	IntPool Pool = iota
	FPPool
	NoPool
)

// OperandPools classifies which pool Ra, Rb, and Rc address for a
// decoded instruction (§4.3's rename policy requires knowing this before
// a source can be read or a destination allocated). The default is "all
// integer"; the floating load/store opcodes and the FLTL/FLTV/FLTI/ITFP/
// FPTI classes override specific slots.
func OperandPools(d decode.Decoded) (ra, rb, rc Pool) {
	ra, rb, rc = IntPool, IntPool, IntPool

	switch d.Opcode {
	case decode.OpLDF, decode.OpLDG, decode.OpLDS, decode.OpLDT,
		decode.OpSTF, decode.OpSTG, decode.OpSTS, decode.OpSTT:
		// Memory format: Ra is the FP value register, Rb is the integer
		// base-address register.
		ra, rc = FPPool, NoPool
	case decode.OpFBEQ, decode.OpFBLT, decode.OpFBLE, decode.OpFBNE, decode.OpFBGE, decode.OpFBGT:
		ra, rb, rc = FPPool, NoPool, NoPool
	}

	if d.Format == decode.FormatFPOperate {
		rc = FPPool
		switch d.Class {
		case decode.ClassITFP:
			ra, rb = IntPool, NoPool // integer source reinterpreted into an FP destination
		case decode.ClassFPTI:
			ra, rb, rc = FPPool, NoPool, IntPool // FP source reinterpreted into an integer destination
		default: // FLTL, FLTV, FLTI
			ra, rb = FPPool, FPPool
		}
	}

	if d.Format == decode.FormatBranch && rc == IntPool {
		rc = NoPool // branches write no destination register
	}
	if d.Rb == -1 {
		rb = NoPool
	}
	if d.Rc == -1 {
		rc = NoPool
	}
	if d.Ra == -1 {
		ra = NoPool
	}
	return ra, rb, rc
}

// isRenamedAsMemory reports whether d must go through the dedicated
// Memory-format rename path (renameDispatchMemory) rather than the
// generic OperandPools path above: the encoding never carries an Rc, so
// the generic path's "allocate Rc" rule can never give a load a
// destination register. This pass wires through the integer loads,
// stores, and LDA/LDAH's pure address computation; floating-point
// loads/stores (identified by OperandPools already routing Ra to
// FPPool) still use the generic path, and JSR/MISC are left as they are
// (see this package's DESIGN.md entry).
func isRenamedAsMemory(d decode.Decoded) bool {
	if d.Format != decode.FormatMemory {
		return false
	}
	if decode.IsAddressCompute(d.Opcode) {
		return true
	}
	if !decode.IsLoad(d.Opcode) && !decode.IsStore(d.Opcode) {
		return false
	}
	ra, _, _ := OperandPools(d)
	return ra != FPPool
}
