package decode

// IsLoad reports whether opcode is one of the Memory-format load
// opcodes: Ra is the destination the loaded value lands in, Rb the base
// address register.
func IsLoad(opcode uint8) bool {
	switch opcode {
	case OpLDBU, OpLDQ_U, OpLDWU, OpLDL, OpLDQ, OpLDL_L, OpLDQ_L,
		OpLDF, OpLDG, OpLDS, OpLDT:
		return true
	}
	return false
}

// IsStore reports whether opcode is one of the Memory-format store
// opcodes: Ra holds the value to store, Rb the base address register.
func IsStore(opcode uint8) bool {
	switch opcode {
	case OpSTW, OpSTB, OpSTQ_U, OpSTL, OpSTQ, OpSTL_C, OpSTQ_C,
		OpSTF, OpSTG, OpSTS, OpSTT:
		return true
	}
	return false
}

// IsLockedMemoryOp reports whether opcode is one of the load-locked or
// store-conditional pair governing the LL/SC reservation protocol.
func IsLockedMemoryOp(opcode uint8) bool {
	switch opcode {
	case OpLDL_L, OpLDQ_L, OpSTL_C, OpSTQ_C:
		return true
	}
	return false
}

// IsAddressCompute reports whether opcode computes an address into Ra
// without touching memory (LDA/LDAH).
func IsAddressCompute(opcode uint8) bool {
	return opcode == OpLDA || opcode == OpLDAH
}

// MemoryOpSize returns the access width in bytes a load or store opcode
// addresses. Longword accesses sign- or zero-extend once loaded but
// always move 4 bytes on the wire; quadword, unaligned-quadword, and FP
// moves always move 8.
func MemoryOpSize(opcode uint8) int {
	switch opcode {
	case OpLDBU, OpSTB:
		return 1
	case OpLDWU, OpSTW:
		return 2
	case OpLDL, OpLDL_L, OpSTL, OpSTL_C:
		return 4
	default:
		return 8
	}
}
