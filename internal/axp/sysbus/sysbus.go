// Package sysbus defines the system-bus protocol message types shared by
// every CPU's Cbox and the chipset (§4.7-§4.10, §6): CPU-to-system
// commands, system-to-CPU probe commands crossed with next cache state,
// and the SysDc completion codes.
package sysbus

// CPUCommand is one of the 30 CPU->System commands (§6).
type CPUCommand int

const (
	CPUNop CPUCommand = iota
	CPUProbeResponse
	CPUWrVictimBlk
	CPUCleanVictimBlk
	CPUReadBlk
	CPUReadBlkMod
	CPUReadBlkSpec
	CPUReadBlkVic
	CPUInvalToDirty
	CPUChangeToDirty
	CPUSharedToDirty
	CPUMB
	CPUReadBytes
	CPUReadLW
	CPUReadQW
	CPUWriteBytes
	CPUWriteLW
	CPUWriteQW
	CPUReadBytesSpec
	CPUReadLWSpec
	CPUReadQWSpec
	CPUWriteBytesVic
	CPUWriteLWVic
	CPUWriteQWVic
	CPUFetch
	CPUFetchM
	CPURS
	CPURC
	CPUECB
	CPUWH64
)

// Message is a single CPU->System protocol message (§6).
type Message struct {
	Command CPUCommand
	Address uint64
	Mask    uint64 // 8-byte byte mask
	ID      uint32
	Wrap    uint8

	M1, M2, Ch, RV, Probe bool

	Data [8]uint64 // up to 8 quadwords
}

// ProbeCommand is the system's probe request to a CPU (§6, crossed with
// NextState below).
type ProbeCommand int

const (
	ProbeNop ProbeCommand = iota
	ProbeReadHit
	ProbeReadDirty
	ProbeReadAny
)

// NextState is the coherence state a CPU's line must transition to as a
// result of servicing a probe (§6).
type NextState int

const (
	NextNop NextState = iota
	NextClean
	NextCleanShared
	NextTransition1
	NextTransition3
)

// SysDc is the system's downstream completion code for a previously
// issued CPU request (§6).
type SysDc int

const (
	SysDcNop SysDc = iota
	SysDcReadDataError
	SysDcChangeToDirtySuccess
	SysDcChangeToDirtyFail
	SysDcMBDone
	SysDcReleaseBuffer
	SysDcWriteData
	SysDcReadData
	SysDcReadDataDirty
	SysDcReadDataShared
	SysDcReadDataSharedDirty
)

// ProbeMessage is a system-to-CPU probe delivery (§6).
type ProbeMessage struct {
	Address uint64
	Probe   ProbeCommand
	Next    NextState
	Sys     SysDc

	RVB, RPB, A, C bool // probe action flags (§3's PQ entry flags)

	TargetID uint32 // MAF or VDB ID this response corresponds to
	Data     [8]uint64
	Wrap     uint8
}
