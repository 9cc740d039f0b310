package cpu

import "sync"

// Memory is a flat, word-addressable backing store standing in for the
// DRAM array behind the system bus (§6's physical address space). A bare
// CPU with no owning tsunami.System reads it directly on an Icache or
// Dcache miss; a CPU wired into a System instead routes Dcache fills
// through that System's Cbox/Cchip coherence path (see cpu.CPU.fillLineViaBus
// and tsunami.System.serviceRequest), which itself reads and writes this
// same backing store once a request is arbitrated onto the memory bus.
// Icache fills always read Memory directly in both cases: instruction
// fetch has no coherence-probe concern the way a store-capable Dcache
// line does.
type Memory struct {
	mu    sync.Mutex
	words map[uint64]uint32 // word address (byte address / 4) -> content
}

// NewMemory allocates an empty backing store; unwritten words read as 0.
func NewMemory() *Memory {
	return &Memory{words: make(map[uint64]uint32)}
}

// LoadProgram installs words starting at byteAddr (which must be
// word-aligned), for assembling a test program or boot image.
func (m *Memory) LoadProgram(byteAddr uint64, words []uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := byteAddr / 4
	for i, w := range words {
		m.words[base+uint64(i)] = w
	}
}

// ReadWord returns the content at the given word address.
func (m *Memory) ReadWord(wordAddr uint64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[wordAddr]
}

// WriteWord stores v at the given word address.
func (m *Memory) WriteWord(wordAddr uint64, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[wordAddr] = v
}
