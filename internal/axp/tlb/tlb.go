// Package tlb implements the fully-associative translation lookaside
// buffer shared in shape by the Alpha 21264's ITB and DTB (§2, §3): each
// entry holds a virtual page, physical page, page-size granularity hint,
// ASN, ASM bit, per-mode read and write enables, and fault-on-read/
// write/execute bits. There is no per-mode execute enable: an execute
// check consults FaultOnExecute only.
package tlb

// DefaultEntries is the architecturally-adequate TLB size used when the
// caller has no more specific requirement (§2: "128 entries is adequate").
const DefaultEntries = 128

// AccessMode is the CPU privilege mode an access is checked against,
// ordered from most to least privileged as in the architecture (Kernel,
// Executive, Supervisor, User).
type AccessMode int

const (
	Kernel AccessMode = iota
	Executive
	Supervisor
	User
	numModes
)

// Entry is one TLB mapping.
type Entry struct {
	Valid        bool
	VirtualPage  uint64
	PhysicalPage uint64
	Granularity  uint // power-of-2 page-size multiplier hint
	ASN          uint8
	ASM          bool

	// Per-mode protection: index by AccessMode.
	ReadEnable  [numModes]bool
	WriteEnable [numModes]bool

	FaultOnRead    bool
	FaultOnWrite   bool
	FaultOnExecute bool
}

// TLB is a fully-associative, content-addressed set of page mappings.
type TLB struct {
	entries []Entry
	// lru holds entries in least-to-most-recently-used order, oldest first;
	// used to pick a victim on fill when no invalid entry is available.
	lru []int
}

// New allocates a TLB with the given number of entries (DefaultEntries is
// the usual choice).
func New(numEntries int) *TLB {
	t := &TLB{
		entries: make([]Entry, numEntries),
		lru:     make([]int, numEntries),
	}
	for i := range t.lru {
		t.lru[i] = i
	}
	return t
}

// Lookup searches for a mapping matching vpage under asn, honoring the
// ASM match-any-ASN rule. Returns the matching entry and its index, or
// ok=false on a TLB miss.
func (t *TLB) Lookup(vpage uint64, asn uint8) (entry Entry, index int, ok bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.Valid || e.VirtualPage != vpage {
			continue
		}
		if e.ASM || e.ASN == asn {
			t.touch(i)
			return *e, i, true
		}
	}
	return Entry{}, 0, false
}

// CheckAccess validates mode-specific protection for entry, returning the
// fault that applies (if any). exactly one of wantRead/wantWrite/wantExec
// should be set by the caller.
func (e Entry) CheckAccess(mode AccessMode, wantRead, wantWrite, wantExec bool) error {
	if wantExec && e.FaultOnExecute {
		return ErrFaultOnExecute
	}
	if wantRead {
		if e.FaultOnRead {
			return ErrFaultOnRead
		}
		if !e.ReadEnable[mode] {
			return ErrAccessViolation
		}
	}
	if wantWrite {
		if e.FaultOnWrite {
			return ErrFaultOnWrite
		}
		if !e.WriteEnable[mode] {
			return ErrAccessViolation
		}
	}
	return nil
}

// Fill installs e into the TLB, preferring an invalid slot, or evicting
// the least-recently-used entry if the TLB is full.
func (t *TLB) Fill(e Entry) int {
	for i := range t.entries {
		if !t.entries[i].Valid {
			t.entries[i] = e
			t.entries[i].Valid = true
			t.touch(i)
			return i
		}
	}
	victim := t.lru[0]
	t.entries[victim] = e
	t.entries[victim].Valid = true
	t.touch(victim)
	return victim
}

// Invalidate marks entry idx invalid (used for single-entry TBIS-style
// invalidation).
func (t *TLB) Invalidate(idx int) {
	t.entries[idx] = Entry{}
}

// InvalidateAll clears every entry (TBIA-style invalidation).
func (t *TLB) InvalidateAll() {
	for i := range t.entries {
		t.entries[i] = Entry{}
	}
}

func (t *TLB) touch(idx int) {
	for i, v := range t.lru {
		if v == idx {
			t.lru = append(t.lru[:i], t.lru[i+1:]...)
			break
		}
	}
	t.lru = append(t.lru, idx)
}
