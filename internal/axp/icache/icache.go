// Package icache implements the Alpha 21264 two-way set-associative
// instruction cache (§2, §4.2): 64 KB total, LRU replacement, each line
// carrying access-protection bits, ASM, ASN, the PAL bit, 16 instruction
// slots, and the virtual tag.
package icache

const (
	totalBytes    = 64 * 1024
	ways          = 2
	lineBytes     = 64 // 16 instruction slots x 4 bytes
	instrPerLine  = lineBytes / 4
	numSets       = totalBytes / (ways * lineBytes)
	setIndexBits  = 9 // log2(numSets) for 64KB/2-way/64B lines => 512 sets
	lineOffsetLSB = 6 // log2(lineBytes)
)

// AccessMode mirrors tlb.AccessMode's K/E/S/U ordering for protection
// checks local to the Icache line (decoupled to avoid a cyclic import).
type AccessMode int

const (
	Kernel AccessMode = iota
	Executive
	Supervisor
	User
	numModes
)

// Line is one Icache line.
type Line struct {
	Valid       bool
	Tag         uint64
	PAL         bool
	ASM         bool
	ASN         uint8
	ReadExecute [numModes]bool
	Instrs      [instrPerLine]uint32
}

// Result is the outcome of a Fetch.
type Result int

const (
	Hit Result = iota
	Miss
	WayMiss // TLB miss in the caller's companion ITB; Icache not consulted further
)

// FetchOutcome carries the fetched instructions on a Hit.
type FetchOutcome struct {
	Result Result
	Instrs [instrPerLine]uint32
}

// Icache is the two-way set-associative instruction cache.
type Icache struct {
	sets [numSets][ways]Line
	lru  [numSets][ways]int // lru[set][way] = recency rank, 0 = most recent
}

// New allocates an empty, all-invalid Icache.
func New() *Icache {
	ic := &Icache{}
	ic.Reset()
	return ic
}

func splitAddr(vpc uint64) (tag uint64, set int) {
	set = int((vpc >> lineOffsetLSB) & (numSets - 1))
	tag = vpc >> (lineOffsetLSB + setIndexBits)
	return
}

// Fetch looks up the line containing vpc. A line matches iff its tag
// matches, it is valid, its PAL bit matches palMode, and either ASM is set
// or its ASN matches currentASN. On a protection failure against
// accessMode the caller should treat this as an access-violation rather
// than a cache result; Fetch reports this via ok=false together with
// Result set to Hit (the line was found) so the caller can distinguish
// "found but forbidden" from "not present".
func (ic *Icache) Fetch(vpc uint64, currentASN uint8, palMode bool, accessMode AccessMode) (FetchOutcome, bool) {
	tag, set := splitAddr(vpc)
	for way := 0; way < ways; way++ {
		line := &ic.sets[set][way]
		if !line.Valid || line.Tag != tag || line.PAL != palMode {
			continue
		}
		if !line.ASM && line.ASN != currentASN {
			continue
		}
		ic.touch(set, way)
		if !line.ReadExecute[accessMode] {
			return FetchOutcome{Result: Hit}, false
		}
		return FetchOutcome{Result: Hit, Instrs: line.Instrs}, true
	}
	return FetchOutcome{Result: Miss}, true
}

// Fill installs a freshly-fetched line at vpc, evicting the LRU way of the
// indexed set.
func (ic *Icache) Fill(vpc uint64, line Line) {
	_, set := splitAddr(vpc)
	victim := 0
	for way := 0; way < ways; way++ {
		if ic.lru[set][way] == ways-1 {
			victim = way
			break
		}
	}
	tag, _ := splitAddr(vpc)
	line.Tag = tag
	line.Valid = true
	ic.sets[set][victim] = line
	ic.touch(set, victim)
}

// touch updates the LRU ranks for set after way was just accessed: way
// becomes rank 0 (most recent), everything previously more recent than it
// shifts down by one rank.
func (ic *Icache) touch(set, way int) {
	accessed := ic.lru[set][way]
	for w := 0; w < ways; w++ {
		if w == way {
			continue
		}
		if ic.lru[set][w] < accessed {
			ic.lru[set][w]++
		}
	}
	ic.lru[set][way] = 0
}

// Reset invalidates every line and resets LRU state.
func (ic *Icache) Reset() {
	for s := 0; s < numSets; s++ {
		for w := 0; w < ways; w++ {
			ic.sets[s][w] = Line{}
			ic.lru[s][w] = w
		}
	}
}
