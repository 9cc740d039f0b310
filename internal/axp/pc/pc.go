// Package pc implements the Alpha 21264 program counter (§3 of the
// specification) and the VPC list the Ibox uses to roll instruction fetch
// back to the successor of any in-flight branch.
//
// The PC is a 64-bit value with three fields: a PAL-mode bit, a reserved
// bit, and a 62-bit word-aligned instruction address. PAL-mode PCs are
// composed separately (see internal/axp/except) from the PAL_BASE register
// and a 7-bit PALcode function, following the bit layout in
// AXP_21264_Ibox_PCHandling.c's AXP_21264_GetPALFuncVPC.
package pc

import "github.com/tsunami-core/axp21264/internal/axp/ring"

const (
	palBit      = uint64(1) << 63
	reservedBit = uint64(1) << 62
	addrMask    = reservedBit - 1 // low 62 bits
)

// PC is the 64-bit Alpha program counter.
type PC uint64

// New composes a PC from a 62-bit word-aligned address and a PAL-mode flag.
func New(addr uint64, pal bool) PC {
	v := addr & addrMask
	if pal {
		v |= palBit
	}
	return PC(v)
}

// PAL reports whether this PC is in PAL mode.
func (p PC) PAL() bool { return uint64(p)&palBit != 0 }

// Addr returns the 62-bit instruction address field.
func (p PC) Addr() uint64 { return uint64(p) & addrMask }

// Next returns the PC of the next sequential instruction (+4 bytes),
// preserving the PAL-mode bit.
func (p PC) Next() PC { return New(p.Addr()+4, p.PAL()) }

// Uint64 returns the raw 64-bit encoding.
func (p PC) Uint64() uint64 { return uint64(p) }

// List is the ring buffer of past program counters (§3 "VPC list"),
// sized to the CPU's in-flight instruction limit so that any in-flight
// instruction's PC can be recovered for precise rollback.
type List struct {
	r *ring.Ring[PC]
}

// NewList allocates a VPC list with the given capacity (normally equal to
// the ROB's in-flight maximum).
func NewList(capacity int) *List {
	return &List{r: ring.New[PC](capacity)}
}

// Add appends vpc to the list, overwriting the oldest entry if the list is
// already at capacity (AXP_21264_AddVPC's overwrite-on-overflow rule).
func (l *List) Add(vpc PC) int {
	return l.r.PushOverwrite(vpc)
}

// At returns the VPC recorded at ring slot idx.
func (l *List) At(idx int) PC {
	return l.r.At(idx)
}

// TruncateTo rolls the list back to just before ring slot idx, discarding
// every VPC recorded from idx onward. Used during mis-speculation recovery.
func (l *List) TruncateTo(idx int) {
	l.r.TruncateTo(idx)
}

// Len returns the number of VPCs currently recorded.
func (l *List) Len() int { return l.r.Len() }

// Reset empties the VPC list.
func (l *List) Reset() { l.r.Reset() }
