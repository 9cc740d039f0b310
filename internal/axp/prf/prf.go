// Package prf implements the Alpha 21264 physical register file (§2, §3,
// §4.3, §9): two independently-sized pools (integer, floating-point), each
// holding a value array, per-register state, reference counts, a circular
// free list, and the architectural-to-physical rename map.
//
// Core Features:
//   - State machine per register: Free -> PendingUpdate -> Valid, with
//     rollback moving a register straight back to Valid (restoring a prior
//     mapping) without ever touching the free list.
//   - Free list implemented as a ring of physical indices (§9's suggested
//     "arena-plus-index" form), so allocation and release are O(1) without
//     scanning for a free slot.
//   - Architectural register 31 is permanently bound to a fixed physical
//     register holding zero; writes to it are silently discarded and it is
//     always Valid.
//
// Concurrency: a Pool is mutated by the Ibox rename agent (Alloc), an
// executing cluster (SetValue), and the retirement agent (Release); callers
// share a single mutex across all three per the fixed queue->ROB->IPR lock
// order from the concurrency model, so Pool itself does not lock.
package prf

import "github.com/tsunami-core/axp21264/internal/axp/ring"

// State is a physical register's lifecycle state.
type State int

const (
	Free State = iota
	PendingUpdate
	Valid
)

// ZeroPhys is the fixed physical register index that architectural
// register 31 is always mapped to, in both the integer and FP pools.
const ZeroPhys = 0

// Reg is a single physical register.
type Reg struct {
	Value    uint64
	State    State
	RefCount uint
}

// Pool is one physical register file (integer or floating-point).
type Pool struct {
	regs     []Reg
	archMap  []int // architectural register -> physical index
	freeList *ring.Ring[int]
	archRegs int
}

// NewPool allocates a pool with numPhys physical registers and archRegs
// architectural registers (32 for both the integer and FP Alpha files).
// Physical register ZeroPhys is pre-bound to architectural register
// archRegs-1 (register 31) and marked permanently Valid; every other
// physical register starts on the free list.
func NewPool(numPhys, archRegs int) *Pool {
	if numPhys <= archRegs {
		panic("prf: numPhys must exceed archRegs to leave room for renaming")
	}
	p := &Pool{
		regs:     make([]Reg, numPhys),
		archMap:  make([]int, archRegs),
		freeList: ring.New[int](numPhys),
		archRegs: archRegs,
	}
	p.Reset()
	return p
}

// Reset restores the pool to its power-on state: the zero register bound
// and Valid, every other physical register Free and on the free list, and
// every architectural register mapped to the zero register.
func (p *Pool) Reset() {
	for i := range p.regs {
		p.regs[i] = Reg{}
	}
	p.regs[ZeroPhys] = Reg{Value: 0, State: Valid, RefCount: 1}
	for a := range p.archMap {
		p.archMap[a] = ZeroPhys
	}
	p.freeList.Reset()
	for i := range p.regs {
		if i == ZeroPhys {
			continue
		}
		p.freeList.TryPush(i)
	}
}

// Map returns the physical register currently mapped to architectural
// register arch.
func (p *Pool) Map(arch int) int { return p.archMap[arch] }

// ReadSource resolves an architectural source register to its physical
// register's current value, incrementing that physical register's
// reference count for the in-flight consumer that is about to hold it.
func (p *Pool) ReadSource(arch int) (phys int, value uint64) {
	phys = p.archMap[arch]
	p.regs[phys].RefCount++
	return phys, p.regs[phys].Value
}

// AllocDest implements the §4.3 rename policy for a destination register.
// If arch is the architecture's zero register (archRegs-1), the fixed zero
// mapping is kept and no physical register is allocated: prevMap/prevValue
// echo the current (zero) state so callers can treat both paths uniformly.
// Otherwise the head of the free list is allocated, set to PendingUpdate
// with RefCount 1, and installed as the new mapping for arch; prevMap and
// prevValue capture the mapping being replaced, for ROB-driven rollback.
func (p *Pool) AllocDest(arch int) (newPhys, prevMap int, prevValue uint64, ok bool) {
	prevMap = p.archMap[arch]
	prevValue = p.regs[prevMap].Value
	if arch == p.archRegs-1 {
		return prevMap, prevMap, prevValue, true
	}
	idx, got := p.freeList.PopFront()
	if !got {
		return 0, prevMap, prevValue, false
	}
	p.regs[idx] = Reg{State: PendingUpdate, RefCount: 1}
	p.archMap[arch] = idx
	return idx, prevMap, prevValue, true
}

// SetValue is called by the executing cluster on writeback: it stores the
// computed value into phys and marks it Valid. The zero register is immune
// (writes to it are architecturally discarded).
func (p *Pool) SetValue(phys int, value uint64) {
	if phys == ZeroPhys {
		return
	}
	p.regs[phys].Value = value
	p.regs[phys].State = Valid
}

// ReadValue returns phys's current value directly, without going through
// the architectural map or touching its reference count. Execution
// clusters use this to read a source operand from the physical register
// snapshotted at rename time (iqueue.Entry.SrcPhys): by the time an
// instruction issues, the architectural map may have moved on to a
// different physical register for the same architectural number, so
// re-resolving via ReadSource(arch) at issue time would read the wrong
// value entirely.
func (p *Pool) ReadValue(phys int) uint64 {
	return p.regs[phys].Value
}

// IsValid reports whether phys currently holds a committed value.
func (p *Pool) IsValid(phys int) bool {
	return p.regs[phys].State == Valid
}

// StateOf reports phys's current lifecycle state, for issue-readiness
// checks that need to distinguish PendingUpdate from Free (the executing
// cluster's destination-readiness check in §4.4 condition 4).
func (p *Pool) StateOf(phys int) State {
	return p.regs[phys].State
}

// Release is called by the retirement agent: it decrements phys's
// reference count, and if the count reaches zero and phys is no longer the
// live mapping for any architectural register, returns it to the free
// list.
func (p *Pool) Release(phys int) {
	if phys == ZeroPhys {
		return
	}
	if p.regs[phys].RefCount > 0 {
		p.regs[phys].RefCount--
	}
	if p.regs[phys].RefCount != 0 {
		return
	}
	for _, m := range p.archMap {
		if m == phys {
			return
		}
	}
	p.regs[phys] = Reg{}
	p.freeList.TryPush(phys)
}

// Rollback restores arch's mapping to prevMap/prevValue, undoing an
// AllocDest that must be unwound by mis-speculation recovery (§4.11). The
// register that had been speculatively allocated (if different from
// prevMap and not the zero register) is returned to the free list
// unconditionally: an aborted instruction can have no surviving consumers.
func (p *Pool) Rollback(arch int, abortedPhys, prevMap int, prevValue uint64) {
	p.archMap[arch] = prevMap
	p.regs[prevMap].Value = prevValue
	p.regs[prevMap].State = Valid
	if abortedPhys != prevMap && abortedPhys != ZeroPhys {
		p.regs[abortedPhys] = Reg{}
		p.freeList.TryPush(abortedPhys)
	}
}

// FreeListLen returns the number of physical registers currently on the
// free list, for the §8 invariant sum(refCount)+|freeList| == pool size.
func (p *Pool) FreeListLen() int { return p.freeList.Len() }

// SumRefCounts returns the sum of RefCount across every physical register,
// for the same invariant.
func (p *Pool) SumRefCounts() uint {
	var sum uint
	for _, r := range p.regs {
		sum += r.RefCount
	}
	return sum
}

// Size returns the total number of physical registers in the pool.
func (p *Pool) Size() int { return len(p.regs) }
