// Package ebox implements the Alpha 21264 integer execution clusters
// (§4.4): four independent pipeline agents (L0, L1, U0, U1) that drain
// the instruction queue, execute Operate-format integer instructions,
// and publish results to the physical register file and reorder buffer.
package ebox

import (
	"github.com/tsunami-core/axp21264/internal/axp/decode"
	"github.com/tsunami-core/axp21264/internal/axp/iqueue"
	"github.com/tsunami-core/axp21264/internal/axp/prf"
	"github.com/tsunami-core/axp21264/internal/axp/rob"
)

// Cluster is one of the four integer execution pipelines. Each Cluster
// owns no state of its own beyond its identity, pipeline eligibility
// mask, and (for the L0/L1 clusters that carry Memory-format traffic) the
// MemoryUnit wired in by the owning CPU; the queue, ROB, and register
// file it drains are shared with its sibling clusters and the Ibox, per
// §5's fixed queue -> ROB -> IPR lock ordering (callers are expected to
// already hold whatever lock that ordering requires; Cluster itself does
// not lock).
type Cluster struct {
	Name     string
	Pipeline decode.ClusterSet

	// Mem is nil for clusters that never see Memory-format entries (U0,
	// U1) and for any cluster in a CPU built without memory wiring; Step
	// treats a Memory-format entry arriving with Mem == nil the same as
	// an unrecognized ALU function.
	Mem *MemoryUnit
}

// New constructs a named execution cluster for the given eligibility
// mask (one of decode.L0, decode.L1, decode.U0, decode.U1).
func New(name string, pipeline decode.ClusterSet) *Cluster {
	return &Cluster{Name: name, Pipeline: pipeline}
}

// Step implements one scan-issue-execute-writeback cycle (§4.4): issue
// the oldest eligible ready entry from q, execute it, write the result
// into rb's entry and pool, and transition states. It reports false if
// nothing was eligible to issue this cycle.
func (c *Cluster) Step(q *iqueue.Queue, rb *rob.ROB, pool *prf.Pool) bool {
	ready := iqueue.ReadyCheck{
		SourceValid: pool.IsValid,
		DestPending: func(phys int) bool {
			return phys == prf.ZeroPhys || pool.StateOf(phys) == prf.PendingUpdate
		},
	}

	entry, ok := q.Issue(c.Pipeline, ready)
	if !ok {
		return false
	}

	robEntry := rb.At(entry.ROBID)

	raVal := pool.ReadValue(entry.SrcPhys[0])

	if isMemoryOpcode(entry.Decoded.Opcode) {
		c.execMemory(entry, robEntry, rb, pool, raVal)
		return true
	}

	if entry.Decoded.Format == decode.FormatBranch {
		actualTaken := ResolveBranch(entry.Decoded.Opcode, raVal)
		robEntry.ActualTaken = actualTaken
		robEntry.Mispredicted = robEntry.IsBranch && actualTaken != robEntry.PredictedTaken
		robEntry.State = rob.WaitingRetirement
		rb.Set(entry.ROBID, robEntry)
		return true
	}

	var bVal uint64
	if entry.Decoded.IsLiteral {
		bVal = uint64(entry.Decoded.Literal)
	} else {
		bVal = pool.ReadValue(entry.SrcPhys[1])
	}

	result, trap, recognized := ExecuteInt(entry.Decoded.FuncName, raVal, bVal, robEntry.PrevDestValue)
	if !recognized {
		robEntry.ExceptionMask |= ExcIllegalFunction
	} else if trap {
		robEntry.ExceptionMask |= ExcIntegerOverflow
	} else {
		pool.SetValue(entry.DestPhys, result)
		robEntry.Value = result
	}

	robEntry.State = rob.WaitingRetirement
	rb.Set(entry.ROBID, robEntry)
	return true
}

// isMemoryOpcode reports whether op is one of the load/store/address-compute
// opcodes this Cluster executes via execMemory rather than ExecuteInt.
// Checking the opcode directly, rather than entry.Decoded.Format, matters
// because FormatMemory is Format's zero value: a hand-built decode.Decoded
// that never sets Format would otherwise look indistinguishable from a
// genuine Memory-format instruction.
func isMemoryOpcode(op uint8) bool {
	return decode.IsLoad(op) || decode.IsStore(op) || decode.IsAddressCompute(op)
}

// execMemory implements §4.6's execute-stage behavior for a Memory-format
// instruction dispatched through ibox's dedicated memory rename path:
// LDA/LDAH's address computation needs no MemoryUnit at all, and an
// absent one leaves a real load/store unrecognized exactly like an
// absent ALU function would.
func (c *Cluster) execMemory(entry iqueue.Entry, robEntry rob.Entry, rb *rob.ROB, pool *prf.Pool, base uint64) {
	opcode := entry.Decoded.Opcode
	vaddr := base + uint64(int64(entry.Decoded.MemDisp))

	switch {
	case decode.IsAddressCompute(opcode):
		pool.SetValue(entry.DestPhys, vaddr)
		robEntry.Value = vaddr

	case decode.IsLoad(opcode):
		if c.Mem == nil {
			robEntry.ExceptionMask |= ExcIllegalFunction
			break
		}
		locked := decode.IsLockedMemoryOp(opcode)
		value, physAddr, err := c.Mem.Load(vaddr, decode.MemoryOpSize(opcode), entry.ROBID, locked)
		robEntry.MemPhysAddr = physAddr
		if err != nil {
			robEntry.ExceptionMask |= ExcMemoryFault
			break
		}
		pool.SetValue(entry.DestPhys, value)
		robEntry.Value = value

	case decode.IsStore(opcode):
		if c.Mem == nil {
			robEntry.ExceptionMask |= ExcIllegalFunction
			break
		}
		value := pool.ReadValue(entry.SrcPhys[1])
		locked := decode.IsLockedMemoryOp(opcode)
		physAddr, succeeded, err := c.Mem.Store(vaddr, decode.MemoryOpSize(opcode), entry.ROBID, value, locked)
		robEntry.MemPhysAddr = physAddr
		if err != nil {
			robEntry.ExceptionMask |= ExcMemoryFault
			break
		}
		if locked {
			flag := uint64(0)
			if succeeded {
				flag = 1
			}
			pool.SetValue(entry.DestPhys, flag)
			robEntry.Value = flag
		}

	default:
		robEntry.ExceptionMask |= ExcIllegalFunction
	}

	robEntry.State = rob.WaitingRetirement
	rb.Set(entry.ROBID, robEntry)
}

// Exception bits this cluster can set in a ROB entry's mask (§7). The
// full architectural exception-kind enumeration lives in package except;
// these three are integer-execute-local so ebox does not need to import
// it just to report them.
const (
	ExcIllegalFunction = 1 << iota
	ExcIntegerOverflow
	ExcMemoryFault
)
