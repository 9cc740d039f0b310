package fbox

import (
	"github.com/tsunami-core/axp21264/internal/axp/decode"
	"github.com/tsunami-core/axp21264/internal/axp/iqueue"
	"github.com/tsunami-core/axp21264/internal/axp/prf"
	"github.com/tsunami-core/axp21264/internal/axp/rob"
)

// Exception bits an FP cluster can set in a ROB entry's mask (§7).
const (
	ExcIllegalFunction = 1 << iota
	ExcInvalidOperation
)

// Cluster is one of the two floating-point execution pipelines
// (Multiply, Other).
type Cluster struct {
	Name     string
	Pipeline decode.ClusterSet
}

// New constructs a named FP execution cluster for the given eligibility
// mask (decode.Multiply or decode.Other).
func New(name string, pipeline decode.ClusterSet) *Cluster {
	return &Cluster{Name: name, Pipeline: pipeline}
}

// Step implements one scan-issue-execute-writeback cycle over the FP
// instruction queue, the FP physical register pool, and the shared ROB,
// mirroring ebox.Cluster.Step's shape (§4.4 applies identically to the
// FP clusters; only the executor and register pool differ).
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

	aVal := pool.ReadValue(entry.SrcPhys[0])
	bVal := pool.ReadValue(entry.SrcPhys[1])

	result, trap, recognized := ExecuteFP(entry.Decoded.FuncName, aVal, bVal)
	switch {
	case !recognized:
		robEntry.ExceptionMask |= ExcIllegalFunction
	case trap:
		robEntry.ExceptionMask |= ExcInvalidOperation
	default:
		pool.SetValue(entry.DestPhys, result)
		robEntry.Value = result
	}

	robEntry.State = rob.WaitingRetirement
	rb.Set(entry.ROBID, robEntry)
	return true
}
