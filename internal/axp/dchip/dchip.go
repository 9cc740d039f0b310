// Package dchip implements the Tsunami/Typhoon (21274) Dchip: the dumb
// data-movement switch between the Pchips, the CPUs, and memory (§4.9).
// It owns the PADbus two-phase command/queue protocol (HRM 7.3.1), the
// From-Pchip-Queue (FPQ) and the two To-Pchip-Queues (TPQM/TPQP) data
// merely passes through on its way to or from a Pchip, the stutter
// command used for sub-quadword PIO reads, and quadword data merging for
// DMA read-modify-write. The Dchip itself implements no flow control,
// error detection, or error correction (original_source's own header
// comment on the real chip's scope) — all of that lives in the Cchip and
// the CPUs that originate requests.
package dchip

import (
	"github.com/tsunami-core/axp21264/internal/axp/csr"
)

// PADbusCommand is the two-phase VCCT command the Cchip issues to a
// Dchip over the PADbus (HRM Table 7-2).
type PADbusCommand int

const (
	PADbusNoOp PADbusCommand = iota
	PFPQ                     // move data from the Pchip to the Dchips
	TPQMP                    // move data to the Pchip from the Dchip's TPQM
	PWMB                     // return data from Pchip to Dchips for RMW
	WMBP                     // move data from Dchips to Pchip for RMW
	PPFPQ                    // stutter move of data from the Pchip to the Dchips
	TPQPP                    // move data to the Pchip from the Dchip's TPQP
)

// PADbusMsg is one two-phase PADbus transfer (HRM Table 7-1: a command
// cycle followed by a shift/length cycle).
type PADbusMsg struct {
	Cmd   PADbusCommand
	Shift uint8
	Len   uint8 // in quadwords
	Data  [8]uint64
}

// Dchip is one Dchip slice (a real Tsunami/Typhoon system has 2, 4, or 8
// of these ganged together for 16- or 32-byte memory buses; this package
// models one slice's queues and CSRs, since nothing here depends on how
// many slices a topology uses — package tsunami replicates them).
type Dchip struct {
	fpq  []uint64 // data staged from a Pchip, awaiting a CPM move to a CPU or memory
	tpqm []uint64 // data staged for a Pchip, "monarch" path
	tpqp []uint64 // data staged for a Pchip, "paired" path

	dsc  *csr.Register
	dsc2 *csr.Register
	str  *csr.Register
	dRev *csr.Register
}

// DSC/STR field layouts (HRM Table 10-31/10-33), named only for the
// fields this package actually reads or writes.
var (
	fieldDSCP1P  = csr.Field{Offset: 62, Width: 1}
	fieldDSCBC   = csr.Field{Offset: 56, Width: 3}
	fieldSTRIDDW = csr.Field{Offset: 24, Width: 4}
	fieldSTRIDDR = csr.Field{Offset: 16, Width: 4}
)

// Reset power-on values (AXP_21274_DchipInit): STR.IDDW=2, STR.IDDR=4,
// every DREV.revN=1 (this package models one silicon revision number
// applied uniformly rather than the original's eight independently
// named per-Dchip-instance fields, since this struct is already one
// slice).
const (
	resetSTRIDDW = 2
	resetSTRIDDR = 4
	resetDRev    = 1
)

// New constructs a Dchip slice with every CSR at its power-on reset
// value and empty queues.
func New() *Dchip {
	d := &Dchip{}
	d.dsc = csr.NewRegister(0)
	d.dsc2 = csr.NewRegister(0)
	d.str = csr.NewRegister(0)
	d.str.SetField(fieldSTRIDDW, resetSTRIDDW)
	d.str.SetField(fieldSTRIDDR, resetSTRIDDR)
	d.dRev = csr.NewRegister(0)
	d.dRev.SetField(csr.Field{Offset: 0, Width: 8}, resetDRev)
	return d
}

func (d *Dchip) DSC() *csr.Register  { return d.dsc }
func (d *Dchip) DSC2() *csr.Register { return d.dsc2 }
func (d *Dchip) STR() *csr.Register  { return d.str }
func (d *Dchip) DREV() *csr.Register { return d.dRev }

// SetPchip1Present records CPM-derived system configuration (DSC.P1P):
// whether a second Pchip exists in this topology.
func (d *Dchip) SetPchip1Present(present bool) {
	v := uint64(0)
	if present {
		v = 1
	}
	d.dsc.SetField(fieldDSCP1P, v)
}

// Pchip1Present reports DSC.P1P, as last set by SetPchip1Present.
func (d *Dchip) Pchip1Present() bool {
	return d.dsc.GetField(fieldDSCP1P) != 0
}

// Execute services one PADbus command, moving data between the FPQ/TPQM/
// TPQP queues as HRM Table 7-2 specifies, and returns any data a Pchip
// transfer produced (empty for a pure Pchip->Dchip load).
func (d *Dchip) Execute(msg PADbusMsg) []uint64 {
	switch msg.Cmd {
	case PFPQ:
		d.fpq = append(d.fpq, msg.Data[:msg.Len]...)
		return nil

	case PPFPQ:
		// Stutter: each quadword from the Pchip is written into two
		// successive FPQ locations, so a later normal CPM transfer hands
		// the CPU the same byte(s) twice in succession (used for PIO read
		// byte/longword, per the header's Table 7-2 commentary).
		for i := 0; i < int(msg.Len); i++ {
			d.fpq = append(d.fpq, msg.Data[i], msg.Data[i])
		}
		return nil

	case TPQMP:
		n := int(msg.Len)
		if n > len(d.tpqm) {
			n = len(d.tpqm)
		}
		out := append([]uint64(nil), d.tpqm[:n]...)
		d.tpqm = d.tpqm[n:]
		return out

	case TPQPP:
		n := int(msg.Len)
		if n > len(d.tpqp) {
			n = len(d.tpqp)
		}
		out := append([]uint64(nil), d.tpqp[:n]...)
		d.tpqp = d.tpqp[n:]
		return out

	case PWMB:
		// Data returned from the Pchip destined for a DMA read-modify-write;
		// staged in the FPQ exactly like an ordinary P_FPQ load.
		d.fpq = append(d.fpq, msg.Data[:msg.Len]...)
		return nil

	case WMBP:
		// The merged RMW result moves from the Dchip to the Pchip via
		// TPQM, mirroring TPQM_P's drain.
		n := int(msg.Len)
		if n > len(d.tpqm) {
			n = len(d.tpqm)
		}
		out := append([]uint64(nil), d.tpqm[:n]...)
		d.tpqm = d.tpqm[n:]
		return out

	default:
		return nil
	}
}

// QueueToPchip stages a quadword for eventual transfer to a Pchip, on
// the monarch (TPQM) or paired (TPQP) path.
func (d *Dchip) QueueToPchip(paired bool, v uint64) {
	if paired {
		d.tpqp = append(d.tpqp, v)
	} else {
		d.tpqm = append(d.tpqm, v)
	}
}

// DrainFPQ removes and returns up to n quadwords staged from a Pchip
// (servicing the CPM command a Cchip issues to move FPQ data onward to
// a CPU or to memory).
func (d *Dchip) DrainFPQ(n int) []uint64 {
	if n > len(d.fpq) {
		n = len(d.fpq)
	}
	out := append([]uint64(nil), d.fpq[:n]...)
	d.fpq = d.fpq[n:]
	return out
}

// MergeQuadword implements the Dchip's data-merging function for a
// partial quadword write to memory or a DMA RMW: bytes selected by mask
// come from write, all others are preserved from original.
func MergeQuadword(original, write, mask uint64) uint64 {
	var result uint64
	for byteIdx := 0; byteIdx < 8; byteIdx++ {
		shift := uint(byteIdx * 8)
		byteMask := uint64(0xff) << shift
		if mask&(1<<uint(byteIdx)) != 0 {
			result |= write & byteMask
		} else {
			result |= original & byteMask
		}
	}
	return result
}
