// Package fbox implements the Alpha 21264 floating-point execution
// clusters (§4.5): two independent pipeline agents (Multiply, Other)
// draining the floating-point instruction queue, executing IEEE S/T
// format arithmetic, comparison, and integer conversion instructions.
//
// Per the specification's explicit floating-point non-goal, bit-exact
// IEEE rounding-mode and trap-enable behavior is not reproduced: the
// arithmetic itself is delegated to Go's native float32/float64
// operations (always effectively round-to-nearest-even), and the encoded
// rounding-mode/trap-enable sub-fields are not decoded: ExecuteFP sees
// only the function name. §4.5 point 2's "host
// rounding mode must be serialized with a mutex" requirement is honored
// structurally: fpuMutex brackets every arithmetic step, so a host
// runtime that does expose per-call rounding control has a single
// serialization point to hook into.
package fbox

import (
	"math"
	"sync"
)

// fpuMutex serializes the save-mode/compute/restore-mode bracket around
// every FP executor invocation (§4.5 point 2). Go does not expose a
// per-goroutine IEEE rounding mode, so there is nothing to save/restore
// today; the mutex still exists so the two FP clusters never interleave
// an arithmetic op in a way that would be unsafe if that control were
// added later (e.g. via cgo into a host FP environment).
var fpuMutex sync.Mutex

// RoundingMode is the rounding mode encoded in an FP instruction's
// function-code sub-field (§4.5 point 2). It only names the modes: no
// instruction's mode is decoded into it, and the arithmetic ignores it.
type RoundingMode int

const (
	RoundDynamic RoundingMode = iota
	RoundChopped
	RoundMinusInfinity
	RoundNormal
	RoundPlusInfinity
)

// ExecuteFP evaluates one FP-Operate instruction (classes FLTL, ITFP,
// FPTI; §4.5, §6). a and b are the raw 64-bit bit patterns held in the
// source physical registers (IEEE double for T-format values, with S
// format and integer reinterpretations converted as each function
// requires). result is the raw bit pattern to write back; trap reports
// a zero divisor (DIVS/DIVT) or a negative square-root operand
// (SQRTS/SQRTT). NaN operands never set trap.
func ExecuteFP(funcName string, a, b uint64) (result uint64, trap bool, ok bool) {
	fpuMutex.Lock()
	defer fpuMutex.Unlock()

	switch funcName {
	case "ADDS":
		return f32(float32bits(a) + float32bits(b)), false, true
	case "SUBS":
		return f32(float32bits(a) - float32bits(b)), false, true
	case "MULS":
		return f32(float32bits(a) * float32bits(b)), false, true
	case "DIVS":
		bv := float32bits(b)
		return f32(float32bits(a) / bv), bv == 0, true
	case "SQRTS":
		av := float32bits(a)
		return f32(float32(math.Sqrt(float64(av)))), av < 0, true

	case "ADDT":
		return f64(math.Float64frombits(a) + math.Float64frombits(b)), false, true
	case "SUBT":
		return f64(math.Float64frombits(a) - math.Float64frombits(b)), false, true
	case "MULT":
		return f64(math.Float64frombits(a) * math.Float64frombits(b)), false, true
	case "DIVT":
		bv := math.Float64frombits(b)
		return f64(math.Float64frombits(a) / bv), bv == 0, true
	case "SQRTT":
		av := math.Float64frombits(a)
		return f64(math.Sqrt(av)), av < 0, true

	case "CMPTUN":
		av, bv := math.Float64frombits(a), math.Float64frombits(b)
		return boolToU64(math.IsNaN(av) || math.IsNaN(bv)), false, true
	case "CMPTEQ":
		return fcompare(a, b, func(x, y float64) bool { return x == y }), false, true
	case "CMPTLT":
		return fcompare(a, b, func(x, y float64) bool { return x < y }), false, true
	case "CMPTLE":
		return fcompare(a, b, func(x, y float64) bool { return x <= y }), false, true

	case "CVTTS":
		return f32(float32(math.Float64frombits(a))), false, true
	case "CVTTQ":
		return uint64(int64(math.Float64frombits(a))), false, true
	case "CVTQS":
		return f32(float32(int64(a))), false, true
	case "CVTQT":
		return f64(float64(int64(a))), false, true

	case "ITOFS":
		return a & 0xFFFFFFFF, false, true
	case "ITOFT":
		return a, false, true // bit-identical register-to-register move
	case "FTOIS":
		return a & 0xFFFFFFFF, false, true
	case "FTOIT":
		return a, false, true
	}
	return 0, false, false
}

func float32bits(v uint64) float32 { return math.Float32frombits(uint32(v)) }
func f32(v float32) uint64         { return uint64(math.Float32bits(v)) }
func f64(v float64) uint64         { return math.Float64bits(v) }

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func fcompare(a, b uint64, cmp func(x, y float64) bool) uint64 {
	av, bv := math.Float64frombits(a), math.Float64frombits(b)
	if math.IsNaN(av) || math.IsNaN(bv) {
		return 0
	}
	return boolToU64(cmp(av, bv))
}
