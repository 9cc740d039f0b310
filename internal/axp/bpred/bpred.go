// Package bpred implements the Alpha 21264 tournament branch predictor
// (§4.1): a local history table feeding a local saturating-counter
// predictor, a global-path-history-indexed global predictor, a chooser
// that arbitrates between the two, and a return-address stack.
//
// Core Features:
//   - Local history table: 1024 entries x 10-bit shift register, indexed
//     by low PC bits.
//   - Local predictor: 1024 x 3-bit saturating counters, indexed by local
//     history.
//   - Global predictor and chooser: 4096 entries x 2-bit saturating
//     counters each, both indexed by a 12-bit global path history.
//   - Return-address stack sized to the CPU's in-flight limit, with
//     defined wraparound on overflow and a deterministic (if
//     architecturally meaningless) value on underflow.
//
// Mode is configurable: fall-through (always not-taken), local-only,
// chooser (local vs global), or dynamic (the default tournament mode).
package bpred

const (
	localHistBits   = 10
	localHistSize   = 1 << localHistBits // 1024
	globalPathBits  = 12
	globalTableSize = 1 << globalPathBits // 4096

	localCounterMax = 7 // 3-bit saturating counter
	localCounterMid = 4 // top bit set => taken
	twoBitMax       = 3 // 2-bit saturating counter
)

// Mode selects how the predictor resolves predict().
type Mode int

const (
	ModeFallThrough Mode = iota
	ModeLocalOnly
	ModeChooser
	ModeDynamic
)

// Prediction is the full result of a predict() call, carrying every
// sub-predictor's opinion so update() can later adjust each independently.
type Prediction struct {
	Taken        bool
	LocalTaken   bool
	GlobalTaken  bool
	ChooseGlobal bool
}

// Predictor is the full tournament branch predictor for one CPU.
type Predictor struct {
	mode Mode

	localHistory [localHistSize]uint16 // 10-bit shift registers
	localCounter [localHistSize]uint8  // 3-bit saturating counters

	globalCounter [globalTableSize]uint8 // 2-bit saturating counters
	chooser       [globalTableSize]uint8 // 2-bit saturating counters

	globalPath uint16 // 12-bit global path history

	ras *ReturnStack
}

// New allocates a predictor in ModeDynamic with a return-address stack
// sized to depth (normally the CPU's in-flight instruction limit).
func New(depth int) *Predictor {
	p := &Predictor{mode: ModeDynamic, ras: NewReturnStack(depth)}
	p.Reset()
	return p
}

// SetMode changes the prediction mode.
func (p *Predictor) SetMode(m Mode) { p.mode = m }

func localIndex(pc uint64) uint16 {
	return uint16(pc>>2) & (localHistSize - 1)
}

// Predict returns the predicted direction for a branch at pc, along with
// each sub-predictor's raw opinion for later use in Update.
func (p *Predictor) Predict(pc uint64) Prediction {
	li := localIndex(pc)
	lh := p.localHistory[li] & (localHistSize - 1)

	localTaken := p.localCounter[lh] >= localCounterMid
	globalTaken := p.globalCounter[p.globalPath] >= 2
	chooseGlobal := p.chooser[p.globalPath] >= 2

	var taken bool
	switch p.mode {
	case ModeFallThrough:
		taken = false
	case ModeLocalOnly:
		taken = localTaken
	case ModeChooser, ModeDynamic:
		if chooseGlobal {
			taken = globalTaken
		} else {
			taken = localTaken
		}
	}

	return Prediction{
		Taken:        taken,
		LocalTaken:   localTaken,
		GlobalTaken:  globalTaken,
		ChooseGlobal: chooseGlobal,
	}
}

// Update applies the actual outcome of a previously predicted branch,
// per §4.1's training rules: the chooser moves toward whichever of
// local/global was actually correct when they disagreed, the local and
// global counters saturate toward the actual outcome, and both history
// registers shift in the actual outcome.
func (p *Predictor) Update(pc uint64, actualTaken bool, pred Prediction) {
	li := localIndex(pc)
	lh := p.localHistory[li] & (localHistSize - 1)

	localCorrect := pred.LocalTaken == actualTaken
	globalCorrect := pred.GlobalTaken == actualTaken

	if globalCorrect && !localCorrect {
		p.chooser[p.globalPath] = satInc(p.chooser[p.globalPath], twoBitMax)
	} else if localCorrect && !globalCorrect {
		p.chooser[p.globalPath] = satDec(p.chooser[p.globalPath])
	}

	if actualTaken {
		p.localCounter[lh] = satInc(p.localCounter[lh], localCounterMax)
		p.globalCounter[p.globalPath] = satInc(p.globalCounter[p.globalPath], twoBitMax)
	} else {
		p.localCounter[lh] = satDec(p.localCounter[lh])
		p.globalCounter[p.globalPath] = satDec(p.globalCounter[p.globalPath])
	}

	newLH := (lh << 1) | uint16(boolBit(actualTaken))
	p.localHistory[li] = newLH & (localHistSize - 1)

	p.globalPath = ((p.globalPath << 1) | uint16(boolBit(actualTaken))) & (globalTableSize - 1)
}

// RAS returns the predictor's return-address stack.
func (p *Predictor) RAS() *ReturnStack { return p.ras }

// Reset restores the predictor to its power-on state: all history and
// counters zeroed, return-address stack emptied.
func (p *Predictor) Reset() {
	for i := range p.localHistory {
		p.localHistory[i] = 0
		p.localCounter[i] = 0
	}
	for i := range p.globalCounter {
		p.globalCounter[i] = 0
		p.chooser[i] = 0
	}
	p.globalPath = 0
	p.ras.Reset()
}

func satInc(v, max uint8) uint8 {
	if v < max {
		return v + 1
	}
	return v
}

func satDec(v uint8) uint8 {
	if v > 0 {
		return v - 1
	}
	return v
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
