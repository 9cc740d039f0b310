// Package pchip implements a Tsunami/Typhoon (21274) Pchip: the bridge
// between one PCI bus and the rest of the system (§4.10). Its headline
// job is translating PCI-bus addresses issued by a PCI master into
// system physical addresses through up to four independently
// configurable windows (HRM Table 10-35..10-39's WSBA/WSM/TBA CSRs),
// either as a direct alias into a contiguous physical region or, when
// scatter-gather is enabled, through an in-memory page table the window
// points at. A real system has one or two Pchips (§4.10); this package
// models one, and package tsunami instantiates two when a topology asks
// for a dual-PCI-bus configuration.
package pchip

import (
	"github.com/tsunami-core/axp21264/internal/axp/csr"
)

// NumWindows is the number of address-translation windows each Pchip
// exposes (WSBA0..WSBA3/WSM0..WSM3/TBA0..TBA3).
const NumWindows = 4

// pageSize is the scatter-gather page size a window's table entries map
// (HRM's 8KB SG page, matching the Dchip/Cchip's MTR page-hit unit).
const pageSize = 8192

// Window is one Pchip address-translation window (WSBAn/WSMn/TBAn).
type Window struct {
	Enabled       bool
	ScatterGather bool
	DAC           bool   // window 3 only: dense/sparse dual-address-cycle space
	Base          uint64 // WSBAn.addr: PCI-side window base
	Mask          uint64 // WSMn.am: which address bits vary within the window
	TransBase     uint64 // TBAn.addr: direct-map physical base, or SG page-table base
}

// Pchip is one PCI bridge chip.
type Pchip struct {
	id      uint32
	windows [NumWindows]Window

	wsba [NumWindows]*csr.Register
	wsm  [NumWindows]*csr.Register
	tba  [NumWindows]*csr.Register
	pctl *csr.Register
	plat *csr.Register

	// readSGEntry reads one 8-byte scatter-gather PTE from system memory
	// at a physical address; nil until wired by the owning system driver,
	// since this package has no memory of its own.
	readSGEntry func(physAddr uint64) uint64
}

// WSBA/WSM/PCTL field layouts (HRM Table 10-35/10-37/10-40), named only
// for the fields this package reads or writes.
var (
	fieldWSBAAddr = csr.Field{Offset: 20, Width: 12} // bits <31:20>, page-aligned base
	fieldWSBASG   = csr.Field{Offset: 1, Width: 1}
	fieldWSBAEna  = csr.Field{Offset: 0, Width: 1}
	fieldWSBA3DAC = csr.Field{Offset: 48, Width: 1}

	fieldWSMAM = csr.Field{Offset: 20, Width: 12} // bits <31:20>, same shape as WSBA.addr

	fieldTBAAddr = csr.Field{Offset: 10, Width: 22} // bits <31:10>

	fieldPCTLPTPMax = csr.Field{Offset: 25, Width: 3}
	fieldPCTLCRQMax = csr.Field{Offset: 21, Width: 3}
	fieldPCTLCDQMax = csr.Field{Offset: 16, Width: 3}
)

// Reset power-on values (AXP_21274_PchipInit): every window disabled,
// window3's scatter-gather forced on at reset (the real chip's WSBA3
// reset value has SG=enable even though the window itself starts
// disabled), PCTL.PTPMAX=2, PCTL.CRQMAX=1, PCTL.CDQMAX=1.
const (
	resetPTPMax = 2
	resetCRQMax = 1
	resetCDQMax = 1
)

// New constructs a Pchip with id (0 or 1, selecting which of the two
// possible PCI buses this bridge serves) and every CSR at its power-on
// reset value.
func New(id uint32) *Pchip {
	p := &Pchip{id: id}
	for i := 0; i < NumWindows; i++ {
		p.wsba[i] = csr.NewRegister(0)
		p.wsm[i] = csr.NewRegister(0)
		p.tba[i] = csr.NewRegister(0)
	}
	// WSBA3's scatter-gather bit resets enabled, per AXP_21274_PchipInit.
	p.wsba[3].SetField(fieldWSBASG, 1)

	p.pctl = csr.NewRegister(0)
	p.pctl.SetField(fieldPCTLPTPMax, resetPTPMax)
	p.pctl.SetField(fieldPCTLCRQMax, resetCRQMax)
	p.pctl.SetField(fieldPCTLCDQMax, resetCDQMax)
	p.plat = csr.NewRegister(0)
	return p
}

// ID reports which PCI bus (0 or 1) this bridge serves.
func (p *Pchip) ID() uint32 { return p.id }

func (p *Pchip) PCTL() *csr.Register { return p.pctl }
func (p *Pchip) PLAT() *csr.Register { return p.plat }

// SetSGReader installs the callback used to read a scatter-gather page
// table entry out of system memory; the owning system driver wires this
// to its DRAM model once assembled.
func (p *Pchip) SetSGReader(read func(physAddr uint64) uint64) {
	p.readSGEntry = read
}

// ConfigureWindow programs window n's WSBA/WSM/TBA from software-visible
// field values, mirroring a driver writing the three CSRs directly.
func (p *Pchip) ConfigureWindow(n int, enabled, scatterGather bool, base, mask, transBase uint64) {
	w := &p.windows[n]
	w.Enabled = enabled
	w.ScatterGather = scatterGather
	w.Base = base
	w.Mask = mask
	w.TransBase = transBase

	ena := uint64(0)
	if enabled {
		ena = 1
	}
	sg := uint64(0)
	if scatterGather {
		sg = 1
	}
	p.wsba[n].SetField(fieldWSBAAddr, base>>20)
	p.wsba[n].SetField(fieldWSBASG, sg)
	p.wsba[n].SetField(fieldWSBAEna, ena)
	p.wsm[n].SetField(fieldWSMAM, mask>>20)
	p.tba[n].SetField(fieldTBAAddr, transBase>>10)
}

// matches reports whether pciAddr falls within window n (HRM 3.2: an
// address hits the window when the bits not covered by WSM.am agree
// with WSBA.addr).
func (w *Window) matches(pciAddr uint64) bool {
	if !w.Enabled {
		return false
	}
	return pciAddr&^w.Mask == w.Base&^w.Mask
}

// Translate converts a PCI-bus address issued by a bus master into a
// system physical address (§4.10), selecting the first enabled window
// that claims it. ok is false if no window claims the address (a
// target-abort condition on real hardware).
func (p *Pchip) Translate(pciAddr uint64) (physAddr uint64, ok bool) {
	for i := range p.windows {
		w := &p.windows[i]
		if !w.matches(pciAddr) {
			continue
		}
		if !w.ScatterGather {
			// Direct-mapped: the offset within the window is added to the
			// window's translated base.
			offset := pciAddr & w.Mask
			return w.TransBase + offset, true
		}
		return p.translateScatterGather(w, pciAddr)
	}
	return 0, false
}

// translateScatterGather walks the window's single-level page table
// (HRM 3.2's SG map: an 8-byte PTE per 8KB page, table rooted at
// TBAn.addr) to resolve one PCI page to its physical frame.
func (p *Pchip) translateScatterGather(w *Window, pciAddr uint64) (uint64, bool) {
	if p.readSGEntry == nil {
		return 0, false
	}
	pageOffset := pciAddr & (pageSize - 1)
	pageIndex := (pciAddr & w.Mask) / pageSize
	pte := p.readSGEntry(w.TransBase + pageIndex*8)
	const pteValid = 1 << 0
	if pte&pteValid == 0 {
		return 0, false
	}
	frame := (pte >> 1) << 13 // PTE<31:1> is the physical page frame number
	return frame + pageOffset, true
}
