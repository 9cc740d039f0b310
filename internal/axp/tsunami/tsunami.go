// Package tsunami assembles one or more axp21264 CPUs and a Tsunami/
// Typhoon (21274) chipset — one Cchip, one Dchip, and one or two Pchips —
// into a single system (§12's "System: wires N CPUs + Cchip + Dchip +
// Pchips together"). It is the outermost component package: cmd/tsunami's
// CLI builds one System from internal/config's topology and drives it.
package tsunami

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tsunami-core/axp21264/internal/axp/cchip"
	"github.com/tsunami-core/axp21264/internal/axp/cpu"
	"github.com/tsunami-core/axp21264/internal/axp/dchip"
	"github.com/tsunami-core/axp21264/internal/axp/mbox"
	"github.com/tsunami-core/axp21264/internal/axp/pchip"
	"github.com/tsunami-core/axp21264/internal/axp/sysbus"
)

// Config describes a system topology: how many CPUs share the memory
// array, and how many Pchips (hence PCI buses) the chipset exposes.
type Config struct {
	NumCPUs   int
	NumPchips int // 1 or 2
	CPU       cpu.Config
}

// DefaultConfig returns a single-CPU, single-Pchip topology sized for
// quick, deterministic runs.
func DefaultConfig() Config {
	return Config{
		NumCPUs:   1,
		NumPchips: 1,
		CPU:       cpu.DefaultConfig(),
	}
}

// System is one assembled Tsunami/Typhoon machine.
type System struct {
	cpus   []*cpu.CPU
	mem    *cpu.Memory
	cchip  *cchip.Cchip
	dchip  *dchip.Dchip
	pchips []*pchip.Pchip

	// lastPage tracks the most recently arbitrated address per memory
	// array, for the Cchip's page-hit-preferring arbitration (§4.8 step 5).
	lastPage [cchip.NumArrays]uint64

	log *slog.Logger
}

// New assembles a System per cfg: every CPU shares one backing Memory
// (the DRAM array the Cchip and Dchip arbitrate access to), and every
// Pchip's scatter-gather walker is wired to read that same memory.
func New(cfg Config) (*System, error) {
	if cfg.NumCPUs < 1 {
		return nil, fmt.Errorf("tsunami: NumCPUs must be at least 1, got %d", cfg.NumCPUs)
	}
	if cfg.NumPchips < 1 || cfg.NumPchips > 2 {
		return nil, fmt.Errorf("tsunami: NumPchips must be 1 or 2, got %d", cfg.NumPchips)
	}

	s := &System{
		mem:   cpu.NewMemory(),
		cchip: cchip.New(cfg.NumCPUs),
		dchip: dchip.New(),
		log:   slog.Default(),
	}

	for i := 0; i < cfg.NumCPUs; i++ {
		c := cpu.New(cfg.CPU, s.mem)
		sourceID := uint32(i)
		c.SetSystemBus(func(msg sysbus.Message) (sysbus.SysDc, [8]uint64) {
			return s.serviceRequest(sourceID, msg)
		})
		s.cpus = append(s.cpus, c)
	}

	for i := 0; i < cfg.NumPchips; i++ {
		p := pchip.New(uint32(i))
		p.SetSGReader(s.readQuadword)
		s.pchips = append(s.pchips, p)
	}
	if cfg.NumPchips == 2 {
		s.dchip.SetPchip1Present(true)
	}

	return s, nil
}

// readQuadword combines two adjacent words from the shared memory into
// the 8-byte value a Pchip scatter-gather PTE read expects.
func (s *System) readQuadword(byteAddr uint64) uint64 {
	base := byteAddr / 4
	lo := uint64(s.mem.ReadWord(base))
	hi := uint64(s.mem.ReadWord(base + 1))
	return lo | hi<<32
}

// CPU returns the i'th CPU in the topology.
func (s *System) CPU(i int) *cpu.CPU { return s.cpus[i] }

// NumCPUs reports how many CPUs this system was built with.
func (s *System) NumCPUs() int { return len(s.cpus) }

// Cchip, Dchip, and Pchip expose the chipset components for CSR
// inspection and test setup.
func (s *System) Cchip() *cchip.Cchip      { return s.cchip }
func (s *System) Dchip() *dchip.Dchip      { return s.dchip }
func (s *System) Pchip(i int) *pchip.Pchip { return s.pchips[i] }

// Memory returns the DRAM array shared by every CPU and the chipset.
func (s *System) Memory() *cpu.Memory { return s.mem }

// Step advances every CPU by one cycle and ticks the Cchip's refresh
// counter once (§4.8's "at intervals determined by MTR.RI" rule). Each
// CPU's own Dcache-miss traffic routes through serviceRequest as it
// occurs, synchronously, within that CPU's Step call.
func (s *System) Step() {
	for _, c := range s.cpus {
		c.Step()
	}
	s.cchip.MaybeRefresh()
}

// Run drives every CPU's own concurrent thread set (§5) until ctx is
// cancelled, using the same first-error-cancels-the-group supervision
// cpu.CPU.Run already uses for its own pipeline goroutines.
func (s *System) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range s.cpus {
		c := c
		g.Go(func() error { return c.Run(ctx) })
	}
	return g.Wait()
}

// RequestShutdown asks every CPU to wind down at its next suspension
// point (§5).
func (s *System) RequestShutdown() {
	for _, c := range s.cpus {
		c.RequestShutdown()
	}
}

// serviceRequest implements the system-bus side of one CPU's Cbox
// request (§4.7/§4.8): enqueue it into the Cchip array its address maps
// to, dispatch and service whatever coherence probes the request demands
// of every other CPU, arbitrate it onto the shared memory array, apply it
// against backing Memory, and return the chipset's completion code and
// carried data.
//
// This resolves synchronously within the calling CPU's own Step/Run
// goroutine, since nothing else drives the Cchip's phases forward. That
// is airtight for the default single-CPU topology (DispatchProbes sends
// nothing when there is only one CPU) and for any Step()-driven multi-CPU
// use; a multi-CPU topology driven concurrently via Run would need
// serviceProbes below to reach into another CPU's Mbox without holding
// that CPU's own mutex, a data race this pass does not attempt to fix.
func (s *System) serviceRequest(sourceID uint32, msg sysbus.Message) (sysbus.SysDc, [8]uint64) {
	arrayIdx := int((msg.Address >> 6) % cchip.NumArrays)

	slot, ok := s.cchip.Enqueue(arrayIdx, cchip.Entry{
		SourceID: sourceID,
		ReqID:    msg.ID,
		Command:  msg.Command,
		Addr:     msg.Address,
		Mask:     msg.Mask,
	})
	if !ok {
		s.log.Warn("cchip array full, dropping request", "array", arrayIdx, "addr", msg.Address)
		return sysbus.SysDcNop, [8]uint64{}
	}

	for i := 0; i < 2 && !s.cchip.Ready(arrayIdx, slot); i++ {
		if probes := s.cchip.DispatchProbes(arrayIdx); len(probes) > 0 {
			s.serviceProbes(arrayIdx, slot, sourceID, probes[0])
		}
	}

	if _, ok := s.cchip.Arbitrate(arrayIdx, s.lastPage[arrayIdx]); !ok {
		s.log.Warn("cchip arbitration not ready", "array", arrayIdx, "slot", slot)
	}
	s.lastPage[arrayIdx] = msg.Address

	data := s.applyToMemory(msg)
	resp := s.cchip.Complete(arrayIdx, slot)
	return resp.Sys, data
}

// serviceProbes answers one outstanding coherence probe on behalf of
// every CPU other than sourceID, bypassing each CPU's Cbox probe-queue
// channel (PushProbe/NextProbe) since this synchronous path already has
// direct access to every CPU's own Mbox.
func (s *System) serviceProbes(arrayIdx, slot int, sourceID uint32, probe sysbus.ProbeMessage) {
	invalidate := probe.Next == sysbus.NextTransition1 || probe.Next == sysbus.NextTransition3
	for i, c := range s.cpus {
		if uint32(i) == sourceID {
			continue
		}
		status := c.Mbox().ServiceProbe(probe.Address, invalidate)
		held := status != mbox.ProbeMiss
		dirty := status == mbox.ProbeHitDirty || status == mbox.ProbeHitSharedDirty
		s.cchip.ServiceProbeResponse(arrayIdx, slot, uint32(i), held, dirty)
	}
}

// applyToMemory performs the DRAM access a Cchip-arbitrated request
// authorizes (§4.8 step 5/6): a victim-block writeback updates backing
// Memory; every other command is a line read, the fill data the
// requesting CPU's Mbox/Dcache needs.
func (s *System) applyToMemory(msg sysbus.Message) [8]uint64 {
	switch msg.Command {
	case sysbus.CPUWrVictimBlk, sysbus.CPUCleanVictimBlk:
		s.writeQuadwords(msg.Address, msg.Data)
		return msg.Data
	default:
		return s.readQuadwords(msg.Address)
	}
}

func (s *System) readQuadwords(byteAddr uint64) (data [8]uint64) {
	base := byteAddr &^ 0x3F
	for i := range data {
		data[i] = s.readQuadword(base + uint64(i*8))
	}
	return data
}

func (s *System) writeQuadwords(byteAddr uint64, data [8]uint64) {
	base := byteAddr &^ 0x3F
	for i, qw := range data {
		wordBase := (base + uint64(i*8)) / 4
		s.mem.WriteWord(wordBase, uint32(qw))
		s.mem.WriteWord(wordBase+1, uint32(qw>>32))
	}
}
