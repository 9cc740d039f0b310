// Package config loads a system topology description — CPU count, ROB
// and physical register file sizing, and Pchip count — from YAML (§10's
// ambient-stack configuration layer), the idiomatic Go replacement for
// the original source's AXP_Configure.c .ini-style system description.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tsunami-core/axp21264/internal/axp/cpu"
	"github.com/tsunami-core/axp21264/internal/axp/tlb"
	"github.com/tsunami-core/axp21264/internal/axp/tsunami"
)

// Topology is the YAML-serializable description of a system to build.
// Zero-valued fields fall back to tsunami.DefaultConfig's sizing.
type Topology struct {
	NumCPUs   int `yaml:"num_cpus"`
	NumPchips int `yaml:"num_pchips"`

	ROBCapacity    int `yaml:"rob_capacity"`
	IntPRFSize     int `yaml:"int_prf_size"`
	FPPRFSize      int `yaml:"fp_prf_size"`
	ITBEntries     int `yaml:"itb_entries"`
	PredictorDepth int `yaml:"predictor_depth"`
}

// Option customizes a Topology after it has been loaded, for CLI flags
// that override specific fields without requiring a full file rewrite.
type Option func(*Topology)

// WithNumCPUs overrides the loaded topology's CPU count.
func WithNumCPUs(n int) Option {
	return func(t *Topology) { t.NumCPUs = n }
}

// WithNumPchips overrides the loaded topology's Pchip count.
func WithNumPchips(n int) Option {
	return func(t *Topology) { t.NumPchips = n }
}

// Load reads and parses a YAML topology file at path.
func Load(path string, opts ...Option) (Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data, opts...)
}

// Parse decodes YAML topology data directly, for tests and for embedding
// a default topology without a file on disk.
func Parse(data []byte, opts ...Option) (Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Topology{}, fmt.Errorf("config: parsing topology: %w", err)
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t, nil
}

// Default returns the topology tsunami.DefaultConfig builds, as a
// Topology value a CLI can print or further override.
func Default() Topology {
	d := tsunami.DefaultConfig()
	return Topology{
		NumCPUs:        d.NumCPUs,
		NumPchips:      d.NumPchips,
		ROBCapacity:    d.CPU.ROBCapacity,
		IntPRFSize:     d.CPU.IntPRFSize,
		FPPRFSize:      d.CPU.FPPRFSize,
		ITBEntries:     d.CPU.ITBEntries,
		PredictorDepth: d.CPU.PredictorDepth,
	}
}

// ToSystemConfig converts a Topology into a tsunami.Config, applying
// tsunami.DefaultConfig's sizing for any field left at its zero value.
func (t Topology) ToSystemConfig() tsunami.Config {
	def := tsunami.DefaultConfig()

	cfg := tsunami.Config{
		NumCPUs:   orDefault(t.NumCPUs, def.NumCPUs),
		NumPchips: orDefault(t.NumPchips, def.NumPchips),
		CPU: cpu.Config{
			ROBCapacity:    orDefault(t.ROBCapacity, def.CPU.ROBCapacity),
			IntPRFSize:     orDefault(t.IntPRFSize, def.CPU.IntPRFSize),
			FPPRFSize:      orDefault(t.FPPRFSize, def.CPU.FPPRFSize),
			ITBEntries:     orDefault(t.ITBEntries, def.CPU.ITBEntries),
			PredictorDepth: orDefault(t.PredictorDepth, def.CPU.PredictorDepth),
		},
	}
	if cfg.CPU.ITBEntries == 0 {
		cfg.CPU.ITBEntries = tlb.DefaultEntries
	}
	return cfg
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Build loads a Topology from path and assembles the tsunami.System it
// describes.
func Build(path string, opts ...Option) (*tsunami.System, error) {
	t, err := Load(path, opts...)
	if err != nil {
		return nil, err
	}
	return tsunami.New(t.ToSystemConfig())
}
