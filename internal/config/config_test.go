package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaultsForZeroFields(t *testing.T) {
	topo, err := Parse([]byte(`num_cpus: 2`))
	require.NoError(t, err)
	require.Equal(t, 2, topo.NumCPUs)
	require.Equal(t, 0, topo.NumPchips) // left zero; ToSystemConfig fills it in

	cfg := topo.ToSystemConfig()
	require.Equal(t, 2, cfg.NumCPUs)
	require.Equal(t, Default().NumPchips, cfg.NumPchips)
}

func TestParseFullTopology(t *testing.T) {
	yamlDoc := []byte(`
num_cpus: 4
num_pchips: 2
rob_capacity: 16
int_prf_size: 48
fp_prf_size: 48
itb_entries: 32
predictor_depth: 16
`)
	topo, err := Parse(yamlDoc)
	require.NoError(t, err)
	cfg := topo.ToSystemConfig()
	require.Equal(t, 4, cfg.NumCPUs)
	require.Equal(t, 2, cfg.NumPchips)
	require.Equal(t, 16, cfg.CPU.ROBCapacity)
	require.Equal(t, 48, cfg.CPU.IntPRFSize)
	require.Equal(t, 48, cfg.CPU.FPPRFSize)
	require.Equal(t, 32, cfg.CPU.ITBEntries)
	require.Equal(t, 16, cfg.CPU.PredictorDepth)
}

func TestOptionsOverrideParsedValues(t *testing.T) {
	topo, err := Parse([]byte(`num_cpus: 1`), WithNumCPUs(3), WithNumPchips(2))
	require.NoError(t, err)
	require.Equal(t, 3, topo.NumCPUs)
	require.Equal(t, 2, topo.NumPchips)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("num_cpus: [this is not an int"))
	require.Error(t, err)
}

func TestDefaultMatchesTsunamiDefaultConfig(t *testing.T) {
	d := Default()
	require.Equal(t, 1, d.NumCPUs)
	require.Equal(t, 1, d.NumPchips)
}
