package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg, err := Default().Normalize()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Equal(t, cfg.Iterations*int64(cfg.Workers)/2, cfg.ParallelIterations)
	assert.Equal(t, 4*cfg.PrimeCount, cfg.ParallelPrimeCount)
	assert.Equal(t, []string{ProbeDisk, ProbeMemory, ProbeCPU}, cfg.Probes)
	assert.NotZero(t, cfg.Seed)
}

func TestNormalizeClamps(t *testing.T) {
	cfg, err := Config{
		Iterations:      -5,
		PrimeCount:      -1,
		Workers:         4,
		MemoryGB:        -2,
		ChaseLength:     0,
		ChaseIterations: -1,
		DiskGB:          -1,
		DiskIterations:  -10,
		Seed:            7,
	}.Normalize()
	require.NoError(t, err)

	assert.Equal(t, int64(1), cfg.Iterations)
	assert.Equal(t, int64(4), cfg.ParallelIterations)
	assert.Equal(t, 0, cfg.PrimeCount)
	assert.Equal(t, 0, cfg.ParallelPrimeCount)
	assert.Equal(t, 0, cfg.MemoryGB)
	assert.Equal(t, 1, cfg.ChaseLength)
	assert.Equal(t, int64(0), cfg.ChaseIterations)
	assert.Equal(t, 0, cfg.DiskGB)
	assert.Equal(t, int64(0), cfg.DiskIterations)
	assert.Equal(t, ".", cfg.Dir)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, FormatAuto, cfg.Format)
}

func TestNormalizeSaturatesParallelSizing(t *testing.T) {
	cfg, err := Config{
		Iterations: 1 << 62,
		PrimeCount: math.MaxInt,
		Workers:    4,
	}.Normalize()
	require.NoError(t, err)

	assert.Equal(t, int64(math.MaxInt64/2), cfg.ParallelIterations)
	assert.Equal(t, math.MaxInt, cfg.ParallelPrimeCount)
}

func TestSizeBytes(t *testing.T) {
	tests := []struct {
		gb   int
		want int64
	}{
		{0, 0},
		{-1, 0},
		{1, GiB},
		{4, 4 * GiB},
		{math.MaxInt, math.MaxInt64},
	}

	for _, tt := range tests {
		cfg := Config{MemoryGB: tt.gb, DiskGB: tt.gb}

		assert.Equal(t, tt.want, cfg.MemoryBytes(), "MemoryBytes(%d)", tt.gb)
		assert.Equal(t, tt.want, cfg.DiskBytes(), "DiskBytes(%d)", tt.gb)
	}
}

func TestNormalizeKeepsExplicitParallelSizing(t *testing.T) {
	cfg, err := Config{
		Iterations:         100,
		ParallelIterations: 333,
		PrimeCount:         10,
		ParallelPrimeCount: 15,
		Workers:            2,
	}.Normalize()
	require.NoError(t, err)

	assert.Equal(t, int64(333), cfg.ParallelIterations)
	assert.Equal(t, 15, cfg.ParallelPrimeCount)
}

func TestNormalizeProbes(t *testing.T) {
	cfg, err := Config{Probes: []string{"CPU", " disk ", "cpu"}}.Normalize()
	require.NoError(t, err)

	assert.Equal(t, []string{ProbeDisk, ProbeCPU}, cfg.Probes)
	assert.True(t, cfg.Enabled(ProbeCPU))
	assert.False(t, cfg.Enabled(ProbeMemory))
}

func TestNormalizeRejectsUnknown(t *testing.T) {
	_, err := Config{Probes: []string{"gpu"}}.Normalize()
	assert.ErrorContains(t, err, `unknown probe "gpu"`)

	_, err = Config{Format: "html"}.Normalize()
	assert.ErrorContains(t, err, `unknown format "html"`)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostbench.yaml")
	data := []byte(`
iterations: 5000
workers: 3
memory_gb: 1
probes: [memory, cpu]
seed: 99
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), cfg.Iterations)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 1, cfg.MemoryGB)
	assert.Equal(t, []string{"memory", "cpu"}, cfg.Probes)
	assert.Equal(t, int64(99), cfg.Seed)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().DiskIterations, cfg.DiskIterations)
	assert.Equal(t, Default().ChaseLength, cfg.ChaseLength)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [1, 2"), 0o644))

	_, err = Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestDetectWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, DetectWorkers(), 1)
}
