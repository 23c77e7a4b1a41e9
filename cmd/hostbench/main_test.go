package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/hostbench/bench"
	"github.com/weiihann/hostbench/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hostbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestResolveConfigFlagsOverFile(t *testing.T) {
	path := writeConfig(t, `
iterations: 5000
workers: 3
probes: [cpu, memory]
dir: /var/tmp
`)

	flagCfg := config.Default()
	set := bindFlags(&flagCfg)
	require.NoError(t, set.Parse([]string{"--workers=2", "--probes=cpu"}))

	cfg, err := resolveConfig(set, path, flagCfg)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), cfg.Iterations)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, []string{config.ProbeCPU}, cfg.Probes)
	assert.Equal(t, "/var/tmp", cfg.Dir)
}

func TestResolveConfigWithoutFile(t *testing.T) {
	flagCfg := config.Default()
	set := bindFlags(&flagCfg)
	require.NoError(t, set.Parse([]string{"--primes=10", "--workers=2"}))

	cfg, err := resolveConfig(set, "", flagCfg)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.PrimeCount)
	assert.Equal(t, 40, cfg.ParallelPrimeCount)
	assert.NotZero(t, cfg.Seed)
}

func TestResolveConfigRejectsBadProbe(t *testing.T) {
	flagCfg := config.Default()
	set := bindFlags(&flagCfg)
	require.NoError(t, set.Parse([]string{"--probes=gpu"}))

	_, err := resolveConfig(set, "", flagCfg)
	assert.Error(t, err)
}

func TestRunCommandJSON(t *testing.T) {
	root := newRootCmd(discardLogger(), new(slog.LevelVar))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"run",
		"--probes=cpu",
		"--iterations=1000",
		"--primes=50",
		"--workers=2",
		"--seed=7",
		"--format=json",
	})

	require.NoError(t, root.Execute())

	var results bench.Results
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))

	require.NotNil(t, results.CPU)
	assert.Nil(t, results.Disk)
	assert.Nil(t, results.Memory)
	assert.Equal(t, 2, results.CPU.Workers)
	assert.Equal(t, uint64(229), results.CPU.LastSinglePrime)
}

func TestRunCommandReportsPartialResults(t *testing.T) {
	root := newRootCmd(discardLogger(), new(slog.LevelVar))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"run",
		"--probes=disk",
		"--dir=" + filepath.Join(t.TempDir(), "missing"),
		"--disk-gb=0",
		"--disk-iterations=1",
	})

	assert.Error(t, root.Execute())
	assert.Contains(t, out.String(), "## Benchmark Results")
}

func TestRenderAutoFallsBackToMarkdown(t *testing.T) {
	var out bytes.Buffer

	results := &bench.Results{RunID: "r"}
	require.NoError(t, render(&out, config.FormatAuto, results))

	assert.Contains(t, out.String(), "## Benchmark Results")
}
