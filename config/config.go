// Package config holds the sizing parameters of a benchmark run. Values
// come from defaults, an optional YAML file, and command-line flags, in
// that order of precedence, and are read-only once a run starts.
package config

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/cpuid/v2"
	"gopkg.in/yaml.v3"
)

// Probe names, in the order a run executes them.
const (
	ProbeDisk   = "disk"
	ProbeMemory = "memory"
	ProbeCPU    = "cpu"
)

// Report formats.
const (
	FormatAuto     = "auto"
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// GiB is the unit of the size settings.
const GiB = 1 << 30

// Config controls a benchmark run.
type Config struct {
	// Iterations is the single-thread Monte Carlo sample count.
	Iterations int64 `yaml:"iterations" json:"iterations"`
	// ParallelIterations is split across Workers; 0 derives it as
	// Iterations × Workers / 2.
	ParallelIterations int64 `yaml:"parallel_iterations" json:"parallel_iterations"`
	// PrimeCount is the single-thread prime search target.
	PrimeCount int `yaml:"prime_count" json:"prime_count"`
	// ParallelPrimeCount is the parallel target; 0 derives 4 × PrimeCount.
	ParallelPrimeCount int `yaml:"parallel_prime_count" json:"parallel_prime_count"`
	// Workers is the parallel worker count; 0 uses the physical cores.
	Workers int `yaml:"workers" json:"workers"`

	MemoryGB        int   `yaml:"memory_gb" json:"memory_gb"`
	ChaseLength     int   `yaml:"chase_length" json:"chase_length"`
	ChaseIterations int64 `yaml:"chase_iterations" json:"chase_iterations"`

	DiskGB         int    `yaml:"disk_gb" json:"disk_gb"`
	DiskIterations int64  `yaml:"disk_iterations" json:"disk_iterations"`
	Dir            string `yaml:"dir" json:"dir"`

	Probes []string `yaml:"probes" json:"probes"`
	// Seed drives every random source; 0 picks one from the clock.
	Seed int64 `yaml:"seed" json:"seed"`

	Format      string `yaml:"format" json:"-"`
	MetricsFile string `yaml:"metrics_file" json:"-"`
}

// Default returns the configuration of a full-size run.
func Default() Config {
	return Config{
		Iterations:      1_000_000_000,
		PrimeCount:      1_000_000,
		MemoryGB:        4,
		ChaseLength:     1 << 20,
		ChaseIterations: 10_000_000,
		DiskGB:          4,
		DiskIterations:  100_000,
		Dir:             ".",
		Probes:          []string{ProbeDisk, ProbeMemory, ProbeCPU},
		Format:          FormatAuto,
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Normalize clamps out-of-range values to the nearest safe setting,
// fills in derived values, and rejects unknown probe names and formats.
func (c Config) Normalize() (Config, error) {
	if c.Workers < 1 {
		c.Workers = DetectWorkers()
	}

	c.Iterations = max(c.Iterations, 1)
	if c.ParallelIterations <= 0 {
		c.ParallelIterations = max(mulSat(c.Iterations, int64(c.Workers))/2, int64(c.Workers))
	}

	c.PrimeCount = max(c.PrimeCount, 0)
	if c.ParallelPrimeCount <= 0 {
		c.ParallelPrimeCount = int(min(mulSat(int64(c.PrimeCount), 4), math.MaxInt))
	}

	c.MemoryGB = max(c.MemoryGB, 0)
	c.ChaseLength = max(c.ChaseLength, 1)
	c.ChaseIterations = max(c.ChaseIterations, 0)
	c.DiskGB = max(c.DiskGB, 0)
	c.DiskIterations = max(c.DiskIterations, 0)

	if c.Dir == "" {
		c.Dir = "."
	}

	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}

	probes, err := normalizeProbes(c.Probes)
	if err != nil {
		return c, err
	}

	c.Probes = probes

	if c.Format == "" {
		c.Format = FormatAuto
	}

	switch c.Format {
	case FormatAuto, FormatTable, FormatMarkdown, FormatJSON:
	default:
		return c, fmt.Errorf("unknown format %q", c.Format)
	}

	return c, nil
}

// normalizeProbes validates names and returns them in execution order
// without duplicates. An empty list selects every probe.
func normalizeProbes(names []string) ([]string, error) {
	order := []string{ProbeDisk, ProbeMemory, ProbeCPU}
	if len(names) == 0 {
		return order, nil
	}

	want := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if !slices.Contains(order, name) {
			return nil, fmt.Errorf("unknown probe %q (want one of %s)",
				name, strings.Join(order, ", "))
		}

		want[name] = true
	}

	probes := make([]string, 0, len(want))
	for _, name := range order {
		if want[name] {
			probes = append(probes, name)
		}
	}

	return probes, nil
}

// MemoryBytes is the memory buffer size in bytes. Sizes too large to
// represent saturate at math.MaxInt64 so the probe rejects them as
// exceeding the host instead of wrapping to zero.
func (c Config) MemoryBytes() int64 {
	return gibBytes(c.MemoryGB)
}

// DiskBytes is the large-block scratch file size in bytes, saturating
// like MemoryBytes.
func (c Config) DiskBytes() int64 {
	return gibBytes(c.DiskGB)
}

func gibBytes(gb int) int64 {
	return mulSat(int64(max(gb, 0)), GiB)
}

// mulSat multiplies two non-negative values, returning math.MaxInt64
// on overflow.
func mulSat(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}

	if a > math.MaxInt64/b {
		return math.MaxInt64
	}

	return a * b
}

// Enabled reports whether the named probe is selected.
func (c Config) Enabled(probe string) bool {
	return slices.Contains(c.Probes, probe)
}

// DetectWorkers returns the physical core count, falling back to the
// logical CPU count when the CPU does not report it.
func DetectWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}

	return max(runtime.NumCPU(), 1)
}
