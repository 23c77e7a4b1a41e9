// Package cpu measures compute throughput with a Monte Carlo π estimate
// and a trial-division prime search, each run on one goroutine and then
// across a fixed set of workers.
package cpu

import (
	"context"
	"log/slog"
	mrand "math/rand"
	"time"

	"github.com/weiihann/hostbench/measure"
	"github.com/weiihann/hostbench/pool"
)

// Result holds the CPU probe's measurements.
type Result struct {
	Workers int `json:"workers"`

	SingleIterations int64         `json:"single_iterations"`
	SinglePi         float64       `json:"single_pi"`
	SingleElapsed    time.Duration `json:"single_elapsed_ns"`

	MultiIterations int64         `json:"multi_iterations"`
	MultiPi         float64       `json:"multi_pi"`
	MultiElapsed    time.Duration `json:"multi_elapsed_ns"`

	PrimeCount          int           `json:"prime_count"`
	SinglePrimesElapsed time.Duration `json:"single_primes_elapsed_ns"`
	LastSinglePrime     uint64        `json:"last_single_prime"`

	ParallelPrimeCount int           `json:"parallel_prime_count"`
	MultiPrimesElapsed time.Duration `json:"multi_primes_elapsed_ns"`
	LastMultiPrime     uint64        `json:"last_multi_prime"`
}

// Config sizes a CPU probe run.
type Config struct {
	Iterations         int64
	ParallelIterations int64
	PrimeCount         int
	ParallelPrimeCount int
	Workers            int
}

// Estimate is the outcome of one Monte Carlo phase.
type Estimate struct {
	Pi      float64
	Elapsed time.Duration
	// Samples holds the sample count each worker drew.
	Samples []int64
}

// Probe runs the CPU workloads. Seed makes every phase reproducible.
type Probe struct {
	Seed   int64
	Logger *slog.Logger
}

// NewProbe creates a Probe.
func NewProbe(seed int64, logger *slog.Logger) *Probe {
	return &Probe{
		Seed:   seed,
		Logger: logger.With(slog.String("probe", "cpu")),
	}
}

// EstimatePi samples iterations points in the unit square and returns
// 4 × hits/iterations together with the hit count. Zero iterations
// return 0.
func EstimatePi(rng *mrand.Rand, iterations int64) (float64, int64) {
	var hits int64

	for range iterations {
		x := rng.Float64()
		y := rng.Float64()
		if x*x+y*y <= 1.0 {
			hits++
		}
	}

	if iterations <= 0 {
		return 0, 0
	}

	return 4.0 * float64(hits) / float64(iterations), hits
}

// MeasureSingle times one sampling loop on the calling goroutine.
func (p *Probe) MeasureSingle(iterations int64) Estimate {
	rng := mrand.New(mrand.NewSource(p.Seed))

	var pi float64

	elapsed := measure.Time(func() {
		pi, _ = EstimatePi(rng, iterations)
	})

	return Estimate{
		Pi:      pi,
		Elapsed: elapsed,
		Samples: []int64{max(iterations, 0)},
	}
}

// MeasureParallel splits iterations into workers equal chunks and runs one
// sampling loop per worker. The remainder of iterations/workers is
// dropped. The estimate is the plain mean of the per-worker estimates and
// Elapsed covers launch to join.
func (p *Probe) MeasureParallel(iterations int64, workers int) Estimate {
	workers = max(workers, 1)
	chunk := max(iterations, 0) / int64(workers)

	// Worker generators are seeded up front so the outcome does not
	// depend on scheduling.
	master := mrand.New(mrand.NewSource(p.Seed))
	rngs := make([]*mrand.Rand, workers)
	for w := range rngs {
		rngs[w] = mrand.New(mrand.NewSource(master.Int63()))
	}

	estimates := make([]float64, workers)
	samples := make([]int64, workers)

	elapsed := measure.Time(func() {
		_ = pool.Run(workers, func(w int) error {
			estimates[w], _ = EstimatePi(rngs[w], chunk)
			samples[w] = chunk

			return nil
		})
	})

	var sum float64
	for _, e := range estimates {
		sum += e
	}

	return Estimate{
		Pi:      sum / float64(workers),
		Elapsed: elapsed,
		Samples: samples,
	}
}

// Run executes the four CPU phases in order and returns their
// measurements.
func (p *Probe) Run(ctx context.Context, cfg Config) *Result {
	workers := max(cfg.Workers, 1)
	result := &Result{
		Workers:            workers,
		SingleIterations:   cfg.Iterations,
		MultiIterations:    cfg.ParallelIterations,
		PrimeCount:         cfg.PrimeCount,
		ParallelPrimeCount: cfg.ParallelPrimeCount,
	}

	p.Logger.InfoContext(ctx, "running monte carlo pi",
		slog.String("mode", "single"),
		slog.Int64("iterations", cfg.Iterations),
	)

	single := p.MeasureSingle(cfg.Iterations)
	result.SinglePi = single.Pi
	result.SingleElapsed = single.Elapsed

	p.Logger.InfoContext(ctx, "phase complete",
		slog.Duration("elapsed", single.Elapsed),
		slog.Float64("pi", single.Pi),
	)

	p.Logger.InfoContext(ctx, "running monte carlo pi",
		slog.String("mode", "parallel"),
		slog.Int64("iterations", cfg.ParallelIterations),
		slog.Int("workers", workers),
	)

	multi := p.MeasureParallel(cfg.ParallelIterations, workers)
	result.MultiPi = multi.Pi
	result.MultiElapsed = multi.Elapsed

	p.Logger.InfoContext(ctx, "phase complete",
		slog.Duration("elapsed", multi.Elapsed),
		slog.Float64("pi", multi.Pi),
	)

	p.Logger.InfoContext(ctx, "running prime search",
		slog.String("mode", "single"),
		slog.Int("count", cfg.PrimeCount),
	)

	var primes []uint64

	result.SinglePrimesElapsed = measure.Time(func() {
		primes = PrimesSingle(cfg.PrimeCount)
	})
	result.LastSinglePrime = last(primes)

	p.Logger.InfoContext(ctx, "phase complete",
		slog.Duration("elapsed", result.SinglePrimesElapsed),
		slog.Uint64("last_prime", result.LastSinglePrime),
	)

	p.Logger.InfoContext(ctx, "running prime search",
		slog.String("mode", "parallel"),
		slog.Int("count", cfg.ParallelPrimeCount),
		slog.Int("workers", workers),
	)

	result.MultiPrimesElapsed = measure.Time(func() {
		primes = PrimesParallel(cfg.ParallelPrimeCount, workers)
	})
	result.LastMultiPrime = last(primes)

	p.Logger.InfoContext(ctx, "phase complete",
		slog.Duration("elapsed", result.MultiPrimesElapsed),
		slog.Uint64("last_prime", result.LastMultiPrime),
	)

	return result
}

func last(primes []uint64) uint64 {
	if len(primes) == 0 {
		return 0
	}

	return primes[len(primes)-1]
}
