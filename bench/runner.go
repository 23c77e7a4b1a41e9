package bench

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/weiihann/hostbench/config"
	"github.com/weiihann/hostbench/cpu"
	"github.com/weiihann/hostbench/disk"
	"github.com/weiihann/hostbench/memory"
)

// Runner executes the selected probes strictly one at a time so they
// never contend for the same CPU, memory, or disk.
type Runner struct {
	Config config.Config
	Logger *slog.Logger
}

// NewRunner creates a Runner for a normalized configuration.
func NewRunner(cfg config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		Config: cfg,
		Logger: logger,
	}
}

// Run executes disk, memory, then CPU, skipping probes the configuration
// does not select. The first failure stops the run: the returned Results
// still carry the records of the probes that finished.
func (r *Runner) Run(ctx context.Context) (*Results, error) {
	cfg := r.Config

	results := &Results{
		RunID:   uuid.NewString(),
		Started: time.Now().UTC(),
		Host:    DetectHost(),
		Config:  cfg,
	}

	logger := r.Logger.With(slog.String("run_id", results.RunID))

	logger.InfoContext(ctx, "starting benchmark",
		slog.Any("probes", cfg.Probes),
		slog.Int("workers", cfg.Workers),
		slog.Int64("seed", cfg.Seed),
		slog.String("cpu", results.Host.CPU),
	)

	steps := []struct {
		name string
		run  func() error
	}{
		{config.ProbeDisk, func() error {
			probe := disk.NewProbe(cfg.Dir, logger)

			res, err := probe.Run(ctx, disk.Config{
				LargeSize:       cfg.DiskBytes(),
				SmallIterations: cfg.DiskIterations,
			})
			results.Disk = res

			return err
		}},
		{config.ProbeMemory, func() error {
			probe := memory.NewProbe(cfg.Seed, cfg.Workers, logger)

			res, err := probe.Run(ctx, memory.Config{
				Size:            cfg.MemoryBytes(),
				ChaseLength:     cfg.ChaseLength,
				ChaseIterations: cfg.ChaseIterations,
			})
			results.Memory = res

			return err
		}},
		{config.ProbeCPU, func() error {
			probe := cpu.NewProbe(cfg.Seed, logger)

			results.CPU = probe.Run(ctx, cpu.Config{
				Iterations:         cfg.Iterations,
				ParallelIterations: cfg.ParallelIterations,
				PrimeCount:         cfg.PrimeCount,
				ParallelPrimeCount: cfg.ParallelPrimeCount,
				Workers:            cfg.Workers,
			})

			return nil
		}},
	}

	for _, step := range steps {
		if !cfg.Enabled(step.name) {
			logger.DebugContext(ctx, "probe skipped", slog.String("probe", step.name))

			continue
		}

		start := time.Now()

		// Probe errors already name the probe and phase.
		if err := step.run(); err != nil {
			return results, err
		}

		logger.InfoContext(ctx, "probe finished",
			slog.String("probe", step.name),
			slog.Duration("wall_time", time.Since(start)),
		)
	}

	logger.InfoContext(ctx, "benchmark complete")

	return results, nil
}
