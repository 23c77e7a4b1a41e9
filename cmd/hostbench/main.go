// Package main provides the CLI entry point for hostbench, a host
// performance benchmark for CPU, memory, and disk.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/weiihann/hostbench/bench"
	"github.com/weiihann/hostbench/config"
	"github.com/weiihann/hostbench/measure"
	"github.com/weiihann/hostbench/report"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	root := newRootCmd(logger, level)
	if err := root.Execute(); err != nil {
		logFailure(logger, err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "hostbench",
		Short: "Host CPU, memory, and disk benchmark",
		Long: `Hostbench measures the machine it runs on: CPU throughput with a
Monte Carlo pi estimate and a prime search, memory bandwidth and
pointer-chase latency, and disk throughput and IOPS against a scratch file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newInfoCmd())

	return root
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		configPath string
		flagCfg    = config.Default()
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the disk, memory, and CPU probes",
		Long: `Run the selected probes one at a time (disk, then memory, then CPU)
and print a report. If a probe fails the run stops, the results gathered so
far are still reported, and the command exits non-zero.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), configPath, flagCfg)
			if err != nil {
				return err
			}

			return runBenchmark(cmd.Context(), logger, cmd.OutOrStdout(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "",
		"YAML config file (flags override its values)")
	flags.AddFlagSet(bindFlags(&flagCfg))

	return cmd
}

// bindFlags returns a flag set writing into cfg. Its defaults are cfg's
// current values.
func bindFlags(cfg *config.Config) *pflag.FlagSet {
	flags := pflag.NewFlagSet("config", pflag.ContinueOnError)

	flags.Int64Var(&cfg.Iterations, "iterations", cfg.Iterations,
		"Single-thread Monte Carlo iterations")
	flags.Int64Var(&cfg.ParallelIterations, "parallel-iterations", cfg.ParallelIterations,
		"Parallel Monte Carlo iterations (0 = iterations*workers/2)")
	flags.IntVar(&cfg.PrimeCount, "primes", cfg.PrimeCount,
		"Primes to find on one thread")
	flags.IntVar(&cfg.ParallelPrimeCount, "parallel-primes", cfg.ParallelPrimeCount,
		"Primes to find in parallel (0 = 4*primes)")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers,
		"Parallel workers (0 = physical cores)")
	flags.IntVar(&cfg.MemoryGB, "memory-gb", cfg.MemoryGB,
		"Memory buffer size in GiB")
	flags.IntVar(&cfg.ChaseLength, "chase-length", cfg.ChaseLength,
		"Slots in the latency pointer chain")
	flags.Int64Var(&cfg.ChaseIterations, "chase-iterations", cfg.ChaseIterations,
		"Steps of the latency pointer chase")
	flags.IntVar(&cfg.DiskGB, "disk-gb", cfg.DiskGB,
		"Large-block scratch file size in GiB")
	flags.Int64Var(&cfg.DiskIterations, "disk-iterations", cfg.DiskIterations,
		"Small-block synced writes and reads")
	flags.StringVar(&cfg.Dir, "dir", cfg.Dir,
		"Directory for the disk scratch file")
	flags.StringSliceVar(&cfg.Probes, "probes", cfg.Probes,
		"Probes to run: disk, memory, cpu")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed,
		"Random seed (0 = use current time)")
	flags.StringVar(&cfg.Format, "format", cfg.Format,
		"Report format: auto, table, markdown, json")
	flags.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile,
		"Also write Prometheus textfile metrics to this path")

	return flags
}

// resolveConfig starts from the config file (or the defaults) and
// applies every flag the user set explicitly on top of it.
func resolveConfig(
	set *pflag.FlagSet,
	configPath string,
	flagCfg config.Config,
) (config.Config, error) {
	if configPath == "" {
		return flagCfg.Normalize()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	target := bindFlags(&cfg)

	var applyErr error

	set.Visit(func(f *pflag.Flag) {
		dst := target.Lookup(f.Name)
		if dst == nil || applyErr != nil {
			return
		}

		if src, ok := f.Value.(pflag.SliceValue); ok {
			applyErr = dst.Value.(pflag.SliceValue).Replace(src.GetSlice())

			return
		}

		applyErr = dst.Value.Set(f.Value.String())
	})

	if applyErr != nil {
		return cfg, fmt.Errorf("apply flags over %s: %w", configPath, applyErr)
	}

	return cfg.Normalize()
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	cfg config.Config,
) error {
	results, runErr := bench.NewRunner(cfg, logger).Run(ctx)

	// Partial results are still worth showing when a probe failed.
	if results != nil {
		if err := render(out, cfg.Format, results); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}

		if cfg.MetricsFile != "" {
			if err := report.WriteMetrics(cfg.MetricsFile, results); err != nil {
				return err
			}

			logger.InfoContext(ctx, "metrics written",
				slog.String("path", cfg.MetricsFile),
			)
		}
	}

	return runErr
}

func render(out io.Writer, format string, results *bench.Results) error {
	if format == config.FormatAuto {
		format = config.FormatMarkdown
		if f, ok := out.(*os.File); ok && isTerminal(f) {
			format = config.FormatTable
		}
	}

	switch format {
	case config.FormatJSON:
		return report.GenerateJSON(out, results)
	case config.FormatTable:
		return report.GenerateTable(out, results)
	default:
		return report.Generate(out, results)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the detected host and default worker count",
		RunE: func(cmd *cobra.Command, _ []string) error {
			host := bench.DetectHost()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "CPU:            %s\n", host.CPU)
			fmt.Fprintf(out, "Physical cores: %d\n", host.PhysicalCores)
			fmt.Fprintf(out, "Logical cores:  %d\n", host.LogicalCores)
			fmt.Fprintf(out, "Platform:       %s/%s\n", host.OS, host.Arch)
			fmt.Fprintf(out, "Go:             %s\n", host.GoVersion)
			fmt.Fprintf(out, "Default workers: %d\n", config.DetectWorkers())

			return nil
		},
	}
}

func logFailure(logger *slog.Logger, err error) {
	attrs := []any{slog.String("error", err.Error())}

	var phaseErr *measure.PhaseError
	if errors.As(err, &phaseErr) {
		attrs = append(attrs,
			slog.String("probe", phaseErr.Probe),
			slog.String("phase", phaseErr.Phase),
		)
	}

	logger.Error("benchmark failed", attrs...)
}
