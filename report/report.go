// Package report renders benchmark results as markdown, terminal tables,
// JSON, or Prometheus textfile metrics.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/weiihann/hostbench/bench"
)

// section is one titled table of the report. Renderers only decide how
// to draw it.
type section struct {
	title   string
	headers []string
	rows    [][]string
	notes   []string
	skipped bool
}

// Generate writes markdown tables for the given results.
func Generate(w io.Writer, results *bench.Results) error {
	if results == nil {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Host: %s (%s)\n", hostLine(results.Host), results.RunID)

	for _, s := range sections(results) {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "### %s\n", s.title)
		fmt.Fprintln(w)

		if s.skipped {
			fmt.Fprintln(w, "_skipped_")

			continue
		}

		fmt.Fprintln(w, "| "+strings.Join(s.headers, " | ")+" |")

		rule := make([]string, len(s.headers))
		for i, h := range s.headers {
			rule[i] = strings.Repeat("-", max(len(h), 3))
		}
		fmt.Fprintln(w, "|-"+strings.Join(rule, "-|-")+"-|")

		for _, row := range s.rows {
			fmt.Fprintln(w, "| "+strings.Join(row, " | ")+" |")
		}

		if len(s.notes) > 0 {
			fmt.Fprintln(w)
			for _, note := range s.notes {
				fmt.Fprintln(w, note)
			}
		}
	}

	return nil
}

// GenerateJSON writes results as JSON to w.
func GenerateJSON(w io.Writer, results *bench.Results) error {
	if results == nil {
		return fmt.Errorf("no results to report")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}

func sections(results *bench.Results) []section {
	return []section{
		cpuSection(results),
		memorySection(results),
		diskSection(results),
	}
}

func cpuSection(results *bench.Results) section {
	s := section{title: "CPU"}

	r := results.CPU
	if r == nil {
		s.skipped = true

		return s
	}

	s.headers = []string{
		"Test",
		"Single Thread",
		fmt.Sprintf("Multi Thread (%d)", r.Workers),
	}
	s.rows = [][]string{
		{
			"Monte Carlo π",
			formatDuration(r.SingleElapsed),
			formatDuration(r.MultiElapsed),
		},
		{
			fmt.Sprintf("Primes (%s / %s)",
				humanize.Comma(int64(r.PrimeCount)),
				humanize.Comma(int64(r.ParallelPrimeCount))),
			formatDuration(r.SinglePrimesElapsed),
			formatDuration(r.MultiPrimesElapsed),
		},
	}
	s.notes = []string{
		fmt.Sprintf("Single thread π ≈ %.6f", r.SinglePi),
		fmt.Sprintf("Multi thread π ≈ %.6f", r.MultiPi),
	}

	return s
}

func memorySection(results *bench.Results) section {
	s := section{title: "Memory"}

	r := results.Memory
	if r == nil {
		s.skipped = true

		return s
	}

	s.headers = []string{"Test", "Bandwidth"}
	s.rows = [][]string{
		{"Sequential Read", formatRate(r.SequentialRead)},
		{"Sequential Write", formatRate(r.SequentialWrite)},
		{"Random Read", formatRate(r.RandomRead)},
		{"Random Write", formatRate(r.RandomWrite)},
	}
	s.notes = []string{
		fmt.Sprintf("Buffer: %s, latency: %.1f ns over %s slots",
			formatSize(r.Size), r.LatencyNs,
			humanize.Comma(int64(r.ChaseLength))),
	}

	return s
}

func diskSection(results *bench.Results) section {
	s := section{title: "Disk"}

	r := results.Disk
	if r == nil {
		s.skipped = true

		return s
	}

	s.headers = []string{"Test", "Read", "Write"}
	s.rows = [][]string{
		{
			formatSize(r.LargeBytes) + " sequential",
			formatRate(r.LargeRead),
			formatRate(r.LargeWrite),
		},
		{
			formatSize(int64(r.BlockSize)) + " IOPS",
			formatIOPS(r.SmallReadIOPS),
			formatIOPS(r.SmallWriteIOPS),
		},
	}

	return s
}

func hostLine(h bench.Host) string {
	return fmt.Sprintf("%s, %d physical / %d logical cores, %s/%s, %s",
		h.CPU, h.PhysicalCores, h.LogicalCores, h.OS, h.Arch, h.GoVersion)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}

	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	return fmt.Sprintf("%.2fs", d.Seconds())
}

func formatRate(bps float64) string {
	if bps <= 0 || math.IsInf(bps, 0) || math.IsNaN(bps) {
		return "-"
	}

	return humanize.IBytes(uint64(bps)) + "/s"
}

func formatIOPS(iops float64) string {
	if iops <= 0 || math.IsInf(iops, 0) || math.IsNaN(iops) {
		return "-"
	}

	return humanize.Comma(int64(math.Round(iops)))
}

func formatSize(b int64) string {
	if b <= 0 {
		return "-"
	}

	return humanize.IBytes(uint64(b))
}
