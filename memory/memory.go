// Package memory measures memory bandwidth over a large in-process buffer
// and access latency with a pointer chase through a single random cycle.
//
// Every pass returns the values its loop computed (Checksum, FinalIndex)
// so the loops stay observable and cannot be optimised away.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	mrand "math/rand"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/weiihann/hostbench/measure"
	"github.com/weiihann/hostbench/pool"
)

const (
	// ChunkSize is the unit every bandwidth pass touches at a time.
	ChunkSize = 1 << 20
	// FillByte is written into every buffer.
	FillByte = 42
)

// ErrResourceExhausted reports a buffer the host cannot provide.
var ErrResourceExhausted = errors.New("resource exhausted")

// Result holds the memory probe's measurements. Bandwidths are in
// bytes per second.
type Result struct {
	Size            int64   `json:"size_bytes"`
	SequentialWrite float64 `json:"sequential_write_bps"`
	SequentialRead  float64 `json:"sequential_read_bps"`
	RandomWrite     float64 `json:"random_write_bps"`
	RandomRead      float64 `json:"random_read_bps"`

	ChaseLength     int     `json:"chase_length"`
	ChaseIterations int64   `json:"chase_iterations"`
	LatencyNs       float64 `json:"latency_ns"`

	ReadChecksum   uint64 `json:"read_checksum"`
	RandomChecksum uint64 `json:"random_checksum"`
	FinalIndex     uint32 `json:"final_index"`
}

// Config sizes a memory probe run.
type Config struct {
	Size            int64
	ChaseLength     int
	ChaseIterations int64
}

// Pass is one timed bandwidth pass.
type Pass struct {
	Bytes    int64
	Elapsed  time.Duration
	Checksum uint64
}

// Bandwidth returns bytes per second, or 0 for an empty pass.
func (p Pass) Bandwidth() float64 {
	return measure.Rate(p.Bytes, p.Elapsed)
}

// Probe runs the memory passes. It is not safe for concurrent use: the
// random passes share one seeded generator.
type Probe struct {
	Workers int
	Logger  *slog.Logger

	rng         *mrand.Rand
	totalMemory func() uint64
}

// NewProbe creates a Probe. Workers drive the sequential read sum.
func NewProbe(seed int64, workers int, logger *slog.Logger) *Probe {
	return &Probe{
		Workers:     max(workers, 1),
		Logger:      logger.With(slog.String("probe", "memory")),
		rng:         mrand.New(mrand.NewSource(seed)),
		totalMemory: physicalMemory,
	}
}

// allocate returns a zeroed buffer of size bytes. Sizes beyond the
// address space or the host's physical memory fail with
// ErrResourceExhausted instead of reaching the allocator. The recover
// only catches length panics; a true out-of-memory is fatal to the
// runtime.
func (p *Probe) allocate(size int64) (buf []byte, err error) {
	if size <= 0 {
		return nil, nil
	}

	if err := p.checkCapacity(size); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("allocate %s: %v: %w", humanize.IBytes(uint64(size)), r, ErrResourceExhausted)
		}
	}()

	return make([]byte, size), nil
}

func (p *Probe) checkCapacity(size int64) error {
	if uint64(size) > math.MaxInt {
		return fmt.Errorf("allocate %s: %w", humanize.IBytes(uint64(size)), ErrResourceExhausted)
	}

	if total := p.totalMemory(); total > 0 && uint64(size) > total {
		return fmt.Errorf(
			"allocate %s with %s physical memory: %w",
			humanize.IBytes(uint64(size)), humanize.IBytes(total), ErrResourceExhausted,
		)
	}

	return nil
}

func chunks(size int64) int {
	return int((size + ChunkSize - 1) / ChunkSize)
}

func chunkBounds(size int64, i int) (int64, int64) {
	start := int64(i) * ChunkSize

	return start, min(start+ChunkSize, size)
}

func fill(buf []byte, pattern []byte) {
	size := int64(len(buf))
	for i := range chunks(size) {
		start, end := chunkBounds(size, i)
		copy(buf[start:end], pattern)
	}
}

func newPattern() []byte {
	pattern := make([]byte, ChunkSize)
	for i := range pattern {
		pattern[i] = FillByte
	}

	return pattern
}

func sum(b []byte) uint64 {
	var s uint64
	for _, v := range b {
		s += uint64(v)
	}

	return s
}

// SequentialWrite fills a fresh buffer chunk by chunk with FillByte.
// Only the fill is timed. The checksum is the last byte written.
func (p *Probe) SequentialWrite(size int64) (Pass, error) {
	buf, err := p.allocate(size)
	if err != nil {
		return Pass{}, err
	}
	if len(buf) == 0 {
		return Pass{}, nil
	}

	pattern := newPattern()

	elapsed := measure.Time(func() {
		fill(buf, pattern)
	})

	return Pass{
		Bytes:    size,
		Elapsed:  elapsed,
		Checksum: uint64(buf[len(buf)-1]),
	}, nil
}

// SequentialRead pre-fills a buffer and then sums every byte, chunk by
// chunk, with the chunks split across the probe's workers. Each worker
// sums locally and adds into one atomic accumulator, which is returned
// as the checksum.
func (p *Probe) SequentialRead(size int64) (Pass, error) {
	buf, err := p.allocate(size)
	if err != nil {
		return Pass{}, err
	}
	if len(buf) == 0 {
		return Pass{}, nil
	}

	fill(buf, newPattern())

	var total atomic.Uint64

	n := chunks(size)
	elapsed := measure.Time(func() {
		_ = pool.Run(p.Workers, func(w int) error {
			first, last := pool.Split(n, p.Workers, w)

			var local uint64
			for i := first; i < last; i++ {
				start, end := chunkBounds(size, i)
				local += sum(buf[start:end])
			}

			total.Add(local)

			return nil
		})
	})

	return Pass{
		Bytes:    size,
		Elapsed:  elapsed,
		Checksum: total.Load(),
	}, nil
}

// randomSpan returns the block length and block count of a random pass.
// Buffers smaller than one chunk are treated as a single block.
func randomSpan(size int64) (span, blocks int64) {
	span = min(int64(ChunkSize), size)

	return span, size / span
}

// RandomWrite writes whole blocks (see randomSpan) at offsets drawn
// uniformly with replacement. Blocks may be revisited and others never
// touched.
func (p *Probe) RandomWrite(size int64) (Pass, error) {
	buf, err := p.allocate(size)
	if err != nil || size <= 0 {
		return Pass{}, err
	}

	span, iterations := randomSpan(size)
	pattern := newPattern()

	elapsed := measure.Time(func() {
		for range iterations {
			off := p.rng.Int63n(iterations) * span
			copy(buf[off:off+span], pattern)
		}
	})

	return Pass{
		Bytes:    iterations * span,
		Elapsed:  elapsed,
		Checksum: uint64(buf[0]) + uint64(buf[len(buf)-1]),
	}, nil
}

// RandomRead pre-fills a buffer and sums whole blocks at offsets drawn
// uniformly with replacement.
func (p *Probe) RandomRead(size int64) (Pass, error) {
	buf, err := p.allocate(size)
	if err != nil || size <= 0 {
		return Pass{}, err
	}

	span, iterations := randomSpan(size)
	fill(buf, newPattern())

	var total uint64

	elapsed := measure.Time(func() {
		for range iterations {
			off := p.rng.Int63n(iterations) * span
			total += sum(buf[off : off+span])
		}
	})

	return Pass{
		Bytes:    iterations * span,
		Elapsed:  elapsed,
		Checksum: total,
	}, nil
}

// Run executes the bandwidth passes and the latency chase in order.
// Any allocation failure aborts the run with no partial result.
func (p *Probe) Run(ctx context.Context, cfg Config) (*Result, error) {
	result := &Result{
		Size:            max(cfg.Size, 0),
		ChaseLength:     max(cfg.ChaseLength, 1),
		ChaseIterations: max(cfg.ChaseIterations, 0),
	}

	passes := []struct {
		phase string
		run   func(int64) (Pass, error)
		apply func(Pass)
	}{
		{"sequential write", p.SequentialWrite, func(ps Pass) {
			result.SequentialWrite = ps.Bandwidth()
		}},
		{"sequential read", p.SequentialRead, func(ps Pass) {
			result.SequentialRead = ps.Bandwidth()
			result.ReadChecksum = ps.Checksum
		}},
		{"random write", p.RandomWrite, func(ps Pass) {
			result.RandomWrite = ps.Bandwidth()
		}},
		{"random read", p.RandomRead, func(ps Pass) {
			result.RandomRead = ps.Bandwidth()
			result.RandomChecksum = ps.Checksum
		}},
	}

	for _, pass := range passes {
		p.Logger.InfoContext(ctx, "running "+pass.phase,
			slog.String("size", humanize.IBytes(uint64(result.Size))),
		)

		ps, err := pass.run(result.Size)
		if err != nil {
			return nil, measure.Errorf("memory", pass.phase, "%w", err)
		}

		pass.apply(ps)

		p.Logger.InfoContext(ctx, "phase complete",
			slog.Duration("elapsed", ps.Elapsed),
			slog.String("bandwidth", humanize.Bytes(uint64(ps.Bandwidth()))+"/s"),
		)

		// Hand the buffer back before the next pass allocates its own.
		debug.FreeOSMemory()
	}

	p.Logger.InfoContext(ctx, "running latency chase",
		slog.Int("slots", result.ChaseLength),
		slog.Int64("iterations", result.ChaseIterations),
	)

	lat, err := p.Latency(result.ChaseLength, result.ChaseIterations)
	if err != nil {
		return nil, measure.Errorf("memory", "latency", "%w", err)
	}

	result.LatencyNs = lat.PerAccessNs
	result.FinalIndex = lat.FinalIndex

	p.Logger.InfoContext(ctx, "phase complete",
		slog.Duration("elapsed", lat.Elapsed),
		slog.Float64("latency_ns", lat.PerAccessNs),
		slog.Duration("per_access", lat.PerAccess),
	)

	return result, nil
}
