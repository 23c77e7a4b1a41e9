// Package disk measures storage throughput with large sequential chunks
// and per-operation latency with small synced blocks, against a scratch
// file that never outlives the sub-test that created it.
package disk

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/weiihann/hostbench/measure"
)

const (
	// ScratchName is the file every sub-test creates and removes.
	ScratchName = "disktest.tmp"
	// LargeChunk is the unit of the sequential throughput test.
	LargeChunk = 1 << 20
	// BlockSize is the unit of the small-block IOPS test.
	BlockSize = 4 << 10
	// FillByte is written into every chunk and block.
	FillByte = 42
)

// File is the subset of *os.File the probe drives.
type File interface {
	io.ReadWriteSeeker
	io.Closer
	Fd() uintptr
	Sync() error
}

// OpenFunc opens the scratch file.
type OpenFunc func(name string, flag int, perm os.FileMode) (File, error)

// Result holds the disk probe's measurements. Throughput is in bytes per
// second.
type Result struct {
	LargeBytes int64   `json:"large_bytes"`
	LargeWrite float64 `json:"large_write_bps"`
	LargeRead  float64 `json:"large_read_bps"`

	SmallOps       int64   `json:"small_ops"`
	BlockSize      int     `json:"block_size"`
	SmallWriteIOPS float64 `json:"small_write_iops"`
	SmallReadIOPS  float64 `json:"small_read_iops"`

	ReadChecksum uint64 `json:"read_checksum"`
}

// Config sizes a disk probe run.
type Config struct {
	LargeSize       int64
	SmallIterations int64
}

// Pass is one timed write-then-read sub-test.
type Pass struct {
	Units        int64
	WriteElapsed time.Duration
	ReadElapsed  time.Duration
	Checksum     uint64
}

// Probe runs the disk sub-tests inside Dir.
type Probe struct {
	Dir    string
	Logger *slog.Logger
	// Open defaults to os.OpenFile.
	Open OpenFunc
}

// NewProbe creates a Probe writing its scratch file into dir.
func NewProbe(dir string, logger *slog.Logger) *Probe {
	return &Probe{
		Dir:    dir,
		Logger: logger.With(slog.String("probe", "disk")),
		Open:   openOS,
	}
}

func openOS(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm)
}

// ScratchPath returns where the sub-tests place their file.
func (p *Probe) ScratchPath() string {
	return filepath.Join(p.Dir, ScratchName)
}

// withScratch runs fn against the scratch path and removes the file
// afterwards on every exit path, panics included. A file that was never
// created is not an error; a failed removal is reported only when fn
// itself succeeded.
func (p *Probe) withScratch(fn func(path string) error) (err error) {
	path := p.ScratchPath()

	defer func() {
		rmErr := os.Remove(path)
		if rmErr == nil || errors.Is(rmErr, fs.ErrNotExist) {
			return
		}

		if err == nil {
			err = measure.Errorf("disk", "cleanup", "remove %s: %w", path, rmErr)

			return
		}

		p.Logger.Warn("failed to remove scratch file",
			slog.String("path", path),
			slog.String("error", rmErr.Error()),
		)
	}()

	return fn(path)
}

// LargeBlock writes size/LargeChunk chunks through a buffered writer,
// flushes and syncs them, then reads the same chunks back after evicting
// the file from the page cache. Both directions are timed separately.
func (p *Probe) LargeBlock(size int64) (Pass, error) {
	chunks := size / LargeChunk
	if chunks <= 0 {
		return Pass{}, nil
	}

	pass := Pass{Units: chunks}

	err := p.withScratch(func(path string) error {
		data := bytes.Repeat([]byte{FillByte}, LargeChunk)

		var err error

		pass.WriteElapsed = measure.Time(func() {
			err = p.writeLarge(path, data, chunks)
		})
		if err != nil {
			return measure.Errorf("disk", "large-block write", "%w", err)
		}

		p.evict(path)

		pass.ReadElapsed = measure.Time(func() {
			pass.Checksum, err = p.readLarge(path, chunks)
		})
		if err != nil {
			return measure.Errorf("disk", "large-block read", "%w", err)
		}

		return nil
	})
	if err != nil {
		return Pass{}, err
	}

	return pass, nil
}

func (p *Probe) writeLarge(path string, data []byte, chunks int64) error {
	f, err := p.Open(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, LargeChunk)

	for i := range chunks {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write chunk %d: %w", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	if err := syncData(f); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

func (p *Probe) readLarge(path string, chunks int64) (uint64, error) {
	f, err := p.Open(path, os.O_RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, LargeChunk)

	var checksum uint64
	for i := range chunks {
		if _, err := io.ReadFull(f, buf); err != nil {
			return 0, fmt.Errorf("read chunk %d: %w", i, err)
		}

		checksum += uint64(buf[0]) + uint64(buf[LargeChunk-1])
	}

	return checksum, nil
}

// SmallBlock writes iterations blocks at offset i×BlockSize, syncing each
// one to storage before the next, then seeks to and reads every block
// back. Each direction yields operations per second.
func (p *Probe) SmallBlock(iterations int64) (Pass, error) {
	if iterations <= 0 {
		return Pass{}, nil
	}

	pass := Pass{Units: iterations}

	err := p.withScratch(func(path string) error {
		block := bytes.Repeat([]byte{FillByte}, BlockSize)

		var err error

		pass.WriteElapsed = measure.Time(func() {
			err = p.writeSmall(path, block, iterations)
		})
		if err != nil {
			return measure.Errorf("disk", "small-block write", "%w", err)
		}

		p.evict(path)

		pass.ReadElapsed = measure.Time(func() {
			pass.Checksum, err = p.readSmall(path, iterations)
		})
		if err != nil {
			return measure.Errorf("disk", "small-block read", "%w", err)
		}

		return nil
	})
	if err != nil {
		return Pass{}, err
	}

	return pass, nil
}

func (p *Probe) writeSmall(path string, block []byte, iterations int64) error {
	f, err := p.Open(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	for i := range iterations {
		if _, err := f.Seek(i*BlockSize, io.SeekStart); err != nil {
			return fmt.Errorf("seek block %d: %w", i, err)
		}

		if _, err := f.Write(block); err != nil {
			return fmt.Errorf("write block %d: %w", i, err)
		}

		if err := syncData(f); err != nil {
			return fmt.Errorf("sync block %d: %w", i, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

func (p *Probe) readSmall(path string, iterations int64) (uint64, error) {
	f, err := p.Open(path, os.O_RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, BlockSize)

	var checksum uint64
	for i := range iterations {
		if _, err := f.Seek(i*BlockSize, io.SeekStart); err != nil {
			return 0, fmt.Errorf("seek block %d: %w", i, err)
		}

		if _, err := io.ReadFull(f, buf); err != nil {
			return 0, fmt.Errorf("read block %d: %w", i, err)
		}

		checksum += uint64(buf[0])
	}

	return checksum, nil
}

// evict asks the kernel to drop the file's cached pages so the read
// that follows reaches the device. Failure only costs accuracy.
func (p *Probe) evict(path string) {
	f, err := p.Open(path, os.O_RDONLY, 0)
	if err == nil {
		err = dropCache(f)
		f.Close()
	}

	if err != nil {
		p.Logger.Debug("page cache not dropped",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// Run executes the large-block and small-block sub-tests in order. The
// first failure aborts the probe without a partial result.
func (p *Probe) Run(ctx context.Context, cfg Config) (*Result, error) {
	p.Logger.InfoContext(ctx, "running large-block test",
		slog.String("path", p.ScratchPath()),
		slog.String("size", humanize.IBytes(uint64(max(cfg.LargeSize, 0)))),
	)

	large, err := p.LargeBlock(cfg.LargeSize)
	if err != nil {
		return nil, err
	}

	result := &Result{
		LargeBytes: large.Units * LargeChunk,
		BlockSize:  BlockSize,
	}
	result.LargeWrite = measure.Rate(result.LargeBytes, large.WriteElapsed)
	result.LargeRead = measure.Rate(result.LargeBytes, large.ReadElapsed)

	p.Logger.InfoContext(ctx, "phase complete",
		slog.Duration("write_elapsed", large.WriteElapsed),
		slog.Duration("read_elapsed", large.ReadElapsed),
	)

	p.Logger.InfoContext(ctx, "running small-block test",
		slog.Int64("iterations", cfg.SmallIterations),
		slog.Int("block_size", BlockSize),
	)

	small, err := p.SmallBlock(cfg.SmallIterations)
	if err != nil {
		return nil, err
	}

	result.SmallOps = small.Units
	result.SmallWriteIOPS = measure.Rate(small.Units, small.WriteElapsed)
	result.SmallReadIOPS = measure.Rate(small.Units, small.ReadElapsed)
	result.ReadChecksum = large.Checksum + small.Checksum

	p.Logger.InfoContext(ctx, "phase complete",
		slog.Duration("write_elapsed", small.WriteElapsed),
		slog.Duration("read_elapsed", small.ReadElapsed),
	)

	return result, nil
}
