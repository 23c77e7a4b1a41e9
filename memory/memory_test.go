package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/hostbench/measure"
)

func newTestProbe(workers int) *Probe {
	return NewProbe(42, workers, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSequentialWrite(t *testing.T) {
	p := newTestProbe(1)

	pass, err := p.SequentialWrite(4 * ChunkSize)
	require.NoError(t, err)

	assert.Equal(t, int64(4*ChunkSize), pass.Bytes)
	assert.Equal(t, uint64(FillByte), pass.Checksum)
	assert.Positive(t, pass.Bandwidth())
}

func TestSequentialReadChecksum(t *testing.T) {
	sizes := []int64{ChunkSize, 3 * ChunkSize, 2*ChunkSize + 12345, 100}

	for _, workers := range []int{1, 2, 4, 16} {
		for _, size := range sizes {
			p := newTestProbe(workers)

			pass, err := p.SequentialRead(size)
			require.NoError(t, err)

			assert.Equal(t, uint64(size)*FillByte, pass.Checksum,
				"size=%d workers=%d", size, workers)
			assert.Equal(t, size, pass.Bytes)
		}
	}
}

func TestRandomPasses(t *testing.T) {
	p := newTestProbe(1)

	write, err := p.RandomWrite(8 * ChunkSize)
	require.NoError(t, err)
	assert.Equal(t, int64(8*ChunkSize), write.Bytes)
	assert.Positive(t, write.Bandwidth())

	read, err := p.RandomRead(8 * ChunkSize)
	require.NoError(t, err)
	assert.Equal(t, int64(8*ChunkSize), read.Bytes)
	assert.Equal(t, uint64(8*ChunkSize)*FillByte, read.Checksum)
}

func TestRandomPassesIgnorePartialChunk(t *testing.T) {
	p := newTestProbe(1)

	read, err := p.RandomRead(2*ChunkSize + 100)
	require.NoError(t, err)

	assert.Equal(t, int64(2*ChunkSize), read.Bytes)
}

func TestRandomPassesBelowOneChunk(t *testing.T) {
	const size = ChunkSize - 1

	p := newTestProbe(1)

	write, err := p.RandomWrite(size)
	require.NoError(t, err)
	assert.Equal(t, int64(size), write.Bytes)
	assert.Positive(t, write.Bandwidth())

	read, err := p.RandomRead(size)
	require.NoError(t, err)
	assert.Equal(t, int64(size), read.Bytes)
	assert.Equal(t, uint64(size)*FillByte, read.Checksum)
	assert.Positive(t, read.Bandwidth())
}

func TestZeroSizeYieldsZeroBandwidth(t *testing.T) {
	p := newTestProbe(2)

	result, err := p.Run(context.Background(), Config{
		Size:            0,
		ChaseLength:     64,
		ChaseIterations: 1000,
	})
	require.NoError(t, err)

	assert.Zero(t, result.SequentialWrite)
	assert.Zero(t, result.SequentialRead)
	assert.Zero(t, result.RandomWrite)
	assert.Zero(t, result.RandomRead)
	assert.Zero(t, result.ReadChecksum)
	assert.GreaterOrEqual(t, result.LatencyNs, 0.0)
}

func TestResourceExhausted(t *testing.T) {
	p := newTestProbe(1)
	p.totalMemory = func() uint64 { return 2 * ChunkSize }

	_, err := p.SequentialWrite(4 * ChunkSize)
	assert.ErrorIs(t, err, ErrResourceExhausted)

	_, err = p.RandomRead(4 * ChunkSize)
	assert.ErrorIs(t, err, ErrResourceExhausted)

	_, err = p.SequentialRead(ChunkSize)
	assert.NoError(t, err)
}

func TestRunResourceExhaustedHasNoResult(t *testing.T) {
	p := newTestProbe(1)
	p.totalMemory = func() uint64 { return ChunkSize }

	result, err := p.Run(context.Background(), Config{
		Size:            4 * ChunkSize,
		ChaseLength:     16,
		ChaseIterations: 10,
	})

	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrResourceExhausted)

	var phaseErr *measure.PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, "memory", phaseErr.Probe)
	assert.Equal(t, "sequential write", phaseErr.Phase)
}

func TestRun(t *testing.T) {
	p := newTestProbe(4)

	result, err := p.Run(context.Background(), Config{
		Size:            4 * ChunkSize,
		ChaseLength:     1 << 12,
		ChaseIterations: 100_000,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4*ChunkSize), result.Size)
	assert.Positive(t, result.SequentialWrite)
	assert.Positive(t, result.SequentialRead)
	assert.Positive(t, result.RandomWrite)
	assert.Positive(t, result.RandomRead)
	assert.Positive(t, result.LatencyNs)
	assert.Equal(t, uint64(4*ChunkSize)*FillByte, result.ReadChecksum)
	assert.Equal(t, uint64(4*ChunkSize)*FillByte, result.RandomChecksum)
	assert.Less(t, result.FinalIndex, uint32(1<<12))
}

func TestBuildChainIsSingleCycle(t *testing.T) {
	for _, n := range []int{1, 2, 3, 16, 1000} {
		for seed := int64(0); seed < 5; seed++ {
			next := BuildChain(n, mrand.New(mrand.NewSource(seed)))
			require.Len(t, next, n)

			visited := make([]bool, n)
			cur := uint32(0)

			for step := 0; step < n; step++ {
				require.False(t, visited[cur],
					"n=%d seed=%d: slot %d revisited at step %d", n, seed, cur, step)

				visited[cur] = true
				cur = next[cur]
			}

			assert.Equal(t, uint32(0), cur,
				"n=%d seed=%d: chain did not close after %d steps", n, seed, n)
			for i, v := range visited {
				assert.True(t, v, "n=%d seed=%d: slot %d never visited", n, seed, i)
			}
		}
	}
}

func TestBuildChainClampsLength(t *testing.T) {
	next := BuildChain(0, mrand.New(mrand.NewSource(1)))

	assert.Equal(t, []uint32{0}, next)
}

func TestChase(t *testing.T) {
	next := BuildChain(16, mrand.New(mrand.NewSource(9)))

	assert.Equal(t, uint32(0), Chase(next, 0))
	assert.Equal(t, uint32(0), Chase(next, 16))
	assert.Equal(t, uint32(0), Chase(next, 32))
	assert.Equal(t, next[0], Chase(next, 1))
	assert.Equal(t, next[next[0]], Chase(next, 2))
}

func TestLatencyDeterministic(t *testing.T) {
	first, err := newTestProbe(1).Latency(1024, 12345)
	require.NoError(t, err)

	second, err := newTestProbe(1).Latency(1024, 12345)
	require.NoError(t, err)

	assert.Equal(t, first.FinalIndex, second.FinalIndex)
	assert.Positive(t, first.PerAccessNs)
}

func TestLatencyIsTimePerAccess(t *testing.T) {
	const (
		slots      = 512
		iterations = 100_003
	)

	pass, err := newTestProbe(1).Latency(slots, iterations)
	require.NoError(t, err)

	assert.Positive(t, pass.Elapsed)
	assert.InDelta(t, float64(pass.Elapsed.Nanoseconds())/iterations, pass.PerAccessNs, 1e-9)
	assert.Equal(t, pass.Elapsed/iterations, pass.PerAccess)
}

func TestLatencyZeroIterations(t *testing.T) {
	pass, err := newTestProbe(1).Latency(16, 0)
	require.NoError(t, err)

	assert.Zero(t, pass.PerAccessNs)
	assert.Zero(t, pass.PerAccess)
	assert.Equal(t, uint32(0), pass.FinalIndex)
}
