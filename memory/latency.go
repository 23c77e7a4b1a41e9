package memory

import (
	"fmt"
	"math"
	mrand "math/rand"
	"time"

	"github.com/weiihann/hostbench/measure"
)

// LatencyPass is the outcome of one pointer chase.
type LatencyPass struct {
	Elapsed     time.Duration
	PerAccess   time.Duration
	PerAccessNs float64
	FinalIndex  uint32
}

// BuildChain returns next-pointers forming one cycle through all n slots.
// Slots 1..n-1 are shuffled into a random visiting order, slot 0 links to
// the first of them, each links to the one after it, and the last links
// back to 0. There are no shorter sub-cycles, so every step of a chase
// is a jump to an unpredictable slot.
func BuildChain(n int, rng *mrand.Rand) []uint32 {
	n = max(n, 1)

	order := make([]uint32, n-1)
	for i := range order {
		order[i] = uint32(i + 1)
	}

	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	next := make([]uint32, n)

	var cur uint32
	for _, slot := range order {
		next[cur] = slot
		cur = slot
	}

	next[cur] = 0

	return next
}

// Chase follows next from slot 0 for iterations steps and returns the
// slot it stops on.
func Chase(next []uint32, iterations int64) uint32 {
	var cur uint32
	for range iterations {
		cur = next[cur]
	}

	return cur
}

// Latency builds an n-slot chain and times a chase of iterations steps
// through it. PerAccess and PerAccessNs are the total chase time divided
// by the step count; FinalIndex is where the chase ended.
func (p *Probe) Latency(n int, iterations int64) (LatencyPass, error) {
	n = max(n, 1)
	if uint64(n) > math.MaxUint32+1 {
		return LatencyPass{}, fmt.Errorf("chain of %d slots: %w", n, ErrResourceExhausted)
	}

	if err := p.checkCapacity(int64(n) * 4); err != nil {
		return LatencyPass{}, err
	}

	next := BuildChain(n, p.rng)

	var final uint32

	elapsed := measure.Time(func() {
		final = Chase(next, iterations)
	})

	pass := LatencyPass{
		Elapsed:    elapsed,
		PerAccess:  measure.PerOp(elapsed, iterations),
		FinalIndex: final,
	}
	if iterations > 0 {
		pass.PerAccessNs = float64(elapsed.Nanoseconds()) / float64(iterations)
	}

	return pass, nil
}
