// Package pool provides the fork-join primitive the probes use for their
// parallel phases.
package pool

import (
	"golang.org/x/sync/errgroup"
)

// Run forks exactly workers goroutines, calling fn with ids 0..workers-1,
// and returns once every one of them has finished. The first non-nil
// error is returned. A worker count below 1 is treated as 1.
//
// Run does not cancel the remaining workers when one fails: a benchmark
// phase always runs to completion.
func Run(workers int, fn func(worker int) error) error {
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group

	for w := range workers {
		g.Go(func() error {
			return fn(w)
		})
	}

	return g.Wait()
}

// Split divides n items into workers contiguous ranges and returns the
// [start, end) bounds of range w. The first n%workers ranges get one
// extra item.
func Split(n, workers, w int) (int, int) {
	if workers < 1 {
		workers = 1
	}

	base := n / workers
	extra := n % workers

	start := w*base + min(w, extra)
	end := start + base
	if w < extra {
		end++
	}

	return start, end
}
