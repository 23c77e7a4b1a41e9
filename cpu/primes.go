package cpu

import (
	"math"

	"github.com/weiihann/hostbench/pool"
)

// IsPrime reports whether n is prime using trial division over the 6k±1
// wheel.
func IsPrime(n uint64) bool {
	if n <= 1 {
		return false
	}
	if n <= 3 {
		return true
	}
	if n%2 == 0 || n%3 == 0 {
		return false
	}

	limit := uint64(math.Sqrt(float64(n)))
	for limit > math.MaxUint32 || limit*limit > n {
		limit--
	}
	for limit < math.MaxUint32 && (limit+1)*(limit+1) <= n {
		limit++
	}

	for i := uint64(5); i <= limit; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}

	return true
}

// PrimesSingle returns the first count primes in ascending order.
func PrimesSingle(count int) []uint64 {
	if count <= 0 {
		return []uint64{}
	}

	primes := make([]uint64, 0, count)
	for n := uint64(2); len(primes) < count; n++ {
		if IsPrime(n) {
			primes = append(primes, n)
		}
	}

	return primes
}

// PrimesParallel returns the first count primes, testing candidates in
// blocks of chunk × workers where chunk = ⌈count/workers⌉. Every worker
// filters its own contiguous slice of the block and the slices are
// appended in scan order, so the output stays ascending.
func PrimesParallel(count, workers int) []uint64 {
	if count <= 0 {
		return []uint64{}
	}

	workers = max(workers, 1)
	chunk := (count + workers - 1) / workers
	block := uint64(chunk) * uint64(workers)

	primes := make([]uint64, 0, count)
	found := make([][]uint64, workers)

	for base := uint64(2); len(primes) < count; base += block {
		_ = pool.Run(workers, func(w int) error {
			start := base + uint64(w)*uint64(chunk)
			local := found[w][:0]

			for n := start; n < start+uint64(chunk); n++ {
				if IsPrime(n) {
					local = append(local, n)
				}
			}

			found[w] = local

			return nil
		})

		for _, local := range found {
			primes = append(primes, local...)
		}
	}

	return primes[:count]
}
