// Package parallel splits an index range across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count. Items are whole sweeps over a
// tape, so even small ranges are worth splitting.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 2,
	}
}

// Chunks returns the number of pieces ForChunks splits n items into.
func Chunks(n int, cfg Config) int {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < 2*cfg.MinChunkSize {
		return min(n, 1)
	}
	size := chunkSize(n, cfg)
	return (n + size - 1) / size
}

func chunkSize(n int, cfg Config) int {
	return max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)
}

// ForChunks calls f(chunk, lo, hi) for consecutive ranges covering [0, n), each on
// its own goroutine, and waits. chunk numbers the ranges from zero so callers can
// give every goroutine private state. Falls back to a single call when parallelism
// is disabled or n is too small.
func ForChunks(n int, f func(chunk, lo, hi int), cfg Config) {
	if n <= 0 {
		return
	}
	if Chunks(n, cfg) == 1 {
		f(0, 0, n)
		return
	}

	var wg sync.WaitGroup
	size := chunkSize(n, cfg)
	for chunk, start := 0, 0; start < n; chunk, start = chunk+1, start+size {
		end := min(start+size, n)
		wg.Add(1)
		go func(c, s, e int) {
			defer wg.Done()
			f(c, s, e)
		}(chunk, start, end)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n) with optional parallelism.
func For(n int, f func(i int), cfg Config) {
	ForChunks(n, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			f(i)
		}
	}, cfg)
}
