package streamjoin

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// rowRange is a contiguous range of rows assigned to one worker. Distinct
// from the Morsel domain type (morsel.go): this is plain
// work-distribution bookkeeping internal to ParallelFor, not a unit that
// flows through ports.
type rowRange struct {
	Start int
	End   int
}

// rowIterator hands out row ranges to workers via a single atomic cursor,
// so a worker that finishes early steals the next range instead of idling
// (work-stealing without a scheduler).
type rowIterator struct {
	total     int
	size      int
	nextStart int64
}

// newRowIterator creates an iterator over [0, total) handing out chunks of
// size rows (falling back to globalConfig.MorselSize when size <= 0).
func newRowIterator(total, size int) *rowIterator {
	if size <= 0 {
		size = globalConfig.MorselSize
	}
	return &rowIterator{total: total, size: size}
}

// Next claims and returns the next range, or nil once exhausted. Safe for
// concurrent use by multiple workers.
func (mi *rowIterator) Next() *rowRange {
	for {
		start := atomic.LoadInt64(&mi.nextStart)
		if int(start) >= mi.total {
			return nil
		}
		end := int(start) + mi.size
		if end > mi.total {
			end = mi.total
		}
		if atomic.CompareAndSwapInt64(&mi.nextStart, start, int64(end)) {
			return &rowRange{Start: int(start), End: int(end)}
		}
	}
}

// Config holds process-wide tunables for the join operator, mirroring the
// injected-global pattern used throughout this package: a struct plus a
// package-level pointer, swappable via SetConfig for tests.
type Config struct {
	// NumPipelines is the fan-out width for sampling sinks,
	// partition_and_sink, and partition_and_probe. Zero means GOMAXPROCS.
	NumPipelines int

	// MorselSize is the target row count of one dispatched work unit.
	MorselSize int

	// MinRowsForParallel is the minimum row count that justifies spinning
	// up goroutines at all; below it, work runs on the calling goroutine.
	MinRowsForParallel int
}

// DefaultConfig returns the package's default tunables.
func DefaultConfig() *Config {
	return &Config{
		NumPipelines:       0,
		MorselSize:         4096,
		MinRowsForParallel: 8192,
	}
}

var globalConfig = DefaultConfig()

// SetGlobalConfig replaces the package-wide configuration. Intended for
// process startup or tests; not safe to call concurrently with in-flight
// joins.
func SetGlobalConfig(cfg *Config) {
	if cfg != nil {
		globalConfig = cfg
	}
}

// GetGlobalConfig returns the current package-wide configuration.
func GetGlobalConfig() *Config {
	return globalConfig
}

func (cfg *Config) numWorkers() int {
	if cfg.NumPipelines > 0 {
		return cfg.NumPipelines
	}
	return runtime.GOMAXPROCS(0)
}

func (cfg *Config) shouldParallelize(rows int) bool {
	return rows >= cfg.MinRowsForParallel
}

// ParallelFor runs fn over [0, totalRows) split into morsels across
// GetGlobalConfig's worker count, falling back to a single synchronous call
// when the row count doesn't justify the overhead.
func ParallelFor(totalRows int, fn func(start, end int)) {
	cfg := globalConfig
	if !cfg.shouldParallelize(totalRows) {
		fn(0, totalRows)
		return
	}

	numWorkers := cfg.numWorkers()
	iter := newRowIterator(totalRows, cfg.MorselSize)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				m := iter.Next()
				if m == nil {
					return
				}
				fn(m.Start, m.End)
			}
		}()
	}
	wg.Wait()
}

// ParallelMap applies fn to every index in [0, n) in parallel and returns
// the results in index order.
func ParallelMap[T any](n int, fn func(i int) T) []T {
	results := make([]T, n)
	cfg := globalConfig
	if !cfg.shouldParallelize(n) {
		for i := 0; i < n; i++ {
			results[i] = fn(i)
		}
		return results
	}
	ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = fn(i)
		}
	})
	return results
}

// parallelEach runs fn(i) for every i in [0, n) across worker goroutines
// with no return value, used for per-partition finalize/drop fan-out (C4
// finalize, C2/C5 parallel Close).
func parallelEach(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	cfg := globalConfig
	if n == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	iter := newRowIterator(n, 1)
	workers := cfg.numWorkers()
	if workers > n {
		workers = n
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				m := iter.Next()
				if m == nil {
					return
				}
				for i := m.Start; i < m.End; i++ {
					fn(i)
				}
			}
		}()
	}
	wg.Wait()
}
