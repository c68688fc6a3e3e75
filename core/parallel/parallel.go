// Package parallel runs index-addressed work across goroutines. Workers write
// results into caller-owned slots by index, so output never depends on
// scheduling or on the worker count.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"github.com/nggra/obesity/pkg/errors"
)

// Workers normalises a requested worker count: n <= 0 means one per CPU,
// and the result never exceeds items.
func Workers(n, items int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Parallelize splits [0, items) into contiguous chunks, one per CPU core,
// and calls fn(start, end) for each chunk concurrently.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, 0, fn)
}

// ParallelizeN is Parallelize with an explicit worker count.
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	numWorkers := Workers(workers, items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items <= threshold.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ForEach calls fn(i) for every i in [0, items) using at most workers
// goroutines. Panics inside fn become errors. It returns the error of the
// lowest failing index, so the reported failure is stable across runs.
// Cancelling ctx stops handing out new indices.
func ForEach(ctx context.Context, items, workers int, fn func(i int) error) error {
	if items == 0 {
		return nil
	}
	errs := make([]error, items)
	next := make(chan int)
	numWorkers := Workers(workers, items)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				errs[i] = errors.SafeExecute("parallel.ForEach", func() error { return fn(i) })
			}
		}()
	}

	var ctxErr error
feed:
	for i := 0; i < items; i++ {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return ctxErr
}
