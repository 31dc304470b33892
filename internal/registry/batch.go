package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency caps simultaneous outbound registry calls.
const DefaultMaxConcurrency = 8

// BatchOptions bounds a batch.
type BatchOptions struct {
	// MaxConcurrency is the number of permits; values below 1 select
	// DefaultMaxConcurrency.
	MaxConcurrency int
	// Deadline is the overall budget for the batch; zero means none beyond
	// the caller's context.
	Deadline time.Duration
}

// Result is the outcome of one batch entry.
type Result[T any] struct {
	Value T
	Err   error
	// Cached is true when the value was served by the probe without taking a
	// permit.
	Cached bool
}

// FetchAll runs fetch for indices 0..n-1 with at most opts.MaxConcurrency in
// flight and returns results in index order. probe, when non-nil, is
// consulted first; a hit is returned without consuming a permit. A failing
// entry never affects its siblings. When the deadline or ctx ends, entries
// that have not completed are reported as timeouts while completed entries
// keep their results.
func FetchAll[T any](
	ctx context.Context,
	opts BatchOptions,
	n int,
	probe func(i int) (T, bool),
	fetch func(ctx context.Context, i int) (T, error),
) []Result[T] {
	limit := opts.MaxConcurrency
	if limit < 1 {
		limit = DefaultMaxConcurrency
	}
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	results := make([]Result[T], n)
	completed := make([]bool, n)
	var (
		mu     sync.Mutex
		sealed bool
		wg     sync.WaitGroup
	)
	record := func(i int, r Result[T]) {
		mu.Lock()
		defer mu.Unlock()
		if sealed {
			return
		}
		results[i] = r
		completed[i] = true
	}

	sem := semaphore.NewWeighted(int64(limit))
	for i := 0; i < n; i++ {
		if probe != nil {
			if v, ok := probe(i); ok {
				record(i, Result[T]{Value: v, Cached: true})
				continue
			}
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			if ctx.Err() != nil {
				return
			}
			v, err := fetch(ctx, i)
			if err != nil && ctx.Err() != nil && KindOf(err) != ErrTimeout {
				err = timeoutError("batch entry", err)
			}
			record(i, Result[T]{Value: v, Err: err})
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	sealed = true
	out := make([]Result[T], n)
	for i := range results {
		if completed[i] {
			out[i] = results[i]
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		out[i] = Result[T]{Err: timeoutError("batch entry", cause)}
	}
	return out
}
