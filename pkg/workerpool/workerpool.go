// Package workerpool offers bounded-concurrency offloading for CPU-heavy
// handler work (spec.md §4.6 "A thread pool is provided as a utility for
// offloading CPU-heavy handler work but is not used by the core dispatch
// loop"). It is never invoked by pkg/conn or pkg/server themselves; a
// handler opts in explicitly by calling Submit.
package workerpool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent work to a fixed size using a weighted semaphore,
// rather than a fixed goroutine+channel pool, since the work items here
// are one-shot functions, not a persistent worker loop.
type Pool struct {
	sem *semaphore.Weighted
}

// New returns a Pool that admits at most size concurrent Submit calls.
func New(size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Submit blocks until a slot is free (or ctx is done), runs fn in a new
// goroutine, and returns its result on the returned channel.
func (p *Pool) Submit(ctx context.Context, fn func() (any, error)) (<-chan any, <-chan error) {
	results := make(chan any, 1)
	errs := make(chan error, 1)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		errs <- err
		close(results)
		close(errs)
		return results, errs
	}

	go func() {
		defer p.sem.Release(1)
		defer close(results)
		defer close(errs)
		res, err := fn()
		if err != nil {
			errs <- err
			return
		}
		results <- res
	}()

	return results, errs
}
