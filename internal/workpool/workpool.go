// Package workpool provides a bounded fan-out helper for independent
// read-only lookups. Each item's result is written to its own slot, so the
// join after Wait is race-free without any locking.
package workpool

import (
	"context"
	"sync"
)

// DefaultConcurrency bounds the number of outstanding calls when the caller
// does not configure one.
const DefaultConcurrency = 10

// Map runs fn over every item with at most limit calls in flight and returns
// the results and errors in input order. It always waits for every item; a
// failed or stalled item never cancels its siblings. The caller decides what
// a per-item error means for the batch.
func Map[T, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (R, error)) ([]R, []error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	sem := make(chan struct{}, limit)

	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i], errs[i] = fn(ctx, item)
		}(i, item)
	}

	wg.Wait()

	return results, errs
}

// FirstError returns the first non-nil error in errs, or nil.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}
