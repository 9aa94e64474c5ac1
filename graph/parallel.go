package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ParallelMap runs fn for every item with at most limit calls in flight
// (limit < 1 means unbounded). Each call writes only its own slot, so results[i]
// and errs[i] always belong to items[i] whatever the completion order. A panic
// in fn is recovered into errs[i].
func ParallelMap[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, index int, item T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic in parallel task %d: %v", i, r)
				}
			}()
			results[i], errs[i] = fn(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait() // errors live in errs

	return results, errs
}
