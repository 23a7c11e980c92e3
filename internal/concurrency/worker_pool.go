package concurrency

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerFn handles task number index.
type WorkerFn func(ctx context.Context, index int) error

// Run fans tasks out over at most limit goroutines and waits for all of them.
// The first error cancels ctx for the remaining tasks and is returned.
func Run(ctx context.Context, limit int, tasks int, fn WorkerFn) error {
	if limit <= 0 {
		limit = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := 0; i < tasks; i++ {
		idx := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, idx)
		})
	}
	return g.Wait()
}
