// Package workerpool bounds CPU-heavy fan-out work (building non-linear
// vector indexes) to a configured number of concurrent goroutines.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool runs a bounded number of tasks concurrently, short-circuiting on
// the first error.
type Pool struct {
	limit int
}

// New constructs a Pool that runs at most limit tasks at once. limit <= 0
// means unbounded.
func New(limit int) *Pool {
	return &Pool{limit: limit}
}

// Run executes each task, waiting for all of them to finish, and returns
// the first error encountered (if any). ctx cancellation propagates to
// every still-running task via the context each task receives.
func (p *Pool) Run(ctx context.Context, tasks ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			return task(gctx)
		})
	}
	return g.Wait()
}
