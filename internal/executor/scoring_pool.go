package executor

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ScoringWorkerPool bounds CPU-bound scoring work. Its concurrency budget
// is entirely separate from the network-bound executor's and shares no
// rate-limiter state with it.
type ScoringWorkerPool struct {
	size int
}

// NewScoringWorkerPool creates a pool of the given size. A non-positive
// size defaults to available cores minus one, floored at one.
func NewScoringWorkerPool(size int) *ScoringWorkerPool {
	if size < 1 {
		size = runtime.NumCPU() - 1
		if size < 1 {
			size = 1
		}
	}
	return &ScoringWorkerPool{size: size}
}

// Size returns the pool's concurrency bound.
func (p *ScoringWorkerPool) Size() int { return p.size }

// Run invokes fn for each index in [0, n) with at most Size invocations
// running concurrently. The first error cancels remaining work and is
// returned; fns that swallow their own errors never abort the run.
func (p *ScoringWorkerPool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(ctx, i)
		})
	}
	return g.Wait()
}
