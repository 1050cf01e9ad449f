package bootstrap

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"overfitguard/domain/core"
	"overfitguard/ports"
)

const bootstrapStage = "bootstrap"

// EstimateParallel splits the iterations across workers. Worker w draws from
// its own stream obtained from streams with key "worker-w", so the result is
// reproducible for a fixed (baseSeed, workers) pair and no generator is
// shared between goroutines. Cancellation is checked between iterations.
func (e *Estimator) EstimateParallel(
	ctx context.Context,
	values []float64,
	streams ports.RNGPort,
	baseSeed int64,
	workers int,
) (*Distribution, error) {
	if workers <= 0 {
		return nil, core.NewConfigurationError("bootstrap", "workers", workers, "must be positive")
	}
	if streams == nil {
		return nil, core.NewConfigurationError("bootstrap", "streams", nil, "rng port is required")
	}
	src, err := e.prepare(values)
	if err != nil {
		return nil, err
	}
	if workers > e.cfg.Iterations {
		workers = e.cfg.Iterations
	}

	rngs := make([]*rand.Rand, workers)
	for w := range rngs {
		r, err := streams.Stream(ctx, "", bootstrapStage, fmt.Sprintf("worker-%d", w), baseSeed)
		if err != nil {
			return nil, fmt.Errorf("bootstrap worker %d stream: %w", w, err)
		}
		rngs[w] = r
	}

	runs := make([]iterationRun, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		count := e.cfg.Iterations / workers
		if w < e.cfg.Iterations%workers {
			count++
		}
		g.Go(func() error {
			runs[w] = e.runIterations(src, count, rngs[w], func() bool { return gctx.Err() != nil })
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return e.finish(runs)
}
