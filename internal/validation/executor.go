package validation

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"overfitguard/domain/returns"
	"overfitguard/domain/stats"
	"overfitguard/internal"
	"overfitguard/internal/bootstrap"
)

// DefaultCostUnit is the number of observations charged as one unit of
// executor capacity.
const DefaultCostUnit = returns.TradingPeriodsPerYear

// WindowExecutor evaluates windows concurrently with cost-based throttling.
// A window is charged one unit per DefaultCostUnit observations it spans, so
// a few long expanding windows hold as much capacity as many short ones.
// The semaphore is shared by every call on the same executor.
type WindowExecutor struct {
	sem       *semaphore.Weighted
	capacity  int64
	unit      int
	statistic bootstrap.StatisticFunc
	logger    *internal.Logger
}

// NewWindowExecutor creates an executor with the given total capacity.
// statistic defaults to the annualized Sharpe ratio.
func NewWindowExecutor(capacity int, statistic bootstrap.StatisticFunc, logger *internal.Logger) *WindowExecutor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if statistic == nil {
		statistic = returns.AnnualizedSharpe
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &WindowExecutor{
		sem:       semaphore.NewWeighted(int64(capacity)),
		capacity:  int64(capacity),
		unit:      DefaultCostUnit,
		statistic: statistic,
		logger:    logger.With("window-executor"),
	}
}

// cost is ceil(span/unit), clamped to [1, capacity] so every window can run.
func (we *WindowExecutor) cost(w stats.Window) int64 {
	span := w.Train.Len() + w.Test.Len()
	c := int64((span + we.unit - 1) / we.unit)
	if c < 1 {
		c = 1
	}
	if c > we.capacity {
		c = we.capacity
	}
	return c
}

// Evaluate computes the train and test statistic of every window over src.
// Results are returned in window order. The first cancellation stops new
// windows from starting and is returned.
func (we *WindowExecutor) Evaluate(ctx context.Context, src []float64, ws []stats.Window) ([]stats.WindowStatistic, error) {
	out := make([]stats.WindowStatistic, len(ws))
	g, gctx := errgroup.WithContext(ctx)

	var acquireErr error
	for i, w := range ws {
		cost := we.cost(w)
		if err := we.sem.Acquire(gctx, cost); err != nil {
			acquireErr = err
			break
		}
		g.Go(func() error {
			defer we.sem.Release(cost)
			if err := gctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			train, trainOK := we.statistic(w.Train.Slice(src))
			test, testOK := we.statistic(w.Test.Slice(src))
			out[i] = stats.WindowStatistic{
				Window:         w,
				TrainStatistic: train,
				TestStatistic:  test,
				TrainDefined:   trainOK,
				TestDefined:    testOK,
			}

			if !testOK {
				we.logger.Warn("window %d test statistic undefined (test=[%d,%d))", w.Index, w.Test.Start, w.Test.End)
			}
			we.logger.Trace("window %d evaluated (cost: %d, duration: %v)", w.Index, cost, time.Since(start))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if acquireErr != nil {
		return nil, acquireErr
	}
	return out, nil
}
