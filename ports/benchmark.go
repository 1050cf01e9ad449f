package ports

import "context"

// BenchmarkSource supplies the empirical benchmark statistic that the
// dynamic threshold is built on: a constant, or a value fetched from a
// baseline store owned outside this module.
type BenchmarkSource interface {
	BenchmarkStatistic(ctx context.Context) (float64, error)
}
