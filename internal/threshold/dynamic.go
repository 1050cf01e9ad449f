package threshold

import (
	"context"
	"fmt"
	"math"

	"overfitguard/domain/core"
	"overfitguard/ports"
)

// ConstantBenchmark is an empirical benchmark statistic fixed at build time.
type ConstantBenchmark float64

var _ ports.BenchmarkSource = ConstantBenchmark(0)

func (c ConstantBenchmark) BenchmarkStatistic(ctx context.Context) (float64, error) {
	return float64(c), nil
}

// DynamicBenchmark supplies benchmark + margin, floored at Floor.
type DynamicBenchmark struct {
	Source ports.BenchmarkSource
	Margin float64
	Floor  float64
}

// NewDynamicBenchmark builds a dynamic threshold over a constant benchmark
// with the default margin and floor.
func NewDynamicBenchmark(benchmark float64) *DynamicBenchmark {
	return &DynamicBenchmark{
		Source: ConstantBenchmark(benchmark),
		Margin: DefaultMargin,
		Floor:  DefaultDynamicFloor,
	}
}

// Threshold resolves the benchmark and returns max(benchmark+margin, floor).
// A failing or non-finite source is reported, never replaced by a default.
func (d *DynamicBenchmark) Threshold(ctx context.Context) (float64, error) {
	if d.Source == nil {
		return 0, core.NewConfigurationError("threshold", "benchmark_source", nil, "dynamic threshold requires a source")
	}
	benchmark, err := d.Source.BenchmarkStatistic(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve benchmark statistic: %w", err)
	}
	if math.IsNaN(benchmark) || math.IsInf(benchmark, 0) {
		return 0, core.NewConfigurationError("threshold", "benchmark", benchmark, "must be finite")
	}
	return math.Max(benchmark+d.Margin, d.Floor), nil
}
