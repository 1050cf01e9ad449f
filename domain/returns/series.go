// Package returns holds the return series value type and the statistics
// computed on it.
package returns

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// TradingPeriodsPerYear annualizes daily statistics.
	TradingPeriodsPerYear = 252

	// MinimumLength is the usual floor for a series entering validation.
	MinimumLength = 252

	// Standard deviations at or below this are treated as zero variance.
	zeroVarianceTolerance = 1e-12
)

// Series is an ordered, finite, immutable sequence of per-period returns.
type Series struct {
	values  []float64
	dropped int
}

// NewSeries copies values, dropping NaN and ±Inf entries without reordering
// the rest.
func NewSeries(values []float64) Series {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		clean = append(clean, v)
	}
	return Series{values: clean, dropped: len(values) - len(clean)}
}

// Len is the number of finite observations.
func (s Series) Len() int { return len(s.values) }

// Dropped is how many non-finite entries were removed at construction.
func (s Series) Dropped() int { return s.dropped }

// Values returns a copy of the observations.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// View returns the underlying slice. Callers must not modify it.
func (s Series) View() []float64 { return s.values }

// Sharpe is the annualized Sharpe ratio of the whole series.
func (s Series) Sharpe() (float64, bool) { return AnnualizedSharpe(s.values) }

// Finite reports whether every value is finite.
func Finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// AnnualizedSharpe returns mean/sample_std*sqrt(252). The boolean is false
// when the statistic is undefined: fewer than two values or zero variance.
func AnnualizedSharpe(values []float64) (float64, bool) {
	return SharpeWithPeriods(values, TradingPeriodsPerYear)
}

// SharpeWithPeriods annualizes with an arbitrary periods-per-year factor.
func SharpeWithPeriods(values []float64, periodsPerYear float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) || std <= zeroVarianceTolerance {
		return 0, false
	}
	sharpe := mean / std * math.Sqrt(periodsPerYear)
	if math.IsNaN(sharpe) || math.IsInf(sharpe, 0) {
		return 0, false
	}
	return sharpe, true
}
