// Package consistency collapses a handful of per-period statistics into one
// stability score in [0,1].
package consistency

import (
	"math"

	"github.com/montanaflynn/stats"

	"overfitguard/domain/core"
	domainStats "overfitguard/domain/stats"
)

// DefaultEpsilon is the smallest mean that can earn a non-zero score.
const DefaultEpsilon = 0.1

// Scorer holds the rejection floor.
type Scorer struct {
	Epsilon float64
}

// NewScorer returns a scorer with the given floor. The floor must be
// positive so that a losing set can never clear it.
func NewScorer(epsilon float64) (*Scorer, error) {
	if math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		return nil, core.NewConfigurationError("consistency", "epsilon", epsilon, "must be finite")
	}
	if epsilon <= 0 {
		return nil, core.NewConfigurationError("consistency", "epsilon", epsilon, "must be positive")
	}
	return &Scorer{Epsilon: epsilon}, nil
}

// Score is clamp(1 - sample_std/mean, 0, 1), or 0 when there are fewer than
// two values or the mean is below epsilon. A set with a negative or
// near-zero mean scores 0 however tightly it is clustered: a consistently
// losing strategy is not a consistent one.
func Score(values []float64, epsilon float64) float64 {
	return (&Scorer{Epsilon: epsilon}).Evaluate(values).Score
}

// Evaluate returns the score with the mean and deviation behind it.
func (s *Scorer) Evaluate(values []float64) domainStats.ConsistencyResult {
	result := domainStats.ConsistencyResult{Count: len(values), Epsilon: s.Epsilon}
	if len(values) < 2 {
		result.Rejected = domainStats.RejectionTooFewValues
		return result
	}

	mean, err := stats.Mean(values)
	if err != nil {
		result.Rejected = domainStats.RejectionTooFewValues
		return result
	}
	std, err := stats.StandardDeviationSample(values)
	if err != nil {
		result.Rejected = domainStats.RejectionTooFewValues
		return result
	}
	result.Mean = mean
	result.StdDev = std

	// mean == epsilon passes; a non-positive mean never does
	if !(mean >= s.Epsilon) || mean <= 0 {
		result.Rejected = domainStats.RejectionMeanBelowEpsilon
		return result
	}

	result.Score = clamp(1-std/mean, 0, 1)
	return result
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// DegradationRatio is later/earlier when earlier > 0, otherwise 0.
func DegradationRatio(later, earlier float64) float64 {
	return Degrade(later, earlier).Ratio
}

// Degrade is the detailed form of DegradationRatio. Defined is false when
// the ratio must be excluded from pass/fail decisions.
func Degrade(later, earlier float64) domainStats.Degradation {
	d := domainStats.Degradation{Later: later, Earlier: earlier}
	if !(earlier > 0) || math.IsNaN(later) || math.IsInf(later, 0) || math.IsInf(earlier, 0) {
		return d
	}
	d.Ratio = later / earlier
	d.Defined = true
	return d
}
