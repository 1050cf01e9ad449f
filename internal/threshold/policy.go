// Package threshold computes the minimum statistic a strategy must exceed to
// be declared significant when many strategies are screened at once.
//
// The statistical leg is a Bonferroni-corrected two-tailed z threshold
// scaled to the number of periods; the optional dynamic leg is an empirical
// benchmark plus margin. The combined threshold is the larger of the two.
package threshold

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"overfitguard/domain/core"
	"overfitguard/domain/stats"
)

// Config is the statistical leg of the policy.
type Config struct {
	Hypotheses   int     // number of strategies screened together, > 0
	Alpha        float64 // family-wise error budget, in (0,1)
	Periods      int     // observations behind each statistic, > 0
	Conservative bool    // floor the statistical threshold at ConservativeFloor
}

// DefaultConfig screens a single hypothesis at alpha 0.05 over one year.
func DefaultConfig() Config {
	return Config{Hypotheses: 1, Alpha: DefaultAlpha, Periods: DefaultPeriods}
}

func validate(n int, alpha float64, periods int) error {
	if n <= 0 {
		return core.NewConfigurationError("threshold", "hypotheses", n, "must be positive")
	}
	if !(alpha > 0 && alpha < 1) {
		return core.NewConfigurationError("threshold", "alpha", alpha, "must be in (0,1)")
	}
	if periods <= 0 {
		return core.NewConfigurationError("threshold", "periods", periods, "must be positive")
	}
	return nil
}

// AdjustedAlpha is the Bonferroni per-hypothesis level alpha/n.
func AdjustedAlpha(n int, alpha float64) (float64, error) {
	if err := validate(n, alpha, 1); err != nil {
		return 0, err
	}
	return alpha / float64(n), nil
}

// StatisticalThreshold returns z(1 - alpha/(2n)) / sqrt(periods), floored at
// ConservativeFloor when conservative is set.
func StatisticalThreshold(n int, alpha float64, periods int, conservative bool) (float64, error) {
	if err := validate(n, alpha, periods); err != nil {
		return 0, err
	}
	adjusted := alpha / float64(n)
	z := distuv.UnitNormal.Quantile(1 - adjusted/2)
	threshold := z / math.Sqrt(float64(periods))
	if conservative {
		threshold = math.Max(threshold, ConservativeFloor)
	}
	return threshold, nil
}

// FWER is the exact family-wise error rate 1-(1-alpha/n)^n of n independent
// tests at the Bonferroni level. It never exceeds alpha.
func FWER(n int, alpha float64) (float64, error) {
	adjusted, err := AdjustedAlpha(n, alpha)
	if err != nil {
		return 0, err
	}
	fwer := -math.Expm1(float64(n) * math.Log1p(-adjusted))
	// at n=1 the exact value is alpha; rounding may land one ulp above it
	return math.Min(fwer, alpha), nil
}

// Policy combines the statistical threshold with an optional dynamic
// benchmark threshold. It is immutable; every call recomputes its report.
type Policy struct {
	cfg     Config
	dynamic *DynamicBenchmark
}

// NewPolicy validates cfg. dynamic may be nil to use the statistical leg only.
func NewPolicy(cfg Config, dynamic *DynamicBenchmark) (*Policy, error) {
	if err := validate(cfg.Hypotheses, cfg.Alpha, cfg.Periods); err != nil {
		return nil, err
	}
	return &Policy{cfg: cfg, dynamic: dynamic}, nil
}

func (p *Policy) Config() Config { return p.cfg }

// WithHypotheses returns a copy of the policy for a different family size.
func (p *Policy) WithHypotheses(n int) (*Policy, error) {
	cfg := p.cfg
	cfg.Hypotheses = n
	return NewPolicy(cfg, p.dynamic)
}

// Report computes all legs of the threshold.
func (p *Policy) Report(ctx context.Context) (stats.ThresholdReport, error) {
	statistical, err := StatisticalThreshold(p.cfg.Hypotheses, p.cfg.Alpha, p.cfg.Periods, p.cfg.Conservative)
	if err != nil {
		return stats.ThresholdReport{}, err
	}

	report := stats.ThresholdReport{
		StatisticalThreshold: statistical,
		CombinedThreshold:    statistical,
		AdjustedAlpha:        p.cfg.Alpha / float64(p.cfg.Hypotheses),
		Conservative:         p.cfg.Conservative,
	}

	if p.dynamic != nil {
		dynamic, err := p.dynamic.Threshold(ctx)
		if err != nil {
			return stats.ThresholdReport{}, err
		}
		report.DynamicThreshold = dynamic
		report.DynamicActive = true
		report.CombinedThreshold = math.Max(statistical, dynamic)
	}
	return report, nil
}

// Threshold is the combined threshold.
func (p *Policy) Threshold(ctx context.Context) (float64, error) {
	report, err := p.Report(ctx)
	if err != nil {
		return 0, err
	}
	return report.CombinedThreshold, nil
}

// IsSignificant reports |statistic| > combined threshold. Significantly
// negative statistics count as significant for screening.
func (p *Policy) IsSignificant(ctx context.Context, statistic float64) (bool, error) {
	threshold, err := p.Threshold(ctx)
	if err != nil {
		return false, err
	}
	return exceeds(statistic, threshold), nil
}

func exceeds(statistic, threshold float64) bool {
	if math.IsNaN(statistic) {
		return false
	}
	return math.Abs(statistic) > threshold
}

// ExpectedFalseDiscoveries is alpha/n * total, the Bonferroni bound on the
// number of nulls expected to clear the threshold.
func (p *Policy) ExpectedFalseDiscoveries(total int) float64 {
	return p.cfg.Alpha / float64(p.cfg.Hypotheses) * float64(total)
}

// ValidateBatch screens pairs as one family of len(pairs) hypotheses.
func (p *Policy) ValidateBatch(ctx context.Context, pairs []stats.StrategyStatistic, periods int) (stats.BatchReport, error) {
	cfg := p.cfg
	cfg.Hypotheses = len(pairs)
	cfg.Periods = periods
	batch, err := NewPolicy(cfg, p.dynamic)
	if err != nil {
		return stats.BatchReport{}, err
	}

	report, err := batch.Report(ctx)
	if err != nil {
		return stats.BatchReport{}, err
	}
	fwer, err := FWER(cfg.Hypotheses, cfg.Alpha)
	if err != nil {
		return stats.BatchReport{}, err
	}

	significant := make([]stats.StrategyStatistic, 0)
	for _, pair := range pairs {
		if exceeds(pair.Statistic, report.CombinedThreshold) {
			significant = append(significant, pair)
		}
	}
	sort.SliceStable(significant, func(i, j int) bool {
		return math.Abs(significant[i].Statistic) > math.Abs(significant[j].Statistic)
	})

	total := len(pairs)
	expected := batch.ExpectedFalseDiscoveries(total)
	return stats.BatchReport{
		Total:                    total,
		SignificantCount:         len(significant),
		Threshold:                report.CombinedThreshold,
		AdjustedAlpha:            report.AdjustedAlpha,
		ExpectedFalseDiscoveries: expected,
		EstimatedFDR:             expected / math.Max(1, float64(len(significant))),
		FWER:                     fwer,
		Significant:              significant,
	}, nil
}
