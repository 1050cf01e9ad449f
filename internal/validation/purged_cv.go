package validation

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"overfitguard/domain/core"
	"overfitguard/domain/stats"
	"overfitguard/internal/consistency"
	apperrors "overfitguard/internal/errors"
	"overfitguard/internal/windows"
)

// PurgedCVValidator evaluates expanding, purged train/test splits and
// compares each split's out-of-sample statistic with its in-sample one.
type PurgedCVValidator struct {
	*engine
	generator *windows.Expanding
}

var _ Validator = (*PurgedCVValidator)(nil)

func NewPurgedCVValidator(cfg Config, deps Dependencies) (*PurgedCVValidator, error) {
	eng, err := newEngine(MethodPurgedCV, cfg, deps)
	if err != nil {
		return nil, err
	}
	gen, err := windows.NewExpanding(cfg.Windows)
	if err != nil {
		return nil, apperrors.Wrap(err, "window config")
	}
	return &PurgedCVValidator{engine: eng, generator: gen}, nil
}

func (v *PurgedCVValidator) Method() Method { return MethodPurgedCV }

func (v *PurgedCVValidator) Validate(ctx context.Context, strategy core.StrategyID, values []float64) (*stats.Verdict, error) {
	r := v.begin(strategy, values)

	ws, err := v.generate(v.generator, r)
	if err != nil {
		return nil, err
	}
	results, err := v.evaluate(ctx, r, ws)
	if err != nil {
		return nil, err
	}

	r.verdict.Consistency = v.scorer.Evaluate(definedTests(results))
	r.verdict.Degradation = meanDegradation(results)
	return v.conclude(ctx, r)
}

// meanDegradation averages test/train over the splits where the ratio is
// defined. Later and Earlier are the mean test and train statistics over
// splits where both exist.
func meanDegradation(results []stats.WindowStatistic) stats.Degradation {
	var later, earlier, ratios []float64
	for _, w := range results {
		if !w.TrainDefined || !w.TestDefined {
			continue
		}
		later = append(later, w.TestStatistic)
		earlier = append(earlier, w.TrainStatistic)
		if d := consistency.Degrade(w.TestStatistic, w.TrainStatistic); d.Defined {
			ratios = append(ratios, d.Ratio)
		}
	}

	var out stats.Degradation
	if len(later) > 0 {
		out.Later = stat.Mean(later, nil)
		out.Earlier = stat.Mean(earlier, nil)
	}
	if len(ratios) > 0 {
		out.Ratio = stat.Mean(ratios, nil)
		out.Defined = true
	}
	return out
}
