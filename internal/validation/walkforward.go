package validation

import (
	"context"

	"overfitguard/domain/core"
	"overfitguard/domain/stats"
	"overfitguard/internal/consistency"
	apperrors "overfitguard/internal/errors"
	"overfitguard/internal/windows"
)

// WalkForwardValidator rolls a fixed-length training block through the
// series and judges the strategy on its out-of-sample windows. Consistency
// is scored over the window test statistics and degradation compares the
// last window against the first.
type WalkForwardValidator struct {
	*engine
	generator *windows.Sliding
}

var _ Validator = (*WalkForwardValidator)(nil)

func NewWalkForwardValidator(cfg Config, deps Dependencies) (*WalkForwardValidator, error) {
	eng, err := newEngine(MethodWalkForward, cfg, deps)
	if err != nil {
		return nil, err
	}
	gen, err := windows.NewSliding(cfg.Windows)
	if err != nil {
		return nil, apperrors.Wrap(err, "window config")
	}
	return &WalkForwardValidator{engine: eng, generator: gen}, nil
}

func (v *WalkForwardValidator) Method() Method { return MethodWalkForward }

func (v *WalkForwardValidator) Validate(ctx context.Context, strategy core.StrategyID, values []float64) (*stats.Verdict, error) {
	r := v.begin(strategy, values)

	ws, err := v.generate(v.generator, r)
	if err != nil {
		return nil, err
	}
	results, err := v.evaluate(ctx, r, ws)
	if err != nil {
		return nil, err
	}

	tests := definedTests(results)
	r.verdict.Consistency = v.scorer.Evaluate(tests)
	if len(tests) >= 2 {
		r.verdict.Degradation = consistency.Degrade(tests[len(tests)-1], tests[0])
	}
	return v.conclude(ctx, r)
}
