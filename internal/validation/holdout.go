package validation

import (
	"context"
	"math"

	"overfitguard/domain/core"
	"overfitguard/domain/stats"
	"overfitguard/internal/consistency"
	apperrors "overfitguard/internal/errors"
	"overfitguard/internal/windows"
)

// minSegment is the smallest segment with a sample standard deviation.
const minSegment = 2

// HoldoutValidator splits the series once into train, validation and test
// segments separated by the purge gap.
type HoldoutValidator struct {
	*engine
}

var _ Validator = (*HoldoutValidator)(nil)

func NewHoldoutValidator(cfg Config, deps Dependencies) (*HoldoutValidator, error) {
	eng, err := newEngine(MethodHoldout, cfg, deps)
	if err != nil {
		return nil, err
	}
	if cfg.Windows.PurgeGap < 0 {
		return nil, apperrors.Wrap(
			core.NewConfigurationError("holdout", "purge_gap", cfg.Windows.PurgeGap, "must be >= 0"), "window config")
	}
	return &HoldoutValidator{engine: eng}, nil
}

func (v *HoldoutValidator) Method() Method { return MethodHoldout }

// Segments returns the train, validation and test ranges for n observations.
func (v *HoldoutValidator) Segments(n int) (train, validation, test stats.Range, err error) {
	gap := v.cfg.Windows.PurgeGap
	usable := n - 2*gap
	trainLen := int(math.Floor(float64(usable) * v.cfg.TrainFraction))
	validationLen := int(math.Floor(float64(usable) * v.cfg.ValidationFraction))
	testLen := usable - trainLen - validationLen

	if trainLen < minSegment || validationLen < minSegment || testLen < minSegment {
		smallest := math.Min(math.Min(v.cfg.TrainFraction, v.cfg.ValidationFraction), 1-v.cfg.TrainFraction-v.cfg.ValidationFraction)
		return train, validation, test, &core.InsufficientDataError{
			Component: "holdout",
			Required:  2*gap + int(math.Ceil(minSegment/smallest)),
			Available: n,
			Detail:    "each segment needs at least 2 observations",
		}
	}

	train = stats.Range{Start: 0, End: trainLen}
	validation = stats.Range{Start: train.End + gap, End: train.End + gap + validationLen}
	test = stats.Range{Start: validation.End + gap, End: n}
	return train, validation, test, nil
}

func (v *HoldoutValidator) Validate(ctx context.Context, strategy core.StrategyID, values []float64) (*stats.Verdict, error) {
	r := v.begin(strategy, values)

	train, validation, test, err := v.Segments(len(r.src))
	if err != nil {
		return nil, apperrors.Wrapf(err, "run %s: holdout segments", r.verdict.RunID)
	}
	ws := []stats.Window{
		{Index: 0, Train: train, Test: validation},
		{Index: 1, Train: validation, Test: test},
	}
	if err := windows.CheckNoLeakage(ws, v.cfg.Windows.PurgeGap); err != nil {
		return nil, apperrors.Wrapf(err, "run %s: holdout leakage", r.verdict.RunID)
	}
	results, err := v.evaluate(ctx, r, ws)
	if err != nil {
		return nil, err
	}

	var sharpes []float64
	if results[0].TrainDefined {
		sharpes = append(sharpes, results[0].TrainStatistic)
	}
	sharpes = append(sharpes, definedTests(results)...)
	r.verdict.Consistency = v.scorer.Evaluate(sharpes)

	if results[0].TrainDefined && results[1].TestDefined {
		r.verdict.Degradation = consistency.Degrade(results[1].TestStatistic, results[0].TrainStatistic)
	}
	return v.conclude(ctx, r)
}
