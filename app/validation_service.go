package app

import (
	"context"
	"sort"
	"time"

	"overfitguard/adapters/report"
	"overfitguard/domain/core"
	"overfitguard/domain/returns"
	"overfitguard/domain/stats"
	"overfitguard/internal"
	"overfitguard/internal/container"
	"overfitguard/internal/errors"
	"overfitguard/internal/validation"
)

// ValidationService turns backtest reports into verdicts
type ValidationService struct {
	container *container.Container
	logger    *internal.Logger
}

// ValidationRequest defines the inputs for validating one strategy
type ValidationRequest struct {
	Strategy core.StrategyID
	Report   report.Report
	From     time.Time // optional inclusive bounds on Report.Dates
	To       time.Time
	Method   validation.Method // empty uses the configured method
}

// NewValidationService creates a validation service
func NewValidationService(c *container.Container) *ValidationService {
	return &ValidationService{
		container: c,
		logger:    c.Logger.With("validation-service"),
	}
}

// Validate filters the report to the requested dates, extracts its return
// series and runs the selected validator.
func (s *ValidationService) Validate(ctx context.Context, req ValidationRequest) (*stats.Verdict, error) {
	series, err := s.extract(req.Strategy, req.Report, req.From, req.To)
	if err != nil {
		return nil, err
	}

	validator, err := s.container.Validator(req.Method)
	if err != nil {
		return nil, errors.Wrap(err, "build validator")
	}
	return validator.Validate(ctx, req.Strategy, series)
}

// ValidateFile reads a report workbook or CSV and validates it
func (s *ValidationService) ValidateFile(ctx context.Context, strategy core.StrategyID, path string, from, to time.Time) (*stats.Verdict, error) {
	rep, err := s.container.Reader(path).ReadReport()
	if err != nil {
		return nil, errors.Wrapf(err, "read report for %s", strategy)
	}
	return s.Validate(ctx, ValidationRequest{Strategy: strategy, Report: rep, From: from, To: to})
}

// Screen treats the reports as one family of hypotheses: each strategy's
// full-series Sharpe ratio is tested against the Bonferroni threshold for
// len(reports) strategies. Periods is the shortest series length.
func (s *ValidationService) Screen(ctx context.Context, reports map[core.StrategyID]report.Report) (stats.BatchReport, error) {
	if len(reports) == 0 {
		return stats.BatchReport{}, errors.Wrap(
			core.NewConfigurationError("screen", "reports", 0, "at least one report is required"), "screen")
	}

	ids := make([]core.StrategyID, 0, len(reports))
	for id := range reports {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pairs := make([]stats.StrategyStatistic, 0, len(ids))
	periods := 0
	for _, id := range ids {
		series, err := s.extract(id, reports[id], time.Time{}, time.Time{})
		if err != nil {
			return stats.BatchReport{}, err
		}
		sharpe, ok := returns.AnnualizedSharpe(series)
		if !ok {
			return stats.BatchReport{}, errors.Wrapf(&core.DegenerateStatisticError{
				Component: "screen",
				Reason:    "zero variance return series",
			}, "strategy %s", id)
		}
		pairs = append(pairs, stats.StrategyStatistic{Name: id.String(), Statistic: sharpe})
		if periods == 0 || len(series) < periods {
			periods = len(series)
		}
	}

	policy, err := s.container.Policy(len(pairs))
	if err != nil {
		return stats.BatchReport{}, errors.Wrap(err, "threshold policy")
	}
	batch, err := policy.ValidateBatch(ctx, pairs, periods)
	if err != nil {
		return stats.BatchReport{}, errors.Wrap(err, "validate batch")
	}
	s.logger.Info("screened %d strategies: %d significant at threshold %.4f (expected false discoveries %.3f)",
		batch.Total, batch.SignificantCount, batch.Threshold, batch.ExpectedFalseDiscoveries)
	return batch, nil
}

func (s *ValidationService) extract(strategy core.StrategyID, rep report.Report, from, to time.Time) ([]float64, error) {
	if !from.IsZero() || !to.IsZero() {
		filtered, err := s.container.Filter.Apply(rep, from, to)
		if err != nil {
			return nil, errors.Wrapf(err, "filter report for %s", strategy)
		}
		rep = filtered
	}

	series, err := report.Extract(rep)
	if err != nil {
		return nil, errors.Wrapf(err, "extract returns for %s", strategy)
	}
	return series, nil
}
