package app

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overfitguard/adapters/report"
	"overfitguard/domain/core"
	"overfitguard/internal/config"
	"overfitguard/internal/container"
	"overfitguard/internal/errors"
	"overfitguard/internal/testkit"
	"overfitguard/internal/threshold"
	"overfitguard/internal/validation"
)

func newService(t *testing.T) *ValidationService {
	t.Helper()
	t.Setenv("BOOTSTRAP_ITERATIONS", "200")
	t.Setenv("BOOTSTRAP_WORKERS", "2")
	t.Setenv("WINDOW_POLICY", "sliding")
	t.Setenv("VALIDATION_METHOD", "")
	t.Setenv("WINDOW_SPLITS", "3")
	t.Setenv("WINDOW_TRAIN_SIZE", "126")
	t.Setenv("WINDOW_TEST_SIZE", "63")
	t.Setenv("WINDOW_PURGE_GAP", "5")
	t.Setenv("REPORT_FILTER_POLICY", "strict")
	t.Setenv("OVERFITGUARD_LOG_LEVEL", "ERROR")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	c, err := container.New(cfg)
	require.NoError(t, err)
	return NewValidationService(c)
}

func equityReport(periods int, mean float64, seed int64) report.Report {
	gen := testkit.NewReturnsGenerator(testkit.ReturnsGeneratorConfig{
		Periods:    periods,
		Mean:       mean,
		StdDev:     0.01,
		StartDate:  time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC),
		StartValue: 100000,
		Seed:       seed,
	})
	equity := gen.Equity(gen.Returns())
	return report.Report{Equity: equity, Dates: gen.Dates(len(equity))}
}

func TestValidateEquityReport(t *testing.T) {
	svc := newService(t)

	verdict, err := svc.Validate(context.Background(), ValidationRequest{
		Strategy: "trend",
		Report:   equityReport(800, 0.01, 42),
	})
	require.NoError(t, err)
	assert.True(t, verdict.Passed, "reasons: %v", verdict.Reasons)
	assert.Equal(t, string(validation.MethodWalkForward), verdict.Method)

	holdout, err := svc.Validate(context.Background(), ValidationRequest{
		Strategy: "trend",
		Report:   equityReport(800, 0.01, 42),
		Method:   validation.MethodHoldout,
	})
	require.NoError(t, err)
	assert.Equal(t, string(validation.MethodHoldout), holdout.Method)
}

func TestValidateFiltersByDate(t *testing.T) {
	svc := newService(t)
	rep := equityReport(800, 0.01, 42)

	_, err := svc.Validate(context.Background(), ValidationRequest{
		Strategy: "trend",
		Report:   rep,
		From:     rep.Dates[0],
		To:       rep.Dates[200],
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInsufficientData, "200 filtered returns cannot form a bootstrap interval")

	undated := rep
	undated.Dates = nil
	_, err = svc.Validate(context.Background(), ValidationRequest{Strategy: "trend", Report: undated, From: rep.Dates[0]})
	assert.Equal(t, errors.CodeExtractionFailed, errors.GetCode(err))
}

func TestValidateNeverSynthesizes(t *testing.T) {
	svc := newService(t)

	_, err := svc.Validate(context.Background(), ValidationRequest{Strategy: "empty", Report: report.Report{}})
	require.ErrorIs(t, err, core.ErrExtraction)
	assert.Equal(t, errors.CodeExtractionFailed, errors.GetCode(err))
}

func TestValidateFile(t *testing.T) {
	svc := newService(t)
	rep := equityReport(800, 0.01, 42)

	var b strings.Builder
	b.WriteString("date,equity\n")
	for i, v := range rep.Equity {
		b.WriteString(rep.Dates[i].Format("2006-01-02") + "," + strconv.FormatFloat(v, 'g', -1, 64) + "\n")
	}
	path := filepath.Join(t.TempDir(), "trend.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	verdict, err := svc.ValidateFile(context.Background(), "trend", path, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, verdict.Passed, "reasons: %v", verdict.Reasons)

	_, err = svc.ValidateFile(context.Background(), "trend", filepath.Join(t.TempDir(), "missing.csv"), time.Time{}, time.Time{})
	assert.Equal(t, errors.CodeExtractionFailed, errors.GetCode(err))
}

func TestScreen(t *testing.T) {
	t.Setenv("DYNAMIC_BENCHMARK", "2.8")
	svc := newService(t)

	batch, err := svc.Screen(context.Background(), map[core.StrategyID]report.Report{
		"trend":     equityReport(800, 0.01, 1),
		"noise":     equityReport(600, 0, 2),
		"drift":     equityReport(700, 0.004, 3),
		"reversion": {Returns: testkit.NewReturnsGenerator(testkit.ReturnsGeneratorConfig{Periods: 500, Mean: -0.007, StdDev: 0.01, Seed: 4}).Returns()}, // Sharpe near -11
	})
	require.NoError(t, err)

	assert.Equal(t, 4, batch.Total)
	assert.InDelta(t, 0.0125, batch.AdjustedAlpha, 1e-15)
	assert.InDelta(t, 3.0, batch.Threshold, 1e-12, "dynamic benchmark of 2.8 + 0.2 margin")
	require.Equal(t, 3, batch.SignificantCount)
	assert.Equal(t, "trend", batch.Significant[0].Name)
	assert.Equal(t, "reversion", batch.Significant[1].Name)
	assert.Equal(t, "drift", batch.Significant[2].Name)
}

func TestScreenErrors(t *testing.T) {
	svc := newService(t)

	_, err := svc.Screen(context.Background(), nil)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	_, err = svc.Screen(context.Background(), map[core.StrategyID]report.Report{
		"flat": {Returns: testkit.Constant(300, 0.001)},
	})
	assert.ErrorIs(t, err, core.ErrDegenerateStatistic)
}

type storedBenchmark float64

func (b storedBenchmark) BenchmarkStatistic(ctx context.Context) (float64, error) {
	return float64(b), nil
}

func TestBenchmarkSourceRaisesThreshold(t *testing.T) {
	svc := newService(t)
	svc.container.WithBenchmarkSource(storedBenchmark(30))

	policy, err := svc.container.Policy(1)
	require.NoError(t, err)
	th, err := policy.Threshold(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 30+threshold.DefaultMargin, th, 1e-12)

	verdict, err := svc.Validate(context.Background(), ValidationRequest{Strategy: "trend", Report: equityReport(800, 0.01, 42)})
	require.NoError(t, err)
	assert.False(t, verdict.Passed)
}
