// Package validation runs complete strategy validations: it generates
// windows, evaluates them concurrently, bootstraps a confidence interval
// for the full series and applies the significance threshold, producing a
// single Verdict per run.
package validation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"overfitguard/domain/core"
	"overfitguard/domain/returns"
	"overfitguard/domain/stats"
	"overfitguard/internal"
	"overfitguard/internal/bootstrap"
	"overfitguard/internal/consistency"
	apperrors "overfitguard/internal/errors"
	"overfitguard/internal/profiling"
	"overfitguard/internal/threshold"
	"overfitguard/internal/windows"
	"overfitguard/ports"
)

// Method names a validation procedure.
type Method string

const (
	MethodWalkForward Method = "walk_forward"
	MethodPurgedCV    Method = "purged_cv"
	MethodHoldout     Method = "holdout"
)

const (
	DefaultMinConsistency     = 0.5
	DefaultMinDegradation     = 0.5
	DefaultCapacity           = 8
	DefaultWorkers            = 4
	DefaultTrainFraction      = 0.6
	DefaultValidationFraction = 0.2
)

// Config holds every engine configuration plus the pass rule.
type Config struct {
	Windows   windows.Config
	Bootstrap bootstrap.Config
	Threshold threshold.Config
	Epsilon   float64

	MinConsistency float64 // consistency score required to pass
	MinDegradation float64 // degradation ratio required to pass, when defined

	Capacity int // window executor capacity in cost units
	Workers  int // bootstrap workers

	TrainFraction      float64 // holdout only
	ValidationFraction float64 // holdout only
}

// DefaultConfig is five sliding or expanding splits of one quarter after a
// one-year training block, with default engine settings.
func DefaultConfig() Config {
	return Config{
		Windows:            windows.Config{Splits: 5, PurgeGap: 5, TestSize: 63, TrainSize: 252},
		Bootstrap:          bootstrap.DefaultConfig(),
		Threshold:          threshold.DefaultConfig(),
		Epsilon:            consistency.DefaultEpsilon,
		MinConsistency:     DefaultMinConsistency,
		MinDegradation:     DefaultMinDegradation,
		Capacity:           DefaultCapacity,
		Workers:            DefaultWorkers,
		TrainFraction:      DefaultTrainFraction,
		ValidationFraction: DefaultValidationFraction,
	}
}

// Validate checks the orchestration knobs. Engine configs are validated by
// their constructors.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return core.NewConfigurationError("validation", "capacity", c.Capacity, "must be positive")
	}
	if c.Workers <= 0 {
		return core.NewConfigurationError("validation", "workers", c.Workers, "must be positive")
	}
	if !(c.MinConsistency >= 0 && c.MinConsistency <= 1) {
		return core.NewConfigurationError("validation", "min_consistency", c.MinConsistency, "must be in [0,1]")
	}
	if math.IsNaN(c.MinDegradation) || math.IsInf(c.MinDegradation, 0) {
		return core.NewConfigurationError("validation", "min_degradation", c.MinDegradation, "must be finite")
	}
	if !(c.TrainFraction > 0 && c.ValidationFraction > 0 && c.TrainFraction+c.ValidationFraction < 1) {
		return core.NewConfigurationError("validation", "holdout_fractions",
			fmt.Sprintf("%v/%v", c.TrainFraction, c.ValidationFraction), "must be positive and leave room for a test segment")
	}
	return nil
}

// Dependencies are the collaborators shared by all validators.
type Dependencies struct {
	Streams   ports.RNGPort               // required, one stream per bootstrap worker
	Benchmark *threshold.DynamicBenchmark // optional dynamic threshold leg
	Executor  *WindowExecutor             // optional, shared to bound capacity across validators
	Logger    *internal.Logger
}

// Validator validates one strategy's return series.
type Validator interface {
	Validate(ctx context.Context, strategy core.StrategyID, values []float64) (*stats.Verdict, error)
	Method() Method
}

// New returns the validator for method.
func New(method Method, cfg Config, deps Dependencies) (Validator, error) {
	switch Method(strings.ToLower(string(method))) {
	case MethodWalkForward, "":
		return NewWalkForwardValidator(cfg, deps)
	case MethodPurgedCV:
		return NewPurgedCVValidator(cfg, deps)
	case MethodHoldout:
		return NewHoldoutValidator(cfg, deps)
	default:
		return nil, apperrors.Wrap(
			core.NewConfigurationError("validation", "method", method, "expected walk_forward, purged_cv or holdout"),
			"select validator")
	}
}

// engine holds what every validator needs after construction.
type engine struct {
	method    Method
	cfg       Config
	estimator *bootstrap.Estimator
	policy    *threshold.Policy
	scorer    *consistency.Scorer
	executor  *WindowExecutor
	profiler  *profiling.DistributionAnalyzer
	streams   ports.RNGPort
	logger    *internal.Logger
}

func newEngine(method Method, cfg Config, deps Dependencies) (*engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, "validation config")
	}
	if deps.Streams == nil {
		return nil, apperrors.Wrap(
			core.NewConfigurationError("validation", "streams", nil, "rng port is required"), "validation config")
	}

	estimator, err := bootstrap.NewEstimator(cfg.Bootstrap)
	if err != nil {
		return nil, apperrors.Wrap(err, "bootstrap config")
	}
	policy, err := threshold.NewPolicy(cfg.Threshold, deps.Benchmark)
	if err != nil {
		return nil, apperrors.Wrap(err, "threshold config")
	}
	cfg.Bootstrap = estimator.Config()
	scorer, err := consistency.NewScorer(cfg.Epsilon)
	if err != nil {
		return nil, apperrors.Wrap(err, "consistency config")
	}

	logger := deps.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	executor := deps.Executor
	if executor == nil {
		executor = NewWindowExecutor(cfg.Capacity, nil, logger)
	}

	return &engine{
		method:    method,
		cfg:       cfg,
		estimator: estimator,
		policy:    policy,
		scorer:    scorer,
		executor:  executor,
		profiler:  profiling.NewDistributionAnalyzer(),
		streams:   deps.Streams,
		logger:    logger.With(string(method)),
	}, nil
}

// run is the mutable state of a single Validate call.
type run struct {
	verdict *stats.Verdict
	src     []float64
	start   time.Time
}

func (e *engine) begin(strategy core.StrategyID, values []float64) *run {
	series := returns.NewSeries(values)
	src := series.View()
	runID := core.NewRunID()

	if series.Dropped() > 0 {
		e.logger.Warn("run %s: dropped %d non-finite values from %s", runID, series.Dropped(), strategy)
	}
	e.logger.Info("run %s: validating %s over %d observations", runID, strategy, len(src))

	verdict := &stats.Verdict{
		RunID:       runID,
		Strategy:    strategy,
		Method:      string(e.method),
		Fingerprint: core.ComputeFingerprint(src, e.fingerprintParams(), e.cfg.Bootstrap.Seed),
	}
	if profile, err := e.profiler.AnalyzeDistribution(src); err == nil {
		verdict.Profile = profile
		if !profile.IsNormal || math.Abs(profile.Lag1AC) > 0.1 {
			e.logger.Debug("run %s: skew %.3f, excess kurtosis %.3f, lag-1 autocorrelation %.3f",
				runID, profile.Skewness, profile.Kurtosis, profile.Lag1AC)
		}
	}

	return &run{verdict: verdict, src: src, start: time.Now()}
}

func (e *engine) fingerprintParams() map[string]interface{} {
	b := e.cfg.Bootstrap
	w := e.cfg.Windows
	t := e.cfg.Threshold
	return map[string]interface{}{
		"method":              e.method,
		"splits":              w.Splits,
		"purge_gap":           w.PurgeGap,
		"test_size":           w.TestSize,
		"train_size":          w.TrainSize,
		"iterations":          b.Iterations,
		"block_param":         b.BlockParam,
		"confidence":          b.ConfidenceLevel,
		"policy":              b.Policy,
		"workers":             e.cfg.Workers,
		"alpha":               t.Alpha,
		"hypotheses":          t.Hypotheses,
		"periods":             t.Periods,
		"conservative":        t.Conservative,
		"epsilon":             e.cfg.Epsilon,
		"train_fraction":      e.cfg.TrainFraction,
		"validation_fraction": e.cfg.ValidationFraction,
	}
}

// definedTests returns the test statistics of the windows where it exists.
func definedTests(ws []stats.WindowStatistic) []float64 {
	out := make([]float64, 0, len(ws))
	for _, w := range ws {
		if w.TestDefined {
			out = append(out, w.TestStatistic)
		}
	}
	return out
}

// conclude bootstraps the full series, resolves the threshold and applies
// the pass rule.
func (e *engine) conclude(ctx context.Context, r *run) (*stats.Verdict, error) {
	v := r.verdict

	dist, err := e.estimator.EstimateParallel(ctx, r.src, e.streams, e.cfg.Bootstrap.Seed, e.cfg.Workers)
	if err != nil {
		return nil, apperrors.Wrapf(err, "run %s: bootstrap interval", v.RunID)
	}
	if dropped := dist.Requested - dist.Successful; dropped > 0 {
		e.logger.Debug("run %s: %d of %d bootstrap iterations had no statistic", v.RunID, dropped, dist.Requested)
	}
	v.Interval = dist.Interval

	report, err := e.policy.Report(ctx)
	if err != nil {
		return nil, apperrors.Wrapf(err, "run %s: threshold", v.RunID)
	}
	v.Threshold = report

	var reasons []string
	if !(v.Interval.LowerBound > 0) {
		reasons = append(reasons, fmt.Sprintf("confidence interval lower bound %.4f is not above zero", v.Interval.LowerBound))
	}
	if !(math.Abs(v.Interval.PointEstimate) > report.CombinedThreshold) {
		reasons = append(reasons, fmt.Sprintf("statistic %.4f does not exceed threshold %.4f", v.Interval.PointEstimate, report.CombinedThreshold))
	}
	if v.Consistency.Score < e.cfg.MinConsistency {
		reason := fmt.Sprintf("consistency %.4f below %.2f", v.Consistency.Score, e.cfg.MinConsistency)
		if v.Consistency.Rejected != stats.RejectionNone {
			reason += " (" + string(v.Consistency.Rejected) + ")"
		}
		reasons = append(reasons, reason)
	}
	if v.Degradation.Defined && v.Degradation.Ratio < e.cfg.MinDegradation {
		reasons = append(reasons, fmt.Sprintf("degradation ratio %.4f below %.2f", v.Degradation.Ratio, e.cfg.MinDegradation))
	}

	v.Reasons = reasons
	v.Passed = len(reasons) == 0
	v.Duration = time.Since(r.start)

	if v.Passed {
		e.logger.Info("run %s: %s passed (statistic %.4f, threshold %.4f, duration %v)",
			v.RunID, v.Strategy, v.Interval.PointEstimate, report.CombinedThreshold, v.Duration)
	} else {
		e.logger.Info("run %s: %s failed: %s", v.RunID, v.Strategy, strings.Join(reasons, "; "))
	}
	return v, nil
}

// generate materializes the windows of gen over the run's series and
// re-checks the purge gap before anything is evaluated.
func (e *engine) generate(gen windows.Generator, r *run) ([]stats.Window, error) {
	id := r.verdict.RunID
	seq, err := gen.Generate(len(r.src))
	if err != nil {
		return nil, apperrors.Wrapf(err, "run %s: generate %s windows", id, gen.Policy())
	}
	ws := windows.Collect(seq)
	if err := windows.CheckNoLeakage(ws, e.cfg.Windows.PurgeGap); err != nil {
		return nil, apperrors.Wrapf(err, "run %s: window leakage", id)
	}
	if len(ws) < e.cfg.Windows.Splits {
		e.logger.Warn("run %s: only %d of %d %s windows fit in %d observations",
			id, len(ws), e.cfg.Windows.Splits, gen.Policy(), len(r.src))
	} else {
		e.logger.Debug("run %s: %d %s windows", id, len(ws), gen.Policy())
	}
	return ws, nil
}

// evaluate runs the executor and records the per-window statistics.
func (e *engine) evaluate(ctx context.Context, r *run, ws []stats.Window) ([]stats.WindowStatistic, error) {
	results, err := e.executor.Evaluate(ctx, r.src, ws)
	if err != nil {
		return nil, apperrors.Wrapf(err, "run %s: evaluate windows", r.verdict.RunID)
	}
	r.verdict.Windows = results
	return results, nil
}
