// Package bootstrap estimates confidence intervals for statistics of
// serially dependent return series by block resampling.
package bootstrap

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"overfitguard/domain/core"
	"overfitguard/domain/returns"
	"overfitguard/domain/stats"
)

const (
	MinIterations         = 100
	DefaultIterations     = 1000
	DefaultAvgBlockSize   = 5.0
	DefaultBlockSize      = 20
	DefaultConfidence     = 0.95
	DefaultMinSuccessRate = 0.5

	// MaxBlockParam bounds the block parameter so it converts to int safely.
	MaxBlockParam = math.MaxInt32
)

// StatisticFunc computes the statistic on one sample. ok is false when the
// statistic is undefined for that sample (zero variance for Sharpe).
type StatisticFunc func(values []float64) (value float64, ok bool)

// Config holds the estimation parameters.
type Config struct {
	Iterations      int
	BlockParam      float64 // mean block length (stationary) or block length (block)
	ConfidenceLevel float64
	Policy          stats.ResamplingPolicy
	MinSuccessRate  float64 // fraction of iterations that must yield a statistic
	MinLength       int     // minimum finite observations, 252 when zero
	Seed            int64   // used only when the caller passes a nil generator
}

// DefaultConfig is the stationary bootstrap at 1000 iterations and 95%.
func DefaultConfig() Config {
	return Config{
		Iterations:      DefaultIterations,
		BlockParam:      DefaultAvgBlockSize,
		ConfidenceLevel: DefaultConfidence,
		Policy:          stats.PolicyStationary,
		MinSuccessRate:  DefaultMinSuccessRate,
		MinLength:       returns.MinimumLength,
	}
}

// Validate checks every knob and fills MinLength.
func (c *Config) Validate() error {
	if c.Iterations < MinIterations {
		return core.NewConfigurationError("bootstrap", "iterations", c.Iterations, "must be >= 100")
	}
	if math.IsNaN(c.BlockParam) || c.BlockParam < 1 {
		return core.NewConfigurationError("bootstrap", "block_param", c.BlockParam, "must be >= 1")
	}
	if c.BlockParam > MaxBlockParam {
		return core.NewConfigurationError("bootstrap", "block_param", c.BlockParam, "must be <= 2147483647")
	}
	if !(c.ConfidenceLevel > 0 && c.ConfidenceLevel < 1) {
		return core.NewConfigurationError("bootstrap", "confidence_level", c.ConfidenceLevel, "must be in (0,1)")
	}
	if c.MinSuccessRate < 0 || c.MinSuccessRate > 1 {
		return core.NewConfigurationError("bootstrap", "min_success_rate", c.MinSuccessRate, "must be in [0,1]")
	}
	if c.MinLength == 0 {
		c.MinLength = returns.MinimumLength
	}
	if c.MinLength < 2 {
		return core.NewConfigurationError("bootstrap", "min_length", c.MinLength, "must be >= 2")
	}
	if c.Policy == "" {
		c.Policy = stats.PolicyStationary
	}
	return nil
}

// Estimator runs bootstrap estimation. It holds no random state; every
// call receives or constructs its own generator.
type Estimator struct {
	cfg       Config
	resampler Resampler
	statistic StatisticFunc
}

// Option customizes an Estimator.
type Option func(*Estimator)

// WithStatistic replaces the annualized Sharpe ratio.
func WithStatistic(fn StatisticFunc) Option {
	return func(e *Estimator) { e.statistic = fn }
}

// NewEstimator validates cfg and selects the resampling policy.
func NewEstimator(cfg Config, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var resampler Resampler
	switch stats.ResamplingPolicy(strings.ToLower(string(cfg.Policy))) {
	case stats.PolicyStationary:
		resampler = Stationary{AvgBlockSize: cfg.BlockParam}
	case stats.PolicyBlock:
		if cfg.BlockParam != math.Trunc(cfg.BlockParam) {
			return nil, core.NewConfigurationError("bootstrap", "block_param", cfg.BlockParam, "block policy needs a whole block length")
		}
		resampler = Block{BlockSize: int(cfg.BlockParam)}
	default:
		return nil, core.NewConfigurationError("bootstrap", "policy", cfg.Policy, "expected stationary or block")
	}

	e := &Estimator{cfg: cfg, resampler: resampler, statistic: returns.AnnualizedSharpe}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the validated configuration.
func (e *Estimator) Config() Config { return e.cfg }

// Estimate returns (point, lower, upper) at the configured confidence level.
func (e *Estimator) Estimate(values []float64, rng *rand.Rand) (stats.ConfidenceInterval, error) {
	dist, err := e.EstimateDetailed(values, rng)
	if err != nil {
		return stats.ConfidenceInterval{}, err
	}
	return dist.Interval, nil
}

// EstimateDetailed additionally exposes the distribution and diagnostics.
func (e *Estimator) EstimateDetailed(values []float64, rng *rand.Rand) (*Distribution, error) {
	src, err := e.prepare(values)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(e.cfg.Seed))
	}

	run := e.runIterations(src, e.cfg.Iterations, rng, nil)
	return e.finish([]iterationRun{run})
}

// prepare drops non-finite values and enforces the minimum length.
func (e *Estimator) prepare(values []float64) ([]float64, error) {
	series := returns.NewSeries(values)
	if series.Len() < e.cfg.MinLength {
		return nil, &core.InsufficientDataError{
			Component: "bootstrap",
			Required:  e.cfg.MinLength,
			Available: series.Len(),
			Detail:    string(e.resampler.Policy()) + " policy",
		}
	}
	return series.View(), nil
}

// iterationRun is the output of one sequential batch of iterations.
type iterationRun struct {
	values    []float64
	attempted int
	usage     blockUsage
}

// runIterations draws count resamples. stop, when non-nil, is polled before
// each iteration and ends the batch early when it returns true.
func (e *Estimator) runIterations(src []float64, count int, rng *rand.Rand, stop func() bool) iterationRun {
	run := iterationRun{values: make([]float64, 0, count)}
	buf := make([]float64, len(src))

	for i := 0; i < count; i++ {
		if stop != nil && stop() {
			break
		}
		u := e.resampler.Resample(rng, src, buf)
		run.attempted++
		run.usage.blocks += u.blocks
		run.usage.drawn += u.drawn

		v, ok := e.statistic(buf)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		run.values = append(run.values, v)
	}
	return run
}

// finish merges runs in order and applies the success-rate floor.
func (e *Estimator) finish(runs []iterationRun) (*Distribution, error) {
	var (
		values []float64
		usage  blockUsage
	)
	for _, r := range runs {
		values = append(values, r.values...)
		usage.blocks += r.usage.blocks
		usage.drawn += r.usage.drawn
	}

	requested := e.cfg.Iterations
	succeeded := len(values)
	if succeeded == 0 {
		return nil, &core.DegenerateStatisticError{
			Component: "bootstrap",
			Policy:    string(e.resampler.Policy()),
			Requested: requested,
			Succeeded: 0,
			Reason:    "all iterations failed",
		}
	}
	if float64(succeeded) < e.cfg.MinSuccessRate*float64(requested) {
		return nil, &core.DegenerateStatisticError{
			Component: "bootstrap",
			Policy:    string(e.resampler.Policy()),
			Requested: requested,
			Succeeded: succeeded,
			Reason:    "success rate below floor",
		}
	}

	realized := 0.0
	if usage.blocks > 0 {
		realized = float64(usage.drawn) / float64(usage.blocks)
	}

	dist := &Distribution{
		Values:           values,
		Requested:        requested,
		Successful:       succeeded,
		RealizedAvgBlock: realized,
		Policy:           e.resampler.Policy(),
	}
	ci, err := dist.IntervalAt(e.cfg.ConfidenceLevel)
	if err != nil {
		return nil, err
	}
	dist.Interval = ci
	return dist, nil
}

// Distribution is the collection of per-iteration statistics from one call.
type Distribution struct {
	Values           []float64 // successful iterations in draw order
	Requested        int
	Successful       int
	RealizedAvgBlock float64 // mean drawn block length before truncation
	Policy           stats.ResamplingPolicy
	Interval         stats.ConfidenceInterval
}

// IntervalAt recomputes percentile bounds for another confidence level
// without resampling.
func (d *Distribution) IntervalAt(level float64) (stats.ConfidenceInterval, error) {
	if !(level > 0 && level < 1) {
		return stats.ConfidenceInterval{}, core.NewConfigurationError("bootstrap", "confidence_level", level, "must be in (0,1)")
	}
	if len(d.Values) == 0 {
		return stats.ConfidenceInterval{}, &core.DegenerateStatisticError{
			Component: "bootstrap",
			Policy:    string(d.Policy),
			Requested: d.Requested,
			Reason:    "empty distribution",
		}
	}

	sorted := make([]float64, len(d.Values))
	copy(sorted, d.Values)
	sort.Float64s(sorted)

	tail := (1 - level) / 2
	return stats.ConfidenceInterval{
		PointEstimate:   stat.Mean(d.Values, nil),
		LowerBound:      stat.Quantile(tail, stat.LinInterp, sorted, nil),
		UpperBound:      stat.Quantile(1-tail, stat.LinInterp, sorted, nil),
		ConfidenceLevel: level,
	}, nil
}

// StdErr is the standard deviation of the bootstrap distribution.
func (d *Distribution) StdErr() float64 {
	if len(d.Values) < 2 {
		return 0
	}
	return stat.StdDev(d.Values, nil)
}

// SuccessRate is Successful / Requested.
func (d *Distribution) SuccessRate() float64 {
	if d.Requested == 0 {
		return 0
	}
	return float64(d.Successful) / float64(d.Requested)
}
