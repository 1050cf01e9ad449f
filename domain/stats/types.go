package stats

import (
	"time"

	"overfitguard/domain/core"
)

// Range is a half-open index interval [Start, End) into a return series.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices covered.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Indices materializes the contiguous index sequence.
func (r Range) Indices() []int {
	out := make([]int, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		out = append(out, i)
	}
	return out
}

// Slice returns the values covered by r. The result aliases values.
func (r Range) Slice(values []float64) []float64 {
	return values[r.Start:r.End]
}

// Window is one train/test split. Train and Test never share an index and
// Train.End+PurgeGap == Test.Start.
type Window struct {
	Index int   `json:"index"`
	Train Range `json:"train"`
	Test  Range `json:"test"`
}

func (w Window) TrainIndices() []int { return w.Train.Indices() }
func (w Window) TestIndices() []int  { return w.Test.Indices() }

// PurgeGap is the number of periods discarded between train and test.
func (w Window) PurgeGap() int { return w.Test.Start - w.Train.End }

// ConfidenceInterval is a percentile-method bootstrap interval.
type ConfidenceInterval struct {
	PointEstimate   float64 `json:"point_estimate"`
	LowerBound      float64 `json:"lower_bound"`
	UpperBound      float64 `json:"upper_bound"`
	ConfidenceLevel float64 `json:"confidence_level"`
}

// Contains reports whether v lies inside the closed interval.
func (ci ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.LowerBound && v <= ci.UpperBound
}

// Width is UpperBound - LowerBound.
func (ci ConfidenceInterval) Width() float64 {
	return ci.UpperBound - ci.LowerBound
}

// ResamplingPolicy names the bootstrap block scheme.
type ResamplingPolicy string

const (
	PolicyStationary ResamplingPolicy = "stationary"
	PolicyBlock      ResamplingPolicy = "block"
)

// ThresholdReport is computed fresh for every call; nothing is cached.
type ThresholdReport struct {
	StatisticalThreshold float64 `json:"statistical_threshold"`
	DynamicThreshold     float64 `json:"dynamic_threshold"`
	CombinedThreshold    float64 `json:"combined_threshold"`
	AdjustedAlpha        float64 `json:"adjusted_alpha"`
	DynamicActive        bool    `json:"dynamic_active"`
	Conservative         bool    `json:"conservative"`
}

// StrategyStatistic pairs a candidate strategy with its observed statistic.
type StrategyStatistic struct {
	Name      string  `json:"name"`
	Statistic float64 `json:"statistic"`
}

// BatchReport summarizes significance screening across many strategies.
type BatchReport struct {
	Total                    int                 `json:"total"`
	SignificantCount         int                 `json:"significant_count"`
	Threshold                float64             `json:"threshold"`
	AdjustedAlpha            float64             `json:"adjusted_alpha"`
	ExpectedFalseDiscoveries float64             `json:"expected_false_discoveries"`
	EstimatedFDR             float64             `json:"estimated_fdr"`
	FWER                     float64             `json:"fwer"`
	Significant              []StrategyStatistic `json:"significant"`
}

// ConsistencyRejection explains a zero consistency score.
type ConsistencyRejection string

const (
	RejectionNone             ConsistencyRejection = ""
	RejectionTooFewValues     ConsistencyRejection = "too_few_values"
	RejectionMeanBelowEpsilon ConsistencyRejection = "mean_below_epsilon"
)

// ConsistencyResult is the detailed form of a consistency score.
type ConsistencyResult struct {
	Score    float64              `json:"score"`
	Mean     float64              `json:"mean"`
	StdDev   float64              `json:"std_dev"`
	Count    int                  `json:"count"`
	Epsilon  float64              `json:"epsilon"`
	Rejected ConsistencyRejection `json:"rejected,omitempty"`
}

// Degradation compares a later period's statistic against an earlier one.
// Defined is false when the earlier value was not positive; Ratio is then 0
// and must not gate any decision.
type Degradation struct {
	Later   float64 `json:"later"`
	Earlier float64 `json:"earlier"`
	Ratio   float64 `json:"ratio"`
	Defined bool    `json:"defined"`
}

// WindowStatistic is a per-split statistic produced by an orchestrator.
type WindowStatistic struct {
	Window         Window  `json:"window"`
	TrainStatistic float64 `json:"train_statistic"`
	TestStatistic  float64 `json:"test_statistic"`
	TrainDefined   bool    `json:"train_defined"`
	TestDefined    bool    `json:"test_defined"`
}

// Verdict is the pass/fail outcome of one validation run.
type Verdict struct {
	RunID       core.RunID         `json:"run_id"`
	Strategy    core.StrategyID    `json:"strategy"`
	Method      string             `json:"method"`
	Fingerprint core.Fingerprint   `json:"fingerprint"`
	Passed      bool               `json:"passed"`
	Reasons     []string           `json:"reasons,omitempty"`
	Interval    ConfidenceInterval `json:"interval"`
	Threshold   ThresholdReport    `json:"threshold"`
	Consistency ConsistencyResult  `json:"consistency"`
	Degradation Degradation        `json:"degradation"`
	Windows     []WindowStatistic  `json:"windows,omitempty"`
	Profile     SeriesProfile      `json:"profile"`
	Duration    time.Duration      `json:"duration"`
}

// SeriesProfile summarizes the distribution and serial dependence of a
// return series.
type SeriesProfile struct {
	Count      int     `json:"count"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Median     float64 `json:"median"`
	Q25        float64 `json:"q25"`
	Q75        float64 `json:"q75"`
	Skewness   float64 `json:"skewness"`
	Kurtosis   float64 `json:"kurtosis"` // excess
	JarqueBera float64 `json:"jarque_bera"`
	NormalP    float64 `json:"normal_p"`
	IsNormal   bool    `json:"is_normal"`
	Lag1AC     float64 `json:"lag1_autocorrelation"`
	Outliers   int     `json:"outliers"`
}
