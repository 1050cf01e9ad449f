package threshold

// ============================================================================
// Multiple-comparison standards
// ============================================================================

const (
	// DefaultAlpha is the family-wise error budget shared by every strategy
	// screened in one batch.
	DefaultAlpha = 0.05

	// ConservativeFloor is the minimum statistical threshold in conservative
	// mode. At large hypothesis counts z/sqrt(periods) falls well below any
	// Sharpe a practitioner would trade, so the floor takes over.
	ConservativeFloor = 0.5

	// DefaultPeriods is one year of daily observations.
	DefaultPeriods = 252
)

// ============================================================================
// Dynamic benchmark standards
// ============================================================================

const (
	// DefaultBenchmarkStatistic is the empirical annualized Sharpe of a passive
	// benchmark used when no fetched baseline is available.
	DefaultBenchmarkStatistic = 0.8

	// DefaultMargin is how far a strategy must clear the benchmark.
	DefaultMargin = 0.2

	// DefaultDynamicFloor bounds the dynamic threshold from below when the
	// benchmark itself is weak or negative.
	DefaultDynamicFloor = 0.0
)
