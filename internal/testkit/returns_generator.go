// Package testkit generates deterministic synthetic return series for tests.
package testkit

import (
	"math"
	"math/rand"
	"time"
)

// ReturnsGeneratorConfig configures the synthetic return generator
type ReturnsGeneratorConfig struct {
	Periods    int       `json:"periods"`
	Mean       float64   `json:"mean"`       // per-period drift
	StdDev     float64   `json:"std_dev"`    // per-period innovation volatility
	AR1        float64   `json:"ar1"`        // autocorrelation of successive returns, |AR1| < 1
	StartDate  time.Time `json:"start_date"` // first trading day
	StartValue float64   `json:"start_value"`
	Seed       int64     `json:"seed"`
}

// DefaultReturnsConfig returns a year-and-a-half of mildly profitable daily returns
func DefaultReturnsConfig() ReturnsGeneratorConfig {
	return ReturnsGeneratorConfig{
		Periods:    378,
		Mean:       0.0008,
		StdDev:     0.01,
		AR1:        0,
		StartDate:  time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		StartValue: 100000,
		Seed:       42,
	}
}

// ReturnsGenerator produces return series, equity curves and position tables
type ReturnsGenerator struct {
	config ReturnsGeneratorConfig
	rng    *rand.Rand
}

// NewReturnsGenerator creates a generator with its own seeded source
func NewReturnsGenerator(config ReturnsGeneratorConfig) *ReturnsGenerator {
	return &ReturnsGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Returns draws one series. With AR1 = 0 the values are i.i.d. normal.
func (g *ReturnsGenerator) Returns() []float64 {
	out := make([]float64, g.config.Periods)
	prev := 0.0
	for i := range out {
		shock := g.rng.NormFloat64() * g.config.StdDev
		dev := g.config.AR1*prev + shock
		out[i] = g.config.Mean + dev
		prev = dev
	}
	return out
}

// Equity compounds a return series from StartValue.
func (g *ReturnsGenerator) Equity(returns []float64) []float64 {
	out := make([]float64, len(returns)+1)
	out[0] = g.config.StartValue
	for i, r := range returns {
		out[i+1] = out[i] * (1 + r)
	}
	return out
}

// Dates returns consecutive weekdays starting at StartDate.
func (g *ReturnsGenerator) Dates(n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := g.config.StartDate
	for len(out) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// TrueSharpe is the annualized Sharpe of the i.i.d. generating process.
func (g *ReturnsGenerator) TrueSharpe() float64 {
	return g.config.Mean / g.config.StdDev * math.Sqrt(252)
}

// Constant returns n copies of v.
func Constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Regimes concatenates series drawn with different drifts, all sharing the
// generator's volatility. It models a strategy whose edge changes over time.
func (g *ReturnsGenerator) Regimes(periods int, means ...float64) []float64 {
	out := make([]float64, 0, periods*len(means))
	for _, mu := range means {
		for i := 0; i < periods; i++ {
			out = append(out, mu+g.rng.NormFloat64()*g.config.StdDev)
		}
	}
	return out
}
