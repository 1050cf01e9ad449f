package testkit

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnsGeneratorDeterministic(t *testing.T) {
	cfg := DefaultReturnsConfig()
	a := NewReturnsGenerator(cfg).Returns()
	b := NewReturnsGenerator(cfg).Returns()

	require.Len(t, a, cfg.Periods)
	assert.Equal(t, a, b)
}

func TestEquityCompoundsReturns(t *testing.T) {
	g := NewReturnsGenerator(DefaultReturnsConfig())
	eq := g.Equity([]float64{0.1, -0.5})

	require.Len(t, eq, 3)
	assert.InDelta(t, 100000, eq[0], 1e-9)
	assert.InDelta(t, 110000, eq[1], 1e-9)
	assert.InDelta(t, 55000, eq[2], 1e-9)
}

func TestDatesSkipWeekends(t *testing.T) {
	g := NewReturnsGenerator(DefaultReturnsConfig())
	dates := g.Dates(10)

	require.Len(t, dates, 10)
	for i, d := range dates {
		assert.NotEqual(t, time.Saturday, d.Weekday())
		assert.NotEqual(t, time.Sunday, d.Weekday())
		if i > 0 {
			assert.True(t, d.After(dates[i-1]))
		}
	}
}

func TestTrueSharpe(t *testing.T) {
	g := NewReturnsGenerator(ReturnsGeneratorConfig{Mean: 0.001, StdDev: 0.01})
	assert.InDelta(t, 0.1*math.Sqrt(252), g.TrueSharpe(), 1e-12)
}
