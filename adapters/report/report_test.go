package report

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overfitguard/domain/core"
	"overfitguard/internal"
)

func TestResolvePriority(t *testing.T) {
	full := Report{
		Returns:      []float64{0.01, 0.02},
		DailyReturns: []float64{0.03, 0.04},
		Equity:       []float64{100, 110},
		Positions:    map[string][]float64{"a": {50, 60}},
	}

	tests := []struct {
		name   string
		mutate func(*Report)
		want   Kind
	}{
		{"returns first", func(r *Report) {}, KindReturns},
		{"daily returns next", func(r *Report) { r.Returns = nil }, KindDailyReturns},
		{"equity next", func(r *Report) { r.Returns, r.DailyReturns = nil, nil }, KindEquity},
		{"positions last", func(r *Report) { r.Returns, r.DailyReturns, r.Equity = nil, nil, nil }, KindPositions},
		{"single equity point is skipped", func(r *Report) { r.Returns, r.DailyReturns, r.Equity = nil, nil, []float64{100} }, KindPositions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := full
			tt.mutate(&r)
			src, err := Resolve(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.Kind())
		})
	}
}

func TestExtractEquityCurve(t *testing.T) {
	got, err := Extract(Report{Equity: []float64{100, 110, 99, 0, 50}})
	require.NoError(t, err)
	// 0 -> 50 has no defined percent change and is dropped
	require.Len(t, got, 3)
	assert.InDelta(t, 0.10, got[0], 1e-12)
	assert.InDelta(t, -0.10, got[1], 1e-12)
	assert.InDelta(t, -1.0, got[2], 1e-12)
}

func TestExtractPositionTable(t *testing.T) {
	got, err := Extract(Report{Positions: map[string][]float64{
		"spy": {60, 66, 60},
		"tlt": {40, 44, 50},
	}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.10, got[0], 1e-12)
	assert.InDelta(t, 0.0, got[1], 1e-12)
}

func TestExtractDropsNonFinite(t *testing.T) {
	got, err := Extract(Report{Returns: []float64{0.01, math.NaN(), 0.02, math.Inf(-1)}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.01, 0.02}, got)
}

func TestExtractNeverSynthesizes(t *testing.T) {
	tests := []struct {
		name   string
		report Report
	}{
		{"empty report", Report{}},
		{"dates only", Report{Dates: []time.Time{time.Now()}}},
		{"all non-finite", Report{Returns: []float64{math.NaN(), math.Inf(1)}}},
		{"ragged positions", Report{Positions: map[string][]float64{"a": {1, 2, 3}, "b": {1, 2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.report)
			assert.Nil(t, got)
			require.ErrorIs(t, err, core.ErrExtraction)

			var extraction *core.ExtractionError
			require.ErrorAs(t, err, &extraction)
			assert.NotEmpty(t, extraction.Attempted)
		})
	}

	_, err := Resolve(Report{})
	var extraction *core.ExtractionError
	require.ErrorAs(t, err, &extraction)
	assert.Equal(t, []string{"returns", "daily_returns", "equity", "positions"}, extraction.Attempted)
}

func TestDirectSeriesReturnsCopy(t *testing.T) {
	values := []float64{0.01, 0.02}
	src, err := Resolve(Report{Returns: values})
	require.NoError(t, err)

	got := src.Returns()
	got[0] = 99
	assert.Equal(t, 0.01, values[0])
}

func days(n int) []time.Time {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestFilterApply(t *testing.T) {
	r := Report{
		Returns:   []float64{1, 2, 3, 4, 5},
		Equity:    []float64{10, 20, 30, 40, 50},
		Positions: map[string][]float64{"a": {5, 6, 7, 8, 9}},
		Dates:     days(5),
	}

	out, err := NewFilter(Strict).Apply(r, r.Dates[1], r.Dates[3])
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, out.Returns)
	assert.Equal(t, []float64{20, 30, 40}, out.Equity)
	assert.Equal(t, []float64{6, 7, 8}, out.Positions["a"])
	assert.Nil(t, out.DailyReturns)
	assert.Equal(t, r.Dates[1:4], out.Dates)

	open, err := NewFilter(Strict).Apply(r, r.Dates[3], time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5}, open.Returns)
}

func TestFilterPolicies(t *testing.T) {
	misaligned := Report{Returns: []float64{1, 2, 3}, Dates: days(2)}
	undated := Report{Returns: []float64{1, 2, 3}}

	for _, r := range []Report{misaligned, undated} {
		_, err := NewFilter(Strict).Apply(r, time.Time{}, time.Time{})
		assert.ErrorIs(t, err, core.ErrExtraction)
	}

	var buf bytes.Buffer
	permissive := &Filter{Policy: PermissiveWithWarning, Logger: internal.NewLoggerTo(&buf, internal.LogLevelWarn)}
	out, err := permissive.Apply(misaligned, days(1)[0], time.Time{})
	require.NoError(t, err)
	assert.Equal(t, misaligned.Returns, out.Returns)
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "returns has 3 rows but there are 2 dates")
}

func TestParseFilterPolicy(t *testing.T) {
	p, err := ParseFilterPolicy("permissive")
	require.NoError(t, err)
	assert.Equal(t, PermissiveWithWarning, p)
	assert.Equal(t, "permissive", p.String())

	p, err = ParseFilterPolicy("")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)

	_, err = ParseFilterPolicy("lenient")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
