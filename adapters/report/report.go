// Package report resolves a backtest report of heterogeneous shape to the
// single return series the validators consume.
//
// A report may carry returns directly, an equity curve or a table of
// position values. Resolve picks exactly one source in priority order and
// Extract derives the series from it. Nothing is ever synthesized: a report
// with no usable source is an ExtractionError.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"overfitguard/domain/core"
	"overfitguard/domain/returns"
)

// Report is the raw output of a backtest. Dates, when present, index the
// rows shared by every column.
type Report struct {
	Returns      []float64
	DailyReturns []float64
	Equity       []float64
	Positions    map[string][]float64
	Dates        []time.Time
}

// Kind names a report source.
type Kind string

const (
	KindReturns      Kind = "returns"
	KindDailyReturns Kind = "daily_returns"
	KindEquity       Kind = "equity"
	KindPositions    Kind = "positions"
)

// Priority is the order in which Resolve considers sources.
var Priority = []Kind{KindReturns, KindDailyReturns, KindEquity, KindPositions}

// Source is one resolved report variant.
type Source interface {
	Kind() Kind
	Returns() []float64
}

// DirectSeries is a column that already holds per-period returns.
type DirectSeries struct {
	Field  Kind
	Values []float64
}

func (d DirectSeries) Kind() Kind { return d.Field }

func (d DirectSeries) Returns() []float64 {
	out := make([]float64, len(d.Values))
	copy(out, d.Values)
	return out
}

// EquityCurve is a series of account values.
type EquityCurve struct {
	Values []float64
}

func (EquityCurve) Kind() Kind { return KindEquity }

func (e EquityCurve) Returns() []float64 { return PctChange(e.Values) }

// PositionTable holds per-instrument position values on shared rows.
type PositionTable struct {
	Columns map[string][]float64
}

func (PositionTable) Kind() Kind { return KindPositions }

// Returns is the percent change of the row-wise sum of all positions.
func (p PositionTable) Returns() []float64 { return PctChange(p.Total()) }

// Total sums the columns row by row, in column-name order.
func (p PositionTable) Total() []float64 {
	names := make([]string, 0, len(p.Columns))
	for name := range p.Columns {
		names = append(names, name)
	}
	sort.Strings(names)

	var total []float64
	for _, name := range names {
		col := p.Columns[name]
		if total == nil {
			total = make([]float64, len(col))
		}
		for i, v := range col {
			total[i] += v
		}
	}
	return total
}

// PctChange returns v[i]/v[i-1] - 1 for i >= 1. A zero or non-finite
// predecessor yields a non-finite entry that extraction drops.
func PctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			out[i-1] = math.NaN()
			continue
		}
		out[i-1] = values[i]/prev - 1
	}
	return out
}

// Resolve returns the first applicable source in Priority order.
func Resolve(r Report) (Source, error) {
	var attempted []string

	attempted = append(attempted, string(KindReturns))
	if len(r.Returns) > 0 {
		return DirectSeries{Field: KindReturns, Values: r.Returns}, nil
	}

	attempted = append(attempted, string(KindDailyReturns))
	if len(r.DailyReturns) > 0 {
		return DirectSeries{Field: KindDailyReturns, Values: r.DailyReturns}, nil
	}

	attempted = append(attempted, string(KindEquity))
	if len(r.Equity) >= 2 {
		return EquityCurve{Values: r.Equity}, nil
	}

	attempted = append(attempted, string(KindPositions))
	if len(r.Positions) > 0 {
		length := -1
		for name, col := range r.Positions {
			if length >= 0 && len(col) != length {
				return nil, &core.ExtractionError{
					Attempted: attempted,
					Reason:    fmt.Sprintf("position column %q has %d rows, expected %d", name, len(col), length),
				}
			}
			length = len(col)
		}
		if length >= 2 {
			return PositionTable{Columns: r.Positions}, nil
		}
	}

	return nil, &core.ExtractionError{
		Attempted: attempted,
		Reason:    "report has no returns, equity curve or position table",
	}
}

// Extract resolves r and returns its finite returns in order.
func Extract(r Report) ([]float64, error) {
	src, err := Resolve(r)
	if err != nil {
		return nil, err
	}
	series := returns.NewSeries(src.Returns())
	if series.Len() == 0 {
		return nil, &core.ExtractionError{
			Attempted: []string{string(src.Kind())},
			Reason:    "source contains no finite returns",
		}
	}
	return series.Values(), nil
}
