package report

import (
	"fmt"
	"strings"
	"time"

	"overfitguard/domain/core"
	"overfitguard/internal"
)

// FilterPolicy decides what happens when a report cannot be filtered by
// date because Dates is missing or does not line up with its columns.
type FilterPolicy int

const (
	// Strict fails with an ExtractionError.
	Strict FilterPolicy = iota
	// PermissiveWithWarning logs a warning and returns the report unfiltered.
	PermissiveWithWarning
)

func (p FilterPolicy) String() string {
	switch p {
	case Strict:
		return "strict"
	case PermissiveWithWarning:
		return "permissive"
	default:
		return fmt.Sprintf("FilterPolicy(%d)", int(p))
	}
}

// ParseFilterPolicy accepts "strict" and "permissive".
func ParseFilterPolicy(s string) (FilterPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return Strict, nil
	case "permissive", "permissive_with_warning":
		return PermissiveWithWarning, nil
	default:
		return Strict, core.NewConfigurationError("report", "filter_policy", s, "expected strict or permissive")
	}
}

// UnmarshalText lets configuration files name the policy.
func (p *FilterPolicy) UnmarshalText(text []byte) error {
	policy, err := ParseFilterPolicy(string(text))
	if err != nil {
		return err
	}
	*p = policy
	return nil
}

// Filter restricts a report to an inclusive date range.
type Filter struct {
	Policy FilterPolicy
	Logger *internal.Logger
}

// NewFilter returns a filter with the default logger.
func NewFilter(policy FilterPolicy) *Filter {
	return &Filter{Policy: policy, Logger: internal.DefaultLogger.With("report-filter")}
}

// Apply keeps the rows whose date lies in [from, to]. A zero from or to
// leaves that side open.
func (f *Filter) Apply(r Report, from, to time.Time) (Report, error) {
	if reason := alignment(r); reason != "" {
		if f.Policy != PermissiveWithWarning {
			return Report{}, &core.ExtractionError{Attempted: []string{"dates"}, Reason: reason}
		}
		if f.Logger != nil {
			f.Logger.Warn("date filter skipped, returning unfiltered report: %s", reason)
		}
		return r, nil
	}

	keep := make([]int, 0, len(r.Dates))
	for i, d := range r.Dates {
		if !from.IsZero() && d.Before(from) {
			continue
		}
		if !to.IsZero() && d.After(to) {
			continue
		}
		keep = append(keep, i)
	}

	out := Report{
		Returns:      pick(r.Returns, keep),
		DailyReturns: pick(r.DailyReturns, keep),
		Equity:       pick(r.Equity, keep),
		Dates:        make([]time.Time, len(keep)),
	}
	for j, i := range keep {
		out.Dates[j] = r.Dates[i]
	}
	if len(r.Positions) > 0 {
		out.Positions = make(map[string][]float64, len(r.Positions))
		for name, col := range r.Positions {
			out.Positions[name] = pick(col, keep)
		}
	}
	return out, nil
}

// alignment explains why r cannot be filtered by date, or returns "".
func alignment(r Report) string {
	n := len(r.Dates)
	if n == 0 {
		return "report has no dates"
	}
	check := func(name string, col []float64) string {
		if len(col) != 0 && len(col) != n {
			return fmt.Sprintf("%s has %d rows but there are %d dates", name, len(col), n)
		}
		return ""
	}
	for _, c := range []struct {
		name string
		col  []float64
	}{{"returns", r.Returns}, {"daily_returns", r.DailyReturns}, {"equity", r.Equity}} {
		if reason := check(c.name, c.col); reason != "" {
			return reason
		}
	}
	for name, col := range r.Positions {
		if reason := check("position "+name, col); reason != "" {
			return reason
		}
	}
	return ""
}

func pick(col []float64, rows []int) []float64 {
	if len(col) == 0 {
		return nil
	}
	out := make([]float64, len(rows))
	for j, i := range rows {
		out[j] = col[i]
	}
	return out
}
