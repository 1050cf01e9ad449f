// Package windows generates leakage-safe train/test splits over a single
// chronological series.
//
// Two advance policies are provided. Expanding anchors training at index 0
// and grows it by one test block per split (purged cross-validation).
// Sliding keeps a fixed training length and advances by the whole consumed
// span, train + purge + test, so a later training region never covers an
// earlier test region (rolling walk-forward).
package windows

import (
	"fmt"
	"iter"
	"math"
	"strings"

	"overfitguard/domain/core"
	"overfitguard/domain/stats"
)

// Policy names a window advance policy.
type Policy string

const (
	PolicyExpanding Policy = "expanding"
	PolicySliding   Policy = "sliding"
)

// Config holds the generator parameters shared by both policies.
type Config struct {
	Splits    int // maximum number of windows, > 0
	PurgeGap  int // periods discarded between train and test, >= 0
	TestSize  int // test length, > 0
	TrainSize int // minimum (expanding) or fixed (sliding) train length, > 0
}

// Generator produces a finite, possibly short, lazy sequence of windows.
// Errors are reserved for invalid parameters and series too short for even
// one window; running out of data is not an error.
type Generator interface {
	Generate(n int) (iter.Seq[stats.Window], error)
	Policy() Policy
}

// New returns the generator for the named policy.
func New(policy Policy, cfg Config) (Generator, error) {
	switch Policy(strings.ToLower(string(policy))) {
	case PolicyExpanding, "":
		return NewExpanding(cfg)
	case PolicySliding:
		return NewSliding(cfg)
	default:
		return nil, core.NewConfigurationError("windows", "policy", policy, "expected expanding or sliding")
	}
}

// Collect drains a window sequence into a slice.
func Collect(seq iter.Seq[stats.Window]) []stats.Window {
	var out []stats.Window
	for w := range seq {
		out = append(out, w)
	}
	return out
}

// Validate checks the parameter ranges.
func (c Config) Validate() error {
	switch {
	case c.Splits <= 0:
		return core.NewConfigurationError("windows", "splits", c.Splits, "must be positive")
	case c.PurgeGap < 0:
		return core.NewConfigurationError("windows", "purge_gap", c.PurgeGap, "must be non-negative")
	case c.TestSize <= 0:
		return core.NewConfigurationError("windows", "test_size", c.TestSize, "must be positive")
	case c.TrainSize <= 0:
		return core.NewConfigurationError("windows", "train_size", c.TrainSize, "must be positive")
	}
	return nil
}

// checkLength enforces n >= train + purge + 1 for both policies. The
// comparison is arranged so that no sum can overflow.
func (c Config) checkLength(policy Policy, n int) error {
	if n <= 0 || c.TrainSize > n-c.PurgeGap-1 {
		return &core.InsufficientDataError{
			Component: "windows",
			Required:  addCapped(addCapped(c.TrainSize, c.PurgeGap), 1),
			Available: n,
			Detail:    fmt.Sprintf("%s policy cannot form a single window", policy),
		}
	}
	return nil
}

// addCapped adds two non-negative ints, saturating at math.MaxInt.
func addCapped(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// testEnd is min(testStart+testSize, n) for testStart < n.
func testEnd(testStart, testSize, n int) int {
	if testSize >= n-testStart {
		return n
	}
	return testStart + testSize
}

// CheckNoLeakage verifies the purge and ordering invariants over a set of
// windows produced by one call.
func CheckNoLeakage(ws []stats.Window, purgeGap int) error {
	for i, w := range ws {
		if w.Train.Start < 0 || w.Test.Start < 0 {
			return fmt.Errorf("%w: window %d has a negative index", core.ErrLeakage, i)
		}
		if w.Train.Len() == 0 || w.Test.Len() == 0 {
			return fmt.Errorf("%w: window %d has an empty region", core.ErrLeakage, i)
		}
		if w.Test.Start-w.Train.End != purgeGap {
			return core.NewLeakageError(w.Train.End, w.Test.Start, purgeGap)
		}
		if i > 0 && ws[i-1].Test.End > w.Test.Start {
			return fmt.Errorf("%w: test regions of windows %d and %d overlap", core.ErrLeakage, i-1, i)
		}
	}
	return nil
}
