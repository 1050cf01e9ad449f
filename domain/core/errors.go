package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Caller supplied an out-of-range count, probability or combination
	ErrConfiguration = errors.New("invalid configuration")

	// Series shorter than the component's stated minimum
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Statistic undefined, e.g. zero variance in every resample
	ErrDegenerateStatistic = errors.New("degenerate statistic")

	// Boundary adapter could not resolve a report into a return series
	ErrExtraction = errors.New("return series extraction failed")

	// Window layout would let test data reach a training region
	ErrLeakage = errors.New("data leakage detected")
)

// ConfigurationError reports a parameter outside its allowed range.
type ConfigurationError struct {
	Component string
	Field     string
	Value     interface{}
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %s=%v: %s", ErrConfiguration, e.Component, e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// InsufficientDataError reports requested vs available sample counts.
type InsufficientDataError struct {
	Component string
	Required  int
	Available int
	Detail    string
}

func (e *InsufficientDataError) Error() string {
	msg := fmt.Sprintf("%s: %s requires %d observations, got %d", ErrInsufficientData, e.Component, e.Required, e.Available)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// DegenerateStatisticError reports how many resampling iterations produced a statistic.
type DegenerateStatisticError struct {
	Component string
	Policy    string
	Requested int
	Succeeded int
	Reason    string
}

func (e *DegenerateStatisticError) Error() string {
	return fmt.Sprintf("%s: %s (%s policy): %s: %d/%d iterations succeeded",
		ErrDegenerateStatistic, e.Component, e.Policy, e.Reason, e.Succeeded, e.Requested)
}

func (e *DegenerateStatisticError) Is(target error) bool { return target == ErrDegenerateStatistic }

// ExtractionError lists the report variants that were attempted.
type ExtractionError struct {
	Attempted []string
	Reason    string
	Cause     error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrExtraction, e.Reason)
	if len(e.Attempted) > 0 {
		msg += " (attempted: " + strings.Join(e.Attempted, ", ") + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

func (e *ExtractionError) Unwrap() error { return e.Cause }

// Error constructors with context
func NewConfigurationError(component, field string, value interface{}, reason string) error {
	return &ConfigurationError{Component: component, Field: field, Value: value, Reason: reason}
}

func NewInsufficientDataError(component string, required, available int) error {
	return &InsufficientDataError{Component: component, Required: required, Available: available}
}

func NewLeakageError(trainEnd, testStart, purgeGap int) error {
	return fmt.Errorf("%w: train ends at %d, test starts at %d, purge gap %d", ErrLeakage, trainEnd, testStart, purgeGap)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsDegenerateStatisticError(err error) bool {
	return errors.Is(err, ErrDegenerateStatistic)
}

func IsExtractionError(err error) bool {
	return errors.Is(err, ErrExtraction)
}
