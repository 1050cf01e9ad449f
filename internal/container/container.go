package container

import (
	"fmt"
	"sync"

	"overfitguard/adapters/excel"
	"overfitguard/adapters/report"
	"overfitguard/adapters/rng"
	"overfitguard/internal"
	"overfitguard/internal/config"
	"overfitguard/internal/threshold"
	"overfitguard/internal/validation"
	"overfitguard/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	Streams  ports.RNGPort
	Executor *validation.WindowExecutor

	// Validation components
	Benchmark *threshold.DynamicBenchmark
	Filter    *report.Filter

	mu         sync.Mutex
	validators map[validation.Method]validation.Validator
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	filter := cfg.ReportFilter()
	filter.Logger = logger.With("report-filter")

	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Streams:    rng.NewSeededAdapter(),
		Executor:   validation.NewWindowExecutor(cfg.Validation.Capacity, nil, logger),
		Benchmark:  cfg.DynamicBenchmark(),
		Filter:     filter,
		validators: make(map[validation.Method]validation.Validator),
	}
	return c, nil
}

// WithBenchmarkSource replaces the constant benchmark with source, keeping
// the configured margin and floor. Validators built afterwards use it.
func (c *Container) WithBenchmarkSource(source ports.BenchmarkSource) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Benchmark = &threshold.DynamicBenchmark{
		Source: source,
		Margin: c.Config.Dynamic.Margin,
		Floor:  c.Config.Dynamic.Floor,
	}
	c.validators = make(map[validation.Method]validation.Validator)
	return c
}

// Validator returns the validator for method, building it on first use.
// All validators share one window executor.
func (c *Container) Validator(method validation.Method) (validation.Validator, error) {
	if method == "" {
		method = c.Config.Validation.Method
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.validators[method]; ok {
		return v, nil
	}
	v, err := validation.New(method, c.Config.ValidationEngineConfig(), validation.Dependencies{
		Streams:   c.Streams,
		Benchmark: c.Benchmark,
		Executor:  c.Executor,
		Logger:    c.Logger,
	})
	if err != nil {
		return nil, err
	}
	c.validators[method] = v
	return v, nil
}

// Policy returns the threshold policy for a family of hypotheses.
func (c *Container) Policy(hypotheses int) (*threshold.Policy, error) {
	c.mu.Lock()
	benchmark := c.Benchmark
	c.mu.Unlock()

	cfg := c.Config.ThresholdEngineConfig()
	cfg.Hypotheses = hypotheses
	return threshold.NewPolicy(cfg, benchmark)
}

// Reader returns a report reader for path using the configured sheet.
func (c *Container) Reader(path string) *excel.DataReader {
	return excel.NewDataReader(c.Config.ReaderConfig(path)).WithLogger(c.Logger)
}
