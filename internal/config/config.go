package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"overfitguard/adapters/excel"
	"overfitguard/adapters/report"
	"overfitguard/domain/stats"
	"overfitguard/internal/bootstrap"
	"overfitguard/internal/consistency"
	"overfitguard/internal/errors"
	"overfitguard/internal/threshold"
	"overfitguard/internal/validation"
	"overfitguard/internal/windows"
)

// Config represents the complete application configuration
type Config struct {
	Bootstrap  BootstrapConfig  `yaml:"bootstrap"`
	Windows    WindowConfig     `yaml:"windows"`
	Threshold  ThresholdConfig  `yaml:"threshold"`
	Dynamic    DynamicConfig    `yaml:"dynamic"`
	Validation ValidationConfig `yaml:"validation"`
	Report     ReportConfig     `yaml:"report"`
	LogLevel   string           `yaml:"log_level"`
}

// BootstrapConfig holds resampling settings
type BootstrapConfig struct {
	Iterations     int                    `yaml:"iterations"`
	AvgBlockSize   float64                `yaml:"avg_block_size"`   // stationary policy
	BlockSize      int                    `yaml:"block_size"`       // block policy
	Policy         stats.ResamplingPolicy `yaml:"policy"`
	Confidence     float64                `yaml:"confidence"`
	MinSuccessRate float64                `yaml:"min_success_rate"`
	Workers        int                    `yaml:"workers"`
	Seed           int64                  `yaml:"seed"`
}

// WindowConfig holds train/test split settings
type WindowConfig struct {
	Policy    windows.Policy `yaml:"policy"`
	Splits    int            `yaml:"splits"`
	PurgeGap  int            `yaml:"purge_gap"`
	TestSize  int            `yaml:"test_size"`
	TrainSize int            `yaml:"train_size"`
}

// ThresholdConfig holds the multiple-comparison settings
type ThresholdConfig struct {
	Alpha        float64 `yaml:"alpha"`
	Hypotheses   int     `yaml:"hypotheses"`
	Periods      int     `yaml:"periods"`
	Conservative bool    `yaml:"conservative"`
}

// DynamicConfig holds the empirical benchmark leg of the threshold
type DynamicConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Benchmark float64 `yaml:"benchmark"`
	Margin    float64 `yaml:"margin"`
	Floor     float64 `yaml:"floor"`
}

// ValidationConfig holds orchestration and pass-rule settings
type ValidationConfig struct {
	Method         validation.Method `yaml:"method"`
	Epsilon        float64           `yaml:"epsilon"`
	MinConsistency float64           `yaml:"min_consistency"`
	MinDegradation float64           `yaml:"min_degradation"`
	Capacity       int               `yaml:"capacity"`
}

// ReportConfig holds backtest report input settings
type ReportConfig struct {
	FilterPolicy report.FilterPolicy `yaml:"filter_policy"`
	Sheet        string              `yaml:"sheet"`
}

// Load reads an optional .env file, then configuration from environment
// variables, and validates it
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to read .env file")
	}
	return FromEnv()
}

// LoadFile reads the named .env files instead of ./.env. Variables already
// set in the environment take precedence.
func LoadFile(filenames ...string) (*Config, error) {
	if err := godotenv.Load(filenames...); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return FromEnv()
}

// LoadYAML reads settings from a YAML file, then applies environment
// variable overrides. A missing file yields the defaults.
func LoadYAML(path string) (*Config, error) {
	base := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("read config: %w", err))
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &base); err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("parse config: %w", err))
		}
	}
	return fromEnv(base)
}

// FromEnv builds the configuration from the process environment only
func FromEnv() (*Config, error) {
	return fromEnv(Defaults())
}

// Defaults is the configuration used when nothing overrides a setting
func Defaults() Config {
	return Config{
		Bootstrap: BootstrapConfig{
			Iterations:     bootstrap.DefaultIterations,
			AvgBlockSize:   bootstrap.DefaultAvgBlockSize,
			BlockSize:      bootstrap.DefaultBlockSize,
			Policy:         stats.PolicyStationary,
			Confidence:     bootstrap.DefaultConfidence,
			MinSuccessRate: bootstrap.DefaultMinSuccessRate,
			Workers:        validation.DefaultWorkers,
			Seed:           42,
		},
		Windows: WindowConfig{
			Policy:    windows.PolicySliding,
			Splits:    5,
			PurgeGap:  5,
			TestSize:  63,
			TrainSize: 252,
		},
		Threshold: ThresholdConfig{
			Alpha:      threshold.DefaultAlpha,
			Hypotheses: 1,
			Periods:    threshold.DefaultPeriods,
		},
		Dynamic: DynamicConfig{
			Enabled:   true,
			Benchmark: threshold.DefaultBenchmarkStatistic,
			Margin:    threshold.DefaultMargin,
			Floor:     threshold.DefaultDynamicFloor,
		},
		Validation: ValidationConfig{
			Epsilon:        consistency.DefaultEpsilon,
			MinConsistency: validation.DefaultMinConsistency,
			MinDegradation: validation.DefaultMinDegradation,
			Capacity:       validation.DefaultCapacity,
		},
		Report:   ReportConfig{FilterPolicy: report.Strict},
		LogLevel: "INFO",
	}
}

func fromEnv(base Config) (*Config, error) {
	env := &envReader{}
	config := &Config{
		Bootstrap:  loadBootstrapConfig(env, base.Bootstrap),
		Windows:    loadWindowConfig(env, base.Windows),
		Threshold:  loadThresholdConfig(env, base.Threshold),
		Dynamic:    loadDynamicConfig(env, base.Dynamic),
		Validation: loadValidationConfig(env, base.Validation),
		Report:     loadReportConfig(env, base.Report),
		LogLevel:   getEnvOrDefault("OVERFITGUARD_LOG_LEVEL", base.LogLevel),
	}
	if env.err != nil {
		return nil, env.err
	}

	if config.Windows.Policy == "" {
		config.Windows.Policy = windows.PolicySliding
	}
	if config.Validation.Method == "" {
		config.Validation.Method = methodForPolicy(config.Windows.Policy)
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadBootstrapConfig(env *envReader, base BootstrapConfig) BootstrapConfig {
	return BootstrapConfig{
		Iterations:     env.getInt("BOOTSTRAP_ITERATIONS", base.Iterations),
		AvgBlockSize:   env.getFloat("BOOTSTRAP_AVG_BLOCK_SIZE", base.AvgBlockSize),
		BlockSize:      env.getInt("BOOTSTRAP_BLOCK_SIZE", base.BlockSize),
		Policy:         stats.ResamplingPolicy(strings.ToLower(getEnvOrDefault("BOOTSTRAP_POLICY", string(base.Policy)))),
		Confidence:     env.getFloat("BOOTSTRAP_CONFIDENCE", base.Confidence),
		MinSuccessRate: env.getFloat("BOOTSTRAP_MIN_SUCCESS_RATE", base.MinSuccessRate),
		Workers:        env.getInt("BOOTSTRAP_WORKERS", base.Workers),
		Seed:           env.getInt64("BOOTSTRAP_SEED", base.Seed),
	}
}

func loadWindowConfig(env *envReader, base WindowConfig) WindowConfig {
	return WindowConfig{
		Policy:    windows.Policy(strings.ToLower(getEnvOrDefault("WINDOW_POLICY", string(base.Policy)))),
		Splits:    env.getInt("WINDOW_SPLITS", base.Splits),
		PurgeGap:  env.getInt("WINDOW_PURGE_GAP", base.PurgeGap),
		TestSize:  env.getInt("WINDOW_TEST_SIZE", base.TestSize),
		TrainSize: env.getInt("WINDOW_TRAIN_SIZE", base.TrainSize),
	}
}

func loadThresholdConfig(env *envReader, base ThresholdConfig) ThresholdConfig {
	return ThresholdConfig{
		Alpha:        env.getFloat("THRESHOLD_ALPHA", base.Alpha),
		Hypotheses:   env.getInt("THRESHOLD_HYPOTHESES", base.Hypotheses),
		Periods:      env.getInt("THRESHOLD_PERIODS", base.Periods),
		Conservative: env.getBool("THRESHOLD_CONSERVATIVE", base.Conservative),
	}
}

func loadDynamicConfig(env *envReader, base DynamicConfig) DynamicConfig {
	return DynamicConfig{
		Enabled:   env.getBool("DYNAMIC_ENABLED", base.Enabled),
		Benchmark: env.getFloat("DYNAMIC_BENCHMARK", base.Benchmark),
		Margin:    env.getFloat("DYNAMIC_MARGIN", base.Margin),
		Floor:     env.getFloat("DYNAMIC_FLOOR", base.Floor),
	}
}

func loadValidationConfig(env *envReader, base ValidationConfig) ValidationConfig {
	return ValidationConfig{
		Method:         validation.Method(strings.ToLower(getEnvOrDefault("VALIDATION_METHOD", string(base.Method)))),
		Epsilon:        env.getFloat("CONSISTENCY_EPSILON", base.Epsilon),
		MinConsistency: env.getFloat("VALIDATION_MIN_CONSISTENCY", base.MinConsistency),
		MinDegradation: env.getFloat("VALIDATION_MIN_DEGRADATION", base.MinDegradation),
		Capacity:       env.getInt("VALIDATION_CAPACITY", base.Capacity),
	}
}

func loadReportConfig(env *envReader, base ReportConfig) ReportConfig {
	cfg := ReportConfig{
		FilterPolicy: base.FilterPolicy,
		Sheet:        getEnvOrDefault("REPORT_SHEET", base.Sheet),
	}
	if value := os.Getenv("REPORT_FILTER_POLICY"); value != "" {
		policy, err := report.ParseFilterPolicy(value)
		if err != nil && env.err == nil {
			env.err = errors.Wrap(err, "REPORT_FILTER_POLICY")
		}
		cfg.FilterPolicy = policy
	}
	return cfg
}

// methodForPolicy picks the validator that uses the configured windows
func methodForPolicy(policy windows.Policy) validation.Method {
	if policy == windows.PolicyExpanding {
		return validation.MethodPurgedCV
	}
	return validation.MethodWalkForward
}

// policyForMethod is the window policy a method generates with. Holdout
// uses fixed segments and accepts either policy.
func policyForMethod(method validation.Method) (windows.Policy, bool) {
	switch method {
	case validation.MethodWalkForward:
		return windows.PolicySliding, true
	case validation.MethodPurgedCV:
		return windows.PolicyExpanding, true
	}
	return "", false
}

// Validate checks every engine configuration. Failures carry CONFIG_INVALID.
func (c *Config) Validate() error {
	if _, err := bootstrap.NewEstimator(c.BootstrapEngineConfig()); err != nil {
		return errors.Wrap(err, "bootstrap")
	}
	if _, err := windows.New(c.Windows.Policy, c.WindowEngineConfig()); err != nil {
		return errors.Wrap(err, "windows")
	}
	if _, err := threshold.NewPolicy(c.ThresholdEngineConfig(), c.DynamicBenchmark()); err != nil {
		return errors.Wrap(err, "threshold")
	}
	if _, err := consistency.NewScorer(c.Validation.Epsilon); err != nil {
		return errors.Wrap(err, "consistency")
	}
	if err := c.ValidationEngineConfig().Validate(); err != nil {
		return errors.Wrap(err, "validation")
	}
	switch c.Validation.Method {
	case validation.MethodWalkForward, validation.MethodPurgedCV, validation.MethodHoldout:
	default:
		return errors.ConfigInvalid(fmt.Sprintf("VALIDATION_METHOD %q is not walk_forward, purged_cv or holdout", c.Validation.Method))
	}
	if want, ok := policyForMethod(c.Validation.Method); ok && c.Windows.Policy != want {
		return errors.ConfigInvalid(fmt.Sprintf("VALIDATION_METHOD %s generates %s windows but WINDOW_POLICY is %s",
			c.Validation.Method, want, c.Windows.Policy))
	}
	return nil
}

// BootstrapEngineConfig selects the block parameter for the configured policy
func (c *Config) BootstrapEngineConfig() bootstrap.Config {
	cfg := bootstrap.DefaultConfig()
	cfg.Iterations = c.Bootstrap.Iterations
	cfg.Policy = c.Bootstrap.Policy
	cfg.ConfidenceLevel = c.Bootstrap.Confidence
	cfg.MinSuccessRate = c.Bootstrap.MinSuccessRate
	cfg.Seed = c.Bootstrap.Seed
	if c.Bootstrap.Policy == stats.PolicyBlock {
		cfg.BlockParam = float64(c.Bootstrap.BlockSize)
	} else {
		cfg.BlockParam = c.Bootstrap.AvgBlockSize
	}
	return cfg
}

func (c *Config) WindowEngineConfig() windows.Config {
	return windows.Config{
		Splits:    c.Windows.Splits,
		PurgeGap:  c.Windows.PurgeGap,
		TestSize:  c.Windows.TestSize,
		TrainSize: c.Windows.TrainSize,
	}
}

func (c *Config) ThresholdEngineConfig() threshold.Config {
	return threshold.Config{
		Hypotheses:   c.Threshold.Hypotheses,
		Alpha:        c.Threshold.Alpha,
		Periods:      c.Threshold.Periods,
		Conservative: c.Threshold.Conservative,
	}
}

// DynamicBenchmark returns nil when the dynamic leg is disabled
func (c *Config) DynamicBenchmark() *threshold.DynamicBenchmark {
	if !c.Dynamic.Enabled {
		return nil
	}
	return &threshold.DynamicBenchmark{
		Source: threshold.ConstantBenchmark(c.Dynamic.Benchmark),
		Margin: c.Dynamic.Margin,
		Floor:  c.Dynamic.Floor,
	}
}

func (c *Config) ValidationEngineConfig() validation.Config {
	cfg := validation.DefaultConfig()
	cfg.Windows = c.WindowEngineConfig()
	cfg.Bootstrap = c.BootstrapEngineConfig()
	cfg.Threshold = c.ThresholdEngineConfig()
	cfg.Epsilon = c.Validation.Epsilon
	cfg.MinConsistency = c.Validation.MinConsistency
	cfg.MinDegradation = c.Validation.MinDegradation
	cfg.Capacity = c.Validation.Capacity
	cfg.Workers = c.Bootstrap.Workers
	return cfg
}

// ReportFilter returns a date filter with the configured policy
func (c *Config) ReportFilter() *report.Filter {
	return report.NewFilter(c.Report.FilterPolicy)
}

// ReaderConfig returns the report reader settings for path
func (c *Config) ReaderConfig(path string) excel.ReaderConfig {
	cfg := excel.DefaultReaderConfig(path)
	cfg.Sheet = c.Report.Sheet
	return cfg
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and keeps the first malformed one
type envReader struct {
	err error
}

func (r *envReader) fail(key, value, kind string) {
	if r.err == nil {
		r.err = errors.ConfigInvalid(fmt.Sprintf("%s=%q is not a valid %s", key, value, kind))
	}
}

func (r *envReader) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		r.fail(key, value, "integer")
		return defaultValue
	}
	return intValue
}

func (r *envReader) getInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		r.fail(key, value, "integer")
		return defaultValue
	}
	return intValue
}

func (r *envReader) getFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		r.fail(key, value, "number")
		return defaultValue
	}
	return floatValue
}

func (r *envReader) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		r.fail(key, value, "boolean")
		return defaultValue
	}
	return boolValue
}
