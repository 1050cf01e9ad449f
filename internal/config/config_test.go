package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overfitguard/adapters/report"
	"overfitguard/domain/core"
	"overfitguard/domain/stats"
	"overfitguard/internal/errors"
	"overfitguard/internal/validation"
	"overfitguard/internal/windows"
)

var knownKeys = []string{
	"BOOTSTRAP_ITERATIONS", "BOOTSTRAP_AVG_BLOCK_SIZE", "BOOTSTRAP_BLOCK_SIZE", "BOOTSTRAP_POLICY",
	"BOOTSTRAP_CONFIDENCE", "BOOTSTRAP_MIN_SUCCESS_RATE", "BOOTSTRAP_WORKERS", "BOOTSTRAP_SEED",
	"WINDOW_POLICY", "WINDOW_SPLITS", "WINDOW_PURGE_GAP", "WINDOW_TEST_SIZE", "WINDOW_TRAIN_SIZE",
	"CONSISTENCY_EPSILON", "THRESHOLD_ALPHA", "THRESHOLD_HYPOTHESES", "THRESHOLD_PERIODS",
	"THRESHOLD_CONSERVATIVE", "DYNAMIC_BENCHMARK", "DYNAMIC_MARGIN", "DYNAMIC_FLOOR", "DYNAMIC_ENABLED",
	"VALIDATION_METHOD", "VALIDATION_MIN_CONSISTENCY", "VALIDATION_MIN_DEGRADATION", "VALIDATION_CAPACITY",
	"REPORT_FILTER_POLICY", "REPORT_SHEET", "OVERFITGUARD_LOG_LEVEL",
}

// clearEnv unsets every known variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range knownKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Bootstrap.Iterations)
	assert.Equal(t, 5.0, cfg.Bootstrap.AvgBlockSize)
	assert.Equal(t, 20, cfg.Bootstrap.BlockSize)
	assert.Equal(t, stats.PolicyStationary, cfg.Bootstrap.Policy)
	assert.Equal(t, 0.95, cfg.Bootstrap.Confidence)
	assert.Equal(t, 0.5, cfg.Bootstrap.MinSuccessRate)
	assert.Equal(t, 4, cfg.Bootstrap.Workers)
	assert.Equal(t, int64(42), cfg.Bootstrap.Seed)

	assert.Equal(t, windows.PolicySliding, cfg.Windows.Policy)
	assert.Equal(t, windows.Config{Splits: 5, PurgeGap: 5, TestSize: 63, TrainSize: 252}, cfg.WindowEngineConfig())

	assert.Equal(t, 0.05, cfg.Threshold.Alpha)
	assert.Equal(t, 1, cfg.Threshold.Hypotheses)
	assert.Equal(t, 252, cfg.Threshold.Periods)
	assert.False(t, cfg.Threshold.Conservative)

	assert.True(t, cfg.Dynamic.Enabled)
	assert.Equal(t, 0.8, cfg.Dynamic.Benchmark)
	assert.Equal(t, 0.2, cfg.Dynamic.Margin)
	assert.Equal(t, 0.0, cfg.Dynamic.Floor)

	assert.Equal(t, 0.1, cfg.Validation.Epsilon)
	assert.Equal(t, validation.MethodWalkForward, cfg.Validation.Method)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, report.Strict, cfg.Report.FilterPolicy)
}

func TestReportSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("REPORT_FILTER_POLICY", "Permissive")
	t.Setenv("REPORT_SHEET", "Backtest")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, report.PermissiveWithWarning, cfg.ReportFilter().Policy)

	reader := cfg.ReaderConfig("runs/carry.xlsx")
	assert.Equal(t, "Backtest", reader.Sheet)
	assert.Equal(t, "runs/carry.xlsx", reader.FilePath)
	assert.NotEmpty(t, reader.DateLayouts)
}

func TestBootstrapEngineConfigSelectsBlockParam(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOOTSTRAP_POLICY", "Block")
	t.Setenv("BOOTSTRAP_BLOCK_SIZE", "30")
	t.Setenv("BOOTSTRAP_AVG_BLOCK_SIZE", "7.5")

	cfg, err := FromEnv()
	require.NoError(t, err)

	engine := cfg.BootstrapEngineConfig()
	assert.Equal(t, stats.PolicyBlock, engine.Policy)
	assert.Equal(t, 30.0, engine.BlockParam)

	t.Setenv("BOOTSTRAP_POLICY", "stationary")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 7.5, cfg.BootstrapEngineConfig().BlockParam)
}

func TestEngineConversions(t *testing.T) {
	clearEnv(t)
	t.Setenv("THRESHOLD_HYPOTHESES", "500")
	t.Setenv("THRESHOLD_CONSERVATIVE", "true")
	t.Setenv("BOOTSTRAP_WORKERS", "2")
	t.Setenv("VALIDATION_CAPACITY", "3")

	cfg, err := FromEnv()
	require.NoError(t, err)

	th := cfg.ThresholdEngineConfig()
	assert.Equal(t, 500, th.Hypotheses)
	assert.True(t, th.Conservative)

	vc := cfg.ValidationEngineConfig()
	assert.Equal(t, 2, vc.Workers)
	assert.Equal(t, 3, vc.Capacity)
	assert.Equal(t, th, vc.Threshold)
	assert.Equal(t, validation.DefaultTrainFraction, vc.TrainFraction)

	dynamic := cfg.DynamicBenchmark()
	require.NotNil(t, dynamic)
	assert.Equal(t, 0.2, dynamic.Margin)

	t.Setenv("DYNAMIC_ENABLED", "false")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Nil(t, cfg.DynamicBenchmark())
}

func TestMethodFollowsWindowPolicy(t *testing.T) {
	clearEnv(t)
	t.Setenv("WINDOW_POLICY", "expanding")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, validation.MethodPurgedCV, cfg.Validation.Method)

	t.Setenv("VALIDATION_METHOD", "holdout")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, validation.MethodHoldout, cfg.Validation.Method)
}

func TestInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"malformed integer", "BOOTSTRAP_ITERATIONS", "many"},
		{"malformed bool", "DYNAMIC_ENABLED", "sometimes"},
		{"too few iterations", "BOOTSTRAP_ITERATIONS", "50"},
		{"unknown resampling policy", "BOOTSTRAP_POLICY", "jackknife"},
		{"alpha out of range", "THRESHOLD_ALPHA", "1.5"},
		{"unknown window policy", "WINDOW_POLICY", "tumbling"},
		{"negative purge gap", "WINDOW_PURGE_GAP", "-1"},
		{"zero workers", "BOOTSTRAP_WORKERS", "0"},
		{"unknown method", "VALIDATION_METHOD", "monte_carlo"},
		{"nan epsilon", "CONSISTENCY_EPSILON", "NaN"},
		{"zero epsilon", "CONSISTENCY_EPSILON", "0"},
		{"negative epsilon", "CONSISTENCY_EPSILON", "-1"},
		{"unknown filter policy", "REPORT_FILTER_POLICY", "lenient"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestMethodMustAgreeWithWindowPolicy(t *testing.T) {
	tests := []struct {
		method, policy string
		ok             bool
	}{
		{"walk_forward", "sliding", true},
		{"walk_forward", "expanding", false},
		{"purged_cv", "expanding", true},
		{"purged_cv", "sliding", false},
		{"holdout", "sliding", true},
		{"holdout", "expanding", true},
	}

	for _, tt := range tests {
		t.Run(tt.method+"/"+tt.policy, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("VALIDATION_METHOD", tt.method)
			t.Setenv("WINDOW_POLICY", tt.policy)

			cfg, err := FromEnv()
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, validation.Method(tt.method), cfg.Validation.Method)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
			assert.Contains(t, err.Error(), "WINDOW_POLICY")
		})
	}
}

func TestValidateKeepsDomainError(t *testing.T) {
	clearEnv(t)
	t.Setenv("THRESHOLD_ALPHA", "0")

	_, err := FromEnv()
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BOOTSTRAP_ITERATIONS=500\nWINDOW_SPLITS=3\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("BOOTSTRAP_ITERATIONS")
		os.Unsetenv("WINDOW_SPLITS")
	})

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Bootstrap.Iterations)
	assert.Equal(t, 3, cfg.Windows.Splits)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "overfitguard.yaml")
	content := `
bootstrap:
  iterations: 400
  policy: block
  block_size: 10
windows:
  policy: expanding
  splits: 3
threshold:
  hypotheses: 50
  conservative: true
dynamic:
  enabled: false
report:
  filter_policy: permissive
  sheet: Returns
log_level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Bootstrap.Iterations)
	assert.Equal(t, 10.0, cfg.BootstrapEngineConfig().BlockParam)
	assert.Equal(t, 0.95, cfg.Bootstrap.Confidence, "unset keys keep defaults")
	assert.Equal(t, windows.PolicyExpanding, cfg.Windows.Policy)
	assert.Equal(t, 3, cfg.Windows.Splits)
	assert.Equal(t, 63, cfg.Windows.TestSize)
	assert.Equal(t, validation.MethodPurgedCV, cfg.Validation.Method)
	assert.Equal(t, 50, cfg.Threshold.Hypotheses)
	assert.True(t, cfg.Threshold.Conservative)
	assert.Nil(t, cfg.DynamicBenchmark())
	assert.Equal(t, report.PermissiveWithWarning, cfg.Report.FilterPolicy)
	assert.Equal(t, "Returns", cfg.Report.Sheet)
	assert.Equal(t, "DEBUG", cfg.LogLevel)

	// environment wins over the file
	t.Setenv("BOOTSTRAP_ITERATIONS", "600")
	t.Setenv("REPORT_FILTER_POLICY", "strict")
	cfg, err = LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Bootstrap.Iterations)
	assert.Equal(t, report.Strict, cfg.Report.FilterPolicy)
}

func TestLoadYAMLMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadYAML(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Bootstrap, cfg.Bootstrap)
	assert.Equal(t, validation.MethodWalkForward, cfg.Validation.Method)
}

func TestLoadYAMLRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "bootstrap: [iterations"},
		{"wrong type", "bootstrap:\n  iterations: lots\n"},
		{"unknown filter policy", "report:\n  filter_policy: lenient\n"},
		{"invalid value", "threshold:\n  alpha: 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := LoadYAML(path)
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
