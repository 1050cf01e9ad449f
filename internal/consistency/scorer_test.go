package consistency

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overfitguard/domain/core"
	domainStats "overfitguard/domain/stats"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"consistently losing", []float64{-0.5, -0.6, -0.7}, 0},
		{"consistently winning", []float64{1.2, 1.3, 1.4}, 1 - 0.1/1.3},
		{"identical", []float64{0.8, 0.8, 0.8}, 1},
		{"single value", []float64{2.0}, 0},
		{"empty", nil, 0},
		{"mean near zero", []float64{0.05, 0.06}, 0},
		{"wildly dispersed", []float64{3, -2.5, 0.5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.values, DefaultEpsilon)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestScoreScenarioValues(t *testing.T) {
	s, err := NewScorer(DefaultEpsilon)
	require.NoError(t, err)

	r := s.Evaluate([]float64{1.2, 1.3, 1.4})
	assert.InDelta(t, 1.3, r.Mean, 1e-12)
	assert.InDelta(t, 0.1, r.StdDev, 1e-12)
	assert.InDelta(t, 0.923, r.Score, 0.001)
	assert.Equal(t, domainStats.RejectionNone, r.Rejected)
	assert.Equal(t, 3, r.Count)

	r = s.Evaluate([]float64{-0.5, -0.6, -0.7})
	assert.Equal(t, 0.0, r.Score)
	assert.InDelta(t, -0.6, r.Mean, 1e-12)
	assert.Equal(t, domainStats.RejectionMeanBelowEpsilon, r.Rejected)

	r = s.Evaluate([]float64{1})
	assert.Equal(t, domainStats.RejectionTooFewValues, r.Rejected)
}

func TestMeanEqualToEpsilonPasses(t *testing.T) {
	r := (&Scorer{Epsilon: 0.5}).Evaluate([]float64{0.5, 0.5})
	assert.Equal(t, domainStats.RejectionNone, r.Rejected)
	assert.Equal(t, 1.0, r.Score)
}

func TestNewScorerRejectsBadEpsilon(t *testing.T) {
	for _, epsilon := range []float64{math.NaN(), math.Inf(1), 0, -1} {
		_, err := NewScorer(epsilon)
		assert.ErrorIs(t, err, core.ErrConfiguration, "epsilon=%v", epsilon)
	}
}

func TestLosingSetScoresZeroWhateverTheFloor(t *testing.T) {
	losing := []float64{-0.5, -0.6, -0.7}
	for _, epsilon := range []float64{-1, 0, DefaultEpsilon} {
		r := (&Scorer{Epsilon: epsilon}).Evaluate(losing)
		assert.Equal(t, domainStats.RejectionMeanBelowEpsilon, r.Rejected, "epsilon=%v", epsilon)
		assert.Zero(t, r.Score, "epsilon=%v", epsilon)
		assert.Zero(t, Score(losing, epsilon), "epsilon=%v", epsilon)
	}
}

func TestDegradationRatio(t *testing.T) {
	tests := []struct {
		name           string
		later, earlier float64
		ratio          float64
		defined        bool
	}{
		{"half as good", 0.75, 1.5, 0.5, true},
		{"improved", 2, 1, 2, true},
		{"negative later", -0.5, 1, -0.5, true},
		{"zero earlier", 1, 0, 0, false},
		{"negative earlier", 1, -1, 0, false},
		{"nan later", math.NaN(), 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Degrade(tt.later, tt.earlier)
			assert.Equal(t, tt.defined, d.Defined)
			assert.InDelta(t, tt.ratio, d.Ratio, 1e-12)
			assert.InDelta(t, tt.ratio, DegradationRatio(tt.later, tt.earlier), 1e-12)
		})
	}
}
