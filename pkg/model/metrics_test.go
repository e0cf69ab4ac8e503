package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBinaryMetrics(t *testing.T) {
	labels := []bool{true, true, false, false, false}
	pred := []bool{true, false, true, false, false}
	m, err := ComputeBinaryMetrics(labels, pred, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, ConfusionMatrix{TruePositive: 1, FalsePositive: 1, TrueNegative: 2, FalseNegative: 1}, m.Confusion)
	assert.Equal(t, 5, m.Confusion.Total())
	assert.InDelta(t, 0.6, m.Accuracy, 1e-12)
	assert.InDelta(t, 0.5, m.PositivePrecision, 1e-12)
	assert.InDelta(t, 0.5, m.PositiveRecall, 1e-12)
	assert.InDelta(t, 2.0/3, m.NegativePrecision, 1e-12)
	assert.InDelta(t, 2.0/3, m.NegativeRecall, 1e-12)
	assert.InDelta(t, 0.5, m.F1Score, 1e-12)
}

func TestComputeBinaryMetricsErrors(t *testing.T) {
	_, err := ComputeBinaryMetrics(nil, nil, nil, nil)
	assert.Error(t, err)
	_, err = ComputeBinaryMetrics([]bool{true}, []bool{true, false}, nil, nil)
	assert.Error(t, err)
}

func TestAUC(t *testing.T) {
	labels := []bool{false, false, true, true}
	assert.InDelta(t, 1.0, AUC(labels, []float64{0.1, 0.2, 0.8, 0.9}), 1e-12)
	assert.InDelta(t, 0.0, AUC(labels, []float64{0.9, 0.8, 0.2, 0.1}), 1e-12)
	assert.InDelta(t, 0.75, AUC(labels, []float64{0.1, 0.4, 0.35, 0.8}), 1e-12)
	assert.Equal(t, 0.0, AUC([]bool{true, true}, []float64{1, 2}))
}

func TestLogLoss(t *testing.T) {
	assert.InDelta(t, -math.Log(0.8), LogLoss([]bool{true, false}, []float64{0.8, 0.2}), 1e-12)
	assert.False(t, math.IsInf(LogLoss([]bool{true}, []float64{0}), 0))
}

func TestPlattCalibrator(t *testing.T) {
	X, y := twoBlobs(600, 41)
	m, err := NewGBDTTrainer(WithNumTrees(20)).FitBoosted(X, y)
	require.NoError(t, err)
	scores := make([]float64, len(X))
	for i := range X {
		scores[i] = m.Score(X[i])
	}
	c, err := FitPlatt(scores, y)
	require.NoError(t, err)

	assert.Less(t, c.A, 0.0)
	assert.Greater(t, c.Probability(5), c.Probability(0))
	assert.Greater(t, c.Probability(0), c.Probability(-5))
	for _, s := range []float64{-1e6, -3, 0, 3, 1e6} {
		p := c.Probability(s)
		assert.True(t, p >= 0 && p <= 1)
		assert.False(t, math.IsNaN(p))
	}

	_, err = FitPlatt(nil, nil)
	assert.Error(t, err)
	_, err = FitPlatt([]float64{1}, []bool{true, false})
	assert.Error(t, err)
}
