package model

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ConfusionMatrix counts outcomes with fraud as the positive class.
type ConfusionMatrix struct {
	TruePositive  int `yaml:"true_positive"`
	FalsePositive int `yaml:"false_positive"`
	TrueNegative  int `yaml:"true_negative"`
	FalseNegative int `yaml:"false_negative"`
}

func (c ConfusionMatrix) Total() int {
	return c.TruePositive + c.FalsePositive + c.TrueNegative + c.FalseNegative
}

// BinaryMetrics is the evaluation of a binary classifier on a labeled set.
type BinaryMetrics struct {
	Count             int             `yaml:"count"`
	Accuracy          float64         `yaml:"accuracy"`
	PositivePrecision float64         `yaml:"positive_precision"`
	PositiveRecall    float64         `yaml:"positive_recall"`
	NegativePrecision float64         `yaml:"negative_precision"`
	NegativeRecall    float64         `yaml:"negative_recall"`
	F1Score           float64         `yaml:"f1_score"`
	AUC               float64         `yaml:"auc"`
	LogLoss           float64         `yaml:"log_loss"`
	Confusion         ConfusionMatrix `yaml:"confusion"`
}

// ComputeBinaryMetrics evaluates predictions against labels. scores rank
// rows for AUC; probs feed log loss. Either may be nil to skip that metric.
func ComputeBinaryMetrics(labels, predicted []bool, scores, probs []float64) (BinaryMetrics, error) {
	n := len(labels)
	if n == 0 {
		return BinaryMetrics{}, errors.New("metrics: no rows")
	}
	if len(predicted) != n || (scores != nil && len(scores) != n) || (probs != nil && len(probs) != n) {
		return BinaryMetrics{}, errors.New("metrics: length mismatch")
	}

	var m BinaryMetrics
	m.Count = n
	c := &m.Confusion
	for i := range labels {
		switch {
		case labels[i] && predicted[i]:
			c.TruePositive++
		case !labels[i] && predicted[i]:
			c.FalsePositive++
		case !labels[i] && !predicted[i]:
			c.TrueNegative++
		default:
			c.FalseNegative++
		}
	}
	m.Accuracy = float64(c.TruePositive+c.TrueNegative) / float64(n)
	m.PositivePrecision = ratio(c.TruePositive, c.TruePositive+c.FalsePositive)
	m.PositiveRecall = ratio(c.TruePositive, c.TruePositive+c.FalseNegative)
	m.NegativePrecision = ratio(c.TrueNegative, c.TrueNegative+c.FalseNegative)
	m.NegativeRecall = ratio(c.TrueNegative, c.TrueNegative+c.FalsePositive)
	if s := m.PositivePrecision + m.PositiveRecall; s > 0 {
		m.F1Score = 2 * m.PositivePrecision * m.PositiveRecall / s
	}
	if scores != nil {
		m.AUC = AUC(labels, scores)
	}
	if probs != nil {
		m.LogLoss = LogLoss(labels, probs)
	}
	return m, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ROCCurve returns the ROC points ordered by increasing false positive rate.
// Both slices are nil when only one class is present.
func ROCCurve(labels []bool, scores []float64) (fpr, tpr []float64) {
	pos := 0
	for _, l := range labels {
		if l {
			pos++
		}
	}
	if pos == 0 || pos == len(labels) {
		return nil, nil
	}
	y := append([]float64(nil), scores...)
	classes := append([]bool(nil), labels...)
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ = stat.ROC(nil, y, classes, nil)
	return fpr, tpr
}

// AUC is the area under the ROC curve. It is 0 when only one class is
// present.
func AUC(labels []bool, scores []float64) float64 {
	fpr, tpr := ROCCurve(labels, scores)
	if fpr == nil {
		return 0
	}
	return integrate.Trapezoidal(fpr, tpr)
}

// LogLoss is the mean negative log-likelihood with probabilities clipped to
// [1e-15, 1-1e-15].
func LogLoss(labels []bool, probs []float64) float64 {
	const clip = 1e-15
	s := 0.0
	for i, p := range probs {
		p = math.Min(math.Max(p, clip), 1-clip)
		if labels[i] {
			s -= math.Log(p)
		} else {
			s -= math.Log(1 - p)
		}
	}
	return s / float64(len(probs))
}
