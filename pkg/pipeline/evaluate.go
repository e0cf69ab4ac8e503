package pipeline

import (
	"errors"

	"frauddetect/pkg/dataset"
	"frauddetect/pkg/model"
)

// Evaluate scores t with f and compares the predictions with t's labels.
func Evaluate(f *Fitted, t *dataset.Table) (model.BinaryMetrics, error) {
	if t.Len() == 0 {
		return model.BinaryMetrics{}, errors.New("pipeline: evaluate: empty table")
	}
	y, err := labels(t)
	if err != nil {
		return model.BinaryMetrics{}, err
	}
	preds, err := f.Transform(t)
	if err != nil {
		return model.BinaryMetrics{}, err
	}
	predicted := make([]bool, len(preds))
	scores := make([]float64, len(preds))
	probs := make([]float64, len(preds))
	for i, p := range preds {
		predicted[i] = p.PredictedLabel
		scores[i] = p.Score
		probs[i] = p.Probability
	}
	return model.ComputeBinaryMetrics(y, predicted, scores, probs)
}
