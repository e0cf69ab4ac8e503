package inference

import (
	"context"
	"errors"
	"fmt"
	"io"

	"frauddetect/pkg/dataset"
	"frauddetect/pkg/logger"
	"frauddetect/pkg/pipeline"
)

const DefaultCount = 5

// Predictor scores one observation.
type Predictor interface {
	Predict(o dataset.TransactionObservation) pipeline.TransactionFraudPrediction
}

// Runner predicts the first Count fraud rows of a stream and prints each
// prediction to Out.
type Runner struct {
	Engine Predictor
	Out    io.Writer
	Count  int
	Log    *logger.Entry
}

// Run consumes rows until Count positives were scored, rows is closed or
// ctx is done. Fewer positives than Count is not an error; a cancelled
// context returns what was scored so far with ctx.Err().
func (r *Runner) Run(ctx context.Context, rows <-chan dataset.TransactionObservation) ([]pipeline.TransactionFraudPrediction, error) {
	if r.Engine == nil {
		return nil, errors.New("inference: no prediction engine")
	}
	count := r.Count
	if count <= 0 {
		count = DefaultCount
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	preds := make([]pipeline.TransactionFraudPrediction, 0, count)
	seen := 0
	for len(preds) < count {
		var (
			o  dataset.TransactionObservation
			ok bool
		)
		select {
		case <-ctx.Done():
			return preds, ctx.Err()
		case o, ok = <-rows:
		}
		if !ok {
			break
		}
		seen++
		if !o.Label {
			continue
		}
		p := r.Engine.Predict(o)
		preds = append(preds, p)
		if _, err := fmt.Fprintln(out, Format(p)); err != nil {
			return preds, fmt.Errorf("inference: write prediction: %w", err)
		}
	}
	if r.Log != nil {
		r.Log.WithFields(logger.Fields{
			"rows_read":   seen,
			"predictions": len(preds),
			"requested":   count,
		}).Info("inference finished")
	}
	return preds, nil
}

// Format renders a prediction as one console line.
func Format(p pipeline.TransactionFraudPrediction) string {
	return fmt.Sprintf("Label: %t | Prediction: %t | Score: %.4f | Probability: %.4f",
		p.Label, p.PredictedLabel, p.Score, p.Probability)
}

// FromSlice feeds rows into a closed channel, for callers that already hold
// a table in memory.
func FromSlice(rows []dataset.TransactionObservation) <-chan dataset.TransactionObservation {
	ch := make(chan dataset.TransactionObservation, len(rows))
	for _, o := range rows {
		ch <- o
	}
	close(ch)
	return ch
}
