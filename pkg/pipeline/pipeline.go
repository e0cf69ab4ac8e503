package pipeline

import (
	"errors"
	"fmt"

	"frauddetect/pkg/config"
	"frauddetect/pkg/dataset"
	"frauddetect/pkg/model"
	"frauddetect/pkg/stats"
)

// TransactionFraudPrediction is the scored form of one observation.
type TransactionFraudPrediction struct {
	Label          bool
	PredictedLabel bool
	Score          float64 // raw classifier margin
	Probability    float64
}

// Pipeline is the untrained chain: feature assembly, normalization, trainer
// and calibration.
type Pipeline struct {
	Trainer model.Trainer
}

func New(trainer model.Trainer) *Pipeline { return &Pipeline{Trainer: trainer} }

// NewTrainer builds the trainer selected by cfg.Backend.
func NewTrainer(cfg config.TrainerConfig) (model.Trainer, error) {
	switch cfg.Backend {
	case config.BackendGBDT, "":
		return model.NewGBDTTrainer(
			model.WithNumTrees(cfg.NumTrees),
			model.WithNumLeaves(cfg.NumLeaves),
			model.WithMinDataPerLeaf(cfg.MinDataPerLeaf),
			model.WithLearningRate(cfg.LearningRate),
			model.WithMaxBins(cfg.MaxBins),
			model.WithFeatureFraction(cfg.FeatureFraction),
			model.WithSeed(cfg.Seed),
		), nil
	case config.BackendForest:
		return model.NewRandomForestTrainer(
			model.WithForestTrees(cfg.NumTrees),
			model.WithForestLeaves(cfg.NumLeaves),
			model.WithForestMinDataPerLeaf(cfg.MinDataPerLeaf),
			model.WithForestMaxBins(cfg.MaxBins),
			model.WithForestFeatureFraction(cfg.FeatureFraction),
			model.WithForestSeed(cfg.Seed),
		), nil
	case config.BackendLogistic:
		tr := model.NewLogisticTrainer(cfg.LearningRate, cfg.Epochs, cfg.BatchSize, cfg.Seed)
		tr.L2 = cfg.L2
		return tr, nil
	}
	return nil, fmt.Errorf("pipeline: unknown trainer backend %q", cfg.Backend)
}

// Fitted is a trained pipeline. All of its parts are frozen after Fit.
type Fitted struct {
	Features   []string
	Normalizer *stats.MeanVarianceNormalizer
	Classifier model.BinaryClassifier
	Calibrator *model.PlattCalibrator
}

var _ model.Transformer = (*stats.MeanVarianceNormalizer)(nil)

func fitTransform(tr model.Transformer, X [][]float64) ([][]float64, error) {
	if err := tr.Fit(X); err != nil {
		return nil, fmt.Errorf("pipeline: normalize: %w", err)
	}
	return tr.Transform(X), nil
}

// Fit trains on t: the normalizer sees only t, the trainer sees the
// normalized vectors, and the calibrator is fitted on the training scores.
func (p *Pipeline) Fit(t *dataset.Table) (*Fitted, error) {
	if p.Trainer == nil {
		return nil, errors.New("pipeline: no trainer")
	}
	if t.Len() == 0 {
		return nil, errors.New("pipeline: empty training table")
	}
	features := FeatureColumns(t.Schema())
	X, err := ConcatFeatures(t, features)
	if err != nil {
		return nil, err
	}
	y, err := labels(t)
	if err != nil {
		return nil, err
	}

	norm := stats.NewMeanVarianceNormalizer()
	Xn, err := fitTransform(norm, X)
	if err != nil {
		return nil, err
	}
	clf, err := p.Trainer.Fit(Xn, y)
	if err != nil {
		return nil, fmt.Errorf("pipeline: train: %w", err)
	}
	scores := make([]float64, len(Xn))
	for i := range Xn {
		scores[i] = clf.Score(Xn[i])
	}
	cal, err := model.FitPlatt(scores, y)
	if err != nil {
		return nil, fmt.Errorf("pipeline: calibrate: %w", err)
	}
	return &Fitted{Features: features, Normalizer: norm, Classifier: clf, Calibrator: cal}, nil
}

func (f *Fitted) predict(x []float64, label bool) TransactionFraudPrediction {
	s := f.Classifier.Score(f.Normalizer.TransformRow(x))
	return TransactionFraudPrediction{
		Label:          label,
		PredictedLabel: s > 0,
		Score:          s,
		Probability:    f.Calibrator.Probability(s),
	}
}

// Transform scores every row of t. The table must carry the fitted feature
// columns; the label is copied through when present.
func (f *Fitted) Transform(t *dataset.Table) ([]TransactionFraudPrediction, error) {
	X, err := ConcatFeatures(t, f.Features)
	if err != nil {
		return nil, err
	}
	y := t.Bools(dataset.LabelColumn)
	out := make([]TransactionFraudPrediction, len(X))
	for i := range X {
		out[i] = f.predict(X[i], y != nil && y[i])
	}
	return out, nil
}

// PredictionEngine scores single observations with a Fitted pipeline. It
// holds no mutable state and is safe for concurrent use.
type PredictionEngine struct {
	fitted  *Fitted
	project rowProjector
}

func (f *Fitted) NewPredictionEngine() (*PredictionEngine, error) {
	if f.Normalizer == nil || !f.Normalizer.Fitted() || f.Classifier == nil || f.Calibrator == nil {
		return nil, errors.New("pipeline: prediction engine needs a fitted pipeline")
	}
	if len(f.Normalizer.Mean) != len(f.Features) {
		return nil, fmt.Errorf("pipeline: normalizer has %d columns, want %d", len(f.Normalizer.Mean), len(f.Features))
	}
	if w := f.Classifier.Width(); w != len(f.Features) {
		return nil, fmt.Errorf("pipeline: classifier expects %d features, want %d", w, len(f.Features))
	}
	p, err := newRowProjector(f.Features)
	if err != nil {
		return nil, err
	}
	return &PredictionEngine{fitted: f, project: p}, nil
}

func (e *PredictionEngine) Predict(o dataset.TransactionObservation) TransactionFraudPrediction {
	return e.fitted.predict(e.project.project(&o), o.Label)
}
