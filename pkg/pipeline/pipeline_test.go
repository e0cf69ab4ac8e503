package pipeline

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frauddetect/pkg/config"
	"frauddetect/pkg/dataset"
	"frauddetect/pkg/model"
	"frauddetect/pkg/stats"
)

// fraudTable builds n transactions where fraud is driven by V1, V2 and a large
// Amount, about one row in eight being fraud.
func fraudTable(n int, seed int64) *dataset.Table {
	r := rand.New(rand.NewSource(seed))
	rows := make([]dataset.TransactionObservation, n)
	for i := range rows {
		var o dataset.TransactionObservation
		for k := range o.V {
			o.V[k] = float32(r.NormFloat64())
		}
		o.Amount = float32(r.ExpFloat64() * 80)
		o.Label = o.V[0]+0.5*o.V[1] > 1.2 || o.Amount > 300
		rows[i] = o
	}
	return dataset.TableFromObservations(rows)
}

func smallTrainer() model.Trainer {
	return model.NewGBDTTrainer(model.WithNumTrees(20))
}

func TestFeatureColumns(t *testing.T) {
	want := make([]string, 0, dataset.AnonymizedFeatures+1)
	for i := 1; i <= dataset.AnonymizedFeatures; i++ {
		want = append(want, dataset.VColumn(i))
	}
	want = append(want, dataset.AmountColumn)

	assert.Equal(t, want, FeatureColumns(dataset.RawSchema()))
	assert.Equal(t, want, FeatureColumns(dataset.SplitSchema()))
	assert.Len(t, FeatureColumns(dataset.SplitSchema()), 29)
}

func TestConcatFeatures(t *testing.T) {
	tbl := fraudTable(10, 1)
	cols := FeatureColumns(tbl.Schema())
	X, err := ConcatFeatures(tbl, cols)
	require.NoError(t, err)
	require.Len(t, X, 10)
	for i, x := range X {
		o := tbl.Observation(i)
		require.Len(t, x, 29)
		assert.Equal(t, float64(o.V[0]), x[0])
		assert.Equal(t, float64(o.V[27]), x[27])
		assert.Equal(t, float64(o.Amount), x[28])
	}

	_, err = ConcatFeatures(tbl, []string{"Time"})
	assert.Error(t, err)
}

func TestFitAndEvaluate(t *testing.T) {
	train := fraudTable(1500, 2)
	test := fraudTable(500, 3)

	fitted, err := New(smallTrainer()).Fit(train)
	require.NoError(t, err)
	assert.Equal(t, FeatureColumns(train.Schema()), fitted.Features)

	m, err := Evaluate(fitted, test)
	require.NoError(t, err)
	assert.Equal(t, 500, m.Count)
	assert.Equal(t, 500, m.Confusion.Total())
	assert.True(t, m.Accuracy >= 0 && m.Accuracy <= 1)

	y := test.Bools(dataset.LabelColumn)
	neg := 0
	for _, v := range y {
		if !v {
			neg++
		}
	}
	assert.Greater(t, m.Accuracy, float64(neg)/float64(len(y)))
	assert.Greater(t, m.AUC, 0.9)
}

func TestNormalizerSeesOnlyTraining(t *testing.T) {
	train := fraudTable(300, 4)
	fitted, err := New(smallTrainer()).Fit(train)
	require.NoError(t, err)
	mean := append([]float64(nil), fitted.Normalizer.Mean...)

	_, err = fitted.Transform(fraudTable(300, 5))
	require.NoError(t, err)
	assert.Equal(t, mean, fitted.Normalizer.Mean)
}

func TestPredictionEngineMatchesTransform(t *testing.T) {
	train := fraudTable(600, 6)
	fitted, err := New(smallTrainer()).Fit(train)
	require.NoError(t, err)

	test := fraudTable(100, 7)
	batch, err := fitted.Transform(test)
	require.NoError(t, err)

	engine, err := fitted.NewPredictionEngine()
	require.NoError(t, err)
	for i, o := range test.Observations() {
		got := engine.Predict(o)
		assert.Equal(t, batch[i], got)
		assert.Equal(t, got.Score > 0, got.PredictedLabel)
		assert.Equal(t, o.Label, got.Label)
		assert.True(t, got.Probability >= 0 && got.Probability <= 1)
	}
}

func TestFitErrors(t *testing.T) {
	_, err := New(smallTrainer()).Fit(dataset.TableFromObservations(nil))
	assert.Error(t, err)
	_, err = New(nil).Fit(fraudTable(10, 8))
	assert.Error(t, err)

	_, err = Evaluate(&Fitted{}, dataset.TableFromObservations(nil))
	assert.Error(t, err)

	_, err = (&Fitted{}).NewPredictionEngine()
	assert.Error(t, err)
}

func TestNewTrainerBackends(t *testing.T) {
	cfg := config.Default().Trainer
	for backend, kind := range map[string]string{
		config.BackendGBDT:     model.KindGBDT,
		config.BackendForest:   model.KindForest,
		config.BackendLogistic: model.KindLogistic,
	} {
		cfg.Backend = backend
		cfg.NumTrees = 5
		tr, err := NewTrainer(cfg)
		require.NoError(t, err, backend)
		fitted, err := New(tr).Fit(fraudTable(200, 9))
		require.NoError(t, err, backend)
		assert.Equal(t, kind, fitted.Classifier.Kind())
	}

	cfg.Backend = "svm"
	_, err := NewTrainer(cfg)
	assert.Error(t, err)
}

type failingTransformer struct{ model.Transformer }

func (failingTransformer) Fit([][]float64) error { return errors.New("boom") }

func TestFitTransformThroughInterface(t *testing.T) {
	X := [][]float64{{1, 10}, {3, 30}}
	Xn, err := fitTransform(stats.NewMeanVarianceNormalizer(), X)
	require.NoError(t, err)
	// sample variance: std of {1, 3} is sqrt(2)
	h := math.Sqrt2 / 2
	assert.InDeltaSlice(t, []float64{-h, -h}, Xn[0], 1e-9)
	assert.InDeltaSlice(t, []float64{h, h}, Xn[1], 1e-9)

	_, err = fitTransform(failingTransformer{}, X)
	assert.ErrorContains(t, err, "normalize: boom")
}

func TestPredictionEngineRejectsWidthMismatch(t *testing.T) {
	f := &Fitted{
		Features:   []string{dataset.VColumn(1), dataset.AmountColumn},
		Normalizer: &stats.MeanVarianceNormalizer{Mean: []float64{0, 0}, Scale: []float64{1, 1}},
		Classifier: &model.LogisticRegression{W: []float64{1}},
		Calibrator: &model.PlattCalibrator{A: -1},
	}
	_, err := f.NewPredictionEngine()
	assert.ErrorContains(t, err, "classifier expects 1 features, want 2")

	f.Classifier = &model.LogisticRegression{W: []float64{1, 2}}
	_, err = f.NewPredictionEngine()
	assert.NoError(t, err)
}
