package artifact

import (
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frauddetect/pkg/config"
	"frauddetect/pkg/dataset"
	"frauddetect/pkg/model"
	"frauddetect/pkg/pipeline"
)

func fittedPipeline(t *testing.T, trainer model.Trainer) (*pipeline.Fitted, *dataset.Table) {
	t.Helper()
	r := rand.New(rand.NewSource(1))
	rows := make([]dataset.TransactionObservation, 400)
	for i := range rows {
		var o dataset.TransactionObservation
		for k := range o.V {
			o.V[k] = float32(r.NormFloat64())
		}
		o.Amount = float32(r.ExpFloat64() * 50)
		o.Label = o.V[2]-o.V[5] > 1.5
		rows[i] = o
	}
	tbl := dataset.TableFromObservations(rows)
	f, err := pipeline.New(trainer).Fit(tbl)
	require.NoError(t, err)
	return f, tbl
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, trainer := range []model.Trainer{
		model.NewGBDTTrainer(model.WithNumTrees(10)),
		model.NewRandomForestTrainer(model.WithForestTrees(4)),
		model.NewLogisticTrainer(0.1, 3, 32, 1),
	} {
		f, tbl := fittedPipeline(t, trainer)
		path := filepath.Join(t.TempDir(), "models", "model.zip")

		cfg := config.Default().Trainer
		man, err := Save(path, f, WithTrainer(cfg), WithMetrics(model.BinaryMetrics{Count: 3, Accuracy: 1}))
		require.NoError(t, err)
		assert.NotEmpty(t, man.RunID)

		back, loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, man.RunID, loaded.RunID)
		assert.Equal(t, f.Classifier.Kind(), loaded.ModelKind)
		assert.Equal(t, f.Features, loaded.Features)
		require.NotNil(t, loaded.Trainer)
		assert.Equal(t, cfg, *loaded.Trainer)
		assert.Equal(t, 3, loaded.Metrics.Count)
		assert.True(t, man.CreatedAt.Equal(loaded.CreatedAt))

		want, err := f.Transform(tbl)
		require.NoError(t, err)
		got, err := back.Transform(tbl)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.zip"))
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "load", pe.Op)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip"), 0o644))
	_, _, err := Load(path)
	var pe *PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestSaveIncompletePipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.zip")
	_, err := Save(path, &pipeline.Fitted{})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save", pe.Op)
	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, fs.ErrNotExist)
}

func TestLoadRejectsModelWidthMismatch(t *testing.T) {
	f, _ := fittedPipeline(t, model.NewLogisticTrainer(0.1, 1, 32, 1))
	lr := f.Classifier.(*model.LogisticRegression)
	f.Classifier = &model.LogisticRegression{W: lr.W[:len(lr.W)-1], B: lr.B}

	path := filepath.Join(t.TempDir(), "model.zip")
	_, err := Save(path, f)
	require.NoError(t, err)

	_, _, err = Load(path)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "load", pe.Op)
	assert.ErrorContains(t, err, "logistic model expects 28 features, manifest lists 29")
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	f, _ := fittedPipeline(t, model.NewGBDTTrainer(model.WithNumTrees(2)))
	dir := t.TempDir()
	_, err := Save(filepath.Join(dir, "model.zip"), f)
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "model.zip", entries[0].Name())
}
