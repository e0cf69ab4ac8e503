package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

func TestSplitDisjointAndComplete(t *testing.T) {
	rows := syntheticRows(1000, 11)
	train, test, err := Split(TableFromObservations(rows), 0.2, 1)
	require.NoError(t, err)

	seen := make(map[float32]int)
	for _, a := range amounts(train) {
		seen[a]++
	}
	for _, a := range amounts(test) {
		seen[a]++
	}
	require.Len(t, seen, len(rows))
	for a, n := range seen {
		assert.Equal(t, 1, n, "row %v appears %d times", a, n)
	}
	assert.Equal(t, len(rows), train.Len()+test.Len())
}

func TestSplitProportionAndStratification(t *testing.T) {
	rows := syntheticRows(1000, 11)
	train, test, err := Split(TableFromObservations(rows), 0.2, 1)
	require.NoError(t, err)

	assert.Equal(t, 200, test.Len())
	assert.Equal(t, 800, train.Len())
	// 100 frauds overall: 20 in test, 80 in train.
	assert.Equal(t, 20, countTrue(test.Bools(LabelColumn)))
	assert.Equal(t, 80, countTrue(train.Bools(LabelColumn)))

	ratio := float64(test.Len()) / float64(train.Len()+test.Len())
	assert.InDelta(t, 0.2, ratio, 0.01)
}

func TestSplitKeepsOrderAndAddsKey(t *testing.T) {
	rows := syntheticRows(300, 2)
	train, test, err := Split(TableFromObservations(rows), 0.2, 1)
	require.NoError(t, err)

	for _, part := range []*Table{train, test} {
		a := amounts(part)
		assert.True(t, sort.SliceIsSorted(a, func(i, j int) bool { return a[i] < a[j] }))
		keys := part.Floats(StratificationColumn)
		require.Len(t, keys, part.Len())
		for _, k := range keys {
			assert.True(t, k >= 0 && k < 1)
		}
		assert.Equal(t, SplitSchema(), part.Schema().Reindexed())
	}
}

func TestSplitDeterministic(t *testing.T) {
	rows := syntheticRows(500, 4)
	trainA, testA, err := Split(TableFromObservations(rows), 0.2, 1)
	require.NoError(t, err)
	trainB, testB, err := Split(TableFromObservations(rows), 0.2, 1)
	require.NoError(t, err)
	assert.Equal(t, trainA.Observations(), trainB.Observations())
	assert.Equal(t, testA.Observations(), testB.Observations())

	_, testC, err := Split(TableFromObservations(rows), 0.2, 2)
	require.NoError(t, err)
	assert.NotEqual(t, amounts(testA), amounts(testC))
}

func TestSplitRejectsBadInput(t *testing.T) {
	table := TableFromObservations(syntheticRows(10, 1))
	for _, f := range []float64{0, 1, -0.5, math.NaN()} {
		_, _, err := Split(table, f, 1)
		assert.Error(t, err)
	}
	noLabel := NewTable(Schema{Columns: []Column{{Name: AmountColumn, Kind: Single, Index: 0}}})
	_, _, err := Split(noLabel, 0.2, 1)
	assert.Error(t, err)
}

func TestEnsureSplitIdempotent(t *testing.T) {
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "trainData.csv")
	testPath := filepath.Join(dir, "testData.csv")
	rows := syntheticRows(200, 8)

	loads := 0
	load := func() (*Table, error) {
		loads++
		return TableFromObservations(rows), nil
	}

	state, err := EnsureSplit(trainPath, testPath, load, 0.2, 1)
	require.NoError(t, err)
	assert.Equal(t, SplitAbsent, state)
	assert.Equal(t, 1, loads)

	before, err := os.Stat(trainPath)
	require.NoError(t, err)

	state, err = EnsureSplit(trainPath, testPath, load, 0.2, 1)
	require.NoError(t, err)
	assert.Equal(t, SplitComplete, state)
	assert.Equal(t, 1, loads)

	after, err := os.Stat(trainPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestEnsureSplitPartialResplits(t *testing.T) {
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "trainData.csv")
	testPath := filepath.Join(dir, "testData.csv")
	rows := syntheticRows(200, 8)
	load := func() (*Table, error) { return TableFromObservations(rows), nil }

	require.NoError(t, os.WriteFile(trainPath, []byte("stale"), 0o644))

	state, err := EnsureSplit(trainPath, testPath, load, 0.2, 1)
	require.NoError(t, err)
	assert.Equal(t, SplitPartial, state)

	train, err := Load(trainPath, SplitSchema(), DefaultLoadOptions())
	require.NoError(t, err)
	test, err := Load(testPath, SplitSchema(), DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, len(rows), train.Len()+test.Len())
}

func TestEnsureSplitLoadFailure(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	_, err := EnsureSplit(filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv"),
		func() (*Table, error) { return nil, boom }, 0.2, 1)
	assert.ErrorIs(t, err, boom)

	state, err := SplitStateOf(filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, SplitAbsent, state)
}
