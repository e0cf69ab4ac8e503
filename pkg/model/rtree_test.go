package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinUppersBoundaries(t *testing.T) {
	u := binUppers([]float64{3, 1, 2, 2, 1}, 255)
	require.Len(t, u, 3)
	assert.Equal(t, 1.5, u[0])
	assert.Equal(t, 2.5, u[1])
	assert.True(t, math.IsInf(u[2], 1))

	u = binUppers(make([]float64, 0), 10)
	assert.Len(t, u, 1)
}

func TestBinUppersCapsBins(t *testing.T) {
	col := make([]float64, 1000)
	for i := range col {
		col[i] = float64(i)
	}
	u := binUppers(col, 16)
	assert.LessOrEqual(t, len(u), 16)
	assert.True(t, math.IsInf(u[len(u)-1], 1))
}

func TestBinMatchesThreshold(t *testing.T) {
	X, _ := twoBlobs(500, 11)
	m := newBinMapper(X, 32)
	for j := range X[0] {
		for _, row := range X {
			b := m.bin(j, row[j])
			for k := 0; k < m.numBins(j); k++ {
				assert.Equal(t, int(b) <= k, row[j] <= m.uppers[j][k])
			}
		}
	}
}

// A tree applied to raw values must route every training row to the leaf
// the binned grower put it in.
func TestGrownTreeAgreesWithTraining(t *testing.T) {
	X, y := twoBlobs(400, 12)
	mapper := newBinMapper(X, 64)
	grad := make([]float64, len(X))
	hess := make([]float64, len(X))
	for i := range y {
		grad[i] = 0.5 - boolTarget(y[i])
		hess[i] = 0.25
	}
	g := &treeGrower{
		params:   treeParams{maxLeaves: 12, minDataPerLeaf: 5, minSumHessian: 1e-3, shrinkage: 1},
		mapper:   mapper,
		bins:     mapper.binColumns(X),
		grad:     grad,
		hess:     hess,
		features: []int{0, 1, 2, 3},
	}
	rows := make([]int, len(X))
	for i := range rows {
		rows[i] = i
	}
	got := make([]float64, len(X))
	tree := g.grow(rows, func(r int, v float64) { got[r] = v })

	assert.Greater(t, tree.NumLeaves(), 1)
	assert.LessOrEqual(t, tree.NumLeaves(), 12)
	require.NoError(t, tree.validate(4))
	for i, x := range X {
		assert.Equal(t, got[i], tree.Predict(x))
	}
}

func TestGrowStopsWhenNoSplitHelps(t *testing.T) {
	X := [][]float64{{1}, {1}, {1}, {1}}
	mapper := newBinMapper(X, 255)
	g := &treeGrower{
		params:   treeParams{maxLeaves: 8, minDataPerLeaf: 1, minSumHessian: 1e-3, shrinkage: 1},
		mapper:   mapper,
		bins:     mapper.binColumns(X),
		grad:     []float64{-1, 1, -1, 1},
		hess:     []float64{1, 1, 1, 1},
		features: []int{0},
	}
	tree := g.grow([]int{0, 1, 2, 3}, nil)
	assert.Equal(t, 1, tree.NumLeaves())
	assert.Equal(t, 0.0, tree.Predict([]float64{1}))
}
