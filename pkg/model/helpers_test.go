package model

import "math/rand"

// twoBlobs returns n rows whose label is decided by x0 + 0.5*x1 > 0.3 with a
// few flipped labels, plus two pure-noise columns.
func twoBlobs(n int, seed int64) ([][]float64, []bool) {
	r := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]bool, n)
	for i := range X {
		x0, x1 := r.NormFloat64(), r.NormFloat64()
		X[i] = []float64{x0, x1, r.NormFloat64(), r.Float64()}
		y[i] = x0+0.5*x1 > 0.3
		if r.Float64() < 0.02 {
			y[i] = !y[i]
		}
	}
	return X, y
}

func accuracyOf(c BinaryClassifier, X [][]float64, y []bool) float64 {
	ok := 0
	for i := range X {
		if (c.Score(X[i]) > 0) == y[i] {
			ok++
		}
	}
	return float64(ok) / float64(len(X))
}

func majorityRate(y []bool) float64 {
	pos := 0
	for _, v := range y {
		if v {
			pos++
		}
	}
	r := float64(pos) / float64(len(y))
	if r < 0.5 {
		return 1 - r
	}
	return r
}
