package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MeanVarianceNormalizer standardizes each column to zero mean and unit
// variance. Statistics are computed once by Fit and never updated by
// Transform, so train and inference rows are scaled identically.
type MeanVarianceNormalizer struct {
	Mean  []float64
	Scale []float64 // 1/std, 0 for constant columns
}

func NewMeanVarianceNormalizer() *MeanVarianceNormalizer { return &MeanVarianceNormalizer{} }

func (s *MeanVarianceNormalizer) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("normalizer: empty X")
	}
	r, c := len(X), len(X[0])
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			if len(X[i]) != c {
				return fmt.Errorf("normalizer: row %d has %d columns, want %d", i, len(X[i]), c)
			}
			col[i] = X[i][j]
		}
		mean, variance := stat.MeanVariance(col, nil)
		s.Mean[j] = mean
		if r > 1 && variance > 0 && !math.IsInf(variance, 0) {
			s.Scale[j] = 1 / math.Sqrt(variance)
		}
	}
	return nil
}

func (s *MeanVarianceNormalizer) Fitted() bool { return s.Mean != nil }

// TransformRow scales a single row into a new slice.
func (s *MeanVarianceNormalizer) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j := range x {
		out[j] = (x[j] - s.Mean[j]) * s.Scale[j]
	}
	return out
}

func (s *MeanVarianceNormalizer) Transform(X [][]float64) [][]float64 {
	if !s.Fitted() {
		return X
	}
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = s.TransformRow(X[i])
	}
	return out
}

func (s *MeanVarianceNormalizer) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X), nil
}
