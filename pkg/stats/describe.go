package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of one numeric column.
type Summary struct {
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
	Median float64
	P99    float64
}

// Describe summarizes x. NaNs are ignored.
func Describe(x []float32) Summary {
	vals := make([]float64, 0, len(x))
	for _, v := range x {
		if f := float64(v); !math.IsNaN(f) {
			vals = append(vals, f)
		}
	}
	s := Summary{Count: len(vals)}
	if s.Count == 0 {
		return s
	}
	sort.Float64s(vals)
	s.Mean, s.Std = stat.MeanStdDev(vals, nil)
	if s.Count == 1 {
		s.Std = 0
	}
	s.Min, s.Max = floats.Min(vals), floats.Max(vals)
	s.Median = stat.Quantile(0.5, stat.Empirical, vals, nil)
	s.P99 = stat.Quantile(0.99, stat.Empirical, vals, nil)
	return s
}

// PositiveRate is the fraction of true labels, 0 for an empty slice.
func PositiveRate(labels []bool) float64 {
	if len(labels) == 0 {
		return 0
	}
	n := 0
	for _, l := range labels {
		if l {
			n++
		}
	}
	return float64(n) / float64(len(labels))
}
