package model

import (
	"math"
	"runtime"
	"sort"
	"sync"
)

// binMapper quantizes each feature into at most maxBins ordered bins.
// uppers[j][b] is the inclusive upper bound of bin b; the last is +Inf.
// A value v falls in the first bin whose upper bound is >= v, so
// bin(v) <= b exactly when v <= uppers[j][b].
type binMapper struct {
	uppers [][]float64
}

func newBinMapper(X [][]float64, maxBins int) *binMapper {
	p := len(X[0])
	m := &binMapper{uppers: make([][]float64, p)}
	parallelFor(p, func(j int) {
		col := make([]float64, 0, len(X))
		for i := range X {
			if v := X[i][j]; !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		m.uppers[j] = binUppers(col, maxBins)
	})
	return m
}

// binUppers builds bin boundaries at midpoints between distinct values,
// merging neighbours so each bin holds roughly len(col)/maxBins values.
func binUppers(col []float64, maxBins int) []float64 {
	if len(col) == 0 {
		return []float64{math.Inf(1)}
	}
	sort.Float64s(col)
	distinct := make([]float64, 0, 64)
	counts := make([]int, 0, 64)
	for i, v := range col {
		if i == 0 || v != col[i-1] {
			distinct = append(distinct, v)
			counts = append(counts, 0)
		}
		counts[len(counts)-1]++
	}

	var uppers []float64
	if len(distinct) <= maxBins {
		uppers = make([]float64, 0, len(distinct))
		for k := 0; k+1 < len(distinct); k++ {
			uppers = append(uppers, midpoint(distinct[k], distinct[k+1]))
		}
	} else {
		perBin := float64(len(col)) / float64(maxBins)
		acc := 0
		for k := 0; k+1 < len(distinct) && len(uppers) < maxBins-1; k++ {
			acc += counts[k]
			if float64(acc) >= perBin*float64(len(uppers)+1) {
				uppers = append(uppers, midpoint(distinct[k], distinct[k+1]))
			}
		}
	}
	return append(uppers, math.Inf(1))
}

func midpoint(a, b float64) float64 {
	m := a + (b-a)/2
	if m >= b {
		// a and b are adjacent floats
		return a
	}
	return m
}

func (m *binMapper) bin(j int, v float64) uint16 {
	u := m.uppers[j]
	b := sort.SearchFloat64s(u, v)
	if b >= len(u) {
		b = len(u) - 1
	}
	return uint16(b)
}

func (m *binMapper) numBins(j int) int { return len(m.uppers[j]) }

// binColumns returns bins[j][i], the bin of X[i][j].
func (m *binMapper) binColumns(X [][]float64) [][]uint16 {
	p := len(m.uppers)
	out := make([][]uint16, p)
	parallelFor(p, func(j int) {
		col := make([]uint16, len(X))
		for i := range X {
			col[i] = m.bin(j, X[i][j])
		}
		out[j] = col
	})
	return out
}

// parallelFor runs fn(0..n-1) on up to GOMAXPROCS goroutines.
func parallelFor(n int, fn func(i int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	var wg sync.WaitGroup
	next := make(chan int, n)
	for i := 0; i < n; i++ {
		next <- i
	}
	close(next)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
