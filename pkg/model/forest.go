package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

const KindForest = "forest"

// RandomForest averages bagged regression trees fitted to the +1/-1 label.
// Each leaf holds the mean label of its rows, so Score lies in [-1, 1].
type RandomForest struct {
	Trees       []RegressionTree
	NumFeatures int
}

func (rf *RandomForest) Kind() string { return KindForest }

func (rf *RandomForest) Width() int { return rf.NumFeatures }

func (rf *RandomForest) Score(x []float64) float64 {
	if len(rf.Trees) == 0 {
		return 0
	}
	s := 0.0
	for i := range rf.Trees {
		s += rf.Trees[i].Predict(x)
	}
	return s / float64(len(rf.Trees))
}

type forestSnapshot struct {
	Trees       []RegressionTree
	NumFeatures int
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (rf *RandomForest) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(forestSnapshot{Trees: rf.Trees, NumFeatures: rf.NumFeatures}); err != nil {
		return nil, fmt.Errorf("randomforest: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (rf *RandomForest) UnmarshalBinary(data []byte) error {
	var snap forestSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("randomforest: decode: %w", err)
	}
	for t := range snap.Trees {
		if err := snap.Trees[t].validate(snap.NumFeatures); err != nil {
			return fmt.Errorf("randomforest: tree %d: %w", t, err)
		}
	}
	rf.Trees, rf.NumFeatures = snap.Trees, snap.NumFeatures
	return nil
}

// RandomForestTrainer holds the forest hyperparameters.
type RandomForestTrainer struct {
	NumTrees        int
	NumLeaves       int
	MinDataPerLeaf  int
	MaxBins         int
	FeatureFraction float64
	Bootstrap       bool
	Seed            int64
}

// RandomForestOption functional config for RandomForestTrainer
type RandomForestOption func(*RandomForestTrainer)

func WithForestTrees(n int) RandomForestOption {
	return func(rf *RandomForestTrainer) { rf.NumTrees = n }
}
func WithForestLeaves(n int) RandomForestOption {
	return func(rf *RandomForestTrainer) { rf.NumLeaves = n }
}
func WithForestMinDataPerLeaf(n int) RandomForestOption {
	return func(rf *RandomForestTrainer) { rf.MinDataPerLeaf = n }
}
func WithForestMaxBins(n int) RandomForestOption {
	return func(rf *RandomForestTrainer) { rf.MaxBins = n }
}
func WithForestFeatureFraction(f float64) RandomForestOption {
	return func(rf *RandomForestTrainer) { rf.FeatureFraction = f }
}
func WithBootstrap(b bool) RandomForestOption {
	return func(rf *RandomForestTrainer) { rf.Bootstrap = b }
}
func WithForestSeed(seed int64) RandomForestOption {
	return func(rf *RandomForestTrainer) { rf.Seed = seed }
}

// NewRandomForestTrainer initializes the forest with sensible defaults.
func NewRandomForestTrainer(opts ...RandomForestOption) *RandomForestTrainer {
	rf := &RandomForestTrainer{
		NumTrees:        100,
		NumLeaves:       20,
		MinDataPerLeaf:  10,
		MaxBins:         255,
		FeatureFraction: 0.7,
		Bootstrap:       true,
		Seed:            1,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

func (t *RandomForestTrainer) validate() error {
	var errs []error
	if t.NumTrees < 1 {
		errs = append(errs, fmt.Errorf("num trees must be >= 1, got %d", t.NumTrees))
	}
	if t.NumLeaves < 2 {
		errs = append(errs, fmt.Errorf("num leaves must be >= 2, got %d", t.NumLeaves))
	}
	if t.MinDataPerLeaf < 1 {
		errs = append(errs, fmt.Errorf("min data per leaf must be >= 1, got %d", t.MinDataPerLeaf))
	}
	if t.MaxBins < 2 || t.MaxBins > math.MaxUint16 {
		errs = append(errs, fmt.Errorf("max bins must be in [2, %d], got %d", math.MaxUint16, t.MaxBins))
	}
	if !(t.FeatureFraction > 0 && t.FeatureFraction <= 1) {
		errs = append(errs, fmt.Errorf("feature fraction must be in (0, 1], got %g", t.FeatureFraction))
	}
	if len(errs) > 0 {
		return fmt.Errorf("randomforest: %w", errors.Join(errs...))
	}
	return nil
}

func (t *RandomForestTrainer) Fit(X [][]float64, y []bool) (BinaryClassifier, error) {
	return t.FitForest(X, y)
}

// FitForest trains the trees concurrently. Tree idx draws its bootstrap
// sample and feature subset from Seed+idx, so the forest does not depend on
// goroutine scheduling.
func (t *RandomForestTrainer) FitForest(X [][]float64, y []bool) (*RandomForest, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	n, p, err := checkXY("randomforest", X, y)
	if err != nil {
		return nil, err
	}

	mapper := newBinMapper(X, t.MaxBins)
	bins := mapper.binColumns(X)
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range y {
		grad[i] = 1 - 2*boolTarget(y[i])
		hess[i] = 1
	}

	rf := &RandomForest{Trees: make([]RegressionTree, t.NumTrees), NumFeatures: p}
	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	for i := 0; i < t.NumTrees; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			treeRand := rand.New(rand.NewSource(t.Seed + int64(idx)))
			// Bootstrap sampling: an index slice, not a copy of the data.
			rows := make([]int, n)
			for j := range rows {
				if t.Bootstrap {
					rows[j] = treeRand.Intn(n)
				} else {
					rows[j] = j
				}
			}
			g := &treeGrower{
				params: treeParams{
					maxLeaves:      t.NumLeaves,
					minDataPerLeaf: t.MinDataPerLeaf,
					minSumHessian:  1e-3,
					shrinkage:      1,
				},
				mapper:   mapper,
				bins:     bins,
				grad:     grad,
				hess:     hess,
				features: sampleFeatures(p, t.FeatureFraction, treeRand),
			}
			rf.Trees[idx] = g.grow(rows, nil)
		}(i)
	}
	wg.Wait()
	return rf, nil
}
