package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const KindGBDT = "gbdt"

// GradientBoostedTrees is a boosted ensemble of regression trees trained on
// logistic loss. Score returns the raw log-odds; positive predicts fraud.
type GradientBoostedTrees struct {
	Bias        float64
	Trees       []RegressionTree
	NumFeatures int
}

func (m *GradientBoostedTrees) Kind() string { return KindGBDT }

func (m *GradientBoostedTrees) Width() int { return m.NumFeatures }

func (m *GradientBoostedTrees) Score(x []float64) float64 {
	s := m.Bias
	for i := range m.Trees {
		s += m.Trees[i].Predict(x)
	}
	return s
}

// gbdtSnapshot keeps gob from recursing into MarshalBinary.
type gbdtSnapshot struct {
	Bias        float64
	Trees       []RegressionTree
	NumFeatures int
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (m *GradientBoostedTrees) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	snap := gbdtSnapshot{Bias: m.Bias, Trees: m.Trees, NumFeatures: m.NumFeatures}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("gbdt: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (m *GradientBoostedTrees) UnmarshalBinary(data []byte) error {
	var snap gbdtSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("gbdt: decode: %w", err)
	}
	for t := range snap.Trees {
		if err := snap.Trees[t].validate(snap.NumFeatures); err != nil {
			return fmt.Errorf("gbdt: tree %d: %w", t, err)
		}
	}
	m.Bias, m.Trees, m.NumFeatures = snap.Bias, snap.Trees, snap.NumFeatures
	return nil
}

// ---------------------------
// Trainer & options
// ---------------------------

// GBDTTrainer holds the boosting hyperparameters.
type GBDTTrainer struct {
	NumTrees        int
	NumLeaves       int
	MinDataPerLeaf  int
	LearningRate    float64
	MaxBins         int
	Lambda          float64 // L2 regularization on leaf values
	FeatureFraction float64 // share of features considered per tree, 1 => all
	Seed            int64
}

type GBDTOption func(*GBDTTrainer)

func WithNumTrees(n int) GBDTOption            { return func(t *GBDTTrainer) { t.NumTrees = n } }
func WithNumLeaves(n int) GBDTOption           { return func(t *GBDTTrainer) { t.NumLeaves = n } }
func WithMinDataPerLeaf(n int) GBDTOption      { return func(t *GBDTTrainer) { t.MinDataPerLeaf = n } }
func WithLearningRate(r float64) GBDTOption    { return func(t *GBDTTrainer) { t.LearningRate = r } }
func WithMaxBins(n int) GBDTOption             { return func(t *GBDTTrainer) { t.MaxBins = n } }
func WithLambda(l float64) GBDTOption          { return func(t *GBDTTrainer) { t.Lambda = l } }
func WithFeatureFraction(f float64) GBDTOption { return func(t *GBDTTrainer) { t.FeatureFraction = f } }
func WithSeed(seed int64) GBDTOption           { return func(t *GBDTTrainer) { t.Seed = seed } }

// NewGBDTTrainer returns a trainer with the FastTree-style defaults:
// 100 trees, 20 leaves, 10 rows per leaf, learning rate 0.2.
func NewGBDTTrainer(opts ...GBDTOption) *GBDTTrainer {
	t := &GBDTTrainer{
		NumTrees:        100,
		NumLeaves:       20,
		MinDataPerLeaf:  10,
		LearningRate:    0.2,
		MaxBins:         255,
		FeatureFraction: 1,
		Seed:            1,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *GBDTTrainer) validate() error {
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
	if !(t.LearningRate > 0) {
		errs = append(errs, fmt.Errorf("learning rate must be > 0, got %g", t.LearningRate))
	}
	if t.MaxBins < 2 || t.MaxBins > math.MaxUint16 {
		errs = append(errs, fmt.Errorf("max bins must be in [2, %d], got %d", math.MaxUint16, t.MaxBins))
	}
	if t.Lambda < 0 {
		errs = append(errs, fmt.Errorf("lambda must be >= 0, got %g", t.Lambda))
	}
	if !(t.FeatureFraction > 0 && t.FeatureFraction <= 1) {
		errs = append(errs, fmt.Errorf("feature fraction must be in (0, 1], got %g", t.FeatureFraction))
	}
	if len(errs) > 0 {
		return fmt.Errorf("gbdt: %w", errors.Join(errs...))
	}
	return nil
}

// Fit boosts NumTrees trees on logistic loss. The result is deterministic for
// a given input and Seed.
func (t *GBDTTrainer) Fit(X [][]float64, y []bool) (BinaryClassifier, error) {
	return t.FitBoosted(X, y)
}

func (t *GBDTTrainer) FitBoosted(X [][]float64, y []bool) (*GradientBoostedTrees, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	n, p, err := checkXY("gbdt", X, y)
	if err != nil {
		return nil, err
	}

	mapper := newBinMapper(X, t.MaxBins)
	grad := make([]float64, n)
	hess := make([]float64, n)
	g := &treeGrower{
		params: treeParams{
			maxLeaves:      t.NumLeaves,
			minDataPerLeaf: t.MinDataPerLeaf,
			minSumHessian:  1e-3,
			lambda:         t.Lambda,
			shrinkage:      t.LearningRate,
		},
		mapper: mapper,
		bins:   mapper.binColumns(X),
		grad:   grad,
		hess:   hess,
	}

	m := &GradientBoostedTrees{Bias: logOdds(y), NumFeatures: p, Trees: make([]RegressionTree, 0, t.NumTrees)}
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = m.Bias
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	rnd := rand.New(rand.NewSource(t.Seed))

	for k := 0; k < t.NumTrees; k++ {
		for i := 0; i < n; i++ {
			pr := sigmoid(scores[i])
			grad[i] = pr - boolTarget(y[i])
			hess[i] = math.Max(pr*(1-pr), 1e-16)
		}
		g.features = sampleFeatures(p, t.FeatureFraction, rnd)
		tree := g.grow(rows, func(r int, v float64) { scores[r] += v })
		m.Trees = append(m.Trees, tree)
	}
	return m, nil
}

// ---------------------------
// Helpers
// ---------------------------

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func boolTarget(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// logOdds is the initial score: the log-odds of the positive rate, clamped
// away from the infinities a single-class sample would give.
func logOdds(y []bool) float64 {
	pos := 0
	for _, v := range y {
		if v {
			pos++
		}
	}
	rate := float64(pos) / float64(len(y))
	rate = math.Min(math.Max(rate, 1e-6), 1-1e-6)
	return math.Log(rate / (1 - rate))
}

// sampleFeatures returns a sorted subset of [0, p). fraction 1 takes all.
func sampleFeatures(p int, fraction float64, rnd *rand.Rand) []int {
	if fraction >= 1 {
		all := make([]int, p)
		for j := range all {
			all[j] = j
		}
		return all
	}
	k := int(math.Round(fraction * float64(p)))
	if k < 1 {
		k = 1
	}
	picked := rnd.Perm(p)[:k]
	sort.Ints(picked)
	return picked
}
