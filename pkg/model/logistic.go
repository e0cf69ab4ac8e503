package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math/rand"

	"frauddetect/pkg/optim"
)

const KindLogistic = "logistic"

// LogisticRegression is a linear baseline. Score is the log-odds w.x + b.
type LogisticRegression struct {
	W []float64
	B float64
}

func (m *LogisticRegression) Kind() string { return KindLogistic }

func (m *LogisticRegression) Width() int { return len(m.W) }

func (m *LogisticRegression) Score(x []float64) float64 {
	s := m.B
	for j, v := range x {
		s += m.W[j] * v
	}
	return s
}

type logisticSnapshot struct {
	W []float64
	B float64
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (m *LogisticRegression) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(logisticSnapshot{W: m.W, B: m.B}); err != nil {
		return nil, fmt.Errorf("logistic: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (m *LogisticRegression) UnmarshalBinary(data []byte) error {
	var snap logisticSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("logistic: decode: %w", err)
	}
	if len(snap.W) == 0 {
		return errors.New("logistic: decode: no weights")
	}
	m.W, m.B = snap.W, snap.B
	return nil
}

// LogisticTrainer fits LogisticRegression with mini-batch SGD on binary
// cross-entropy.
type LogisticTrainer struct {
	LearningRate float64
	Epochs       int
	BatchSize    int
	L2           float64
	Seed         int64
}

func NewLogisticTrainer(lr float64, epochs, batchSize int, seed int64) *LogisticTrainer {
	return &LogisticTrainer{LearningRate: lr, Epochs: epochs, BatchSize: batchSize, Seed: seed}
}

func (t *LogisticTrainer) Fit(X [][]float64, y []bool) (BinaryClassifier, error) {
	return t.FitLogistic(X, y)
}

// FitLogistic starts from zero weights and the base-rate log-odds, then runs
// Epochs passes over a seeded shuffle of the rows.
func (t *LogisticTrainer) FitLogistic(X [][]float64, y []bool) (*LogisticRegression, error) {
	if !(t.LearningRate > 0) || t.Epochs < 1 || t.BatchSize < 1 || t.L2 < 0 {
		return nil, fmt.Errorf("logistic: invalid hyperparameters lr=%g epochs=%d batch=%d l2=%g",
			t.LearningRate, t.Epochs, t.BatchSize, t.L2)
	}
	n, p, err := checkXY("logistic", X, y)
	if err != nil {
		return nil, err
	}

	m := &LogisticRegression{W: make([]float64, p), B: logOdds(y)}
	opt := optim.NewSGD(t.LearningRate, t.L2)
	rnd := rand.New(rand.NewSource(t.Seed))
	gW := make([]float64, p)

	for ep := 0; ep < t.Epochs; ep++ {
		order := rnd.Perm(n)
		for start := 0; start < n; start += t.BatchSize {
			end := start + t.BatchSize
			if end > n {
				end = n
			}
			for j := range gW {
				gW[j] = 0
			}
			gb := 0.0
			inv := 1 / float64(end-start)
			for _, i := range order[start:end] {
				d := (sigmoid(m.Score(X[i])) - boolTarget(y[i])) * inv
				for j, xij := range X[i] {
					gW[j] += d * xij
				}
				gb += d
			}
			opt.Step(m.W, gW)
			opt.StepScalar(&m.B, gb)
		}
	}
	return m, nil
}
