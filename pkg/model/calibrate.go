package model

import (
	"errors"
	"math"
)

// PlattCalibrator maps a raw score to a probability with
// P(fraud | s) = 1 / (1 + exp(A*s + B)).
type PlattCalibrator struct {
	A, B float64
}

// FitPlatt fits A and B by Newton's method with backtracking on the
// regularized targets of Lin, Lin and Weng (2007).
func FitPlatt(scores []float64, y []bool) (*PlattCalibrator, error) {
	if len(scores) == 0 {
		return nil, errors.New("platt: no scores")
	}
	if len(scores) != len(y) {
		return nil, errors.New("platt: scores and labels length mismatch")
	}
	var prior0, prior1 float64
	for _, v := range y {
		if v {
			prior1++
		} else {
			prior0++
		}
	}

	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)
	hiTarget := (prior1 + 1) / (prior1 + 2)
	loTarget := 1 / (prior0 + 2)
	t := make([]float64, len(y))
	for i, v := range y {
		if v {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	a, b := 0.0, math.Log((prior0+1)/(prior1+1))
	fval := plattObjective(scores, t, a, b)

	for it := 0; it < maxIter; it++ {
		h11, h22, h21 := sigma, sigma, 0.0
		g1, g2 := 0.0, 0.0
		for i, s := range scores {
			fApB := s*a + b
			var p, q float64
			if fApB >= 0 {
				e := math.Exp(-fApB)
				p, q = e/(1+e), 1/(1+e)
			} else {
				e := math.Exp(fApB)
				p, q = 1/(1+e), e/(1+e)
			}
			d2 := p * q
			h11 += s * s * d2
			h22 += d2
			h21 += s * d2
			d1 := t[i] - p
			g1 += s * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			na, nb := a+step*dA, b+step*dB
			nf := plattObjective(scores, t, na, nb)
			if nf < fval+1e-4*step*gd {
				a, b, fval = na, nb, nf
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return &PlattCalibrator{A: a, B: b}, nil
}

func plattObjective(scores, t []float64, a, b float64) float64 {
	f := 0.0
	for i, s := range scores {
		fApB := s*a + b
		if fApB >= 0 {
			f += t[i]*fApB + math.Log1p(math.Exp(-fApB))
		} else {
			f += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
		}
	}
	return f
}

// Probability returns P(fraud) for a raw score.
func (c *PlattCalibrator) Probability(score float64) float64 {
	fApB := c.A*score + c.B
	if fApB >= 0 {
		e := math.Exp(-fApB)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(fApB))
}
