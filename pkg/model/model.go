package model

import "fmt"

// BinaryClassifier scores a feature vector. A positive score predicts the
// positive class.
type BinaryClassifier interface {
	Score(x []float64) float64
	// Kind names the implementation for serialization.
	Kind() string
	// Width is the feature vector length Score expects.
	Width() int
}

// Trainer fits a BinaryClassifier on rows X and labels y.
type Trainer interface {
	Fit(X [][]float64, y []bool) (BinaryClassifier, error)
}

// Transformer is a preprocessing step fitted on train and applied to both.
type Transformer interface {
	Fit(X [][]float64) error
	Transform(X [][]float64) [][]float64
	TransformRow(x []float64) []float64
}

// Unmarshal decodes a classifier produced by MarshalBinary of the given kind.
func Unmarshal(kind string, data []byte) (BinaryClassifier, error) {
	switch kind {
	case KindGBDT:
		m := &GradientBoostedTrees{}
		if err := m.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return m, nil
	case KindForest:
		m := &RandomForest{}
		if err := m.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return m, nil
	case KindLogistic:
		m := &LogisticRegression{}
		if err := m.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("model: unknown classifier kind %q", kind)
}

func checkXY(name string, X [][]float64, y []bool) (n, p int, err error) {
	if len(X) == 0 {
		return 0, 0, fmt.Errorf("%s: empty X", name)
	}
	n = len(X)
	if len(y) != n {
		return 0, 0, fmt.Errorf("%s: X and y length mismatch", name)
	}
	p = len(X[0])
	if p == 0 {
		return 0, 0, fmt.Errorf("%s: rows have no features", name)
	}
	for i := range X {
		if len(X[i]) != p {
			return 0, 0, fmt.Errorf("%s: inconsistent number of features in X rows", name)
		}
	}
	return n, p, nil
}
