package pipeline

import (
	"fmt"

	"frauddetect/pkg/dataset"
)

// FeatureColumns lists the model inputs of a schema: every column except the
// label and the split key, in schema order.
func FeatureColumns(schema dataset.Schema) []string {
	var out []string
	for _, c := range schema.Columns {
		if c.Name == dataset.LabelColumn || c.Name == dataset.StratificationColumn {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

// ConcatFeatures assembles the Features vector of every row: X[i][j] is
// column columns[j] of row i.
func ConcatFeatures(t *dataset.Table, columns []string) ([][]float64, error) {
	src := make([][]float32, len(columns))
	for j, name := range columns {
		src[j] = t.Floats(name)
		if src[j] == nil {
			return nil, fmt.Errorf("pipeline: table has no Single column %q", name)
		}
	}
	n := t.Len()
	flat := make([]float64, n*len(columns))
	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := flat[i*len(columns) : (i+1)*len(columns) : (i+1)*len(columns)]
		for j := range columns {
			row[j] = float64(src[j][i])
		}
		X[i] = row
	}
	return X, nil
}

// rowProjector reads a feature vector straight from an observation.
type rowProjector []func(*dataset.TransactionObservation) float32

func newRowProjector(columns []string) (rowProjector, error) {
	p := make(rowProjector, len(columns))
	for j, name := range columns {
		get, ok := dataset.FloatAccessor(name)
		if !ok {
			return nil, fmt.Errorf("pipeline: feature %q is not a transaction field", name)
		}
		p[j] = get
	}
	return p, nil
}

func (p rowProjector) project(o *dataset.TransactionObservation) []float64 {
	x := make([]float64, len(p))
	for j, get := range p {
		x[j] = float64(get(o))
	}
	return x
}

func labels(t *dataset.Table) ([]bool, error) {
	if c, _, ok := t.Schema().Lookup(dataset.LabelColumn); !ok || c.Kind != dataset.Boolean {
		return nil, fmt.Errorf("pipeline: table has no Boolean %q column", dataset.LabelColumn)
	}
	return t.Bools(dataset.LabelColumn), nil
}
