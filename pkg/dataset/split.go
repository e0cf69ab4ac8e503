package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
)

// Split divides t into train and test. Every row gets a seeded uniform
// StratificationColumn value; within each label class the rows with the
// smallest values go to test, round(fraction*classSize) of them. Both halves
// keep the input row order.
func Split(t *Table, fraction float64, seed int64) (train, test *Table, err error) {
	if !(fraction > 0 && fraction < 1) {
		return nil, nil, fmt.Errorf("dataset: split fraction %v out of (0,1)", fraction)
	}
	if c, _, ok := t.schema.Lookup(LabelColumn); !ok || c.Kind != Boolean {
		return nil, nil, fmt.Errorf("dataset: split needs a boolean %s column", LabelColumn)
	}
	labels := t.Bools(LabelColumn)

	rnd := rand.New(rand.NewSource(seed))
	keys := make([]float32, t.n)
	for i := range keys {
		keys[i] = rnd.Float32()
	}
	keyed, err := t.WithFloatColumn(StratificationColumn, keys)
	if err != nil {
		return nil, nil, err
	}

	var byClass [2][]int
	for i, l := range labels {
		c := 0
		if l {
			c = 1
		}
		byClass[c] = append(byClass[c], i)
	}

	inTest := make([]bool, t.n)
	for _, idx := range byClass {
		sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
		nTest := int(math.Round(fraction * float64(len(idx))))
		for _, i := range idx[:nTest] {
			inTest[i] = true
		}
	}

	trainIdx := make([]int, 0, t.n)
	testIdx := make([]int, 0, t.n/4)
	for i, isTest := range inTest {
		if isTest {
			testIdx = append(testIdx, i)
		} else {
			trainIdx = append(trainIdx, i)
		}
	}
	return keyed.Subset(trainIdx), keyed.Subset(testIdx), nil
}

// SplitState describes which split files are on disk.
type SplitState int

const (
	SplitAbsent SplitState = iota
	SplitPartial
	SplitComplete
)

func (s SplitState) String() string {
	switch s {
	case SplitAbsent:
		return "absent"
	case SplitPartial:
		return "partial"
	case SplitComplete:
		return "complete"
	}
	return fmt.Sprintf("SplitState(%d)", int(s))
}

func SplitStateOf(trainPath, testPath string) (SplitState, error) {
	trainOK, err := Exists(trainPath)
	if err != nil {
		return SplitAbsent, err
	}
	testOK, err := Exists(testPath)
	if err != nil {
		return SplitAbsent, err
	}
	switch {
	case trainOK && testOK:
		return SplitComplete, nil
	case trainOK || testOK:
		return SplitPartial, nil
	}
	return SplitAbsent, nil
}

// EnsureSplit writes the train and test files unless both already exist.
// A lone surviving file is treated as corrupt: it is removed and the split is
// redone. The returned state is the one found before any work.
func EnsureSplit(trainPath, testPath string, load func() (*Table, error), fraction float64, seed int64) (SplitState, error) {
	state, err := SplitStateOf(trainPath, testPath)
	if err != nil {
		return state, fmt.Errorf("dataset: inspect split files: %w", err)
	}
	if state == SplitComplete {
		return state, nil
	}
	if state == SplitPartial {
		for _, p := range []string{trainPath, testPath} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return state, fmt.Errorf("dataset: remove stale %s: %w", p, err)
			}
		}
	}

	full, err := load()
	if err != nil {
		return state, err
	}
	train, test, err := Split(full, fraction, seed)
	if err != nil {
		return state, err
	}
	if err := WriteCSV(trainPath, train); err != nil {
		return state, err
	}
	if err := WriteCSV(testPath, test); err != nil {
		return state, err
	}
	return state, nil
}
