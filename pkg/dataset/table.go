package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// TransactionObservation is one card transaction.
type TransactionObservation struct {
	Label          bool
	V              [AnonymizedFeatures]float32
	Amount         float32
	Stratification float32
}

// FloatAccessor returns a getter for the named Single field, or false when
// the name is not a float field of TransactionObservation.
func FloatAccessor(name string) (func(*TransactionObservation) float32, bool) {
	slot := slotsFor(Schema{Columns: []Column{{Name: name, Kind: Single}}})[0]
	switch {
	case slot >= 0:
		return func(o *TransactionObservation) float32 { return o.V[slot] }, true
	case slot == slotAmount:
		return func(o *TransactionObservation) float32 { return o.Amount }, true
	case slot == slotStratification:
		return func(o *TransactionObservation) float32 { return o.Stratification }, true
	}
	return nil, false
}

// column holds one typed column; only the slice matching the kind is used.
type column struct {
	bools  []bool
	floats []float32
}

// Table is a column-oriented typed table bound to a schema.
type Table struct {
	schema Schema
	cols   []column
	slots  []int
	n      int
}

const (
	slotOther = -1 - iota
	slotLabel
	slotAmount
	slotStratification
)

// slotsFor maps each schema position to its TransactionObservation field:
// 0..27 for V1..V28, or one of the slot constants.
func slotsFor(s Schema) []int {
	out := make([]int, len(s.Columns))
	for pos, c := range s.Columns {
		out[pos] = slotOther
		switch {
		case c.Name == LabelColumn && c.Kind == Boolean:
			out[pos] = slotLabel
		case c.Kind != Single:
		case c.Name == AmountColumn:
			out[pos] = slotAmount
		case c.Name == StratificationColumn:
			out[pos] = slotStratification
		case strings.HasPrefix(c.Name, "V"):
			if k, err := strconv.Atoi(c.Name[1:]); err == nil && k >= 1 && k <= AnonymizedFeatures {
				out[pos] = k - 1
			}
		}
	}
	return out
}

func NewTable(schema Schema) *Table {
	return &Table{schema: schema, cols: make([]column, len(schema.Columns)), slots: slotsFor(schema)}
}

// TableFromObservations builds a Label, V1..V28, Amount table.
func TableFromObservations(rows []TransactionObservation) *Table {
	t := NewTable(transactionSchema(0))
	for _, r := range rows {
		t.appendObservation(r)
	}
	return t
}

func (t *Table) Schema() Schema { return t.schema }

func (t *Table) Len() int { return t.n }

// Bools returns the named boolean column, or nil.
func (t *Table) Bools(name string) []bool {
	c, pos, ok := t.schema.Lookup(name)
	if !ok || c.Kind != Boolean {
		return nil
	}
	return t.cols[pos].bools
}

// Floats returns the named Single column, or nil.
func (t *Table) Floats(name string) []float32 {
	c, pos, ok := t.schema.Lookup(name)
	if !ok || c.Kind != Single {
		return nil
	}
	return t.cols[pos].floats
}

// Observation projects row i onto TransactionObservation; columns the schema
// lacks stay zero.
func (t *Table) Observation(i int) TransactionObservation {
	var o TransactionObservation
	for pos, slot := range t.slots {
		switch slot {
		case slotOther:
		case slotLabel:
			o.Label = t.cols[pos].bools[i]
		case slotAmount:
			o.Amount = t.cols[pos].floats[i]
		case slotStratification:
			o.Stratification = t.cols[pos].floats[i]
		default:
			o.V[slot] = t.cols[pos].floats[i]
		}
	}
	return o
}

func (t *Table) Observations() []TransactionObservation {
	out := make([]TransactionObservation, t.n)
	for i := range out {
		out[i] = t.Observation(i)
	}
	return out
}

// Subset copies the given rows, in the given order, into a new table.
func (t *Table) Subset(rows []int) *Table {
	out := NewTable(t.schema)
	for pos, c := range t.schema.Columns {
		switch c.Kind {
		case Boolean:
			dst := make([]bool, len(rows))
			for j, r := range rows {
				dst[j] = t.cols[pos].bools[r]
			}
			out.cols[pos].bools = dst
		case Single:
			dst := make([]float32, len(rows))
			for j, r := range rows {
				dst[j] = t.cols[pos].floats[r]
			}
			out.cols[pos].floats = dst
		}
	}
	out.n = len(rows)
	return out
}

// WithFloatColumn returns a table sharing t's columns plus a new Single
// column placed at the next source index.
func (t *Table) WithFloatColumn(name string, values []float32) (*Table, error) {
	if len(values) != t.n {
		return nil, fmt.Errorf("dataset: column %s has %d values, table has %d rows", name, len(values), t.n)
	}
	if _, _, ok := t.schema.Lookup(name); ok {
		return nil, fmt.Errorf("dataset: column %s already exists", name)
	}
	out := NewTable(t.schema.With(Column{Name: name, Kind: Single, Index: t.schema.MaxIndex() + 1}))
	copy(out.cols, t.cols)
	out.cols[len(out.cols)-1].floats = values
	out.n = t.n
	return out, nil
}

func (t *Table) appendObservation(o TransactionObservation) {
	for pos, slot := range t.slots {
		switch slot {
		case slotOther:
		case slotLabel:
			t.cols[pos].bools = append(t.cols[pos].bools, o.Label)
		case slotAmount:
			t.cols[pos].floats = append(t.cols[pos].floats, o.Amount)
		case slotStratification:
			t.cols[pos].floats = append(t.cols[pos].floats, o.Stratification)
		default:
			t.cols[pos].floats = append(t.cols[pos].floats, o.V[slot])
		}
	}
	t.n++
}
