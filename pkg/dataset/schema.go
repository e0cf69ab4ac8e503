package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnKind is the semantic type of a column.
type ColumnKind int

const (
	Boolean ColumnKind = iota
	Single
)

func (k ColumnKind) String() string {
	switch k {
	case Boolean:
		return "Boolean"
	case Single:
		return "Single"
	}
	return fmt.Sprintf("ColumnKind(%d)", int(k))
}

func ParseColumnKind(s string) (ColumnKind, error) {
	switch s {
	case "Boolean":
		return Boolean, nil
	case "Single":
		return Single, nil
	}
	return 0, fmt.Errorf("unknown column kind %q", s)
}

const (
	LabelColumn          = "Label"
	AmountColumn         = "Amount"
	StratificationColumn = "StratificationColumn"

	// AnonymizedFeatures is the number of PCA columns V1..V28.
	AnonymizedFeatures = 28
)

// VColumn returns the name of the i-th anonymized column, 1-based.
func VColumn(i int) string { return "V" + strconv.Itoa(i) }

// Column binds a name and kind to a field index in the source file.
type Column struct {
	Name  string
	Kind  ColumnKind
	Index int
}

// Schema is an ordered column list. Order is the in-memory and output order;
// Index is where the value is read from.
type Schema struct {
	Columns []Column
}

// RawSchema describes the downloaded creditcard.csv: Time at 0 (not loaded),
// V1..V28 at 1..28, Amount at 29 and the label (Class) at 30.
func RawSchema() Schema {
	return transactionSchema(30)
}

// SplitSchema describes train/test files written by WriteCSV after a split.
func SplitSchema() Schema {
	s := transactionSchema(0)
	return s.With(Column{Name: StratificationColumn, Kind: Single, Index: 30})
}

func transactionSchema(labelIndex int) Schema {
	cols := make([]Column, 0, AnonymizedFeatures+2)
	cols = append(cols, Column{Name: LabelColumn, Kind: Boolean, Index: labelIndex})
	for i := 1; i <= AnonymizedFeatures; i++ {
		cols = append(cols, Column{Name: VColumn(i), Kind: Single, Index: i})
	}
	cols = append(cols, Column{Name: AmountColumn, Kind: Single, Index: 29})
	return Schema{Columns: cols}
}

// Lookup returns the column and its position in the schema.
func (s Schema) Lookup(name string) (Column, int, bool) {
	for i, c := range s.Columns {
		if c.Name == name {
			return c, i, true
		}
	}
	return Column{}, -1, false
}

func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// MaxIndex is the highest source index, so rows need MaxIndex+1 fields.
func (s Schema) MaxIndex() int {
	max := -1
	for _, c := range s.Columns {
		if c.Index > max {
			max = c.Index
		}
	}
	return max
}

// With returns a copy with col appended.
func (s Schema) With(col Column) Schema {
	cols := make([]Column, len(s.Columns), len(s.Columns)+1)
	copy(cols, s.Columns)
	return Schema{Columns: append(cols, col)}
}

// Reindexed returns the schema of the file WriteCSV produces: indices follow
// the column order.
func (s Schema) Reindexed() Schema {
	cols := make([]Column, len(s.Columns))
	for i, c := range s.Columns {
		c.Index = i
		cols[i] = c
	}
	return Schema{Columns: cols}
}

// String renders name:kind:index triples, the format of the #@ schema line.
func (s Schema) String() string {
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		parts[i] = fmt.Sprintf("%s:%s:%d", c.Name, c.Kind, c.Index)
	}
	return strings.Join(parts, ",")
}

func ParseSchema(text string) (Schema, error) {
	var s Schema
	for _, part := range strings.Split(strings.TrimSpace(text), ",") {
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return Schema{}, fmt.Errorf("schema: malformed column %q", part)
		}
		kind, err := ParseColumnKind(fields[1])
		if err != nil {
			return Schema{}, fmt.Errorf("schema: %w", err)
		}
		idx, err := strconv.Atoi(fields[2])
		if err != nil || idx < 0 {
			return Schema{}, fmt.Errorf("schema: bad index in %q", part)
		}
		s.Columns = append(s.Columns, Column{Name: fields[0], Kind: kind, Index: idx})
	}
	return s, nil
}
