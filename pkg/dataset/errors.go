package dataset

import "fmt"

// MissingInputError reports an input file (archive, CSV) that is absent or
// cannot be opened when a stage needs it.
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("dataset: missing input %s: %v", e.Path, e.Err)
}

func (e *MissingInputError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a row that does not fit the declared schema.
// Line is 1-based; Column is empty when the whole row is short.
type SchemaMismatchError struct {
	Path   string
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *SchemaMismatchError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("dataset: %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("dataset: %s:%d: column %s value %q: %v", e.Path, e.Line, e.Column, e.Value, e.Err)
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }
