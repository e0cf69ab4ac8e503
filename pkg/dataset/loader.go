package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadOptions controls delimited-text parsing.
type LoadOptions struct {
	HasHeader bool
	Separator rune
}

// DefaultLoadOptions matches the files WriteCSV produces and the raw dataset.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{HasHeader: true, Separator: ','}
}

// schemaCommentPrefix starts the comment line WriteCSV emits before the header.
const schemaCommentPrefix = "#@ schema "

var errFieldCount = errors.New("row field count does not match the schema")

// rowParser decodes records according to a schema into reusable scratch slots.
type rowParser struct {
	path   string
	schema Schema
	need   int
	bools  []bool
	floats []float32
}

func newRowParser(path string, schema Schema) *rowParser {
	return &rowParser{
		path:   path,
		schema: schema,
		need:   schema.MaxIndex() + 1,
		bools:  make([]bool, len(schema.Columns)),
		floats: make([]float32, len(schema.Columns)),
	}
}

func (p *rowParser) parse(rec []string, line int) error {
	if len(rec) != p.need {
		return &SchemaMismatchError{Path: p.path, Line: line, Err: fmt.Errorf("%w: got %d, want %d", errFieldCount, len(rec), p.need)}
	}
	for pos, c := range p.schema.Columns {
		raw := strings.TrimSpace(rec[c.Index])
		switch c.Kind {
		case Boolean:
			v, err := parseBool(raw)
			if err != nil {
				return &SchemaMismatchError{Path: p.path, Line: line, Column: c.Name, Value: raw, Err: err}
			}
			p.bools[pos] = v
		case Single:
			v, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				return &SchemaMismatchError{Path: p.path, Line: line, Column: c.Name, Value: raw, Err: err}
			}
			p.floats[pos] = float32(v)
		}
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes":
		return true, nil
	case "0", "false", "f", "no":
		return false, nil
	}
	// Some exports write the label as 1.0/0.0.
	if f, err := strconv.ParseFloat(s, 64); err == nil && (f == 0 || f == 1) {
		return f == 1, nil
	}
	return false, fmt.Errorf("not a boolean")
}

func (p *rowParser) appendTo(t *Table) {
	for pos, c := range p.schema.Columns {
		switch c.Kind {
		case Boolean:
			t.cols[pos].bools = append(t.cols[pos].bools, p.bools[pos])
		case Single:
			t.cols[pos].floats = append(t.cols[pos].floats, p.floats[pos])
		}
	}
	t.n++
}

func (p *rowParser) observation(slots []int) TransactionObservation {
	var o TransactionObservation
	for pos, slot := range slots {
		switch slot {
		case slotOther:
		case slotLabel:
			o.Label = p.bools[pos]
		case slotAmount:
			o.Amount = p.floats[pos]
		case slotStratification:
			o.Stratification = p.floats[pos]
		default:
			o.V[slot] = p.floats[pos]
		}
	}
	return o
}

// recordSource wraps csv.Reader with header skipping and line tracking.
type recordSource struct {
	r         *csv.Reader
	hasHeader bool
	started   bool
}

func newRecordSource(r io.Reader, opts LoadOptions) *recordSource {
	cr := csv.NewReader(bufio.NewReader(r))
	if opts.Separator != 0 {
		cr.Comma = opts.Separator
	}
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return &recordSource{r: cr, hasHeader: opts.HasHeader}
}

// next returns the next data record and its 1-based line number.
func (s *recordSource) next() ([]string, int, error) {
	if !s.started {
		s.started = true
		if s.hasHeader {
			if _, err := s.r.Read(); err != nil {
				return nil, 0, err
			}
		}
	}
	rec, err := s.r.Read()
	if err != nil {
		return nil, 0, err
	}
	line, _ := s.r.FieldPos(0)
	return rec, line, nil
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MissingInputError{Path: path, Err: err}
	}
	return f, nil
}

// Load parses a delimited file into a Table bound to schema.
func Load(path string, schema Schema, opts LoadOptions) (*Table, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t := NewTable(schema)
	p := newRowParser(path, schema)
	src := newRecordSource(f, opts)
	for {
		rec, line, err := src.next()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, readError(path, err)
		}
		if err := p.parse(rec, line); err != nil {
			return nil, err
		}
		p.appendTo(t)
	}
}

func readError(path string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &SchemaMismatchError{Path: path, Line: pe.Line, Err: pe.Err}
	}
	return fmt.Errorf("dataset: read %s: %w", path, err)
}

// ReadSchema returns the schema recorded in a file written by WriteCSV.
func ReadSchema(path string) (Schema, error) {
	f, err := openInput(path)
	if err != nil {
		return Schema{}, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return Schema{}, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	if !strings.HasPrefix(line, schemaCommentPrefix) {
		return Schema{}, &SchemaMismatchError{Path: path, Line: 1, Err: errors.New("no schema comment")}
	}
	return ParseSchema(strings.TrimPrefix(strings.TrimSpace(line), strings.TrimSpace(schemaCommentPrefix)))
}
