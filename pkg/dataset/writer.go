package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WriteCSV writes t as comma-separated text: a "#@ schema" comment, a header
// row, then one line per row. The file is written under a temporary name and
// renamed into place.
func WriteCSV(path string, t *Table) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("dataset: create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("dataset: create temp for %s: %w", path, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	bw := bufio.NewWriter(f)
	if _, err = fmt.Fprintf(bw, "%s%s\n", schemaCommentPrefix, t.schema.Reindexed()); err != nil {
		return fmt.Errorf("dataset: write %s: %w", path, err)
	}
	w := csv.NewWriter(bw)
	if err = w.Write(t.schema.Names()); err != nil {
		return fmt.Errorf("dataset: write %s: %w", path, err)
	}
	rec := make([]string, len(t.schema.Columns))
	for i := 0; i < t.n; i++ {
		for pos, c := range t.schema.Columns {
			switch c.Kind {
			case Boolean:
				if t.cols[pos].bools[i] {
					rec[pos] = "1"
				} else {
					rec[pos] = "0"
				}
			case Single:
				rec[pos] = strconv.FormatFloat(float64(t.cols[pos].floats[i]), 'g', -1, 32)
			}
		}
		if err = w.Write(rec); err != nil {
			return fmt.Errorf("dataset: write %s: %w", path, err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("dataset: flush %s: %w", path, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("dataset: flush %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("dataset: close %s: %w", path, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("dataset: rename %s: %w", path, err)
	}
	return nil
}
