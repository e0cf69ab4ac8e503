package dataset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// Exists reports whether path exists. Errors other than not-exist are returned.
func Exists(p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// EnsureExtracted makes sure dir/name exists, extracting the entry named name
// from archive when it does not. It reports whether extraction happened. The
// presence check does not look at the file content.
func EnsureExtracted(archive, dir, name string) (bool, error) {
	target := filepath.Join(dir, name)
	ok, err := Exists(target)
	if err != nil {
		return false, fmt.Errorf("dataset: stat %s: %w", target, err)
	}
	if ok {
		return false, nil
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		return false, &MissingInputError{Path: archive, Err: err}
	}
	defer zr.Close()

	var entry *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || path.Base(f.Name) != name {
			continue
		}
		entry = f
		break
	}
	if entry == nil {
		return false, &MissingInputError{Path: archive, Err: fmt.Errorf("no entry named %s", name)}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("dataset: create %s: %w", dir, err)
	}
	if err := extractEntry(entry, dir, target); err != nil {
		return false, err
	}
	return true, nil
}

func extractEntry(entry *zip.File, dir, target string) (err error) {
	rc, err := entry.Open()
	if err != nil {
		return &MissingInputError{Path: entry.Name, Err: err}
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("dataset: create temp for %s: %w", target, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, rc); err != nil {
		// A checksum mismatch or truncated stream surfaces here.
		return &MissingInputError{Path: entry.Name, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("dataset: close %s: %w", target, err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("dataset: rename %s: %w", target, err)
	}
	return nil
}
