package artifact

import (
	"bytes"
	"encoding"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"frauddetect/pkg/config"
	"frauddetect/pkg/model"
	"frauddetect/pkg/pipeline"
	"frauddetect/pkg/stats"
)

const (
	FormatVersion = 1

	manifestEntry   = "manifest.yaml"
	normalizerEntry = "normalizer.gob"
	modelEntry      = "model.gob"
	calibratorEntry = "calibrator.gob"
)

// PersistenceError reports a failed save or load of a model artifact.
type PersistenceError struct {
	Op   string // "save" or "load"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("artifact: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Manifest describes an artifact. It is stored as YAML next to the gob
// entries.
type Manifest struct {
	FormatVersion int                   `yaml:"format_version"`
	RunID         string                `yaml:"run_id"`
	CreatedAt     time.Time             `yaml:"created_at"`
	ModelKind     string                `yaml:"model_kind"`
	Features      []string              `yaml:"features"`
	Trainer       *config.TrainerConfig `yaml:"trainer,omitempty"`
	Metrics       *model.BinaryMetrics  `yaml:"metrics,omitempty"`
}

type Option func(*Manifest)

// WithTrainer records the hyperparameters the model was trained with.
func WithTrainer(cfg config.TrainerConfig) Option {
	return func(m *Manifest) { m.Trainer = &cfg }
}

// WithMetrics records the held-out evaluation.
func WithMetrics(bm model.BinaryMetrics) Option {
	return func(m *Manifest) { m.Metrics = &bm }
}

// Save writes f to path as a zip of zstd-compressed entries. The archive is
// written to a temporary file and renamed into place.
func Save(path string, f *pipeline.Fitted, opts ...Option) (man *Manifest, err error) {
	fail := func(err error) (*Manifest, error) {
		return nil, &PersistenceError{Op: "save", Path: path, Err: err}
	}
	if f == nil || f.Classifier == nil || f.Normalizer == nil || f.Calibrator == nil {
		return fail(fmt.Errorf("incomplete fitted pipeline"))
	}
	bm, ok := f.Classifier.(encoding.BinaryMarshaler)
	if !ok {
		return fail(fmt.Errorf("classifier %s cannot be serialized", f.Classifier.Kind()))
	}
	modelBytes, err := bm.MarshalBinary()
	if err != nil {
		return fail(err)
	}

	man = &Manifest{
		FormatVersion: FormatVersion,
		RunID:         uuid.NewString(),
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
		ModelKind:     f.Classifier.Kind(),
		Features:      f.Features,
	}
	for _, o := range opts {
		o(man)
	}
	manBytes, err := yaml.Marshal(man)
	if err != nil {
		return fail(err)
	}
	normBytes, err := gobBytes(f.Normalizer)
	if err != nil {
		return fail(err)
	}
	calBytes, err := gobBytes(f.Calibrator)
	if err != nil {
		return fail(err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fail(err)
	}
	tmp := tmpFile.Name()
	defer func() {
		if err != nil {
			tmpFile.Close()
			os.Remove(tmp)
		}
	}()

	zw := zip.NewWriter(tmpFile)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	entries := []struct {
		name string
		data []byte
	}{
		{manifestEntry, manBytes},
		{normalizerEntry, normBytes},
		{modelEntry, modelBytes},
		{calibratorEntry, calBytes},
	}
	for _, e := range entries {
		w, cerr := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zstd.ZipMethodWinZip, Modified: man.CreatedAt})
		if cerr != nil {
			return fail(cerr)
		}
		if _, werr := w.Write(e.data); werr != nil {
			return fail(werr)
		}
	}
	if err = zw.Close(); err != nil {
		return fail(err)
	}
	if err = tmpFile.Close(); err != nil {
		return fail(err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fail(err)
	}
	return man, nil
}

// Load reads an artifact written by Save. A missing file yields a
// PersistenceError wrapping fs.ErrNotExist.
func Load(path string) (*pipeline.Fitted, *Manifest, error) {
	fail := func(err error) (*pipeline.Fitted, *Manifest, error) {
		return nil, nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fail(err)
	}
	defer zr.Close()
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}
	read := func(name string) ([]byte, error) {
		f, ok := entries[name]
		if !ok {
			return nil, fmt.Errorf("missing entry %s", name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}

	manBytes, err := read(manifestEntry)
	if err != nil {
		return fail(err)
	}
	var man Manifest
	if err := yaml.Unmarshal(manBytes, &man); err != nil {
		return fail(fmt.Errorf("parse manifest: %w", err))
	}
	if man.FormatVersion != FormatVersion {
		return fail(fmt.Errorf("unsupported format version %d", man.FormatVersion))
	}

	norm := stats.NewMeanVarianceNormalizer()
	if err := readGob(read, normalizerEntry, norm); err != nil {
		return fail(err)
	}
	var cal model.PlattCalibrator
	if err := readGob(read, calibratorEntry, &cal); err != nil {
		return fail(err)
	}
	modelBytes, err := read(modelEntry)
	if err != nil {
		return fail(err)
	}
	clf, err := model.Unmarshal(man.ModelKind, modelBytes)
	if err != nil {
		return fail(err)
	}
	if len(norm.Mean) != len(man.Features) || len(norm.Scale) != len(man.Features) {
		return fail(fmt.Errorf("normalizer has %d columns, manifest lists %d features", len(norm.Mean), len(man.Features)))
	}
	if w := clf.Width(); w != len(man.Features) {
		return fail(fmt.Errorf("%s model expects %d features, manifest lists %d", clf.Kind(), w, len(man.Features)))
	}
	fitted := &pipeline.Fitted{Features: man.Features, Normalizer: norm, Classifier: clf, Calibrator: &cal}
	return fitted, &man, nil
}

func gobBytes(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readGob(read func(string) ([]byte, error), name string, v any) error {
	data, err := read(name)
	if err != nil {
		return err
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
