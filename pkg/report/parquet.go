package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"frauddetect/pkg/pipeline"
)

// ScoredRecord is one scored test row as stored in parquet.
type ScoredRecord struct {
	Row            int64   `parquet:"name=row, type=INT64"`
	Label          bool    `parquet:"name=label, type=BOOLEAN"`
	PredictedLabel bool    `parquet:"name=predicted_label, type=BOOLEAN"`
	Score          float64 `parquet:"name=score, type=DOUBLE"`
	Probability    float64 `parquet:"name=probability, type=DOUBLE"`
	Amount         float32 `parquet:"name=amount, type=FLOAT"`
}

// WriteScoredParquet writes one record per prediction, snappy compressed.
// amounts may be nil.
func WriteScoredParquet(path string, preds []pipeline.TransactionFraudPrediction, amounts []float32) (err error) {
	if amounts != nil && len(amounts) != len(preds) {
		return fmt.Errorf("report: %d amounts for %d predictions", len(amounts), len(preds))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: create dir for %s: %w", path, err)
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer func() {
		if cerr := fw.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("report: close %s: %w", path, cerr)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(ScoredRecord), 1)
	if err != nil {
		return fmt.Errorf("report: new parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, p := range preds {
		rec := ScoredRecord{
			Row:            int64(i),
			Label:          p.Label,
			PredictedLabel: p.PredictedLabel,
			Score:          p.Score,
			Probability:    p.Probability,
		}
		if amounts != nil {
			rec.Amount = amounts[i]
		}
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return fmt.Errorf("report: write scored row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("report: finalize %s: %w", path, err)
	}
	return nil
}
