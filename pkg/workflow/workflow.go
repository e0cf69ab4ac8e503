package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"frauddetect/pkg/artifact"
	"frauddetect/pkg/config"
	"frauddetect/pkg/dataset"
	"frauddetect/pkg/inference"
	"frauddetect/pkg/logger"
	"frauddetect/pkg/model"
	"frauddetect/pkg/pipeline"
	"frauddetect/pkg/report"
	"frauddetect/pkg/stats"
)

// Result summarizes one end-to-end run.
type Result struct {
	Extracted   bool
	SplitBefore dataset.SplitState
	TrainRows   int
	TestRows    int
	Metrics     model.BinaryMetrics
	ModelPath   string
	Manifest    *artifact.Manifest
	Published   string // store key, empty when not published
	Predictions []pipeline.TransactionFraudPrediction
}

type options struct {
	store artifact.Store
}

type Option func(*options)

// WithStore publishes the saved model to store instead of the configured
// S3 bucket.
func WithStore(s artifact.Store) Option { return func(o *options) { o.store = s } }

// Run executes the demo: extract, split, load, fit, evaluate, save, reload
// and predict. Each stage checks whether its output already exists.
func Run(ctx context.Context, cfg *config.Config, log *logger.Log, out io.Writer, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil && cfg.Storage.S3.Enabled {
		s, err := artifact.NewS3Store(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, err
		}
		o.store = s
	}
	r := &runner{cfg: cfg, log: log.WithComponent("workflow"), out: out, store: o.store}
	return r.run(ctx)
}

type runner struct {
	cfg   *config.Config
	log   *logger.Entry
	out   io.Writer
	store artifact.Store
	res   Result
}

func (r *runner) stage(name string, fn func() (logger.Fields, error)) error {
	start := time.Now()
	fields, err := fn()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	logger.LogDuration(r.log, name, time.Since(start), fields)
	return nil
}

func (r *runner) run(ctx context.Context) (*Result, error) {
	p := r.cfg.Paths
	var (
		train, test *dataset.Table
		fitted      *pipeline.Fitted
	)

	steps := []struct {
		name string
		fn   func() (logger.Fields, error)
	}{
		{"prepare", r.prepare},
		{"load", func() (logger.Fields, error) {
			var err error
			opts := dataset.DefaultLoadOptions()
			if train, err = dataset.Load(p.Train, dataset.SplitSchema(), opts); err != nil {
				return nil, err
			}
			if test, err = dataset.Load(p.Test, dataset.SplitSchema(), opts); err != nil {
				return nil, err
			}
			r.res.TrainRows, r.res.TestRows = train.Len(), test.Len()
			amount := stats.Describe(train.Floats(dataset.AmountColumn))
			return logger.Fields{
				"train_rows":       train.Len(),
				"test_rows":        test.Len(),
				"train_fraud_rate": stats.PositiveRate(train.Bools(dataset.LabelColumn)),
				"test_fraud_rate":  stats.PositiveRate(test.Bools(dataset.LabelColumn)),
				"amount_mean":      amount.Mean,
				"amount_median":    amount.Median,
				"amount_p99":       amount.P99,
			}, nil
		}},
		{"train", func() (logger.Fields, error) {
			tr, err := pipeline.NewTrainer(r.cfg.Trainer)
			if err != nil {
				return nil, err
			}
			if fitted, err = pipeline.New(tr).Fit(train); err != nil {
				return nil, err
			}
			return logger.Fields{"backend": fitted.Classifier.Kind(), "features": len(fitted.Features)}, nil
		}},
		{"evaluate", func() (logger.Fields, error) {
			return r.evaluate(fitted, test)
		}},
		{"report", func() (logger.Fields, error) {
			return r.report(fitted, test)
		}},
		{"save", func() (logger.Fields, error) {
			return r.save(ctx, fitted)
		}},
		{"predict", func() (logger.Fields, error) {
			return r.predict(ctx)
		}},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.stage(s.name, s.fn); err != nil {
			return nil, err
		}
	}
	return &r.res, nil
}

// prepare makes sure both split files exist. The archive is only needed when
// they do not.
func (r *runner) prepare() (logger.Fields, error) {
	p := r.cfg.Paths
	state, err := dataset.SplitStateOf(p.Train, p.Test)
	if err != nil {
		return nil, err
	}
	r.res.SplitBefore = state
	if state == dataset.SplitComplete {
		return logger.Fields{"split": state.String(), "extracted": false}, nil
	}
	if state == dataset.SplitPartial {
		r.log.WithFields(logger.Fields{"train": p.Train, "test": p.Test}).
			Warn("only one split file present, recomputing the split")
	}

	extracted, err := dataset.EnsureExtracted(p.Archive, p.DataDir, p.Dataset)
	if err != nil {
		return nil, err
	}
	r.res.Extracted = extracted
	raw := filepath.Join(p.DataDir, p.Dataset)
	load := func() (*dataset.Table, error) {
		return dataset.Load(raw, dataset.RawSchema(), dataset.DefaultLoadOptions())
	}
	if _, err := dataset.EnsureSplit(p.Train, p.Test, load, r.cfg.Split.TestFraction, r.cfg.Split.Seed); err != nil {
		return nil, err
	}
	return logger.Fields{"split": state.String(), "extracted": extracted, "dataset": raw}, nil
}

func (r *runner) evaluate(fitted *pipeline.Fitted, test *dataset.Table) (logger.Fields, error) {
	m, err := pipeline.Evaluate(fitted, test)
	if err != nil {
		return nil, err
	}
	r.res.Metrics = m
	fmt.Fprintf(r.out, "Accuracy: %.4f\n", m.Accuracy)
	return logger.Fields{
		"accuracy":       m.Accuracy,
		"precision":      m.PositivePrecision,
		"recall":         m.PositiveRecall,
		"f1":             m.F1Score,
		"auc":            m.AUC,
		"log_loss":       m.LogLoss,
		"true_positive":  m.Confusion.TruePositive,
		"false_positive": m.Confusion.FalsePositive,
		"true_negative":  m.Confusion.TrueNegative,
		"false_negative": m.Confusion.FalseNegative,
	}, nil
}

func (r *runner) report(fitted *pipeline.Fitted, test *dataset.Table) (logger.Fields, error) {
	rc := r.cfg.Report
	if rc.ScoredParquet == "" && rc.ROCPlot == "" {
		return logger.Fields{"skipped": true}, nil
	}
	preds, err := fitted.Transform(test)
	if err != nil {
		return nil, err
	}
	fields := logger.Fields{}
	if rc.ScoredParquet != "" {
		if err := report.WriteScoredParquet(rc.ScoredParquet, preds, test.Floats(dataset.AmountColumn)); err != nil {
			return nil, err
		}
		fields["parquet"] = rc.ScoredParquet
	}
	if rc.ROCPlot != "" {
		labels := make([]bool, len(preds))
		scores := make([]float64, len(preds))
		for i, p := range preds {
			labels[i], scores[i] = p.Label, p.Score
		}
		if err := report.PlotROC(rc.ROCPlot, labels, scores); err != nil {
			// a single-class test set has no ROC curve
			r.log.WithError(err).Warn("roc plot skipped")
		} else {
			fields["roc_plot"] = rc.ROCPlot
		}
	}
	return fields, nil
}

func (r *runner) save(ctx context.Context, fitted *pipeline.Fitted) (logger.Fields, error) {
	path := r.cfg.Paths.Model
	man, err := artifact.Save(path, fitted, artifact.WithTrainer(r.cfg.Trainer), artifact.WithMetrics(r.res.Metrics))
	if err != nil {
		return nil, err
	}
	r.res.ModelPath, r.res.Manifest = path, man
	fields := logger.Fields{"path": path, "run_id": man.RunID}
	if r.store != nil {
		key := filepath.Base(path)
		if err := artifact.Publish(ctx, r.store, path, key); err != nil {
			return nil, err
		}
		r.res.Published = key
		fields["published"] = key
	}
	return fields, nil
}

// predict reloads the saved model and scores the first fraud rows of the test
// file, streamed from disk.
func (r *runner) predict(ctx context.Context) (logger.Fields, error) {
	fitted, man, err := artifact.Load(r.res.ModelPath)
	if err != nil {
		return nil, err
	}
	preds, err := PredictPositives(ctx, fitted, r.cfg.Paths.Test, r.cfg.Inference.SampleCount, r.out, r.log)
	if err != nil {
		return nil, err
	}
	r.res.Predictions = preds
	return logger.Fields{"run_id": man.RunID, "predictions": len(preds)}, nil
}

// PredictPositives streams the CSV at path and prints predictions for its
// first count fraud rows. Files without a schema comment are read with the
// split layout. Rows after the last needed one do not affect the result.
func PredictPositives(ctx context.Context, fitted *pipeline.Fitted, path string, count int, out io.Writer, log *logger.Entry) ([]pipeline.TransactionFraudPrediction, error) {
	engine, err := fitted.NewPredictionEngine()
	if err != nil {
		return nil, err
	}
	schema, err := dataset.ReadSchema(path)
	var mismatch *dataset.SchemaMismatchError
	if errors.As(err, &mismatch) {
		schema, err = dataset.SplitSchema(), nil
	}
	if err != nil {
		return nil, err
	}
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rows, errc := dataset.Stream(streamCtx, path, schema, dataset.DefaultLoadOptions())

	if count <= 0 {
		count = inference.DefaultCount
	}
	run := &inference.Runner{Engine: engine, Out: out, Count: count, Log: log}
	preds, err := run.Run(streamCtx, rows)
	cancel()
	if err != nil {
		return nil, err
	}
	// rows past the last requested positive are never needed
	if err := <-errc; err != nil && len(preds) < count {
		return nil, err
	}
	return preds, nil
}
