package main

import (
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"frauddetect/pkg/artifact"
	"frauddetect/pkg/logger"
	"frauddetect/pkg/workflow"
)

func (a *app) predictCmd() *cobra.Command {
	var (
		modelPath string
		input     string
		count     int
		fromStore bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score the first fraudulent rows of a CSV with a saved model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if modelPath == "" {
				modelPath = a.cfg.Paths.Model
			}
			if input == "" {
				input = a.cfg.Paths.Test
			}
			if count <= 0 {
				count = a.cfg.Inference.SampleCount
			}
			log := a.log.WithComponent("predict")

			if fromStore {
				if !a.cfg.Storage.S3.Enabled {
					return errors.New("--from-store needs storage.s3.enabled in the config")
				}
				store, err := artifact.NewS3Store(ctx, a.cfg.Storage.S3)
				if err != nil {
					return err
				}
				key := filepath.Base(modelPath)
				if err := artifact.Fetch(ctx, store, key, modelPath); err != nil {
					return err
				}
				log.WithFields(logger.Fields{"bucket": a.cfg.Storage.S3.Bucket, "key": key}).Info("model fetched")
			}

			fitted, man, err := artifact.Load(modelPath)
			if err != nil {
				return err
			}
			log.WithFields(logger.Fields{"model": modelPath, "run_id": man.RunID, "kind": man.ModelKind}).Info("model loaded")
			_, err = workflow.PredictPositives(ctx, fitted, input, count, cmd.OutOrStdout(), log)
			return err
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "model artifact (default paths.model)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV to score (default paths.test)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of fraud rows to score (default inference.sample_count)")
	cmd.Flags().BoolVar(&fromStore, "from-store", false, "download the model from the configured S3 store first")
	return cmd
}
