package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"frauddetect/pkg/config"
	"frauddetect/pkg/logger"
	"frauddetect/pkg/workflow"
)

type app struct {
	configPath string
	noWait     bool
	cfg        *config.Config
	log        *logger.Log
}

func main() {
	a := &app{log: logger.GetLogger()}
	if err := a.rootCmd().Execute(); err != nil {
		a.log.WithError(err).Error("frauddetect failed")
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frauddetect",
		Short: "Train and demo a credit-card fraud classifier",
		Long: `frauddetect extracts the credit-card transactions dataset, splits it into
train and test files, trains a gradient-boosted trees classifier, reports its
accuracy, saves the model, reloads it and prints predictions for a few
fraudulent test transactions.`,
		Version:           "1.0.0",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runDemo,
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config/config.yml", "path to the YAML config")
	cmd.Flags().BoolVar(&a.noWait, "no-wait", false, "exit without waiting for a key press")
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.AddCommand(a.predictCmd())
	return cmd
}

// setup loads .env, the config file and the logging settings.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return err
	}
	if err := a.log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return err
	}
	a.cfg = cfg
	a.log.WithFields(logger.Fields{"config": a.configPath, "version": cfg.FraudDetect.Version}).Debug("configuration loaded")
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) runDemo(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	res, err := workflow.Run(ctx, a.cfg, a.log, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	a.log.WithFields(logger.Fields{
		"model":       res.ModelPath,
		"run_id":      res.Manifest.RunID,
		"accuracy":    res.Metrics.Accuracy,
		"predictions": len(res.Predictions),
	}).Info("demo finished")

	if a.cfg.WaitForKey && !a.noWait {
		waitForKey(cmd.InOrStdin(), cmd.OutOrStdout(), a.log.WithComponent("cli"))
	}
	return nil
}

// waitForKey blocks until one byte can be read from in. A closed or failing
// input ends the wait.
func waitForKey(in io.Reader, out io.Writer, log *logger.Entry) bool {
	fmt.Fprintln(out, "Press any key to exit...")
	if _, err := bufio.NewReader(in).ReadByte(); err != nil {
		log.WithError(err).Debug("no key press read")
		return false
	}
	return true
}
