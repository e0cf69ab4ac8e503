package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	FraudDetect FraudDetectConfig `yaml:"frauddetect"`
	Paths       PathsConfig       `yaml:"paths"`
	Split       SplitConfig       `yaml:"split"`
	Trainer     TrainerConfig     `yaml:"trainer"`
	Inference   InferenceConfig   `yaml:"inference"`
	Report      ReportConfig      `yaml:"report"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	WaitForKey  bool              `yaml:"wait_for_key"`
}

type FraudDetectConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type PathsConfig struct {
	Archive string `yaml:"archive"`
	DataDir string `yaml:"data_dir"`
	Dataset string `yaml:"dataset"`
	Train   string `yaml:"train"`
	Test    string `yaml:"test"`
	Model   string `yaml:"model"`
}

type SplitConfig struct {
	TestFraction float64 `yaml:"test_fraction"`
	Seed         int64   `yaml:"seed"`
}

type TrainerConfig struct {
	Backend         string  `yaml:"backend"`
	NumTrees        int     `yaml:"num_trees"`
	NumLeaves       int     `yaml:"num_leaves"`
	MinDataPerLeaf  int     `yaml:"min_data_per_leaf"`
	LearningRate    float64 `yaml:"learning_rate"`
	MaxBins         int     `yaml:"max_bins"`
	FeatureFraction float64 `yaml:"feature_fraction"`
	Seed            int64   `yaml:"seed"`

	// logistic backend only
	Epochs    int     `yaml:"epochs"`
	BatchSize int     `yaml:"batch_size"`
	L2        float64 `yaml:"l2"`
}

type InferenceConfig struct {
	SampleCount int `yaml:"sample_count"`
}

type ReportConfig struct {
	ScoredParquet string `yaml:"scored_parquet"`
	ROCPlot       string `yaml:"roc_plot"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

const (
	BackendGBDT     = "gbdt"
	BackendForest   = "forest"
	BackendLogistic = "logistic"
)

// Default matches config/config.yml with reports turned off, so the binary
// runs without a config file.
func Default() *Config {
	return &Config{
		FraudDetect: FraudDetectConfig{Name: "frauddetect", Version: "1.0.0"},
		Paths: PathsConfig{
			Archive: "data/creditcard.zip",
			DataDir: "data",
			Dataset: "creditcard.csv",
			Train:   "data/trainData.csv",
			Test:    "data/testData.csv",
			Model:   "MLModels/FastTreeBinaryModel.zip",
		},
		Split: SplitConfig{TestFraction: 0.2, Seed: 1},
		Trainer: TrainerConfig{
			Backend:         BackendGBDT,
			NumTrees:        100,
			NumLeaves:       20,
			MinDataPerLeaf:  10,
			LearningRate:    0.2,
			MaxBins:         255,
			FeatureFraction: 1,
			Seed:            1,
			Epochs:          10,
			BatchSize:       256,
		},
		Inference:  InferenceConfig{SampleCount: 5},
		Logging:    LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
		WaitForKey: true,
	}
}

// LoadConfig reads a YAML file on top of Default(). A missing file is reported
// with an error wrapping os.ErrNotExist so callers can fall back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is LoadConfig that tolerates a missing file.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	var problems []string
	if c.Split.TestFraction <= 0 || c.Split.TestFraction >= 1 {
		problems = append(problems, fmt.Sprintf("split.test_fraction must be in (0,1), got %v", c.Split.TestFraction))
	}
	switch c.Trainer.Backend {
	case BackendGBDT, BackendForest, BackendLogistic:
	default:
		problems = append(problems, fmt.Sprintf("trainer.backend %q is not one of %s, %s, %s",
			c.Trainer.Backend, BackendGBDT, BackendForest, BackendLogistic))
	}
	if c.Trainer.NumTrees <= 0 {
		problems = append(problems, "trainer.num_trees must be positive")
	}
	if c.Trainer.NumLeaves < 2 {
		problems = append(problems, "trainer.num_leaves must be at least 2")
	}
	if c.Trainer.MinDataPerLeaf <= 0 {
		problems = append(problems, "trainer.min_data_per_leaf must be positive")
	}
	if c.Trainer.LearningRate <= 0 {
		problems = append(problems, "trainer.learning_rate must be positive")
	}
	if c.Trainer.MaxBins < 2 || c.Trainer.MaxBins > 65535 {
		problems = append(problems, "trainer.max_bins must be in [2,65535]")
	}
	if c.Trainer.FeatureFraction <= 0 || c.Trainer.FeatureFraction > 1 {
		problems = append(problems, "trainer.feature_fraction must be in (0,1]")
	}
	if c.Trainer.Epochs <= 0 || c.Trainer.BatchSize <= 0 || c.Trainer.L2 < 0 {
		problems = append(problems, "trainer.epochs and trainer.batch_size must be positive, trainer.l2 non-negative")
	}
	if c.Inference.SampleCount <= 0 {
		problems = append(problems, "inference.sample_count must be positive")
	}
	if c.Paths.Train == "" || c.Paths.Test == "" || c.Paths.Model == "" {
		problems = append(problems, "paths.train, paths.test and paths.model are required")
	}
	if c.Storage.S3.Enabled && strings.TrimSpace(c.Storage.S3.Bucket) == "" {
		problems = append(problems, "storage.s3.bucket is required when s3 is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
