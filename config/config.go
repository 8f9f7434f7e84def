// Package config loads the YAML configuration shared by the web server and the
// training job.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Http struct {
		Port         int           `yaml:"port"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxFormBytes int64         `yaml:"max_form_bytes"`
	} `yaml:"http"`
	Log      Log `yaml:"log"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Artifacts Artifacts `yaml:"artifacts"`
	Training  Training  `yaml:"training"`
}

// Log configures the zap logger and its optional rotating file sink.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Compress    bool   `yaml:"compress"`
}

// Artifacts locates the persisted preprocessor and model.
type Artifacts struct {
	Dir          string `yaml:"dir"`
	Preprocessor string `yaml:"preprocessor"`
	Model        string `yaml:"model"`
	Cache        bool   `yaml:"cache"`
	CacheSize    int    `yaml:"cache_size"`
	Watch        bool   `yaml:"watch"`
}

// PreprocessorPath is the preprocessor artifact path.
func (a Artifacts) PreprocessorPath() string {
	return filepath.Join(a.Dir, a.Preprocessor)
}

// ModelPath is the model artifact path.
func (a Artifacts) ModelPath() string {
	return filepath.Join(a.Dir, a.Model)
}

type Training struct {
	RawData        string   `yaml:"raw_data"`
	Encoding       string   `yaml:"encoding"`
	Target         string   `yaml:"target"`
	TestRatio      float64  `yaml:"test_ratio"`
	Seed           int64    `yaml:"seed"`
	Models         []string `yaml:"models"`
	RidgeAlpha     float64  `yaml:"ridge_alpha"`
	MaxTreeDepth   int      `yaml:"max_tree_depth"`
	MinSamplesLeaf int      `yaml:"min_samples_leaf"`
	KNNNeighbors   int      `yaml:"knn_neighbors"`
	MinR2          float64  `yaml:"min_r2"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	var c Config
	c.Http.Port = 5000
	c.Http.Timeout = 30 * time.Second
	c.Http.MaxFormBytes = 1 << 20
	c.Log = Log{
		Level:      "info",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}
	c.Database.Path = "data/houseprice.db"
	c.Artifacts = Artifacts{
		Dir:          "artifacts",
		Preprocessor: "preprocessor.json",
		Model:        "model.json",
		CacheSize:    8,
		Watch:        true,
	}
	c.Training = Training{
		RawData:        "notebook/data/AmesHousing.csv",
		Encoding:       "utf-8",
		Target:         "SalePrice",
		TestRatio:      0.2,
		Seed:           42,
		Models:         []string{"linear", "ridge", "decision_tree", "knn"},
		RidgeAlpha:     10,
		MaxTreeDepth:   8,
		MinSamplesLeaf: 5,
		KNNNeighbors:   10,
		MinR2:          0.6,
	}
	return &c
}

// Load decodes the file at path over Default and validates the result.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if c.Artifacts.Preprocessor == "" || c.Artifacts.Model == "" {
		return errors.New("artifacts.preprocessor and artifacts.model are required")
	}
	if c.Artifacts.Cache && c.Artifacts.CacheSize <= 0 {
		return errors.New("artifacts.cache_size must be positive when the cache is enabled")
	}
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		return fmt.Errorf("training.test_ratio %.2f must be in (0, 1)", c.Training.TestRatio)
	}
	if c.Training.Target == "" {
		return errors.New("training.target is required")
	}
	if len(c.Training.Models) == 0 {
		return errors.New("training.models must name at least one candidate")
	}
	return nil
}
