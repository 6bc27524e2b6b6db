package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Sample     SampleConfig     `yaml:"sample" envconfig:"SAMPLE"`
	Estimation EstimationConfig `yaml:"estimation" envconfig:"ESTIMATION"`
}

// PathsConfig contains file system paths configuration.
type PathsConfig struct {
	InputCSV   string `yaml:"input_csv" envconfig:"INPUT_CSV" default:"data/flights.csv" validate:"required"`
	ResultsDir string `yaml:"results_dir" envconfig:"RESULTS_DIR" default:"results" validate:"required"`
	RawDir     string `yaml:"raw_dir" envconfig:"RAW_DIR" default:"results/raw"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/delayreg.log"`
}

// SampleConfig controls row filtering and variable rescaling applied to the
// flight sample before any estimation.
type SampleConfig struct {
	OutcomeColumn string `yaml:"outcome_column" envconfig:"OUTCOME_COLUMN" default:"arr_delay" validate:"required"`

	// Delay observations outside [DelayMin, DelayMax] minutes are dropped.
	DelayMin float64 `yaml:"delay_min" envconfig:"DELAY_MIN" default:"-100"`
	DelayMax float64 `yaml:"delay_max" envconfig:"DELAY_MAX" default:"1000" validate:"gtfield=DelayMin"`

	// Rescale maps column name to divisor (e.g. distance: 100).
	Rescale map[string]float64 `yaml:"rescale" envconfig:"RESCALE"`
}

// EstimationConfig controls the estimation fan-out and the fixed-effect
// absorption numerics.
type EstimationConfig struct {
	MaxConcurrency int     `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" default:"4" validate:"min=1"`
	AbsorbTol      float64 `yaml:"absorb_tol" envconfig:"ABSORB_TOL" default:"1e-8" validate:"gt=0"`
	AbsorbMaxIter  int     `yaml:"absorb_max_iter" envconfig:"ABSORB_MAX_ITER" default:"1000" validate:"min=1"`
}

// DefaultRescale returns the rescaling divisors used when the config file
// does not override them. Divisors keep coefficient magnitudes readable
// (distance in hundreds of miles, population in millions, income in
// thousands of dollars).
func DefaultRescale() map[string]float64 {
	return map[string]float64{
		"distance":          100,
		"population_origin": 1_000_000,
		"population_dest":   1_000_000,
		"income_origin":     1_000,
		"income_dest":       1_000,
	}
}

// Load loads configuration from environment variables and an optional YAML
// config file. Environment variables take precedence over file values.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configFile, err)
		}
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = *fileCfg
	}

	// Environment overrides and defaults for anything the file left unset.
	if err := envconfig.Process("DELAYREG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if cfg.Sample.Rescale == nil {
		cfg.Sample.Rescale = DefaultRescale()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	for col, div := range c.Sample.Rescale {
		if div == 0 {
			return fmt.Errorf("rescale divisor for column %q must be non-zero", col)
		}
	}
	return nil
}

// EnsureDirs creates the results, raw-artifact and logs directories if they
// do not exist yet.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.ResultsDir, c.Paths.RawDir, c.Paths.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// TablePath returns the output path for a variant's formatted table.
func (c *Config) TablePath(variant string) string {
	return filepath.Join(c.Paths.ResultsDir, variant+".txt")
}

// WorkbookPath returns the output path for the Excel workbook that mirrors
// the text tables.
func (c *Config) WorkbookPath() string {
	return filepath.Join(c.Paths.ResultsDir, "tables.xlsx")
}

// CoefPath returns the raw coefficient-vector artifact path for a model.
func (c *Config) CoefPath(model string) string {
	return filepath.Join(c.Paths.RawDir, model+"_coef.csv")
}

// CovPath returns the raw covariance-matrix artifact path for a model.
func (c *Config) CovPath(model string) string {
	return filepath.Join(c.Paths.RawDir, model+"_cov.csv")
}
