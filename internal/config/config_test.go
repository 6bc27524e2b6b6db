package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults tests configuration defaults without a file
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/flights.csv", cfg.Paths.InputCSV)
	assert.Equal(t, "results", cfg.Paths.ResultsDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "arr_delay", cfg.Sample.OutcomeColumn)
	assert.InDelta(t, -100, cfg.Sample.DelayMin, 1e-12)
	assert.InDelta(t, 1000, cfg.Sample.DelayMax, 1e-12)
	assert.Equal(t, 4, cfg.Estimation.MaxConcurrency)
	assert.InDelta(t, 1e-8, cfg.Estimation.AbsorbTol, 1e-20)

	// Default rescale divisors are filled in.
	assert.InDelta(t, 100, cfg.Sample.Rescale["distance"], 1e-12)
	assert.InDelta(t, 1_000_000, cfg.Sample.Rescale["population_origin"], 1e-12)
}

// TestLoadFromFile tests YAML overrides
func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `paths:
  input_csv: /data/sample.csv
  results_dir: /tmp/out
logging:
  level: debug
sample:
  outcome_column: dep_delay
  delay_min: -60
  delay_max: 720
  rescale:
    distance: 1000
estimation:
  max_concurrency: 8
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/sample.csv", cfg.Paths.InputCSV)
	assert.Equal(t, "/tmp/out", cfg.Paths.ResultsDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "dep_delay", cfg.Sample.OutcomeColumn)
	assert.InDelta(t, -60, cfg.Sample.DelayMin, 1e-12)
	assert.InDelta(t, 720, cfg.Sample.DelayMax, 1e-12)
	assert.Equal(t, 8, cfg.Estimation.MaxConcurrency)

	// File rescale replaces the defaults entirely.
	assert.InDelta(t, 1000, cfg.Sample.Rescale["distance"], 1e-12)
	_, hasPopulation := cfg.Sample.Rescale["population_origin"]
	assert.False(t, hasPopulation)
}

// TestLoadMissingFile tests the explicit-file-not-found error
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// TestLoadInvalid tests validation failures
func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "bad log level",
			yaml: "logging:\n  level: loud\n",
		},
		{
			name: "delay max below min",
			yaml: "sample:\n  delay_min: 100\n  delay_max: 50\n",
		},
		{
			name: "zero rescale divisor",
			yaml: "sample:\n  rescale:\n    distance: 0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

// TestEnsureDirs tests output directory creation
func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Paths.ResultsDir = filepath.Join(dir, "results")
	cfg.Paths.RawDir = filepath.Join(dir, "results", "raw")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")

	require.NoError(t, cfg.EnsureDirs())
	assert.DirExists(t, cfg.Paths.ResultsDir)
	assert.DirExists(t, cfg.Paths.RawDir)
	assert.DirExists(t, cfg.Paths.LogsDir)
}

// TestPathHelpers tests artifact path construction
func TestPathHelpers(t *testing.T) {
	cfg := &Config{}
	cfg.Paths.ResultsDir = "out"
	cfg.Paths.RawDir = "out/raw"

	assert.Equal(t, filepath.Join("out", "basic.txt"), cfg.TablePath("basic"))
	assert.Equal(t, filepath.Join("out", "tables.xlsx"), cfg.WorkbookPath())
	assert.Equal(t, filepath.Join("out", "raw", "iv_lagged_coef.csv"), cfg.CoefPath("iv_lagged"))
	assert.Equal(t, filepath.Join("out", "raw", "iv_lagged_cov.csv"), cfg.CovPath("iv_lagged"))
}
