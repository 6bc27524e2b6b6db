package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delayreg/internal/config"
	pipeerrors "delayreg/internal/errors"
)

// writeFlightSample writes a synthetic flight-level CSV with every column
// the basic analysis variant needs. One row carries an implausible delay
// so the outcome filter has something to drop.
func writeFlightSample(t *testing.T, path string, n int) {
	t.Helper()

	numericCols := []string{
		"arr_delay",
		"hhiorigin", "hhidest",
		"distance", "seats", "load_factor", "scheduled_flights",
		"temp_origin", "precip_origin", "snow_origin", "wind_origin",
		"temp_dest", "precip_dest", "snow_dest", "wind_dest",
		"population_origin", "population_dest",
		"income_origin", "income_dest",
	}
	header := append([]string{
		"year", "month", "day_of_week", "scheduled_hour",
		"carrier", "origin_airport_id", "dest_airport_id",
	}, numericCols...)

	carriers := []string{"AA", "DL", "UA"}
	airports := []string{"10397", "11292", "12892", "13930"}

	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	w := csv.NewWriter(file)
	require.NoError(t, w.Write(header))

	rng := rand.New(rand.NewPCG(99, 99))
	for i := 0; i < n; i++ {
		origin := rng.IntN(len(airports))
		dest := rng.IntN(len(airports) - 1)
		if dest >= origin {
			dest++
		}

		record := []string{
			strconv.Itoa(2023 + rng.IntN(2)),
			strconv.Itoa(1 + rng.IntN(2)),
			strconv.Itoa(1 + rng.IntN(2)),
			strconv.Itoa(6 + rng.IntN(2)),
			carriers[rng.IntN(len(carriers))],
			airports[origin],
			airports[dest],
		}

		hhiOrigin := 0.2 + 0.6*rng.Float64()
		delay := 10 + 25*hhiOrigin + 5*rng.NormFloat64()
		if i == 0 {
			delay = 5000 // dropped by the outcome filter
		}
		values := []float64{delay, hhiOrigin, 0.2 + 0.6*rng.Float64()}
		for len(values) < len(numericCols) {
			values = append(values, rng.NormFloat64())
		}
		for _, v := range values {
			record = append(record, strconv.FormatFloat(v, 'g', 12, 64))
		}
		require.NoError(t, w.Write(record))
	}
	w.Flush()
	require.NoError(t, w.Error())
}

func testConfig(t *testing.T, input string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Paths.InputCSV = input
	cfg.Paths.ResultsDir = filepath.Join(dir, "results")
	cfg.Paths.RawDir = filepath.Join(dir, "results", "raw")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Sample.OutcomeColumn = "arr_delay"
	cfg.Sample.DelayMin = -100
	cfg.Sample.DelayMax = 1000
	cfg.Estimation.MaxConcurrency = 2
	cfg.Estimation.AbsorbTol = 1e-9
	cfg.Estimation.AbsorbMaxIter = 1000
	require.NoError(t, cfg.EnsureDirs())
	return cfg
}

// TestRunnerBasicVariant tests the pipeline end to end on a synthetic
// sample
func TestRunnerBasicVariant(t *testing.T) {
	input := filepath.Join(t.TempDir(), "flights.csv")
	writeFlightSample(t, input, 600)
	cfg := testConfig(t, input)

	runner := NewRunner(cfg, nil)
	state, err := runner.Run(context.Background(), []string{"basic"})
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, state.Status)
	assert.Empty(t, state.FailedSpecs())
	assert.Equal(t, 599, state.Table.N()) // one implausible delay dropped

	for _, name := range []string{"basic_airports", "basic_route"} {
		est, ok := state.Estimation(name)
		require.True(t, ok, "missing estimation %s", name)
		result := est.Result
		assert.Equal(t, 599, result.N)
		assert.Greater(t, result.Clusters, 1)
		assert.Greater(t, result.DofResidual, 0)

		// The planted concentration effect is recovered with the right
		// sign and rough magnitude.
		idx := result.Index("hhiorigin")
		require.GreaterOrEqual(t, idx, 0)
		assert.InDelta(t, 25.0, result.Coef[idx], 5.0)

		// Raw artifacts written per specification.
		assert.FileExists(t, cfg.CoefPath(name))
		assert.FileExists(t, cfg.CovPath(name))
	}

	assert.FileExists(t, cfg.TablePath("basic"))
	assert.FileExists(t, cfg.WorkbookPath())

	table, err := os.ReadFile(cfg.TablePath("basic"))
	require.NoError(t, err)
	assert.Contains(t, string(table), "hhiorigin")
	assert.Contains(t, string(table), "Observations")
}

// TestRunnerSpecFailureIsolation tests that one failing specification does
// not abort the run
func TestRunnerSpecFailureIsolation(t *testing.T) {
	input := filepath.Join(t.TempDir(), "flights.csv")
	// The sample has no lagged concentration columns, so the IV
	// specification cannot build its design.
	writeFlightSample(t, input, 600)
	cfg := testConfig(t, input)

	runner := NewRunner(cfg, nil)
	state, err := runner.Run(context.Background(), []string{"basic", "iv"})
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, state.Status)

	failed := state.FailedSpecs()
	require.Len(t, failed, 1)
	require.Contains(t, failed, "iv_lagged")
	assert.ErrorIs(t, failed["iv_lagged"], pipeerrors.ErrUnknownColumn)

	_, ok := state.Estimation("iv_lagged")
	assert.False(t, ok)
	_, ok = state.Estimation("basic_airports")
	assert.True(t, ok)

	// The basic table still exists; the IV variant has nothing to export.
	assert.FileExists(t, cfg.TablePath("basic"))
	assert.NoFileExists(t, cfg.TablePath("iv"))
}

// TestRunnerIVVariant tests the instrumented specification end to end on a
// sample carrying the lagged concentration instruments
func TestRunnerIVVariant(t *testing.T) {
	input := filepath.Join(t.TempDir(), "flights.csv")
	writeIVSample(t, input, 600)
	cfg := testConfig(t, input)

	runner := NewRunner(cfg, nil)
	state, err := runner.Run(context.Background(), []string{"iv"})
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, state.Status)
	require.Empty(t, state.FailedSpecs())

	est, ok := state.Estimation("iv_lagged")
	require.True(t, ok)
	result := est.Result

	// Two endogenous regressors instrumented by their lags.
	assert.Equal(t, "hhiorigin", result.Names[0])
	assert.Equal(t, "hhidest", result.Names[1])
	idx := result.Index("hhiorigin")
	require.GreaterOrEqual(t, idx, 0)
	assert.InDelta(t, 25.0, result.Coef[idx], 7.0)

	require.NotNil(t, result.IV)
	assert.Less(t, result.IV.UnderIDPValue, 0.05)
	require.Len(t, result.IV.FirstStageF, 2)
	assert.Greater(t, result.IV.FirstStageF[0], 10.0)

	assert.FileExists(t, cfg.TablePath("iv"))
	assert.FileExists(t, cfg.CoefPath("iv_lagged"))
	assert.FileExists(t, cfg.CovPath("iv_lagged"))

	table, err := os.ReadFile(cfg.TablePath("iv"))
	require.NoError(t, err)
	assert.Contains(t, string(table), "Weak id. F")
}

// writeIVSample extends the flight sample with lagged concentration
// columns tightly correlated with the current values, so the lags are
// strong instruments.
func writeIVSample(t *testing.T, path string, n int) {
	t.Helper()

	base := filepath.Join(t.TempDir(), "base.csv")
	writeFlightSample(t, base, n)

	in, err := os.Open(base)
	require.NoError(t, err)
	defer in.Close()
	rows, err := csv.NewReader(in).ReadAll()
	require.NoError(t, err)

	header := rows[0]
	hhiIdx := map[string]int{}
	for i, name := range header {
		if name == "hhiorigin" || name == "hhidest" {
			hhiIdx[name] = i
		}
	}
	require.Len(t, hhiIdx, 2)

	rng := rand.New(rand.NewPCG(11, 11))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	w := csv.NewWriter(out)

	for i, row := range rows {
		if i == 0 {
			row = append(row, "hhiorigin_lag", "hhidest_lag")
		} else {
			for _, name := range []string{"hhiorigin", "hhidest"} {
				v, err := strconv.ParseFloat(row[hhiIdx[name]], 64)
				require.NoError(t, err)
				lag := v + 0.05*rng.NormFloat64()
				row = append(row, strconv.FormatFloat(lag, 'g', 12, 64))
			}
		}
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
}

// TestRunnerMissingInput tests the fatal path for an absent input file
func TestRunnerMissingInput(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "nope.csv"))

	runner := NewRunner(cfg, nil)
	state, err := runner.Run(context.Background(), []string{"basic"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeerrors.ErrInputNotFound)
	assert.Equal(t, RunStatusFailed, state.Status)
}

// TestRunnerDecomposedConstraints tests that the hub-size equality tests
// run alongside estimation
func TestRunnerDecomposedConstraints(t *testing.T) {
	input := filepath.Join(t.TempDir(), "flights.csv")
	writeHubSample(t, input, 600)
	cfg := testConfig(t, input)

	runner := NewRunner(cfg, nil)
	state, err := runner.Run(context.Background(), []string{"decomposed"})
	require.NoError(t, err)
	require.Empty(t, state.FailedSpecs())

	est, ok := state.Estimation("decomposed_route")
	require.True(t, ok)
	require.Len(t, est.Wald, 6)
	for _, w := range est.Wald {
		assert.Equal(t, 1, w.Dof)
		assert.GreaterOrEqual(t, w.PValue, 0.0)
		assert.LessOrEqual(t, w.PValue, 1.0)
	}
}

// writeHubSample extends the flight sample with the hub-decomposed
// concentration columns the decomposed variant needs.
func writeHubSample(t *testing.T, path string, n int) {
	t.Helper()

	base := filepath.Join(t.TempDir(), "base.csv")
	writeFlightSample(t, base, n)

	in, err := os.Open(base)
	require.NoError(t, err)
	defer in.Close()
	rows, err := csv.NewReader(in).ReadAll()
	require.NoError(t, err)

	hubCols := []string{
		"nonhubairlineconcorigin", "smallhubairlineconcorigin",
		"mediumhubairlineconcorigin", "largehubairlineconcorigin",
		"nonhubairlineconcdest", "smallhubairlineconcdest",
		"mediumhubairlineconcdest", "largehubairlineconcdest",
	}

	rng := rand.New(rand.NewPCG(7, 7))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	w := csv.NewWriter(out)

	for i, row := range rows {
		if i == 0 {
			row = append(row, hubCols...)
		} else {
			for range hubCols {
				row = append(row, fmt.Sprintf("%.6f", rng.Float64()))
			}
		}
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
}
