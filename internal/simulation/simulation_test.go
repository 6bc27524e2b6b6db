package simulation

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// TestBasicSample tests draw moments and point estimates for the pooled
// coefficient set
func TestBasicSample(t *testing.T) {
	dir := t.TempDir()
	coefPath := filepath.Join(dir, "coef.csv")
	covPath := filepath.Join(dir, "cov.csv")
	writeFile(t, coefPath, "hhiorigin,hhidest\n0.2,0.1\n")
	writeFile(t, covPath, "variable,hhiorigin,hhidest\nhhiorigin,0.0004,0\nhhidest,0,0.0009\n")

	sims := 4000
	sample, err := BasicSample(coefPath, covPath, sims, 42)
	require.NoError(t, err)

	rows, cols := sample.Draws.Dims()
	assert.Equal(t, sims, rows)
	assert.Equal(t, NumHubSizes, cols)

	require.Len(t, sample.TrueParams, NumHubSizes)
	for h := 0; h < NumHubSizes; h++ {
		assert.InDelta(t, 0.3, sample.TrueParams[h], 1e-12)
	}

	// The combined draw is replicated across hub sizes.
	for s := 0; s < 10; s++ {
		for h := 1; h < NumHubSizes; h++ {
			assert.Equal(t, sample.Draws.At(s, 0), sample.Draws.At(s, h))
		}
	}

	// Sample mean close to the point estimate; sd(sum) is about 0.036.
	mean := 0.0
	for s := 0; s < sims; s++ {
		mean += sample.Draws.At(s, 0)
	}
	mean /= float64(sims)
	assert.InDelta(t, 0.3, mean, 0.01)

	// Deterministic for a fixed seed.
	again, err := BasicSample(coefPath, covPath, sims, 42)
	require.NoError(t, err)
	assert.Equal(t, sample.Draws.At(0, 0), again.Draws.At(0, 0))

	other, err := BasicSample(coefPath, covPath, sims, 43)
	require.NoError(t, err)
	assert.NotEqual(t, sample.Draws.At(0, 0), other.Draws.At(0, 0))
}

// TestHubSample tests per-hub combination of origin and destination draws
func TestHubSample(t *testing.T) {
	dir := t.TempDir()
	coefPath := filepath.Join(dir, "coef.csv")
	covPath := filepath.Join(dir, "cov.csv")

	header := ""
	row := ""
	covHeader := "variable"
	covRows := ""
	for i, name := range []string{
		"nonhubairlineconcorigin", "smallhubairlineconcorigin",
		"mediumhubairlineconcorigin", "largehubairlineconcorigin",
		"nonhubairlineconcdest", "smallhubairlineconcdest",
		"mediumhubairlineconcdest", "largehubairlineconcdest",
	} {
		if i > 0 {
			header += ","
			row += ","
		}
		header += name
		row += strconv.FormatFloat(0.01*float64(i+1), 'g', 17, 64)
		covHeader += "," + name
	}
	for i := 0; i < 8; i++ {
		covRows += covRowFor(i)
	}
	writeFile(t, coefPath, header+"\n"+row+"\n")
	writeFile(t, covPath, covHeader+"\n"+covRows)

	sample, err := HubSample(coefPath, covPath, 100, 7)
	require.NoError(t, err)

	// TrueParams[h] = mu[h] + mu[h+4] with mu[i] = 0.01 *(i+1).
	for h := 0; h < NumHubSizes; h++ {
		want := 0.01*float64(h+1) + 0.01*float64(h+5)
		assert.InDelta(t, want, sample.TrueParams[h], 1e-12)
	}
}

func covRowFor(i int) string {
	names := []string{
		"nonhubairlineconcorigin", "smallhubairlineconcorigin",
		"mediumhubairlineconcorigin", "largehubairlineconcorigin",
		"nonhubairlineconcdest", "smallhubairlineconcdest",
		"mediumhubairlineconcdest", "largehubairlineconcdest",
	}
	row := names[i]
	for j := 0; j < 8; j++ {
		if i == j {
			row += ",0.0001"
		} else {
			row += ",0"
		}
	}
	return row + "\n"
}

// TestLoadMarkets tests the market CSV loader
func TestLoadMarkets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "markets.csv")
	writeFile(t, path, `origin_airport_id,year,month,market_share,hhi,monthly_flights,airport_hub_size,airline_hub_size
10397,2023,1,0.5,0.34,120,3,0
10397,2023,1,0.3,0.34,80,3,1
11292,2023,1,1.0,1.0,40,1,2
`)

	markets, err := LoadMarkets(path)
	require.NoError(t, err)
	require.Len(t, markets, 3)
	assert.Equal(t, "10397", markets[0].AirportID)
	assert.Equal(t, 2023, markets[0].Year)
	assert.InDelta(t, 0.5, markets[0].MarketShare, 1e-12)
	assert.Equal(t, 3, markets[0].AirportHubSize)
	assert.Equal(t, 1, markets[1].AirlineHubSize)
}

// TestLoadMarketsErrors tests malformed market files
func TestLoadMarketsErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing column", func(t *testing.T) {
		path := filepath.Join(dir, "missing.csv")
		writeFile(t, path, "origin_airport_id,year\n10397,2023\n")
		_, err := LoadMarkets(path)
		assert.Error(t, err)
	})

	t.Run("hub size out of range", func(t *testing.T) {
		path := filepath.Join(dir, "range.csv")
		writeFile(t, path, `origin_airport_id,year,month,market_share,hhi,monthly_flights,airport_hub_size,airline_hub_size
10397,2023,1,0.5,0.34,120,3,7
`)
		_, err := LoadMarkets(path)
		assert.Error(t, err)
	})
}

// TestEffects tests the externality computation on a hand-checked market
func TestEffects(t *testing.T) {
	markets := []MarketObservation{
		{AirportID: "A", Year: 2023, Month: 1, MarketShare: 0.5, HHI: 0.34, MonthlyFlights: 120, AirportHubSize: 3, AirlineHubSize: 0},
		{AirportID: "A", Year: 2023, Month: 1, MarketShare: 0.3, HHI: 0.34, MonthlyFlights: 80, AirportHubSize: 3, AirlineHubSize: 1},
		// Single-airline market, skipped.
		{AirportID: "B", Year: 2023, Month: 1, MarketShare: 1.0, HHI: 1.0, MonthlyFlights: 40, AirportHubSize: 1, AirlineHubSize: 2},
	}
	draws := mat.NewDense(1, NumHubSizes, []float64{1, 2, 3, 4})

	set, err := Effects(markets, draws)
	require.NoError(t, err)
	require.Equal(t, 2, set.N())

	// First airline: 2(0.5-0.34) * (2 * 0.3) = 0.192.
	assert.InDelta(t, 0.192, set.Effect.At(0, 0), 1e-12)
	// Second airline: 2(0.3-0.34) * (1 * 0.5) = -0.04.
	assert.InDelta(t, -0.04, set.Effect.At(1, 0), 1e-12)

	assert.Equal(t, []float64{120, 80}, set.MonthlyFlights)
	assert.Equal(t, []int{3, 3}, set.AirportHubSize)
}

// TestEffectsDimensionMismatch tests the draw column check
func TestEffectsDimensionMismatch(t *testing.T) {
	_, err := Effects(nil, mat.NewDense(1, 3, []float64{1, 2, 3}))
	assert.Error(t, err)
}

// TestFindSlopes tests exact WLS recovery of a planted line
func TestFindSlopes(t *testing.T) {
	// Effects exactly linear in flights: effect = 2 + 3*flights.
	flights := []float64{10, 20, 30, 40}
	set := &EffectSet{
		MonthlyFlights: flights,
		MarketShare:    []float64{0.2, 0.4, 0.3, 0.1},
		AirportHubSize: []int{0, 0, 0, 0},
		Effect:         mat.NewDense(4, 1, nil),
	}
	for i, f := range flights {
		set.Effect.Set(i, 0, 2+3*f)
	}

	for _, mode := range []WeightMode{WeightMarketShare, WeightFlights, WeightBoth} {
		slopes, err := FindSlopes(set, mode)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, slopes.Slopes.At(0, 0), 1e-9, "mode %s", mode)
		assert.InDelta(t, 2.0, slopes.Intercepts.At(0, 0), 1e-9, "mode %s", mode)
		// No observations for the other hub sizes.
		for h := 1; h < NumHubSizes; h++ {
			assert.True(t, math.IsNaN(slopes.Slopes.At(h, 0)))
		}
	}

	_, err := FindSlopes(set, WeightMode("bogus"))
	assert.Error(t, err)
}

// TestSummarize tests the distribution summaries
func TestSummarize(t *testing.T) {
	slopes := &SlopeSet{
		Slopes:     mat.NewDense(NumHubSizes, 4, nil),
		Intercepts: mat.NewDense(NumHubSizes, 4, nil),
	}
	slopes.Slopes.SetRow(0, []float64{1, 2, 3, 4})
	for h := 1; h < NumHubSizes; h++ {
		slopes.Slopes.SetRow(h, []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()})
	}

	summaries := slopes.Summarize()
	require.Len(t, summaries, NumHubSizes)
	assert.InDelta(t, 2.5, summaries[0].Mean, 1e-12)
	assert.InDelta(t, 2.5, summaries[0].Median, 1e-12)
	assert.True(t, math.IsNaN(summaries[1].Mean))
}

// TestProbGreater tests pairwise slope comparison probabilities
func TestProbGreater(t *testing.T) {
	slopes := &SlopeSet{
		Slopes:     mat.NewDense(NumHubSizes, 2, nil),
		Intercepts: mat.NewDense(NumHubSizes, 2, nil),
	}
	slopes.Slopes.SetRow(0, []float64{1, 2})
	slopes.Slopes.SetRow(1, []float64{0, 3})
	slopes.Slopes.SetRow(2, []float64{5, 5})
	slopes.Slopes.SetRow(3, []float64{math.NaN(), math.NaN()})

	prob := slopes.ProbGreater()

	assert.True(t, math.IsNaN(prob.At(0, 0)))
	assert.InDelta(t, 0.5, prob.At(0, 1), 1e-12)
	assert.InDelta(t, 0.5, prob.At(1, 0), 1e-12)
	assert.InDelta(t, 1.0, prob.At(2, 0), 1e-12)
	assert.InDelta(t, 0.0, prob.At(0, 2), 1e-12)
	// Comparisons against the all-NaN hub have no valid draws.
	assert.True(t, math.IsNaN(prob.At(0, 3)))
}
