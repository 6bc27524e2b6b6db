package simulation

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// MarketObservation is one airline's position in an airport-month market.
type MarketObservation struct {
	AirportID      string
	Year           int
	Month          int
	MarketShare    float64
	HHI            float64
	MonthlyFlights float64
	AirportHubSize int
	AirlineHubSize int // 0..3: non, small, medium, large
}

// marketColumns is the expected header of the market data CSV.
var marketColumns = []string{
	"origin_airport_id", "year", "month", "market_share", "hhi",
	"monthly_flights", "airport_hub_size", "airline_hub_size",
}

// LoadMarkets reads airline-airport-month market observations.
func LoadMarkets(path string) ([]MarketObservation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range marketColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}

	var out []MarketObservation
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line+1, err)
		}
		line++

		obs := MarketObservation{AirportID: record[index["origin_airport_id"]]}
		if obs.Year, err = strconv.Atoi(record[index["year"]]); err != nil {
			return nil, fmt.Errorf("row %d year: %w", line, err)
		}
		if obs.Month, err = strconv.Atoi(record[index["month"]]); err != nil {
			return nil, fmt.Errorf("row %d month: %w", line, err)
		}
		if obs.MarketShare, err = strconv.ParseFloat(record[index["market_share"]], 64); err != nil {
			return nil, fmt.Errorf("row %d market_share: %w", line, err)
		}
		if obs.HHI, err = strconv.ParseFloat(record[index["hhi"]], 64); err != nil {
			return nil, fmt.Errorf("row %d hhi: %w", line, err)
		}
		if obs.MonthlyFlights, err = strconv.ParseFloat(record[index["monthly_flights"]], 64); err != nil {
			return nil, fmt.Errorf("row %d monthly_flights: %w", line, err)
		}
		if obs.AirportHubSize, err = strconv.Atoi(record[index["airport_hub_size"]]); err != nil {
			return nil, fmt.Errorf("row %d airport_hub_size: %w", line, err)
		}
		if obs.AirlineHubSize, err = strconv.Atoi(record[index["airline_hub_size"]]); err != nil {
			return nil, fmt.Errorf("row %d airline_hub_size: %w", line, err)
		}
		if obs.AirlineHubSize < 0 || obs.AirlineHubSize >= NumHubSizes {
			return nil, fmt.Errorf("row %d: airline_hub_size %d outside 0..%d", line, obs.AirlineHubSize, NumHubSizes-1)
		}
		out = append(out, obs)
	}
	return out, nil
}

// EffectSet holds simulated externality effects per airline observation,
// aligned with the observation attributes needed for the hub-sliced slope
// summaries.
type EffectSet struct {
	MonthlyFlights []float64
	MarketShare    []float64
	AirportHubSize []int
	AirportID      []string

	// Effect is N×sims: one simulated externality per observation and
	// draw.
	Effect *mat.Dense
}

// N returns the number of observations in the set.
func (e *EffectSet) N() int {
	if e.Effect == nil {
		return 0
	}
	n, _ := e.Effect.Dims()
	return n
}

// Effects computes simulated externality components for each airline in
// each airport-month market with more than one airline:
//
//	effect_{i,s} = 2·(share_i − HHI) · Σ_h draws_{s,h} · otherShare_{i,h}
//
// where otherShare_{i,h} is the combined market share of the *other*
// airlines in the market whose hub size is h. Markets with a single
// airline carry no externality and are skipped.
func Effects(observations []MarketObservation, draws *mat.Dense) (*EffectSet, error) {
	sims, bins := draws.Dims()
	if bins != NumHubSizes {
		return nil, fmt.Errorf("draws must have %d columns, got %d", NumHubSizes, bins)
	}

	type marketKey struct {
		airport string
		year    int
		month   int
	}
	groups := make(map[marketKey][]int)
	var order []marketKey
	for i, obs := range observations {
		key := marketKey{obs.AirportID, obs.Year, obs.Month}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	set := &EffectSet{}
	var rows [][]float64

	for _, key := range order {
		members := groups[key]
		if len(members) <= 1 {
			continue
		}

		var totalByBin [NumHubSizes]float64
		for _, i := range members {
			obs := observations[i]
			totalByBin[obs.AirlineHubSize] += obs.MarketShare
		}

		for _, i := range members {
			obs := observations[i]

			var others [NumHubSizes]float64
			for h := 0; h < NumHubSizes; h++ {
				others[h] = totalByBin[h]
			}
			others[obs.AirlineHubSize] -= obs.MarketShare

			comp1 := 2 * (obs.MarketShare - obs.HHI)
			row := make([]float64, sims)
			for s := 0; s < sims; s++ {
				comp2 := 0.0
				for h := 0; h < NumHubSizes; h++ {
					comp2 += draws.At(s, h) * others[h]
				}
				row[s] = comp1 * comp2
			}

			rows = append(rows, row)
			set.MonthlyFlights = append(set.MonthlyFlights, obs.MonthlyFlights)
			set.MarketShare = append(set.MarketShare, obs.MarketShare)
			set.AirportHubSize = append(set.AirportHubSize, obs.AirportHubSize)
			set.AirportID = append(set.AirportID, obs.AirportID)
		}
	}

	if len(rows) == 0 {
		set.Effect = mat.NewDense(0, sims, nil)
		return set, nil
	}

	set.Effect = mat.NewDense(len(rows), sims, nil)
	for i, row := range rows {
		set.Effect.SetRow(i, row)
	}
	return set, nil
}
