package simulation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// WeightMode selects the regression weight used when fitting externality
// effects against monthly flights within each airport hub-size slice.
type WeightMode string

const (
	WeightMarketShare WeightMode = "ms"
	WeightFlights     WeightMode = "flights"
	WeightBoth        WeightMode = "ms_x_flights"
)

func (m WeightMode) weight(set *EffectSet, i int) (float64, error) {
	switch m {
	case WeightMarketShare:
		return set.MarketShare[i], nil
	case WeightFlights:
		return set.MonthlyFlights[i], nil
	case WeightBoth:
		return set.MarketShare[i] * set.MonthlyFlights[i], nil
	default:
		return 0, fmt.Errorf("unknown weight mode %q", m)
	}
}

// SlopeSet holds per-draw WLS fits of effect on monthly flights, one row
// of slopes and intercepts per airport hub size.
type SlopeSet struct {
	// Slopes and Intercepts are NumHubSizes×sims.
	Slopes     *mat.Dense
	Intercepts *mat.Dense
}

// FindSlopes fits, for every draw and every airport hub size, a weighted
// least squares line effect ~ intercept + slope·monthly_flights over the
// observations at airports of that hub size. Hub sizes with fewer than
// two observations get NaN fits.
func FindSlopes(set *EffectSet, mode WeightMode) (*SlopeSet, error) {
	n, sims := set.Effect.Dims()

	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		w, err := mode.weight(set, i)
		if err != nil {
			return nil, err
		}
		weights[i] = w
	}

	byHub := make([][]int, NumHubSizes)
	for i := 0; i < n; i++ {
		h := set.AirportHubSize[i]
		if h < 0 || h >= NumHubSizes {
			return nil, fmt.Errorf("observation %d: airport_hub_size %d outside 0..%d", i, h, NumHubSizes-1)
		}
		byHub[h] = append(byHub[h], i)
	}

	out := &SlopeSet{
		Slopes:     mat.NewDense(NumHubSizes, sims, nil),
		Intercepts: mat.NewDense(NumHubSizes, sims, nil),
	}

	for h := 0; h < NumHubSizes; h++ {
		members := byHub[h]
		if len(members) < 2 {
			for s := 0; s < sims; s++ {
				out.Slopes.Set(h, s, math.NaN())
				out.Intercepts.Set(h, s, math.NaN())
			}
			continue
		}

		// x and the weights are fixed across draws, so the moment
		// sums involving only x are computed once per hub.
		var sw, sx, sxx float64
		for _, i := range members {
			w := weights[i]
			x := set.MonthlyFlights[i]
			sw += w
			sx += w * x
			sxx += w * x * x
		}
		den := sw*sxx - sx*sx

		for s := 0; s < sims; s++ {
			if den == 0 || sw == 0 {
				out.Slopes.Set(h, s, math.NaN())
				out.Intercepts.Set(h, s, math.NaN())
				continue
			}
			var sy, sxy float64
			for _, i := range members {
				w := weights[i]
				x := set.MonthlyFlights[i]
				y := set.Effect.At(i, s)
				sy += w * y
				sxy += w * x * y
			}
			slope := (sw*sxy - sx*sy) / den
			out.Slopes.Set(h, s, slope)
			out.Intercepts.Set(h, s, (sy-slope*sx)/sw)
		}
	}
	return out, nil
}

// Summary describes the simulated distribution of one hub size's slope.
type Summary struct {
	HubSize int
	Mean    float64
	Median  float64
	Lower   float64 // 2.5th percentile
	Upper   float64 // 97.5th percentile
}

// Summarize reduces each hub size's slope draws to distribution summaries.
func (s *SlopeSet) Summarize() []Summary {
	_, sims := s.Slopes.Dims()
	out := make([]Summary, NumHubSizes)
	for h := 0; h < NumHubSizes; h++ {
		draws := make([]float64, 0, sims)
		for j := 0; j < sims; j++ {
			v := s.Slopes.At(h, j)
			if !math.IsNaN(v) {
				draws = append(draws, v)
			}
		}
		out[h] = summarize(h, draws)
	}
	return out
}

func summarize(hub int, draws []float64) Summary {
	if len(draws) == 0 {
		return Summary{HubSize: hub, Mean: math.NaN(), Median: math.NaN(), Lower: math.NaN(), Upper: math.NaN()}
	}
	sorted := append([]float64(nil), draws...)
	sort.Float64s(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return Summary{
		HubSize: hub,
		Mean:    sum / float64(len(sorted)),
		Median:  quantile(sorted, 0.5),
		Lower:   quantile(sorted, 0.025),
		Upper:   quantile(sorted, 0.975),
	}
}

// quantile interpolates linearly between order statistics; values must be
// sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ProbGreater returns the NumHubSizes×NumHubSizes matrix whose (i,j) entry
// is the share of draws where hub size i's slope exceeds hub size j's.
// Diagonal entries are NaN.
func (s *SlopeSet) ProbGreater() *mat.Dense {
	_, sims := s.Slopes.Dims()
	out := mat.NewDense(NumHubSizes, NumHubSizes, nil)
	for i := 0; i < NumHubSizes; i++ {
		for j := 0; j < NumHubSizes; j++ {
			if i == j {
				out.Set(i, j, math.NaN())
				continue
			}
			count, valid := 0, 0
			for k := 0; k < sims; k++ {
				a, b := s.Slopes.At(i, k), s.Slopes.At(j, k)
				if math.IsNaN(a) || math.IsNaN(b) {
					continue
				}
				valid++
				if a > b {
					count++
				}
			}
			if valid == 0 {
				out.Set(i, j, math.NaN())
				continue
			}
			out.Set(i, j, float64(count)/float64(valid))
		}
	}
	return out
}
