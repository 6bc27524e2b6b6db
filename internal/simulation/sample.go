package simulation

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"delayreg/internal/exporter"
)

// NumHubSizes is the number of airline hub-size categories (non, small,
// medium, large).
const NumHubSizes = 4

// Coefficient name sets matching the exported artifacts.
var (
	basicVars = []string{"hhiorigin", "hhidest"}

	hubVars = []string{
		"nonhubairlineconcorigin",
		"smallhubairlineconcorigin",
		"mediumhubairlineconcorigin",
		"largehubairlineconcorigin",
		"nonhubairlineconcdest",
		"smallhubairlineconcdest",
		"mediumhubairlineconcdest",
		"largehubairlineconcdest",
	}
)

// Sample holds coefficient draws replicated or combined across the four
// hub sizes, plus the deterministic point estimates.
type Sample struct {
	// Draws is sims×4: one combined (origin + destination) effect draw
	// per hub size.
	Draws *mat.Dense
	// TrueParams is the length-4 deterministic point estimate.
	TrueParams []float64
}

// BasicSample draws (hhiorigin + hhidest) from a multivariate normal
// approximation around the exported point estimates and replicates the
// combined effect across the four hub sizes.
func BasicSample(coefPath, covPath string, sims int, seed uint64) (*Sample, error) {
	draws, mu, err := drawCoefficients(coefPath, covPath, basicVars, sims, seed)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(sims, NumHubSizes, nil)
	for s := 0; s < sims; s++ {
		combined := draws.At(s, 0) + draws.At(s, 1)
		for h := 0; h < NumHubSizes; h++ {
			out.Set(s, h, combined)
		}
	}

	point := mu[0] + mu[1]
	trueParams := make([]float64, NumHubSizes)
	for h := range trueParams {
		trueParams[h] = point
	}

	return &Sample{Draws: out, TrueParams: trueParams}, nil
}

// HubSample draws the hub-decomposed origin and destination coefficients
// and combines them per hub size. Coefficient order is non, small, medium,
// large for origin then destination.
func HubSample(coefPath, covPath string, sims int, seed uint64) (*Sample, error) {
	draws, mu, err := drawCoefficients(coefPath, covPath, hubVars, sims, seed)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(sims, NumHubSizes, nil)
	for s := 0; s < sims; s++ {
		for h := 0; h < NumHubSizes; h++ {
			out.Set(s, h, draws.At(s, h)+draws.At(s, h+NumHubSizes))
		}
	}

	trueParams := make([]float64, NumHubSizes)
	for h := range trueParams {
		trueParams[h] = mu[h] + mu[h+NumHubSizes]
	}

	return &Sample{Draws: out, TrueParams: trueParams}, nil
}

// drawCoefficients loads the named coefficients and their covariance and
// returns sims multivariate-normal draws (sims×k) plus the point
// estimates.
func drawCoefficients(coefPath, covPath string, names []string, sims int, seed uint64) (*mat.Dense, []float64, error) {
	if sims <= 0 {
		return nil, nil, fmt.Errorf("number of simulations must be positive, got %d", sims)
	}

	mu, err := exporter.LoadCoefficients(coefPath, names)
	if err != nil {
		return nil, nil, fmt.Errorf("load coefficients: %w", err)
	}
	sigma, err := exporter.LoadCovariance(covPath, names)
	if err != nil {
		return nil, nil, fmt.Errorf("load covariance: %w", err)
	}

	src := rand.NewSource(seed)
	normal, ok := distmv.NewNormal(mu, sigma, src)
	if !ok {
		return nil, nil, fmt.Errorf("covariance matrix is not positive definite")
	}

	k := len(names)
	draws := mat.NewDense(sims, k, nil)
	row := make([]float64, k)
	for s := 0; s < sims; s++ {
		normal.Rand(row)
		draws.SetRow(s, row)
	}
	return draws, mu, nil
}
