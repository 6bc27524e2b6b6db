// Package simulation implements the counterfactual side of the analysis:
// it consumes the coefficient vectors and covariance matrices exported by
// the regression pipeline, draws coefficient vectors from a multivariate
// normal approximation, and computes simulated market-structure
// externality effects per airport-month market, summarized by hub-sliced
// weighted least-squares slopes across draws.
//
// Point estimates are deterministic; simulation is used only for variance
// characterization.
package simulation
