// Package regression implements the estimation core of the delay pipeline:
// fixed-effects least squares with high-dimensional fixed-effect absorption
// and two-stage instrumental-variables least squares, both with
// cluster-robust variance estimation.
//
// # Architecture
//
//   - absorb.go: fixed-effect partialling by group demeaning (alternating
//     projections for multiple fixed effects)
//   - design.go: design-matrix assembly from a dataset.Table and a model.Spec
//   - ols.go: fixed-effects least squares estimator
//   - iv.go: two-stage least squares with first-stage identification
//     diagnostics
//   - cluster.go: cluster-robust and classical covariance estimation
//   - result.go: immutable estimation results
//
// Absorption is an optimization, not a different model: coefficients on
// non-absorbed regressors are numerically equal to explicit dummy-variable
// least squares on the same data, which is the correctness property the
// package tests enforce.
package regression
