// Package diagnostics implements post-estimation hypothesis tests: joint
// linear-restriction (Wald) tests over coefficient constraints, including
// chains of pairwise equality constraints across ordered categories.
// Weak-instrument and under-identification statistics live with the
// two-stage estimator in package regression, since they are computed from
// its first stage.
package diagnostics
