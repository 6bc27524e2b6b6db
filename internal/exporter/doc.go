// Package exporter renders estimation results into publication-style
// coefficient tables and persists the raw coefficient vectors and
// covariance matrices for downstream reuse (e.g. counterfactual
// simulation).
//
// All exports are idempotent: each run truncates and fully rewrites its
// target files, never appends.
package exporter
