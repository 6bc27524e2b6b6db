// Package pipeline orchestrates a single analysis run: load the flight
// sample, apply the filter/transform step, build the model specifications
// for the requested analysis variants, estimate every specification, run
// the configured hypothesis tests, and export tables and raw artifacts.
//
// Steps run in sequence; the estimation step fans out across
// specifications, which are independent of one another. A failed
// specification is recorded on its step state and the run continues with
// the remaining specifications.
package pipeline
