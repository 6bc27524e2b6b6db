package pipeline

import (
	"context"
)

// Step is a single stage of the analysis run. Steps execute in sequence
// and communicate through the shared RunState.
type Step interface {
	// ID returns the unique identifier for this step.
	ID() string

	// Name returns the human-readable name for this step.
	Name() string

	// Run executes the step against the shared run state. An error from
	// any step other than the estimation fan-out aborts the run; the
	// estimation step isolates failures per specification instead.
	Run(ctx context.Context, state *RunState) error
}
