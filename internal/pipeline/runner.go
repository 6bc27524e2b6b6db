package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"delayreg/internal/config"
	"delayreg/internal/infrastructure"
	"delayreg/internal/model"
)

// Runner executes one analysis run end to end.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	steps  []Step
}

// NewRunner creates a runner for the given configuration and analysis
// variants.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	registry := model.DefaultRegistry()
	builder := model.NewBuilder(registry, cfg.Sample.OutcomeColumn)

	return &Runner{
		cfg:    cfg,
		logger: logger,
		steps: []Step{
			NewLoadStep(cfg, logger),
			NewTransformStep(cfg, logger),
			NewBuildStep(cfg, builder, logger),
			NewEstimateStep(cfg, logger),
			NewExportStep(cfg, logger),
		},
	}
}

// Run executes the pipeline for the given analysis variants and returns
// the final run state. Step errors abort the run; per-specification
// estimation failures do not.
func (r *Runner) Run(ctx context.Context, variants []string) (*RunState, error) {
	runID := uuid.NewString()
	ctx = infrastructure.WithRunID(ctx, runID)

	state := NewRunState(runID, variants)
	state.Start()

	r.logger.InfoContext(ctx, "pipeline run started",
		slog.String("input", r.cfg.Paths.InputCSV),
		slog.Any("variants", variants))

	for _, step := range r.steps {
		stepCtx, span := startStepSpan(ctx, runID, step)
		start := time.Now()
		err := step.Run(stepCtx, state)
		endStepSpan(span, err)

		if err != nil {
			state.Fail()
			r.logger.ErrorContext(ctx, "pipeline step failed",
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
			return state, fmt.Errorf("step %s: %w", step.ID(), err)
		}

		r.logger.InfoContext(ctx, "pipeline step completed",
			slog.String("step", step.ID()),
			slog.Duration("elapsed", time.Since(start)))
	}

	state.Complete()

	if failed := state.FailedSpecs(); len(failed) > 0 {
		for name, err := range failed {
			r.logger.WarnContext(ctx, "specification excluded from output",
				slog.String("spec", name),
				slog.String("error", err.Error()))
		}
	}

	r.logger.InfoContext(ctx, "pipeline run completed",
		slog.Int("estimations", len(state.Estimations)),
		slog.Int("failed_specs", len(state.FailedSpecs())))

	return state, nil
}
