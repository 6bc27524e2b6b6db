package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"delayreg/internal/config"
	"delayreg/internal/dataset"
	"delayreg/internal/diagnostics"
	"delayreg/internal/exporter"
	"delayreg/internal/model"
	"delayreg/internal/regression"
)

// LoadStep reads the flight-level CSV into the run state. A missing or
// malformed input is fatal: nothing downstream runs.
type LoadStep struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewLoadStep(cfg *config.Config, logger *slog.Logger) *LoadStep {
	return &LoadStep{cfg: cfg, logger: logger}
}

func (s *LoadStep) ID() string   { return "load" }
func (s *LoadStep) Name() string { return "Load flight sample" }

func (s *LoadStep) Run(ctx context.Context, state *RunState) error {
	table, err := dataset.Load(s.cfg.Paths.InputCSV)
	if err != nil {
		return err
	}
	state.Table = table
	return nil
}

// TransformStep applies the outcome-range filter, the configured
// rescalings, and derives the route identifier.
type TransformStep struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewTransformStep(cfg *config.Config, logger *slog.Logger) *TransformStep {
	return &TransformStep{cfg: cfg, logger: logger}
}

func (s *TransformStep) ID() string   { return "transform" }
func (s *TransformStep) Name() string { return "Filter and transform" }

func (s *TransformStep) Run(ctx context.Context, state *RunState) error {
	sample := s.cfg.Sample

	table, err := dataset.FilterOutcome(state.Table, sample.OutcomeColumn, sample.DelayMin, sample.DelayMax)
	if err != nil {
		return err
	}
	if err := dataset.RescaleAll(table, sample.Rescale); err != nil {
		return err
	}
	if err := dataset.EncodeRoutes(table); err != nil {
		return err
	}

	state.Table = table
	return nil
}

// BuildStep assembles the model specifications for every requested
// analysis variant from the shared group registry.
type BuildStep struct {
	cfg     *config.Config
	builder *model.Builder
	logger  *slog.Logger
}

func NewBuildStep(cfg *config.Config, builder *model.Builder, logger *slog.Logger) *BuildStep {
	return &BuildStep{cfg: cfg, builder: builder, logger: logger}
}

func (s *BuildStep) ID() string   { return "build" }
func (s *BuildStep) Name() string { return "Build model specifications" }

func (s *BuildStep) Run(ctx context.Context, state *RunState) error {
	for _, variant := range state.Variants {
		specs, err := s.builder.Build(variant)
		if err != nil {
			return fmt.Errorf("build variant %s: %w", variant, err)
		}
		state.Specs[variant] = specs
		for _, spec := range specs {
			state.AddSpec(variant, spec)
		}
		s.logger.InfoContext(ctx, "built specifications",
			slog.String("variant", variant),
			slog.Int("count", len(specs)))
	}
	return nil
}

// EstimateStep fits every specification. Specifications are independent,
// so the fan-out is bounded-parallel; a failed specification is recorded
// on its state and the run continues.
type EstimateStep struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewEstimateStep(cfg *config.Config, logger *slog.Logger) *EstimateStep {
	return &EstimateStep{cfg: cfg, logger: logger}
}

func (s *EstimateStep) ID() string   { return "estimate" }
func (s *EstimateStep) Name() string { return "Estimate specifications" }

func (s *EstimateStep) Run(ctx context.Context, state *RunState) error {
	est := s.cfg.Estimation
	fels := regression.NewFELS(est.AbsorbTol, est.AbsorbMaxIter, s.logger)
	tsls := regression.NewTwoStageLS(est.AbsorbTol, est.AbsorbMaxIter, s.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(est.MaxConcurrency)

	for _, variant := range state.Variants {
		for _, spec := range state.Specs[variant] {
			variant, spec := variant, spec
			specState := state.SpecStates[spec.Name]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					specState.Fail(err)
					return nil
				}
				specState.Start()
				estimation, err := s.estimateOne(gctx, fels, tsls, state, variant, spec)
				if err != nil {
					// Per-spec isolation: record, report, continue.
					specState.Fail(err)
					s.logger.ErrorContext(gctx, "specification failed",
						slog.String("variant", variant),
						slog.String("spec", spec.Name),
						slog.String("error", err.Error()))
					return nil
				}
				state.StoreEstimation(estimation)
				specState.Complete()
				return nil
			})
		}
	}

	return g.Wait()
}

// estimateOne fits a single specification and runs its configured linear
// restriction tests.
func (s *EstimateStep) estimateOne(ctx context.Context, fels *regression.FELS, tsls *regression.TwoStageLS, state *RunState, variant string, spec *model.Spec) (*Estimation, error) {
	design, err := regression.NewDesign(state.Table, spec)
	if err != nil {
		return nil, err
	}

	var result *regression.Result
	if spec.IsIV() {
		result, err = tsls.Fit(design)
	} else {
		result, err = fels.Fit(design)
	}
	if err != nil {
		return nil, err
	}

	estimation := &Estimation{Variant: variant, Spec: spec, Result: result}
	for _, constraint := range spec.Constraints {
		wald, err := diagnostics.Wald(result, []string{constraint})
		if err != nil {
			return nil, err
		}
		estimation.Wald = append(estimation.Wald, wald)
	}

	s.logger.InfoContext(ctx, "estimated specification",
		slog.String("variant", variant),
		slog.String("spec", spec.Name),
		slog.Int("n", result.N),
		slog.Float64("r2", result.R2))

	return estimation, nil
}

// ExportStep writes the per-variant tables, the Excel workbook and the raw
// coefficient/covariance artifacts. Failed specifications are simply
// absent from their variant's table.
type ExportStep struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewExportStep(cfg *config.Config, logger *slog.Logger) *ExportStep {
	return &ExportStep{cfg: cfg, logger: logger}
}

func (s *ExportStep) ID() string   { return "export" }
func (s *ExportStep) Name() string { return "Export results" }

func (s *ExportStep) Run(ctx context.Context, state *RunState) error {
	writer := exporter.NewCSVWriter()
	var sheets []exporter.VariantSheet

	for _, variant := range state.Variants {
		var results []*regression.Result
		var display []string
		for _, spec := range state.Specs[variant] {
			est, ok := state.Estimation(spec.Name)
			if !ok {
				continue
			}
			results = append(results, est.Result)
			if len(display) == 0 {
				display = spec.DisplayList()
			}

			if err := exporter.SaveCoefficients(writer, s.cfg.CoefPath(spec.Name), est.Result); err != nil {
				return fmt.Errorf("save coefficients for %s: %w", spec.Name, err)
			}
			if err := exporter.SaveCovariance(writer, s.cfg.CovPath(spec.Name), est.Result); err != nil {
				return fmt.Errorf("save covariance for %s: %w", spec.Name, err)
			}
		}

		if len(results) == 0 {
			s.logger.WarnContext(ctx, "no successful specifications for variant",
				slog.String("variant", variant))
			continue
		}

		opts := exporter.TableOptions{
			Title:   fmt.Sprintf("Flight delay regressions: %s", variant),
			Display: display,
		}
		if err := exporter.WriteText(s.cfg.TablePath(variant), results, opts); err != nil {
			return fmt.Errorf("write table for %s: %w", variant, err)
		}
		sheets = append(sheets, exporter.VariantSheet{Variant: variant, Results: results, Options: opts})

		s.logger.InfoContext(ctx, "exported variant",
			slog.String("variant", variant),
			slog.Int("models", len(results)),
			slog.String("table", s.cfg.TablePath(variant)))
	}

	if len(sheets) > 0 {
		if err := exporter.WriteWorkbook(s.cfg.WorkbookPath(), sheets); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
	}
	return nil
}
