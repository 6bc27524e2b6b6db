package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"delayreg/internal/config"
	"delayreg/internal/infrastructure"
	"delayreg/internal/model"
	"delayreg/internal/pipeline"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file (optional)")
	inputCSV := flag.String("input", "", "flight sample CSV (overrides config)")
	resultsDir := flag.String("out", "", "results directory (overrides config)")
	variantFlag := flag.String("variant", "all", "comma-separated analysis variants to run, or \"all\"")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *inputCSV != "" {
		cfg.Paths.InputCSV = *inputCSV
	}
	if *resultsDir != "" {
		cfg.Paths.ResultsDir = *resultsDir
	}

	variants, err := resolveVariants(*variantFlag)
	if err != nil {
		slog.Error("Invalid variant selection", "error", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirs(); err != nil {
		slog.Error("Failed to create output directories", "error", err)
		os.Exit(1)
	}

	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	shutdown, err := pipeline.InitTracing(cfg.Paths.LogsDir)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()
	defer shutdown(ctx)

	runner := pipeline.NewRunner(cfg, logger)
	state, err := runner.Run(ctx, variants)
	if err != nil {
		logger.Error("Pipeline run failed", "error", err)
		os.Exit(1)
	}

	failed := state.FailedSpecs()
	logger.Info("Pipeline run finished",
		slog.String("run_id", state.ID),
		slog.String("status", string(state.Status)),
		slog.Int("failed_specs", len(failed)))
	if len(failed) > 0 {
		os.Exit(1)
	}
}

// resolveVariants expands "all" and validates each requested variant name.
func resolveVariants(selection string) ([]string, error) {
	if selection == "" || selection == "all" {
		return model.Variants(), nil
	}

	known := make(map[string]bool)
	for _, v := range model.Variants() {
		known[v] = true
	}

	var out []string
	for _, part := range strings.Split(selection, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !known[name] {
			return nil, fmt.Errorf("unknown variant %q (known: %s)", name, strings.Join(model.Variants(), ", "))
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no variants selected")
	}
	return out, nil
}
