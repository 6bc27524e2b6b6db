package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"delayreg/internal/exporter"
	"delayreg/internal/simulation"
)

var hubLabels = []string{"non_hub", "small_hub", "medium_hub", "large_hub"}

func main() {
	coefPath := flag.String("coef", "", "coefficient CSV exported by the regression pipeline")
	covPath := flag.String("cov", "", "covariance CSV exported by the regression pipeline")
	mode := flag.String("mode", "basic", "coefficient set: basic (pooled HHI) or hub (hub-decomposed)")
	sims := flag.Int("sims", 1000, "number of coefficient draws")
	seed := flag.Uint64("seed", 42, "random seed")
	inputCSV := flag.String("input", "", "airline-airport-month market CSV")
	outputDir := flag.String("out", "results/counterfactual", "output directory")
	weight := flag.String("weight", "ms_x_flights", "slope regression weight: ms, flights, or ms_x_flights")
	flag.Parse()

	if *coefPath == "" || *covPath == "" || *inputCSV == "" {
		slog.Error("Missing required flags", "required", "-coef, -cov, -input")
		os.Exit(1)
	}

	slog.Info("Drawing coefficients", "mode", *mode, "sims", *sims, "seed", *seed)
	var sample *simulation.Sample
	var err error
	switch *mode {
	case "basic":
		sample, err = simulation.BasicSample(*coefPath, *covPath, *sims, *seed)
	case "hub":
		sample, err = simulation.HubSample(*coefPath, *covPath, *sims, *seed)
	default:
		slog.Error("Unknown mode", "mode", *mode, "known", "basic, hub")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to draw coefficients", "error", err)
		os.Exit(1)
	}

	slog.Info("Loading market data", "path", *inputCSV)
	markets, err := simulation.LoadMarkets(*inputCSV)
	if err != nil {
		slog.Error("Failed to load market data", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded market observations", "records", len(markets))

	effects, err := simulation.Effects(markets, sample.Draws)
	if err != nil {
		slog.Error("Failed to compute externality effects", "error", err)
		os.Exit(1)
	}
	slog.Info("Computed externality effects", "markets_kept", effects.N())

	slopes, err := simulation.FindSlopes(effects, simulation.WeightMode(*weight))
	if err != nil {
		slog.Error("Failed to fit slope regressions", "error", err)
		os.Exit(1)
	}

	pointSlopes, err := pointEstimateSlopes(markets, sample.TrueParams, simulation.WeightMode(*weight))
	if err != nil {
		slog.Error("Failed to fit point-estimate slopes", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		slog.Error("Failed to create output directory", "error", err)
		os.Exit(1)
	}

	writer := exporter.NewCSVWriter()

	summaryPath := filepath.Join(*outputDir, fmt.Sprintf("slopes_%s.csv", *mode))
	if err := writeSummary(writer, summaryPath, slopes, pointSlopes); err != nil {
		slog.Error("Failed to save slope summary", "error", err)
		os.Exit(1)
	}
	slog.Info("Saved slope summary", "path", summaryPath)

	probPath := filepath.Join(*outputDir, fmt.Sprintf("prob_greater_%s.csv", *mode))
	if err := writeProbMatrix(writer, probPath, slopes.ProbGreater()); err != nil {
		slog.Error("Failed to save probability matrix", "error", err)
		os.Exit(1)
	}
	slog.Info("Saved probability matrix", "path", probPath)
}

// pointEstimateSlopes refits the hub slopes with a single pseudo-draw fixed
// at the deterministic point estimates.
func pointEstimateSlopes(markets []simulation.MarketObservation, params []float64, mode simulation.WeightMode) ([]float64, error) {
	draws := mat.NewDense(1, len(params), append([]float64(nil), params...))
	effects, err := simulation.Effects(markets, draws)
	if err != nil {
		return nil, err
	}
	slopes, err := simulation.FindSlopes(effects, mode)
	if err != nil {
		return nil, err
	}
	out := make([]float64, simulation.NumHubSizes)
	for h := range out {
		out[h] = slopes.Slopes.At(h, 0)
	}
	return out, nil
}

func writeSummary(w *exporter.CSVWriter, path string, slopes *simulation.SlopeSet, points []float64) error {
	summaries := slopes.Summarize()
	records := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		records = append(records, []string{
			hubLabels[s.HubSize],
			formatFloat(points[s.HubSize]),
			formatFloat(s.Mean),
			formatFloat(s.Median),
			formatFloat(s.Lower),
			formatFloat(s.Upper),
		})
	}
	return w.WriteCSV(path, exporter.WriteOptions{
		Headers: []string{"hub_size", "point", "mean", "median", "p2_5", "p97_5"},
		Records: records,
	})
}

func writeProbMatrix(w *exporter.CSVWriter, path string, prob *mat.Dense) error {
	headers := append([]string{"hub_size"}, hubLabels...)
	records := make([][]string, simulation.NumHubSizes)
	for i := 0; i < simulation.NumHubSizes; i++ {
		row := make([]string, 0, simulation.NumHubSizes+1)
		row = append(row, hubLabels[i])
		for j := 0; j < simulation.NumHubSizes; j++ {
			row = append(row, formatFloat(prob.At(i, j)))
		}
		records[i] = row
	}
	return w.WriteCSV(path, exporter.WriteOptions{Headers: headers, Records: records})
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}
