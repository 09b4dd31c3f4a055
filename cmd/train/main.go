// Package main is the training CLI. It loads tick data, runs one training
// cycle and writes the artifacts to --outdir. The run metadata JSON goes to
// stdout so callers can capture it; everything human-readable goes to
// stderr.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Buezw/HFT-Research/internal/artifact"
	"github.com/Buezw/HFT-Research/internal/config"
	"github.com/Buezw/HFT-Research/internal/dataset"
	"github.com/Buezw/HFT-Research/internal/factor"
	"github.com/Buezw/HFT-Research/internal/model"
	"github.com/Buezw/HFT-Research/internal/pipeline"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

func main() {
	dataPath := flag.String("data", "data/orderbook_top_ticks.csv", "Tick data CSV path")
	modelName := flag.String("model", "logit", "Model name")
	factorList := flag.String("factors", "", "Comma-separated factor names (default: configs/factors.yaml, else momentum_5)")
	factorsFile := flag.String("factors-file", "configs/factors.yaml", "Factor list YAML, used when --factors is empty")
	horizon := flag.Int("horizon", 5, "Forward-return horizon in ticks")
	eps := flag.Float64("eps", 0, "Dead zone half-width for labels")
	dropEqual := flag.Bool("drop_equal", false, "Drop rows with |return| <= eps instead of labelling them 0")
	scale := flag.Bool("scale", false, "Standardize features on train statistics")
	testSize := flag.Float64("test_size", 1.0/6.0, "Fraction of valid rows held out for test")
	outDir := flag.String("outdir", "", "Artifact output directory (required)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logger := cliLogger(*verbose)
	defer logger.Sync()

	if *outDir == "" {
		fmt.Fprintln(os.Stderr, "train: --outdir is required")
		os.Exit(1)
	}

	factors := splitNames(*factorList)
	if len(factors) == 0 {
		if names, err := config.LoadFactorNames(*factorsFile); err == nil && len(names) > 0 {
			factors = names
		} else {
			factors = []string{"momentum_5"}
		}
	}

	raw, err := dataset.LoadCSV(*dataPath)
	if err != nil {
		fatal(logger, err)
	}

	trainer := pipeline.NewTrainer(logger, factor.Builtin(), model.Builtin())
	res, err := trainer.Train(raw, pipeline.TrainParams{
		FactorNames: factors,
		ModelName:   *modelName,
		Horizon:     *horizon,
		Eps:         *eps,
		DropEqual:   *dropEqual,
		TestSize:    *testSize,
		Scale:       *scale,
	})
	if err != nil {
		fatal(logger, err)
	}
	for _, f := range res.Failures {
		logger.Warn("factor failed", zap.String("factor", f.Name), zap.Error(f.Err))
	}

	store := artifact.NewStore(logger)
	meta := artifact.Meta{
		Factors:  factors,
		Horizon:  *horizon,
		Eps:      *eps,
		TestSize: *testSize,
	}
	if err := store.Save(*outDir, res, meta); err != nil {
		fatal(logger, err)
	}

	printSummary(res, *outDir)

	saved, err := store.LoadMeta(*outDir)
	if err != nil {
		fatal(logger, err)
	}
	out, err := json.Marshal(saved)
	if err != nil {
		fatal(logger, err)
	}
	fmt.Println(string(out))
}

// printSummary renders a metric table on stderr.
func printSummary(res *pipeline.TrainResult, outDir string) {
	table := tablewriter.NewWriter(os.Stderr)
	table.Header("Metric", "Value")
	table.Append("model", res.ModelName)
	table.Append("task", string(res.Task))
	table.Append("features", strings.Join(res.Features, ", "))
	table.Append("test rows", fmt.Sprintf("%d", len(res.YTest)))
	for _, k := range []string{"accuracy", "auc", "mse", "r2"} {
		if v, ok := res.Metrics[k]; ok {
			table.Append(k, fmt.Sprintf("%.6f", v))
		}
	}
	table.Append("outdir", outDir)
	table.Render()
}

func splitNames(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func fatal(logger *zap.Logger, err error) {
	logger.Error("training failed", zap.Error(err))
	os.Exit(1)
}

// cliLogger logs to stderr so stdout stays parseable.
func cliLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
