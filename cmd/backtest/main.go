// Package main is the backtest CLI. It reloads a persisted training run,
// re-derives forward returns from the raw data and prints the full
// diagnostics payload as JSON on stdout.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/Buezw/HFT-Research/internal/artifact"
	"github.com/Buezw/HFT-Research/internal/backtest"
	"github.com/Buezw/HFT-Research/internal/model"
	"go.uber.org/zap"
)

func main() {
	artDir := flag.String("artdir", "", "Artifact directory of the run to evaluate (required)")
	dataPath := flag.String("data", "data/orderbook_top_ticks.csv", "Tick data CSV path")
	horizon := flag.Int("horizon", 5, "Forward-return horizon in ticks; must match training")
	outFile := flag.String("json", "", "Also write the payload to this file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logger := cliLogger(*verbose)
	defer logger.Sync()

	if *artDir == "" {
		fmt.Fprintln(os.Stderr, "backtest: --artdir is required")
		os.Exit(1)
	}

	runner := backtest.NewRunner(logger, artifact.NewStore(logger), model.Builtin())
	payload, err := runner.Run(*artDir, *dataPath, *horizon)
	if err != nil {
		logger.Error("backtest failed", zap.Error(err))
		os.Exit(1)
	}

	if *outFile != "" {
		if err := runner.WriteJSON(payload, *outFile); err != nil {
			logger.Error("write payload", zap.Error(err))
			os.Exit(1)
		}
	}

	out, err := json.Marshal(payload)
	if err != nil {
		logger.Error("marshal payload", zap.Error(err))
		os.Exit(1)
	}
	fmt.Println(string(out))
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
