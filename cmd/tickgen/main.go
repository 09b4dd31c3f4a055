// Package main is the synthetic tick generator CLI. It converts daily
// OHLCV bars into paired top-of-book ticks in the pipeline's input schema.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Buezw/HFT-Research/internal/tickgen"
	"go.uber.org/zap"
)

func main() {
	barsPath := flag.String("bars", "data/daily_bars.csv", "Daily OHLCV CSV path")
	outPath := flag.String("out", "data/orderbook_top_ticks.csv", "Output tick CSV path")
	spread := flag.Float64("spread", 0.02, "Top-of-book spread in price units")
	tickSize := flag.Float64("tick", 0.01, "Price grid")
	lot := flag.Int64("lot", 10, "Quantity granularity")
	seed := flag.Int64("seed", 42, "Random seed")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	bars, err := tickgen.LoadBars(*barsPath)
	if err != nil {
		logger.Error("load bars", zap.Error(err))
		os.Exit(1)
	}
	if len(bars) == 0 {
		fmt.Fprintln(os.Stderr, "tickgen: no usable bars in", *barsPath)
		os.Exit(1)
	}

	cfg := tickgen.DefaultConfig()
	cfg.Spread = *spread
	cfg.TickSize = *tickSize
	cfg.Lot = *lot
	cfg.Seed = *seed

	gen := tickgen.NewGenerator(logger, cfg)
	if err := gen.Generate(bars, *outPath); err != nil {
		logger.Error("generate ticks", zap.Error(err))
		os.Exit(1)
	}
}
