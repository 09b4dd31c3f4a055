// Package tickgen turns daily OHLCV bars into synthetic paired top-of-book
// tick data matching the pipeline's input CSV schema.
package tickgen

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config controls the generated order book texture.
type Config struct {
	// Spread is the top-of-book bid/ask spread in price units.
	Spread float64
	// TickSize is the price grid every quote is rounded to.
	TickSize float64
	// Lot is the quantity granularity.
	Lot int64
	// StartNs is the first timestamp; each tick advances 50-200us.
	StartNs int64
	// Seed makes generation deterministic.
	Seed int64
}

// DefaultConfig mirrors the historical generator parameters.
func DefaultConfig() Config {
	return Config{
		Spread:   0.02,
		TickSize: 0.01,
		Lot:      10,
		StartNs:  1_600_000_000_000_000_000,
		Seed:     42,
	}
}

// Bar is one daily OHLCV row.
type Bar struct {
	Open, High, Low, Close, Volume float64
}

// Generator writes synthetic paired BUY/SELL ticks.
type Generator struct {
	logger *zap.Logger
	cfg    Config
	rng    *rand.Rand
	tick   decimal.Decimal
}

// NewGenerator creates a deterministic generator.
func NewGenerator(logger *zap.Logger, cfg Config) *Generator {
	return &Generator{
		logger: logger,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		tick:   decimal.NewFromFloat(cfg.TickSize),
	}
}

// LoadBars reads a daily OHLCV CSV, accepting prefixed column names such as
// AAPL.Open.
func LoadBars(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tickgen: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("tickgen: read %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("tickgen: %s has no data rows", path)
	}

	cols := map[string]int{}
	for j, name := range records[0] {
		lc := strings.ToLower(name)
		switch {
		case strings.HasSuffix(lc, "open") || lc == "open":
			cols["open"] = j
		case strings.Contains(lc, "high"):
			cols["high"] = j
		case strings.Contains(lc, "low"):
			cols["low"] = j
		case strings.Contains(lc, "close"):
			cols["close"] = j
		case strings.Contains(lc, "volume") || lc == "vol":
			cols["volume"] = j
		}
	}
	for _, need := range []string{"open", "high", "low", "close", "volume"} {
		if _, ok := cols[need]; !ok {
			return nil, fmt.Errorf("tickgen: %s is missing a %s column", path, need)
		}
	}

	var bars []Bar
	for _, rec := range records[1:] {
		get := func(key string) (float64, error) {
			j := cols[key]
			if j >= len(rec) {
				return 0, fmt.Errorf("short row")
			}
			return strconv.ParseFloat(rec[j], 64)
		}
		o, err1 := get("open")
		h, err2 := get("high")
		l, err3 := get("low")
		c, err4 := get("close")
		v, err5 := get("volume")
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue // skip unparsable rows, matching the historical generator
		}
		bars = append(bars, Bar{Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	return bars, nil
}

// Generate writes the tick CSV (ts_ns,side,price,qty) for the given bars:
// for each day, a brownian-bridge midprice path from open to close clipped
// into [low, high], with paired BUY/SELL rows per snapshot.
func (g *Generator) Generate(bars []Bar, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("tickgen: create %s: %w", outPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"ts_ns", "side", "price", "qty"}); err != nil {
		return err
	}

	halfSpread := decimal.NewFromFloat(g.cfg.Spread / 2)
	ts := g.cfg.StartNs
	var total int

	for _, bar := range bars {
		n := ticksPerDay(bar.Volume)
		if n <= 0 {
			continue
		}
		path := g.brownianBridge(n, bar.Open, bar.Close, bar.Low, bar.High, 0.25)

		for i := 0; i < n; i++ {
			ts += 50_000 + g.rng.Int63n(150_000)
			mid := g.roundTick(decimal.NewFromFloat(path[i]))
			bid := g.roundTick(mid.Sub(halfSpread))
			ask := g.roundTick(mid.Add(halfSpread))

			qty := int64(bar.Volume/float64(n)*(0.5+g.rng.Float64())) / g.cfg.Lot * g.cfg.Lot
			if qty < g.cfg.Lot {
				qty = g.cfg.Lot
			}
			q := strconv.FormatInt(qty, 10)
			t := strconv.FormatInt(ts, 10)

			if err := w.Write([]string{t, "BUY", bid.StringFixed(2), q}); err != nil {
				return err
			}
			if err := w.Write([]string{t, "SELL", ask.StringFixed(2), q}); err != nil {
				return err
			}
			total++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("tickgen: write %s: %w", outPath, err)
	}
	g.logger.Info("synthetic ticks written",
		zap.String("path", outPath),
		zap.Int("snapshots", total),
	)
	return nil
}

// roundTick snaps a price to the tick grid at two decimal places.
func (g *Generator) roundTick(p decimal.Decimal) decimal.Decimal {
	return p.Div(g.tick).Round(0).Mul(g.tick).Round(2)
}

// ticksPerDay allocates snapshots by volume, bounded to keep days neither
// empty nor enormous.
func ticksPerDay(volume float64) int {
	n := int(volume / 1000)
	if n < 200 {
		return 200
	}
	if n > 5000 {
		return 5000
	}
	return n
}

// brownianBridge returns an n-point path from start to end clipped into
// [low, high].
func (g *Generator) brownianBridge(n int, start, end, low, high, vol float64) []float64 {
	scale := vol / math.Sqrt(float64(n))
	bm := make([]float64, n)
	var sum float64
	for i := range bm {
		sum += g.rng.NormFloat64() * scale
		bm[i] = sum
	}
	last := bm[n-1]

	out := make([]float64, n)
	for i := range out {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		v := start + (end-start)*t + (bm[i] - t*last)
		out[i] = math.Min(math.Max(v, low), high)
	}
	return out
}
