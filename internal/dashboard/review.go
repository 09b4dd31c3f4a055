// Package dashboard re-derives PnL from executed-trade logs for visual
// review, independently of the backtester's own accounting.
package dashboard

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Point is one step of the cumulative fee-adjusted PnL curve.
type Point struct {
	TS     string          `json:"ts"`
	Side   string          `json:"side"`
	PnL    decimal.Decimal `json:"pnl"`
	CumPnL decimal.Decimal `json:"cum_pnl"`
}

// Review is the derived PnL summary of one trade log.
type Review struct {
	Points   []Point         `json:"points"`
	Trades   int             `json:"trades"`
	Volume   decimal.Decimal `json:"volume"`
	GrossPnL decimal.Decimal `json:"gross_pnl"`
	Fees     decimal.Decimal `json:"fees"`
	NetPnL   decimal.Decimal `json:"net_pnl"`
}

// Reviewer replays a trade log with fee-adjusted cashflows: buys are
// treated as taker fills, sells as maker fills.
type Reviewer struct {
	logger   *zap.Logger
	makerFee decimal.Decimal // fraction, not bps
	takerFee decimal.Decimal
}

// NewReviewer creates a reviewer with maker/taker fees in basis points.
func NewReviewer(logger *zap.Logger, makerBps, takerBps float64) *Reviewer {
	bps := decimal.NewFromInt(10_000)
	return &Reviewer{
		logger:   logger,
		makerFee: decimal.NewFromFloat(makerBps).Div(bps),
		takerFee: decimal.NewFromFloat(takerBps).Div(bps),
	}
}

// FromCSV reads an executed-trades log (ts_ns,side,price,qty,...) and
// returns the cumulative fee-adjusted cashflow curve.
func (r *Reviewer) FromCSV(path string) (*Review, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dashboard: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dashboard: read %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("dashboard: %s is empty", path)
	}

	cols := map[string]int{}
	for j, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = j
	}
	for _, need := range []string{"ts_ns", "side", "price", "qty"} {
		if _, ok := cols[need]; !ok {
			return nil, fmt.Errorf("dashboard: %s is missing column %q", path, need)
		}
	}

	review := &Review{}
	cum := decimal.Zero

	for _, rec := range records[1:] {
		side := strings.ToUpper(strings.TrimSpace(rec[cols["side"]]))
		price, err := decimal.NewFromString(rec[cols["price"]])
		if err != nil {
			continue // skip unparsable rows like the historical review script
		}
		qty, err := decimal.NewFromString(rec[cols["qty"]])
		if err != nil {
			continue
		}

		notional := price.Mul(qty)
		var cashflow, fee decimal.Decimal
		switch side {
		case "BUY":
			fee = notional.Mul(r.takerFee)
			cashflow = notional.Neg().Sub(fee)
		case "SELL":
			fee = notional.Mul(r.makerFee)
			cashflow = notional.Sub(fee)
		default:
			continue
		}

		cum = cum.Add(cashflow)
		review.Points = append(review.Points, Point{
			TS:     rec[cols["ts_ns"]],
			Side:   side,
			PnL:    cashflow,
			CumPnL: cum,
		})
		review.Trades++
		review.Volume = review.Volume.Add(notional)
		review.GrossPnL = review.GrossPnL.Add(cashflow.Add(fee))
		review.Fees = review.Fees.Add(fee)
	}
	review.NetPnL = cum

	r.logger.Info("trade log reviewed",
		zap.String("path", path),
		zap.Int("trades", review.Trades),
		zap.String("net_pnl", review.NetPnL.String()),
	)
	return review, nil
}
