package factor

import (
	"fmt"
	"math"

	"github.com/Buezw/HFT-Research/internal/dataset"
)

// Builtin returns a registry pre-populated with the standard factor set.
func Builtin() *Registry {
	r := NewRegistry()

	r.Register(Meta{
		Name:        "momentum_5",
		Category:    "price",
		Desc:        "5-tick momentum",
		Formula:     "Momentum_5(t) = P_t / P_{t-5} - 1",
		Explanation: "Percentage price change over the past 5 ticks.",
	}, momentum(5))

	r.Register(Meta{
		Name:        "momentum_20",
		Category:    "price",
		Desc:        "20-tick momentum",
		Formula:     "Momentum_20(t) = P_t / P_{t-20} - 1",
		Explanation: "Percentage price change over the past 20 ticks.",
	}, momentum(20))

	r.Register(Meta{
		Name:        "spread",
		Category:    "liquidity",
		Desc:        "Bid-ask spread",
		Formula:     "Spread(t) = Ask_1(t) - Bid_1(t)",
		Explanation: "Price difference between the best ask and best bid, reflecting market liquidity.",
	}, spread)

	r.Register(Meta{
		Name:        "order_imbalance",
		Category:    "liquidity",
		Desc:        "Order book imbalance",
		Formula:     "OI(t) = (Q_bid(t) - Q_ask(t)) / (Q_bid(t) + Q_ask(t))",
		Explanation: "Imbalance between bid and ask order quantities, indicating buy/sell pressure.",
	}, orderImbalance)

	r.Register(Meta{
		Name:        "realized_vol_20",
		Category:    "volatility",
		Desc:        "20-tick realized volatility",
		Formula:     "RV_20(t) = std(r_{t-19}..r_t), r_t = P_t / P_{t-1} - 1",
		Explanation: "Rolling standard deviation of one-tick returns over 20 ticks.",
	}, realizedVol(20))

	return r
}

// momentum returns a k-step percentage change factor on midprice.
func momentum(k int) Func {
	return func(f *dataset.Frame) ([]float64, error) {
		mid := f.Col("midprice")
		if mid == nil {
			return nil, fmt.Errorf("missing midprice column")
		}
		return pctChange(mid, k), nil
	}
}

func spread(f *dataset.Frame) ([]float64, error) {
	bid, ask := f.Col("bid"), f.Col("ask")
	if bid == nil || ask == nil {
		return nil, fmt.Errorf("missing bid/ask columns")
	}
	out := make([]float64, f.Len())
	for i := range out {
		out[i] = ask[i] - bid[i]
	}
	return out, nil
}

func orderImbalance(f *dataset.Frame) ([]float64, error) {
	bq, aq := f.Col("bid_qty"), f.Col("ask_qty")
	if bq == nil || aq == nil {
		// some feeds label depth as volumes
		bq, aq = f.Col("bid_vol"), f.Col("ask_vol")
	}
	if bq == nil || aq == nil {
		return nil, fmt.Errorf("missing bid_qty/ask_qty columns")
	}
	out := make([]float64, f.Len())
	for i := range out {
		denom := bq[i] + aq[i]
		if denom == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (bq[i] - aq[i]) / denom
	}
	return out, nil
}

// realizedVol returns a rolling sample standard deviation of one-tick
// returns over a w-tick window.
func realizedVol(w int) Func {
	return func(f *dataset.Frame) ([]float64, error) {
		mid := f.Col("midprice")
		if mid == nil {
			return nil, fmt.Errorf("missing midprice column")
		}
		rets := pctChange(mid, 1)
		out := make([]float64, len(mid))
		for i := range out {
			if i < w {
				out[i] = math.NaN()
				continue
			}
			out[i] = sampleStd(rets[i-w+1 : i+1])
		}
		return out, nil
	}
}

// pctChange computes k-step percentage changes; the leading k entries are
// NaN.
func pctChange(vals []float64, k int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		if i < k || vals[i-k] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = vals[i]/vals[i-k] - 1
	}
	return out
}

// sampleStd is the sample standard deviation (ddof=1); NaN inputs give NaN.
func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}
