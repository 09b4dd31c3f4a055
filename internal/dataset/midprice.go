package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch indicates the raw input cannot be canonicalized into a
// midprice series.
var ErrSchemaMismatch = errors.New("schema mismatch")

// BuildMidprice normalizes a raw tick table into the canonical
// (ts_ns, midprice) frame. Resolution order, first match wins:
//
//  1. an explicit midprice column is used as-is
//  2. bid/ask columns: midprice = (bid+ask)/2
//  3. side/price columns: BUY and SELL rows are paired positionally as
//     top-of-book snapshots and averaged; mismatched counts fail
//  4. a single price column is used directly
//
// A close column equal to midprice is always added for factor code that
// expects it. Only same-row fields are read, so the output never contains
// forward-looking information.
func BuildMidprice(raw *Raw) (*Frame, error) {
	var (
		mid *Frame
		err error
	)

	switch {
	case raw.HasFloat("midprice"):
		mid = copyFloats(raw)

	case raw.HasFloat("bid") && raw.HasFloat("ask"):
		mid = copyFloats(raw)
		bid, ask := raw.Floats["bid"], raw.Floats["ask"]
		m := make([]float64, raw.N)
		for i := range m {
			m[i] = (bid[i] + ask[i]) / 2
		}
		if err = mid.Set("midprice", m); err != nil {
			return nil, err
		}

	case raw.HasString("side") && raw.HasFloat("price"):
		mid, err = pairSides(raw)
		if err != nil {
			return nil, err
		}

	case raw.HasFloat("price"):
		mid = copyFloats(raw)
		p := make([]float64, raw.N)
		copy(p, raw.Floats["price"])
		if err = mid.Set("midprice", p); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: no midprice, bid/ask, side/price or price columns (have: %s)",
			ErrSchemaMismatch, strings.Join(raw.Names, ", "))
	}

	if !mid.Has("ts_ns") && mid.Has("timestamp") {
		ts := mid.Col("timestamp")
		mid.Drop("timestamp")
		if err := mid.Set("ts_ns", ts); err != nil {
			return nil, err
		}
	}

	close := make([]float64, mid.Len())
	copy(close, mid.Col("midprice"))
	if err := mid.Set("close", close); err != nil {
		return nil, err
	}

	return mid, nil
}

// pairSides builds the canonical frame from separate BUY/SELL event rows.
// Rows are paired by position, not by time-join; BUY prices become the bid
// side, SELL prices the ask side, so book factors keep working on paired
// snapshot data.
func pairSides(raw *Raw) (*Frame, error) {
	side := raw.Strings["side"]
	var buyRows, sellRows []int
	for i, s := range side {
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case "BUY":
			buyRows = append(buyRows, i)
		case "SELL":
			sellRows = append(sellRows, i)
		}
	}
	if len(buyRows) != len(sellRows) {
		return nil, fmt.Errorf("%w: %d BUY rows vs %d SELL rows, cannot pair top-of-book snapshots",
			ErrSchemaMismatch, len(buyRows), len(sellRows))
	}

	n := len(buyRows)
	mid := NewFrame()

	price := raw.Floats["price"]
	take := func(src []float64, rows []int) []float64 {
		out := make([]float64, n)
		for i, r := range rows {
			out[i] = src[r]
		}
		return out
	}

	ts := raw.Floats["ts_ns"]
	if ts == nil {
		ts = raw.Floats["timestamp"]
	}
	if ts != nil {
		if err := mid.Set("ts_ns", take(ts, buyRows)); err != nil {
			return nil, err
		}
	}

	bid := take(price, buyRows)
	ask := take(price, sellRows)
	m := make([]float64, n)
	for i := range m {
		m[i] = (bid[i] + ask[i]) / 2
	}
	if err := mid.Set("midprice", m); err != nil {
		return nil, err
	}
	if err := mid.Set("bid", bid); err != nil {
		return nil, err
	}
	if err := mid.Set("ask", ask); err != nil {
		return nil, err
	}

	if qty := raw.Floats["qty"]; qty != nil {
		if err := mid.Set("bid_qty", take(qty, buyRows)); err != nil {
			return nil, err
		}
		if err := mid.Set("ask_qty", take(qty, sellRows)); err != nil {
			return nil, err
		}
	}

	return mid, nil
}

// copyFloats copies every numeric column of the raw table into a frame,
// preserving column order.
func copyFloats(raw *Raw) *Frame {
	mid := NewFrame()
	for _, name := range raw.Names {
		src, ok := raw.Floats[name]
		if !ok {
			continue
		}
		vals := make([]float64, len(src))
		copy(vals, src)
		mid.Set(name, vals)
	}
	return mid
}
