// Package pipeline implements the train-side signal pipeline: label
// construction, the leakage-safe time-series split and the trainer.
package pipeline

import (
	"fmt"
	"math"

	"github.com/Buezw/HFT-Research/internal/dataset"
)

// ForwardReturns computes the forward percentage return over horizon steps,
// aligned back to the starting index: ret[t] = price[t+h]/price[t] - 1.
// Rows without enough trailing history are NaN.
func ForwardReturns(price []float64, horizon int) []float64 {
	out := make([]float64, len(price))
	for t := range out {
		if t+horizon >= len(price) || price[t] == 0 {
			out[t] = math.NaN()
			continue
		}
		out[t] = price[t+horizon]/price[t] - 1
	}
	return out
}

// MakeLabels derives binary direction labels from the canonical midprice
// series. Label is 1 where the forward return exceeds eps, else 0.
// Undefined rows (series tail) are NaN and dropped later by the splitter.
// With dropEqual and eps > 0, rows with |return| <= eps are also marked
// undefined instead of labeled 0, removing ambiguous near-zero moves from
// training.
func MakeLabels(mid *dataset.Frame, horizon int, eps float64, dropEqual bool) ([]float64, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("pipeline: horizon must be >= 1, got %d", horizon)
	}
	price := mid.Col("midprice")
	if price == nil {
		return nil, fmt.Errorf("pipeline: frame has no midprice column")
	}

	ret := ForwardReturns(price, horizon)
	labels := make([]float64, len(ret))
	for t, r := range ret {
		if math.IsNaN(r) {
			labels[t] = math.NaN()
			continue
		}
		if dropEqual && eps > 0 && math.Abs(r) <= eps {
			labels[t] = math.NaN()
			continue
		}
		if r > eps {
			labels[t] = 1
		} else {
			labels[t] = 0
		}
	}
	return labels, nil
}
