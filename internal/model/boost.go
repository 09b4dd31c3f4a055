package model

import (
	"fmt"
	"math"
	"sort"
)

// Stump is a one-split decision rule on a single feature.
type Stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
}

// Boost is a gradient-boosted ensemble of decision stumps fit to the
// logistic loss. It stands in where external gradient boosting libraries
// would be used; training is deterministic.
type Boost struct {
	Stumps []Stump `json:"stumps"`
	Base   float64 `json:"base"`
	LR     float64 `json:"lr"`
	Rounds int     `json:"rounds"`
	// Cuts bounds the number of candidate thresholds per feature.
	Cuts int `json:"cuts"`
}

// NewBoost creates an unfitted boosted-stump classifier with default
// hyperparameters.
func NewBoost() *Boost {
	return &Boost{LR: 0.1, Rounds: 50, Cuts: 16}
}

// Fit trains the ensemble with one stump per round on the logistic
// pseudo-residuals.
func (m *Boost) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("boost: empty training set")
	}

	// base score: log-odds of the positive rate
	pos := 0.0
	for _, v := range y {
		pos += v
	}
	rate := pos / float64(len(y))
	rate = math.Min(math.Max(rate, 1e-6), 1-1e-6)
	m.Base = math.Log(rate / (1 - rate))
	m.Stumps = m.Stumps[:0]

	scores := make([]float64, len(X))
	for i := range scores {
		scores[i] = m.Base
	}

	resid := make([]float64, len(X))
	for round := 0; round < m.Rounds; round++ {
		for i := range X {
			resid[i] = y[i] - sigmoid(scores[i])
		}
		stump, ok := m.bestStump(X, resid)
		if !ok {
			break
		}
		m.Stumps = append(m.Stumps, stump)
		for i := range X {
			scores[i] += m.LR * stump.apply(X[i])
		}
	}
	return nil
}

// Predict returns hard 0/1 labels at the 0.5 probability cut.
func (m *Boost) Predict(X [][]float64) []float64 {
	probs := m.PredictProba(X)
	out := make([]float64, len(probs))
	for i, p := range probs {
		if p > 0.5 {
			out[i] = 1
		}
	}
	return out
}

// PredictProba returns the positive-class probability per row.
func (m *Boost) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		s := m.Base
		for _, st := range m.Stumps {
			s += m.LR * st.apply(X[i])
		}
		out[i] = sigmoid(s)
	}
	return out
}

func (s Stump) apply(x []float64) float64 {
	if s.Feature < len(x) && x[s.Feature] <= s.Threshold {
		return s.Left
	}
	return s.Right
}

// bestStump scans quantile thresholds on every feature and returns the
// least-squares best split against the residuals.
func (m *Boost) bestStump(X [][]float64, resid []float64) (Stump, bool) {
	dim := len(X[0])
	bestSSE := math.Inf(1)
	var best Stump
	found := false

	for j := 0; j < dim; j++ {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		for _, t := range candidateCuts(col, m.Cuts) {
			var sumL, sumR, nL, nR float64
			for i := range col {
				if col[i] <= t {
					sumL += resid[i]
					nL++
				} else {
					sumR += resid[i]
					nR++
				}
			}
			if nL == 0 || nR == 0 {
				continue
			}
			meanL, meanR := sumL/nL, sumR/nR
			var sse float64
			for i := range col {
				var d float64
				if col[i] <= t {
					d = resid[i] - meanL
				} else {
					d = resid[i] - meanR
				}
				sse += d * d
			}
			if sse < bestSSE {
				bestSSE = sse
				best = Stump{Feature: j, Threshold: t, Left: meanL, Right: meanR}
				found = true
			}
		}
	}
	return best, found
}

// candidateCuts returns up to max distinct quantile cut points of a column.
func candidateCuts(col []float64, max int) []float64 {
	sorted := make([]float64, len(col))
	copy(sorted, col)
	sort.Float64s(sorted)

	cuts := make([]float64, 0, max)
	seen := make(map[float64]struct{}, max)
	for k := 1; k <= max; k++ {
		idx := k * len(sorted) / (max + 1)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		v := sorted[idx]
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		cuts = append(cuts, v)
	}
	return cuts
}
