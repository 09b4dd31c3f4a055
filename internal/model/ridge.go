package model

import (
	"fmt"
)

// Ridge is an L2-regularized linear regressor trained by full-batch
// gradient descent. It covers the regression task of the registry.
type Ridge struct {
	W  []float64 `json:"w"`
	B  float64   `json:"b"`
	LR float64   `json:"lr"`
	L2 float64   `json:"l2"`
	Ep int       `json:"epochs"`
}

// NewRidge creates an unfitted ridge regressor with default
// hyperparameters.
func NewRidge() *Ridge {
	return &Ridge{LR: 0.05, L2: 1e-3, Ep: 500}
}

// Fit trains on the full dataset for a fixed number of epochs.
func (m *Ridge) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("ridge: empty training set")
	}
	dim := len(X[0])
	m.W = make([]float64, dim)
	m.B = 0
	n := float64(len(X))

	gradW := make([]float64, dim)
	for e := 0; e < m.Ep; e++ {
		for j := range gradW {
			gradW[j] = 0
		}
		var gradB float64
		for i := range X {
			diff := m.predictOne(X[i]) - y[i]
			for j := 0; j < dim; j++ {
				gradW[j] += diff * X[i][j]
			}
			gradB += diff
		}
		for j := 0; j < dim; j++ {
			m.W[j] -= m.LR * (gradW[j]/n + m.L2*m.W[j])
		}
		m.B -= m.LR * gradB / n
	}
	return nil
}

// Predict returns the fitted linear response per row.
func (m *Ridge) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = m.predictOne(X[i])
	}
	return out
}

func (m *Ridge) predictOne(x []float64) float64 {
	z := m.B
	for j := range m.W {
		if j < len(x) {
			z += m.W[j] * x[j]
		}
	}
	return z
}
