package model

import (
	"fmt"
	"math"
)

// Logit is an L2-regularized logistic regression trained by stochastic
// gradient descent. Weights initialize to zero so training is deterministic
// and fitted artifacts are reproducible.
type Logit struct {
	W  []float64 `json:"w"`
	B  float64   `json:"b"`
	LR float64   `json:"lr"`
	L2 float64   `json:"l2"`
	Ep int       `json:"epochs"`
}

// NewLogit creates an unfitted logistic regression with default
// hyperparameters.
func NewLogit() *Logit {
	return &Logit{LR: 0.1, L2: 1e-4, Ep: 200}
}

// Fit trains on the full dataset for a fixed number of epochs.
func (m *Logit) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("logit: empty training set")
	}
	dim := len(X[0])
	m.W = make([]float64, dim)
	m.B = 0

	for e := 0; e < m.Ep; e++ {
		for i := range X {
			p := sigmoid(m.score(X[i]))
			grad := p - y[i]
			for j := 0; j < dim; j++ {
				m.W[j] -= m.LR * (grad*X[i][j] + m.L2*m.W[j])
			}
			m.B -= m.LR * grad
		}
	}
	return nil
}

// Predict returns hard 0/1 labels at the 0.5 probability cut.
func (m *Logit) Predict(X [][]float64) []float64 {
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
func (m *Logit) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = sigmoid(m.score(X[i]))
	}
	return out
}

func (m *Logit) score(x []float64) float64 {
	z := m.B
	for j := range m.W {
		if j < len(x) {
			z += m.W[j] * x[j]
		}
	}
	return z
}

// sigmoid is 1/(1+e^-x) with clamping for numerical stability.
func sigmoid(x float64) float64 {
	if x > 20 {
		return 1
	}
	if x < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}
