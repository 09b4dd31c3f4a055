package model

import (
	"fmt"
	"math"
)

// Scaler standardizes features to zero mean and unit variance per column.
// It is fitted on the training partition only and then applied to both
// partitions, so it never observes test data during fitting.
type Scaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// NewScaler creates an unfitted scaler.
func NewScaler() *Scaler {
	return &Scaler{}
}

// Fit estimates per-column mean and standard deviation.
func (s *Scaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("scaler: empty input")
	}
	dim := len(X[0])
	s.Means = make([]float64, dim)
	s.Stds = make([]float64, dim)
	n := float64(len(X))

	for j := 0; j < dim; j++ {
		var sum float64
		for i := range X {
			sum += X[i][j]
		}
		s.Means[j] = sum / n

		var ss float64
		for i := range X {
			d := X[i][j] - s.Means[j]
			ss += d * d
		}
		s.Stds[j] = math.Sqrt(ss / n)
		if s.Stds[j] == 0 {
			s.Stds[j] = 1
		}
	}
	return nil
}

// Transform returns a standardized copy of X.
func (s *Scaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		row := make([]float64, len(X[i]))
		for j := range row {
			if j < len(s.Means) {
				row[j] = (X[i][j] - s.Means[j]) / s.Stds[j]
			} else {
				row[j] = X[i][j]
			}
		}
		out[i] = row
	}
	return out
}

// FitTransform fits on X and returns its standardized copy.
func (s *Scaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X), nil
}
