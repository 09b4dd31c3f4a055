package model

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

// separable 1-d dataset: negatives below zero, positives above
func separable() ([][]float64, []float64) {
	X := [][]float64{{-2}, {-1.5}, {-1}, {-0.5}, {0.5}, {1}, {1.5}, {2}}
	y := []float64{0, 0, 0, 0, 1, 1, 1, 1}
	return X, y
}

func TestLogitLearnsSeparableData(t *testing.T) {
	X, y := separable()
	m := NewLogit()
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	pred := m.Predict(X)
	for i := range y {
		if pred[i] != y[i] {
			t.Errorf("pred[%d] = %v, want %v", i, pred[i], y[i])
		}
	}

	probs := m.PredictProba(X)
	for i := 1; i < len(probs); i++ {
		if probs[i] < probs[i-1] {
			t.Fatalf("probabilities not monotone in the feature: %v", probs)
		}
	}
}

func TestLogitDeterministic(t *testing.T) {
	X, y := separable()
	a, b := NewLogit(), NewLogit()
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	for j := range a.W {
		if a.W[j] != b.W[j] {
			t.Fatalf("weights differ between identical fits: %v vs %v", a.W, b.W)
		}
	}
	if a.B != b.B {
		t.Fatalf("bias differs: %v vs %v", a.B, b.B)
	}
}

func TestLogitEmptyTrainingSet(t *testing.T) {
	if err := NewLogit().Fit(nil, nil); err == nil {
		t.Fatal("expected error on empty training set")
	}
}

func TestBoostLearnsSeparableData(t *testing.T) {
	X, y := separable()
	m := NewBoost()
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	pred := m.Predict(X)
	for i := range y {
		if pred[i] != y[i] {
			t.Errorf("pred[%d] = %v, want %v", i, pred[i], y[i])
		}
	}
	probs := m.PredictProba(X)
	for _, p := range probs {
		if p < 0 || p > 1 {
			t.Fatalf("probability %v out of [0,1]", p)
		}
	}
}

func TestRidgeFitsLinearTarget(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {4}}
	y := []float64{1, 3, 5, 7, 9} // y = 2x + 1
	m := NewRidge()
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	pred := m.Predict(X)
	for i := range y {
		if math.Abs(pred[i]-y[i]) > 0.5 {
			t.Errorf("pred[%d] = %v, want approx %v", i, pred[i], y[i])
		}
	}
}

func TestModelJSONRoundTrip(t *testing.T) {
	X, y := separable()
	m := NewLogit()
	if err := m.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	restored := &Logit{}
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatal(err)
	}

	orig := m.PredictProba(X)
	back := restored.PredictProba(X)
	for i := range orig {
		if orig[i] != back[i] {
			t.Fatalf("probabilities changed after round trip: %v vs %v", orig[i], back[i])
		}
	}
}

func TestScalerStandardizes(t *testing.T) {
	X := [][]float64{{1, 10}, {2, 10}, {3, 10}}
	s := NewScaler()
	out, err := s.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform: %v", err)
	}

	// first column standardized, constant column untouched by the unit-std
	// fallback
	if math.Abs(out[0][0]+math.Sqrt(1.5)) > 1e-9 {
		t.Errorf("out[0][0] = %v", out[0][0])
	}
	if out[1][0] != 0 {
		t.Errorf("mean row should map to 0, got %v", out[1][0])
	}
	for i := range out {
		if out[i][1] != 0 {
			t.Errorf("constant column should map to 0, got %v", out[i][1])
		}
	}

	// transform of fresh data reuses the fitted statistics
	fresh := s.Transform([][]float64{{2, 10}})
	if fresh[0][0] != 0 || fresh[0][1] != 0 {
		t.Errorf("Transform = %v, want [0 0]", fresh[0])
	}
}

func TestRegistryNewAndNotFound(t *testing.T) {
	r := Builtin()

	task, m, err := r.New("logit")
	if err != nil {
		t.Fatalf("New(logit): %v", err)
	}
	if task != TaskClassification {
		t.Errorf("task = %v, want classification", task)
	}
	if _, ok := m.(Classifier); !ok {
		t.Error("logit should implement Classifier")
	}

	task, _, err = r.New("ridge")
	if err != nil {
		t.Fatalf("New(ridge): %v", err)
	}
	if task != TaskRegression {
		t.Errorf("ridge task = %v, want regression", task)
	}

	if _, _, err := r.New("nonsense"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
