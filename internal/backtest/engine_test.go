package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Buezw/HFT-Research/internal/artifact"
	"github.com/Buezw/HFT-Research/internal/dataset"
	"github.com/Buezw/HFT-Research/internal/factor"
	"github.com/Buezw/HFT-Research/internal/model"
	"github.com/Buezw/HFT-Research/internal/pipeline"
	"go.uber.org/zap"
)

// writeTicks writes a midprice CSV with a zig-zag path long enough for a
// full train/backtest cycle.
func writeTicks(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticks.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	fmt.Fprintln(f, "ts_ns,midprice")
	p := 100.0
	for i := 0; i < n; i++ {
		if i%8 < 4 {
			p *= 1.002
		} else {
			p *= 0.998
		}
		fmt.Fprintf(f, "%d,%s\n", 1_600_000_000_000_000_000+int64(i)*100_000, strconv.FormatFloat(p, 'g', -1, 64))
	}
	return path
}

// trainRun trains on the CSV and saves artifacts, returning the run dir.
func trainRun(t *testing.T, dataPath string, horizon int) string {
	t.Helper()
	raw, err := dataset.LoadCSV(dataPath)
	if err != nil {
		t.Fatal(err)
	}
	trainer := pipeline.NewTrainer(zap.NewNop(), factor.Builtin(), model.Builtin())
	res, err := trainer.Train(raw, pipeline.TrainParams{
		FactorNames: []string{"momentum_5"},
		ModelName:   "logit",
		Horizon:     horizon,
		TestSize:    0.2,
	})
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "run")
	store := artifact.NewStore(zap.NewNop())
	if err := store.Save(dir, res, artifact.Meta{Horizon: horizon}); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRunProducesConsistentSeries(t *testing.T) {
	dataPath := writeTicks(t, 300)
	dir := trainRun(t, dataPath, 5)

	runner := NewRunner(zap.NewNop(), artifact.NewStore(zap.NewNop()), model.Builtin())
	payload, err := runner.Run(dir, dataPath, 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	n := len(payload.Series.Ret)
	if n == 0 {
		t.Fatal("empty series")
	}
	for name, l := range map[string]int{
		"ts":       len(payload.Series.TS),
		"signals":  len(payload.Series.Signals),
		"pnl":      len(payload.Series.PnL),
		"step_pnl": len(payload.Series.StepPnL),
		"drawdown": len(payload.Series.Drawdown),
		"y_test":   len(payload.Series.YTest),
	} {
		if l != n {
			t.Errorf("series %s has %d rows, want %d", name, l, n)
		}
	}

	// pnl is the running sum of step pnl
	var sum float64
	for i := range payload.Series.StepPnL {
		sum += payload.Series.StepPnL[i]
		if math.Abs(payload.Series.PnL[i]-sum) > 1e-9 {
			t.Fatalf("pnl[%d] = %v, want %v", i, payload.Series.PnL[i], sum)
		}
	}

	// drawdown never positive, max_drawdown is its minimum
	minDD := 0.0
	for i, d := range payload.Series.Drawdown {
		if d > 1e-12 {
			t.Fatalf("drawdown[%d] = %v > 0", i, d)
		}
		if d < minDD {
			minDD = d
		}
	}
	if math.Abs(payload.Risk.MaxDrawdown-minDD) > 1e-12 {
		t.Errorf("max_drawdown = %v, want %v", payload.Risk.MaxDrawdown, minDD)
	}

	// step pnl is signal-gated return
	for i := range payload.Series.StepPnL {
		want := float64(payload.Series.Signals[i]) * payload.Series.Ret[i]
		if payload.Series.StepPnL[i] != want {
			t.Fatalf("step_pnl[%d] = %v, want %v", i, payload.Series.StepPnL[i], want)
		}
	}

	if len(payload.RetHist.Edges) != 31 || len(payload.RetHist.Counts) != 30 {
		t.Errorf("histogram shape = %d edges / %d counts", len(payload.RetHist.Edges), len(payload.RetHist.Counts))
	}

	// payload labels match the persisted test labels exactly
	arts, err := artifact.NewStore(zap.NewNop()).LoadForBacktest(dir, model.Builtin())
	if err != nil {
		t.Fatal(err)
	}
	for i := range arts.YTest {
		if payload.Series.YTest[i] != arts.YTest[i] {
			t.Fatalf("y_test[%d] diverges from persisted artifacts", i)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dataPath := writeTicks(t, 300)
	dir := trainRun(t, dataPath, 5)
	runner := NewRunner(zap.NewNop(), artifact.NewStore(zap.NewNop()), model.Builtin())

	a, err := runner.Run(dir, dataPath, 5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := runner.Run(dir, dataPath, 5)
	if err != nil {
		t.Fatal(err)
	}

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatal("identical inputs produced different payloads")
	}
}

// TestAlwaysLongStrategy pins the degenerate-probability path: a model with
// constant probability output falls back to hard predictions, and an
// all-long book in a rising market has full exposure and zero turnover.
func TestAlwaysLongStrategy(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "rising.csv")
	f, err := os.Create(dataPath)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintln(f, "ts_ns,midprice")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(f, "%d,%g\n", int64(i), 100.0*math.Pow(1.01, float64(i)))
	}
	f.Close()

	// constant-output classifier: zero weights, strongly positive bias
	clf := &model.Logit{W: []float64{0}, B: 50, LR: 0.1, L2: 1e-4, Ep: 1}
	testIndex := []int{4, 5, 6, 7, 8, 9}
	xTest := make([][]float64, len(testIndex))
	yTest := make([]float64, len(testIndex))
	for i := range xTest {
		xTest[i] = []float64{0}
		yTest[i] = 1
	}

	res := &pipeline.TrainResult{
		ModelName: "logit",
		Task:      model.TaskClassification,
		Metrics:   map[string]float64{"accuracy": 1},
		Model:     clf,
		Features:  []string{"momentum_5"},
		XTest:     xTest,
		YTest:     yTest,
		TestIndex: testIndex,
		YPred:     []float64{1, 1, 1, 1, 1, 1},
		YProb:     []float64{1, 1, 1, 1, 1, 1},
	}

	dir := filepath.Join(t.TempDir(), "run")
	store := artifact.NewStore(zap.NewNop())
	if err := store.Save(dir, res, artifact.Meta{Horizon: 1}); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(zap.NewNop(), store, model.Builtin())
	payload, err := runner.Run(dir, dataPath, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if payload.Threshold != 0.5 {
		t.Errorf("fallback threshold = %v, want 0.5", payload.Threshold)
	}
	for i, s := range payload.Series.Signals {
		if s != 1 {
			t.Fatalf("signal[%d] = %d, want 1", i, s)
		}
	}
	if payload.Risk.Exposure != 1.0 {
		t.Errorf("exposure = %v, want 1", payload.Risk.Exposure)
	}
	if payload.Risk.Turnover != 0 {
		t.Errorf("turnover = %v, want 0", payload.Risk.Turnover)
	}
	if payload.Risk.MaxDrawdown != 0 {
		t.Errorf("max_drawdown = %v, want 0 in a rising market", payload.Risk.MaxDrawdown)
	}
	if payload.Curves.PR != nil || payload.Classification.Brier != nil {
		t.Error("degenerate probabilities must not produce probability curves")
	}
}

func TestSelectThresholdFirstMaxF1(t *testing.T) {
	yTest := []float64{0, 0, 1, 1}
	yProb := []float64{0.1, 0.4, 0.35, 0.9}

	threshold, signals := selectThreshold(yTest, yProb, nil)

	// thresholds 0.1..0.9 ascending; F1 peaks first at 0.35
	// (tp=2, fp=1 -> P=2/3, R=1, F1=0.8)
	if threshold != 0.35 {
		t.Errorf("threshold = %v, want 0.35", threshold)
	}
	// signals use strict >
	want := []int{0, 1, 0, 1}
	for i := range want {
		if signals[i] != want[i] {
			t.Errorf("signals = %v, want %v", signals, want)
			break
		}
	}
}

func TestHorizonMismatchIndexOutOfRange(t *testing.T) {
	dataPath := writeTicks(t, 300)
	dir := trainRun(t, dataPath, 5)

	// shorter data file than the one used for training
	shortPath := writeTicks(t, 50)
	runner := NewRunner(zap.NewNop(), artifact.NewStore(zap.NewNop()), model.Builtin())
	if _, err := runner.Run(dir, shortPath, 5); err == nil {
		t.Fatal("test rows beyond the data must fail")
	}
}
