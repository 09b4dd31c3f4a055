package pipeline

import (
	"errors"
	"fmt"

	"github.com/Buezw/HFT-Research/internal/dataset"
	"github.com/Buezw/HFT-Research/internal/factor"
	"github.com/Buezw/HFT-Research/internal/model"
	"github.com/Buezw/HFT-Research/internal/stats"
	"go.uber.org/zap"
)

// ErrNoViableFactors indicates that no usable feature columns remain after
// factor computation and degeneracy filtering.
var ErrNoViableFactors = errors.New("no viable factors")

// TrainParams are the knobs of one training run.
type TrainParams struct {
	FactorNames []string
	ModelName   string
	Horizon     int
	Eps         float64
	DropEqual   bool
	TestSize    float64
	Scale       bool
}

// ROC holds the receiver operating characteristic curve points.
type ROC struct {
	Fpr []float64 `json:"fpr"`
	Tpr []float64 `json:"tpr"`
}

// TrainResult bundles the fitted artifacts and test-set products of one
// training run.
type TrainResult struct {
	ModelName string
	Task      model.Task
	Metrics   map[string]float64
	ROC       *ROC
	Model     model.Model
	Scaler    *model.Scaler
	Features  []string
	XTest     [][]float64
	YTest     []float64
	TestIndex []int
	YPred     []float64
	YProb     []float64
	// Failures lists requested factors that did not produce a column.
	Failures []factor.Result
}

// Trainer runs the full train/evaluate cycle against explicit factor and
// model registries.
type Trainer struct {
	logger  *zap.Logger
	factors *factor.Registry
	models  *model.Registry
}

// NewTrainer creates a trainer bound to the given registries.
func NewTrainer(logger *zap.Logger, factors *factor.Registry, models *model.Registry) *Trainer {
	return &Trainer{logger: logger, factors: factors, models: models}
}

// Train builds the midprice series, computes factors, derives labels,
// splits chronologically, optionally scales, fits the named model and
// evaluates it on the held-out tail.
func (t *Trainer) Train(raw *dataset.Raw, p TrainParams) (*TrainResult, error) {
	mid, err := dataset.BuildMidprice(raw)
	if err != nil {
		return nil, err
	}

	engine := factor.NewEngine(t.logger, t.factors)
	features, outcomes := engine.Compute(mid, p.FactorNames)
	features.FillNaN(0)

	var failures []factor.Result
	for _, r := range outcomes {
		if r.Err != nil {
			failures = append(failures, r)
		}
	}

	// drop near-constant columns before training
	kept := make([]string, 0, len(features.Columns()))
	for _, name := range features.Columns() {
		if stats.Std(features.Col(name)) > 1e-12 {
			kept = append(kept, name)
		} else {
			features.Drop(name)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: requested %v", ErrNoViableFactors, p.FactorNames)
	}

	labels, err := MakeLabels(mid, p.Horizon, p.Eps, p.DropEqual)
	if err != nil {
		return nil, err
	}

	X := features.Matrix(kept)
	index := make([]int, features.Len())
	for i := range index {
		index[i] = i
	}

	split, err := SplitTimeSeries(X, index, labels, p.TestSize)
	if err != nil {
		return nil, err
	}

	var scaler *model.Scaler
	xTrain, xTest := split.XTrain, split.XTest
	if p.Scale {
		scaler = model.NewScaler()
		xTrain, err = scaler.FitTransform(xTrain)
		if err != nil {
			return nil, err
		}
		xTest = scaler.Transform(xTest)
	}

	task, clf, err := t.models.New(p.ModelName)
	if err != nil {
		return nil, err
	}
	if err := clf.Fit(xTrain, split.YTrain); err != nil {
		return nil, fmt.Errorf("fit %s: %w", p.ModelName, err)
	}

	res := &TrainResult{
		ModelName: p.ModelName,
		Task:      task,
		Metrics:   make(map[string]float64),
		Model:     clf,
		Scaler:    scaler,
		Features:  kept,
		XTest:     xTest,
		YTest:     split.YTest,
		TestIndex: split.TestIndex,
		YPred:     clf.Predict(xTest),
		Failures:  failures,
	}

	switch task {
	case model.TaskClassification:
		t.evalClassification(res, clf, xTest)
	default:
		t.evalRegression(res)
	}

	t.logger.Info("training run complete",
		zap.String("model", p.ModelName),
		zap.String("task", string(task)),
		zap.Strings("features", kept),
		zap.Int("train_rows", len(split.YTrain)),
		zap.Int("test_rows", len(split.YTest)),
	)
	return res, nil
}

// evalClassification fills classification metrics with graceful fallbacks
// for single-class label sets and zero-variance probability vectors.
func (t *Trainer) evalClassification(res *TrainResult, clf model.Model, xTest [][]float64) {
	if c, ok := clf.(model.Classifier); ok {
		res.YProb = c.PredictProba(xTest)
	} else {
		res.YProb = res.YPred
	}

	if stats.DistinctClasses(res.YTest) < 2 || stats.Std(res.YProb) == 0 {
		res.Metrics["accuracy"] = stats.Accuracy(res.YPred, res.YTest)
		res.Metrics["auc"] = 0.5
		res.ROC = &ROC{Fpr: []float64{0, 1}, Tpr: []float64{0, 1}}
		return
	}

	res.Metrics["accuracy"] = stats.Accuracy(res.YPred, res.YTest)
	res.Metrics["auc"] = stats.AUC(res.YTest, res.YProb)
	fpr, tpr := stats.ROCCurve(res.YTest, res.YProb)
	res.ROC = &ROC{Fpr: fpr, Tpr: tpr}
}

// evalRegression reports mean squared error and R².
func (t *Trainer) evalRegression(res *TrainResult) {
	var ssRes, ssTot float64
	meanY := stats.Mean(res.YTest)
	for i := range res.YTest {
		d := res.YPred[i] - res.YTest[i]
		ssRes += d * d
		dt := res.YTest[i] - meanY
		ssTot += dt * dt
	}
	n := float64(len(res.YTest))
	if n == 0 {
		return
	}
	res.Metrics["mse"] = ssRes / n
	if ssTot > 0 {
		res.Metrics["r2"] = 1 - ssRes/ssTot
	} else {
		res.Metrics["r2"] = 0
	}
}
