package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/Buezw/HFT-Research/internal/artifact"
	"github.com/Buezw/HFT-Research/internal/dataset"
	"github.com/Buezw/HFT-Research/internal/model"
	"github.com/Buezw/HFT-Research/internal/pipeline"
	"github.com/Buezw/HFT-Research/internal/stats"
	"go.uber.org/zap"
)

// Runner evaluates a persisted training run against regenerated test-period
// returns.
type Runner struct {
	logger *zap.Logger
	store  *artifact.Store
	models *model.Registry
}

// NewRunner creates a backtest runner.
func NewRunner(logger *zap.Logger, store *artifact.Store, models *model.Registry) *Runner {
	return &Runner{logger: logger, store: store, models: models}
}

// Run reloads the artifacts in artifactDir, recomputes forward returns from
// the raw data for the given horizon, selects a decision threshold and
// computes the full diagnostics payload.
//
// The horizon must match the training horizon for correct alignment; a
// mismatch silently shifts returns against labels. The threshold is chosen
// on the test set itself, a known look-ahead bias in the self-evaluation;
// it is kept deliberately so reported metrics stay comparable across runs.
func (r *Runner) Run(artifactDir, dataPath string, horizon int) (*Payload, error) {
	arts, err := r.store.LoadForBacktest(artifactDir, r.models)
	if err != nil {
		return nil, err
	}

	raw, err := dataset.LoadCSV(dataPath)
	if err != nil {
		return nil, err
	}
	mid, err := dataset.BuildMidprice(raw)
	if err != nil {
		return nil, err
	}

	// forward returns aligned by original row index, not by time value
	retFull := pipeline.ForwardReturns(mid.Col("midprice"), horizon)
	retTest := make([]float64, len(arts.Index))
	for i, idx := range arts.Index {
		if idx < 0 || idx >= len(retFull) {
			return nil, fmt.Errorf("backtest: test row index %d outside data of %d rows", idx, len(retFull))
		}
		if v := retFull[idx]; !math.IsNaN(v) {
			retTest[i] = v
		}
	}

	yPred := arts.Model.Predict(arts.XTest)
	var yProb []float64
	if c, ok := arts.Model.(model.Classifier); ok {
		yProb = c.PredictProba(arts.XTest)
	}

	threshold, signals := selectThreshold(arts.YTest, yProb, yPred)

	stepPnl := make([]float64, len(signals))
	for i, s := range signals {
		stepPnl[i] = float64(s) * retTest[i]
	}
	cum := stats.CumSum(stepPnl)
	peak := stats.RunningMax(cum)
	drawdown := make([]float64, len(cum))
	maxDrawdown := 0.0
	for i := range cum {
		drawdown[i] = cum[i] - peak[i]
		if drawdown[i] < maxDrawdown {
			maxDrawdown = drawdown[i]
		}
	}

	sigFloat := make([]float64, len(signals))
	var turnover float64
	for i, s := range signals {
		sigFloat[i] = float64(s)
		if i > 0 {
			turnover += math.Abs(float64(signals[i] - signals[i-1]))
		}
	}

	payload := &Payload{
		Threshold: threshold,
		Series: Series{
			TS:       timeAxis(mid, arts.Index),
			Ret:      retTest,
			Signals:  signals,
			PnL:      cum,
			StepPnL:  stepPnl,
			Drawdown: drawdown,
			YTest:    arts.YTest,
			YProb:    yProb,
		},
		Risk: Risk{
			MaxDrawdown: maxDrawdown,
			SharpeStep:  stats.Mean(stepPnl) / (stats.Std(stepPnl) + 1e-12),
			Exposure:    stats.Mean(sigFloat),
			Turnover:    turnover,
		},
		Classification: classify(arts.YTest, sigFloat),
		RetHist:        retHistogram(retTest),
	}

	if yProb != nil && stats.Std(yProb) > 0 {
		precision, recall, _ := stats.PRCurve(arts.YTest, yProb)
		payload.Curves.PR = &PRPoints{Precision: precision, Recall: recall}
		ap := stats.AveragePrecision(arts.YTest, yProb)
		payload.Classification.AveragePrecision = &ap
		meanPred, fracPos := stats.CalibrationCurve(arts.YTest, yProb, 10)
		payload.Curves.Calibration = &CalPoints{MeanPred: meanPred, FracPos: fracPos}
		brier := stats.Brier(arts.YTest, yProb)
		payload.Classification.Brier = &brier
	}

	r.logger.Info("backtest complete",
		zap.String("artifacts", artifactDir),
		zap.Int("horizon", horizon),
		zap.Float64("threshold", threshold),
		zap.Float64("max_drawdown", maxDrawdown),
		zap.Float64("sharpe_step", payload.Risk.SharpeStep),
	)
	return payload, nil
}

// WriteJSON serializes a payload to path.
func (r *Runner) WriteJSON(payload *Payload, path string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("backtest: marshal payload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("backtest: write %s: %w", path, err)
	}
	return nil
}

// selectThreshold picks the decision threshold and the resulting 0/1
// signals. With usable probability scores it scans the precision-recall
// curve for the maximal F1, breaking ties by the first occurrence in
// ascending threshold order and skipping the curve's final degenerate
// point. Otherwise it falls back to 0.5 with hard predictions as signals.
func selectThreshold(yTest, yProb, yPred []float64) (float64, []int) {
	if yProb != nil && stats.Std(yProb) > 0 {
		precision, recall, thresholds := stats.PRCurve(yTest, yProb)
		threshold := 0.5
		if len(thresholds) > 0 {
			bestF1 := math.Inf(-1)
			bestIdx := 0
			for i := 0; i < len(precision)-1; i++ {
				f1 := 2 * precision[i] * recall[i] / (precision[i] + recall[i] + 1e-12)
				if f1 > bestF1 {
					bestF1 = f1
					bestIdx = i
				}
			}
			threshold = thresholds[bestIdx]
		}
		signals := make([]int, len(yProb))
		for i, p := range yProb {
			if p > threshold {
				signals[i] = 1
			}
		}
		return threshold, signals
	}

	signals := make([]int, len(yPred))
	for i, p := range yPred {
		if p > 0 {
			signals[i] = 1
		}
	}
	return 0.5, signals
}

// classify computes the confusion matrix and derived rates at the chosen
// threshold. With a single-class test label set everything reports zero.
func classify(yTest, signals []float64) Classification {
	var tp, fp, tn, fn int
	if stats.DistinctClasses(yTest) == 2 {
		tp, fp, tn, fn = stats.Confusion(yTest, signals)
	}
	precision := float64(tp) / (float64(tp+fp) + 1e-12)
	recall := float64(tp) / (float64(tp+fn) + 1e-12)
	return Classification{
		TP: tp, FP: fp, TN: tn, FN: fn,
		PrecisionAtThreshold: precision,
		RecallAtThreshold:    recall,
		F1AtThreshold:        2 * precision * recall / (precision + recall + 1e-12),
	}
}

// retHistogram builds the clipped (1st-99th percentile, 30 bin) forward
// return histogram; flat ranges fall back to a tiny symmetric window so the
// histogram never has zero width.
func retHistogram(ret []float64) Hist {
	var lo, hi float64
	if len(ret) > 10 {
		lo = stats.Percentile(ret, 1)
		hi = stats.Percentile(ret, 99)
	} else if len(ret) > 0 {
		lo, hi = ret[0], ret[0]
		for _, v := range ret {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	var edges []float64
	if hi > lo {
		edges = stats.LinSpace(lo, hi, 31)
	} else {
		edges = stats.LinSpace(-1e-6, 1e-6, 31)
	}
	return Hist{Edges: edges, Counts: stats.Histogram(ret, edges)}
}

// timeAxis renders the ts_ns values at the test row positions, falling back
// to ordinal positions when the canonical frame carries no timestamps.
func timeAxis(mid *dataset.Frame, index []int) []string {
	out := make([]string, len(index))
	ts := mid.Col("ts_ns")
	for i, idx := range index {
		if ts != nil && idx < len(ts) {
			out[i] = strconv.FormatFloat(ts[idx], 'f', -1, 64)
		} else {
			out[i] = strconv.Itoa(i)
		}
	}
	return out
}
