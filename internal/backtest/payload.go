// Package backtest reloads persisted training artifacts and evaluates the
// implied trading strategy over the held-out test period.
package backtest

// Payload is the JSON-serializable result of one backtest invocation. It is
// produced fresh each run and never mutated after being written.
type Payload struct {
	Threshold      float64        `json:"threshold"`
	Series         Series         `json:"series"`
	Risk           Risk           `json:"risk"`
	Classification Classification `json:"classification"`
	Curves         Curves         `json:"curves"`
	RetHist        Hist           `json:"ret_hist"`
}

// Series holds the aligned per-step time series of the test period.
type Series struct {
	TS       []string  `json:"ts"`
	Ret      []float64 `json:"ret"`
	Signals  []int     `json:"signals"`
	PnL      []float64 `json:"pnl"`
	StepPnL  []float64 `json:"step_pnl"`
	Drawdown []float64 `json:"drawdown"`
	YTest    []float64 `json:"y_test"`
	YProb    []float64 `json:"y_prob"`
}

// Risk summarizes the strategy's risk profile over the test period.
type Risk struct {
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeStep  float64 `json:"sharpe_step"`
	Exposure    float64 `json:"exposure"`
	Turnover    float64 `json:"turnover"`
}

// Classification holds the confusion matrix and derived rates at the chosen
// threshold. AveragePrecision and Brier are nil when no usable probability
// scores exist.
type Classification struct {
	TP                   int      `json:"tp"`
	FP                   int      `json:"fp"`
	TN                   int      `json:"tn"`
	FN                   int      `json:"fn"`
	PrecisionAtThreshold float64  `json:"precision_at_threshold"`
	RecallAtThreshold    float64  `json:"recall_at_threshold"`
	F1AtThreshold        float64  `json:"f1_at_threshold"`
	AveragePrecision     *float64 `json:"average_precision"`
	Brier                *float64 `json:"brier"`
}

// PRPoints is the precision-recall curve.
type PRPoints struct {
	Precision []float64 `json:"precision"`
	Recall    []float64 `json:"recall"`
}

// CalPoints is the quantile calibration curve.
type CalPoints struct {
	MeanPred []float64 `json:"mean_pred"`
	FracPos  []float64 `json:"frac_pos"`
}

// Curves bundles the optional probability-based curves; both are nil when
// probabilities are absent or degenerate.
type Curves struct {
	PR          *PRPoints  `json:"pr"`
	Calibration *CalPoints `json:"calibration"`
}

// Hist is the clipped forward-return histogram for display.
type Hist struct {
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}
