// Package artifact persists training-run outputs under run-scoped
// directories and reloads the subset needed by the backtester.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Buezw/HFT-Research/internal/model"
	"github.com/Buezw/HFT-Research/internal/pipeline"
	"go.uber.org/zap"
)

// ErrIncomplete indicates one or more expected artifact files are missing.
var ErrIncomplete = errors.New("artifacts incomplete")

const (
	modelFile  = "model.json"
	scalerFile = "scaler.json"
	xTestFile  = "X_test.csv"
	yTestFile  = "y_test.csv"
	yPredFile  = "y_pred.json"
	yProbFile  = "y_prob.json"
	metaFile   = "meta.json"
)

// Meta is the metadata summary of a training run, written as meta.json.
type Meta struct {
	ModelName string             `json:"model_name"`
	Task      string             `json:"task"`
	Metrics   map[string]float64 `json:"metrics"`
	ROC       *pipeline.ROC      `json:"roc"`
	Factors   []string           `json:"factors,omitempty"`
	Horizon   int                `json:"horizon,omitempty"`
	Eps       float64            `json:"eps"`
	TestSize  float64            `json:"test_size,omitempty"`
}

// BacktestArtifacts is the reloaded subset a backtest needs.
type BacktestArtifacts struct {
	Meta     *Meta
	Model    model.Model
	Features []string
	XTest    [][]float64
	// Index holds the original canonical-frame row position of each test
	// row, used to align recomputed forward returns.
	Index []int
	YTest []float64
}

// Store reads and writes run directories. A run directory is write-once:
// artifacts are never mutated after creation, so any later reload
// reproduces bit-identical test inputs.
type Store struct {
	logger *zap.Logger
}

// NewStore creates an artifact store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

// Save persists the fitted model, optional scaler, test set, predictions
// and metadata under dir. It refuses to overwrite an existing run.
func (s *Store) Save(dir string, res *pipeline.TrainResult, meta Meta) error {
	if _, err := os.Stat(filepath.Join(dir, metaFile)); err == nil {
		return fmt.Errorf("artifact: run directory %s already written", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact: create %s: %w", dir, err)
	}

	if err := writeJSON(filepath.Join(dir, modelFile), res.Model); err != nil {
		return err
	}
	if res.Scaler != nil {
		if err := writeJSON(filepath.Join(dir, scalerFile), res.Scaler); err != nil {
			return err
		}
	}
	if err := writeXTest(filepath.Join(dir, xTestFile), res.Features, res.TestIndex, res.XTest); err != nil {
		return err
	}
	if err := writeYTest(filepath.Join(dir, yTestFile), res.YTest); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, yPredFile), res.YPred); err != nil {
		return err
	}
	if res.YProb != nil {
		if err := writeJSON(filepath.Join(dir, yProbFile), res.YProb); err != nil {
			return err
		}
	}

	meta.ModelName = res.ModelName
	meta.Task = string(res.Task)
	meta.Metrics = res.Metrics
	meta.ROC = res.ROC
	if err := writeJSON(filepath.Join(dir, metaFile), &meta); err != nil {
		return err
	}

	s.logger.Info("artifacts saved",
		zap.String("dir", dir),
		zap.String("model", meta.ModelName),
		zap.Int("test_rows", len(res.YTest)),
	)
	return nil
}

// LoadMeta reads the metadata summary of a run.
func (s *Store) LoadMeta(dir string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s missing in %s", ErrIncomplete, metaFile, dir)
		}
		return nil, fmt.Errorf("artifact: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("artifact: parse meta: %w", err)
	}
	return &meta, nil
}

// LoadForBacktest reloads the model, test features and test labels from a
// run directory. The model is reconstructed through the registry by the
// name recorded in meta.json.
func (s *Store) LoadForBacktest(dir string, models *model.Registry) (*BacktestArtifacts, error) {
	for _, name := range []string{metaFile, modelFile, xTestFile, yTestFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("%w: %s missing in %s", ErrIncomplete, name, dir)
		}
	}

	meta, err := s.LoadMeta(dir)
	if err != nil {
		return nil, err
	}

	_, clf, err := models.New(meta.ModelName)
	if err != nil {
		return nil, err
	}
	modelData, err := os.ReadFile(filepath.Join(dir, modelFile))
	if err != nil {
		return nil, fmt.Errorf("artifact: read model: %w", err)
	}
	if err := json.Unmarshal(modelData, clf); err != nil {
		return nil, fmt.Errorf("artifact: restore model %q: %w", meta.ModelName, err)
	}

	features, index, xTest, err := readXTest(filepath.Join(dir, xTestFile))
	if err != nil {
		return nil, err
	}
	yTest, err := readYTest(filepath.Join(dir, yTestFile))
	if err != nil {
		return nil, err
	}
	if len(yTest) != len(xTest) {
		return nil, fmt.Errorf("artifact: X_test has %d rows, y_test has %d", len(xTest), len(yTest))
	}

	return &BacktestArtifacts{
		Meta:     meta,
		Model:    clf,
		Features: features,
		XTest:    xTest,
		Index:    index,
		YTest:    yTest,
	}, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeXTest writes the test feature matrix with a leading index column
// holding the original canonical-frame row positions.
func writeXTest(path string, features []string, index []int, X [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifact: create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"index"}, features...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("artifact: write %s: %w", filepath.Base(path), err)
	}
	for i, row := range X {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, strconv.Itoa(index[i]))
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("artifact: write %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	return w.Error()
}

func readXTest(path string) (features []string, index []int, X [][]float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("artifact: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("artifact: read %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 || len(records[0]) < 1 || records[0][0] != "index" {
		return nil, nil, nil, fmt.Errorf("artifact: %s has no index column", filepath.Base(path))
	}

	features = append([]string(nil), records[0][1:]...)
	for _, rec := range records[1:] {
		idx, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("artifact: bad index %q: %w", rec[0], err)
		}
		row := make([]float64, len(rec)-1)
		for j, s := range rec[1:] {
			row[j], err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("artifact: bad value %q: %w", s, err)
			}
		}
		index = append(index, idx)
		X = append(X, row)
	}
	return features, index, X, nil
}

// writeYTest writes the label vector as a single-column CSV named y_test.
func writeYTest(path string, y []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifact: create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"y_test"}); err != nil {
		return err
	}
	for _, v := range y {
		if err := w.Write([]string{strconv.FormatFloat(v, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readYTest(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 || len(records[0]) != 1 || records[0][0] != "y_test" {
		return nil, fmt.Errorf("artifact: %s is not a y_test column", filepath.Base(path))
	}

	out := make([]float64, 0, len(records)-1)
	for _, rec := range records[1:] {
		v, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("artifact: bad label %q: %w", rec[0], err)
		}
		out = append(out, v)
	}
	return out, nil
}
