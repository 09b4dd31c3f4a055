package pipeline

import (
	"fmt"
	"math"
)

// Split is a chronological train/test partition. Index slices hold the
// original row positions in the canonical frame, so later backtests can
// align recomputed returns with the persisted test rows.
type Split struct {
	XTrain, XTest         [][]float64
	YTrain, YTest         []float64
	TrainIndex, TestIndex []int
}

// SplitTimeSeries drops rows with undefined labels and cuts the remaining
// row-aligned sequence at a single chronological point: the last testSize
// fraction becomes the test set, the prefix the train set. Rows are never
// shuffled and never duplicated across partitions, so information from the
// future cannot enter training.
func SplitTimeSeries(X [][]float64, index []int, y []float64, testSize float64) (*Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, fmt.Errorf("pipeline: test_size must be in (0,1), got %g", testSize)
	}
	if len(X) != len(y) || len(X) != len(index) {
		return nil, fmt.Errorf("pipeline: X/y/index length mismatch: %d/%d/%d", len(X), len(y), len(index))
	}

	var validX [][]float64
	var validY []float64
	var validIdx []int
	for i := range y {
		if math.IsNaN(y[i]) {
			continue
		}
		validX = append(validX, X[i])
		validY = append(validY, y[i])
		validIdx = append(validIdx, index[i])
	}

	n := len(validY)
	nTest := int(math.Ceil(float64(n) * testSize))
	nTrain := n - nTest
	if nTrain < 1 || nTest < 1 {
		return nil, fmt.Errorf("pipeline: %d rows with defined labels cannot be split with test_size=%g", n, testSize)
	}

	return &Split{
		XTrain:     validX[:nTrain],
		XTest:      validX[nTrain:],
		YTrain:     validY[:nTrain],
		YTest:      validY[nTrain:],
		TrainIndex: validIdx[:nTrain],
		TestIndex:  validIdx[nTrain:],
	}, nil
}
