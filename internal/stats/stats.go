// Package stats provides the float64 diagnostics used by the trainer and
// the backtester: classification metrics, ranking curves, calibration and
// distribution summaries.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// Std returns the population standard deviation, or 0 for an empty slice.
func Std(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := Mean(vals)
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}

// Accuracy returns the fraction of matching entries.
func Accuracy(pred, truth []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	var hits int
	for i := range pred {
		if pred[i] == truth[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(pred))
}

// DistinctClasses returns the number of distinct values in the label vector.
func DistinctClasses(y []float64) int {
	seen := make(map[float64]struct{}, 2)
	for _, v := range y {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// AUC computes the area under the ROC curve via the rank statistic, with
// midrank tie handling. Labels must be 0/1.
func AUC(y, score []float64) float64 {
	n := len(y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return score[idx[a]] < score[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && score[idx[j]] == score[idx[i]] {
			j++
		}
		// midrank for ties
		r := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = r
		}
		i = j
	}

	var pos, sumRanks float64
	for i := range y {
		if y[i] == 1 {
			pos++
			sumRanks += ranks[i]
		}
	}
	neg := float64(n) - pos
	if pos == 0 || neg == 0 {
		return 0.5
	}
	return (sumRanks - pos*(pos+1)/2) / (pos * neg)
}

// ROCCurve returns false/true positive rates at each distinct score
// threshold, from the most permissive to the strictest, starting at (0,0).
func ROCCurve(y, score []float64) (fpr, tpr []float64) {
	n := len(y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return score[idx[a]] > score[idx[b]] })

	var pos, neg float64
	for _, v := range y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return []float64{0, 1}, []float64{0, 1}
	}

	fpr = append(fpr, 0)
	tpr = append(tpr, 0)
	var tp, fp float64
	for i := 0; i < n; {
		j := i
		for j < n && score[idx[j]] == score[idx[i]] {
			if y[idx[j]] == 1 {
				tp++
			} else {
				fp++
			}
			j++
		}
		fpr = append(fpr, fp/neg)
		tpr = append(tpr, tp/pos)
		i = j
	}
	return fpr, tpr
}

// PRCurve returns the precision-recall curve. Thresholds are the distinct
// scores in ascending order; precision[i] and recall[i] are computed over
// predictions score >= thresholds[i]. A final (precision=1, recall=0) point
// is appended with no corresponding threshold, so
// len(precision) == len(thresholds)+1.
func PRCurve(y, score []float64) (precision, recall, thresholds []float64) {
	n := len(y)
	var pos float64
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}

	distinct := make([]float64, 0, n)
	seen := make(map[float64]struct{}, n)
	for _, s := range score {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			distinct = append(distinct, s)
		}
	}
	sort.Float64s(distinct)

	for _, t := range distinct {
		var tp, fp float64
		for i := range score {
			if score[i] >= t {
				if y[i] == 1 {
					tp++
				} else {
					fp++
				}
			}
		}
		p := 0.0
		if tp+fp > 0 {
			p = tp / (tp + fp)
		}
		r := 0.0
		if pos > 0 {
			r = tp / pos
		}
		precision = append(precision, p)
		recall = append(recall, r)
		thresholds = append(thresholds, t)
	}

	precision = append(precision, 1)
	recall = append(recall, 0)
	return precision, recall, thresholds
}

// AveragePrecision summarizes the PR curve as the weighted mean of
// precisions at each recall step.
func AveragePrecision(y, score []float64) float64 {
	precision, recall, _ := PRCurve(y, score)
	var ap float64
	for i := 0; i < len(recall)-1; i++ {
		ap += (recall[i] - recall[i+1]) * precision[i]
	}
	return ap
}

// CalibrationCurve bins predictions into quantile bins and returns the mean
// predicted probability and the observed positive frequency per non-empty
// bin.
func CalibrationCurve(y, prob []float64, bins int) (meanPred, fracPos []float64) {
	if len(prob) == 0 || bins < 1 {
		return nil, nil
	}

	edges := make([]float64, 0, bins-1)
	for i := 1; i < bins; i++ {
		edges = append(edges, Percentile(prob, float64(i)*100/float64(bins)))
	}

	sumPred := make([]float64, bins)
	sumPos := make([]float64, bins)
	count := make([]float64, bins)
	for i, p := range prob {
		b := sort.SearchFloat64s(edges, p)
		if b == len(edges) && len(edges) > 0 && p > edges[len(edges)-1] {
			b = bins - 1
		}
		if b >= bins {
			b = bins - 1
		}
		sumPred[b] += p
		sumPos[b] += y[i]
		count[b]++
	}

	for b := 0; b < bins; b++ {
		if count[b] == 0 {
			continue
		}
		meanPred = append(meanPred, sumPred[b]/count[b])
		fracPos = append(fracPos, sumPos[b]/count[b])
	}
	return meanPred, fracPos
}

// Brier returns the mean squared difference between predicted probabilities
// and binary outcomes.
func Brier(y, prob []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for i := range y {
		d := prob[i] - y[i]
		sum += d * d
	}
	return sum / float64(len(y))
}

// Confusion counts the binary confusion matrix cells for 0/1 labels and
// 0/1 predictions.
func Confusion(y, pred []float64) (tp, fp, tn, fn int) {
	for i := range y {
		switch {
		case pred[i] == 1 && y[i] == 1:
			tp++
		case pred[i] == 1 && y[i] == 0:
			fp++
		case pred[i] == 0 && y[i] == 0:
			tn++
		default:
			fn++
		}
	}
	return tp, fp, tn, fn
}

// Percentile returns the q-th percentile (0-100) with linear interpolation
// between closest ranks.
func Percentile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// LinSpace returns n evenly spaced values from lo to hi inclusive.
func LinSpace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// Histogram counts values into the bins described by edges; values outside
// [edges[0], edges[len-1]] are ignored and the rightmost bin is closed.
func Histogram(vals, edges []float64) []int {
	if len(edges) < 2 {
		return nil
	}
	counts := make([]int, len(edges)-1)
	lo, hi := edges[0], edges[len(edges)-1]
	for _, v := range vals {
		if v < lo || v > hi {
			continue
		}
		b := sort.SearchFloat64s(edges, v)
		// SearchFloat64s returns the insertion point; shift to the bin
		// whose left edge is <= v.
		if b > 0 && (b == len(edges) || edges[b] != v) {
			b--
		}
		if b >= len(counts) {
			b = len(counts) - 1
		}
		counts[b]++
	}
	return counts
}

// CumSum returns the running sum of vals.
func CumSum(vals []float64) []float64 {
	out := make([]float64, len(vals))
	var sum float64
	for i, v := range vals {
		sum += v
		out[i] = sum
	}
	return out
}

// RunningMax returns the running maximum of vals.
func RunningMax(vals []float64) []float64 {
	out := make([]float64, len(vals))
	max := math.Inf(-1)
	for i, v := range vals {
		if v > max {
			max = v
		}
		out[i] = max
	}
	return out
}
