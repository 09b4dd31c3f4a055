package factor

import (
	"fmt"

	"github.com/Buezw/HFT-Research/internal/dataset"
	"go.uber.org/zap"
)

// Result is the tagged outcome of one factor computation. A nil Err means
// the factor produced a column in the output matrix.
type Result struct {
	Name string
	Err  error
}

// Engine evaluates registered factors against a canonical frame.
type Engine struct {
	logger   *zap.Logger
	registry *Registry
}

// NewEngine creates a factor engine bound to a registry.
func NewEngine(logger *zap.Logger, registry *Registry) *Engine {
	return &Engine{logger: logger, registry: registry}
}

// Compute evaluates the named factors on the frame and returns the feature
// matrix plus a per-factor outcome. An empty name list computes all
// registered factors.
//
// A factor that fails does not abort the batch: the failure is logged, the
// column is absent from the output and the outcome carries the reason.
// Callers must check which requested names ended up present before use.
func (e *Engine) Compute(frame *dataset.Frame, names []string) (*dataset.Frame, []Result) {
	if len(names) == 0 {
		names = e.registry.Names()
	}

	out := dataset.NewFrame()
	results := make([]Result, 0, len(names))

	for _, name := range names {
		vals, err := e.computeOne(frame, name)
		if err != nil {
			e.logger.Warn("factor computation failed",
				zap.String("factor", name),
				zap.Error(err),
			)
			results = append(results, Result{Name: name, Err: err})
			continue
		}
		if err := out.Set(name, vals); err != nil {
			results = append(results, Result{Name: name, Err: err})
			continue
		}
		results = append(results, Result{Name: name})
	}

	return out, results
}

// computeOne evaluates one factor, converting panics inside factor code
// into ordinary errors so that one bad factor cannot take down the batch.
func (e *Engine) computeOne(frame *dataset.Frame, name string) (vals []float64, err error) {
	fn, err := e.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factor %q panicked: %v", name, r)
		}
	}()

	vals, err = fn(frame)
	if err != nil {
		return nil, err
	}
	if len(vals) != frame.Len() {
		return nil, fmt.Errorf("factor %q returned %d rows, want %d", name, len(vals), frame.Len())
	}
	return vals, nil
}
