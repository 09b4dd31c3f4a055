// Package dataset provides raw tick loading and canonical midprice series
// construction.
package dataset

import (
	"fmt"
	"math"
)

// Frame is an ordered collection of named float64 columns sharing one row
// count. It is the unit of exchange between the midprice builder, the factor
// engine and the trainer.
type Frame struct {
	names []string
	cols  map[string][]float64
	n     int
	fixed bool
}

// NewFrame creates an empty frame. The row count is fixed by the first
// column added.
func NewFrame() *Frame {
	return &Frame{cols: make(map[string][]float64)}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return f.n
}

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Col returns the values of a column, or nil if it does not exist. The
// returned slice is the frame's backing storage; callers must not mutate it.
func (f *Frame) Col(name string) []float64 {
	return f.cols[name]
}

// Set adds or replaces a column. All columns must have the same length.
func (f *Frame) Set(name string, vals []float64) error {
	if f.fixed && len(vals) != f.n {
		return fmt.Errorf("frame: column %q has %d rows, frame has %d", name, len(vals), f.n)
	}
	if !f.fixed {
		f.n = len(vals)
		f.fixed = true
	}
	if _, ok := f.cols[name]; !ok {
		f.names = append(f.names, name)
	}
	f.cols[name] = vals
	return nil
}

// Drop removes a column if present.
func (f *Frame) Drop(name string) {
	if _, ok := f.cols[name]; !ok {
		return
	}
	delete(f.cols, name)
	for i, n := range f.names {
		if n == name {
			f.names = append(f.names[:i], f.names[i+1:]...)
			break
		}
	}
}

// Copy returns a deep copy of the frame.
func (f *Frame) Copy() *Frame {
	out := NewFrame()
	for _, name := range f.names {
		vals := make([]float64, f.n)
		copy(vals, f.cols[name])
		out.Set(name, vals)
	}
	return out
}

// Select returns a new frame containing the listed rows (by position) of
// every column, preserving column order.
func (f *Frame) Select(rows []int) *Frame {
	out := NewFrame()
	for _, name := range f.names {
		src := f.cols[name]
		vals := make([]float64, len(rows))
		for i, r := range rows {
			vals[i] = src[r]
		}
		out.Set(name, vals)
	}
	return out
}

// Matrix returns the frame as row-major [][]float64 over the given columns.
func (f *Frame) Matrix(columns []string) [][]float64 {
	out := make([][]float64, f.n)
	for i := range out {
		row := make([]float64, len(columns))
		for j, name := range columns {
			row[j] = f.cols[name][i]
		}
		out[i] = row
	}
	return out
}

// FillNaN replaces NaN values in every column with the given value.
func (f *Frame) FillNaN(v float64) {
	for _, name := range f.names {
		col := f.cols[name]
		for i, x := range col {
			if math.IsNaN(x) {
				col[i] = v
			}
		}
	}
}
