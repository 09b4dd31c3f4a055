// Package factor provides the factor registry and the factor computation
// engine.
package factor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Buezw/HFT-Research/internal/dataset"
)

// ErrNotFound indicates a factor name is not registered.
var ErrNotFound = errors.New("factor not found")

// Func computes one factor series from the canonical frame. The result must
// be aligned index-for-index with the input and may only use past and
// current rows.
type Func func(f *dataset.Frame) ([]float64, error)

// Meta describes a registered factor. It is JSON-safe: the compute function
// is never part of it, so registry metadata can be handed to untrusted
// consumers.
type Meta struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Desc        string `json:"desc"`
	Formula     string `json:"formula,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

type entry struct {
	meta Meta
	fn   Func
}

// Registry maps factor names to compute functions and metadata. It is an
// explicit value constructed at startup and passed to the engine, not
// ambient global state; tests build a fresh one in isolation.
type Registry struct {
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty factor registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register associates a name with a compute function and metadata. Names
// are a global namespace: a duplicate name silently overwrites the previous
// registration.
func (r *Registry) Register(meta Meta, fn Func) {
	if _, ok := r.entries[meta.Name]; !ok {
		r.order = append(r.order, meta.Name)
	}
	r.entries[meta.Name] = entry{meta: meta, fn: fn}
}

// Lookup returns the compute function for a name.
func (r *Registry) Lookup(name string) (Func, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrNotFound, name, strings.Join(r.Names(), ", "))
	}
	return e.fn, nil
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Metadata returns the metadata of every registered factor.
func (r *Registry) Metadata() []Meta {
	out := make([]Meta, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].meta)
	}
	return out
}

// ByCategory returns factor metadata grouped by category, with stable
// ordering inside each group.
func (r *Registry) ByCategory() map[string][]Meta {
	out := make(map[string][]Meta)
	for _, m := range r.Metadata() {
		out[m.Category] = append(out[m.Category], m)
	}
	for _, group := range out {
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })
	}
	return out
}
