// Package model provides the model registry and the built-in classifiers
// and regressors.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Task is the learning task a model solves.
type Task string

const (
	TaskClassification Task = "classification"
	TaskRegression     Task = "regression"
)

// ErrNotFound indicates a model name is not registered.
var ErrNotFound = errors.New("model not found")

// Model is the capability set every registered model implements. X is
// row-major; labels are float64 (0/1 for classification).
type Model interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) []float64
}

// Classifier is a model that additionally produces probability scores for
// the positive class.
type Classifier interface {
	Model
	PredictProba(X [][]float64) []float64
}

// Meta describes a registered model. JSON-safe: the constructor is never
// part of it.
type Meta struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
	Task Task   `json:"task"`
}

// Constructor builds a fresh, unfitted model instance.
type Constructor func() Model

type entry struct {
	meta Meta
	ctor Constructor
}

// Registry maps model names to constructors and metadata. Like the factor
// registry it is an explicit value, populated at startup and passed by
// reference.
type Registry struct {
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register associates a name with a constructor. Duplicate names silently
// overwrite.
func (r *Registry) Register(meta Meta, ctor Constructor) {
	if _, ok := r.entries[meta.Name]; !ok {
		r.order = append(r.order, meta.Name)
	}
	r.entries[meta.Name] = entry{meta: meta, ctor: ctor}
}

// New instantiates the named model and reports its task.
func (r *Registry) New(name string) (Task, Model, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q (available: %s)", ErrNotFound, name, strings.Join(r.Names(), ", "))
	}
	return e.meta.Task, e.ctor(), nil
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Metadata returns metadata for every registered model.
func (r *Registry) Metadata() []Meta {
	out := make([]Meta, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].meta)
	}
	return out
}

// Builtin returns a registry pre-populated with the standard model set.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(Meta{Name: "logit", Desc: "Logistic regression classifier", Task: TaskClassification},
		func() Model { return NewLogit() })
	r.Register(Meta{Name: "boost", Desc: "Gradient-boosted stump classifier", Task: TaskClassification},
		func() Model { return NewBoost() })
	r.Register(Meta{Name: "ridge", Desc: "Ridge linear regressor", Task: TaskRegression},
		func() Model { return NewRidge() })
	return r
}
