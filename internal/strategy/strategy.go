// Package strategy defines the Strategy interface for signal generators and
// provides a Registry that dispatches a parameter set to the matching
// implementation.
package strategy

import (
	"fmt"
	"sort"

	"siglab/internal/domain"
)

// Strategy maps a price series to a position signal per bar.
type Strategy interface {
	// Name returns the strategy kind, e.g. "sma".
	Name() string

	// Generate returns a signal aligned 1:1 with the bars of s. Bars inside
	// the warm-up period carry an undefined signal. The input is not
	// modified.
	Generate(s domain.Series) Output
}

// Column is a named intermediate series produced while generating signals,
// such as a moving average. Columns are informational and only used for
// reporting.
type Column struct {
	Name   string
	Values []domain.NullFloat
}

// Output is the result of Strategy.Generate.
type Output struct {
	Signals []domain.NullSignal
	Columns []Column
}

// Factory builds a Strategy from a parameter set.
type Factory func(p Params) Strategy

// Registry holds the set of known strategy kinds.
type Registry struct {
	factories map[Kind]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Kind]Factory),
	}
}

// Register adds a factory for the given kind, replacing any previous one.
func (r *Registry) Register(kind Kind, f Factory) {
	r.factories[kind] = f
}

// Get retrieves the factory for a kind. The second return value indicates
// whether the kind was found.
func (r *Registry) Get(kind Kind) (Factory, bool) {
	f, ok := r.factories[kind]
	return f, ok
}

// New validates p and builds the strategy selected by p.Kind.
func (r *Registry) New(p Params) (Strategy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f, ok := r.factories[p.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
	return f(p), nil
}

// Generate is a convenience wrapper around New followed by Generate.
func (r *Registry) Generate(s domain.Series, p Params) (Output, error) {
	st, err := r.New(p)
	if err != nil {
		return Output{}, err
	}
	return st.Generate(s), nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}
