// Package store defines storage interfaces for persisting and retrieving
// price bars and backtest run history.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"siglab/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves daily OHLC bars.
type BarStore interface {
	// WriteBars persists a batch of bars, replacing bars with the same
	// symbol and date.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for symbol within [start, end], sorted ascending
	// by date. A zero start or end leaves that side unbounded.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunRecord is the persisted summary of one backtest run.
type RunRecord struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	Strategy    string    `json:"strategy"`
	Params      string    `json:"params"` // JSON-encoded strategy.Params
	Bars        int       `json:"bars"`
	FirstDate   time.Time `json:"first_date"`
	LastDate    time.Time `json:"last_date"`
	TotalReturn float64   `json:"total_return"`
	CAGR        float64   `json:"cagr"`
	MaxDrawdown float64   `json:"max_drawdown"`
	Sharpe      float64   `json:"sharpe"`
	CreatedAt   time.Time `json:"created_at"`
}

// MarshalJSON encodes non-finite metrics as null.
func (r RunRecord) MarshalJSON() ([]byte, error) {
	type plain RunRecord
	return json.Marshal(struct {
		plain
		TotalReturn *float64 `json:"total_return"`
		CAGR        *float64 `json:"cagr"`
		MaxDrawdown *float64 `json:"max_drawdown"`
		Sharpe      *float64 `json:"sharpe"`
	}{plain(r), finite(r.TotalReturn), finite(r.CAGR), finite(r.MaxDrawdown), finite(r.Sharpe)})
}

// UnmarshalJSON decodes null metrics as NaN.
func (r *RunRecord) UnmarshalJSON(data []byte) error {
	type plain RunRecord
	aux := struct {
		*plain
		TotalReturn *float64 `json:"total_return"`
		CAGR        *float64 `json:"cagr"`
		MaxDrawdown *float64 `json:"max_drawdown"`
		Sharpe      *float64 `json:"sharpe"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.TotalReturn = orNaN(aux.TotalReturn)
	r.CAGR = orNaN(aux.CAGR)
	r.MaxDrawdown = orNaN(aux.MaxDrawdown)
	r.Sharpe = orNaN(aux.Sharpe)
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// RunStore persists backtest run summaries.
type RunStore interface {
	// SaveRun inserts a run and returns its assigned ID.
	SaveRun(ctx context.Context, run *RunRecord) (int64, error)

	// GetRun retrieves a single run by ID, or ErrNotFound.
	GetRun(ctx context.Context, id int64) (*RunRecord, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// inRange reports whether t lies within [start, end], treating zero bounds
// as open.
func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
