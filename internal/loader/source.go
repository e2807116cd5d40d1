package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"siglab/internal/domain"
	"siglab/internal/store"
)

// Source loads a price series for a symbol over [start, end]. Zero bounds
// are unbounded. Implementations return bars sorted ascending by date with
// unique dates.
type Source interface {
	Load(ctx context.Context, symbol string, start, end time.Time) (domain.Series, error)
}

// Compile-time interface checks.
var (
	_ Source = (*CSVSource)(nil)
	_ Source = (*StoreSource)(nil)
	_ Source = (*AlpacaSource)(nil)
)

// CSVSource reads <Dir>/<SYMBOL>.csv files.
type CSVSource struct {
	Dir string
}

// NewCSVSource creates a CSVSource rooted at dir.
func NewCSVSource(dir string) *CSVSource { return &CSVSource{Dir: dir} }

// Load reads the symbol's file and trims it to [start, end].
func (c *CSVSource) Load(_ context.Context, symbol string, start, end time.Time) (domain.Series, error) {
	s, err := LoadCSV(c.path(symbol))
	if err != nil {
		return domain.Series{}, err
	}
	return Trim(s, start, end), nil
}

// Symbols lists the symbols with a CSV file in Dir.
func (c *CSVSource) Symbols() ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		out = append(out, strings.ToUpper(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))))
	}
	sort.Strings(out)
	return out, nil
}

func (c *CSVSource) path(symbol string) string {
	upper := filepath.Join(c.Dir, strings.ToUpper(symbol)+".csv")
	if _, err := os.Stat(upper); err == nil {
		return upper
	}
	return filepath.Join(c.Dir, symbol+".csv")
}

// StoreSource reads bars from a BarStore.
type StoreSource struct {
	store store.BarStore
}

// NewStoreSource wraps a BarStore as a Source.
func NewStoreSource(s store.BarStore) *StoreSource { return &StoreSource{store: s} }

// Load reads bars from the store and checks their ordering.
func (s *StoreSource) Load(ctx context.Context, symbol string, start, end time.Time) (domain.Series, error) {
	symbol = strings.ToUpper(symbol)
	bars, err := s.store.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return domain.Series{}, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return domain.Series{}, fmt.Errorf("%s: %w", symbol, ErrEmpty)
	}
	return Normalize(symbol, bars)
}

// Trim returns the bars of s within [start, end]. Zero bounds are open.
func Trim(s domain.Series, start, end time.Time) domain.Series {
	if start.IsZero() && end.IsZero() {
		return s
	}
	var bars []domain.Bar
	for _, b := range s.Bars {
		if !start.IsZero() && b.Date.Before(start) {
			continue
		}
		if !end.IsZero() && b.Date.After(end) {
			continue
		}
		bars = append(bars, b)
	}
	return domain.NewSeries(s.Symbol, bars)
}
