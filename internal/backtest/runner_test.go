package backtest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"siglab/internal/domain"
	"siglab/internal/store"
	"siglab/internal/strategy"
	"siglab/internal/strategy/builtins"
)

func seedStore(t *testing.T, symbols ...string) *store.ParquetStore {
	t.Helper()
	ps := store.NewParquetStore(t.TempDir())
	start := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	var bars []domain.Bar
	for _, sym := range symbols {
		for i := 0; i < 60; i++ {
			c := 100 + float64(i)
			bars = append(bars, domain.Bar{
				Symbol: sym,
				Date:   start.AddDate(0, 0, i),
				Open:   c, High: c + 1, Low: c - 1, Close: c,
			})
		}
	}
	if err := ps.WriteBars(context.Background(), bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	return ps
}

func TestRunnerRun(t *testing.T) {
	ps := seedStore(t, "AAPL")
	runs, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer runs.Close()

	r := NewRunner(ps, runs, builtins.NewRegistry(), nil)
	rep, err := r.Run(context.Background(), Request{Symbol: "aapl", Params: strategy.DefaultParams()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", rep.Symbol)
	}
	if len(rep.Result.Rows) != 60 {
		t.Errorf("Rows = %d, want 60", len(rep.Result.Rows))
	}
	if rep.Result.Metrics.TotalReturn <= 0 {
		t.Errorf("TotalReturn = %v, want > 0 on a rising series", rep.Result.Metrics.TotalReturn)
	}
	if rep.RunID == 0 {
		t.Fatal("RunID not set after recording")
	}

	rec, err := runs.GetRun(context.Background(), rep.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Strategy != "sma" || rec.Bars != 60 {
		t.Errorf("recorded run = %+v, want strategy sma with 60 bars", rec)
	}
	if rec.TotalReturn != rep.Result.Metrics.TotalReturn {
		t.Errorf("recorded TotalReturn = %v, want %v", rec.TotalReturn, rep.Result.Metrics.TotalReturn)
	}
}

func TestRunnerRunDateRange(t *testing.T) {
	ps := seedStore(t, "SPY")
	r := NewRunner(ps, nil, builtins.NewRegistry(), nil)

	req := Request{
		Symbol: "SPY",
		Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Params: strategy.DefaultParams(),
	}
	rep, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Result.Rows) != 10 {
		t.Errorf("Rows = %d, want 10", len(rep.Result.Rows))
	}
	// Too short for the 20-bar slow average, so the strategy never trades.
	if rep.Result.Metrics.TotalReturn != 0 {
		t.Errorf("TotalReturn = %v, want 0", rep.Result.Metrics.TotalReturn)
	}
}

func TestRunnerRunNoBars(t *testing.T) {
	r := NewRunner(store.NewParquetStore(t.TempDir()), nil, builtins.NewRegistry(), nil)
	_, err := r.Run(context.Background(), Request{Symbol: "NONE", Params: strategy.DefaultParams()})
	if !errors.Is(err, ErrNoBars) {
		t.Fatalf("Run = %v, want ErrNoBars", err)
	}
}

func TestRunnerRunAll(t *testing.T) {
	ps := seedStore(t, "AAPL", "MSFT", "SPY")
	r := NewRunner(ps, nil, builtins.NewRegistry(), nil)

	var reqs []Request
	for _, sym := range []string{"SPY", "AAPL", "MSFT"} {
		p := strategy.DefaultParams()
		p.Kind = strategy.KindMomentum
		reqs = append(reqs, Request{Symbol: sym, Params: p})
	}
	reports, err := r.RunAll(context.Background(), reqs, 2)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	for i, rep := range reports {
		if rep.Symbol != reqs[i].Symbol {
			t.Errorf("report %d symbol = %q, want %q", i, rep.Symbol, reqs[i].Symbol)
		}
	}

	reqs = append(reqs, Request{Symbol: "MISSING", Params: strategy.DefaultParams()})
	if _, err := r.RunAll(context.Background(), reqs, 4); !errors.Is(err, ErrNoBars) {
		t.Errorf("RunAll with missing symbol = %v, want ErrNoBars", err)
	}
}

func TestNewRunRecord(t *testing.T) {
	rep, err := Evaluate(seriesOf(10, 11, 12), builtins.NewRegistry(), strategy.DefaultParams(), DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	rec := NewRunRecord(rep)
	if rec.Bars != 3 || rec.Strategy != "sma" {
		t.Errorf("NewRunRecord = %+v", rec)
	}
	if rec.FirstDate.IsZero() || !rec.LastDate.After(rec.FirstDate) {
		t.Errorf("date range = %v..%v", rec.FirstDate, rec.LastDate)
	}
	if rec.Params == "" || rec.Params[0] != '{' {
		t.Errorf("Params = %q, want JSON object", rec.Params)
	}
}
