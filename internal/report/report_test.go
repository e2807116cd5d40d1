package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"siglab/internal/backtest"
	"siglab/internal/domain"
	"siglab/internal/strategy"
	"siglab/internal/strategy/builtins"
)

func risingReport(t *testing.T) *backtest.Report {
	t.Helper()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 6)
	for i := range bars {
		c := 10 + float64(i)
		bars[i] = domain.Bar{
			Symbol: "AAPL",
			Date:   start.AddDate(0, 0, i),
			Open:   c, High: c + 0.5, Low: c - 0.5, Close: c,
			Volume: int64(1000 + i),
		}
	}
	p := strategy.Params{Kind: strategy.KindSMA, SMAFast: 2, SMASlow: 3}
	rep, err := backtest.Evaluate(domain.NewSeries("AAPL", bars), builtins.NewRegistry(), p, backtest.DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return rep
}

func TestWriteCSV(t *testing.T) {
	rep := risingReport(t)
	path := filepath.Join(t.TempDir(), "out", "equity.csv")
	if err := WriteCSV(path, rep); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(recs) != 7 {
		t.Fatalf("records = %d, want 7", len(recs))
	}

	wantHeader := "Date,Open,High,Low,Close,Volume,sma_fast,sma_slow,signal,ret,strat_ret,equity"
	if got := strings.Join(recs[0], ","); got != wantHeader {
		t.Errorf("header = %q, want %q", got, wantHeader)
	}

	first := recs[1]
	if first[0] != "2024-01-02" {
		t.Errorf("Date = %q, want 2024-01-02", first[0])
	}
	if first[5] != "1000" {
		t.Errorf("Volume = %q, want 1000", first[5])
	}
	if first[6] != "" || first[7] != "" || first[8] != "" {
		t.Errorf("warm-up fields = %q, want empty", first[6:9])
	}
	if first[9] != "0" || first[11] != "1" {
		t.Errorf("ret, equity = %q, %q, want 0, 1", first[9], first[11])
	}

	third := recs[3]
	if third[6] != "11.5" || third[7] != "11" {
		t.Errorf("sma_fast, sma_slow = %q, %q, want 11.5, 11", third[6], third[7])
	}
	if third[8] != "1" {
		t.Errorf("signal = %q, want 1", third[8])
	}
}

func TestWriteCSVHeaderUnique(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 30)
	for i := range bars {
		c := 100 + float64(i%7) - float64(i%3)
		bars[i] = domain.Bar{
			Symbol: "AAPL", Date: start.AddDate(0, 0, i),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 500,
		}
	}
	series := domain.NewSeries("AAPL", bars)
	registry := builtins.NewRegistry()

	for _, kind := range strategy.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			p := strategy.DefaultParams()
			p.Kind = kind
			rep, err := backtest.Evaluate(series, registry, p, backtest.DefaultOptions())
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			path := filepath.Join(t.TempDir(), "equity.csv")
			if err := WriteCSV(path, rep); err != nil {
				t.Fatalf("WriteCSV: %v", err)
			}
			f, err := os.Open(path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer f.Close()
			header, err := csv.NewReader(f).Read()
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			seen := make(map[string]bool, len(header))
			for _, name := range header {
				if seen[name] {
					t.Errorf("column %q appears more than once in %v", name, header)
				}
				seen[name] = true
			}
		})
	}
}

func TestWriteParquet(t *testing.T) {
	rep := risingReport(t)
	path := filepath.Join(t.TempDir(), "equity.parquet")
	if err := WriteParquet(path, rep); err != nil {
		t.Fatalf("WriteParquet: %v", err)
	}
	got, err := ReadParquet(path)
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("records = %d, want 6", len(got))
	}
	if got[0].Signal != nil {
		t.Errorf("first Signal = %d, want nil", *got[0].Signal)
	}
	if got[2].Signal == nil || *got[2].Signal != 1 {
		t.Errorf("third Signal = %v, want 1", got[2].Signal)
	}
	if len(got[0].Columns) != 2 || got[0].Columns[0].Name != "sma_fast" {
		t.Fatalf("Columns = %+v, want sma_fast, sma_slow", got[0].Columns)
	}
	if got[0].Columns[0].Value != nil {
		t.Errorf("first sma_fast = %v, want nil", *got[0].Columns[0].Value)
	}
	if v := got[1].Columns[0].Value; v == nil || *v != 10.5 {
		t.Errorf("second sma_fast = %v, want 10.5", v)
	}
	last := got[5]
	if last.Equity != rep.Result.FinalEquity() {
		t.Errorf("Equity = %v, want %v", last.Equity, rep.Result.FinalEquity())
	}
	if !time.UnixMilli(last.Date).UTC().Equal(rep.Result.Rows[5].Bar.Date) {
		t.Errorf("Date = %v, want %v", time.UnixMilli(last.Date).UTC(), rep.Result.Rows[5].Bar.Date)
	}
}

func TestFormatMetrics(t *testing.T) {
	m := backtest.Metrics{TotalReturn: 0.5, CAGR: 0, MaxDrawdown: -0.25, Sharpe: 1.5}
	want := "Metrics: {'TotalReturn': 0.5, 'CAGR': 0.0, 'MaxDrawdown': -0.25, 'Sharpe': 1.5}"
	if got := FormatMetrics(m); got != want {
		t.Errorf("FormatMetrics = %q, want %q", got, want)
	}

	m = backtest.Metrics{TotalReturn: -2, CAGR: math.NaN(), MaxDrawdown: -2, Sharpe: math.Inf(-1)}
	want = "Metrics: {'TotalReturn': -2.0, 'CAGR': nan, 'MaxDrawdown': -2.0, 'Sharpe': -inf}"
	if got := FormatMetrics(m); got != want {
		t.Errorf("FormatMetrics = %q, want %q", got, want)
	}
}

func TestPrintMetrics(t *testing.T) {
	var buf bytes.Buffer
	m := backtest.Metrics{TotalReturn: 0.1, CAGR: 0.2, MaxDrawdown: -0.05, Sharpe: 2}
	if err := PrintMetrics(&buf, "AAPL", "sma(10,20)", m); err != nil {
		t.Fatalf("PrintMetrics: %v", err)
	}
	out := buf.String()
	for _, s := range []string{"AAPL", "sma(10,20)", "Total return", "+10.00%", "-5.00%", "2.000"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
}
