package builtins

import (
	"testing"
	"time"

	"siglab/internal/domain"
	"siglab/internal/strategy"
)

// closesSeries builds a daily series where open, high and low equal close.
func closesSeries(closes ...float64) domain.Series {
	bars := make([]domain.Bar, len(closes))
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.Bar{
			Symbol: "TEST",
			Date:   start.AddDate(0, 0, i),
			Open:   c, High: c, Low: c, Close: c,
		}
	}
	return domain.NewSeries("TEST", bars)
}

func rising(n int, from float64) domain.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = from + float64(i)
	}
	return closesSeries(closes...)
}

func positions(t *testing.T, sigs []domain.NullSignal) []string {
	t.Helper()
	out := make([]string, len(sigs))
	for i, s := range sigs {
		if !s.Valid {
			out[i] = "-"
			continue
		}
		out[i] = s.Position.String()
	}
	return out
}

func assertSignals(t *testing.T, got []domain.NullSignal, want []string) {
	t.Helper()
	p := positions(t, got)
	if len(p) != len(want) {
		t.Fatalf("got %d signals, want %d", len(p), len(want))
	}
	for i := range want {
		if p[i] != want[i] {
			t.Errorf("signal[%d] = %s, want %s (all: %v)", i, p[i], want[i], p)
		}
	}
}

func TestSMACrossWarmupAndRisingSeries(t *testing.T) {
	out := NewSMACross(3, 5).Generate(rising(25, 100))
	for i := 0; i < 4; i++ {
		if out.Signals[i].Valid {
			t.Errorf("signal[%d] should be undefined during warm-up", i)
		}
	}
	for i := 4; i < 25; i++ {
		if out.Signals[i] != domain.Signal(domain.Long) {
			t.Errorf("signal[%d] = %+v, want long", i, out.Signals[i])
		}
	}
	if len(out.Columns) != 2 || out.Columns[0].Name != "sma_fast" || out.Columns[1].Name != "sma_slow" {
		t.Errorf("unexpected columns: %+v", out.Columns)
	}
}

func TestSMACrossBecomesLongAndStays(t *testing.T) {
	// Falling then strictly rising: once the fast average crosses above it
	// must stay above.
	closes := []float64{120, 118, 116, 114, 112, 110, 108, 106, 104, 102}
	for i := 0; i < 30; i++ {
		closes = append(closes, 103+float64(i))
	}
	out := NewSMACross(3, 8).Generate(closesSeries(closes...))

	first := -1
	for i, s := range out.Signals {
		if s.Valid && s.Position == domain.Long {
			first = i
			break
		}
	}
	if first < 0 {
		t.Fatal("signal never became long on a rising series")
	}
	for i := first; i < len(out.Signals); i++ {
		if out.Signals[i] != domain.Signal(domain.Long) {
			t.Fatalf("signal[%d] = %+v after crossover at %d, want long", i, out.Signals[i], first)
		}
	}
	for i := 7; i < first; i++ {
		if out.Signals[i] != domain.Signal(domain.Flat) {
			t.Errorf("signal[%d] = %+v before crossover, want flat", i, out.Signals[i])
		}
	}
}

func TestSMACrossTieIsFlat(t *testing.T) {
	out := NewSMACross(2, 4).Generate(closesSeries(5, 5, 5, 5, 5))
	assertSignals(t, out.Signals, []string{"-", "-", "-", "flat", "flat"})
}

func TestMomentum(t *testing.T) {
	out := NewMomentum(2).Generate(closesSeries(10, 11, 12, 11, 11, 13))
	// bar2: 12>10 long, bar3: 11>11 no, bar4: 11>12 no, bar5: 13>11 long
	assertSignals(t, out.Signals, []string{"-", "-", "long", "flat", "flat", "long"})
}

func TestMomentumLookbackBeyondSeries(t *testing.T) {
	out := NewMomentum(10).Generate(closesSeries(1, 2, 3))
	assertSignals(t, out.Signals, []string{"-", "-", "-"})
}

func TestMeanReversionSignals(t *testing.T) {
	up := NewMeanReversion(5, 1.0).Generate(closesSeries(100, 100, 100, 100, 100, 100, 110))
	// Returns 1..5 are zero, so bar 5 has a zero z-score; bar 6 jumps 10%.
	assertSignals(t, up.Signals, []string{"-", "-", "-", "-", "-", "flat", "short"})

	down := NewMeanReversion(5, 1.0).Generate(closesSeries(100, 100, 100, 100, 100, 100, 90))
	assertSignals(t, down.Signals, []string{"-", "-", "-", "-", "-", "flat", "long"})

	if len(up.Columns) != 1 || up.Columns[0].Name != "zscore" {
		t.Fatalf("unexpected columns: %+v", up.Columns)
	}
	if z := up.Columns[0].Values[6]; !z.Valid || z.Float64 <= 1 {
		t.Errorf("zscore[6] = %+v, want > 1", z)
	}
}

func TestMeanReversionThresholdIsStrict(t *testing.T) {
	m := NewMeanReversion(5, 1.0)
	tests := []struct {
		z    float64
		want domain.Position
	}{
		{1.0, domain.Flat},
		{-1.0, domain.Flat},
		{1.0001, domain.Short},
		{-1.0001, domain.Long},
		{0, domain.Flat},
	}
	for _, tt := range tests {
		if got := m.classify(tt.z); got != tt.want {
			t.Errorf("classify(%v) = %v, want %v", tt.z, got, tt.want)
		}
	}
}

func TestMeanReversionConstantReturnsAreFinite(t *testing.T) {
	// Every return is exactly zero, so the rolling deviation is zero and the
	// epsilon guard keeps the z-score finite.
	out := NewMeanReversion(3, 1.0).Generate(closesSeries(50, 50, 50, 50, 50, 50))
	for i := 3; i < 6; i++ {
		if out.Signals[i] != domain.Signal(domain.Flat) {
			t.Errorf("signal[%d] = %+v, want flat", i, out.Signals[i])
		}
	}
}

func TestBreakout(t *testing.T) {
	bars := []domain.Bar{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 10, Low: 7, Close: 9},
		{High: 12, Low: 9, Close: 11},    // touches prior high 11: flat
		{High: 13, Low: 10, Close: 12.5}, // above prior high 12: long
		{High: 12, Low: 6, Close: 6.5},   // below prior low 7: short
		{High: 12, Low: 9, Close: 9},     // inside 6..13: flat
	}
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i].Date = start.AddDate(0, 0, i)
		bars[i].Open = bars[i].Close
	}
	out := NewBreakout(3).Generate(domain.NewSeries("TEST", bars))
	assertSignals(t, out.Signals, []string{"-", "-", "-", "flat", "long", "short", "flat"})
}

func TestBreakoutEqualityIsFlat(t *testing.T) {
	bars := []domain.Bar{
		{High: 10, Low: 5, Close: 7},
		{High: 10, Low: 5, Close: 7},
		{High: 10, Low: 5, Close: 10},
		{High: 10, Low: 5, Close: 5},
	}
	out := NewBreakout(2).Generate(domain.NewSeries("TEST", bars))
	assertSignals(t, out.Signals, []string{"-", "-", "flat", "flat"})
	for i, s := range out.Signals {
		if s.Valid && s.Position != domain.Flat && s.Position != domain.Long && s.Position != domain.Short {
			t.Errorf("signal[%d] has out-of-range position %d", i, s.Position)
		}
	}
}

func TestGeneratorsDoNotMutateInput(t *testing.T) {
	s := rising(30, 50)
	before := append([]domain.Bar(nil), s.Bars...)
	r := NewRegistry()
	for _, kind := range strategy.Kinds {
		p := strategy.DefaultParams()
		p.Kind = kind
		out, err := r.Generate(s, p)
		if err != nil {
			t.Fatalf("Generate(%s): %v", kind, err)
		}
		if len(out.Signals) != s.Len() {
			t.Errorf("%s produced %d signals, want %d", kind, len(out.Signals), s.Len())
		}
	}
	for i := range before {
		if s.Bars[i] != before[i] {
			t.Fatalf("bar %d was modified", i)
		}
	}
}

func TestNewRegistryListsBuiltins(t *testing.T) {
	names := NewRegistry().List()
	want := []string{"breakout", "meanrev", "momentum", "sma"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestBuiltinNamesMatchKinds(t *testing.T) {
	r := NewRegistry()
	for _, kind := range strategy.Kinds {
		p := strategy.DefaultParams()
		p.Kind = kind
		st, err := r.New(p)
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		if st.Name() != string(kind) {
			t.Errorf("Name() = %q, want %q", st.Name(), kind)
		}
	}
}
