package indicator

import (
	"math"
	"testing"

	"siglab/internal/domain"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-12 }

// expect compares got against want, where nil entries in want mean
// "undefined".
func expect(t *testing.T, name string, got []domain.NullFloat, want []*float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len = %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		switch {
		case want[i] == nil && got[i].Valid:
			t.Errorf("%s[%d] = %v, want undefined", name, i, got[i].Float64)
		case want[i] != nil && !got[i].Valid:
			t.Errorf("%s[%d] undefined, want %v", name, i, *want[i])
		case want[i] != nil && !approx(got[i].Float64, *want[i]):
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i].Float64, *want[i])
		}
	}
}

func f(v float64) *float64 { return &v }

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	expect(t, "SMA", got, []*float64{nil, nil, f(2), f(3), f(4)})
}

func TestSMAWindowLongerThanSeries(t *testing.T) {
	got := SMA([]float64{1, 2}, 5)
	expect(t, "SMA", got, []*float64{nil, nil})
}

func TestSMANonPositiveWindow(t *testing.T) {
	for _, n := range []int{0, -3} {
		got := SMA([]float64{1, 2, 3}, n)
		expect(t, "SMA", got, []*float64{nil, nil, nil})
	}
}

func TestRollingMaxMin(t *testing.T) {
	xs := Values([]float64{3, 1, 4, 1, 5, 9, 2})
	expect(t, "RollingMax", RollingMax(xs, 3), []*float64{nil, nil, f(4), f(4), f(5), f(9), f(9)})
	expect(t, "RollingMin", RollingMin(xs, 3), []*float64{nil, nil, f(1), f(1), f(1), f(1), f(2)})
}

func TestRollingStd(t *testing.T) {
	xs := Values([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	got := RollingStd(xs, 8)
	// Sample std of the classic 2,4,4,4,5,5,7,9 set is sqrt(32/7).
	if !got[7].Valid || !approx(got[7].Float64, math.Sqrt(32.0/7.0)) {
		t.Errorf("RollingStd[7] = %+v, want %v", got[7], math.Sqrt(32.0/7.0))
	}
	for i := 0; i < 7; i++ {
		if got[i].Valid {
			t.Errorf("RollingStd[%d] should be undefined", i)
		}
	}

	one := RollingStd(xs, 1)
	for i := range one {
		if one[i].Valid {
			t.Fatalf("RollingStd with window 1 should be undefined at %d", i)
		}
	}
}

func TestRollingSkipsUndefinedInputs(t *testing.T) {
	// An undefined element poisons every window that contains it.
	xs := PctChange([]float64{100, 110, 121, 133.1})
	got := RollingMean(xs, 2)
	expect(t, "RollingMean", got, []*float64{nil, nil, f(0.1), f(0.1)})
}

func TestPctChange(t *testing.T) {
	got := PctChange([]float64{100, 110, 99})
	expect(t, "PctChange", got, []*float64{nil, f(0.1), f(-0.1)})
}

func TestShift(t *testing.T) {
	xs := Values([]float64{1, 2, 3})
	expect(t, "Shift", Shift(xs, 1), []*float64{nil, f(1), f(2)})
	expect(t, "Shift", Shift(xs, 0), []*float64{f(1), f(2), f(3)})
	expect(t, "Shift", Shift(xs, 5), []*float64{nil, nil, nil})
}

func TestMeanAndSampleStd(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
	if got := SampleStd([]float64{1}); got != 0 {
		t.Errorf("SampleStd of one value = %v, want 0", got)
	}
	if got := SampleStd([]float64{1, 3}); !approx(got, math.Sqrt2) {
		t.Errorf("SampleStd([1 3]) = %v, want %v", got, math.Sqrt2)
	}
}
