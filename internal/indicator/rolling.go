// Package indicator provides trailing-window computations over price series.
//
// Every function returns a new slice aligned 1:1 with its input. Positions
// where the trailing window does not yet hold n defined values are returned
// as invalid elements rather than zero or NaN.
package indicator

import (
	"math"

	"siglab/internal/domain"
)

// Values wraps plain floats as defined series elements.
func Values(xs []float64) []domain.NullFloat {
	out := make([]domain.NullFloat, len(xs))
	for i, x := range xs {
		out[i] = domain.Float(x)
	}
	return out
}

// window calls fn with the trailing n values ending at each index for which
// all n values are defined.
func window(xs []domain.NullFloat, n int, fn func(w []float64) float64) []domain.NullFloat {
	out := make([]domain.NullFloat, len(xs))
	if n <= 0 {
		return out
	}
	buf := make([]float64, n)
	for i := n - 1; i < len(xs); i++ {
		ok := true
		for j := 0; j < n; j++ {
			v := xs[i-n+1+j]
			if !v.Valid {
				ok = false
				break
			}
			buf[j] = v.Float64
		}
		if ok {
			out[i] = domain.Float(fn(buf))
		}
	}
	return out
}

// SMA returns the trailing simple moving average of xs over n bars.
func SMA(xs []float64, n int) []domain.NullFloat {
	return RollingMean(Values(xs), n)
}

// RollingMean returns the trailing mean over n elements.
func RollingMean(xs []domain.NullFloat, n int) []domain.NullFloat {
	return window(xs, n, mean)
}

// RollingStd returns the trailing sample standard deviation (n-1
// denominator) over n elements. A window of one element has no sample
// deviation and is left undefined.
func RollingStd(xs []domain.NullFloat, n int) []domain.NullFloat {
	if n < 2 {
		return make([]domain.NullFloat, len(xs))
	}
	return window(xs, n, sampleStd)
}

// RollingMax returns the trailing maximum over n elements.
func RollingMax(xs []domain.NullFloat, n int) []domain.NullFloat {
	return window(xs, n, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			if v > m {
				m = v
			}
		}
		return m
	})
}

// RollingMin returns the trailing minimum over n elements.
func RollingMin(xs []domain.NullFloat, n int) []domain.NullFloat {
	return window(xs, n, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			if v < m {
				m = v
			}
		}
		return m
	})
}

// PctChange returns the fractional change from the previous element. The
// first element has no predecessor and is undefined.
func PctChange(xs []float64) []domain.NullFloat {
	out := make([]domain.NullFloat, len(xs))
	for i := 1; i < len(xs); i++ {
		out[i] = domain.Float(xs[i]/xs[i-1] - 1)
	}
	return out
}

// Shift lags xs by k positions. The first k elements are undefined. A
// negative k is treated as zero.
func Shift(xs []domain.NullFloat, k int) []domain.NullFloat {
	k = max(k, 0)
	out := make([]domain.NullFloat, len(xs))
	for i := k; i < len(xs); i++ {
		out[i] = xs[i-k]
	}
	return out
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return mean(xs)
}

// SampleStd returns the sample standard deviation of xs, or 0 when fewer
// than two values are given.
func SampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return sampleStd(xs)
}

func mean(w []float64) float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}

func sampleStd(w []float64) float64 {
	m := mean(w)
	var ss float64
	for _, v := range w {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(w)-1))
}
