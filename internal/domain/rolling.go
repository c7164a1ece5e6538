package domain

import (
	"math"
	"sort"
)

// windowBounds returns the inclusive index range of the centered window of
// the given width at position i, clipped to [0, n). An even width puts its
// extra sample behind the label: width 100 covers [i-50, i+49]. Near the
// series edges the window shrinks instead of padding, so every position has
// at least one sample.
func windowBounds(i, n, width int) (lo, hi int) {
	lo = i - width/2
	hi = i + (width-1)/2
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

// rollingMedian computes the centered rolling median of values. Even-sized
// windows take the mean of the two middle samples.
func rollingMedian(values []float64, width int) []float64 {
	n := len(values)
	out := make([]float64, n)
	scratch := make([]float64, 0, width)
	for i := range values {
		lo, hi := windowBounds(i, n, width)
		scratch = append(scratch[:0], values[lo:hi+1]...)
		sort.Float64s(scratch)
		m := len(scratch)
		if m%2 == 1 {
			out[i] = scratch[m/2]
		} else {
			out[i] = (scratch[m/2-1] + scratch[m/2]) / 2
		}
	}
	return out
}

// rollingMean computes the centered rolling mean of values.
func rollingMean(values []float64, width int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := range values {
		lo, hi := windowBounds(i, n, width)
		sum := 0.0
		for _, v := range values[lo : hi+1] {
			sum += v
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// rollingStd computes the centered rolling sample standard deviation of
// values (divisor count-1). Windows holding fewer than two samples yield 0.
func rollingStd(values []float64, width int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := range values {
		lo, hi := windowBounds(i, n, width)
		count := hi - lo + 1
		if count < 2 {
			out[i] = 0
			continue
		}
		sum := 0.0
		for _, v := range values[lo : hi+1] {
			sum += v
		}
		mean := sum / float64(count)
		ss := 0.0
		for _, v := range values[lo : hi+1] {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(count-1))
	}
	return out
}
