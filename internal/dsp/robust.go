package dsp

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// madScale rescales the median absolute deviation to estimate the standard
// deviation of normal data.
const madScale = 1.4826

// Median returns the sample median, NaN for empty input.
func Median(xs []float64) float64 {
	return Quantile(xs, 0.5)
}

// Quantile returns the empirical q-quantile, NaN for empty input.
func Quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// MAD returns the scaled median absolute deviation.
func MAD(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	med := Median(xs)
	devs := make([]float64, len(xs))
	for i, x := range xs {
		devs[i] = math.Abs(x - med)
	}
	return madScale * Median(devs)
}

// RobustZScores centers on the median and scales by the MAD. A zero MAD
// (over half the values identical) yields zero scores rather than infinities.
func RobustZScores(xs []float64) []float64 {
	med := Median(xs)
	mad := MAD(xs)
	out := make([]float64, len(xs))
	if mad == 0 || math.IsNaN(mad) {
		return out
	}
	for i, x := range xs {
		out[i] = (x - med) / mad
	}
	return out
}

// Kurtosis returns the excess kurtosis, NaN when the variance vanishes.
func Kurtosis(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m2 := stat.Moment(2, xs, nil)
	if m2 == 0 {
		return math.NaN()
	}
	m4 := stat.Moment(4, xs, nil)
	return m4/(m2*m2) - 3
}

// PTP returns the peak-to-peak amplitude.
func PTP(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return hi - lo
}
