package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// FIRFilter is a linear-phase FIR filter with an odd, symmetric tap vector.
// Applied centered it introduces no phase shift.
type FIRFilter struct {
	taps []float64
}

// Len reports the tap count.
func (f *FIRFilter) Len() int { return len(f.taps) }

// TapsForTransition sizes a Hamming-window design for the requested
// transition band, forced odd and at least 9 taps.
func TapsForTransition(transitionHz, rateHz float64) int {
	n := int(math.Ceil(3.3 * rateHz / transitionHz))
	if n < 9 {
		n = 9
	}
	if n%2 == 0 {
		n++
	}
	return n
}

// DesignLowpass builds a windowed-sinc lowpass with unit DC gain.
func DesignLowpass(cutoffHz, rateHz float64, numTaps int) (*FIRFilter, error) {
	if err := checkDesign(cutoffHz, rateHz, numTaps); err != nil {
		return nil, err
	}
	taps := sincTaps(cutoffHz/rateHz, numTaps)
	// Normalize so the passband (DC) gain is exactly one.
	floats.Scale(1/floats.Sum(taps), taps)
	return &FIRFilter{taps: taps}, nil
}

// DesignHighpass builds a highpass by spectral inversion of the matching
// lowpass.
func DesignHighpass(cutoffHz, rateHz float64, numTaps int) (*FIRFilter, error) {
	lp, err := DesignLowpass(cutoffHz, rateHz, numTaps)
	if err != nil {
		return nil, err
	}
	taps := lp.taps
	floats.Scale(-1, taps)
	taps[len(taps)/2]++
	return &FIRFilter{taps: taps}, nil
}

// DesignBandstop builds a notch spanning [lowHz, highHz] as the sum of a
// lowpass below and a highpass above the stopband.
func DesignBandstop(lowHz, highHz, rateHz float64, numTaps int) (*FIRFilter, error) {
	if lowHz >= highHz {
		return nil, fmt.Errorf("stopband [%g, %g] is inverted", lowHz, highHz)
	}
	lp, err := DesignLowpass(lowHz, rateHz, numTaps)
	if err != nil {
		return nil, err
	}
	hp, err := DesignHighpass(highHz, rateHz, numTaps)
	if err != nil {
		return nil, err
	}
	floats.Add(lp.taps, hp.taps)
	return &FIRFilter{taps: lp.taps}, nil
}

// Apply filters x without phase shift: centered convolution with the edges
// reflected. The result has the same length as x.
func (f *FIRFilter) Apply(x []float64) []float64 {
	half := len(f.taps) / 2
	ext := reflectPad(x, half)
	out := make([]float64, len(x))
	for i := range out {
		out[i] = floats.Dot(f.taps, ext[i:i+len(f.taps)])
	}
	return out
}

func checkDesign(cutoffHz, rateHz float64, numTaps int) error {
	if rateHz <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", rateHz)
	}
	if cutoffHz <= 0 || cutoffHz >= rateHz/2 {
		return fmt.Errorf("cutoff %g Hz outside (0, %g) at %g Hz", cutoffHz, rateHz/2, rateHz)
	}
	if numTaps < 3 || numTaps%2 == 0 {
		return fmt.Errorf("tap count must be odd and at least 3, got %d", numTaps)
	}
	return nil
}

// sincTaps computes a Hamming-windowed sinc kernel for normalized cutoff
// fc (cycles per sample).
func sincTaps(fc float64, numTaps int) []float64 {
	taps := make([]float64, numTaps)
	mid := numTaps / 2
	for i := range taps {
		n := float64(i - mid)
		var s float64
		if n == 0 {
			s = 2 * math.Pi * fc
		} else {
			s = math.Sin(2*math.Pi*fc*n) / n
		}
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(numTaps-1))
		taps[i] = s * w
	}
	return taps
}

// reflectPad extends x by half samples on both ends, mirroring around the
// first and last sample. Short inputs fall back to edge replication.
func reflectPad(x []float64, half int) []float64 {
	ext := make([]float64, 0, len(x)+2*half)
	for i := half; i > 0; i-- {
		if i < len(x) {
			ext = append(ext, x[i])
		} else {
			ext = append(ext, x[0])
		}
	}
	ext = append(ext, x...)
	for i := 2; i <= half+1; i++ {
		if len(x)-i >= 0 {
			ext = append(ext, x[len(x)-i])
		} else {
			ext = append(ext, x[len(x)-1])
		}
	}
	return ext
}
