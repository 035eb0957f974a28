package dsp

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// BandPower estimates the signal power inside [loHz, hiHz] from a single
// periodogram.
func BandPower(x []float64, rate, loHz, hiHz float64) float64 {
	if len(x) < 2 || rate <= 0 {
		return 0
	}
	fft := fourier.NewFFT(len(x))
	coeffs := fft.Coefficients(nil, x)
	var power float64
	for i, c := range coeffs {
		freq := fft.Freq(i) * rate
		if freq >= loHz && freq <= hiHz {
			power += real(c)*real(c) + imag(c)*imag(c)
		}
	}
	return power / float64(len(x))
}

// PowerRatio reports the fraction of total power below splitHz. Returns
// zero for degenerate input.
func PowerRatio(x []float64, rate, splitHz float64) float64 {
	total := BandPower(x, rate, 0, rate/2)
	if total <= 0 {
		return 0
	}
	return BandPower(x, rate, 0, splitHz) / total
}
