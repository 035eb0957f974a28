package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, rate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
	}
	return out
}

func rms(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func TestLowpassSeparatesBands(t *testing.T) {
	t.Parallel()

	const rate = 256.0
	f, err := DesignLowpass(20, rate, TapsForTransition(10, rate))
	require.NoError(t, err)

	slow := sine(5, rate, 1024)
	fast := sine(80, rate, 1024)

	// Interior samples only, away from the reflected edges.
	keptRMS := rms(f.Apply(slow)[128:896])
	killedRMS := rms(f.Apply(fast)[128:896])
	assert.InDelta(t, rms(slow[128:896]), keptRMS, 0.05)
	assert.Less(t, killedRMS, 0.01)
}

func TestHighpassRemovesDrift(t *testing.T) {
	t.Parallel()

	const rate = 256.0
	f, err := DesignHighpass(1, rate, TapsForTransition(1, rate))
	require.NoError(t, err)

	x := sine(20, rate, 4096)
	drifted := make([]float64, len(x))
	for i := range x {
		drifted[i] = x[i] + 40 // large DC offset
	}
	out := f.Apply(drifted)[1024:3072]
	assert.InDelta(t, 0, mean(out), 0.5)
	assert.InDelta(t, rms(x[1024:3072]), rms(centered(out)), 0.1)
}

func TestBandstopNotchesLineNoise(t *testing.T) {
	t.Parallel()

	const rate = 512.0
	f, err := DesignBandstop(55, 65, rate, TapsForTransition(5, rate))
	require.NoError(t, err)

	clean := sine(10, rate, 4096)
	noisy := make([]float64, len(clean))
	line := sine(60, rate, 4096)
	for i := range clean {
		noisy[i] = clean[i] + line[i]
	}
	out := f.Apply(noisy)[512:3584]
	// The 60 Hz component is gone, the 10 Hz component survives.
	residual := make([]float64, len(out))
	for i := range out {
		residual[i] = out[i] - clean[i+512]
	}
	assert.Less(t, rms(residual), 0.05)
}

func TestZeroPhase(t *testing.T) {
	t.Parallel()

	const rate = 256.0
	f, err := DesignLowpass(30, rate, 65)
	require.NoError(t, err)

	x := sine(10, rate, 1024)
	y := f.Apply(x)
	require.Len(t, y, len(x))
	// A phase shift would decorrelate the signals; centered application
	// keeps them aligned almost perfectly.
	var dot, xx, yy float64
	for i := 200; i < 800; i++ {
		dot += x[i] * y[i]
		xx += x[i] * x[i]
		yy += y[i] * y[i]
	}
	assert.Greater(t, dot/math.Sqrt(xx*yy), 0.999)
}

func TestDesignRejectsBadParameters(t *testing.T) {
	t.Parallel()

	_, err := DesignLowpass(200, 256, 65)
	assert.Error(t, err, "cutoff above Nyquist")
	_, err = DesignLowpass(10, 256, 64)
	assert.Error(t, err, "even tap count")
	_, err = DesignBandstop(65, 55, 256, 65)
	assert.Error(t, err, "inverted stopband")
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func centered(xs []float64) []float64 {
	m := mean(xs)
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x - m
	}
	return out
}
