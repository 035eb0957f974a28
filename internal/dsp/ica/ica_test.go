package ica

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// three independent sources with distinct waveforms.
func testSources(n int) *mat.Dense {
	rng := rand.New(rand.NewSource(11))
	s := mat.NewDense(3, n, nil)
	for i := 0; i < n; i++ {
		t := float64(i) / 256
		s.Set(0, i, math.Sin(2*math.Pi*7*t))
		saw := math.Mod(3*t, 1)*2 - 1
		s.Set(1, i, saw)
		s.Set(2, i, rng.Float64()*2-1)
	}
	return s
}

func mix(sources *mat.Dense) *mat.Dense {
	a := mat.NewDense(4, 3, []float64{
		1.0, 0.5, 0.2,
		0.4, 1.0, 0.3,
		0.3, 0.2, 1.0,
		0.8, 0.7, 0.6,
	})
	var x mat.Dense
	x.Mul(a, sources)
	return &x
}

func absCorrelation(a, b []float64) float64 {
	var ma, mb float64
	for i := range a {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(len(a))
	mb /= float64(len(b))
	var dot, aa, bb float64
	for i := range a {
		dot += (a[i] - ma) * (b[i] - mb)
		aa += (a[i] - ma) * (a[i] - ma)
		bb += (b[i] - mb) * (b[i] - mb)
	}
	return math.Abs(dot / math.Sqrt(aa*bb))
}

func TestFitRecoversSources(t *testing.T) {
	t.Parallel()

	const n = 4096
	sources := testSources(n)
	x := mix(sources)

	res, err := Fit(x, Options{Seed: 3})
	require.NoError(t, err)
	assert.True(t, res.Converged, "fixed point did not converge in %d iterations", res.Iterations)
	assert.Equal(t, 3, res.Components)

	got := res.Sources(x)
	// Each true source must match one recovered component up to sign and
	// permutation.
	for i := 0; i < 3; i++ {
		best := 0.0
		for c := 0; c < res.Components; c++ {
			row := mat.Row(nil, c, got)
			best = math.Max(best, absCorrelation(mat.Row(nil, i, sources), row))
		}
		assert.Greaterf(t, best, 0.95, "source %d not recovered (best correlation %.3f)", i, best)
	}
}

func TestFitDropsRankDeficiency(t *testing.T) {
	t.Parallel()

	const n = 2048
	sources := testSources(n)
	x := mix(sources)
	rows, cols := x.Dims()

	// Append an exact copy of the first channel; the rank stays 3.
	dup := mat.NewDense(rows+1, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dup.Set(i, j, x.At(i, j))
		}
	}
	for j := 0; j < cols; j++ {
		dup.Set(rows, j, x.At(0, j))
	}

	res, err := Fit(dup, Options{Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Components)
}

func TestReconstructWithoutExclusions(t *testing.T) {
	t.Parallel()

	const n = 2048
	x := mix(testSources(n))
	res, err := Fit(x, Options{Seed: 5})
	require.NoError(t, err)

	back := res.Reconstruct(res.Sources(x), nil)
	rows, cols := x.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j += 97 {
			assert.InDelta(t, x.At(i, j), back.At(i, j), 1e-6)
		}
	}
}

func TestReconstructZeroesExcluded(t *testing.T) {
	t.Parallel()

	const n = 2048
	x := mix(testSources(n))
	res, err := Fit(x, Options{Seed: 5})
	require.NoError(t, err)

	sources := res.Sources(x)
	all := make([]int, res.Components)
	for i := range all {
		all[i] = i
	}
	flat := res.Reconstruct(sources, all)
	rows, cols := flat.Dims()
	// With every component removed only the channel means remain.
	for i := 0; i < rows; i++ {
		first := flat.At(i, 0)
		for j := 1; j < cols; j += 173 {
			assert.InDelta(t, first, flat.At(i, j), 1e-9)
		}
	}
}

func TestFitRejectsDegenerateInput(t *testing.T) {
	t.Parallel()

	_, err := Fit(mat.NewDense(1, 100, nil), Options{})
	assert.Error(t, err, "single channel")

	_, err = Fit(mat.NewDense(4, 3, nil), Options{})
	assert.Error(t, err, "fewer samples than channels")

	flat := mat.NewDense(3, 100, nil)
	_, err = Fit(flat, Options{})
	assert.Error(t, err, "zero variance")
}
