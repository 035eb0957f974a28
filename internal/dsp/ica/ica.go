package ica

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxIter   = 200
	defaultTolerance = 1e-4

	// Eigenvalues below this fraction of the largest are treated as rank
	// deficiency and dropped from the whitening.
	rankTolerance = 1e-9
)

// Options tunes the decomposition.
type Options struct {
	// Components caps the number of components; zero keeps every
	// component the data's rank supports.
	Components int
	MaxIter    int
	Tolerance  float64
	Seed       int64
}

// Result is a fitted decomposition. Mixing is channels by components,
// Unmixing components by channels.
type Result struct {
	Components int
	Converged  bool
	Iterations int
	Mixing     *mat.Dense
	Unmixing   *mat.Dense

	mean []float64
}

// Fit decomposes data (channels by samples) into independent components.
func Fit(data *mat.Dense, opts Options) (*Result, error) {
	rows, cols := data.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("need at least 2 channels, got %d", rows)
	}
	if cols < rows {
		return nil, fmt.Errorf("need at least as many samples as channels, got %d for %d channels", cols, rows)
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = defaultMaxIter
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaultTolerance
	}

	centered, mean := centerRows(data)
	white, dewhite, k, err := whiten(centered, opts.Components)
	if err != nil {
		return nil, err
	}

	// Whitened signals, k by samples.
	var z mat.Dense
	z.Mul(white, centered)

	b, converged, iters := fixedPoint(&z, k, opts)

	var unmixing mat.Dense
	unmixing.Mul(b, white)
	var mixing mat.Dense
	mixing.Mul(dewhite, b.T())

	return &Result{
		Components: k,
		Converged:  converged,
		Iterations: iters,
		Mixing:     &mixing,
		Unmixing:   &unmixing,
		mean:       mean,
	}, nil
}

// Sources projects data (channels by samples) into component space.
func (r *Result) Sources(data *mat.Dense) *mat.Dense {
	centered, _ := centerRowsWith(data, r.mean)
	var s mat.Dense
	s.Mul(r.Unmixing, centered)
	return &s
}

// Reconstruct maps sources back to channel space with the listed components
// zeroed out and the channel means restored.
func (r *Result) Reconstruct(sources *mat.Dense, exclude []int) *mat.Dense {
	k, n := sources.Dims()
	kept := mat.DenseCopyOf(sources)
	for _, c := range exclude {
		if c >= 0 && c < k {
			for j := 0; j < n; j++ {
				kept.Set(c, j, 0)
			}
		}
	}
	var x mat.Dense
	x.Mul(r.Mixing, kept)
	rows, cols := x.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x.Set(i, j, x.At(i, j)+r.mean[i])
		}
	}
	return &x
}

// centerRows subtracts each row's mean, returning the centered copy and
// the means.
func centerRows(data *mat.Dense) (*mat.Dense, []float64) {
	rows, _ := data.Dims()
	means := make([]float64, rows)
	for i := 0; i < rows; i++ {
		row := data.RawRowView(i)
		var sum float64
		for _, v := range row {
			sum += v
		}
		means[i] = sum / float64(len(row))
	}
	out, _ := centerRowsWith(data, means)
	return out, means
}

func centerRowsWith(data *mat.Dense, means []float64) (*mat.Dense, []float64) {
	rows, cols := data.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		m := 0.0
		if i < len(means) {
			m = means[i]
		}
		for j := 0; j < cols; j++ {
			out.Set(i, j, data.At(i, j)-m)
		}
	}
	return out, means
}

// whiten builds the whitening and dewhitening transforms from the channel
// covariance, keeping at most maxComponents well-conditioned directions.
func whiten(centered *mat.Dense, maxComponents int) (white, dewhite *mat.Dense, k int, err error) {
	rows, cols := centered.Dims()

	var cov mat.SymDense
	cov.SymOuterK(1/float64(cols-1), centered)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, nil, 0, fmt.Errorf("covariance eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues ascend; walk from the top down to the rank cutoff.
	largest := vals[len(vals)-1]
	if largest <= 0 {
		return nil, nil, 0, fmt.Errorf("data has no variance")
	}
	k = 0
	for i := len(vals) - 1; i >= 0; i-- {
		if vals[i] <= largest*rankTolerance {
			break
		}
		k++
	}
	if maxComponents > 0 && k > maxComponents {
		k = maxComponents
	}
	if k < 2 {
		return nil, nil, 0, fmt.Errorf("data rank %d is too low to decompose", k)
	}

	white = mat.NewDense(k, rows, nil)
	dewhite = mat.NewDense(rows, k, nil)
	for c := 0; c < k; c++ {
		idx := len(vals) - 1 - c
		scale := math.Sqrt(vals[idx])
		for r := 0; r < rows; r++ {
			v := vecs.At(r, idx)
			white.Set(c, r, v/scale)
			dewhite.Set(r, c, v*scale)
		}
	}
	return white, dewhite, k, nil
}

// fixedPoint runs the symmetric FastICA iteration with tanh nonlinearity
// on whitened data z (k by samples).
func fixedPoint(z *mat.Dense, k int, opts Options) (*mat.Dense, bool, int) {
	_, n := z.Dims()
	rng := rand.New(rand.NewSource(opts.Seed))

	b := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			b.Set(i, j, rng.NormFloat64())
		}
	}
	b = symmetricDecorrelate(b)

	var projected mat.Dense
	for iter := 1; iter <= opts.MaxIter; iter++ {
		projected.Mul(b, z) // k by samples

		next := mat.NewDense(k, k, nil)
		for i := 0; i < k; i++ {
			var gPrimeSum float64
			update := make([]float64, k)
			for s := 0; s < n; s++ {
				g := math.Tanh(projected.At(i, s))
				gPrimeSum += 1 - g*g
				for j := 0; j < k; j++ {
					update[j] += z.At(j, s) * g
				}
			}
			gPrimeMean := gPrimeSum / float64(n)
			for j := 0; j < k; j++ {
				next.Set(i, j, update[j]/float64(n)-gPrimeMean*b.At(i, j))
			}
		}
		next = symmetricDecorrelate(next)

		// Convergence: every unit's direction is unchanged up to sign.
		var prod mat.Dense
		prod.Mul(next, b.T())
		delta := 0.0
		for i := 0; i < k; i++ {
			delta = math.Max(delta, math.Abs(1-math.Abs(prod.At(i, i))))
		}
		b = next
		if delta < opts.Tolerance {
			return b, true, iter
		}
	}
	return b, false, opts.MaxIter
}

// symmetricDecorrelate replaces B with (B Bt)^(-1/2) B, keeping the units
// orthonormal without privileging any of them.
func symmetricDecorrelate(b *mat.Dense) *mat.Dense {
	k, _ := b.Dims()
	var bbt mat.SymDense
	bbt.SymOuterK(1, b)

	var eig mat.EigenSym
	if ok := eig.Factorize(&bbt, true); !ok {
		return b
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	inv := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			var sum float64
			for c := 0; c < k; c++ {
				if vals[c] > 0 {
					sum += vecs.At(i, c) * vecs.At(j, c) / math.Sqrt(vals[c])
				}
			}
			inv.Set(i, j, sum)
		}
	}
	var out mat.Dense
	out.Mul(inv, b)
	return &out
}
