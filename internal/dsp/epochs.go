package dsp

// Epoch is a fixed-length window into a recording, in sample offsets.
type Epoch struct {
	Index int
	Start int
	N     int
}

// Onset reports the epoch start in seconds.
func (e Epoch) Onset(rate float64) float64 { return float64(e.Start) / rate }

// Duration reports the epoch length in seconds.
func (e Epoch) Duration(rate float64) float64 { return float64(e.N) / rate }

// Slice returns the epoch's view of a channel. The view shares storage
// with x.
func (e Epoch) Slice(x []float64) []float64 { return x[e.Start : e.Start+e.N] }

// Epochs tiles nSamples into windows of length seconds with the given
// overlap fraction. A trailing remainder shorter than a full window is
// dropped.
func Epochs(nSamples int, rate, length, overlap float64) []Epoch {
	if rate <= 0 || length <= 0 || overlap < 0 || overlap >= 1 {
		return nil
	}
	n := int(length * rate)
	if n <= 0 || n > nSamples {
		return nil
	}
	step := int(float64(n) * (1 - overlap))
	if step < 1 {
		step = 1
	}
	var out []Epoch
	for start, idx := 0, 0; start+n <= nSamples; start, idx = start+step, idx+1 {
		out = append(out, Epoch{Index: idx, Start: start, N: n})
	}
	return out
}
