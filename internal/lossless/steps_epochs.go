package lossless

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"lossless/internal/dsp"
	"lossless/internal/eeg"
	"lossless/internal/logging"
)

// runFindBreaks annotates long spells where the recording goes quiet,
// typically rest breaks or an unplugged amplifier. Quiet means the median
// window amplitude drops below a fraction of the recording's median.
func runFindBreaks(ctx context.Context, s *runState) error {
	chans := s.goodChannels()
	if len(chans) == 0 || len(s.epochs) == 0 {
		return nil
	}
	amp := make([]float64, len(s.epochs))
	buf := make([]float64, 0, len(chans))
	for i, ep := range s.epochs {
		buf = buf[:0]
		for _, c := range chans {
			buf = append(buf, dsp.PTP(ep.Slice(s.raw.Data[c])))
		}
		amp[i] = dsp.Median(buf)
	}
	overall := dsp.Median(amp)
	if overall <= 0 {
		return nil
	}
	cutoff := s.cfg.FindBreaks.Threshold * overall

	rate := s.raw.SampleRate
	count := 0
	start := -1
	flush := func(last int) {
		if start < 0 {
			return
		}
		onset := s.epochs[start].Onset(rate)
		end := s.epochs[last].Onset(rate) + s.epochs[last].Duration(rate)
		if end-onset >= s.cfg.FindBreaks.MinDuration {
			s.raw.Annotations = s.raw.Annotations.Add(eeg.Annotation{
				Onset:       onset,
				Duration:    end - onset,
				Description: "BAD_break",
			})
			count++
		}
		start = -1
	}
	for i := range s.epochs {
		if amp[i] < cutoff {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i - 1)
	}
	flush(len(s.epochs) - 1)

	if count > 0 {
		s.logger.Info("annotated breaks", logging.Int("count", count))
	}
	return nil
}

// runFlagEpochsNoisy flags windows whose typical channel spread stands out
// against the rest of the recording.
func runFlagEpochsNoisy(ctx context.Context, s *runState) error {
	cfg := s.cfg.FlagEpochs.Noisy
	chans := s.goodChannels()
	windows := s.goodEpochIdx()
	if len(chans) == 0 || len(windows) < 3 {
		return nil
	}
	disp := make([]float64, len(windows))
	buf := make([]float64, 0, len(chans))
	for k, w := range windows {
		ep := s.epochs[w]
		buf = buf[:0]
		for _, c := range chans {
			buf = append(buf, stat.StdDev(ep.Slice(s.raw.Data[c]), nil))
		}
		disp[k] = dsp.Median(buf)
	}
	var flagged []int
	for k, z := range dsp.RobustZScores(disp) {
		if z > cfg.Threshold {
			flagged = append(flagged, windows[k])
		}
	}
	s.flagEpochs(FlagNoisy, flagged)
	return nil
}

// runFlagEpochsUncorrelated compares each window against its cleaned
// reconstruction. Windows the retained components cannot explain are
// dominated by artifact and get annotated.
func runFlagEpochsUncorrelated(ctx context.Context, s *runState) error {
	if s.ica == nil || s.sources == nil {
		return nil
	}
	cfg := s.cfg.FlagEpochs.Uncorrelated
	recon := s.ica.Reconstruct(s.sources, s.flags.ComponentIndices())

	var flagged []int
	col := 0
	for _, w := range s.icaEpochs {
		ep := s.epochs[w]
		var sum float64
		n := 0
		for i, c := range s.icaChannels {
			orig := ep.Slice(s.raw.Data[c])
			rec := recon.RawRowView(i)[col : col+ep.N]
			if r := stat.Correlation(orig, rec, nil); !math.IsNaN(r) {
				sum += r
				n++
			}
		}
		col += ep.N
		if n > 0 && sum/float64(n) < cfg.Threshold {
			flagged = append(flagged, w)
		}
	}
	s.flagEpochs(FlagUncorrelated, flagged)
	return nil
}
