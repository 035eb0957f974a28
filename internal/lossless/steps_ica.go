package lossless

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"lossless/internal/dsp"
	"lossless/internal/dsp/ica"
	"lossless/internal/logging"
)

// runICA fits FastICA over the clean part of the recording: good channels
// by the concatenated good windows. Too little clean data skips the step
// rather than failing the run.
func runICA(ctx context.Context, s *runState) error {
	chans := s.goodChannels()
	windows := s.goodEpochIdx()
	total := 0
	for _, w := range windows {
		total += s.epochs[w].N
	}
	if len(chans) < 2 || total < len(chans) {
		s.logger.Warn("skipping decomposition, not enough clean data",
			logging.Int("channels", len(chans)),
			logging.Int("windows", len(windows)))
		return nil
	}

	backing := make([]float64, len(chans)*total)
	col := 0
	for _, w := range windows {
		ep := s.epochs[w]
		for i, c := range chans {
			copy(backing[i*total+col:i*total+col+ep.N], ep.Slice(s.raw.Data[c]))
		}
		col += ep.N
	}
	data := mat.NewDense(len(chans), total, backing)

	res, err := ica.Fit(data, ica.Options{
		Components: s.cfg.ICA.Components,
		MaxIter:    s.cfg.ICA.MaxIterations,
		Tolerance:  s.cfg.ICA.Tolerance,
		Seed:       s.cfg.ICA.Seed,
	})
	if err != nil {
		return err
	}
	s.ica = res
	s.sources = res.Sources(data)
	s.icaChannels = chans
	s.icaEpochs = windows

	if !res.Converged {
		s.logger.Warn("decomposition did not converge",
			logging.Int("iterations", res.Iterations))
	}
	s.logger.Debug("decomposition complete",
		logging.Int("components", res.Components),
		logging.Int("iterations", res.Iterations))
	return nil
}

// runFlagComponents classifies components: spiky ones by excess kurtosis,
// drift and sweat artifacts by the share of power below SplitHz.
func runFlagComponents(ctx context.Context, s *runState) error {
	if s.ica == nil || s.sources == nil {
		return nil
	}
	cfg := s.cfg.FlagComponents
	k, _ := s.sources.Dims()
	for comp := 0; comp < k; comp++ {
		src := s.sources.RawRowView(comp)
		if cfg.KurtosisThreshold > 0 {
			if kurt := dsp.Kurtosis(src); !math.IsNaN(kurt) && kurt > cfg.KurtosisThreshold {
				s.flags.FlagComponent(comp, FlagKurtosis, kurt)
				continue
			}
		}
		if cfg.LowFreqRatio > 0 {
			if ratio := dsp.PowerRatio(src, s.raw.SampleRate, cfg.SplitHz); ratio > cfg.LowFreqRatio {
				s.flags.FlagComponent(comp, FlagLowFrequency, ratio)
			}
		}
	}
	if n := len(s.flags.Components); n > 0 {
		s.logger.Info("flagged components", logging.Int("count", n))
	}
	return nil
}
