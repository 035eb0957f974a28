package lossless

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lossless/internal/dsp"
)

// runFlagChannelsFixed flags channels by absolute amplitude over the whole
// recording: dead when the signal barely moves, saturated when it pins
// against the amplifier range.
func runFlagChannelsFixed(ctx context.Context, s *runState) error {
	cfg := s.cfg.FlagChannels.FixedThreshold
	var dead, saturated []string
	for _, c := range s.goodChannels() {
		x := s.raw.Data[c]
		name := s.raw.Channels[c].Name
		if cfg.FlatUV > 0 && dsp.PTP(x) < cfg.FlatUV {
			dead = append(dead, name)
			continue
		}
		if cfg.SaturatedUV > 0 && maxAbs(x) > cfg.SaturatedUV {
			saturated = append(saturated, name)
		}
	}
	s.flagChannels(FlagDead, dead)
	s.flagChannels(FlagSaturated, saturated)
	return nil
}

// runFlagChannelsNoisy flags channels whose per-window spread is a robust
// outlier against the other channels in too many windows.
func runFlagChannelsNoisy(ctx context.Context, s *runState) error {
	cfg := s.cfg.FlagChannels.Noisy
	chans := s.goodChannels()
	windows := s.goodEpochIdx()
	if len(chans) < 3 || len(windows) == 0 {
		return nil
	}
	over := make([]int, len(chans))
	spread := make([]float64, len(chans))
	for _, w := range windows {
		ep := s.epochs[w]
		for i, c := range chans {
			spread[i] = stat.StdDev(ep.Slice(s.raw.Data[c]), nil)
		}
		for i, z := range dsp.RobustZScores(spread) {
			if z > cfg.Threshold {
				over[i]++
			}
		}
	}
	var flagged []string
	for i, c := range chans {
		if float64(over[i]) > cfg.FractionBad*float64(len(windows)) {
			flagged = append(flagged, s.raw.Channels[c].Name)
		}
	}
	s.flagChannels(FlagNoisy, flagged)
	return nil
}

// runFlagChannelsUncorrelated flags channels that fail to track any other
// channel in too many windows. Scalp potentials spread, so a channel no
// other channel follows is recording something else.
func runFlagChannelsUncorrelated(ctx context.Context, s *runState) error {
	cfg := s.cfg.FlagChannels.Uncorrelated
	chans := s.goodChannels()
	windows := s.goodEpochIdx()
	if len(chans) < 3 || len(windows) == 0 {
		return nil
	}
	low := make([]int, len(chans))
	segs := make([][]float64, len(chans))
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return err
		}
		ep := s.epochs[w]
		for i, c := range chans {
			segs[i] = ep.Slice(s.raw.Data[c])
		}
		for i := range chans {
			best := 0.0
			for j := range chans {
				if i == j {
					continue
				}
				if r := math.Abs(stat.Correlation(segs[i], segs[j], nil)); r > best {
					best = r
				}
			}
			if best < cfg.Threshold {
				low[i]++
			}
		}
	}
	var flagged []string
	for i, c := range chans {
		if float64(low[i]) > cfg.FractionBad*float64(len(windows)) {
			flagged = append(flagged, s.raw.Channels[c].Name)
		}
	}
	s.flagChannels(FlagUncorrelated, flagged)
	return nil
}

// runFlagBridges flags pairs whose signals are near copies of each other,
// the signature of gel bridging between electrodes.
func runFlagBridges(ctx context.Context, s *runState) error {
	cfg := s.cfg.FlagChannels.Bridged
	chans := s.goodChannels()
	if len(chans) < 2 {
		return nil
	}
	bridged := make(map[string]struct{})
	diff := make([]float64, s.raw.NSamples())
	for a := 0; a < len(chans); a++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for b := a + 1; b < len(chans); b++ {
			xa, xb := s.raw.Data[chans[a]], s.raw.Data[chans[b]]
			if stat.Correlation(xa, xb, nil) < cfg.CorrelationMin {
				continue
			}
			floats.SubTo(diff, xa, xb)
			meanVar := (stat.Variance(xa, nil) + stat.Variance(xb, nil)) / 2
			if meanVar > 0 && stat.Variance(diff, nil)/meanVar < cfg.VarianceRatioMax {
				bridged[s.raw.Channels[chans[a]].Name] = struct{}{}
				bridged[s.raw.Channels[chans[b]].Name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(bridged))
	for name := range bridged {
		names = append(names, name)
	}
	s.flagChannels(FlagBridged, names)
	return nil
}

// runFlagRank removes the single most redundant channel. Referenced data
// carries one linearly dependent channel; dropping the one that best
// predicts the rest restores full rank for the decomposition.
func runFlagRank(ctx context.Context, s *runState) error {
	chans := s.goodChannels()
	if len(chans) < 3 {
		return nil
	}
	typical := make([]float64, len(chans))
	rs := make([]float64, 0, len(chans)-1)
	for i := range chans {
		rs = rs[:0]
		for j := range chans {
			if i == j {
				continue
			}
			rs = append(rs, math.Abs(stat.Correlation(s.raw.Data[chans[i]], s.raw.Data[chans[j]], nil)))
		}
		typical[i] = dsp.Median(rs)
	}
	best := 0
	for i, m := range typical {
		if m > typical[best] {
			best = i
		}
	}
	s.flagChannels(FlagRank, []string{s.raw.Channels[chans[best]].Name})
	return nil
}
