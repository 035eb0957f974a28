package lossless

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"

	"lossless/internal/dsp"
	"lossless/internal/dsp/ica"
	"lossless/internal/eeg"
	"lossless/internal/logging"
)

// step is one pipeline stage: a recipe switch plus the work itself.
type step struct {
	name    string
	enabled func(*Config) bool
	run     func(context.Context, *runState) error
}

// pipelineSteps executes in order. Channel flagging runs before the
// decomposition so ICA only sees usable channels, and the
// reconstruction-based window step runs last because it needs the fitted
// components.
var pipelineSteps = []step{
	{"find_breaks", func(c *Config) bool { return c.FindBreaks.Enabled }, runFindBreaks},
	{"filter", func(c *Config) bool {
		return c.Filter.HighpassHz > 0 || c.Filter.LowpassHz > 0 || c.Filter.NotchHz > 0
	}, runFilter},
	{"flag_channels_fixed_threshold", func(c *Config) bool { return c.FlagChannels.FixedThreshold.Enabled }, runFlagChannelsFixed},
	{"flag_channels_noisy", func(c *Config) bool { return c.FlagChannels.Noisy.Enabled }, runFlagChannelsNoisy},
	{"flag_channels_uncorrelated", func(c *Config) bool { return c.FlagChannels.Uncorrelated.Enabled }, runFlagChannelsUncorrelated},
	{"flag_bridges", func(c *Config) bool { return c.FlagChannels.Bridged.Enabled }, runFlagBridges},
	{"flag_rank", func(c *Config) bool { return c.FlagChannels.Rank.Enabled }, runFlagRank},
	{"flag_epochs_noisy", func(c *Config) bool { return c.FlagEpochs.Noisy.Enabled }, runFlagEpochsNoisy},
	{"ica", func(c *Config) bool { return c.ICA.Enabled }, runICA},
	{"flag_components", func(c *Config) bool { return c.ICA.Enabled && c.FlagComponents.Enabled }, runFlagComponents},
	{"flag_epochs_uncorrelated", func(c *Config) bool { return c.ICA.Enabled && c.FlagEpochs.Uncorrelated.Enabled }, runFlagEpochsUncorrelated},
}

// runState is shared by the steps of one Run.
type runState struct {
	cfg    *Config
	raw    *eeg.Raw
	epochs []dsp.Epoch
	flags  *Flags
	logger *slog.Logger

	// Set by the ica step for the component-based steps that follow.
	ica         *ica.Result
	sources     *mat.Dense
	icaChannels []int
	icaEpochs   []int
}

func epochGrid(cfg *Config, raw *eeg.Raw) []dsp.Epoch {
	return dsp.Epochs(raw.NSamples(), raw.SampleRate, cfg.Epochs.Length, cfg.Epochs.Overlap)
}

// goodChannels returns the EEG channels not yet marked bad.
func (s *runState) goodChannels() []int {
	return s.raw.GoodChannels(eeg.ChannelEEG)
}

// goodEpochIdx returns the windows that do not overlap a bad annotation.
func (s *runState) goodEpochIdx() []int {
	bad := s.raw.Annotations.Bad()
	idx := make([]int, 0, len(s.epochs))
	for i, ep := range s.epochs {
		onset := ep.Onset(s.raw.SampleRate)
		end := onset + ep.Duration(s.raw.SampleRate)
		overlaps := false
		for _, a := range bad {
			if a.Onset < end && a.End() > onset {
				overlaps = true
				break
			}
		}
		if !overlaps {
			idx = append(idx, i)
		}
	}
	return idx
}

// flagChannels records channel flags and marks the channels bad so later
// steps skip them.
func (s *runState) flagChannels(reason string, names []string) {
	if len(names) == 0 {
		return
	}
	slices.Sort(names)
	s.flags.FlagChannels(reason, names...)
	s.raw.MarkBad(names...)
	s.logger.Info("flagged channels",
		logging.String("reason", reason),
		logging.Int("count", len(names)),
		logging.String("channels", strings.Join(names, ",")))
}

// flagEpochs records window flags and annotates the matching spans.
func (s *runState) flagEpochs(reason string, indices []int) {
	if len(indices) == 0 {
		return
	}
	s.flags.FlagEpochs(reason, indices...)
	desc := "BAD_" + reason
	for _, i := range indices {
		ep := s.epochs[i]
		s.raw.Annotations = s.raw.Annotations.Add(eeg.Annotation{
			Onset:       ep.Onset(s.raw.SampleRate),
			Duration:    ep.Duration(s.raw.SampleRate),
			Description: desc,
		})
	}
	s.logger.Info("flagged windows",
		logging.String("reason", reason),
		logging.Int("count", len(indices)))
}

func maxAbs(xs []float64) float64 {
	var m float64
	for _, x := range xs {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

// runFilter applies the recipe's zero-phase filters to every data channel
// in place. Stim channels keep their raw levels.
func runFilter(ctx context.Context, s *runState) error {
	f := s.cfg.Filter
	rate := s.raw.SampleRate
	taps := dsp.TapsForTransition(f.TransitionHz, rate)

	var filters []*dsp.FIRFilter
	if f.HighpassHz > 0 {
		hp, err := dsp.DesignHighpass(f.HighpassHz, rate, taps)
		if err != nil {
			return err
		}
		filters = append(filters, hp)
	}
	if f.LowpassHz > 0 {
		lp, err := dsp.DesignLowpass(f.LowpassHz, rate, taps)
		if err != nil {
			return err
		}
		filters = append(filters, lp)
	}
	if f.NotchHz > 0 {
		half := f.NotchWidthHz / 2
		notch, err := dsp.DesignBandstop(f.NotchHz-half, f.NotchHz+half, rate, taps)
		if err != nil {
			return err
		}
		filters = append(filters, notch)
	}

	for c := range s.raw.Data {
		if s.raw.Channels[c].Type == eeg.ChannelStim {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		x := s.raw.Data[c]
		for _, fir := range filters {
			x = fir.Apply(x)
		}
		s.raw.Data[c] = x
	}
	return nil
}
