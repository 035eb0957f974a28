package lossless

import (
	"errors"
	"fmt"
)

// Validate checks the recipe's internal consistency. Checks that depend on
// the recording, such as Nyquist limits, live in ValidateForRate.
func (c *Config) Validate() error {
	if err := c.validateEpochs(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}
	if err := c.validateFlagging(); err != nil {
		return err
	}
	if err := c.validateICA(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEpochs() error {
	if c.Epochs.Length <= 0 {
		return errors.New("epochs.length must be positive (seconds)")
	}
	if c.Epochs.Overlap < 0 || c.Epochs.Overlap >= 1 {
		return errors.New("epochs.overlap must be a fraction in [0, 1)")
	}
	if c.FindBreaks.Enabled {
		if c.FindBreaks.Threshold <= 0 {
			return errors.New("find_breaks.threshold must be positive")
		}
		if c.FindBreaks.MinDuration <= 0 {
			return errors.New("find_breaks.min_duration must be positive (seconds)")
		}
	}
	return nil
}

func (c *Config) validateFilter() error {
	f := c.Filter
	if f.HighpassHz < 0 || f.LowpassHz < 0 || f.NotchHz < 0 {
		return errors.New("filter frequencies must not be negative")
	}
	if f.HighpassHz > 0 && f.LowpassHz > 0 && f.HighpassHz >= f.LowpassHz {
		return fmt.Errorf("filter.highpass_hz %g must be below filter.lowpass_hz %g", f.HighpassHz, f.LowpassHz)
	}
	if f.TransitionHz <= 0 {
		return errors.New("filter.transition_hz must be positive")
	}
	if f.NotchHz > 0 {
		if f.NotchWidthHz <= 0 {
			return errors.New("filter.notch_width_hz must be positive when filter.notch_hz is set")
		}
		if f.NotchHz <= f.NotchWidthHz/2 {
			return fmt.Errorf("filter.notch_hz %g is too low for a %g Hz stopband", f.NotchHz, f.NotchWidthHz)
		}
	}
	return nil
}

func (c *Config) validateFlagging() error {
	fc := c.FlagChannels
	if fc.FixedThreshold.Enabled && fc.FixedThreshold.FlatUV <= 0 && fc.FixedThreshold.SaturatedUV <= 0 {
		return errors.New("flag_channels.fixed_threshold needs flat_uv or saturated_uv")
	}
	for key, frac := range map[string]float64{
		"flag_channels.noisy.fraction_bad":        fc.Noisy.FractionBad,
		"flag_channels.uncorrelated.fraction_bad": fc.Uncorrelated.FractionBad,
	} {
		if frac < 0 || frac > 1 {
			return fmt.Errorf("%s must be a fraction in [0, 1]", key)
		}
	}
	if fc.Noisy.Enabled && fc.Noisy.Threshold <= 0 {
		return errors.New("flag_channels.noisy.threshold must be positive")
	}
	if fc.Uncorrelated.Enabled && (fc.Uncorrelated.Threshold <= 0 || fc.Uncorrelated.Threshold >= 1) {
		return errors.New("flag_channels.uncorrelated.threshold must be a correlation in (0, 1)")
	}
	if fc.Bridged.Enabled {
		if fc.Bridged.CorrelationMin <= 0 || fc.Bridged.CorrelationMin >= 1 {
			return errors.New("flag_channels.bridged.correlation_min must be a correlation in (0, 1)")
		}
		if fc.Bridged.VarianceRatioMax <= 0 {
			return errors.New("flag_channels.bridged.variance_ratio_max must be positive")
		}
	}
	if c.FlagEpochs.Noisy.Enabled && c.FlagEpochs.Noisy.Threshold <= 0 {
		return errors.New("flag_epochs.noisy.threshold must be positive")
	}
	if c.FlagEpochs.Uncorrelated.Enabled {
		if t := c.FlagEpochs.Uncorrelated.Threshold; t <= 0 || t >= 1 {
			return errors.New("flag_epochs.uncorrelated.threshold must be a correlation in (0, 1)")
		}
	}
	return nil
}

func (c *Config) validateICA() error {
	if c.ICA.Components < 0 {
		return errors.New("ica.components must be >= 0")
	}
	if c.ICA.MaxIterations < 0 {
		return errors.New("ica.max_iterations must be >= 0")
	}
	if c.ICA.Tolerance < 0 {
		return errors.New("ica.tolerance must be >= 0")
	}
	if c.FlagComponents.Enabled {
		if c.FlagComponents.SplitHz <= 0 {
			return errors.New("flag_components.split_hz must be positive")
		}
		if c.FlagComponents.LowFreqRatio < 0 || c.FlagComponents.LowFreqRatio > 1 {
			return errors.New("flag_components.low_freq_ratio must be a fraction in [0, 1]")
		}
	}
	return nil
}

// ValidateForRate checks the recipe against a recording's sample rate.
// Every active filter edge has to sit below the Nyquist frequency.
func (c *Config) ValidateForRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", rate)
	}
	nyquist := rate / 2
	for key, freq := range map[string]float64{
		"filter.highpass_hz": c.Filter.HighpassHz,
		"filter.lowpass_hz":  c.Filter.LowpassHz,
	} {
		if freq > 0 && freq >= nyquist {
			return fmt.Errorf("%s %g is at or above the Nyquist frequency %g", key, freq, nyquist)
		}
	}
	if c.Filter.NotchHz > 0 && c.Filter.NotchHz+c.Filter.NotchWidthHz/2 >= nyquist {
		return fmt.Errorf("filter.notch_hz %g reaches the Nyquist frequency %g", c.Filter.NotchHz, nyquist)
	}
	if c.FlagComponents.Enabled && c.FlagComponents.SplitHz >= nyquist {
		return fmt.Errorf("flag_components.split_hz %g is at or above the Nyquist frequency %g", c.FlagComponents.SplitHz, nyquist)
	}
	return nil
}
