package lossless

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigYAML []byte

// Config is a preprocessing recipe. The zero value is not usable; start
// from LoadDefault or Load so every knob carries the built-in default.
type Config struct {
	Version        string               `yaml:"version"`
	Epochs         EpochsConfig         `yaml:"epochs"`
	FindBreaks     FindBreaksConfig     `yaml:"find_breaks"`
	Filter         FilterConfig         `yaml:"filter"`
	FlagChannels   ChannelFlagsConfig   `yaml:"flag_channels"`
	FlagEpochs     EpochFlagsConfig     `yaml:"flag_epochs"`
	ICA            ICAConfig            `yaml:"ica"`
	FlagComponents ComponentFlagsConfig `yaml:"flag_components"`
}

// EpochsConfig defines the window grid the flagging steps share. Overlap
// is a fraction of the window length, not seconds.
type EpochsConfig struct {
	Length  float64 `yaml:"length"`
	Overlap float64 `yaml:"overlap"`
}

// FindBreaksConfig controls break detection. A window counts as quiet when
// its amplitude falls below Threshold times the recording median; quiet
// runs at least MinDuration seconds long are annotated.
type FindBreaksConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Threshold   float64 `yaml:"threshold"`
	MinDuration float64 `yaml:"min_duration"`
}

// FilterConfig selects the zero-phase FIR filters. A frequency of zero
// disables that filter.
type FilterConfig struct {
	HighpassHz   float64 `yaml:"highpass_hz"`
	LowpassHz    float64 `yaml:"lowpass_hz"`
	NotchHz      float64 `yaml:"notch_hz"`
	NotchWidthHz float64 `yaml:"notch_width_hz"`
	TransitionHz float64 `yaml:"transition_hz"`
}

// ChannelFlagsConfig groups the channel-flagging criteria.
type ChannelFlagsConfig struct {
	FixedThreshold FixedThresholdConfig       `yaml:"fixed_threshold"`
	Noisy          NoisyChannelsConfig        `yaml:"noisy"`
	Uncorrelated   UncorrelatedChannelsConfig `yaml:"uncorrelated"`
	Bridged        BridgedChannelsConfig      `yaml:"bridged"`
	Rank           RankChannelConfig          `yaml:"rank"`
}

// FixedThresholdConfig flags channels by absolute amplitude: dead below
// FlatUV peak to peak, saturated beyond SaturatedUV.
type FixedThresholdConfig struct {
	Enabled     bool    `yaml:"enabled"`
	FlatUV      float64 `yaml:"flat_uv"`
	SaturatedUV float64 `yaml:"saturated_uv"`
}

// NoisyChannelsConfig flags channels whose per-window spread is a robust
// outlier in more than FractionBad of the windows.
type NoisyChannelsConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Threshold   float64 `yaml:"threshold"`
	FractionBad float64 `yaml:"fraction_bad"`
}

// UncorrelatedChannelsConfig flags channels whose best correlation with
// any other channel stays below Threshold in more than FractionBad of the
// windows.
type UncorrelatedChannelsConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Threshold   float64 `yaml:"threshold"`
	FractionBad float64 `yaml:"fraction_bad"`
}

// BridgedChannelsConfig flags channel pairs that are electrically bridged:
// correlation above CorrelationMin and difference variance below
// VarianceRatioMax of their mean variance.
type BridgedChannelsConfig struct {
	Enabled          bool    `yaml:"enabled"`
	CorrelationMin   float64 `yaml:"correlation_min"`
	VarianceRatioMax float64 `yaml:"variance_ratio_max"`
}

// RankChannelConfig removes the most redundant channel so the implicit
// reference does not count toward the data rank.
type RankChannelConfig struct {
	Enabled bool `yaml:"enabled"`
}

// EpochFlagsConfig groups the window-flagging criteria.
type EpochFlagsConfig struct {
	Noisy        NoisyEpochsConfig        `yaml:"noisy"`
	Uncorrelated UncorrelatedEpochsConfig `yaml:"uncorrelated"`
}

// NoisyEpochsConfig flags windows whose median channel spread is a robust
// outlier against the rest of the recording.
type NoisyEpochsConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

// UncorrelatedEpochsConfig flags windows where the cleaned reconstruction
// no longer resembles the original signal.
type UncorrelatedEpochsConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

// ICAConfig tunes the independent component decomposition. Components of
// zero keeps every component the data rank supports.
type ICAConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Components    int     `yaml:"components"`
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	Seed          int64   `yaml:"seed"`
}

// ComponentFlagsConfig flags artifact components by excess kurtosis and by
// the fraction of power below SplitHz.
type ComponentFlagsConfig struct {
	Enabled           bool    `yaml:"enabled"`
	KurtosisThreshold float64 `yaml:"kurtosis_threshold"`
	LowFreqRatio      float64 `yaml:"low_freq_ratio"`
	SplitHz           float64 `yaml:"split_hz"`
}

// LoadDefault returns the built-in recipe.
func LoadDefault() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse built-in recipe: %w", err)
	}
	return &cfg, nil
}

// Load reads a recipe file on top of the built-in defaults, so a recipe
// only needs the keys it changes. The result is validated.
func Load(path string) (*Config, error) {
	cfg, err := LoadDefault()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse recipe %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("recipe %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Save writes the full recipe as YAML, creating parent directories as
// needed. A saved recipe loads back to an equal Config.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode recipe: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create recipe directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write recipe: %w", err)
	}
	return nil
}

// Print writes the recipe as indented YAML.
func (c *Config) Print(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to render recipe: %w", err)
	}
	return enc.Close()
}

// Hash returns a short digest of the recipe. Derivatives record it so an
// output can be traced back to the exact settings that produced it.
func (c *Config) Hash() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
