package lossless

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaultRecipe(t *testing.T) {
	t.Parallel()

	cfg, err := LoadDefault()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, 1.0, cfg.Epochs.Length)
	assert.Equal(t, 1.0, cfg.Filter.HighpassHz)
	assert.Equal(t, 100.0, cfg.Filter.LowpassHz)
	assert.True(t, cfg.ICA.Enabled)
	assert.Equal(t, int64(97), cfg.ICA.Seed)
	assert.Equal(t, 2.0, cfg.FlagComponents.SplitHz)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	cfg, err := LoadDefault()
	require.NoError(t, err)
	cfg.Filter.LowpassHz = 40
	cfg.FlagChannels.Noisy.Threshold = 2.5
	cfg.ICA.Components = 15
	cfg.FindBreaks.Enabled = false

	path := filepath.Join(t.TempDir(), "recipes", "project.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadOverlaysPartialRecipe(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	recipe := "filter:\n  lowpass_hz: 40.0\nica:\n  components: 20\n"
	require.NoError(t, os.WriteFile(path, []byte(recipe), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	// Overridden keys take the file's values.
	assert.Equal(t, 40.0, cfg.Filter.LowpassHz)
	assert.Equal(t, 20, cfg.ICA.Components)
	// Everything else keeps the built-in defaults.
	assert.Equal(t, 1.0, cfg.Filter.HighpassHz)
	assert.Equal(t, int64(97), cfg.ICA.Seed)
	assert.True(t, cfg.FlagChannels.Bridged.Enabled)
}

func TestLoadRejectsInvalidRecipe(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs:\n  length: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "epochs.length")
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateCatchesBadSettings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero epoch length", func(c *Config) { c.Epochs.Length = 0 }, "epochs.length"},
		{"full overlap", func(c *Config) { c.Epochs.Overlap = 1 }, "epochs.overlap"},
		{"inverted band", func(c *Config) { c.Filter.HighpassHz = 50; c.Filter.LowpassHz = 10 }, "highpass"},
		{"zero transition", func(c *Config) { c.Filter.TransitionHz = 0 }, "transition"},
		{"notch below its width", func(c *Config) { c.Filter.NotchHz = 0.5 }, "notch_hz"},
		{"noisy threshold", func(c *Config) { c.FlagChannels.Noisy.Threshold = 0 }, "noisy.threshold"},
		{"correlation out of range", func(c *Config) { c.FlagChannels.Bridged.CorrelationMin = 1.5 }, "correlation_min"},
		{"negative components", func(c *Config) { c.ICA.Components = -1 }, "ica.components"},
		{"break duration", func(c *Config) { c.FindBreaks.MinDuration = 0 }, "min_duration"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := LoadDefault()
			require.NoError(t, err)
			tc.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateForRate(t *testing.T) {
	t.Parallel()

	cfg, err := LoadDefault()
	require.NoError(t, err)

	// The default 100 Hz lowpass needs a rate above 200 Hz.
	require.NoError(t, cfg.ValidateForRate(250))
	err = cfg.ValidateForRate(150)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nyquist")

	cfg.Filter.LowpassHz = 0
	require.NoError(t, cfg.ValidateForRate(150))
}

func TestHashTracksRecipeChanges(t *testing.T) {
	t.Parallel()

	a, err := LoadDefault()
	require.NoError(t, err)
	b, err := LoadDefault()
	require.NoError(t, err)

	require.NotEmpty(t, a.Hash())
	assert.Equal(t, a.Hash(), b.Hash())

	b.Filter.LowpassHz = 45
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestPrintRoundTrips(t *testing.T) {
	t.Parallel()

	cfg, err := LoadDefault()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cfg.Print(&buf))
	assert.Contains(t, buf.String(), "lowpass_hz")

	var back Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, *cfg, back)
}
