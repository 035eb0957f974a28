package lossless

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lossless/internal/bids"
	"lossless/internal/tabular"
)

func TestSaveDerivativeWritesTree(t *testing.T) {
	t.Parallel()

	cfg := quietConfig(t)
	cfg.FindBreaks.Enabled = true
	cfg.FlagChannels.FixedThreshold.Enabled = true
	p, err := New(cfg)
	require.NoError(t, err)

	// One dead channel plus a six-second quiet spell in the rest.
	raw := makeRaw(t, chanNames(4), 100, 30, func(ch, i int, ts float64) float64 {
		if ch == 1 {
			return 0.01 * math.Sin(2*math.Pi*7*ts)
		}
		amp := 20.0
		if ts >= 10 && ts < 16 {
			amp = 0.02
		}
		return amp * math.Sin(2*math.Pi*(6+float64(ch))*ts)
	})
	res, err := p.Run(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, []string{"C2"}, res.Flags.Channels[FlagDead])
	require.NotEmpty(t, raw.Annotations.Bad())

	src := bids.Path{Root: "/data/bids", Subject: "01", Session: "a", Task: "rest", Datatype: "eeg", Suffix: "eeg", Extension: ".edf"}
	derivRoot := DerivativeRoot(t.TempDir())
	written, err := SaveDerivative(derivRoot, src, res)
	require.NoError(t, err)

	dir := filepath.Join(derivRoot, "sub-01", "ses-a", "eeg")
	assert.FileExists(t, filepath.Join(dir, "sub-01_ses-a_task-rest_eeg.edf"))
	assert.FileExists(t, filepath.Join(dir, "sub-01_ses-a_task-rest_channels.tsv"))
	assert.FileExists(t, filepath.Join(dir, "sub-01_ses-a_task-rest_annotations.tsv"))
	assert.FileExists(t, filepath.Join(dir, "sub-01_ses-a_task-rest_flags.json"))
	assert.NoFileExists(t, filepath.Join(dir, "sub-01_ses-a_task-rest_ica.json"))

	var doc flagsSidecar
	data, err := os.ReadFile(filepath.Join(dir, "sub-01_ses-a_task-rest_flags.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, res.ConfigHash, doc.ConfigHash)
	assert.Equal(t, []string{"C2"}, doc.Flags.Channels[FlagDead])
	assert.NotEmpty(t, doc.Steps)

	anns, err := tabular.ReadFile(filepath.Join(dir, "sub-01_ses-a_task-rest_annotations.tsv"))
	require.NoError(t, err)
	foundBreak := false
	for i := 0; i < anns.Len(); i++ {
		if anns.Get(i, "description") == "BAD_break" {
			foundBreak = true
		}
	}
	assert.True(t, foundBreak)

	desc, err := bids.ReadDescription(derivRoot)
	require.NoError(t, err)
	assert.Equal(t, "derivative", desc.DatasetType)
	require.Len(t, desc.GeneratedBy, 1)
	assert.Equal(t, DerivativeName, desc.GeneratedBy[0].Name)
	assert.Equal(t, Version, desc.GeneratedBy[0].Version)
	assert.Contains(t, desc.GeneratedBy[0].Description, res.ConfigHash)

	// The written recording carries the bad-channel marks back out.
	reloaded, err := bids.ReadRaw(written)
	require.NoError(t, err)
	assert.Contains(t, reloaded.Bads, "C2")
	assert.Equal(t, raw.NSamples(), reloaded.NSamples())
}

func TestSaveDerivativeWithDecomposition(t *testing.T) {
	t.Parallel()

	cfg := quietConfig(t)
	cfg.ICA.Enabled = true
	p, err := New(cfg)
	require.NoError(t, err)

	raw := makeRaw(t, chanNames(6), 100, 20, func(ch, i int, ts float64) float64 {
		var x float64
		for k, freq := range []float64{7, 11, 5} {
			x += math.Sin(float64(3*ch+k+1)) * 10 * math.Sin(2*math.Pi*freq*ts+float64(k))
		}
		return x
	})
	res, err := p.Run(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, res.ICA)

	src := bids.Path{Root: "/data/bids", Subject: "02", Task: "rest", Datatype: "eeg", Suffix: "eeg", Extension: ".edf"}
	derivRoot := DerivativeRoot(t.TempDir())
	_, err = SaveDerivative(derivRoot, src, res)
	require.NoError(t, err)

	var doc icaSidecar
	data, err := os.ReadFile(filepath.Join(derivRoot, "sub-02", "eeg", "sub-02_task-rest_ica.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 3, doc.Components)
	assert.Equal(t, chanNames(6), doc.Channels)
	require.Len(t, doc.Mixing, 6)
	assert.Len(t, doc.Mixing[0], 3)
}

func TestSaveDerivativeRejectsEmptyResult(t *testing.T) {
	t.Parallel()

	root := DerivativeRoot(t.TempDir())
	src := bids.Path{Root: "/data/bids", Subject: "01", Task: "rest"}

	_, err := SaveDerivative(root, src, nil)
	require.Error(t, err)
	_, err = SaveDerivative(root, src, &Result{})
	require.Error(t, err)
}
