package edf_test

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"lossless/internal/eeg"
	"lossless/internal/eeg/edf"
)

func sineRaw(t *testing.T, nSamples int) *eeg.Raw {
	t.Helper()
	channels := []eeg.Channel{
		{Name: "Cz", Type: eeg.ChannelEEG, Unit: "uV"},
		{Name: "Pz", Type: eeg.ChannelEEG, Unit: "uV"},
		{Name: "STI 014", Type: eeg.ChannelStim, Unit: "V"},
	}
	data := make([][]float64, len(channels))
	for c := range data {
		data[c] = make([]float64, nSamples)
		for s := 0; s < nSamples; s++ {
			data[c][s] = 50 * math.Sin(2*math.Pi*10*float64(s)/128+float64(c))
		}
	}
	raw, err := eeg.NewRaw(channels, 128, data)
	if err != nil {
		t.Fatalf("NewRaw() error = %v", err)
	}
	raw.Info.Subject = "pd6"
	raw.Info.StartTime = time.Date(2019, time.March, 11, 9, 30, 0, 0, time.UTC)
	return raw
}

// quantisation through int16 bounds the round-trip error by one digital step.
func maxStep(raw *eeg.Raw, ch int) float64 {
	lo, hi := raw.Data[ch][0], raw.Data[ch][0]
	for _, v := range raw.Data[ch] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return (hi - lo) / 65535
}

func TestRoundTrip(t *testing.T) {
	orig := sineRaw(t, 128*4)
	path := filepath.Join(t.TempDir(), "rec.edf")

	if err := edf.Write(path, orig); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := edf.Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.NChannels() != orig.NChannels() {
		t.Fatalf("NChannels() = %d, want %d", got.NChannels(), orig.NChannels())
	}
	if got.NSamples() != orig.NSamples() {
		t.Fatalf("NSamples() = %d, want %d", got.NSamples(), orig.NSamples())
	}
	if got.SampleRate != orig.SampleRate {
		t.Errorf("SampleRate = %g, want %g", got.SampleRate, orig.SampleRate)
	}
	for c := range orig.Channels {
		if got.Channels[c].Name != orig.Channels[c].Name {
			t.Errorf("channel %d name = %q, want %q", c, got.Channels[c].Name, orig.Channels[c].Name)
		}
		if got.Channels[c].Type != orig.Channels[c].Type {
			t.Errorf("channel %d type = %q, want %q", c, got.Channels[c].Type, orig.Channels[c].Type)
		}
		tol := maxStep(orig, c) + 1e-12
		for s := range orig.Data[c] {
			if diff := math.Abs(got.Data[c][s] - orig.Data[c][s]); diff > tol {
				t.Fatalf("channel %d sample %d off by %g (tolerance %g)", c, s, diff, tol)
			}
		}
	}
	if got.Info.Subject != "pd6" {
		t.Errorf("Info.Subject = %q, want pd6", got.Info.Subject)
	}
	if !got.Info.StartTime.Equal(orig.Info.StartTime) {
		t.Errorf("Info.StartTime = %v, want %v", got.Info.StartTime, orig.Info.StartTime)
	}
}

func TestRoundTripPartialFinalRecord(t *testing.T) {
	// 3.5 seconds at 128 Hz: the final data record is half padding.
	orig := sineRaw(t, 128*3+64)
	path := filepath.Join(t.TempDir(), "rec.edf")

	if err := edf.Write(path, orig); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := edf.Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.NSamples() != orig.NSamples() {
		t.Errorf("NSamples() = %d, want %d (padding must not leak)", got.NSamples(), orig.NSamples())
	}
}

func TestWriteRejectsFractionalRate(t *testing.T) {
	raw, err := eeg.NewRaw([]eeg.Channel{{Name: "Cz", Type: eeg.ChannelEEG}}, 100.5, [][]float64{{1, 2, 3}})
	if err != nil {
		t.Fatalf("NewRaw() error = %v", err)
	}
	if err := edf.Write(filepath.Join(t.TempDir(), "rec.edf"), raw); err == nil {
		t.Error("Write() accepted a fractional sample rate")
	}
}

func TestConstantChannelSurvives(t *testing.T) {
	raw, err := eeg.NewRaw(
		[]eeg.Channel{{Name: "flat", Type: eeg.ChannelEEG, Unit: "uV"}},
		64,
		[][]float64{make([]float64, 64)},
	)
	if err != nil {
		t.Fatalf("NewRaw() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "flat.edf")
	if err := edf.Write(path, raw); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := edf.Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	for s, v := range got.Data[0] {
		if v != 0 {
			t.Fatalf("flat channel sample %d = %g, want 0", s, v)
		}
	}
}
