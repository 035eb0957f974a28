package testsupport

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"lossless/internal/eeg"
	"lossless/internal/eeg/edf"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// SyntheticRaw builds a small synthetic recording with the requested channel
// count, duration, and sample rate. Each channel carries a distinct mix of
// sinusoids so the signals are non-degenerate without being random.
func SyntheticRaw(t testing.TB, nChannels int, seconds, rate float64) *eeg.Raw {
	t.Helper()

	if nChannels <= 0 {
		nChannels = 4
	}
	if rate <= 0 {
		rate = 100
	}
	n := int(seconds * rate)
	if n <= 0 {
		n = int(rate)
	}
	channels := make([]eeg.Channel, nChannels)
	data := make([][]float64, nChannels)
	for c := range channels {
		channels[c] = eeg.Channel{Name: fmt.Sprintf("E%d", c+1), Type: eeg.ChannelEEG, Unit: "uV"}
		row := make([]float64, n)
		freq := 4.0 + 2.0*float64(c)
		for i := range row {
			ts := float64(i) / rate
			row[i] = 20*math.Sin(2*math.Pi*freq*ts) + 5*math.Sin(2*math.Pi*1.3*ts+float64(c))
		}
		data[c] = row
	}
	raw, err := eeg.NewRaw(channels, rate, data)
	if err != nil {
		t.Fatalf("build recording: %v", err)
	}
	return raw
}

// WriteRecording writes a synthetic recording to path in EDF format and
// returns what was written.
func WriteRecording(t testing.TB, path string, nChannels int, seconds float64) *eeg.Raw {
	t.Helper()

	raw := SyntheticRaw(t, nChannels, seconds, 100)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := edf.Write(path, raw); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return raw
}
