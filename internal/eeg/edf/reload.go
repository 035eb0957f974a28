package edf

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"lossless/internal/eeg"
)

// Reload round-trips a recording through a scratch directory: write as EDF,
// read back fully loaded. Vendor importers use it to end up with a
// format-clean recording no matter how the data was assembled in memory.
// Annotations, bad-channel marks, and recording info are carried over from
// the input since the data format does not store them. The scratch
// directory is removed before returning, on the error paths too.
func Reload(raw *eeg.Raw) (*eeg.Raw, error) {
	dir, err := os.MkdirTemp("", "lossless-scratch-")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "scratch.edf")
	if err := Write(path, raw); err != nil {
		return nil, fmt.Errorf("stage recording: %w", err)
	}
	loaded, err := Read(path)
	if err != nil {
		return nil, fmt.Errorf("reload recording: %w", err)
	}
	loaded.Annotations = slices.Clone(raw.Annotations)
	loaded.Bads = slices.Clone(raw.Bads)
	loaded.Info = raw.Info
	return loaded, nil
}
