package bids

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"lossless/internal/eeg"
	"lossless/internal/eeg/edf"
	"lossless/internal/tabular"
)

// ReadRaw loads the recording a path points at, fully loaded: the EDF data
// file plus whatever sidecars exist. Channel metadata comes from
// channels.tsv, events.tsv rows become annotations, and the recording
// sidecar restores reference and power-line metadata.
func ReadRaw(p Path) (*eeg.Raw, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	data := p
	if data.Suffix == "" {
		data.Suffix = "eeg"
	}
	if data.Extension == "" {
		data.Extension = DataExtension
	}

	raw, err := edf.Read(data.FPath())
	if err != nil {
		return nil, fmt.Errorf("read recording %s: %w", data.Basename(), err)
	}
	raw.Info.Subject = p.Subject

	if t, err := readOptionalTable(data.WithSuffix("channels", ".tsv").FPath()); err != nil {
		return nil, err
	} else if t != nil {
		if err := applyChannelsTable(raw, t); err != nil {
			return nil, fmt.Errorf("apply channels sidecar: %w", err)
		}
	}

	if t, err := readOptionalTable(data.WithSuffix("events", ".tsv").FPath()); err != nil {
		return nil, err
	} else if t != nil {
		as, err := annotationsFromEvents(t)
		if err != nil {
			return nil, fmt.Errorf("apply events sidecar: %w", err)
		}
		for _, a := range as {
			raw.Annotations = raw.Annotations.Add(a)
		}
	}

	var sc Sidecar
	if err := readJSON(data.WithSuffix("eeg", ".json").FPath(), &sc); err == nil {
		raw.Info.Reference = sc.EEGReference
		raw.Info.PowerLine = sc.PowerLineFrequency
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read recording sidecar: %w", err)
	}
	return raw, nil
}

func readOptionalTable(path string) (*tabular.Table, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return tabular.ReadFile(path)
}
