package bids

import (
	"fmt"
	"os"

	"lossless/internal/eeg"
	"lossless/internal/eeg/edf"
)

// WriteOptions controls how recordings land in the tree.
type WriteOptions struct {
	// Overwrite permits replacing an existing data file. Without it a
	// write onto an existing recording fails cleanly.
	Overwrite bool
	// DatasetName seeds dataset_description.json when the root has none.
	DatasetName string
}

// WriteRaw stores a recording and its sidecars at the location the path
// names, creating the dataset scaffolding (description, participants) as
// needed. Events may be nil when the recording has no stimulus markers.
func WriteRaw(p Path, raw *eeg.Raw, events []eeg.Event, names eeg.EventMap, opts WriteOptions) (Path, error) {
	if err := p.Validate(); err != nil {
		return Path{}, err
	}
	if p.Root == "" {
		return Path{}, fmt.Errorf("path needs a dataset root")
	}
	data := p
	data.Suffix = "eeg"
	data.Extension = DataExtension
	if data.Datatype == "" {
		data.Datatype = "eeg"
	}

	if !opts.Overwrite {
		if _, err := os.Stat(data.FPath()); err == nil {
			return Path{}, fmt.Errorf("recording %s already exists (overwrite disabled)", data.Basename())
		}
	}

	if err := edf.Write(data.FPath(), raw); err != nil {
		return Path{}, fmt.Errorf("write recording %s: %w", data.Basename(), err)
	}
	if err := channelsTable(raw).WriteFile(data.WithSuffix("channels", ".tsv").FPath()); err != nil {
		return Path{}, fmt.Errorf("write channels sidecar: %w", err)
	}
	if len(events) > 0 {
		if err := eventsTable(events, names, raw.SampleRate).WriteFile(data.WithSuffix("events", ".tsv").FPath()); err != nil {
			return Path{}, fmt.Errorf("write events sidecar: %w", err)
		}
	}
	if err := writeJSON(data.WithSuffix("eeg", ".json").FPath(), sidecarFor(data, raw)); err != nil {
		return Path{}, fmt.Errorf("write recording sidecar: %w", err)
	}
	if err := ensureDescription(data.Root, opts.DatasetName); err != nil {
		return Path{}, err
	}
	if err := ensureParticipant(data.Root, data.Subject); err != nil {
		return Path{}, err
	}
	return data, nil
}
