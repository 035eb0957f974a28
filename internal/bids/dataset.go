package bids

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lossless/internal/tabular"
)

// DatasetDescription is the dataset_description.json at a dataset root.
type DatasetDescription struct {
	Name         string      `json:"Name"`
	BIDSVersion  string      `json:"BIDSVersion"`
	DatasetType  string      `json:"DatasetType,omitempty"`
	Authors      []string    `json:"Authors,omitempty"`
	GeneratedBy  []Generator `json:"GeneratedBy,omitempty"`
	SourceDatasets []SourceDataset `json:"SourceDatasets,omitempty"`
}

// Generator records the tool that produced a derivative dataset.
type Generator struct {
	Name        string `json:"Name"`
	Version     string `json:"Version,omitempty"`
	Description string `json:"Description,omitempty"`
}

// SourceDataset points a derivative dataset back at its input.
type SourceDataset struct {
	URL     string `json:"URL,omitempty"`
	Version string `json:"Version,omitempty"`
}

// bidsVersion is the layout version written into new descriptions.
const bidsVersion = "1.9.0"

// ReadDescription loads the dataset_description.json under root.
func ReadDescription(root string) (*DatasetDescription, error) {
	var d DatasetDescription
	if err := readJSON(filepath.Join(root, "dataset_description.json"), &d); err != nil {
		return nil, fmt.Errorf("read dataset description: %w", err)
	}
	return &d, nil
}

// WriteDescription stores a dataset_description.json under root, creating
// the root if needed.
func WriteDescription(root string, d DatasetDescription) error {
	if d.Name == "" {
		d.Name = filepath.Base(root)
	}
	if d.BIDSVersion == "" {
		d.BIDSVersion = bidsVersion
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create dataset root: %w", err)
	}
	return writeJSON(filepath.Join(root, "dataset_description.json"), d)
}

// ensureDescription writes a raw-dataset description only when none exists.
func ensureDescription(root, name string) error {
	path := filepath.Join(root, "dataset_description.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return WriteDescription(root, DatasetDescription{Name: name, DatasetType: "raw"})
}

// ensureParticipant appends the subject to participants.tsv when missing.
func ensureParticipant(root, subject string) error {
	path := filepath.Join(root, "participants.tsv")
	id := "sub-" + subject

	t, err := tabular.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read participants: %w", err)
		}
		t = tabular.New("participant_id")
	}
	for i := 0; i < t.Len(); i++ {
		if t.Get(i, "participant_id") == id {
			return nil
		}
	}
	t.Append(tabular.Record{"participant_id": id})
	return t.WriteFile(path)
}

// FindRecordings walks a dataset tree and returns a sorted path for every
// EEG data file. Derivative trees under the root are skipped.
func FindRecordings(root string) ([]Path, error) {
	var paths []Path
	err := filepath.WalkDir(root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "derivatives" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), "_eeg"+DataExtension) {
			return nil
		}
		p, err := ParseBasename(d.Name())
		if err != nil {
			return fmt.Errorf("recording %s: %w", d.Name(), err)
		}
		p.Root = root
		p.Datatype = filepath.Base(filepath.Dir(name))
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan dataset: %w", err)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].FPath() < paths[j].FPath() })
	return paths, nil
}

// Filter keeps the paths matching the non-empty fields of want.
func Filter(paths []Path, want Path) []Path {
	match := func(have, wanted string) bool { return wanted == "" || have == wanted }
	var out []Path
	for _, p := range paths {
		if match(p.Subject, want.Subject) && match(p.Session, want.Session) &&
			match(p.Task, want.Task) && match(p.Run, want.Run) {
			out = append(out, p)
		}
	}
	return out
}
