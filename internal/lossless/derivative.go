package lossless

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"lossless/internal/bids"
	"lossless/internal/eeg"
	"lossless/internal/tabular"
)

// DerivativeName is the directory under <root>/derivatives that holds
// pipeline outputs.
const DerivativeName = "lossless"

// DerivativeRoot returns the derivative tree for a dataset root.
func DerivativeRoot(datasetRoot string) string {
	return filepath.Join(datasetRoot, "derivatives", DerivativeName)
}

// SaveDerivative writes a processed recording and its QC sidecars under
// root, mirroring the recording's place in the source dataset: the signal
// as EDF with bad channels marked, the flag annotations as TSV, the flag
// set with step timings as JSON, and the mixing matrix as JSON. The
// derivative root keeps a dataset_description.json with provenance.
func SaveDerivative(root string, p bids.Path, res *Result) (bids.Path, error) {
	if res == nil || res.Raw == nil {
		return bids.Path{}, errors.New("nothing to save")
	}
	out := p
	out.Root = root
	written, err := bids.WriteRaw(out, res.Raw, nil, nil, bids.WriteOptions{Overwrite: true})
	if err != nil {
		return bids.Path{}, fmt.Errorf("failed to write derivative recording: %w", err)
	}
	if err := writeAnnotationsSidecar(written, res.Raw); err != nil {
		return bids.Path{}, err
	}
	if err := writeFlagsSidecar(written, res); err != nil {
		return bids.Path{}, err
	}
	if err := writeICASidecar(written, res); err != nil {
		return bids.Path{}, err
	}
	if err := writeProvenance(root, res.ConfigHash); err != nil {
		return bids.Path{}, err
	}
	return written, nil
}

func writeAnnotationsSidecar(p bids.Path, raw *eeg.Raw) error {
	t := tabular.New("onset", "duration", "description")
	for _, a := range raw.Annotations {
		t.Append(tabular.Record{
			"onset":       strconv.FormatFloat(a.Onset, 'f', -1, 64),
			"duration":    strconv.FormatFloat(a.Duration, 'f', -1, 64),
			"description": a.Description,
		})
	}
	path := p.WithSuffix("annotations", ".tsv").FPath()
	if err := t.WriteFile(path); err != nil {
		return fmt.Errorf("failed to write annotations sidecar: %w", err)
	}
	return nil
}

type flagsSidecar struct {
	ConfigHash string       `json:"config_hash"`
	Flags      *Flags       `json:"flags"`
	Steps      []stepRecord `json:"steps"`
}

type stepRecord struct {
	Step    string  `json:"step"`
	Seconds float64 `json:"seconds"`
}

func writeFlagsSidecar(p bids.Path, res *Result) error {
	doc := flagsSidecar{ConfigHash: res.ConfigHash, Flags: res.Flags}
	for _, st := range res.StepTimings {
		doc.Steps = append(doc.Steps, stepRecord{Step: st.Step, Seconds: st.Duration.Seconds()})
	}
	path := p.WithSuffix("flags", ".json").FPath()
	if err := writeJSON(path, doc); err != nil {
		return fmt.Errorf("failed to write flags sidecar: %w", err)
	}
	return nil
}

type icaSidecar struct {
	Components int         `json:"components"`
	Converged  bool        `json:"converged"`
	Iterations int         `json:"iterations"`
	Channels   []string    `json:"channels"`
	Mixing     [][]float64 `json:"mixing"`
}

// writeICASidecar stores the decomposition. Mixing rows follow Channels,
// columns follow component index, so flagged components can be projected
// out again later.
func writeICASidecar(p bids.Path, res *Result) error {
	if res.ICA == nil {
		return nil
	}
	rows, cols := res.ICA.Mixing.Dims()
	mixing := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		mixing[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			mixing[i][j] = res.ICA.Mixing.At(i, j)
		}
	}
	doc := icaSidecar{
		Components: res.ICA.Components,
		Converged:  res.ICA.Converged,
		Iterations: res.ICA.Iterations,
		Channels:   res.ICAChannels,
		Mixing:     mixing,
	}
	path := p.WithSuffix("ica", ".json").FPath()
	if err := writeJSON(path, doc); err != nil {
		return fmt.Errorf("failed to write ica sidecar: %w", err)
	}
	return nil
}

func writeProvenance(root, configHash string) error {
	return bids.WriteDescription(root, bids.DatasetDescription{
		Name:        DerivativeName,
		DatasetType: "derivative",
		GeneratedBy: []bids.Generator{{
			Name:        DerivativeName,
			Version:     Version,
			Description: "recipe " + configHash,
		}},
	})
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
