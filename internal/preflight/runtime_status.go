package preflight

import (
	"fmt"
	"os"
	"strings"

	"lossless/internal/bids"
	"lossless/internal/config"
)

// CheckRecipeFromConfig evaluates the pipeline recipe referenced by config.
func CheckRecipeFromConfig(cfg *config.Config) Result {
	if cfg == nil {
		return Result{Name: "Pipeline recipe", Detail: "Unknown"}
	}
	return CheckRecipe(cfg.Pipeline.ConfigPath)
}

// DatasetProbe reports a snapshot of the configured BIDS dataset root.
type DatasetProbe struct {
	Root       string
	Exists     bool
	Name       string
	Described  bool
	Recordings int
}

// ProbeDataset inspects the dataset root for status displays. A missing or
// unreadable root is not an error here; status UIs render whatever was found.
func ProbeDataset(root string) DatasetProbe {
	root = strings.TrimSpace(root)
	probe := DatasetProbe{Root: root}
	if root == "" {
		return probe
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return probe
	}
	probe.Exists = true

	if desc, err := bids.ReadDescription(root); err == nil {
		probe.Described = true
		probe.Name = desc.Name
	}
	if recordings, err := bids.FindRecordings(root); err == nil {
		probe.Recordings = len(recordings)
	}
	return probe
}

// DatasetDetail renders a display-friendly summary for status UIs.
func (p DatasetProbe) DatasetDetail() string {
	if p.Root == "" {
		return "No dataset configured"
	}
	if !p.Exists {
		return fmt.Sprintf("Dataset root %s missing", p.Root)
	}
	name := p.Name
	if name == "" {
		name = "unnamed dataset"
	}
	noun := "recordings"
	if p.Recordings == 1 {
		noun = "recording"
	}
	return fmt.Sprintf("%s: %d %s under %s", name, p.Recordings, noun, p.Root)
}
