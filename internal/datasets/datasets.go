// Package datasets names the sample datasets the fetch command knows about
// and pulls them into the local cache through the archive client.
package datasets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"lossless/internal/config"
	"lossless/internal/logging"
	"lossless/internal/openneuro"
)

// Dataset describes a known sample dataset.
type Dataset struct {
	// ID is the OpenNeuro accession number.
	ID          string
	Name        string
	Description string
	// Subjects lists labels known to work well as small demo subsets.
	Subjects []string
}

var registry = map[string]Dataset{
	"ds002778": {
		ID:          "ds002778",
		Name:        "UC San Diego Resting State EEG",
		Description: "Resting-state EEG from Parkinson's patients and controls, 32-channel BioSemi.",
		Subjects:    []string{"pd6"},
	},
}

// Lookup returns the registry entry for a dataset id.
func Lookup(id string) (Dataset, bool) {
	ds, ok := registry[strings.TrimSpace(id)]
	return ds, ok
}

// All returns the registered sample datasets sorted by id.
func All() []Dataset {
	out := make([]Dataset, 0, len(registry))
	for _, ds := range registry {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Root returns the local directory a dataset is cached under.
func Root(cfg *config.Config, id string) string {
	return filepath.Join(cfg.Paths.CacheDir, strings.TrimSpace(id))
}

// Archive is the download surface Fetch needs from the OpenNeuro client.
type Archive interface {
	DownloadDataset(ctx context.Context, datasetID, destDir string, opts openneuro.DownloadOptions) (*openneuro.DownloadSummary, error)
}

// FetchRequest selects what to download.
type FetchRequest struct {
	Dataset  string
	Subjects []string
	// Snapshot pins a snapshot tag; empty resolves the latest.
	Snapshot string
	// Force re-downloads files that are already cached.
	Force bool
}

// FetchResult reports where a fetch landed and what it moved.
type FetchResult struct {
	Dataset string
	Root    string
	Summary *openneuro.DownloadSummary
}

// Fetch downloads a dataset (or a subject subset) into the cache directory.
// Unknown dataset ids are allowed; the registry only supplies display names
// and demo subjects.
func Fetch(ctx context.Context, cfg *config.Config, archive Archive, logger *slog.Logger, req FetchRequest) (*FetchResult, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if archive == nil {
		return nil, errors.New("archive client required")
	}
	id := strings.TrimSpace(req.Dataset)
	if id == "" {
		return nil, errors.New("dataset id must not be empty")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	includes := make([]string, 0, len(req.Subjects))
	for _, subject := range req.Subjects {
		subject = strings.TrimSpace(subject)
		if subject == "" {
			continue
		}
		includes = append(includes, "sub-"+strings.TrimPrefix(subject, "sub-"))
	}

	root := Root(cfg, id)
	logger = logger.With(logging.String(logging.FieldDataset, id))
	logger.Info("fetching dataset",
		logging.String("root", root),
		logging.String("subjects", strings.Join(includes, ",")),
	)

	sampler := logging.NewProgressSampler(10)
	summary, err := archive.DownloadDataset(ctx, id, root, openneuro.DownloadOptions{
		Snapshot:        req.Snapshot,
		IncludePrefixes: includes,
		Overwrite:       req.Force,
		Progress: func(u openneuro.ProgressUpdate) {
			percent := float64(-1)
			if u.Total > 0 {
				percent = float64(u.Index) / float64(u.Total) * 100
			}
			if !sampler.ShouldLog(percent, "download", u.Filename) {
				return
			}
			logger.Info("download progress",
				logging.String("file", u.Filename),
				logging.Int("index", u.Index),
				logging.Int("total", u.Total),
				logging.Bool("cached", u.Skipped),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}

	logger.Info("dataset ready",
		logging.String("snapshot", summary.Snapshot),
		logging.Int("files", summary.Files),
		logging.Int("downloaded", summary.Downloaded),
		logging.Int("cached", summary.Skipped),
		logging.Int64("bytes", summary.Bytes),
	)
	return &FetchResult{Dataset: id, Root: root, Summary: summary}, nil
}
