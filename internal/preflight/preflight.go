package preflight

import (
	"context"
	"strings"

	"lossless/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks gated by optional features are only run when the feature is
// configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Directories the workflow writes into on every run.
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("Reports directory", cfg.Paths.ReportsDir))

	// Derivatives land under the dataset root, so it must be writable too.
	if strings.TrimSpace(cfg.Paths.DataDir) != "" {
		results = append(results, CheckDirectoryAccess("Dataset directory", cfg.Paths.DataDir))
	}

	results = append(results, CheckDiskSpace("Staging disk space", cfg.Paths.StagingDir))
	results = append(results, CheckRecipe(cfg.Pipeline.ConfigPath))

	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		results = append(results, CheckNtfy(ctx, topic))
	}

	return results
}
