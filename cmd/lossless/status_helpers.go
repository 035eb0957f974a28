package main

import (
	"strings"

	"github.com/gofrs/flock"

	"lossless/internal/config"
	"lossless/internal/preflight"
	"lossless/internal/watch"
)

func watcherStatusLine(cfg *config.Config, colorize bool) string {
	if cfg == nil {
		return renderStatusLine("Lossless", statusInfo, "Unknown", colorize)
	}
	lock := flock.New(watch.LockPath(cfg))
	locked, err := lock.TryLock()
	if err != nil {
		return renderStatusLine("Lossless", statusInfo, "Not running (run `lossless watch`)", colorize)
	}
	if locked {
		// Nobody held the lock, so no watcher or run is active.
		_ = lock.Unlock()
		return renderStatusLine("Lossless", statusInfo, "Not running (run `lossless watch`)", colorize)
	}
	return renderStatusLine("Lossless", statusOK, "Running", colorize)
}

func datasetStatusLine(cfg *config.Config, colorize bool) string {
	if cfg == nil {
		return renderStatusLine("Dataset", statusInfo, "Unknown", colorize)
	}
	probe := preflight.ProbeDataset(cfg.Paths.DataDir)
	detail := probe.DatasetDetail()
	switch {
	case probe.Root == "":
		return renderStatusLine("Dataset", statusInfo, detail, colorize)
	case !probe.Exists:
		return renderStatusLine("Dataset", statusWarn, detail, colorize)
	default:
		return renderStatusLine("Dataset", statusOK, detail, colorize)
	}
}

func notificationsStatusLine(cfg *config.Config, colorize bool) string {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return renderStatusLine("Notifications", statusInfo, "Not configured", colorize)
	}
	return renderStatusLine("Notifications", statusOK, "Configured", colorize)
}
