package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"lossless/internal/config"
	"lossless/internal/eeg/edf"
	"lossless/internal/logging"
	"lossless/internal/lossless"
	"lossless/internal/notifications"
	"lossless/internal/queue"
	"lossless/internal/services"
	"lossless/internal/stage"
)

// Reporter renders QC reports for preprocessed recordings.
type Reporter struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
}

// storedMetrics mirrors the run metrics the preprocess stage records.
type storedMetrics struct {
	ConfigHash      string       `json:"config_hash"`
	DurationSeconds float64      `json:"duration_seconds"`
	Steps           []stepMetric `json:"steps"`
}

type stepMetric struct {
	Step    string  `json:"step"`
	Seconds float64 `json:"seconds"`
}

// NewReporter constructs the report stage handler.
func NewReporter(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Reporter {
	return NewReporterWithDependencies(cfg, store, logger, notifications.NewService(cfg))
}

// NewReporterWithDependencies allows injecting custom dependencies (used for tests).
func NewReporterWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Reporter {
	rep := &Reporter{store: store, cfg: cfg, notifier: notifier}
	rep.SetLogger(logger)
	return rep
}

// SetLogger updates the reporter's logging destination while preserving component labeling.
func (r *Reporter) SetLogger(logger *slog.Logger) {
	r.logger = logging.NewComponentLogger(logger, "report")
}

func (r *Reporter) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	item.InitProgress("Reporting", "Starting QC report")
	logger.Info("starting report preparation",
		logging.String("recording", item.DisplayName()),
		logging.String("derivative", strings.TrimSpace(item.DerivativePath)))
	return nil
}

func (r *Reporter) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	stageStart := time.Now()

	source := strings.TrimSpace(item.DerivativePath)
	if source == "" {
		source = strings.TrimSpace(item.StagedFile)
	}
	if source == "" {
		return services.Wrap(
			services.ErrValidation,
			"report",
			"validate inputs",
			"No processed recording available for reporting; run preprocessing first",
			nil,
		)
	}

	flags, err := lossless.ParseFlags(item.FlagsJSON)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"report",
			"parse flags",
			"Stored flag data is unreadable; rerun preprocessing",
			err,
		)
	}
	var metrics *storedMetrics
	if strings.TrimSpace(item.MetricsJSON) != "" {
		var m storedMetrics
		if err := json.Unmarshal([]byte(item.MetricsJSON), &m); err != nil {
			logger.Warn("stored run metrics unreadable", logging.Error(err))
		} else {
			metrics = &m
		}
	}

	r.updateProgress(ctx, item, "Loading results", 10)
	raw, err := edf.Read(source)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"report",
			"load recording",
			"Failed to read the processed recording; it may have been removed",
			err,
		)
	}

	reportsDir := strings.TrimSpace(r.cfg.Paths.ReportsDir)
	if reportsDir == "" {
		return services.Wrap(
			services.ErrConfiguration,
			"report",
			"resolve reports dir",
			"Reports directory not configured; set reports_dir in your lossless config.toml",
			nil,
		)
	}
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"report",
			"ensure reports dir",
			"Failed to create reports directory; set reports_dir to a writable location",
			err,
		)
	}

	base := queue.EntitiesFromItem(item).BaseName()
	if base == "" {
		base = fmt.Sprintf("recording-%d", item.ID)
	}
	reportPath := filepath.Join(reportsDir, base+"_report.html")

	counts := flags.Counts()
	subtitle := fmt.Sprintf("%d channels, %d windows, %d components flagged", counts.Channels, counts.Epochs, counts.Components)
	if metrics != nil && metrics.ConfigHash != "" {
		subtitle = fmt.Sprintf("%s (recipe %s)", subtitle, metrics.ConfigHash)
	}
	input := reportInput{
		Label:    item.DisplayName(),
		Subtitle: subtitle,
		Raw:      raw,
		Flags:    flags,
	}
	if metrics != nil {
		input.Steps = metrics.Steps
	}

	r.updateProgress(ctx, item, "Rendering charts", 45)
	if err := writeRecordingReport(reportPath, input); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"report",
			"write report",
			"Failed to write the QC report; check reports_dir permissions",
			err,
		)
	}
	item.ReportPath = reportPath
	// Persist the report path before the summary regenerates so the page
	// links this run's report instead of showing it pending.
	persisted := *item
	if err := r.store.Update(ctx, &persisted); err != nil {
		logger.Warn("failed to persist report path", logging.Error(err))
	} else {
		*item = persisted
	}

	// The summary page is shared output; a failure there should not fail
	// the recording.
	r.updateProgress(ctx, item, "Updating dataset summary", 80)
	if err := r.writeSummary(ctx); err != nil {
		logger.Warn("summary regeneration failed", logging.Error(err))
	}

	item.ProgressMessage = fmt.Sprintf("QC report written: %s", filepath.Base(reportPath))

	if r.notifier != nil {
		if err := r.notifier.Publish(ctx, notifications.EventReportCompleted, notifications.Payload{
			"recording": item.DisplayName(),
			"report":    filepath.Base(reportPath),
		}); err != nil {
			logger.Warn("report notification failed", logging.Error(err))
		}
	}

	logger.Info("report stage summary",
		logging.String("report", reportPath),
		logging.Int("flagged_channels", counts.Channels),
		logging.Int("flagged_epochs", counts.Epochs),
		logging.Int("flagged_components", counts.Components),
		logging.Duration("stage_duration", time.Since(stageStart)))

	return nil
}

// RebuildSummary regenerates the dataset summary pages from the current
// queue contents without re-rendering per-recording reports.
func (r *Reporter) RebuildSummary(ctx context.Context) error {
	return r.writeSummary(ctx)
}

// HealthCheck verifies the report output tree is usable.
func (r *Reporter) HealthCheck(ctx context.Context) stage.Health {
	const name = "report"
	if r.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(r.cfg.Paths.ReportsDir) == "" {
		return stage.Unhealthy(name, "reports directory not configured")
	}
	return stage.Healthy(name)
}

func (r *Reporter) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, r.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := r.store.UpdateProgress(ctx, &copy); err != nil {
		logger.Warn("failed to persist report progress", logging.Error(err))
		return
	}
	*item = copy
}
