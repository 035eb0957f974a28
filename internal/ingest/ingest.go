package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"lossless/internal/bids"
	"lossless/internal/config"
	"lossless/internal/eeg"
	"lossless/internal/eeg/edf"
	"lossless/internal/logging"
	"lossless/internal/notifications"
	"lossless/internal/queue"
	"lossless/internal/services"
	"lossless/internal/stage"
)

// minRecordingSeconds is the shortest recording the workflow accepts. Anything
// shorter cannot fill a single analysis window.
const minRecordingSeconds = 1.0

// Ingester manages the intake stage: parse the source recording, resolve its
// BIDS entities, and stage a format-clean EDF for preprocessing.
type Ingester struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
}

// NewIngester constructs the ingest handler using default dependencies.
func NewIngester(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Ingester {
	return NewIngesterWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewIngesterWithNotifier allows injecting the notifier (used in tests).
func NewIngesterWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Ingester {
	ing := &Ingester{store: store, cfg: cfg, notifier: notifier}
	ing.SetLogger(logger)
	return ing
}

// SetLogger updates the ingester's logging destination while preserving component labeling.
func (i *Ingester) SetLogger(logger *slog.Logger) {
	i.logger = logging.NewComponentLogger(logger, "ingest")
}

func (i *Ingester) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	item.InitProgress("Ingesting", "Starting ingest")
	logger.Info(
		"starting ingest preparation",
		logging.String("recording", item.DisplayName()),
		logging.String("source_path", strings.TrimSpace(item.SourcePath)),
	)
	return nil
}

func (i *Ingester) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	stageStart := time.Now()

	source := strings.TrimSpace(item.SourcePath)
	if source == "" {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"validate inputs",
			"Queue item has no source recording path",
			nil,
		)
	}
	info, err := os.Stat(source)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"stat source",
			"Source recording is no longer readable; it may have been moved or deleted",
			err,
		)
	}
	if info.IsDir() {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"validate inputs",
			fmt.Sprintf("Source path %q is a directory, not a recording", source),
			nil,
		)
	}
	if ext := filepath.Ext(source); !strings.EqualFold(ext, bids.DataExtension) {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"validate format",
			fmt.Sprintf("Unsupported recording format %q; convert the recording to EDF first", ext),
			nil,
		)
	}

	i.updateProgress(ctx, item, "Reading recording", 10)
	raw, err := edf.Read(source)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"parse recording",
			"Failed to parse the EDF recording; the file may be truncated or corrupt",
			err,
		)
	}

	entities := queue.EntitiesFromItem(item)
	if entities.IsZero() {
		entities = queue.InferEntitiesFromPath(source)
	}
	if strings.TrimSpace(entities.Subject) == "" {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"resolve entities",
			fmt.Sprintf("Filename %q does not identify a subject; rename it to sub-<label>_..._eeg.edf or convert the recording", filepath.Base(source)),
			nil,
		)
	}
	if err := entityPath(entities).Validate(); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"validate entities",
			"Recording labels are not valid BIDS entities; rename the file or convert the recording",
			err,
		)
	}
	if err := i.validateSignal(ctx, raw, stageStart); err != nil {
		return err
	}

	i.updateProgress(ctx, item, "Staging recording", 60)
	stagingRoot := item.StagingRoot(i.cfg.Paths.StagingDir)
	if stagingRoot == "" {
		stagingRoot = filepath.Join(strings.TrimSpace(i.cfg.Paths.StagingDir), fmt.Sprintf("queue-%d", item.ID))
	}
	ingestedDir := filepath.Join(stagingRoot, "ingested")
	if err := os.MkdirAll(ingestedDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"ingest",
			"ensure staging dir",
			"Failed to create staging directory; set staging_dir to a writable location",
			err,
		)
	}

	// Writing the parsed recording back out normalizes the file: whatever
	// header quirks the source carried, later stages read a clean EDF.
	raw.Info.Subject = entities.Subject
	target := filepath.Join(ingestedDir, entities.BaseName()+"_eeg"+bids.DataExtension)
	if err := edf.Write(target, raw); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"ingest",
			"stage recording",
			"Failed to write the staged recording",
			err,
		)
	}

	entities.ApplyTo(item)
	item.StagedFile = target
	item.ProgressStage = "Ingested"
	item.ProgressPercent = 100
	item.ProgressMessage = fmt.Sprintf("Recording staged (%d EEG channels, %.0fs)", len(raw.ChannelsOfType(eeg.ChannelEEG)), raw.Duration())
	logger.Info(
		"ingest completed",
		logging.String("staged_file", target),
		logging.Int("channels", raw.NChannels()),
		logging.Float64("duration_seconds", raw.Duration()),
		logging.Float64("sample_rate", raw.SampleRate),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)

	if i.notifier != nil {
		if err := i.notifier.Publish(ctx, notifications.EventIngestCompleted, notifications.Payload{"recording": item.DisplayName()}); err != nil {
			logger.Warn("ingest completion notification failed", logging.Error(err))
		}
	}

	return nil
}

// validateSignal rejects recordings the pipeline could not possibly process:
// no EEG channels or too little data to fill one analysis window.
func (i *Ingester) validateSignal(ctx context.Context, raw *eeg.Raw, startedAt time.Time) error {
	logger := logging.WithContext(ctx, i.logger)
	eegCount := len(raw.ChannelsOfType(eeg.ChannelEEG))
	if eegCount == 0 {
		logger.Error("ingest validation failed", logging.String("reason", "no eeg channels"))
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"validate channels",
			"Recording contains no EEG channels",
			nil,
		)
	}
	if raw.Duration() < minRecordingSeconds {
		logger.Error(
			"ingest validation failed",
			logging.String("reason", "recording too short"),
			logging.Float64("duration_seconds", raw.Duration()),
		)
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"validate duration",
			fmt.Sprintf("Recording is only %.2fs long; at least %.0fs is required", raw.Duration(), minRecordingSeconds),
			nil,
		)
	}
	logger.Debug(
		"ingest validation succeeded",
		logging.Int("eeg_channels", eegCount),
		logging.Float64("duration_seconds", raw.Duration()),
		logging.Duration("elapsed", time.Since(startedAt)),
	)
	return nil
}

// HealthCheck verifies intake prerequisites.
func (i *Ingester) HealthCheck(ctx context.Context) stage.Health {
	const name = "ingest"
	if i.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(i.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	return stage.Healthy(name)
}

func (i *Ingester) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, i.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := i.store.UpdateProgress(ctx, &copy); err != nil {
		logger.Warn("failed to persist ingest progress", logging.Error(err))
		return
	}
	*item = copy
}

func entityPath(e queue.Entities) bids.Path {
	return bids.Path{
		Subject: e.Subject,
		Session: e.Session,
		Task:    e.Task,
		Run:     e.Run,
	}
}
