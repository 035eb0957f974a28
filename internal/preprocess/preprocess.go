package preprocess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"lossless/internal/bids"
	"lossless/internal/config"
	"lossless/internal/eeg"
	"lossless/internal/eeg/edf"
	"lossless/internal/logging"
	"lossless/internal/lossless"
	"lossless/internal/notifications"
	"lossless/internal/queue"
	"lossless/internal/services"
	"lossless/internal/stage"
)

// Preprocessor runs the cleaning pipeline over staged recordings.
type Preprocessor struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *lossless.Pipeline
	notifier notifications.Service
}

type runMetrics struct {
	FlaggedChannels   int          `json:"flagged_channels"`
	FlaggedEpochs     int          `json:"flagged_epochs"`
	FlaggedComponents int          `json:"flagged_components"`
	ConfigHash        string       `json:"config_hash"`
	DurationSeconds   float64      `json:"duration_seconds"`
	Steps             []stepMetric `json:"steps"`
}

type stepMetric struct {
	Step    string  `json:"step"`
	Seconds float64 `json:"seconds"`
}

// NewPreprocessor constructs the preprocessing handler. A recipe that fails
// to load leaves the handler unhealthy rather than failing construction, so
// the workflow can start and surface the problem through health checks.
func NewPreprocessor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Preprocessor {
	pipeline, err := lossless.NewPipeline(cfg.Pipeline.ConfigPath)
	if err != nil {
		logging.NewComponentLogger(logger, "preprocess").Warn("pipeline recipe unavailable", logging.Error(err))
		pipeline = nil
	}
	return NewPreprocessorWithDependencies(cfg, store, logger, pipeline, notifications.NewService(cfg))
}

// NewPreprocessorWithDependencies allows injecting custom dependencies (used for tests).
func NewPreprocessorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, pipeline *lossless.Pipeline, notifier notifications.Service) *Preprocessor {
	pre := &Preprocessor{
		store:    store,
		cfg:      cfg,
		pipeline: pipeline,
		notifier: notifier,
	}
	pre.SetLogger(logger)
	return pre
}

// SetLogger updates the preprocessor's logging destination while preserving component labeling.
func (p *Preprocessor) SetLogger(logger *slog.Logger) {
	p.logger = logging.NewComponentLogger(logger, "preprocess")
}

func (p *Preprocessor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)
	item.InitProgress("Preprocessing", "Starting preprocessing")
	logger.Debug("starting preprocess preparation")
	return nil
}

func (p *Preprocessor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)
	stageStart := time.Now()

	if p.pipeline == nil {
		return services.Wrap(
			services.ErrConfiguration,
			"preprocess",
			"load recipe",
			"Pipeline recipe unavailable; fix pipeline.config_path in the lossless config",
			nil,
		)
	}
	staged := strings.TrimSpace(item.StagedFile)
	if staged == "" {
		return services.Wrap(
			services.ErrValidation,
			"preprocess",
			"validate inputs",
			"No staged recording available; ensure the ingest stage completed successfully",
			nil,
		)
	}
	entities := queue.EntitiesFromItem(item)
	if strings.TrimSpace(entities.Subject) == "" {
		return services.Wrap(
			services.ErrValidation,
			"preprocess",
			"validate inputs",
			"Queue item carries no subject label; rerun ingest so entities are resolved",
			nil,
		)
	}

	p.updateProgress(ctx, item, "Loading recording", 5)
	raw, err := p.loadStaged(staged, entities)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"preprocess",
			"load recording",
			"Failed to load the staged recording; it may have been removed since ingest",
			err,
		)
	}
	if raw.NChannels() == 0 || raw.NSamples() == 0 {
		return services.Wrap(
			services.ErrValidation,
			"preprocess",
			"validate recording",
			"Staged recording carries no samples",
			nil,
		)
	}
	// Rate incompatibility is a recipe problem, not a pipeline failure, so
	// catch it here and route the item to review instead of retry.
	if err := p.pipeline.Config().ValidateForRate(raw.SampleRate); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"preprocess",
			"validate recording",
			fmt.Sprintf("Recipe cannot run at the recording's %g Hz sample rate; lower the filter cutoffs", raw.SampleRate),
			err,
		)
	}

	logger.Info("starting pipeline run",
		logging.String("staged_file", staged),
		logging.Int("channels", raw.NChannels()),
		logging.Float64("sample_rate", raw.SampleRate),
		logging.Float64("duration_seconds", raw.Duration()),
		logging.String("config_hash", p.pipeline.Config().Hash()))
	p.updateProgress(ctx, item, "Running pipeline", 15)

	res, err := p.pipeline.WithLogger(logger).Run(ctx, raw)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(
			services.ErrTransient,
			"preprocess",
			"run pipeline",
			"Pipeline run failed; see the recording log for the failing step",
			err,
		)
	}
	res.Source = staged
	if runID, ok := services.RunIDFromContext(ctx); ok {
		item.RunID = runID
	}

	if encoded, err := res.Flags.Encode(); err != nil {
		logger.Warn("failed to encode flag set", logging.Error(err))
	} else {
		item.FlagsJSON = encoded
	}
	metrics := runMetrics{
		FlaggedChannels:   len(res.Flags.AllChannels()),
		FlaggedEpochs:     len(res.Flags.AllEpochs()),
		FlaggedComponents: len(res.Flags.ComponentIndices()),
		ConfigHash:        res.ConfigHash,
		DurationSeconds:   time.Since(stageStart).Seconds(),
	}
	for _, st := range res.StepTimings {
		metrics.Steps = append(metrics.Steps, stepMetric{Step: st.Step, Seconds: st.Duration.Seconds()})
	}
	if data, err := json.Marshal(metrics); err != nil {
		logger.Warn("failed to marshal run metrics", logging.Error(err))
	} else {
		item.MetricsJSON = string(data)
	}

	p.updateProgress(ctx, item, "Writing derivatives", 80)
	outPath := bids.Path{
		Subject:  entities.Subject,
		Session:  entities.Session,
		Task:     entities.Task,
		Run:      entities.Run,
		Datatype: "eeg",
		Suffix:   "eeg",
	}
	written, err := lossless.SaveDerivative(p.cfg.Paths.DerivativesDir, outPath, res)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"preprocess",
			"write derivative",
			"Failed to write pipeline derivatives; check derivatives_dir permissions",
			err,
		)
	}
	item.DerivativePath = written.FPath()

	counts := res.Flags.Counts()
	summary := flagSummary(counts)
	item.ProgressStage = "Preprocessed"
	item.ProgressPercent = 100
	item.ProgressMessage = summary

	if p.notifier != nil {
		if err := p.notifier.Publish(ctx, notifications.EventPreprocessCompleted, notifications.Payload{
			"recording": item.DisplayName(),
			"flags":     summary,
		}); err != nil {
			logger.Debug("preprocess notification failed", logging.Error(err))
		}
	}

	logger.Info("preprocess stage summary",
		logging.String("derivative", item.DerivativePath),
		logging.Int("flagged_channels", counts.Channels),
		logging.Int("flagged_epochs", counts.Epochs),
		logging.Int("flagged_components", counts.Components),
		logging.String("config_hash", res.ConfigHash),
		logging.Duration("stage_duration", time.Since(stageStart)))

	return nil
}

// loadStaged reads the staged recording. A staged file that already sits at
// its dataset location is loaded with sidecars applied; anything else is a
// plain EDF read from the staging tree.
func (p *Preprocessor) loadStaged(staged string, entities queue.Entities) (*eeg.Raw, error) {
	datasetPath := bids.Path{
		Root:      p.cfg.Paths.DataDir,
		Subject:   entities.Subject,
		Session:   entities.Session,
		Task:      entities.Task,
		Run:       entities.Run,
		Datatype:  "eeg",
		Suffix:    "eeg",
		Extension: bids.DataExtension,
	}
	if filepath.Clean(datasetPath.FPath()) == filepath.Clean(staged) {
		return bids.ReadRaw(datasetPath)
	}
	raw, err := edf.Read(staged)
	if err != nil {
		return nil, err
	}
	if raw.Info.Subject == "" {
		raw.Info.Subject = entities.Subject
	}
	return raw, nil
}

func flagSummary(c lossless.Counts) string {
	if c.Channels == 0 && c.Epochs == 0 && c.Components == 0 {
		return "Clean run; nothing flagged"
	}
	return fmt.Sprintf("Flagged %d channels, %d epochs, %d components", c.Channels, c.Epochs, c.Components)
}

// HealthCheck verifies the recipe and output tree are usable.
func (p *Preprocessor) HealthCheck(ctx context.Context) stage.Health {
	const name = "preprocess"
	if p.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if p.pipeline == nil {
		return stage.Unhealthy(name, "pipeline recipe unavailable")
	}
	if strings.TrimSpace(p.cfg.Paths.DerivativesDir) == "" {
		return stage.Unhealthy(name, "derivatives directory not configured")
	}
	return stage.Healthy(name)
}

func (p *Preprocessor) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, p.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := p.store.UpdateProgress(ctx, &copy); err != nil {
		logger.Warn("failed to persist preprocess progress", logging.Error(err))
		return
	}
	*item = copy
}
