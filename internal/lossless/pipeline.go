package lossless

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lossless/internal/bids"
	"lossless/internal/dsp/ica"
	"lossless/internal/eeg"
	"lossless/internal/logging"
)

// Version is recorded in derivative provenance and QC reports.
const Version = "0.4.0"

// Pipeline applies a recipe to recordings. It is safe to reuse for many
// recordings; each Run works on its own state.
type Pipeline struct {
	cfg    *Config
	logger *slog.Logger
}

// NewPipeline builds a pipeline from a recipe file. An empty path selects
// the built-in default recipe.
func NewPipeline(configPath string) (*Pipeline, error) {
	var (
		cfg *Config
		err error
	)
	if strings.TrimSpace(configPath) == "" {
		cfg, err = LoadDefault()
	} else {
		cfg, err = Load(configPath)
	}
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// New builds a pipeline from an in-memory recipe.
func New(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("recipe is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, logger: logging.NewNop()}, nil
}

// WithLogger returns a copy of the pipeline that logs through logger.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	clone := *p
	if logger == nil {
		logger = logging.NewNop()
	}
	clone.logger = logger
	return &clone
}

// Config returns the recipe the pipeline runs.
func (p *Pipeline) Config() *Config { return p.cfg }

// Result is everything one pipeline run produced.
type Result struct {
	// Source names the recording when the pipeline loaded it itself.
	Source string
	// Raw is the processed recording: filtered in place, flagged channels
	// in Bads, flagged spans annotated.
	Raw *eeg.Raw
	// Flags collects what each step marked for exclusion.
	Flags *Flags
	// ICA is the fitted decomposition, nil when the step was disabled or
	// the data could not support one.
	ICA *ica.Result
	// ICAChannels names the channels behind the decomposition's rows.
	ICAChannels []string
	// StepTimings records wall time per executed step, in order.
	StepTimings []StepTiming
	// ConfigHash ties the run to the recipe that produced it.
	ConfigHash string
}

// StepTiming is the wall time of one executed step.
type StepTiming struct {
	Step     string
	Duration time.Duration
}

// Run processes one recording in place and reports what was flagged. The
// context is checked between steps, so cancellation loses at most the
// step in flight.
func (p *Pipeline) Run(ctx context.Context, raw *eeg.Raw) (*Result, error) {
	if raw == nil || raw.NChannels() == 0 || raw.NSamples() == 0 {
		return nil, errors.New("recording is empty")
	}
	if err := p.cfg.ValidateForRate(raw.SampleRate); err != nil {
		return nil, err
	}

	state := &runState{
		cfg:    p.cfg,
		raw:    raw,
		epochs: epochGrid(p.cfg, raw),
		flags:  NewFlags(),
		logger: p.logger,
	}
	if len(state.epochs) == 0 {
		return nil, fmt.Errorf("recording is shorter than one %gs window", p.cfg.Epochs.Length)
	}

	result := &Result{Raw: raw, Flags: state.flags, ConfigHash: p.cfg.Hash()}
	for _, st := range pipelineSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !st.enabled(p.cfg) {
			continue
		}
		started := time.Now()
		if err := st.run(ctx, state); err != nil {
			return nil, fmt.Errorf("step %s: %w", st.name, err)
		}
		elapsed := time.Since(started)
		result.StepTimings = append(result.StepTimings, StepTiming{Step: st.name, Duration: elapsed})
		p.logger.Debug("pipeline step complete",
			logging.String("step", st.name),
			logging.Duration("elapsed", elapsed))
	}
	result.ICA = state.ica
	if state.ica != nil {
		names := make([]string, len(state.icaChannels))
		for i, c := range state.icaChannels {
			names[i] = raw.Channels[c].Name
		}
		result.ICAChannels = names
	}

	counts := state.flags.Counts()
	p.logger.Info("pipeline run complete",
		logging.Int("flagged_channels", counts.Channels),
		logging.Int("flagged_epochs", counts.Epochs),
		logging.Int("flagged_components", counts.Components),
		logging.String("config_hash", result.ConfigHash))
	return result, nil
}

// RunDataset loads and processes every recording the paths name, in
// order. The first failure stops the loop; results for recordings that
// already finished are returned alongside the error.
func (p *Pipeline) RunDataset(ctx context.Context, paths []bids.Path) ([]*Result, error) {
	results := make([]*Result, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		raw, err := bids.ReadRaw(path)
		if err != nil {
			return results, fmt.Errorf("failed to load %s: %w", path.Basename(), err)
		}
		res, err := p.Run(ctx, raw)
		if err != nil {
			return results, fmt.Errorf("failed to process %s: %w", path.Basename(), err)
		}
		res.Source = path.FPath()
		results = append(results, res)
	}
	return results, nil
}
