package preprocess_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"lossless/internal/eeg/edf"
	"lossless/internal/logging"
	"lossless/internal/lossless"
	"lossless/internal/notifications"
	"lossless/internal/preprocess"
	"lossless/internal/queue"
	"lossless/internal/services"
	"lossless/internal/testsupport"
)

type stubNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	s.events = append(s.events, event)
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *stubNotifier) Test(context.Context) error { return nil }

// testRecipe keeps only the fixed-threshold step so runs stay fast and the
// flags are predictable: a flat channel is dead, everything else passes.
func testRecipe(t *testing.T) *lossless.Config {
	t.Helper()
	return &lossless.Config{
		Version: "test",
		Epochs:  lossless.EpochsConfig{Length: 1},
		Filter:  lossless.FilterConfig{TransitionHz: 1},
		FlagChannels: lossless.ChannelFlagsConfig{
			FixedThreshold: lossless.FixedThresholdConfig{Enabled: true, FlatUV: 1, SaturatedUV: 500},
		},
	}
}

func testPipeline(t *testing.T) *lossless.Pipeline {
	t.Helper()
	pipeline, err := lossless.New(testRecipe(t))
	if err != nil {
		t.Fatalf("lossless.New: %v", err)
	}
	return pipeline
}

func stageRecording(t *testing.T, store *queue.Store, path string, flatten bool) *queue.Item {
	t.Helper()
	raw := testsupport.SyntheticRaw(t, 4, 10, 100)
	if flatten {
		last := raw.NChannels() - 1
		for i := range raw.Data[last] {
			raw.Data[last][i] = 0
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := edf.Write(path, raw); err != nil {
		t.Fatalf("edf.Write: %v", err)
	}
	item, err := store.NewFile(context.Background(), path)
	if err != nil {
		t.Fatalf("store.NewFile: %v", err)
	}
	return item
}

func TestPreprocessorWritesDerivative(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	staged := filepath.Join(testsupport.BaseDir(cfg), "staged", "sub-01_task-rest_eeg.edf")
	item := stageRecording(t, store, staged, true)

	notifier := &stubNotifier{}
	handler := preprocess.NewPreprocessorWithDependencies(cfg, store, logging.NewNop(), testPipeline(t), notifier)
	ctx := services.WithRunID(context.Background(), "run-123")

	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantDerivative := filepath.Join(cfg.Paths.DerivativesDir, "sub-01", "eeg", "sub-01_task-rest_eeg.edf")
	if item.DerivativePath != wantDerivative {
		t.Fatalf("derivative at %q, want %q", item.DerivativePath, wantDerivative)
	}
	if _, err := os.Stat(item.DerivativePath); err != nil {
		t.Fatalf("expected derivative recording: %v", err)
	}
	sidecar := filepath.Join(filepath.Dir(wantDerivative), "sub-01_task-rest_flags.json")
	if _, err := os.Stat(sidecar); err != nil {
		t.Fatalf("expected flags sidecar: %v", err)
	}

	flags, err := lossless.ParseFlags(item.FlagsJSON)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if !slices.Contains(flags.Channels[lossless.FlagDead], "E4") {
		t.Fatalf("expected E4 flagged dead, got %v", flags.Channels)
	}

	var metrics struct {
		FlaggedChannels int    `json:"flagged_channels"`
		ConfigHash      string `json:"config_hash"`
		Steps           []struct {
			Step string `json:"step"`
		} `json:"steps"`
	}
	if err := json.Unmarshal([]byte(item.MetricsJSON), &metrics); err != nil {
		t.Fatalf("unmarshal metrics: %v", err)
	}
	if metrics.FlaggedChannels != 1 {
		t.Fatalf("expected one flagged channel, got %d", metrics.FlaggedChannels)
	}
	if metrics.ConfigHash == "" || len(metrics.Steps) == 0 {
		t.Fatalf("incomplete metrics: %+v", metrics)
	}

	if item.RunID != "run-123" {
		t.Fatalf("expected run id stamped, got %q", item.RunID)
	}
	if item.ProgressStage != "Preprocessed" || item.ProgressPercent != 100 {
		t.Fatalf("unexpected progress: stage=%q percent=%v", item.ProgressStage, item.ProgressPercent)
	}
	if !strings.Contains(item.ProgressMessage, "1 channels") {
		t.Fatalf("unexpected progress message %q", item.ProgressMessage)
	}

	if len(notifier.events) == 0 || notifier.events[0] != notifications.EventPreprocessCompleted {
		t.Fatalf("expected preprocess completion notification, got %v", notifier.events)
	}
}

func TestPreprocessorCleanRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	staged := filepath.Join(testsupport.BaseDir(cfg), "staged", "sub-02_eeg.edf")
	item := stageRecording(t, store, staged, false)

	handler := preprocess.NewPreprocessorWithDependencies(cfg, store, logging.NewNop(), testPipeline(t), &stubNotifier{})
	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	flags, err := lossless.ParseFlags(item.FlagsJSON)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if !flags.IsZero() {
		t.Fatalf("expected clean run, got flags %v", flags)
	}
	if !strings.Contains(item.ProgressMessage, "Clean run") {
		t.Fatalf("unexpected progress message %q", item.ProgressMessage)
	}
}

func TestPreprocessorRequiresStagedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewRecording(t, store, "missing.edf", "fp-nostage")
	handler := preprocess.NewPreprocessorWithDependencies(cfg, store, logging.NewNop(), testPipeline(t), &stubNotifier{})
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPreprocessorRejectsIncompatibleRate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	staged := filepath.Join(testsupport.BaseDir(cfg), "staged", "sub-03_eeg.edf")
	item := stageRecording(t, store, staged, false)

	recipe := testRecipe(t)
	recipe.Filter.LowpassHz = 80
	pipeline, err := lossless.New(recipe)
	if err != nil {
		t.Fatalf("lossless.New: %v", err)
	}

	handler := preprocess.NewPreprocessorWithDependencies(cfg, store, logging.NewNop(), pipeline, &stubNotifier{})
	execErr := handler.Execute(context.Background(), item)
	if !errors.Is(execErr, services.ErrValidation) {
		t.Fatalf("expected validation error for Nyquist violation, got %v", execErr)
	}
}

func TestPreprocessorWithoutPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := preprocess.NewPreprocessorWithDependencies(cfg, store, logging.NewNop(), nil, &stubNotifier{})
	item := testsupport.NewRecording(t, store, "whatever.edf", "fp-nopipe")
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	health := handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatalf("expected not ready health, got %+v", health)
	}
	if !strings.Contains(strings.ToLower(health.Detail), "recipe") {
		t.Fatalf("expected detail to mention recipe, got %q", health.Detail)
	}
}

func TestPreprocessorHealthReady(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := preprocess.NewPreprocessorWithDependencies(cfg, store, logging.NewNop(), testPipeline(t), &stubNotifier{})
	health := handler.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected ready health, got %+v", health)
	}
}
