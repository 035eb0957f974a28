package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lossless/internal/config"
	"lossless/internal/fileutil"
	"lossless/internal/logging"
	"lossless/internal/notifications"
	"lossless/internal/queue"
	"lossless/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) Test(context.Context) error { return nil }

func (r *recordingNotifier) detections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, event := range r.events {
		if event == notifications.EventRecordingDetected {
			count++
		}
	}
	return count
}

func intakeConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.IntakeDir = filepath.Join(testsupport.BaseDir(cfg), "intake")
	if err := os.MkdirAll(cfg.Paths.IntakeDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	return cfg
}

func newTestMonitor(t *testing.T, cfg *config.Config, store *queue.Store, notifier notifications.Service) *intakeMonitor {
	t.Helper()
	monitor := newIntakeMonitor(cfg, store, logging.NewNop(), notifier)
	if monitor == nil {
		t.Fatal("expected monitor to be created")
	}
	monitor.settle = 0
	return monitor
}

func writeIntakeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestIntakeMonitorQueuesNewRecording(t *testing.T) {
	cfg := intakeConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	monitor := newTestMonitor(t, cfg, store, notifier)

	path := writeIntakeFile(t, cfg.Paths.IntakeDir, "sub-01_task-rest_eeg.edf", "edf payload")

	ctx := context.Background()
	if err := monitor.scanOnce(ctx); err != nil {
		t.Fatalf("scanOnce: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].SourcePath != path {
		t.Fatalf("unexpected source path %q", items[0].SourcePath)
	}
	if items[0].Status != queue.StatusPending {
		t.Fatalf("expected status pending, got %s", items[0].Status)
	}
	if len(items[0].SourceFingerprint) != 16 {
		t.Fatalf("unexpected fingerprint %q", items[0].SourceFingerprint)
	}

	// A second scan over the unchanged file must not enqueue it again.
	if err := monitor.scanOnce(ctx); err != nil {
		t.Fatalf("second scanOnce: %v", err)
	}
	items, err = store.List(ctx)
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item after rescan, got %d", len(items))
	}
	if got := notifier.detections(); got != 1 {
		t.Fatalf("expected one detection notification, got %d", got)
	}
}

func TestIntakeMonitorSkipsUnsettledFile(t *testing.T) {
	cfg := intakeConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	monitor := newTestMonitor(t, cfg, store, nil)
	monitor.settle = time.Hour

	writeIntakeFile(t, cfg.Paths.IntakeDir, "sub-01_task-rest_eeg.edf", "still copying")

	if err := monitor.scanOnce(context.Background()); err != nil {
		t.Fatalf("scanOnce: %v", err)
	}

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items for unsettled file, got %d", len(items))
	}
}

func TestIntakeMonitorIgnoresNonRecordings(t *testing.T) {
	cfg := intakeConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	monitor := newTestMonitor(t, cfg, store, nil)

	writeIntakeFile(t, cfg.Paths.IntakeDir, "notes.txt", "not a recording")
	writeIntakeFile(t, cfg.Paths.IntakeDir, ".sub-01_task-rest_eeg.edf", "hidden transfer file")
	if err := os.MkdirAll(filepath.Join(cfg.Paths.IntakeDir, "archive"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	if err := monitor.scanOnce(context.Background()); err != nil {
		t.Fatalf("scanOnce: %v", err)
	}

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestIntakeMonitorResetsFailedRecording(t *testing.T) {
	cfg := intakeConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	monitor := newTestMonitor(t, cfg, store, nil)

	path := writeIntakeFile(t, cfg.Paths.IntakeDir, "sub-02_task-rest_eeg.edf", "edf payload")
	fp, err := fileutil.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	ctx := context.Background()
	item, err := store.NewRecording(ctx, path, fp)
	if err != nil {
		t.Fatalf("store.NewRecording: %v", err)
	}
	item.SetFailed("filter kernel crashed")
	item.NeedsReview = true
	item.ReviewReason = "manual"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("store.Update: %v", err)
	}

	if err := monitor.scanOnce(ctx); err != nil {
		t.Fatalf("scanOnce: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	if updated.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", updated.Status)
	}
	if updated.ProgressStage != "Awaiting ingest" {
		t.Fatalf("unexpected progress stage %q", updated.ProgressStage)
	}
	if updated.NeedsReview {
		t.Fatal("expected NeedsReview to be false")
	}
	if updated.ErrorMessage != "" {
		t.Fatalf("expected cleared error message, got %q", updated.ErrorMessage)
	}
}

func TestIntakeMonitorLeavesStoppedRecording(t *testing.T) {
	cfg := intakeConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	monitor := newTestMonitor(t, cfg, store, nil)

	path := writeIntakeFile(t, cfg.Paths.IntakeDir, "sub-07_task-rest_eeg.edf", "edf payload")
	fp, err := fileutil.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	ctx := context.Background()
	item, err := store.NewRecording(ctx, path, fp)
	if err != nil {
		t.Fatalf("store.NewRecording: %v", err)
	}
	if _, err := store.StopItems(ctx, item.ID); err != nil {
		t.Fatalf("store.StopItems: %v", err)
	}

	if err := monitor.scanOnce(ctx); err != nil {
		t.Fatalf("scanOnce: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	if updated.Status != queue.StatusReview {
		t.Fatalf("expected stopped item to stay in review, got %s", updated.Status)
	}
	if !updated.NeedsReview || !queue.IsUserStopReason(updated.ReviewReason) {
		t.Fatalf("expected user stop reason preserved, got %#v", updated)
	}
}

func TestIntakeMonitorSkipsRecordingInWorkflow(t *testing.T) {
	cfg := intakeConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	monitor := newTestMonitor(t, cfg, store, nil)

	path := writeIntakeFile(t, cfg.Paths.IntakeDir, "sub-03_task-rest_eeg.edf", "edf payload")
	fp, err := fileutil.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	ctx := context.Background()
	item, err := store.NewRecording(ctx, path, fp)
	if err != nil {
		t.Fatalf("store.NewRecording: %v", err)
	}
	item.Status = queue.StatusPreprocessing
	item.ProgressStage = "Preprocessing"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("store.Update: %v", err)
	}

	if err := monitor.scanOnce(ctx); err != nil {
		t.Fatalf("scanOnce: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	if updated.Status != queue.StatusPreprocessing {
		t.Fatalf("expected item to remain preprocessing, got %s", updated.Status)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected single item, got %d", len(items))
	}
}

func TestIntakeMonitorLeavesCompletedRecording(t *testing.T) {
	cfg := intakeConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	monitor := newTestMonitor(t, cfg, store, nil)

	path := writeIntakeFile(t, cfg.Paths.IntakeDir, "sub-04_task-rest_eeg.edf", "edf payload")
	fp, err := fileutil.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	ctx := context.Background()
	item, err := store.NewRecording(ctx, path, fp)
	if err != nil {
		t.Fatalf("store.NewRecording: %v", err)
	}
	item.Status = queue.StatusCompleted
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("store.Update: %v", err)
	}

	if err := monitor.scanOnce(ctx); err != nil {
		t.Fatalf("scanOnce: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected single item, got %d", len(items))
	}
	if items[0].Status != queue.StatusCompleted {
		t.Fatalf("expected completed item to remain completed, got %s", items[0].Status)
	}
}

func TestIntakeMonitorRescansChangedFile(t *testing.T) {
	cfg := intakeConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	monitor := newTestMonitor(t, cfg, store, nil)

	path := writeIntakeFile(t, cfg.Paths.IntakeDir, "sub-05_task-rest_eeg.edf", "v1")

	ctx := context.Background()
	if err := monitor.scanOnce(ctx); err != nil {
		t.Fatalf("scanOnce: %v", err)
	}

	// Rewriting the file changes its size, so it carries a new fingerprint.
	if err := os.WriteFile(path, []byte("v2 with different length"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := monitor.scanOnce(ctx); err != nil {
		t.Fatalf("second scanOnce: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].SourceFingerprint == items[1].SourceFingerprint {
		t.Fatalf("expected distinct fingerprints, both %q", items[0].SourceFingerprint)
	}
}

func TestIntakeMonitorScanFailsWithoutDir(t *testing.T) {
	cfg := intakeConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	monitor := newTestMonitor(t, cfg, store, nil)

	if err := os.RemoveAll(cfg.Paths.IntakeDir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if err := monitor.scanOnce(context.Background()); err == nil {
		t.Fatal("expected scan error for missing intake dir")
	}
}

func TestIntakeMonitorStartScansImmediately(t *testing.T) {
	cfg := intakeConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	monitor := newTestMonitor(t, cfg, store, nil)

	writeIntakeFile(t, cfg.Paths.IntakeDir, "sub-06_task-rest_eeg.edf", "edf payload")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := monitor.Start(ctx); err != nil {
		t.Fatalf("monitor.Start: %v", err)
	}
	t.Cleanup(monitor.Stop)

	deadline := time.After(10 * time.Second)
	for {
		items, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("store.List: %v", err)
		}
		if len(items) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for initial scan, have %d items", len(items))
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	if err := monitor.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}
	monitor.Stop()
}
