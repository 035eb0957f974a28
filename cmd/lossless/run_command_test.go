package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lossless/internal/queue"
	"lossless/internal/testsupport"
)

func TestEnqueueRunTarget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := filepath.Join(testsupport.BaseDir(cfg), "intake", "sub-01_task-rest_eeg.edf")
	testsupport.WriteFile(t, source, 2048)

	summary, err := enqueueRunTarget(ctx, store, source, false)
	if err != nil {
		t.Fatalf("enqueue new: %v", err)
	}
	if summary.Queued != 1 || summary.Requeued != 0 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary for new recording: %+v", summary)
	}

	// Pending items are left alone on a second pass.
	summary, err = enqueueRunTarget(ctx, store, source, false)
	if err != nil {
		t.Fatalf("enqueue pending: %v", err)
	}
	if summary.Skipped != 1 || summary.Queued != 0 {
		t.Fatalf("expected pending item skipped, got %+v", summary)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a single queue item, got %d", len(items))
	}
	item := items[0]

	item.Status = queue.StatusFailed
	item.ErrorMessage = "preprocess blew up"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	summary, err = enqueueRunTarget(ctx, store, source, false)
	if err != nil {
		t.Fatalf("enqueue failed item: %v", err)
	}
	if summary.Requeued != 1 {
		t.Fatalf("expected failed item requeued, got %+v", summary)
	}
	requeued, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("lookup requeued: %v", err)
	}
	if requeued.Status != queue.StatusPending || requeued.ErrorMessage != "" {
		t.Fatalf("requeue did not reset item: status=%s error=%q", requeued.Status, requeued.ErrorMessage)
	}

	// A user-stopped item returns to the queue when named explicitly.
	if _, err := store.StopItems(ctx, item.ID); err != nil {
		t.Fatalf("stop item: %v", err)
	}
	summary, err = enqueueRunTarget(ctx, store, source, false)
	if err != nil {
		t.Fatalf("enqueue stopped item: %v", err)
	}
	if summary.Requeued != 1 {
		t.Fatalf("expected stopped item requeued, got %+v", summary)
	}
	resumed, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("lookup resumed: %v", err)
	}
	if resumed.Status != queue.StatusPending || resumed.NeedsReview {
		t.Fatalf("stop flag not cleared on requeue: status=%s needsReview=%v", resumed.Status, resumed.NeedsReview)
	}

	resumed.Status = queue.StatusCompleted
	if err := store.Update(ctx, resumed); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	summary, err = enqueueRunTarget(ctx, store, source, false)
	if err != nil {
		t.Fatalf("enqueue completed item: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected completed item skipped, got %+v", summary)
	}
	summary, err = enqueueRunTarget(ctx, store, source, true)
	if err != nil {
		t.Fatalf("enqueue reprocess: %v", err)
	}
	if summary.Requeued != 1 {
		t.Fatalf("expected completed item requeued with reprocess, got %+v", summary)
	}
}

func TestEnqueueRunTargetRejectsOtherFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	other := filepath.Join(testsupport.BaseDir(cfg), "notes.txt")
	testsupport.WriteFile(t, other, 64)

	if _, err := enqueueRunTarget(context.Background(), store, other, false); err == nil || !strings.Contains(err.Error(), "is not a .edf recording") {
		t.Fatalf("expected extension error, got %v", err)
	}

	empty := filepath.Join(testsupport.BaseDir(cfg), "empty-dataset")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := enqueueRunTarget(context.Background(), store, empty, false); err == nil || !strings.Contains(err.Error(), "no recordings found") {
		t.Fatalf("expected empty dataset error, got %v", err)
	}
}

func TestRunCommandRequiresTarget(t *testing.T) {
	env := setupCLITestEnv(t)

	bare := *env.cfg
	bare.Paths.DataDir = ""
	barePath := filepath.Join(env.baseDir, "bare-config.toml")
	writeTestConfig(t, barePath, &bare)

	_, _, err := runCLI(t, []string{"run"}, barePath)
	if err == nil || !strings.Contains(err.Error(), "paths.data_dir is not configured") {
		t.Fatalf("expected missing target error, got %v", err)
	}
}

func TestRunCommandProcessesRecording(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(env.baseDir, "intake", "sub-01_task-rest_eeg.edf")
	testsupport.WriteRecording(t, source, 4, 10)

	out, _, err := runCLI(t, []string{"run", source}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v\noutput: %s", err, out)
	}
	requireContains(t, out, "Queued 1 new, requeued 0, skipped 0 recording(s)")
	requireContains(t, out, "Run finished: 1 completed, 0 need review, 0 failed")

	items, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	item := items[0]
	if item.Status != queue.StatusCompleted {
		t.Fatalf("expected completed item, got %s (%s)", item.Status, item.ErrorMessage)
	}
	if item.DerivativePath == "" {
		t.Fatal("expected derivative path on completed item")
	}
	if _, err := os.Stat(item.DerivativePath); err != nil {
		t.Fatalf("expected derivative on disk: %v", err)
	}
	if item.ReportPath == "" {
		t.Fatal("expected report path on completed item")
	}
	if _, err := os.Stat(item.ReportPath); err != nil {
		t.Fatalf("expected report on disk: %v", err)
	}

	// A second pass sees the fingerprint and leaves the completed item alone.
	out, _, err = runCLI(t, []string{"run", source}, env.configPath)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	requireContains(t, out, "Queued 0 new, requeued 0, skipped 1 recording(s)")
}
