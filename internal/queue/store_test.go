package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lossless/internal/queue"
	"lossless/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewRecording(ctx, "/incoming/sub-01_task-rest_eeg.edf", "fingerprint-1")
	if err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourcePath != "/incoming/sub-01_task-rest_eeg.edf" {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}
	if fetched.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", fetched.Status)
	}

	found, err := store.FindByFingerprint(ctx, "fingerprint-1")
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found == nil || found.ID != item.ID {
		t.Fatalf("expected to find inserted item, got %#v", found)
	}
}

func TestNewRecordingRequiresFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewRecording(ctx, "/incoming/no-fingerprint.edf", ""); err == nil {
		t.Fatal("expected error when fingerprint missing")
	}
}

func TestNewFileStartsIngested(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	source := "/bids/sub-01/eeg/sub-01_ses-a_task-rest_run-02_eeg.edf"
	item, err := store.NewFile(ctx, source)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	if item.Status != queue.StatusIngested {
		t.Fatalf("expected ingested status, got %s", item.Status)
	}
	if item.StagedFile != source {
		t.Fatalf("expected staged file %q, got %q", source, item.StagedFile)
	}
	if item.Subject != "01" || item.Session != "a" || item.Task != "rest" || item.RunLabel != "02" {
		t.Fatalf("unexpected inferred entities: %#v", item)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"ingesting", queue.StatusIngesting, queue.StatusPending},
		{"preprocessing", queue.StatusPreprocessing, queue.StatusIngested},
		{"reporting", queue.StatusReporting, queue.StatusPreprocessed},
	}
	var ids []int64
	for i, tc := range cases {
		item, err := store.NewRecording(ctx, fmt.Sprintf("/incoming/%s.edf", tc.name), fmt.Sprintf("fingerprint-reset-%d", i))
		if err != nil {
			t.Fatalf("NewRecording failed: %v", err)
		}
		item.Status = tc.initialStatus
		item.ProgressStage = tc.name
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, item.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d items reset, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, updated.Status)
		}
		if updated.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared", tc.name)
		}
	}
}

func TestItemsByStatusOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewRecording(ctx, "/incoming/a.edf", "fp-a"); err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	b, err := store.NewRecording(ctx, "/incoming/b.edf", "fp-b")
	if err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	b.Status = queue.StatusIngested
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	items, err := store.ItemsByStatus(ctx, queue.StatusIngested)
	if err != nil {
		t.Fatalf("ItemsByStatus failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one ingested item, got %d", len(items))
	}
	if items[0].SourcePath != "/incoming/b.edf" {
		t.Fatalf("expected /incoming/b.edf, got %s", items[0].SourcePath)
	}
}

func TestListSupportsStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a, err := store.NewRecording(ctx, "/incoming/a.edf", "fp-a")
	if err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	b, err := store.NewRecording(ctx, "/incoming/b.edf", "fp-b")
	if err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	b.Status = queue.StatusIngested
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	c, err := store.NewRecording(ctx, "/incoming/c.edf", "fp-c")
	if err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	c.Status = queue.StatusFailed
	c.ErrorMessage = "boom"
	if err := store.Update(ctx, c); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != a.ID || items[1].ID != b.ID || items[2].ID != c.ID {
		t.Fatalf("expected order A,B,C, got IDs %d,%d,%d", items[0].ID, items[1].ID, items[2].ID)
	}

	filtered, err := store.List(ctx, queue.StatusIngested, queue.StatusFailed)
	if err != nil {
		t.Fatalf("Filtered list failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 items, got %d", len(filtered))
	}
	if filtered[0].ID != b.ID || filtered[1].ID != c.ID {
		t.Fatalf("unexpected filtered order: got %d,%d", filtered[0].ID, filtered[1].ID)
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a, err := store.NewRecording(ctx, "/incoming/a.edf", "fp-a")
	if err != nil {
		t.Fatalf("NewRecording: %v", err)
	}
	b, err := store.NewRecording(ctx, "/incoming/b.edf", "fp-b")
	if err != nil {
		t.Fatalf("NewRecording: %v", err)
	}
	for _, item := range []*queue.Item{a, b} {
		item.Status = queue.StatusFailed
		item.ErrorMessage = "boom"
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	updated, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed all: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 items retried, got %d", updated)
	}

	item, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected item A pending, got %s", item.Status)
	}

	// Mark B failed again and retry targeted selection.
	b.Status = queue.StatusFailed
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated, err = store.RetryFailed(ctx, b.ID)
	if err != nil {
		t.Fatalf("RetryFailed targeted: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 item retried, got %d", updated)
	}
}

func TestStopItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	waiting, err := store.NewRecording(ctx, "/incoming/waiting.edf", "fp-stop-waiting")
	if err != nil {
		t.Fatalf("NewRecording waiting: %v", err)
	}
	inflight, err := store.NewRecording(ctx, "/incoming/inflight.edf", "fp-stop-inflight")
	if err != nil {
		t.Fatalf("NewRecording inflight: %v", err)
	}
	inflight.Status = queue.StatusPreprocessing
	if err := store.Update(ctx, inflight); err != nil {
		t.Fatalf("Update inflight: %v", err)
	}
	completed, err := store.NewRecording(ctx, "/incoming/completed.edf", "fp-stop-completed")
	if err != nil {
		t.Fatalf("NewRecording completed: %v", err)
	}
	completed.Status = queue.StatusCompleted
	if err := store.Update(ctx, completed); err != nil {
		t.Fatalf("Update completed: %v", err)
	}

	count, err := store.StopItems(ctx, waiting.ID, inflight.ID, completed.ID)
	if err != nil {
		t.Fatalf("StopItems: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 items updated, got %d", count)
	}

	stopped, err := store.GetByID(ctx, waiting.ID)
	if err != nil {
		t.Fatalf("GetByID waiting: %v", err)
	}
	if stopped.Status != queue.StatusReview {
		t.Fatalf("expected waiting item parked in review, got %s", stopped.Status)
	}
	if !stopped.NeedsReview || !queue.IsUserStopReason(stopped.ReviewReason) {
		t.Fatalf("expected user stop reason on waiting item, got %#v", stopped)
	}
	if stopped.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on stopped item")
	}

	marked, err := store.GetByID(ctx, inflight.ID)
	if err != nil {
		t.Fatalf("GetByID inflight: %v", err)
	}
	if marked.Status != queue.StatusPreprocessing {
		t.Fatalf("expected in-flight item to keep its status, got %s", marked.Status)
	}
	if !marked.NeedsReview || !queue.IsUserStopReason(marked.ReviewReason) {
		t.Fatalf("expected stop request recorded on in-flight item, got %#v", marked)
	}

	untouched, err := store.GetByID(ctx, completed.ID)
	if err != nil {
		t.Fatalf("GetByID completed: %v", err)
	}
	if untouched.Status != queue.StatusCompleted || untouched.NeedsReview {
		t.Fatalf("expected completed item untouched, got %#v", untouched)
	}

	// A blanket retry targets failed items only, so a stopped recording
	// stays parked until the user runs it again explicitly.
	retried, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 0 {
		t.Fatalf("expected no items retried, got %d", retried)
	}
	still, err := store.GetByID(ctx, waiting.ID)
	if err != nil {
		t.Fatalf("GetByID after retry: %v", err)
	}
	if still.Status != queue.StatusReview {
		t.Fatalf("expected stopped item still in review, got %s", still.Status)
	}
}

func TestUpdateHeartbeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewRecording(ctx, "/incoming/heartbeat.edf", "hb")
	if err != nil {
		t.Fatalf("NewRecording: %v", err)
	}
	item.Status = queue.StatusIngesting
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := store.UpdateHeartbeat(ctx, item.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.LastHeartbeat == nil {
		t.Fatal("expected last heartbeat to be set")
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	t.Run("all statuses", func(t *testing.T) {
		cfg := testsupport.NewConfig(t)
		store := testsupport.MustOpenStore(t, cfg)

		ctx := context.Background()
		past := time.Now().Add(-2 * time.Hour).UTC()
		cases := []struct {
			name       string
			processing queue.Status
			expected   queue.Status
		}{
			{"ingesting", queue.StatusIngesting, queue.StatusPending},
			{"preprocessing", queue.StatusPreprocessing, queue.StatusIngested},
			{"reporting", queue.StatusReporting, queue.StatusPreprocessed},
		}
		var ids []int64
		for i, tc := range cases {
			item, err := store.NewRecording(ctx, fmt.Sprintf("/incoming/stale-%s.edf", tc.name), fmt.Sprintf("stale-%d", i))
			if err != nil {
				t.Fatalf("NewRecording: %v", err)
			}
			item.Status = tc.processing
			item.LastHeartbeat = &past
			if err := store.Update(ctx, item); err != nil {
				t.Fatalf("Update: %v", err)
			}
			ids = append(ids, item.ID)
		}

		count, err := store.ReclaimStaleProcessing(
			ctx,
			time.Now().Add(-1*time.Hour),
			queue.StatusIngesting,
			queue.StatusPreprocessing,
			queue.StatusReporting,
		)
		if err != nil {
			t.Fatalf("ReclaimStaleProcessing: %v", err)
		}
		if int(count) != len(cases) {
			t.Fatalf("expected %d items reclaimed, got %d", len(cases), count)
		}

		for idx, tc := range cases {
			updated, err := store.GetByID(ctx, ids[idx])
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if updated.Status != tc.expected {
				t.Fatalf("%s: expected status %s after reclaim, got %s", tc.name, tc.expected, updated.Status)
			}
			if updated.LastHeartbeat != nil {
				t.Fatalf("%s: expected heartbeat cleared, got %v", tc.name, updated.LastHeartbeat)
			}
		}
	})

	t.Run("filtered statuses", func(t *testing.T) {
		cfg := testsupport.NewConfig(t)
		store := testsupport.MustOpenStore(t, cfg)

		ctx := context.Background()
		past := time.Now().Add(-2 * time.Hour).UTC()

		ingesting, err := store.NewRecording(ctx, "/incoming/stale-ingest.edf", "stale-ingest")
		if err != nil {
			t.Fatalf("NewRecording ingesting: %v", err)
		}
		ingesting.Status = queue.StatusIngesting
		ingesting.LastHeartbeat = &past
		if err := store.Update(ctx, ingesting); err != nil {
			t.Fatalf("Update ingesting: %v", err)
		}

		preprocessing, err := store.NewRecording(ctx, "/incoming/stale-preprocess.edf", "stale-preprocess")
		if err != nil {
			t.Fatalf("NewRecording preprocessing: %v", err)
		}
		preprocessing.Status = queue.StatusPreprocessing
		preprocessing.LastHeartbeat = &past
		if err := store.Update(ctx, preprocessing); err != nil {
			t.Fatalf("Update preprocessing: %v", err)
		}

		count, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-1*time.Hour), queue.StatusPreprocessing)
		if err != nil {
			t.Fatalf("ReclaimStaleProcessing filtered: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 item reclaimed, got %d", count)
		}

		reclaimed, err := store.GetByID(ctx, preprocessing.ID)
		if err != nil {
			t.Fatalf("GetByID preprocessing: %v", err)
		}
		if reclaimed.Status != queue.StatusIngested {
			t.Fatalf("expected preprocessing item rolled back to ingested, got %s", reclaimed.Status)
		}
		if reclaimed.LastHeartbeat != nil {
			t.Fatalf("expected preprocessing heartbeat cleared, got %v", reclaimed.LastHeartbeat)
		}

		unchanged, err := store.GetByID(ctx, ingesting.ID)
		if err != nil {
			t.Fatalf("GetByID ingesting: %v", err)
		}
		if unchanged.Status != queue.StatusIngesting {
			t.Fatalf("expected ingesting item untouched, got %s", unchanged.Status)
		}
		if unchanged.LastHeartbeat == nil || !unchanged.LastHeartbeat.Equal(past) {
			t.Fatalf("expected ingesting heartbeat unchanged, got %v", unchanged.LastHeartbeat)
		}
	})

	t.Run("stopped items park instead of rolling back", func(t *testing.T) {
		cfg := testsupport.NewConfig(t)
		store := testsupport.MustOpenStore(t, cfg)

		ctx := context.Background()
		past := time.Now().Add(-2 * time.Hour).UTC()

		item, err := store.NewRecording(ctx, "/incoming/stale-stopped.edf", "stale-stopped")
		if err != nil {
			t.Fatalf("NewRecording: %v", err)
		}
		item.Status = queue.StatusPreprocessing
		item.LastHeartbeat = &past
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if _, err := store.StopItems(ctx, item.ID); err != nil {
			t.Fatalf("StopItems: %v", err)
		}

		count, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-1*time.Hour), queue.StatusPreprocessing)
		if err != nil {
			t.Fatalf("ReclaimStaleProcessing: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 item handled, got %d", count)
		}

		parked, err := store.GetByID(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if parked.Status != queue.StatusReview {
			t.Fatalf("expected stopped item parked in review, got %s", parked.Status)
		}
		if !parked.NeedsReview || !queue.IsUserStopReason(parked.ReviewReason) {
			t.Fatalf("expected user stop review flags, got needsReview=%v reason=%q", parked.NeedsReview, parked.ReviewReason)
		}
		if parked.LastHeartbeat != nil {
			t.Fatalf("expected heartbeat cleared, got %v", parked.LastHeartbeat)
		}
	})
}

func TestUpdateProgressPreservesHeartbeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewRecording(ctx, "/incoming/progress.edf", "hb-progress")
	if err != nil {
		t.Fatalf("NewRecording: %v", err)
	}
	item.Status = queue.StatusPreprocessing
	past := time.Now().Add(-5 * time.Minute).UTC()
	item.LastHeartbeat = &past
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := store.UpdateHeartbeat(ctx, item.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	before, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID before progress: %v", err)
	}
	if before.LastHeartbeat == nil {
		t.Fatal("expected heartbeat set before progress update")
	}
	origHeartbeat := *before.LastHeartbeat

	before.ProgressStage = "Preprocess"
	before.ProgressPercent = 42.5
	before.ProgressMessage = "Running ICA"
	if err := store.UpdateProgress(ctx, before); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	after, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID after progress: %v", err)
	}
	if after.LastHeartbeat == nil {
		t.Fatal("expected heartbeat preserved after progress update")
	}
	if !after.LastHeartbeat.Equal(origHeartbeat) {
		t.Fatalf("expected heartbeat unchanged, before %v after %v", origHeartbeat, after.LastHeartbeat)
	}
	if after.ProgressStage != "Preprocess" || after.ProgressMessage != "Running ICA" {
		t.Fatalf("expected progress fields persisted, got stage=%q message=%q", after.ProgressStage, after.ProgressMessage)
	}
	if after.ProgressPercent != 42.5 {
		t.Fatalf("expected progress percent 42.5, got %f", after.ProgressPercent)
	}
}

func TestHealthCountsReviewSeparately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusPending,
		queue.StatusPreprocessing,
		queue.StatusCompleted,
		queue.StatusFailed,
		queue.StatusReview,
	}
	for i, status := range statuses {
		item, err := store.NewRecording(ctx, fmt.Sprintf("/incoming/health-%d.edf", i), fmt.Sprintf("health-%d", i))
		if err != nil {
			t.Fatalf("NewRecording: %v", err)
		}
		item.Status = status
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != len(statuses) {
		t.Fatalf("expected total %d, got %d", len(statuses), health.Total)
	}
	if health.Pending != 1 || health.Processing != 1 || health.Completed != 1 || health.Failed != 1 || health.Review != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}
