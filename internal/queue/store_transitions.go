package queue

import (
	"context"
	"fmt"
	"time"
)

// ResetStuckProcessing resets items in processing states back to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusIngesting, StatusPending,
		StatusPreprocessing, StatusIngested,
		StatusReporting, StatusPreprocessed,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusIngesting,
		StatusPreprocessing,
		StatusReporting,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns items stuck in processing back to the start of
// their current stage when heartbeats expire. With no statuses it reclaims
// every processing status; otherwise only the listed ones are considered.
// Stale items carrying a user stop request park in review instead of rolling
// back, so a crash between stop and stage boundary cannot rerun them.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, statuses ...Status) (int64, error) {
	targets := filterProcessingStatuses(statuses)
	if len(targets) == 0 {
		return 0, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	cutoffArg := cutoff.UTC().Format(time.RFC3339Nano)

	parkArgs := make([]any, 0, len(targets)+6)
	parkArgs = append(parkArgs, StatusReview, UserStopReason, now)
	for _, status := range targets {
		parkArgs = append(parkArgs, status)
	}
	parkArgs = append(parkArgs, cutoffArg, UserStopReason)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET status = ?, progress_stage = 'Needs review',
            progress_percent = 0, progress_message = ?, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(targets))+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?
          AND needs_review = 1 AND review_reason = ?`,
		parkArgs...,
	)
	if err != nil {
		return 0, fmt.Errorf("park stopped stale items: %w", err)
	}
	parked, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	transitions := processingRollbackTransitions()
	query := `UPDATE queue_items
        SET status = CASE status`
	args := make([]any, 0, len(transitions)*2+2+len(targets))
	for _, tr := range transitions {
		query += `
            WHEN ? THEN ?`
		args = append(args, tr.from, tr.to)
	}
	query += `
            ELSE status
        END,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (` + makePlaceholders(len(targets)) + `) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`
	args = append(args, now)
	for _, status := range targets {
		args = append(args, status)
	}
	args = append(args, cutoffArg)

	res, err = s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	reclaimed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return parked + reclaimed, nil
}

func filterProcessingStatuses(statuses []Status) []Status {
	if len(statuses) == 0 {
		out := make([]Status, 0, len(stageRollbackTransitions))
		for _, tr := range stageRollbackTransitions {
			out = append(out, tr.from)
		}
		return out
	}
	var out []Status
	for _, status := range statuses {
		if _, ok := processingStatuses[status]; ok {
			out = append(out, status)
		}
	}
	return out
}

// StopItems parks items in review with a user stop request. Waiting items
// leave the workflow immediately; items mid-stage keep their processing
// status and the workflow parks them at the next stage boundary. Completed
// and failed items are left alone. Returns the number of rows updated.
func (s *Store) StopItems(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := makePlaceholders(len(ids))
	idArgs := make([]any, len(ids))
	for i, id := range ids {
		idArgs[i] = id
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	waitArgs := make([]any, 0, len(ids)+8)
	waitArgs = append(waitArgs, StatusReview, UserStopReason, UserStopReason, UserStopReason, now)
	waitArgs = append(waitArgs, idArgs...)
	waitArgs = append(waitArgs, StatusPending, StatusIngested, StatusPreprocessed)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET status = ?, needs_review = 1, review_reason = ?, error_message = ?,
            progress_stage = 'Needs review', progress_percent = 0,
            progress_message = ?, last_heartbeat = NULL, updated_at = ?
        WHERE id IN (`+placeholders+`) AND status IN (?, ?, ?)`,
		waitArgs...,
	)
	if err != nil {
		return 0, fmt.Errorf("stop waiting items: %w", err)
	}
	stopped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	flightArgs := make([]any, 0, len(ids)+5)
	flightArgs = append(flightArgs, UserStopReason, now)
	flightArgs = append(flightArgs, idArgs...)
	flightArgs = append(flightArgs, StatusIngesting, StatusPreprocessing, StatusReporting)
	res, err = s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET needs_review = 1, review_reason = ?, updated_at = ?
        WHERE id IN (`+placeholders+`) AND status IN (?, ?, ?)`,
		flightArgs...,
	)
	if err != nil {
		return 0, fmt.Errorf("stop processing items: %w", err)
	}
	marked, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return stopped + marked, nil
}

// RetryFailed moves failed items back to pending for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE queue_items
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}
