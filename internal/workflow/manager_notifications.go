package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lossless/internal/logging"
	"lossless/internal/notifications"
	"lossless/internal/queue"
)

// debugPublishFailure logs a failed notification publish, distinguishing
// shutdown cancellation from a real delivery problem. Notifications are
// best-effort; nothing escalates past debug.
func debugPublishFailure(logger *slog.Logger, err error, shutdownMsg, failureMsg string) {
	if errors.Is(err, context.Canceled) {
		logger.Debug(shutdownMsg)
		return
	}
	logger.Debug(failureMsg, logging.Error(err))
}

func (m *Manager) notifyStageError(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	logger := logging.WithContext(ctx, m.logger.With(logging.String("component", "workflow-manager")))
	payload := notifications.Payload{
		"error":   stageErr,
		"context": fmt.Sprintf("%s (recording #%d)", stageName, item.ID),
	}
	if err := m.notifier.Publish(ctx, notifications.EventError, payload); err != nil {
		debugPublishFailure(logger, err,
			"workflow shutting down, could not send error notification",
			"stage error notification failed")
	}
}

// onItemStarted marks the run active on the first item picked up and
// announces it with the outstanding work count.
func (m *Manager) onItemStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, ok := m.statsForNotification(ctx, "start")
	if !ok {
		return
	}

	m.mu.Lock()
	alreadyActive := m.queueActive
	if !alreadyActive {
		m.queueActive = true
		m.queueStart = time.Now()
	}
	m.mu.Unlock()
	if alreadyActive {
		return
	}

	payload := notifications.Payload{"count": countWorkItems(stats)}
	if err := m.notifier.Publish(ctx, notifications.EventQueueStarted, payload); err != nil {
		debugPublishFailure(m.logger, err,
			"workflow shutting down, could not send run start notification",
			"run start notification failed")
	}
}

// checkQueueCompletion announces run completion once no active items
// remain. Called after every item settles, so the flag flip under the
// lock keeps the announcement single-shot.
func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, ok := m.statsForNotification(ctx, "completion")
	if !ok {
		return
	}
	if countActiveItems(stats) > 0 {
		return
	}

	m.mu.Lock()
	wasActive := m.queueActive
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()
	if !wasActive {
		return
	}

	var duration time.Duration
	if !start.IsZero() {
		duration = time.Since(start)
	}
	payload := notifications.Payload{
		"processed": stats[queue.StatusCompleted],
		"failed":    stats[queue.StatusFailed],
		"duration":  duration,
	}
	if err := m.notifier.Publish(ctx, notifications.EventQueueCompleted, payload); err != nil {
		debugPublishFailure(m.logger, err,
			"workflow shutting down, could not send run completion notification",
			"run completion notification failed")
	}
}

func (m *Manager) statsForNotification(ctx context.Context, kind string) (map[queue.Status]int, bool) {
	stats, err := m.store.Stats(ctx)
	if err == nil {
		return stats, true
	}
	if errors.Is(err, context.Canceled) {
		m.logger.Debug("workflow shutting down, could not get queue stats for " + kind + " notification")
	} else {
		m.logger.Warn("queue stats unavailable for "+kind+" notification; notification skipped",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_stats_failed"),
			logging.String(logging.FieldErrorHint, "check ledger database access"),
			logging.String(logging.FieldImpact, kind+" notification will not be sent"),
		)
	}
	return nil, false
}

// countWorkItems counts everything not yet settled, including review.
func countWorkItems(stats map[queue.Status]int) int {
	total := 0
	for status, count := range stats {
		if status == queue.StatusCompleted || status == queue.StatusFailed {
			continue
		}
		total += count
	}
	return total
}

// countActiveItems counts items a lane will still pick up. Review items
// are excluded: they wait on the user, so an otherwise finished run
// still completes.
func countActiveItems(stats map[queue.Status]int) int {
	total := 0
	for _, status := range []queue.Status{
		queue.StatusPending,
		queue.StatusIngesting,
		queue.StatusIngested,
		queue.StatusPreprocessing,
		queue.StatusPreprocessed,
		queue.StatusReporting,
	} {
		total += stats[status]
	}
	return total
}
