package workflow

import (
	"context"

	"lossless/internal/logging"
	"lossless/internal/queue"
	"lossless/internal/stage"
)

// StatusSummary is the manager's answer to the status command: whether
// the lanes are running, ledger counts by status, per-stage health, and
// the most recent item and error seen.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastItem    *queue.Item
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status snapshots the workflow. Stage health checks run inline, so the
// call may touch the filesystem and the recipe.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	summary := StatusSummary{}

	m.mu.RLock()
	summary.Running = m.running
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastItem != nil {
		item := *m.lastItem
		summary.LastItem = &item
	}
	var stages []pipelineStage
	for _, kind := range m.laneOrder {
		if lane := m.lanes[kind]; lane != nil {
			stages = append(stages, lane.stages...)
		}
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats

	summary.StageHealth = make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler == nil {
			continue
		}
		summary.StageHealth[stg.name] = stg.handler.HealthCheck(ctx)
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item == nil {
		m.lastItem = nil
		return
	}
	clone := *item
	m.lastItem = &clone
}
