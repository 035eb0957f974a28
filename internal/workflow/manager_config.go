package workflow

import "lossless/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	foreground := &laneState{kind: laneForeground, name: "foreground", notificationsEnabled: true}
	background := &laneState{kind: laneBackground, name: "background", notificationsEnabled: false}

	if set.Ingest != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "ingest",
			handler:          set.Ingest,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusIngesting,
			doneStatus:       queue.StatusIngested,
		})
	}
	// Recordings converted by hand enter the queue at ingested, so the
	// report stage picks up from there when preprocessing is disabled.
	reportStart := queue.StatusIngested
	if set.Preprocess != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "preprocess",
			handler:          set.Preprocess,
			startStatus:      queue.StatusIngested,
			processingStatus: queue.StatusPreprocessing,
			doneStatus:       queue.StatusPreprocessed,
		})
		reportStart = queue.StatusPreprocessed
	}
	if set.Report != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "report",
			handler:          set.Report,
			startStatus:      reportStart,
			processingStatus: queue.StatusReporting,
			doneStatus:       queue.StatusCompleted,
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)

	if len(foreground.stages) > 0 {
		foreground.finalize()
		lanes[foreground.kind] = foreground
		order = append(order, foreground.kind)
	}
	if len(background.stages) > 0 {
		background.finalize()
		lanes[background.kind] = background
		order = append(order, background.kind)
	}

	for _, lane := range lanes {
		if lane == nil {
			continue
		}
		lane.runReclaimer = len(lane.processingStatuses) > 0
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
