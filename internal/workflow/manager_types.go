package workflow

import (
	"log/slog"

	"lossless/internal/queue"
	"lossless/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Ingest     stage.Handler
	Preprocess stage.Handler
	Report     stage.Handler
}

// loggerAware is implemented by handlers that accept a per-item logger
// before Prepare runs.
type loggerAware interface {
	SetLogger(logger *slog.Logger)
}

// pipelineStage binds a handler to the three ledger statuses it moves an
// item through: startStatus is what the lane polls for, processingStatus
// holds the item while Execute runs, doneStatus hands it to the next
// stage (or marks it finished).
type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

type laneKind string

const (
	laneForeground laneKind = "foreground"
	laneBackground laneKind = "background"
)

// laneState is one polling loop's slice of the pipeline. The foreground
// lane ingests new arrivals; the background lane carries preprocess and
// report. Lookup tables are derived once by finalize.
type laneState struct {
	kind                 laneKind
	name                 string
	stages               []pipelineStage
	statusOrder          []queue.Status
	stageByStart         map[queue.Status]pipelineStage
	processingStatuses   []queue.Status
	logger               *slog.Logger
	notificationsEnabled bool
	runReclaimer         bool
}

func (l *laneState) finalize() {
	if l == nil {
		return
	}
	l.stageByStart = make(map[queue.Status]pipelineStage, len(l.stages))
	l.statusOrder = l.statusOrder[:0]
	l.processingStatuses = l.processingStatuses[:0]
	seen := make(map[queue.Status]struct{}, len(l.stages))
	for _, stg := range l.stages {
		l.stageByStart[stg.startStatus] = stg
		l.statusOrder = append(l.statusOrder, stg.startStatus)
		if stg.processingStatus == "" {
			continue
		}
		if _, dup := seen[stg.processingStatus]; dup {
			continue
		}
		seen[stg.processingStatus] = struct{}{}
		l.processingStatuses = append(l.processingStatuses, stg.processingStatus)
	}
}

func (l *laneState) stageForStatus(status queue.Status) (pipelineStage, bool) {
	if l == nil {
		return pipelineStage{}, false
	}
	stg, ok := l.stageByStart[status]
	return stg, ok
}
