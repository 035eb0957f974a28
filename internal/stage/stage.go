// Package stage defines the contract between the workflow manager and the
// pipeline stages that move a recording from intake to report.
package stage

import (
	"context"

	"lossless/internal/queue"
)

// Handler is one pipeline stage operating on a queue item. Prepare runs
// before the item enters the processing status and may reject it; Execute
// does the work and mutates the item in place; the manager persists the
// item after each call.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// Health reports whether a stage can currently accept work, with Detail
// explaining a not-ready state.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
