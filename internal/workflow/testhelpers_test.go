package workflow_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"lossless/internal/config"
	"lossless/internal/notifications"
	"lossless/internal/queue"
	"lossless/internal/stage"
)

type stubStage struct {
	name        string
	prepareHook func(*queue.Item)
	executeHook func(*queue.Item)
	prepareErr  error
	executeErr  error
	health      stage.Health

	mu       sync.Mutex
	logger   *slog.Logger
	executed int
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

func (s *stubStage) Prepare(_ context.Context, item *queue.Item) error {
	if s.prepareHook != nil {
		s.prepareHook(item)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, item *queue.Item) error {
	s.mu.Lock()
	s.executed++
	s.mu.Unlock()
	if s.executeHook != nil {
		s.executeHook(item)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubStage) executeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed
}

func (s *stubStage) receivedLogger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger != nil
}

type queueCompletion struct {
	processed int
	failed    int
}

// stubNotifier records the run-level and error events the manager publishes.
// Lane goroutines publish concurrently with test assertions, hence the mutex.
type stubNotifier struct {
	mu             sync.Mutex
	queueStarts    []int
	queueCompletes []queueCompletion
	errorContexts  []string
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch event {
	case notifications.EventQueueStarted:
		count, _ := payload["count"].(int)
		s.queueStarts = append(s.queueStarts, count)
	case notifications.EventQueueCompleted:
		processed, _ := payload["processed"].(int)
		failed, _ := payload["failed"].(int)
		s.queueCompletes = append(s.queueCompletes, queueCompletion{processed: processed, failed: failed})
	case notifications.EventError:
		label, _ := payload["context"].(string)
		s.errorContexts = append(s.errorContexts, label)
	}
	return nil
}

func (s *stubNotifier) Test(context.Context) error { return nil }

func (s *stubNotifier) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queueStarts)
}

func (s *stubNotifier) completions() []queueCompletion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]queueCompletion, len(s.queueCompletes))
	copy(out, s.queueCompletes)
	return out
}

func (s *stubNotifier) errorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errorContexts)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "dataset")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ReportsDir = filepath.Join(base, "reports")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Workflow.QueuePollInterval = 0
	return &cfg
}
