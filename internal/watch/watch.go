package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"lossless/internal/config"
	"lossless/internal/logging"
	"lossless/internal/notifications"
	"lossless/internal/queue"
	"lossless/internal/workflow"
)

// Watcher owns the continuous intake-and-process lifecycle and enforces
// single-instance execution.
type Watcher struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	monitor  *intakeMonitor

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents watcher runtime information.
type Status struct {
	Running      bool
	IntakeDir    string
	Workflow     workflow.StatusSummary
	LockFilePath string
}

// LockPath returns the lock file guarding queue access. One-shot runs take
// the same lock, so a run and a watcher never process the same queue
// concurrently.
func LockPath(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, "lossless.lock")
}

// New constructs a watcher with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Watcher, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("watch requires config, store, logger, and workflow manager")
	}
	if strings.TrimSpace(cfg.Paths.IntakeDir) == "" {
		return nil, errors.New("watch mode requires paths.intake_dir to be set")
	}

	monitor := newIntakeMonitor(cfg, store, logger, notifications.NewService(cfg))
	if monitor == nil {
		return nil, errors.New("intake monitor unavailable")
	}

	lockPath := LockPath(cfg)
	return &Watcher{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		monitor:  monitor,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start launches the workflow manager and intake monitor after acquiring the
// instance lock.
func (w *Watcher) Start(ctx context.Context) error {
	if w.running.Load() {
		return errors.New("watcher already running")
	}

	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lossless instance is already processing this queue")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	if err := w.workflow.Start(w.ctx); err != nil {
		_ = w.lock.Unlock()
		w.cancel()
		w.ctx = nil
		w.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := w.monitor.Start(w.ctx); err != nil {
		w.workflow.Stop()
		_ = w.lock.Unlock()
		w.cancel()
		w.ctx = nil
		w.cancel = nil
		return fmt.Errorf("start intake monitor: %w", err)
	}

	w.running.Store(true)
	w.logger.Info("watch mode started",
		logging.String("intake_dir", w.cfg.Paths.IntakeDir),
		logging.String("lock", w.lockPath),
	)
	return nil
}

// Stop halts intake and background processing and releases the instance lock.
// In-flight recordings keep their processing status; the next start reclaims
// them back to the stage they were in.
func (w *Watcher) Stop() {
	if !w.running.Load() {
		return
	}

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.monitor.Stop()
	w.workflow.Stop()
	if err := w.lock.Unlock(); err != nil {
		w.logger.Warn("failed to release watch lock", logging.Error(err))
	}
	w.ctx = nil
	w.running.Store(false)
	w.logger.Info("watch mode stopped")
}

// Close releases resources held by the watcher.
func (w *Watcher) Close() error {
	w.Stop()
	if w.store != nil {
		return w.store.Close()
	}
	return nil
}

// Status returns the current watcher status.
func (w *Watcher) Status(ctx context.Context) Status {
	return Status{
		Running:      w.running.Load(),
		IntakeDir:    w.cfg.Paths.IntakeDir,
		Workflow:     w.workflow.Status(ctx),
		LockFilePath: w.lockPath,
	}
}
