package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lossless/internal/bids"
	"lossless/internal/config"
	"lossless/internal/fileutil"
	"lossless/internal/logging"
	"lossless/internal/notifications"
	"lossless/internal/queue"
)

// settleDelay is how long a file must sit unmodified before the monitor
// trusts that the producer finished writing it.
const settleDelay = 2 * time.Second

// intakeMonitor scans the intake directory and hands new recordings to the
// queue. Deduplication runs at two levels: the queue rejects fingerprints it
// has already seen, and the offered map keeps one watcher session from
// re-offering an unchanged file on every scan.
type intakeMonitor struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	intakeDir    string
	scanInterval time.Duration
	settle       time.Duration

	mu      sync.Mutex
	running bool
	offered map[string]string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newIntakeMonitor(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *intakeMonitor {
	if cfg == nil || store == nil {
		return nil
	}
	dir := strings.TrimSpace(cfg.Paths.IntakeDir)
	if dir == "" {
		return nil
	}

	interval := time.Duration(cfg.Workflow.WatchScanInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &intakeMonitor{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "intake-monitor"),
		notifier:     notifier,
		intakeDir:    dir,
		scanInterval: interval,
		settle:       settleDelay,
		offered:      make(map[string]string),
	}
}

func (m *intakeMonitor) Start(ctx context.Context) error {
	if m == nil {
		return errors.New("intake monitor unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("intake monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop()
	return nil
}

func (m *intakeMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *intakeMonitor) loop() {
	defer m.wg.Done()

	m.scan(m.ctx)

	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.scan(m.ctx)
		}
	}
}

func (m *intakeMonitor) scan(ctx context.Context) {
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := m.scanOnce(ctx); err != nil {
		m.logger.Warn("intake scan failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "intake_scan_failed"),
			logging.String(logging.FieldErrorHint, "check that paths.intake_dir exists and is readable"),
		)
	}
}

// scanOnce walks the intake directory a single time and offers every settled
// EDF file to the queue.
func (m *intakeMonitor) scanOnce(ctx context.Context) error {
	entries, err := os.ReadDir(m.intakeDir)
	if err != nil {
		return fmt.Errorf("read intake dir: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), bids.DataExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// File vanished between listing and stat.
			continue
		}
		if m.settle > 0 && now.Sub(info.ModTime()) < m.settle {
			continue
		}

		path := filepath.Join(m.intakeDir, name)
		fp := fileutil.FingerprintInfo(path, info)
		if m.alreadyOffered(path, fp) {
			continue
		}
		if err := m.offer(ctx, path, fp); err != nil {
			m.logger.Warn("intake enqueue failed; will retry",
				logging.Error(err),
				logging.String("source", path),
				logging.String(logging.FieldEventType, "intake_enqueue_failed"),
				logging.String(logging.FieldErrorHint, "check queue database health"),
			)
			continue
		}
		m.markOffered(path, fp)
	}
	return nil
}

func (m *intakeMonitor) alreadyOffered(path, fingerprint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offered[path] == fingerprint
}

func (m *intakeMonitor) markOffered(path, fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offered[path] = fingerprint
}

// offer hands one intake file to the queue.
func (m *intakeMonitor) offer(ctx context.Context, path, fingerprint string) error {
	existing, err := m.store.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("lookup recording: %w", err)
	}
	if existing != nil {
		return m.handleExisting(ctx, existing)
	}

	item, err := m.store.NewRecording(ctx, path, fingerprint)
	if err != nil {
		return fmt.Errorf("enqueue recording: %w", err)
	}
	m.logger.Info("queued new recording",
		logging.Int64(logging.FieldRecordingID, item.ID),
		logging.String("source", path),
		logging.String("fingerprint", fingerprint),
		logging.String(logging.FieldEventType, "recording_detected"),
	)
	m.notifyDetected(ctx, path)
	return nil
}

func (m *intakeMonitor) handleExisting(ctx context.Context, existing *queue.Item) error {
	logger := m.logger.With(logging.Int64(logging.FieldRecordingID, existing.ID))

	switch {
	case existing.Status == queue.StatusPending:
		logger.Debug("recording already queued")
		return nil
	case existing.Status == queue.StatusCompleted:
		logger.Debug("recording already completed")
		return nil
	case existing.IsInWorkflow():
		logger.Debug("recording already in workflow",
			logging.String("status", string(existing.Status)),
			logging.String("progress_stage", strings.TrimSpace(existing.ProgressStage)),
		)
		return nil
	case existing.NeedsReview && queue.IsUserStopReason(existing.ReviewReason):
		// A user stop outranks the scan; the file sitting in intake must
		// not resurrect the recording. An explicit run command does.
		logger.Debug("recording stopped by user; leaving parked")
		return nil
	}

	// Failed and review items re-enter the queue when their file is seen
	// again, matching a fresh drop into the intake directory.
	existing.Status = queue.StatusPending
	existing.ErrorMessage = ""
	existing.ProgressStage = "Awaiting ingest"
	existing.ProgressPercent = 0
	existing.ProgressMessage = ""
	existing.NeedsReview = false
	existing.ReviewReason = ""
	if err := m.store.Update(ctx, existing); err != nil {
		return fmt.Errorf("reset recording for retry: %w", err)
	}
	logger.Debug("reset recording for processing")
	return nil
}

func (m *intakeMonitor) notifyDetected(ctx context.Context, path string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, notifications.EventRecordingDetected, notifications.Payload{
		"recording": filepath.Base(path),
		"path":      path,
	}); err != nil {
		m.logger.Warn("detection notification failed", logging.Error(err))
	}
}
