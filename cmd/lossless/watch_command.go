package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lossless/internal/config"
	"lossless/internal/ingest"
	"lossless/internal/logging"
	"lossless/internal/lossless"
	"lossless/internal/notifications"
	"lossless/internal/preprocess"
	"lossless/internal/queue"
	"lossless/internal/report"
	"lossless/internal/watch"
	"lossless/internal/workflow"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the intake directory and process recordings continuously",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchProcess(cmd.Context(), ctx)
		},
	}
}

func runWatchProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("lossless-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update lossless.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "lossless-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, "lossless.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	if err := registerStages(manager, cfg, store, logger, notifier); err != nil {
		return err
	}

	watcher, err := watch.New(cfg, store, logger, manager)
	if err != nil {
		return err
	}
	if err := watcher.Start(signalCtx); err != nil {
		return err
	}
	defer watcher.Stop()

	<-signalCtx.Done()
	logger.Info("lossless watcher shutting down")
	return nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) error {
	if mgr == nil || cfg == nil {
		return nil
	}

	pipeline, err := lossless.NewPipeline(cfg.Pipeline.ConfigPath)
	if err != nil {
		return fmt.Errorf("load pipeline recipe: %w", err)
	}

	mgr.ConfigureStages(workflow.StageSet{
		Ingest:     ingest.NewIngesterWithNotifier(cfg, store, logger, notifier),
		Preprocess: preprocess.NewPreprocessorWithDependencies(cfg, store, logger, pipeline, notifier),
		Report:     report.NewReporterWithDependencies(cfg, store, logger, notifier),
	})
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, currentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
