package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"lossless/internal/bids"
	"lossless/internal/fileutil"
	"lossless/internal/logging"
	"lossless/internal/notifications"
	"lossless/internal/queue"
	"lossless/internal/watch"
	"lossless/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var reprocess bool

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Process a BIDS dataset or a single recording, then exit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			target := strings.TrimSpace(cfg.Paths.DataDir)
			if len(args) > 0 {
				target = strings.TrimSpace(args[0])
			}
			if target == "" {
				return errors.New("no path given and paths.data_dir is not configured")
			}

			lock := flock.New(watch.LockPath(cfg))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire processing lock: %w", err)
			}
			if !locked {
				return errors.New("another lossless instance is already processing this queue")
			}
			defer lock.Unlock()

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stdout"},
			})
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			runCtx := cmd.Context()
			summary, err := enqueueRunTarget(runCtx, store, target, reprocess)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued %d new, requeued %d, skipped %d recording(s)\n",
				summary.Queued, summary.Requeued, summary.Skipped)

			notifier := notifications.NewService(cfg)
			manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier, workflow.WithDrainMode())
			if err := registerStages(manager, cfg, store, logger, notifier); err != nil {
				return err
			}
			if err := manager.Start(runCtx); err != nil {
				return fmt.Errorf("start workflow: %w", err)
			}
			manager.Wait()

			return printRunSummary(runCtx, cmd, store)
		},
	}

	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "Requeue recordings that already completed")
	return cmd
}

type enqueueSummary struct {
	Queued   int
	Requeued int
	Skipped  int
}

// enqueueRunTarget queues the recordings under target. A directory is treated
// as a BIDS dataset root; a file must be a single recording. Fingerprints
// dedupe against earlier runs: items already moving through the workflow are
// left alone, while failed and parked ones return to pending because the user
// named them explicitly.
func enqueueRunTarget(ctx context.Context, store *queue.Store, target string, reprocess bool) (enqueueSummary, error) {
	var summary enqueueSummary

	info, err := os.Stat(target)
	if err != nil {
		return summary, fmt.Errorf("stat %s: %w", target, err)
	}

	var sources []string
	if info.IsDir() {
		recordings, err := bids.FindRecordings(target)
		if err != nil {
			return summary, err
		}
		if len(recordings) == 0 {
			return summary, fmt.Errorf("no recordings found under %s", target)
		}
		for _, rec := range recordings {
			sources = append(sources, rec.FPath())
		}
	} else {
		if !strings.EqualFold(filepath.Ext(target), bids.DataExtension) {
			return summary, fmt.Errorf("%s is not a %s recording or a dataset directory", target, bids.DataExtension)
		}
		sources = []string{target}
	}

	for _, source := range sources {
		fp, err := fileutil.Fingerprint(source)
		if err != nil {
			return summary, fmt.Errorf("fingerprint %s: %w", source, err)
		}
		existing, err := store.FindByFingerprint(ctx, fp)
		if err != nil {
			return summary, err
		}
		if existing == nil {
			if _, err := store.NewRecording(ctx, source, fp); err != nil {
				return summary, fmt.Errorf("enqueue %s: %w", source, err)
			}
			summary.Queued++
			continue
		}
		var requeue bool
		switch {
		case existing.Status == queue.StatusCompleted:
			requeue = reprocess
		case existing.Status == queue.StatusPending, existing.IsInWorkflow():
			requeue = false
		default:
			// Failed and parked recordings, including user-stopped ones.
			requeue = true
		}
		if !requeue {
			summary.Skipped++
			continue
		}

		existing.Status = queue.StatusPending
		existing.SourcePath = source
		existing.ErrorMessage = ""
		existing.ProgressStage = "Awaiting ingest"
		existing.ProgressPercent = 0
		existing.ProgressMessage = ""
		existing.NeedsReview = false
		existing.ReviewReason = ""
		if err := store.Update(ctx, existing); err != nil {
			return summary, fmt.Errorf("requeue %s: %w", source, err)
		}
		summary.Requeued++
	}
	return summary, nil
}

func printRunSummary(ctx context.Context, cmd *cobra.Command, store *queue.Store) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run finished: %d completed, %d need review, %d failed\n",
		stats[queue.StatusCompleted], stats[queue.StatusReview], stats[queue.StatusFailed])

	if stats[queue.StatusReview] > 0 || stats[queue.StatusFailed] > 0 {
		items, err := store.List(ctx, queue.StatusReview, queue.StatusFailed)
		if err != nil {
			return err
		}
		for _, item := range items {
			reason := strings.TrimSpace(item.ErrorMessage)
			if reason == "" {
				reason = strings.TrimSpace(item.ReviewReason)
			}
			if reason == "" {
				reason = string(item.Status)
			}
			fmt.Fprintf(out, "  %s: %s\n", item.DisplayName(), reason)
		}
	}
	return nil
}
