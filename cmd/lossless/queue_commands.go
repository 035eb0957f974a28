package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"lossless/internal/lossless"
	"lossless/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueStopCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueHealthSubcommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					payload := make(map[string]int, len(stats))
					for status, count := range stats {
						payload[string(status)] = count
					}
					return writeJSON(cmd, payload)
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(listStatuses))
			for _, raw := range listStatuses {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, queueItemsJSON(items))
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Recording", "Status", "Created", "Fingerprint"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <itemID>",
		Short: "Show one queue item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if item == nil {
					if jsonOut {
						return writeJSON(cmd, map[string]any{"error": "not_found"})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Item %d not found\n", ids[0])
					return nil
				}
				if jsonOut {
					return writeJSON(cmd, queueItemDetailJSON(item))
				}
				printQueueItemDetail(cmd.OutOrStdout(), item)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool
	var clearCompleted bool
	var clearFailed bool
	var clearForce bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			scopes := 0
			for _, set := range []bool{clearAll, clearCompleted, clearFailed} {
				if set {
					scopes++
				}
			}
			if scopes == 0 {
				return errors.New("specify one of --all, --completed, or --failed")
			}
			if scopes > 1 {
				return errors.New("specify only one of --all, --completed, or --failed")
			}
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				if clearForce {
					fmt.Fprintln(out, "Clearing queue without confirmation (--force)")
				}
				switch {
				case clearCompleted:
					removed, err := store.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed items\n", removed)
				case clearFailed:
					removed, err := store.ClearFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed items\n", removed)
				default:
					removed, err := store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d queue items\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every queue item")
	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed items")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed items")
	cmd.Flags().BoolVar(&clearForce, "force", false, "No-op flag for compatibility; removal always proceeds")
	return cmd
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove failed queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.ClearFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed items\n", removed)
				return nil
			})
		},
	}
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return in-flight items to the start of their stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				updated, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "retry [itemID...]",
		Short: "Retry failed queue items",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					updated, err := store.RetryFailed(cmd.Context())
					if err != nil {
						return err
					}
					if jsonOut {
						return writeJSON(cmd, map[string]any{"updated": updated})
					}
					fmt.Fprintf(out, "Retried %d failed items\n", updated)
					return nil
				}

				result, err := retryIDs(cmd.Context(), store, ids)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeQueueRetryResultJSON(cmd, result)
				}
				printQueueRetryResult(out, result)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newQueueStopCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stop <itemID...>",
		Short: "Stop queue items and park them for review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				result, err := stopIDs(cmd.Context(), store, ids)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeQueueStopResultJSON(cmd, result)
				}
				printQueueStopResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "remove <itemID...>",
		Short: "Remove queue items by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				result, err := removeIDs(cmd.Context(), store, ids)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeQueueRemoveResultJSON(cmd, result)
				}
				printQueueRemoveResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newQueueHealthSubcommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"total":      health.Total,
						"pending":    health.Pending,
						"processing": health.Processing,
						"failed":     health.Failed,
						"review":     health.Review,
						"completed":  health.Completed,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nPending: %d\nProcessing: %d\nFailed: %d\nReview: %d\nCompleted: %d\n",
					health.Total,
					health.Pending,
					health.Processing,
					health.Failed,
					health.Review,
					health.Completed,
				)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

type queueItemDetail struct {
	ID                int64   `json:"id"`
	Recording         string  `json:"recording"`
	Status            string  `json:"status"`
	SourcePath        string  `json:"sourcePath,omitempty"`
	Subject           string  `json:"subject,omitempty"`
	Session           string  `json:"session,omitempty"`
	Task              string  `json:"task,omitempty"`
	Run               string  `json:"run,omitempty"`
	StagedFile        string  `json:"stagedFile,omitempty"`
	DerivativePath    string  `json:"derivativePath,omitempty"`
	ReportPath        string  `json:"reportPath,omitempty"`
	RunID             string  `json:"runId,omitempty"`
	Fingerprint       string  `json:"fingerprint,omitempty"`
	CreatedAt         string  `json:"createdAt,omitempty"`
	UpdatedAt         string  `json:"updatedAt,omitempty"`
	ProgressStage     string  `json:"progressStage,omitempty"`
	ProgressPercent   float64 `json:"progressPercent,omitempty"`
	ProgressMessage   string  `json:"progressMessage,omitempty"`
	ErrorMessage      string  `json:"errorMessage,omitempty"`
	NeedsReview       bool    `json:"needsReview,omitempty"`
	ReviewReason      string  `json:"reviewReason,omitempty"`
	FlaggedChannels   int     `json:"flaggedChannels,omitempty"`
	FlaggedEpochs     int     `json:"flaggedEpochs,omitempty"`
	FlaggedComponents int     `json:"flaggedComponents,omitempty"`
}

func queueItemDetailJSON(item *queue.Item) queueItemDetail {
	detail := queueItemDetail{
		ID:              item.ID,
		Recording:       item.DisplayName(),
		Status:          string(item.Status),
		SourcePath:      item.SourcePath,
		Subject:         item.Subject,
		Session:         item.Session,
		Task:            item.Task,
		Run:             item.RunLabel,
		StagedFile:      item.StagedFile,
		DerivativePath:  item.DerivativePath,
		ReportPath:      item.ReportPath,
		RunID:           item.RunID,
		Fingerprint:     item.SourceFingerprint,
		CreatedAt:       formatDisplayTime(item.CreatedAt),
		UpdatedAt:       formatDisplayTime(item.UpdatedAt),
		ProgressStage:   item.ProgressStage,
		ProgressPercent: item.ProgressPercent,
		ProgressMessage: item.ProgressMessage,
		ErrorMessage:    item.ErrorMessage,
		NeedsReview:     item.NeedsReview,
		ReviewReason:    item.ReviewReason,
	}
	if flags, err := lossless.ParseFlags(item.FlagsJSON); err == nil && !flags.IsZero() {
		counts := flags.Counts()
		detail.FlaggedChannels = counts.Channels
		detail.FlaggedEpochs = counts.Epochs
		detail.FlaggedComponents = counts.Components
	}
	return detail
}

func printQueueItemDetail(out io.Writer, item *queue.Item) {
	writeDetailLine := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "%s: %s\n", label, value)
	}

	writeDetailLine("Recording", item.DisplayName())
	writeDetailLine("Status", formatStatusLabel(string(item.Status)))
	writeDetailLine("Source", item.SourcePath)
	writeDetailLine("Staged file", item.StagedFile)
	writeDetailLine("Derivative", item.DerivativePath)
	writeDetailLine("Report", item.ReportPath)
	writeDetailLine("Fingerprint", item.SourceFingerprint)
	writeDetailLine("Run ID", item.RunID)
	writeDetailLine("Created", formatDisplayTime(item.CreatedAt))
	writeDetailLine("Updated", formatDisplayTime(item.UpdatedAt))
	if strings.TrimSpace(item.ProgressStage) != "" {
		progress := fmt.Sprintf("%s %.0f%%", item.ProgressStage, item.ProgressPercent)
		if strings.TrimSpace(item.ProgressMessage) != "" {
			progress += " (" + item.ProgressMessage + ")"
		}
		writeDetailLine("Progress", progress)
	}
	writeDetailLine("Error", item.ErrorMessage)
	if item.NeedsReview {
		writeDetailLine("Review reason", item.ReviewReason)
	}
	printFlagDetail(out, item.FlagsJSON)
}

func printFlagDetail(out io.Writer, flagsJSON string) {
	flags, err := lossless.ParseFlags(flagsJSON)
	if err != nil || flags.IsZero() {
		return
	}
	fmt.Fprintln(out, "Flags:")
	if channels := flags.AllChannels(); len(channels) > 0 {
		fmt.Fprintf(out, "  Channels (%d): %s\n", len(channels), strings.Join(channels, ", "))
	}
	if epochs := flags.AllEpochs(); len(epochs) > 0 {
		fmt.Fprintf(out, "  Epochs (%d): %s\n", len(epochs), formatIndexList(epochs, 12))
	}
	if components := flags.ComponentIndices(); len(components) > 0 {
		fmt.Fprintf(out, "  Components (%d): %s\n", len(components), formatIndexList(components, 12))
	}
}

// formatIndexList joins indices, eliding the tail past limit entries.
func formatIndexList(indices []int, limit int) string {
	parts := make([]string, 0, len(indices))
	for i, idx := range indices {
		if i == limit {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprintf("%d", idx))
	}
	return strings.Join(parts, ", ")
}
