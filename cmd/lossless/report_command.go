package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lossless/internal/logging"
	"lossless/internal/queue"
	"lossless/internal/report"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report [id...]",
		Short: "Rebuild QC reports",
		Long: "Without arguments, regenerates the dataset summary page from the current " +
			"queue contents. With item IDs, re-renders the per-recording report for each " +
			"preprocessed item.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stdout"},
			})
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			stdout := cmd.OutOrStdout()
			return ctx.withStore(func(store *queue.Store) error {
				reporter := report.NewReporter(cfg, store, logger)

				if len(args) == 0 {
					if err := reporter.RebuildSummary(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintf(stdout, "Summary report written to %s\n", filepath.Join(cfg.Paths.ReportsDir, "summary.html"))
					return nil
				}

				ids, err := parsePositiveIDs(args)
				if err != nil {
					return err
				}
				for _, id := range ids {
					item, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if item == nil {
						fmt.Fprintf(stdout, "Item %d not found\n", id)
						continue
					}
					if strings.TrimSpace(item.DerivativePath) == "" && strings.TrimSpace(item.StagedFile) == "" {
						fmt.Fprintf(stdout, "Item %d has no processed recording to report on\n", id)
						continue
					}
					if err := reporter.Prepare(cmd.Context(), item); err != nil {
						return err
					}
					if err := reporter.Execute(cmd.Context(), item); err != nil {
						return fmt.Errorf("report item %d: %w", id, err)
					}
					if err := store.Update(cmd.Context(), item); err != nil {
						return err
					}
					fmt.Fprintf(stdout, "Report written for %s (%s)\n", item.DisplayName(), item.ReportPath)
				}
				return nil
			})
		},
	}
}
