package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lossless/internal/datasets"
	"lossless/internal/logging"
	"lossless/internal/openneuro"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var subjects []string
	var snapshot string
	var force bool
	var list bool

	cmd := &cobra.Command{
		Use:   "fetch [dataset]",
		Short: "Download a sample dataset from OpenNeuro",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				rows := make([][]string, 0)
				for _, ds := range datasets.All() {
					rows = append(rows, []string{ds.ID, ds.Name, strings.Join(ds.Subjects, ", ")})
				}
				table := renderTable(
					[]string{"ID", "Name", "Demo Subjects"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("dataset id required (use --list to see known datasets)")
			}
			datasetID := strings.TrimSpace(args[0])

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
				return fmt.Errorf("setup logging: %w", err)
			}

			client, err := openneuro.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("create OpenNeuro client: %w", err)
			}

			result, err := datasets.Fetch(cmd.Context(), cfg, client, logger, datasets.FetchRequest{
				Dataset:  datasetID,
				Subjects: subjects,
				Snapshot: snapshot,
				Force:    force,
			})
			if err != nil {
				return err
			}

			summary := result.Summary
			fmt.Fprintf(out, "Fetched %s (snapshot %s)\n", result.Dataset, summary.Snapshot)
			fmt.Fprintf(out, "Files: %d total, %d downloaded, %d cached\n", summary.Files, summary.Downloaded, summary.Skipped)
			fmt.Fprintf(out, "Size: %s\n", humanize.IBytes(uint64(summary.Bytes)))
			fmt.Fprintf(out, "Dataset root: %s\n", result.Root)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&subjects, "subject", nil, "Restrict the download to a subject label (repeatable)")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Pin a snapshot tag instead of the latest")
	cmd.Flags().BoolVar(&force, "force", false, "Re-download files that are already cached")
	cmd.Flags().BoolVar(&list, "list", false, "List the known sample datasets")
	return cmd
}
