package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lossless/internal/bids"
	"lossless/internal/eeg"
	"lossless/internal/eeg/edf"
	"lossless/internal/logging"
	"lossless/internal/tabular"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var importArgsPath string
	var pathArgsPath string
	var root string
	var datasetName string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert vendor recordings into a BIDS dataset",
		Long: `Convert reads two parameter tables with one row per recording: the import
table parameterizes the reader (the source path and optional stim_channel),
and the path table names the destination entities (subject, session, task,
run). Each recording round-trips through EDF before landing in the tree.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(importArgsPath) == "" {
				return errors.New("--import-args is required")
			}
			if strings.TrimSpace(pathArgsPath) == "" {
				return errors.New("--path-args is required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			destRoot := strings.TrimSpace(root)
			if destRoot == "" {
				destRoot = strings.TrimSpace(cfg.Paths.DataDir)
			}
			if destRoot == "" {
				return errors.New("no dataset root given and paths.data_dir is not configured")
			}

			importArgs, err := tabular.ReadFile(importArgsPath)
			if err != nil {
				return fmt.Errorf("read import parameters: %w", err)
			}
			pathArgs, err := tabular.ReadFile(pathArgsPath)
			if err != nil {
				return fmt.Errorf("read path parameters: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stdout"},
			})
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}

			written, err := bids.ConvertDataset(cmd.Context(), edfImporter, importArgs, pathArgs, bids.ConvertOptions{
				Root:        destRoot,
				Overwrite:   overwrite,
				DatasetName: datasetName,
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %d recording(s) to %s\n", len(written), destRoot)
			for _, p := range written {
				fmt.Fprintf(out, "  %s\n", p.FPath())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&importArgsPath, "import-args", "", "CSV/TSV of reader parameters, one row per recording")
	cmd.Flags().StringVar(&pathArgsPath, "path-args", "", "CSV/TSV of destination entities, one row per recording")
	cmd.Flags().StringVar(&root, "root", "", "Dataset root to write into (defaults to paths.data_dir)")
	cmd.Flags().StringVar(&datasetName, "name", "", "Dataset name for a fresh dataset description")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace recordings already present in the tree")
	return cmd
}

// edfImporter is the built-in reader: the import row names an EDF file and,
// optionally, the stimulus channel to lift events from.
func edfImporter(ctx context.Context, params tabular.Record) (*eeg.Raw, []eeg.Event, eeg.EventMap, error) {
	path := strings.TrimSpace(params["path"])
	if path == "" {
		return nil, nil, nil, errors.New(`import parameters need a "path" column`)
	}
	raw, err := edf.Read(path)
	if err != nil {
		return nil, nil, nil, err
	}

	stim := strings.TrimSpace(params["stim_channel"])
	if stim == "" {
		return raw, nil, nil, nil
	}
	events, err := raw.FindEvents(stim)
	if err != nil {
		return nil, nil, nil, err
	}
	names := make(eeg.EventMap, len(events))
	for _, ev := range events {
		name := fmt.Sprintf("event_%d", ev.Code)
		names[name] = ev.Code
	}
	return raw, events, names, nil
}
