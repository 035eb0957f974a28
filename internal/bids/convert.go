package bids

import (
	"context"
	"fmt"
	"log/slog"

	"lossless/internal/eeg"
	"lossless/internal/eeg/edf"
	"lossless/internal/logging"
	"lossless/internal/tabular"
)

// ImportFunc turns one vendor recording into memory. It receives the
// parameter record for that recording (reader-specific keys such as the
// input path or the stimulus channel) and returns the loaded recording,
// its stimulus events, and the event names.
type ImportFunc func(ctx context.Context, params tabular.Record) (*eeg.Raw, []eeg.Event, eeg.EventMap, error)

// ConvertOptions configures a dataset conversion.
type ConvertOptions struct {
	// Root is the dataset tree to write into.
	Root string
	// Overwrite permits replacing recordings already in the tree.
	Overwrite bool
	// DatasetName seeds the dataset description for a fresh tree.
	DatasetName string
	Logger      *slog.Logger
}

// ConvertDataset imports recordings one by one and writes each into the
// BIDS tree. importArgs and pathArgs pair up by row: row i of importArgs
// parameterizes the callback, row i of pathArgs names the destination.
// Every import round-trips through a scratch EDF before writing, so the
// output is format-clean regardless of how the callback assembled the
// recording. Returns the path of every recording written.
func ConvertDataset(ctx context.Context, importFn ImportFunc, importArgs, pathArgs *tabular.Table, opts ConvertOptions) ([]Path, error) {
	if importFn == nil {
		return nil, fmt.Errorf("conversion needs an import function")
	}
	if importArgs.Len() == 0 {
		return nil, fmt.Errorf("conversion needs at least one recording")
	}
	if importArgs.Len() != pathArgs.Len() {
		return nil, fmt.Errorf("import parameters (%d rows) and path parameters (%d rows) do not pair up", importArgs.Len(), pathArgs.Len())
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("conversion needs a dataset root")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	written := make([]Path, 0, importArgs.Len())
	for i := 0; i < importArgs.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		dest, err := FromRecord(pathArgs.Row(i), opts.Root)
		if err != nil {
			return written, fmt.Errorf("recording %d: %w", i+1, err)
		}
		logger.Info("importing recording",
			logging.Int("recording", i+1),
			logging.Int("total", importArgs.Len()),
			logging.String("destination", dest.Basename()))

		raw, events, names, err := importFn(ctx, importArgs.Row(i))
		if err != nil {
			return written, fmt.Errorf("import recording %d: %w", i+1, err)
		}
		clean, err := edf.Reload(raw)
		if err != nil {
			return written, fmt.Errorf("recording %d: %w", i+1, err)
		}
		out, err := WriteRaw(dest, clean, events, names, WriteOptions{
			Overwrite:   opts.Overwrite,
			DatasetName: opts.DatasetName,
		})
		if err != nil {
			return written, fmt.Errorf("recording %d: %w", i+1, err)
		}
		written = append(written, out)
	}
	return written, nil
}
