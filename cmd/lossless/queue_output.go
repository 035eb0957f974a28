package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lossless/internal/queue"
)

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type queueItemJSON struct {
	ID          int64  `json:"id"`
	Recording   string `json:"recording"`
	Status      string `json:"status"`
	SourcePath  string `json:"sourcePath,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func queueItemsJSON(items []*queue.Item) []queueItemJSON {
	out := make([]queueItemJSON, 0, len(items))
	for _, item := range items {
		out = append(out, queueItemJSON{
			ID:          item.ID,
			Recording:   item.DisplayName(),
			Status:      string(item.Status),
			SourcePath:  item.SourcePath,
			CreatedAt:   formatDisplayTime(item.CreatedAt),
			Fingerprint: item.SourceFingerprint,
		})
	}
	return out
}

// outcomeJSON is the shared per-item record for retry/stop/remove JSON
// output: {"items": [{"id": ..., "outcome": ...}, ...]}.
type outcomeJSON struct {
	ID            int64  `json:"id"`
	Outcome       string `json:"outcome"`
	PriorStatus   string `json:"prior_status,omitempty"`
	WasProcessing bool   `json:"was_processing,omitempty"`
}

func writeOutcomeListJSON(cmd *cobra.Command, items []outcomeJSON) error {
	return writeJSON(cmd, map[string]any{"items": items})
}

func writeQueueRetryResultJSON(cmd *cobra.Command, result queueRetryResult) error {
	items := make([]outcomeJSON, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, outcomeJSON{ID: item.ID, Outcome: retryOutcomeString(item.Outcome)})
	}
	return writeOutcomeListJSON(cmd, items)
}

func printQueueRetryResult(out io.Writer, result queueRetryResult) {
	for _, item := range result.Items {
		switch item.Outcome {
		case queueRetryOutcomeNotFound:
			fmt.Fprintf(out, "Item %d not found\n", item.ID)
		case queueRetryOutcomeNotFailed:
			fmt.Fprintf(out, "Item %d is not in failed state\n", item.ID)
		case queueRetryOutcomeUpdated:
			fmt.Fprintf(out, "Item %d reset for retry\n", item.ID)
		}
	}
}

func writeQueueStopResultJSON(cmd *cobra.Command, result queueStopResult) error {
	items := make([]outcomeJSON, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, outcomeJSON{
			ID:            item.ID,
			Outcome:       stopOutcomeString(item.Outcome),
			PriorStatus:   item.PriorStatus,
			WasProcessing: item.WasProcessing,
		})
	}
	return writeOutcomeListJSON(cmd, items)
}

func printQueueStopResult(out io.Writer, result queueStopResult) {
	for _, item := range result.Items {
		switch item.Outcome {
		case queueStopOutcomeNotFound:
			fmt.Fprintf(out, "Item %d not found\n", item.ID)
		case queueStopOutcomeAlreadyCompleted:
			fmt.Fprintf(out, "Item %d is already completed\n", item.ID)
		case queueStopOutcomeAlreadyFailed:
			fmt.Fprintf(out, "Item %d is already failed\n", item.ID)
		case queueStopOutcomeAlreadyParked:
			fmt.Fprintf(out, "Item %d is already parked for review\n", item.ID)
		case queueStopOutcomeUpdated:
			if item.WasProcessing {
				fmt.Fprintf(out, "Item %d stop requested (currently %s; will halt after current stage)\n",
					item.ID, formatStatusLabel(item.PriorStatus))
			} else {
				fmt.Fprintf(out, "Item %d stop requested\n", item.ID)
			}
		}
	}
}

func writeQueueRemoveResultJSON(cmd *cobra.Command, result queueRemoveResult) error {
	items := make([]outcomeJSON, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, outcomeJSON{ID: item.ID, Outcome: removeOutcomeString(item.Outcome)})
	}
	return writeOutcomeListJSON(cmd, items)
}

func printQueueRemoveResult(out io.Writer, result queueRemoveResult) {
	for _, item := range result.Items {
		switch item.Outcome {
		case queueRemoveOutcomeNotFound:
			fmt.Fprintf(out, "Item %d not found\n", item.ID)
		case queueRemoveOutcomeRemoved:
			fmt.Fprintf(out, "Item %d removed\n", item.ID)
		}
	}
}
