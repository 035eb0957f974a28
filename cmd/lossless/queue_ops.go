package main

import (
	"context"

	"lossless/internal/queue"
)

// retryIDs validates each ID and retries the ones sitting in failed state.
func retryIDs(ctx context.Context, store *queue.Store, ids []int64) (queueRetryResult, error) {
	result := queueRetryResult{
		Items: make([]queueRetryItemResult, 0, len(ids)),
	}

	for _, id := range ids {
		item, err := store.GetByID(ctx, id)
		if err != nil {
			return queueRetryResult{}, err
		}
		if item == nil {
			result.Items = append(result.Items, queueRetryItemResult{ID: id, Outcome: queueRetryOutcomeNotFound})
			continue
		}
		if item.Status != queue.StatusFailed {
			result.Items = append(result.Items, queueRetryItemResult{ID: id, Outcome: queueRetryOutcomeNotFailed})
			continue
		}

		updated, err := store.RetryFailed(ctx, id)
		if err != nil {
			return queueRetryResult{}, err
		}
		if updated > 0 {
			result.UpdatedCount += updated
			result.Items = append(result.Items, queueRetryItemResult{ID: id, Outcome: queueRetryOutcomeUpdated})
			continue
		}
		result.Items = append(result.Items, queueRetryItemResult{ID: id, Outcome: queueRetryOutcomeNotFailed})
	}

	return result, nil
}

// stopIDs validates each ID and requests a stop for the ones still moving.
// Completed, failed, and already parked items are reported without changes.
func stopIDs(ctx context.Context, store *queue.Store, ids []int64) (queueStopResult, error) {
	result := queueStopResult{
		Items: make([]queueStopItemResult, 0, len(ids)),
	}

	for _, id := range ids {
		item, err := store.GetByID(ctx, id)
		if err != nil {
			return queueStopResult{}, err
		}
		if item == nil {
			result.Items = append(result.Items, queueStopItemResult{ID: id, Outcome: queueStopOutcomeNotFound})
			continue
		}
		prior := string(item.Status)
		switch item.Status {
		case queue.StatusCompleted:
			result.Items = append(result.Items, queueStopItemResult{ID: id, Outcome: queueStopOutcomeAlreadyCompleted, PriorStatus: prior})
			continue
		case queue.StatusFailed:
			result.Items = append(result.Items, queueStopItemResult{ID: id, Outcome: queueStopOutcomeAlreadyFailed, PriorStatus: prior})
			continue
		case queue.StatusReview:
			result.Items = append(result.Items, queueStopItemResult{ID: id, Outcome: queueStopOutcomeAlreadyParked, PriorStatus: prior})
			continue
		}

		updated, err := store.StopItems(ctx, id)
		if err != nil {
			return queueStopResult{}, err
		}
		if updated > 0 {
			result.UpdatedCount += updated
			result.Items = append(result.Items, queueStopItemResult{
				ID:            id,
				Outcome:       queueStopOutcomeUpdated,
				PriorStatus:   prior,
				WasProcessing: queue.IsProcessingStatus(item.Status),
			})
			continue
		}
		// The item finished or parked between the lookup and the update.
		result.Items = append(result.Items, queueStopItemResult{ID: id, Outcome: queueStopOutcomeAlreadyParked, PriorStatus: prior})
	}

	return result, nil
}

// removeIDs removes items by ID, using Remove's return value to distinguish
// found vs not-found.
func removeIDs(ctx context.Context, store *queue.Store, ids []int64) (queueRemoveResult, error) {
	result := queueRemoveResult{
		Items: make([]queueRemoveItemResult, 0, len(ids)),
	}

	for _, id := range ids {
		removed, err := store.Remove(ctx, id)
		if err != nil {
			return queueRemoveResult{}, err
		}
		if removed {
			result.RemovedCount++
			result.Items = append(result.Items, queueRemoveItemResult{ID: id, Outcome: queueRemoveOutcomeRemoved})
		} else {
			result.Items = append(result.Items, queueRemoveItemResult{ID: id, Outcome: queueRemoveOutcomeNotFound})
		}
	}

	return result, nil
}
