package main

type queueRetryOutcome int

const (
	queueRetryOutcomeUpdated queueRetryOutcome = iota
	queueRetryOutcomeNotFound
	queueRetryOutcomeNotFailed
)

type queueRetryItemResult struct {
	ID      int64
	Outcome queueRetryOutcome
}

type queueRetryResult struct {
	UpdatedCount int64
	Items        []queueRetryItemResult
}

type queueStopOutcome int

const (
	queueStopOutcomeUpdated queueStopOutcome = iota
	queueStopOutcomeNotFound
	queueStopOutcomeAlreadyCompleted
	queueStopOutcomeAlreadyFailed
	queueStopOutcomeAlreadyParked
)

type queueStopItemResult struct {
	ID            int64
	Outcome       queueStopOutcome
	PriorStatus   string
	WasProcessing bool
}

type queueStopResult struct {
	UpdatedCount int64
	Items        []queueStopItemResult
}

type queueRemoveOutcome int

const (
	queueRemoveOutcomeRemoved queueRemoveOutcome = iota
	queueRemoveOutcomeNotFound
)

type queueRemoveItemResult struct {
	ID      int64
	Outcome queueRemoveOutcome
}

type queueRemoveResult struct {
	RemovedCount int64
	Items        []queueRemoveItemResult
}

func retryOutcomeString(o queueRetryOutcome) string {
	switch o {
	case queueRetryOutcomeUpdated:
		return "retried"
	case queueRetryOutcomeNotFound:
		return "not_found"
	case queueRetryOutcomeNotFailed:
		return "not_failed"
	default:
		return "unknown"
	}
}

func stopOutcomeString(o queueStopOutcome) string {
	switch o {
	case queueStopOutcomeUpdated:
		return "stopped"
	case queueStopOutcomeNotFound:
		return "not_found"
	case queueStopOutcomeAlreadyCompleted:
		return "already_completed"
	case queueStopOutcomeAlreadyFailed:
		return "already_failed"
	case queueStopOutcomeAlreadyParked:
		return "already_parked"
	default:
		return "unknown"
	}
}

func removeOutcomeString(o queueRemoveOutcome) string {
	switch o {
	case queueRemoveOutcomeRemoved:
		return "removed"
	case queueRemoveOutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
