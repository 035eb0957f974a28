package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, source_path, subject, session, task, run_label, status, staged_file, derivative_path, report_path, run_id, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, flags_json, metrics_json, source_fingerprint, last_heartbeat, needs_review, review_reason"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		sourcePath       sql.NullString
		subject          sql.NullString
		session          sql.NullString
		task             sql.NullString
		runLabel         sql.NullString
		statusStr        string
		stagedFile       sql.NullString
		derivativePath   sql.NullString
		reportPath       sql.NullString
		runID            sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		flags            sql.NullString
		metrics          sql.NullString
		fingerprint      sql.NullString
		lastHeartbeatRaw sql.NullString
		needsReview      sql.NullInt64
		reviewReason     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&subject,
		&session,
		&task,
		&runLabel,
		&statusStr,
		&stagedFile,
		&derivativePath,
		&reportPath,
		&runID,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&flags,
		&metrics,
		&fingerprint,
		&lastHeartbeatRaw,
		&needsReview,
		&reviewReason,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                id,
		SourcePath:        sourcePath.String,
		Subject:           subject.String,
		Session:           session.String,
		Task:              task.String,
		RunLabel:          runLabel.String,
		Status:            Status(statusStr),
		StagedFile:        stagedFile.String,
		DerivativePath:    derivativePath.String,
		ReportPath:        reportPath.String,
		RunID:             runID.String,
		ErrorMessage:      errorMessage.String,
		ProgressStage:     progressStage.String,
		ProgressPercent:   progressPercent.Float64,
		ProgressMessage:   progressMessage.String,
		FlagsJSON:         flags.String,
		MetricsJSON:       metrics.String,
		SourceFingerprint: fingerprint.String,
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}
	item.ReviewReason = reviewReason.String

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
