// internal/domain/reminder/repository.go
package reminder

import (
	"context"
	"time"
)

// Repository defines persistence operations for stage records.
type Repository interface {
	// Create inserts a stage record. A uniqueness violation on
	// (stream_key, occurrence_date, stage) surfaces as
	// database.ErrDuplicateStageRecord and callers must treat it as a
	// benign no-op: it only means a concurrent worker issued the same
	// reminder first.
	Create(ctx context.Context, rec *StageRecord) error
	// ListByStreamKey returns the records for a stream issued on or after
	// `since`, the history input to the stage scheduler.
	ListByStreamKey(ctx context.Context, streamKey string, since time.Time) ([]StageRecord, error)
	// ListByOccurrence returns every record for one (stream, civil date) pair.
	ListByOccurrence(ctx context.Context, streamKey string, occurrenceDate time.Time) ([]StageRecord, error)
	// AcknowledgeOccurrence flips every not-yet-acknowledged record for the
	// pair and returns how many rows it touched.
	AcknowledgeOccurrence(ctx context.Context, streamKey string, occurrenceDate time.Time, at time.Time) (int64, error)
	// DeleteOlderThan removes records whose occurrence ended before the
	// cutoff (retention cleanup) and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
