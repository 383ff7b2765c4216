// internal/infra/database/postgres_stage_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sweep_reminder_bot/internal/domain/reminder"
)

// Custom errors specific to stage record repository
var ErrStageRecordNotFound = fmt.Errorf("stage record not found")

// ErrDuplicateStageRecord is the benign outcome of two workers racing to
// issue the same (stream_key, occurrence_date, stage) reminder; the store's
// uniqueness constraint lets exactly one win.
var ErrDuplicateStageRecord = fmt.Errorf("duplicate stage record (stream_key, occurrence_date, stage)")

type PostgresStageRepository struct {
	db *sql.DB
}

func NewPostgresStageRepository(db *sql.DB) *PostgresStageRepository {
	return &PostgresStageRepository{db: db}
}

func (r *PostgresStageRepository) Create(ctx context.Context, rec *reminder.StageRecord) error {
	query := `INSERT INTO stage_records
                (owner_id, stream_key, occurrence_date, occurrence_start, occurrence_end, stage, issued_at, acknowledged, acknowledged_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		rec.OwnerID, rec.StreamKey, rec.OccurrenceDate, rec.OccurrenceStart, rec.OccurrenceEnd,
		rec.Stage, rec.IssuedAt, rec.Acknowledged, rec.AcknowledgedAt,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "stage_record_unique") { // Check for unique constraint violation
			return ErrDuplicateStageRecord
		}
		return fmt.Errorf("error creating stage record: %w", err)
	}
	return nil
}

func (r *PostgresStageRepository) ListByStreamKey(ctx context.Context, streamKey string, since time.Time) ([]reminder.StageRecord, error) {
	query := selectStageColumns + `
               WHERE stream_key = $1 AND occurrence_end >= $2
               ORDER BY occurrence_date, stage`
	rows, err := r.db.QueryContext(ctx, query, streamKey, since)
	if err != nil {
		return nil, fmt.Errorf("error querying stage records by stream key: %w", err)
	}
	defer rows.Close()
	return scanStageRecords(rows)
}

func (r *PostgresStageRepository) ListByOccurrence(ctx context.Context, streamKey string, occurrenceDate time.Time) ([]reminder.StageRecord, error) {
	query := selectStageColumns + `
               WHERE stream_key = $1 AND occurrence_date = $2
               ORDER BY stage`
	rows, err := r.db.QueryContext(ctx, query, streamKey, dateOnly(occurrenceDate))
	if err != nil {
		return nil, fmt.Errorf("error querying stage records by occurrence: %w", err)
	}
	defer rows.Close()
	return scanStageRecords(rows)
}

// AcknowledgeOccurrence flips every not-yet-acknowledged record for the
// (stream, civil date) pair and reports how many rows it touched. Zero rows
// means everything was already acknowledged (or no records exist); the
// caller decides which.
func (r *PostgresStageRepository) AcknowledgeOccurrence(ctx context.Context, streamKey string, occurrenceDate time.Time, at time.Time) (int64, error) {
	query := `UPDATE stage_records
               SET acknowledged = TRUE, acknowledged_at = $3, updated_at = NOW()
               WHERE stream_key = $1 AND occurrence_date = $2 AND acknowledged = FALSE`
	res, err := r.db.ExecContext(ctx, query, streamKey, dateOnly(occurrenceDate), at)
	if err != nil {
		return 0, fmt.Errorf("error acknowledging occurrence: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading acknowledge row count: %w", err)
	}
	return affected, nil
}

func (r *PostgresStageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM stage_records WHERE occurrence_end < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting expired stage records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading cleanup row count: %w", err)
	}
	return affected, nil
}

const selectStageColumns = `SELECT id, owner_id, stream_key, occurrence_date, occurrence_start, occurrence_end, stage, issued_at, acknowledged, acknowledged_at, created_at, updated_at
               FROM stage_records`

func scanStageRecords(rows *sql.Rows) ([]reminder.StageRecord, error) {
	records := make([]reminder.StageRecord, 0)
	for rows.Next() {
		rec := reminder.StageRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.OwnerID, &rec.StreamKey, &rec.OccurrenceDate,
			&rec.OccurrenceStart, &rec.OccurrenceEnd, &rec.Stage, &rec.IssuedAt,
			&rec.Acknowledged, &rec.AcknowledgedAt, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning stage record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage record rows: %w", err)
	}
	return records, nil
}

// dateOnly normalizes a timestamp to its calendar date for DATE columns.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
