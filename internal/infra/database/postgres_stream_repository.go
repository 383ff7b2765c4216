// internal/infra/database/postgres_stream_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"sweep_reminder_bot/internal/domain/schedule"
	"sweep_reminder_bot/internal/domain/stream"

	"github.com/lib/pq" // For pq.Array and driver registration
)

// Custom errors specific to stream repository
var ErrStreamNotFound = fmt.Errorf("notification stream not found")

type PostgresStreamRepository struct {
	db *sql.DB
}

func NewPostgresStreamRepository(db *sql.DB) *PostgresStreamRepository {
	return &PostgresStreamRepository{db: db}
}

// Upsert inserts a stream or, when its stream_key already exists, replaces
// the recomputed fields while preserving the row's created_at.
func (r *PostgresStreamRepository) Upsert(ctx context.Context, st *stream.NotificationStream) error {
	members, err := json.Marshal(st.Members)
	if err != nil {
		return fmt.Errorf("error marshaling stream members: %w", err)
	}

	query := `INSERT INTO notification_streams
                (owner_id, stream_key, street_name, day_of_week, start_time, end_time, frequency, members, summary)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               ON CONFLICT (stream_key) DO UPDATE
                 SET street_name = EXCLUDED.street_name,
                     members     = EXCLUDED.members,
                     summary     = EXCLUDED.summary,
                     updated_at  = NOW()
               RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		st.OwnerID, st.StreamKey, st.StreetName,
		int(st.Schedule.DayOfWeek), st.Schedule.StartTime, st.Schedule.EndTime, string(st.Schedule.Frequency),
		members, st.Summary,
	).Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting notification stream: %w", err)
	}
	return nil
}

func (r *PostgresStreamRepository) GetByKey(ctx context.Context, streamKey string) (*stream.NotificationStream, error) {
	query := selectStreamColumns + ` WHERE stream_key = $1`
	row := r.db.QueryRowContext(ctx, query, streamKey)
	st, err := scanStream(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrStreamNotFound
		}
		return nil, fmt.Errorf("error getting stream by key: %w", err)
	}
	return st, nil
}

func (r *PostgresStreamRepository) ListByOwner(ctx context.Context, ownerID int64) ([]stream.NotificationStream, error) {
	query := selectStreamColumns + ` WHERE owner_id = $1 ORDER BY street_name, stream_key`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error querying streams by owner: %w", err)
	}
	defer rows.Close()
	return scanStreams(rows)
}

func (r *PostgresStreamRepository) ListAll(ctx context.Context) ([]stream.NotificationStream, error) {
	query := selectStreamColumns + ` ORDER BY owner_id, street_name, stream_key`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying all streams: %w", err)
	}
	defer rows.Close()
	return scanStreams(rows)
}

func (r *PostgresStreamRepository) DeleteByKeys(ctx context.Context, ownerID int64, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	query := `DELETE FROM notification_streams WHERE owner_id = $1 AND stream_key = ANY($2::varchar[])`
	if _, err := r.db.ExecContext(ctx, query, ownerID, pq.Array(keys)); err != nil {
		return fmt.Errorf("error deleting streams by keys: %w", err)
	}
	return nil
}

const selectStreamColumns = `SELECT id, owner_id, stream_key, street_name, day_of_week, start_time, end_time, frequency, members, summary, created_at, updated_at
               FROM notification_streams`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStream(row rowScanner) (*stream.NotificationStream, error) {
	st := stream.NotificationStream{}
	var dayOfWeek int
	var frequency string
	var members []byte
	err := row.Scan(
		&st.ID, &st.OwnerID, &st.StreamKey, &st.StreetName,
		&dayOfWeek, &st.Schedule.StartTime, &st.Schedule.EndTime, &frequency,
		&members, &st.Summary, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.Schedule.DayOfWeek = time.Weekday(dayOfWeek)
	st.Schedule.Frequency = schedule.Frequency(frequency)
	if err := json.Unmarshal(members, &st.Members); err != nil {
		return nil, fmt.Errorf("error unmarshaling stream members: %w", err)
	}
	return &st, nil
}

func scanStreams(rows *sql.Rows) ([]stream.NotificationStream, error) {
	streams := make([]stream.NotificationStream, 0)
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning stream row: %w", err)
		}
		streams = append(streams, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stream rows: %w", err)
	}
	return streams, nil
}
