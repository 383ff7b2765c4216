// internal/infra/database/postgres_segment_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sweep_reminder_bot/internal/domain/schedule"
	"sweep_reminder_bot/internal/domain/segment"

	"github.com/lib/pq" // For pq.Array and driver registration
	"github.com/sirupsen/logrus"
)

type PostgresSegmentRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

func NewPostgresSegmentRepository(db *sql.DB, logger *logrus.Entry) *PostgresSegmentRepository {
	return &PostgresSegmentRepository{db: db, logger: logger}
}

const selectSegmentColumns = `SELECT id, block_number, street_name,
                side_a_day, side_a_start, side_a_end, side_a_frequency,
                side_b_day, side_b_start, side_b_end, side_b_frequency,
                updated_at
               FROM street_segments`

func (r *PostgresSegmentRepository) ListAll(ctx context.Context) ([]segment.Segment, error) {
	rows, err := r.db.QueryContext(ctx, selectSegmentColumns+` ORDER BY street_name, block_number, id`)
	if err != nil {
		return nil, fmt.Errorf("error querying all street segments: %w", err)
	}
	defer rows.Close()
	return r.scanSegments(rows)
}

func (r *PostgresSegmentRepository) GetByIDs(ctx context.Context, ids []string) ([]segment.Segment, error) {
	if len(ids) == 0 {
		return []segment.Segment{}, nil
	}
	query := selectSegmentColumns + ` WHERE id = ANY($1::varchar[]) ORDER BY street_name, block_number, id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error querying street segments by ids: %w", err)
	}
	defer rows.Close()
	return r.scanSegments(rows)
}

func (r *PostgresSegmentRepository) scanSegments(rows *sql.Rows) ([]segment.Segment, error) {
	segments := make([]segment.Segment, 0)
	for rows.Next() {
		seg := segment.Segment{}
		var aDay, bDay sql.NullInt64
		var aStart, aEnd, aFreq, bStart, bEnd, bFreq sql.NullString
		if err := rows.Scan(
			&seg.ID, &seg.BlockNumber, &seg.StreetName,
			&aDay, &aStart, &aEnd, &aFreq,
			&bDay, &bStart, &bEnd, &bFreq,
			&seg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning street segment row: %w", err)
		}
		seg.SideA = r.buildSchedule(seg.ID, "A", aDay, aStart, aEnd, aFreq)
		seg.SideB = r.buildSchedule(seg.ID, "B", bDay, bStart, bEnd, bFreq)
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating street segment rows: %w", err)
	}
	return segments, nil
}

// buildSchedule assembles a side's schedule from its nullable columns.
// A side with no cleaning rule returns nil. Unknown frequency values fall
// back to the permissive weekly interpretation and are surfaced as a
// warning: silently dropping the segment would mean a subscriber on it
// never gets reminded.
func (r *PostgresSegmentRepository) buildSchedule(segmentID, side string, day sql.NullInt64, start, end, freq sql.NullString) *schedule.RecurringSchedule {
	if !day.Valid || !start.Valid || !end.Valid {
		return nil
	}
	frequency, err := schedule.ParseFrequency(freq.String)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"segment_id": segmentID,
			"side":       side,
			"frequency":  freq.String,
		}).WithError(err).Warn("Unrecognized schedule frequency; falling back to every matching weekday")
	}
	sched := &schedule.RecurringSchedule{
		DayOfWeek: time.Weekday(day.Int64),
		StartTime: start.String,
		EndTime:   end.String,
		Frequency: frequency,
	}
	if err := sched.Validate(); err != nil {
		r.logger.WithFields(logrus.Fields{
			"segment_id": segmentID,
			"side":       side,
		}).WithError(err).Warn("Invalid schedule on ingested segment; side skipped")
		return nil
	}
	return sched
}
