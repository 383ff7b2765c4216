// internal/domain/reminder/record.go
package reminder

import (
	"database/sql"
	"time"
)

// StageRecord tracks one issued-or-pending reminder for one stream and one
// occurrence. Corresponds to the 'stage_records' table; the store enforces
// at most one record per (stream_key, occurrence_date, stage).
type StageRecord struct {
	ID              int64
	OwnerID         int64
	StreamKey       string
	OccurrenceDate  time.Time // civil date, midnight
	OccurrenceStart time.Time
	OccurrenceEnd   time.Time
	Stage           Stage
	IssuedAt        time.Time
	Acknowledged    bool
	AcknowledgedAt  sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IssuedOn reports whether history holds a record for the given civil date
// and stage.
func IssuedOn(history []StageRecord, date time.Time, st Stage, loc *time.Location) bool {
	for _, rec := range history {
		if rec.Stage == st && sameCivilDate(rec.OccurrenceDate, date, loc) {
			return true
		}
	}
	return false
}

// AcknowledgedOn reports whether any record for the given civil date is
// acknowledged, which settles the whole occurrence.
func AcknowledgedOn(history []StageRecord, date time.Time, loc *time.Location) bool {
	for _, rec := range history {
		if rec.Acknowledged && sameCivilDate(rec.OccurrenceDate, date, loc) {
			return true
		}
	}
	return false
}

func sameCivilDate(a, b time.Time, loc *time.Location) bool {
	al, bl := a.In(loc), b.In(loc)
	ay, am, ad := al.Date()
	by, bm, bd := bl.Date()
	return ay == by && am == bm && ad == bd
}
