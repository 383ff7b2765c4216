// internal/domain/segment/segment.go
package segment

import (
	"time"

	"sweep_reminder_bot/internal/domain/schedule"
)

// Segment is one physical street segment from the municipal feed. Each of
// its two sides may carry an independent cleaning schedule; a side without
// cleaning has a nil schedule.
type Segment struct {
	ID          string
	BlockNumber int
	StreetName  string
	SideA       *schedule.RecurringSchedule
	SideB       *schedule.RecurringSchedule
	UpdatedAt   time.Time
}
