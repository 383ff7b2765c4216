package subscriber

import (
	"database/sql"
	"time"
)

// Subscriber is a person receiving street-cleaning reminders.
type Subscriber struct {
	ID          int64
	TelegramID  int64
	FirstName   string
	PhoneNumber sql.NullString // optional; verification happens elsewhere
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
