// internal/domain/view/classifier.go
package view

import (
	"sort"
	"time"

	"sweep_reminder_bot/internal/domain/reminder"
	"sweep_reminder_bot/internal/domain/stream"
)

const (
	// imminentWindow treats an occurrence starting this soon as active even
	// before any stage record exists.
	imminentWindow = 2 * time.Hour
	// upcomingHorizon buckets non-active streams whose next reminder lands
	// this soon as upcoming.
	upcomingHorizon = 48 * time.Hour
)

// StreamStatus pairs a stream with its reminder state for display.
type StreamStatus struct {
	Stream  stream.NotificationStream
	Next    *reminder.PendingReminder // nil when nothing is pending
	History []reminder.StageRecord
}

// Categorized buckets a subscriber's streams for display priority. All
// always contains every stream; Active and Upcoming are disjoint subsets.
type Categorized struct {
	Active   []StreamStatus
	Upcoming []StreamStatus
	All      []StreamStatus
}

// IsActive reports whether a stream needs top billing: it has an
// unacknowledged stage record whose occurrence has not yet ended, or its
// next unacknowledged occurrence starts within the imminent window.
func IsActive(st StreamStatus, now time.Time, loc *time.Location) bool {
	for _, rec := range st.History {
		if !rec.Acknowledged && rec.OccurrenceEnd.After(now) {
			return true
		}
	}
	occ, err := st.Stream.Schedule.NextOccurrence(now, loc)
	if err != nil {
		return false
	}
	if reminder.AcknowledgedOn(st.History, occ.Date, loc) {
		return false
	}
	return occ.Start.Sub(now) <= imminentWindow
}

// Categorize partitions a subscriber's streams into active, upcoming and
// all. All is sorted by street name; active and upcoming by ascending
// next-reminder time, streams with no next reminder last.
func Categorize(statuses []StreamStatus, now time.Time, loc *time.Location) Categorized {
	var out Categorized
	for _, st := range statuses {
		switch {
		case IsActive(st, now, loc):
			out.Active = append(out.Active, st)
		case st.Next != nil && !st.Next.When.After(now.Add(upcomingHorizon)):
			out.Upcoming = append(out.Upcoming, st)
		}
	}

	out.All = append([]StreamStatus(nil), statuses...)
	sort.SliceStable(out.All, func(i, j int) bool {
		return out.All[i].Stream.StreetName < out.All[j].Stream.StreetName
	})
	sortByNextReminder(out.Active)
	sortByNextReminder(out.Upcoming)
	return out
}

func sortByNextReminder(statuses []StreamStatus) {
	sort.SliceStable(statuses, func(i, j int) bool {
		ni, nj := statuses[i].Next, statuses[j].Next
		if ni == nil {
			return false
		}
		if nj == nil {
			return true
		}
		return ni.When.Before(nj.When)
	})
}
