// internal/domain/schedule/schedule.go
package schedule

import (
	"fmt"
	"time"
)

// Frequency selects which week-of-month buckets a recurring schedule fires in.
type Frequency string

const (
	FrequencyWeekly       Frequency = "weekly"
	FrequencyFirst        Frequency = "1st"
	FrequencySecond       Frequency = "2nd"
	FrequencyThird        Frequency = "3rd"
	FrequencyFourth       Frequency = "4th"
	FrequencyFirstThird   Frequency = "1st_3rd"
	FrequencySecondFourth Frequency = "2nd_4th"
)

// ErrUnknownFrequency signals an unrecognized frequency value from the
// municipal feed. ParseFrequency still returns a usable permissive fallback
// alongside it, so a subscriber on a malformed segment keeps getting reminded.
var ErrUnknownFrequency = fmt.Errorf("unknown schedule frequency")

// ErrNoUpcomingOccurrence means the bounded forward scan found no date the
// schedule fires on. Every valid schedule fires at least monthly, so this is
// an invalid-schedule or civil-time bug, never a normal empty result.
var ErrNoUpcomingOccurrence = fmt.Errorf("no occurrence within scan window")

// nextOccurrenceScanDays bounds the day-by-day forward scan. 35 days covers
// the longest month plus a full week of slack for any frequency value.
const nextOccurrenceScanDays = 35

// DateLayout is the civil-date format used for occurrence dates everywhere
// (stage records, callback payloads, log fields).
const DateLayout = "2006-01-02"

// ParseFrequency maps a raw feed value onto a Frequency. Unknown values
// return FrequencyWeekly (the most permissive interpretation: every matching
// weekday) together with ErrUnknownFrequency so the caller can warn.
func ParseFrequency(raw string) (Frequency, error) {
	switch f := Frequency(raw); f {
	case FrequencyWeekly, FrequencyFirst, FrequencySecond, FrequencyThird,
		FrequencyFourth, FrequencyFirstThird, FrequencySecondFourth:
		return f, nil
	}
	return FrequencyWeekly, fmt.Errorf("%w: %q", ErrUnknownFrequency, raw)
}

// weekBuckets returns the 1-based week-of-month buckets the frequency fires
// in. nil means every week, which also serves as the permissive fallback for
// values outside the enum.
func (f Frequency) weekBuckets() []int {
	switch f {
	case FrequencyFirst:
		return []int{1}
	case FrequencySecond:
		return []int{2}
	case FrequencyThird:
		return []int{3}
	case FrequencyFourth:
		return []int{4}
	case FrequencyFirstThird:
		return []int{1, 3}
	case FrequencySecondFourth:
		return []int{2, 4}
	}
	return nil
}

// RecurringSchedule is a compact description of a recurring cleaning window:
// a weekday, a same-day time range and a week-of-month frequency. It is an
// immutable value type compared by value; two sides cleaned under literally
// the same rule carry equal RecurringSchedule values.
type RecurringSchedule struct {
	DayOfWeek time.Weekday
	StartTime string // civil time of day, "HH:MM"
	EndTime   string // civil time of day, "HH:MM", strictly after StartTime
	Frequency Frequency
}

// Validate checks the structural invariants: a real weekday, parseable
// clock values and StartTime < EndTime on the same calendar day.
func (s RecurringSchedule) Validate() error {
	if s.DayOfWeek < time.Sunday || s.DayOfWeek > time.Saturday {
		return fmt.Errorf("day of week %d out of range", s.DayOfWeek)
	}
	sh, sm, err := parseClock(s.StartTime)
	if err != nil {
		return fmt.Errorf("invalid start time: %w", err)
	}
	eh, em, err := parseClock(s.EndTime)
	if err != nil {
		return fmt.Errorf("invalid end time: %w", err)
	}
	if sh*60+sm >= eh*60+em {
		return fmt.Errorf("start time %s is not before end time %s", s.StartTime, s.EndTime)
	}
	return nil
}

// TimeRange renders the cleaning window for messages, e.g. "08:00-10:00".
func (s RecurringSchedule) TimeRange() string {
	return s.StartTime + "-" + s.EndTime
}

// Occurrence is one concrete calendar instance of a recurring schedule.
// Date is midnight of the occurrence's calendar day in the civil zone.
type Occurrence struct {
	Date  time.Time
	Start time.Time
	End   time.Time
}

// DateKey returns the occurrence's civil date in DateLayout form.
func (o Occurrence) DateKey() string {
	return o.Date.Format(DateLayout)
}

// WeekOfMonth returns the 1-based week-of-month bucket of a date
// (day-of-month divided by 7, rounded up).
func WeekOfMonth(date time.Time) int {
	return (date.Day() + 6) / 7
}

// AppliesOnDate reports whether the schedule fires on the given calendar
// date. The date's weekday must match and, for non-weekly frequencies, its
// week-of-month bucket must be one the frequency selects. Weekly schedules
// fire on every matching weekday, including a fifth one in long months.
func (s RecurringSchedule) AppliesOnDate(date time.Time) bool {
	if date.Weekday() != s.DayOfWeek {
		return false
	}
	buckets := s.Frequency.weekBuckets()
	if buckets == nil {
		return true
	}
	week := WeekOfMonth(date)
	for _, b := range buckets {
		if week == b {
			return true
		}
	}
	return false
}

// OccurrenceOn composes the concrete start/end instants for a calendar date
// in the given civil zone. time.Date resolves the zone's UTC offset for that
// specific date, so offset transitions are handled per-date rather than with
// a fixed offset.
func (s RecurringSchedule) OccurrenceOn(date time.Time, loc *time.Location) (Occurrence, error) {
	sh, sm, err := parseClock(s.StartTime)
	if err != nil {
		return Occurrence{}, fmt.Errorf("invalid start time: %w", err)
	}
	eh, em, err := parseClock(s.EndTime)
	if err != nil {
		return Occurrence{}, fmt.Errorf("invalid end time: %w", err)
	}
	local := date.In(loc)
	year, month, day := local.Year(), local.Month(), local.Day()
	return Occurrence{
		Date:  time.Date(year, month, day, 0, 0, 0, 0, loc),
		Start: time.Date(year, month, day, sh, sm, 0, 0, loc),
		End:   time.Date(year, month, day, eh, em, 0, 0, loc),
	}, nil
}

// NextOccurrence scans forward day by day from `after` and returns the first
// occurrence whose end instant is still strictly after it: an occurrence
// already fully elapsed today is skipped, one still in progress is returned.
// The scan is bounded; exhausting it returns ErrNoUpcomingOccurrence, which
// callers must treat as a fatal/alerting condition.
func (s RecurringSchedule) NextOccurrence(after time.Time, loc *time.Location) (Occurrence, error) {
	local := after.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	for i := 0; i <= nextOccurrenceScanDays; i++ {
		date := day.AddDate(0, 0, i)
		if !s.AppliesOnDate(date) {
			continue
		}
		occ, err := s.OccurrenceOn(date, loc)
		if err != nil {
			return Occurrence{}, err
		}
		if occ.End.After(after) {
			return occ, nil
		}
	}
	return Occurrence{}, fmt.Errorf("%w: schedule %v %s %s", ErrNoUpcomingOccurrence, s.DayOfWeek, s.TimeRange(), s.Frequency)
}

// parseClock parses a strict "HH:MM" civil time of day.
func parseClock(v string) (hour, minute int, err error) {
	if len(v) != 5 || v[2] != ':' {
		return 0, 0, fmt.Errorf("clock value %q is not HH:MM", v)
	}
	if _, err := fmt.Sscanf(v, "%02d:%02d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("clock value %q is not HH:MM: %w", v, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock value %q out of range", v)
	}
	return hour, minute, nil
}
