// internal/domain/reminder/stage.go
package reminder

import (
	"time"

	"sweep_reminder_bot/internal/domain/schedule"
)

// Stage is one of four escalating reminder checkpoints counting down to an
// occurrence's start, most urgent last.
type Stage string

const (
	StageNightBefore Stage = "night_before"
	Stage1Hour       Stage = "1hr"
	Stage30Min       Stage = "30min"
	Stage10Min       Stage = "10min"
)

// Stages lists every stage in due order.
var Stages = []Stage{StageNightBefore, Stage1Hour, Stage30Min, Stage10Min}

// nightBeforeHour is the civil hour on the previous calendar day at which the
// night_before stage becomes due.
const nightBeforeHour = 20

// SendTime returns the instant this stage becomes due for an occurrence
// starting at `start`. night_before is pinned to 20:00 civil time on the
// calendar day before the occurrence; the countdown stages are plain offsets.
func (st Stage) SendTime(start time.Time, loc *time.Location) time.Time {
	switch st {
	case StageNightBefore:
		prev := start.In(loc).AddDate(0, 0, -1)
		return time.Date(prev.Year(), prev.Month(), prev.Day(), nightBeforeHour, 0, 0, 0, loc)
	case Stage1Hour:
		return start.Add(-time.Hour)
	case Stage30Min:
		return start.Add(-30 * time.Minute)
	case Stage10Min:
		return start.Add(-10 * time.Minute)
	}
	return start
}

// StageDueNow returns the stage currently due for an occurrence starting at
// `start`: the latest stage whose send-time has passed but whose successor's
// has not. Once the occurrence has started, or before the night_before
// send-time, nothing is due.
func StageDueNow(start, now time.Time, loc *time.Location) (Stage, bool) {
	if !now.Before(start) {
		return "", false
	}
	for i := len(Stages) - 1; i >= 0; i-- {
		if !now.Before(Stages[i].SendTime(start, loc)) {
			return Stages[i], true
		}
	}
	return "", false
}

// PendingReminder is the single next (time, stage) pair a stream waits on.
type PendingReminder struct {
	Stage      Stage
	When       time.Time
	Occurrence schedule.Occurrence
}

// NextReminder computes the next reminder to wait for from
// (schedule, history, now) alone. There is no stored current state: the
// result is a pure projection, so it is idempotent and safe to recompute
// concurrently from multiple workers.
//
// If the next occurrence is already acknowledged the computation advances to
// the following one (and gives up if that is acknowledged too). Otherwise it
// returns the earliest stage not yet issued whose send-time is still in the
// future, rolling forward to the following occurrence's night_before once
// the current occurrence's stages are exhausted.
func NextReminder(sched schedule.RecurringSchedule, history []StageRecord, now time.Time, loc *time.Location) (*PendingReminder, error) {
	occ, err := sched.NextOccurrence(now, loc)
	if err != nil {
		return nil, err
	}

	if AcknowledgedOn(history, occ.Date, loc) {
		next, err := sched.NextOccurrence(occ.End.Add(time.Nanosecond), loc)
		if err != nil {
			return nil, err
		}
		if AcknowledgedOn(history, next.Date, loc) {
			return nil, nil
		}
		return earliestPending(next, history, now, loc), nil
	}

	if pending := earliestPending(occ, history, now, loc); pending != nil {
		return pending, nil
	}

	// Every stage for this occurrence is issued or in the past: wait for the
	// following occurrence's first stage.
	next, err := sched.NextOccurrence(occ.End.Add(time.Nanosecond), loc)
	if err != nil {
		return nil, err
	}
	return &PendingReminder{
		Stage:      StageNightBefore,
		When:       StageNightBefore.SendTime(next.Start, loc),
		Occurrence: next,
	}, nil
}

// earliestPending returns the first stage for the occurrence that has not
// been issued and whose send-time is still in the future, or nil.
func earliestPending(occ schedule.Occurrence, history []StageRecord, now time.Time, loc *time.Location) *PendingReminder {
	for _, st := range Stages {
		if IssuedOn(history, occ.Date, st, loc) {
			continue
		}
		when := st.SendTime(occ.Start, loc)
		if when.After(now) {
			return &PendingReminder{Stage: st, When: when, Occurrence: occ}
		}
	}
	return nil
}
