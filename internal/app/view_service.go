// internal/app/view_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sweep_reminder_bot/internal/domain/reminder"
	"sweep_reminder_bot/internal/domain/schedule"
	"sweep_reminder_bot/internal/domain/stream"
	"sweep_reminder_bot/internal/domain/view"

	"github.com/sirupsen/logrus"
)

// ViewService assembles the classified dashboard the user-facing
// collaborator displays: each of the owner's streams with its history and
// next pending reminder, bucketed by display priority.
type ViewService struct {
	streamRepo stream.Repository
	stageRepo  reminder.Repository
	loc        *time.Location
	logger     *logrus.Entry
}

func NewViewService(sr stream.Repository, gr reminder.Repository, loc *time.Location, logger *logrus.Entry) *ViewService {
	return &ViewService{
		streamRepo: sr,
		stageRepo:  gr,
		loc:        loc,
		logger:     logger,
	}
}

// Dashboard categorizes the owner's streams as of `now`.
func (s *ViewService) Dashboard(ctx context.Context, ownerID int64, now time.Time) (view.Categorized, error) {
	streams, err := s.streamRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return view.Categorized{}, fmt.Errorf("failed to list streams for owner %d: %w", ownerID, err)
	}

	statuses := make([]view.StreamStatus, 0, len(streams))
	for _, st := range streams {
		history, err := s.stageRepo.ListByStreamKey(ctx, st.StreamKey, now.Add(-historyWindow))
		if err != nil {
			return view.Categorized{}, fmt.Errorf("failed to load history for stream %s: %w", st.StreamKey, err)
		}
		next, err := reminder.NextReminder(st.Schedule, history, now, s.loc)
		if err != nil {
			if errors.Is(err, schedule.ErrNoUpcomingOccurrence) {
				s.logger.WithFields(logrus.Fields{
					"stream_key": st.StreamKey,
					"alert":      true,
				}).WithError(err).Error("Occurrence scan exhausted while building dashboard")
				next = nil
			} else {
				return view.Categorized{}, fmt.Errorf("failed to compute next reminder for stream %s: %w", st.StreamKey, err)
			}
		}
		statuses = append(statuses, view.StreamStatus{
			Stream:  st,
			Next:    next,
			History: history,
		})
	}

	return view.Categorize(statuses, now, s.loc), nil
}
