package scheduler

import (
	"context"
	"time"

	"sweep_reminder_bot/internal/app" // For ReminderService interface

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReminderScheduler drives the reminder engine on a wall-clock cadence: a
// frequent sweep that issues and delivers whichever stage is due, and a
// daily retention cleanup over old stage records. The sweep itself is a
// pure recomputation from (schedule, history, now), so overlapping or
// repeated runs are harmless.
type ReminderScheduler struct {
	cronEngine        *cron.Cron
	reminderService   app.ReminderService
	logger            *logrus.Entry
	cronSpecSweep     string
	cronSpecRetention string
}

func NewReminderScheduler(
	reminderService app.ReminderService,
	loc *time.Location,
	logger *logrus.Entry,
	cronSpecSweep string, // e.g., "* * * * *" (every minute)
	cronSpecRetention string, // e.g., "0 4 * * *" (04:00 daily)
) *ReminderScheduler {
	return &ReminderScheduler{
		cronEngine:        cron.New(cron.WithLocation(loc)), // Cron runs in the civil zone
		reminderService:   reminderService,
		logger:            logger,
		cronSpecSweep:     cronSpecSweep,
		cronSpecRetention: cronSpecRetention,
	}
}

func (s *ReminderScheduler) Start() error {
	s.logger.Info("Starting reminder scheduler...")

	// Job sweeping all streams for due stages
	_, err := s.cronEngine.AddFunc(s.cronSpecSweep, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.reminderService.ProcessDueReminders(ctx, time.Now()); err != nil {
			s.logger.WithError(err).Error("Reminder sweep failed; batch will be retried on the next tick")
		}
	})
	if err != nil {
		return err
	}

	// Daily retention cleanup over stage records
	_, err = s.cronEngine.AddFunc(s.cronSpecRetention, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.reminderService.CleanupExpiredRecords(ctx, time.Now()); err != nil {
			s.logger.WithError(err).Error("Stage record retention cleanup failed")
		}
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Info("Reminder scheduler started with jobs.")
	return nil
}

func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // Stops scheduling new runs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Reminder scheduler gracefully stopped.")
}
