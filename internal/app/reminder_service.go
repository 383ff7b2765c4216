// internal/app/reminder_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sweep_reminder_bot/internal/domain/reminder"
	"sweep_reminder_bot/internal/domain/stream"
	"sweep_reminder_bot/internal/domain/subscriber"
	domainTelegram "sweep_reminder_bot/internal/domain/telegram"
	idb "sweep_reminder_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Custom application-level errors for the acknowledge operation, kept
// distinct so the user-facing collaborator can answer not-found, forbidden
// and already-done correctly.
var ErrStreamNotFound = fmt.Errorf("notification stream not found")
var ErrNotStreamOwner = fmt.Errorf("stream belongs to a different subscriber")
var ErrAlreadyAcknowledged = fmt.Errorf("occurrence already acknowledged")

// historyWindow bounds how far back stage records are loaded when computing
// a stream's reminder state. 45 days comfortably covers the occurrence scan
// window plus one full frequency period.
const historyWindow = 45 * 24 * time.Hour

// ReminderService drives the reminder lifecycle: the periodic due-stage
// sweep, the acknowledge operation and stage-record retention.
type ReminderService interface {
	// ProcessDueReminders sweeps every persisted stream once, issuing and
	// delivering whichever stage is due at `now`. One stream's failure
	// never aborts the batch; the item is retried on the next tick.
	ProcessDueReminders(ctx context.Context, now time.Time) error
	// Acknowledge settles one occurrence of one stream for its owner.
	Acknowledge(ctx context.Context, ownerID int64, streamKey string, occurrenceDate time.Time) error
	// CleanupExpiredRecords deletes stage records past the retention window.
	CleanupExpiredRecords(ctx context.Context, now time.Time) error
}

// ReminderServiceImpl implements ReminderService against the Postgres
// repositories and the Telegram transport.
type ReminderServiceImpl struct {
	streamRepo     stream.Repository
	stageRepo      reminder.Repository
	subscriberRepo subscriber.Repository
	telegramClient domainTelegram.Client
	loc            *time.Location
	retentionDays  int
	logger         *logrus.Entry
}

func NewReminderServiceImpl(
	sr stream.Repository,
	gr reminder.Repository,
	subr subscriber.Repository,
	tc domainTelegram.Client,
	loc *time.Location,
	retentionDays int,
	logger *logrus.Entry,
) *ReminderServiceImpl {
	return &ReminderServiceImpl{
		streamRepo:     sr,
		stageRepo:      gr,
		subscriberRepo: subr,
		telegramClient: tc,
		loc:            loc,
		retentionDays:  retentionDays,
		logger:         logger,
	}
}

func (s *ReminderServiceImpl) ProcessDueReminders(ctx context.Context, now time.Time) error {
	streams, err := s.streamRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list streams for reminder sweep: %w", err)
	}

	var failed int
	for i := range streams {
		if err := s.processStream(ctx, &streams[i], now); err != nil {
			failed++
			s.logger.WithFields(logrus.Fields{
				"stream_key": streams[i].StreamKey,
				"owner_id":   streams[i].OwnerID,
			}).WithError(err).Error("Failed to process stream; will retry next tick")
		}
	}
	s.logger.WithFields(logrus.Fields{
		"streams": len(streams),
		"failed":  failed,
	}).Debug("Reminder sweep finished")
	return nil
}

func (s *ReminderServiceImpl) processStream(ctx context.Context, st *stream.NotificationStream, now time.Time) error {
	occ, err := st.Schedule.NextOccurrence(now, s.loc)
	if err != nil {
		// Exhausting the bounded scan means invalid schedule data or a
		// civil-time bug, not an empty result. Alert, never default.
		s.logger.WithFields(logrus.Fields{
			"stream_key": st.StreamKey,
			"alert":      true,
		}).WithError(err).Error("Occurrence scan exhausted for stream schedule")
		return err
	}

	stage, due := reminder.StageDueNow(occ.Start, now, s.loc)
	if !due {
		return nil
	}

	history, err := s.stageRepo.ListByStreamKey(ctx, st.StreamKey, now.Add(-historyWindow))
	if err != nil {
		return fmt.Errorf("failed to load stage history: %w", err)
	}
	if reminder.AcknowledgedOn(history, occ.Date, s.loc) {
		return nil // Occurrence dismissed; stay quiet until the next one.
	}
	if reminder.IssuedOn(history, occ.Date, stage, s.loc) {
		return nil
	}

	rec := &reminder.StageRecord{
		OwnerID:         st.OwnerID,
		StreamKey:       st.StreamKey,
		OccurrenceDate:  occ.Date,
		OccurrenceStart: occ.Start,
		OccurrenceEnd:   occ.End,
		Stage:           stage,
		IssuedAt:        now,
	}
	if err := s.stageRepo.Create(ctx, rec); err != nil {
		if errors.Is(err, idb.ErrDuplicateStageRecord) {
			// A concurrent worker issued this stage first.
			s.logger.WithFields(logrus.Fields{
				"stream_key": st.StreamKey,
				"stage":      stage,
				"date":       occ.DateKey(),
			}).Debug("Stage record already issued by another worker")
			return nil
		}
		return fmt.Errorf("failed to create stage record: %w", err)
	}

	return s.deliver(ctx, st, occ.DateKey(), stage)
}

func (s *ReminderServiceImpl) deliver(ctx context.Context, st *stream.NotificationStream, dateKey string, stage reminder.Stage) error {
	owner, err := s.subscriberRepo.GetByID(ctx, st.OwnerID)
	if err != nil {
		if errors.Is(err, idb.ErrSubscriberNotFound) {
			s.logger.WithField("owner_id", st.OwnerID).Warn("Stream owner no longer exists; reminder dropped")
			return nil
		}
		return fmt.Errorf("failed to load stream owner %d: %w", st.OwnerID, err)
	}
	if !owner.IsActive {
		s.logger.WithField("owner_id", st.OwnerID).Debug("Stream owner inactive; reminder suppressed")
		return nil
	}

	text := StageMessage(st.StreetName, st.Summary, st.Schedule.TimeRange(), stage)

	markup := &telebot.ReplyMarkup{}
	btnDismiss := markup.Data("Dismiss", fmt.Sprintf("ack_%s_%s", st.StreamKey, dateKey))
	markup.Inline(markup.Row(btnDismiss))

	if err := s.telegramClient.SendMessage(owner.TelegramID, text, &telebot.SendOptions{ReplyMarkup: markup}); err != nil {
		return fmt.Errorf("failed to deliver %s reminder: %w", stage, err)
	}
	s.logger.WithFields(logrus.Fields{
		"stream_key": st.StreamKey,
		"stage":      stage,
		"date":       dateKey,
		"owner_id":   st.OwnerID,
	}).Info("Reminder delivered")
	return nil
}

// StageMessage renders the outbound template for a due stage, parameterized
// by street, block summary, cleaning time range and stage: a "tomorrow"
// framing for night_before, a countdown framing for 1hr/30min and an
// urgency-marked framing for 10min.
func StageMessage(streetName, summary, timeRange string, stage reminder.Stage) string {
	switch stage {
	case reminder.StageNightBefore:
		return fmt.Sprintf("Street cleaning tomorrow on %s, %s, %s. Plan to move your car tonight or early in the morning.", streetName, summary, timeRange)
	case reminder.Stage1Hour:
		return fmt.Sprintf("Street cleaning on %s, %s, starts in 1 hour (%s). Time to move your car.", streetName, summary, timeRange)
	case reminder.Stage30Min:
		return fmt.Sprintf("Street cleaning on %s, %s, starts in 30 minutes (%s). Move your car now.", streetName, summary, timeRange)
	case reminder.Stage10Min:
		return fmt.Sprintf("LAST CALL: street cleaning on %s, %s, starts in 10 minutes (%s)!", streetName, summary, timeRange)
	}
	return fmt.Sprintf("Street cleaning on %s, %s, %s.", streetName, summary, timeRange)
}

func (s *ReminderServiceImpl) Acknowledge(ctx context.Context, ownerID int64, streamKey string, occurrenceDate time.Time) error {
	st, err := s.streamRepo.GetByKey(ctx, streamKey)
	if err != nil {
		if errors.Is(err, idb.ErrStreamNotFound) {
			return ErrStreamNotFound
		}
		return fmt.Errorf("failed to load stream %s: %w", streamKey, err)
	}
	if st.OwnerID != ownerID {
		return ErrNotStreamOwner
	}

	now := time.Now()
	existing, err := s.stageRepo.ListByOccurrence(ctx, streamKey, occurrenceDate)
	if err != nil {
		return fmt.Errorf("failed to list stage records for acknowledge: %w", err)
	}

	if len(existing) == 0 {
		// No reminder was ever issued for this occurrence. Insert an
		// acknowledged placeholder so future stage computations treat the
		// occurrence as settled.
		occ, err := st.Schedule.OccurrenceOn(occurrenceDate, s.loc)
		if err != nil {
			return fmt.Errorf("failed to compose occurrence for placeholder: %w", err)
		}
		rec := &reminder.StageRecord{
			OwnerID:         ownerID,
			StreamKey:       streamKey,
			OccurrenceDate:  occ.Date,
			OccurrenceStart: occ.Start,
			OccurrenceEnd:   occ.End,
			Stage:           reminder.StageNightBefore,
			IssuedAt:        now,
			Acknowledged:    true,
		}
		rec.AcknowledgedAt.Time, rec.AcknowledgedAt.Valid = now, true
		if err := s.stageRepo.Create(ctx, rec); err != nil {
			if errors.Is(err, idb.ErrDuplicateStageRecord) {
				// A real record appeared between the list and the insert;
				// acknowledge it instead.
				return s.acknowledgeExisting(ctx, streamKey, occurrenceDate, now)
			}
			return fmt.Errorf("failed to create acknowledged placeholder: %w", err)
		}
		s.logAcknowledged(streamKey, occurrenceDate, true)
		return nil
	}

	return s.acknowledgeExisting(ctx, streamKey, occurrenceDate, now)
}

func (s *ReminderServiceImpl) acknowledgeExisting(ctx context.Context, streamKey string, occurrenceDate, now time.Time) error {
	affected, err := s.stageRepo.AcknowledgeOccurrence(ctx, streamKey, occurrenceDate, now)
	if err != nil {
		return fmt.Errorf("failed to acknowledge occurrence: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyAcknowledged
	}
	s.logAcknowledged(streamKey, occurrenceDate, false)
	return nil
}

func (s *ReminderServiceImpl) logAcknowledged(streamKey string, occurrenceDate time.Time, placeholder bool) {
	s.logger.WithFields(logrus.Fields{
		"stream_key":  streamKey,
		"date":        occurrenceDate.In(s.loc).Format("2006-01-02"),
		"placeholder": placeholder,
	}).Info("Occurrence acknowledged")
}

func (s *ReminderServiceImpl) CleanupExpiredRecords(ctx context.Context, now time.Time) error {
	cutoff := now.AddDate(0, 0, -s.retentionDays)
	removed, err := s.stageRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired stage records: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"removed": removed,
		"cutoff":  cutoff.In(s.loc).Format("2006-01-02"),
	}).Info("Stage record retention cleanup finished")
	return nil
}
