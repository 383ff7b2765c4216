// internal/infra/telegram/ack_handlers.go
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sweep_reminder_bot/internal/app"
	"sweep_reminder_bot/internal/domain/schedule"
	"sweep_reminder_bot/internal/domain/subscriber"
	idb "sweep_reminder_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAckHandlers wires the Dismiss button callbacks into the
// acknowledge operation. Callback data format: ack_<streamKey>_<YYYY-MM-DD>.
func RegisterAckHandlers(
	ctx context.Context,
	b *telebot.Bot,
	reminderService app.ReminderService,
	subscriberRepo subscriber.Repository,
	loc *time.Location,
	baseLogger *logrus.Entry,
) {
	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := strings.TrimSpace(c.Callback().Data)
		logCtx := baseLogger.WithFields(logrus.Fields{
			"handler":   "ack_callback",
			"sender_id": c.Sender().ID,
		})

		if !strings.HasPrefix(data, "ack_") {
			logCtx.WithField("data", data).Warn("Unhandled callback data")
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}

		parts := strings.Split(data, "_") // ack_<streamKey>_<date>
		if len(parts) != 3 {
			logCtx.WithField("data", data).Warn("Invalid ack callback format")
			return c.Respond(&telebot.CallbackResponse{Text: "Could not process this dismissal."})
		}
		streamKey := parts[1]
		occurrenceDate, err := time.ParseInLocation(schedule.DateLayout, parts[2], loc)
		if err != nil {
			logCtx.WithField("data", data).WithError(err).Warn("Invalid ack callback date")
			return c.Respond(&telebot.CallbackResponse{Text: "Could not process this dismissal."})
		}

		owner, err := subscriberRepo.GetByTelegramID(ctx, c.Sender().ID)
		if err != nil {
			if err == idb.ErrSubscriberNotFound {
				logCtx.Warn("Callback from unknown Telegram user")
				return c.Respond(&telebot.CallbackResponse{Text: "You are not registered."})
			}
			logCtx.WithError(err).Error("Failed to resolve callback sender")
			return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong. Try again."})
		}

		logCtx = logCtx.WithFields(logrus.Fields{
			"stream_key": streamKey,
			"date":       parts[2],
		})

		err = reminderService.Acknowledge(ctx, owner.ID, streamKey, occurrenceDate)
		switch err {
		case nil:
			logCtx.Info("Occurrence dismissed via callback")
			return c.Respond(&telebot.CallbackResponse{Text: "Dismissed. No more reminders for this cleaning."})
		case app.ErrAlreadyAcknowledged:
			return c.Respond(&telebot.CallbackResponse{Text: "Already dismissed."})
		case app.ErrStreamNotFound:
			logCtx.Warn("Dismiss tapped for a stream that no longer exists")
			return c.Respond(&telebot.CallbackResponse{Text: "This reminder stream no longer exists."})
		case app.ErrNotStreamOwner:
			logCtx.Warn("Dismiss tapped by non-owner")
			return c.Respond(&telebot.CallbackResponse{Text: "This reminder belongs to someone else."})
		default:
			c.Bot().OnError(fmt.Errorf("error acknowledging %s/%s: %w", streamKey, parts[2], err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong. Try again."})
		}
	})
}
