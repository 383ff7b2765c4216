// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sweep_reminder_bot/internal/app"
	"sweep_reminder_bot/internal/domain/subscriber"
	"sweep_reminder_bot/internal/domain/view"
	"sweep_reminder_bot/internal/infra/config"
	idb "sweep_reminder_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	cfg *config.AppConfig, // For AdminTelegramID
	subscriberRepo subscriber.Repository,
	streamService *app.StreamService,
	viewService *app.ViewService,
	loc *time.Location,
	baseLogger *logrus.Entry,
) {
	commandsLogger := baseLogger.WithField("handler_group", "bot_commands")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := commandsLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == cfg.AdminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hello, admin %s! Use /help for the command list.", c.Sender().FirstName))
		}

		sub, err := subscriberRepo.GetByTelegramID(ctx, senderID)
		if err == nil {
			if sub.IsActive {
				logCtx.WithField("subscriber_id", sub.ID).Info("User identified as active subscriber")
				return c.Send(fmt.Sprintf("Hello, %s! I remind you before street cleaning on your selected blocks. Use /status to see your reminder streams.", sub.FirstName))
			}
			logCtx.WithField("subscriber_id", sub.ID).Info("User identified as inactive subscriber")
			return c.Send("Your account is inactive. Please contact the administrator.")
		} else if err != idb.ErrSubscriberNotFound {
			logCtx.WithError(err).Error("Error checking subscriber status for /start command")
			return c.Send("Something went wrong while checking your account. Please try again later.")
		}

		logCtx.Info("User is unknown")
		return c.Send("Hello! I send street cleaning reminders. Ask the administrator to register you, then pick your blocks in the app.")
	})

	b.Handle("/status", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := commandsLogger.WithField("command", "/status").WithField("sender_id", senderID)
		logCtx.Info("Processing /status command")

		sub, err := subscriberRepo.GetByTelegramID(ctx, senderID)
		if err != nil {
			if err == idb.ErrSubscriberNotFound {
				return c.Send("You are not registered yet.")
			}
			logCtx.WithError(err).Error("Error resolving subscriber for /status")
			return c.Send("Something went wrong. Please try again later.")
		}

		dashboard, err := viewService.Dashboard(ctx, sub.ID, time.Now())
		if err != nil {
			logCtx.WithError(err).Error("Error building dashboard for /status")
			return c.Send("Something went wrong. Please try again later.")
		}
		if len(dashboard.All) == 0 {
			return c.Send("You have no reminder streams yet. Pick your blocks in the app first.")
		}
		return c.Send(formatDashboard(dashboard, loc))
	})

	b.Handle("/watch", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := commandsLogger.WithField("command", "/watch").WithField("sender_id", senderID)
		logCtx.Info("Processing /watch command")

		sub, err := subscriberRepo.GetByTelegramID(ctx, senderID)
		if err != nil {
			if err == idb.ErrSubscriberNotFound {
				return c.Send("You are not registered yet.")
			}
			logCtx.WithError(err).Error("Error resolving subscriber for /watch")
			return c.Send("Something went wrong. Please try again later.")
		}

		// /watch with no arguments clears every selection.
		segmentIDs := c.Args()
		streams, err := streamService.UpdateSelections(ctx, sub.ID, segmentIDs)
		if err != nil {
			logCtx.WithError(err).Error("Error recomputing streams for /watch")
			return c.Send("Something went wrong while updating your selections. Please try again later.")
		}
		if len(streams) == 0 {
			return c.Send("Selections cleared. You will receive no reminders.")
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Watching %d reminder stream(s):\n", len(streams)))
		for _, st := range streams {
			sb.WriteString(fmt.Sprintf("• %s, %s - %s\n", st.StreetName, st.Summary, st.Schedule.TimeRange()))
		}
		return c.Send(sb.String())
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := commandsLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID == cfg.AdminTelegramID {
			logCtx.Info("User identified as Admin, sending admin help.")
			var helpText strings.Builder
			helpText.WriteString("Available admin commands:\n\n")
			helpText.WriteString("`/add_subscriber <TelegramID> <FirstName>`\n - Register a new subscriber.\n\n")
			helpText.WriteString("`/remove_subscriber <TelegramID>`\n - Deactivate a subscriber (they stop receiving reminders).\n\n")
			helpText.WriteString("`/list_subscribers [active|all]`\n - Show subscribers. Defaults to active; 'all' includes inactive.\n\n")
			helpText.WriteString("`/help`\n - Show this help message.")
			return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}

		var helpText strings.Builder
		helpText.WriteString("Available commands:\n\n")
		helpText.WriteString("`/status`\n - Show your reminder streams: what's active now, what's coming up, and everything you watch.\n\n")
		helpText.WriteString("`/watch <segment ids>`\n - Replace your watched segments; with no ids, clears all selections.\n\n")
		helpText.WriteString("`/help`\n - Show this help message.\n\n")
		helpText.WriteString("Tap Dismiss under a reminder to silence the remaining reminders for that cleaning.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

// formatDashboard renders the categorized streams as a plain-text summary.
func formatDashboard(d view.Categorized, loc *time.Location) string {
	var sb strings.Builder

	writeLine := func(st view.StreamStatus) {
		sb.WriteString(fmt.Sprintf("• %s, %s - %s", st.Stream.StreetName, st.Stream.Summary, st.Stream.Schedule.TimeRange()))
		if st.Next != nil {
			sb.WriteString(fmt.Sprintf(" (next: %s, %s)", st.Next.When.In(loc).Format("Mon Jan 2 15:04"), st.Next.Stage))
		}
		sb.WriteString("\n")
	}

	if len(d.Active) > 0 {
		sb.WriteString("Active now:\n")
		for _, st := range d.Active {
			writeLine(st)
		}
		sb.WriteString("\n")
	}
	if len(d.Upcoming) > 0 {
		sb.WriteString("Coming up (48h):\n")
		for _, st := range d.Upcoming {
			writeLine(st)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("All streams:\n")
	for _, st := range d.All {
		writeLine(st)
	}
	return sb.String()
}
