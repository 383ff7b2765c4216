package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sweep_reminder_bot/internal/app"
	idb "sweep_reminder_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, admin service, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/add_subscriber", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/add_subscriber",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		args := c.Args()
		// Expected format: /add_subscriber <TelegramID> <FirstName>
		if len(args) != 2 {
			handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
			return c.Send("Invalid format. Use: /add_subscriber <TelegramID> <FirstName>")
		}

		telegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: Telegram ID must be a number.")
		}

		firstName := args[1]
		if strings.TrimSpace(firstName) == "" {
			return c.Send("Error: first name cannot be empty.")
		}

		handlerLogger = handlerLogger.WithFields(logrus.Fields{
			"subscriber_telegram_id": telegramID,
			"first_name":             firstName,
		})

		newSubscriber, err := adminService.AddSubscriber(ctx, c.Sender().ID, telegramID, firstName)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch err {
			case app.ErrAdminNotAuthorized:
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send("Error: you are not allowed to run this command.")
			case app.ErrSubscriberAlreadyExists:
				logWithError.Warn("Subscriber already exists")
				return c.Send(fmt.Sprintf("Error: a subscriber with Telegram ID %d already exists.", telegramID))
			default:
				logWithError.Error("Failed to add subscriber")
				return c.Send("Error: could not add the subscriber. Please try again.")
			}
		}

		handlerLogger.WithField("subscriber_id", newSubscriber.ID).Info("Subscriber added")
		return c.Send(fmt.Sprintf("Subscriber %s (ID %d) registered.", newSubscriber.FirstName, newSubscriber.TelegramID))
	})

	b.Handle("/remove_subscriber", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/remove_subscriber",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		args := c.Args()
		if len(args) != 1 {
			handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
			return c.Send("Invalid format. Use: /remove_subscriber <TelegramID>")
		}

		telegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: Telegram ID must be a number.")
		}

		handlerLogger = handlerLogger.WithField("subscriber_telegram_id", telegramID)

		removed, err := adminService.RemoveSubscriber(ctx, c.Sender().ID, telegramID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch err {
			case app.ErrAdminNotAuthorized:
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send("Error: you are not allowed to run this command.")
			case idb.ErrSubscriberNotFound:
				logWithError.Warn("Subscriber not found")
				return c.Send(fmt.Sprintf("Error: no subscriber with Telegram ID %d.", telegramID))
			case app.ErrSubscriberAlreadyInactive:
				logWithError.Warn("Subscriber already inactive")
				return c.Send(fmt.Sprintf("Subscriber %s is already inactive.", removed.FirstName))
			default:
				logWithError.Error("Failed to remove subscriber")
				return c.Send("Error: could not deactivate the subscriber. Please try again.")
			}
		}

		handlerLogger.WithField("subscriber_id", removed.ID).Info("Subscriber deactivated")
		return c.Send(fmt.Sprintf("Subscriber %s (ID %d) deactivated; reminders stopped.", removed.FirstName, removed.TelegramID))
	})

	b.Handle("/list_subscribers", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/list_subscribers",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		includeInactive := len(c.Args()) == 1 && strings.EqualFold(c.Args()[0], "all")
		subscribers, err := adminService.ListSubscribers(ctx, c.Sender().ID, includeInactive)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list subscribers")
			return c.Send("Error: could not list subscribers. Please try again.")
		}
		if len(subscribers) == 0 {
			return c.Send("No subscribers found.")
		}

		var sb strings.Builder
		sb.WriteString("Subscribers:\n")
		for _, sub := range subscribers {
			status := "active"
			if !sub.IsActive {
				status = "inactive"
			}
			sb.WriteString(fmt.Sprintf("• %s - %d (%s)\n", sub.FirstName, sub.TelegramID, status))
		}
		return c.Send(sb.String())
	})
}
