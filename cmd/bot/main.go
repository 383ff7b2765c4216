package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sweep_reminder_bot/internal/app"
	"sweep_reminder_bot/internal/infra/config"
	idb "sweep_reminder_bot/internal/infra/database"
	"sweep_reminder_bot/internal/infra/logger"
	"sweep_reminder_bot/internal/infra/scheduler"
	"sweep_reminder_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Street Cleaning Reminder Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	log := logger.Get().WithField("component", "main")
	log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"timezone":    cfg.Timezone,
	}).Info("Configuration loaded")

	loc := cfg.Location()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	// Initialize Repositories
	subscriberRepo := idb.NewPostgresSubscriberRepository(db)
	streamRepo := idb.NewPostgresStreamRepository(db)
	stageRepo := idb.NewPostgresStageRepository(db)
	segmentRepo := idb.NewPostgresSegmentRepository(db, logger.Get().WithField("component", "segment_repo"))
	log.Info("Repositories initialized.")

	// Segment catalog cache: constructed once here and injected, never
	// module-level state.
	segmentCache := app.NewSegmentCache(segmentRepo, cfg.SegmentCacheTTL, logger.Get().WithField("component", "segment_cache"))

	// Initialize Services
	adminService := app.NewAdminService(subscriberRepo, cfg.AdminTelegramID)
	streamService := app.NewStreamService(streamRepo, segmentCache, logger.Get().WithField("component", "stream_service"))
	viewService := app.NewViewService(streamRepo, stageRepo, loc, logger.Get().WithField("component", "view_service"))
	log.Info("Services initialized.")

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Get().WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{
					"message": c.Text(),
					"sender":  c.Sender().ID,
					"chat":    c.Chat().ID,
				})
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		log.WithError(err).Fatal("Could not create Telegram bot")
	}

	telegramClient := telegram.NewTelebotAdapter(bot)
	reminderService := app.NewReminderServiceImpl(
		streamRepo,
		stageRepo,
		subscriberRepo,
		telegramClient,
		loc,
		cfg.StageRetentionDays,
		logger.Get().WithField("component", "reminder_service"),
	)

	// Initialize ReminderScheduler
	reminderScheduler := scheduler.NewReminderScheduler(
		reminderService,
		loc,
		logger.Get().WithField("component", "scheduler"),
		cfg.CronSpecReminderCheck,
		cfg.CronSpecRetentionCleanup,
	)
	if err := reminderScheduler.Start(); err != nil {
		log.WithError(err).Fatal("Could not start reminder scheduler")
	}

	// Register Handlers
	ctx := context.Background()
	handlersLogger := logger.Get().WithField("component", "telegram_handlers")
	telegram.RegisterAdminHandlers(ctx, bot, adminService, cfg.AdminTelegramID, handlersLogger)
	telegram.RegisterBotCommands(ctx, bot, cfg, subscriberRepo, streamService, viewService, loc, handlersLogger)
	telegram.RegisterAckHandlers(ctx, bot, reminderService, subscriberRepo, loc, handlersLogger)
	log.Info("Telegram handlers registered.")

	log.Info("Application setup complete. Bot and scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	log.Info("Shutting down application...")
	reminderScheduler.Stop()
	bot.Stop()
	log.Info("Application shut down gracefully.")
}
