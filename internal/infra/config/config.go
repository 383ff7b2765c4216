package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken            string
	DatabaseURL              string
	AdminTelegramID          int64
	LogLevel                 string
	Environment              string
	Timezone                 string // The single civil zone all schedule math runs in
	CronSpecReminderCheck    string // Cadence of the due-reminder sweep
	CronSpecRetentionCleanup string // Cadence of stage-record retention cleanup
	SegmentCacheTTL          time.Duration
	StageRetentionDays       int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.Timezone = os.Getenv("TIMEZONE")
	if cfg.Timezone == "" {
		cfg.Timezone = "America/Los_Angeles"
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	cfg.CronSpecReminderCheck = os.Getenv("CRON_SPEC_REMINDER_CHECK")
	if cfg.CronSpecReminderCheck == "" {
		cfg.CronSpecReminderCheck = "* * * * *" // Default: every minute
	}

	cfg.CronSpecRetentionCleanup = os.Getenv("CRON_SPEC_RETENTION_CLEANUP")
	if cfg.CronSpecRetentionCleanup == "" {
		cfg.CronSpecRetentionCleanup = "0 4 * * *" // Default: 04:00 daily
	}

	ttlStr := os.Getenv("SEGMENT_CACHE_TTL")
	if ttlStr == "" {
		cfg.SegmentCacheTTL = 15 * time.Minute
	} else {
		cfg.SegmentCacheTTL, err = time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SEGMENT_CACHE_TTL: %w", err)
		}
	}

	retentionStr := os.Getenv("STAGE_RETENTION_DAYS")
	if retentionStr == "" {
		cfg.StageRetentionDays = 90
	} else {
		cfg.StageRetentionDays, err = strconv.Atoi(retentionStr)
		if err != nil || cfg.StageRetentionDays <= 0 {
			return nil, fmt.Errorf("invalid STAGE_RETENTION_DAYS: %q", retentionStr)
		}
	}

	return cfg, nil
}

// Location resolves the configured civil time zone. Load has already
// validated the name, so a failure here is a programming error.
func (cfg *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		panic(fmt.Sprintf("timezone %q validated at load but failed to resolve: %v", cfg.Timezone, err))
	}
	return loc
}
