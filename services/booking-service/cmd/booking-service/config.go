package main

import (
	"time"

	"github.com/md-rashed-zaman/salonslots/libs/config"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/civiltime"
)

type appConfig struct {
	Service     string
	LogLevel    string
	HTTPPort    string
	GRPCPort    string
	DatabaseURL string
	AutoMigrate bool
	Timezone    string

	SlotStepMinutes   int
	BufferMinutes     int
	SkipPast          bool
	CheckWorkingHours bool

	KafkaBrokers    []string
	OutboxPollEvery time.Duration

	RedisAddr          string
	RateLimitPerMinute int
	CORSOrigins        []string
}

func loadConfig() (appConfig, error) {
	var (
		cfg appConfig
		err error
	)
	cfg.Service = config.String("SERVICE_NAME", "booking-service")
	cfg.LogLevel = config.String("LOG_LEVEL", "info")
	if cfg.HTTPPort, err = config.Port("PORT", "8083"); err != nil {
		return cfg, err
	}
	if cfg.GRPCPort, err = config.Port("GRPC_PORT", "9083"); err != nil {
		return cfg, err
	}
	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return cfg, err
	}
	if cfg.AutoMigrate, err = config.Bool("DB_AUTO_MIGRATE", true); err != nil {
		return cfg, err
	}
	cfg.Timezone = config.String("ORG_TIMEZONE", civiltime.DefaultTimezone)

	if cfg.SlotStepMinutes, err = config.Int("SLOT_STEP_MINUTES", 5); err != nil {
		return cfg, err
	}
	if cfg.BufferMinutes, err = config.Int("BOOKING_BUFFER_MINUTES", 0); err != nil {
		return cfg, err
	}
	if cfg.SkipPast, err = config.Bool("SLOTS_SKIP_PAST", false); err != nil {
		return cfg, err
	}
	if cfg.CheckWorkingHours, err = config.Bool("CHECK_WORKING_HOURS", true); err != nil {
		return cfg, err
	}

	cfg.KafkaBrokers = config.List("KAFKA_BROKERS")
	if cfg.OutboxPollEvery, err = config.Duration("OUTBOX_POLL_EVERY", 2*time.Second); err != nil {
		return cfg, err
	}

	cfg.RedisAddr = config.String("REDIS_ADDR", "")
	if cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return cfg, err
	}
	cfg.CORSOrigins = config.List("CORS_ALLOWED_ORIGINS")
	return cfg, nil
}
