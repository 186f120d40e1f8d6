package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/timezone"
)

type settings struct {
	Service     string
	Port        string
	DatabaseURL string
	DBMaxConns  int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers      string
	KafkaGroupID      string
	CalendarBusyTopic string

	LockBackend    string
	LockTimeout    time.Duration
	SoftLockTTL    time.Duration
	SweepEvery     time.Duration
	CacheTTL       time.Duration
	OutboxPoll     time.Duration
	OutboxBatch    int
	InboxRetention time.Duration
	RatePerMin     int
	AdminSecret    string
	BodyMaxBytes   int
	RequestTimeout time.Duration

	DefaultTimezone     string
	DefaultSlotMinutes  int
	MinAdvance          time.Duration
	MaxAdvance          time.Duration
	CancellationHorizon time.Duration
}

func loadSettings() (settings, error) {
	var (
		s    settings
		err  error
		errs []error
	)
	collect := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	s.Service = config.String("SERVICE_NAME", "booking-service")
	s.Port, err = config.Port("PORT", "8083")
	collect(err)
	s.DatabaseURL, err = config.RequiredString("DATABASE_URL")
	collect(err)
	s.DBMaxConns, err = config.Int("DB_MAX_CONNS", 20)
	collect(err)

	s.RedisAddr = config.String("REDIS_ADDR", "")
	s.RedisPassword = config.String("REDIS_PASSWORD", "")
	s.RedisDB, err = config.Int("REDIS_DB", 0)
	collect(err)

	s.KafkaBrokers = config.String("KAFKA_BROKERS", "")
	s.KafkaGroupID = config.String("KAFKA_GROUP_ID", "booking-service")
	s.CalendarBusyTopic = config.String("CALENDAR_BUSY_TOPIC", "calendar.busy")

	s.LockBackend = strings.ToLower(config.String("LOCK_BACKEND", "postgres"))
	switch s.LockBackend {
	case "postgres", "local":
	case "redis":
		if s.RedisAddr == "" {
			collect(errors.New("LOCK_BACKEND=redis requires REDIS_ADDR"))
		}
	default:
		collect(fmt.Errorf("LOCK_BACKEND must be postgres, redis or local (got %q)", s.LockBackend))
	}
	s.LockTimeout, err = config.Duration("LOCK_TIMEOUT", 5*time.Second)
	collect(err)
	s.SoftLockTTL, err = config.Duration("SOFT_LOCK_TTL", 10*time.Minute)
	collect(err)
	s.SweepEvery, err = config.Duration("SOFT_LOCK_SWEEP_EVERY", time.Minute)
	collect(err)
	s.CacheTTL, err = config.Duration("CACHE_TTL", 5*time.Minute)
	collect(err)
	s.OutboxPoll, err = config.Duration("OUTBOX_POLL_EVERY", 2*time.Second)
	collect(err)
	s.OutboxBatch, err = config.Int("OUTBOX_BATCH_SIZE", 50)
	collect(err)
	s.InboxRetention, err = config.Duration("INBOX_RETENTION", 7*24*time.Hour)
	collect(err)
	s.RatePerMin, err = config.Int("RATE_LIMIT_PER_MINUTE", 120)
	collect(err)
	s.BodyMaxBytes, err = config.Int("HTTP_BODY_MAX_BYTES", 1<<20)
	collect(err)
	s.RequestTimeout, err = config.Duration("HTTP_REQUEST_TIMEOUT", 15*time.Second)
	collect(err)
	s.AdminSecret = config.String("ADMIN_JWT_SECRET", "")

	s.DefaultTimezone = config.String("DEFAULT_TIMEZONE", "UTC")
	if !timezone.Valid(s.DefaultTimezone) {
		collect(fmt.Errorf("DEFAULT_TIMEZONE %q is not a valid IANA zone", s.DefaultTimezone))
	}
	s.DefaultSlotMinutes, err = config.Int("DEFAULT_SLOT_MINUTES", 30)
	collect(err)
	minHours, err := config.Int("MIN_ADVANCE_BOOKING_HOURS", 0)
	collect(err)
	s.MinAdvance = time.Duration(minHours) * time.Hour
	maxDays, err := config.Int("MAX_ADVANCE_BOOKING_DAYS", 90)
	collect(err)
	s.MaxAdvance = time.Duration(maxDays) * 24 * time.Hour
	cancelHours, err := config.Int("CANCELLATION_HORIZON_HOURS", 24)
	collect(err)
	s.CancellationHorizon = time.Duration(cancelHours) * time.Hour

	return s, errors.Join(errs...)
}
