package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/blackout"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/jobs"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lock"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/softlock"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := loadSettings()
	logger := runtime.NewLogger(cfg.Service)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed; continuing", "err", err)
		}
	}

	var (
		cacheStore cache.Store    = cache.NewMemoryStore(time.Now)
		holdStore  softlock.Store = softlock.NewMemoryStore()
	)
	if rdb != nil {
		cacheStore = cache.NewRedisStore(rdb, "")
		holdStore = softlock.NewRedisStore(rdb, "")
	}
	availabilityCache := cache.NewAvailabilityCache(cacheStore, cfg.CacheTTL, logger)
	holds := softlock.NewService(holdStore, cfg.SoftLockTTL, time.Now)

	var mutex lock.Mutex
	switch cfg.LockBackend {
	case "redis":
		mutex = lock.NewRedisMutex(rdb, 2*cfg.LockTimeout)
	case "local":
		logger.Warn("using in-process booking lock; do not run more than one replica")
		mutex = lock.NewLocalMutex()
	default:
		mutex = lock.NewPostgresMutex(pool)
	}

	schedules := storage.NewScheduleRepository(pool, logger)
	bookingRepo := storage.NewBookingRepository(pool)
	busyRepo := storage.NewBusyRepository(pool)

	slots := availability.New(availability.Deps{
		Schedules: schedules,
		Events:    schedules,
		Bookings:  bookingRepo,
		Busy:      busyRepo,
		Catalog:   schedules,
		Blackouts: blackout.NewService(schedules),
		Cache:     availabilityCache,
	}, availability.Config{
		DefaultTimezone:    cfg.DefaultTimezone,
		DefaultSlotMinutes: cfg.DefaultSlotMinutes,
		MinAdvance:         cfg.MinAdvance,
		MaxAdvance:         cfg.MaxAdvance,
	}, logger, time.Now)

	outboxRepo := outbox.NewRepository()
	bookings := booking.New(booking.Deps{
		Store:     bookingRepo,
		Slots:     slots,
		Mutex:     mutex,
		SoftLocks: holds,
		Cache:     availabilityCache,
		Events:    outbox.NewSink(pool, outboxRepo),
	}, booking.Config{
		LockTimeout:         cfg.LockTimeout,
		CancellationHorizon: cfg.CancellationHorizon,
		DefaultTimezone:     cfg.DefaultTimezone,
	}, logger, time.Now)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPoll,
		BatchSize: cfg.OutboxBatch,
	})
	go outboxPublisher.Run(ctx)

	if cfg.KafkaBrokers != "" && cfg.CalendarBusyTopic != "" {
		busyHandler := consumer.NewBusyHandler(busyRepo, availabilityCache, logger)
		seen := inbox.NewRepository(pool, cfg.InboxRetention)
		busyConsumer := consumer.New(logger, seen, consumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.CalendarBusyTopic,
		}, busyHandler.Handle)
		go busyConsumer.Run(ctx)
		go jobs.NewSweeper(seen, logger, jobs.SweeperConfig{Name: "inbox", Interval: time.Hour}).Run(ctx)
	}

	sweeper := jobs.NewSweeper(holds, logger, jobs.SweeperConfig{Name: "soft-locks", Interval: cfg.SweepEvery})
	go sweeper.Run(ctx)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)

	var admin *handlers.AdminHandler
	if cfg.AdminSecret != "" {
		admin = handlers.NewAdminHandler(availabilityCache, logger)
	} else {
		logger.Warn("admin routes disabled (ADMIN_JWT_SECRET not set)")
	}
	handlers.Register(mux, handlers.NewBookingHandler(slots, bookings, holds, logger), admin, cfg.AdminSecret)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		rateLimit(cfg, rdb, logger),
		httpx.WithBodyLimit(int64(cfg.BodyMaxBytes)),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("booking service ready", "lock_backend", cfg.LockBackend)
	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		logger.Error("http server error", "err", err)
	}
}

func rateLimit(cfg settings, rdb *redis.Client, logger *slog.Logger) httpx.Middleware {
	if rdb != nil {
		return httpx.RateLimit(httpx.NewRedisRateLimiter(rdb, cfg.RatePerMin, time.Minute, "slotbook:ratelimit"), logger, true)
	}
	return httpx.RateLimit(httpx.NewMemoryRateLimiter(cfg.RatePerMin, time.Minute), logger, false)
}
