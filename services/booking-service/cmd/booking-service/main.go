package main

import (
	"errors"
	"net"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/salonslots/libs/db"
	"github.com/md-rashed-zaman/salonslots/libs/grpcx"
	"github.com/md-rashed-zaman/salonslots/libs/httpx"
	"github.com/md-rashed-zaman/salonslots/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonslots/libs/otel"
	"github.com/md-rashed-zaman/salonslots/libs/runtime"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/civiltime"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/migrations"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		runtime.NewLogger("booking-service", "info").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		otelShutdown = nil
	}

	conv, err := civiltime.NewConverter(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "timezone", cfg.Timezone, "err", err)
		os.Exit(1)
	}
	logger.Info("civil timezone", "timezone", conv.Location().String())

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		applied, err := db.Migrate(ctx, pool, migrations.FS)
		if err != nil {
			logger.Error("db migration failed", "err", err)
			os.Exit(1)
		}
		if len(applied) > 0 {
			logger.Info("db migrations applied", "migrations", applied)
		}
	}

	outboxRepo := outbox.NewRepository()
	repo := storage.NewBookingRepository(pool, outboxRepo)

	computer := availability.NewComputer(repo, conv, availability.Config{
		StepMinutes:   cfg.SlotStepMinutes,
		BufferMinutes: cfg.BufferMinutes,
		SkipPast:      cfg.SkipPast,
	}, logger)
	committer := booking.NewCommitter(repo, computer, booking.Config{
		BufferMinutes:     cfg.BufferMinutes,
		CheckWorkingHours: cfg.CheckWorkingHours,
	}, logger)
	bookingHandler := handlers.NewBookingHandler(computer, committer, repo, logger)

	brokers := cfg.KafkaBrokers
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: cfg.OutboxPollEvery,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers, 2*time.Second)})
	}

	var limit httpx.Middleware
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.Service)
		limit = rl.Middleware(logger, true)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: rl.ReadyCheck()})
	} else {
		limit = httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).Middleware()
	}
	public := func(h http.HandlerFunc) http.Handler { return httpx.Chain(h, limit) }

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/v1/public/slots", public(bookingHandler.Slots))
	mux.Handle("/api/v1/public/book", public(bookingHandler.Book))
	mux.HandleFunc("/api/v1/appointments/status", bookingHandler.UpdateStatus)
	mux.HandleFunc("/api/v1/appointments/delete", bookingHandler.Delete)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger, "/healthz", "/readyz"),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	grpcSrv := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}
	grpcSrv.SetServing(cfg.Service, true)
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	grpcSrv.SetServing(cfg.Service, false)
	runtime.GracefulStop(logger, 10*time.Second,
		runtime.Stopper{Name: "http", Stop: srv.Shutdown},
		runtime.Stopper{Name: "grpc", Stop: grpcSrv.Stop},
		runtime.Stopper{Name: "otel", Stop: otelShutdown},
	)
}
