package main

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		otelShutdown = nil
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	queryTimeout, err := config.Duration("QUERY_TIMEOUT", 2*time.Second)
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository()
	svc := booking.NewService(booking.Config{
		Repo:      repo,
		Outbox:    outboxRepo,
		Engine:    availability.NewEngine(repo, availability.WithQueryTimeout(queryTimeout)),
		Validator: availability.NewValidator(repo, availability.WithQueryTimeout(queryTimeout)),
		Metrics:   bookingMetrics,
		Logger:    logger,
	})

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, bookingMetrics, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Optional: true, Check: kafkax.ReadyCheck(brokers)},
	}
	public, redisCheck, closeLimiter, err := publicLimiter(logger)
	if err != nil {
		panic(err)
	}
	defer closeLimiter()
	if redisCheck != nil {
		checks = append(checks, *redisCheck)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handlers.NewBookingHandler(svc, logger).Register(mux, public)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
			AllowedHeaders: []string{"Content-Type", "Idempotency-Key", httpx.RequestIDHeader, "X-Provider-Id"},
			ExposedHeaders: []string{httpx.RequestIDHeader, "Idempotent-Replayed", "Retry-After"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(64<<10),
		httpx.WithTimeout(10*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := startGrpcServer(ctx, logger, svc); err != nil {
		logger.Error("grpc server init failed", "err", err)
		panic(err)
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	runtime.Shutdown(logger, 10*time.Second,
		runtime.ShutdownStep{Name: "http", Stop: srv.Shutdown},
		runtime.ShutdownStep{Name: "otel", Stop: otelShutdown},
	)
}

// publicLimiter rate limits the unauthenticated routes. With REDIS_ADDR set the
// limit is shared across replicas; otherwise it is per process.
func publicLimiter(logger *slog.Logger) (httpx.Middleware, *runtime.ReadyCheck, func(), error) {
	limit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		return nil, nil, nil, err
	}
	if limit <= 0 {
		return nil, nil, func() {}, nil
	}

	addr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if addr == "" {
		return httpx.RateLimit(httpx.NewMemoryRateStore(limit, time.Minute), logger, false), nil, func() {}, nil
	}

	failOpen, err := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	store := httpx.NewRedisRateStore(rdb, limit, time.Minute, "apptbook:ratelimit")
	check := &runtime.ReadyCheck{Name: "redis", Optional: failOpen, Check: store.ReadyCheck}
	return httpx.RateLimit(store, logger, failOpen), check, func() { _ = rdb.Close() }, nil
}
