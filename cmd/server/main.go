package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/config"
	"github.com/stemsi/examhall-backend/internal/database"
	"github.com/stemsi/examhall-backend/internal/events"
	"github.com/stemsi/examhall-backend/internal/handler"
	"github.com/stemsi/examhall-backend/internal/logger"
	"github.com/stemsi/examhall-backend/internal/monitoring"
	"github.com/stemsi/examhall-backend/internal/repository"
	"github.com/stemsi/examhall-backend/internal/router"
	"github.com/stemsi/examhall-backend/internal/service"
	"github.com/stemsi/examhall-backend/internal/tracing"
	"github.com/stemsi/examhall-backend/internal/validator"
	"github.com/stemsi/examhall-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting ExamHall Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Tracing ───────────────────────────────────────────────────────
	shutdownTracing, err := tracing.Init("examhall-backend", cfg.JaegerEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Event Bus ─────────────────────────────────────────────────────
	bus, err := events.NewBus(cfg.Events, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create event bus")
	}

	// ─── Object Storage ────────────────────────────────────────────────
	storage, err := service.NewStorageProvider(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	metrics := monitoring.New()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	adRepo := repository.NewAdRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo, log)
	userService := service.NewUserService(userRepo, log)
	mediaService := service.NewMediaService(cfg, storage, log)
	examService := service.NewExamService(examRepo, questionRepo, categoryRepo, mediaService, rdb, log)
	categoryService := service.NewCategoryService(categoryRepo, examService, mediaService, log)
	sessionService := service.NewExamSessionService(sessionRepo, submissionRepo, examService, userService, bus, metrics, log)
	monitorService := service.NewMonitorService(sessionRepo, submissionRepo, rdb, log)
	exportService := service.NewExportService(submissionRepo, examService)
	adService := service.NewAdService(adRepo, categoryRepo, userRepo, mediaService, log)
	checkoutService := service.NewCheckoutService(service.NewStripeClient(cfg.Stripe), cfg.Stripe, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		User:     handler.NewUserHandler(userService),
		Category: handler.NewCategoryHandler(categoryService, examService),
		Exam:     handler.NewExamHandler(examService, exportService),
		Session:  handler.NewSessionHandler(sessionService),
		Ad:       handler.NewAdHandler(adService),
		Media:    handler.NewMediaHandler(mediaService),
		Checkout: handler.NewCheckoutHandler(checkoutService),
		Monitor:  handler.NewMonitorHandler(examService, monitorService, log),
		WS:       handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	expiryWorker := worker.NewExpiryWorker(sessionService, cfg.ExpirySweep, log)
	relayWorker := worker.NewMonitorRelayWorker(bus, monitorService, log)

	workers.Add(2)
	go func() { defer workers.Done(); expiryWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); relayWorker.Start(workerCtx) }()

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every exam into Redis before accepting traffic.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, metrics, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the current sweep to finish.
	workerCancel()
	workers.Wait()

	// 3. Release the bus and flush pending spans.
	if err := bus.Close(); err != nil {
		log.Error().Err(err).Msg("Event bus close error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Tracing shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
