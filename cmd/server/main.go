// Package main is the entry point for the call agent webhook server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/ai"
	"github.com/lososs/callagent/internal/clock"
	"github.com/lososs/callagent/internal/config"
	"github.com/lososs/callagent/internal/conversation"
	"github.com/lososs/callagent/internal/database"
	"github.com/lososs/callagent/internal/handler"
	"github.com/lososs/callagent/internal/logging"
	"github.com/lososs/callagent/internal/metrics"
	"github.com/lososs/callagent/internal/middleware"
	"github.com/lososs/callagent/internal/reporting"
	"github.com/lososs/callagent/internal/repository"
	"github.com/lososs/callagent/internal/service"
	"github.com/lososs/callagent/internal/shutdown"
	"github.com/lososs/callagent/internal/telephony"
	"github.com/lososs/callagent/internal/tts"
	"github.com/lososs/callagent/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(&logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := log.Zap()
	defer func() { _ = logger.Sync() }()

	logger.Info("starting call agent server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Environment),
	)

	ctx := context.Background()
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	// Note: db.Close() is handled by shutdown coordinator

	migrator := database.NewMigrator(db.Pool, logger)
	if err := migrator.MigrateFromFS(ctx, migrations.FS, "."); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Seed templates, topics, redirects and fillers on an empty database.
	// The corpus loads in one transaction so a partial seed never survives.
	err = db.TxManager.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repository.NewSeeder(tx, logger).Seed(ctx)
	})
	if err != nil {
		logger.Fatal("failed to seed database", zap.Error(err))
	}

	// Initialize repositories
	callRepo := repository.NewCallRepository(db.Pool)
	responseRepo := repository.NewResponseRepository(db.Pool)
	redirectRepo := repository.NewRedirectRepository(db.Pool)
	topicRepo := repository.NewTopicRepository(db.Pool)
	fillerRepo := repository.NewFillerRepository(db.Pool)
	patternRepo := repository.NewPatternRepository(db.Pool)

	m := metrics.NewMetrics()
	clk := clock.New()

	// Topic definitions are seeded data, loaded once at startup.
	topicDefs, err := topicRepo.GetAll(ctx)
	if err != nil {
		logger.Fatal("failed to load topic definitions", zap.Error(err))
	}
	classifier := conversation.NewTopicClassifier(topicDefs)

	// The LLM is optional: without it responses stay raw templates and
	// finished calls are scored heuristically.
	var aiClient *ai.Client
	var naturalizer conversation.Naturalizer
	var analyzer reporting.Analyzer
	if cfg.OpenAI.APIKey != "" {
		aiClient = ai.NewClient(&cfg.OpenAI, m, logger)
		naturalizer = aiClient
		analyzer = aiClient
	} else {
		logger.Warn("no OpenAI API key configured, running with raw templates and heuristic scoring")
	}

	var synth *tts.Synthesizer
	if cfg.Speech.Enabled {
		synth, err = tts.NewSynthesizer(&cfg.Speech, m, logger)
		if err != nil {
			logger.Fatal("failed to initialize speech synthesizer", zap.Error(err))
		}
	}

	selector := conversation.NewResponseSelector(responseRepo, fillerRepo, logger)
	redirects := conversation.NewRedirectGenerator(redirectRepo, fillerRepo, cfg.Conversation.MaxOffTopic, logger)

	engine := conversation.NewEngine(
		conversation.Config{
			MaxCallSeconds:    cfg.Conversation.MaxCallSeconds,
			MaxOffTopic:       cfg.Conversation.MaxOffTopic,
			MaxRetries:        cfg.Conversation.MaxRetries,
			MaxResponseChars:  cfg.Conversation.MaxResponseChars,
			MinConfidence:     cfg.Conversation.MinConfidence,
			MinUtteranceChars: cfg.Conversation.MinUtteranceChars,
		},
		classifier,
		selector,
		redirects,
		naturalizer,
		clk,
		m,
		logger,
	)

	sessions := conversation.NewSessionStore(clk, logger)

	reporter := reporting.NewReporter(callRepo, responseRepo, patternRepo, analyzer, clk, logger, m, reporting.DefaultConfig())
	if err := reporter.Start(); err != nil {
		logger.Fatal("failed to start outcome reporter", zap.Error(err))
	}

	callService := service.NewCallService(sessions, engine, callRepo, reporter, clk, logger, m)

	var validator *telephony.Validator
	if cfg.Telephony.AuthToken != "" {
		validator = telephony.NewValidator(cfg.Telephony.AuthToken)
	} else {
		logger.Warn("no telephony auth token configured, webhook signatures are not verified")
	}

	// Initialize handlers
	voiceCfg := handler.VoiceHandlerConfig{
		Calls:     callService,
		Validator: validator,
		PublicURL: cfg.App.PublicURL,
		Logger:    logger,
	}
	if synth != nil {
		voiceCfg.Speech = synth
		voiceCfg.Audio = synth.Cache()
	}
	voiceHandler := handler.NewVoiceHandler(voiceCfg)

	healthCfg := handler.HealthHandlerConfig{
		HealthChecker: db,
		Sessions:      callService,
		Logger:        logger,
	}
	if aiClient != nil {
		healthCfg.AIHealthChecker = aiClient
	}
	healthHandler := handler.NewHealthHandler(healthCfg)

	apiHandler := handler.NewCallAPIHandler(callService, patternRepo, logger)
	logLevelHandler := handler.NewLogLevelHandler(log.AtomicLevel(), logger)

	// Initialize rate limiter and request correlation
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)
	correlation := middleware.NewRequestCorrelation(logger)

	// Initialize router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(correlation.Middleware)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit(rateLimiter))
	r.Use(middleware.BodySizeLimiterWebhook())
	r.Use(m.Middleware)

	// Register routes
	voiceHandler.RegisterRoutes(r)
	healthHandler.RegisterRoutes(r)
	r.Handle("/metrics", m.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.RegisterRoutes(r)
		r.Get("/admin/log-level", logLevelHandler.GetLevel)
		r.Put("/admin/log-level", logLevelHandler.SetLevel)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Initialize shutdown coordinator
	shutdownCoord := shutdown.NewCoordinator(&shutdown.Config{
		Timeout: 30 * time.Second,
	}, logger)

	// Sweep sessions whose calls ended without a status callback.
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := callService.SweepStale(ctx, cfg.Conversation.SessionTTL); n > 0 {
					logger.Info("swept stale sessions", zap.Int("count", n))
				}
			case <-shutdownCoord.ShutdownCh():
				logger.Debug("session sweeper stopping")
				return
			}
		}
	}()

	// Register services for graceful shutdown (in order of shutdown phases)
	shutdownCoord.RegisterFunc(shutdown.PhaseDrain, "http-server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseShutdown, "outcome-reporter", func(ctx context.Context) error {
		return reporter.Stop(ctx)
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "session-sweeper", func(ctx context.Context) error {
		select {
		case <-sweepDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "database", func(ctx context.Context) error {
		db.Close()
		return nil
	})

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("received shutdown signal")

	if err := shutdownCoord.Shutdown(ctx); err != nil {
		logger.Error("shutdown completed with errors", zap.Error(err))
	}
}
