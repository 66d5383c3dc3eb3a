package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/services"
)

func main() {
	appEnv := os.Getenv("APP_ENV")

	// Structured logging (JSON to stdout)
	stdoutHandler := logging.Setup(appEnv)

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBDriver == "postgres" && cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	clk := clock.Real()

	// Database
	db, err := database.Connect(cfg, clk)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// Database log handler (ERROR+ async batch)
	dbLogHandler := logging.NewDBHandler(db, 5*time.Second)
	logging.Install(stdoutHandler, dbLogHandler)

	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, clk, cfg.LogRetentionDays, cleanupDone)

	// Services
	authService := services.NewAuthService(db, cfg, clk)
	surveyService := services.NewSurveyService(db, clk)
	questionService := services.NewQuestionService(db, clk)
	responseService := services.NewResponseService(db, cfg, clk, services.NewContentFilter())
	upvoteService := services.NewUpvoteService(db, cfg, clk)
	rankingService := services.NewRankingService(db)
	statisticsService := services.NewStatisticsService(db)

	if err := authService.EnsureAdmin(); err != nil {
		slog.Error("admin seed failed", "error", err)
		os.Exit(1)
	}

	// Promote scheduled surveys whose start date has passed
	schedulerDone := make(chan struct{})
	if _, err := surveyService.ActivateDue(clk.Now()); err != nil {
		slog.Error("initial schedule activation failed", "error", err)
	}
	surveyService.StartScheduler(cfg.SchedulerInterval, schedulerDone)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      appEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	app := routes.NewApp(cfg, sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	routes.Setup(app, cfg, authService, routes.Handlers{
		Auth:   handlers.NewAuthHandler(authService),
		Health: handlers.NewHealthHandler(db, clk),
		Survey: handlers.NewSurveyHandler(cfg, clk, surveyService, responseService, upvoteService, rankingService),
		Admin:  handlers.NewAdminHandler(authService, surveyService, questionService, responseService, statisticsService),
	}, routes.DefaultLimits)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(schedulerDone)
	close(cleanupDone)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}
