package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/opendatahq/issues-backend/internal/config"
	"github.com/opendatahq/issues-backend/internal/database"
	"github.com/opendatahq/issues-backend/internal/directory"
	"github.com/opendatahq/issues-backend/internal/handlers"
	"github.com/opendatahq/issues-backend/internal/logging"
	"github.com/opendatahq/issues-backend/internal/mailer"
	"github.com/opendatahq/issues-backend/internal/middleware"
	"github.com/opendatahq/issues-backend/internal/routes"
	"github.com/opendatahq/issues-backend/internal/services"
	"github.com/opendatahq/issues-backend/internal/spam"
	"github.com/opendatahq/issues-backend/internal/tasks"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	// Background runner for spam classification
	runner := tasks.NewRunner(2, 128, 3)

	var classifier spam.Classifier
	if cfg.SpamCheckEnabled() {
		classifier = spam.NewAkismetClient(cfg.SpamAPIKey, cfg.SpamAPIURL, cfg.SiteURL)
		slog.Info("spam classifier enabled", "endpoint", cfg.SpamAPIURL)
	}

	var mail mailer.Mailer
	if smtpMailer := mailer.NewSMTP(cfg); smtpMailer.IsConfigured() {
		mail = smtpMailer
		slog.Info("smtp mailer configured", "host", cfg.SMTPHost)
	}

	// Services
	dir := directory.New(database.DB)
	notificationService := services.NewNotificationService(dir, mail, cfg)
	reviewGate := services.NewReviewGateService(database.DB, cfg.ReviewSystem)
	moderationService := services.NewModerationService(database.DB, dir, cfg.MaxStrikes)
	searchService := services.NewSearchService(database.DB, dir)
	issueService := services.NewIssueService(
		database.DB, dir, cfg,
		notificationService, reviewGate, moderationService,
		runner, classifier,
	)

	// Handlers
	healthHandler := handlers.NewHealthHandler()
	issueHandler := handlers.NewIssueHandler(issueService, searchService, dir)
	moderationHandler := handlers.NewModerationHandler(moderationService)
	categoryHandler := handlers.NewCategoryHandler(database.DB)
	adminHandler := handlers.NewAdminHandler(database.DB)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, database.DB, healthHandler, issueHandler, moderationHandler, categoryHandler, adminHandler)

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

	close(cleanupDone)
	runner.Stop()
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
