package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"

	"github.com/opendatahq/issues-backend/internal/config"
	"github.com/opendatahq/issues-backend/internal/handlers"
	"github.com/opendatahq/issues-backend/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	healthHandler *handlers.HealthHandler,
	issueHandler *handlers.IssueHandler,
	moderationHandler *handlers.ModerationHandler,
	categoryHandler *handlers.CategoryHandler,
	adminHandler *handlers.AdminHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Public
	api.Get("/health", healthHandler.Check)
	api.Get("/categories", categoryHandler.List)

	// Search (protected; visibility scope resolved per actor)
	api.Get("/issues", middleware.JWTProtected(cfg), issueHandler.SearchIssues)
	api.Get("/comments", middleware.JWTProtected(cfg), issueHandler.SearchComments)

	// Issue lifecycle, scoped to a dataset
	datasets := api.Group("/datasets/:dataset_id", middleware.JWTProtected(cfg))

	// Write endpoints get a stricter limit to slow down spam floods.
	writeLimiter := limiter.New(limiter.Config{
		Max:               20,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})

	datasets.Post("/issues", writeLimiter, issueHandler.Create)
	datasets.Get("/issues/:number", issueHandler.Show)
	datasets.Put("/issues/:number", issueHandler.Update)
	datasets.Delete("/issues/:number", issueHandler.Delete)
	datasets.Post("/issues/:number/comments", writeLimiter, issueHandler.CreateComment)

	// Abuse reporting
	datasets.Post("/issues/:number/report", moderationHandler.ReportIssue)
	datasets.Delete("/issues/:number/report", moderationHandler.ClearIssueReports)
	datasets.Get("/issues/:number/report", moderationHandler.IssueReporters)
	datasets.Post("/issues/:number/comments/:comment_id/report", moderationHandler.ReportComment)
	datasets.Delete("/issues/:number/comments/:comment_id/report", moderationHandler.ClearCommentReports)

	// Operator panel (protected + admin required)
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg))
	admin.Get("/system-logs", adminHandler.ListSystemLogs)
}
