package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campus-engage-api/internal/config"
	"github.com/noah-isme/campus-engage-api/internal/handler"
	"github.com/noah-isme/campus-engage-api/internal/middleware"
	"github.com/noah-isme/campus-engage-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ChallengeHandler             *handler.ChallengeHandler
	RankingHandler               *handler.RankingHandler
	AdminChallengeHandler        *handler.AdminChallengeHandler
	AdminSubmissionReviewHandler *handler.AdminSubmissionReviewHandler
	AdminActivityHandler         *handler.AdminActivityHandler
	HealthDependencies           []handler.HealthDependency
	JWTMiddleware                fiber.Handler
	// SubmissionRateLimit caps submission and evidence writes per user per minute.
	SubmissionRateLimit int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthDependencies...))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	gamification := app.Group("/api/v2/gamification", jwtMiddleware, middleware.RequireUser())
	if deps.ChallengeHandler != nil {
		deps.ChallengeHandler.Register(gamification, middleware.RateLimit("gamification_submissions", deps.SubmissionRateLimit, time.Minute))
	}
	if deps.RankingHandler != nil {
		deps.RankingHandler.Register(gamification)
	}

	admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireReviewer())
	if deps.AdminChallengeHandler != nil {
		deps.AdminChallengeHandler.Register(admin.Group("/gamification/challenges"))
	}
	if deps.AdminSubmissionReviewHandler != nil {
		deps.AdminSubmissionReviewHandler.Register(admin.Group("/gamification/submissions"))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activity"))
	}
}
