package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Handlers groups everything Setup mounts.
type Handlers struct {
	Auth   *handlers.AuthHandler
	Health *handlers.HealthHandler
	Survey *handlers.SurveyHandler
	Admin  *handlers.AdminHandler
}

// Limits are requests per minute per IP; zero disables the limiter.
type Limits struct {
	API  int
	Auth int
}

var DefaultLimits = Limits{API: 60, Auth: 10}

func Setup(app *fiber.App, cfg *config.Config, authService *services.AuthService, h Handlers, limits Limits) {
	api := app.Group("/api")

	if limits.API > 0 {
		api.Use(rateLimiter(limits.API))
	}

	api.Get("/health", h.Health.Check)

	// Auth: stricter limit on the credential endpoints
	auth := api.Group("/auth")
	if limits.Auth > 0 {
		auth.Use(rateLimiter(limits.Auth))
	}
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)

	protect := middleware.JWTProtected(cfg, authService)
	optional := middleware.OptionalAuth(authService)

	api.Post("/auth/logout", protect, h.Auth.Logout)
	api.Get("/auth/me", protect, h.Auth.Me)

	// Public reads; a bearer token, when present, personalises the view
	api.Get("/surveys/open", h.Survey.ListOpen)
	api.Get("/surveys/:id", optional, h.Survey.Get)
	api.Get("/questions/:id/top", optional, h.Survey.TopResponses)

	// Participant writes
	api.Post("/questions/:id/responses", protect, h.Survey.SubmitResponse)
	api.Post("/responses/:id/upvote", protect, h.Survey.Upvote)
	api.Delete("/responses/:id/upvote", protect, h.Survey.RevokeUpvote)

	admin := api.Group("/admin", protect, middleware.AdminRequired(authService))

	admin.Get("/surveys", h.Admin.ListSurveys)
	admin.Post("/surveys", h.Admin.CreateSurvey)
	admin.Get("/surveys/:id", h.Admin.GetSurvey)
	admin.Put("/surveys/:id", h.Admin.UpdateSurvey)
	admin.Delete("/surveys/:id", h.Admin.DeleteSurvey)
	admin.Post("/surveys/:id/publish", h.Admin.PublishSurvey)
	admin.Post("/surveys/:id/schedule", h.Admin.ScheduleSurvey)
	admin.Post("/surveys/:id/close", h.Admin.CloseSurvey)
	admin.Get("/surveys/:id/statistics", h.Admin.SurveyStatistics)

	admin.Post("/surveys/:id/questions", h.Admin.AddQuestion)
	admin.Put("/surveys/:id/questions/order", h.Admin.ReorderQuestions)
	admin.Put("/surveys/:id/questions/:questionId", h.Admin.UpdateQuestion)
	admin.Delete("/surveys/:id/questions/:questionId", h.Admin.RemoveQuestion)

	admin.Get("/questions/:id/responses", h.Admin.ListResponses)
	admin.Get("/questions/:id/statistics", h.Admin.QuestionStatistics)
	admin.Delete("/responses/:id", h.Admin.DeleteResponse)

	admin.Get("/statistics", h.Admin.Overview)

	admin.Get("/users", h.Admin.ListUsers)
	admin.Put("/users/:id/role", h.Admin.SetRole)
	admin.Put("/users/:id/active", h.Admin.SetActive)
}

func rateLimiter(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}
