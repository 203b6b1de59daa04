// internal/routes/routes.go
package routes

import (
	"time"

	"intesters-backend/internal/handlers"
	"intesters-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handlers struct {
	Health             *handlers.HealthHandler
	Screenshot         *handlers.ScreenshotHandler
	AdminVerifications *handlers.AdminVerificationHandler
}

type Options struct {
	Authenticator  *middleware.Authenticator
	AdminRole      string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

func SetupRoutes(h *Handlers, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.CORS())

	// Health check routes
	r.Get("/", h.Health.HealthCheck)
	r.Get("/health", h.Health.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(opts.Authenticator))

			r.Post("/screenshots/verify", h.Screenshot.VerifyScreenshot)

			// Moderator routes
			r.Route("/admin/verifications", func(r chi.Router) {
				r.Use(middleware.RequireRole(opts.AdminRole))

				r.Get("/", h.AdminVerifications.ListVerifications)
				r.Get("/stats", h.AdminVerifications.GetStats)
				r.Get("/{id}", h.AdminVerifications.GetVerification)
				r.Post("/{id}/review", h.AdminVerifications.ReviewVerification)
			})
		})
	})

	return r
}
