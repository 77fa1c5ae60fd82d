package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ServiceName labels metrics and traces emitted by the router.
const ServiceName = "review"

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Reviews     *service.ReviewService
	Invites     *service.InviteService
	Admin       *service.AdminService
	Tokens      middleware.TokenValidator
	Health      *health.Handler
	RateLimiter *middleware.RateLimiter
	CORS        middleware.CORSConfig
	PprofCIDRs  []string
	Logger      *slog.Logger
}

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	logger := cfg.Logger

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check and ops endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	reviewHandler := NewReviewHandler(cfg.Reviews, cfg.Invites, logger)
	adminHandler := NewAdminHandler(cfg.Admin, cfg.Reviews, logger)

	// Shopper endpoints
	r.Route("/api/v1/products/{productId}", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/reviews", reviewHandler.ListByProduct)
		r.With(middleware.CacheControl(60)).Get("/rating", reviewHandler.Rating)
		r.With(RequireAccount).Post("/reviews", reviewHandler.Submit)
	})

	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(RequireAccount)
		r.Use(cfg.RateLimiter.Handler())

		r.Post("/invites", reviewHandler.IssueInvite)
		r.Post("/{id}/helpful", reviewHandler.MarkHelpful)
		r.Post("/{id}/report", reviewHandler.Report)
	})

	// Moderation console
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(cfg.RateLimiter.Handler()).Post("/login", adminHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Tokens))
			r.Use(middleware.RequireRole(auth.RoleAdmin))

			r.Get("/reviews", adminHandler.ListReviews)
			r.Post("/reviews/{id}/moderate", adminHandler.Moderate)
		})
	})

	return r
}
