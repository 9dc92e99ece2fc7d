package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/metrics"
	"github.com/frahmantamala/hoa-reimbursement/internal/nudge"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport/middleware"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport/swagger"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	"github.com/frahmantamala/hoa-reimbursement/pkg/telemetry"
	"github.com/go-chi/chi"
)

type Handlers struct {
	Health   *HealthHandler
	Auth     *auth.Handler
	Roles    *auth.RoleAuthorization
	User     *user.Handler
	Settings *settings.Handler
	Entry    *entry.Handler
	Nudge    *nudge.Handler
	Metrics  *metrics.Handler
}

type Options struct {
	AllowedOrigins string
	OpenAPIPath    string
	// Telemetry is nil when Prometheus metrics are disabled.
	Telemetry   *telemetry.Metrics
	MetricsPath string
	RateLimiter *middleware.RateLimiter
}

func RegisterAllRoutes(router chi.Router, h Handlers, opts Options, logger *slog.Logger) {
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if opts.Telemetry != nil {
		router.Use(opts.Telemetry.Instrument)
		router.Handle(opts.MetricsPath, opts.Telemetry.Handler())
	}

	specPath := opts.OpenAPIPath
	if specPath == "" {
		specPath = "./api/openapi.yml"
	}
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, specPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Middleware)
		}

		r.Get("/health", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/users/me", h.User.GetCurrentUser)
			pr.Get("/settings", h.Settings.GetSettings)

			pr.Route("/entries", func(er chi.Router) {
				er.Post("/", h.Entry.CreateEntry)
				er.Get("/", h.Entry.ListEntries)
				er.Get("/{id}", h.Entry.GetEntry)
				er.Patch("/{id}", h.Entry.UpdateEntry)
				er.Get("/{id}/timeline", h.Entry.GetTimeline)
				er.Post("/{id}/transitions", h.Entry.TransitionEntry)
			})

			pr.Get("/nudges", h.Nudge.ListNudges)
			pr.Patch("/nudges/{id}/{mark}", h.Nudge.MarkNudge)
			pr.Get("/banners", h.Nudge.GetBanners)

			// treasurer only
			pr.Group(func(tr chi.Router) {
				tr.Use(h.Roles.RequireTreasurer())
				tr.Get("/users", h.User.ListUsers)
				tr.Put("/settings", h.Settings.UpdateSettings)
				tr.Post("/nudges", h.Nudge.SendNudge)
				tr.Get("/metrics/operational", h.Metrics.GetOperationalMetrics)
			})
		})
	})
}
