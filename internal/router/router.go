package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"support-portal/internal/config"
	"support-portal/internal/handler"
	"support-portal/internal/middleware"
	"support-portal/internal/model"
)

type Handlers struct {
	Auth      *handler.AuthHandler
	Dashboard *handler.DashboardHandler
	Ticket    *handler.TicketHandler
	Admin     *handler.AdminHandler
	Health    *handler.HealthHandler
	Session   http.Handler
}

// New builds the portal's page map. Every page except the auth pages and the
// operational endpoints sits behind the session gate.
func New(cfg *config.Config, logger *slog.Logger, gate *middleware.SessionGate, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	origins := middleware.NewOriginPolicy(cfg.CORSOrigins)

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(origins))
	r.Use(middleware.RejectCrossOriginWrites(origins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Method(http.MethodGet, "/ws/session", h.Session)

	r.Group(func(pages chi.Router) {
		pages.Use(middleware.Timeout(cfg.RequestTimeout))

		pages.Get("/", h.Auth.Root)

		pages.Route("/auth", func(auth chi.Router) {
			auth.Get("/", h.Auth.Page)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/register", h.Auth.Register)
			auth.Post("/logout", h.Auth.Logout)
			auth.Get("/session", h.Auth.Session)
		})

		anyRole := gate.Require()
		staff := gate.Require(model.RoleAgent, model.RoleAdmin)
		customer := gate.Require(model.RoleCustomer)
		admin := gate.Require(model.RoleAdmin)

		pages.With(anyRole).Get("/dashboard", h.Dashboard.Dashboard)
		pages.With(anyRole).Get("/navigation", h.Dashboard.Navigation)
		pages.With(admin).Get("/admin", h.Dashboard.AdminHome)
		pages.With(gate.Require(model.RoleAgent)).Get("/agent", h.Dashboard.AgentHome)

		pages.With(anyRole).Get("/tickets", h.Ticket.List)
		pages.With(anyRole).Get("/tickets/{id}", h.Ticket.Get)
		pages.With(staff).Post("/tickets/{id}/responses", h.Ticket.AddResponse)
		pages.With(staff).Post("/tickets/{id}/status", h.Ticket.UpdateStatus)
		pages.With(customer).Get("/new-ticket", h.Ticket.NewTicketPage)
		pages.With(customer).Post("/new-ticket", h.Ticket.Create)

		pages.With(admin).Get("/users", h.Admin.ListUsers)
		pages.With(admin).Delete("/users/{id}", h.Admin.DeleteUser)
		pages.With(admin).Post("/create-agent", h.Admin.CreateAgent)
		pages.With(admin).Get("/analytics", h.Admin.Analytics)
	})

	return r
}
