/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*   Employees, balances, history
  /api/timesheets/*  Approval webhook
  /api/leave/*       Redemption workflow
  /api/cron/*        External scheduler entry points
  /api/holidays/*    Bank holiday admin
  /api/admin/*       Sweep audit trail
  /api/scenarios/*   Demo data loaders (development only)
  /health, /metrics  Operational probes

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/toild/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/toil/history", h.GetHistory)
			r.Get("/{id}/toil/expiring", h.GetExpiring)
			r.Get("/{id}/leave", h.ListEmployeeLeave)
		})

		// Timesheet routes
		r.Route("/timesheets", func(r chi.Router) {
			r.Post("/{id}/approve", h.ApproveTimesheet)
		})

		// Leave redemption routes
		r.Route("/leave", func(r chi.Router) {
			r.Post("/", h.SubmitLeave)
			r.Get("/pending", h.ListPendingLeave)
			r.Post("/{id}/approve", h.ApproveLeave)
			r.Post("/{id}/reject", h.RejectLeave)
			r.Post("/{id}/cancel", h.CancelLeave)
		})

		// Cron routes (external scheduler entry points)
		r.Route("/cron", func(r chi.Router) {
			r.Post("/expire-toil", h.ExpireToil)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/sweeps", h.ListSweepRuns)
		})

		// Demo scenario routes (development only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Operational probes
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(h.Metrics.Registry, promhttp.HandlerOpts{}))

	return r
}
