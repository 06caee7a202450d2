/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:        Request logging
  2. Recoverer:     Panic recovery (500 instead of crash)
  3. RequestID:     Unique ID per request for tracing
  4. CORS:          Cross-origin requests for frontend
  5. RateLimiter:   Per-IP token bucket
  6. RequireSession: Cookie auth (data routes only)

ROUTE GROUPS:
  Public:   /api/login, /api/cron/charges (bearer token inside handler)
  Session:  everything else under /api

SEE ALSO:
  - handlers.go: Handler implementations
  - session.go: Session cookie middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, limiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/cron/charges", h.TriggerBillingRun)

		// Session-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(RequireSession)

			r.Route("/properties", func(r chi.Router) {
				r.Get("/", h.ListProperties)
				r.Post("/", h.CreateProperty)
				r.Get("/{id}", h.GetProperty)
			})

			r.Route("/units", func(r chi.Router) {
				r.Get("/", h.ListUnits)
				r.Post("/", h.CreateUnit)
			})

			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", h.ListTenants)
				r.Post("/", h.CreateTenant)
			})

			r.Route("/leases", func(r chi.Router) {
				r.Get("/", h.ListLeases)
				r.Post("/", h.CreateLease)
				r.Get("/{id}", h.GetLease)
				r.Post("/{id}/activate", h.ActivateLease)
				r.Post("/{id}/end", h.EndLease)
				r.Get("/{id}/arrears", h.GetLeaseArrears)
			})

			r.Route("/charges", func(r chi.Router) {
				r.Get("/", h.ListCharges)
				r.Post("/", h.CreateCharge)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/", h.ListPayments)
				r.Post("/", h.CreatePayment)
			})

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", h.ListExpenses)
				r.Post("/", h.CreateExpense)
			})

			r.Get("/dashboard/stats", h.GetDashboardStats)
			r.Post("/extract", h.ExtractContract)
		})
	})

	return r
}
