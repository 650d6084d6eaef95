/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/simulations/*    Savings and credit simulators
  /api/contracts/*      Contract lifecycle
  /api/refunds/*        Refund settlement
  /api/members/*        Per-member views
  /api/settings/*       Bonus settings administration

SECURITY NOTE:
  No authentication middleware. The engine is deployed behind the
  association's gateway, which owns auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
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
		// Simulation routes - nothing persisted
		r.Route("/simulations", func(r chi.Router) {
			r.Post("/savings", h.SimulateSavings)
			r.Post("/credit", h.SimulateCredit)
		})

		// Contract routes
		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", h.CreateContract)
			r.Get("/{id}", h.GetContract)
			r.Get("/{id}/schedule", h.GetSchedule)
			r.Get("/{id}/payments", h.ListPayments)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Post("/{id}/withdrawal", h.RequestWithdrawal)
			r.Get("/{id}/refunds", h.ListRefunds)
			r.Post("/{id}/refunds", h.RecordRefund)
			r.Post("/{id}/rescind", h.Rescind)
		})

		// Refund settlement
		r.Route("/refunds", func(r chi.Router) {
			r.Post("/{id}/settle", h.SettleRefund)
		})

		// Member views
		r.Route("/members", func(r chi.Router) {
			r.Get("/{id}/contracts", h.ListMemberContracts)
		})

		// Settings administration
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.ListSettings)
			r.Post("/", h.CreateSettings)
			r.Post("/{id}/activate", h.ActivateSettings)
		})
	})

	return r
}
