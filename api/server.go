/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Latency histogram by route pattern (when configured)
  6. CORS:       Cross-origin requests for the office frontend

ROUTE GROUPS:
  /api/scopes/*                   Scope registry and everything scoped
  /api/staff, /api/rates          Directory and rate catalog
  /api/staff-settlements/clear    Batch clearance (spans scopes)
  /api/scenarios/*                Demo data
  /metrics                        Prometheus scrape endpoint

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

// NewRouter creates a new router with all routes configured. An empty
// origins list falls back to the local dev frontends.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/scopes", func(r chi.Router) {
			r.Get("/", h.ListScopes)
			r.Post("/", h.CreateScope)

			r.Route("/{scopeID}", func(r chi.Router) {
				r.Post("/activate", h.ActivateScope)
				r.Get("/summary", h.Summary)
				r.Get("/report.xlsx", h.Report)
				r.Get("/entries", h.ListEntries)

				r.Route("/bundles", func(r chi.Router) {
					r.Get("/", h.ListBundles)
					r.Post("/", h.CreateBundle)
					r.Post("/import", h.ImportBundles)
					r.Post("/{id}/retire", h.RetireBundle)
				})

				r.Route("/distributions", func(r chi.Router) {
					r.Get("/", h.ListDistributions)
					r.Post("/", h.Distribute)
					r.Post("/imported", h.DistributeImported)
					r.Post("/import", h.ImportDistributions)
					r.Get("/{id}", h.GetDistribution)
					r.Put("/{id}", h.EditDistribution)
					r.Post("/{id}/cancel", h.CancelDistribution)
					r.Post("/{id}/settle", h.SettleDistribution)
					r.Post("/{id}/unsettle", h.UnsettleDistribution)
				})

				r.Route("/staff-settlements", func(r chi.Router) {
					r.Get("/", h.ListStaffSettlements)
					r.Post("/", h.RecordStaffSettlement)
					r.Get("/expected", h.ExpectedCash)
				})
			})
		})

		r.Route("/staff", func(r chi.Router) {
			r.Get("/", h.ListStaff)
			r.Post("/", h.CreateStaff)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.ListRates)
			r.Post("/", h.CreateRate)
			r.Put("/{id}", h.UpdateRate)
		})

		r.Post("/staff-settlements/clear", h.ClearStaffSettlements)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
