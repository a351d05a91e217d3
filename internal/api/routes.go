package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Get("/days", h.ListDays)
			r.Route("/days/{date}", func(r chi.Router) {
				r.Use(DateMiddleware)
				r.Get("/", h.GetDay)
				r.Put("/", h.PutDay)
				r.Post("/annotation", h.RequestAnnotation)
				r.Get("/transactions", h.ListTransactions)
				r.Post("/transactions", h.AddTransaction)
			})
			r.Delete("/transactions/{id}", h.DeleteTransaction)

			r.Get("/goal", h.GetGoal)
			r.Put("/goal", h.PutGoal)
			r.Get("/trend", h.Trend)
			r.Post("/sync", h.Sync)
		})
	})

	return r
}
