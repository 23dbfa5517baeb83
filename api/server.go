/*
server.go - Router and middleware configuration

PURPOSE:
  Wires URLs to handlers with chi. Middleware: request logging, panic
  recovery, request IDs, CORS for the browser dashboard.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Admin-Token"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/stocks", func(r chi.Router) {
			r.Get("/", h.GetStocks)
			r.Post("/filled", h.AddFilled)
			r.Post("/empty", h.AddEmpty)
			r.Get("/events", h.ListStockEvents)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.CreateSale)
		})

		r.Get("/reports/summary", h.GetSummary)
		r.Get("/ledger/verify", h.VerifyLedger)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reset", h.ResetAll)
		})
	})

	return r
}
