package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/search", h.HandleSearch)
		r.Get("/watchlist", h.HandleWatchlist)
		r.Get("/{symbol}/price", h.HandleGetPrice)
	})
}
