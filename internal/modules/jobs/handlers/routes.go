package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all job routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.HandleCreateJob)
		r.Get("/", h.HandleListJobs)
		r.Get("/{id}", h.HandleGetJob)
		r.Get("/{id}/result", h.HandleGetResult)
	})
}
