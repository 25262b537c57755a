// Package handlers provides HTTP handlers for held positions.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/modules/portfolio"
)

// PositionStore is the subset of the position repository the handlers use.
type PositionStore interface {
	GetAll(ctx context.Context) ([]portfolio.Position, error)
	Upsert(ctx context.Context, symbol string, quantity int) error
	Delete(ctx context.Context, symbol string) error
}

// Handler handles position HTTP requests
type Handler struct {
	positions PositionStore
	log       zerolog.Logger
}

// NewHandler creates a new position handler
func NewHandler(positions PositionStore, log zerolog.Logger) *Handler {
	return &Handler{
		positions: positions,
		log:       log.With().Str("handler", "positions").Logger(),
	}
}

type updatePositionRequest struct {
	Quantity *int `json:"quantity"`
}

// HandleGetPositions returns every held position
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.GetAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list positions")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, positions)
}

// HandleUpdatePosition sets the held quantity of a symbol
func (h *Handler) HandleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	symbol := portfolio.NormalizeSymbol(chi.URLParam(r, "symbol"))

	var req updatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == nil {
		h.writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	if *req.Quantity < 0 {
		h.writeError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	if err := h.positions.Upsert(r.Context(), symbol, *req.Quantity); err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to update position")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":   symbol,
		"quantity": *req.Quantity,
	})
}

// HandleDeletePosition removes a position
func (h *Handler) HandleDeletePosition(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if err := h.positions.Delete(r.Context(), symbol); err != nil {
		if errors.Is(err, portfolio.ErrPositionNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
