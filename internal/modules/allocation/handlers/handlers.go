// Package handlers provides the HTTP handler for synchronous optimization.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/evolution"
	"github.com/aristath/allocator/internal/modules/allocation"
)

// Optimizer is the subset of the allocation service the handler uses.
type Optimizer interface {
	Optimize(ctx context.Context, instruments []domain.Instrument, budget, maxPerInstrumentBudget float64) (*allocation.Report, error)
	OptimizeWithLimit(ctx context.Context, instruments []domain.Instrument, budget float64, limit domain.StockLimit) (*allocation.Report, error)
}

// Handler handles allocation HTTP requests
type Handler struct {
	optimizer Optimizer
	log       zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(optimizer Optimizer, log zerolog.Logger) *Handler {
	return &Handler{
		optimizer: optimizer,
		log:       log.With().Str("handler", "allocation").Logger(),
	}
}

// OptimizeRequest is the body of POST /optimize. StockLimit, when present,
// replaces MaxPerInstrumentBudget.
type OptimizeRequest struct {
	Instruments            []domain.Instrument `json:"instruments"`
	Budget                 float64             `json:"budget"`
	MaxPerInstrumentBudget float64             `json:"max_per_instrument_budget"`
	StockLimit             *domain.StockLimit  `json:"stock_limit,omitempty"`
}

// HandleOptimize runs the optimizer on the posted instruments and returns the
// report. ?format=text returns the rendered text report instead of JSON and
// ?mode=risk_aware|profit_only keeps only that mode's recommendation.
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var mode allocation.Mode
	if name := r.URL.Query().Get("mode"); name != "" {
		parsed, err := allocation.ParseMode(name)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = parsed
	}

	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Budget < 0 {
		h.writeError(w, http.StatusBadRequest, "budget must not be negative")
		return
	}

	var (
		report *allocation.Report
		err    error
	)
	if req.StockLimit != nil {
		report, err = h.optimizer.OptimizeWithLimit(r.Context(), req.Instruments, req.Budget, *req.StockLimit)
	} else {
		report, err = h.optimizer.Optimize(r.Context(), req.Instruments, req.Budget, req.MaxPerInstrumentBudget)
	}
	if err != nil {
		h.log.Error().Err(err).Int("instruments", len(req.Instruments)).Msg("Optimization failed")
		h.writeError(w, statusFor(err), err.Error())
		return
	}

	if mode != "" {
		if mr := report.Mode(mode); mr != nil {
			report.Modes = []allocation.ModeReport{*mr}
		}
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := allocation.Render(w, *report); err != nil {
			h.log.Error().Err(err).Msg("Failed to render report")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, evolution.ErrInvalidConfig):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
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
