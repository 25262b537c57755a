// Package handlers provides HTTP handlers for market data lookups.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PriceSource returns the memoized current price of a symbol.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// SymbolSearcher finds ticker symbols matching a free-text query.
type SymbolSearcher interface {
	SearchSymbols(ctx context.Context, query string, limit int) ([]string, error)
}

// MaxSearchLimit caps the limit query parameter.
const MaxSearchLimit = 50

// Handler handles market data HTTP requests
type Handler struct {
	prices    PriceSource
	searcher  SymbolSearcher
	watchlist []string
	log       zerolog.Logger
}

// NewHandler creates a new market data handler. watchlist is the configured
// symbol list served by the watchlist route.
func NewHandler(prices PriceSource, searcher SymbolSearcher, watchlist []string, log zerolog.Logger) *Handler {
	if watchlist == nil {
		watchlist = []string{}
	}
	return &Handler{
		prices:    prices,
		searcher:  searcher,
		watchlist: watchlist,
		log:       log.With().Str("handler", "market").Logger(),
	}
}

type priceResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type stocksResponse struct {
	Stocks []string `json:"stocks"`
}

// HandleGetPrice returns the current price of a symbol
func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	price, err := h.prices.CurrentPrice(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			h.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.log.Warn().Err(err).Str("symbol", symbol).Msg("Price lookup failed")
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, priceResponse{Symbol: symbol, Price: price})
}

// HandleSearch returns symbols matching the q query parameter
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxSearchLimit)
	}

	symbols, err := h.searcher.SearchSymbols(r.Context(), query, limit)
	if err != nil {
		h.log.Warn().Err(err).Str("query", query).Msg("Symbol search failed")
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if symbols == nil {
		symbols = []string{}
	}

	h.writeJSON(w, http.StatusOK, stocksResponse{Stocks: symbols})
}

// HandleWatchlist returns the configured symbol list
func (h *Handler) HandleWatchlist(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, stocksResponse{Stocks: h.watchlist})
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
