// Package predictor provides price forecasts: an HTTP client for the external
// prediction service and a local trend extrapolation used as a fallback.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
)

// ServiceResponse is the standard response format from the prediction service
type ServiceResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

type predictRequest struct {
	Symbol     string `json:"symbol"`
	PeriodDays int    `json:"period_days"`
}

type predictData struct {
	Price float64  `json:"price"`
	Lower *float64 `json:"lower"`
	Upper *float64 `json:"upper"`
}

// Client is an HTTP client for the prediction service
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new prediction service client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
		log: log.With().Str("client", "predictor").Logger(),
	}
}

// Predict asks the service for the price of symbol periodDays from now.
func (c *Client) Predict(ctx context.Context, symbol string, periodDays int) (*domain.Forecast, error) {
	body, err := json.Marshal(predictRequest{Symbol: symbol, PeriodDays: periodDays})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("prediction service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var envelope ServiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !envelope.Success {
		msg := "unknown error"
		if envelope.Error != nil {
			msg = *envelope.Error
		}
		return nil, fmt.Errorf("prediction service error: %s", msg)
	}

	var data predictData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse prediction: %w", err)
	}
	if !(data.Price > 0) {
		return nil, fmt.Errorf("prediction service returned invalid price %v for %s", data.Price, symbol)
	}

	c.log.Debug().
		Str("symbol", symbol).
		Int("period_days", periodDays).
		Float64("price", data.Price).
		Dur("took", time.Since(start)).
		Msg("Forecast received")

	return &domain.Forecast{
		Symbol:     symbol,
		Price:      data.Price,
		Lower:      data.Lower,
		Upper:      data.Upper,
		PeriodDays: periodDays,
	}, nil
}

var _ domain.PricePredictor = (*Client)(nil)
