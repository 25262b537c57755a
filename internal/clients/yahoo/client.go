// Package yahoo is the market data collaborator backed by go-yfinance.
package yahoo

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/lookup"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/pkg/formulas"
)

// VolatilityPeriod is the history window used to estimate volatility.
const VolatilityPeriod = "1y"

// Client implements domain.MarketDataProvider using go-yfinance.
type Client struct {
	log zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// GetCurrentPrice returns the regular market price, falling back to pre/post
// market prices and then to the info endpoint.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t, err := ticker.New(NormalizeSymbol(symbol))
	if err != nil {
		return 0, fmt.Errorf("failed to create ticker %s: %w", symbol, err)
	}
	defer t.Close()

	quote, err := t.Quote()
	if err == nil && quote != nil {
		if p := firstPositive(quote.RegularMarketPrice, quote.PreMarketPrice, quote.PostMarketPrice); p > 0 {
			return p, nil
		}
	} else if err != nil {
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("Quote failed, trying info")
	}

	info, err := t.Info()
	if err != nil {
		return 0, fmt.Errorf("failed to get info for %s: %w", symbol, err)
	}
	if p := firstPositive(info.CurrentPrice, info.RegularMarketPreviousClose); p > 0 {
		return p, nil
	}
	return 0, fmt.Errorf("no valid price for %s", symbol)
}

// GetProfile returns the slow-moving attributes of an instrument, with
// volatility estimated from one year of daily closes.
func (c *Client) GetProfile(ctx context.Context, symbol string) (*domain.InstrumentProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol = NormalizeSymbol(symbol)
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker %s: %w", symbol, err)
	}
	defer t.Close()

	info, err := t.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to get info for %s: %w", symbol, err)
	}

	closes, err := c.GetCloses(ctx, symbol, VolatilityPeriod)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("No history, volatility unknown")
	}

	return BuildProfile(symbol, info, closes), nil
}

// GetCloses returns daily adjusted closes for period, oldest first.
func (c *Client) GetCloses(ctx context.Context, symbol, period string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := ticker.New(NormalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker %s: %w", symbol, err)
	}
	defer t.Close()

	bars, err := t.History(models.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get historical prices: %w", err)
	}

	closes := make([]float64, 0, len(bars))
	for _, bar := range bars {
		if bar.Close > 0 {
			closes = append(closes, bar.Close)
		}
	}
	return closes, nil
}

// DefaultSearchLimit bounds search results when no limit is given.
const DefaultSearchLimit = 10

// SearchSymbols returns ticker symbols matching query, best match first.
func (c *Client) SearchSymbols(ctx context.Context, query string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit < 1 {
		limit = DefaultSearchLimit
	}

	lookupClient, err := lookup.New(query)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup client: %w", err)
	}
	defer lookupClient.Close()

	results, err := lookupClient.Stock(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}

	symbols := make([]string, 0, len(results))
	for _, r := range results {
		symbols = append(symbols, r.Symbol)
	}
	symbols = UniqueSymbols(symbols)

	c.log.Debug().Str("query", query).Int("results", len(symbols)).Msg("Symbol search")
	return symbols, nil
}

// UniqueSymbols normalizes symbols and drops blanks and repeats, keeping order.
func UniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// BuildProfile maps Yahoo info and closes to a profile. Yahoo does not expose
// fund sector weightings or holdings through info, so an equity is treated as
// fully exposed to its own industry and to itself as a company, and funds are
// left without sector or holding data.
func BuildProfile(symbol string, info *models.Info, closes []float64) *domain.InstrumentProfile {
	profile := &domain.InstrumentProfile{
		Symbol:           symbol,
		Name:             symbol,
		ProductType:      domain.ProductTypeUnknown,
		SectorAllocation: map[string]float64{},
		TopHoldings:      []domain.Holding{},
		Volatility:       formulas.VolatilityFromCloses(closes),
	}
	if info == nil {
		return profile
	}

	if name := firstNonEmpty(info.LongName, info.ShortName); name != "" {
		profile.Name = name
	}
	profile.ProductType = domain.ParseProductType(info.QuoteType)
	profile.DividendYield = NormalizeYield(info.DividendYield)

	if profile.ProductType == domain.ProductTypeEquity {
		if info.Industry != "" {
			profile.SectorAllocation[info.Industry] = 1
		}
		profile.TopHoldings = append(profile.TopHoldings, domain.Holding{Name: profile.Name, Weight: 1})
	}
	return profile
}

// NormalizeYield turns a yield reported either as a fraction or as a
// percentage into a fraction in [0,1).
func NormalizeYield(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		v /= 100
	}
	if v >= 1 {
		return 0
	}
	return v
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ domain.MarketDataProvider = (*Client)(nil)
