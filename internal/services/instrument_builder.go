// Package services assembles instrument records from market data and forecasts.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/allocator/internal/clientdata"
	"github.com/aristath/allocator/internal/domain"
)

// DefaultParallelism bounds concurrent symbol lookups when none is configured.
const DefaultParallelism = 8

// InstrumentBuilder turns symbols into instrument records. Prices, profiles
// and forecasts are memoized in the client data store; concurrent requests
// for the same forecast share one upstream call.
type InstrumentBuilder struct {
	market      domain.MarketDataProvider
	predictor   domain.PricePredictor
	memo        clientdata.Store
	parallelism int
	forecasts   singleflight.Group
	now         func() time.Time
	log         zerolog.Logger
}

// NewInstrumentBuilder creates a builder. memo may be nil to disable memoization.
func NewInstrumentBuilder(
	market domain.MarketDataProvider,
	predictor domain.PricePredictor,
	memo clientdata.Store,
	parallelism int,
	log zerolog.Logger,
) *InstrumentBuilder {
	if parallelism < 1 {
		parallelism = DefaultParallelism
	}
	return &InstrumentBuilder{
		market:      market,
		predictor:   predictor,
		memo:        memo,
		parallelism: parallelism,
		now:         time.Now,
		log:         log.With().Str("service", "instrument_builder").Logger(),
	}
}

// ForecastKey identifies a forecast made on date for symbol and period.
func ForecastKey(date time.Time, symbol string, periodDays int) string {
	return fmt.Sprintf("%s__%s__%d", date.Format("2006-01-02"), symbol, periodDays)
}

// Build returns one instrument per distinct symbol, in input order. Symbols
// whose data cannot be loaded are skipped with a warning. Only cancellation
// of ctx is reported as an error.
func (b *InstrumentBuilder) Build(ctx context.Context, symbols []string, periodDays int) ([]domain.Instrument, error) {
	symbols = normalizeSymbols(symbols)

	results := make([]*domain.Instrument, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inst, err := b.build(gctx, symbol, periodDays)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol")
				return nil
			}
			results[i] = inst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("instrument build cancelled: %w", err)
	}

	instruments := make([]domain.Instrument, 0, len(symbols))
	for _, inst := range results {
		if inst != nil {
			instruments = append(instruments, *inst)
		}
	}

	b.log.Info().
		Int("requested", len(symbols)).
		Int("built", len(instruments)).
		Int("period_days", periodDays).
		Msg("Instruments built")

	return instruments, nil
}

func (b *InstrumentBuilder) build(ctx context.Context, symbol string, periodDays int) (*domain.Instrument, error) {
	price, err := b.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	profile, err := b.Profile(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	forecast, err := b.Forecast(ctx, symbol, periodDays)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	return &domain.Instrument{
		Symbol:           symbol,
		Name:             profile.Name,
		ProductType:      profile.ProductType,
		CurrentPrice:     price,
		PredictedPrice:   forecast.Price,
		PredictedLower:   forecast.Lower,
		PredictedUpper:   forecast.Upper,
		DividendYield:    profile.DividendYield,
		ExpenseRatio:     profile.ExpenseRatio,
		Volatility:       profile.Volatility,
		SectorAllocation: profile.SectorAllocation,
		TopHoldings:      profile.TopHoldings,
	}, nil
}

// CurrentPrice returns the memoized or freshly fetched price of symbol.
func (b *InstrumentBuilder) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return memoized(ctx, b, clientdata.TablePrices, symbol, clientdata.TTLCurrentPrice, func() (float64, error) {
		return b.market.GetCurrentPrice(ctx, symbol)
	})
}

// Profile returns the memoized or freshly fetched profile of symbol.
func (b *InstrumentBuilder) Profile(ctx context.Context, symbol string) (*domain.InstrumentProfile, error) {
	return memoized(ctx, b, clientdata.TableProfiles, symbol, clientdata.TTLProfile, func() (*domain.InstrumentProfile, error) {
		return b.market.GetProfile(ctx, symbol)
	})
}

// Forecast returns today's forecast of symbol for periodDays.
func (b *InstrumentBuilder) Forecast(ctx context.Context, symbol string, periodDays int) (*domain.Forecast, error) {
	key := ForecastKey(b.now(), symbol, periodDays)
	v, err, _ := b.forecasts.Do(key, func() (interface{}, error) {
		return memoized(ctx, b, clientdata.TableForecasts, key, clientdata.TTLForecast, func() (*domain.Forecast, error) {
			return b.predictor.Predict(ctx, symbol, periodDays)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Forecast), nil
}

// memoized serves a fresh memo entry, otherwise fetches and stores the value.
// When the fetch fails a stale entry is returned instead, if one exists.
func memoized[T any](ctx context.Context, b *InstrumentBuilder, table, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	var zero T
	if b.memo == nil {
		return fetch()
	}

	if raw, err := b.memo.GetIfFresh(ctx, table, key); err != nil {
		b.log.Debug().Err(err).Str("table", table).Str("key", key).Msg("Memo read failed")
	} else if raw != nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, fetchErr := fetch()
	if fetchErr == nil {
		if err := b.memo.Store(ctx, table, key, v, ttl); err != nil {
			b.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Failed to memoize")
		}
		return v, nil
	}

	if raw, err := b.memo.Get(ctx, table, key); err == nil && raw != nil {
		var stale T
		if err := json.Unmarshal(raw, &stale); err == nil {
			b.log.Warn().Err(fetchErr).Str("table", table).Str("key", key).Msg("Using stale data")
			return stale, nil
		}
	}
	return zero, fetchErr
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
