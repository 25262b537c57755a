package predictor

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/pkg/formulas"
)

// Trend predictor parameters
const (
	TrendHistoryPeriod = "6mo"
	TrendWindow        = 20 // closes used to fit the trend line
)

// CloseSource supplies daily closes, oldest first.
type CloseSource interface {
	GetCloses(ctx context.Context, symbol, period string) ([]float64, error)
}

// TrendPredictor extrapolates the recent linear trend of daily closes. The
// band is one standard deviation of the annualized volatility scaled to the
// forecast horizon.
type TrendPredictor struct {
	source CloseSource
	log    zerolog.Logger
}

// NewTrendPredictor creates a trend predictor over source.
func NewTrendPredictor(source CloseSource, log zerolog.Logger) *TrendPredictor {
	return &TrendPredictor{
		source: source,
		log:    log.With().Str("component", "trend_predictor").Logger(),
	}
}

// Predict projects the closes of symbol periodDays trading days ahead.
func (p *TrendPredictor) Predict(ctx context.Context, symbol string, periodDays int) (*domain.Forecast, error) {
	closes, err := p.source.GetCloses(ctx, symbol, TrendHistoryPeriod)
	if err != nil {
		return nil, fmt.Errorf("failed to load closes for %s: %w", symbol, err)
	}
	return TrendForecast(symbol, closes, periodDays)
}

// TrendForecast builds a forecast from closes without any I/O.
func TrendForecast(symbol string, closes []float64, periodDays int) (*domain.Forecast, error) {
	if len(closes) == 0 {
		return nil, fmt.Errorf("no closes for %s", symbol)
	}
	if periodDays < 0 {
		periodDays = 0
	}

	price := formulas.ProjectTrend(closes, TrendWindow, periodDays)
	if !(price > 0) {
		return nil, fmt.Errorf("trend projection for %s is not positive", symbol)
	}

	f := &domain.Forecast{Symbol: symbol, Price: price, PeriodDays: periodDays}
	if vol := formulas.VolatilityFromCloses(closes); vol > 0 {
		spread := price * vol * math.Sqrt(float64(periodDays)/formulas.TradingDaysPerYear)
		lower := math.Max(0, price-spread)
		upper := price + spread
		f.Lower = &lower
		f.Upper = &upper
	}
	return f, nil
}

// FallbackPredictor asks primary first and fallback when primary fails.
type FallbackPredictor struct {
	primary  domain.PricePredictor
	fallback domain.PricePredictor
	log      zerolog.Logger
}

// NewFallbackPredictor chains two predictors.
func NewFallbackPredictor(primary, fallback domain.PricePredictor, log zerolog.Logger) *FallbackPredictor {
	return &FallbackPredictor{
		primary:  primary,
		fallback: fallback,
		log:      log.With().Str("component", "predictor").Logger(),
	}
}

// Predict implements domain.PricePredictor.
func (p *FallbackPredictor) Predict(ctx context.Context, symbol string, periodDays int) (*domain.Forecast, error) {
	f, err := p.primary.Predict(ctx, symbol, periodDays)
	if err == nil {
		return f, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	p.log.Warn().Err(err).Str("symbol", symbol).Msg("Prediction service failed, using trend fallback")
	return p.fallback.Predict(ctx, symbol, periodDays)
}

var (
	_ domain.PricePredictor = (*TrendPredictor)(nil)
	_ domain.PricePredictor = (*FallbackPredictor)(nil)
)
