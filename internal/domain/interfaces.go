package domain

import "context"

// OwnershipSource returns how many units of each symbol are already held.
// Queried once per optimization run.
type OwnershipSource interface {
	GetOwnershipCounts(ctx context.Context) (OwnershipMap, error)
}

// MarketDataProvider retrieves current prices and instrument profiles.
type MarketDataProvider interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetProfile(ctx context.Context, symbol string) (*InstrumentProfile, error)
}

// PricePredictor forecasts the price of a symbol periodDays ahead.
type PricePredictor interface {
	Predict(ctx context.Context, symbol string, periodDays int) (*Forecast, error)
}

// Notifier delivers a rendered message to the user.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
