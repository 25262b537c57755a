package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOwnershipSourceInterface verifies the interface contract at compile time
func TestOwnershipSourceInterface(t *testing.T) {
	var src OwnershipSource = mockOwnershipSource{"VOO": 2}

	counts, err := src.GetOwnershipCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Count("VOO"))
	assert.Equal(t, 0, counts.Count("QQQ"))
}

func TestMarketDataProviderInterface(t *testing.T) {
	var _ MarketDataProvider = (*mockMarketData)(nil)
}

func TestPricePredictorInterface(t *testing.T) {
	var p PricePredictor = &mockPredictor{}

	f, err := p.Predict(context.Background(), "VOO", 30)
	require.NoError(t, err)
	assert.Equal(t, "VOO", f.Symbol)

	_, err = p.Predict(context.Background(), "", 30)
	assert.Error(t, err)
}

func TestNotifierInterface(t *testing.T) {
	var _ Notifier = (*mockNotifier)(nil)
}

type mockOwnershipSource OwnershipMap

func (m mockOwnershipSource) GetOwnershipCounts(context.Context) (OwnershipMap, error) {
	return OwnershipMap(m), nil
}

type mockMarketData struct{}

func (m *mockMarketData) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return 10, nil
}

func (m *mockMarketData) GetProfile(ctx context.Context, symbol string) (*InstrumentProfile, error) {
	return &InstrumentProfile{Symbol: symbol}, nil
}

type mockPredictor struct{}

func (m *mockPredictor) Predict(ctx context.Context, symbol string, periodDays int) (*Forecast, error) {
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	return &Forecast{Symbol: symbol, Price: 11}, nil
}

type mockNotifier struct{}

func (m *mockNotifier) Notify(ctx context.Context, message string) error {
	return nil
}
