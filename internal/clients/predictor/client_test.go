package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
)

func TestClient_Predict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "VOO", req.Symbol)
		assert.Equal(t, 30, req.PeriodDays)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"price":540.5,"lower":520,"upper":560}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", zerolog.Nop())
	f, err := client.Predict(context.Background(), "VOO", 30)
	require.NoError(t, err)

	assert.Equal(t, "VOO", f.Symbol)
	assert.Equal(t, 540.5, f.Price)
	require.NotNil(t, f.Lower)
	require.NotNil(t, f.Upper)
	assert.Equal(t, 520.0, *f.Lower)
	assert.Equal(t, 560.0, *f.Upper)
	assert.Equal(t, 30, f.PeriodDays)
}

func TestClient_PredictErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `boom`},
		{"service error", http.StatusOK, `{"success":false,"error":"model not trained"}`},
		{"invalid price", http.StatusOK, `{"success":true,"data":{"price":0}}`},
		{"malformed", http.StatusOK, `{"success":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, zerolog.Nop()).Predict(context.Background(), "VOO", 30)
			assert.Error(t, err)
		})
	}
}

type staticCloses struct {
	closes []float64
	err    error
}

func (s staticCloses) GetCloses(ctx context.Context, symbol, period string) ([]float64, error) {
	return s.closes, s.err
}

func risingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
		if i%2 == 1 {
			closes[i] += 0.5
		}
	}
	return closes
}

func TestTrendPredictor(t *testing.T) {
	p := NewTrendPredictor(staticCloses{closes: risingCloses(60)}, zerolog.Nop())

	f, err := p.Predict(context.Background(), "QQQ", 30)
	require.NoError(t, err)
	assert.Greater(t, f.Price, 159.0, "a rising series projects upwards")
	require.NotNil(t, f.Lower)
	require.NotNil(t, f.Upper)
	assert.Less(t, *f.Lower, f.Price)
	assert.Greater(t, *f.Upper, f.Price)

	_, err = NewTrendPredictor(staticCloses{err: errors.New("offline")}, zerolog.Nop()).Predict(context.Background(), "QQQ", 30)
	assert.Error(t, err)

	_, err = TrendForecast("QQQ", nil, 30)
	assert.Error(t, err)
}

type stubPredictor struct {
	forecast *domain.Forecast
	err      error
	calls    int
}

func (s *stubPredictor) Predict(ctx context.Context, symbol string, periodDays int) (*domain.Forecast, error) {
	s.calls++
	return s.forecast, s.err
}

func TestFallbackPredictor(t *testing.T) {
	primary := &stubPredictor{forecast: &domain.Forecast{Symbol: "A", Price: 10}}
	fallback := &stubPredictor{forecast: &domain.Forecast{Symbol: "A", Price: 9}}
	p := NewFallbackPredictor(primary, fallback, zerolog.Nop())

	f, err := p.Predict(context.Background(), "A", 30)
	require.NoError(t, err)
	assert.Equal(t, 10.0, f.Price)
	assert.Equal(t, 0, fallback.calls)

	primary.err = errors.New("unavailable")
	f, err = p.Predict(context.Background(), "A", 30)
	require.NoError(t, err)
	assert.Equal(t, 9.0, f.Price)
	assert.Equal(t, 1, fallback.calls)
}
