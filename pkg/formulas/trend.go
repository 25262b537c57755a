package formulas

import (
	"github.com/markcheno/go-talib"
)

// TrendSlope returns the per-period slope of the least-squares line fitted to the
// last length closes. Returns nil if there is not enough data.
func TrendSlope(closes []float64, length int) *float64 {
	if length < 2 || len(closes) < length {
		return nil
	}

	slope := talib.LinearRegSlope(closes, length)
	if len(slope) == 0 || isNaN(slope[len(slope)-1]) {
		return nil
	}

	result := slope[len(slope)-1]
	return &result
}

// CalculateSMA calculates the Simple Moving Average of the last length closes.
func CalculateSMA(closes []float64, length int) *float64 {
	if length < 1 || len(closes) < length {
		return nil
	}

	sma := talib.Sma(closes, length)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}

// ProjectTrend extrapolates a close series periods steps ahead from its smoothed
// last value along the fitted trend line. Falls back to the last close when the
// series is too short to fit.
func ProjectTrend(closes []float64, length int, periods int) float64 {
	if len(closes) == 0 {
		return 0
	}
	last := closes[len(closes)-1]

	slope := TrendSlope(closes, length)
	if slope == nil {
		return last
	}

	base := last
	if sma := CalculateSMA(closes, 5); sma != nil {
		base = *sma
	}

	projected := base + *slope*float64(periods)
	if projected < 0 {
		return 0
	}
	return projected
}
