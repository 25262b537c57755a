package allocation

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/allocator/internal/domain"
)

// HardMaxShares caps the share count of any single instrument so the search
// space stays tractable.
const HardMaxShares = 100

var (
	// ErrInvalidInstrument marks an instrument that cannot be bought in this run.
	ErrInvalidInstrument = errors.New("invalid instrument")
	// ErrLimitMismatch is returned when per-instrument limits do not line up with
	// the instrument list.
	ErrLimitMismatch = errors.New("stock limit count does not match instrument count")
)

// ValidateInstrument reports whether inst can take part in a run.
func ValidateInstrument(inst domain.Instrument) error {
	if math.IsNaN(inst.CurrentPrice) || math.IsInf(inst.CurrentPrice, 0) || inst.CurrentPrice <= 0 {
		return fmt.Errorf("%w: %s has price %v", ErrInvalidInstrument, inst.Symbol, inst.CurrentPrice)
	}
	if math.IsNaN(inst.PredictedPrice) || math.IsInf(inst.PredictedPrice, 0) {
		return fmt.Errorf("%w: %s has no usable forecast", ErrInvalidInstrument, inst.Symbol)
	}
	return nil
}

// ShareBounds derives the maximum share count of every instrument from limit.
// Instruments that fail ValidateInstrument get a bound of 0.
func ShareBounds(instruments []domain.Instrument, limit domain.StockLimit, budget float64) ([]int, error) {
	if err := limit.Validate(); err != nil {
		return nil, err
	}
	if limit.Common == nil && len(limit.Limits) != len(instruments) {
		return nil, fmt.Errorf("%w: %d limits for %d instruments", ErrLimitMismatch, len(limit.Limits), len(instruments))
	}

	bounds := make([]int, len(instruments))
	for i, inst := range instruments {
		value := 0.0
		if limit.Common != nil {
			value = *limit.Common
		} else {
			value = limit.Limits[i]
		}
		if ValidateInstrument(inst) != nil {
			continue
		}
		bounds[i] = maxShares(limit.Type, value, inst.CurrentPrice, budget)
	}
	return bounds, nil
}

func maxShares(kind domain.StockLimitType, limit, price, budget float64) int {
	if math.IsNaN(limit) || limit <= 0 {
		return 0
	}

	var n float64
	switch kind {
	case domain.StockLimitCount:
		n = math.Floor(limit)
	case domain.StockLimitPrice:
		n = math.Floor(limit / price)
	case domain.StockLimitPercent:
		if budget <= 0 {
			return 0
		}
		n = math.Floor(budget * limit / 100 / price)
	}

	if n >= HardMaxShares {
		return HardMaxShares
	}
	if n <= 0 {
		return 0
	}
	return int(n)
}
