package domain

import "fmt"

// StockLimitType selects how a StockLimit value is interpreted.
type StockLimitType string

const (
	// StockLimitCount limits the number of shares directly.
	StockLimitCount StockLimitType = "COUNT"
	// StockLimitPrice limits the amount of money spent on one instrument.
	StockLimitPrice StockLimitType = "PRICE"
	// StockLimitPercent limits the share of the budget spent on one instrument.
	StockLimitPercent StockLimitType = "PERCENT"
)

// StockLimit bounds how much of each instrument a run may buy. Common applies
// to every instrument; otherwise Limits[i] applies to instrument i.
type StockLimit struct {
	Type   StockLimitType `json:"type" msgpack:"type"`
	Common *float64       `json:"common_limit,omitempty" msgpack:"common_limit"`
	Limits []float64      `json:"limits,omitempty" msgpack:"limits"`
}

// CommonPriceLimit returns a PRICE limit shared by all instruments.
func CommonPriceLimit(amount float64) StockLimit {
	return StockLimit{Type: StockLimitPrice, Common: &amount}
}

// Validate checks the limit type and that some limit is present.
func (l StockLimit) Validate() error {
	switch l.Type {
	case StockLimitCount, StockLimitPrice, StockLimitPercent:
	default:
		return fmt.Errorf("unknown stock limit type: %q", l.Type)
	}
	if l.Common == nil && l.Limits == nil {
		return fmt.Errorf("stock limit %s has neither a common limit nor per-instrument limits", l.Type)
	}
	return nil
}
