// Package domain provides core domain models and collaborator contracts.
package domain

import "strings"

// ProductType represents the type of financial product/instrument
type ProductType string

const (
	// ProductTypeEquity represents individual stocks/shares
	ProductTypeEquity ProductType = "EQUITY"
	// ProductTypeETF represents Exchange Traded Funds
	ProductTypeETF ProductType = "ETF"
	// ProductTypeMutualFund represents mutual funds
	ProductTypeMutualFund ProductType = "MUTUALFUND"
	// ProductTypeUnknown represents unknown type
	ProductTypeUnknown ProductType = "UNKNOWN"
)

// ParseProductType maps a quote type reported by a market data source to a ProductType.
func ParseProductType(quoteType string) ProductType {
	switch strings.ToUpper(strings.TrimSpace(quoteType)) {
	case "EQUITY":
		return ProductTypeEquity
	case "ETF":
		return ProductTypeETF
	case "MUTUALFUND":
		return ProductTypeMutualFund
	default:
		return ProductTypeUnknown
	}
}

// Holding is one company inside a fund. Weight is a fraction of the fund's own value.
type Holding struct {
	Name   string  `json:"name" msgpack:"name"`
	Weight float64 `json:"weight" msgpack:"weight"`
}

// Instrument is the read-only snapshot of one tradable instrument for a single
// optimization run.
//
// PredictedPrice may be below CurrentPrice. DividendYield and ExpenseRatio are
// fractions in [0,1); missing data is 0. SectorAllocation fractions need not
// sum to 1.
type Instrument struct {
	Symbol           string             `json:"symbol" msgpack:"symbol"`
	Name             string             `json:"name,omitempty" msgpack:"name"`
	ProductType      ProductType        `json:"product_type,omitempty" msgpack:"product_type"`
	CurrentPrice     float64            `json:"current_price" msgpack:"current_price"`
	PredictedPrice   float64            `json:"predicted_price" msgpack:"predicted_price"`
	PredictedLower   *float64           `json:"predicted_lower,omitempty" msgpack:"predicted_lower"`
	PredictedUpper   *float64           `json:"predicted_upper,omitempty" msgpack:"predicted_upper"`
	RealizedPrice    float64            `json:"realized_price,omitempty" msgpack:"realized_price"`
	DividendYield    float64            `json:"dividend_yield" msgpack:"dividend_yield"`
	ExpenseRatio     float64            `json:"expense_ratio" msgpack:"expense_ratio"`
	Volatility       float64            `json:"volatility" msgpack:"volatility"`
	SectorAllocation map[string]float64 `json:"sector_allocation,omitempty" msgpack:"sector_allocation"`
	TopHoldings      []Holding          `json:"top_holdings,omitempty" msgpack:"top_holdings"`
}

// IsGrowing reports whether the forecast is at or above the current price.
func (i Instrument) IsGrowing() bool {
	return i.CurrentPrice <= i.PredictedPrice
}

// OwnershipMap maps symbol to the number of units already held.
type OwnershipMap map[string]int

// Count returns the held count for symbol. Missing and negative entries count as 0.
func (m OwnershipMap) Count(symbol string) int {
	if m == nil {
		return 0
	}
	if n := m[symbol]; n > 0 {
		return n
	}
	return 0
}

// Forecast is a point price forecast with an optional uncertainty band.
type Forecast struct {
	Symbol     string   `json:"symbol"`
	Price      float64  `json:"price"`
	Lower      *float64 `json:"lower,omitempty"`
	Upper      *float64 `json:"upper,omitempty"`
	PeriodDays int      `json:"period_days"`
}

// InstrumentProfile holds the slow-moving attributes of an instrument.
type InstrumentProfile struct {
	Symbol           string             `json:"symbol"`
	Name             string             `json:"name"`
	Currency         string             `json:"currency"`
	ProductType      ProductType        `json:"product_type"`
	DividendYield    float64            `json:"dividend_yield"`
	ExpenseRatio     float64            `json:"expense_ratio"`
	Volatility       float64            `json:"volatility"`
	SectorAllocation map[string]float64 `json:"sector_allocation"`
	TopHoldings      []Holding          `json:"top_holdings"`
}
