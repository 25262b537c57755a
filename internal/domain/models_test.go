package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnershipMap_Count(t *testing.T) {
	var nilMap OwnershipMap
	assert.Equal(t, 0, nilMap.Count("VOO"))

	m := OwnershipMap{"VOO": 5, "BAD": -3}
	assert.Equal(t, 5, m.Count("VOO"))
	assert.Equal(t, 0, m.Count("QQQ"), "missing symbol counts as zero")
	assert.Equal(t, 0, m.Count("BAD"), "negative counts are clamped")
}

func TestParseProductType(t *testing.T) {
	assert.Equal(t, ProductTypeETF, ParseProductType("etf"))
	assert.Equal(t, ProductTypeEquity, ParseProductType(" EQUITY "))
	assert.Equal(t, ProductTypeMutualFund, ParseProductType("MUTUALFUND"))
	assert.Equal(t, ProductTypeUnknown, ParseProductType("CRYPTOCURRENCY"))
}

func TestInstrument_IsGrowing(t *testing.T) {
	assert.True(t, Instrument{CurrentPrice: 10, PredictedPrice: 10}.IsGrowing())
	assert.True(t, Instrument{CurrentPrice: 10, PredictedPrice: 12}.IsGrowing())
	assert.False(t, Instrument{CurrentPrice: 10, PredictedPrice: 9}.IsGrowing())
}

func TestStockLimit_Validate(t *testing.T) {
	assert.NoError(t, CommonPriceLimit(50).Validate())
	assert.NoError(t, StockLimit{Type: StockLimitCount, Limits: []float64{1, 2}}.Validate())
	assert.Error(t, StockLimit{Type: "WEIGHT", Limits: []float64{1}}.Validate())
	assert.Error(t, StockLimit{Type: StockLimitPercent}.Validate())
}
