package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/allocator/internal/domain"
)

func riskInstruments() []domain.Instrument {
	return []domain.Instrument{
		{
			Symbol: "TECH", CurrentPrice: 10, PredictedPrice: 11, Volatility: 0.2,
			SectorAllocation: map[string]float64{"technology": 0.95, "energy": 0.05},
			TopHoldings:      []domain.Holding{{Name: "Apple", Weight: 0.10}, {Name: "Microsoft", Weight: 0.04}},
		},
		{
			Symbol: "ENRG", CurrentPrice: 30, PredictedPrice: 31, Volatility: 0.4,
			SectorAllocation: map[string]float64{"energy": 0.95},
			TopHoldings:      []domain.Holding{{Name: "Exxon", Weight: 0.08}},
		},
		{
			Symbol: "HLTH", CurrentPrice: 10, PredictedPrice: 11, Volatility: 0.1,
			SectorAllocation: map[string]float64{"healthcare": 0.95},
		},
	}
}

func TestRiskModel_ZeroAllocationScoresZero(t *testing.T) {
	m := NewRiskModel(riskInstruments(), DefaultRiskWeights())
	for _, shares := range [][]int{{0, 0, 0}, nil} {
		s := m.Score(shares)
		assert.Zero(t, s.Volatility)
		assert.Zero(t, s.Sector)
		assert.Zero(t, s.Overlap)
		assert.Zero(t, s.Blended)
	}
}

func TestRiskModel_VolatilityIsValueWeighted(t *testing.T) {
	m := NewRiskModel(riskInstruments(), DefaultRiskWeights())
	// 10 in TECH at 0.2 and 30 in ENRG at 0.4
	assert.InDelta(t, 0.35, m.VolatilityRisk([]int{1, 1, 0}), 1e-12)
	assert.InDelta(t, 0.2, m.VolatilityRisk([]int{7, 0, 0}), 1e-12)
}

func TestRiskModel_SectorConcentration(t *testing.T) {
	m := NewRiskModel(riskInstruments(), DefaultRiskWeights())

	concentrated := m.SectorConcentrationRisk([]int{2, 0, 0})
	// 0.95^2 + 0.05^2 + 10 * (0.95 - 0.40)
	assert.InDelta(t, 0.9025+0.0025+5.5, concentrated, 1e-9)

	split := m.SectorConcentrationRisk([]int{1, 0, 1})
	// technology 0.475, energy 0.025, healthcare 0.475
	assert.InDelta(t, 0.475*0.475*2+0.025*0.025+10*0.075, split, 1e-9)

	assert.Greater(t, concentrated, split)
}

func TestRiskModel_SectorPenaltyOnlyAboveThreshold(t *testing.T) {
	instruments := []domain.Instrument{
		{Symbol: "A", CurrentPrice: 1, SectorAllocation: map[string]float64{"x": 0.4, "y": 0.6}},
		{Symbol: "B", CurrentPrice: 1, SectorAllocation: map[string]float64{"z": 0.4}},
	}
	m := NewRiskModel(instruments, DefaultRiskWeights())
	assert.InDelta(t, 0.16, m.SectorConcentrationRisk([]int{0, 1}), 1e-12)
	assert.InDelta(t, 0.16+0.36+10*0.2, m.SectorConcentrationRisk([]int{1, 0}), 1e-12)
}

func TestRiskModel_HoldingOverlap(t *testing.T) {
	m := NewRiskModel(riskInstruments(), DefaultRiskWeights())

	// Apple 0.10 is material, Microsoft 0.04 is not
	assert.InDelta(t, 0.10+0.01+0.01+0.0016, m.HoldingOverlapRisk([]int{3, 0, 0}), 1e-12)

	// HLTH reports no holdings
	assert.Zero(t, m.HoldingOverlapRisk([]int{0, 0, 4}))
}

func TestRiskModel_OverlapAcrossFunds(t *testing.T) {
	instruments := []domain.Instrument{
		{Symbol: "F1", CurrentPrice: 10, TopHoldings: []domain.Holding{{Name: "Apple", Weight: 0.2}}},
		{Symbol: "F2", CurrentPrice: 10, TopHoldings: []domain.Holding{{Name: "Apple", Weight: 0.2}}},
		{Symbol: "F3", CurrentPrice: 10, TopHoldings: []domain.Holding{{Name: "Nestle", Weight: 0.2}}},
	}
	m := NewRiskModel(instruments, DefaultRiskWeights())

	sameCompany := m.HoldingOverlapRisk([]int{1, 1, 0})
	differentCompany := m.HoldingOverlapRisk([]int{1, 0, 1})
	assert.Greater(t, sameCompany, differentCompany)
}

func TestRiskModel_BlendedAndNonNegative(t *testing.T) {
	m := NewRiskModel(riskInstruments(), DefaultRiskWeights())
	for _, shares := range [][]int{{1, 0, 0}, {0, 3, 1}, {5, 5, 5}, {0, 0, 9}} {
		s := m.Score(shares)
		assert.GreaterOrEqual(t, s.Volatility, 0.0)
		assert.GreaterOrEqual(t, s.Sector, 0.0)
		assert.GreaterOrEqual(t, s.Overlap, 0.0)
		assert.InDelta(t, 0.25*s.Volatility+0.40*s.Sector+0.35*s.Overlap, s.Blended, 1e-12)
	}
}

func TestRiskModel_IgnoresInvalidPrices(t *testing.T) {
	instruments := []domain.Instrument{
		{Symbol: "BAD", CurrentPrice: -1, Volatility: 5, SectorAllocation: map[string]float64{"x": 1}},
	}
	m := NewRiskModel(instruments, DefaultRiskWeights())
	assert.Equal(t, RiskScores{}, m.Score([]int{3}))
}
