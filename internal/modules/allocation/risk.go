package allocation

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/allocator/internal/domain"
)

// Risk model constants
const (
	SectorCapThreshold      = 0.40 // single-sector exposure above which the cap penalty fires
	SectorCapPenalty        = 10.0
	OverlapCompanyThreshold = 0.05 // company exposure counted as material
	OverlapCountPenalty     = 0.01
)

// RiskWeights blends the three risk scores into one.
type RiskWeights struct {
	Volatility float64 `json:"volatility"`
	Sector     float64 `json:"sector"`
	Overlap    float64 `json:"overlap"`
}

// DefaultRiskWeights returns the reference blend.
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{Volatility: 0.25, Sector: 0.40, Overlap: 0.35}
}

// RiskScores holds every risk figure for one allocation.
type RiskScores struct {
	Volatility float64 `json:"volatility" msgpack:"volatility"`
	Sector     float64 `json:"sector_concentration" msgpack:"sector_concentration"`
	Overlap    float64 `json:"holding_overlap" msgpack:"holding_overlap"`
	Blended    float64 `json:"blended" msgpack:"blended"`
}

// exposure is one instrument's fraction in a sector or company, addressed by
// the model-wide index of that sector or company.
type exposure struct {
	index    int
	fraction float64
}

// RiskModel scores candidate allocations over a fixed instrument list. It is
// read-only after construction and safe for concurrent use.
type RiskModel struct {
	prices       []float64
	volatilities []float64
	sectors      [][]exposure
	companies    [][]exposure
	numSectors   int
	numCompanies int
	weights      RiskWeights
}

// NewRiskModel indexes the sector and holding data of instruments.
func NewRiskModel(instruments []domain.Instrument, weights RiskWeights) *RiskModel {
	m := &RiskModel{
		prices:       make([]float64, len(instruments)),
		volatilities: make([]float64, len(instruments)),
		sectors:      make([][]exposure, len(instruments)),
		companies:    make([][]exposure, len(instruments)),
		weights:      weights,
	}

	sectorIndex := make(map[string]int)
	companyIndex := make(map[string]int)

	for i, inst := range instruments {
		if ValidateInstrument(inst) == nil {
			m.prices[i] = inst.CurrentPrice
		}
		if inst.Volatility > 0 {
			m.volatilities[i] = inst.Volatility
		}

		names := make([]string, 0, len(inst.SectorAllocation))
		for name := range inst.SectorAllocation {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !(inst.SectorAllocation[name] > 0) {
				continue
			}
			m.sectors[i] = append(m.sectors[i], exposure{
				index:    indexOf(sectorIndex, name),
				fraction: inst.SectorAllocation[name],
			})
		}

		for _, h := range inst.TopHoldings {
			if !(h.Weight > 0) {
				continue
			}
			m.companies[i] = append(m.companies[i], exposure{
				index:    indexOf(companyIndex, h.Name),
				fraction: h.Weight,
			})
		}
	}

	m.numSectors = len(sectorIndex)
	m.numCompanies = len(companyIndex)
	return m
}

func indexOf(index map[string]int, name string) int {
	if i, ok := index[name]; ok {
		return i
	}
	i := len(index)
	index[name] = i
	return i
}

// values returns the money held in each instrument and the total.
func (m *RiskModel) values(shares []int) ([]float64, float64) {
	values := make([]float64, len(m.prices))
	for i := range values {
		if i < len(shares) && shares[i] > 0 {
			values[i] = float64(shares[i]) * m.prices[i]
		}
	}
	return values, floats.Sum(values)
}

// VolatilityRisk is the value-weighted mean volatility of the held instruments.
func (m *RiskModel) VolatilityRisk(shares []int) float64 {
	values, total := m.values(shares)
	if total <= 0 {
		return 0
	}
	return stat.Mean(m.volatilities, values)
}

// SectorConcentrationRisk is the Herfindahl index of portfolio sector exposure
// plus a penalty once any sector exceeds SectorCapThreshold.
func (m *RiskModel) SectorConcentrationRisk(shares []int) float64 {
	exp := m.aggregate(shares, m.sectors, m.numSectors)
	if len(exp) == 0 {
		return 0
	}
	hhi := floats.Dot(exp, exp)
	excess := floats.Max(exp) - SectorCapThreshold
	if excess > 0 {
		hhi += SectorCapPenalty * excess
	}
	return hhi
}

// HoldingOverlapRisk scores company-level exposure across funds: the largest
// single company exposure, a small charge per material company and the
// Herfindahl index of all company exposures.
func (m *RiskModel) HoldingOverlapRisk(shares []int) float64 {
	exp := m.aggregate(shares, m.companies, m.numCompanies)
	if len(exp) == 0 {
		return 0
	}
	material := 0
	for _, e := range exp {
		if e > OverlapCompanyThreshold {
			material++
		}
	}
	return floats.Max(exp) + OverlapCountPenalty*float64(material) + floats.Dot(exp, exp)
}

// Score computes all three scores and their blend.
func (m *RiskModel) Score(shares []int) RiskScores {
	s := RiskScores{
		Volatility: m.VolatilityRisk(shares),
		Sector:     m.SectorConcentrationRisk(shares),
		Overlap:    m.HoldingOverlapRisk(shares),
	}
	s.Blended = m.weights.Volatility*s.Volatility + m.weights.Sector*s.Sector + m.weights.Overlap*s.Overlap
	return s
}

// aggregate spreads every held instrument's exposures over the portfolio,
// weighted by the instrument's fraction of total value. It returns nil for an
// empty portfolio.
func (m *RiskModel) aggregate(shares []int, per [][]exposure, size int) []float64 {
	values, total := m.values(shares)
	if total <= 0 || size == 0 {
		return nil
	}
	out := make([]float64, size)
	for i, v := range values {
		if v == 0 {
			continue
		}
		w := v / total
		for _, e := range per[i] {
			out[e.index] += w * e.fraction
		}
	}
	return out
}
