package allocation

import (
	"fmt"
	"math"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/evolution"
)

// Mode selects which objectives drive a run.
type Mode string

const (
	// ModeRiskAware minimizes budget deviation, maximizes profit and minimizes risk.
	ModeRiskAware Mode = "risk_aware"
	// ModeProfitOnly maximizes profit and ignores the other objectives.
	ModeProfitOnly Mode = "profit_only"
)

// Modes lists the run modes in report order.
var Modes = []Mode{ModeRiskAware, ModeProfitOnly}

// Weights returns the objective weights applied to
// (budget deviation, net profit, signed risk).
func (m Mode) Weights() evolution.Weights {
	switch m {
	case ModeProfitOnly:
		return evolution.Weights{0, 1, 0}
	default:
		return evolution.Weights{-1, 1, 1}
	}
}

// ParseMode maps a mode name to a Mode.
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case ModeRiskAware, ModeProfitOnly:
		return Mode(name), nil
	}
	return "", fmt.Errorf("unknown optimization mode: %q", name)
}

// InfeasibleFitness is assigned to allocations that cost more than the budget.
// It loses to every feasible allocation under both modes.
var InfeasibleFitness = evolution.Fitness{1e11, -1e10, -1e11}

// LineFigures is the money breakdown of holding some shares of one instrument.
type LineFigures struct {
	Cost           float64
	CapitalGain    float64
	DividendIncome float64
	Fee            float64
	NetProfit      float64
}

// Figures computes the predicted figures of buying shares of inst. Fee is the
// part of the gross return consumed by the expense ratio, so NetProfit equals
// CapitalGain + DividendIncome - Fee.
func Figures(inst domain.Instrument, shares int) LineFigures {
	if shares <= 0 {
		return LineFigures{}
	}
	n := float64(shares)
	f := LineFigures{
		Cost:           n * inst.CurrentPrice,
		CapitalGain:    n * (inst.PredictedPrice - inst.CurrentPrice),
		DividendIncome: n * inst.CurrentPrice * inst.DividendYield,
	}
	gross := f.CapitalGain + f.DividendIncome
	f.Fee = gross * inst.ExpenseRatio
	f.NetProfit = gross * (1 - inst.ExpenseRatio)
	return f
}

// FitnessEvaluator scores allocations over a fixed instrument list. It holds
// no mutable state and is safe for concurrent use.
type FitnessEvaluator struct {
	instruments     []domain.Instrument
	diversification []float64
	risk            *RiskModel
	budget          float64
	mode            Mode
}

// NewFitnessEvaluator builds an evaluator for one run mode. Ownership may be nil.
func NewFitnessEvaluator(instruments []domain.Instrument, ownership domain.OwnershipMap, budget float64, mode Mode, risk *RiskModel) *FitnessEvaluator {
	symbols := make([]string, len(instruments))
	for i, inst := range instruments {
		symbols[i] = inst.Symbol
	}
	return &FitnessEvaluator{
		instruments:     instruments,
		diversification: DiversificationWeights(ownership, symbols),
		risk:            risk,
		budget:          budget,
		mode:            mode,
	}
}

// Cost returns the total price of an allocation.
func (f *FitnessEvaluator) Cost(shares []int) float64 {
	cost := 0.0
	for i, n := range shares {
		if n > 0 {
			cost += float64(n) * f.instruments[i].CurrentPrice
		}
	}
	return cost
}

// NetProfit returns the ownership-weighted predicted profit of an allocation.
func (f *FitnessEvaluator) NetProfit(shares []int) float64 {
	profit := 0.0
	for i, n := range shares {
		if n > 0 {
			profit += f.diversification[i] * Figures(f.instruments[i], n).NetProfit
		}
	}
	return profit
}

// Feasible reports whether the allocation fits the budget.
func (f *FitnessEvaluator) Feasible(shares []int) bool {
	return f.Cost(shares) <= f.budget
}

// Evaluate returns (budget deviation, net profit, signed risk).
func (f *FitnessEvaluator) Evaluate(shares []int) evolution.Fitness {
	cost := f.Cost(shares)
	if cost > f.budget {
		return InfeasibleFitness
	}

	signedRisk := 0.0
	if f.mode == ModeRiskAware {
		signedRisk = -f.risk.Score(shares).Blended
	}

	return evolution.Fitness{
		math.Abs(f.budget - cost),
		f.NetProfit(shares),
		signedRisk,
	}
}
