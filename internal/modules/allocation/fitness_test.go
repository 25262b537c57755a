package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/evolution"
)

func TestMode_Weights(t *testing.T) {
	assert.Equal(t, evolution.Weights{-1, 1, 1}, ModeRiskAware.Weights())
	assert.Equal(t, evolution.Weights{0, 1, 0}, ModeProfitOnly.Weights())

	mode, err := ParseMode("profit_only")
	assert.NoError(t, err)
	assert.Equal(t, ModeProfitOnly, mode)

	_, err = ParseMode("pareto")
	assert.Error(t, err)
}

func TestFigures(t *testing.T) {
	inst := domain.Instrument{CurrentPrice: 10, PredictedPrice: 12, DividendYield: 0.05, ExpenseRatio: 0.1}
	f := Figures(inst, 2)

	assert.InDelta(t, 20, f.Cost, 1e-12)
	assert.InDelta(t, 4, f.CapitalGain, 1e-12)
	assert.InDelta(t, 1, f.DividendIncome, 1e-12)
	assert.InDelta(t, 0.5, f.Fee, 1e-12)
	assert.InDelta(t, 4.5, f.NetProfit, 1e-12)
	assert.InDelta(t, f.CapitalGain+f.DividendIncome-f.Fee, f.NetProfit, 1e-12)

	assert.Equal(t, LineFigures{}, Figures(inst, 0))
}

func TestFitnessEvaluator_Infeasible(t *testing.T) {
	instruments := []domain.Instrument{{Symbol: "A", CurrentPrice: 10, PredictedPrice: 100}}
	risk := NewRiskModel(instruments, DefaultRiskWeights())

	for _, mode := range Modes {
		eval := NewFitnessEvaluator(instruments, nil, 25, mode, risk)
		assert.Equal(t, InfeasibleFitness, eval.Evaluate([]int{3}))
		assert.False(t, eval.Feasible([]int{3}))

		feasible := eval.Evaluate([]int{0})
		assert.True(t, mode.Weights().Better(feasible, InfeasibleFitness),
			"the empty allocation must beat any over-budget allocation")
	}
}

func TestFitnessEvaluator_Objectives(t *testing.T) {
	instruments := []domain.Instrument{
		{Symbol: "A", CurrentPrice: 10, PredictedPrice: 12, Volatility: 0.3, SectorAllocation: map[string]float64{"x": 1}},
		{Symbol: "B", CurrentPrice: 5, PredictedPrice: 6, DividendYield: 0.1},
	}
	risk := NewRiskModel(instruments, DefaultRiskWeights())
	ownership := domain.OwnershipMap{"A": 1}

	aware := NewFitnessEvaluator(instruments, ownership, 30, ModeRiskAware, risk)
	f := aware.Evaluate([]int{2, 1})

	assert.InDelta(t, 5, f[0], 1e-12)
	// A: 0.5 * 4, B: 1 * (1 + 0.5)
	assert.InDelta(t, 3.5, f[1], 1e-12)
	assert.InDelta(t, -risk.Score([]int{2, 1}).Blended, f[2], 1e-12)
	assert.Less(t, f[2], 0.0)

	profitOnly := NewFitnessEvaluator(instruments, ownership, 30, ModeProfitOnly, risk)
	g := profitOnly.Evaluate([]int{2, 1})
	assert.InDelta(t, f[1], g[1], 1e-12)
	assert.Zero(t, g[2])
}

func TestFitnessEvaluator_ProfitMonotonicInForecast(t *testing.T) {
	shares := []int{3, 1}
	prev := -1e18
	for _, predicted := range []float64{5, 8, 10, 10.5, 20} {
		instruments := []domain.Instrument{
			{Symbol: "A", CurrentPrice: 10, PredictedPrice: predicted, ExpenseRatio: 0.02},
			{Symbol: "B", CurrentPrice: 7, PredictedPrice: 7},
		}
		eval := NewFitnessEvaluator(instruments, nil, 100, ModeProfitOnly, NewRiskModel(instruments, DefaultRiskWeights()))
		profit := eval.NetProfit(shares)
		assert.GreaterOrEqual(t, profit, prev)
		prev = profit
	}
}

func TestFitnessEvaluator_ZeroBudget(t *testing.T) {
	instruments := []domain.Instrument{{Symbol: "A", CurrentPrice: 1, PredictedPrice: 2}}
	eval := NewFitnessEvaluator(instruments, nil, 0, ModeRiskAware, NewRiskModel(instruments, DefaultRiskWeights()))

	assert.Equal(t, InfeasibleFitness, eval.Evaluate([]int{1}))
	assert.Equal(t, evolution.Fitness{0, 0, 0}, eval.Evaluate([]int{0}))
}
