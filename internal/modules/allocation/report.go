package allocation

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/evolution"
)

// LineItem is one instrument in a mode's recommendation.
type LineItem struct {
	Symbol         string  `json:"symbol" msgpack:"symbol"`
	Name           string  `json:"name,omitempty" msgpack:"name"`
	Shares         int     `json:"shares" msgpack:"shares"`
	Price          float64 `json:"price" msgpack:"price"`
	PredictedPrice float64 `json:"predicted_price" msgpack:"predicted_price"`
	Cost           float64 `json:"cost" msgpack:"cost"`
	CapitalGain    float64 `json:"capital_gain" msgpack:"capital_gain"`
	DividendIncome float64 `json:"dividend_income" msgpack:"dividend_income"`
	Fee            float64 `json:"fee" msgpack:"fee"`
	NetProfit      float64 `json:"net_profit" msgpack:"net_profit"`
	RealizedPrice  float64 `json:"realized_price,omitempty" msgpack:"realized_price"`
}

// Totals aggregates a mode's line items. The realized figures are set only
// when every line has a realized price.
type Totals struct {
	Shares         int      `json:"shares" msgpack:"shares"`
	Cost           float64  `json:"cost" msgpack:"cost"`
	BudgetLeft     float64  `json:"budget_left" msgpack:"budget_left"`
	CapitalGain    float64  `json:"capital_gain" msgpack:"capital_gain"`
	DividendIncome float64  `json:"dividend_income" msgpack:"dividend_income"`
	Fee            float64  `json:"fee" msgpack:"fee"`
	NetProfit      float64  `json:"net_profit" msgpack:"net_profit"`
	RealizedValue  *float64 `json:"realized_value,omitempty" msgpack:"realized_value"`
	RealizedProfit *float64 `json:"realized_profit,omitempty" msgpack:"realized_profit"`
}

// ModeReport is the recommendation of one run mode.
type ModeReport struct {
	Mode         Mode                        `json:"mode" msgpack:"mode"`
	NothingToBuy bool                        `json:"nothing_to_buy" msgpack:"nothing_to_buy"`
	Lines        []LineItem                  `json:"lines" msgpack:"lines"`
	Totals       Totals                      `json:"totals" msgpack:"totals"`
	Risk         RiskScores                  `json:"risk" msgpack:"risk"`
	Fitness      []float64                   `json:"fitness,omitempty" msgpack:"fitness"`
	Seed         uint64                      `json:"seed,omitempty" msgpack:"seed"`
	Search       *SearchSummary              `json:"search,omitempty" msgpack:"search"`
	History      []evolution.GenerationStats `json:"history,omitempty" msgpack:"history"`
}

// SearchSummary condenses the per-generation statistics of one run.
type SearchSummary struct {
	Generations int                        `json:"generations" msgpack:"generations"`
	Evaluations int                        `json:"evaluations" msgpack:"evaluations"`
	First       *evolution.GenerationStats `json:"first,omitempty" msgpack:"first"`
	Last        *evolution.GenerationStats `json:"last,omitempty" msgpack:"last"`
}

// Summarize keeps the first and last generation of history.
func Summarize(history []evolution.GenerationStats, evaluations int) *SearchSummary {
	summary := &SearchSummary{Generations: len(history), Evaluations: evaluations}
	if len(history) > 0 {
		first, last := history[0], history[len(history)-1]
		summary.First = &first
		summary.Last = &last
	}
	return summary
}

// Report compares the recommendations of every run mode.
type Report struct {
	Budget float64      `json:"budget" msgpack:"budget"`
	Modes  []ModeReport `json:"modes" msgpack:"modes"`
}

// Mode returns the report of mode, or nil.
func (r *Report) Mode(mode Mode) *ModeReport {
	for i := range r.Modes {
		if r.Modes[i].Mode == mode {
			return &r.Modes[i]
		}
	}
	return nil
}

// Outcome is the best allocation one run mode produced. Fitness is nil when
// the search found nothing within budget. History is optional.
type Outcome struct {
	Mode    Mode
	Shares  []int
	Fitness *evolution.Fitness
	Seed    uint64
	Search  *SearchSummary
	History []evolution.GenerationStats
}

// BuildReport turns run outcomes into a report. It reads its inputs only and
// returns the same report for the same arguments. An outcome whose share
// vector does not match the instrument list is reported as nothing to buy.
func BuildReport(instruments []domain.Instrument, budget float64, riskWeights RiskWeights, outcomes []Outcome) Report {
	model := NewRiskModel(instruments, riskWeights)
	report := Report{
		Budget: money(budget),
		Modes:  make([]ModeReport, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		report.Modes = append(report.Modes, buildModeReport(instruments, budget, model, o))
	}
	return report
}

func buildModeReport(instruments []domain.Instrument, budget float64, model *RiskModel, o Outcome) ModeReport {
	mr := ModeReport{
		Mode:    o.Mode,
		Lines:   []LineItem{},
		Seed:    o.Seed,
		Search:  o.Search,
		History: o.History,
	}
	if o.Fitness != nil {
		mr.Fitness = append([]float64(nil), o.Fitness[:]...)
	}

	shares := o.Shares
	if len(shares) != len(instruments) {
		shares = nil
	}

	var raw Totals
	realized, allRealized := 0.0, true
	for i, n := range shares {
		if n <= 0 {
			continue
		}
		inst := instruments[i]
		f := Figures(inst, n)
		mr.Lines = append(mr.Lines, LineItem{
			Symbol:         inst.Symbol,
			Name:           inst.Name,
			Shares:         n,
			Price:          money(inst.CurrentPrice),
			PredictedPrice: money(inst.PredictedPrice),
			Cost:           money(f.Cost),
			CapitalGain:    money(f.CapitalGain),
			DividendIncome: money(f.DividendIncome),
			Fee:            money(f.Fee),
			NetProfit:      money(f.NetProfit),
			RealizedPrice:  inst.RealizedPrice,
		})

		raw.Shares += n
		raw.Cost += f.Cost
		raw.CapitalGain += f.CapitalGain
		raw.DividendIncome += f.DividendIncome
		raw.Fee += f.Fee
		raw.NetProfit += f.NetProfit

		if inst.RealizedPrice > 0 {
			realized += float64(n) * inst.RealizedPrice
		} else {
			allRealized = false
		}
	}

	sort.SliceStable(mr.Lines, func(a, b int) bool {
		if mr.Lines[a].NetProfit != mr.Lines[b].NetProfit {
			return mr.Lines[a].NetProfit > mr.Lines[b].NetProfit
		}
		return mr.Lines[a].Symbol < mr.Lines[b].Symbol
	})

	mr.NothingToBuy = len(mr.Lines) == 0
	mr.Totals = Totals{
		Shares:         raw.Shares,
		Cost:           money(raw.Cost),
		BudgetLeft:     money(budget - raw.Cost),
		CapitalGain:    money(raw.CapitalGain),
		DividendIncome: money(raw.DividendIncome),
		Fee:            money(raw.Fee),
		NetProfit:      money(raw.NetProfit),
	}
	if !mr.NothingToBuy && allRealized {
		value := money(realized)
		profit := money(realized - raw.Cost)
		mr.Totals.RealizedValue = &value
		mr.Totals.RealizedProfit = &profit
	}

	if shares != nil {
		s := model.Score(shares)
		mr.Risk = RiskScores{
			Volatility: score(s.Volatility),
			Sector:     score(s.Sector),
			Overlap:    score(s.Overlap),
			Blended:    score(s.Blended),
		}
	}
	return mr
}

func money(v float64) float64 {
	return round(v, 2)
}

func score(v float64) float64 {
	return round(v, 4)
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
