// Package allocation recommends how many shares of each candidate instrument
// to buy under a budget, using an evolutionary search per run mode.
package allocation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/evolution"
)

// DefaultMaxPerInstrumentBudget is the money limit per instrument used when the
// caller gives none.
const DefaultMaxPerInstrumentBudget = 50.0

// Service runs the optimizer in every mode and builds the comparison report.
type Service struct {
	ownership   domain.OwnershipSource
	engineCfg   evolution.Config
	riskWeights RiskWeights
	// keepHistory attaches every generation's statistics to the report.
	keepHistory bool
	log         zerolog.Logger
}

// NewService creates an optimizer service. ownership may be nil, in which case
// nothing counts as held.
func NewService(ownership domain.OwnershipSource, engineCfg evolution.Config, riskWeights RiskWeights, log zerolog.Logger) *Service {
	return &Service{
		ownership:   ownership,
		engineCfg:   engineCfg,
		riskWeights: riskWeights,
		log:         log.With().Str("module", "allocation").Logger(),
	}
}

// SetKeepHistory controls whether reports carry the full per-generation
// statistics. Reports always carry a summary of the search.
func (s *Service) SetKeepHistory(keep bool) {
	s.keepHistory = keep
}

// Optimize limits every instrument to maxPerInstrumentBudget worth of shares.
// A non-positive limit falls back to DefaultMaxPerInstrumentBudget.
func (s *Service) Optimize(ctx context.Context, instruments []domain.Instrument, budget, maxPerInstrumentBudget float64) (*Report, error) {
	if maxPerInstrumentBudget <= 0 {
		maxPerInstrumentBudget = DefaultMaxPerInstrumentBudget
	}
	return s.OptimizeWithLimit(ctx, instruments, budget, domain.CommonPriceLimit(maxPerInstrumentBudget))
}

// OptimizeWithLimit runs the risk-aware and profit-only searches and reports
// both. Invalid instruments are excluded with a warning. Errors are returned
// only for malformed input, before any search starts.
func (s *Service) OptimizeWithLimit(ctx context.Context, instruments []domain.Instrument, budget float64, limit domain.StockLimit) (*Report, error) {
	if err := s.engineCfg.Validate(); err != nil {
		return nil, err
	}

	if len(instruments) == 0 {
		s.log.Info().Msg("No instruments to optimize")
		outcomes := make([]Outcome, 0, len(Modes))
		for _, mode := range Modes {
			outcomes = append(outcomes, Outcome{Mode: mode})
		}
		report := BuildReport(instruments, budget, s.riskWeights, outcomes)
		return &report, nil
	}

	bounds, err := ShareBounds(instruments, limit, budget)
	if err != nil {
		return nil, fmt.Errorf("failed to derive share bounds: %w", err)
	}
	for _, inst := range instruments {
		if err := ValidateInstrument(inst); err != nil {
			s.log.Warn().Err(err).Str("symbol", inst.Symbol).Msg("Excluding instrument from run")
		}
	}

	ownership := s.loadOwnership(ctx)
	risk := NewRiskModel(instruments, s.riskWeights)

	s.log.Info().
		Int("instruments", len(instruments)).
		Float64("budget", budget).
		Str("limit_type", string(limit.Type)).
		Int("owned", len(ownership)).
		Msg("Starting optimization")

	outcomes := make([]Outcome, 0, len(Modes))
	for _, mode := range Modes {
		outcome, err := s.run(ctx, mode, instruments, ownership, budget, bounds, risk)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}

	report := BuildReport(instruments, budget, s.riskWeights, outcomes)
	return &report, nil
}

func (s *Service) run(
	ctx context.Context,
	mode Mode,
	instruments []domain.Instrument,
	ownership domain.OwnershipMap,
	budget float64,
	bounds []int,
	risk *RiskModel,
) (Outcome, error) {
	evaluator := NewFitnessEvaluator(instruments, ownership, budget, mode, risk)

	engine, err := evolution.New(s.engineCfg, bounds, mode.Weights(), evaluator, s.log.With().Str("mode", string(mode)).Logger())
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to build %s engine: %w", mode, err)
	}
	result, err := engine.Run(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s optimization failed: %w", mode, err)
	}

	outcome := Outcome{
		Mode:   mode,
		Shares: result.Best.Genes,
		Seed:   result.Seed,
		Search: Summarize(result.History, result.Evaluations),
	}
	if s.keepHistory {
		outcome.History = result.History
	}

	if evaluator.Feasible(outcome.Shares) {
		fitness := result.Best.Fitness
		outcome.Fitness = &fitness
	} else {
		// Every individual of the last generation was over budget; the
		// fallback has no search fitness to report.
		s.log.Warn().Str("mode", string(mode)).Msg("No feasible allocation found, recommending nothing")
		outcome.Shares = make([]int, len(instruments))
	}

	return outcome, nil
}

// loadOwnership queries the ownership source once. Failures are not retried;
// the run continues as if nothing were held.
func (s *Service) loadOwnership(ctx context.Context) domain.OwnershipMap {
	if s.ownership == nil {
		return domain.OwnershipMap{}
	}
	ownership, err := s.ownership.GetOwnershipCounts(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Ownership lookup failed, assuming nothing is held")
		return domain.OwnershipMap{}
	}
	if ownership == nil {
		return domain.OwnershipMap{}
	}
	return ownership
}
