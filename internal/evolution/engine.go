package evolution

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GenerationStats summarizes the most significant weighted objective of a
// population after one generation.
type GenerationStats struct {
	Generation  int     `json:"generation"`
	Evaluations int     `json:"evaluations"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
}

// Result is the outcome of one run.
type Result struct {
	Best        *Individual       `json:"best"`
	History     []GenerationStats `json:"history"`
	Evaluations int               `json:"evaluations"`
	Seed        uint64            `json:"seed"`
}

// Engine runs the generational search. An Engine holds a random source and is
// not safe for concurrent use; build one per run.
type Engine struct {
	cfg     Config
	bounds  []int
	weights Weights
	eval    Evaluator
	rng     *rand.Rand
	seed    uint64
	log     zerolog.Logger
}

// New validates the parameters and builds an engine searching vectors with
// 0 <= genes[i] <= bounds[i].
func New(cfg Config, bounds []int, weights Weights, eval Evaluator, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if eval == nil {
		return nil, fmt.Errorf("%w: evaluator is required", ErrInvalidConfig)
	}
	for i, b := range bounds {
		if b < 0 {
			return nil, fmt.Errorf("%w: bound %d is negative (%d)", ErrInvalidConfig, i, b)
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	b := make([]int, len(bounds))
	copy(b, bounds)

	return &Engine{
		cfg:     cfg,
		bounds:  b,
		weights: weights,
		eval:    eval,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed:    seed,
		log:     log.With().Str("component", "evolution").Logger(),
	}, nil
}

// Run executes the configured number of generations and returns the best
// Individual of the final population.
//
// Each generation selects parents by tournament, clones them, applies uniform
// crossover to adjacent pairs and reflection mutation to each offspring,
// re-evaluates what changed and replaces the population wholesale. There is no
// elitism unless KeepBestSeen is set. The context is checked between
// generations only.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		History: make([]GenerationStats, 0, e.cfg.Generations),
		Seed:    e.seed,
	}

	pop := make([]*Individual, e.cfg.PopulationSize)
	for i := range pop {
		pop[i] = NewIndividual(randomGenes(e.bounds, e.rng))
	}
	n, err := e.evaluate(ctx, pop)
	if err != nil {
		return nil, err
	}
	result.Evaluations += n

	var champion *Individual
	if e.cfg.KeepBestSeen {
		champion = e.best(pop).Clone()
	}

	for gen := 1; gen <= e.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evolution cancelled at generation %d: %w", gen, err)
		}

		offspring := make([]*Individual, len(pop))
		for i := range offspring {
			offspring[i] = tournament(pop, e.cfg.TournamentSize, e.weights, e.rng).Clone()
		}

		for i := 0; i+1 < len(offspring); i += 2 {
			if e.rng.Float64() < e.cfg.CrossoverRate {
				uniformCrossover(offspring[i].Genes, offspring[i+1].Genes, e.cfg.GeneSwapRate, e.rng)
				offspring[i].Invalidate()
				offspring[i+1].Invalidate()
			}
		}

		for _, mutant := range offspring {
			if e.rng.Float64() < e.cfg.MutationRate {
				reflectMutation(mutant.Genes, e.bounds, e.cfg.GeneFlipRate, e.rng)
				mutant.Invalidate()
			}
		}

		n, err := e.evaluate(ctx, offspring)
		if err != nil {
			return nil, err
		}
		result.Evaluations += n

		pop = offspring

		if champion != nil {
			if best := e.best(pop); e.weights.Better(best.Fitness, champion.Fitness) {
				champion = best.Clone()
			}
		}

		stats := e.stats(gen, n, pop)
		result.History = append(result.History, stats)
		e.log.Debug().
			Int("generation", gen).
			Int("evaluations", n).
			Float64("min", stats.Min).
			Float64("max", stats.Max).
			Float64("avg", stats.Mean).
			Float64("std", stats.Std).
			Msg("Generation complete")
	}

	best := e.best(pop)
	if champion != nil && e.weights.Better(champion.Fitness, best.Fitness) {
		best = champion
	}
	result.Best = best.Clone()

	e.log.Info().
		Ints("genes", result.Best.Genes).
		Floats64("fitness", result.Best.Fitness[:]).
		Int("generations", e.cfg.Generations).
		Int("evaluations", result.Evaluations).
		Uint64("seed", e.seed).
		Msg("Evolution finished")

	return result, nil
}

// evaluate scores every Individual whose fitness is stale and returns how many
// were scored. Evaluation draws no random numbers, so running it in parallel
// does not change the outcome for a given seed.
func (e *Engine) evaluate(ctx context.Context, pop []*Individual) (int, error) {
	pending := make([]*Individual, 0, len(pop))
	for _, ind := range pop {
		if !ind.Valid() {
			pending = append(pending, ind)
		}
	}

	if e.cfg.Workers <= 1 || len(pending) < 2 {
		for _, ind := range pending {
			ind.SetFitness(e.eval.Evaluate(ind.Genes))
		}
		return len(pending), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for _, ind := range pending {
		ind := ind
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ind.SetFitness(e.eval.Evaluate(ind.Genes))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("fitness evaluation: %w", err)
	}
	return len(pending), nil
}

// best returns the first Individual that no other Individual beats.
func (e *Engine) best(pop []*Individual) *Individual {
	best := pop[0]
	for _, ind := range pop[1:] {
		if e.weights.Better(ind.Fitness, best.Fitness) {
			best = ind
		}
	}
	return best
}

func (e *Engine) stats(gen, evaluations int, pop []*Individual) GenerationStats {
	idx := e.weights.primary()
	values := make([]float64, len(pop))
	for i, ind := range pop {
		values[i] = e.weights.Weighted(ind.Fitness)[idx]
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return GenerationStats{
		Generation:  gen,
		Evaluations: evaluations,
		Min:         floats.Min(values),
		Max:         floats.Max(values),
		Mean:        mean,
		Std:         std,
	}
}
