// Package evolution implements a generational evolutionary search over bounded
// integer vectors.
//
// Individuals are ranked by a weighted-lexicographic ordering of a fixed-size
// objective tuple: each objective is multiplied by its weight and the weighted
// tuples are compared element by element, first element most significant. This
// is not Pareto dominance.
package evolution

import (
	"errors"
	"fmt"
)

// NumObjectives is the size of the objective tuple.
const NumObjectives = 3

// ErrInvalidConfig is returned when the engine is built with unusable parameters.
var ErrInvalidConfig = errors.New("invalid evolution config")

// Fitness is the objective tuple of an Individual.
type Fitness [NumObjectives]float64

// Weights gives the direction and participation of each objective. Positive
// weights maximize, negative minimize, zero ignores the objective.
type Weights [NumObjectives]float64

// Weighted returns f with each objective multiplied by its weight.
func (w Weights) Weighted(f Fitness) Fitness {
	var out Fitness
	for i := range f {
		out[i] = f[i] * w[i]
	}
	return out
}

// Better reports whether a ranks strictly above b. The first weighted objective
// that differs decides; equal tuples are not better than each other.
func (w Weights) Better(a, b Fitness) bool {
	wa, wb := w.Weighted(a), w.Weighted(b)
	for i := range wa {
		if wa[i] > wb[i] {
			return true
		}
		if wa[i] < wb[i] {
			return false
		}
	}
	return false
}

// primary returns the index of the most significant objective that takes part
// in the ordering.
func (w Weights) primary() int {
	for i, v := range w {
		if v != 0 {
			return i
		}
	}
	return 0
}

// Evaluator scores a gene vector. Implementations must be safe for concurrent
// use when the engine runs with more than one worker.
type Evaluator interface {
	Evaluate(genes []int) Fitness
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(genes []int) Fitness

// Evaluate calls f(genes).
func (f EvaluatorFunc) Evaluate(genes []int) Fitness {
	return f(genes)
}

// Individual is one candidate solution. Its fitness is only meaningful while
// Valid reports true; genetic operators invalidate it.
type Individual struct {
	Genes   []int   `json:"genes"`
	Fitness Fitness `json:"fitness"`
	valid   bool
}

// NewIndividual wraps genes in an Individual with no fitness yet.
func NewIndividual(genes []int) *Individual {
	return &Individual{Genes: genes}
}

// Valid reports whether Fitness reflects the current genes.
func (ind *Individual) Valid() bool {
	return ind.valid
}

// Invalidate marks the fitness as stale.
func (ind *Individual) Invalidate() {
	ind.valid = false
}

// SetFitness attaches a freshly computed fitness.
func (ind *Individual) SetFitness(f Fitness) {
	ind.Fitness = f
	ind.valid = true
}

// Clone returns a deep copy.
func (ind *Individual) Clone() *Individual {
	genes := make([]int, len(ind.Genes))
	copy(genes, ind.Genes)
	return &Individual{Genes: genes, Fitness: ind.Fitness, valid: ind.valid}
}

// Config holds the search parameters. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	TournamentSize int     `json:"tournament_size"`
	CrossoverRate  float64 `json:"crossover_rate"`
	GeneSwapRate   float64 `json:"gene_swap_rate"`
	MutationRate   float64 `json:"mutation_rate"`
	GeneFlipRate   float64 `json:"gene_flip_rate"`
	// Seed for the random source. 0 picks a time-based seed.
	Seed uint64 `json:"seed"`
	// Workers evaluating fitness in parallel. Values <= 1 evaluate sequentially.
	Workers int `json:"workers"`
	// KeepBestSeen keeps an incumbent champion outside the population and returns
	// it when it beats the final population's best.
	KeepBestSeen bool `json:"keep_best_seen"`
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 120,
		Generations:    350,
		TournamentSize: 5,
		CrossoverRate:  0.35,
		GeneSwapRate:   0.1,
		MutationRate:   0.55,
		GeneFlipRate:   0.4,
		Workers:        1,
	}
}

// Validate checks the parameters before any generation runs.
func (c Config) Validate() error {
	if c.PopulationSize < 1 {
		return fmt.Errorf("%w: population size must be positive, got %d", ErrInvalidConfig, c.PopulationSize)
	}
	if c.Generations < 0 {
		return fmt.Errorf("%w: generations must not be negative, got %d", ErrInvalidConfig, c.Generations)
	}
	if c.TournamentSize < 1 {
		return fmt.Errorf("%w: tournament size must be positive, got %d", ErrInvalidConfig, c.TournamentSize)
	}
	rates := map[string]float64{
		"crossover rate": c.CrossoverRate,
		"gene swap rate": c.GeneSwapRate,
		"mutation rate":  c.MutationRate,
		"gene flip rate": c.GeneFlipRate,
	}
	for name, rate := range rates {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, name, rate)
		}
	}
	return nil
}
