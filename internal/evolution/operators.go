package evolution

import "math/rand/v2"

// randomGenes draws every gene uniformly from [0, bounds[i]].
func randomGenes(bounds []int, rng *rand.Rand) []int {
	genes := make([]int, len(bounds))
	for i, bound := range bounds {
		if bound > 0 {
			genes[i] = rng.IntN(bound + 1)
		}
	}
	return genes
}

// tournament picks size aspirants uniformly with replacement and returns the
// first one that no later aspirant beats.
func tournament(pop []*Individual, size int, weights Weights, rng *rand.Rand) *Individual {
	best := pop[rng.IntN(len(pop))]
	for i := 1; i < size; i++ {
		aspirant := pop[rng.IntN(len(pop))]
		if weights.Better(aspirant.Fitness, best.Fitness) {
			best = aspirant
		}
	}
	return best
}

// uniformCrossover swaps a[i] and b[i] with probability p at every position.
// Both vectors share the same bounds, so swapping keeps them in range.
func uniformCrossover(a, b []int, p float64, rng *rand.Rand) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if rng.Float64() < p {
			a[i], b[i] = b[i], a[i]
		}
	}
}

// reflectMutation replaces genes[i] with bounds[i]-genes[i] with probability p.
// The reflection is a pure function of the value and its bound.
func reflectMutation(genes, bounds []int, p float64, rng *rand.Rand) {
	for i := range genes {
		if rng.Float64() < p {
			genes[i] = reflect(genes[i], bounds[i])
		}
	}
}

func reflect(value, bound int) int {
	return bound - value
}
