package allocation

import "github.com/aristath/allocator/internal/domain"

// DiversificationWeight discounts the profit of an instrument already held
// count times: 1 for an unheld instrument, strictly decreasing after that.
func DiversificationWeight(count int) float64 {
	if count < 0 {
		count = 0
	}
	return 1 / (1 + float64(count))
}

// DiversificationWeights returns one weight per symbol. A nil map or a missing
// symbol counts as not held.
func DiversificationWeights(ownership domain.OwnershipMap, symbols []string) []float64 {
	weights := make([]float64, len(symbols))
	for i, symbol := range symbols {
		weights[i] = DiversificationWeight(ownership.Count(symbol))
	}
	return weights
}
