package scoring

import "sort"

// PercentileRanks converts raw counts into percentile ranks within the
// population of genes carrying that evidence type:
//
//	rank(g) = |{h : count(h) <= count(g)}| / |population|
//
// Every rank lies in (0,1]; the gene(s) with the largest count rank 1.0.
// An empty input yields an empty map. Recomputing over unchanged input
// always produces an identical map.
func PercentileRanks(counts map[string]int) map[string]float64 {
	if len(counts) == 0 {
		return map[string]float64{}
	}

	scores := make(map[string]float64, len(counts))
	for gene, c := range counts {
		scores[gene] = float64(c)
	}
	return PercentileRanksFloat(scores)
}

// PercentileRanksFloat is PercentileRanks over real-valued scores, used for
// PPI score percentiles.
func PercentileRanksFloat(scores map[string]float64) map[string]float64 {
	n := len(scores)
	if n == 0 {
		return map[string]float64{}
	}

	sorted := make([]float64, 0, n)
	for _, v := range scores {
		sorted = append(sorted, v)
	}
	sort.Float64s(sorted)

	ranks := make(map[string]float64, n)
	for gene, v := range scores {
		// Number of population members with score <= v.
		atOrBelow := sort.Search(n, func(i int) bool { return sorted[i] > v })
		ranks[gene] = float64(atOrBelow) / float64(n)
	}
	return ranks
}
