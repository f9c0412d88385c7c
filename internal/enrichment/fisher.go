// Package enrichment runs over-representation analysis for gene clusters,
// locally against HPO annotations and remotely through an Enrichr compatible
// service.
package enrichment

import (
	"math"
	"sort"
)

// logFactorial returns ln(n!) via the Lanczos log-gamma approximation, which
// stays exact enough for contingency tables far beyond genome scale.
func logFactorial(n int) float64 {
	if n < 2 {
		return 0
	}
	lg, _ := math.Lgamma(float64(n) + 1)
	return lg
}

// hypergeomLogPMF returns ln P(X = a) for a 2x2 table with fixed margins:
// a successes drawn in a sample of size a+b from a population of size n
// containing a+c successes.
func hypergeomLogPMF(a, b, c, d int) float64 {
	return logFactorial(a+b) + logFactorial(c+d) + logFactorial(a+c) + logFactorial(b+d) -
		logFactorial(a) - logFactorial(b) - logFactorial(c) - logFactorial(d) -
		logFactorial(a+b+c+d)
}

// FisherExactGreater computes the one-tailed Fisher exact p-value for the
// table [[a b] [c d]], testing whether the observed overlap a is larger than
// expected. The tail sums P(X >= a) over all tables with the same margins.
func FisherExactGreater(a, b, c, d int) float64 {
	if a < 0 || b < 0 || c < 0 || d < 0 {
		return 1
	}
	hi := a + b
	if a+c < hi {
		hi = a + c
	}
	var p float64
	for k := a; k <= hi; k++ {
		shift := k - a
		p += math.Exp(hypergeomLogPMF(k, b-shift, c-shift, d+shift))
	}
	if p > 1 {
		p = 1
	}
	return p
}

// BenjaminiHochberg converts p-values to FDR adjusted q-values. The output
// is aligned with the input order and each q-value is clamped to [0, 1] and
// monotone in p.
func BenjaminiHochberg(pvals []float64) []float64 {
	n := len(pvals)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return pvals[order[i]] < pvals[order[j]] })

	adjusted := make([]float64, n)
	running := 1.0
	for rank := n; rank >= 1; rank-- {
		idx := order[rank-1]
		q := pvals[idx] * float64(n) / float64(rank)
		if q > running {
			q = running
		}
		running = q
		adjusted[idx] = q
	}
	return adjusted
}
