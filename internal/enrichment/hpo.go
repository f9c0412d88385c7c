package enrichment

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/api/schemas"
)

// enrichmentScoreCap bounds -log10(FDR) when the FDR underflows to zero.
const enrichmentScoreCap = 100.0

// Analyzer runs HPO term over-representation for gene clusters. The default
// statistical background is the set of genes carrying at least one HPO
// annotation, not the whole genome; an all-gene background would inflate
// significance for sparsely annotated terms. Callers may pass an explicit
// background universe instead.
type Analyzer struct {
	lookup       schemas.TermLookup
	fdrThreshold float64
	logger       *zap.Logger
}

// NewAnalyzer wires the analyzer. lookup may be nil, in which case term ids
// double as display names.
func NewAnalyzer(lookup schemas.TermLookup, fdrThreshold float64, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fdrThreshold <= 0 {
		fdrThreshold = 0.05
	}
	return &Analyzer{lookup: lookup, fdrThreshold: fdrThreshold, logger: logger.Named("enrichment")}
}

// AnalyzeCluster tests every HPO term annotated to at least one cluster gene
// for over-representation. annotations maps gene symbols to their HPO term
// ids. background, when non-nil, is the explicit gene universe for the
// contingency tables; genes in it without annotations still widen the
// denominator. A nil background defaults to the annotated genes. An empty
// cluster, or one sharing no genes with the universe, yields an empty
// result.
func (an *Analyzer) AnalyzeCluster(ctx context.Context, cluster, background []string, annotations map[string][]string) ([]schemas.EnrichmentResult, error) {
	inCluster := make(map[string]bool, len(cluster))
	for _, g := range cluster {
		inCluster[g] = true
	}

	universe := make(map[string]bool)
	if background != nil {
		for _, g := range background {
			universe[g] = true
		}
	} else {
		for gene, terms := range annotations {
			if len(terms) > 0 {
				universe[gene] = true
			}
		}
	}

	backgroundSize := len(universe)
	clusterAnnotated := 0
	termGenes := make(map[string][]string)
	termClusterGenes := make(map[string][]string)
	for gene := range universe {
		member := inCluster[gene]
		if member {
			clusterAnnotated++
		}
		terms := annotations[gene]
		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			if seen[term] {
				continue
			}
			seen[term] = true
			termGenes[term] = append(termGenes[term], gene)
			if member {
				termClusterGenes[term] = append(termClusterGenes[term], gene)
			}
		}
	}
	if clusterAnnotated == 0 {
		an.logger.Debug("No annotated genes in cluster", zap.Int("cluster_size", len(cluster)))
		return []schemas.EnrichmentResult{}, nil
	}

	terms := make([]string, 0, len(termClusterGenes))
	for term := range termClusterGenes {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	results := make([]schemas.EnrichmentResult, 0, len(terms))
	pvals := make([]float64, 0, len(terms))
	for _, term := range terms {
		overlap := termClusterGenes[term]
		a := len(overlap)
		b := clusterAnnotated - a
		c := len(termGenes[term]) - a
		d := backgroundSize - clusterAnnotated - c

		p := FisherExactGreater(a, b, c, d)
		sort.Strings(overlap)
		results = append(results, schemas.EnrichmentResult{
			TermID:          term,
			PValue:          p,
			OverlapCount:    a,
			ClusterSize:     clusterAnnotated,
			BackgroundCount: len(termGenes[term]),
			Genes:           overlap,
			OddsRatio:       oddsRatio(a, b, c, d),
		})
		pvals = append(pvals, p)
	}

	fdrs := BenjaminiHochberg(pvals)
	kept := results[:0]
	for i := range results {
		if fdrs[i] >= an.fdrThreshold {
			continue
		}
		results[i].FDR = fdrs[i]
		results[i].EnrichmentScore = scoreFromFDR(fdrs[i])
		results[i].TermName = an.termName(ctx, results[i].TermID)
		kept = append(kept, results[i])
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].FDR != kept[j].FDR {
			return kept[i].FDR < kept[j].FDR
		}
		if kept[i].PValue != kept[j].PValue {
			return kept[i].PValue < kept[j].PValue
		}
		return kept[i].TermID < kept[j].TermID
	})
	an.logger.Info("HPO enrichment complete",
		zap.Int("cluster_genes", len(cluster)),
		zap.Int("tested_terms", len(results)),
		zap.Int("significant", len(kept)))
	return kept, nil
}

// oddsRatio applies the Haldane-Anscombe half-count correction so tables
// with an empty cell still produce a finite, orderable ratio.
func oddsRatio(a, b, c, d int) float64 {
	return ((float64(a) + 0.5) * (float64(d) + 0.5)) /
		((float64(b) + 0.5) * (float64(c) + 0.5))
}

func scoreFromFDR(fdr float64) float64 {
	if fdr <= 0 {
		return enrichmentScoreCap
	}
	score := -math.Log10(fdr)
	if score > enrichmentScoreCap {
		return enrichmentScoreCap
	}
	return score
}

// termName resolves a display name, falling back to the raw id when the
// lookup is absent, errors, or does not know the term.
func (an *Analyzer) termName(ctx context.Context, termID string) string {
	if an.lookup == nil {
		return termID
	}
	info, err := an.lookup.GetTerm(ctx, termID)
	if err != nil {
		an.logger.Warn("Term lookup failed, falling back to id",
			zap.String("term_id", termID), zap.Error(err))
		return termID
	}
	if info == nil || info.Name == "" {
		return termID
	}
	return info.Name
}
