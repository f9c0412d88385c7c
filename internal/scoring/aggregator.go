package scoring

import (
	"math"
	"sort"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"go.uber.org/zap"
)

// Snapshot is one consistent view of the evidence store: every record plus
// the system-wide active-source set, read together so raw scores and the
// percentage denominator can never tear.
type Snapshot struct {
	Records       []schemas.EvidenceRecord
	ActiveSources []schemas.SourceName
}

// Aggregator combines normalized per-source scores into composite gene
// scores. It holds no mutable state and is safe for concurrent use.
type Aggregator struct {
	mapper *WeightMapper
	logger *zap.Logger
}

// NewAggregator creates an aggregator using the given weight mapper.
func NewAggregator(mapper *WeightMapper, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{mapper: mapper, logger: logger.Named("aggregator")}
}

// geneEvidence accumulates one gene's contributions while the snapshot is
// folded source by source.
type geneEvidence struct {
	symbol        string
	breakdown     map[schemas.SourceName]float64
	evidenceCount int
}

// ComputeGeneScores derives one GeneScore per gene in the snapshot, ordered
// by percentage score descending, genes without scorable evidence last,
// ties broken by symbol ascending.
//
// The percentage denominator is the count of distinct active sources in the
// whole system, not the per-gene source count, so genes are compared on a
// common basis as sources are added.
func (a *Aggregator) ComputeGeneScores(snap Snapshot) []schemas.GeneScore {
	genes := make(map[string]*geneEvidence)
	ensure := func(rec schemas.EvidenceRecord) *geneEvidence {
		g, ok := genes[rec.GeneID]
		if !ok {
			g = &geneEvidence{symbol: rec.Symbol, breakdown: make(map[schemas.SourceName]float64)}
			genes[rec.GeneID] = g
		}
		return g
	}

	// Count-based sources percentile-rank within the population of genes
	// having that evidence type, so each source's records are folded as one
	// population. itemCounts collects distinct evidence items per gene for
	// count-based sources; ppiScores collects raw engine scores for
	// percentile ranking.
	itemCounts := make(map[schemas.SourceName]map[string]int)
	ppiScores := make(map[string]float64)

	for _, rec := range snap.Records {
		switch payload := rec.Payload.(type) {
		case schemas.ClinGenPayload, schemas.GenCCPayload:
			w, include := a.mapper.Weight(payload)
			if !include {
				continue
			}
			g := ensure(rec)
			g.evidenceCount++
			// Multiple records per source (distinct source details) keep
			// the strongest classification.
			if cur, ok := g.breakdown[rec.Source]; !ok || w > cur {
				g.breakdown[rec.Source] = w
			}
		case schemas.HPOPayload:
			a.addCount(itemCounts, rec, len(payload.TermIDs))
			ensure(rec).evidenceCount++
		case schemas.PanelAppPayload:
			a.addCount(itemCounts, rec, len(payload.Panels))
			ensure(rec).evidenceCount++
		case schemas.PubTatorPayload:
			a.addCount(itemCounts, rec, len(payload.PublicationIDs))
			ensure(rec).evidenceCount++
		case schemas.DiagnosticPanelsPayload:
			a.addCount(itemCounts, rec, len(payload.Panels))
			ensure(rec).evidenceCount++
		case schemas.StringPPIPayload:
			if rec.Score == nil {
				// The PPI engine has not scored this gene yet; it cannot
				// contribute until it does.
				continue
			}
			ppiScores[rec.GeneID] = *rec.Score
			ensure(rec).evidenceCount++
		default:
			a.logger.Warn("Skipping record with unknown payload variant",
				zap.String("gene_id", rec.GeneID),
				zap.String("source", string(rec.Source)))
		}
	}

	// Fold percentile ranks for count evidence into the per-gene breakdowns.
	for source, counts := range itemCounts {
		for gene, rank := range PercentileRanks(counts) {
			if g, ok := genes[gene]; ok {
				g.breakdown[source] = rank
			}
		}
	}
	for gene, rank := range PercentileRanksFloat(ppiScores) {
		if g, ok := genes[gene]; ok {
			g.breakdown[schemas.SourceStringPPI] = rank
		}
	}

	totalActive := len(snap.ActiveSources)
	out := make([]schemas.GeneScore, 0, len(genes))
	for id, g := range genes {
		var raw float64
		for _, w := range g.breakdown {
			raw += w
		}
		score := schemas.GeneScore{
			GeneID:        id,
			Symbol:        g.symbol,
			SourceCount:   len(g.breakdown),
			EvidenceCount: g.evidenceCount,
			RawScore:      raw,
			Breakdown:     g.breakdown,
		}
		if len(g.breakdown) > 0 {
			pct := 0.0
			if totalActive > 0 {
				pct = round2(raw / float64(totalActive) * 100)
			}
			score.PercentageScore = &pct
		}
		out = append(out, score)
	}

	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].PercentageScore, out[j].PercentageScore
		switch {
		case pi == nil && pj == nil:
			return out[i].Symbol < out[j].Symbol
		case pi == nil:
			return false
		case pj == nil:
			return true
		case *pi != *pj:
			return *pi > *pj
		default:
			return out[i].Symbol < out[j].Symbol
		}
	})

	return out
}

// addCount accumulates a count-based record. Records for the same gene and
// source with distinct source details contribute additively.
func (a *Aggregator) addCount(acc map[schemas.SourceName]map[string]int, rec schemas.EvidenceRecord, n int) {
	if n == 0 {
		return
	}
	byGene, ok := acc[rec.Source]
	if !ok {
		byGene = make(map[string]int)
		acc[rec.Source] = byGene
	}
	byGene[rec.GeneID] += n
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
