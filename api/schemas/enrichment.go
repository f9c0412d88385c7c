package schemas

import "context"

// EnrichmentResult is one over-represented term. Results are returned sorted
// ascending by FDR, and only terms with FDR below the requested threshold are
// included. EnrichmentScore is -log10(FDR), capped at 100 when FDR underflows
// to zero. CombinedScore is populated only for external (Enrichr) results.
type EnrichmentResult struct {
	TermID          string   `json:"term_id"`
	TermName        string   `json:"term_name"`
	PValue          float64  `json:"p_value"`
	FDR             float64  `json:"fdr"`
	OverlapCount    int      `json:"overlap_count"`
	ClusterSize     int      `json:"cluster_size"`
	BackgroundCount int      `json:"background_count"`
	Genes           []string `json:"genes"`
	OddsRatio       float64  `json:"odds_ratio"`
	EnrichmentScore float64  `json:"enrichment_score"`
	CombinedScore   float64  `json:"combined_score,omitempty"`
}

// TermInfo is the metadata returned by a term lookup collaborator.
type TermInfo struct {
	Name string `json:"name"`
}

// TermLookup resolves ontology term display names. Implementations return
// (nil, nil) for unknown terms; enrichment falls back to the term id.
type TermLookup interface {
	GetTerm(ctx context.Context, termID string) (*TermInfo, error)
}

// EnrichrRow is one row of an external enrichment API response table.
type EnrichrRow struct {
	Term          string   `json:"term"`
	PValue        float64  `json:"p_value"`
	AdjustedP     float64  `json:"adjusted_p_value"`
	Genes         []string `json:"genes"`
	OddsRatio     float64  `json:"odds_ratio"`
	CombinedScore float64  `json:"combined_score"`
}

// EnrichmentAPI is the contract for an Enrichr-equivalent external service.
type EnrichmentAPI interface {
	Enrich(ctx context.Context, geneSymbols []string, geneSetLibrary string) ([]EnrichrRow, error)
}
