package schemas

import "time"

// -- PPI Annotations --

// PartnerInteraction is one deduplicated, evidence-weighted interaction edge
// retained on a PPI annotation, sorted by WeightedScore descending.
type PartnerInteraction struct {
	PartnerSymbol string  `json:"partner_symbol"`
	Confidence    int     `json:"confidence"`
	PartnerScore  float64 `json:"partner_score"`
	WeightedScore float64 `json:"weighted_score"`
}

// InteractionSummary holds aggregate statistics over all surviving partner
// edges for a gene.
type InteractionSummary struct {
	TotalInteractions  int     `json:"total_interactions"`
	RawConfidenceSum   float64 `json:"raw_confidence_sum"`
	WeightedSum        float64 `json:"weighted_sum"`
	AverageConfidence  float64 `json:"average_confidence"`
	StrongInteractions int     `json:"strong_interactions"`
}

// PPIAnnotation is the hub-corrected interaction score for one gene.
// Percentile is nil when no published global percentile map is available;
// callers must treat that as unknown, never as 0 or 1.
type PPIAnnotation struct {
	GeneID     string               `json:"gene_id"`
	Symbol     string               `json:"symbol"`
	Score      float64              `json:"ppi_score"`
	Degree     int                  `json:"ppi_degree"`
	Percentile *float64             `json:"ppi_percentile"`
	Partners   []PartnerInteraction `json:"partners"`
	Summary    InteractionSummary   `json:"summary"`
	ComputedAt time.Time            `json:"computed_at"`
}

// -- Network DTOs --

// NetworkNode is a vertex of a constructed interaction network.
type NetworkNode struct {
	Symbol string `json:"symbol"`
}

// NetworkEdge is an undirected weighted edge. Weight is Confidence/1000.
type NetworkEdge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Weight     float64 `json:"weight"`
	Confidence int     `json:"confidence"`
}

// NetworkGraph is the serializable form of a constructed network.
type NetworkGraph struct {
	Nodes []NetworkNode `json:"nodes"`
	Edges []NetworkEdge `json:"edges"`
}

// ClusterAlgorithm selects the community detection method.
type ClusterAlgorithm string

const (
	AlgorithmLeiden   ClusterAlgorithm = "leiden"
	AlgorithmLouvain  ClusterAlgorithm = "louvain"
	AlgorithmWalktrap ClusterAlgorithm = "walktrap"
)

// ClusterResult maps gene symbols to dense cluster ids starting at 0, together
// with the modularity of the detected partition. Genes removed by minimum
// cluster-size filtering are absent from Assignments.
type ClusterResult struct {
	Assignments map[string]int   `json:"assignments"`
	Modularity  float64          `json:"modularity"`
	Algorithm   ClusterAlgorithm `json:"algorithm"`
}

// CentralityMetric names one of the supported per-vertex metrics.
type CentralityMetric string

const (
	MetricDegree      CentralityMetric = "degree"
	MetricBetweenness CentralityMetric = "betweenness"
	MetricCloseness   CentralityMetric = "closeness"
	MetricPageRank    CentralityMetric = "pagerank"
)

// CentralityResult holds one map per requested metric. Metrics that were not
// requested are absent, not zero-filled. Closeness omits vertices outside the
// largest connected component.
type CentralityResult map[CentralityMetric]map[string]float64
