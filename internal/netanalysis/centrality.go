package netanalysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/nephroseq/genevidence-cli/api/schemas"
)

const (
	pageRankDamping = 0.85
	pageRankTol     = 1e-9
	pageRankMaxIter = 100
)

// distanceView exposes the network with inverted edge weights. Confidence
// derived weights are similarities; shortest path algorithms need distances,
// so a stronger interaction must read as a shorter edge.
type distanceView struct {
	g *simple.WeightedUndirectedGraph
}

func (v distanceView) Node(id int64) graph.Node       { return v.g.Node(id) }
func (v distanceView) Nodes() graph.Nodes             { return v.g.Nodes() }
func (v distanceView) From(id int64) graph.Nodes      { return v.g.From(id) }
func (v distanceView) HasEdgeBetween(x, y int64) bool { return v.g.HasEdgeBetween(x, y) }
func (v distanceView) Edge(u, w int64) graph.Edge     { return v.WeightedEdge(u, w) }

func (v distanceView) WeightedEdge(u, w int64) graph.WeightedEdge {
	e := v.g.WeightedEdge(u, w)
	if e == nil {
		return nil
	}
	return simple.WeightedEdge{F: e.From(), T: e.To(), W: 1 / e.Weight()}
}

func (v distanceView) Weight(x, y int64) (float64, bool) {
	if x == y {
		return 0, true
	}
	w, ok := v.g.Weight(x, y)
	if !ok || w == 0 {
		return 0, false
	}
	return 1 / w, true
}

// Centrality computes the requested per-vertex metrics. An empty metric list
// means all supported metrics. Closeness is only defined within the largest
// connected component; vertices outside it are omitted from that map.
func Centrality(g *GeneGraph, metrics []schemas.CentralityMetric) (schemas.CentralityResult, error) {
	if len(metrics) == 0 {
		metrics = []schemas.CentralityMetric{
			schemas.MetricDegree,
			schemas.MetricBetweenness,
			schemas.MetricCloseness,
			schemas.MetricPageRank,
		}
	}

	result := make(schemas.CentralityResult, len(metrics))
	for _, metric := range metrics {
		switch metric {
		case schemas.MetricDegree:
			result[metric] = degreeCentrality(g)
		case schemas.MetricBetweenness:
			result[metric] = betweennessCentrality(g)
		case schemas.MetricCloseness:
			result[metric] = closenessCentrality(g)
		case schemas.MetricPageRank:
			result[metric] = pageRank(g)
		default:
			return nil, &schemas.ValidationError{
				Field:  "metric",
				Reason: fmt.Sprintf("unknown centrality metric %q", metric),
			}
		}
	}
	return result, nil
}

// degreeCentrality normalizes vertex degree by the maximum possible degree.
func degreeCentrality(g *GeneGraph) map[string]float64 {
	out := make(map[string]float64, g.NodeCount())
	n := g.NodeCount()
	for _, s := range g.Symbols() {
		if n <= 1 {
			out[s] = 0
			continue
		}
		out[s] = float64(g.Degree(s)) / float64(n-1)
	}
	return out
}

func betweennessCentrality(g *GeneGraph) map[string]float64 {
	out := make(map[string]float64, g.NodeCount())
	for _, s := range g.Symbols() {
		out[s] = 0
	}
	if g.NodeCount() < 3 {
		return out
	}
	dv := distanceView{g: g.Underlying()}
	scores := network.BetweennessWeighted(dv, path.DijkstraAllPaths(dv))
	for id, score := range scores {
		out[g.Symbol(id)] = score
	}
	return out
}

func closenessCentrality(g *GeneGraph) map[string]float64 {
	largest := g.LargestComponent()
	out := make(map[string]float64, largest.NodeCount())
	if largest.NodeCount() == 0 {
		return out
	}
	if largest.NodeCount() == 1 {
		out[largest.Symbols()[0]] = 0
		return out
	}
	dv := distanceView{g: largest.Underlying()}
	scores := network.Closeness(dv, path.DijkstraAllPaths(dv))
	for id, score := range scores {
		out[largest.Symbol(id)] = score
	}
	return out
}

// pageRank runs weighted power iteration. Votes split over edge weight, so a
// high-confidence partner receives a larger share than a marginal one.
// Vertices without edges spread their mass uniformly.
func pageRank(g *GeneGraph) map[string]float64 {
	symbols := g.Symbols()
	n := len(symbols)
	out := make(map[string]float64, n)
	if n == 0 {
		return out
	}

	index := make(map[string]int, n)
	for i, s := range symbols {
		index[s] = i
	}
	nbrs := make([][]int, n)
	wts := make([][]float64, n)
	wdeg := make([]float64, n)
	for i, s := range symbols {
		for _, partner := range g.Neighbors(s) {
			c, ok := g.Confidence(s, partner)
			if !ok {
				continue
			}
			w := float64(c) / 1000.0
			nbrs[i] = append(nbrs[i], index[partner])
			wts[i] = append(wts[i], w)
			wdeg[i] += w
		}
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}
	next := make([]float64, n)
	for iter := 0; iter < pageRankMaxIter; iter++ {
		base := (1 - pageRankDamping) / float64(n)
		var dangling float64
		for i := range next {
			next[i] = base
		}
		for i := 0; i < n; i++ {
			if wdeg[i] == 0 {
				dangling += rank[i]
				continue
			}
			share := pageRankDamping * rank[i] / wdeg[i]
			for k, j := range nbrs[i] {
				next[j] += share * wts[i][k]
			}
		}
		if dangling > 0 {
			spread := pageRankDamping * dangling / float64(n)
			for i := range next {
				next[i] += spread
			}
		}

		var delta float64
		for i := range next {
			delta += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if delta < pageRankTol {
			break
		}
	}

	for i, s := range symbols {
		out[s] = rank[i]
	}
	return out
}
