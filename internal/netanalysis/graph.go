// Package netanalysis constructs interaction networks over evidence gene
// sets and runs community detection, centrality, and subgraph extraction on
// them.
package netanalysis

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/nephroseq/genevidence-cli/api/schemas"
)

// GeneGraph is an undirected weighted interaction network with a stable
// symbol to node-id mapping. Edge weight is confidence/1000; the raw STRING
// confidence is retained per edge for export.
type GeneGraph struct {
	g       *simple.WeightedUndirectedGraph
	ids     map[string]int64
	symbols map[int64]string
	conf    map[edgeKey]int
	next    int64
}

type edgeKey struct {
	lo, hi int64
}

func newEdgeKey(a, b int64) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{lo: a, hi: b}
}

// NewGeneGraph creates an empty network.
func NewGeneGraph() *GeneGraph {
	return &GeneGraph{
		g:       simple.NewWeightedUndirectedGraph(0, 0),
		ids:     make(map[string]int64),
		symbols: make(map[int64]string),
		conf:    make(map[edgeKey]int),
	}
}

// AddNode registers symbol as a vertex and returns its node id. Adding an
// existing symbol is a no-op.
func (gg *GeneGraph) AddNode(symbol string) int64 {
	if id, ok := gg.ids[symbol]; ok {
		return id
	}
	id := gg.next
	gg.next++
	gg.ids[symbol] = id
	gg.symbols[id] = symbol
	gg.g.AddNode(simple.Node(id))
	return id
}

// AddEdge adds an undirected edge between two symbols with the given STRING
// confidence, creating missing vertices. Parallel edges keep the highest
// confidence; self edges are ignored.
func (gg *GeneGraph) AddEdge(a, b string, confidence int) {
	if a == b {
		return
	}
	ua := gg.AddNode(a)
	ub := gg.AddNode(b)
	key := newEdgeKey(ua, ub)
	if cur, ok := gg.conf[key]; ok && cur >= confidence {
		return
	}
	gg.conf[key] = confidence
	w := float64(confidence) / 1000.0
	gg.g.SetWeightedEdge(gg.g.NewWeightedEdge(simple.Node(ua), simple.Node(ub), w))
}

// HasNode reports whether symbol is a vertex of the network.
func (gg *GeneGraph) HasNode(symbol string) bool {
	_, ok := gg.ids[symbol]
	return ok
}

// ID returns the node id for symbol.
func (gg *GeneGraph) ID(symbol string) (int64, bool) {
	id, ok := gg.ids[symbol]
	return id, ok
}

// Symbol returns the gene symbol for a node id.
func (gg *GeneGraph) Symbol(id int64) string {
	return gg.symbols[id]
}

// Symbols returns all vertex symbols in sorted order.
func (gg *GeneGraph) Symbols() []string {
	out := make([]string, 0, len(gg.ids))
	for s := range gg.ids {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of vertices.
func (gg *GeneGraph) NodeCount() int {
	return len(gg.ids)
}

// EdgeCount returns the number of undirected edges.
func (gg *GeneGraph) EdgeCount() int {
	return len(gg.conf)
}

// Degree returns the number of edges incident to symbol.
func (gg *GeneGraph) Degree(symbol string) int {
	id, ok := gg.ids[symbol]
	if !ok {
		return 0
	}
	return gg.g.From(id).Len()
}

// Confidence returns the STRING confidence of the edge between two symbols.
func (gg *GeneGraph) Confidence(a, b string) (int, bool) {
	ua, oka := gg.ids[a]
	ub, okb := gg.ids[b]
	if !oka || !okb {
		return 0, false
	}
	c, ok := gg.conf[newEdgeKey(ua, ub)]
	return c, ok
}

// Neighbors returns the sorted partner symbols of symbol.
func (gg *GeneGraph) Neighbors(symbol string) []string {
	id, ok := gg.ids[symbol]
	if !ok {
		return nil
	}
	it := gg.g.From(id)
	out := make([]string, 0, it.Len())
	for it.Next() {
		out = append(out, gg.symbols[it.Node().ID()])
	}
	sort.Strings(out)
	return out
}

// Underlying exposes the gonum graph for algorithm packages.
func (gg *GeneGraph) Underlying() *simple.WeightedUndirectedGraph {
	return gg.g
}

// Induced builds the subgraph induced by keep, preserving edge confidences.
// Node ids are reassigned densely in the new graph.
func (gg *GeneGraph) Induced(keep map[string]bool) *GeneGraph {
	sub := NewGeneGraph()
	for _, s := range gg.Symbols() {
		if keep[s] {
			sub.AddNode(s)
		}
	}
	for key, c := range gg.conf {
		a, b := gg.symbols[key.lo], gg.symbols[key.hi]
		if keep[a] && keep[b] {
			sub.AddEdge(a, b, c)
		}
	}
	return sub
}

// Components returns the connected components as symbol sets, largest first.
// Ties break on the smallest member symbol for determinism.
func (gg *GeneGraph) Components() [][]string {
	comps := topo.ConnectedComponents(gg.g)
	out := make([][]string, 0, len(comps))
	for _, comp := range comps {
		syms := make([]string, 0, len(comp))
		for _, n := range comp {
			syms = append(syms, gg.symbols[n.ID()])
		}
		sort.Strings(syms)
		out = append(out, syms)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// LargestComponent returns the subgraph induced by the largest connected
// component. An empty graph returns an empty subgraph.
func (gg *GeneGraph) LargestComponent() *GeneGraph {
	comps := gg.Components()
	if len(comps) == 0 {
		return NewGeneGraph()
	}
	keep := make(map[string]bool, len(comps[0]))
	for _, s := range comps[0] {
		keep[s] = true
	}
	return gg.Induced(keep)
}

// Export converts the network to its serializable DTO form with nodes and
// edges in deterministic order.
func (gg *GeneGraph) Export() schemas.NetworkGraph {
	out := schemas.NetworkGraph{
		Nodes: make([]schemas.NetworkNode, 0, len(gg.ids)),
		Edges: make([]schemas.NetworkEdge, 0, len(gg.conf)),
	}
	for _, s := range gg.Symbols() {
		out.Nodes = append(out.Nodes, schemas.NetworkNode{Symbol: s})
	}
	for key, c := range gg.conf {
		a, b := gg.symbols[key.lo], gg.symbols[key.hi]
		if a > b {
			a, b = b, a
		}
		out.Edges = append(out.Edges, schemas.NetworkEdge{
			Source:     a,
			Target:     b,
			Weight:     float64(c) / 1000.0,
			Confidence: c,
		})
	}
	sort.Slice(out.Edges, func(i, j int) bool {
		if out.Edges[i].Source != out.Edges[j].Source {
			return out.Edges[i].Source < out.Edges[j].Source
		}
		return out.Edges[i].Target < out.Edges[j].Target
	})
	return out
}

// nodeSymbols maps a gonum node slice back to sorted symbols.
func (gg *GeneGraph) nodeSymbols(nodes []graph.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, gg.symbols[n.ID()])
	}
	sort.Strings(out)
	return out
}
