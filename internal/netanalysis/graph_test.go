package netanalysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneGraphEdges(t *testing.T) {
	g := NewGeneGraph()

	t.Run("self edges are ignored", func(t *testing.T) {
		g.AddEdge("PKD1", "PKD1", 900)
		assert.Zero(t, g.EdgeCount())
	})

	t.Run("parallel edges keep the highest confidence", func(t *testing.T) {
		g.AddEdge("PKD1", "PKD2", 700)
		g.AddEdge("PKD2", "PKD1", 900)
		g.AddEdge("PKD1", "PKD2", 500)

		assert.Equal(t, 1, g.EdgeCount())
		c, ok := g.Confidence("PKD1", "PKD2")
		require.True(t, ok)
		assert.Equal(t, 900, c)
	})

	t.Run("degree and neighbors", func(t *testing.T) {
		g.AddEdge("PKD1", "PKHD1", 600)
		assert.Equal(t, 2, g.Degree("PKD1"))
		assert.Equal(t, []string{"PKD2", "PKHD1"}, g.Neighbors("PKD1"))
		assert.Zero(t, g.Degree("ABSENT"))
	})
}

func TestGeneGraphExport(t *testing.T) {
	g := NewGeneGraph()
	g.AddNode("NPHS2")
	g.AddEdge("PKD2", "PKD1", 850)

	dto := g.Export()
	require.Len(t, dto.Nodes, 3)
	assert.Equal(t, "NPHS2", dto.Nodes[0].Symbol, "nodes sorted by symbol")

	require.Len(t, dto.Edges, 1)
	edge := dto.Edges[0]
	assert.Equal(t, "PKD1", edge.Source, "edge endpoints ordered by symbol")
	assert.Equal(t, "PKD2", edge.Target)
	assert.Equal(t, 850, edge.Confidence)
	assert.InDelta(t, 0.85, edge.Weight, 1e-12)
}

func TestGeneGraphComponents(t *testing.T) {
	g := NewGeneGraph()
	g.AddEdge("A1", "A2", 900)
	g.AddEdge("A2", "A3", 900)
	g.AddEdge("B1", "B2", 900)
	g.AddNode("LONE")

	comps := g.Components()
	require.Len(t, comps, 3)
	assert.Equal(t, []string{"A1", "A2", "A3"}, comps[0], "largest first")
	assert.Equal(t, []string{"B1", "B2"}, comps[1])
	assert.Equal(t, []string{"LONE"}, comps[2])

	largest := g.LargestComponent()
	assert.Equal(t, 3, largest.NodeCount())
	assert.Equal(t, 2, largest.EdgeCount())
}

func TestGeneGraphInduced(t *testing.T) {
	g := NewGeneGraph()
	g.AddEdge("A", "B", 900)
	g.AddEdge("B", "C", 800)

	sub := g.Induced(map[string]bool{"A": true, "B": true})
	assert.Equal(t, []string{"A", "B"}, sub.Symbols())
	assert.Equal(t, 1, sub.EdgeCount())
	c, ok := sub.Confidence("A", "B")
	require.True(t, ok)
	assert.Equal(t, 900, c)
}
