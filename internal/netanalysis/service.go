package netanalysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/cache"
	"github.com/nephroseq/genevidence-cli/internal/config"
	"github.com/nephroseq/genevidence-cli/internal/worker"
)

// InteractionSource provides STRING interactions per gene symbol. It is
// satisfied by the PPI engine.
type InteractionSource interface {
	Interactions(symbol string) []schemas.StringInteraction
}

// Service builds and caches interaction networks. Construction is offloaded
// to the shared worker pool so concurrent callers cannot oversubscribe the
// process, and identical in-flight builds are coalesced.
type Service struct {
	cfg    config.NetworkConfig
	source InteractionSource
	cache  cache.KV
	pool   *worker.Pool
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// NewService wires the network service. The cache may be shared with other
// subsystems; keys are namespaced.
func NewService(cfg config.NetworkConfig, source InteractionSource, kv cache.KV, pool *worker.Pool, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		source:   source,
		cache:    kv,
		pool:     pool,
		logger:   logger.Named("netanalysis"),
		inflight: make(map[string]*sync.Mutex),
	}
}

// graphKey derives a stable cache key from the requested gene set and score
// threshold. Gene order must not affect the key.
func graphKey(genes []string, minScore int) string {
	sorted := make([]string, len(genes))
	copy(sorted, genes)
	sort.Strings(sorted)
	h := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", minScore, strings.Join(sorted, ","))))
	return "network:" + hex.EncodeToString(h[:16])
}

// buildLock returns the per-key mutex coalescing concurrent builds of the
// same network.
func (s *Service) buildLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.inflight[key]
	if !ok {
		l = &sync.Mutex{}
		s.inflight[key] = l
	}
	return l
}

// BuildNetwork constructs the undirected network over the given genes,
// keeping edges whose STRING confidence is at least minScore (the configured
// default when minScore is not positive). An empty gene set yields an empty
// graph; only requests beyond the configured gene cap are rejected.
func (s *Service) BuildNetwork(ctx context.Context, genes []string, minScore int) (*GeneGraph, error) {
	if len(genes) == 0 {
		return NewGeneGraph(), nil
	}
	if s.cfg.MaxGenes > 0 && len(genes) > s.cfg.MaxGenes {
		return nil, &schemas.ValidationError{
			Field:  "genes",
			Reason: fmt.Sprintf("%d genes exceeds the limit of %d", len(genes), s.cfg.MaxGenes),
		}
	}
	if minScore <= 0 {
		minScore = s.cfg.MinStringScore
	}

	key := graphKey(genes, minScore)
	lock := s.buildLock(key)
	lock.Lock()
	defer lock.Unlock()

	if v, ok := s.cache.Get(key); ok {
		if g, ok := v.(*GeneGraph); ok {
			s.logger.Debug("Network cache hit", zap.String("key", key))
			return g, nil
		}
	}

	var built *GeneGraph
	err := s.pool.Run(ctx, func() error {
		built = s.construct(genes, minScore)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, built)
	s.logger.Info("Network constructed",
		zap.Int("genes", len(genes)),
		zap.Int("nodes", built.NodeCount()),
		zap.Int("edges", built.EdgeCount()),
		zap.Int("min_score", minScore))
	return built, nil
}

// construct does the actual graph assembly. Every requested gene becomes a
// vertex; edges connect requested pairs whose confidence clears the
// threshold.
func (s *Service) construct(genes []string, minScore int) *GeneGraph {
	requested := make(map[string]bool, len(genes))
	g := NewGeneGraph()
	for _, symbol := range genes {
		requested[symbol] = true
		g.AddNode(symbol)
	}
	for _, symbol := range genes {
		for _, ia := range s.source.Interactions(symbol) {
			if ia.Confidence < minScore || !requested[ia.PartnerSymbol] {
				continue
			}
			g.AddEdge(symbol, ia.PartnerSymbol, ia.Confidence)
		}
	}
	return g
}

// FilterNetwork reduces a network for analysis. The steps apply in order and
// each is independent: vertices below minDegree are dropped, then vertices
// left without any edge when removeIsolated is set, then everything outside
// the largest connected component when largestComponentOnly is set. The
// input graph is not modified.
func FilterNetwork(g *GeneGraph, minDegree int, removeIsolated, largestComponentOnly bool) *GeneGraph {
	keep := make(map[string]bool, g.NodeCount())
	for _, symbol := range g.Symbols() {
		if g.Degree(symbol) >= minDegree {
			keep[symbol] = true
		}
	}
	reduced := g.Induced(keep)

	if removeIsolated {
		connected := make(map[string]bool, reduced.NodeCount())
		for _, symbol := range reduced.Symbols() {
			if reduced.Degree(symbol) > 0 {
				connected[symbol] = true
			}
		}
		reduced = reduced.Induced(connected)
	}
	if largestComponentOnly {
		reduced = reduced.LargestComponent()
	}
	return reduced
}

// KHopSubgraph extracts the subgraph induced by all vertices within k hops
// of any seed. k of zero returns the seeds alone. Seeds absent from the
// network are skipped; when none remain the result is an empty graph.
func (s *Service) KHopSubgraph(g *GeneGraph, seeds []string, k int) (*GeneGraph, error) {
	if k < 0 {
		return nil, &schemas.ValidationError{Field: "k", Reason: "hop count must not be negative"}
	}

	keep := make(map[string]bool)
	bfs := traverse.BreadthFirst{}
	for _, seed := range seeds {
		id, ok := g.ID(seed)
		if !ok {
			s.logger.Warn("Skipping seed gene absent from the network", zap.String("symbol", seed))
			continue
		}
		// Breadth-first order guarantees every vertex within k hops is seen
		// before the first vertex beyond them, so stopping there is exact.
		bfs.Reset()
		bfs.Walk(g.Underlying(), simple.Node(id), func(n graph.Node, d int) bool {
			if d > k {
				return true
			}
			keep[g.Symbol(n.ID())] = true
			return false
		})
	}
	return g.Induced(keep), nil
}
