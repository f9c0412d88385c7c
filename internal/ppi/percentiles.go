package ppi

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/internal/cache"
	"github.com/nephroseq/genevidence-cli/internal/scoring"
)

// percentileKey is the cache key under which the global PPI percentile map is
// published.
const percentileKey = "ppi:global_percentiles"

// Percentiles mediates access to the global PPI score percentile map.
// Annotation reads only ever consult the published map; the explicit,
// rate-limited Recompute step is the sole writer. This keeps per-gene
// annotation O(1) and percentile publication race-free.
type Percentiles struct {
	cache  cache.KV
	minGap time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	lastRun time.Time
}

// NewPercentiles wraps the shared cache with the recompute rate limit.
func NewPercentiles(kv cache.KV, minGap time.Duration, logger *zap.Logger) *Percentiles {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Percentiles{cache: kv, minGap: minGap, logger: logger.Named("ppi_percentiles")}
}

// Current returns the published percentile map, or nil when none is cached.
// Callers must treat nil as unknown, never as a default rank.
func (p *Percentiles) Current() map[string]float64 {
	v, ok := p.cache.Get(percentileKey)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]float64)
	if !ok {
		return nil
	}
	return m
}

// Lookup returns the published percentile for one gene, or nil when the map
// or the gene is absent.
func (p *Percentiles) Lookup(symbol string) *float64 {
	m := p.Current()
	if m == nil {
		return nil
	}
	if rank, ok := m[symbol]; ok {
		return &rank
	}
	return nil
}

// Recompute ranks all genes by PPI score and republishes the global map.
// The step is idempotent for unchanged input and rate-limited; a call inside
// the minimum gap is skipped and reports false.
func (p *Percentiles) Recompute(scores map[string]float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastRun.IsZero() && time.Since(p.lastRun) < p.minGap {
		p.logger.Debug("Percentile recompute skipped by rate limit",
			zap.Time("last_run", p.lastRun),
			zap.Duration("min_gap", p.minGap))
		return false
	}

	ranks := scoring.PercentileRanksFloat(scores)
	p.cache.Set(percentileKey, ranks)
	p.lastRun = time.Now()
	p.logger.Info("Global PPI percentiles republished", zap.Int("genes", len(ranks)))
	return true
}
