// Package ppi computes hub-corrected interaction scores from STRING-DB
// physical links weighted by partner evidence scores.
package ppi

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/config"
)

// Engine scores genes against the loaded STRING physical interaction map.
// The interaction map is immutable after construction, so the engine is safe
// for concurrent use.
type Engine struct {
	cfg          config.PPIConfig
	logger       *zap.Logger
	interactions map[string][]schemas.StringInteraction
}

// NewEngine loads the STRING protein-info and physical-links files and builds
// the symbol-keyed interaction map. A missing or unreadable data file is a
// fatal configuration error for this source.
func NewEngine(cfg config.PPIConfig, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ppi_engine")

	symbols, err := loadProteinInfo(cfg.ProteinInfoPath)
	if err != nil {
		return nil, &schemas.ConfigurationError{Resource: "STRING protein info", Err: err}
	}

	interactions, err := loadPhysicalLinks(cfg.PhysicalLinksPath, symbols, cfg.MinConfidence)
	if err != nil {
		return nil, &schemas.ConfigurationError{Resource: "STRING physical links", Err: err}
	}

	logger.Info("STRING interaction map loaded",
		zap.Int("proteins", len(symbols)),
		zap.Int("genes_with_interactions", len(interactions)),
		zap.Int("min_confidence", cfg.MinConfidence))

	return &Engine{cfg: cfg, logger: logger, interactions: interactions}, nil
}

// loadProteinInfo reads a STRING protein.info file (TSV: protein id,
// preferred name, ...) into an id-to-symbol map. Header lines starting with
// '#' are skipped.
func loadProteinInfo(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	symbols := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		symbols[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return symbols, nil
}

// loadPhysicalLinks reads a STRING physical links file (whitespace separated:
// protein1 protein2 combined_score) and resolves protein ids to gene symbols.
// Edges below minConfidence and edges whose endpoints have no symbol are
// dropped here, once, instead of per annotation request.
func loadPhysicalLinks(path string, symbols map[string]string, minConfidence int) (map[string][]schemas.StringInteraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	interactions := make(map[string][]schemas.StringInteraction)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "protein1") || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		confidence, err := strconv.Atoi(fields[2])
		if err != nil || confidence < minConfidence {
			continue
		}
		src, ok := symbols[fields[0]]
		if !ok {
			continue
		}
		dst, ok := symbols[fields[1]]
		if !ok || src == dst {
			continue
		}
		interactions[src] = append(interactions[src], schemas.StringInteraction{
			PartnerSymbol: dst,
			Confidence:    confidence,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return interactions, nil
}

// Interactions returns the loaded interaction list for a gene symbol. The
// returned slice must not be mutated.
func (e *Engine) Interactions(symbol string) []schemas.StringInteraction {
	return e.interactions[symbol]
}

// Annotate scores one evidence-positive gene. evidenceScores maps gene
// symbols to their current percentage scores; only genes present with a
// positive score count as partners. percentiles is the published global
// percentile map, or nil when none is available, in which case the
// annotation's percentile is nil.
//
// The second return value is false when the gene itself is not
// evidence-positive and therefore carries no annotation.
func (e *Engine) Annotate(symbol string, evidenceScores map[string]float64, percentiles map[string]float64) (schemas.PPIAnnotation, bool) {
	if evidenceScores[symbol] <= 0 {
		return schemas.PPIAnnotation{}, false
	}

	// Dedup multi-isoform edges per partner gene, keeping the
	// highest-confidence edge, and drop partners without positive evidence.
	best := make(map[string]schemas.StringInteraction)
	for _, ia := range e.interactions[symbol] {
		if ia.Confidence < e.cfg.MinConfidence {
			continue
		}
		if evidenceScores[ia.PartnerSymbol] <= 0 {
			continue
		}
		if cur, ok := best[ia.PartnerSymbol]; !ok || ia.Confidence > cur.Confidence {
			best[ia.PartnerSymbol] = ia
		}
	}

	partners := make([]schemas.PartnerInteraction, 0, len(best))
	var summary schemas.InteractionSummary
	for partner, ia := range best {
		partnerScore := evidenceScores[partner]
		weighted := float64(ia.Confidence) / 1000.0 * partnerScore
		partners = append(partners, schemas.PartnerInteraction{
			PartnerSymbol: partner,
			Confidence:    ia.Confidence,
			PartnerScore:  partnerScore,
			WeightedScore: weighted,
		})
		summary.TotalInteractions++
		summary.RawConfidenceSum += float64(ia.Confidence)
		summary.WeightedSum += weighted
		if ia.Confidence > e.cfg.StrongConfidence {
			summary.StrongInteractions++
		}
	}

	degree := len(partners)
	var score float64
	if degree > 0 {
		// sqrt(degree) denominator corrects hub bias: many weak edges to
		// well-evidenced partners must not outweigh few strong ones.
		score = summary.WeightedSum / math.Sqrt(float64(degree))
		summary.AverageConfidence = summary.RawConfidenceSum / float64(degree)
	}

	sort.Slice(partners, func(i, j int) bool {
		if partners[i].WeightedScore != partners[j].WeightedScore {
			return partners[i].WeightedScore > partners[j].WeightedScore
		}
		return partners[i].PartnerSymbol < partners[j].PartnerSymbol
	})
	if e.cfg.TopPartners > 0 && len(partners) > e.cfg.TopPartners {
		partners = partners[:e.cfg.TopPartners]
	}

	ann := schemas.PPIAnnotation{
		Symbol:     symbol,
		Score:      score,
		Degree:     degree,
		Partners:   partners,
		Summary:    summary,
		ComputedAt: time.Now().UTC(),
	}
	if percentiles != nil {
		if p, ok := percentiles[symbol]; ok {
			ann.Percentile = &p
		}
	}
	return ann, true
}

// BatchResult summarizes one AnnotateAll run.
type BatchResult struct {
	Annotations []schemas.PPIAnnotation
	Skipped     int
}

// AnnotateAll annotates every evidence-positive gene, bounded by parallelism
// workers. The percentile map is read once up front; annotation never
// triggers a percentile recomputation.
func (e *Engine) AnnotateAll(evidenceScores map[string]float64, percentiles map[string]float64, parallelism int) BatchResult {
	if parallelism <= 0 {
		parallelism = 4
	}

	genes := make([]string, 0, len(evidenceScores))
	for symbol := range evidenceScores {
		genes = append(genes, symbol)
	}
	sort.Strings(genes)

	var (
		mu     sync.Mutex
		result BatchResult
	)
	var g errgroup.Group
	g.SetLimit(parallelism)
	for _, symbol := range genes {
		symbol := symbol
		g.Go(func() error {
			ann, ok := e.Annotate(symbol, evidenceScores, percentiles)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				result.Skipped++
				return nil
			}
			result.Annotations = append(result.Annotations, ann)
			return nil
		})
	}
	// Workers never return errors; skips are counted in the result.
	_ = g.Wait()

	sort.Slice(result.Annotations, func(i, j int) bool {
		return result.Annotations[i].Symbol < result.Annotations[j].Symbol
	})
	e.logger.Info("PPI annotation batch complete",
		zap.Int("annotated", len(result.Annotations)),
		zap.Int("skipped", result.Skipped))
	return result
}
