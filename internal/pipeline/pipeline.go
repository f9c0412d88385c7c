// Package pipeline orchestrates a full scoring run: snapshot the evidence,
// aggregate gene scores, annotate the PPI layer, persist both, and trigger
// the decoupled percentile recompute.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/ppi"
	"github.com/nephroseq/genevidence-cli/internal/scoring"
	"github.com/nephroseq/genevidence-cli/internal/store"
)

// Report summarizes one scoring run.
type Report struct {
	RunID                 string        `json:"run_id"`
	Duration              time.Duration `json:"duration"`
	EvidenceRecords       int           `json:"evidence_records"`
	GenesScored           int           `json:"genes_scored"`
	Annotated             int           `json:"annotated"`
	Skipped               int           `json:"skipped"`
	PercentilesRecomputed bool          `json:"percentiles_recomputed"`
}

// Pipeline wires the scoring run. All collaborators are process-scoped and
// safe for reuse across runs.
type Pipeline struct {
	repo        store.Repository
	aggregator  *scoring.Aggregator
	engine      *ppi.Engine
	percentiles *ppi.Percentiles
	parallelism int
	logger      *zap.Logger
}

// New creates a pipeline.
func New(repo store.Repository, aggregator *scoring.Aggregator, engine *ppi.Engine, percentiles *ppi.Percentiles, parallelism int, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		repo:        repo,
		aggregator:  aggregator,
		engine:      engine,
		percentiles: percentiles,
		parallelism: parallelism,
		logger:      logger.Named("pipeline"),
	}
}

// Run executes one full scoring pass. Score persistence and PPI annotation
// run concurrently once aggregation finishes; both must succeed. A percentile
// recompute skipped by its rate limit is reported, not treated as a failure.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{RunID: uuid.NewString()}
	log := p.logger.With(zap.String("run_id", report.RunID))
	log.Info("Scoring run started")

	snap, err := p.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	report.EvidenceRecords = len(snap.Records)

	scores := p.aggregator.ComputeGeneScores(*snap)
	report.GenesScored = len(scores)

	evidenceScores := make(map[string]float64, len(scores))
	geneIDs := make(map[string]string, len(scores))
	for _, gs := range scores {
		geneIDs[gs.Symbol] = gs.GeneID
		if gs.PercentageScore != nil {
			evidenceScores[gs.Symbol] = *gs.PercentageScore
		}
	}

	var batch ppi.BatchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.repo.SaveGeneScores(gctx, scores)
	})
	g.Go(func() error {
		batch = p.engine.AnnotateAll(evidenceScores, p.percentiles.Current(), p.parallelism)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	annotations := make([]schemas.PPIAnnotation, len(batch.Annotations))
	ppiScores := make(map[string]float64, len(batch.Annotations))
	for i, ann := range batch.Annotations {
		ann.GeneID = geneIDs[ann.Symbol]
		annotations[i] = ann
		ppiScores[ann.Symbol] = ann.Score
	}
	if err := p.repo.SaveAnnotations(ctx, annotations); err != nil {
		return nil, err
	}
	report.Annotated = len(annotations)
	report.Skipped = batch.Skipped

	report.PercentilesRecomputed = p.percentiles.Recompute(ppiScores)
	report.Duration = time.Since(started)

	log.Info("Scoring run complete",
		zap.Int("evidence_records", report.EvidenceRecords),
		zap.Int("genes_scored", report.GenesScored),
		zap.Int("annotated", report.Annotated),
		zap.Int("skipped", report.Skipped),
		zap.Bool("percentiles_recomputed", report.PercentilesRecomputed),
		zap.Duration("duration", report.Duration))
	return report, nil
}
