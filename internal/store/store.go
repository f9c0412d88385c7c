// Package store persists evidence records, aggregated gene scores, and PPI
// annotations. A PostgreSQL implementation backs production runs; an
// in-memory implementation backs tests and one-shot CLI invocations.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/scoring"
)

// DBPool abstracts pgxpool.Pool so the store can be exercised against a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Repository is the persistence contract consumed by the scoring pipeline.
type Repository interface {
	// SaveEvidence upserts records on their (gene, source, detail) identity.
	SaveEvidence(ctx context.Context, records []schemas.EvidenceRecord) error
	// SetSourceActive registers a source and toggles its participation in
	// the percentage score denominator.
	SetSourceActive(ctx context.Context, source schemas.SourceName, active bool) error
	// Snapshot reads all evidence and the active source list in a single
	// transaction, so scoring never sees a torn view.
	Snapshot(ctx context.Context) (*scoring.Snapshot, error)
	// SaveGeneScores replaces the aggregated score table.
	SaveGeneScores(ctx context.Context, scores []schemas.GeneScore) error
	// GeneScores reads the aggregated scores, highest percentage first.
	GeneScores(ctx context.Context) ([]schemas.GeneScore, error)
	// SaveAnnotations replaces the PPI annotation table.
	SaveAnnotations(ctx context.Context, annotations []schemas.PPIAnnotation) error
}

// Store is the PostgreSQL repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ Repository = (*Store)(nil)

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// SaveEvidence upserts all records in one transaction.
func (s *Store) SaveEvidence(ctx context.Context, records []schemas.EvidenceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	sql := `
        INSERT INTO evidence (gene_id, symbol, source, source_detail, payload, score, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (gene_id, source, source_detail) DO UPDATE SET
            symbol = EXCLUDED.symbol,
            payload = EXCLUDED.payload,
            score = EXCLUDED.score,
            updated_at = EXCLUDED.updated_at;
    `
	for _, r := range records {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload for gene %s: %w", r.GeneID, err)
		}
		if _, err := tx.Exec(ctx, sql,
			r.GeneID, r.Symbol, string(r.Source), r.SourceDetail,
			payload, r.Score, r.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert evidence for gene %s: %w", r.GeneID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Evidence persisted", zap.Int("records", len(records)))
	return nil
}

// SetSourceActive registers the source, creating it on first sight.
func (s *Store) SetSourceActive(ctx context.Context, source schemas.SourceName, active bool) error {
	sql := `
        INSERT INTO sources (name, active)
        VALUES ($1, $2)
        ON CONFLICT (name) DO UPDATE SET active = EXCLUDED.active;
    `
	if _, err := s.pool.Exec(ctx, sql, string(source), active); err != nil {
		return fmt.Errorf("failed to set source %s active=%t: %w", source, active, err)
	}
	return nil
}

// Snapshot reads evidence records and the active source list inside one
// transaction.
func (s *Store) Snapshot(ctx context.Context) (*scoring.Snapshot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	records, err := s.readEvidence(ctx, tx)
	if err != nil {
		return nil, err
	}
	sources, err := s.readActiveSources(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &scoring.Snapshot{Records: records, ActiveSources: sources}, nil
}

func (s *Store) readEvidence(ctx context.Context, tx pgx.Tx) ([]schemas.EvidenceRecord, error) {
	query := `
        SELECT gene_id, symbol, source, source_detail, payload, score, updated_at
        FROM evidence
        ORDER BY gene_id, source, source_detail;
    `
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	var records []schemas.EvidenceRecord
	for rows.Next() {
		var (
			r       schemas.EvidenceRecord
			source  string
			payload []byte
		)
		if err := rows.Scan(&r.GeneID, &r.Symbol, &source, &r.SourceDetail, &payload, &r.Score, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evidence row: %w", err)
		}
		r.Source = schemas.SourceName(source)
		r.Payload, err = schemas.DecodePayload(r.Source, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode payload for gene %s: %w", r.GeneID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during evidence iteration: %w", err)
	}
	return records, nil
}

func (s *Store) readActiveSources(ctx context.Context, tx pgx.Tx) ([]schemas.SourceName, error) {
	rows, err := tx.Query(ctx, `SELECT name FROM sources WHERE active ORDER BY name;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []schemas.SourceName
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, schemas.SourceName(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during source iteration: %w", err)
	}
	return sources, nil
}

// SaveGeneScores replaces the score table with the given batch.
func (s *Store) SaveGeneScores(ctx context.Context, scores []schemas.GeneScore) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if _, err := tx.Exec(ctx, `DELETE FROM gene_scores;`); err != nil {
		return fmt.Errorf("failed to clear gene scores: %w", err)
	}

	rows := make([][]interface{}, len(scores))
	for i, gs := range scores {
		breakdown, err := json.Marshal(gs.Breakdown)
		if err != nil {
			return fmt.Errorf("failed to marshal breakdown for gene %s: %w", gs.GeneID, err)
		}
		rows[i] = []interface{}{
			gs.GeneID, gs.Symbol, gs.SourceCount, gs.EvidenceCount,
			gs.RawScore, gs.PercentageScore, breakdown,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"gene_scores"},
		[]string{"gene_id", "symbol", "source_count", "evidence_count", "raw_score", "percentage_score", "breakdown"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy gene scores: %w", err)
	}
	if int(copyCount) != len(scores) {
		return fmt.Errorf("mismatch in copied score count: expected %d, got %d", len(scores), copyCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Gene scores persisted", zap.Int("genes", len(scores)))
	return nil
}

// GeneScores reads the aggregated score table; scored genes first, ordered by
// percentage descending, unscored genes last by symbol.
func (s *Store) GeneScores(ctx context.Context) ([]schemas.GeneScore, error) {
	query := `
        SELECT gene_id, symbol, source_count, evidence_count, raw_score, percentage_score, breakdown
        FROM gene_scores
        ORDER BY percentage_score DESC NULLS LAST, symbol ASC;
    `
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query gene scores: %w", err)
	}
	defer rows.Close()

	var scores []schemas.GeneScore
	for rows.Next() {
		var (
			gs        schemas.GeneScore
			breakdown []byte
		)
		if err := rows.Scan(&gs.GeneID, &gs.Symbol, &gs.SourceCount, &gs.EvidenceCount,
			&gs.RawScore, &gs.PercentageScore, &breakdown); err != nil {
			return nil, fmt.Errorf("failed to scan gene score row: %w", err)
		}
		if len(breakdown) > 0 {
			if err := json.Unmarshal(breakdown, &gs.Breakdown); err != nil {
				return nil, fmt.Errorf("failed to decode breakdown for gene %s: %w", gs.GeneID, err)
			}
		}
		scores = append(scores, gs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during score iteration: %w", err)
	}
	return scores, nil
}

// SaveAnnotations replaces the PPI annotation table with the given batch.
func (s *Store) SaveAnnotations(ctx context.Context, annotations []schemas.PPIAnnotation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if _, err := tx.Exec(ctx, `DELETE FROM ppi_annotations;`); err != nil {
		return fmt.Errorf("failed to clear annotations: %w", err)
	}

	rows := make([][]interface{}, len(annotations))
	for i, ann := range annotations {
		partners, err := json.Marshal(ann.Partners)
		if err != nil {
			return fmt.Errorf("failed to marshal partners for %s: %w", ann.Symbol, err)
		}
		summary, err := json.Marshal(ann.Summary)
		if err != nil {
			return fmt.Errorf("failed to marshal summary for %s: %w", ann.Symbol, err)
		}
		rows[i] = []interface{}{
			ann.GeneID, ann.Symbol, ann.Score, ann.Degree, ann.Percentile,
			partners, summary, ann.ComputedAt,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"ppi_annotations"},
		[]string{"gene_id", "symbol", "ppi_score", "ppi_degree", "ppi_percentile", "partners", "summary", "computed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy annotations: %w", err)
	}
	if int(copyCount) != len(annotations) {
		return fmt.Errorf("mismatch in copied annotation count: expected %d, got %d", len(annotations), copyCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("PPI annotations persisted", zap.Int("annotations", len(annotations)))
	return nil
}

func (s *Store) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		s.log.Error("Failed to rollback transaction", zap.Error(err))
	}
}
