package store

import (
	"context"
	"sort"
	"sync"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/scoring"
)

type evidenceKey struct {
	geneID string
	source schemas.SourceName
	detail string
}

// InMemoryStore is the map-backed repository used by tests and by CLI runs
// that operate on flat files without a database.
type InMemoryStore struct {
	mu          sync.RWMutex
	evidence    map[evidenceKey]schemas.EvidenceRecord
	sources     map[schemas.SourceName]bool
	scores      []schemas.GeneScore
	annotations []schemas.PPIAnnotation
}

var _ Repository = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty repository.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		evidence: make(map[evidenceKey]schemas.EvidenceRecord),
		sources:  make(map[schemas.SourceName]bool),
	}
}

// SaveEvidence upserts records on their (gene, source, detail) identity.
func (m *InMemoryStore) SaveEvidence(_ context.Context, records []schemas.EvidenceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.evidence[evidenceKey{geneID: r.GeneID, source: r.Source, detail: r.SourceDetail}] = r
	}
	return nil
}

// SetSourceActive registers the source and its active flag.
func (m *InMemoryStore) SetSourceActive(_ context.Context, source schemas.SourceName, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[source] = active
	return nil
}

// Snapshot returns a deterministic copy of the evidence and active sources.
func (m *InMemoryStore) Snapshot(_ context.Context) (*scoring.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]evidenceKey, 0, len(m.evidence))
	for k := range m.evidence {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].geneID != keys[j].geneID {
			return keys[i].geneID < keys[j].geneID
		}
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].detail < keys[j].detail
	})

	snap := &scoring.Snapshot{
		Records: make([]schemas.EvidenceRecord, 0, len(keys)),
	}
	for _, k := range keys {
		snap.Records = append(snap.Records, m.evidence[k])
	}
	for source, active := range m.sources {
		if active {
			snap.ActiveSources = append(snap.ActiveSources, source)
		}
	}
	sort.Slice(snap.ActiveSources, func(i, j int) bool {
		return snap.ActiveSources[i] < snap.ActiveSources[j]
	})
	return snap, nil
}

// SaveGeneScores replaces the stored score batch.
func (m *InMemoryStore) SaveGeneScores(_ context.Context, scores []schemas.GeneScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append([]schemas.GeneScore(nil), scores...)
	return nil
}

// GeneScores returns the stored scores in their persisted order.
func (m *InMemoryStore) GeneScores(_ context.Context) ([]schemas.GeneScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]schemas.GeneScore(nil), m.scores...), nil
}

// SaveAnnotations replaces the stored annotation batch.
func (m *InMemoryStore) SaveAnnotations(_ context.Context, annotations []schemas.PPIAnnotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.annotations = append([]schemas.PPIAnnotation(nil), annotations...)
	return nil
}

// Annotations returns the stored PPI annotations.
func (m *InMemoryStore) Annotations(_ context.Context) ([]schemas.PPIAnnotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]schemas.PPIAnnotation(nil), m.annotations...), nil
}
