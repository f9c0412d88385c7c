package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/config"
)

func testComponentsConfig() *config.Config {
	return &config.Config{
		Worker:     config.WorkerConfig{PoolSize: 2, QueueSize: 8},
		Scoring:    config.ScoringConfig{DefaultClassificationWeight: 0.3},
		PPI:        config.PPIConfig{MinConfidence: 400, StrongConfidence: 800, TopPartners: 25, PercentileTTL: time.Hour, PercentileMinGap: time.Hour},
		Network:    config.NetworkConfig{MaxGenes: 100, MinStringScore: 400, GraphCacheSize: 4, GraphCacheTTL: time.Minute},
		Enrichment: config.EnrichmentConfig{FDRThreshold: 0.05},
	}
}

// writeStringFixtures creates minimal STRING data files so the PPI engine can
// load without external downloads.
func writeStringFixtures(t *testing.T, cfg *config.Config) {
	t.Helper()
	dir := t.TempDir()
	info := "#string_protein_id\tpreferred_name\tprotein_size\n9606.ENSP001\tPKD1\t400\n9606.ENSP002\tPKD2\t300\n"
	links := "protein1 protein2 combined_score\n9606.ENSP001 9606.ENSP002 900\n"
	cfg.PPI.ProteinInfoPath = filepath.Join(dir, "protein.info.txt")
	cfg.PPI.PhysicalLinksPath = filepath.Join(dir, "protein.physical.links.txt")
	require.NoError(t, os.WriteFile(cfg.PPI.ProteinInfoPath, []byte(info), 0o644))
	require.NoError(t, os.WriteFile(cfg.PPI.PhysicalLinksPath, []byte(links), 0o644))
}

func TestNewComponentsWithoutStringFiles(t *testing.T) {
	ctx := context.Background()

	components, err := NewComponents(ctx, testComponentsConfig(), zap.NewNop())
	require.NoError(t, err, "commands that never touch the PPI network must start without STRING data")
	defer components.Shutdown()

	assert.NotNil(t, components.Repo)
	assert.NotNil(t, components.Analyzer)
	assert.NotNil(t, components.Enrichr)

	t.Run("engine fails only on first use", func(t *testing.T) {
		_, err := components.Engine()
		require.Error(t, err)
		assert.True(t, schemas.IsConfiguration(err))
	})

	t.Run("network service propagates the engine failure", func(t *testing.T) {
		_, err := components.NetworkService()
		require.Error(t, err)
		assert.True(t, schemas.IsConfiguration(err))
	})

	t.Run("scoring pipeline propagates the engine failure", func(t *testing.T) {
		_, err := components.ScoringPipeline()
		require.Error(t, err)
		assert.True(t, schemas.IsConfiguration(err))
	})
}

func TestNewComponentsLazyServices(t *testing.T) {
	ctx := context.Background()
	cfg := testComponentsConfig()
	writeStringFixtures(t, cfg)

	components, err := NewComponents(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer components.Shutdown()

	engine, err := components.Engine()
	require.NoError(t, err)
	again, err := components.Engine()
	require.NoError(t, err)
	assert.Same(t, engine, again, "the engine loads once and is reused")

	network, err := components.NetworkService()
	require.NoError(t, err)
	assert.NotNil(t, network)

	pipeline, err := components.ScoringPipeline()
	require.NoError(t, err)
	assert.NotNil(t, pipeline)
}

func TestNewComponentsTermLookup(t *testing.T) {
	ctx := context.Background()
	cfg := testComponentsConfig()

	path := filepath.Join(t.TempDir(), "terms.tsv")
	require.NoError(t, os.WriteFile(path, []byte("HP:0000107\tRenal cyst\n"), 0o644))
	cfg.Enrichment.HPOTermsPath = path

	components, err := NewComponents(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer components.Shutdown()

	t.Run("enrichment uses the configured display names", func(t *testing.T) {
		annotations := make(map[string][]string)
		for _, g := range []string{"G0", "G1", "G2", "G3", "G4", "G5", "G6", "G7", "G8", "G9"} {
			annotations[g] = []string{"HP:GENERIC"}
		}
		for _, g := range []string{"G0", "G1", "G2"} {
			annotations[g] = append(annotations[g], "HP:0000107")
		}

		results, err := components.Analyzer.AnalyzeCluster(ctx, []string{"G0", "G1", "G2"}, nil, annotations)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Renal cyst", results[0].TermName)
	})

	t.Run("missing table is a configuration error", func(t *testing.T) {
		bad := testComponentsConfig()
		bad.Enrichment.HPOTermsPath = filepath.Join(t.TempDir(), "absent.tsv")
		_, err := NewComponents(ctx, bad, zap.NewNop())
		require.Error(t, err)
		assert.True(t, schemas.IsConfiguration(err))
	})
}
