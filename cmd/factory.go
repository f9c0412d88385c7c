package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/cache"
	"github.com/nephroseq/genevidence-cli/internal/config"
	"github.com/nephroseq/genevidence-cli/internal/enrichment"
	"github.com/nephroseq/genevidence-cli/internal/netanalysis"
	"github.com/nephroseq/genevidence-cli/internal/pipeline"
	"github.com/nephroseq/genevidence-cli/internal/ppi"
	"github.com/nephroseq/genevidence-cli/internal/scoring"
	"github.com/nephroseq/genevidence-cli/internal/store"
	"github.com/nephroseq/genevidence-cli/internal/worker"
)

// Components holds the initialized application services shared by the
// subcommands. Build them once per invocation and release them through
// Shutdown. Services backed by the STRING interaction files are constructed
// on first use, so commands that never touch the PPI network run without
// those files configured.
type Components struct {
	DBPool      *pgxpool.Pool
	Repo        store.Repository
	Pool        *worker.Pool
	Aggregator  *scoring.Aggregator
	Percentiles *ppi.Percentiles
	Analyzer    *enrichment.Analyzer
	Enrichr     *enrichment.EnrichrClient

	cfg    *config.Config
	logger *zap.Logger

	engine   *ppi.Engine
	network  *netanalysis.Service
	pipeline *pipeline.Pipeline
}

// NewComponents wires the application graph from configuration. When no
// Postgres URL is configured the repository falls back to the in-memory
// store, which is enough for one-shot network and enrichment commands.
func NewComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{cfg: cfg, logger: logger}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			c.Shutdown()
		}
	}()

	if cfg.Postgres.URL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			initializationErr = fmt.Errorf("failed to create database pool: %w", err)
			return nil, initializationErr
		}
		c.DBPool = dbPool

		repo, err := store.New(ctx, dbPool, logger)
		if err != nil {
			initializationErr = fmt.Errorf("failed to initialize store: %w", err)
			return nil, initializationErr
		}
		c.Repo = repo
	} else {
		logger.Warn("No postgres.url configured, using in-memory store")
		c.Repo = store.NewInMemoryStore()
	}

	c.Pool = worker.NewPool(cfg.Worker.PoolSize, cfg.Worker.QueueSize, logger)
	c.Pool.Start()

	percentileCache := cache.New(4, cfg.PPI.PercentileTTL)
	c.Percentiles = ppi.NewPercentiles(percentileCache, cfg.PPI.PercentileMinGap, logger)

	c.Aggregator = scoring.NewAggregator(scoring.NewWeightMapper(cfg.Scoring.DefaultClassificationWeight), logger)

	lookup, err := termLookup(cfg.Enrichment, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	c.Analyzer = enrichment.NewAnalyzer(lookup, cfg.Enrichment.FDRThreshold, logger)
	c.Enrichr = enrichment.NewEnrichrClient(cfg.Enrichment, logger)

	return c, nil
}

// termLookup builds the HPO term name table when one is configured. Without
// a file, term ids double as display names.
func termLookup(cfg config.EnrichmentConfig, logger *zap.Logger) (schemas.TermLookup, error) {
	if cfg.HPOTermsPath == "" {
		return nil, nil
	}
	return enrichment.LoadTermFile(cfg.HPOTermsPath, logger)
}

// Engine loads the STRING interaction data on first use.
func (c *Components) Engine() (*ppi.Engine, error) {
	if c.engine == nil {
		engine, err := ppi.NewEngine(c.cfg.PPI, c.logger)
		if err != nil {
			return nil, err
		}
		c.engine = engine
	}
	return c.engine, nil
}

// NetworkService builds the graph analysis service, loading the PPI engine
// behind it on first use.
func (c *Components) NetworkService() (*netanalysis.Service, error) {
	if c.network == nil {
		engine, err := c.Engine()
		if err != nil {
			return nil, err
		}
		graphCache := cache.New(c.cfg.Network.GraphCacheSize, c.cfg.Network.GraphCacheTTL)
		c.network = netanalysis.NewService(c.cfg.Network, engine, graphCache, c.Pool, c.logger)
	}
	return c.network, nil
}

// ScoringPipeline builds the end-to-end scoring pipeline on first use.
func (c *Components) ScoringPipeline() (*pipeline.Pipeline, error) {
	if c.pipeline == nil {
		engine, err := c.Engine()
		if err != nil {
			return nil, err
		}
		c.pipeline = pipeline.New(c.Repo, c.Aggregator, engine, c.Percentiles, c.cfg.Worker.PoolSize, c.logger)
	}
	return c.pipeline, nil
}

// Shutdown releases components in reverse dependency order: the worker pool
// drains before the database pool closes.
func (c *Components) Shutdown() {
	if c.Pool != nil {
		c.Pool.Stop()
		c.Pool = nil
	}
	if c.DBPool != nil {
		c.DBPool.Close()
		c.DBPool = nil
	}
	if c.logger != nil {
		c.logger.Debug("Components shut down")
	}
}
