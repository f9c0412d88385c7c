package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/internal/config"
	"github.com/nephroseq/genevidence-cli/internal/observability"
)

// newPercentilesCmd recomputes the global PPI score percentiles from the
// stored evidence scores and prints the resulting map. The recompute is
// rate limited; a skipped run reports the previously published map.
func newPercentilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "percentiles",
		Short: "Recompute and print global PPI score percentiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Get()
			logger := observability.GetLogger()

			components, err := NewComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			scores, err := components.Repo.GeneScores(ctx)
			if err != nil {
				return fmt.Errorf("failed to read gene scores: %w", err)
			}
			evidenceScores := make(map[string]float64, len(scores))
			for _, gs := range scores {
				if gs.PercentageScore != nil {
					evidenceScores[gs.Symbol] = *gs.PercentageScore
				}
			}

			engine, err := components.Engine()
			if err != nil {
				return err
			}
			batch := engine.AnnotateAll(evidenceScores, nil, cfg.Worker.PoolSize)
			ppiScores := make(map[string]float64, len(batch.Annotations))
			for _, ann := range batch.Annotations {
				ppiScores[ann.Symbol] = ann.Score
			}

			recomputed := components.Percentiles.Recompute(ppiScores)
			if !recomputed {
				logger.Info("Percentile recompute skipped by rate limit")
			}
			logger.Info("Percentiles published",
				zap.Int("genes", len(ppiScores)),
				zap.Int("skipped", batch.Skipped),
				zap.Bool("recomputed", recomputed))

			out := struct {
				Recomputed  bool               `json:"recomputed"`
				Percentiles map[string]float64 `json:"percentiles"`
			}{
				Recomputed:  recomputed,
				Percentiles: components.Percentiles.Current(),
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
