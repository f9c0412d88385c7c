package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/config"
	"github.com/nephroseq/genevidence-cli/internal/observability"
)

// newAnnotateCmd annotates individual genes with their interaction summary
// against the stored evidence scores. Genes with no positive evidence score
// are reported as skipped.
func newAnnotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "annotate GENE [GENE...]",
		Short: "Compute PPI annotations for one or more genes",
		Args:  cobra.MinimumNArgs(1),
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
			percentiles := components.Percentiles.Current()

			annotations := make([]schemas.PPIAnnotation, 0, len(args))
			var skipped []string
			for _, symbol := range args {
				symbol = strings.ToUpper(strings.TrimSpace(symbol))
				if symbol == "" {
					continue
				}
				ann, ok := engine.Annotate(symbol, evidenceScores, percentiles)
				if !ok {
					skipped = append(skipped, symbol)
					continue
				}
				annotations = append(annotations, ann)
			}
			if len(skipped) > 0 {
				logger.Warn("Genes without positive evidence were skipped",
					zap.Strings("symbols", skipped))
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(annotations)
		},
	}
}
