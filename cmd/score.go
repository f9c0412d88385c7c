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

// newScoreCmd runs the full scoring pipeline: snapshot the evidence store,
// aggregate per-source scores, persist them, and annotate every scored gene
// with its interaction summary.
func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Aggregate evidence into gene scores and PPI annotations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Get()
			logger := observability.GetLogger()

			components, err := NewComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			scoring, err := components.ScoringPipeline()
			if err != nil {
				return err
			}

			report, err := scoring.Run(ctx)
			if err != nil {
				logger.Error("Scoring pipeline failed", zap.Error(err))
				return fmt.Errorf("scoring pipeline failed: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
