package cmd

import (
	"context"
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

// newEnrichCmd runs phenotype term enrichment for a gene cluster. The default
// mode tests HPO annotations from the evidence store with Fisher's exact test;
// --library switches to the external Enrichr API instead.
func newEnrichCmd() *cobra.Command {
	var (
		library    string
		background []string
	)

	cmd := &cobra.Command{
		Use:   "enrich GENE [GENE...]",
		Short: "Run phenotype enrichment for a gene cluster",
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

			cluster := make([]string, 0, len(args))
			for _, g := range args {
				if g = strings.ToUpper(strings.TrimSpace(g)); g != "" {
					cluster = append(cluster, g)
				}
			}

			var universe []string
			for _, g := range background {
				if g = strings.ToUpper(strings.TrimSpace(g)); g != "" {
					universe = append(universe, g)
				}
			}

			var results []schemas.EnrichmentResult
			if library != "" {
				results, err = components.Enrichr.Results(ctx, cluster, library, cfg.Enrichment.FDRThreshold)
				if err != nil {
					return err
				}
			} else {
				annotations, err := hpoAnnotations(ctx, components)
				if err != nil {
					return err
				}
				results, err = components.Analyzer.AnalyzeCluster(ctx, cluster, universe, annotations)
				if err != nil {
					return err
				}
			}

			logger.Info("Enrichment complete",
				zap.Int("cluster_size", len(cluster)),
				zap.Int("significant_terms", len(results)))

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}

	cmd.Flags().StringVarP(&library, "library", "l", "", "Enrichr gene set library; empty runs local HPO enrichment")
	cmd.Flags().StringSliceVar(&background, "background", nil, "explicit background gene universe for HPO enrichment; empty defaults to the annotated genes")

	return cmd
}

// hpoAnnotations collects per-gene HPO term ids from the evidence store.
func hpoAnnotations(ctx context.Context, components *Components) (map[string][]string, error) {
	snapshot, err := components.Repo.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot evidence: %w", err)
	}

	annotations := make(map[string][]string)
	for _, record := range snapshot.Records {
		payload, ok := record.Payload.(schemas.HPOPayload)
		if !ok {
			continue
		}
		annotations[record.Symbol] = append(annotations[record.Symbol], payload.TermIDs...)
	}
	return annotations, nil
}
