package cmd

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/config"
	"github.com/nephroseq/genevidence-cli/internal/netanalysis"
	"github.com/nephroseq/genevidence-cli/internal/observability"
)

type clusterOutput struct {
	Network    schemas.NetworkGraph     `json:"network"`
	Clusters   *schemas.ClusterResult   `json:"clusters,omitempty"`
	Centrality schemas.CentralityResult `json:"centrality,omitempty"`
}

// newClusterCmd builds a STRING interaction network over the given genes,
// filters it, and runs community detection with optional centrality metrics.
func newClusterCmd() *cobra.Command {
	var (
		algorithm      string
		minScore       int
		minDegree      int
		removeIsolated bool
		largestOnly    bool
		seeds          []string
		hops           int
		centrality     []string
	)

	cmd := &cobra.Command{
		Use:   "cluster GENE [GENE...]",
		Short: "Build an interaction network and detect gene communities",
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

			genes := make([]string, 0, len(args))
			for _, g := range args {
				if g = strings.ToUpper(strings.TrimSpace(g)); g != "" {
					genes = append(genes, g)
				}
			}

			network, err := components.NetworkService()
			if err != nil {
				return err
			}

			graph, err := network.BuildNetwork(ctx, genes, minScore)
			if err != nil {
				return err
			}

			if len(seeds) > 0 {
				upper := make([]string, 0, len(seeds))
				for _, s := range seeds {
					upper = append(upper, strings.ToUpper(strings.TrimSpace(s)))
				}
				graph, err = network.KHopSubgraph(graph, upper, hops)
				if err != nil {
					return err
				}
			}
			if minDegree > 0 || removeIsolated || largestOnly {
				graph = netanalysis.FilterNetwork(graph, minDegree, removeIsolated, largestOnly)
			}

			out := clusterOutput{Network: graph.Export()}

			if algorithm != "none" {
				result, err := netanalysis.Cluster(graph, schemas.ClusterAlgorithm(algorithm), cfg.Network)
				if err != nil {
					return err
				}
				out.Clusters = &result
				distinct := make(map[int]struct{}, len(result.Assignments))
				for _, id := range result.Assignments {
					distinct[id] = struct{}{}
				}
				logger.Info("Community detection complete",
					zap.String("algorithm", algorithm),
					zap.Int("clusters", len(distinct)),
					zap.Float64("modularity", result.Modularity))
			}

			if len(centrality) > 0 {
				metrics := make([]schemas.CentralityMetric, 0, len(centrality))
				for _, m := range centrality {
					metrics = append(metrics, schemas.CentralityMetric(strings.ToLower(m)))
				}
				cr, err := netanalysis.Centrality(graph, metrics)
				if err != nil {
					return err
				}
				out.Centrality = cr
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", string(schemas.AlgorithmLeiden), "community detection algorithm (leiden, louvain, walktrap, none)")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "minimum STRING combined score (0 uses the configured default)")
	cmd.Flags().IntVar(&minDegree, "min-degree", 0, "drop vertices below this degree")
	cmd.Flags().BoolVar(&removeIsolated, "remove-isolated", false, "drop vertices without any remaining edge")
	cmd.Flags().BoolVar(&largestOnly, "largest-component", false, "keep only the largest connected component")
	cmd.Flags().StringSliceVar(&seeds, "seed", nil, "restrict the network to the neighborhood of these genes")
	cmd.Flags().IntVar(&hops, "hops", 1, "neighborhood radius when --seed is set")
	cmd.Flags().StringSliceVar(&centrality, "centrality", nil, "centrality metrics to compute (degree, betweenness, closeness, pagerank)")

	return cmd
}
