package cli

import (
	"github.com/spf13/cobra"

	pkgio "github.com/incidentlab/topograph/pkg/io"
	"github.com/incidentlab/topograph/pkg/pipeline"
)

// aggregateCommand creates the aggregate command, which merges
// indistinguishable entities and writes the aggregated snapshot.
func (c *CLI) aggregateCommand() *cobra.Command {
	var (
		configPath   string
		feedbackRoot string
		output       string
		noCache      bool
	)

	cmd := &cobra.Command{
		Use:   "aggregate <snapshot>",
		Short: "Merge indistinguishable entities",
		Long: `Merge entities that play the same role in the topology into a single
representative. Without --config, entities sharing type, neighbours and
service are merged while anomalous and root entities are kept apart.

The config file (TOML, or JSON with a .json extension) maps entity types to
the neighbour types that distinguish them:

  [BcsPod]
  aggregate_keys = ["BcsWorkload", "BkNodeHost"]
  aggregate_anomaly = false`,
		Example: `  topograph aggregate incident.json
  topograph aggregate incident.json --config aggregate.toml -o out.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := pipeline.Options{
				Ref:          args[0],
				Aggregate:    true,
				FeedbackRoot: feedbackRoot,
			}
			if configPath != "" {
				cfg, err := pkgio.ImportAggregateConfig(configPath)
				if err != nil {
					return err
				}
				c.Logger.Debug("aggregation config", "path", configPath, "types", len(cfg))
				opts.AggregateConfig = cfg
			}

			runner, err := c.newRunner(ctx, args[0], noCache, nil)
			if err != nil {
				return err
			}
			defer runner.Close()

			res, err := runner.Execute(ctx, opts)
			if err != nil {
				return err
			}

			out, info := cmd.OutOrStdout(), cmd.OutOrStdout()
			if output == "-" {
				info = cmd.ErrOrStderr()
			}
			printInfo(info, "Before")
			printStats(info, res.Before)
			printInfo(info, "After")
			printStats(info, res.Snapshot.Stats())
			if res.Aggregate.Groups == 0 {
				printWarning(info, "Nothing to aggregate")
			} else {
				printDetail(info, "%d groups, %d entities and %d edges merged",
					res.Aggregate.Groups, res.Aggregate.MergedEntities, res.Aggregate.MergedEdges)
			}
			return writeSnapshot(out, res.Snapshot, outputPath(output, args[0], "aggregated.json"))
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "aggregation config file (TOML or JSON)")
	cmd.Flags().StringVar(&feedbackRoot, "feedback-root", "", "entity id confirmed as root by incident feedback")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output JSON file (- for stdout; default <snapshot>.aggregated.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the snapshot cache")
	return cmd
}
