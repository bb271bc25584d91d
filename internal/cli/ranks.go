package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	pkgio "github.com/incidentlab/topograph/pkg/io"
	"github.com/incidentlab/topograph/pkg/pipeline"
)

// ranksCommand creates the ranks command, which prints the layered rank
// rows of a snapshot.
func (c *CLI) ranksCommand() *cobra.Command {
	var (
		asJSON    bool
		aggregate bool
		policy    string
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:   "ranks <snapshot>",
		Short: "Print the rank rows of a snapshot",
		Long: `Print entities grouped by rank. A rank holding entity types at several
dependency depths is split into sub-rank rows, shallowest first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			depthPolicy, err := pipeline.ParseDepthPolicy(policy)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, args[0], noCache, nil)
			if err != nil {
				return err
			}
			defer runner.Close()

			res, err := runner.Execute(ctx, pipeline.Options{
				Ref:         args[0],
				Aggregate:   aggregate,
				DepthPolicy: depthPolicy,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return pkgio.WriteRanks(res.Ranks, out)
			}
			fmt.Fprintln(out, rankTable(res.Ranks))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	cmd.Flags().BoolVar(&aggregate, "aggregate", false, "aggregate before grouping")
	cmd.Flags().StringVar(&policy, "depth-policy", pipeline.DepthPolicyLastWrite, "type depth policy: last-write, max")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the snapshot cache")

	return cmd
}
