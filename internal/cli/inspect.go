package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/incidentlab/topograph/pkg/incident"
	"github.com/incidentlab/topograph/pkg/pipeline"
)

// inspectCommand creates the inspect command, which loads a snapshot and
// prints its summary and rank rows.
func (c *CLI) inspectCommand() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Summarize a snapshot",
		Example: `  topograph inspect incident.json
  topograph inspect mongo://snapshot-42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.newRunner(ctx, args[0], noCache, nil)
			if err != nil {
				return err
			}
			defer runner.Close()

			res, err := runner.Execute(ctx, pipeline.Options{Ref: args[0]})
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), args[0], res.Snapshot)
			fmt.Fprintln(cmd.OutOrStdout(), rankTable(res.Ranks))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the snapshot cache")
	return cmd
}

// printSummary prints the header block of a snapshot.
func printSummary(w io.Writer, ref string, s *incident.Snapshot) {
	fmt.Fprintln(w, StyleTitle.Render(ref))
	printKeyValue(w, "Business", fmt.Sprint(s.BizID()))
	printKeyValue(w, "Categories", fmt.Sprint(len(s.Categories())))
	printKeyValue(w, "Ranks", fmt.Sprint(len(s.Ranks())))

	var roots []string
	for _, e := range s.Entities() {
		if e.IsRoot {
			roots = append(roots, e.ID)
		}
	}
	if len(roots) > 0 {
		printKeyValue(w, "Root", StyleAnomaly.Render(fmt.Sprint(roots)))
	}
	printStats(w, s.Stats())
}
