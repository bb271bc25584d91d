package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/incidentlab/topograph/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output    string   // output file (single format) or base path (several)
	formats   []string // dot, svg, png, json
	entityID  string   // render only the closure of this entity
	aggregate bool     // aggregate before rendering
	detailed  bool     // type, rank and anomaly score in node labels
	cluster   bool     // group nodes of a rank into a cluster
	noCache   bool
}

// renderCommand creates the render command for node-link diagrams.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <snapshot>",
		Short: "Render a snapshot as a node-link diagram",
		Long: `Render a snapshot with Graphviz. Root entities are outlined, anomalous
entities and edges are highlighted, and aggregated entities show the number
of peers they stand for.`,
		Example: `  topograph render incident.json
  topograph render incident.json -f dot,svg --aggregate --cluster
  topograph render mongo://snapshot-42 --entity pod-1 -f png -o pod-1.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			return c.runRender(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, png, json (comma-separated)")
	cmd.Flags().StringVar(&opts.entityID, "entity", "", "render only the dependency closure of this entity")
	cmd.Flags().BoolVar(&opts.aggregate, "aggregate", false, "aggregate indistinguishable entities")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show type, rank and anomaly score in labels")
	cmd.Flags().BoolVar(&opts.cluster, "cluster", false, "cluster nodes by rank")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the snapshot cache")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, ref string, opts *renderOpts) error {
	ctx := cmd.Context()
	runner, err := c.newRunner(ctx, ref, opts.noCache, nil)
	if err != nil {
		return err
	}
	defer runner.Close()

	popts := pipeline.Options{
		Ref:          ref,
		EntityID:     opts.entityID,
		Aggregate:    opts.aggregate,
		Formats:      opts.formats,
		Detailed:     opts.detailed,
		ClusterRanks: opts.cluster,
	}

	var spin *Spinner
	if isTerminal(cmd.ErrOrStderr()) {
		spin = newSpinner(ctx, cmd.ErrOrStderr(), "Rendering "+ref)
		spin.Start()
	}
	res, err := runner.Execute(ctx, popts)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}
	c.Logger.Debug("render timing", "load", res.Timing.Load, "render", res.Timing.Render)

	out := cmd.OutOrStdout()
	base := basePath(opts.output, ref)
	for _, format := range opts.formats {
		path := base + "." + format
		if len(opts.formats) == 1 && opts.output != "" {
			path = opts.output
		}
		if err := os.WriteFile(path, res.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(out, path)
	}
	printStats(out, res.Snapshot.Stats())
	return nil
}

// basePath derives the base output path. Without an output it is the
// snapshot reference minus its extension; a known format extension on the
// output is stripped.
func basePath(output, ref string) string {
	if output == "" {
		return strings.TrimSuffix(outputPath("", ref, "x"), ".x")
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
