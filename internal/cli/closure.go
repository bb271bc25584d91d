package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/incidentlab/topograph/pkg/errors"
	"github.com/incidentlab/topograph/pkg/incident"
	pkgio "github.com/incidentlab/topograph/pkg/io"
	"github.com/incidentlab/topograph/pkg/pipeline"
)

// stdinIsTerminal gates the interactive picker.
var stdinIsTerminal = func() bool { return isTerminal(os.Stdin) }

// closureOpts holds the flags of the closure command.
type closureOpts struct {
	service    bool
	incidentID int64
	snapshotID string
	svc        serviceOpts
	aggregate  bool
	output     string
}

// closureCommand creates the closure command, which reduces a snapshot to
// the dependency closure of one entity.
func (c *CLI) closureCommand() *cobra.Command {
	var opts closureOpts

	cmd := &cobra.Command{
		Use:   "closure <snapshot> [entity-id]",
		Short: "Extract the dependency closure of an entity",
		Long: `Extract the entities reachable from an entity along dependency edges, in
both directions, together with the edges between them.

Without an entity id on a terminal, an interactive picker lists the entities.
With --service, the closure is fetched from the topology service and anomaly
data is filled in from the local snapshot.`,
		Example: `  topograph closure incident.json pod-1 -o pod-1.json
  topograph closure incident.json pod-1 --service --incident 1001 --snapshot-id s1`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID := ""
			if len(args) == 2 {
				entityID = args[1]
			}
			return c.runClosure(cmd, args[0], entityID, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.service, "service", false, "query the topology service instead of the local snapshot")
	cmd.Flags().Int64Var(&opts.incidentID, "incident", 0, "incident id (with --service)")
	cmd.Flags().StringVar(&opts.snapshotID, "snapshot-id", "", "snapshot id known to the topology service (with --service)")
	cmd.Flags().StringVar(&opts.svc.url, "topology-url", "", "topology service base URL (default $TOPOGRAPH_TOPOLOGY_URL)")
	cmd.Flags().StringVar(&opts.svc.redis, "redis", "", "Redis address for the shared topology cache (default $TOPOGRAPH_REDIS_ADDR)")
	cmd.Flags().BoolVar(&opts.svc.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.svc.refresh, "refresh", false, "ignore cached topology responses")
	cmd.Flags().BoolVar(&opts.aggregate, "aggregate", false, "aggregate the closure")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output JSON file (- for stdout; default <snapshot>.closure.json)")

	return cmd
}

func (c *CLI) runClosure(cmd *cobra.Command, ref, entityID string, opts closureOpts) error {
	ctx := cmd.Context()
	prog := newProgress(c.Logger)

	var fetcher incident.TopologyFetcher
	if opts.service {
		f, closeCache, err := c.newFetcher(ctx, opts.svc)
		if err != nil {
			return err
		}
		defer closeCache()
		fetcher = f
	}

	runner, err := c.newRunner(ctx, ref, opts.svc.noCache, fetcher)
	if err != nil {
		return err
	}
	defer runner.Close()

	snap, err := runner.Load(ctx, ref)
	if err != nil {
		return err
	}

	if entityID == "" {
		if !stdinIsTerminal() {
			return errors.New(errors.ErrCodeInvalidInput, "an entity id is required when not running on a terminal")
		}
		if entityID, err = pickEntity(cmd.InOrStdin(), cmd.ErrOrStderr(), snap); err != nil {
			return err
		}
		if entityID == "" {
			return nil
		}
	}

	popts := pipeline.Options{
		Ref:        ref,
		EntityID:   entityID,
		ViaService: opts.service,
		IncidentID: opts.incidentID,
		SnapshotID: opts.snapshotID,
	}

	sub, err := c.closureWithSpinner(ctx, cmd.ErrOrStderr(), runner, snap, popts)
	if err != nil {
		return err
	}
	if opts.aggregate {
		runner.Aggregate(ctx, sub, popts.AggregateOptions())
	}
	prog.done("Closure of "+entityID, "entities", sub.EntityCount(), "edges", sub.EdgeCount())

	return writeSnapshot(cmd.OutOrStdout(), sub, outputPath(opts.output, ref, "closure.json"))
}

// closureWithSpinner runs the closure stage, showing a spinner on a terminal
// while the topology service is queried.
func (c *CLI) closureWithSpinner(ctx context.Context, w io.Writer, runner *pipeline.Runner, snap *incident.Snapshot, opts pipeline.Options) (*incident.Snapshot, error) {
	if !opts.ViaService || !isTerminal(w) {
		return runner.Closure(ctx, snap, opts)
	}
	spin := newSpinner(ctx, w, fmt.Sprintf("Fetching topology of %s", opts.EntityID))
	spin.Start()
	sub, err := runner.Closure(ctx, snap, opts)
	if err != nil {
		spin.Stop()
		return nil, err
	}
	spin.StopWithSuccess(fmt.Sprintf("Fetched %d entities", sub.EntityCount()))
	return sub, nil
}

// pickEntity runs the interactive entity picker. An empty id means the user
// quit without choosing.
func pickEntity(in io.Reader, out io.Writer, snap *incident.Snapshot) (string, error) {
	m := NewEntityPickerModel(snap.Entities())
	final, err := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return "", fmt.Errorf("entity picker: %w", err)
	}
	if picked := final.(EntityPickerModel).Selected; picked != nil {
		return picked.ID, nil
	}
	return "", nil
}

// writeSnapshot writes the serialized snapshot to path, or to w when path
// is "-".
func writeSnapshot(w io.Writer, s *incident.Snapshot, path string) error {
	if path == "-" {
		return pkgio.WriteSnapshot(s, w)
	}
	if err := pkgio.ExportSnapshot(s, path); err != nil {
		return err
	}
	printSuccess(w, "Wrote %d entities, %d edges", s.EntityCount(), s.EdgeCount())
	printFile(w, path)
	return nil
}
