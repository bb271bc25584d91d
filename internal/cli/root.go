package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/incidentlab/topograph/pkg/buildinfo"
	"github.com/incidentlab/topograph/pkg/observability"
)

// traceFlushTimeout bounds how long pending spans are flushed on exit.
const traceFlushTimeout = 5 * time.Second

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var (
		trace    bool
		shutdown func(context.Context) error
	)

	root := &cobra.Command{
		Use:   appName,
		Short: "Topograph inspects incident topology snapshots",
		Long: `Topograph loads incident topology snapshots (entities, dependency edges,
ranks and alerts) and extracts dependency closures, aggregates indistinguishable
entities, lays out rank rows and renders node-link diagrams.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !trace {
				return nil
			}
			var err error
			if shutdown, err = observability.StdoutTracing(os.Stderr, buildinfo.Short()); err != nil {
				return err
			}
			hooks, err := observability.NewOTelHooks(nil, nil)
			if err != nil {
				return err
			}
			observability.InstallOTel(hooks)
			c.Logger.Debug("tracing enabled")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if shutdown == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
			defer cancel()
			return shutdown(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVar(&trace, "trace", false, "print OpenTelemetry spans to stderr")

	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.closureCommand())
	root.AddCommand(c.ranksCommand())
	root.AddCommand(c.aggregateCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
