// Package parse provides the parse command.
package parse

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/cmd/cmdutil"
)

// NewCommand creates the parse command.
func NewCommand(app application.Application) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:     "parse",
		GroupID: "core",
		Short:   "Start parsing of documents that were never parsed or failed",
		Long: `Parse lists the knowledge base, classifies every document by its parsing
state and requests parsing of the pending and failed ones, ten at a time.
A failed batch is reported and the remaining batches still run.`,
		Example: `  kbmirror parse --dry-run            # Only count documents per state
  kbmirror parse`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			km, kbID, err := cmdutil.Target(app)
			if err != nil {
				return err
			}

			result, err := km.Parse(cmd.Context(), kbID, kbmirror.WithDryRun(dryRun))
			if err != nil {
				return err
			}
			if err := cmdutil.Render(cmd, app, result); err != nil {
				return err
			}

			n := cmdutil.Notifier(cmd, app)
			switch {
			case dryRun:
				n.Info("dry run: %d documents would be queued", len(result.Queued))
			case len(result.FailedBatches) > 0:
				n.Warning("%d of %d queued documents could not be started", len(result.Queued)-len(result.Triggered), len(result.Queued))
			default:
				n.Success("started parsing of %d documents", len(result.Triggered))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify documents without starting parsing")
	return cmd
}
