// Package sync provides the sync command.
package sync

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/cmd/cmdutil"
)

// NewCommand creates the sync command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "sync",
		GroupID: "core",
		Short:   "Bring the local mirror up to date with the knowledge base",
		Long: `Sync lists every document of the knowledge base and reconciles the local
mirror with the listing. Documents never seen before are downloaded once and
hashed; known documents only get their processing progress refreshed.

Documents that cannot be downloaded are reported and retried on the next sync.`,
		Example: `  kbmirror sync --kb 7f3c...          # Sync one knowledge base
  kbmirror sync -o json                # Machine-readable summary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			km, kbID, err := cmdutil.Target(app)
			if err != nil {
				return err
			}

			result, err := km.Sync(cmd.Context(), kbID)
			if err != nil {
				return err
			}
			if err := cmdutil.Render(cmd, app, result); err != nil {
				return err
			}

			n := cmdutil.Notifier(cmd, app)
			switch {
			case result.Complete():
				n.Success("mirror up to date (%d added, %d refreshed)", result.Added, result.Refreshed)
			case result.ListingError != "":
				n.Warning("listing stopped early: %s", result.ListingError)
			default:
				n.Warning("%d documents could not be hashed and will be retried", len(result.Failed))
			}
			return nil
		},
	}
}
