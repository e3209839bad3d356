// Package remove provides the delete command.
package remove

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/cmd/cmdutil"
	"github.com/agentstation/kbmirror/pkg/errors"
)

// NewCommand creates the delete command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <doc-id>...",
		Aliases: []string{"rm"},
		GroupID: "core",
		Short:   "Delete documents by id",
		Long: `Delete removes each document from the knowledge base and, once the remote
confirms, from the local mirror. Every id is attempted; an authentication
failure stops at once.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			km, err := app.Client()
			if err != nil {
				return err
			}

			n := cmdutil.Notifier(cmd, app)
			var errs []error
			for _, id := range args {
				if err := km.Delete(cmd.Context(), id); err != nil {
					if errors.IsFatal(err) {
						return err
					}
					n.Warning("%s: %v", id, err)
					errs = append(errs, err)
					continue
				}
				n.Success("deleted %s", id)
			}
			return errors.Join(errs...)
		},
	}
}
