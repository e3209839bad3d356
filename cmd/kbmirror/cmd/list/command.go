// Package list provides the list command.
package list

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/cmd/cmdutil"
	"github.com/agentstation/kbmirror/internal/cmd/output"
	"github.com/agentstation/kbmirror/internal/cmd/table"
)

// NewCommand creates the list command.
func NewCommand(app application.Application) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		GroupID: "core",
		Short:   "List mirrored documents",
		Long: `List shows the documents of the knowledge base as recorded in the local
mirror, in the order they were first seen. Use --sync to refresh the mirror
first.`,
		Example: `  kbmirror list                        # Mirrored documents
  kbmirror list --sync -o wide         # Refresh, then show sizes and hashes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			km, kbID, err := cmdutil.Target(app)
			if err != nil {
				return err
			}
			format, err := cmdutil.Format(app)
			if err != nil {
				return err
			}

			if refresh {
				if _, err := km.Sync(cmd.Context(), kbID); err != nil {
					return err
				}
			}

			records, err := km.Documents(cmd.Context(), kbID)
			if err != nil {
				return err
			}

			switch format {
			case output.FormatTable, output.FormatWide:
				if len(records) == 0 {
					cmdutil.Notifier(cmd, app).Info("no documents mirrored for %s (run kbmirror sync)", kbID)
					return nil
				}
				data := table.DocumentsToTableData(records, format == output.FormatWide)
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
			default:
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), records)
			}
		},
	}

	cmd.Flags().BoolVar(&refresh, "sync", false, "sync the mirror before listing")
	return cmd
}
