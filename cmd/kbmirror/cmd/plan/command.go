// Package plan provides the plan command.
package plan

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/cmd/cmdutil"
	"github.com/agentstation/kbmirror/internal/cmd/output"
	"github.com/agentstation/kbmirror/internal/cmd/table"
)

// NewCommand creates the plan command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "plan",
		GroupID: "core",
		Short:   "Show which duplicates clean would delete",
		Long: `Plan syncs the mirror and prints, for every duplicate group, the document
that is kept and the documents that clean would delete. In the plan the first
seen document is kept; clean itself keeps the most processed copy.`,
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

			plans, err := km.PlanDeletions(cmd.Context(), kbID)
			if err != nil {
				return err
			}

			switch format {
			case output.FormatTable, output.FormatWide:
				if len(plans) == 0 {
					cmdutil.Notifier(cmd, app).Success("no duplicates in %s", kbID)
					return nil
				}
				data := table.PlansToTableData(plans, format == output.FormatWide)
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
			default:
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), plans)
			}
		},
	}
}
