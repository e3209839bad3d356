// Package report provides the report command.
package report

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/cmd/cmdutil"
	reports "github.com/agentstation/kbmirror/internal/report"
)

// NewCommand creates the report command.
func NewCommand(app application.Application) *cobra.Command {
	var out *cmdutil.ReportFlag

	cmd := &cobra.Command{
		Use:     "report",
		GroupID: "core",
		Short:   "Report documents that share the same content",
		Long: `Report syncs the mirror and lists every group of documents with identical
content, most processed copy first. Nothing is deleted.`,
		Example: `  kbmirror report                      # Print the duplicate report
  kbmirror report --out dupes.md       # Also save it as Markdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			km, kbID, err := cmdutil.Target(app)
			if err != nil {
				return err
			}

			result, err := km.Report(cmd.Context(), kbID)
			if err != nil {
				return err
			}
			if err := cmdutil.Render(cmd, app, result); err != nil {
				return err
			}
			if err := out.Write(cmd, app, result); err != nil {
				return err
			}

			if len(result.Groups) > 0 {
				groups, redundant := len(result.Groups), result.Redundant()
				cmdutil.Notifier(cmd, app).Warning("%d duplicate %s, %d redundant %s",
					groups, reports.Plural(groups, "group", "groups"),
					redundant, reports.Plural(redundant, "document", "documents"))
			}
			return nil
		},
	}

	out = cmdutil.AddReportFlag(cmd)
	return cmd
}
