// Package clean provides the clean command.
package clean

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/cmd/cmdutil"
	"github.com/agentstation/kbmirror/internal/cmd/notify"
	"github.com/agentstation/kbmirror/internal/report"
)

// NewCommand creates the clean command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		dryRun bool
		out    *cmdutil.ReportFlag
	)

	cmd := &cobra.Command{
		Use:     "clean",
		GroupID: "core",
		Short:   "Delete duplicate documents, keeping the most processed copy",
		Long: `Clean syncs the mirror, then deletes every duplicate document from the
knowledge base except the copy with the highest processing progress (the
first seen copy on ties). Deletions that fail are reported; the rest of the
cleanup still runs. An authentication failure stops it immediately.`,
		Example: `  kbmirror clean --dry-run            # Show what would be deleted
  kbmirror clean --out cleanup.md     # Delete and save a Markdown report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			km, kbID, err := cmdutil.Target(app)
			if err != nil {
				return err
			}

			result, err := km.Clean(cmd.Context(), kbID, kbmirror.WithDryRun(dryRun))
			if result != nil {
				if rerr := cmdutil.Render(cmd, app, result); rerr != nil && err == nil {
					err = rerr
				}
				if werr := out.Write(cmd, app, result); werr != nil && err == nil {
					err = werr
				}
			}
			if err != nil {
				return err
			}

			summarize(cmdutil.Notifier(cmd, app), result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	out = cmdutil.AddReportFlag(cmd)
	return cmd
}

// summarize reports the outcome. Failed deletions are a warning, not an
// error: the surviving records stay in the mirror and the next clean
// retries them.
func summarize(n *notify.Notifier, result *kbmirror.CleanResult) {
	switch {
	case result.DryRun:
		planned := 0
		for _, g := range result.Groups {
			planned += len(g.Removals)
		}
		n.Info("dry run: %d %s in %d %s would be deleted",
			planned, report.Plural(planned, "document", "documents"),
			result.TotalGroups, report.Plural(result.TotalGroups, "group", "groups"))
	case result.TotalGroups == 0:
		n.Success("no duplicates in %s", result.KnowledgeBase)
	default:
		n.Success("deleted %d %s in %d %s",
			result.TotalDeleted, report.Plural(result.TotalDeleted, "document", "documents"),
			result.TotalGroups, report.Plural(result.TotalGroups, "group", "groups"))
	}

	if len(result.FailedDeletions) > 0 {
		var details []string
		for _, g := range result.Groups {
			for _, r := range g.Removals {
				if r.Outcome == kbmirror.RemovalFailed {
					details = append(details, fmt.Sprintf("%s: %s", r.ID, r.Error))
				}
			}
		}
		n.Notify(notify.LevelWarning, fmt.Sprintf("%d deletions failed", len(result.FailedDeletions)), details...)
	}
}
