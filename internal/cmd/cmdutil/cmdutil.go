// Package cmdutil holds the plumbing shared by kbmirror commands: resolving
// the client and knowledge base, rendering results and report files.
package cmdutil

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/cmd/notify"
	"github.com/agentstation/kbmirror/internal/cmd/output"
)

// Target resolves the client and the knowledge base a command acts on.
func Target(app application.Application) (kbmirror.Client, string, error) {
	kbID, err := app.KnowledgeBase()
	if err != nil {
		return nil, "", err
	}
	km, err := app.Client()
	if err != nil {
		return nil, "", err
	}
	return km, kbID, nil
}

// Format returns the validated output format.
func Format(app application.Application) (output.Format, error) {
	if _, err := output.ParseFormat(app.OutputFormat()); err != nil {
		return "", err
	}
	return output.DetectFormat(app.OutputFormat()), nil
}

// Render writes data to the command's output in the configured format.
func Render(cmd *cobra.Command, app application.Application, data any) error {
	format, err := Format(app)
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
}

// Notifier returns a notifier writing to the command's error stream.
func Notifier(cmd *cobra.Command, app application.Application) *notify.Notifier {
	return notify.New(notify.Config{
		Writer:  cmd.ErrOrStderr(),
		NoColor: app.NoColor(),
		Quiet:   app.Quiet(),
	})
}

// ReportFlag holds the --out flag of commands that can save a report.
type ReportFlag struct {
	Path string
}

// AddReportFlag registers --out on cmd.
func AddReportFlag(cmd *cobra.Command) *ReportFlag {
	f := &ReportFlag{}
	cmd.Flags().StringVar(&f.Path, "out", "", "write the report to a file (.md for Markdown, plain text otherwise)")
	return f
}

// Write saves result when --out was given.
func (f *ReportFlag) Write(cmd *cobra.Command, app application.Application, result output.Texter) error {
	if f.Path == "" {
		return nil
	}
	if err := output.WriteReport(f.Path, result); err != nil {
		return err
	}
	Notifier(cmd, app).Info("report written to %s", f.Path)
	return nil
}
