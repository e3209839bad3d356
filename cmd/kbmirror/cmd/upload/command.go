// Package upload provides the upload command.
package upload

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/cmd/application"
	"github.com/agentstation/kbmirror/internal/cmd/cmdutil"
	"github.com/agentstation/kbmirror/pkg/errors"
)

// NewCommand creates the upload command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		validatePDF bool
		out         *cmdutil.ReportFlag
	)

	cmd := &cobra.Command{
		Use:     "upload <file|dir>",
		GroupID: "core",
		Short:   "Upload files unless their content is already in the knowledge base",
		Long: `Upload hashes each file and uploads it only when no mirrored document of
the knowledge base has the same content. Given a directory, every PDF below
it is considered, in lexical order.`,
		Example: `  kbmirror upload paper.pdf
  kbmirror upload ./papers --validate-pdf --out upload.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			km, kbID, err := cmdutil.Target(app)
			if err != nil {
				return err
			}

			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				if os.IsNotExist(err) {
					return errors.NewNotFoundError("path", path)
				}
				return errors.WrapIO("stat", path, err)
			}

			opts := []kbmirror.OperationOption{kbmirror.WithPDFValidation(validatePDF)}
			n := cmdutil.Notifier(cmd, app)

			if !info.IsDir() {
				result, err := km.Upload(cmd.Context(), kbID, path, opts...)
				if err != nil {
					return err
				}
				if err := cmdutil.Render(cmd, app, result); err != nil {
					return err
				}
				if result.Skipped() {
					n.Info("skipped %s: content already present as %s", path, result.Existing.DocID)
				} else {
					n.Success("uploaded %s", path)
				}
				return out.Write(cmd, app, result)
			}

			result, err := km.UploadDirectory(cmd.Context(), kbID, path, opts...)
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

			n.Success("uploaded %d of %d files (%d skipped)", result.Uploaded, result.Total, result.Skipped)
			if result.Failed > 0 {
				n.Warning("%d files failed", result.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&validatePDF, "validate-pdf", false, "reject files that do not parse as PDF before uploading")
	out = cmdutil.AddReportFlag(cmd)
	return cmd
}
