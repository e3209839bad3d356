package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror/pkg/errors"
)

// Exit statuses.
const (
	ExitOK           = 0
	ExitError        = 1
	ExitUnauthorized = 2
)

// globalFlags are the persistent flags of the root command.
type globalFlags struct {
	configFile string
	verbose    bool
	quiet      bool
	noColor    bool
	format     string
	logLevel   string
	kb         string
	mirror     string
}

// Execute runs the kbmirror CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	a.flags = globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "kbmirror",
		Short:   "Mirror a RAGFlow knowledge base and remove duplicate documents",
		Version: a.version,
		Long: `kbmirror keeps a local mirror of the documents of a RAGFlow knowledge base,
including the SHA-256 of every document's content. The mirror is used to
report and remove duplicate uploads, to skip uploads of content that is
already present, and to trigger parsing of unparsed documents.

The remote is configured with RAGFLOW_BASE_URL and RAGFLOW_AUTH_TOKEN, the
knowledge base with --kb or RAGFLOW_KB_ID.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands:",
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "config file (default is $HOME/.kbmirror.yaml)")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	pf.BoolVarP(&a.flags.quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	pf.StringVarP(&a.flags.format, "format", "o", "", "output format: table, json, yaml, wide")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	pf.StringVar(&a.flags.kb, "kb", "", "knowledge base id (default $RAGFLOW_KB_ID)")
	pf.StringVar(&a.flags.mirror, "mirror", "", "mirror DSN: path, sqlite://, postgres:// or redis:// (default $KBMIRROR_MIRROR_DSN)")

	rootCmd.SetVersionTemplate("kbmirror {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if a.flags.configFile != "" {
		config, err := LoadConfig(a.flags.configFile)
		if err != nil {
			return err
		}
		a.config = config
	}

	a.config.UpdateFromFlags(&a.flags)

	// watch --interval must reach the client before it is created
	if f := cmd.Flags().Lookup("interval"); f != nil && f.Changed {
		interval, err := cmd.Flags().GetDuration("interval")
		if err != nil {
			return err
		}
		if interval <= 0 {
			return errors.NewValidationError("interval", interval, "must be positive")
		}
		a.config.SyncInterval = interval
	}

	if !a.fixedLogger {
		a.configureLogger()
	}
	return nil
}

// ExitCode maps an error to the process exit status. Authentication
// failures get their own status so scripts can tell them apart.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.IsFatal(err):
		return ExitUnauthorized
	default:
		return ExitError
	}
}

// ExitOnError prints err and exits with its ExitCode. It is meant to be
// used in main.go only.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(ExitCode(err))
	}
}
