package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/kbmirror/cmd/kbmirror/cmd/clean"
	"github.com/agentstation/kbmirror/cmd/kbmirror/cmd/list"
	"github.com/agentstation/kbmirror/cmd/kbmirror/cmd/parse"
	"github.com/agentstation/kbmirror/cmd/kbmirror/cmd/plan"
	"github.com/agentstation/kbmirror/cmd/kbmirror/cmd/remove"
	"github.com/agentstation/kbmirror/cmd/kbmirror/cmd/report"
	synccmd "github.com/agentstation/kbmirror/cmd/kbmirror/cmd/sync"
	"github.com/agentstation/kbmirror/cmd/kbmirror/cmd/upload"
	"github.com/agentstation/kbmirror/cmd/kbmirror/cmd/version"
	"github.com/agentstation/kbmirror/cmd/kbmirror/cmd/watch"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(synccmd.NewCommand(a))
	rootCmd.AddCommand(list.NewCommand(a))
	rootCmd.AddCommand(report.NewCommand(a))
	rootCmd.AddCommand(plan.NewCommand(a))
	rootCmd.AddCommand(clean.NewCommand(a))
	rootCmd.AddCommand(upload.NewCommand(a))
	rootCmd.AddCommand(parse.NewCommand(a))
	rootCmd.AddCommand(remove.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(watch.NewCommand(a))
	rootCmd.AddCommand(version.NewCommand(a))
}
