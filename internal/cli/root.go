package cli

import (
	"context"

	"github.com/GriffinCanCode/worktabs/internal/ws"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

type globals struct {
	cfgFile  string
	logLevel string

	// dialer replaces the WebSocket dialer when set
	dialer ws.Dialer
}

// NewRootCmd builds the worktabs command tree
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "worktabs",
		Short: "Manage terminal sessions of kanban worktrees",
		Long: `worktabs keeps one terminal tab per worktree session, grouped by project.
It talks to the kanban server's terminal API, keeps every session's
connection alive and remembers the tab order of each project.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file (.yaml, .yml or .toml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
	root.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	root.AddCommand(
		newListCmd(g),
		newCountsCmd(g),
		newCreateCmd(g),
		newRenameCmd(g),
		newCloseCmd(g),
		newReorderCmd(g),
		newAttachCmd(g),
		newWatchCmd(g),
	)
	return root
}

// Execute runs the command tree until ctx is cancelled
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
