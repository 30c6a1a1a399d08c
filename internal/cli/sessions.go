package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/worktabs/internal/domain/terminal"
	"github.com/spf13/cobra"
)

func newListCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List the terminal sessions of a project in tab order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := strings.TrimSpace(args[0])

			rt, err := g.open(false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.mgr.LoadSessions(cmd.Context(), project); err != nil {
				return err
			}
			tabs := rt.mgr.ListSessions(project)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), tabs)
			}
			printTabs(cmd.OutOrStdout(), tabs, rt.mgr.ActiveTabID(project))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print sessions as JSON")
	return cmd
}

func newCountsCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show the number of terminal sessions per project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.open(false)
			if err != nil {
				return err
			}
			defer rt.Close()

			counts, err := rt.mgr.LoadTerminalCounts(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), counts)
			}
			printCounts(cmd.OutOrStdout(), counts)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print counts as JSON")
	return cmd
}

func newCreateCmd(g *globals) *cobra.Command {
	var opts terminal.CreateOptions

	cmd := &cobra.Command{
		Use:   "create <project>",
		Short: "Open a new terminal session in a worktree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.open(false)
			if err != nil {
				return err
			}
			defer rt.Close()

			tab, err := rt.mgr.CreateSession(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created session %s in project %s\n", tab.ID, tab.ProjectID)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.WorktreeID, "worktree", "", "worktree to open the session in (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "session title")
	cmd.Flags().StringVar(&opts.WorkingDir, "dir", "", "working directory")
	cmd.Flags().IntVar(&opts.Rows, "rows", 0, "terminal rows (default from config)")
	cmd.Flags().IntVar(&opts.Cols, "cols", 0, "terminal columns (default from config)")
	_ = cmd.MarkFlagRequired("worktree")
	return cmd
}

func newRenameCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <project> <session> <title>",
		Short: "Rename a terminal session",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.open(false)
			if err != nil {
				return err
			}
			defer rt.Close()

			title := strings.Join(args[2:], " ")
			tab, changed, err := rt.mgr.RenameSession(cmd.Context(), args[0], args[1], title)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s unchanged\n", args[1])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed session %s to %q\n", tab.ID, tab.Title)
			return nil
		},
	}
}

func newCloseCmd(g *globals) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "close <project> [session]",
		Short: "Close one terminal session, or all of a project's with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			project := strings.TrimSpace(args[0])

			rt, err := g.open(false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !all {
				if err := rt.mgr.CloseSession(cmd.Context(), project, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Closed session %s\n", args[1])
				return nil
			}

			if err := rt.mgr.LoadSessions(cmd.Context(), project); err != nil {
				return err
			}
			total := rt.mgr.TerminalCount(project)
			err = rt.mgr.CloseAllSessions(cmd.Context(), project)
			closed := total - rt.mgr.TerminalCount(project)
			fmt.Fprintf(cmd.OutOrStdout(), "Closed %d of %d sessions\n", closed, total)
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "close every session of the project")
	return cmd
}

func newReorderCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <project> <from> <to>",
		Short: "Move a tab to a new position; positions start at 0",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := strings.TrimSpace(args[0])
			from, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid from index %q", args[1])
			}
			to, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid to index %q", args[2])
			}

			rt, err := g.open(false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.mgr.LoadSessions(cmd.Context(), project); err != nil {
				return err
			}
			if !rt.mgr.ReorderTabs(project, from, to) {
				fmt.Fprintln(cmd.OutOrStdout(), "Tab order unchanged")
			}
			printTabs(cmd.OutOrStdout(), rt.mgr.ListSessions(project), rt.mgr.ActiveTabID(project))
			return nil
		},
	}
}
