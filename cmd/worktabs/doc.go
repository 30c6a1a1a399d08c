// Command worktabs manages the terminal sessions of kanban worktrees from
// the command line.
//
// Usage:
//
//	worktabs list <project>
//	worktabs create <project> --worktree <id> [--title T] [--dir D]
//	worktabs attach <project> <session>
//	worktabs watch <project>... [--addr :9464]
//
// Configuration comes from WORKTABS_* environment variables and an optional
// --config file.
package main
