// Package cli implements the worktabs command line.
//
// Every command builds its own runtime from configuration (REST client,
// tab order store, terminal manager), runs one operation through the
// terminal manager and tears the runtime down again. `watch` is the only
// long-running command.
package cli
