package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/GriffinCanCode/worktabs/internal/domain/terminal"
	"github.com/bytedance/sonic"
)

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTabs(w io.Writer, tabs []terminal.Tab, active string) {
	if len(tabs) == 0 {
		fmt.Fprintln(w, "No terminal sessions")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tTITLE\tWORKTREE\tSTATUS\tCREATED")
	for _, tab := range tabs {
		marker := ""
		if tab.ID == active {
			marker = "*"
		}
		status := tab.Session.Status
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", marker, tab.ID, orDash(tab.Title), orDash(tab.WorktreeID), status, orDash(tab.CreatedAt))
	}
	tw.Flush()
}

func printCounts(w io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "No terminal sessions")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tSESSIONS")
	for _, project := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(tw, "%s\t%d\n", project, counts[project])
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
