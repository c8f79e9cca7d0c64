package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/branchweight/internal/accounting"
)

// TableOptions controls terminal rendering.
type TableOptions struct {
	// Limit caps the number of branch rows; zero means all.
	Limit int
	// NoColor disables ANSI colors for pipes and dumb terminals.
	NoColor bool
}

// RenderTable writes a human-readable summary of a run to w: a ranked
// branch table, run totals and any per-branch failures.
func RenderTable(w io.Writer, defaultBranch string, result *accounting.Result, opts TableOptions) {
	if opts.NoColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	heading := color.New(color.FgCyan, color.Bold)
	heading.Fprintf(w, "Branch object weight (not merged into %s)\n\n", defaultBranch)

	weights := result.Weights
	if opts.Limit > 0 && len(weights) > opts.Limit {
		weights = weights[:opts.Limit]
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"#", "Branch", "Total", "Unique", "Shared", "Objects"})

	for i, weight := range weights {
		tbl.AppendRow(table.Row{
			i + 1,
			weight.Branch,
			humanize.IBytes(weight.TotalSize),
			humanize.IBytes(weight.UniqueSize),
			humanize.IBytes(weight.SharedSize),
			weight.TotalObjects,
		})
	}

	tbl.AppendFooter(table.Row{
		"", fmt.Sprintf("%d branches", result.Totals.Branches),
		"", humanize.IBytes(result.Totals.UniqueSize),
		humanize.IBytes(result.Totals.SharedSize), result.Totals.DistinctObjects,
	})
	tbl.Render()

	fmt.Fprintf(w, "\nDistinct on-disk size across all branches: %s (%d objects)\n",
		humanize.IBytes(result.Totals.DistinctSize), result.Totals.DistinctObjects)

	renderFailures(w, result.Errors)
}

// RenderBreakdown writes a per-commit table for one branch.
func RenderBreakdown(w io.Writer, branch string, weights []accounting.CommitWeight) {
	heading := color.New(color.FgCyan, color.Bold)
	heading.Fprintf(w, "Unique objects of %s by introducing commit\n\n", branch)

	if len(weights) == 0 {
		fmt.Fprintln(w, "No unique objects.")

		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"Commit", "Size", "Objects"})

	for _, weight := range weights {
		tbl.AppendRow(table.Row{weight.Commit, humanize.IBytes(weight.Size), weight.Objects})
	}

	tbl.Render()
}

func renderFailures(w io.Writer, errs map[string]error) {
	if len(errs) == 0 {
		return
	}

	branches := make([]string, 0, len(errs))
	for branch := range errs {
		branches = append(branches, branch)
	}

	sort.Strings(branches)

	warn := color.New(color.FgYellow)
	warn.Fprintf(w, "\n%d branch(es) could not be collected:\n", len(branches))

	for _, branch := range branches {
		warn.Fprintf(w, "  - %s: %v\n", branch, errs[branch])
	}
}
