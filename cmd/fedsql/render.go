package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/fedsql/fedsql/internal/engine"
	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/planner"
	"github.com/fedsql/fedsql/internal/util/timeutil"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	nullColor   = color.New(color.Faint)
	errColor    = color.New(color.FgRed)
	warnColor   = color.New(color.FgYellow)
	noteColor   = color.New(color.Faint)
)

// renderResult formats a result set as an aligned table with a
// trailing row-count line.
func renderResult(result *engine.Result) string {
	var sb strings.Builder

	cols := result.Columns
	widths := make([]int, len(cols))
	for i, name := range cols {
		widths[i] = len(name)
	}

	cells := make([][]string, 0, result.RowCount)
	for _, row := range result.Batch.Rows {
		line := make([]string, len(cols))
		for i := range cols {
			line[i] = row.Get(i).String()
			if len(line[i]) > widths[i] {
				widths[i] = len(line[i])
			}
		}
		cells = append(cells, line)
	}

	for i, name := range cols {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(headerColor.Sprintf("%-*s", widths[i], name))
	}
	sb.WriteString("\n")
	for i := range cols {
		if i > 0 {
			sb.WriteString("-+-")
		}
		sb.WriteString(strings.Repeat("-", widths[i]))
	}
	sb.WriteString("\n")

	for _, line := range cells {
		for i, cell := range line {
			if i > 0 {
				sb.WriteString(" | ")
			}
			if cell == "NULL" {
				sb.WriteString(nullColor.Sprintf("%-*s", widths[i], cell))
			} else {
				fmt.Fprintf(&sb, "%-*s", widths[i], cell)
			}
		}
		sb.WriteString("\n")
	}

	suffix := ""
	if result.FromCache {
		suffix = ", cached"
	}
	sb.WriteString(noteColor.Sprintf("(%d rows, %s%s)\n",
		result.RowCount, timeutil.FormatDuration(result.ExecutionTime), suffix))

	for _, rowErr := range result.RowErrors {
		sb.WriteString(warnColor.Sprintf("warning: %v\n", rowErr))
	}
	return sb.String()
}

// renderPlan formats an execution plan.
func renderPlan(plan *planner.ExecutionPlan) string {
	return planner.FormatText(plan) + "\n"
}

// renderStats formats a statistics snapshot.
func renderStats(snap engine.Snapshot) string {
	var sb strings.Builder
	sb.WriteString(headerColor.Sprint("Engine statistics") + "\n")
	fmt.Fprintf(&sb, "  queries:       %d (%d failed)\n", snap.Queries, snap.Failures)
	fmt.Fprintf(&sb, "  cache:         %d hits, %d misses\n", snap.CacheHits, snap.CacheMisses)
	fmt.Fprintf(&sb, "  rows returned: %d\n", snap.RowsReturned)
	fmt.Fprintf(&sb, "  rows fetched:  %d (%d bytes)\n", snap.RowsFetched, snap.BytesFetched)

	if len(snap.Sources) > 0 {
		sb.WriteString(headerColor.Sprint("Per source") + "\n")
		names := make([]string, 0, len(snap.Sources))
		for name := range snap.Sources {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			src := snap.Sources[name]
			fmt.Fprintf(&sb, "  %-12s %d fetches, %d rows, %dms\n",
				name, src.Queries, src.Rows, src.TimeMs)
		}
	}
	return sb.String()
}

// renderError formats an error with its SQLSTATE code and hint when it
// carries one.
func renderError(err error) string {
	coded, ok := errors.Coded(err)
	if !ok {
		return errColor.Sprintf("error: %v", err)
	}
	msg := errColor.Sprintf("error: %v", coded)
	if coded.Hint != "" {
		msg += "\n" + noteColor.Sprintf("hint: %s", coded.Hint)
	}
	return msg
}
