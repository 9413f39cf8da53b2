package tabular

import (
	"fmt"
	"strings"
)

// Render produces a fixed-width textual view of the table with a row index
// column, in the style the conversational caller reads back.
func Render(t *Table) string {
	if t.NumCols() == 0 {
		return "(empty table)"
	}
	widths := make([]int, t.NumCols())
	for c, name := range t.cols {
		widths[c] = len(name)
	}
	for _, row := range t.rows {
		for c, cell := range row {
			if len(cell) > widths[c] {
				widths[c] = len(cell)
			}
		}
	}
	idxWidth := len(fmt.Sprintf("%d", maxInt(t.NumRows()-1, 0)))

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", idxWidth))
	for c, name := range t.cols {
		b.WriteString("  ")
		b.WriteString(pad(name, widths[c]))
	}
	for r, row := range t.rows {
		b.WriteString("\n")
		b.WriteString(pad(fmt.Sprintf("%d", r), idxWidth))
		for c, cell := range row {
			b.WriteString("  ")
			b.WriteString(pad(cell, widths[c]))
		}
	}
	if t.NumRows() == 0 {
		b.WriteString("\n(0 rows)")
	}
	return b.String()
}

// Markdown renders the table as a GitHub-flavored markdown table, used by the
// report generator.
func Markdown(t *Table) string {
	if t.NumCols() == 0 {
		return "_no data_"
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(t.cols, " | ") + " |\n")
	seps := make([]string, t.NumCols())
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |")
	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "|", "\\|")
		}
		b.WriteString("\n| " + strings.Join(cells, " | ") + " |")
	}
	return b.String()
}

// Bound truncates a result to maxRows and renders it. When truncation occurs
// the text states the true total row and column counts alongside the head;
// otherwise the full table is rendered. Every tool that returns tabular
// output passes through here so no single response can grow unbounded.
func Bound(t *Table, maxRows int, label string) (*Table, string) {
	prefix := ""
	if strings.TrimSpace(label) != "" {
		prefix = label + "\n"
	}
	rows, cols := t.NumRows(), t.NumCols()
	if maxRows > 0 && rows > maxRows {
		head := t.Head(maxRows)
		text := fmt.Sprintf("%sResult has %d rows and %d cols. Showing first %d rows.\n%s",
			prefix, rows, cols, maxRows, Render(head))
		return head, text
	}
	return t, prefix + Render(t)
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return strings.Repeat(" ", w-len(s)) + s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
