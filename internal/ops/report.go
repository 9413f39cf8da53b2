package ops

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/oterdem/mcptab/internal/runtime"
	"github.com/oterdem/mcptab/internal/tabular"
	"github.com/oterdem/mcptab/pkg/mcperr"
)

// Reporter renders analysis summaries as deterministic markdown. It is a pure
// presentation transform; the active table only serves as the default data
// sample when the caller does not supply one.
type Reporter struct {
	Store  *tabular.Store
	Limits runtime.Limits
	Clock  func() time.Time
}

// RegisterActions wires the report action into a dispatcher.
func (r *Reporter) RegisterActions(d *Dispatcher) {
	d.Register("generate_report", r.GenerateReport)
}

var reportFormats = map[string]bool{
	"executive":     true,
	"comprehensive": true,
	"dashboard":     true,
}

// GenerateReport assembles the markdown report. Metric keys are emitted in
// sorted order so identical payloads always render identically. The data
// sample goes through the same row bound as every other table response.
func (r *Reporter) GenerateReport(ctx context.Context, params map[string]any) Result {
	title, ok := stringParam(params, "title")
	if !ok || title == "" {
		title = "Analysis Report"
	}
	format, ok := stringParam(params, "format")
	if !ok || format == "" {
		format = "comprehensive"
	}
	if !reportFormats[format] {
		return Errorf(mcperr.Validation, "unsupported report format %q; use executive, comprehensive, or dashboard", format)
	}

	summary, _ := stringParam(params, "summary")
	recommendations, _ := stringSliceParam(params, "recommendations")
	insights, _ := stringSliceParam(params, "insights")

	maxTableRows := intParam(params, "max_table_rows", r.Limits.MaxRows)
	if maxTableRows <= 0 || maxTableRows > r.Limits.MaxRows {
		maxTableRows = r.Limits.MaxRows
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	now := time.Now
	if r.Clock != nil {
		now = r.Clock
	}
	fmt.Fprintf(&b, "_Generated %s — %s format_\n\n", now().Format("2006-01-02"), format)

	if summary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}

	if metrics, ok := params["metrics"].(map[string]any); ok && len(metrics) > 0 {
		b.WriteString("## Key Metrics\n\n")
		keys := make([]string, 0, len(metrics))
		for k := range metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("| Metric | Value |\n|---|---|\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "| %s | %v |\n", k, metrics[k])
		}
		b.WriteString("\n")
	}

	if format != "executive" {
		sample, provided, err := sampleTable(params)
		if err != nil {
			return Errorf(mcperr.Validation, "%v", err)
		}
		if !provided {
			sample = r.Store.Active()
		}
		bounded, _ := tabular.Bound(sample, maxTableRows, "")
		b.WriteString("## Data Sample\n\n")
		if bounded.NumRows() < sample.NumRows() {
			fmt.Fprintf(&b, "Result has %d rows and %d cols. Showing first %d rows.\n\n",
				sample.NumRows(), sample.NumCols(), bounded.NumRows())
		}
		b.WriteString(tabular.Markdown(bounded))
		b.WriteString("\n")
	}

	if len(insights) > 0 && format == "comprehensive" {
		b.WriteString("## Insights\n\n")
		for _, line := range insights {
			fmt.Fprintf(&b, "- %s\n", line)
		}
		b.WriteString("\n")
	}

	if len(recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for i, line := range recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, line)
		}
		b.WriteString("\n")
	}

	markdown := strings.TrimRight(b.String(), "\n") + "\n"

	if boolParam(params, "html", false) {
		html, err := renderHTML(markdown)
		if err != nil {
			return Errorf(mcperr.ReportFailed, "report HTML rendering failed: %v", err)
		}
		return TextResult(html)
	}
	return TextResult(markdown)
}

// sampleTable builds a table from the caller's data_sample rows (a list of
// column-to-value objects). Columns are the sorted union of row keys so the
// rendering is deterministic regardless of map iteration order; rows missing
// a key get an empty cell. An absent or empty data_sample returns ok=false,
// letting the report fall back to the active table.
func sampleTable(params map[string]any) (*tabular.Table, bool, error) {
	raw, ok := params["data_sample"].([]any)
	if !ok || len(raw) == 0 {
		return nil, false, nil
	}

	rowMaps := make([]map[string]any, 0, len(raw))
	seen := map[string]bool{}
	var columns []string
	for _, item := range raw {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, false, fmt.Errorf("data_sample must be a list of row objects mapping column names to values")
		}
		rowMaps = append(rowMaps, row)
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	rows := make([][]string, len(rowMaps))
	for i, row := range rowMaps {
		cells := make([]string, len(columns))
		for j, col := range columns {
			if v, ok := row[col]; ok {
				cells[j] = fmt.Sprintf("%v", v)
			}
		}
		rows[i] = cells
	}

	t, err := tabular.New(columns, rows)
	if err != nil {
		return nil, false, fmt.Errorf("data_sample rows are malformed: %w", err)
	}
	return t, true, nil
}

// renderHTML converts the report markdown to HTML with table support.
func renderHTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var out bytes.Buffer
	if err := md.Convert([]byte(markdown), &out); err != nil {
		return "", err
	}
	return out.String(), nil
}
