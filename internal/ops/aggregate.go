package ops

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/oterdem/mcptab/internal/runtime"
	"github.com/oterdem/mcptab/internal/tabular"
	"github.com/oterdem/mcptab/pkg/mcperr"
)

// Aggregator implements the two-phase grouped-aggregation protocol:
// group_by stores a projection keyed by distinct value tuples, and
// apply_aggregation consumes it. Aggregating always clears the projection so
// a stale one can never serve two unrelated aggregations. A single
// apply_aggregation call may carry its own group_by columns (one-shot form),
// and an explicitly empty group_by aggregates the whole active table.
type Aggregator struct {
	Store  *tabular.Store
	Limits runtime.Limits
}

// RegisterActions wires the aggregation actions into a dispatcher.
func (a *Aggregator) RegisterActions(d *Dispatcher) {
	d.Register("group_by", a.GroupBy)
	d.Register("apply_aggregation", a.ApplyAggregation)
}

// GroupBy validates the key columns and stores the projection, returning a
// bounded preview of group sizes.
func (a *Aggregator) GroupBy(ctx context.Context, params map[string]any) Result {
	columns, ok := stringSliceParam(params, "columns")
	if !ok {
		columns, ok = stringSliceParam(params, "group_by")
	}
	if !ok || len(columns) == 0 {
		return ErrorResult(mcperr.Validation, "group_by requires params.columns as a list of names")
	}
	return a.group(columns)
}

func (a *Aggregator) group(columns []string) Result {
	g, err := a.Store.Group(columns)
	if err != nil {
		if _, unknown := err.(*tabular.UnknownColumnError); unknown {
			return ErrorResult(mcperr.UnknownColumn, err.Error())
		}
		return ErrorResult(mcperr.AggregationFailed, err.Error())
	}

	_, preview := tabular.Bound(g.Sizes(), a.Limits.MaxRows, "")
	return TextResult(fmt.Sprintf("Successfully grouped by %v.\nGroup sizes preview:\n%s\nNow apply an aggregation function.", columns, preview))
}

// ApplyAggregation applies the named function. Resolution order:
//   - params.group_by present and non-empty: group first, then aggregate.
//   - params.group_by present but empty: aggregate the whole active table.
//   - params.group_by absent: a pending projection is required.
func (a *Aggregator) ApplyAggregation(ctx context.Context, params map[string]any) Result {
	fn, ok := stringParam(params, "aggregation")
	if !ok || fn == "" {
		return ErrorResult(mcperr.Validation, "apply_aggregation requires params.aggregation")
	}

	if groupRaw, present := params["group_by"]; present {
		columns, _ := stringSliceParam(params, "group_by")
		if len(columns) == 0 || groupRaw == nil {
			return a.aggregateWhole(fn)
		}
		if res := a.group(columns); res.IsError() {
			return res
		}
	}

	g, ok := a.Store.TakeGrouping()
	if !ok {
		return ErrorResult(mcperr.NotGrouped, "you must group data first using 'group_by'")
	}

	result, err := aggregateGrouping(g, fn)
	if err != nil {
		return Errorf(mcperr.AggregationFailed, "aggregation failed: %v", err)
	}
	bounded, text := tabular.Bound(result, a.Limits.MaxRows, fmt.Sprintf("Aggregation result (%s):", fn))
	return TableResult(bounded, text)
}

// aggregateWhole is the degenerate no-group form: the function is applied to
// every applicable column of the active table in place.
func (a *Aggregator) aggregateWhole(fn string) Result {
	t := a.Store.Active()
	agg, err := resolveAggFunc(fn)
	if err != nil {
		return Errorf(mcperr.AggregationFailed, "aggregation failed: %v", err)
	}

	var rows [][]string
	for c, name := range t.Columns() {
		val, ok := agg.apply(t, allRows(t.NumRows()), c)
		if !ok {
			continue
		}
		rows = append(rows, []string{name, val})
	}
	if len(rows) == 0 {
		return Errorf(mcperr.AggregationFailed, "aggregation failed: no column supports %q", fn)
	}
	result, err := tabular.New([]string{"column", fn}, rows)
	if err != nil {
		return Errorf(mcperr.AggregationFailed, "aggregation failed: %v", err)
	}
	bounded, text := tabular.Bound(result, a.Limits.MaxRows, "Aggregation result (no group):")
	return TableResult(bounded, text)
}

// aggregateGrouping applies fn to every non-key column within each group.
// Columns the function cannot serve (e.g. mean over text) are dropped from
// the result rather than failing the whole call.
func aggregateGrouping(g *tabular.Grouping, fn string) (*tabular.Table, error) {
	agg, err := resolveAggFunc(fn)
	if err != nil {
		return nil, err
	}

	src := g.Source()
	keySet := map[string]struct{}{}
	for _, k := range g.Keys {
		keySet[k] = struct{}{}
	}

	// Decide which non-key columns the function can serve by probing the
	// whole table once; keeps the output schema identical across groups.
	var valueCols []int
	var valueNames []string
	for c, name := range src.Columns() {
		if _, isKey := keySet[name]; isKey {
			continue
		}
		if _, ok := agg.apply(src, allRows(src.NumRows()), c); ok {
			valueCols = append(valueCols, c)
			valueNames = append(valueNames, name)
		}
	}
	if len(valueCols) == 0 {
		return nil, fmt.Errorf("no column supports %q", fn)
	}

	cols := append(append([]string(nil), g.Keys...), valueNames...)
	var rows [][]string
	for _, tuple := range g.Tuples() {
		row := append([]string(nil), tuple...)
		groupRows := g.RowsFor(tuple)
		for _, c := range valueCols {
			val, ok := agg.apply(src, groupRows, c)
			if !ok {
				val = ""
			}
			row = append(row, val)
		}
		rows = append(rows, row)
	}
	return tabular.New(cols, rows)
}

func allRows(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// aggFunc applies one aggregation to the given rows of one column. The
// second return reports whether the column supports the function at all.
type aggFunc struct {
	name  string
	apply func(t *tabular.Table, rows []int, col int) (string, bool)
}

// resolveAggFunc keeps the supported set open-ended on the error path: an
// unknown name surfaces the engine's own message rather than a pre-baked
// allow-list.
func resolveAggFunc(name string) (aggFunc, error) {
	switch name {
	case "count":
		return aggFunc{name: name, apply: func(t *tabular.Table, rows []int, col int) (string, bool) {
			n := 0
			for _, r := range rows {
				if t.Cell(r, col) != "" {
					n++
				}
			}
			return strconv.Itoa(n), true
		}}, nil
	case "sum":
		return numericAgg(name, func(vals []float64) float64 {
			s := 0.0
			for _, v := range vals {
				s += v
			}
			return s
		}), nil
	case "mean", "avg", "average":
		return numericAgg(name, func(vals []float64) float64 {
			s := 0.0
			for _, v := range vals {
				s += v
			}
			return s / float64(len(vals))
		}), nil
	case "median":
		return numericAgg(name, func(vals []float64) float64 {
			sorted := append([]float64(nil), vals...)
			sort.Float64s(sorted)
			mid := len(sorted) / 2
			if len(sorted)%2 == 0 {
				return (sorted[mid-1] + sorted[mid]) / 2
			}
			return sorted[mid]
		}), nil
	case "std":
		return numericAgg(name, func(vals []float64) float64 {
			if len(vals) < 2 {
				return 0
			}
			mean := 0.0
			for _, v := range vals {
				mean += v
			}
			mean /= float64(len(vals))
			ss := 0.0
			for _, v := range vals {
				d := v - mean
				ss += d * d
			}
			return math.Sqrt(ss / float64(len(vals)-1))
		}), nil
	case "min":
		return extremumAgg(name, func(a, b float64) bool { return a < b }, func(a, b string) bool { return a < b }), nil
	case "max":
		return extremumAgg(name, func(a, b float64) bool { return a > b }, func(a, b string) bool { return a > b }), nil
	}
	return aggFunc{}, fmt.Errorf("unsupported aggregation function %q", name)
}

func numericAgg(name string, fn func([]float64) float64) aggFunc {
	return aggFunc{name: name, apply: func(t *tabular.Table, rows []int, col int) (string, bool) {
		if t.Kind(col) != tabular.KindNumeric {
			return "", false
		}
		var vals []float64
		for _, r := range rows {
			if v, ok := t.Float(r, col); ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			return "", false
		}
		return formatFloat(fn(vals)), true
	}}
}

// extremumAgg compares numerically on numeric columns and lexicographically
// on text columns, matching how the usual dataframe engines treat min/max.
func extremumAgg(name string, numLess func(a, b float64) bool, strLess func(a, b string) bool) aggFunc {
	return aggFunc{name: name, apply: func(t *tabular.Table, rows []int, col int) (string, bool) {
		if t.Kind(col) == tabular.KindNumeric {
			best, found := 0.0, false
			for _, r := range rows {
				v, ok := t.Float(r, col)
				if !ok {
					continue
				}
				if !found || numLess(v, best) {
					best, found = v, true
				}
			}
			if !found {
				return "", false
			}
			return formatFloat(best), true
		}
		best, found := "", false
		for _, r := range rows {
			cell := t.Cell(r, col)
			if cell == "" {
				continue
			}
			if !found || strLess(cell, best) {
				best, found = cell, true
			}
		}
		return best, found
	}}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
