package ops

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/oterdem/mcptab/internal/condition"
	"github.com/oterdem/mcptab/internal/runtime"
	"github.com/oterdem/mcptab/internal/tabular"
	"github.com/oterdem/mcptab/pkg/mcperr"
)

// Filter mutates the working table: condition filtering, column selection,
// and the explicit reset back to the original load. Filters chain: each one
// narrows the current active table, never the original (use reset_data to
// start over).
type Filter struct {
	Store  *tabular.Store
	Limits runtime.Limits

	// AllowFallback gates the raw-expression escape hatch. When false,
	// conditions the grammar does not recognize are rejected instead of
	// being handed to the expression evaluator.
	AllowFallback bool
}

// RegisterActions wires the transform actions into a dispatcher.
func (f *Filter) RegisterActions(d *Dispatcher) {
	d.Register("filter_data", f.FilterData)
	d.Register("select_columns", f.SelectColumns)
	d.Register("reset_data", f.ResetData)
}

// FilterData parses the condition, applies it to the active table, and
// replaces the active table with the matching rows. The response always
// names the standardized condition that was actually applied.
func (f *Filter) FilterData(ctx context.Context, params map[string]any) Result {
	raw, ok := stringParam(params, "condition")
	if !ok || raw == "" {
		return ErrorResult(mcperr.Validation, "filter_data requires params.condition")
	}

	active := f.Store.Active()
	parsed, err := condition.Parse(raw, active.Columns())
	if err != nil {
		var unknown *condition.UnknownColumnError
		if errors.As(err, &unknown) {
			return ErrorResult(mcperr.UnknownColumn, unknown.Error())
		}
		return Errorf(mcperr.ParseFailed, "error filtering data with condition '%s': %v", raw, err)
	}

	mask, err := f.buildMask(active, parsed)
	if err != nil {
		var unknown *condition.UnknownColumnError
		if errors.As(err, &unknown) {
			return ErrorResult(mcperr.UnknownColumn, unknown.Error())
		}
		return Errorf(mcperr.FilterFailed, "error filtering data with condition '%s': %v", raw, err)
	}

	filtered := active.FilterRows(mask)
	f.Store.ReplaceActive(filtered)

	label := fmt.Sprintf("DataFrame filtered by standardized condition '%s'.", parsed.Canonical())
	bounded, text := tabular.Bound(filtered, f.Limits.MaxRows, label)
	return TableResult(bounded, text)
}

// buildMask evaluates the parsed predicate against every row.
func (f *Filter) buildMask(t *tabular.Table, parsed condition.Parsed) ([]bool, error) {
	mask := make([]bool, t.NumRows())

	switch p := parsed.(type) {
	case condition.Comparison:
		col, _ := t.ColumnIndex(p.Column)
		for r := range mask {
			mask[r] = matchComparison(t.Cell(r, col), p)
		}
		return mask, nil

	case condition.Contains:
		col, _ := t.ColumnIndex(p.Column)
		needle := p.Needle
		if !p.CaseSensitive {
			needle = strings.ToLower(needle)
		}
		for r := range mask {
			cell := t.Cell(r, col)
			if !p.CaseSensitive {
				cell = strings.ToLower(cell)
			}
			mask[r] = strings.Contains(cell, needle)
		}
		return mask, nil

	case condition.Raw:
		if !f.AllowFallback {
			return nil, fmt.Errorf("condition not recognized; use 'column op value' or 'column.str.contains(...)'")
		}
		eval, err := condition.NewRawEvaluator(p.Expr, t.Columns())
		if err != nil {
			return nil, err
		}
		cols := t.Columns()
		for r := range mask {
			row := make(map[string]any, len(cols))
			for c, name := range cols {
				if t.Kind(c) == tabular.KindNumeric {
					if v, ok := t.Float(r, c); ok {
						row[name] = v
						continue
					}
				}
				row[name] = t.Cell(r, c)
			}
			m, err := eval.Matches(row)
			if err != nil {
				return nil, err
			}
			mask[r] = m
		}
		return mask, nil
	}
	return nil, fmt.Errorf("unsupported condition form")
}

func matchComparison(cell string, p condition.Comparison) bool {
	if p.IsNumeric {
		v, ok := tabular.ParseNumber(cell)
		if !ok {
			return false
		}
		switch p.Op {
		case "==":
			// Symmetric tolerance range instead of exact float equality.
			return math.Abs(v-p.Num) <= p.Tolerance
		case "!=":
			return v != p.Num
		case "<":
			return v < p.Num
		case "<=":
			return v <= p.Num
		case ">":
			return v > p.Num
		case ">=":
			return v >= p.Num
		}
		return false
	}

	cell = strings.TrimSpace(cell)
	switch p.Op {
	case "==":
		return cell == p.Literal
	case "!=":
		return cell != p.Literal
	case "<":
		return cell < p.Literal
	case "<=":
		return cell <= p.Literal
	case ">":
		return cell > p.Literal
	case ">=":
		return cell >= p.Literal
	}
	return false
}

// SelectColumns narrows the active table to the named columns. All names are
// validated before any mutation; a miss leaves the table untouched and lists
// exactly the missing columns.
func (f *Filter) SelectColumns(ctx context.Context, params map[string]any) Result {
	columns, ok := stringSliceParam(params, "columns")
	if !ok || len(columns) == 0 {
		return ErrorResult(mcperr.Validation, "select_columns requires params.columns as a list of names")
	}

	selected, err := f.Store.Active().Select(columns)
	if err != nil {
		return ErrorResult(mcperr.UnknownColumn, err.Error())
	}
	f.Store.ReplaceActive(selected)
	return TextResult(fmt.Sprintf("DataFrame updated. Now contains only columns: %v.", columns))
}

// ResetData restores the active table to the original load, discarding all
// accumulated filters and selections.
func (f *Filter) ResetData(ctx context.Context, params map[string]any) Result {
	t := f.Store.ResetActive()
	return TextResult(fmt.Sprintf("DataFrame reset to the original dataset (%d rows, %d cols).", t.NumRows(), t.NumCols()))
}
