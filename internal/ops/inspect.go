package ops

import (
	"context"
	"fmt"

	"github.com/oterdem/mcptab/internal/runtime"
	"github.com/oterdem/mcptab/internal/tabular"
	"github.com/oterdem/mcptab/pkg/mcperr"
)

// Inspector provides the pure, non-mutating reads over the active table.
type Inspector struct {
	Store  *tabular.Store
	Limits runtime.Limits
}

// RegisterActions wires the inspection actions into a dispatcher.
func (i *Inspector) RegisterActions(d *Dispatcher) {
	d.Register("get_column_names", i.ColumnNames)
	d.Register("get_head", i.Head)
	d.Register("get_info", i.Info)
	d.Register("describe_column", i.DescribeColumn)
	d.Register("get_value_counts", i.ValueCounts)
}

// ColumnNames lists the active table's column names in order.
func (i *Inspector) ColumnNames(ctx context.Context, params map[string]any) Result {
	t := i.Store.Active()
	return TextResult(fmt.Sprintf("%v", t.Columns()))
}

// Head renders the first n rows of the active table.
func (i *Inspector) Head(ctx context.Context, params map[string]any) Result {
	t := i.Store.Active()
	n := intParam(params, "n", i.Limits.HeadRows)
	if n <= 0 {
		n = i.Limits.HeadRows
	}
	if n > i.Limits.MaxRows {
		n = i.Limits.MaxRows
	}
	head, text := tabular.Bound(t.Head(n), i.Limits.MaxRows, "")
	return TableResult(head, text)
}

// Info returns the structural summary of the active table.
func (i *Inspector) Info(ctx context.Context, params map[string]any) Result {
	return TextResult(i.Store.Active().Info())
}

// DescribeColumn returns descriptive statistics for one column.
func (i *Inspector) DescribeColumn(ctx context.Context, params map[string]any) Result {
	column, ok := stringParam(params, "column")
	if !ok || column == "" {
		return ErrorResult(mcperr.Validation, "describe_column requires params.column")
	}
	text, err := i.Store.Active().Describe(column)
	if err != nil {
		return ErrorResult(mcperr.UnknownColumn, err.Error())
	}
	return TextResult(text)
}

// ValueCounts returns frequency counts of distinct values in one column,
// optionally normalized to proportions.
func (i *Inspector) ValueCounts(ctx context.Context, params map[string]any) Result {
	column, ok := stringParam(params, "column")
	if !ok || column == "" {
		return ErrorResult(mcperr.Validation, "get_value_counts requires params.column")
	}
	normalize := boolParam(params, "normalize", false)
	text, err := i.Store.Active().ValueCounts(column, normalize)
	if err != nil {
		return ErrorResult(mcperr.UnknownColumn, err.Error())
	}
	return TextResult(text)
}
