package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oterdem/mcptab/internal/runtime"
	"github.com/oterdem/mcptab/internal/tabular"
)

func fixtureStore(t *testing.T) *tabular.Store {
	t.Helper()
	tbl, err := tabular.New(
		[]string{"Name", "Age", "Salary", "Department", "Currency"},
		[][]string{
			{"Alice", "30", "85000", "Engineering", "USD"},
			{"Bob", "25", "52000", "Sales", "EUR"},
			{"Charlie", "35", "95000", "Engineering", "TRY"},
			{"Diana", "28", "61000", "Sales", "USD"},
		},
	)
	require.NoError(t, err)
	return tabular.NewStore(tbl)
}

func testLimits() runtime.Limits {
	return runtime.NewLimits(0, 0)
}

func newFilter(t *testing.T) (*Filter, *tabular.Store) {
	t.Helper()
	store := fixtureStore(t)
	return &Filter{Store: store, Limits: testLimits()}, store
}

func TestFilterDataNumericComparison(t *testing.T) {
	f, store := newFilter(t)

	res := f.FilterData(context.Background(), map[string]any{"condition": "Age > 28"})
	require.False(t, res.IsError())
	require.Contains(t, res.Text, "DataFrame filtered by standardized condition '`Age` > 28'.")
	require.Equal(t, 2, store.Active().NumRows())
}

func TestFilterDataEqualityTolerance(t *testing.T) {
	tbl, err := tabular.New([]string{"Value"}, [][]string{
		{"20.0"},
		{"20.00000000000001"},
		{"20.1"},
	})
	require.NoError(t, err)
	store := tabular.NewStore(tbl)
	f := &Filter{Store: store, Limits: testLimits()}

	res := f.FilterData(context.Background(), map[string]any{"condition": "Value == 20.0"})
	require.False(t, res.IsError())
	// Representation noise within the tolerance band matches; 20.1 does not.
	require.Equal(t, 2, store.Active().NumRows())
}

func TestFilterDataContainsCaseInsensitive(t *testing.T) {
	f, store := newFilter(t)

	res := f.FilterData(context.Background(), map[string]any{"condition": "Name.str.contains('alice', case=False)"})
	require.False(t, res.IsError())
	require.Equal(t, 1, store.Active().NumRows())
	require.Equal(t, "Alice", store.Active().Cell(0, 0))
}

func TestFilterDataContainsCaseSensitiveDefault(t *testing.T) {
	f, store := newFilter(t)

	res := f.FilterData(context.Background(), map[string]any{"condition": "Name.str.contains('alice')"})
	require.False(t, res.IsError())
	require.Equal(t, 0, store.Active().NumRows())
}

func TestFilterChainsAndResets(t *testing.T) {
	f, store := newFilter(t)
	ctx := context.Background()

	res := f.FilterData(ctx, map[string]any{"condition": "Department == 'Engineering'"})
	require.False(t, res.IsError())
	require.Equal(t, 2, store.Active().NumRows())

	// Second filter narrows the already-filtered table, not the original.
	res = f.FilterData(ctx, map[string]any{"condition": "Age > 30"})
	require.False(t, res.IsError())
	require.Equal(t, 1, store.Active().NumRows())

	res = f.ResetData(ctx, nil)
	require.False(t, res.IsError())
	require.Contains(t, res.Text, "reset to the original dataset (4 rows, 5 cols)")
	require.Equal(t, 4, store.Active().NumRows())
}

func TestFilterDataUnknownColumn(t *testing.T) {
	f, store := newFilter(t)

	res := f.FilterData(context.Background(), map[string]any{"condition": "Wage > 10"})
	require.True(t, res.IsError())
	require.Contains(t, res.Render(), "UNKNOWN_COLUMN")
	require.Contains(t, res.Render(), "column 'Wage' not found")
	require.Equal(t, 4, store.Active().NumRows())
}

func TestFilterFallbackGatedOff(t *testing.T) {
	f, store := newFilter(t)

	res := f.FilterData(context.Background(), map[string]any{"condition": "Department in Name"})
	require.True(t, res.IsError())
	require.Contains(t, res.Render(), "condition not recognized")
	require.Equal(t, 4, store.Active().NumRows())
}

func TestFilterFallbackWhenAllowed(t *testing.T) {
	f, store := newFilter(t)
	f.AllowFallback = true

	res := f.FilterData(context.Background(), map[string]any{
		"condition": `Department == "Sales" or Department == "Engineering" and not Name == "Bob"`,
	})
	require.False(t, res.IsError())
	require.NotZero(t, store.Active().NumRows())
}

func TestSelectColumnsNarrowsActive(t *testing.T) {
	f, store := newFilter(t)

	res := f.SelectColumns(context.Background(), map[string]any{"columns": []any{"Name", "Salary"}})
	require.False(t, res.IsError())
	require.Contains(t, res.Text, "Now contains only columns: [Name Salary].")
	require.Equal(t, []string{"Name", "Salary"}, store.Active().Columns())
}

func TestSelectColumnsMissingNameDoesNotMutate(t *testing.T) {
	f, store := newFilter(t)

	res := f.SelectColumns(context.Background(), map[string]any{"columns": []any{"Name", "Bogus"}})
	require.True(t, res.IsError())
	require.Contains(t, res.Render(), "[Bogus]")
	require.Contains(t, res.Render(), "available columns")
	require.Equal(t, 5, store.Active().NumCols())
}

func TestFilterDataRequiresCondition(t *testing.T) {
	f, _ := newFilter(t)
	res := f.FilterData(context.Background(), map[string]any{})
	require.True(t, res.IsError())
	require.Contains(t, res.Render(), "VALIDATION")
}
