package tabular

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(
		[]string{"Name", "Age", "Salary", "Department"},
		[][]string{
			{"Alice", "30", "85000", "Engineering"},
			{"Bob", "25", "52000", "Sales"},
			{"Charlie", "35", "95000", "Engineering"},
			{"Diana", "28", "", "Sales"},
		},
	)
	require.NoError(t, err)
	return tbl
}

func TestNewRejectsDuplicateColumns(t *testing.T) {
	_, err := New([]string{"A", "A"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate column")
}

func TestNewRejectsRaggedRows(t *testing.T) {
	_, err := New([]string{"A", "B"}, [][]string{{"1"}})
	require.Error(t, err)
}

func TestKindInference(t *testing.T) {
	tbl := sampleTable(t)

	age, _ := tbl.ColumnIndex("Age")
	require.Equal(t, KindNumeric, tbl.Kind(age))

	name, _ := tbl.ColumnIndex("Name")
	require.Equal(t, KindText, tbl.Kind(name))

	// Blanks do not demote an otherwise numeric column.
	salary, _ := tbl.ColumnIndex("Salary")
	require.Equal(t, KindNumeric, tbl.Kind(salary))
}

func TestParseNumberToleratesFormatting(t *testing.T) {
	v, ok := ParseNumber("$1,234.50")
	require.True(t, ok)
	require.InDelta(t, 1234.5, v, 1e-9)

	_, ok = ParseNumber("n/a")
	require.False(t, ok)

	_, ok = ParseNumber("")
	require.False(t, ok)
}

func TestSelectValidatesBeforeMutation(t *testing.T) {
	tbl := sampleTable(t)

	_, err := tbl.Select([]string{"Name", "Bogus", "AlsoBogus"})
	require.Error(t, err)
	ucErr, ok := err.(*UnknownColumnError)
	require.True(t, ok)
	require.Equal(t, []string{"Bogus", "AlsoBogus"}, ucErr.Columns)
	require.Equal(t, tbl.Columns(), ucErr.Available)

	// Original untouched after the failed select.
	require.Equal(t, 4, tbl.NumCols())
	require.Equal(t, 4, tbl.NumRows())

	sel, err := tbl.Select([]string{"Name", "Age"})
	require.NoError(t, err)
	require.Equal(t, []string{"Name", "Age"}, sel.Columns())
	require.Equal(t, "Alice", sel.Cell(0, 0))
	require.Equal(t, 4, tbl.NumCols())
}

func TestFilterRows(t *testing.T) {
	tbl := sampleTable(t)
	out := tbl.FilterRows([]bool{true, false, true, false})
	require.Equal(t, 2, out.NumRows())
	require.Equal(t, "Alice", out.Cell(0, 0))
	require.Equal(t, "Charlie", out.Cell(1, 0))
}

func TestWithColumnAppendAndReplace(t *testing.T) {
	tbl := sampleTable(t)

	out, err := tbl.WithColumn("rate", []string{"1", "0.9", "30", ""})
	require.NoError(t, err)
	require.Equal(t, 5, out.NumCols())
	require.Equal(t, 4, tbl.NumCols())

	idx, ok := out.ColumnIndex("rate")
	require.True(t, ok)
	require.Equal(t, KindNumeric, out.Kind(idx))

	// Replacing an existing column keeps the position.
	out2, err := out.WithColumn("rate", []string{"2", "2", "2", "2"})
	require.NoError(t, err)
	idx2, _ := out2.ColumnIndex("rate")
	require.Equal(t, idx, idx2)
	require.Equal(t, "2", out2.Cell(0, idx2))

	_, err = tbl.WithColumn("short", []string{"1"})
	require.Error(t, err)
}

func TestHeadClampsBounds(t *testing.T) {
	tbl := sampleTable(t)
	require.Equal(t, 2, tbl.Head(2).NumRows())
	require.Equal(t, 4, tbl.Head(100).NumRows())
	require.Equal(t, 0, tbl.Head(-1).NumRows())
}

func TestCompareCells(t *testing.T) {
	require.Negative(t, CompareCells("9", "10"))
	require.Positive(t, CompareCells("10", "9"))
	require.Zero(t, CompareCells("1.0", "1"))
	require.Negative(t, CompareCells("apple", "banana"))
}
