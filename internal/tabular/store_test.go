package tabular

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func storeFixture(t *testing.T) *Store {
	t.Helper()
	return NewStore(sampleTable(t))
}

func TestStoreReplaceAndReset(t *testing.T) {
	s := storeFixture(t)

	narrowed := s.Active().FilterRows([]bool{true, false, false, false})
	s.ReplaceActive(narrowed)
	require.Equal(t, 1, s.Active().NumRows())

	restored := s.ResetActive()
	require.Equal(t, 4, restored.NumRows())
	require.Equal(t, 4, s.Active().NumRows())
}

func TestStoreOriginalIsACopy(t *testing.T) {
	s := storeFixture(t)
	s.ReplaceActive(s.Active().FilterRows([]bool{false, false, false, false}))
	require.Equal(t, 4, s.Original().NumRows())
}

func TestGroupingLifecycle(t *testing.T) {
	s := storeFixture(t)
	require.False(t, s.HasGrouping())

	g, err := s.Group([]string{"Department"})
	require.NoError(t, err)
	require.True(t, s.HasGrouping())

	tuples := g.Tuples()
	require.Equal(t, [][]string{{"Engineering"}, {"Sales"}}, tuples)
	require.Equal(t, []int{0, 2}, g.RowsFor([]string{"Engineering"}))
	require.Equal(t, []int{1, 3}, g.RowsFor([]string{"Sales"}))

	taken, ok := s.TakeGrouping()
	require.True(t, ok)
	require.Same(t, g, taken)

	// Taking clears the pending projection.
	_, ok = s.TakeGrouping()
	require.False(t, ok)
	require.False(t, s.HasGrouping())
}

func TestGroupUnknownColumn(t *testing.T) {
	s := storeFixture(t)
	_, err := s.Group([]string{"Nope"})
	require.Error(t, err)
	ucErr, ok := err.(*UnknownColumnError)
	require.True(t, ok)
	require.Equal(t, []string{"Nope"}, ucErr.Columns)
	require.False(t, s.HasGrouping())
}

func TestGroupingSizes(t *testing.T) {
	s := storeFixture(t)
	g, err := s.Group([]string{"Department"})
	require.NoError(t, err)

	sizes := g.Sizes()
	require.Equal(t, []string{"Department", "Count"}, sizes.Columns())
	require.Equal(t, 2, sizes.NumRows())
	require.Equal(t, "Engineering", sizes.Cell(0, 0))
	require.Equal(t, "2", sizes.Cell(0, 1))
}

func TestGroupReplacesPendingProjection(t *testing.T) {
	s := storeFixture(t)
	_, err := s.Group([]string{"Department"})
	require.NoError(t, err)
	g2, err := s.Group([]string{"Name"})
	require.NoError(t, err)

	taken, ok := s.TakeGrouping()
	require.True(t, ok)
	require.Same(t, g2, taken)
}
