package tabular

import (
	"fmt"
	"sync"
)

// Grouping is the transient projection produced by a group-by: the distinct
// key tuples over the chosen columns, each mapped to the rows sharing that
// tuple. It exists only between a group call and the aggregation that
// consumes it.
type Grouping struct {
	Keys   []string // key column names
	tuples [][]string
	rows   map[string][]int // joined tuple -> row indices into the table it was built from
	source *Table
}

// Tuples returns the distinct key tuples in deterministic (sorted) order.
func (g *Grouping) Tuples() [][]string {
	out := make([][]string, len(g.tuples))
	for i, tup := range g.tuples {
		out[i] = append([]string(nil), tup...)
	}
	return out
}

// RowsFor returns the row indices belonging to one key tuple.
func (g *Grouping) RowsFor(tuple []string) []int {
	return g.rows[joinTuple(tuple)]
}

// Source returns the table snapshot the projection was built against.
func (g *Grouping) Source() *Table { return g.source }

// Sizes returns a table of key columns plus a Count column, one row per
// group, used as the grouping preview.
func (g *Grouping) Sizes() *Table {
	cols := append(append([]string(nil), g.Keys...), "Count")
	rows := make([][]string, 0, len(g.tuples))
	for _, tup := range g.tuples {
		row := append(append([]string(nil), tup...), fmt.Sprintf("%d", len(g.rows[joinTuple(tup)])))
		rows = append(rows, row)
	}
	t, _ := New(cols, rows)
	return t
}

func joinTuple(cells []string) string {
	out := ""
	for i, c := range cells {
		if i > 0 {
			out += "\x00"
		}
		out += c
	}
	return out
}

// Store owns the mutable dataset: the original load, the active (possibly
// narrowed) table, and the pending grouping state machine
// (ungrouped <-> grouped). All mutation goes through its methods; operations
// receive the store explicitly rather than reading ambient state.
type Store struct {
	mu       sync.Mutex
	original *Table
	active   *Table
	grouping *Grouping
}

// NewStore takes ownership of the loaded table.
func NewStore(t *Table) *Store {
	return &Store{original: t.Clone(), active: t}
}

// Active returns the current working table.
func (s *Store) Active() *Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Original returns a copy of the table as loaded.
func (s *Store) Original() *Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original.Clone()
}

// ReplaceActive swaps in a new working table (copy-on-filter semantics).
func (s *Store) ReplaceActive(t *Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = t
}

// ResetActive restores the working table to the original load and returns it.
func (s *Store) ResetActive() *Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = s.original.Clone()
	return s.active
}

// Group builds a projection over the active table keyed by the distinct
// tuples of the named columns and stores it, silently replacing any pending
// projection. Groups are ordered by sorted key tuple for deterministic
// previews and aggregation output.
func (s *Store) Group(keys []string) (*Grouping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active.NumRows() == 0 {
		return nil, fmt.Errorf("tabular: dataset is empty")
	}
	if missing := s.active.MissingColumns(keys); len(missing) > 0 {
		return nil, &UnknownColumnError{Columns: missing, Available: s.active.Columns()}
	}

	idx := make([]int, len(keys))
	for i, k := range keys {
		idx[i], _ = s.active.ColumnIndex(k)
	}

	rows := map[string][]int{}
	var tuples [][]string
	for r := 0; r < s.active.NumRows(); r++ {
		tup := make([]string, len(idx))
		for i, c := range idx {
			tup[i] = s.active.Cell(r, c)
		}
		key := joinTuple(tup)
		if _, seen := rows[key]; !seen {
			tuples = append(tuples, tup)
		}
		rows[key] = append(rows[key], r)
	}
	SortKeyTuples(tuples)

	g := &Grouping{Keys: append([]string(nil), keys...), tuples: tuples, rows: rows, source: s.active}
	s.grouping = g
	return g, nil
}

// TakeGrouping returns the pending projection and clears it so a stale
// projection can never serve two unrelated aggregations.
func (s *Store) TakeGrouping() (*Grouping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.grouping
	s.grouping = nil
	return g, g != nil
}

// HasGrouping reports whether a projection is pending.
func (s *Store) HasGrouping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grouping != nil
}
