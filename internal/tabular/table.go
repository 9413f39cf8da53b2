package tabular

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the inferred value kind of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumeric
)

func (k Kind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "text"
}

// Table is an ordered collection of named columns over a shared row index.
// Cells are held as their source text; numeric access parses on demand so a
// column can tolerate stray blanks without losing its numeric kind.
// Invariants: column names are unique and every row has one cell per column.
type Table struct {
	cols  []string
	kinds []Kind
	rows  [][]string
}

// New constructs a Table from column names and row cells, inferring column
// kinds from the data.
func New(cols []string, rows [][]string) (*Table, error) {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		name := strings.TrimSpace(c)
		if name == "" {
			return nil, fmt.Errorf("tabular: empty column name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("tabular: duplicate column name %q", name)
		}
		seen[name] = struct{}{}
	}
	clean := make([]string, len(cols))
	for i, c := range cols {
		clean[i] = strings.TrimSpace(c)
	}
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("tabular: row %d has %d cells, want %d", i, len(r), len(cols))
		}
	}
	t := &Table{cols: clean, rows: rows}
	t.kinds = inferKinds(clean, rows)
	return t, nil
}

// inferKinds marks a column numeric when every non-empty cell parses as a
// number. Adapted from the sampling type counter used for schema profiling.
func inferKinds(cols []string, rows [][]string) []Kind {
	kinds := make([]Kind, len(cols))
	for c := range cols {
		nonEmpty := 0
		numeric := 0
		for _, r := range rows {
			cell := strings.TrimSpace(r[c])
			if cell == "" {
				continue
			}
			nonEmpty++
			if _, ok := ParseNumber(cell); ok {
				numeric++
			}
		}
		if nonEmpty > 0 && numeric == nonEmpty {
			kinds[c] = KindNumeric
		}
	}
	return kinds
}

// ParseNumber parses a cell as a float, tolerating thousands separators and a
// leading currency sign.
func ParseNumber(s string) (float64, bool) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ',', '$':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(s))
	if clean == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.cols {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// Kind returns the inferred kind of a column.
func (t *Table) Kind(col int) Kind { return t.kinds[col] }

// Cell returns the raw cell text at (row, col).
func (t *Table) Cell(row, col int) string { return t.rows[row][col] }

// Float parses the cell at (row, col) as a number.
func (t *Table) Float(row, col int) (float64, bool) {
	return ParseNumber(t.rows[row][col])
}

// Head returns a new Table holding the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	if n < 0 {
		n = 0
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = append([]string(nil), t.rows[i]...)
	}
	return &Table{cols: t.Columns(), kinds: append([]Kind(nil), t.kinds...), rows: rows}
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	rows := make([][]string, len(t.rows))
	for i, r := range t.rows {
		rows[i] = append([]string(nil), r...)
	}
	return &Table{cols: t.Columns(), kinds: append([]Kind(nil), t.kinds...), rows: rows}
}

// MissingColumns returns the subset of names absent from the table, in the
// order given.
func (t *Table) MissingColumns(names []string) []string {
	var missing []string
	for _, n := range names {
		if !t.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// Select returns a new Table restricted to the named columns. All names are
// validated up front: on any miss the table is untouched and the error names
// exactly the missing columns alongside the available ones.
func (t *Table) Select(names []string) (*Table, error) {
	if missing := t.MissingColumns(names); len(missing) > 0 {
		return nil, &UnknownColumnError{Columns: missing, Available: t.Columns()}
	}
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i], _ = t.ColumnIndex(n)
	}
	rows := make([][]string, len(t.rows))
	for r, row := range t.rows {
		cells := make([]string, len(idx))
		for i, c := range idx {
			cells[i] = row[c]
		}
		rows[r] = cells
	}
	kinds := make([]Kind, len(idx))
	for i, c := range idx {
		kinds[i] = t.kinds[c]
	}
	return &Table{cols: append([]string(nil), names...), kinds: kinds, rows: rows}, nil
}

// FilterRows returns a new Table containing the rows where mask is true.
func (t *Table) FilterRows(mask []bool) *Table {
	var rows [][]string
	for i, keep := range mask {
		if keep {
			rows = append(rows, append([]string(nil), t.rows[i]...))
		}
	}
	return &Table{cols: t.Columns(), kinds: append([]Kind(nil), t.kinds...), rows: rows}
}

// WithColumn returns a new Table with an extra column appended. An existing
// column of the same name is replaced in place.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, fmt.Errorf("tabular: column %q has %d values, want %d", name, len(values), len(t.rows))
	}
	out := t.Clone()
	if idx, ok := out.ColumnIndex(name); ok {
		for r := range out.rows {
			out.rows[r][idx] = values[r]
		}
		out.kinds = inferKinds(out.cols, out.rows)
		return out, nil
	}
	out.cols = append(out.cols, name)
	for r := range out.rows {
		out.rows[r] = append(out.rows[r], values[r])
	}
	out.kinds = inferKinds(out.cols, out.rows)
	return out, nil
}

// ColumnFloats returns the parsed numeric values of a column, skipping cells
// that do not parse.
func (t *Table) ColumnFloats(col int) []float64 {
	out := make([]float64, 0, len(t.rows))
	for r := range t.rows {
		if f, ok := t.Float(r, col); ok {
			out = append(out, f)
		}
	}
	return out
}

// UnknownColumnError reports referenced columns that do not exist, always
// listing the available ones so a caller can self-correct.
type UnknownColumnError struct {
	Columns   []string
	Available []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("columns %v not found; available columns: %v", e.Columns, e.Available)
}

// CompareCells orders two cells for deterministic grouping: numeric values by
// magnitude, everything else lexicographically.
func CompareCells(a, b string) int {
	fa, oka := ParseNumber(a)
	fb, okb := ParseNumber(b)
	if oka && okb {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// CompareKeys orders two key tuples cell by cell.
func CompareKeys(a, b []string) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}
		if c := CompareCells(a[i], b[i]); c != 0 {
			return c
		}
	}
	if len(a) < len(b) {
		return -1
	}
	return 0
}

// SortKeyTuples sorts key tuples in place using CompareKeys.
func SortKeyTuples(keys [][]string) {
	sort.SliceStable(keys, func(i, j int) bool { return CompareKeys(keys[i], keys[j]) < 0 })
}
