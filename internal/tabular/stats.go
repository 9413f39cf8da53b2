package tabular

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Describe returns descriptive statistics for one column. Numeric columns get
// count, mean, std, min, quartiles, and max; text columns get count, unique,
// top, and freq.
func (t *Table) Describe(name string) (string, error) {
	col, ok := t.ColumnIndex(name)
	if !ok {
		return "", &UnknownColumnError{Columns: []string{name}, Available: t.Columns()}
	}
	if t.Kind(col) == KindNumeric {
		vals := t.ColumnFloats(col)
		if len(vals) == 0 {
			return fmt.Sprintf("count    0\n(no numeric values in %q)", name), nil
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		mean := meanOf(vals)
		lines := []string{
			fmt.Sprintf("count  %d", len(vals)),
			fmt.Sprintf("mean   %g", mean),
			fmt.Sprintf("std    %g", stdOf(vals, mean)),
			fmt.Sprintf("min    %g", sorted[0]),
			fmt.Sprintf("25%%    %g", quantile(sorted, 0.25)),
			fmt.Sprintf("50%%    %g", quantile(sorted, 0.50)),
			fmt.Sprintf("75%%    %g", quantile(sorted, 0.75)),
			fmt.Sprintf("max    %g", sorted[len(sorted)-1]),
		}
		return strings.Join(lines, "\n"), nil
	}

	counts := map[string]int{}
	nonEmpty := 0
	for r := 0; r < t.NumRows(); r++ {
		cell := strings.TrimSpace(t.Cell(r, col))
		if cell == "" {
			continue
		}
		nonEmpty++
		counts[cell]++
	}
	top, freq := "", 0
	for v, c := range counts {
		if c > freq || (c == freq && v < top) {
			top, freq = v, c
		}
	}
	lines := []string{
		fmt.Sprintf("count   %d", nonEmpty),
		fmt.Sprintf("unique  %d", len(counts)),
		fmt.Sprintf("top     %s", top),
		fmt.Sprintf("freq    %d", freq),
	}
	return strings.Join(lines, "\n"), nil
}

// ValueCounts returns frequency counts of distinct values in a column,
// ordered by descending count then ascending value. With normalize the
// counts become proportions of the non-empty total.
func (t *Table) ValueCounts(name string, normalize bool) (string, error) {
	col, ok := t.ColumnIndex(name)
	if !ok {
		return "", &UnknownColumnError{Columns: []string{name}, Available: t.Columns()}
	}
	counts := map[string]int{}
	total := 0
	for r := 0; r < t.NumRows(); r++ {
		cell := strings.TrimSpace(t.Cell(r, col))
		if cell == "" {
			continue
		}
		counts[cell]++
		total++
	}
	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})
	var b strings.Builder
	b.WriteString(name)
	for _, v := range values {
		if normalize && total > 0 {
			b.WriteString(fmt.Sprintf("\n%s  %.6f", v, float64(counts[v])/float64(total)))
		} else {
			b.WriteString(fmt.Sprintf("\n%s  %d", v, counts[v]))
		}
	}
	if len(values) == 0 {
		b.WriteString("\n(no values)")
	}
	return b.String(), nil
}

// Info returns a structural summary: shape plus per-column non-null counts
// and inferred kinds.
func (t *Table) Info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows, %d columns", t.NumRows(), t.NumCols())
	for c, name := range t.cols {
		nonNull := 0
		for r := 0; r < t.NumRows(); r++ {
			if strings.TrimSpace(t.Cell(r, c)) != "" {
				nonNull++
			}
		}
		fmt.Fprintf(&b, "\n%-3d %-24s %d non-null  %s", c, name, nonNull, t.Kind(c))
	}
	return b.String()
}

func meanOf(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stdOf is the sample standard deviation (n-1 denominator).
func stdOf(vals []float64, mean float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	ss := 0.0
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

// quantile uses linear interpolation over a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
