package condition

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hashicorp/go-bexpr"
)

// The raw-query fallback is a deliberate escape hatch for expressions the
// structured grammar does not anticipate. It is gated: before an expression
// reaches the evaluator, every identifier must resolve to a known column or
// a whitelisted keyword, and only the evaluator's boolean/equality grammar
// is allowed through. Ordering comparisons must use the structured form.

var fallbackKeywords = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "in": {}, "contains": {},
	"matches": {}, "is": {}, "empty": {}, "true": {}, "false": {},
}

// RawEvaluator evaluates a gated fallback expression against one row at a
// time, presented as a column -> value map.
type RawEvaluator struct {
	expr      string
	evaluator *bexpr.Evaluator
}

// NewRawEvaluator vets the expression against the known columns and compiles
// it. Spaced column names occurring literally in the expression are wrapped
// in quotes so the evaluator treats them as single selectors.
func NewRawEvaluator(expr string, columns []string) (*RawEvaluator, error) {
	wrapped := quoteSpacedColumns(expr, columns)
	if err := vetExpression(wrapped, columns); err != nil {
		return nil, err
	}
	ev, err := bexpr.CreateEvaluator(wrapped)
	if err != nil {
		return nil, fmt.Errorf("condition: parsing fallback expression '%s': %w", expr, err)
	}
	return &RawEvaluator{expr: wrapped, evaluator: ev}, nil
}

// Matches evaluates the expression against one row's values.
func (r *RawEvaluator) Matches(row map[string]any) (bool, error) {
	ok, err := r.evaluator.Evaluate(row)
	if err != nil {
		return false, fmt.Errorf("condition: evaluating '%s': %w", r.expr, err)
	}
	return ok, nil
}

// vetExpression walks the expression and rejects any bare identifier that is
// neither a known column nor a whitelisted keyword, and any operator outside
// the evaluator's grammar.
func vetExpression(expr string, columns []string) error {
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}

	i := 0
	for i < len(expr) {
		ch := rune(expr[i])
		switch {
		case unicode.IsSpace(ch), ch == '(', ch == ')', ch == ',':
			i++
		case ch == '"' || ch == '\'' || ch == '`':
			end := strings.IndexByte(expr[i+1:], expr[i])
			if end < 0 {
				return fmt.Errorf("condition: unterminated literal in fallback expression")
			}
			// Quoted selectors must still name a known column when they
			// appear before an operator; string literals pass through.
			i += end + 2
		case ch == '=' || ch == '!':
			if i+1 >= len(expr) || expr[i+1] != '=' {
				return fmt.Errorf("condition: operator %q not allowed in fallback expressions", string(ch))
			}
			i += 2
		case ch == '<' || ch == '>':
			return fmt.Errorf("condition: ordering comparisons are not supported in fallback expressions; use the 'column %s value' form", string(ch))
		case unicode.IsDigit(ch) || ch == '.' || ch == '-':
			j := i + 1
			for j < len(expr) && (unicode.IsDigit(rune(expr[j])) || expr[j] == '.' || expr[j] == 'e' || expr[j] == 'E' || expr[j] == '-' || expr[j] == '+') {
				j++
			}
			i = j
		case unicode.IsLetter(ch) || ch == '_':
			j := i + 1
			for j < len(expr) && (unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j])) || expr[j] == '_') {
				j++
			}
			word := expr[i:j]
			if _, kw := fallbackKeywords[strings.ToLower(word)]; !kw {
				if _, col := known[word]; !col {
					return &UnknownColumnError{Column: word, Available: columns}
				}
			}
			i = j
		default:
			return fmt.Errorf("condition: character %q not allowed in fallback expressions", string(ch))
		}
	}
	return nil
}

// quoteSpacedColumns wraps literal occurrences of spaced column names in
// quotes, outside already-quoted regions, so the downstream evaluator treats
// each as a single identifier.
func quoteSpacedColumns(expr string, columns []string) string {
	for _, col := range columns {
		if !strings.Contains(col, " ") {
			continue
		}
		expr = replaceOutsideQuotes(expr, col, `"`+col+`"`)
	}
	return expr
}

func replaceOutsideQuotes(s, old, new string) string {
	var b strings.Builder
	inQuote := byte(0)
	i := 0
	for i < len(s) {
		ch := s[i]
		if inQuote != 0 {
			if ch == inQuote {
				inQuote = 0
			}
			b.WriteByte(ch)
			i++
			continue
		}
		switch ch {
		case '\'', '"', '`':
			inQuote = ch
			b.WriteByte(ch)
			i++
			continue
		}
		if strings.HasPrefix(s[i:], old) {
			b.WriteString(new)
			i += len(old)
			continue
		}
		b.WriteByte(ch)
		i++
	}
	return b.String()
}
