// Package condition turns loosely-structured filter expressions into safe,
// deterministic predicates. It recognizes a comparison form, two substring
// forms, and falls back to a gated boolean-expression evaluator for anything
// it does not anticipate.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oterdem/mcptab/config"
)

// Parsed is the result of parsing a raw condition string.
type Parsed interface {
	// Canonical renders the standardized condition that was actually
	// applied, as echoed back to the caller.
	Canonical() string
}

// Comparison is a column/operator/literal predicate. When the literal is
// numeric and the operator is equality, Tolerance carries the symmetric
// range half-width that replaces exact float comparison.
type Comparison struct {
	Column    string
	Op        string // ==, !=, <, <=, >, >=
	Literal   string
	Num       float64
	IsNumeric bool
	Tolerance float64
}

func (c Comparison) Canonical() string {
	if c.IsNumeric {
		return fmt.Sprintf("`%s` %s %s", c.Column, c.Op, c.Literal)
	}
	return fmt.Sprintf("`%s` %s '%s'", c.Column, c.Op, c.Literal)
}

// Contains is a substring-match predicate. Dotted records whether the input
// used the explicit .str.contains form, which controls how the canonical
// string is echoed.
type Contains struct {
	Column        string
	Needle        string
	CaseSensitive bool
	Dotted        bool
}

func (c Contains) Canonical() string {
	if c.Dotted {
		return fmt.Sprintf("%s.str.contains('%s', case=%s)", c.Column, c.Needle, pyBool(c.CaseSensitive))
	}
	return fmt.Sprintf("%s.str.contains('%s')", c.Column, c.Needle)
}

// Raw is the fallback: the condition is handed to the gated expression
// evaluator unchanged.
type Raw struct {
	Expr string
}

func (r Raw) Canonical() string { return r.Expr }

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

var comparisonOps = []string{"<=", ">=", "==", "!=", "<", ">"}

// Parse interprets a raw condition string against the known column set.
// Recognition order: dotted contains, keyword contains, comparison, then the
// raw fallback. A structured form referencing an unknown column fails with
// an error naming it and listing the available columns.
func Parse(raw string, columns []string) (Parsed, error) {
	cond := strings.TrimSpace(raw)
	if cond == "" {
		return nil, fmt.Errorf("condition: empty condition")
	}

	if p, ok, err := parseDottedContains(cond, columns); ok || err != nil {
		return p, err
	}
	if p, ok, err := parseKeywordContains(cond, columns); ok || err != nil {
		return p, err
	}
	if p, ok, err := parseComparison(cond, columns); ok || err != nil {
		return p, err
	}
	return Raw{Expr: cond}, nil
}

// parseDottedContains handles `col.str.contains('val'[, case=Bool])` and the
// shorter `col.contains('val'[, case=Bool])`. Case defaults to true.
func parseDottedContains(cond string, columns []string) (Parsed, bool, error) {
	marker := ".str.contains("
	at := indexOutsideQuotes(cond, marker)
	if at < 0 {
		marker = ".contains("
		at = indexOutsideQuotes(cond, marker)
	}
	if at < 0 {
		return nil, false, nil
	}
	if !strings.HasSuffix(cond, ")") {
		return nil, false, nil
	}
	col := unwrapColumn(cond[:at])
	args := cond[at+len(marker) : len(cond)-1]

	needle, rest, err := takeQuoted(args)
	if err != nil {
		return nil, true, fmt.Errorf("condition: contains needs a quoted literal: %w", err)
	}
	caseSensitive := true
	rest = strings.TrimSpace(rest)
	if rest != "" {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ","))
		kv := strings.SplitN(rest, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(strings.ToLower(kv[0])) != "case" {
			return nil, true, fmt.Errorf("condition: unexpected contains argument %q", rest)
		}
		switch strings.TrimSpace(strings.ToLower(kv[1])) {
		case "false":
			caseSensitive = false
		case "true":
			caseSensitive = true
		default:
			return nil, true, fmt.Errorf("condition: case must be True or False, got %q", kv[1])
		}
	}
	if err := checkColumn(col, columns); err != nil {
		return nil, true, err
	}
	return Contains{Column: col, Needle: needle, CaseSensitive: caseSensitive, Dotted: true}, true, nil
}

// parseKeywordContains handles the natural form `col contains literal`.
// The match is case-sensitive, mirroring the dotted default.
func parseKeywordContains(cond string, columns []string) (Parsed, bool, error) {
	at := indexWordOutsideQuotes(cond, "contains")
	if at < 0 {
		return nil, false, nil
	}
	col := unwrapColumn(cond[:at])
	lit := strings.TrimSpace(cond[at+len("contains"):])
	if col == "" || lit == "" {
		return nil, false, nil
	}
	if quoted, _, err := takeQuoted(lit); err == nil {
		lit = quoted
	}
	if err := checkColumn(col, columns); err != nil {
		return nil, true, err
	}
	return Contains{Column: col, Needle: lit, CaseSensitive: true}, true, nil
}

// parseComparison handles `col op literal` with an optional backtick or
// quote wrapper around the column (required when the name contains spaces,
// tolerated otherwise) and a literal that is a bare number or quoted string.
func parseComparison(cond string, columns []string) (Parsed, bool, error) {
	opAt, op := findOperator(cond)
	if opAt < 0 {
		return nil, false, nil
	}
	col := unwrapColumn(cond[:opAt])
	lit := strings.TrimSpace(cond[opAt+len(op):])
	if col == "" || lit == "" {
		return nil, false, nil
	}

	isQuoted := false
	if unq, rest, err := takeQuoted(lit); err == nil && strings.TrimSpace(rest) == "" {
		lit = unq
		isQuoted = true
	}
	if err := checkColumn(col, columns); err != nil {
		return nil, true, err
	}

	c := Comparison{Column: col, Op: op, Literal: lit}
	if !isQuoted {
		if num, ok := parseFloat(lit); ok {
			c.IsNumeric = true
			c.Num = num
			if op == "==" {
				// Exact float equality is representation-noise fragile;
				// rewrite as a symmetric tolerance range.
				c.Tolerance = config.FloatEqTolerance
			}
		}
	}
	return c, true, nil
}

func checkColumn(col string, columns []string) error {
	for _, c := range columns {
		if c == col {
			return nil
		}
	}
	return &UnknownColumnError{Column: col, Available: columns}
}

// UnknownColumnError names the offending column and lists the available ones.
type UnknownColumnError struct {
	Column    string
	Available []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("column '%s' not found; available columns: %v", e.Column, e.Available)
}

// unwrapColumn trims whitespace and a single layer of backticks or quotes.
func unwrapColumn(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '`' || first == '\'' || first == '"') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// takeQuoted reads a leading quoted literal and returns it with the
// remainder of the input.
func takeQuoted(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || (s[0] != '\'' && s[0] != '"') {
		return "", "", fmt.Errorf("expected quoted literal in %q", s)
	}
	quote := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] == quote {
			return s[1:i], s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("unterminated literal in %q", s)
}

// findOperator locates the first comparison operator outside quoted or
// backticked regions, preferring the two-character forms.
func findOperator(s string) (int, string) {
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inQuote != 0 {
			if ch == inQuote {
				inQuote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			inQuote = ch
			continue
		}
		for _, op := range comparisonOps {
			if strings.HasPrefix(s[i:], op) {
				return i, op
			}
		}
	}
	return -1, ""
}

func indexOutsideQuotes(s, sub string) int {
	inQuote := byte(0)
	for i := 0; i+len(sub) <= len(s); i++ {
		ch := s[i]
		if inQuote != 0 {
			if ch == inQuote {
				inQuote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			inQuote = ch
			continue
		}
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// indexWordOutsideQuotes finds a standalone word delimited by whitespace.
func indexWordOutsideQuotes(s, word string) int {
	inQuote := byte(0)
	for i := 0; i+len(word) <= len(s); i++ {
		ch := s[i]
		if inQuote != 0 {
			if ch == inQuote {
				inQuote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			inQuote = ch
			continue
		}
		if !strings.EqualFold(s[i:i+len(word)], word) {
			continue
		}
		beforeOK := i == 0 || s[i-1] == ' ' || s[i-1] == '\t'
		afterIdx := i + len(word)
		afterOK := afterIdx == len(s) || s[afterIdx] == ' ' || s[afterIdx] == '\t'
		if beforeOK && afterOK && i > 0 {
			return i
		}
	}
	return -1
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}
