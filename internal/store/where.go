package store

import (
	"fmt"
	"sort"
	"strings"
)

// WhereBuilder accumulates AND-ed conditions with positional placeholders.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns a builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return NewWhereBuilderAt(1)
}

// NewWhereBuilderAt returns a builder whose first placeholder is $start.
// Used when earlier placeholders are already taken (UPDATE ... SET).
func NewWhereBuilderAt(start int) *WhereBuilder {
	return &WhereBuilder{argIndex: start}
}

// Add appends one filter. Unknown operators are ignored.
func (wb *WhereBuilder) Add(f Filter) {
	cond, args, next := buildSingleFilter(f, wb.argIndex)
	if cond == "" {
		return
	}
	wb.conditions = append(wb.conditions, cond)
	wb.args = append(wb.args, args...)
	wb.argIndex = next
}

// Build returns the WHERE clause (with a leading space) and its arguments.
// Returns "" and nil when no conditions were added.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// buildSingleFilter generates SQL for a single filter.
func buildSingleFilter(f Filter, argIdx int) (string, []any, int) {
	col := quoteIdentifier(f.Column)

	switch f.Operator {
	case OpEquals:
		return fmt.Sprintf("%s = $%d", col, argIdx), []any{f.Value}, argIdx + 1

	case OpEqualFold:
		return fmt.Sprintf("%s ILIKE $%d", col, argIdx),
			[]any{escapeLike(fmt.Sprint(f.Value))}, argIdx + 1

	case OpGreaterEq:
		return fmt.Sprintf("%s >= $%d", col, argIdx), []any{f.Value}, argIdx + 1

	case OpLessEq:
		return fmt.Sprintf("%s <= $%d", col, argIdx), []any{f.Value}, argIdx + 1

	default:
		return "", nil, argIdx
	}
}

// escapeLike neutralises LIKE wildcards so ILIKE behaves as case-insensitive equality.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteColumns(cols []string) []string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdentifier(c)
	}
	return quoted
}

// sortedColumns returns the record's keys in a stable order so generated
// statements (and their placeholders) are deterministic.
func sortedColumns(record Row) []string {
	cols := make([]string, 0, len(record))
	for c := range record {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
