package pgx

import (
	"fmt"
	"strings"
	"time"

	"github.com/lexgraph/lexgraph/pkg/filter"
)

// CompileFilter renders a metadata filter as a SQL condition over a JSONB
// column. Placeholders start at argOffset+1; the returned args extend the
// caller's argument list. Semantics mirror filter.Expression.Matches:
// positive comparisons on absent keys are false, neq and is_empty on absent
// keys are true.
func CompileFilter(column string, expr filter.Expression, argOffset int) (string, []any, error) {
	if expr == nil {
		return "TRUE", nil, nil
	}
	c := &filterCompiler{column: column, offset: argOffset}
	cond, err := c.compile(expr)
	if err != nil {
		return "", nil, err
	}
	return cond, c.args, nil
}

type filterCompiler struct {
	column string
	offset int
	args   []any
}

func (c *filterCompiler) placeholder(value any) string {
	c.args = append(c.args, value)
	return fmt.Sprintf("$%d", c.offset+len(c.args))
}

func (c *filterCompiler) compile(expr filter.Expression) (string, error) {
	switch e := expr.(type) {
	case filter.Comparison:
		return c.compileComparison(&e)
	case *filter.Comparison:
		return c.compileComparison(e)
	case filter.Group:
		return c.compileGroup(&e)
	case *filter.Group:
		return c.compileGroup(e)
	default:
		return "", fmt.Errorf("unsupported filter expression %T", expr)
	}
}

func (c *filterCompiler) compileGroup(group *filter.Group) (string, error) {
	parts := make([]string, 0, len(group.Expressions))
	for _, sub := range group.Expressions {
		cond, err := c.compile(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}

	switch group.Condition {
	case filter.CondAnd:
		// Empty groups follow the in-process evaluation: a bare And
		// admits every row, a bare Or admits none.
		if len(parts) == 0 {
			return "(TRUE)", nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case filter.CondOr:
		if len(parts) == 0 {
			return "(FALSE)", nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	case filter.CondNot:
		if len(parts) != 1 {
			return "", fmt.Errorf("not group requires exactly one expression")
		}
		// COALESCE folds the NULL of an absent key into false before
		// negating, matching the in-process evaluation.
		return "(NOT COALESCE(" + parts[0] + ", FALSE))", nil
	default:
		return "", fmt.Errorf("unsupported filter condition %q", group.Condition)
	}
}

func (c *filterCompiler) compileComparison(cmp *filter.Comparison) (string, error) {
	key := c.placeholder(cmp.Key)
	text := fmt.Sprintf("%s->>%s", c.column, key)

	switch cmp.Operator {
	case filter.OpIsEmpty:
		return fmt.Sprintf("(%s IS NULL OR %s = '')", text, text), nil
	case filter.OpTextMatch:
		return fmt.Sprintf("%s LIKE '%%' || %s || '%%'", text, c.placeholder(fmt.Sprint(cmp.Value))), nil
	case filter.OpTextMatchInsensitive:
		return fmt.Sprintf("%s ILIKE '%%' || %s || '%%'", text, c.placeholder(fmt.Sprint(cmp.Value))), nil
	}

	operand, value, err := c.operand(text, cmp.Value)
	if err != nil {
		return "", err
	}

	switch cmp.Operator {
	case filter.OpEq:
		return fmt.Sprintf("%s = %s", operand, c.placeholder(value)), nil
	case filter.OpNeq:
		return fmt.Sprintf("%s IS DISTINCT FROM %s", operand, c.placeholder(value)), nil
	case filter.OpGt:
		return fmt.Sprintf("%s > %s", operand, c.placeholder(value)), nil
	case filter.OpGte:
		return fmt.Sprintf("%s >= %s", operand, c.placeholder(value)), nil
	case filter.OpLt:
		return fmt.Sprintf("%s < %s", operand, c.placeholder(value)), nil
	case filter.OpLte:
		return fmt.Sprintf("%s <= %s", operand, c.placeholder(value)), nil
	default:
		return "", fmt.Errorf("%w: %q", filter.ErrUnsupportedOperator, cmp.Operator)
	}
}

// operand casts the JSONB text projection to match the comparison value.
func (c *filterCompiler) operand(text string, value any) (string, any, error) {
	switch v := value.(type) {
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("(%s)::numeric", text), v, nil
	case time.Time:
		// Timestamps are stored as RFC3339 UTC strings; their lexical
		// order is their chronological order.
		return text, v.UTC().Format(time.RFC3339), nil
	case string:
		return text, v, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter value type %T", value)
	}
}
