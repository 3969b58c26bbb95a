package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexgraph/lexgraph/pkg/model"
)

// ErrUnsupportedOperator is returned when a filter references an operator the
// engine does not implement. This is a configuration error and fails fast at
// construction, not during a run.
var ErrUnsupportedOperator = errors.New("unsupported filter operator")

// Operator is a field comparison inside a metadata filter.
type Operator string

const (
	OpEq                   Operator = "eq"
	OpNeq                  Operator = "neq"
	OpGt                   Operator = "gt"
	OpGte                  Operator = "gte"
	OpLt                   Operator = "lt"
	OpLte                  Operator = "lte"
	OpTextMatch            Operator = "text_match"
	OpTextMatchInsensitive Operator = "text_match_insensitive"
	OpIsEmpty              Operator = "is_empty"
)

// Condition combines sub-expressions of a filter group.
type Condition string

const (
	CondAnd Condition = "and"
	CondOr  Condition = "or"
	CondNot Condition = "not"
)

// Expression is a node of a metadata filter tree. It is evaluated twice
// during retrieval: pushed into the vector query to constrain anchor
// selection, and re-applied to the full result set because traversal can
// cross from a filter-passing source into a filter-failing one.
type Expression interface {
	// Matches evaluates the expression against source metadata.
	Matches(md model.Metadata) (bool, error)
	// Validate reports configuration errors such as unknown operators.
	Validate() error
}

// Comparison is a leaf filter comparing one metadata field against a value.
type Comparison struct {
	Key      string   `json:"key"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Group combines sub-expressions with a boolean condition. A "not" group
// must contain exactly one sub-expression.
type Group struct {
	Condition   Condition    `json:"condition"`
	Expressions []Expression `json:"expressions"`
}

// Eq returns a key == value comparison.
func Eq(key string, value any) Comparison {
	return Comparison{Key: key, Operator: OpEq, Value: value}
}

// Neq returns a key != value comparison.
func Neq(key string, value any) Comparison {
	return Comparison{Key: key, Operator: OpNeq, Value: value}
}

// And combines expressions so that all must match. An empty group
// matches everything.
func And(exprs ...Expression) Group {
	return Group{Condition: CondAnd, Expressions: exprs}
}

// Or combines expressions so that at least one must match. An empty
// group matches nothing.
func Or(exprs ...Expression) Group {
	return Group{Condition: CondOr, Expressions: exprs}
}

// Not negates a single expression.
func Not(expr Expression) Group {
	return Group{Condition: CondNot, Expressions: []Expression{expr}}
}

func (c Comparison) Validate() error {
	switch c.Operator {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpTextMatch, OpTextMatchInsensitive, OpIsEmpty:
		return nil
	default:
		return fmt.Errorf("%w: %q on key %q", ErrUnsupportedOperator, c.Operator, c.Key)
	}
}

func (c Comparison) Matches(md model.Metadata) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}

	value, present := md.Get(c.Key)

	if c.Operator == OpIsEmpty {
		if !present {
			return true, nil
		}
		s, ok := value.(string)
		return ok && strings.TrimSpace(s) == "", nil
	}

	if !present {
		// Absent fields never satisfy a positive comparison; != treats an
		// absent field as different from any value.
		return c.Operator == OpNeq, nil
	}

	switch c.Operator {
	case OpEq:
		return compareValues(value, c.Value) == 0, nil
	case OpNeq:
		return compareValues(value, c.Value) != 0, nil
	case OpGt:
		return compareValues(value, c.Value) > 0, nil
	case OpGte:
		return compareValues(value, c.Value) >= 0, nil
	case OpLt:
		return compareValues(value, c.Value) < 0, nil
	case OpLte:
		return compareValues(value, c.Value) <= 0, nil
	case OpTextMatch:
		return strings.Contains(toString(value), toString(c.Value)), nil
	case OpTextMatchInsensitive:
		return strings.Contains(strings.ToLower(toString(value)), strings.ToLower(toString(c.Value))), nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, c.Operator)
}

func (g Group) Validate() error {
	switch g.Condition {
	case CondAnd, CondOr:
	case CondNot:
		if len(g.Expressions) != 1 {
			return fmt.Errorf("not group must contain exactly one expression, got %d", len(g.Expressions))
		}
	default:
		return fmt.Errorf("unsupported filter condition %q", g.Condition)
	}
	for _, expr := range g.Expressions {
		if err := expr.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (g Group) Matches(md model.Metadata) (bool, error) {
	if err := g.Validate(); err != nil {
		return false, err
	}

	switch g.Condition {
	case CondNot:
		matched, err := g.Expressions[0].Matches(md)
		if err != nil {
			return false, err
		}
		return !matched, nil
	case CondAnd:
		for _, expr := range g.Expressions {
			matched, err := expr.Matches(md)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil
	case CondOr:
		for _, expr := range g.Expressions {
			matched, err := expr.Matches(md)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unsupported filter condition %q", g.Condition)
}

// compareValues orders two metadata values. Numbers compare numerically,
// timestamps chronologically, everything else by string representation.
func compareValues(left any, right any) int {
	if lt, lok := left.(time.Time); lok {
		if rt, rok := right.(time.Time); rok {
			switch {
			case lt.Before(rt):
				return -1
			case lt.After(rt):
				return 1
			default:
				return 0
			}
		}
	}

	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		switch {
		case lf < rf:
			return -1
		case lf > rf:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(toString(left), toString(right))
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
