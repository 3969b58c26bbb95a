package filter

import (
	"encoding/json"
	"fmt"
)

// Node is the wire representation of a filter expression. A node is either a
// comparison (key and operator set) or a group (condition set); setting both
// is an error. Nodes arrive in API requests and queue messages and are
// decoded into Expression trees before use.
type Node struct {
	Key      string   `json:"key,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`

	Condition   Condition `json:"condition,omitempty"`
	Expressions []Node    `json:"expressions,omitempty"`
}

// Expression converts the wire node into an evaluatable expression tree.
func (n Node) Expression() (Expression, error) {
	isComparison := n.Key != "" || n.Operator != ""
	isGroup := n.Condition != "" || len(n.Expressions) > 0

	switch {
	case isComparison && isGroup:
		return nil, fmt.Errorf("filter node mixes comparison and group fields")
	case isComparison:
		return Comparison{Key: n.Key, Operator: n.Operator, Value: n.Value}, nil
	case isGroup:
		exprs := make([]Expression, 0, len(n.Expressions))
		for _, child := range n.Expressions {
			expr, err := child.Expression()
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		}
		return Group{Condition: n.Condition, Expressions: exprs}, nil
	default:
		return nil, fmt.Errorf("empty filter node")
	}
}

// ParseConfig decodes a raw JSON filter into a validated config. Absent or
// null input yields a nil config, which admits everything.
func ParseConfig(raw json.RawMessage) (*Config, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var node Node
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("failed to decode filter: %w", err)
	}
	expr, err := node.Expression()
	if err != nil {
		return nil, err
	}
	return NewConfig(expr)
}
