package filter

import "github.com/lexgraph/lexgraph/pkg/model"

// Config wraps an optional filter expression supplied once per query or per
// extract/build run. A nil Config (or a Config without expression) admits
// everything.
type Config struct {
	expr Expression
}

// NewConfig validates the expression and returns a filter config. A nil
// expression yields a pass-all config.
func NewConfig(expr Expression) (*Config, error) {
	if expr == nil {
		return &Config{}, nil
	}
	if err := expr.Validate(); err != nil {
		return nil, err
	}
	return &Config{expr: expr}, nil
}

// Expression returns the wrapped expression, or nil for a pass-all config.
func (c *Config) Expression() Expression {
	if c == nil {
		return nil
	}
	return c.expr
}

// MatchesSource evaluates the filter against source metadata. Evaluation
// errors have been ruled out by NewConfig, so the only failure mode left is
// a programming error and is treated as a non-match.
func (c *Config) MatchesSource(md model.Metadata) bool {
	if c == nil || c.expr == nil {
		return true
	}
	matched, err := c.expr.Matches(md)
	if err != nil {
		return false
	}
	return matched
}
