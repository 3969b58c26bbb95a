package filter

import (
	"testing"

	"github.com/lexgraph/lexgraph/pkg/model"
)

func TestParseConfigComparison(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"key": "team", "operator": "eq", "value": "physics"}`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if !cfg.MatchesSource(model.Metadata{"team": "physics"}) {
		t.Fatalf("expected matching metadata to pass")
	}
	if cfg.MatchesSource(model.Metadata{"team": "chemistry"}) {
		t.Fatalf("expected non-matching metadata to fail")
	}
}

func TestParseConfigNestedGroup(t *testing.T) {
	raw := []byte(`{
		"condition": "and",
		"expressions": [
			{"key": "team", "operator": "eq", "value": "physics"},
			{
				"condition": "not",
				"expressions": [{"key": "year", "operator": "lt", "value": 2020}]
			}
		]
	}`)
	cfg, err := ParseConfig(raw)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if !cfg.MatchesSource(model.Metadata{"team": "physics", "year": 2023}) {
		t.Fatalf("expected 2023 physics source to pass")
	}
	if cfg.MatchesSource(model.Metadata{"team": "physics", "year": 2019}) {
		t.Fatalf("expected 2019 source to fail the not-group")
	}
}

func TestParseConfigAbsent(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("null")} {
		cfg, err := ParseConfig(raw)
		if err != nil {
			t.Fatalf("ParseConfig(%q) failed: %v", raw, err)
		}
		if cfg != nil {
			t.Fatalf("expected nil config for absent filter")
		}
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty node":        `{}`,
		"mixed node":        `{"key": "a", "operator": "eq", "condition": "and"}`,
		"unknown operator":  `{"key": "a", "operator": "regex", "value": "x"}`,
		"not with two subs": `{"condition": "not", "expressions": [{"key": "a", "operator": "is_empty"}, {"key": "b", "operator": "is_empty"}]}`,
	}
	for name, raw := range cases {
		if _, err := ParseConfig([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
