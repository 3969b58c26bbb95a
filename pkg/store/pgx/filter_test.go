package pgx

import (
	"strings"
	"testing"
	"time"

	"github.com/lexgraph/lexgraph/pkg/filter"
)

func TestCompileFilterComparisons(t *testing.T) {
	tests := []struct {
		name     string
		expr     filter.Expression
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "eq string",
			expr:     filter.Eq("kind", "report"),
			wantSQL:  "metadata->>$1 = $2",
			wantArgs: []any{"kind", "report"},
		},
		{
			name:     "neq uses is distinct from",
			expr:     filter.Neq("kind", "memo"),
			wantSQL:  "metadata->>$1 IS DISTINCT FROM $2",
			wantArgs: []any{"kind", "memo"},
		},
		{
			name:     "numeric comparison casts",
			expr:     &filter.Comparison{Key: "year", Operator: filter.OpGte, Value: 2020},
			wantSQL:  "(metadata->>$1)::numeric >= $2",
			wantArgs: []any{"year", 2020},
		},
		{
			name:     "is empty",
			expr:     &filter.Comparison{Key: "tag", Operator: filter.OpIsEmpty},
			wantSQL:  "(metadata->>$1 IS NULL OR metadata->>$1 = '')",
			wantArgs: []any{"tag"},
		},
		{
			name:     "text match insensitive",
			expr:     &filter.Comparison{Key: "title", Operator: filter.OpTextMatchInsensitive, Value: "quarterly"},
			wantSQL:  "metadata->>$1 ILIKE '%' || $2 || '%'",
			wantArgs: []any{"title", "quarterly"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := CompileFilter("metadata", tt.expr, 0)
			if err != nil {
				t.Fatalf("compile failed: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("arg %d = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestCompileFilterTimeValue(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expr := &filter.Comparison{Key: "published", Operator: filter.OpGt, Value: ts}

	sql, args, err := CompileFilter("metadata", expr, 0)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if sql != "metadata->>$1 > $2" {
		t.Fatalf("unexpected sql: %q", sql)
	}
	if args[1] != "2026-03-01T12:00:00Z" {
		t.Fatalf("expected RFC3339 string arg, got %v", args[1])
	}
}

func TestCompileFilterGroups(t *testing.T) {
	expr := filter.And(
		filter.Eq("kind", "report"),
		filter.Or(
			filter.Eq("region", "eu"),
			filter.Eq("region", "us"),
		),
	)

	sql, args, err := CompileFilter("metadata", expr, 0)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	want := "(metadata->>$1 = $2 AND (metadata->>$3 = $4 OR metadata->>$5 = $6))"
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}
}

func TestCompileFilterEmptyGroups(t *testing.T) {
	sql, args, err := CompileFilter("metadata", filter.And(), 0)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if sql != "(TRUE)" || len(args) != 0 {
		t.Fatalf("empty and group must admit every row, got %q with %d args", sql, len(args))
	}

	sql, args, err = CompileFilter("metadata", filter.Or(), 0)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if sql != "(FALSE)" || len(args) != 0 {
		t.Fatalf("empty or group must admit no rows, got %q with %d args", sql, len(args))
	}
}

func TestCompileFilterNotFoldsNull(t *testing.T) {
	sql, _, err := CompileFilter("metadata", filter.Not(filter.Eq("kind", "memo")), 0)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !strings.Contains(sql, "COALESCE") {
		t.Fatalf("not must fold absent keys to false, got %q", sql)
	}
}

func TestCompileFilterArgOffset(t *testing.T) {
	sql, args, err := CompileFilter("metadata", filter.Eq("kind", "report"), 3)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if sql != "metadata->>$4 = $5" {
		t.Fatalf("offset not applied: %q", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestCompileFilterWireDecoded(t *testing.T) {
	cfg, err := filter.ParseConfig([]byte(`{
		"condition": "and",
		"expressions": [
			{"key": "kind", "operator": "eq", "value": "report"},
			{"condition": "not", "expressions": [{"key": "draft", "operator": "eq", "value": "yes"}]}
		]
	}`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	sql, args, err := CompileFilter("metadata", cfg.Expression(), 0)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	want := "(metadata->>$1 = $2 AND (NOT COALESCE(metadata->>$3 = $4, FALSE)))"
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
}

func TestCompileFilterNilExpression(t *testing.T) {
	sql, args, err := CompileFilter("metadata", nil, 0)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if sql != "TRUE" || len(args) != 0 {
		t.Fatalf("nil expression should compile to TRUE, got %q %v", sql, args)
	}
}
