package model

import (
	"strings"
	"testing"
)

func TestSourceID_Deterministic(t *testing.T) {
	g := NewIDGenerator(DefaultTenant())

	a := g.SourceID("some document text", "url=A")
	b := g.SourceID("some document text", "url=A")
	if a != b {
		t.Fatalf("expected identical ids, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "src::") {
		t.Fatalf("expected src:: prefix, got %s", a)
	}
}

func TestSourceID_MetadataChangeChangesID(t *testing.T) {
	g := NewIDGenerator(DefaultTenant())

	a := g.SourceID("some document text", "url=A")
	b := g.SourceID("some document text", "url=B")
	if a == b {
		t.Fatal("expected different ids for different metadata")
	}
}

func TestChunkID_IncludesSourceID(t *testing.T) {
	g := NewIDGenerator(DefaultTenant())

	sourceID := g.SourceID("doc", "url=A")
	chunkID := g.ChunkID(sourceID, "chunk text", "url=A")
	if !strings.HasPrefix(chunkID, sourceID+":") {
		t.Fatalf("expected chunk id %s to be prefixed by source id %s", chunkID, sourceID)
	}
}

func TestNodeID_NormalizesComponents(t *testing.T) {
	g := NewIDGenerator(DefaultTenant())

	a := g.NodeID("entity", "Acme Corp", "Company")
	b := g.NodeID("entity", "acme corp", "company")
	if a != b {
		t.Fatalf("expected case and spacing to normalize, got %s and %s", a, b)
	}

	c := g.NodeID("entity", "Acme Corp", "Person")
	if a == c {
		t.Fatal("expected different classification to produce a different id")
	}
}

func TestNodeID_TenantScoped(t *testing.T) {
	tenantA, err := NewTenantID("tenanta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tenantB, err := NewTenantID("tenantb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := NewIDGenerator(tenantA).NodeID("statement", "topic-1", "the sky is blue")
	b := NewIDGenerator(tenantB).NodeID("statement", "topic-1", "the sky is blue")
	if a == b {
		t.Fatal("expected identical content under different tenants to produce different ids")
	}
}

func TestNewTenantID_Validation(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"empty is default", "", false},
		{"lowercase alnum", "tenant1", false},
		{"max length", "abcdefghij", false},
		{"too long", "abcdefghijk", true},
		{"uppercase", "Tenant", true},
		{"punctuation", "ten-ant", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTenantID(tc.value)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %q", tc.value)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.value, err)
			}
		})
	}
}

func TestDefaultTenant(t *testing.T) {
	if !DefaultTenant().IsDefault() {
		t.Fatal("DefaultTenant must report IsDefault")
	}

	tenant, err := NewTenantID("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant != DefaultTenant() {
		t.Fatal("empty tenant id must yield the default tenant")
	}
}

func TestTenantID_Formatting(t *testing.T) {
	tenant, err := NewTenantID("acme1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := tenant.FormatLabel("Statement"); got != "Statementacme1__" {
		t.Fatalf("unexpected label: %s", got)
	}
	if got := tenant.FormatIndexName("statements"); got != "statements_acme1" {
		t.Fatalf("unexpected index name: %s", got)
	}
	if got := tenant.RewriteID("abc"); got != "acme1::abc" {
		t.Fatalf("unexpected rewritten id: %s", got)
	}

	if got := DefaultTenant().FormatLabel("Statement"); got != "Statement" {
		t.Fatalf("default tenant must not namespace labels, got %s", got)
	}
	if got := DefaultTenant().FormatIndexName("statements"); got != "statements" {
		t.Fatalf("default tenant must not namespace index names, got %s", got)
	}
}
