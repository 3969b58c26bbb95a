package extract

import (
	"testing"

	"github.com/lexgraph/lexgraph/pkg/model"
)

func TestNormalizeEntityName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme corp"},
		{"  Acme   Corp  ", "acme corp"},
		{"ACME\tCorp", "acme corp"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeEntityName(tt.in); got != tt.want {
			t.Errorf("NormalizeEntityName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDedupeEntitiesMergesByNormalizedName(t *testing.T) {
	entities := []model.Entity{
		{ID: "e1", Name: "Acme Corp", Classification: "organization"},
		{ID: "e2", Name: "acme  corp", Classification: "organization"},
		{ID: "e3", Name: "Jane Doe", Classification: "person"},
	}

	deduped, remap := DedupeEntities(entities)
	if len(deduped) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(deduped))
	}
	if deduped[0].ID != "e1" || deduped[0].Name != "Acme Corp" {
		t.Fatalf("expected first occurrence to survive, got %+v", deduped[0])
	}
	if deduped[1].ID != "e3" {
		t.Fatalf("expected unrelated entity kept, got %+v", deduped[1])
	}
	if remap["e2"] != "e1" {
		t.Fatalf("expected e2 remapped to e1, got %v", remap)
	}
}

func TestDedupeEntitiesClassificationMajority(t *testing.T) {
	entities := []model.Entity{
		{ID: "e1", Name: "mercury", Classification: "product"},
		{ID: "e2", Name: "Mercury", Classification: "location"},
		{ID: "e3", Name: "MERCURY", Classification: "location"},
	}

	deduped, _ := DedupeEntities(entities)
	if len(deduped) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(deduped))
	}
	if deduped[0].Classification != "location" {
		t.Fatalf("expected majority classification, got %q", deduped[0].Classification)
	}
	if deduped[0].Name != "mercury" {
		t.Fatalf("expected first display name, got %q", deduped[0].Name)
	}
}

func TestDedupeEntitiesClassificationTieFirstWins(t *testing.T) {
	entities := []model.Entity{
		{ID: "e1", Name: "python", Classification: "product"},
		{ID: "e2", Name: "Python", Classification: "concept"},
	}

	deduped, _ := DedupeEntities(entities)
	if deduped[0].Classification != "product" {
		t.Fatalf("expected earliest classification on tie, got %q", deduped[0].Classification)
	}
}

func TestRemapFacts(t *testing.T) {
	facts := []model.Fact{
		{
			ID:      "f1",
			Subject: model.EntityRef{EntityID: "e2", Name: "acme corp"},
			Object:  model.EntityRef{EntityID: "e3", Name: "Jane Doe"},
		},
	}
	remapped := RemapFacts(facts, map[string]string{"e2": "e1"})
	if remapped[0].Subject.EntityID != "e1" {
		t.Fatalf("expected subject remapped, got %q", remapped[0].Subject.EntityID)
	}
	if remapped[0].Object.EntityID != "e3" {
		t.Fatalf("expected object untouched, got %q", remapped[0].Object.EntityID)
	}
}
