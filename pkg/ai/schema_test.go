package ai

import "testing"

type schemaTestPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestUnmarshalFlexible_StandardJSON(t *testing.T) {
	var out schemaTestPayload
	if err := UnmarshalFlexible(`{"name": "a", "count": 2}`, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "a" || out.Count != 2 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_DoubleEncoded(t *testing.T) {
	var out schemaTestPayload
	if err := UnmarshalFlexible(`"{\"name\": \"b\", \"count\": 3}"`, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "b" || out.Count != 3 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_RepairsMalformed(t *testing.T) {
	var out schemaTestPayload
	if err := UnmarshalFlexible(`{name: "c", count: 4,}`, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "c" || out.Count != 4 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_Unrepairable(t *testing.T) {
	var out schemaTestPayload
	if err := UnmarshalFlexible(`no json here at all []{`, &out); err == nil {
		t.Fatal("expected error for unrepairable input")
	}
}

func TestGenerateSchema_NoReferences(t *testing.T) {
	schema := GenerateSchema(&schemaTestPayload{})
	if schema == nil {
		t.Fatal("expected schema, got nil")
	}
}
