package extract

import (
	"testing"

	"github.com/lexgraph/lexgraph/pkg/model"
)

func testIDGen(t *testing.T) *model.IDGenerator {
	t.Helper()
	return model.NewIDGenerator(model.DefaultTenant())
}

func testSourceAndChunk(idgen *model.IDGenerator) (model.Source, model.Chunk) {
	md := model.Metadata{"author": "jane"}
	metadataStr := md.CanonicalString()
	sourceID := idgen.SourceID("some document", metadataStr)
	source := model.Source{ID: sourceID, Metadata: md, ContentHash: metadataStr}
	chunk := model.Chunk{
		ID:       idgen.ChunkID(sourceID, "some document", metadataStr),
		SourceID: sourceID,
		Text:     "some document",
	}
	return source, chunk
}

func sampleResponse() *StructureResponse {
	return &StructureResponse{
		Topics: []StructureTopic{
			{
				Label:   "Acme",
				Summary: "Facts about Acme Corp.",
				Statements: []StructureStatement{
					{
						Text: "Jane Doe founded Acme Corp in 1999.",
						Facts: []StructureFact{
							{
								Subject:      "Jane Doe",
								SubjectClass: "person",
								Predicate:    "founded",
								Object:       "Acme Corp",
								ObjectClass:  "organization",
							},
						},
					},
					{
						Text: "Acme Corp is based in Berlin.",
						Facts: []StructureFact{
							{
								Subject:      "acme corp",
								SubjectClass: "organization",
								Predicate:    "is based in",
								Object:       "Berlin",
								ObjectClass:  "location",
							},
						},
					},
				},
			},
		},
	}
}

func TestBuildExtractionHierarchy(t *testing.T) {
	idgen := testIDGen(t)
	source, chunk := testSourceAndChunk(idgen)

	extracted := BuildExtraction(idgen, source, chunk, nil, sampleResponse())

	if len(extracted.Topics) != 1 {
		t.Fatalf("expected 1 topic, got %d", len(extracted.Topics))
	}
	topic := extracted.Topics[0]
	if topic.Topic.ChunkID != chunk.ID {
		t.Fatalf("topic not linked to chunk: %q", topic.Topic.ChunkID)
	}
	if len(topic.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(topic.Statements))
	}
	for _, stmt := range topic.Statements {
		if stmt.Statement.TopicID != topic.Topic.ID {
			t.Fatalf("statement not linked to topic")
		}
		for _, fact := range stmt.Facts {
			if fact.StatementID != stmt.Statement.ID {
				t.Fatalf("fact not linked to statement")
			}
		}
	}
}

func TestBuildExtractionDedupesEntitiesAcrossStatements(t *testing.T) {
	idgen := testIDGen(t)
	source, chunk := testSourceAndChunk(idgen)

	extracted := BuildExtraction(idgen, source, chunk, nil, sampleResponse())

	// "Acme Corp" and "acme corp" must converge to one entity.
	if len(extracted.Entities) != 3 {
		t.Fatalf("expected 3 entities, got %d: %+v", len(extracted.Entities), extracted.Entities)
	}
	ids := make(map[string]bool)
	for _, entity := range extracted.Entities {
		ids[entity.ID] = true
	}
	subjectID := extracted.Topics[0].Statements[1].Facts[0].Subject.EntityID
	objectID := extracted.Topics[0].Statements[0].Facts[0].Object.EntityID
	if subjectID != objectID {
		t.Fatalf("expected both Acme references to share an id")
	}
	if !ids[subjectID] {
		t.Fatalf("fact references entity id missing from entity list")
	}
}

func TestBuildExtractionDeterministicIDs(t *testing.T) {
	idgen := testIDGen(t)
	source, chunk := testSourceAndChunk(idgen)

	first := BuildExtraction(idgen, source, chunk, nil, sampleResponse())
	second := BuildExtraction(idgen, source, chunk, nil, sampleResponse())

	if first.Topics[0].Topic.ID != second.Topics[0].Topic.ID {
		t.Fatalf("topic ids differ across identical extractions")
	}
	if first.Topics[0].Statements[0].Statement.ID != second.Topics[0].Statements[0].Statement.ID {
		t.Fatalf("statement ids differ across identical extractions")
	}
	if first.Topics[0].Statements[0].Facts[0].ID != second.Topics[0].Statements[0].Facts[0].ID {
		t.Fatalf("fact ids differ across identical extractions")
	}
}

func TestBuildExtractionTenantScopedIDs(t *testing.T) {
	defaultGen := testIDGen(t)
	tenant, err := model.NewTenantID("acme1")
	if err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}
	tenantGen := model.NewIDGenerator(tenant)

	source, chunk := testSourceAndChunk(defaultGen)

	first := BuildExtraction(defaultGen, source, chunk, nil, sampleResponse())
	second := BuildExtraction(tenantGen, source, chunk, nil, sampleResponse())

	if first.Topics[0].Topic.ID == second.Topics[0].Topic.ID {
		t.Fatalf("expected tenant-scoped topic ids to differ")
	}
}

func TestBuildExtractionDropsInvalidElements(t *testing.T) {
	idgen := testIDGen(t)
	source, chunk := testSourceAndChunk(idgen)

	res := &StructureResponse{
		Topics: []StructureTopic{
			{Label: "", Statements: []StructureStatement{{Text: "orphaned"}}},
			{
				Label: "Valid",
				Statements: []StructureStatement{
					{Text: ""},
					{
						Text: "A claim with a broken fact.",
						Facts: []StructureFact{
							{Subject: "", Predicate: "relates to", Object: "thing"},
						},
					},
				},
			},
		},
	}

	extracted := BuildExtraction(idgen, source, chunk, nil, res)
	if len(extracted.Topics) != 1 {
		t.Fatalf("expected unlabeled topic dropped, got %d topics", len(extracted.Topics))
	}
	if len(extracted.Topics[0].Statements) != 1 {
		t.Fatalf("expected empty statement dropped")
	}
	if len(extracted.Topics[0].Statements[0].Facts) != 0 {
		t.Fatalf("expected fact with blank subject dropped")
	}
	if len(extracted.Entities) != 0 {
		t.Fatalf("expected no entities from dropped facts, got %+v", extracted.Entities)
	}
}
