package build

import (
	"context"
	"testing"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/config"
	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/sink"
	"github.com/lexgraph/lexgraph/pkg/store/memory"
)

type embedOnlyClient struct{}

func (c *embedOnlyClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (c *embedOnlyClient) GenerateCompletionWithFormat(ctx context.Context, name string, description string, prompt string, out any, opts ...ai.GenerateOption) error {
	return nil
}

func (c *embedOnlyClient) GenerateEmbedding(ctx context.Context, input string) ([]float32, error) {
	return []float32{float32(len(input)), 1}, nil
}

func (c *embedOnlyClient) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		out[i] = []float32{float32(len(input)), 1}
	}
	return out, nil
}

func extractedChunk(t *testing.T, text string, md model.Metadata) model.ExtractedChunk {
	t.Helper()
	idgen := model.NewIDGenerator(model.DefaultTenant())
	metadataStr := md.CanonicalString()
	sourceID := idgen.SourceID(text, metadataStr)
	chunkID := idgen.ChunkID(sourceID, text, metadataStr)
	topicID := idgen.NodeID("topic", chunkID, "topic")
	statementID := idgen.NodeID("statement", topicID, text)
	subject := model.Entity{ID: idgen.NodeID("entity", "alpha", "concept"), Name: "Alpha", Classification: "concept"}
	object := model.Entity{ID: idgen.NodeID("entity", "beta", "concept"), Name: "Beta", Classification: "concept"}

	return model.ExtractedChunk{
		Source: model.Source{ID: sourceID, Metadata: md, ContentHash: metadataStr},
		Chunk:  model.Chunk{ID: chunkID, SourceID: sourceID, Text: text},
		Topics: []model.ExtractedTopic{{
			Topic: model.Topic{ID: topicID, ChunkID: chunkID, Label: "topic", Summary: "About " + text},
			Statements: []model.ExtractedStatement{{
				Statement: model.Statement{ID: statementID, TopicID: topicID, Text: text},
				Facts: []model.Fact{{
					ID:          idgen.NodeID("fact", statementID, "alpha::relates to::beta"),
					StatementID: statementID,
					Subject:     model.EntityRef{EntityID: subject.ID, Name: subject.Name, Classification: subject.Classification},
					Predicate:   "relates to",
					Object:      model.EntityRef{EntityID: object.ID, Name: object.Name, Classification: object.Classification},
				}},
			}},
		}},
		Entities: []model.Entity{subject, object},
	}
}

func testBuildConfig() config.BuildConfig {
	return config.BuildConfig{
		Workers:         2,
		BatchWriteSize:  100,
		EmbeddableTypes: []string{"Chunk", "Statement"},
	}
}

func newTestBuilder(t *testing.T, graph *memory.GraphStore, vectors *memory.VectorStore, f *filter.Config) *Builder {
	t.Helper()
	b, err := NewBuilder(NewBuilderParams{
		Client:  &embedOnlyClient{},
		Graph:   graph,
		Vectors: vectors,
		Config:  testBuildConfig(),
		Tenant:  model.DefaultTenant(),
		Filter:  f,
	})
	if err != nil {
		t.Fatalf("failed to create builder: %v", err)
	}
	return b
}

func writeSink(t *testing.T, chunks ...model.ExtractedChunk) sink.ChunkSink {
	t.Helper()
	s, err := sink.NewFileSystemSink(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	if err := s.Write(context.Background(), "run-1", chunks); err != nil {
		t.Fatalf("failed to seed sink: %v", err)
	}
	return s
}

func TestBuilderMaterializesGraphAndVectors(t *testing.T) {
	graph := memory.NewGraphStore()
	vectors := memory.NewVectorStore()
	chunk := extractedChunk(t, "Alpha relates to Beta.", model.Metadata{"kind": "report"})
	src := writeSink(t, chunk)

	b := newTestBuilder(t, graph, vectors, nil)
	summary, err := b.Run(context.Background(), "run-1", src)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := summary.ChunksBuilt.Load(); got != 1 {
		t.Fatalf("expected 1 chunk built, got %d", got)
	}
	// Source, chunk, topic, statement, fact, two entities.
	if got := summary.NodesWritten.Load(); got != 7 {
		t.Fatalf("expected 7 nodes, got %d", got)
	}

	ctx := context.Background()
	tenant := model.DefaultTenant()

	nodes, err := graph.GetNodes(ctx, tenant, []string{chunk.Source.ID, chunk.Chunk.ID})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected source and chunk nodes persisted, got %d", len(nodes))
	}

	neighbors, err := graph.Neighbors(ctx, tenant, []string{chunk.Source.ID}, []model.EdgeType{model.EdgeContains})
	if err != nil {
		t.Fatalf("neighbors failed: %v", err)
	}
	if len(neighbors[chunk.Source.ID]) != 1 || neighbors[chunk.Source.ID][0].Node.ID != chunk.Chunk.ID {
		t.Fatalf("source must contain chunk, got %+v", neighbors[chunk.Source.ID])
	}

	entries, err := vectors.ListEntries(ctx, tenant)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	// Chunk and statement are embeddable, topic and entities are not.
	if len(entries) != 2 {
		t.Fatalf("expected 2 vector entries, got %d: %+v", len(entries), entries)
	}
	for _, entry := range entries {
		if entry.SourceID != chunk.Source.ID {
			t.Fatalf("vector entry missing provenance: %+v", entry)
		}
		if entry.Metadata.CanonicalString() != chunk.Source.Metadata.CanonicalString() {
			t.Fatalf("vector entry must carry source metadata: %+v", entry)
		}
		if entry.DocID != entry.NodeID {
			t.Fatalf("doc id must be derived from node id: %+v", entry)
		}
	}
}

func TestBuilderFilterDiscardsWholeChunk(t *testing.T) {
	graph := memory.NewGraphStore()
	vectors := memory.NewVectorStore()
	admitted := extractedChunk(t, "An admitted report chunk.", model.Metadata{"kind": "report"})
	rejected := extractedChunk(t, "A rejected memo chunk.", model.Metadata{"kind": "memo"})
	src := writeSink(t, admitted, rejected)

	cfg, err := filter.NewConfig(filter.Eq("kind", "report"))
	if err != nil {
		t.Fatalf("filter: %v", err)
	}

	b := newTestBuilder(t, graph, vectors, cfg)
	summary, err := b.Run(context.Background(), "run-1", src)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := summary.ChunksFiltered.Load(); got != 1 {
		t.Fatalf("expected 1 filtered chunk, got %d", got)
	}
	if got := summary.ChunksBuilt.Load(); got != 1 {
		t.Fatalf("expected 1 built chunk, got %d", got)
	}

	ctx := context.Background()
	tenant := model.DefaultTenant()
	nodes, err := graph.GetNodes(ctx, tenant, []string{rejected.Source.ID, rejected.Chunk.ID})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(nodes) != 0 {
		t.Fatalf("rejected chunk must leave no graph trace, got %+v", nodes)
	}
	entries, err := vectors.ListEntries(ctx, tenant)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, entry := range entries {
		if entry.SourceID == rejected.Source.ID {
			t.Fatalf("rejected chunk must leave no vector trace: %+v", entry)
		}
	}
}

func TestBuilderRunIsIdempotent(t *testing.T) {
	graph := memory.NewGraphStore()
	vectors := memory.NewVectorStore()
	chunk := extractedChunk(t, "Alpha relates to Beta.", model.Metadata{"kind": "report"})
	src := writeSink(t, chunk)

	b := newTestBuilder(t, graph, vectors, nil)
	ctx := context.Background()
	if _, err := b.Run(ctx, "run-1", src); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := b.Run(ctx, "run-1", src); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	tenant := model.DefaultTenant()
	entries, err := vectors.ListEntries(ctx, tenant)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("rebuild must not duplicate vectors, got %d entries", len(entries))
	}
	neighbors, err := graph.Neighbors(ctx, tenant, []string{chunk.Chunk.ID}, []model.EdgeType{model.EdgeContains})
	if err != nil {
		t.Fatalf("neighbors failed: %v", err)
	}
	// One edge up to the source, one down to the topic.
	if len(neighbors[chunk.Chunk.ID]) != 2 {
		t.Fatalf("rebuild must not duplicate edges, got %d", len(neighbors[chunk.Chunk.ID]))
	}
}
