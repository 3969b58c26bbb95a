package build

import (
	"context"
	"testing"

	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/store/memory"
)

func TestVectorIndexerNeverEmbedsEntities(t *testing.T) {
	vectors := memory.NewVectorStore()
	x := NewVectorIndexer(NewVectorIndexerParams{
		Client:  &embedOnlyClient{},
		Vectors: vectors,
		// Entity is deliberately listed; the indexer must ignore it.
		EmbeddableTypes: []string{"Chunk", "Topic", "Statement", "Entity"},
	})

	chunk := extractedChunk(t, "Alpha relates to Beta.", model.Metadata{"kind": "report"})
	tenant := model.DefaultTenant()
	count, err := x.Index(context.Background(), tenant, []model.ExtractedChunk{chunk})
	if err != nil {
		t.Fatalf("index failed: %v", err)
	}
	// Chunk, topic and statement each yield one entry.
	if count != 3 {
		t.Fatalf("expected 3 vector entries, got %d", count)
	}

	entries, err := vectors.ListEntries(context.Background(), tenant)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, entry := range entries {
		if entry.Type == model.NodeEntity {
			t.Fatalf("entity node must not be embedded: %+v", entry)
		}
	}
}
