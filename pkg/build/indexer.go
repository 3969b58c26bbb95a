package build

import (
	"context"
	"fmt"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/store"
)

// VectorIndexer embeds the embeddable nodes of extracted chunks and writes
// them to the vector store. Doc ids equal node ids, so re-indexing the same
// content overwrites instead of accumulating rows.
type VectorIndexer struct {
	client     ai.Client
	vectors    store.VectorStore
	embeddable map[model.NodeType]bool
}

type NewVectorIndexerParams struct {
	Client  ai.Client
	Vectors store.VectorStore
	// EmbeddableTypes selects which node types get embedded.
	EmbeddableTypes []string
}

func NewVectorIndexer(params NewVectorIndexerParams) *VectorIndexer {
	embeddable := make(map[model.NodeType]bool, len(params.EmbeddableTypes))
	for _, t := range params.EmbeddableTypes {
		embeddable[model.NodeType(t)] = true
	}
	return &VectorIndexer{
		client:     params.Client,
		vectors:    params.Vectors,
		embeddable: embeddable,
	}
}

// Index embeds and upserts the embeddable entries of the given chunks.
func (x *VectorIndexer) Index(ctx context.Context, tenant model.TenantID, chunks []model.ExtractedChunk) (int, error) {
	var entries []store.VectorEntry
	for _, chunk := range chunks {
		entries = append(entries, x.collect(chunk)...)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Text
	}

	embeddings, err := x.client.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %d entries: %w", len(entries), err)
	}
	if len(embeddings) != len(entries) {
		return 0, fmt.Errorf("embedding count mismatch: %d entries, %d embeddings", len(entries), len(embeddings))
	}
	for i := range entries {
		entries[i].Embedding = embeddings[i]
	}

	if err := x.vectors.Upsert(ctx, tenant, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// collect gathers the embeddable entries of one chunk. Entry payloads carry
// the source metadata so similarity queries can filter without a join.
func (x *VectorIndexer) collect(chunk model.ExtractedChunk) []store.VectorEntry {
	var entries []store.VectorEntry

	add := func(nodeID string, nodeType model.NodeType, text string) {
		if text == "" || !x.embeddable[nodeType] {
			return
		}
		entries = append(entries, store.VectorEntry{
			DocID:    nodeID,
			NodeID:   nodeID,
			Type:     nodeType,
			Text:     text,
			SourceID: chunk.Source.ID,
			Metadata: chunk.Source.Metadata,
		})
	}

	// Entities are never embedded; they are reached through graph edges only.
	add(chunk.Chunk.ID, model.NodeChunk, chunk.Chunk.Text)
	for _, topic := range chunk.Topics {
		add(topic.Topic.ID, model.NodeTopic, topic.Topic.Summary)
		for _, statement := range topic.Statements {
			add(statement.Statement.ID, model.NodeStatement, statement.Statement.Text)
		}
	}

	return entries
}
