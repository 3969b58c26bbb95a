package store

import (
	"context"
	"errors"

	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/model"
)

// ErrNotFound is returned when a requested node does not exist for the
// tenant.
var ErrNotFound = errors.New("not found")

// Neighbor is one edge traversal step: the edge that was followed and the
// node on its far side.
type Neighbor struct {
	Node model.Node
	Edge model.Edge
}

// GraphStore persists the lexical graph. All operations are tenant scoped;
// implementations must guarantee that no call can observe another tenant's
// nodes or edges. Writes are upserts keyed by node id, so replaying an
// extraction is safe.
type GraphStore interface {
	UpsertNodes(ctx context.Context, tenant model.TenantID, nodes []model.Node) error
	UpsertEdges(ctx context.Context, tenant model.TenantID, edges []model.Edge) error

	GetNodes(ctx context.Context, tenant model.TenantID, ids []string) ([]model.Node, error)

	// Neighbors returns the nodes reachable from the given ids over one
	// edge, in either direction. edgeTypes narrows the traversal; empty
	// follows every edge type.
	Neighbors(ctx context.Context, tenant model.TenantID, ids []string, edgeTypes []model.EdgeType) (map[string][]Neighbor, error)

	// SourceMetadata resolves the metadata of the given source nodes,
	// keyed by source id. Unknown ids are omitted.
	SourceMetadata(ctx context.Context, tenant model.TenantID, sourceIDs []string) (map[string]model.Metadata, error)
}

// VectorEntry is one indexed embedding. DocID identifies the stored row and
// NodeID the graph node it belongs to; the pair is split because historic
// writes generated row ids randomly and a node can therefore own more than
// one row until repaired.
type VectorEntry struct {
	DocID     string         `json:"doc_id"`
	NodeID    string         `json:"node_id"`
	Type      model.NodeType `json:"type"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	SourceID  string         `json:"source_id"`
	Metadata  model.Metadata `json:"metadata"`
}

// ScoredEntry is a vector entry with its query similarity.
type ScoredEntry struct {
	VectorEntry
	Score float64
}

// VectorStore persists and searches embeddings. Like the graph store it is
// strictly tenant scoped.
type VectorStore interface {
	Upsert(ctx context.Context, tenant model.TenantID, entries []VectorEntry) error

	// QueryTopK returns the k entries most similar to the embedding,
	// restricted to the given node types and, when f is non-nil, to entries
	// whose source metadata matches the filter.
	QueryTopK(ctx context.Context, tenant model.TenantID, embedding []float32, k int, types []model.NodeType, f *filter.Config) ([]ScoredEntry, error)

	Delete(ctx context.Context, tenant model.TenantID, docIDs []string) error

	// ListEntries streams every entry of the tenant without embeddings.
	// It exists for maintenance tooling.
	ListEntries(ctx context.Context, tenant model.TenantID) ([]VectorEntry, error)
}
