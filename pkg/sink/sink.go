package sink

import (
	"context"

	"github.com/lexgraph/lexgraph/pkg/model"
)

// ChunkSink receives extracted chunks between the extract and build stages.
// A sink groups chunks under a collection id so a build run can iterate
// exactly the chunks one extract run emitted.
type ChunkSink interface {
	// Write persists one batch of extracted chunks under the collection.
	Write(ctx context.Context, collectionID string, chunks []model.ExtractedChunk) error

	// Iterate streams back all chunk batches written under the collection,
	// in write order. The returned channel is closed when iteration ends;
	// the error channel delivers at most one error.
	Iterate(ctx context.Context, collectionID string) (<-chan []model.ExtractedChunk, <-chan error)
}
