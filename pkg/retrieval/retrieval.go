// Package retrieval answers queries against the lexical graph. Two
// strategies are provided: traversal-based retrieval walks the graph
// outward from semantically similar anchors, semantic-guided retrieval
// stays on statements and re-ranks them lexically.
package retrieval

import (
	"context"

	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/model"
)

// Result is one retrieved node with its relevance score and provenance.
type Result struct {
	Node     model.Node
	Score    float64
	SourceID string
	// Anchors lists the anchor node ids this result was reached from.
	Anchors []string
}

// Params configures one retrieval call.
type Params struct {
	Query string
	// TopK bounds the number of results. Zero uses the retriever default.
	TopK int
	// Filter restricts results by source metadata. It is applied twice:
	// pushed into the anchor similarity query and re-applied to every
	// result after traversal, so expansion can never smuggle in a node
	// from an excluded source.
	Filter *filter.Config
}

// Retriever is the common surface of both retrieval strategies.
type Retriever interface {
	Retrieve(ctx context.Context, params Params) ([]Result, error)
}
