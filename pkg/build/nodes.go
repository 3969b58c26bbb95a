package build

import (
	"github.com/lexgraph/lexgraph/pkg/model"
)

// NodesAndEdges flattens one extracted chunk into store-facing nodes and
// edges. Every non-source node carries its source id so provenance and
// filtering survive the flattening.
func NodesAndEdges(chunk model.ExtractedChunk) ([]model.Node, []model.Edge) {
	var nodes []model.Node
	var edges []model.Edge

	sourceID := chunk.Source.ID
	nodes = append(nodes, model.Node{
		ID:   sourceID,
		Type: model.NodeSource,
		Properties: map[string]any{
			"metadata":     chunk.Source.Metadata,
			"content_hash": chunk.Source.ContentHash,
		},
	})

	nodes = append(nodes, model.Node{
		ID:   chunk.Chunk.ID,
		Type: model.NodeChunk,
		Properties: map[string]any{
			"text":      chunk.Chunk.Text,
			"position":  chunk.Chunk.Position,
			"source_id": sourceID,
		},
	})
	edges = append(edges, model.Edge{FromID: sourceID, ToID: chunk.Chunk.ID, Type: model.EdgeContains})

	for _, topic := range chunk.Topics {
		nodes = append(nodes, model.Node{
			ID:   topic.Topic.ID,
			Type: model.NodeTopic,
			Properties: map[string]any{
				"label":     topic.Topic.Label,
				"summary":   topic.Topic.Summary,
				"source_id": sourceID,
			},
		})
		edges = append(edges, model.Edge{FromID: chunk.Chunk.ID, ToID: topic.Topic.ID, Type: model.EdgeContains})

		for _, statement := range topic.Statements {
			nodes = append(nodes, model.Node{
				ID:   statement.Statement.ID,
				Type: model.NodeStatement,
				Properties: map[string]any{
					"text":      statement.Statement.Text,
					"source_id": sourceID,
				},
			})
			edges = append(edges, model.Edge{FromID: topic.Topic.ID, ToID: statement.Statement.ID, Type: model.EdgeContains})

			for _, fact := range statement.Facts {
				nodes = append(nodes, model.Node{
					ID:   fact.ID,
					Type: model.NodeFact,
					Properties: map[string]any{
						"subject":   fact.Subject.Name,
						"predicate": fact.Predicate,
						"object":    fact.Object.Name,
						"source_id": sourceID,
					},
				})
				edges = append(edges,
					model.Edge{FromID: statement.Statement.ID, ToID: fact.ID, Type: model.EdgeHasFact},
					model.Edge{FromID: fact.ID, ToID: fact.Subject.EntityID, Type: model.EdgeSubject},
					model.Edge{FromID: fact.ID, ToID: fact.Object.EntityID, Type: model.EdgeObject},
					model.Edge{FromID: fact.Subject.EntityID, ToID: fact.Object.EntityID, Type: model.EdgeRelatesTo},
				)
			}
		}
	}

	for _, entity := range chunk.Entities {
		nodes = append(nodes, model.Node{
			ID:   entity.ID,
			Type: model.NodeEntity,
			Properties: map[string]any{
				"name":           entity.Name,
				"classification": entity.Classification,
			},
		})
	}

	return nodes, edges
}
