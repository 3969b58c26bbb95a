package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/store"
)

// TraversalBasedRetriever embeds the query, finds anchor statements by
// similarity and expands them through a bounded beam search over the graph.
type TraversalBasedRetriever struct {
	client  ai.Client
	graph   store.GraphStore
	vectors store.VectorStore
	tenant  model.TenantID

	topK              int
	beamWidth         int
	maxHops           int
	decay             float64
	sharedEntityBonus float64
}

type NewTraversalRetrieverParams struct {
	Client  ai.Client
	Graph   store.GraphStore
	Vectors store.VectorStore
	Tenant  model.TenantID

	// TopK is the default result bound. Zero means 10.
	TopK int
	// BeamWidth bounds the candidates expanded per hop. Zero means 8.
	BeamWidth int
	// MaxHops bounds the traversal depth. Zero means 2.
	MaxHops int
	// Decay discounts a candidate's score per hop. Zero means 0.7.
	Decay float64
	// SharedEntityBonus is added per additional anchor an entity is
	// reached from. Zero means 0.1.
	SharedEntityBonus float64
}

func NewTraversalRetriever(params NewTraversalRetrieverParams) (*TraversalBasedRetriever, error) {
	if params.Client == nil || params.Graph == nil || params.Vectors == nil {
		return nil, fmt.Errorf("traversal retriever requires a client, a graph store and a vector store")
	}

	r := &TraversalBasedRetriever{
		client:            params.Client,
		graph:             params.Graph,
		vectors:           params.Vectors,
		tenant:            params.Tenant,
		topK:              params.TopK,
		beamWidth:         params.BeamWidth,
		maxHops:           params.MaxHops,
		decay:             params.Decay,
		sharedEntityBonus: params.SharedEntityBonus,
	}
	if r.topK <= 0 {
		r.topK = 10
	}
	if r.beamWidth <= 0 {
		r.beamWidth = 8
	}
	if r.maxHops <= 0 {
		r.maxHops = 2
	}
	if r.decay <= 0 || r.decay > 1 {
		r.decay = 0.7
	}
	if r.sharedEntityBonus <= 0 {
		r.sharedEntityBonus = 0.1
	}
	return r, nil
}

var _ Retriever = (*TraversalBasedRetriever)(nil)

// candidate is one visited node during beam search. order records insertion
// sequence for deterministic tie-breaking.
type candidate struct {
	node    model.Node
	score   float64
	order   int
	anchors map[string]bool
}

func (r *TraversalBasedRetriever) Retrieve(ctx context.Context, params Params) ([]Result, error) {
	topK := params.TopK
	if topK <= 0 {
		topK = r.topK
	}

	embedding, err := r.client.GenerateEmbedding(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	anchors, err := r.vectors.QueryTopK(ctx, r.tenant, embedding, topK*2,
		[]model.NodeType{model.NodeStatement}, params.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query anchors: %w", err)
	}
	if len(anchors) == 0 {
		return nil, nil
	}

	visited, err := r.expand(ctx, anchors)
	if err != nil {
		return nil, err
	}

	results, err := r.collect(ctx, visited, topK, params.Filter)
	if err != nil {
		return nil, err
	}

	logger.Debug("[Retrieval][Traversal] query served",
		"anchors", len(anchors), "visited", len(visited), "results", len(results))
	return results, nil
}

// expand runs the beam search. Every hop expands the highest scored frontier
// candidates; revisiting a node keeps its best score and accumulates the
// anchors it was reached from.
func (r *TraversalBasedRetriever) expand(ctx context.Context, anchors []store.ScoredEntry) (map[string]*candidate, error) {
	visited := make(map[string]*candidate)
	order := 0

	anchorIDs := make([]string, 0, len(anchors))
	for _, anchor := range anchors {
		anchorIDs = append(anchorIDs, anchor.NodeID)
	}
	anchorNodes, err := r.graph.GetNodes(ctx, r.tenant, anchorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve anchors: %w", err)
	}
	nodeByID := make(map[string]model.Node, len(anchorNodes))
	for _, node := range anchorNodes {
		nodeByID[node.ID] = node
	}

	var frontier []*candidate
	for _, anchor := range anchors {
		node, ok := nodeByID[anchor.NodeID]
		if !ok {
			// The vector index can briefly lead the graph during a build.
			continue
		}
		if _, seen := visited[node.ID]; seen {
			continue
		}
		c := &candidate{
			node:    node,
			score:   anchor.Score,
			order:   order,
			anchors: map[string]bool{anchor.NodeID: true},
		}
		order++
		visited[node.ID] = c
		frontier = append(frontier, c)
	}

	for hop := 1; hop <= r.maxHops; hop++ {
		if len(frontier) == 0 {
			break
		}
		beam := topCandidates(frontier, r.beamWidth)

		ids := make([]string, 0, len(beam))
		parents := make(map[string]*candidate, len(beam))
		for _, c := range beam {
			ids = append(ids, c.node.ID)
			parents[c.node.ID] = c
		}

		neighbors, err := r.graph.Neighbors(ctx, r.tenant, ids, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to expand hop %d: %w", hop, err)
		}

		frontier = frontier[:0]
		for _, id := range ids {
			parent := parents[id]
			for _, neighbor := range neighbors[id] {
				if neighbor.Node.Type == model.NodeSource {
					continue
				}
				score := parent.score * r.decay

				if existing, seen := visited[neighbor.Node.ID]; seen {
					if score > existing.score {
						existing.score = score
					}
					r.mergeAnchors(existing, parent)
					continue
				}

				c := &candidate{
					node:    neighbor.Node,
					score:   score,
					order:   order,
					anchors: copyAnchors(parent.anchors),
				}
				order++
				visited[neighbor.Node.ID] = c
				frontier = append(frontier, c)
			}
		}
	}

	// Entities corroborated by several anchors are worth more than their
	// decayed path score alone.
	for _, c := range visited {
		if c.node.Type == model.NodeEntity && len(c.anchors) > 1 {
			c.score += r.sharedEntityBonus * float64(len(c.anchors)-1)
		}
	}

	return visited, nil
}

func (r *TraversalBasedRetriever) mergeAnchors(dst *candidate, src *candidate) {
	for anchor := range src.anchors {
		dst.anchors[anchor] = true
	}
}

func copyAnchors(anchors map[string]bool) map[string]bool {
	out := make(map[string]bool, len(anchors))
	for anchor := range anchors {
		out[anchor] = true
	}
	return out
}

// topCandidates orders by score descending with deterministic tie-breaks:
// earlier insertion first, then node id.
func topCandidates(candidates []*candidate, limit int) []*candidate {
	sorted := make([]*candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].score != sorted[j].score {
			return sorted[i].score > sorted[j].score
		}
		if sorted[i].order != sorted[j].order {
			return sorted[i].order < sorted[j].order
		}
		return sorted[i].node.ID < sorted[j].node.ID
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// collect ranks the visited nodes and re-applies the metadata filter against
// each result's source. Nodes without source provenance (entities) pass; they
// are only reachable through admitted nodes.
func (r *TraversalBasedRetriever) collect(
	ctx context.Context,
	visited map[string]*candidate,
	topK int,
	f *filter.Config,
) ([]Result, error) {
	candidates := make([]*candidate, 0, len(visited))
	for _, c := range visited {
		candidates = append(candidates, c)
	}
	ranked := topCandidates(candidates, 0)

	var sourceIDs []string
	for _, c := range ranked {
		if id, ok := c.node.Properties["source_id"].(string); ok && id != "" {
			sourceIDs = append(sourceIDs, id)
		}
	}

	var metadata map[string]model.Metadata
	if f != nil && len(sourceIDs) > 0 {
		var err error
		metadata, err = r.graph.SourceMetadata(ctx, r.tenant, store.DedupeStrings(sourceIDs))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve source metadata: %w", err)
		}
	}

	var results []Result
	for _, c := range ranked {
		sourceID, _ := c.node.Properties["source_id"].(string)
		if f != nil && sourceID != "" {
			md, ok := metadata[sourceID]
			if !ok || !f.MatchesSource(md) {
				continue
			}
		}

		anchors := make([]string, 0, len(c.anchors))
		for anchor := range c.anchors {
			anchors = append(anchors, anchor)
		}
		sort.Strings(anchors)

		results = append(results, Result{
			Node:     c.node,
			Score:    c.score,
			SourceID: sourceID,
			Anchors:  anchors,
		})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}
