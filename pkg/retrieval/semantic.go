package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/store"
)

// SemanticGuidedRetriever retrieves statements by embedding similarity,
// optionally pulls in their facts and entities over one hop, and re-ranks by
// lexical overlap with the query. It trades the traversal retriever's graph
// reach for lower latency and tighter grounding.
type SemanticGuidedRetriever struct {
	client  ai.Client
	graph   store.GraphStore
	vectors store.VectorStore
	tenant  model.TenantID

	topK int
	// expand pulls the facts and entities of each retrieved statement.
	expand bool
	// rerankWeight balances similarity against lexical overlap.
	rerankWeight float64
}

type NewSemanticRetrieverParams struct {
	Client  ai.Client
	Graph   store.GraphStore
	Vectors store.VectorStore
	Tenant  model.TenantID

	// TopK is the default result bound. Zero means 10.
	TopK int
	// Expand enables the one-hop fact/entity expansion.
	Expand bool
	// RerankWeight is the lexical overlap weight in [0, 1]. Zero means 0.3.
	RerankWeight float64
}

func NewSemanticRetriever(params NewSemanticRetrieverParams) (*SemanticGuidedRetriever, error) {
	if params.Client == nil || params.Vectors == nil {
		return nil, fmt.Errorf("semantic retriever requires a client and a vector store")
	}
	if params.Expand && params.Graph == nil {
		return nil, fmt.Errorf("semantic retriever with expansion requires a graph store")
	}

	r := &SemanticGuidedRetriever{
		client:       params.Client,
		graph:        params.Graph,
		vectors:      params.Vectors,
		tenant:       params.Tenant,
		topK:         params.TopK,
		expand:       params.Expand,
		rerankWeight: params.RerankWeight,
	}
	if r.topK <= 0 {
		r.topK = 10
	}
	if r.rerankWeight <= 0 || r.rerankWeight > 1 {
		r.rerankWeight = 0.3
	}
	return r, nil
}

var _ Retriever = (*SemanticGuidedRetriever)(nil)

func (r *SemanticGuidedRetriever) Retrieve(ctx context.Context, params Params) ([]Result, error) {
	topK := params.TopK
	if topK <= 0 {
		topK = r.topK
	}

	embedding, err := r.client.GenerateEmbedding(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Fetch beyond topK so the re-rank has room to reorder.
	entries, err := r.vectors.QueryTopK(ctx, r.tenant, embedding, topK*3,
		[]model.NodeType{model.NodeStatement}, params.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	terms := queryTerms(params.Query)

	type ranked struct {
		entry store.ScoredEntry
		score float64
		order int
	}
	rankedEntries := make([]ranked, 0, len(entries))
	for i, entry := range entries {
		overlap := lexicalOverlap(terms, entry.Text)
		score := (1-r.rerankWeight)*entry.Score + r.rerankWeight*overlap
		rankedEntries = append(rankedEntries, ranked{entry: entry, score: score, order: i})
	}
	sort.Slice(rankedEntries, func(i, j int) bool {
		if rankedEntries[i].score != rankedEntries[j].score {
			return rankedEntries[i].score > rankedEntries[j].score
		}
		if rankedEntries[i].order != rankedEntries[j].order {
			return rankedEntries[i].order < rankedEntries[j].order
		}
		return rankedEntries[i].entry.NodeID < rankedEntries[j].entry.NodeID
	})
	if len(rankedEntries) > topK {
		rankedEntries = rankedEntries[:topK]
	}

	var results []Result
	seen := make(map[string]bool)
	for _, rk := range rankedEntries {
		if seen[rk.entry.NodeID] {
			continue
		}
		seen[rk.entry.NodeID] = true
		results = append(results, Result{
			Node: model.Node{
				ID:   rk.entry.NodeID,
				Type: rk.entry.Type,
				Properties: map[string]any{
					"text":      rk.entry.Text,
					"source_id": rk.entry.SourceID,
				},
			},
			Score:    rk.score,
			SourceID: rk.entry.SourceID,
			Anchors:  []string{rk.entry.NodeID},
		})
	}

	if r.expand {
		expanded, err := r.expandStatements(ctx, results, seen)
		if err != nil {
			return nil, err
		}
		results = append(results, expanded...)
	}

	logger.Debug("[Retrieval][Semantic] query served",
		"statements", len(rankedEntries), "results", len(results))
	return results, nil
}

// expandStatements pulls facts and entities one hop out from the retrieved
// statements. Expanded nodes inherit a discounted score from their statement.
func (r *SemanticGuidedRetriever) expandStatements(
	ctx context.Context,
	statements []Result,
	seen map[string]bool,
) ([]Result, error) {
	ids := make([]string, 0, len(statements))
	parent := make(map[string]Result, len(statements))
	for _, result := range statements {
		ids = append(ids, result.Node.ID)
		parent[result.Node.ID] = result
	}

	neighbors, err := r.graph.Neighbors(ctx, r.tenant, ids,
		[]model.EdgeType{model.EdgeHasFact, model.EdgeSubject, model.EdgeObject})
	if err != nil {
		return nil, fmt.Errorf("failed to expand statements: %w", err)
	}

	var expanded []Result
	for _, id := range ids {
		stmt := parent[id]
		for _, neighbor := range neighbors[id] {
			if seen[neighbor.Node.ID] {
				continue
			}
			seen[neighbor.Node.ID] = true
			sourceID, _ := neighbor.Node.Properties["source_id"].(string)
			expanded = append(expanded, Result{
				Node:     neighbor.Node,
				Score:    stmt.Score * 0.5,
				SourceID: sourceID,
				Anchors:  stmt.Anchors,
			})
		}
	}
	return expanded, nil
}

func queryTerms(query string) map[string]bool {
	terms := make(map[string]bool)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		term = strings.Trim(term, ".,;:!?\"'()")
		if len(term) > 2 {
			terms[term] = true
		}
	}
	return terms
}

// lexicalOverlap is the fraction of query terms present in the text.
func lexicalOverlap(terms map[string]bool, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
