package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/store"
	"github.com/lexgraph/lexgraph/pkg/store/memory"
)

// lookupClient serves embeddings from a fixed table.
type lookupClient struct {
	vectors map[string][]float32
}

func (c *lookupClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (c *lookupClient) GenerateCompletionWithFormat(ctx context.Context, name string, description string, prompt string, out any, opts ...ai.GenerateOption) error {
	return fmt.Errorf("not implemented")
}

func (c *lookupClient) GenerateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if v, ok := c.vectors[input]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (c *lookupClient) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		v, err := c.GenerateEmbedding(ctx, input)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// fixture builds a two-source graph:
//
//	report source -> stmtReport -> factReport -> entityShared
//	memo source   -> stmtMemo   -> factMemo   -> entityShared
//
// Both statements connect to the same entity, so a traversal from one
// statement can reach the other in three hops.
type fixture struct {
	graph   *memory.GraphStore
	vectors *memory.VectorStore
	client  *lookupClient
	tenant  model.TenantID

	stmtReport, stmtMemo string
	factReport, factMemo string
	entityShared         string
	srcReport, srcMemo   string
	mdReport, mdMemo     model.Metadata
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		graph:        memory.NewGraphStore(),
		vectors:      memory.NewVectorStore(),
		tenant:       model.DefaultTenant(),
		stmtReport:   "stmt-report",
		stmtMemo:     "stmt-memo",
		factReport:   "fact-report",
		factMemo:     "fact-memo",
		entityShared: "entity-shared",
		srcReport:    "src-report",
		srcMemo:      "src-memo",
		mdReport:     model.Metadata{"kind": "report"},
		mdMemo:       model.Metadata{"kind": "memo"},
	}
	f.client = &lookupClient{vectors: map[string][]float32{
		"what does the report say": {1, 0, 0},
	}}

	nodes := []model.Node{
		{ID: f.srcReport, Type: model.NodeSource, Properties: map[string]any{"metadata": f.mdReport}},
		{ID: f.srcMemo, Type: model.NodeSource, Properties: map[string]any{"metadata": f.mdMemo}},
		{ID: f.stmtReport, Type: model.NodeStatement, Properties: map[string]any{"text": "The report covers revenue.", "source_id": f.srcReport}},
		{ID: f.stmtMemo, Type: model.NodeStatement, Properties: map[string]any{"text": "The memo covers staffing.", "source_id": f.srcMemo}},
		{ID: f.factReport, Type: model.NodeFact, Properties: map[string]any{"predicate": "covers", "source_id": f.srcReport}},
		{ID: f.factMemo, Type: model.NodeFact, Properties: map[string]any{"predicate": "covers", "source_id": f.srcMemo}},
		{ID: f.entityShared, Type: model.NodeEntity, Properties: map[string]any{"name": "Acme"}},
	}
	edges := []model.Edge{
		{FromID: f.srcReport, ToID: f.stmtReport, Type: model.EdgeContains},
		{FromID: f.srcMemo, ToID: f.stmtMemo, Type: model.EdgeContains},
		{FromID: f.stmtReport, ToID: f.factReport, Type: model.EdgeHasFact},
		{FromID: f.stmtMemo, ToID: f.factMemo, Type: model.EdgeHasFact},
		{FromID: f.factReport, ToID: f.entityShared, Type: model.EdgeSubject},
		{FromID: f.factMemo, ToID: f.entityShared, Type: model.EdgeSubject},
	}
	if err := f.graph.UpsertNodes(ctx, f.tenant, nodes); err != nil {
		t.Fatalf("seed nodes: %v", err)
	}
	if err := f.graph.UpsertEdges(ctx, f.tenant, edges); err != nil {
		t.Fatalf("seed edges: %v", err)
	}

	entries := []store.VectorEntry{
		{DocID: f.stmtReport, NodeID: f.stmtReport, Type: model.NodeStatement,
			Text: "The report covers revenue.", Embedding: []float32{1, 0, 0},
			SourceID: f.srcReport, Metadata: f.mdReport},
		{DocID: f.stmtMemo, NodeID: f.stmtMemo, Type: model.NodeStatement,
			Text: "The memo covers staffing.", Embedding: []float32{0.2, 1, 0},
			SourceID: f.srcMemo, Metadata: f.mdMemo},
	}
	if err := f.vectors.Upsert(ctx, f.tenant, entries); err != nil {
		t.Fatalf("seed vectors: %v", err)
	}
	return f
}

func (f *fixture) traversal(t *testing.T, maxHops int) *TraversalBasedRetriever {
	t.Helper()
	r, err := NewTraversalRetriever(NewTraversalRetrieverParams{
		Client:  f.client,
		Graph:   f.graph,
		Vectors: f.vectors,
		Tenant:  f.tenant,
		MaxHops: maxHops,
	})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}
	return r
}

func resultIDs(results []Result) map[string]bool {
	ids := make(map[string]bool, len(results))
	for _, r := range results {
		ids[r.Node.ID] = true
	}
	return ids
}

func TestTraversalRetrievesAnchorsAndNeighbors(t *testing.T) {
	f := newFixture(t)
	r := f.traversal(t, 2)

	results, err := r.Retrieve(context.Background(), Params{Query: "what does the report say", TopK: 10})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	ids := resultIDs(results)
	if !ids[f.stmtReport] || !ids[f.factReport] || !ids[f.entityShared] {
		t.Fatalf("expected anchor, fact and entity in results, got %v", ids)
	}
	if results[0].Node.ID != f.stmtReport {
		t.Fatalf("anchor must rank first, got %s", results[0].Node.ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results must be score ordered")
		}
	}
}

func TestTraversalScoresDecayPerHop(t *testing.T) {
	f := newFixture(t)
	r := f.traversal(t, 2)

	results, err := r.Retrieve(context.Background(), Params{Query: "what does the report say", TopK: 10})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	scores := make(map[string]float64)
	for _, result := range results {
		scores[result.Node.ID] = result.Score
	}
	if scores[f.factReport] >= scores[f.stmtReport] {
		t.Fatalf("one-hop score must decay below anchor: %v", scores)
	}
}

func TestTraversalDualFilterDropsTraversedNodes(t *testing.T) {
	f := newFixture(t)
	// Four hops reach the memo statement from the report anchor through
	// the shared entity.
	r := f.traversal(t, 4)

	cfg, err := filter.NewConfig(filter.Eq("kind", "report"))
	if err != nil {
		t.Fatalf("filter: %v", err)
	}

	unfiltered, err := r.Retrieve(context.Background(), Params{Query: "what does the report say", TopK: 20})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if ids := resultIDs(unfiltered); !ids[f.stmtMemo] {
		t.Fatalf("fixture must reach the memo statement without a filter, got %v", ids)
	}

	filtered, err := r.Retrieve(context.Background(), Params{
		Query: "what does the report say", TopK: 20, Filter: cfg,
	})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	ids := resultIDs(filtered)
	if ids[f.stmtMemo] || ids[f.factMemo] {
		t.Fatalf("filter must also drop traversed nodes from excluded sources, got %v", ids)
	}
	if !ids[f.stmtReport] {
		t.Fatalf("admitted source must survive the filter, got %v", ids)
	}
	if !ids[f.entityShared] {
		t.Fatalf("entities without provenance pass the filter, got %v", ids)
	}
}

func TestTraversalDeterministicOrdering(t *testing.T) {
	f := newFixture(t)
	r := f.traversal(t, 2)

	var first []string
	for run := 0; run < 5; run++ {
		results, err := r.Retrieve(context.Background(), Params{Query: "what does the report say", TopK: 10})
		if err != nil {
			t.Fatalf("retrieve failed: %v", err)
		}
		var order []string
		for _, result := range results {
			order = append(order, result.Node.ID)
		}
		if run == 0 {
			first = order
			continue
		}
		if len(order) != len(first) {
			t.Fatalf("ordering changed between runs: %v vs %v", first, order)
		}
		for i := range order {
			if order[i] != first[i] {
				t.Fatalf("ordering changed between runs: %v vs %v", first, order)
			}
		}
	}
}

func TestTraversalTenantIsolation(t *testing.T) {
	f := newFixture(t)
	other, err := model.NewTenantID("zzz99")
	if err != nil {
		t.Fatalf("tenant: %v", err)
	}
	r, err := NewTraversalRetriever(NewTraversalRetrieverParams{
		Client:  f.client,
		Graph:   f.graph,
		Vectors: f.vectors,
		Tenant:  other,
	})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	results, err := r.Retrieve(context.Background(), Params{Query: "what does the report say"})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("other tenant must see nothing, got %d results", len(results))
	}
}

func TestSemanticRetrieverReranksByOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Cosine alone slightly prefers the staffing statement for this query
	// vector; the lexical overlap with "revenue" must flip the order.
	f.client.vectors["tell me about revenue"] = []float32{0.4, 0.5, 0}

	r, err := NewSemanticRetriever(NewSemanticRetrieverParams{
		Client:       f.client,
		Graph:        f.graph,
		Vectors:      f.vectors,
		Tenant:       f.tenant,
		RerankWeight: 0.5,
	})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	results, err := r.Retrieve(ctx, Params{Query: "tell me about revenue", TopK: 2})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Node.ID != f.stmtReport {
		t.Fatalf("lexical re-rank must prefer the revenue statement, got %s", results[0].Node.ID)
	}
}

func TestSemanticRetrieverExpansion(t *testing.T) {
	f := newFixture(t)

	r, err := NewSemanticRetriever(NewSemanticRetrieverParams{
		Client:  f.client,
		Graph:   f.graph,
		Vectors: f.vectors,
		Tenant:  f.tenant,
		Expand:  true,
	})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	results, err := r.Retrieve(context.Background(), Params{Query: "what does the report say", TopK: 1})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	ids := resultIDs(results)
	if !ids[f.stmtReport] || !ids[f.factReport] {
		t.Fatalf("expansion must include the statement's fact, got %v", ids)
	}
	if ids[f.stmtMemo] {
		t.Fatalf("expansion must not leak unrelated statements, got %v", ids)
	}
}

func TestSemanticRetrieverFilterPushdown(t *testing.T) {
	f := newFixture(t)
	cfg, err := filter.NewConfig(filter.Eq("kind", "memo"))
	if err != nil {
		t.Fatalf("filter: %v", err)
	}

	r, err := NewSemanticRetriever(NewSemanticRetrieverParams{
		Client:  f.client,
		Vectors: f.vectors,
		Tenant:  f.tenant,
	})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	results, err := r.Retrieve(context.Background(), Params{
		Query: "what does the report say", TopK: 10, Filter: cfg,
	})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != 1 || results[0].Node.ID != f.stmtMemo {
		t.Fatalf("filter must restrict candidates at the index, got %+v", results)
	}
}
