// Package memory provides in-memory store implementations. They back unit
// tests and small single-process deployments; the pgx package is the
// production implementation.
package memory

import (
	"context"
	"sync"

	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/store"
)

type tenantGraph struct {
	nodes map[string]model.Node
	// edges indexed by both endpoints for bidirectional traversal.
	out map[string][]model.Edge
	in  map[string][]model.Edge
}

// GraphStore is an in-memory, mutex-guarded graph store. Tenants live in
// disjoint keyspaces derived from the tenant label convention.
type GraphStore struct {
	mu     sync.RWMutex
	graphs map[string]*tenantGraph
}

var _ store.GraphStore = (*GraphStore)(nil)

func NewGraphStore() *GraphStore {
	return &GraphStore{graphs: make(map[string]*tenantGraph)}
}

func (s *GraphStore) graph(tenant model.TenantID) *tenantGraph {
	key := tenant.FormatLabel("graph")
	g, ok := s.graphs[key]
	if !ok {
		g = &tenantGraph{
			nodes: make(map[string]model.Node),
			out:   make(map[string][]model.Edge),
			in:    make(map[string][]model.Edge),
		}
		s.graphs[key] = g
	}
	return g
}

func (s *GraphStore) UpsertNodes(ctx context.Context, tenant model.TenantID, nodes []model.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.graph(tenant)
	for _, node := range nodes {
		g.nodes[node.ID] = node
	}
	return nil
}

func (s *GraphStore) UpsertEdges(ctx context.Context, tenant model.TenantID, edges []model.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.graph(tenant)
	for _, edge := range edges {
		if hasEdge(g.out[edge.FromID], edge) {
			continue
		}
		g.out[edge.FromID] = append(g.out[edge.FromID], edge)
		g.in[edge.ToID] = append(g.in[edge.ToID], edge)
	}
	return nil
}

func hasEdge(edges []model.Edge, candidate model.Edge) bool {
	for _, edge := range edges {
		if edge == candidate {
			return true
		}
	}
	return false
}

func (s *GraphStore) GetNodes(ctx context.Context, tenant model.TenantID, ids []string) ([]model.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g := s.graph(tenant)
	var nodes []model.Node
	for _, id := range ids {
		if node, ok := g.nodes[id]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func (s *GraphStore) Neighbors(
	ctx context.Context,
	tenant model.TenantID,
	ids []string,
	edgeTypes []model.EdgeType,
) (map[string][]store.Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g := s.graph(tenant)

	allowed := make(map[model.EdgeType]bool, len(edgeTypes))
	for _, t := range edgeTypes {
		allowed[t] = true
	}

	result := make(map[string][]store.Neighbor)
	for _, id := range ids {
		for _, edge := range g.out[id] {
			if len(allowed) > 0 && !allowed[edge.Type] {
				continue
			}
			if node, ok := g.nodes[edge.ToID]; ok {
				result[id] = append(result[id], store.Neighbor{Node: node, Edge: edge})
			}
		}
		for _, edge := range g.in[id] {
			if len(allowed) > 0 && !allowed[edge.Type] {
				continue
			}
			if node, ok := g.nodes[edge.FromID]; ok {
				result[id] = append(result[id], store.Neighbor{Node: node, Edge: edge})
			}
		}
	}
	return result, nil
}

func (s *GraphStore) SourceMetadata(
	ctx context.Context,
	tenant model.TenantID,
	sourceIDs []string,
) (map[string]model.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g := s.graph(tenant)

	result := make(map[string]model.Metadata)
	for _, id := range sourceIDs {
		node, ok := g.nodes[id]
		if !ok || node.Type != model.NodeSource {
			continue
		}
		md, ok := node.Properties["metadata"].(model.Metadata)
		if !ok {
			if raw, isMap := node.Properties["metadata"].(map[string]any); isMap {
				md = model.Metadata(raw)
			} else {
				continue
			}
		}
		result[id] = md
	}
	return result, nil
}
