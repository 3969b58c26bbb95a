// Package repair removes duplicate vector entries. Doc ids are derived from
// node ids today, but earlier writes generated them randomly, so a node can
// own several rows; retrieval then over-counts that node. The repairer keeps
// one row per node and deletes the rest.
package repair

import (
	"context"
	"fmt"
	"sort"

	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/store"
)

// Counts summarizes one repair pass.
type Counts struct {
	TotalNodeIDs       int `json:"total_node_ids"`
	TotalDocIDs        int `json:"total_doc_ids"`
	TotalDeletedDocIDs int `json:"total_deleted_doc_ids"`
	TotalUnindexed     int `json:"total_unindexed"`
}

// Repairer deduplicates the vector index of a tenant.
type Repairer struct {
	graph   store.GraphStore
	vectors store.VectorStore
	// dryRun reports what would be deleted without deleting.
	dryRun bool
}

type NewRepairerParams struct {
	Graph   store.GraphStore
	Vectors store.VectorStore
	DryRun  bool
}

func NewRepairer(params NewRepairerParams) (*Repairer, error) {
	if params.Vectors == nil {
		return nil, fmt.Errorf("repairer requires a vector store")
	}
	return &Repairer{
		graph:   params.Graph,
		vectors: params.Vectors,
		dryRun:  params.DryRun,
	}, nil
}

// Run scans every vector entry of the tenant, keeps one row per node and
// deletes the duplicates. The kept row is the one whose doc id equals the
// node id when present, otherwise the lexically smallest doc id, so repeated
// runs converge on the same survivors.
func (r *Repairer) Run(ctx context.Context, tenant model.TenantID) (Counts, error) {
	var counts Counts

	entries, err := r.vectors.ListEntries(ctx, tenant)
	if err != nil {
		return counts, fmt.Errorf("failed to list vector entries: %w", err)
	}
	counts.TotalDocIDs = len(entries)

	byNode := make(map[string][]string)
	for _, entry := range entries {
		byNode[entry.NodeID] = append(byNode[entry.NodeID], entry.DocID)
	}
	counts.TotalNodeIDs = len(byNode)

	var toDelete []string
	for nodeID, docIDs := range byNode {
		if len(docIDs) < 2 {
			continue
		}
		sort.Strings(docIDs)
		survivor := docIDs[0]
		for _, docID := range docIDs {
			if docID == nodeID {
				survivor = docID
				break
			}
		}
		for _, docID := range docIDs {
			if docID != survivor {
				toDelete = append(toDelete, docID)
			}
		}
	}
	counts.TotalDeletedDocIDs = len(toDelete)

	if r.graph != nil {
		unindexed, err := r.countOrphans(ctx, tenant, byNode)
		if err != nil {
			return counts, err
		}
		counts.TotalUnindexed = unindexed
	}

	if r.dryRun {
		logger.Info("[Repair] dry run", "tenant", tenant.String(),
			"node_ids", counts.TotalNodeIDs, "doc_ids", counts.TotalDocIDs,
			"would_delete", counts.TotalDeletedDocIDs, "unindexed", counts.TotalUnindexed)
		return counts, nil
	}

	if len(toDelete) > 0 {
		if err := r.vectors.Delete(ctx, tenant, toDelete); err != nil {
			return counts, fmt.Errorf("failed to delete duplicate entries: %w", err)
		}
	}

	logger.Info("[Repair] completed", "tenant", tenant.String(),
		"node_ids", counts.TotalNodeIDs, "doc_ids", counts.TotalDocIDs,
		"deleted", counts.TotalDeletedDocIDs, "unindexed", counts.TotalUnindexed)
	return counts, nil
}

// countOrphans counts vector entries whose node no longer exists in the
// graph. They are reported, not deleted; a build may legitimately be behind.
func (r *Repairer) countOrphans(ctx context.Context, tenant model.TenantID, byNode map[string][]string) (int, error) {
	ids := make([]string, 0, len(byNode))
	for nodeID := range byNode {
		ids = append(ids, nodeID)
	}

	found := make(map[string]bool, len(ids))
	err := store.ChunkRange(len(ids), 1000, func(start, end int) error {
		nodes, err := r.graph.GetNodes(ctx, tenant, ids[start:end])
		if err != nil {
			return err
		}
		for _, node := range nodes {
			found[node.ID] = true
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve graph nodes: %w", err)
	}

	orphans := 0
	for _, id := range ids {
		if !found[id] {
			orphans++
		}
	}
	return orphans, nil
}
