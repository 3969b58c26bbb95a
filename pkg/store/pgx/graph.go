package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/store"
)

var _ store.GraphStore = (*Store)(nil)

// UpsertNodes bulk upserts graph nodes in bounded transactions. Node ids are
// content derived, so conflicting rows are the same logical node and the
// latest properties win.
func (s *Store) UpsertNodes(ctx context.Context, tenant model.TenantID, nodes []model.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	logger.Debug("[Store][UpsertNodes] Bulk upserting nodes", "nodes", len(nodes))

	return store.ChunkRange(len(nodes), s.bulkChunkSize, func(start, end int) error {
		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		count := end - start
		ids := make([]string, 0, count)
		types := make([]string, 0, count)
		properties := make([][]byte, 0, count)
		for _, node := range nodes[start:end] {
			props, err := json.Marshal(node.Properties)
			if err != nil {
				return fmt.Errorf("failed to encode properties of node %s: %w", node.ID, err)
			}
			ids = append(ids, node.ID)
			types = append(types, string(node.Type))
			properties = append(properties, props)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO graph_nodes (tenant, id, type, properties)
			SELECT $1, unnest($2::text[]), unnest($3::text[]), unnest($4::jsonb[])
			ON CONFLICT (tenant, id) DO UPDATE
			SET type = EXCLUDED.type,
			    properties = EXCLUDED.properties,
			    updated_at = now()
		`, tenant.String(), ids, types, properties)
		if err != nil {
			return fmt.Errorf("failed to upsert nodes: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// UpsertEdges bulk upserts edges. The full (from, to, type) triple is the
// key, so replays are no-ops.
func (s *Store) UpsertEdges(ctx context.Context, tenant model.TenantID, edges []model.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	logger.Debug("[Store][UpsertEdges] Bulk upserting edges", "edges", len(edges))

	return store.ChunkRange(len(edges), s.bulkChunkSize, func(start, end int) error {
		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		count := end - start
		fromIDs := make([]string, 0, count)
		toIDs := make([]string, 0, count)
		types := make([]string, 0, count)
		for _, edge := range edges[start:end] {
			fromIDs = append(fromIDs, edge.FromID)
			toIDs = append(toIDs, edge.ToID)
			types = append(types, string(edge.Type))
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO graph_edges (tenant, from_id, to_id, type)
			SELECT $1, unnest($2::text[]), unnest($3::text[]), unnest($4::text[])
			ON CONFLICT (tenant, from_id, to_id, type) DO NOTHING
		`, tenant.String(), fromIDs, toIDs, types)
		if err != nil {
			return fmt.Errorf("failed to upsert edges: %w", err)
		}

		return tx.Commit(ctx)
	})
}

func (s *Store) GetNodes(ctx context.Context, tenant model.TenantID, ids []string) ([]model.Node, error) {
	ids = store.DedupeStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, type, properties
		FROM graph_nodes
		WHERE tenant = $1 AND id = ANY($2)
	`, tenant.String(), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (model.Node, error) {
	var node model.Node
	var nodeType string
	var props []byte
	if err := row.Scan(&node.ID, &nodeType, &props); err != nil {
		return model.Node{}, fmt.Errorf("failed to scan node: %w", err)
	}
	node.Type = model.NodeType(nodeType)
	if len(props) > 0 {
		if err := json.Unmarshal(props, &node.Properties); err != nil {
			return model.Node{}, fmt.Errorf("failed to decode properties of node %s: %w", node.ID, err)
		}
	}
	return node, nil
}

// Neighbors resolves one-hop neighbors in both edge directions with a single
// query per direction.
func (s *Store) Neighbors(
	ctx context.Context,
	tenant model.TenantID,
	ids []string,
	edgeTypes []model.EdgeType,
) (map[string][]store.Neighbor, error) {
	ids = store.DedupeStrings(ids)
	if len(ids) == 0 {
		return map[string][]store.Neighbor{}, nil
	}

	types := make([]string, 0, len(edgeTypes))
	for _, t := range edgeTypes {
		types = append(types, string(t))
	}

	result := make(map[string][]store.Neighbor)
	collect := func(sql string) error {
		rows, err := s.conn.Query(ctx, sql, tenant.String(), ids, types)
		if err != nil {
			return fmt.Errorf("failed to query neighbors: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var origin string
			var edge model.Edge
			var edgeType string
			var node model.Node
			var nodeType string
			var props []byte
			if err := rows.Scan(&origin, &edge.FromID, &edge.ToID, &edgeType, &node.ID, &nodeType, &props); err != nil {
				return fmt.Errorf("failed to scan neighbor: %w", err)
			}
			edge.Type = model.EdgeType(edgeType)
			node.Type = model.NodeType(nodeType)
			if len(props) > 0 {
				if err := json.Unmarshal(props, &node.Properties); err != nil {
					return fmt.Errorf("failed to decode properties of node %s: %w", node.ID, err)
				}
			}
			result[origin] = append(result[origin], store.Neighbor{Node: node, Edge: edge})
		}
		return rows.Err()
	}

	outgoing := `
		SELECT e.from_id AS origin, e.from_id, e.to_id, e.type, n.id, n.type, n.properties
		FROM graph_edges e
		JOIN graph_nodes n ON n.tenant = e.tenant AND n.id = e.to_id
		WHERE e.tenant = $1 AND e.from_id = ANY($2)
		  AND (cardinality($3::text[]) = 0 OR e.type = ANY($3))
	`
	incoming := `
		SELECT e.to_id AS origin, e.from_id, e.to_id, e.type, n.id, n.type, n.properties
		FROM graph_edges e
		JOIN graph_nodes n ON n.tenant = e.tenant AND n.id = e.from_id
		WHERE e.tenant = $1 AND e.to_id = ANY($2)
		  AND (cardinality($3::text[]) = 0 OR e.type = ANY($3))
	`
	if err := collect(outgoing); err != nil {
		return nil, err
	}
	if err := collect(incoming); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) SourceMetadata(
	ctx context.Context,
	tenant model.TenantID,
	sourceIDs []string,
) (map[string]model.Metadata, error) {
	sourceIDs = store.DedupeStrings(sourceIDs)
	if len(sourceIDs) == 0 {
		return map[string]model.Metadata{}, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, properties->'metadata'
		FROM graph_nodes
		WHERE tenant = $1 AND type = $2 AND id = ANY($3)
	`, tenant.String(), string(model.NodeSource), sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query source metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[string]model.Metadata)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan source metadata: %w", err)
		}
		if len(raw) == 0 {
			continue
		}
		var md model.Metadata
		if err := json.Unmarshal(raw, &md); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of source %s: %w", id, err)
		}
		result[id] = md
	}
	return result, rows.Err()
}
