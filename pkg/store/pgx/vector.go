package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/store"

	"github.com/pgvector/pgvector-go"
)

var _ store.VectorStore = (*Store)(nil)

// Upsert writes vector entries keyed by (tenant, doc_id).
func (s *Store) Upsert(ctx context.Context, tenant model.TenantID, entries []store.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	logger.Debug("[Store][UpsertVectors] Bulk upserting vector entries", "entries", len(entries))

	return store.ChunkRange(len(entries), s.bulkChunkSize, func(start, end int) error {
		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		for _, entry := range entries[start:end] {
			if entry.DocID == "" {
				return fmt.Errorf("vector entry for node %s has no doc id", entry.NodeID)
			}
			metadata, err := json.Marshal(entry.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata of entry %s: %w", entry.DocID, err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO vector_entries (tenant, doc_id, node_id, type, content, embedding, source_id, metadata)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (tenant, doc_id) DO UPDATE
				SET node_id = EXCLUDED.node_id,
				    type = EXCLUDED.type,
				    content = EXCLUDED.content,
				    embedding = EXCLUDED.embedding,
				    source_id = EXCLUDED.source_id,
				    metadata = EXCLUDED.metadata
			`, tenant.String(), entry.DocID, entry.NodeID, string(entry.Type),
				entry.Text, pgvector.NewVector(entry.Embedding), entry.SourceID, metadata)
			if err != nil {
				return fmt.Errorf("failed to upsert vector entry %s: %w", entry.DocID, err)
			}
		}

		return tx.Commit(ctx)
	})
}

// QueryTopK runs a cosine similarity search with the metadata filter pushed
// down into SQL.
func (s *Store) QueryTopK(
	ctx context.Context,
	tenant model.TenantID,
	embedding []float32,
	k int,
	types []model.NodeType,
	f *filter.Config,
) ([]store.ScoredEntry, error) {
	if k <= 0 {
		k = 10
	}

	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}

	args := []any{tenant.String(), pgvector.NewVector(embedding), typeNames}
	filterCond := "TRUE"
	if f != nil {
		var filterArgs []any
		var err error
		filterCond, filterArgs, err = CompileFilter("metadata", f.Expression(), len(args))
		if err != nil {
			return nil, err
		}
		args = append(args, filterArgs...)
	}
	args = append(args, k)

	sql := fmt.Sprintf(`
		SELECT doc_id, node_id, type, content, source_id, metadata,
		       1 - (embedding <=> $2) AS score
		FROM vector_entries
		WHERE tenant = $1
		  AND (cardinality($3::text[]) = 0 OR type = ANY($3))
		  AND (%s)
		ORDER BY embedding <=> $2, doc_id
		LIMIT $%d
	`, filterCond, len(args))

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run similarity query: %w", err)
	}
	defer rows.Close()

	var scored []store.ScoredEntry
	for rows.Next() {
		var entry store.ScoredEntry
		var entryType string
		var metadata []byte
		if err := rows.Scan(&entry.DocID, &entry.NodeID, &entryType, &entry.Text,
			&entry.SourceID, &metadata, &entry.Score); err != nil {
			return nil, fmt.Errorf("failed to scan similarity row: %w", err)
		}
		entry.Type = model.NodeType(entryType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of entry %s: %w", entry.DocID, err)
			}
		}
		scored = append(scored, entry)
	}
	return scored, rows.Err()
}

func (s *Store) Delete(ctx context.Context, tenant model.TenantID, docIDs []string) error {
	docIDs = store.DedupeStrings(docIDs)
	if len(docIDs) == 0 {
		return nil
	}

	_, err := s.conn.Exec(ctx, `
		DELETE FROM vector_entries
		WHERE tenant = $1 AND doc_id = ANY($2)
	`, tenant.String(), docIDs)
	if err != nil {
		return fmt.Errorf("failed to delete vector entries: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, tenant model.TenantID) ([]store.VectorEntry, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT doc_id, node_id, type, content, source_id, metadata
		FROM vector_entries
		WHERE tenant = $1
		ORDER BY doc_id
	`, tenant.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list vector entries: %w", err)
	}
	defer rows.Close()

	var entries []store.VectorEntry
	for rows.Next() {
		var entry store.VectorEntry
		var entryType string
		var metadata []byte
		if err := rows.Scan(&entry.DocID, &entry.NodeID, &entryType, &entry.Text,
			&entry.SourceID, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan vector entry: %w", err)
		}
		entry.Type = model.NodeType(entryType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of entry %s: %w", entry.DocID, err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
