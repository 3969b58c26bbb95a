package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/store"
)

// VectorStore is an in-memory vector index with brute-force cosine search.
type VectorStore struct {
	mu      sync.RWMutex
	indexes map[string]map[string]store.VectorEntry
}

var _ store.VectorStore = (*VectorStore)(nil)

func NewVectorStore() *VectorStore {
	return &VectorStore{indexes: make(map[string]map[string]store.VectorEntry)}
}

func (s *VectorStore) index(tenant model.TenantID) map[string]store.VectorEntry {
	key := tenant.FormatIndexName("vectors")
	idx, ok := s.indexes[key]
	if !ok {
		idx = make(map[string]store.VectorEntry)
		s.indexes[key] = idx
	}
	return idx
}

func (s *VectorStore) Upsert(ctx context.Context, tenant model.TenantID, entries []store.VectorEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.index(tenant)
	for _, entry := range entries {
		if entry.DocID == "" {
			return fmt.Errorf("vector entry for node %s has no doc id", entry.NodeID)
		}
		idx[entry.DocID] = entry
	}
	return nil
}

func (s *VectorStore) QueryTopK(
	ctx context.Context,
	tenant model.TenantID,
	embedding []float32,
	k int,
	types []model.NodeType,
	f *filter.Config,
) ([]store.ScoredEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.index(tenant)

	allowed := make(map[model.NodeType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}

	var scored []store.ScoredEntry
	for _, entry := range idx {
		if len(allowed) > 0 && !allowed[entry.Type] {
			continue
		}
		if f != nil && !f.MatchesSource(entry.Metadata) {
			continue
		}
		scored = append(scored, store.ScoredEntry{
			VectorEntry: entry,
			Score:       cosineSimilarity(embedding, entry.Embedding),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].DocID < scored[j].DocID
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *VectorStore) Delete(ctx context.Context, tenant model.TenantID, docIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.index(tenant)
	for _, id := range docIDs {
		delete(idx, id)
	}
	return nil
}

func (s *VectorStore) ListEntries(ctx context.Context, tenant model.TenantID) ([]store.VectorEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.index(tenant)

	entries := make([]store.VectorEntry, 0, len(idx))
	for _, entry := range idx {
		entry.Embedding = nil
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DocID < entries[j].DocID })
	return entries, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
