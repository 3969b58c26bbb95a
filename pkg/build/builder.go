// Package build consumes extracted chunks from the sink and materializes
// them as graph nodes, edges and vector entries.
package build

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/config"
	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/sink"
	"github.com/lexgraph/lexgraph/pkg/store"

	"golang.org/x/sync/errgroup"
)

// Summary aggregates the outcome of one build run.
type Summary struct {
	ChunksBuilt    atomic.Int64
	ChunksFiltered atomic.Int64
	NodesWritten   atomic.Int64
	EdgesWritten   atomic.Int64
	VectorsWritten atomic.Int64

	started time.Time
}

func (s *Summary) Fields() []any {
	return []any{
		"chunks_built", s.ChunksBuilt.Load(),
		"chunks_filtered", s.ChunksFiltered.Load(),
		"nodes_written", s.NodesWritten.Load(),
		"edges_written", s.EdgesWritten.Load(),
		"vectors_written", s.VectorsWritten.Load(),
		"duration", time.Since(s.started).Round(time.Millisecond).String(),
	}
}

// Builder materializes extracted chunks into the graph and vector stores.
type Builder struct {
	graph   store.GraphStore
	indexer *VectorIndexer
	cfg     config.BuildConfig
	tenant  model.TenantID
	filter  *filter.Config
}

type NewBuilderParams struct {
	Client  ai.Client
	Graph   store.GraphStore
	Vectors store.VectorStore
	Config  config.BuildConfig
	Tenant  model.TenantID
	// Filter admits chunks by their source metadata. A rejected chunk is
	// discarded whole: no nodes, no edges, no vectors.
	Filter *filter.Config
}

func NewBuilder(params NewBuilderParams) (*Builder, error) {
	if params.Graph == nil {
		return nil, fmt.Errorf("builder requires a graph store")
	}
	if params.Vectors == nil {
		return nil, fmt.Errorf("builder requires a vector store")
	}
	if params.Client == nil {
		return nil, fmt.Errorf("builder requires an ai client")
	}

	return &Builder{
		graph: params.Graph,
		indexer: NewVectorIndexer(NewVectorIndexerParams{
			Client:          params.Client,
			Vectors:         params.Vectors,
			EmbeddableTypes: params.Config.EmbeddableTypes,
		}),
		cfg:    params.Config,
		tenant: params.Tenant,
		filter: params.Filter,
	}, nil
}

// Run consumes every chunk batch written under the collection and builds the
// graph. Batches are processed concurrently; within a batch the graph write
// happens before the vector write, so a vector entry never references a node
// that does not exist yet.
func (b *Builder) Run(ctx context.Context, collectionID string, src sink.ChunkSink) (*Summary, error) {
	summary := &Summary{started: time.Now()}

	batches, errs := src.Iterate(ctx, collectionID)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for batch := range batches {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
				return b.buildBatch(gCtx, batch, summary)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	if err := <-errs; err != nil {
		return summary, fmt.Errorf("failed to iterate sink: %w", err)
	}

	logger.Info("[Build] run finished", append([]any{"collection", collectionID}, summary.Fields()...)...)
	return summary, nil
}

func (b *Builder) buildBatch(ctx context.Context, batch []model.ExtractedChunk, summary *Summary) error {
	admitted := make([]model.ExtractedChunk, 0, len(batch))
	for _, chunk := range batch {
		if b.filter != nil && !b.filter.MatchesSource(chunk.Source.Metadata) {
			summary.ChunksFiltered.Add(1)
			continue
		}
		admitted = append(admitted, chunk)
	}
	if len(admitted) == 0 {
		return nil
	}

	var nodes []model.Node
	var edges []model.Edge
	for _, chunk := range admitted {
		chunkNodes, chunkEdges := NodesAndEdges(chunk)
		nodes = append(nodes, chunkNodes...)
		edges = append(edges, chunkEdges...)
	}

	flush := func(start, end int) error {
		return b.graph.UpsertNodes(ctx, b.tenant, nodes[start:end])
	}
	if err := store.ChunkRange(len(nodes), b.cfg.BatchWriteSize, flush); err != nil {
		return fmt.Errorf("failed to write nodes: %w", err)
	}
	if err := b.graph.UpsertEdges(ctx, b.tenant, edges); err != nil {
		return fmt.Errorf("failed to write edges: %w", err)
	}

	vectors, err := b.indexer.Index(ctx, b.tenant, admitted)
	if err != nil {
		return err
	}

	summary.ChunksBuilt.Add(int64(len(admitted)))
	summary.NodesWritten.Add(int64(len(nodes)))
	summary.EdgesWritten.Add(int64(len(edges)))
	summary.VectorsWritten.Add(int64(vectors))
	return nil
}
