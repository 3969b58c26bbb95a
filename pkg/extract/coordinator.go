package extract

import (
	"context"
	"fmt"
	"sync"

	"github.com/lexgraph/lexgraph/internal/util"
	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/chunker"
	"github.com/lexgraph/lexgraph/pkg/config"
	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/sink"

	"golang.org/x/sync/errgroup"
)

// PendingChunk is a chunk admitted for extraction but not yet extracted.
type PendingChunk struct {
	Source model.Source
	Chunk  model.Chunk
}

// BatchProcessor extracts a batch of pending chunks through an asynchronous
// provider job instead of per-chunk model calls. The coordinator routes a
// batch here when a processor is configured and the batch reaches the
// processor's minimum size.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, chunks []PendingChunk) ([]model.ExtractedChunk, error)
	MinBatchSize() int
}

// Coordinator drives the extraction stage: it admits sources through the
// metadata filter, skips checkpointed sources, chunks the rest, extracts
// every chunk and emits the results to the sink in micro-batches.
type Coordinator struct {
	cfg          config.ExtractionConfig
	idgen        *model.IDGenerator
	chunker      *chunker.Chunker
	propositions *PropositionExtractor
	structure    *StructureExtractor
	sink         sink.ChunkSink
	filter       *filter.Config
	batch        BatchProcessor

	checkpointDir string
}

type NewCoordinatorParams struct {
	Client        ai.Client
	Config        config.ExtractionConfig
	Tenant        model.TenantID
	Sink          sink.ChunkSink
	CheckpointDir string
	// Filter admits sources by metadata. Nil admits everything.
	Filter *filter.Config
	// Batch enables the asynchronous extraction path. Nil extracts every
	// batch synchronously.
	Batch BatchProcessor
}

func NewCoordinator(params NewCoordinatorParams) (*Coordinator, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("extraction requires an ai client")
	}
	if params.Sink == nil {
		return nil, fmt.Errorf("extraction requires a chunk sink")
	}
	if params.CheckpointDir == "" {
		return nil, fmt.Errorf("extraction requires a checkpoint dir")
	}

	c := &Coordinator{
		cfg:   params.Config,
		idgen: model.NewIDGenerator(params.Tenant),
		chunker: chunker.NewChunker(chunker.NewChunkerParams{
			TokenEncoder:     params.Config.TokenEncoder,
			TargetTokens:     params.Config.TargetChunkTokens,
			OverlapSentences: params.Config.OverlapSentences,
		}),
		structure: NewStructureExtractor(NewStructureExtractorParams{
			Client:          params.Client,
			Classifications: params.Config.EntityClassifications,
		}),
		sink:          params.Sink,
		filter:        params.Filter,
		batch:         params.Batch,
		checkpointDir: params.CheckpointDir,
	}
	if params.Config.ExtractPropositions {
		c.propositions = NewPropositionExtractor(params.Client)
	}
	return c, nil
}

type pendingSource struct {
	source model.Source
	chunks []PendingChunk
}

// Run extracts every document the reader yields under the given collection.
// It returns a summary of the run together with the first fatal error; chunk
// and source level failures are counted, logged and do not abort the run.
func (c *Coordinator) Run(ctx context.Context, collectionID string, reader DocumentReader) (*RunSummary, error) {
	summary := newRunSummary()

	checkpoint, err := OpenCheckpoint(c.checkpointDir, collectionID)
	if err != nil {
		return summary, err
	}
	defer checkpoint.Close()

	admitted, err := c.admit(ctx, reader, checkpoint, summary)
	if err != nil {
		return summary, err
	}

	logger.Info("[Extract] run admitted",
		"collection", collectionID,
		"sources", len(admitted),
		"skipped", summary.SourcesSkipped.Load(),
		"filtered", summary.SourcesFiltered.Load(),
	)

	batches := batchSources(admitted, c.cfg.BatchSize)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, batch := range batches {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
				return c.processBatch(gCtx, collectionID, batch, checkpoint, summary)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	logger.Info("[Extract] run finished", append([]any{"collection", collectionID}, summary.Fields()...)...)
	return summary, nil
}

// admit drains the reader, derives source identity and drops sources the
// checkpoint or the metadata filter excludes. Chunking happens here so the
// batch router sees real chunk counts.
func (c *Coordinator) admit(
	ctx context.Context,
	reader DocumentReader,
	checkpoint *Checkpoint,
	summary *RunSummary,
) ([]pendingSource, error) {
	docs, readErrs := reader.Read(ctx)

	var admitted []pendingSource
	seen := make(map[string]bool)
	for doc := range docs {
		summary.SourcesTotal.Add(1)

		if err := doc.Metadata.Validate(); err != nil {
			logger.Warn("[Extract] rejecting source with invalid metadata", "error", err)
			summary.SourcesFailed.Add(1)
			continue
		}

		metadataStr := doc.Metadata.CanonicalString()
		sourceID := c.idgen.SourceID(doc.Text, metadataStr)

		if seen[sourceID] {
			summary.SourcesSkipped.Add(1)
			continue
		}
		seen[sourceID] = true

		if checkpoint.Contains(sourceID) {
			summary.SourcesSkipped.Add(1)
			continue
		}
		if c.filter != nil && !c.filter.MatchesSource(doc.Metadata) {
			summary.SourcesFiltered.Add(1)
			continue
		}

		spans, err := c.chunker.Split(doc.Text)
		if err != nil {
			logger.Warn("[Extract] failed to chunk source", "source", sourceID, "error", err)
			summary.SourcesFailed.Add(1)
			continue
		}
		if len(spans) == 0 {
			// Content-free sources complete immediately.
			if err := checkpoint.MarkCompleted(sourceID); err != nil {
				return nil, err
			}
			summary.SourcesSucceeded.Add(1)
			continue
		}

		source := model.Source{
			ID:          sourceID,
			Metadata:    doc.Metadata,
			ContentHash: metadataStr,
		}
		pending := pendingSource{source: source}
		for _, span := range spans {
			pending.chunks = append(pending.chunks, PendingChunk{
				Source: source,
				Chunk: model.Chunk{
					ID:       c.idgen.ChunkID(sourceID, span.Text, metadataStr),
					SourceID: sourceID,
					Text:     span.Text,
					Position: span.Position,
				},
			})
		}
		admitted = append(admitted, pending)
	}

	if err := <-readErrs; err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return admitted, nil
}

func batchSources(sources []pendingSource, size int) [][]pendingSource {
	if size < 1 {
		size = 1
	}
	var batches [][]pendingSource
	for start := 0; start < len(sources); start += size {
		end := min(start+size, len(sources))
		batches = append(batches, sources[start:end])
	}
	return batches
}

// processBatch extracts one micro-batch of sources and emits the results.
// The sink write happens before checkpointing, so a crash between the two
// replays the batch as upserts on restart.
func (c *Coordinator) processBatch(
	ctx context.Context,
	collectionID string,
	batch []pendingSource,
	checkpoint *Checkpoint,
	summary *RunSummary,
) error {
	var pending []PendingChunk
	for _, src := range batch {
		pending = append(pending, src.chunks...)
	}

	var extracted []model.ExtractedChunk
	failedChunks := make(map[string]bool)

	if c.batch != nil && len(pending) >= c.batch.MinBatchSize() {
		results, err := c.batch.ProcessBatch(ctx, pending)
		if err != nil {
			// A batch whose retry budget runs out is re-extracted synchronously
			// instead of being failed; the run degrades to per-chunk calls
			// rather than dropping the chunks.
			logger.Warn("[Extract] batch job failed, falling back to synchronous extraction",
				"chunks", len(pending), "error", err)
			extracted = c.extractSync(ctx, pending, failedChunks, summary)
		} else {
			extracted = results
			returned := make(map[string]bool, len(results))
			for _, chunk := range results {
				returned[chunk.Chunk.ID] = true
			}
			for _, p := range pending {
				if !returned[p.Chunk.ID] {
					failedChunks[p.Chunk.ID] = true
					summary.ChunksFailed.Add(1)
				}
			}
			summary.ChunksEmitted.Add(int64(len(results)))
		}
	} else {
		extracted = c.extractSync(ctx, pending, failedChunks, summary)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if len(extracted) > 0 {
		if err := c.sink.Write(ctx, collectionID, extracted); err != nil {
			return fmt.Errorf("failed to write extracted chunks: %w", err)
		}
	}

	for _, src := range batch {
		failed := false
		for _, chunk := range src.chunks {
			if failedChunks[chunk.Chunk.ID] {
				failed = true
				break
			}
		}
		if failed {
			summary.SourcesFailed.Add(1)
			logger.Warn("[Extract] source failed", "source", src.source.ID)
			continue
		}
		if err := checkpoint.MarkCompleted(src.source.ID); err != nil {
			return err
		}
		summary.SourcesSucceeded.Add(1)
	}

	return nil
}

// extractSync runs the per-chunk model calls for one batch. A chunk that
// fails all its retries is recorded in failed and does not stop the batch.
func (c *Coordinator) extractSync(
	ctx context.Context,
	pending []PendingChunk,
	failed map[string]bool,
	summary *RunSummary,
) []model.ExtractedChunk {
	var mu sync.Mutex
	var extracted []model.ExtractedChunk

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.ChunkWorkers)
	for _, chunk := range pending {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
			}

			var result model.ExtractedChunk
			attempts := 0
			err := util.RetryErrWithBackoff(gCtx, c.cfg.MaxRetries, c.cfg.RetryBaseDelay, func(ctx context.Context) error {
				attempts++
				var err error
				result, err = c.extractChunk(ctx, chunk)
				return err
			})
			if attempts > 1 {
				summary.Retries.Add(int64(attempts - 1))
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("[Extract] chunk failed", "chunk", chunk.Chunk.ID, "error", err)
				failed[chunk.Chunk.ID] = true
				summary.ChunksFailed.Add(1)
				return nil
			}
			extracted = append(extracted, result)
			summary.ChunksEmitted.Add(1)
			return nil
		})
	}
	g.Wait()

	return extracted
}

// extractChunk runs the optional proposition rewrite and the structure
// extraction for a single chunk.
func (c *Coordinator) extractChunk(ctx context.Context, chunk PendingChunk) (model.ExtractedChunk, error) {
	passage := chunk.Chunk.Text

	var propositions []string
	if c.propositions != nil {
		var err error
		propositions, err = c.propositions.Extract(ctx, chunk.Chunk.Text)
		if err != nil {
			return model.ExtractedChunk{}, err
		}
		if len(propositions) > 0 {
			passage = joinPropositions(propositions)
		}
	}

	res, err := c.structure.Extract(ctx, passage)
	if err != nil {
		return model.ExtractedChunk{}, err
	}

	return BuildExtraction(c.idgen, chunk.Source, chunk.Chunk, propositions, res), nil
}

func joinPropositions(propositions []string) string {
	out := ""
	for i, p := range propositions {
		if i > 0 {
			out += "\n"
		}
		out += "- " + p
	}
	return out
}
