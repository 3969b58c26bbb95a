// Package batch adapts an asynchronous batch-inference provider to the
// extraction pipeline. It trades latency for throughput: chunk batches are
// written as JSONL artifacts to an object store, submitted as provider jobs,
// polled to completion and mapped back onto the graph model with the same
// id derivation the synchronous path uses.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/config"
	"github.com/lexgraph/lexgraph/pkg/extract"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// inputRecord is one line of a job input artifact.
type inputRecord struct {
	CustomID string `json:"custom_id"`
	System   string `json:"system"`
	Prompt   string `json:"prompt"`
}

// outputRecord is one line of a job output artifact. A record either carries
// a structure response or a per-record error.
type outputRecord struct {
	CustomID string                     `json:"custom_id"`
	Response *extract.StructureResponse `json:"response,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// Adapter implements extract.BatchProcessor on top of a batch-inference
// provider and an artifact store.
type Adapter struct {
	client ai.BatchInferenceClient
	store  ObjectStore
	cfg    config.BatchInferenceConfig
	idgen  *model.IDGenerator
	prompt string
	sem    *semaphore.Weighted
}

type NewAdapterParams struct {
	Client ai.BatchInferenceClient
	Store  ObjectStore
	Config config.BatchInferenceConfig
	Tenant model.TenantID
	// Classifications are the entity classifications offered in the
	// extraction prompt, matching the synchronous extractor.
	Classifications []string
}

func NewAdapter(params NewAdapterParams) (*Adapter, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("batch adapter requires a batch inference client")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("batch adapter requires an object store")
	}

	extractor := extract.NewStructureExtractor(extract.NewStructureExtractorParams{
		Classifications: params.Classifications,
	})

	return &Adapter{
		client: params.Client,
		store:  params.Store,
		cfg:    params.Config,
		idgen:  model.NewIDGenerator(params.Tenant),
		prompt: extractor.Prompt(),
		sem:    semaphore.NewWeighted(int64(params.Config.MaxConcurrentJobs)),
	}, nil
}

// MinBatchSize reports the chunk count below which the coordinator should
// extract synchronously instead.
func (a *Adapter) MinBatchSize() int {
	return a.cfg.MinBatchSize
}

// ProcessBatch extracts the given chunks through one or more provider jobs.
// Batches larger than the configured job cap are split. Chunks whose records
// come back with per-record errors are omitted from the result; the caller
// treats them as failed.
func (a *Adapter) ProcessBatch(ctx context.Context, chunks []extract.PendingChunk) ([]model.ExtractedChunk, error) {
	byID := make(map[string]extract.PendingChunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.Chunk.ID] = chunk
	}

	var mu sync.Mutex
	var extracted []model.ExtractedChunk

	g, gCtx := errgroup.WithContext(ctx)
	for start := 0; start < len(chunks); start += a.cfg.MaxBatchSize {
		end := min(start+a.cfg.MaxBatchSize, len(chunks))
		job := chunks[start:end]
		g.Go(func() error {
			if err := a.sem.Acquire(gCtx, 1); err != nil {
				return err
			}
			defer a.sem.Release(1)

			records, err := a.runJob(gCtx, job)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for _, record := range records {
				if record.Error != "" {
					logger.Warn("[Batch] record failed", "chunk", record.CustomID, "error", record.Error)
					continue
				}
				if record.Response == nil {
					logger.Warn("[Batch] record missing response", "chunk", record.CustomID)
					continue
				}
				pending, ok := byID[record.CustomID]
				if !ok {
					logger.Warn("[Batch] record for unknown chunk", "chunk", record.CustomID)
					continue
				}
				extracted = append(extracted, extract.BuildExtraction(
					a.idgen, pending.Source, pending.Chunk, nil, record.Response,
				))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return extracted, nil
}

// runJob submits one job and polls it to completion, resubmitting failed
// jobs up to the configured retry budget.
func (a *Adapter) runJob(ctx context.Context, chunks []extract.PendingChunk) ([]outputRecord, error) {
	inputKey, err := a.uploadInput(ctx, chunks)
	if err != nil {
		return nil, err
	}

	var records []outputRecord
	var outputKey string
	attempts := a.cfg.MaxJobRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		records, outputKey, err = a.submitAndWait(ctx, inputKey, len(chunks))
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("[Batch] job attempt failed", "attempt", attempt, "error", err)
	}
	if err != nil {
		return nil, fmt.Errorf("batch job failed after %d attempts: %w", attempts, err)
	}

	if !a.cfg.KeepArtifacts {
		if cleanupErr := a.store.Delete(ctx, inputKey); cleanupErr != nil {
			logger.Warn("[Batch] failed to delete input artifact", "key", inputKey, "error", cleanupErr)
		}
		if outputKey != "" {
			if cleanupErr := a.store.Delete(ctx, outputKey); cleanupErr != nil {
				logger.Warn("[Batch] failed to delete output artifact", "key", outputKey, "error", cleanupErr)
			}
		}
	}

	return records, nil
}

func (a *Adapter) uploadInput(ctx context.Context, chunks []extract.PendingChunk) (string, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	for _, chunk := range chunks {
		record := inputRecord{
			CustomID: chunk.Chunk.ID,
			System:   a.prompt,
			Prompt:   chunk.Chunk.Text,
		}
		if err := enc.Encode(record); err != nil {
			return "", fmt.Errorf("failed to encode input record: %w", err)
		}
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/job-%s.input.jsonl", strings.TrimSuffix(a.cfg.KeyPrefix, "/"), id)

	if err := a.store.Put(ctx, key, []byte(sb.String())); err != nil {
		return "", fmt.Errorf("failed to upload job input: %w", err)
	}
	return key, nil
}

func (a *Adapter) submitAndWait(ctx context.Context, inputKey string, size int) ([]outputRecord, string, error) {
	jobID, err := a.client.SubmitBatch(ctx, a.store.URI(inputKey))
	if err != nil {
		return nil, "", fmt.Errorf("failed to submit batch job: %w", err)
	}
	logger.Info("[Batch] job submitted", "job", jobID, "chunks", size)

	for {
		status, err := a.client.GetJobStatus(ctx, jobID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to poll job %s: %w", jobID, err)
		}

		switch status {
		case ai.JobCompleted:
			outputURI, err := a.client.GetJobOutput(ctx, jobID)
			if err != nil {
				return nil, "", fmt.Errorf("failed to resolve output of job %s: %w", jobID, err)
			}
			outputKey, err := a.store.Key(outputURI)
			if err != nil {
				return nil, "", err
			}
			records, err := a.downloadOutput(ctx, outputKey)
			if err != nil {
				return nil, "", err
			}
			logger.Info("[Batch] job completed", "job", jobID, "records", len(records))
			return records, outputKey, nil
		case ai.JobFailed:
			return nil, "", fmt.Errorf("job %s failed", jobID)
		case ai.JobSubmitted, ai.JobInProgress:
		default:
			return nil, "", fmt.Errorf("job %s reported unknown status %q", jobID, status)
		}

		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(a.cfg.PollInterval):
		}
	}
}

func (a *Adapter) downloadOutput(ctx context.Context, key string) ([]outputRecord, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download job output: %w", err)
	}

	var records []outputRecord
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var record outputRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("failed to decode output record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}
