package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/config"
	"github.com/lexgraph/lexgraph/pkg/extract"
	"github.com/lexgraph/lexgraph/pkg/model"
)

// memoryStore is an in-memory ObjectStore.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object at key %q", key)
	}
	return data, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStore) URI(key string) string {
	return "mem://" + key
}

func (s *memoryStore) Key(uri string) (string, error) {
	if !strings.HasPrefix(uri, "mem://") {
		return "", fmt.Errorf("bad uri %q", uri)
	}
	return strings.TrimPrefix(uri, "mem://"), nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeBatchClient simulates a provider: on submission it reads the input
// artifact, writes a structure response per record and marks the job
// completed after a fixed number of status polls.
type fakeBatchClient struct {
	store *memoryStore

	mu            sync.Mutex
	pollsToFinish int
	failNextJobs  int
	jobs          map[string]*fakeJob
	submissions   int
}

type fakeJob struct {
	outputKey string
	polls     int
	failed    bool
}

func newFakeBatchClient(store *memoryStore) *fakeBatchClient {
	return &fakeBatchClient{
		store:         store,
		pollsToFinish: 2,
		jobs:          make(map[string]*fakeJob),
	}
}

func (c *fakeBatchClient) SubmitBatch(ctx context.Context, inputURI string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submissions++

	jobID := fmt.Sprintf("job-%d", c.submissions)
	if c.failNextJobs > 0 {
		c.failNextJobs--
		c.jobs[jobID] = &fakeJob{failed: true}
		return jobID, nil
	}

	inputKey, err := c.store.Key(inputURI)
	if err != nil {
		return "", err
	}
	data, err := c.store.Get(ctx, inputKey)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	enc := json.NewEncoder(&out)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var in inputRecord
		if err := json.Unmarshal([]byte(line), &in); err != nil {
			return "", err
		}
		record := outputRecord{
			CustomID: in.CustomID,
			Response: &extract.StructureResponse{Topics: []extract.StructureTopic{{
				Label:      "Batched",
				Statements: []extract.StructureStatement{{Text: "Extracted via batch job."}},
			}}},
		}
		if err := enc.Encode(record); err != nil {
			return "", err
		}
	}

	outputKey := inputKey + ".output"
	if err := c.store.Put(ctx, outputKey, []byte(out.String())); err != nil {
		return "", err
	}
	c.jobs[jobID] = &fakeJob{outputKey: outputKey}
	return jobID, nil
}

func (c *fakeBatchClient) GetJobStatus(ctx context.Context, jobID string) (ai.JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return "", fmt.Errorf("unknown job %q", jobID)
	}
	if job.failed {
		return ai.JobFailed, nil
	}
	job.polls++
	if job.polls < c.pollsToFinish {
		return ai.JobInProgress, nil
	}
	return ai.JobCompleted, nil
}

func (c *fakeBatchClient) GetJobOutput(ctx context.Context, jobID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok || job.failed {
		return "", fmt.Errorf("no output for job %q", jobID)
	}
	return c.store.URI(job.outputKey), nil
}

func testBatchConfig() config.BatchInferenceConfig {
	return config.BatchInferenceConfig{
		Enabled:           true,
		MinBatchSize:      2,
		MaxBatchSize:      100,
		MaxConcurrentJobs: 2,
		PollInterval:      time.Millisecond,
		MaxJobRetries:     2,
		KeyPrefix:         "batch",
	}
}

func newTestAdapter(t *testing.T, client ai.BatchInferenceClient, store ObjectStore, cfg config.BatchInferenceConfig) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(NewAdapterParams{
		Client: client,
		Store:  store,
		Config: cfg,
		Tenant: model.DefaultTenant(),
	})
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	return adapter
}

func pendingChunks(n int) []extract.PendingChunk {
	idgen := model.NewIDGenerator(model.DefaultTenant())
	var chunks []extract.PendingChunk
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("Chunk number %d talks about something.", i)
		sourceID := idgen.SourceID(text, "")
		chunks = append(chunks, extract.PendingChunk{
			Source: model.Source{ID: sourceID},
			Chunk: model.Chunk{
				ID:       idgen.ChunkID(sourceID, text, ""),
				SourceID: sourceID,
				Text:     text,
				Position: i,
			},
		})
	}
	return chunks
}

func TestAdapterProcessBatch(t *testing.T) {
	store := newMemoryStore()
	client := newFakeBatchClient(store)
	adapter := newTestAdapter(t, client, store, testBatchConfig())

	chunks := pendingChunks(5)
	extracted, err := adapter.ProcessBatch(context.Background(), chunks)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(extracted) != 5 {
		t.Fatalf("expected 5 extracted chunks, got %d", len(extracted))
	}

	byID := make(map[string]model.ExtractedChunk)
	for _, chunk := range extracted {
		byID[chunk.Chunk.ID] = chunk
	}
	for _, pending := range chunks {
		result, ok := byID[pending.Chunk.ID]
		if !ok {
			t.Fatalf("missing result for chunk %s", pending.Chunk.ID)
		}
		if len(result.Topics) != 1 || result.Topics[0].Topic.Label != "Batched" {
			t.Fatalf("unexpected extraction for chunk %s: %+v", pending.Chunk.ID, result)
		}
	}

	// Artifacts are deleted on success by default.
	if got := store.count(); got != 0 {
		t.Fatalf("expected artifacts cleaned up, %d objects remain", got)
	}
}

func TestAdapterKeepsArtifactsWhenConfigured(t *testing.T) {
	store := newMemoryStore()
	client := newFakeBatchClient(store)
	cfg := testBatchConfig()
	cfg.KeepArtifacts = true
	adapter := newTestAdapter(t, client, store, cfg)

	if _, err := adapter.ProcessBatch(context.Background(), pendingChunks(3)); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if got := store.count(); got != 2 {
		t.Fatalf("expected input and output artifacts kept, got %d objects", got)
	}
}

func TestAdapterSplitsOversizedBatches(t *testing.T) {
	store := newMemoryStore()
	client := newFakeBatchClient(store)
	cfg := testBatchConfig()
	cfg.MaxBatchSize = 2
	adapter := newTestAdapter(t, client, store, cfg)

	extracted, err := adapter.ProcessBatch(context.Background(), pendingChunks(5))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(extracted) != 5 {
		t.Fatalf("expected 5 extracted chunks, got %d", len(extracted))
	}
	if client.submissions != 3 {
		t.Fatalf("expected 3 jobs for 5 chunks with cap 2, got %d", client.submissions)
	}
}

func TestAdapterRetriesFailedJob(t *testing.T) {
	store := newMemoryStore()
	client := newFakeBatchClient(store)
	client.failNextJobs = 1
	adapter := newTestAdapter(t, client, store, testBatchConfig())

	extracted, err := adapter.ProcessBatch(context.Background(), pendingChunks(3))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(extracted) != 3 {
		t.Fatalf("expected 3 extracted chunks after retry, got %d", len(extracted))
	}
	if client.submissions != 2 {
		t.Fatalf("expected resubmission after failure, got %d submissions", client.submissions)
	}
}

func TestAdapterGivesUpAfterRetryBudget(t *testing.T) {
	store := newMemoryStore()
	client := newFakeBatchClient(store)
	client.failNextJobs = 100
	adapter := newTestAdapter(t, client, store, testBatchConfig())

	if _, err := adapter.ProcessBatch(context.Background(), pendingChunks(3)); err == nil {
		t.Fatalf("expected error after exhausting job retries")
	}
	// One initial attempt plus MaxJobRetries resubmissions.
	if client.submissions != 3 {
		t.Fatalf("expected 3 submissions, got %d", client.submissions)
	}
}

func TestAdapterOmitsFailedRecords(t *testing.T) {
	store := newMemoryStore()
	client := newFakeBatchClient(store)
	adapter := newTestAdapter(t, client, store, testBatchConfig())

	chunks := pendingChunks(2)

	// Wrap the store so the output artifact carries one failed record.
	if _, err := adapter.ProcessBatch(context.Background(), chunks); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	// Rebuild with a client that injects a record error for the first chunk.
	store = newMemoryStore()
	failing := &recordFailingClient{fakeBatchClient: newFakeBatchClient(store), failID: chunks[0].Chunk.ID}
	adapter = newTestAdapter(t, failing, store, testBatchConfig())

	extracted, err := adapter.ProcessBatch(context.Background(), chunks)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(extracted) != 1 {
		t.Fatalf("expected 1 extracted chunk, got %d", len(extracted))
	}
	if extracted[0].Chunk.ID != chunks[1].Chunk.ID {
		t.Fatalf("wrong surviving chunk: %s", extracted[0].Chunk.ID)
	}
}

// recordFailingClient rewrites the output artifact so one record carries an
// error instead of a response.
type recordFailingClient struct {
	*fakeBatchClient
	failID string
}

func (c *recordFailingClient) GetJobOutput(ctx context.Context, jobID string) (string, error) {
	uri, err := c.fakeBatchClient.GetJobOutput(ctx, jobID)
	if err != nil {
		return "", err
	}
	key, err := c.store.Key(uri)
	if err != nil {
		return "", err
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	enc := json.NewEncoder(&out)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var record outputRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return "", err
		}
		if record.CustomID == c.failID {
			record.Response = nil
			record.Error = "provider rejected record"
		}
		if err := enc.Encode(record); err != nil {
			return "", err
		}
	}
	if err := c.store.Put(ctx, key, []byte(out.String())); err != nil {
		return "", err
	}
	return uri, nil
}
