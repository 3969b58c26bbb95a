package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lexgraph/lexgraph/internal/storage"
	"github.com/lexgraph/lexgraph/pkg/model"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Sink stores chunk batches as JSONL objects under a key prefix, one
// "directory" per collection. Batch keys are numbered in write order so
// iteration replays batches in the order they were written.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string

	mu      sync.Mutex
	counter map[string]int
}

var _ ChunkSink = (*S3Sink)(nil)

type NewS3SinkParams struct {
	Client *s3.Client
	Bucket string
	Prefix string
}

func NewS3Sink(params NewS3SinkParams) *S3Sink {
	prefix := strings.TrimSuffix(params.Prefix, "/")
	if prefix == "" {
		prefix = "chunks"
	}
	return &S3Sink{
		client:  params.Client,
		bucket:  params.Bucket,
		prefix:  prefix,
		counter: make(map[string]int),
	}
}

func (s *S3Sink) collectionPrefix(collectionID string) string {
	return fmt.Sprintf("%s/%s/", s.prefix, collectionID)
}

func (s *S3Sink) Write(ctx context.Context, collectionID string, chunks []model.ExtractedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, chunk := range chunks {
		if err := enc.Encode(chunk); err != nil {
			return fmt.Errorf("failed to encode chunk %s: %w", chunk.Chunk.ID, err)
		}
	}

	s.mu.Lock()
	seq := s.counter[collectionID]
	s.counter[collectionID] = seq + 1
	s.mu.Unlock()

	key := fmt.Sprintf("%sbatch-%06d.jsonl", s.collectionPrefix(collectionID), seq)
	return storage.PutObject(ctx, s.client, s.bucket, key, &buf, "application/jsonl")
}

func (s *S3Sink) Iterate(ctx context.Context, collectionID string) (<-chan []model.ExtractedChunk, <-chan error) {
	out := make(chan []model.ExtractedChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		keys, err := storage.ListKeysWithPrefix(ctx, s.client, s.bucket, s.collectionPrefix(collectionID))
		if err != nil {
			errs <- err
			return
		}
		sort.Strings(keys)

		for _, key := range keys {
			if !strings.HasSuffix(key, ".jsonl") {
				continue
			}
			data, err := storage.GetObject(ctx, s.client, s.bucket, key)
			if err != nil {
				errs <- fmt.Errorf("failed to read batch %s: %w", key, err)
				return
			}
			batch, err := decodeBatch(data)
			if err != nil {
				errs <- fmt.Errorf("failed to decode batch %s: %w", key, err)
				return
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return out, errs
}

// Clear removes every batch object written under the collection.
func (s *S3Sink) Clear(ctx context.Context, collectionID string) error {
	return storage.DeletePrefix(ctx, s.client, s.bucket, s.collectionPrefix(collectionID))
}

func decodeBatch(data []byte) ([]model.ExtractedChunk, error) {
	var batch []model.ExtractedChunk
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk model.ExtractedChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, err
		}
		batch = append(batch, chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}
