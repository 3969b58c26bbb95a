package queue

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/lexgraph/lexgraph/internal/storage"
	"github.com/lexgraph/lexgraph/pkg/extract"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// documents move between the API server and the extraction worker as JSONL
// artifacts in the object store, one extract.Document per line.

const maxDocumentLineBytes = 16 * 1024 * 1024

// UploadDocuments stages an ingested document set and returns its object key.
func UploadDocuments(
	ctx context.Context,
	client *awss3.Client,
	bucket string,
	collectionID string,
	docs []extract.Document,
) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return "", fmt.Errorf("failed to encode document: %w", err)
		}
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("ingest/%s/%s.jsonl", collectionID, id)

	if err := storage.PutObject(ctx, client, bucket, key, &buf, "application/jsonl"); err != nil {
		return "", fmt.Errorf("failed to upload document set: %w", err)
	}
	return key, nil
}

// s3DocumentReader streams a staged document set back out of the object
// store for extraction.
type s3DocumentReader struct {
	client *awss3.Client
	bucket string
	key    string
}

func (r *s3DocumentReader) Read(ctx context.Context) (<-chan extract.Document, <-chan error) {
	out := make(chan extract.Document)
	errs := make(chan error, 1)

	go func() {
		defer close(out)

		data, err := storage.GetObject(ctx, r.client, r.bucket, r.key)
		if err != nil {
			errs <- fmt.Errorf("failed to read document set %s: %w", r.key, err)
			return
		}

		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), maxDocumentLineBytes)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var doc extract.Document
			if err := json.Unmarshal(line, &doc); err != nil {
				errs <- fmt.Errorf("failed to decode document in %s: %w", r.key, err)
				return
			}
			select {
			case out <- doc:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("failed to scan document set %s: %w", r.key, err)
		}
	}()

	return out, errs
}
