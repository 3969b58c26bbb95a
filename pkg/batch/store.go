package batch

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/lexgraph/lexgraph/internal/storage"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore is the artifact store for batch job inputs and outputs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// URI renders the provider-facing location of a key.
	URI(key string) string
	// Key extracts the store key from a provider-facing URI.
	Key(uri string) (string, error)
}

// S3ObjectStore stores batch artifacts in an S3 bucket.
type S3ObjectStore struct {
	client *s3.Client
	bucket string
}

var _ ObjectStore = (*S3ObjectStore)(nil)

func NewS3ObjectStore(client *s3.Client, bucket string) *S3ObjectStore {
	return &S3ObjectStore{client: client, bucket: bucket}
}

func (s *S3ObjectStore) Put(ctx context.Context, key string, data []byte) error {
	return storage.PutObject(ctx, s.client, s.bucket, key, bytes.NewReader(data), "application/jsonl")
}

func (s *S3ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	return storage.GetObject(ctx, s.client, s.bucket, key)
}

func (s *S3ObjectStore) Delete(ctx context.Context, key string) error {
	return storage.DeleteObject(ctx, s.client, s.bucket, key)
}

func (s *S3ObjectStore) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func (s *S3ObjectStore) Key(uri string) (string, error) {
	prefix := fmt.Sprintf("s3://%s/", s.bucket)
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("uri %q is outside bucket %q", uri, s.bucket)
	}
	return strings.TrimPrefix(uri, prefix), nil
}
