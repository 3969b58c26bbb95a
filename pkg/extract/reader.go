package extract

import (
	"context"

	"github.com/lexgraph/lexgraph/pkg/model"
)

// Document is one unit of ingestable text with its caller-supplied metadata.
// Readers produce documents; the coordinator derives source identity from
// them, so a document needs no id of its own.
type Document struct {
	Text     string         `json:"text"`
	Metadata model.Metadata `json:"metadata"`
}

// DocumentReader yields the documents of one indexing run. Implementations
// wrap whatever the caller has (files, API payloads, queue messages) and are
// expected to be cheap to iterate; heavy IO belongs behind the channel.
type DocumentReader interface {
	// Read streams documents until the input is exhausted or ctx is
	// canceled. The document channel is closed when reading ends; the error
	// channel delivers at most one error.
	Read(ctx context.Context) (<-chan Document, <-chan error)
}

// SliceReader adapts an in-memory document slice to the reader interface.
type SliceReader struct {
	Documents []Document
}

func (r *SliceReader) Read(ctx context.Context) (<-chan Document, <-chan error) {
	out := make(chan Document)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, doc := range r.Documents {
			select {
			case out <- doc:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return out, errs
}
