package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lexgraph/lexgraph/pkg/model"
)

// FileSystemSink stores chunk batches as JSONL files under a root directory,
// one subdirectory per collection. Batch files are numbered in write order.
type FileSystemSink struct {
	root string

	mu      sync.Mutex
	counter map[string]int
}

var _ ChunkSink = (*FileSystemSink)(nil)

// NewFileSystemSink creates a filesystem sink rooted at dir.
func NewFileSystemSink(dir string) (*FileSystemSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sink root: %w", err)
	}
	return &FileSystemSink{
		root:    dir,
		counter: make(map[string]int),
	}, nil
}

func (s *FileSystemSink) collectionDir(collectionID string) string {
	return filepath.Join(s.root, collectionID)
}

func (s *FileSystemSink) Write(ctx context.Context, collectionID string, chunks []model.ExtractedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := s.collectionDir(collectionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create collection dir: %w", err)
	}

	s.mu.Lock()
	seq := s.counter[collectionID]
	s.counter[collectionID] = seq + 1
	s.mu.Unlock()

	path := filepath.Join(dir, fmt.Sprintf("batch-%06d.jsonl", seq))
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create batch file: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, chunk := range chunks {
		if err := enc.Encode(chunk); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("failed to encode chunk %s: %w", chunk.Chunk.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	// Rename makes the batch visible atomically; readers never observe a
	// half-written file.
	return os.Rename(tmp, path)
}

func (s *FileSystemSink) Iterate(ctx context.Context, collectionID string) (<-chan []model.ExtractedChunk, <-chan error) {
	out := make(chan []model.ExtractedChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		dir := s.collectionDir(collectionID)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			errs <- err
			return
		}

		var files []string
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
				continue
			}
			files = append(files, entry.Name())
		}
		sort.Strings(files)

		for _, name := range files {
			batch, err := readBatchFile(filepath.Join(dir, name))
			if err != nil {
				errs <- fmt.Errorf("failed to read batch %s: %w", name, err)
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

func readBatchFile(path string) ([]model.ExtractedChunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var batch []model.ExtractedChunk
	scanner := bufio.NewScanner(f)
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
