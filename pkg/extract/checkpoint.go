package extract

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type checkpointRecord struct {
	SourceID    string    `json:"source_id"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completed_at"`
}

// Checkpoint tracks which sources of a collection finished extraction.
// Records are appended to a JSONL file as sources complete, so a restarted
// run skips finished sources instead of re-extracting them. Appending after
// the sink write means a crash between the two re-emits a source; derived
// ids make that replay an upsert, never a duplicate.
type Checkpoint struct {
	path string

	mu   sync.Mutex
	file *os.File
	done map[string]bool
}

// OpenCheckpoint loads the checkpoint for a collection, creating the file
// when none exists.
func OpenCheckpoint(dir string, collectionID string) (*Checkpoint, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	path := filepath.Join(dir, collectionID+".jsonl")

	done := make(map[string]bool)
	if data, err := os.ReadFile(path); err == nil {
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var rec checkpointRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				// A torn trailing line from a crashed run is expected;
				// the source it belonged to is simply re-extracted.
				continue
			}
			if rec.Status == "completed" {
				done[rec.SourceID] = true
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}

	return &Checkpoint{path: path, file: file, done: done}, nil
}

// Contains reports whether the source already completed in a prior run.
func (c *Checkpoint) Contains(sourceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done[sourceID]
}

// MarkCompleted records a finished source. The record is flushed before
// returning so a crash immediately after never loses the completion.
func (c *Checkpoint) MarkCompleted(sourceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done[sourceID] {
		return nil
	}

	rec := checkpointRecord{
		SourceID:    sourceID,
		Status:      "completed",
		CompletedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := c.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append checkpoint record: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}

	c.done[sourceID] = true
	return nil
}

// Close releases the underlying file.
func (c *Checkpoint) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file.Close()
}
