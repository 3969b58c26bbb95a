package extract

import (
	"sync/atomic"
	"time"
)

// RunSummary aggregates the outcome counters of one extraction run. Counters
// are updated concurrently by the worker pools and read once at the end.
type RunSummary struct {
	SourcesTotal     atomic.Int64
	SourcesSkipped   atomic.Int64
	SourcesFiltered  atomic.Int64
	SourcesSucceeded atomic.Int64
	SourcesFailed    atomic.Int64
	ChunksEmitted    atomic.Int64
	ChunksFailed     atomic.Int64
	Retries          atomic.Int64

	started time.Time
}

func newRunSummary() *RunSummary {
	return &RunSummary{started: time.Now()}
}

// Duration returns the elapsed time since the run started.
func (s *RunSummary) Duration() time.Duration {
	return time.Since(s.started)
}

// Fields renders the summary as key-value pairs for structured logging.
func (s *RunSummary) Fields() []any {
	return []any{
		"sources_total", s.SourcesTotal.Load(),
		"sources_skipped", s.SourcesSkipped.Load(),
		"sources_filtered", s.SourcesFiltered.Load(),
		"sources_succeeded", s.SourcesSucceeded.Load(),
		"sources_failed", s.SourcesFailed.Load(),
		"chunks_emitted", s.ChunksEmitted.Load(),
		"chunks_failed", s.ChunksFailed.Load(),
		"retries", s.Retries.Load(),
		"duration", s.Duration().Round(time.Millisecond).String(),
	}
}
