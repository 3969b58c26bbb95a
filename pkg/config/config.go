package config

import (
	"fmt"
	"time"

	"github.com/lexgraph/lexgraph/internal/util"

	"github.com/go-playground/validator"
)

// ExtractionConfig controls the extraction stage of the indexing pipeline.
type ExtractionConfig struct {
	// BatchSize is the number of source documents per unit of work.
	BatchSize int `validate:"min=1"`
	// Workers bounds the number of batches processed concurrently.
	Workers int `validate:"min=1"`
	// ChunkWorkers bounds concurrent chunk extractions within a batch.
	ChunkWorkers int `validate:"min=1"`
	// ExtractPropositions enables the optional proposition rewrite before
	// structure extraction. Skipping it trades answer quality for one less
	// model call per chunk.
	ExtractPropositions bool
	// TargetChunkTokens is the token budget per chunk.
	TargetChunkTokens int `validate:"min=1"`
	// OverlapSentences is the number of trailing sentences repeated at the
	// start of the next chunk.
	OverlapSentences int `validate:"min=0"`
	// TokenEncoder names the tiktoken encoding used for chunk budgeting.
	TokenEncoder string `validate:"required"`
	// MaxRetries bounds per-chunk retry attempts.
	MaxRetries int `validate:"min=1"`
	// RetryBaseDelay is the initial backoff delay between chunk retries.
	RetryBaseDelay time.Duration
	// EntityClassifications lists the entity classifications offered to the
	// structure extractor. Empty uses the default set.
	EntityClassifications []string
}

// BatchInferenceConfig controls the asynchronous batch-inference path.
type BatchInferenceConfig struct {
	Enabled bool
	// MinBatchSize routes smaller chunk batches to synchronous extraction.
	MinBatchSize int `validate:"min=1"`
	// MaxBatchSize caps the records submitted as one job.
	MaxBatchSize int `validate:"min=1"`
	// MaxConcurrentJobs bounds in-flight jobs per worker.
	MaxConcurrentJobs int `validate:"min=1"`
	// PollInterval is the sleep between job status checks.
	PollInterval time.Duration
	// MaxJobRetries bounds resubmissions of a failed job.
	MaxJobRetries int `validate:"min=1"`
	// KeepArtifacts retains local temporary input/output files on success.
	KeepArtifacts bool
	// Bucket and KeyPrefix locate batch artifacts in the object store.
	Bucket    string
	KeyPrefix string
}

// BuildConfig controls the graph/vector build stage.
type BuildConfig struct {
	// Workers bounds concurrent chunk builds.
	Workers int `validate:"min=1"`
	// BatchWriteSize switches to bulk store writes at or above this many
	// nodes per flush; 1 writes per-node.
	BatchWriteSize int `validate:"min=1"`
	// EmbeddableTypes selects the node types written to the vector store.
	EmbeddableTypes []string `validate:"required,min=1"`
}

// Config is the explicit pipeline configuration passed into constructors.
// There is no ambient global configuration; the composition point (cmd) owns
// the single process-wide instance.
type Config struct {
	Extraction ExtractionConfig
	Batch      BatchInferenceConfig
	Build      BuildConfig
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Extraction: ExtractionConfig{
			BatchSize:           10,
			Workers:             2,
			ChunkWorkers:        8,
			ExtractPropositions: true,
			TargetChunkTokens:   600,
			OverlapSentences:    1,
			TokenEncoder:        "o200k_base",
			MaxRetries:          3,
			RetryBaseDelay:      500 * time.Millisecond,
		},
		Batch: BatchInferenceConfig{
			Enabled:           false,
			MinBatchSize:      100,
			MaxBatchSize:      25000,
			MaxConcurrentJobs: 3,
			PollInterval:      30 * time.Second,
			MaxJobRetries:     2,
		},
		Build: BuildConfig{
			Workers:         4,
			BatchWriteSize:  100,
			EmbeddableTypes: []string{"Chunk", "Statement"},
		},
	}
}

// FromEnv returns the default configuration overridden from the process
// environment. Only the knobs that vary between deployments are exposed;
// everything else keeps its default.
func FromEnv() Config {
	cfg := Default()

	cfg.Extraction.BatchSize = util.GetEnvInt("EXTRACT_BATCH_SIZE", cfg.Extraction.BatchSize)
	cfg.Extraction.Workers = util.GetEnvInt("EXTRACT_WORKERS", cfg.Extraction.Workers)
	cfg.Extraction.ChunkWorkers = util.GetEnvInt("EXTRACT_CHUNK_WORKERS", cfg.Extraction.ChunkWorkers)
	cfg.Extraction.ExtractPropositions = util.GetEnvBool("EXTRACT_PROPOSITIONS", cfg.Extraction.ExtractPropositions)
	cfg.Extraction.TargetChunkTokens = util.GetEnvInt("EXTRACT_CHUNK_TOKENS", cfg.Extraction.TargetChunkTokens)
	cfg.Extraction.TokenEncoder = util.GetEnvString("EXTRACT_TOKEN_ENCODER", cfg.Extraction.TokenEncoder)

	cfg.Batch.Enabled = util.GetEnvBool("BATCH_INFERENCE_ENABLED", cfg.Batch.Enabled)
	cfg.Batch.MinBatchSize = util.GetEnvInt("BATCH_MIN_SIZE", cfg.Batch.MinBatchSize)
	cfg.Batch.MaxBatchSize = util.GetEnvInt("BATCH_MAX_SIZE", cfg.Batch.MaxBatchSize)
	cfg.Batch.MaxConcurrentJobs = util.GetEnvInt("BATCH_MAX_CONCURRENT_JOBS", cfg.Batch.MaxConcurrentJobs)
	cfg.Batch.Bucket = util.GetEnvString("BATCH_BUCKET", util.GetEnvString("AWS_BUCKET", ""))
	cfg.Batch.KeyPrefix = util.GetEnvString("BATCH_KEY_PREFIX", "batch")

	cfg.Build.Workers = util.GetEnvInt("BUILD_WORKERS", cfg.Build.Workers)
	cfg.Build.BatchWriteSize = util.GetEnvInt("BUILD_BATCH_WRITE_SIZE", cfg.Build.BatchWriteSize)

	return cfg
}

// Validate fails fast on configuration errors. It is called by pipeline
// constructors; an invalid config never reaches a running stage.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Batch.Enabled && c.Batch.MinBatchSize > c.Batch.MaxBatchSize {
		return fmt.Errorf("invalid configuration: batch MinBatchSize %d exceeds MaxBatchSize %d", c.Batch.MinBatchSize, c.Batch.MaxBatchSize)
	}
	if c.Batch.Enabled && c.Batch.Bucket == "" {
		return fmt.Errorf("invalid configuration: batch inference requires a bucket")
	}
	for _, t := range c.Build.EmbeddableTypes {
		if !embeddableTypes[t] {
			return fmt.Errorf("invalid configuration: %q is not an embeddable node type", t)
		}
	}
	return nil
}

// embeddableTypes lists the node types the vector indexer can embed.
// Entities are reached through graph edges only and are never embedded.
var embeddableTypes = map[string]bool{
	"Chunk":     true,
	"Topic":     true,
	"Statement": true,
}
