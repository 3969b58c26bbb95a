package ai

import "context"

// JobStatus is the lifecycle state of an asynchronous batch inference job.
type JobStatus string

const (
	JobSubmitted  JobStatus = "submitted"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// BatchInferenceClient is the provider contract for asynchronous bulk
// inference over a file of records. Input and output are object-store URIs;
// writing the input object and reading the output object are the batch
// adapter's responsibility, not the provider's.
type BatchInferenceClient interface {
	// SubmitBatch starts a job over the records at inputURI and returns the
	// provider job id.
	SubmitBatch(ctx context.Context, inputURI string) (string, error)

	// GetJobStatus reports the current state of a job.
	GetJobStatus(ctx context.Context, jobID string) (JobStatus, error)

	// GetJobOutput returns the output object URI of a completed job.
	GetJobOutput(ctx context.Context, jobID string) (string, error)
}
