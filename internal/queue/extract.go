package queue

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/lexgraph/lexgraph/internal/storage"
	"github.com/lexgraph/lexgraph/internal/util"
	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/batch"
	"github.com/lexgraph/lexgraph/pkg/config"
	"github.com/lexgraph/lexgraph/pkg/extract"
	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/leaselock"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/sink"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
)

// ProcessExtractMessage runs the extraction stage for one staged document
// set and, on success, enqueues the build stage for the collection. The
// collection lease serializes runs so checkpoint and sink writes never
// interleave between workers.
func ProcessExtractMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	aiClient ai.Client,
	batchClient ai.BatchInferenceClient,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
	cfg config.Config,
	msg string,
) error {
	data := new(ExtractJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	tenant, err := model.NewTenantID(data.Tenant)
	if err != nil {
		return err
	}
	sourceFilter, err := filter.ParseConfig(data.Filter)
	if err != nil {
		return err
	}

	bucket := util.GetEnvString("AWS_BUCKET", "lexgraph")
	chunkSink := sink.NewS3Sink(sink.NewS3SinkParams{
		Client: s3Client,
		Bucket: bucket,
		Prefix: "chunks/" + tenant.String(),
	})

	var batchProcessor extract.BatchProcessor
	if cfg.Batch.Enabled && batchClient != nil {
		adapter, err := batch.NewAdapter(batch.NewAdapterParams{
			Client:          batchClient,
			Store:           batch.NewS3ObjectStore(s3Client, cfg.Batch.Bucket),
			Config:          cfg.Batch,
			Tenant:          tenant,
			Classifications: cfg.Extraction.EntityClassifications,
		})
		if err != nil {
			return err
		}
		batchProcessor = adapter
	}

	checkpointDir := filepath.Join(
		util.GetEnvString("CHECKPOINT_DIR", "/var/lib/lexgraph/checkpoints"),
		tenant.String(),
	)

	coordinator, err := extract.NewCoordinator(extract.NewCoordinatorParams{
		Client:        aiClient,
		Config:        cfg.Extraction,
		Tenant:        tenant,
		Sink:          chunkSink,
		CheckpointDir: checkpointDir,
		Filter:        sourceFilter,
		Batch:         batchProcessor,
	})
	if err != nil {
		return err
	}

	reader := &s3DocumentReader{client: s3Client, bucket: bucket, key: data.InputKey}

	lock := leaselock.New(conn)
	var summary *extract.RunSummary
	err = lock.WithLease(ctx, leaselock.CollectionKey(tenant, data.CollectionID), leaselock.Options{
		TTL:          10 * time.Minute,
		Wait:         true,
		HolderPrefix: "extract/",
	}, func(ctx context.Context) error {
		var runErr error
		summary, runErr = coordinator.Run(ctx, data.CollectionID, reader)
		return runErr
	})
	if err != nil {
		emitStatus(ch, StatusEvent{
			Tenant:       data.Tenant,
			CollectionID: data.CollectionID,
			Stage:        "extract",
			Status:       "failed",
			Error:        err.Error(),
		})
		return err
	}

	// The staged document set is consumed; checkpoints carry the state now.
	if err := storage.DeleteObject(ctx, s3Client, bucket, data.InputKey); err != nil {
		logger.Warn("[Queue] Failed to delete staged document set", "key", data.InputKey, "err", err)
	}

	emitStatus(ch, StatusEvent{
		Tenant:       data.Tenant,
		CollectionID: data.CollectionID,
		Stage:        "extract",
		Status:       "completed",
		Detail: map[string]any{
			"sources_succeeded": summary.SourcesSucceeded.Load(),
			"sources_failed":    summary.SourcesFailed.Load(),
			"chunks_emitted":    summary.ChunksEmitted.Load(),
		},
	})

	buildMsg, err := json.Marshal(BuildJobMsg{
		Tenant:       data.Tenant,
		CollectionID: data.CollectionID,
		Filter:       data.Filter,
	})
	if err != nil {
		return err
	}
	return PublishJob(ch, BuildQueue, buildMsg)
}
