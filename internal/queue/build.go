package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lexgraph/lexgraph/internal/util"
	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/build"
	"github.com/lexgraph/lexgraph/pkg/config"
	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/leaselock"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/sink"
	pgstore "github.com/lexgraph/lexgraph/pkg/store/pgx"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
)

// ProcessBuildMessage materializes the staged chunks of a collection into
// the graph and vector stores. Builds are idempotent: ids are derived from
// content, so replaying a message upserts instead of duplicating.
func ProcessBuildMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	aiClient ai.Client,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
	cfg config.Config,
	msg string,
) error {
	data := new(BuildJobMsg)
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

	st := pgstore.NewStoreWithConnection(conn)
	builder, err := build.NewBuilder(build.NewBuilderParams{
		Client:  aiClient,
		Graph:   st,
		Vectors: st,
		Config:  cfg.Build,
		Tenant:  tenant,
		Filter:  sourceFilter,
	})
	if err != nil {
		return err
	}

	lock := leaselock.New(conn)
	var summary *build.Summary
	err = lock.WithLease(ctx, leaselock.CollectionKey(tenant, data.CollectionID), leaselock.Options{
		TTL:          10 * time.Minute,
		Wait:         true,
		HolderPrefix: "build/",
	}, func(ctx context.Context) error {
		var runErr error
		summary, runErr = builder.Run(ctx, data.CollectionID, chunkSink)
		return runErr
	})
	if err != nil {
		emitStatus(ch, StatusEvent{
			Tenant:       data.Tenant,
			CollectionID: data.CollectionID,
			Stage:        "build",
			Status:       "failed",
			Error:        err.Error(),
		})
		return err
	}

	emitStatus(ch, StatusEvent{
		Tenant:       data.Tenant,
		CollectionID: data.CollectionID,
		Stage:        "build",
		Status:       "completed",
		Detail: map[string]any{
			"chunks_built":    summary.ChunksBuilt.Load(),
			"nodes_written":   summary.NodesWritten.Load(),
			"vectors_written": summary.VectorsWritten.Load(),
		},
	})
	return nil
}
