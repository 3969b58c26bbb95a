package queue

import (
	"context"
	"encoding/json"

	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/repair"
	pgstore "github.com/lexgraph/lexgraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
)

// ProcessRepairMessage deduplicates the vector index of a tenant.
func ProcessRepairMessage(
	ctx context.Context,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(RepairJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	tenant, err := model.NewTenantID(data.Tenant)
	if err != nil {
		return err
	}

	st := pgstore.NewStoreWithConnection(conn)
	repairer, err := repair.NewRepairer(repair.NewRepairerParams{
		Graph:   st,
		Vectors: st,
		DryRun:  data.DryRun,
	})
	if err != nil {
		return err
	}

	counts, err := repairer.Run(ctx, tenant)
	if err != nil {
		emitStatus(ch, StatusEvent{
			Tenant: data.Tenant,
			Stage:  "repair",
			Status: "failed",
			Error:  err.Error(),
		})
		return err
	}

	logger.Info("[Queue] Repair finished",
		"tenant", tenant.String(),
		"dry_run", data.DryRun,
		"node_ids", counts.TotalNodeIDs,
		"doc_ids", counts.TotalDocIDs,
		"deleted_doc_ids", counts.TotalDeletedDocIDs,
		"unindexed", counts.TotalUnindexed,
	)

	emitStatus(ch, StatusEvent{
		Tenant: data.Tenant,
		Stage:  "repair",
		Status: "completed",
		Detail: map[string]any{
			"total_node_ids":        counts.TotalNodeIDs,
			"total_doc_ids":         counts.TotalDocIDs,
			"total_deleted_doc_ids": counts.TotalDeletedDocIDs,
			"total_unindexed":       counts.TotalUnindexed,
			"dry_run":               data.DryRun,
		},
	})
	return nil
}
