package queue

import (
	"encoding/json"

	"github.com/lexgraph/lexgraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// ExtractJobMsg asks a worker to extract one ingested document set. The
// documents themselves live in the object store under InputKey; the message
// stays small regardless of corpus size.
type ExtractJobMsg struct {
	Tenant       string          `json:"tenant"`
	CollectionID string          `json:"collection_id"`
	InputKey     string          `json:"input_key"`
	Filter       json.RawMessage `json:"filter,omitempty"`
}

// BuildJobMsg asks a worker to materialize the staged chunks of a collection
// into the graph and vector stores.
type BuildJobMsg struct {
	Tenant       string          `json:"tenant"`
	CollectionID string          `json:"collection_id"`
	Filter       json.RawMessage `json:"filter,omitempty"`
}

// RepairJobMsg asks a worker to deduplicate the vector index of a tenant.
type RepairJobMsg struct {
	Tenant string `json:"tenant"`
	DryRun bool   `json:"dry_run"`
}

// StatusEvent reports a stage transition for interested subscribers. Events
// are best effort; pipeline correctness never depends on them.
type StatusEvent struct {
	Tenant       string         `json:"tenant"`
	CollectionID string         `json:"collection_id,omitempty"`
	Stage        string         `json:"stage"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	Detail       map[string]any `json:"detail,omitempty"`
}

func emitStatus(ch *amqp091.Channel, event StatusEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	routingKey := "jobs." + event.Stage
	if event.CollectionID != "" {
		routingKey = "jobs." + event.CollectionID + "." + event.Stage
	}
	if err := PublishStatus(ch, routingKey, data); err != nil {
		logger.Warn("[Queue] Failed to publish status event", "stage", event.Stage, "status", event.Status, "err", err)
	}
}
