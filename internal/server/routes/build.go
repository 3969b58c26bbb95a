package routes

import (
	"encoding/json"
	"net/http"

	"github.com/lexgraph/lexgraph/internal/queue"
	"github.com/lexgraph/lexgraph/internal/server/middleware"
	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"

	"github.com/labstack/echo/v4"
)

type buildRequest struct {
	Filter json.RawMessage `json:"filter,omitempty"`
}

// BuildHandler enqueues a build of the staged chunks of a collection.
// Ingestion queues a build automatically; this route replays one, for
// example after changing the embeddable node types.
func BuildHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	app := cc.App

	collectionID := c.Param("id")
	if collectionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing collection id"})
	}

	req := new(buildRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if _, err := model.NewTenantID(cc.Auth.Tenant); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if _, err := filter.ParseConfig(req.Filter); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	msg, err := json.Marshal(queue.BuildJobMsg{
		Tenant:       cc.Auth.Tenant,
		CollectionID: collectionID,
		Filter:       req.Filter,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue job"})
	}
	if err := queue.PublishJob(app.Queue, queue.BuildQueue, msg); err != nil {
		logger.Error("[Server] Failed to publish build job", "collection_id", collectionID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue job"})
	}

	return c.JSON(http.StatusAccepted, map[string]any{"collection_id": collectionID})
}
