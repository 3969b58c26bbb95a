package routes

import (
	"encoding/json"
	"net/http"

	"github.com/lexgraph/lexgraph/internal/queue"
	"github.com/lexgraph/lexgraph/internal/server/middleware"
	"github.com/lexgraph/lexgraph/internal/util"
	"github.com/lexgraph/lexgraph/pkg/extract"
	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"

	"github.com/labstack/echo/v4"
)

type ingestDocument struct {
	Text     string         `json:"text" validate:"required"`
	Metadata model.Metadata `json:"metadata"`
}

type ingestRequest struct {
	Documents []ingestDocument `json:"documents" validate:"required,min=1,dive"`
	Filter    json.RawMessage  `json:"filter,omitempty"`
}

// IngestHandler stages a document set for a collection and enqueues the
// extraction job. The call returns as soon as the job is queued; progress is
// observable through status events and the eventual graph contents.
func IngestHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	app := cc.App

	collectionID := c.Param("id")
	if collectionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing collection id"})
	}

	req := new(ingestRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if _, err := model.NewTenantID(cc.Auth.Tenant); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	// Reject malformed filters here instead of inside a queued job.
	if _, err := filter.ParseConfig(req.Filter); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	docs := make([]extract.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, extract.Document{Text: d.Text, Metadata: d.Metadata})
	}

	bucket := util.GetEnvString("AWS_BUCKET", "lexgraph")
	inputKey, err := queue.UploadDocuments(c.Request().Context(), app.S3, bucket, collectionID, docs)
	if err != nil {
		logger.Error("[Server] Failed to stage document set", "collection_id", collectionID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to stage documents"})
	}

	msg, err := json.Marshal(queue.ExtractJobMsg{
		Tenant:       cc.Auth.Tenant,
		CollectionID: collectionID,
		InputKey:     inputKey,
		Filter:       req.Filter,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue job"})
	}
	if err := queue.PublishJob(app.Queue, queue.ExtractQueue, msg); err != nil {
		logger.Error("[Server] Failed to publish extract job", "collection_id", collectionID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue job"})
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"collection_id": collectionID,
		"documents":     len(docs),
		"input_key":     inputKey,
	})
}
