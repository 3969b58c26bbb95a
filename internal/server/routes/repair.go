package routes

import (
	"encoding/json"
	"net/http"

	"github.com/lexgraph/lexgraph/internal/queue"
	"github.com/lexgraph/lexgraph/internal/server/middleware"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"

	"github.com/labstack/echo/v4"
)

type repairRequest struct {
	DryRun bool `json:"dry_run,omitempty"`
}

// RepairHandler enqueues a vector index repair for the caller's tenant.
func RepairHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	app := cc.App

	req := new(repairRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if _, err := model.NewTenantID(cc.Auth.Tenant); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	msg, err := json.Marshal(queue.RepairJobMsg{
		Tenant: cc.Auth.Tenant,
		DryRun: req.DryRun,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue job"})
	}
	if err := queue.PublishJob(app.Queue, queue.RepairQueue, msg); err != nil {
		logger.Error("[Server] Failed to publish repair job", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue job"})
	}

	return c.JSON(http.StatusAccepted, map[string]any{"dry_run": req.DryRun})
}
