package routes

import (
	"encoding/json"
	"net/http"

	"github.com/lexgraph/lexgraph/internal/server/middleware"
	"github.com/lexgraph/lexgraph/pkg/filter"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/query"
	"github.com/lexgraph/lexgraph/pkg/retrieval"
	pgstore "github.com/lexgraph/lexgraph/pkg/store/pgx"

	"github.com/labstack/echo/v4"
)

type queryRequest struct {
	Question string `json:"question" validate:"required"`
	// Retriever selects the strategy: "traversal" (default) or "semantic".
	Retriever string          `json:"retriever,omitempty" validate:"omitempty,oneof=traversal semantic"`
	TopK      int             `json:"top_k,omitempty" validate:"omitempty,min=1,max=100"`
	Expand    bool            `json:"expand,omitempty"`
	Filter    json.RawMessage `json:"filter,omitempty"`
}

type queryResult struct {
	NodeID   string   `json:"node_id"`
	NodeType string   `json:"node_type"`
	Score    float64  `json:"score"`
	SourceID string   `json:"source_id,omitempty"`
	Anchors  []string `json:"anchors,omitempty"`

	Properties map[string]any `json:"properties,omitempty"`
}

// QueryHandler answers a question over the caller's graph synchronously.
func QueryHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	app := cc.App

	req := new(queryRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	tenant, err := model.NewTenantID(cc.Auth.Tenant)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	queryFilter, err := filter.ParseConfig(req.Filter)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	st := pgstore.NewStoreWithConnection(app.DB)

	var retriever retrieval.Retriever
	switch req.Retriever {
	case "semantic":
		retriever, err = retrieval.NewSemanticRetriever(retrieval.NewSemanticRetrieverParams{
			Client:  app.AiClient,
			Graph:   st,
			Vectors: st,
			Tenant:  tenant,
			TopK:    req.TopK,
			Expand:  req.Expand,
		})
	default:
		retriever, err = retrieval.NewTraversalRetriever(retrieval.NewTraversalRetrieverParams{
			Client:  app.AiClient,
			Graph:   st,
			Vectors: st,
			Tenant:  tenant,
			TopK:    req.TopK,
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build retriever"})
	}

	engine, err := query.NewEngine(query.NewEngineParams{
		Client:    app.AiClient,
		Retriever: retriever,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build query engine"})
	}

	answer, err := engine.Ask(c.Request().Context(), req.Question, retrieval.Params{
		Query:  req.Question,
		TopK:   req.TopK,
		Filter: queryFilter,
	})
	if err != nil {
		logger.Error("[Server] Query failed", "tenant", tenant.String(), "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Query failed"})
	}

	results := make([]queryResult, 0, len(answer.Results))
	for _, r := range answer.Results {
		results = append(results, queryResult{
			NodeID:     r.Node.ID,
			NodeType:   string(r.Node.Type),
			Score:      r.Score,
			SourceID:   r.SourceID,
			Anchors:    r.Anchors,
			Properties: r.Node.Properties,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"answer":  answer.Text,
		"results": results,
	})
}
