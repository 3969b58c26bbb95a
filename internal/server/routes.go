package server

import (
	"github.com/lexgraph/lexgraph/internal/server/middleware"
	"github.com/lexgraph/lexgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Indexing routes
	apiRoutes.POST("/collections/:id/ingest", routes.IngestHandler, middleware.RequirePermission("collection.ingest"))
	apiRoutes.POST("/collections/:id/build", routes.BuildHandler, middleware.RequirePermission("collection.build"))

	// Query routes
	apiRoutes.POST("/query", routes.QueryHandler, middleware.RequirePermission("collection.query"))

	// Maintenance routes
	apiRoutes.POST("/repair", routes.RepairHandler, middleware.RequirePermission("index.repair"))
}
