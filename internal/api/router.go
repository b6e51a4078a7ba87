package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridhq/tablecache/internal/handlers"
	"github.com/gridhq/tablecache/internal/middleware"
	"github.com/gridhq/tablecache/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(queries *services.QueryService, metricsEnabled bool) (*gin.Engine, error) {
	if queries == nil {
		return nil, fmt.Errorf("query service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.CacheStatus())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.GET("/health", handlers.Health())
	if metricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	queryHandler, err := handlers.NewQueryHandler(queries)
	if err != nil {
		return nil, err
	}

	tables := r.Group("/api/tables")
	{
		tables.POST("/:tableID/query", queryHandler.Query)
		tables.GET("/:tableID/cache", queryHandler.CacheInfo)
	}

	return r, nil
}
