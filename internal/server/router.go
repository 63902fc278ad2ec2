package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/dedupehq/dedupe-backend/internal/handlers"
  "github.com/dedupehq/dedupe-backend/internal/middleware"
)

type RouterConfig struct {
  AllowOrigins   []string
  AuthMiddleware *middleware.AuthMiddleware
  IngestHandler  *handlers.IngestHandler
  JobsHandler    *handlers.JobsHandler
  SearchHandler  *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  allowOrigins := cfg.AllowOrigins
  if len(allowOrigins) == 0 {
    allowOrigins = []string{"http://localhost:3000"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     allowOrigins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)

// ===============
// || Protected ||
// ===============
  api := router.Group("/api")
  api.Use(cfg.AuthMiddleware.RequireAuth())
  {
    // Ingest
    api.POST("/ingest", cfg.IngestHandler.Enqueue)
    // Jobs
    api.GET("/jobs", cfg.JobsHandler.List)
    api.GET("/jobs/stale", cfg.JobsHandler.ListStale)
    api.GET("/jobs/:id", cfg.JobsHandler.Status)
    api.POST("/jobs/:id/cancel", cfg.JobsHandler.Cancel)
    api.GET("/jobs/:id/failures", cfg.JobsHandler.Failures)
    // Search
    api.POST("/search", cfg.SearchHandler.Search)
    api.POST("/records/delete", cfg.SearchHandler.BulkDelete)
  }

  return router
}
