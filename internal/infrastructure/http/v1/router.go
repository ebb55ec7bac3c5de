// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"txkit/internal/core/tx"
	"txkit/internal/domain/person"
	"txkit/internal/infrastructure/http/v1/handlers"
	"txkit/internal/infrastructure/http/v1/middleware"
	"txkit/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Manager opens transactions for health checks
	Manager *tx.Manager

	// Engine backs Manager; pool statistics are reported when it is a pool
	Engine tx.Engine

	// Persons is the transactional person DAO
	Persons person.DAO

	// Logger for request logging
	Logger *logger.Logger

	// Debug switches Gin to debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Manager, cfg.Engine)
	health := router.Group("/health")
	{
		health.GET("", healthHandler.Live)
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()
	personHandler := handlers.NewPersonHandler(base, cfg.Persons)

	api := router.Group("/api/v1")
	persons := api.Group("/persons")
	{
		persons.POST("", personHandler.Create)
		persons.GET("", personHandler.List)
		persons.POST("/import", personHandler.Import)
		persons.GET("/:id", personHandler.Get)
		persons.DELETE("/:id", personHandler.Delete)
	}

	return router
}
