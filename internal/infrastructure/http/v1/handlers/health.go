package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"txkit/internal/core/tx"
	"txkit/internal/infrastructure/storage/postgres"
	"txkit/internal/infrastructure/storage/postgres/sessionmgr"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	manager *tx.Manager
	engine  tx.Engine
	sm      *sessionmgr.Manager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(manager *tx.Manager, engine tx.Engine) *HealthHandler {
	return &HealthHandler{
		manager: manager,
		engine:  engine,
		sm:      sessionmgr.New(manager),
	}
}

// Live handles the liveness check.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready runs "SELECT 1" inside a read-only transaction.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

func (h *HealthHandler) ping(ctx context.Context) (err error) {
	ctx, t, err := h.manager.CreateReadOnlyTransaction(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if _, closeErr := t.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = sessionmgr.Object[int](ctx, h.sm.SQL("SELECT 1"))
	return err
}

// Info returns application information with pool statistics.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{
		"app":     "txkit",
		"version": "0.1.0",
	}
	if pool, ok := h.engine.(*postgres.Pool); ok {
		body["database"] = pool.Stats()
	} else {
		body["database"] = gin.H{"pooled": false}
	}
	c.JSON(http.StatusOK, body)
}
