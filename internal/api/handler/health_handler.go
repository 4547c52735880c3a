package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thegunner2008/taskpay-be/shared/postgresql"
	"github.com/thegunner2008/taskpay-be/shared/rabbitmq"
	"github.com/thegunner2008/taskpay-be/shared/redisdb"
)

// HealthHandler reports the service's own liveness and the state of its
// backing infrastructure.
type HealthHandler struct {
	logger *slog.Logger
	db     *postgresql.Client
	redis  *redisdb.Client
	rabbit *rabbitmq.Client
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger: deps.Logger,
		db:     deps.DB,
		redis:  deps.Redis,
		rabbit: deps.Rabbit,
	}
}

// Health responds 200 when every dependency answers, 503 otherwise. Each
// dependency reports individually so an operator can see which one is down.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	checks := gin.H{}
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			checks["database"] = "unhealthy"
			healthy = false
		} else {
			checks["database"] = "healthy"
		}
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			checks["redis"] = "unhealthy"
			healthy = false
		} else {
			checks["redis"] = "healthy"
		}
	}

	if h.rabbit != nil {
		if h.rabbit.IsConnected() {
			checks["rabbitmq"] = "healthy"
		} else {
			checks["rabbitmq"] = "unhealthy"
			healthy = false
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
		h.logger.Warn("Health check failed", slog.Any("checks", checks))
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "taskpay-api-service",
		"checks":  checks,
	})
}
