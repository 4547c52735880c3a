package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thegunner2008/taskpay-be/internal/api/domain"
	"github.com/thegunner2008/taskpay-be/internal/api/service"
	"github.com/thegunner2008/taskpay-be/shared/postgresql"
	"github.com/thegunner2008/taskpay-be/shared/rabbitmq"
	"github.com/thegunner2008/taskpay-be/shared/redisdb"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Service *service.JobService

	// Infrastructure clients, probed by the health endpoint
	DB     *postgresql.Client
	Redis  *redisdb.Client
	Rabbit *rabbitmq.Client
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	service *service.JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		service: deps.Service,
	}
}

// respondError maps the domain error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is an infrastructure failure and stays a 500 so the
// caller can retry instead of treating it as a client fault.
func (h *JobHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrCurrentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrClaimConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrInvalidProof),
		errors.Is(err, domain.ErrStartTimeout),
		errors.Is(err, domain.ErrEmptyBatch),
		errors.Is(err, domain.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		h.logger.Error("Request failed",
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
