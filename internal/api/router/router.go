package router

import (
	"github.com/gin-gonic/gin"

	"github.com/thegunner2008/taskpay-be/internal/api/handler"
	"github.com/thegunner2008/taskpay-be/internal/api/middleware"
)

// Config holds what the router needs beyond the handler dependencies
type Config struct {
	SessionSecret string
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, cfg *Config) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS())

	// Health check endpoint, probes every backing dependency
	healthHandler := handler.NewHealthHandler(deps)
	r.GET("/health", healthHandler.Health)

	// Initialize job handler
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes, all behind session auth
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.SessionSecret))
	{
		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs/current - Return or assign the user's claim
			jobs.GET("/current", jobHandler.GetCurrentJob)

			// POST /api/v1/jobs/start - Record start and issue claim token
			jobs.POST("/start", jobHandler.StartJob)

			// POST /api/v1/jobs/finish - Validate proof and commit completion
			jobs.POST("/finish", jobHandler.FinishJob)

			// POST /api/v1/jobs/finish_tool - Trusted bulk completion import
			jobs.POST("/finish_tool", jobHandler.FinishTool)

			// POST /api/v1/jobs/cancel - Abandon the live claim
			jobs.POST("/cancel", jobHandler.CancelJob)

			// GET /api/v1/jobs/remain - Catalog with live day counts
			jobs.GET("/remain", jobHandler.RemainJobs)
		}

		// GET /api/v1/transactions - Ledger history with cursor pagination
		v1.GET("/transactions", jobHandler.ListTransactions)

		// GET /api/v1/debug/counters - Counter store snapshot
		v1.GET("/debug/counters", jobHandler.CounterStatus)
	}

	return r
}
