package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thegunner2008/taskpay-be/internal/api/dto"
	"github.com/thegunner2008/taskpay-be/internal/api/middleware"
	"github.com/thegunner2008/taskpay-be/internal/api/service"
)

// GetCurrentJob handles GET /api/v1/jobs/current
// Returns the user's live claim, or assigns the next eligible job
func (h *JobHandler) GetCurrentJob(c *gin.Context) {
	userID := middleware.UserID(c)

	var req dto.GetCurrentJobRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	assignment, err := h.service.GetCurrentJob(c.Request.Context(), req.Imei, c.ClientIP(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, assignment)
}

// StartJob handles POST /api/v1/jobs/start
// Records the start timestamp and issues the signed claim token
func (h *JobHandler) StartJob(c *gin.Context) {
	userID := middleware.UserID(c)

	var req dto.StartJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.service.Start(c.Request.Context(), req.JobID, userID, req.CurrentID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// FinishJob handles POST /api/v1/jobs/finish
// Validates the completion proof and reconciles it into the ledger
func (h *JobHandler) FinishJob(c *gin.Context) {
	var req dto.FinishJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.service.Finish(c.Request.Context(), service.FinishInput{
		Token:     req.Token,
		ValuePage: req.ValuePage,
		DeviceID:  req.Imei,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// FinishTool handles POST /api/v1/jobs/finish_tool
// Trusted bulk completion import; rejects empty batches
func (h *JobHandler) FinishTool(c *gin.Context) {
	var req dto.FinishToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	items := make([]service.ToolItem, len(req.Items))
	for i, item := range req.Items {
		var createdAt time.Time
		if item.CreatedAt != nil {
			createdAt = *item.CreatedAt
		}
		items[i] = service.ToolItem{
			UserID:      item.UserID,
			JobID:       item.JobID,
			IP:          item.IP,
			DeviceID:    item.Imei,
			Description: item.Description,
			CreatedAt:   createdAt,
		}
	}

	if err := h.service.FinishTool(c.Request.Context(), items); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// CancelJob handles POST /api/v1/jobs/cancel
// Abandons the user's live claim, consuming its dedup slot
func (h *JobHandler) CancelJob(c *gin.Context) {
	userID := middleware.UserID(c)

	var req dto.CancelJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.service.Cancel(c.Request.Context(), userID, req.Imei, c.ClientIP()); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// RemainJobs handles GET /api/v1/jobs/remain
// Lists the catalog with live day counts
func (h *JobHandler) RemainJobs(c *gin.Context) {
	jobs, err := h.service.RemainJobs(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// ListTransactions handles GET /api/v1/transactions
// Pages through the user's ledger, newest first
func (h *JobHandler) ListTransactions(c *gin.Context) {
	userID := middleware.UserID(c)

	var req dto.ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeTransactionCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	history, err := h.service.TransactionHistory(c.Request.Context(), userID, req.PageSize, cursor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	txs := make([]dto.TransactionDTO, len(history.Transactions))
	for i, tx := range history.Transactions {
		txs[i] = dto.TransactionDTO{
			ID:          tx.ID,
			JobID:       tx.JobID,
			Money:       tx.Money,
			Description: tx.Description,
			TimeInt:     tx.TimeInt,
			CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
		}
	}

	var nextCursor string
	if history.HasMore {
		last := history.Transactions[len(history.Transactions)-1]
		nextCursor = EncodeTransactionCursor(last.CreatedAt, last.ID)
	}

	c.JSON(http.StatusOK, dto.ListTransactionsResponse{
		TotalMoney:   history.TotalMoney,
		Transactions: txs,
		NextCursor:   nextCursor,
	})
}

// CounterStatus handles GET /api/v1/debug/counters
// Dumps the counter store for operators
func (h *JobHandler) CounterStatus(c *gin.Context) {
	values, err := h.service.CounterSnapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to snapshot counters", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"counters": values})
}
