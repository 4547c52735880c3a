package dto

import "time"

type GetCurrentJobRequest struct {
	Imei string `form:"imei"`
}

type StartJobRequest struct {
	JobID     int64 `json:"job_id" binding:"required"`
	CurrentID int64 `json:"current_id" binding:"required"`
}

type FinishJobRequest struct {
	Token     string `json:"token" binding:"required"`
	ValuePage string `json:"value_page" binding:"required"`
	Imei      string `json:"imei"`
}

type ToolItemRequest struct {
	UserID      int64      `json:"user_id" binding:"required"`
	JobID       int64      `json:"id" binding:"required"`
	IP          string     `json:"ip"`
	Imei        string     `json:"imei"`
	Description string     `json:"description"`
	CreatedAt   *time.Time `json:"created_at"`
}

type FinishToolRequest struct {
	Items []ToolItemRequest `json:"items"`
}

type CancelJobRequest struct {
	Imei string `json:"imei"`
}

type ListTransactionsRequest struct {
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type TransactionDTO struct {
	ID          int64  `json:"id"`
	JobID       int64  `json:"job_id"`
	Money       int64  `json:"money"`
	Description string `json:"description,omitempty"`
	TimeInt     int64  `json:"time_int"`
	CreatedAt   string `json:"created_at"`
}

type ListTransactionsResponse struct {
	TotalMoney   int64            `json:"total_money"`
	Transactions []TransactionDTO `json:"transactions"`
	NextCursor   string           `json:"next_cursor,omitempty"`
}
