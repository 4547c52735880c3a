package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/thegunner2008/taskpay-be/internal/api/domain"
)

// Storage handles all database operations for the reconciler
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ListTransactionsByUser returns the user's full transaction set, the source
// of truth for the aggregate rebuild.
func (s *Storage) ListTransactionsByUser(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	query := `
		SELECT id, user_id, job_id, ip, device_id, money, description, time_int, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY id
	`

	var txs []domain.Transaction
	if err := s.db.SelectContext(ctx, &txs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return txs, nil
}

// UpsertTotal overwrites the user's aggregate row
func (s *Storage) UpsertTotal(ctx context.Context, total domain.Total) error {
	query := `
		INSERT INTO totals (user_id, count_transaction, total, count_job)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET count_transaction = EXCLUDED.count_transaction,
		    total = EXCLUDED.total,
		    count_job = EXCLUDED.count_job
	`

	_, err := s.db.ExecContext(ctx, query, total.UserID, total.CountTransaction, total.Total, total.CountJob)
	if err != nil {
		return fmt.Errorf("failed to upsert total: %w", err)
	}

	s.logger.Debug("Total reconciled",
		slog.Int64("user_id", total.UserID),
		slog.Int("count_transaction", total.CountTransaction),
		slog.Int64("total", total.Total),
		slog.Int("count_job", total.CountJob),
	)

	return nil
}
