package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/thegunner2008/taskpay-be/internal/api/domain"
	"github.com/thegunner2008/taskpay-be/shared/postgresql"
)

const jobColumns = `
	id, money, total, count, max_day, factor, "time",
	finish_at, is_stop, reset_day, value_page, key_page, created_at
`

// Storage handles all database operations for the API service
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// GetJobByID retrieves a catalog job by its id
func (s *Storage) GetJobByID(ctx context.Context, jobID int64) (*domain.Job, error) {
	query := `SELECT` + jobColumns + `FROM jobs WHERE id = $1`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListOpenJobs returns catalog jobs that are not stopped, not expired and not
// past their lifetime cap, in catalog order.
func (s *Storage) ListOpenJobs(ctx context.Context, now time.Time) ([]domain.Job, error) {
	query := `
		SELECT` + jobColumns + `
		FROM jobs
		WHERE is_stop = FALSE
		  AND (finish_at IS NULL OR finish_at >= $1)
		  AND count < total
		ORDER BY id
	`

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, now); err != nil {
		return nil, fmt.Errorf("failed to list open jobs: %w", err)
	}

	return jobs, nil
}

// ListJobs returns the full catalog in catalog order
func (s *Storage) ListJobs(ctx context.Context) ([]domain.Job, error) {
	query := `SELECT` + jobColumns + `FROM jobs ORDER BY id`

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// UserExists reports whether the user row exists
func (s *Storage) UserExists(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, userID); err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}

	return exists, nil
}

// BlockedJobIDs returns the distinct job ids this device has already completed
// within each job's current dedup bucket. dayNumber is whole days since epoch;
// dividing it by the job's own reset_day yields that job's live bucket key.
func (s *Storage) BlockedJobIDs(ctx context.Context, deviceID string, dayNumber int64) ([]int64, error) {
	query := `
		SELECT DISTINCT t.job_id
		FROM transactions t
		JOIN jobs j ON j.id = t.job_id
		WHERE t.device_id = $1
		  AND t.time_int >= $2 / GREATEST(j.reset_day, 1)
	`

	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, query, deviceID, dayNumber); err != nil {
		return nil, fmt.Errorf("failed to get blocked job ids: %w", err)
	}

	return ids, nil
}

// GetCurrentByUserID returns the user's oldest live claim, or ErrCurrentNotFound
func (s *Storage) GetCurrentByUserID(ctx context.Context, userID int64) (*domain.Current, error) {
	query := `
		SELECT id, user_id, job_id, created_at
		FROM currents
		WHERE user_id = $1
		ORDER BY id
		LIMIT 1
	`

	var current domain.Current
	err := s.db.GetContext(ctx, &current, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCurrentNotFound
		}
		return nil, fmt.Errorf("failed to get current: %w", err)
	}

	return &current, nil
}

// GetCurrentByID returns a claim by id, or ErrCurrentNotFound
func (s *Storage) GetCurrentByID(ctx context.Context, currentID int64) (*domain.Current, error) {
	query := `
		SELECT id, user_id, job_id, created_at
		FROM currents
		WHERE id = $1
	`

	var current domain.Current
	err := s.db.GetContext(ctx, &current, query, currentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCurrentNotFound
		}
		return nil, fmt.Errorf("failed to get current: %w", err)
	}

	return &current, nil
}

// DeleteOtherCurrents removes duplicate claims for a user, keeping keepID.
// Rows predating the unique index can still carry duplicates.
func (s *Storage) DeleteOtherCurrents(ctx context.Context, userID, keepID int64) error {
	query := `DELETE FROM currents WHERE user_id = $1 AND id != $2`

	if _, err := s.db.ExecContext(ctx, query, userID, keepID); err != nil {
		return fmt.Errorf("failed to delete duplicate currents: %w", err)
	}

	return nil
}

// DeleteCurrent removes a claim by id
func (s *Storage) DeleteCurrent(ctx context.Context, currentID int64) error {
	query := `DELETE FROM currents WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, currentID); err != nil {
		return fmt.Errorf("failed to delete current: %w", err)
	}

	return nil
}

// CreateCurrent inserts a new claim for the user. The unique index on
// currents(user_id) resolves concurrent claims: the loser gets
// ErrClaimConflict instead of a second live row.
func (s *Storage) CreateCurrent(ctx context.Context, userID, jobID int64, now time.Time) (*domain.Current, error) {
	query := `
		INSERT INTO currents (user_id, job_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id, user_id, job_id, created_at
	`

	var current domain.Current
	err := s.db.QueryRowContext(ctx, query, userID, jobID, now).Scan(
		&current.ID,
		&current.UserID,
		&current.JobID,
		&current.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrClaimConflict
		}
		return nil, fmt.Errorf("failed to create current: %w", err)
	}

	return &current, nil
}

// FinalizeCompletion atomically appends the completion transaction and deletes
// the claim. If the claim is already gone (a concurrent finish won) nothing is
// written and ErrCurrentNotFound is returned.
func (s *Storage) FinalizeCompletion(ctx context.Context, record *domain.Transaction, currentID int64) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleteQuery := `DELETE FROM currents WHERE id = $1`
	res, err := tx.ExecContext(ctx, deleteQuery, currentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete current: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return 0, domain.ErrCurrentNotFound
	}

	insertQuery := `
		INSERT INTO transactions (user_id, job_id, ip, device_id, money, description, time_int, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err = tx.QueryRowContext(
		ctx,
		insertQuery,
		record.UserID,
		record.JobID,
		record.IP,
		record.DeviceID,
		record.Money,
		record.Description,
		record.TimeInt,
		record.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit completion: %w", err)
	}

	return id, nil
}

// InsertTransactions appends a batch of ledger rows in a single database
// transaction. A failure on any row rolls back the whole batch, so a bulk
// import never leaves a partial ledger behind.
func (s *Storage) InsertTransactions(ctx context.Context, records []*domain.Transaction) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO transactions (user_id, job_id, ip, device_id, money, description, time_int, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, record := range records {
		_, err := tx.ExecContext(
			ctx,
			query,
			record.UserID,
			record.JobID,
			record.IP,
			record.DeviceID,
			record.Money,
			record.Description,
			record.TimeInt,
			record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction batch: %w", err)
	}

	return nil
}

// IncrementJobCount advances the job's lifetime completion count, re-checking
// the lifetime cap at the database so concurrent finishes cannot overrun it.
// Returns false when the guard rejected the increment.
func (s *Storage) IncrementJobCount(ctx context.Context, jobID int64, delta int) (bool, error) {
	query := `
		UPDATE jobs
		SET count = count + $2
		WHERE id = $1 AND count + $2 <= total
	`

	res, err := s.db.ExecContext(ctx, query, jobID, delta)
	if err != nil {
		return false, fmt.Errorf("failed to increment job count: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// ListTransactionsByUser returns the user's full transaction set
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

// UpsertTotal overwrites the user's aggregate row, creating it on first use
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

	return nil
}

// SumMoneyByUser returns the user's lifetime earned money from the ledger
func (s *Storage) SumMoneyByUser(ctx context.Context, userID int64) (int64, error) {
	query := `SELECT COALESCE(SUM(money), 0) FROM transactions WHERE user_id = $1`

	var total int64
	if err := s.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}

	return total, nil
}

// TransactionFilter narrows transaction history queries
type TransactionFilter struct {
	UserID   int64
	PageSize int
	Cursor   *TransactionCursor
}

// TransactionCursor is a keyset-pagination position in the ledger
type TransactionCursor struct {
	CreatedAt time.Time
	ID        int64
}

// ListTransactionsPage returns one page of the user's history, newest first.
// Fetches one extra row so the caller can tell whether more pages exist.
func (s *Storage) ListTransactionsPage(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error) {
	query := `
		SELECT id, user_id, job_id, ip, device_id, money, description, time_int, created_at
		FROM transactions
		WHERE user_id = $1
	`
	args := []interface{}{filter.UserID}
	argIdx := 2

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var txs []domain.Transaction
	if err := s.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transaction page: %w", err)
	}

	return txs, nil
}
