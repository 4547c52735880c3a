package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thegunner2008/taskpay-be/internal/api/domain"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Storage{db: sqlx.NewDb(db, "postgres")}, mock
}

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "money", "total", "count", "max_day", "factor", "time",
		"finish_at", "is_stop", "reset_day", "value_page", "key_page", "created_at",
	})
}

func TestGetJobByID(t *testing.T) {
	s, mock := newMockStorage(t)
	createdAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT(.|\s)+FROM jobs WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(jobRows().AddRow(
			42, 150, 100, 3, 20, 2, 50,
			nil, false, 1, "proof-value", "proof-key", createdAt,
		))

	job, err := s.GetJobByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), job.ID)
	assert.Equal(t, int64(150), job.Money)
	assert.Equal(t, int64(50), job.Time)
	require.NotNil(t, job.ValuePage)
	assert.Equal(t, "proof-value", *job.ValuePage)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobByID_NotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT(.|\s)+FROM jobs WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(jobRows())

	_, err := s.GetJobByID(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestGetCurrentByUserID_NotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT id, user_id, job_id, created_at(.|\s)+FROM currents`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "job_id", "created_at"}))

	_, err := s.GetCurrentByUserID(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrCurrentNotFound)
}

func TestCreateCurrent(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO currents(.|\s)+ON CONFLICT \(user_id\) DO NOTHING(.|\s)+RETURNING`).
		WithArgs(int64(7), int64(42), now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "job_id", "created_at"}).
			AddRow(101, 7, 42, now))

	current, err := s.CreateCurrent(context.Background(), 7, 42, now)
	require.NoError(t, err)
	assert.Equal(t, int64(101), current.ID)
	assert.Equal(t, int64(7), current.UserID)
	assert.Equal(t, int64(42), current.JobID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCurrent_Conflict(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// DO NOTHING swallows the row on conflict, so the RETURNING set is empty.
	mock.ExpectQuery(`INSERT INTO currents`).
		WithArgs(int64(7), int64(42), now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "job_id", "created_at"}))

	_, err := s.CreateCurrent(context.Background(), 7, 42, now)
	assert.ErrorIs(t, err, domain.ErrClaimConflict)
}

func TestFinalizeCompletion(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	record := &domain.Transaction{
		UserID:    7,
		JobID:     42,
		IP:        "1.2.3.4",
		DeviceID:  "device-a",
		Money:     150,
		TimeInt:   19875,
		CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM currents WHERE id = \$1`).
		WithArgs(int64(101)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(int64(7), int64(42), "1.2.3.4", "device-a", int64(150), "", int64(19875), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(555))
	mock.ExpectCommit()

	id, err := s.FinalizeCompletion(context.Background(), record, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(555), id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeCompletion_ClaimAlreadyGone(t *testing.T) {
	s, mock := newMockStorage(t)

	// A concurrent finish already consumed the claim: no insert, rolled back.
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM currents WHERE id = \$1`).
		WithArgs(int64(101)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.FinalizeCompletion(context.Background(), &domain.Transaction{}, 101)
	assert.ErrorIs(t, err, domain.ErrCurrentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTransactions(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	records := []*domain.Transaction{
		{UserID: 7, JobID: 1, DeviceID: "d1", Description: "import", TimeInt: 2839, CreatedAt: now},
		{UserID: 8, JobID: 2, DeviceID: "d2", Description: "import", TimeInt: 19875, CreatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(int64(7), int64(1), "", "d1", int64(0), "import", int64(2839), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(int64(8), int64(2), "", "d2", int64(0), "import", int64(19875), now).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, s.InsertTransactions(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTransactions_MidBatchFailureRollsBack(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	records := []*domain.Transaction{
		{UserID: 7, JobID: 1, DeviceID: "d1", TimeInt: 2839, CreatedAt: now},
		{UserID: 8, JobID: 2, DeviceID: "d2", TimeInt: 19875, CreatedAt: now},
	}

	// Second row fails: the first one must not survive the batch.
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(int64(7), int64(1), "", "d1", int64(0), "", int64(2839), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(int64(8), int64(2), "", "d2", int64(0), "", int64(19875), now).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := s.InsertTransactions(context.Background(), records)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementJobCount(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantApplied  bool
	}{
		{"increment within cap", 1, true},
		{"rejected by lifetime cap", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)

			mock.ExpectExec(`UPDATE jobs(.|\s)+WHERE id = \$1 AND count \+ \$2 <= total`).
				WithArgs(int64(42), 3).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			applied, err := s.IncrementJobCount(context.Background(), 42, 3)
			require.NoError(t, err)
			assert.Equal(t, tt.wantApplied, applied)
		})
	}
}

func TestBlockedJobIDs(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT DISTINCT t\.job_id(.|\s)+JOIN jobs j ON j\.id = t\.job_id`).
		WithArgs("device-a", int64(19875)).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(1).AddRow(3))

	ids, err := s.BlockedJobIDs(context.Background(), "device-a", 19875)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)
}

func TestSumMoneyByUser(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(money\), 0\) FROM transactions WHERE user_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(450))

	sum, err := s.SumMoneyByUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(450), sum)
}

func TestUpsertTotal(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(`INSERT INTO totals(.|\s)+ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs(int64(7), 4, int64(450), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertTotal(context.Background(), domain.Total{
		UserID:           7,
		CountTransaction: 4,
		Total:            450,
		CountJob:         3,
	})
	assert.NoError(t, err)
}

func TestListTransactionsPage(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	txRows := sqlmock.NewRows([]string{
		"id", "user_id", "job_id", "ip", "device_id", "money", "description", "time_int", "created_at",
	}).AddRow(5, 7, 1, "1.2.3.4", "device-a", 100, "", 19875, now)

	// Fetches page size + 1 so the caller can detect further pages.
	mock.ExpectQuery(`SELECT(.|\s)+FROM transactions(.|\s)+ORDER BY created_at DESC, id DESC LIMIT \$2`).
		WithArgs(int64(7), 4).
		WillReturnRows(txRows)

	txs, err := s.ListTransactionsPage(context.Background(), TransactionFilter{
		UserID:   7,
		PageSize: 3,
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(5), txs[0].ID)
}

func TestListTransactionsPage_WithCursor(t *testing.T) {
	s, mock := newMockStorage(t)
	cursorAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`AND \(created_at, id\) < \(\$2, \$3\)(.|\s)+LIMIT \$4`).
		WithArgs(int64(7), cursorAt, int64(5), 4).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "job_id", "ip", "device_id", "money", "description", "time_int", "created_at",
		}))

	txs, err := s.ListTransactionsPage(context.Background(), TransactionFilter{
		UserID:   7,
		PageSize: 3,
		Cursor:   &TransactionCursor{CreatedAt: cursorAt, ID: 5},
	})
	require.NoError(t, err)
	assert.Empty(t, txs)
}
