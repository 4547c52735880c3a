package domain

import "time"

// Job is a completable micro-task definition from the catalog.
type Job struct {
	ID        int64      `db:"id" json:"id"`
	Money     int64      `db:"money" json:"money"`
	Total     int        `db:"total" json:"total"`
	Count     int        `db:"count" json:"count"`
	MaxDay    int        `db:"max_day" json:"max_day"`
	Factor    int        `db:"factor" json:"factor"`
	Time      int64      `db:"time" json:"time"`
	FinishAt  *time.Time `db:"finish_at" json:"finish_at"`
	IsStop    bool       `db:"is_stop" json:"is_stop"`
	ResetDay  int        `db:"reset_day" json:"reset_day"`
	ValuePage *string    `db:"value_page" json:"-"`
	KeyPage   *string    `db:"key_page" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the job's finish_at has passed.
func (j *Job) Expired(now time.Time) bool {
	return j.FinishAt != nil && j.FinishAt.Before(now)
}

// Exhausted reports whether the lifetime cap has been reached.
func (j *Job) Exhausted() bool {
	return j.Count >= j.Total
}

// LoadFactor is the weighting applied to today's completion count during
// assignment. A zero factor means unweighted.
func (j *Job) LoadFactor() int {
	if j.Factor <= 0 {
		return 1
	}
	return j.Factor
}

// Current is an in-progress claim binding a user to a job. At most one live
// Current per user.
type Current struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	JobID     int64     `db:"job_id" json:"job_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Transaction is an immutable record of a completed (or cancelled) job
// attempt. The append-only transactions table is the source of truth for all
// derived aggregates.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	JobID       int64     `db:"job_id" json:"job_id"`
	IP          string    `db:"ip" json:"ip"`
	DeviceID    string    `db:"device_id" json:"device_id"`
	Money       int64     `db:"money" json:"money"`
	Description string    `db:"description" json:"description"`
	TimeInt     int64     `db:"time_int" json:"time_int"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Total is the per-user running aggregate, recomputed from the full
// transaction set on every completion.
type Total struct {
	UserID           int64 `db:"user_id" json:"user_id"`
	CountTransaction int   `db:"count_transaction" json:"count_transaction"`
	Total            int64 `db:"total" json:"total"`
	CountJob         int   `db:"count_job" json:"count_job"`
}

// ComputeTotal derives a user's aggregate from their full transaction set.
func ComputeTotal(userID int64, txs []Transaction) Total {
	jobs := make(map[int64]struct{}, len(txs))
	var money int64
	for _, tx := range txs {
		money += tx.Money
		jobs[tx.JobID] = struct{}{}
	}
	return Total{
		UserID:           userID,
		CountTransaction: len(txs),
		Total:            money,
		CountJob:         len(jobs),
	}
}
