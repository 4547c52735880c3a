// Package service implements the job assignment and completion core: picking
// the next job for a device/user, guarding against double-claiming within the
// dedup window, and reconciling completions into the ledger and aggregates.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thegunner2008/taskpay-be/internal/api/domain"
	"github.com/thegunner2008/taskpay-be/internal/api/storage"
	"github.com/thegunner2008/taskpay-be/internal/timeint"
	"github.com/thegunner2008/taskpay-be/internal/token"
)

// timeoutDelta is the tolerance, in seconds, around a job's expected
// completion time when validating a finish.
const timeoutDelta = 10

// NoJobAvailable is the current_id returned when no candidate job exists.
// Not an error: the client simply has nothing to do right now.
const NoJobAvailable = -1

// Storage is the durable relational store consumed by the service
type Storage interface {
	GetJobByID(ctx context.Context, jobID int64) (*domain.Job, error)
	ListOpenJobs(ctx context.Context, now time.Time) ([]domain.Job, error)
	ListJobs(ctx context.Context) ([]domain.Job, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	BlockedJobIDs(ctx context.Context, deviceID string, dayNumber int64) ([]int64, error)

	GetCurrentByUserID(ctx context.Context, userID int64) (*domain.Current, error)
	GetCurrentByID(ctx context.Context, currentID int64) (*domain.Current, error)
	DeleteOtherCurrents(ctx context.Context, userID, keepID int64) error
	DeleteCurrent(ctx context.Context, currentID int64) error
	CreateCurrent(ctx context.Context, userID, jobID int64, now time.Time) (*domain.Current, error)

	FinalizeCompletion(ctx context.Context, record *domain.Transaction, currentID int64) (int64, error)
	InsertTransactions(ctx context.Context, records []*domain.Transaction) error
	IncrementJobCount(ctx context.Context, jobID int64, delta int) (bool, error)
	ListTransactionsByUser(ctx context.Context, userID int64) ([]domain.Transaction, error)
	UpsertTotal(ctx context.Context, total domain.Total) error
	SumMoneyByUser(ctx context.Context, userID int64) (int64, error)
	ListTransactionsPage(ctx context.Context, filter storage.TransactionFilter) ([]domain.Transaction, error)
}

// Counters is the volatile counter cache consumed by the service
type Counters interface {
	TodayCount(ctx context.Context, jobID int64) (int64, error)
	IncrTodayCount(ctx context.Context, jobID int64, delta int64) error
	LastStart(ctx context.Context, userID int64) (time.Time, bool, error)
	SetLastStart(ctx context.Context, userID int64, at time.Time) error
	Snapshot(ctx context.Context) (map[string]string, error)
}

// TokenCodec signs and verifies claim tokens
type TokenCodec interface {
	Encode(claim token.Claim) (string, error)
	Decode(tokenStr string) (token.Claim, error)
}

// Publisher emits transaction events for the reconciler
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// JobService is the stateless assignment/completion core. All collaborators
// are injected; there is no package-level state.
type JobService struct {
	storage   Storage
	counters  Counters
	tokens    TokenCodec
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Dependencies holds everything a JobService needs
type Dependencies struct {
	Storage   Storage
	Counters  Counters
	Tokens    TokenCodec
	Publisher Publisher
	Logger    *slog.Logger
}

// NewJobService creates a new JobService instance
func NewJobService(deps *Dependencies) *JobService {
	return &JobService{
		storage:   deps.Storage,
		counters:  deps.Counters,
		tokens:    deps.Tokens,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// Assignment is the result of GetCurrentJob. Job is nil when CurrentID is
// NoJobAvailable.
type Assignment struct {
	CurrentID int64       `json:"current_id"`
	Job       *domain.Job `json:"job"`
}

// GetCurrentJob returns the user's live claim if one exists, otherwise
// assigns the least-loaded eligible job this device has not completed within
// its dedup window.
func (s *JobService) GetCurrentJob(ctx context.Context, deviceID, clientIP string, userID int64) (*Assignment, error) {
	now := s.now()

	current, err := s.storage.GetCurrentByUserID(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrCurrentNotFound) {
		return nil, fmt.Errorf("failed to look up live claim: %w", err)
	}

	if current != nil {
		// Defensive cleanup of duplicate rows predating the unique index.
		if err := s.storage.DeleteOtherCurrents(ctx, userID, current.ID); err != nil {
			return nil, err
		}

		job, err := s.storage.GetJobByID(ctx, current.JobID)
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			// Claim points at a removed job; discard and reassign.
			if err := s.storage.DeleteCurrent(ctx, current.ID); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		case job.Expired(now):
			if err := s.storage.DeleteCurrent(ctx, current.ID); err != nil {
				return nil, err
			}
		default:
			// Idempotent re-fetch.
			return &Assignment{CurrentID: current.ID, Job: job}, nil
		}
	}

	device := resolveDevice(deviceID, clientIP)

	blocked, err := s.storage.BlockedJobIDs(ctx, device, timeint.DayNumber(now))
	if err != nil {
		return nil, err
	}
	blockedSet := make(map[int64]struct{}, len(blocked))
	for _, id := range blocked {
		blockedSet[id] = struct{}{}
	}

	jobs, err := s.storage.ListOpenJobs(ctx, now)
	if err != nil {
		return nil, err
	}

	// Pick the candidate with the lowest weighted day count; the first
	// minimum in catalog order wins so assignment stays deterministic.
	var best *domain.Job
	var bestScore int64
	for i := range jobs {
		job := &jobs[i]
		if _, ok := blockedSet[job.ID]; ok {
			continue
		}

		todayCount, err := s.counters.TodayCount(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		if todayCount >= int64(job.MaxDay) {
			continue
		}

		score := todayCount * int64(job.LoadFactor())
		if best == nil || score < bestScore {
			best = job
			bestScore = score
		}
	}

	if best == nil {
		return &Assignment{CurrentID: NoJobAvailable, Job: nil}, nil
	}

	created, err := s.storage.CreateCurrent(ctx, userID, best.ID, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job assigned",
		slog.Int64("user_id", userID),
		slog.Int64("job_id", best.ID),
		slog.Int64("current_id", created.ID),
		slog.String("device_id", device),
	)

	return &Assignment{CurrentID: created.ID, Job: best}, nil
}

// StartResult carries the signed claim token and the job's completion-proof key
type StartResult struct {
	Token string `json:"token"`
	Key   string `json:"key"`
}

// Start records that the user began working on a claim and issues the signed
// token required to finish it.
func (s *JobService) Start(ctx context.Context, jobID, userID, currentID int64) (*StartResult, error) {
	job, err := s.storage.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	exists, err := s.storage.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	if err := s.counters.SetLastStart(ctx, userID, s.now()); err != nil {
		return nil, err
	}

	tokenStr, err := s.tokens.Encode(token.Claim{
		JobID:     jobID,
		UserID:    userID,
		CurrentID: currentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue claim token: %w", err)
	}

	var key string
	if job.KeyPage != nil {
		key = *job.KeyPage
	}

	return &StartResult{Token: tokenStr, Key: key}, nil
}

// FinishInput is the client-supplied completion proof
type FinishInput struct {
	Token     string
	ValuePage string
	DeviceID  string
	ClientIP  string
}

// Finish validates a completion proof and reconciles it into the ledger:
// transaction insert + claim delete commit atomically, then the lifetime
// count, aggregate total and day counter are advanced. Post-commit failures
// are logged and left to the reconciler; the ledger write already succeeded.
func (s *JobService) Finish(ctx context.Context, in FinishInput) error {
	claim, err := s.tokens.Decode(in.Token)
	if err != nil {
		return domain.ErrInvalidToken
	}

	job, err := s.storage.GetJobByID(ctx, claim.JobID)
	if err != nil {
		return err
	}

	current, err := s.storage.GetCurrentByID(ctx, claim.CurrentID)
	if err != nil {
		return err
	}

	if job.ValuePage == nil || in.ValuePage != *job.ValuePage {
		return domain.ErrInvalidProof
	}

	if err := s.checkElapsed(ctx, claim.UserID, job.Time); err != nil {
		return err
	}

	now := s.now()
	record := &domain.Transaction{
		UserID:    claim.UserID,
		JobID:     claim.JobID,
		IP:        in.ClientIP,
		DeviceID:  in.DeviceID,
		Money:     job.Money,
		TimeInt:   timeint.BucketKey(job.ResetDay, now),
		CreatedAt: now,
	}

	txID, err := s.storage.FinalizeCompletion(ctx, record, current.ID)
	if err != nil {
		return err
	}

	s.logger.Info("Job finished",
		slog.Int64("user_id", claim.UserID),
		slog.Int64("job_id", claim.JobID),
		slog.Int64("transaction_id", txID),
		slog.Int64("money", job.Money),
	)

	s.applyPostCommit(ctx, claim.UserID, claim.JobID, 1)
	return nil
}

// ToolItem is one entry of a trusted bulk completion import
type ToolItem struct {
	UserID      int64
	JobID       int64
	IP          string
	DeviceID    string
	Description string
	CreatedAt   time.Time
}

// FinishTool records a trusted batch of completions, bypassing per-item proof
// and timing validation. Rejects empty batches. The whole batch commits in a
// single transaction, so a mid-batch failure imports nothing.
func (s *JobService) FinishTool(ctx context.Context, items []ToolItem) error {
	if len(items) == 0 {
		return domain.ErrEmptyBatch
	}

	records := make([]*domain.Transaction, 0, len(items))
	perJob := make(map[int64]int, len(items))
	users := make(map[int64]struct{}, len(items))
	resetDays := make(map[int64]int, len(items))

	for _, item := range items {
		createdAt := item.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.now()
		}

		resetDay, ok := resetDays[item.JobID]
		if !ok {
			var err error
			resetDay, err = s.jobResetDay(ctx, item.JobID)
			if err != nil {
				return err
			}
			resetDays[item.JobID] = resetDay
		}

		records = append(records, &domain.Transaction{
			UserID:      item.UserID,
			JobID:       item.JobID,
			IP:          item.IP,
			DeviceID:    item.DeviceID,
			Money:       0,
			Description: item.Description,
			TimeInt:     timeint.BucketKey(resetDay, createdAt),
			CreatedAt:   createdAt,
		})

		perJob[item.JobID]++
		users[item.UserID] = struct{}{}
	}

	if err := s.storage.InsertTransactions(ctx, records); err != nil {
		return err
	}

	for jobID, count := range perJob {
		applied, err := s.storage.IncrementJobCount(ctx, jobID, count)
		if err != nil {
			s.logger.Error("Failed to advance job count for batch",
				slog.Int64("job_id", jobID),
				slog.Int("delta", count),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !applied {
			s.logger.Warn("Batch increment rejected by lifetime cap",
				slog.Int64("job_id", jobID),
				slog.Int("delta", count),
			)
		}

		if err := s.counters.IncrTodayCount(ctx, jobID, int64(count)); err != nil {
			s.logger.Error("Failed to advance day counter for batch",
				slog.Int64("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}

	for userID := range users {
		s.publishTransactionEvent(ctx, userID)
	}

	return nil
}

// Cancel abandons the user's live claim, recording a zero-money transaction
// so the dedup window still blocks an immediate re-claim of the same job.
// A missing claim is a no-op, not an error.
func (s *JobService) Cancel(ctx context.Context, userID int64, deviceID, clientIP string) error {
	current, err := s.storage.GetCurrentByUserID(ctx, userID)
	if errors.Is(err, domain.ErrCurrentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// Stamp the record with the job's own window so the cancel blocks a
	// re-claim for exactly one dedup window, not forever.
	resetDay, err := s.jobResetDay(ctx, current.JobID)
	if err != nil {
		return err
	}

	now := s.now()
	record := &domain.Transaction{
		UserID:      userID,
		JobID:       current.JobID,
		IP:          clientIP,
		DeviceID:    resolveDevice(deviceID, clientIP),
		Money:       0,
		Description: "cancelled",
		TimeInt:     timeint.BucketKey(resetDay, now),
		CreatedAt:   now,
	}

	if _, err := s.storage.FinalizeCompletion(ctx, record, current.ID); err != nil {
		if errors.Is(err, domain.ErrCurrentNotFound) {
			// Lost a race with a concurrent finish or cancel; nothing to do.
			return nil
		}
		return err
	}

	s.logger.Info("Job cancelled",
		slog.Int64("user_id", userID),
		slog.Int64("job_id", current.JobID),
	)

	s.publishTransactionEvent(ctx, userID)
	return nil
}

// RemainJob is a catalog row annotated with its live day count
type RemainJob struct {
	domain.Job
	CountToday int64 `json:"count_today"`
}

// RemainJobs lists the catalog with each job's completion count for today.
func (s *JobService) RemainJobs(ctx context.Context) ([]RemainJob, error) {
	jobs, err := s.storage.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	remain := make([]RemainJob, 0, len(jobs))
	for _, job := range jobs {
		count, err := s.counters.TodayCount(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		remain = append(remain, RemainJob{Job: job, CountToday: count})
	}

	return remain, nil
}

// History is one page of a user's transaction history plus their lifetime sum
type History struct {
	TotalMoney   int64
	Transactions []domain.Transaction
	HasMore      bool
}

// TransactionHistory returns a page of the user's ledger, newest first.
func (s *JobService) TransactionHistory(ctx context.Context, userID int64, pageSize int, cursor *storage.TransactionCursor) (*History, error) {
	totalMoney, err := s.storage.SumMoneyByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs, err := s.storage.ListTransactionsPage(ctx, storage.TransactionFilter{
		UserID:   userID,
		PageSize: pageSize,
		Cursor:   cursor,
	})
	if err != nil {
		return nil, err
	}

	hasMore := len(txs) > pageSize
	if hasMore {
		txs = txs[:pageSize]
	}

	return &History{
		TotalMoney:   totalMoney,
		Transactions: txs,
		HasMore:      hasMore,
	}, nil
}

// CounterSnapshot dumps the counter store for operator inspection.
func (s *JobService) CounterSnapshot(ctx context.Context) (map[string]string, error) {
	return s.counters.Snapshot(ctx)
}

// checkElapsed validates the time spent on the job against the expected
// completion time, within an inclusive ±timeoutDelta window. A missing start
// record always fails.
func (s *JobService) checkElapsed(ctx context.Context, userID, jobTime int64) error {
	started, ok, err := s.counters.LastStart(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrStartTimeout
	}

	elapsed := s.now().Unix() - started.Unix()
	if elapsed < jobTime-timeoutDelta || elapsed > jobTime+timeoutDelta {
		return domain.ErrStartTimeout
	}

	return nil
}

// applyPostCommit runs the derived-state updates after a successful ledger
// commit. Failures here never fail the completion call.
func (s *JobService) applyPostCommit(ctx context.Context, userID, jobID int64, delta int) {
	applied, err := s.storage.IncrementJobCount(ctx, jobID, delta)
	if err != nil {
		s.logger.Error("Failed to increment job lifetime count",
			slog.Int64("job_id", jobID),
			slog.String("error", err.Error()),
		)
	} else if !applied {
		s.logger.Warn("Job lifetime count increment rejected by cap",
			slog.Int64("job_id", jobID),
		)
	}

	if err := s.recomputeTotal(ctx, userID); err != nil {
		s.logger.Error("Failed to recompute user total",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.counters.IncrTodayCount(ctx, jobID, int64(delta)); err != nil {
		s.logger.Error("Failed to increment day counter",
			slog.Int64("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	s.publishTransactionEvent(ctx, userID)
}

// jobResetDay returns the job's dedup window length in days. A removed job
// falls back to a one-day window so its records still stamp consistently.
func (s *JobService) jobResetDay(ctx context.Context, jobID int64) (int, error) {
	job, err := s.storage.GetJobByID(ctx, jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return job.ResetDay, nil
}

// recomputeTotal rebuilds the user's aggregate from the full transaction set
func (s *JobService) recomputeTotal(ctx context.Context, userID int64) error {
	txs, err := s.storage.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return err
	}

	return s.storage.UpsertTotal(ctx, domain.ComputeTotal(userID, txs))
}

// TransactionEvent notifies the reconciler that a user's ledger changed
type TransactionEvent struct {
	UserID int64 `json:"user_id"`
}

func (s *JobService) publishTransactionEvent(ctx context.Context, userID int64) {
	if s.publisher == nil {
		return
	}

	body, err := json.Marshal(TransactionEvent{UserID: userID})
	if err != nil {
		s.logger.Error("Failed to marshal transaction event",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		s.logger.Error("Failed to publish transaction event",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// resolveDevice falls back to the caller's network address when the device
// identifier is absent or the client sent the literal "unknown" sentinel.
func resolveDevice(deviceID, clientIP string) string {
	if deviceID == "" || deviceID == "unknown" {
		return clientIP
	}
	return deviceID
}
