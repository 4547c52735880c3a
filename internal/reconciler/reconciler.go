// Package reconciler repairs derived state after ledger writes. The API
// publishes a transaction event whenever a user's ledger changes; each event
// triggers an idempotent rebuild of that user's Total row from the full
// transaction set, so drift from failed post-commit updates heals itself.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thegunner2008/taskpay-be/internal/api/domain"
	"github.com/thegunner2008/taskpay-be/internal/reconciler/storage"
	"github.com/thegunner2008/taskpay-be/shared/postgresql"
	"github.com/thegunner2008/taskpay-be/shared/rabbitmq"
)

// Config holds reconciler configuration
type Config struct {
	Logger        *slog.Logger
	DBClient      *postgresql.Client
	RabbitClient  *rabbitmq.Client
	Concurrency   int
	PrefetchCount int
	QueueName     string
}

// eventMessage pairs a parsed transaction event with its delivery tag
type eventMessage struct {
	UserID      int64
	DeliveryTag uint64
}

// Reconciler consumes transaction events and rebuilds per-user totals
type Reconciler struct {
	logger        *slog.Logger
	storage       *storage.Storage
	rabbitClient  *rabbitmq.Client
	concurrency   int
	prefetchCount int
	queueName     string
	workerID      string
	eventsChan    chan *eventMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// New creates a new Reconciler instance
func New(cfg *Config) *Reconciler {
	return &Reconciler{
		logger:        cfg.Logger,
		storage:       storage.NewStorage(cfg.DBClient.GetDB(), cfg.Logger),
		rabbitClient:  cfg.RabbitClient,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		queueName:     cfg.QueueName,
		workerID:      fmt.Sprintf("reconciler-%s", uuid.New().String()[:8]),
		eventsChan:    make(chan *eventMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming transaction events until the context is canceled
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("Starting reconciler",
		slog.String("worker_id", r.workerID),
		slog.Int("concurrency", r.concurrency),
	)

	deliveries, err := r.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	r.spawnWorkerPool(ctx)
	r.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the reconciler
func (r *Reconciler) Stop() {
	r.logger.Info("Stopping reconciler...")
	close(r.stopChan)
	r.wg.Wait()
	r.logger.Info("Reconciler stopped")
}

// reconcileUser rebuilds one user's Total row from their full transaction set
func (r *Reconciler) reconcileUser(ctx context.Context, userID int64) error {
	start := time.Now()

	txs, err := r.storage.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := r.storage.UpsertTotal(ctx, domain.ComputeTotal(userID, txs)); err != nil {
		return err
	}

	r.logger.Info("User total reconciled",
		slog.Int64("user_id", userID),
		slog.Int("transactions", len(txs)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return nil
}
