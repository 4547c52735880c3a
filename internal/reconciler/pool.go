package reconciler

import (
	"context"
	"fmt"
	"log/slog"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (r *Reconciler) spawnWorkerPool(ctx context.Context) {
	r.logger.Info("Spawning reconciler pool",
		slog.Int("concurrency", r.concurrency),
		slog.String("worker_id", r.workerID),
	)

	for i := 0; i < r.concurrency; i++ {
		r.wg.Add(1)
		go r.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (r *Reconciler) workerLoop(ctx context.Context, workerNum int) {
	defer r.wg.Done()

	workerName := fmt.Sprintf("%s-%d", r.workerID, workerNum)
	r.logger.Info("Reconciler goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-r.stopChan:
			r.logger.Info("Reconciler goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			r.logger.Info("Reconciler goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case event, ok := <-r.eventsChan:
			if !ok {
				r.logger.Info("Reconciler goroutine stopping - eventsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			err := r.reconcileUser(ctx, event.UserID)

			channel := r.rabbitClient.GetChannel()
			if channel == nil {
				r.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.Int64("user_id", event.UserID),
				)
				continue
			}

			if err != nil {
				r.logger.Error("Reconciliation failed",
					slog.String("worker_name", workerName),
					slog.Int64("user_id", event.UserID),
					slog.String("error", err.Error()),
				)

				// Store errors are transient; the rebuild is idempotent, so
				// requeueing is always safe.
				if nackErr := channel.Nack(event.DeliveryTag, false, true); nackErr != nil {
					r.logger.Error("Failed to NACK event",
						slog.String("worker_name", workerName),
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if ackErr := channel.Ack(event.DeliveryTag, false); ackErr != nil {
				r.logger.Error("Failed to ACK event",
					slog.String("worker_name", workerName),
					slog.Int64("user_id", event.UserID),
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}
}
