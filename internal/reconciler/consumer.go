package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer sets up the RabbitMQ consumer with QoS and returns the
// delivery channel
func (r *Reconciler) setupConsumer() (<-chan amqp.Delivery, error) {
	channel := r.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	// prefetch_count bounds unacknowledged messages per consumer;
	// prefetch_size 0 means no byte limit, global false scopes it per-consumer
	err := channel.Qos(r.prefetchCount, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := r.rabbitClient.Consume(r.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	r.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", r.workerID),
		slog.String("queue", r.queueName),
		slog.Int("prefetch_count", r.prefetchCount),
	)

	return deliveries, nil
}

// startMessageDispatcher listens to RabbitMQ deliveries and dispatches events
// to the worker pool. Blocks until the context is canceled or the delivery
// channel closes.
func (r *Reconciler) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	r.logger.Info("Message dispatcher started",
		slog.String("worker_id", r.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				r.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var msg struct {
				UserID int64 `json:"user_id"`
			}

			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				r.logger.Error("Failed to parse event JSON",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// Malformed events go to the DLQ, not back on the queue
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					r.logger.Error("Failed to NACK malformed event",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if msg.UserID <= 0 {
				r.logger.Error("Event carries no user id",
					slog.String("body", string(delivery.Body)),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					r.logger.Error("Failed to NACK invalid event",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			event := &eventMessage{
				UserID:      msg.UserID,
				DeliveryTag: delivery.DeliveryTag,
			}

			select {
			case r.eventsChan <- event:
				r.logger.Debug("Event dispatched to worker pool",
					slog.Int64("user_id", msg.UserID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				r.logger.Info("Message dispatcher stopped while dispatching event")
				// NACK so the event is redelivered after restart
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					r.logger.Error("Failed to NACK event on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
