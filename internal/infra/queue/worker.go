package queue

import (
	"context"
	"encoding/json"
	"fmt"

	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// CompletionHandler does the follow-up work for one completed onboarding.
type CompletionHandler interface {
	SendWelcome(ctx context.Context, ev odomain.CompletionEvent) error
}

// Worker consumes QueueName with manual acks. Malformed messages and
// handler failures are nacked without requeue and land in the DLQ.
type Worker struct {
	ch      *amqp.Channel
	handler CompletionHandler
	logger  *zap.Logger
}

// NewWorker creates a worker on ch.
func NewWorker(ch *amqp.Channel, handler CompletionHandler, logger *zap.Logger) *Worker {
	return &Worker{ch: ch, handler: handler, logger: logger}
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.ch.ConsumeWithContext(ctx,
		QueueName,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	w.logger.Info("worker consuming", zap.String("queue", QueueName))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := w.Handle(ctx, d.Body); err != nil {
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle processes one message body.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var ev odomain.CompletionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		w.logger.Error("worker: invalid message", zap.Error(err))
		return fmt.Errorf("decode completion event: %w", err)
	}

	if err := w.handler.SendWelcome(ctx, ev); err != nil {
		w.logger.Error("worker: welcome mail failed",
			zap.String("case_number", ev.CaseNumber),
			zap.Error(err),
		)
		return err
	}

	w.logger.Info("worker: welcome mail sent",
		zap.String("case_number", ev.CaseNumber),
		zap.String("email", ev.Email),
	)
	return nil
}
