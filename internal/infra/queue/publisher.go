package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("queue")

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
}

// Publisher sends completion events to ExchangeName (implements
// port.EventPublisher).
type Publisher struct {
	ch Channel
}

// NewPublisher creates a publisher on ch.
func NewPublisher(ch Channel) *Publisher {
	return &Publisher{ch: ch}
}

// PublishCompletion publishes ev as a persistent JSON message.
func (p *Publisher) PublishCompletion(ctx context.Context, ev odomain.CompletionEvent) error {
	ctx, span := tracer.Start(ctx, "Publisher.PublishCompletion")
	defer span.End()
	span.SetAttributes(attribute.String("case.number", ev.CaseNumber))

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal completion event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.CaseNumber,
			Timestamp:    ev.CompletedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}
	return nil
}

// Ping reports whether the channel is still open.
func (p *Publisher) Ping(context.Context) error {
	if p.ch.IsClosed() {
		return errors.New("rabbitmq channel closed")
	}
	return nil
}

// LogPublisher only logs completion events. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishCompletion(_ context.Context, ev odomain.CompletionEvent) error {
	p.logger.Info("onboarding completed",
		zap.String("case_number", ev.CaseNumber),
		zap.String("customer_id", ev.CustomerID),
		zap.String("email", ev.Email),
		zap.Bool("linked_account", ev.LinkedAccount),
	)
	return nil
}

func (p *LogPublisher) Ping(context.Context) error { return nil }
