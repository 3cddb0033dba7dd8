package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/queue"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type mockChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
	closed        bool
}

func (m *mockChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	m.exchange, m.key, m.msg = exchange, key, msg
	return m.err
}

func (m *mockChannel) IsClosed() bool { return m.closed }

func completion() odomain.CompletionEvent {
	return odomain.CompletionEvent{
		CustomerID:   "cust-1",
		CaseNumber:   "CASE12345678",
		Name:         "Priya Sharma",
		BusinessName: "Sharma Traders",
		Email:        "priya@example.com",
		CompletedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_PublishCompletion(t *testing.T) {
	ch := &mockChannel{}
	p := queue.NewPublisher(ch)

	if err := p.PublishCompletion(context.Background(), completion()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.exchange != queue.ExchangeName || ch.key != queue.RoutingKey {
		t.Errorf("published to %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.DeliveryMode != amqp.Persistent || ch.msg.ContentType != "application/json" {
		t.Errorf("message must be persistent JSON, got %+v", ch.msg)
	}
	if ch.msg.MessageId != "CASE12345678" {
		t.Errorf("expected case number as message id, got %q", ch.msg.MessageId)
	}

	var ev odomain.CompletionEvent
	if err := json.Unmarshal(ch.msg.Body, &ev); err != nil || ev.Email != "priya@example.com" {
		t.Errorf("unexpected body %s (%v)", ch.msg.Body, err)
	}
}

func TestPublisher_Errors(t *testing.T) {
	ch := &mockChannel{err: errors.New("channel closed"), closed: true}
	p := queue.NewPublisher(ch)

	if err := p.PublishCompletion(context.Background(), completion()); err == nil {
		t.Error("expected publish error")
	}
	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected ping error on closed channel")
	}
}

func TestLogPublisher(t *testing.T) {
	p := queue.NewLogPublisher(zap.NewNop())
	if err := p.PublishCompletion(context.Background(), completion()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

type mockHandler struct {
	got []odomain.CompletionEvent
	err error
}

func (m *mockHandler) SendWelcome(_ context.Context, ev odomain.CompletionEvent) error {
	m.got = append(m.got, ev)
	return m.err
}

func TestWorker_Handle(t *testing.T) {
	h := &mockHandler{}
	w := queue.NewWorker(nil, h, zap.NewNop())

	body, _ := json.Marshal(completion())
	if err := w.Handle(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.got) != 1 || h.got[0].CaseNumber != "CASE12345678" {
		t.Errorf("handler not called with event: %+v", h.got)
	}

	if err := w.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Error("malformed body must fail")
	}
	if len(h.got) != 1 {
		t.Error("handler must not run for malformed body")
	}
}

func TestWorker_HandleFailure(t *testing.T) {
	w := queue.NewWorker(nil, &mockHandler{err: errors.New("smtp down")}, zap.NewNop())
	body, _ := json.Marshal(completion())
	if err := w.Handle(context.Background(), body); err == nil {
		t.Error("expected handler error to surface")
	}
}
