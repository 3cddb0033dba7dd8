package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/observability"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/catalog"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/service"

	"go.uber.org/zap"
)

type mockAgent struct {
	last *odomain.AgentRequest
	resp *odomain.AgentResponse
	err  error
}

func (m *mockAgent) SendChat(_ context.Context, req *odomain.AgentRequest) (*odomain.AgentResponse, error) {
	m.last = req
	return m.resp, m.err
}

type fixedSteps map[string]odomain.Step

func (f fixedSteps) Step(id string) (odomain.Step, bool) {
	s, ok := f[id]
	return s, ok
}

func newHelp(t *testing.T, agent *mockAgent) (*service.HelpService, *observability.Metrics) {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	metrics := observability.NewMetrics()
	sessions := fixedSteps{"sess-1": odomain.StepGSTUpload}
	if agent == nil {
		return service.NewHelpService(cat, nil, sessions, metrics, zap.NewNop()), metrics
	}
	return service.NewHelpService(cat, agent, sessions, metrics, zap.NewNop()), metrics
}

func TestHelp_FAQTopics(t *testing.T) {
	h, metrics := newHelp(t, nil)

	tests := []struct {
		query string
		topic string
		want  string
	}{
		{"What documents do I need?", "documents", "GST Certificate"},
		{"How does KYC work", "kyc", "2-4 hours"},
		{"how long will this take", "timeline", "Onboarding Timeline"},
		{"Is there a FEE?", "pricing", "Free of charge"},
		{"which pos devices", "services", "Android Smart POS"},
		{"who do I contact", "support", "Devesh Kumar"},
		{"what category fits a bakery", "categories", "Food & Beverage"},
		{"upload error", "documents", "Document Requirements"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ans, err := h.Ask(context.Background(), &odomain.HelpRequest{Query: tt.query})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ans.Topic != tt.topic {
				t.Errorf("expected topic %s, got %s", tt.topic, ans.Topic)
			}
			if !strings.Contains(ans.Answer, tt.want) {
				t.Errorf("answer %q does not contain %q", ans.Answer, tt.want)
			}
		})
	}
	if got := metrics.GetOnboardingSnapshot().HelpFAQAnswers; got != int64(len(tests)) {
		t.Errorf("expected %d faq answers, got %d", len(tests), got)
	}
}

func TestHelp_EmptyQuery(t *testing.T) {
	h, _ := newHelp(t, nil)

	_, err := h.Ask(context.Background(), &odomain.HelpRequest{Query: "   "})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestHelp_DefaultWithoutAgent(t *testing.T) {
	h, _ := newHelp(t, nil)

	ans, err := h.Ask(context.Background(), &odomain.HelpRequest{Query: "can I bring my dog?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Topic != "default" || !strings.Contains(ans.Answer, "I can help you with") {
		t.Errorf("unexpected answer: %+v", ans)
	}
}

func TestHelp_AgentAnswersUnmatched(t *testing.T) {
	agent := &mockAgent{resp: &odomain.AgentResponse{Answer: "Yes, GSTIN is mandatory.", TokensUsed: 42}}
	h, metrics := newHelp(t, agent)

	ans, err := h.Ask(context.Background(), &odomain.HelpRequest{Query: "is GSTIN mandatory?", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Topic != "agent" || ans.Answer != "Yes, GSTIN is mandatory." {
		t.Errorf("unexpected answer: %+v", ans)
	}
	if agent.last == nil || agent.last.Step != string(odomain.StepGSTUpload) {
		t.Errorf("expected journey step in the agent request, got %+v", agent.last)
	}
	if got := metrics.GetOnboardingSnapshot().HelpAgentAnswers; got != 1 {
		t.Errorf("expected 1 agent answer, got %d", got)
	}
}

func TestHelp_AgentFailureFallsBack(t *testing.T) {
	agent := &mockAgent{err: errors.New("agent unavailable")}
	h, _ := newHelp(t, agent)

	ans, err := h.Ask(context.Background(), &odomain.HelpRequest{Query: "is GSTIN mandatory?", SessionID: "unknown"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Topic != "default" {
		t.Errorf("expected default answer, got %s", ans.Topic)
	}
	if agent.last.Step != "" {
		t.Errorf("unknown session must not carry a step, got %q", agent.last.Step)
	}
}

func TestHelp_FAQWinsOverAgent(t *testing.T) {
	agent := &mockAgent{resp: &odomain.AgentResponse{Answer: "unused"}}
	h, _ := newHelp(t, agent)

	ans, err := h.Ask(context.Background(), &odomain.HelpRequest{Query: "what is the price"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Topic != "pricing" || agent.last != nil {
		t.Errorf("expected local FAQ answer without agent call, got %+v", ans)
	}
}
