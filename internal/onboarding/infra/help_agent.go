package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/resilience"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// HelpAgentClient: POST {base}/v1/chat
// ============================================================
//
//	Request:  {"query": "Which documents do I need?", "journey_step": "panUpload"}
//	Response: {"answer": "...", "sources": [...], "tokens_used": 412}

type HelpAgentClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewHelpAgentClient creates the client. baseURL has no /v1/chat suffix.
func NewHelpAgentClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *HelpAgentClient {
	return &HelpAgentClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// SendChat forwards a help question to the remote assistant. Calls go
// through the circuit breaker with retries; 4xx responses are not retried.
func (c *HelpAgentClient) SendChat(ctx context.Context, req *odomain.AgentRequest) (*odomain.AgentResponse, error) {
	ctx, span := tracer.Start(ctx, "HelpAgentClient.SendChat")
	defer span.End()
	span.SetAttributes(attribute.String("journey.step", req.Step))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal help request: %w", err)
	}

	return resilience.Execute(ctx, c.cb, c.cfg, "help-agent", func() (*odomain.AgentResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create http request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("http call to agent: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("agent /v1/chat returned status %d: %w", resp.StatusCode, resilience.ErrPermanent)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("agent /v1/chat returned status %d", resp.StatusCode)
		}

		var out odomain.AgentResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode agent response: %w", err)
		}
		return &out, nil
	})
}
