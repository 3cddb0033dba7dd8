package domain

// HelpRequest is a free-form question asked from the onboarding help panel.
type HelpRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// HelpAnswer is returned to the help panel.
type HelpAnswer struct {
	Answer string `json:"answer"`
	// Topic is the FAQ topic matched, or "agent" when the remote assistant answered.
	Topic string `json:"topic"`
}

// AgentRequest is the payload sent to the remote assistant (POST /v1/chat).
type AgentRequest struct {
	Query string `json:"query"`

	// Context tells the assistant which product it is answering for.
	Context string `json:"context,omitempty"`

	// Step is where the merchant currently is in the dialogue, when known.
	Step string `json:"journey_step,omitempty"`
}

// AgentResponse is the remote assistant's answer.
type AgentResponse struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources,omitempty"`
	TokensUsed int      `json:"tokens_used"`
	Timestamp  string   `json:"timestamp"`
}
