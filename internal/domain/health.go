package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /readyz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	Error       string `json:"error,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// OnboardingMetrics is returned by GET /v1/metrics/onboarding.
type OnboardingMetrics struct {
	SessionsStarted    int64   `json:"sessionsStarted"`
	Transitions        int64   `json:"transitions"`
	Retries            int64   `json:"retries"`
	Rejected           int64   `json:"rejected"`
	CollaboratorErrors int64   `json:"collaboratorErrors"`
	CheckpointFailures int64   `json:"checkpointFailures"`
	Completions        int64   `json:"completions"`
	HelpAgentAnswers   int64   `json:"helpAgentAnswers"`
	HelpFAQAnswers     int64   `json:"helpFaqAnswers"`
	RejectionRate      float64 `json:"rejectionRate"`
	CacheHitRate       float64 `json:"cacheHitRate"`
	Period             string  `json:"period"`
}
