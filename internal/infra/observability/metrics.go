package observability

import (
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the onboarding service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	sessionsStarted prometheus.Counter
	transitions     *prometheus.CounterVec
	checkpoints     *prometheus.CounterVec
	completions     *prometheus.CounterVec
	helpAnswers     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "onboarding_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onboarding_external_errors_total",
				Help: "Total errors from collaborators and external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onboarding_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onboarding_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onboarding_help_tokens_total",
				Help: "Total tokens consumed by the help assistant.",
			},
			[]string{"source"},
		),
		sessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "onboarding_sessions_started_total",
				Help: "Total onboarding conversations started.",
			},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onboarding_transitions_total",
				Help: "Dialogue transitions by step and outcome.",
			},
			[]string{"step", "outcome"},
		),
		checkpoints: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onboarding_checkpoints_total",
				Help: "Customer store checkpoints by result.",
			},
			[]string{"result"},
		),
		completions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onboarding_completions_total",
				Help: "Completed onboardings by account type.",
			},
			[]string{"account"},
		),
		helpAnswers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onboarding_help_answers_total",
				Help: "Help panel answers by source.",
			},
			[]string{"source"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records tokens reported by the help assistant.
func (m *Metrics) RecordTokens(source string, tokens int) {
	m.tokensUsed.WithLabelValues(source).Add(float64(tokens))
}

// IncrSessionStarted counts a new conversation.
func (m *Metrics) IncrSessionStarted() {
	m.sessionsStarted.Inc()
}

// IncrTransition counts one handled event.
func (m *Metrics) IncrTransition(step, outcome string) {
	m.transitions.WithLabelValues(step, outcome).Inc()
}

// IncrCheckpoint counts a checkpoint attempt; result is "success" or "error".
func (m *Metrics) IncrCheckpoint(result string) {
	m.checkpoints.WithLabelValues(result).Inc()
}

// IncrCompletion counts a completed onboarding.
func (m *Metrics) IncrCompletion(account string) {
	m.completions.WithLabelValues(account).Inc()
}

// IncrHelpAnswer counts a help answer by source ("agent" or "faq").
func (m *Metrics) IncrHelpAnswer(source string) {
	m.helpAnswers.WithLabelValues(source).Inc()
}

// GetOnboardingSnapshot returns the counters behind GET /v1/metrics/onboarding.
func (m *Metrics) GetOnboardingSnapshot() *domain.OnboardingMetrics {
	// Counters are cumulative since process start.
	accepted := sumCounterVec(m.transitions, "outcome", "accepted")
	retries := sumCounterVec(m.transitions, "outcome", "retry")
	rejected := sumCounterVec(m.transitions, "outcome", "rejected")
	failed := sumCounterVec(m.transitions, "outcome", "failed")
	total := accepted + retries + rejected + failed

	cacheHits := getCounterValue(m.cacheHits, "conversation")
	cacheMisses := getCounterValue(m.cacheMisses, "conversation")

	rejectionRate := float64(0)
	cacheHitRate := float64(0)
	if total > 0 {
		rejectionRate = rejected / total
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	started := &dto.Metric{}
	if err := m.sessionsStarted.Write(started); err != nil {
		started = &dto.Metric{}
	}

	return &domain.OnboardingMetrics{
		SessionsStarted:    int64(started.GetCounter().GetValue()),
		Transitions:        int64(total),
		Retries:            int64(retries),
		Rejected:           int64(rejected),
		CollaboratorErrors: int64(failed),
		CheckpointFailures: int64(getCounterValue(m.checkpoints, "failed")),
		Completions:        int64(sumCounterVec(m.completions, "", "")),
		HelpAgentAnswers:   int64(getCounterValue(m.helpAnswers, "agent")),
		HelpFAQAnswers:     int64(getCounterValue(m.helpAnswers, "faq")),
		RejectionRate:      rejectionRate,
		CacheHitRate:       cacheHitRate,
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every series of cv whose label name equals value.
// An empty name sums all series.
func sumCounterVec(cv *prometheus.CounterVec, name, value string) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if name != "" && !hasLabel(m, name, value) {
			continue
		}
		total += m.GetCounter().GetValue()
	}
	return total
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
