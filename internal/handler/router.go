package handler

import (
	"net/http"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/observability"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Options carries router settings that are not services.
type Options struct {
	// CORSOrigins are the allowed browser origins; "*" allows any.
	CORSOrigins []string
	// Probes are checked concurrently by /readyz.
	Probes []Probe
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	svc *service.OnboardingService,
	help *service.HelpService,
	tokens *service.SessionTokens,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(opts.Probes, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/onboarding", onboardingMetricsHandler(metrics))

		r.Route("/onboarding", func(r chi.Router) {
			r.Post("/sessions", startSessionHandler(svc, tokens, logger))
			r.Post("/help", helpHandler(help, logger))

			// Everything under a session requires its token.
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Use(SessionAuthMiddleware(tokens, logger))

				r.Get("/", getSessionHandler(svc, logger))
				r.Post("/messages", messageHandler(svc, logger))
				r.Post("/uploads", uploadHandler(svc, logger))
				r.Post("/otp", otpHandler(svc, logger))
				r.Get("/application", applicationHandler(svc, logger))
				r.Get("/customer", customerHandler(svc, logger))
				r.Get("/ws", sessionSocketHandler(svc, opts.CORSOrigins, logger))
			})
		})
	})

	return r
}
