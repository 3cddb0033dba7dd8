package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/observability"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Health & Metrics
// ============================================================

const probeTimeout = 2 * time.Second

// Probe is one readiness dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status: "healthy",
			Services: []domain.ServiceHealth{
				{Name: "onboarding-api", Status: "healthy", LastChecked: time.Now().Format(time.RFC3339)},
			},
		})
	}
}

// readyzHandler pings every probe concurrently. Any failure makes the
// service unready (503); all results are reported either way.
func readyzHandler(probes []Probe, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		var mu sync.Mutex
		services := make([]domain.ServiceHealth, len(probes))

		var g errgroup.Group
		for i, p := range probes {
			g.Go(func() error {
				start := time.Now()
				err := p.Check(ctx)
				h := domain.ServiceHealth{
					Name:        p.Name,
					Status:      "healthy",
					LatencyMs:   time.Since(start).Milliseconds(),
					LastChecked: time.Now().Format(time.RFC3339),
				}
				if err != nil {
					h.Status = "unhealthy"
					h.Error = err.Error()
					logger.Warn("readiness probe failed", zap.String("probe", p.Name), zap.Error(err))
				}
				mu.Lock()
				services[i] = h
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		status, code := "healthy", http.StatusOK
		for _, s := range services {
			if s.Status != "healthy" {
				status, code = "unhealthy", http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, code, domain.HealthStatus{Status: status, Services: services})
	}
}

func onboardingMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetOnboardingSnapshot())
	}
}
