package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the service logger: JSON at info and above, colored
// console output when level is "debug".
func NewLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level == "debug" {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	return logger
}

type accessLogKey struct{}

// accessLog collects fields that inner handlers attach to the request line.
type accessLog struct {
	mu     sync.Mutex
	fields []zap.Field
}

// AddRequestFields attaches fields to the access log entry of the request
// carried by ctx. It is a no-op outside ZapLoggerMiddleware.
func AddRequestFields(ctx context.Context, fields ...zap.Field) {
	al, ok := ctx.Value(accessLogKey{}).(*accessLog)
	if !ok {
		return
	}
	al.mu.Lock()
	al.fields = append(al.fields, fields...)
	al.mu.Unlock()
}

// ZapLoggerMiddleware writes one entry per request: Error for 5xx, Warn for
// 4xx, Info otherwise. Requests under /sessions/{id} carry session_id, and
// fields added through AddRequestFields (the authenticated session) are
// appended.
func ZapLoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			al := &accessLog{}
			r = r.WithContext(context.WithValue(r.Context(), accessLogKey{}, al))

			defer func() {
				status := ww.Status()
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Duration("latency", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote_addr", r.RemoteAddr),
				}
				// The route context is shared with sub-routers, so {id} is
				// resolved once next has returned.
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if id := rctx.URLParam("id"); id != "" {
						fields = append(fields, zap.String("session_id", id))
					}
				}
				al.mu.Lock()
				fields = append(fields, al.fields...)
				al.mu.Unlock()

				switch {
				case status >= 500:
					logger.Error("http request", fields...)
				case status >= 400:
					logger.Warn("http request", fields...)
				default:
					logger.Info("http request", fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// TracingMiddleware continues the caller's W3C trace context.
func TracingMiddleware(next http.Handler) http.Handler {
	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		propagator = propagation.TraceContext{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
