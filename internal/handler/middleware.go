package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/observability"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

// SessionAuthMiddleware validates the Bearer session token and checks that
// it was issued for the {id} in the path. WebSocket clients, which cannot
// set headers, may pass the token as ?token=.
func SessionAuthMiddleware(tokens *service.SessionTokens, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing session token")
				return
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			if id := chi.URLParam(r, "id"); id != "" && id != claims.Sub {
				logger.Warn("auth: token issued for another session",
					zap.String("path", r.URL.Path),
					zap.String("token_session", claims.Sub),
				)
				writeError(w, http.StatusForbidden, "token does not match session")
				return
			}

			observability.AddRequestFields(r.Context(), zap.String("auth_session", claims.Sub))
			ctx := context.WithValue(r.Context(), sessionIDKey, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, true
	}
	return "", false
}

// SessionIDFromContext extracts the authenticated session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}
