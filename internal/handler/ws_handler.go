package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/service"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// ============================================================
// Conversation over WebSocket — GET /v1/onboarding/sessions/{id}/ws
//
// Client frames are eventRequest objects, plus {"kind":"ping"}.
// Server frames are wsFrame objects.
// ============================================================

const wsKindPing = "ping"

type wsFrame struct {
	Type     string            `json:"type"` // snapshot, reply, error, pong
	Snapshot *service.Snapshot `json:"snapshot,omitempty"`
	Reply    *service.Reply    `json:"reply,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func sessionSocketHandler(svc *service.OnboardingService, origins []string, logger *zap.Logger) http.HandlerFunc {
	patterns := originPatterns(origins)

	return func(w http.ResponseWriter, r *http.Request) {
		id := SessionIDFromContext(r.Context())

		snap, err := svc.Snapshot(r.Context(), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// The server's read/write timeouts would cut long-lived sockets.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: patterns})
		if err != nil {
			logger.Warn("websocket accept failed", zap.String("session_id", id), zap.Error(err))
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		logger.Info("websocket connected", zap.String("session_id", id))

		if err := wsjson.Write(ctx, conn, wsFrame{Type: "snapshot", Snapshot: snap}); err != nil {
			return
		}

		for {
			var req eventRequest
			if err := wsjson.Read(ctx, conn, &req); err != nil {
				if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
					logger.Debug("websocket closed", zap.String("session_id", id))
				} else {
					logger.Warn("websocket read error", zap.String("session_id", id), zap.Error(err))
				}
				return
			}

			frame, done := handleFrame(ctx, svc, id, req)
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				logger.Debug("websocket write error", zap.String("session_id", id), zap.Error(err))
				return
			}
			if done {
				conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
		}
	}
}

// handleFrame applies one client frame. done is set when the session is gone.
func handleFrame(ctx context.Context, svc *service.OnboardingService, id string, req eventRequest) (wsFrame, bool) {
	if string(req.Kind) == wsKindPing {
		return wsFrame{Type: "pong"}, false
	}

	ev, err := req.event()
	if err != nil {
		return wsFrame{Type: "error", Error: err.Error()}, false
	}

	reply, err := svc.Handle(ctx, id, ev)
	if err != nil {
		var notFound *domain.ErrNotFound
		return wsFrame{Type: "error", Error: err.Error()}, errors.As(err, &notFound)
	}
	return wsFrame{Type: "reply", Reply: reply}, false
}

// originPatterns turns CORS origins into host patterns for websocket.Accept.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, strings.TrimSuffix(o, "/"))
	}
	return out
}
