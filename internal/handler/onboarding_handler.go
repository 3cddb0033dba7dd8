package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Onboarding sessions — /v1/onboarding/sessions
// ============================================================

type startSessionResponse struct {
	SessionID string         `json:"session_id"`
	Token     string         `json:"token"`
	Reply     *service.Reply `json:"reply"`
}

// eventRequest is the body of every input endpoint and of WebSocket frames.
// Which fields apply depends on the kind.
type eventRequest struct {
	Kind       odomain.EventKind  `json:"kind"`
	Value      string             `json:"value,omitempty"`
	Slot       odomain.UploadSlot `json:"slot,omitempty"`
	FileName   string             `json:"file_name,omitempty"`
	MobileCode string             `json:"mobile_code,omitempty"`
	EmailCode  string             `json:"email_code,omitempty"`
}

// event converts the request into a dialogue event. Shape errors only; the
// dialogue decides whether the content is acceptable.
func (req eventRequest) event() (odomain.Event, error) {
	switch req.Kind {
	case odomain.EventText, "":
		return odomain.TextEvent(req.Value), nil
	case odomain.EventOption:
		if req.Value == "" {
			return odomain.Event{}, &domain.ErrValidation{Field: "value", Message: "option label is required"}
		}
		return odomain.OptionEvent(req.Value), nil
	case odomain.EventUpload:
		if req.Slot == "" || strings.TrimSpace(req.FileName) == "" {
			return odomain.Event{}, &domain.ErrValidation{Field: "file_name", Message: "slot and file_name are required"}
		}
		return odomain.UploadEvent(req.Slot, filepath.Base(strings.TrimSpace(req.FileName))), nil
	case odomain.EventOTP:
		return odomain.OTPEvent(req.MobileCode, req.EmailCode), nil
	}
	return odomain.Event{}, &domain.ErrValidation{Field: "kind", Message: "unknown event kind " + string(req.Kind)}
}

func startSessionHandler(svc *service.OnboardingService, tokens *service.SessionTokens, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/sessions")
		defer span.End()

		reply, err := svc.Start(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		token, err := tokens.Issue(reply.SessionID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("session.id", reply.SessionID))

		writeJSON(w, http.StatusCreated, startSessionResponse{
			SessionID: reply.SessionID,
			Token:     token,
			Reply:     reply,
		})
	}
}

func getSessionHandler(svc *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/onboarding/sessions/{id}")
		defer span.End()

		snap, err := svc.Snapshot(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// handleEvent decodes the body, forces kind when the endpoint implies one,
// and applies the event.
func handleEvent(svc *service.OnboardingService, logger *zap.Logger, op string, kind odomain.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), op)
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("session.id", id))

		var req eventRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if kind != "" {
			req.Kind = kind
		}
		ev, err := req.event()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		reply, err := svc.Handle(ctx, id, ev)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func messageHandler(svc *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return handleEvent(svc, logger, "POST /v1/onboarding/sessions/{id}/messages", "")
}

func uploadHandler(svc *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return handleEvent(svc, logger, "POST /v1/onboarding/sessions/{id}/uploads", odomain.EventUpload)
}

func otpHandler(svc *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return handleEvent(svc, logger, "POST /v1/onboarding/sessions/{id}/otp", odomain.EventOTP)
}

func applicationHandler(svc *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/onboarding/sessions/{id}/application")
		defer span.End()

		id := chi.URLParam(r, "id")
		path, err := svc.Application(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			handleServiceError(w, &domain.ErrNotFound{Resource: "application", ID: id}, logger)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="merchant-application-`+id+`.pdf"`)
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}

type customerResponse struct {
	Customer *odomain.StoredCustomer `json:"customer"`
	Summary  string                  `json:"summary"`
}

// customerHandler returns the stored record for the session's e-mail.
func customerHandler(svc *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/onboarding/sessions/{id}/customer")
		defer span.End()

		id := chi.URLParam(r, "id")
		snap, err := svc.Snapshot(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if snap.Session.Fields.Email == "" {
			handleServiceError(w, &domain.ErrNotFound{Resource: "customer", ID: id}, logger)
			return
		}

		c, err := svc.Customer(ctx, snap.Session.Fields.Email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, customerResponse{Customer: c, Summary: odomain.Summarize(c)})
	}
}

// ============================================================
// Help panel — POST /v1/onboarding/help
// ============================================================

func helpHandler(help *service.HelpService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/help")
		defer span.End()

		var req odomain.HelpRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ans, err := help.Ask(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}
