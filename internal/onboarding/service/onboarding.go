// Package service runs onboarding conversations: it keeps one Conversation
// per session, gathers the facts the dialogue asks for, executes the side
// effects it requests and checkpoints progress to the customer store.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/observability"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/resilience"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/flow"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/port"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("onboarding/service")

const (
	conversationCache = "conversation"

	msgInternalError = "Sorry, something went wrong on our side while processing that. Please try again."

	outcomeFailed = "failed"
)

// Conversation is one live session with its transcript. Events of one
// conversation are processed one at a time.
type Conversation struct {
	mu         sync.Mutex
	session    odomain.Session
	transcript []odomain.Turn
	artifact   string
}

func (c *Conversation) say(now time.Time, messages, options []string) {
	for i, m := range messages {
		t := odomain.Turn{Bot: true, Text: m, Timestamp: now}
		if i == len(messages)-1 {
			t.Options = options
		}
		c.transcript = append(c.transcript, t)
	}
}

func (c *Conversation) hear(now time.Time, text string) {
	c.transcript = append(c.transcript, odomain.Turn{Text: text, Timestamp: now})
}

// Reply is what the merchant sees after an event.
type Reply struct {
	SessionID  string       `json:"session_id"`
	Step       odomain.Step `json:"step"`
	Messages   []string     `json:"messages"`
	Options    []string     `json:"options,omitempty"`
	Progress   int          `json:"progress"`
	Outcome    string       `json:"outcome"`
	Rejected   bool         `json:"rejected,omitempty"`
	CaseNumber string       `json:"case_number,omitempty"`
}

// Snapshot is the read model of a conversation.
type Snapshot struct {
	Session        odomain.Session `json:"session"`
	Transcript     []odomain.Turn  `json:"transcript"`
	Options        []string        `json:"options,omitempty"`
	Progress       int             `json:"progress"`
	HasApplication bool            `json:"has_application"`
}

// Deps are the collaborators of the service. Mailer is optional; when the
// completion worker sends welcome mail it is left nil here.
type Deps struct {
	Store     port.CustomerStore
	Extractor port.DocumentExtractor
	Exporter  port.PDFExporter
	OTP       port.OTPChallenge
	KYC       port.KYCDirectory
	Publisher port.EventPublisher
	Mailer    port.WelcomeMailer
}

// OnboardingService drives conversations through the dialogue machine.
type OnboardingService struct {
	machine       *flow.Machine
	deps          Deps
	conversations port.Cache[*Conversation]
	bulkhead      *resilience.Bulkhead
	metrics       *observability.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

// NewOnboardingService creates the service with all dependencies injected.
func NewOnboardingService(
	machine *flow.Machine,
	deps Deps,
	conversations port.Cache[*Conversation],
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *OnboardingService {
	return &OnboardingService{
		machine:       machine,
		deps:          deps,
		conversations: conversations,
		bulkhead:      bulkhead,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// Start opens a new conversation at the welcome step.
func (s *OnboardingService) Start(ctx context.Context) (*Reply, error) {
	_, span := tracer.Start(ctx, "OnboardingService.Start")
	defer span.End()

	now := s.now()
	res := s.machine.Start(uuid.NewString(), now)
	conv := &Conversation{session: res.Session}
	conv.say(now, res.Messages, res.Options)
	s.conversations.Set(res.Session.ID, conv)

	s.metrics.IncrSessionStarted()
	s.logger.Info("conversation started", zap.String("session_id", res.Session.ID))
	span.SetAttributes(attribute.String("session.id", res.Session.ID))

	return replyFor(res.Session, res.Messages, res.Options, string(res.Outcome), false), nil
}

// Handle applies ev to the conversation sessionID. Problems inside a step
// (bad input, a collaborator failing) become bot messages; only an unknown
// session is returned as an error.
func (s *OnboardingService) Handle(ctx context.Context, sessionID string, ev odomain.Event) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "OnboardingService.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("event.kind", string(ev.Kind)),
	)

	start := s.now()
	defer func() {
		s.metrics.RecordRequestDuration("onboarding.handle", time.Since(start))
	}()

	conv, err := s.conversation(sessionID)
	if err != nil {
		return nil, err
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	now := s.now()
	from := conv.session
	conv.hear(now, describeEvent(ev))
	span.SetAttributes(attribute.String("step.from", string(from.Step)))

	facts, err := s.gather(ctx, from, s.machine.Need(from, ev))
	if err != nil {
		s.logger.Error("failed to gather facts",
			zap.String("session_id", sessionID),
			zap.String("step", string(from.Step)),
			zap.Error(err),
		)
		return s.apologize(ctx, conv, from, err), nil
	}
	facts.Now = now

	res := s.machine.Transition(from, ev, facts)
	s.metrics.IncrTransition(string(from.Step), string(res.Outcome))
	if res.Outcome == flow.OutcomeRejected {
		s.logger.Warn("input rejected",
			zap.String("session_id", sessionID),
			zap.String("step", string(from.Step)),
			zap.String("event_kind", string(ev.Kind)),
			zap.String("reason", res.Reason),
		)
	}

	artifact, err := s.runEffects(ctx, res)
	if err != nil {
		s.logger.Error("effect failed, transition rolled back",
			zap.String("session_id", sessionID),
			zap.String("step", string(from.Step)),
			zap.Error(err),
		)
		return s.apologize(ctx, conv, from, err), nil
	}

	conv.session = res.Session
	if artifact != "" {
		conv.artifact = artifact
	}

	if res.Advanced(from.Step) {
		s.logger.Info("step advanced",
			zap.String("session_id", sessionID),
			zap.String("from", string(from.Step)),
			zap.String("to", string(res.Session.Step)),
		)
		if flow.IsCheckpoint(res.Session.Step) {
			s.checkpoint(ctx, conv)
		}
	}
	for _, e := range res.Effects {
		if e.Kind == flow.EffectNotifyCompletion {
			s.notifyCompletion(ctx, conv.session)
		}
	}

	conv.say(now, res.Messages, res.Options)
	s.conversations.Set(sessionID, conv)

	return replyFor(conv.session, res.Messages, res.Options, string(res.Outcome), res.Outcome == flow.OutcomeRejected), nil
}

// Snapshot returns a copy of the conversation state.
func (s *OnboardingService) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	_, span := tracer.Start(ctx, "OnboardingService.Snapshot")
	defer span.End()

	conv, err := s.conversation(sessionID)
	if err != nil {
		return nil, err
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()

	return &Snapshot{
		Session:        conv.session.Clone(),
		Transcript:     append([]odomain.Turn(nil), conv.transcript...),
		Options:        s.machine.Options(conv.session.Step),
		Progress:       flow.Progress(conv.session.Step),
		HasApplication: conv.artifact != "",
	}, nil
}

// Application returns the path of the exported application document.
func (s *OnboardingService) Application(ctx context.Context, sessionID string) (string, error) {
	_, span := tracer.Start(ctx, "OnboardingService.Application")
	defer span.End()

	conv, err := s.conversation(sessionID)
	if err != nil {
		return "", err
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()

	if conv.artifact == "" {
		return "", &domain.ErrNotFound{Resource: "application", ID: sessionID}
	}
	return conv.artifact, nil
}

// Step reports the current step of a live session.
func (s *OnboardingService) Step(sessionID string) (odomain.Step, bool) {
	conv, ok := s.conversations.Get(sessionID)
	if !ok {
		return "", false
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return conv.session.Step, true
}

// Customer returns the stored checkpoint for email.
func (s *OnboardingService) Customer(ctx context.Context, email string) (*odomain.StoredCustomer, error) {
	ctx, span := tracer.Start(ctx, "OnboardingService.Customer")
	defer span.End()

	if !validation.IsValidEmail(email) {
		return nil, &domain.ErrValidation{Field: "email", Message: "invalid email"}
	}
	c, err := s.deps.Store.FindByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if c == nil {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: email}
	}
	return c, nil
}

func (s *OnboardingService) conversation(sessionID string) (*Conversation, error) {
	conv, ok := s.conversations.Get(sessionID)
	if !ok {
		s.metrics.IncrCacheMiss(conversationCache)
		return nil, &domain.ErrNotFound{Resource: "session", ID: sessionID}
	}
	s.metrics.IncrCacheHit(conversationCache)
	return conv, nil
}

// gather performs the lookups named by need.
func (s *OnboardingService) gather(ctx context.Context, sess odomain.Session, need flow.Need) (flow.Facts, error) {
	var f flow.Facts
	if need.None() {
		return f, nil
	}

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return f, fmt.Errorf("acquire bulkhead: %w", err)
	}
	defer s.bulkhead.Release()

	if need.Customer != "" {
		var err error
		if validation.IsValidEmail(need.Customer) {
			f.Customer, err = s.deps.Store.FindByEmail(ctx, need.Customer)
		} else {
			f.Customer, err = s.deps.Store.FindByMobile(ctx, need.Customer)
		}
		if err != nil {
			s.metrics.IncrExternalError("store")
			return f, fmt.Errorf("customer lookup: %w", err)
		}
	}

	if need.KYCMobile != "" {
		k, err := s.deps.KYC.LookupByMobile(ctx, need.KYCMobile)
		if err != nil {
			s.metrics.IncrExternalError("kyc")
			return f, fmt.Errorf("kyc lookup: %w", err)
		}
		f.KYC = k
	}

	if need.Extract != nil {
		k, err := s.deps.Extractor.Extract(ctx, *need.Extract)
		if err != nil {
			s.metrics.IncrExternalError("extractor")
			return f, fmt.Errorf("extract %s: %w", need.Extract.Slot, err)
		}
		f.Extracted = k
	}

	if need.OTP != nil {
		ok, err := s.deps.OTP.Verify(ctx, sess.ID, *need.OTP)
		if err != nil {
			s.metrics.IncrExternalError("otp")
			return f, fmt.Errorf("verify otp: %w", err)
		}
		f.OTPVerified = ok
	}
	return f, nil
}

// runEffects executes the effects that must succeed for the transition to
// stand. It returns the exported application path, if any.
func (s *OnboardingService) runEffects(ctx context.Context, res flow.Result) (string, error) {
	var artifact string
	for _, e := range res.Effects {
		switch e.Kind {
		case flow.EffectExportPDF:
			path, err := s.deps.Exporter.Export(ctx, res.Session)
			if err != nil {
				return "", fmt.Errorf("export application: %w", err)
			}
			artifact = path
		case flow.EffectOpenOTP:
			to := port.OTPChannels{Mobile: e.Mobile, Email: e.Email}
			if err := s.deps.OTP.Open(ctx, res.Session.ID, to); err != nil {
				return "", fmt.Errorf("open otp: %w", err)
			}
		case flow.EffectResendOTP:
			if err := s.deps.OTP.Resend(ctx, res.Session.ID); err != nil {
				return "", fmt.Errorf("resend otp: %w", err)
			}
		}
	}
	return artifact, nil
}

// checkpoint persists the conversation. Failures are logged and counted;
// the conversation carries on.
func (s *OnboardingService) checkpoint(ctx context.Context, conv *Conversation) {
	ctx, span := tracer.Start(ctx, "OnboardingService.checkpoint")
	defer span.End()

	sess := conv.session
	email := sess.Fields.Email
	if email == "" {
		return
	}

	existing, err := s.deps.Store.FindByEmail(ctx, email)
	if err != nil {
		s.checkpointFailed(sess, err)
		return
	}
	if sess.Fields.CustomerID == "" {
		if existing != nil {
			sess.Fields.CustomerID = existing.ID
		} else {
			sess.Fields.CustomerID = s.deps.Store.NewID()
		}
		conv.session.Fields.CustomerID = sess.Fields.CustomerID
	}

	c := odomain.Project(sess, existing)
	if sess.Step == odomain.StepCompleted && c.AssignedRepresentative == nil {
		rep := s.machine.Catalog().Rep()
		c.AssignedRepresentative = &rep
	}

	if err := s.deps.Store.Upsert(ctx, c); err != nil {
		s.checkpointFailed(sess, err)
		return
	}
	entry := odomain.HistoryEntry{
		Step:      sess.Step,
		Timestamp: s.now(),
		Data:      odomain.CheckpointData(sess),
	}
	if err := s.deps.Store.AppendHistory(ctx, email, entry); err != nil {
		s.checkpointFailed(sess, err)
		return
	}

	s.metrics.IncrCheckpoint("ok")
	s.logger.Debug("checkpoint saved",
		zap.String("session_id", sess.ID),
		zap.String("customer_id", c.ID),
		zap.String("step", string(sess.Step)),
	)
}

func (s *OnboardingService) checkpointFailed(sess odomain.Session, err error) {
	s.metrics.IncrCheckpoint("failed")
	s.metrics.IncrExternalError("store")
	s.logger.Error("checkpoint failed",
		zap.String("session_id", sess.ID),
		zap.String("step", string(sess.Step)),
		zap.Error(err),
	)
}

// notifyCompletion publishes the completion event and, when a mailer is
// configured, sends the welcome e-mail. Failures are logged only.
func (s *OnboardingService) notifyCompletion(ctx context.Context, sess odomain.Session) {
	f := sess.Fields
	linked := f.ConfirmLinking != nil && *f.ConfirmLinking
	rep := s.machine.Catalog().Rep()
	ev := odomain.CompletionEvent{
		CustomerID:          f.CustomerID,
		CaseNumber:          f.CaseNumber,
		Name:                f.Name,
		BusinessName:        f.BusinessName,
		Email:               f.Email,
		MobileNumber:        f.MobileNumber,
		ServiceType:         f.ServiceType,
		LinkedAccount:       linked,
		RepresentativeName:  rep.Name,
		RepresentativePhone: rep.Mobile,
		CompletedAt:         s.now(),
	}

	account := "new"
	if linked {
		account = "linked"
	}
	s.metrics.IncrCompletion(account)
	s.logger.Info("onboarding completed",
		zap.String("session_id", sess.ID),
		zap.String("case_number", f.CaseNumber),
		zap.String("account", account),
	)

	if err := s.deps.Publisher.PublishCompletion(ctx, ev); err != nil {
		s.metrics.IncrExternalError("publisher")
		s.logger.Error("failed to publish completion",
			zap.String("case_number", f.CaseNumber),
			zap.Error(err),
		)
	}
	if s.deps.Mailer != nil {
		if err := s.deps.Mailer.SendWelcome(ctx, ev); err != nil {
			s.metrics.IncrExternalError("mail")
			s.logger.Error("failed to send welcome mail",
				zap.String("case_number", f.CaseNumber),
				zap.Error(err),
			)
		}
	}
}

func (s *OnboardingService) apologize(ctx context.Context, conv *Conversation, at odomain.Session, cause error) *Reply {
	trace.SpanFromContext(ctx).RecordError(cause)
	s.metrics.IncrTransition(string(at.Step), outcomeFailed)
	messages := []string{msgInternalError}
	options := s.machine.Options(at.Step)
	conv.say(s.now(), messages, options)
	return replyFor(at, messages, options, outcomeFailed, false)
}

func replyFor(sess odomain.Session, messages, options []string, outcome string, rejected bool) *Reply {
	return &Reply{
		SessionID:  sess.ID,
		Step:       sess.Step,
		Messages:   messages,
		Options:    options,
		Progress:   flow.Progress(sess.Step),
		Outcome:    outcome,
		Rejected:   rejected,
		CaseNumber: sess.Fields.CaseNumber,
	}
}

// describeEvent renders the user's side of the transcript. OTP codes are
// never recorded.
func describeEvent(ev odomain.Event) string {
	switch ev.Kind {
	case odomain.EventUpload:
		if ev.Upload != nil {
			return fmt.Sprintf("📎 %s", ev.Upload.FileName)
		}
	case odomain.EventOTP:
		return "🔐 ******"
	}
	return ev.Value
}
