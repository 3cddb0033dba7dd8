// Package flow is the onboarding dialogue: a pure transition function from
// (session, event, facts) to the next session, the bot's reply and the side
// effects the caller must run. It performs no I/O; everything it needs to know
// about the outside world arrives in Facts, and Need tells the caller which
// facts to gather before calling Transition.
package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/catalog"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/validation"
)

// Outcome classifies what a transition did with the input.
type Outcome string

const (
	// OutcomeAccepted means the input was understood. The step may be unchanged
	// for inputs such as "Resend OTP".
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRetry means the input failed validation; the step is unchanged.
	OutcomeRetry Outcome = "retry"
	// OutcomeRejected means the input is not something the step accepts at
	// all (unknown option, wrong event kind, input after completion).
	OutcomeRejected Outcome = "rejected"
)

// EffectKind names a side effect requested by a transition.
type EffectKind string

const (
	EffectExportPDF        EffectKind = "export_pdf"
	EffectOpenOTP          EffectKind = "open_otp"
	EffectResendOTP        EffectKind = "resend_otp"
	EffectNotifyCompletion EffectKind = "notify_completion"
)

// Effect is a side effect the caller runs after a transition. Mobile and
// Email are the OTP destinations for the OTP effects.
type Effect struct {
	Kind   EffectKind
	Mobile string
	Email  string
}

// Need lists the facts Transition requires for an event. The zero value
// needs nothing.
type Need struct {
	// Customer is an email or mobile number to look up in the customer store.
	Customer string
	// KYCMobile is a mobile number to look up in the KYC directory.
	KYCMobile string
	// Extract is an upload whose document details must be extracted.
	Extract *domain.Upload
	// OTP are codes to verify against the session's open challenge.
	OTP *domain.OTPCodes
}

// None reports whether no facts are required.
func (n Need) None() bool {
	return n.Customer == "" && n.KYCMobile == "" && n.Extract == nil && n.OTP == nil
}

// Facts carries the results of the lookups named by Need.
type Facts struct {
	Now         time.Time
	Customer    *domain.StoredCustomer
	KYC         *domain.KYCRecord
	Extracted   *domain.KYCRecord
	OTPVerified bool
}

// Result is the outcome of one transition.
type Result struct {
	Session  domain.Session
	Messages []string
	Options  []string
	Effects  []Effect
	Outcome  Outcome
	// Reason explains a retry or rejection for logs; it is not shown to users.
	Reason string
}

// Advanced reports whether the step changed.
func (r Result) Advanced(from domain.Step) bool {
	return r.Session.Step != from
}

type stepHandler func(s domain.Session, ev domain.Event, f Facts) Result

// Machine runs the onboarding dialogue over a catalog of offers.
type Machine struct {
	catalog  *catalog.Catalog
	handlers map[domain.Step]stepHandler
}

// New builds a Machine for the given catalog.
func New(cat *catalog.Catalog) *Machine {
	m := &Machine{catalog: cat}
	m.handlers = map[domain.Step]stepHandler{
		domain.StepWelcome:             m.welcome,
		domain.StepName:                m.name,
		domain.StepBusinessName:        m.businessName,
		domain.StepEmail:               m.email,
		domain.StepReturningCustomer:   m.returningCustomer,
		domain.StepServiceSelection:    m.serviceSelection,
		domain.StepPOSOptions:          m.posOptions,
		domain.StepPGOptions:           m.pgOptions,
		domain.StepExistingCustomer:    m.existingCustomer,
		domain.StepMobileNumber:        m.mobileNumber,
		domain.StepKYCConfirmation:     m.kycConfirmation,
		domain.StepBusinessCategory:    m.businessCategory,
		domain.StepAnnualTurnover:      m.annualTurnover,
		domain.StepPricingOptions:      m.pricingOptions,
		domain.StepNegotiation:         m.negotiation,
		domain.StepNegotiationResponse: m.negotiationResponse,
		domain.StepGSTUpload:           m.upload,
		domain.StepPANUpload:           m.upload,
		domain.StepIncorporationUpload: m.upload,
		domain.StepMOAUpload:           m.upload,
		domain.StepEvaluation:          m.evaluation,
		domain.StepPDFGeneration:       m.pdfGeneration,
		domain.StepOTPVerification:     m.otpVerification,
		domain.StepCompleted:           m.completed,

		domain.StepStatusCheckContact:    m.statusCheckContact,
		domain.StepStatusOTPVerification: m.statusOTPVerification,
	}
	return m
}

// Catalog returns the offers the machine presents.
func (m *Machine) Catalog() *catalog.Catalog { return m.catalog }

// Handles reports whether the machine has a handler for step.
func (m *Machine) Handles(step domain.Step) bool {
	_, ok := m.handlers[step]
	return ok
}

// Start opens a conversation at the welcome step.
func (m *Machine) Start(id string, now time.Time) Result {
	s := domain.NewSession(id, now)
	return Result{
		Session:  s,
		Messages: []string{msgWelcome, msgWelcomeChoice},
		Options:  m.Options(domain.StepWelcome),
		Outcome:  OutcomeAccepted,
	}
}

// Need reports the facts Transition requires for ev at the session's current
// step. Inputs that will fail validation need nothing.
func (m *Machine) Need(s domain.Session, ev domain.Event) Need {
	switch s.Step {
	case domain.StepEmail:
		if ev.Kind == domain.EventText && validation.IsValidEmail(ev.Value) && m.emailChangeAllowed(s, ev.Value) {
			return Need{Customer: validation.NormalizeEmail(ev.Value)}
		}
	case domain.StepReturningCustomer:
		if c, ok := m.choose(s, ev); ok && c.ID == OptContinueSaved {
			return Need{Customer: s.Fields.Email}
		}
	case domain.StepMobileNumber:
		if ev.Kind == domain.EventText && validation.IsValidMobile(ev.Value) {
			return Need{KYCMobile: validation.Digits(ev.Value)}
		}
	case domain.StepGSTUpload, domain.StepPANUpload, domain.StepIncorporationUpload, domain.StepMOAUpload:
		if ev.Kind == domain.EventUpload && ev.Upload != nil &&
			ev.Upload.Slot == uploadSlots[s.Step] && strings.TrimSpace(ev.Upload.FileName) != "" {
			up := *ev.Upload
			return Need{Extract: &up}
		}
	case domain.StepOTPVerification:
		if codes, ok := otpCodes(ev); ok {
			return Need{OTP: codes}
		}
	case domain.StepStatusCheckContact:
		if contact, ok := contactOf(ev); ok {
			return Need{Customer: contact}
		}
	case domain.StepStatusOTPVerification:
		if codes, ok := otpCodes(ev); ok {
			return Need{OTP: codes, Customer: s.Lookup}
		}
	}
	return Need{}
}

// Transition applies ev to s. The input session is never modified.
func (m *Machine) Transition(s domain.Session, ev domain.Event, f Facts) Result {
	if f.Now.IsZero() {
		f.Now = time.Now()
	}
	h, ok := m.handlers[s.Step]
	if !ok {
		return Result{
			Session:  s.Clone(),
			Messages: []string{msgUnknownStep},
			Outcome:  OutcomeRejected,
			Reason:   fmt.Sprintf("no handler for step %q", s.Step),
		}
	}
	res := h(s.Clone(), ev, f)
	if to := res.Session.Step; to != s.Step && !IsValidTransition(s.Step, to) {
		return Result{
			Session:  s.Clone(),
			Messages: []string{msgNotUnderstood},
			Options:  m.Options(s.Step),
			Outcome:  OutcomeRejected,
			Reason:   fmt.Sprintf("illegal transition %s -> %s", s.Step, to),
		}
	}
	return res
}

// ============================================================
// Result builders
// ============================================================

// to moves s to step and presents msgs with that step's options.
func (m *Machine) to(s domain.Session, step domain.Step, msgs ...string) Result {
	s.Step = step
	return Result{Session: s, Messages: msgs, Options: m.Options(step), Outcome: OutcomeAccepted}
}

// retry keeps s at its step with a validation message.
func (m *Machine) retry(s domain.Session, reason string, msgs ...string) Result {
	return Result{Session: s, Messages: msgs, Options: m.Options(s.Step), Outcome: OutcomeRetry, Reason: reason}
}

// reject keeps s at its step with the fallback message and the step's options.
func (m *Machine) reject(s domain.Session, ev domain.Event, reason string) Result {
	msg := msgNotUnderstood
	switch {
	case m.Choices(s.Step) != nil:
		msg = msgPickOption
	case uploadSlots[s.Step] != "":
		msg = fmt.Sprintf(msgUploadExpected, slotTitles[uploadSlots[s.Step]])
	}
	return Result{
		Session:  s,
		Messages: []string{msg},
		Options:  m.Options(s.Step),
		Outcome:  OutcomeRejected,
		Reason:   fmt.Sprintf("%s (event %s %q)", reason, ev.Kind, ev.Value),
	}
}

// choose resolves an option click, or a typed option label, at s's step.
func (m *Machine) choose(s domain.Session, ev domain.Event) (Choice, bool) {
	if ev.Kind != domain.EventOption && ev.Kind != domain.EventText {
		return Choice{}, false
	}
	return m.resolve(s.Step, strings.TrimSpace(ev.Value))
}

// option runs a handler for an option step, rejecting anything that is not
// one of the step's options.
func (m *Machine) option(s domain.Session, ev domain.Event, next func(Choice) Result) Result {
	c, ok := m.choose(s, ev)
	if !ok {
		if ev.Kind == domain.EventOption || ev.Kind == domain.EventText {
			return m.reject(s, ev, "unrecognized option")
		}
		return m.reject(s, ev, "unexpected event kind")
	}
	return next(c)
}

// text extracts trimmed free text, or reports that ev is not text.
func text(ev domain.Event) (string, bool) {
	if ev.Kind != domain.EventText {
		return "", false
	}
	return strings.TrimSpace(ev.Value), true
}

func otpCodes(ev domain.Event) (*domain.OTPCodes, bool) {
	if ev.Kind != domain.EventOTP || ev.Codes == nil {
		return nil, false
	}
	codes := domain.OTPCodes{Mobile: strings.TrimSpace(ev.Codes.Mobile), Email: strings.TrimSpace(ev.Codes.Email)}
	if !validation.IsValidOTP(codes.Mobile) || !validation.IsValidOTP(codes.Email) {
		return nil, false
	}
	return &codes, true
}

// contactOf reads an email or mobile number typed on the status path.
func contactOf(ev domain.Event) (string, bool) {
	v, ok := text(ev)
	if !ok {
		return "", false
	}
	switch {
	case validation.IsValidEmail(v):
		return validation.NormalizeEmail(v), true
	case validation.IsValidMobile(v):
		return validation.Digits(v), true
	}
	return "", false
}

// caseNumber derives the application case number from the clock.
func caseNumber(now time.Time) string {
	return fmt.Sprintf("CASE%08d", now.UnixMilli()%100_000_000)
}

// otpDestinations picks where codes go. Merchants without a mobile number on
// file receive both codes by email.
func otpDestinations(f domain.Fields) Effect {
	mobile := f.MobileNumber
	if mobile == "" {
		mobile = f.Email
	}
	return Effect{Kind: EffectOpenOTP, Mobile: mobile, Email: f.Email}
}
