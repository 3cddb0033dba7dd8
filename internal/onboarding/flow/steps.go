package flow

import (
	"fmt"
	"strings"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/catalog"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/validation"
)

// ============================================================
// Identity: welcome, name, business name, email
// ============================================================

func (m *Machine) welcome(s domain.Session, ev domain.Event, _ Facts) Result {
	return m.option(s, ev, func(c Choice) Result {
		if c.ID == OptCheckStatus {
			return m.statusPrompt(s)
		}
		return m.to(s, domain.StepName, msgAskName)
	})
}

func (m *Machine) name(s domain.Session, ev domain.Event, _ Facts) Result {
	v, ok := text(ev)
	if !ok {
		return m.reject(s, ev, "expected text")
	}
	if v == "" {
		return m.retry(s, "empty name", msgInvalidName)
	}
	s.Fields.Name = v
	return m.to(s, domain.StepBusinessName, fmt.Sprintf(msgAskBusiness, v))
}

func (m *Machine) businessName(s domain.Session, ev domain.Event, _ Facts) Result {
	v, ok := text(ev)
	if !ok {
		return m.reject(s, ev, "expected text")
	}
	if v == "" {
		return m.retry(s, "empty business name", msgInvalidBusiness)
	}
	s.Fields.BusinessName = v
	return m.to(s, domain.StepEmail, msgAskEmail)
}

// emailChangeAllowed reports whether v may be recorded as the session email.
// Once set, the email is fixed for the rest of the session.
func (m *Machine) emailChangeAllowed(s domain.Session, v string) bool {
	return s.Fields.Email == "" || strings.EqualFold(s.Fields.Email, validation.NormalizeEmail(v))
}

func (m *Machine) email(s domain.Session, ev domain.Event, f Facts) Result {
	v, ok := text(ev)
	if !ok {
		return m.reject(s, ev, "expected text")
	}
	if !validation.IsValidEmail(v) {
		return m.retry(s, "invalid email", msgInvalidEmail)
	}
	if !m.emailChangeAllowed(s, v) {
		return m.retry(s, "email is immutable", fmt.Sprintf(msgEmailLocked, s.Fields.Email))
	}
	s.Fields.Email = validation.NormalizeEmail(v)

	if f.Customer != nil {
		s.Fields.CustomerID = f.Customer.ID
		return m.to(s, domain.StepReturningCustomer, domain.Summarize(f.Customer), msgReturning)
	}
	return m.to(s, domain.StepServiceSelection, msgAskService)
}

func (m *Machine) returningCustomer(s domain.Session, ev domain.Event, f Facts) Result {
	return m.option(s, ev, func(c Choice) Result {
		if c.ID == OptStartFresh {
			return m.to(s, domain.StepServiceSelection, msgFreshStart, msgAskService)
		}
		if f.Customer == nil {
			return m.to(s, domain.StepServiceSelection, msgRestoreFailed, msgAskService)
		}
		s.Fields = f.Customer.Restore(s.Fields)
		return m.to(s, domain.StepServiceSelection, fmt.Sprintf(msgRestored, s.Fields.Name), msgAskService)
	})
}

// ============================================================
// Service selection: bundle, POS model, PG plan
// ============================================================

func (m *Machine) serviceSelection(s domain.Session, ev domain.Event, _ Facts) Result {
	return m.option(s, ev, func(c Choice) Result {
		st, _ := m.catalog.ServiceFor(c.Label)
		s.Fields.ServiceType = st
		if !st.WantsPOS() {
			s.Fields.SelectedPOSModel = ""
		}
		if !st.WantsPG() {
			s.Fields.SelectedPGPlan = ""
		}
		if st.WantsPOS() {
			return m.to(s, domain.StepPOSOptions, msgAskPOS+"\n\n"+catalog.Describe(m.catalog.POSModels))
		}
		return m.to(s, domain.StepPGOptions, msgAskPG+"\n\n"+catalog.Describe(m.catalog.PGPlans))
	})
}

func (m *Machine) posOptions(s domain.Session, ev domain.Event, _ Facts) Result {
	return m.option(s, ev, func(c Choice) Result {
		s.Fields.SelectedPOSModel = c.Label
		if s.Fields.ServiceType.WantsPG() {
			return m.to(s, domain.StepPGOptions, msgAskPG+"\n\n"+catalog.Describe(m.catalog.PGPlans))
		}
		return m.to(s, domain.StepExistingCustomer, msgAskExisting)
	})
}

func (m *Machine) pgOptions(s domain.Session, ev domain.Event, _ Facts) Result {
	return m.option(s, ev, func(c Choice) Result {
		s.Fields.SelectedPGPlan = c.Label
		return m.to(s, domain.StepExistingCustomer, msgAskExisting)
	})
}

// ============================================================
// Existing customers: mobile number, KYC lookup, account linking
// ============================================================

func (m *Machine) existingCustomer(s domain.Session, ev domain.Event, _ Facts) Result {
	return m.option(s, ev, func(c Choice) Result {
		if c.ID == OptExistingYes {
			s.Fields.IsExistingCustomer = true
			return m.to(s, domain.StepMobileNumber, msgAskMobile)
		}
		s.Fields.IsExistingCustomer = false
		return m.to(s, domain.StepBusinessCategory, categoryPrompt(msgNewCustomer)...)
	})
}

func (m *Machine) mobileNumber(s domain.Session, ev domain.Event, f Facts) Result {
	v, ok := text(ev)
	if !ok {
		return m.reject(s, ev, "expected text")
	}
	if !validation.IsValidMobile(v) {
		return m.retry(s, "invalid mobile", msgInvalidMobile)
	}
	s.Fields.MobileNumber = validation.Digits(v)

	if f.KYC == nil {
		s.Fields.IsExistingCustomer = false
		return m.to(s, domain.StepBusinessCategory, categoryPrompt(msgFetchingKYC, msgKYCNotFound)...)
	}
	s.Fields.KYC = f.KYC.Clone()
	return m.to(s, domain.StepKYCConfirmation, msgFetchingKYC, kycFoundMessage(s.Fields.KYC))
}

func (m *Machine) kycConfirmation(s domain.Session, ev domain.Event, f Facts) Result {
	return m.option(s, ev, func(c Choice) Result {
		link := c.ID == OptLinkAccount
		s.Fields.ConfirmLinking = &link

		if link {
			s.Fields.KYC = s.Fields.KYC.Merge(&domain.KYCRecord{
				FullName:     s.Fields.Name,
				BusinessName: s.Fields.BusinessName,
			})
			return m.to(s, domain.StepPDFGeneration, linkConfirmedMessage(s.Fields))
		}

		s.Fields.CaseNumber = caseNumber(f.Now)
		r := m.to(s, domain.StepCompleted, newAccountMessage(s.Fields, s.Fields.CaseNumber))
		r.Effects = []Effect{{Kind: EffectNotifyCompletion}}
		return r
	})
}

// ============================================================
// New customers: category, turnover, pricing and negotiation
// ============================================================

func (m *Machine) businessCategory(s domain.Session, ev domain.Event, _ Facts) Result {
	if ev.Kind != domain.EventText && ev.Kind != domain.EventOption {
		return m.reject(s, ev, "unexpected event kind")
	}
	cat, ok := m.catalog.Category(ev.Value)
	if !ok {
		if ev.Kind == domain.EventOption {
			return m.reject(s, ev, "unrecognized option")
		}
		return m.retry(s, "unknown category", msgInvalidCategory)
	}
	s.Fields.BusinessCategory = cat
	return m.to(s, domain.StepAnnualTurnover, msgAskTurnover)
}

func (m *Machine) annualTurnover(s domain.Session, ev domain.Event, _ Facts) Result {
	v, ok := text(ev)
	if !ok {
		return m.reject(s, ev, "expected text")
	}
	if v == "" {
		return m.retry(s, "empty turnover", msgInvalidTurnover)
	}
	s.Fields.AnnualTurnover = v
	return m.to(s, domain.StepPricingOptions, pricingMessage(m.catalog))
}

func (m *Machine) pricingOptions(s domain.Session, ev domain.Event, _ Facts) Result {
	return m.option(s, ev, func(c Choice) Result {
		if c.ID == OptNegotiate {
			return m.to(s, domain.StepNegotiation, msgAskNegotiate)
		}
		s.Fields.SelectedPricingPlan = c.Label
		s.Fields.NegotiatedOffer = ""
		return m.to(s, domain.StepGSTUpload, fmt.Sprintf(msgPlanSelected, c.Label), msgAskGST)
	})
}

func (m *Machine) negotiation(s domain.Session, ev domain.Event, _ Facts) Result {
	v, ok := text(ev)
	if !ok {
		return m.reject(s, ev, "expected text")
	}
	if v == "" {
		return m.retry(s, "empty negotiation note", msgInvalidNote)
	}
	s.Fields.NegotiationNotes = append(s.Fields.NegotiationNotes, v)
	s.Round++
	s.Fields.NegotiatedOffer = m.catalog.Offer(s.Round)
	return m.to(s, domain.StepNegotiationResponse, msgOfferIntro, "💡 "+s.Fields.NegotiatedOffer)
}

func (m *Machine) negotiationResponse(s domain.Session, ev domain.Event, _ Facts) Result {
	return m.option(s, ev, func(c Choice) Result {
		if c.ID == OptDiscussFurther {
			return m.to(s, domain.StepNegotiation, msgNegotiateMore)
		}
		s.Fields.SelectedPricingPlan = "Negotiated: " + s.Fields.NegotiatedOffer
		return m.to(s, domain.StepGSTUpload, msgOfferLocked, msgAskGST)
	})
}

// ============================================================
// Documents: GST, PAN, incorporation certificate, MOA
// ============================================================

var uploadNext = map[domain.Step]domain.Step{
	domain.StepGSTUpload:           domain.StepPANUpload,
	domain.StepPANUpload:           domain.StepIncorporationUpload,
	domain.StepIncorporationUpload: domain.StepMOAUpload,
	domain.StepMOAUpload:           domain.StepEvaluation,
}

// upload records a document and merges what was extracted from it into the
// session's KYC record. Merging is cumulative: earlier uploads are kept.
func (m *Machine) upload(s domain.Session, ev domain.Event, f Facts) Result {
	want := uploadSlots[s.Step]
	if ev.Kind != domain.EventUpload || ev.Upload == nil {
		return m.reject(s, ev, "expected upload")
	}
	if ev.Upload.Slot != want {
		return m.retry(s, fmt.Sprintf("upload for slot %q at %s", ev.Upload.Slot, s.Step), fmt.Sprintf(msgWrongSlot, slotTitles[want]))
	}
	fileName := strings.TrimSpace(ev.Upload.FileName)
	if fileName == "" {
		return m.retry(s, "empty file name", fmt.Sprintf(msgEmptyFile, slotTitles[want]))
	}

	partial := f.Extracted.Clone()
	if partial == nil {
		partial = &domain.KYCRecord{}
	}
	switch want {
	case domain.SlotIncorporation:
		partial.BusinessName = s.Fields.BusinessName
	case domain.SlotMOA:
		partial.FullName = s.Fields.Name
		partial.BusinessName = s.Fields.BusinessName
	}
	s.Fields.KYC = s.Fields.KYC.Merge(partial)
	s.Fields.Documents = s.Fields.Documents.With(want, fileName)

	msg := uploadedMessage(want, fileName, s.Fields.KYC)
	next := uploadNext[s.Step]
	if next == domain.StepEvaluation {
		return m.to(s, next, msg, evaluationMessage(s.Fields))
	}
	return m.to(s, next, msg)
}

// ============================================================
// Finalization: PDF export, OTP verification, completion
// ============================================================

func (m *Machine) evaluation(s domain.Session, ev domain.Event, _ Facts) Result {
	return m.option(s, ev, func(Choice) Result {
		return m.exportAndVerify(s, false)
	})
}

func (m *Machine) pdfGeneration(s domain.Session, ev domain.Event, _ Facts) Result {
	return m.option(s, ev, func(Choice) Result {
		return m.exportAndVerify(s, true)
	})
}

func (m *Machine) exportAndVerify(s domain.Session, linked bool) Result {
	otp := otpDestinations(s.Fields)
	r := m.to(s, domain.StepOTPVerification, pdfMessage(linked), otpSentMessage(otp))
	r.Effects = []Effect{{Kind: EffectExportPDF}, otp}
	return r
}

func (m *Machine) otpVerification(s domain.Session, ev domain.Event, f Facts) Result {
	switch ev.Kind {
	case domain.EventOption, domain.EventText:
		return m.option(s, ev, func(Choice) Result {
			return m.resend(s, otpDestinations(s.Fields))
		})
	case domain.EventOTP:
	default:
		return m.reject(s, ev, "expected otp codes")
	}

	if _, ok := otpCodes(ev); !ok {
		return m.retry(s, "malformed otp", msgInvalidOTP)
	}
	if !f.OTPVerified {
		return m.retry(s, "otp mismatch", msgWrongOTP)
	}

	s.Fields.CaseNumber = caseNumber(f.Now)
	r := m.to(s, domain.StepCompleted, m.completionMessage(s.Fields))
	r.Effects = []Effect{{Kind: EffectNotifyCompletion}}
	return r
}

func (m *Machine) resend(s domain.Session, dest Effect) Result {
	target := "mobile and email"
	if dest.Mobile != "" && dest.Mobile == dest.Email {
		target = "email"
	}
	r := m.to(s, s.Step, fmt.Sprintf(msgResendOTP, target))
	r.Effects = []Effect{{Kind: EffectResendOTP, Mobile: dest.Mobile, Email: dest.Email}}
	return r
}

func (m *Machine) completed(s domain.Session, ev domain.Event, _ Facts) Result {
	return Result{
		Session:  s,
		Messages: []string{fmt.Sprintf(msgAlreadyDone, s.Fields.CaseNumber)},
		Outcome:  OutcomeRejected,
		Reason:   fmt.Sprintf("input after completion (event %s)", ev.Kind),
	}
}

// ============================================================
// Status check: contact lookup and OTP-gated summary
// ============================================================

func (m *Machine) statusPrompt(s domain.Session) Result {
	s.Step = domain.StepStatusCheckContact
	s.Lookup = ""
	return Result{Session: s, Messages: []string{msgStatusAsk}, Outcome: OutcomeAccepted}
}

func (m *Machine) statusCheckContact(s domain.Session, ev domain.Event, f Facts) Result {
	if c, ok := m.choose(s, ev); ok {
		if c.ID == OptStartApplication {
			s.Lookup = ""
			return m.to(s, domain.StepName, msgAskName)
		}
		return m.statusPrompt(s)
	}
	if ev.Kind == domain.EventOption {
		return m.reject(s, ev, "unrecognized option")
	}
	if ev.Kind != domain.EventText {
		return m.reject(s, ev, "expected text")
	}

	contact, ok := contactOf(ev)
	if !ok {
		r := m.retry(s, "invalid contact", msgInvalidContact)
		r.Options = nil
		return r
	}
	if f.Customer == nil {
		return m.retry(s, "no application for contact", fmt.Sprintf(msgStatusNone, contact))
	}

	s.Lookup = contact
	dest := Effect{Kind: EffectOpenOTP, Mobile: f.Customer.MobileNumber, Email: f.Customer.Email}
	if dest.Mobile == "" {
		dest.Mobile = dest.Email
	}
	r := m.to(s, domain.StepStatusOTPVerification,
		fmt.Sprintf(msgStatusFound, f.Customer.BusinessName, mask(dest.Mobile), mask(dest.Email)))
	r.Effects = []Effect{dest}
	return r
}

func (m *Machine) statusOTPVerification(s domain.Session, ev domain.Event, f Facts) Result {
	switch ev.Kind {
	case domain.EventOption, domain.EventText:
		return m.option(s, ev, func(Choice) Result {
			return m.resend(s, Effect{})
		})
	case domain.EventOTP:
	default:
		return m.reject(s, ev, "expected otp codes")
	}

	if _, ok := otpCodes(ev); !ok {
		return m.retry(s, "malformed otp", msgInvalidOTP)
	}
	if !f.OTPVerified {
		return m.retry(s, "otp mismatch", msgWrongOTP)
	}

	s.Lookup = ""
	if f.Customer == nil {
		return m.to(s, domain.StepWelcome, msgStatusFailed, msgAnythingElse)
	}
	return m.to(s, domain.StepWelcome, msgStatusLoaded, domain.Summarize(f.Customer), msgAnythingElse)
}
