package flow

import (
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
)

// OptionID identifies what an option does, independent of its label.
type OptionID string

const (
	OptStartApplication OptionID = "start_application"
	OptCheckStatus      OptionID = "check_status"
	OptContinueSaved    OptionID = "continue_saved"
	OptStartFresh       OptionID = "start_fresh"
	OptService          OptionID = "service"
	OptPOSModel         OptionID = "pos_model"
	OptPGPlan           OptionID = "pg_plan"
	OptExistingYes      OptionID = "existing_yes"
	OptExistingNo       OptionID = "existing_no"
	OptLinkAccount      OptionID = "link_account"
	OptNewAccount       OptionID = "new_account"
	OptCategory         OptionID = "category"
	OptPricingPlan      OptionID = "pricing_plan"
	OptNegotiate        OptionID = "negotiate"
	OptAcceptOffer      OptionID = "accept_offer"
	OptDiscussFurther   OptionID = "discuss_further"
	OptDownloadPDF      OptionID = "download_pdf"
	OptGeneratePDF      OptionID = "generate_pdf"
	OptResendOTP        OptionID = "resend_otp"
	OptTryAgain         OptionID = "try_again"
)

// Fixed option labels.
const (
	LabelStartApplication = "Start new application"
	LabelCheckStatus      = "Check application status"
	LabelContinueSaved    = "Continue with saved details"
	LabelStartFresh       = "Start fresh"
	LabelExistingYes      = "Yes, I am"
	LabelExistingNo       = "No, I'm new"
	LabelLinkAccount      = "Yes, link this account"
	LabelNewAccount       = "No, create a new account"
	LabelNegotiate        = "I need to negotiate"
	LabelAcceptOffer      = "Accept offer"
	LabelDiscussFurther   = "Discuss further modifications"
	LabelDownloadPDF      = "Download Complete Application PDF"
	LabelGeneratePDF      = "Generate Complete PDF & Proceed"
	LabelResendOTP        = "Resend OTP"
	LabelTryAgain         = "Try another email or mobile"
)

// aliases are older labels still accepted for the same option.
var aliases = map[string]string{
	"Download Application PDF": LabelDownloadPDF,
	"Generate PDF & Proceed":   LabelGeneratePDF,
}

// Choice is one option offered at a step.
type Choice struct {
	ID    OptionID
	Label string
}

func fixed(pairs ...Choice) []Choice { return pairs }

func labeled(id OptionID, labels []string) []Choice {
	out := make([]Choice, len(labels))
	for i, l := range labels {
		out[i] = Choice{ID: id, Label: l}
	}
	return out
}

// Choices lists every option accepted at step, in display order. Steps that
// only take free text, uploads or OTP codes return nil.
func (m *Machine) Choices(step domain.Step) []Choice {
	switch step {
	case domain.StepWelcome:
		return fixed(Choice{OptStartApplication, LabelStartApplication}, Choice{OptCheckStatus, LabelCheckStatus})
	case domain.StepReturningCustomer:
		return fixed(Choice{OptContinueSaved, LabelContinueSaved}, Choice{OptStartFresh, LabelStartFresh})
	case domain.StepServiceSelection:
		return labeled(OptService, m.catalog.ServiceLabels())
	case domain.StepPOSOptions:
		return labeled(OptPOSModel, m.catalog.POSLabels())
	case domain.StepPGOptions:
		return labeled(OptPGPlan, m.catalog.PGLabels())
	case domain.StepExistingCustomer:
		return fixed(Choice{OptExistingYes, LabelExistingYes}, Choice{OptExistingNo, LabelExistingNo})
	case domain.StepKYCConfirmation:
		return fixed(Choice{OptLinkAccount, LabelLinkAccount}, Choice{OptNewAccount, LabelNewAccount})
	case domain.StepBusinessCategory:
		return labeled(OptCategory, m.catalog.Categories)
	case domain.StepPricingOptions:
		return append(labeled(OptPricingPlan, m.catalog.PricingLabels()), Choice{OptNegotiate, LabelNegotiate})
	case domain.StepNegotiationResponse:
		return fixed(Choice{OptAcceptOffer, LabelAcceptOffer}, Choice{OptDiscussFurther, LabelDiscussFurther})
	case domain.StepEvaluation:
		return fixed(Choice{OptDownloadPDF, LabelDownloadPDF})
	case domain.StepPDFGeneration:
		return fixed(Choice{OptGeneratePDF, LabelGeneratePDF})
	case domain.StepOTPVerification, domain.StepStatusOTPVerification:
		return fixed(Choice{OptResendOTP, LabelResendOTP})
	case domain.StepStatusCheckContact:
		return fixed(Choice{OptTryAgain, LabelTryAgain}, Choice{OptStartApplication, LabelStartApplication})
	}
	return nil
}

// Options returns the labels of Choices(step).
func (m *Machine) Options(step domain.Step) []string {
	choices := m.Choices(step)
	if choices == nil {
		return nil
	}
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = c.Label
	}
	return out
}

// resolve matches label against the options of step by exact string.
func (m *Machine) resolve(step domain.Step, label string) (Choice, bool) {
	if canonical, ok := aliases[label]; ok {
		label = canonical
	}
	for _, c := range m.Choices(step) {
		if c.Label == label {
			return c, true
		}
	}
	return Choice{}, false
}
