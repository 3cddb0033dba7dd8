package flow

import (
	"math"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
)

// validTransitions defines the allowed step changes. A step listing itself
// accepts inputs that keep the conversation in place (resend, try again).
var validTransitions = map[domain.Step][]domain.Step{
	domain.StepWelcome:             {domain.StepName, domain.StepStatusCheckContact},
	domain.StepName:                {domain.StepBusinessName},
	domain.StepBusinessName:        {domain.StepEmail},
	domain.StepEmail:               {domain.StepReturningCustomer, domain.StepServiceSelection},
	domain.StepReturningCustomer:   {domain.StepServiceSelection},
	domain.StepServiceSelection:    {domain.StepPOSOptions, domain.StepPGOptions},
	domain.StepPOSOptions:          {domain.StepPGOptions, domain.StepExistingCustomer},
	domain.StepPGOptions:           {domain.StepExistingCustomer},
	domain.StepExistingCustomer:    {domain.StepMobileNumber, domain.StepBusinessCategory},
	domain.StepMobileNumber:        {domain.StepKYCConfirmation, domain.StepBusinessCategory},
	domain.StepKYCConfirmation:     {domain.StepPDFGeneration, domain.StepCompleted},
	domain.StepBusinessCategory:    {domain.StepAnnualTurnover},
	domain.StepAnnualTurnover:      {domain.StepPricingOptions},
	domain.StepPricingOptions:      {domain.StepGSTUpload, domain.StepNegotiation},
	domain.StepNegotiation:         {domain.StepNegotiationResponse},
	domain.StepNegotiationResponse: {domain.StepGSTUpload, domain.StepNegotiation},
	domain.StepGSTUpload:           {domain.StepPANUpload},
	domain.StepPANUpload:           {domain.StepIncorporationUpload},
	domain.StepIncorporationUpload: {domain.StepMOAUpload},
	domain.StepMOAUpload:           {domain.StepEvaluation},
	domain.StepEvaluation:          {domain.StepOTPVerification},
	domain.StepPDFGeneration:       {domain.StepOTPVerification},
	domain.StepOTPVerification:     {domain.StepOTPVerification, domain.StepCompleted},
	domain.StepCompleted:           {},

	domain.StepStatusCheckContact:    {domain.StepStatusCheckContact, domain.StepStatusOTPVerification, domain.StepName},
	domain.StepStatusOTPVerification: {domain.StepStatusOTPVerification, domain.StepWelcome},
}

// IsValidTransition reports whether moving from one step to another is allowed.
func IsValidTransition(from, to domain.Step) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextSteps returns the steps reachable from s.
func NextSteps(s domain.Step) []domain.Step {
	return append([]domain.Step(nil), validTransitions[s]...)
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s domain.Step) bool {
	next, ok := validTransitions[s]
	return ok && len(next) == 0
}

// checkpointSteps are the steps at which the session is written to the
// customer store once reached.
var checkpointSteps = map[domain.Step]bool{
	domain.StepPOSOptions:          true,
	domain.StepPGOptions:           true,
	domain.StepExistingCustomer:    true,
	domain.StepKYCConfirmation:     true,
	domain.StepPANUpload:           true,
	domain.StepIncorporationUpload: true,
	domain.StepMOAUpload:           true,
	domain.StepEvaluation:          true,
	domain.StepCompleted:           true,
}

// IsCheckpoint reports whether reaching s persists the session.
func IsCheckpoint(s domain.Step) bool {
	return checkpointSteps[s]
}

// progressOrder is the linear order used for the completion percentage.
var progressOrder = []domain.Step{
	domain.StepWelcome,
	domain.StepName,
	domain.StepBusinessName,
	domain.StepEmail,
	domain.StepExistingCustomer,
	domain.StepMobileNumber,
	domain.StepBusinessCategory,
	domain.StepAnnualTurnover,
	domain.StepGSTUpload,
	domain.StepPANUpload,
	domain.StepIncorporationUpload,
	domain.StepMOAUpload,
	domain.StepEvaluation,
	domain.StepKYCConfirmation,
	domain.StepPDFGeneration,
	domain.StepOTPVerification,
	domain.StepCompleted,
}

// progressAlias places steps outside progressOrder next to their neighbours.
var progressAlias = map[domain.Step]domain.Step{
	domain.StepReturningCustomer:     domain.StepEmail,
	domain.StepServiceSelection:      domain.StepEmail,
	domain.StepPOSOptions:            domain.StepEmail,
	domain.StepPGOptions:             domain.StepEmail,
	domain.StepPricingOptions:        domain.StepAnnualTurnover,
	domain.StepNegotiation:           domain.StepAnnualTurnover,
	domain.StepNegotiationResponse:   domain.StepAnnualTurnover,
	domain.StepStatusCheckContact:    domain.StepWelcome,
	domain.StepStatusOTPVerification: domain.StepWelcome,
}

// Progress returns the rounded completion percentage shown for s.
func Progress(s domain.Step) int {
	if alias, ok := progressAlias[s]; ok {
		s = alias
	}
	for i, p := range progressOrder {
		if p == s {
			return int(math.Round(float64(i+1) / float64(len(progressOrder)) * 100))
		}
	}
	return 0
}
