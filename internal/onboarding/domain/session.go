// Package domain defines the merchant onboarding conversation model: the
// Session accumulated by the dialogue, the durable StoredCustomer checkpoint,
// KYC records and the events a user can send.
package domain

import "time"

// ============================================================
// Step — position of a conversation in the onboarding dialogue
// ============================================================

// Step names one node of the onboarding dialogue.
type Step string

const (
	StepWelcome             Step = "welcome"
	StepName                Step = "name"
	StepBusinessName        Step = "businessName"
	StepEmail               Step = "email"
	StepReturningCustomer   Step = "returningCustomer"
	StepServiceSelection    Step = "serviceSelection"
	StepPOSOptions          Step = "posOptions"
	StepPGOptions           Step = "pgOptions"
	StepExistingCustomer    Step = "existingCustomer"
	StepMobileNumber        Step = "mobileNumber"
	StepKYCConfirmation     Step = "kycConfirmation"
	StepBusinessCategory    Step = "businessCategory"
	StepAnnualTurnover      Step = "annualTurnover"
	StepPricingOptions      Step = "pricingOptions"
	StepNegotiation         Step = "negotiation"
	StepNegotiationResponse Step = "negotiationResponse"
	StepGSTUpload           Step = "gstUpload"
	StepPANUpload           Step = "panUpload"
	StepIncorporationUpload Step = "incorporationUpload"
	StepMOAUpload           Step = "moaUpload"
	StepEvaluation          Step = "evaluation"
	StepPDFGeneration       Step = "pdfGeneration"
	StepOTPVerification     Step = "otpVerification"
	StepCompleted           Step = "completed"

	StepStatusCheckContact    Step = "statusCheckContact"
	StepStatusOTPVerification Step = "statusOTPVerification"
)

// AllSteps lists every step in dialogue order, status sub-path last.
func AllSteps() []Step {
	return []Step{
		StepWelcome, StepName, StepBusinessName, StepEmail, StepReturningCustomer,
		StepServiceSelection, StepPOSOptions, StepPGOptions, StepExistingCustomer,
		StepMobileNumber, StepKYCConfirmation, StepBusinessCategory, StepAnnualTurnover,
		StepPricingOptions, StepNegotiation, StepNegotiationResponse,
		StepGSTUpload, StepPANUpload, StepIncorporationUpload, StepMOAUpload,
		StepEvaluation, StepPDFGeneration, StepOTPVerification, StepCompleted,
		StepStatusCheckContact, StepStatusOTPVerification,
	}
}

// ServiceType is the product bundle the merchant asks for.
type ServiceType string

const (
	ServicePaymentGateway ServiceType = "payment-gateway"
	ServicePOSMachine     ServiceType = "pos-machine"
	ServiceBoth           ServiceType = "both"
)

// WantsPOS reports whether the bundle includes a POS machine.
func (t ServiceType) WantsPOS() bool {
	return t == ServicePOSMachine || t == ServiceBoth
}

// WantsPG reports whether the bundle includes the payment gateway.
func (t ServiceType) WantsPG() bool {
	return t == ServicePaymentGateway || t == ServiceBoth
}

// ============================================================
// Documents — uploaded-document markers (presence, not content)
// ============================================================

// UploadSlot identifies one of the four compliance documents.
type UploadSlot string

const (
	SlotGST           UploadSlot = "gst"
	SlotPAN           UploadSlot = "pan"
	SlotIncorporation UploadSlot = "incorporation"
	SlotMOA           UploadSlot = "moa"
)

// Documents records which uploads happened and under which file name.
// An empty name means the document is absent.
type Documents struct {
	GST           string `json:"gst,omitempty"`
	PAN           string `json:"pan,omitempty"`
	Incorporation string `json:"incorporation,omitempty"`
	MOA           string `json:"moa,omitempty"`
}

// Has reports whether the slot has been uploaded.
func (d Documents) Has(slot UploadSlot) bool {
	switch slot {
	case SlotGST:
		return d.GST != ""
	case SlotPAN:
		return d.PAN != ""
	case SlotIncorporation:
		return d.Incorporation != ""
	case SlotMOA:
		return d.MOA != ""
	}
	return false
}

// With returns a copy of d with the slot marked as uploaded.
func (d Documents) With(slot UploadSlot, fileName string) Documents {
	switch slot {
	case SlotGST:
		d.GST = fileName
	case SlotPAN:
		d.PAN = fileName
	case SlotIncorporation:
		d.Incorporation = fileName
	case SlotMOA:
		d.MOA = fileName
	}
	return d
}

// ============================================================
// Session — the record accumulated across steps
// ============================================================

// Fields are the answers collected so far.
type Fields struct {
	Name         string `json:"name,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	// Email is immutable once set.
	Email        string `json:"email,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`

	BusinessCategory string      `json:"business_category,omitempty"`
	AnnualTurnover   string      `json:"annual_turnover,omitempty"`
	ServiceType      ServiceType `json:"service_type,omitempty"`

	SelectedPOSModel    string `json:"selected_pos_model,omitempty"`
	SelectedPGPlan      string `json:"selected_pg_plan,omitempty"`
	SelectedPricingPlan string `json:"selected_pricing_plan,omitempty"`

	NegotiationNotes []string `json:"negotiation_notes,omitempty"`
	NegotiatedOffer  string   `json:"negotiated_offer,omitempty"`

	Documents Documents  `json:"documents"`
	KYC       *KYCRecord `json:"kyc,omitempty"`

	IsExistingCustomer bool  `json:"is_existing_customer"`
	ConfirmLinking     *bool `json:"confirm_linking,omitempty"`

	CaseNumber string `json:"case_number,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
}

// Clone returns a deep copy of f.
func (f Fields) Clone() Fields {
	c := f
	if f.NegotiationNotes != nil {
		c.NegotiationNotes = append([]string(nil), f.NegotiationNotes...)
	}
	c.KYC = f.KYC.Clone()
	if f.ConfirmLinking != nil {
		v := *f.ConfirmLinking
		c.ConfirmLinking = &v
	}
	return c
}

// Session is one conversation. It is a value: the dialogue never mutates a
// Session it was given, it returns a new one.
type Session struct {
	ID     string `json:"id"`
	Step   Step   `json:"step"`
	Fields Fields `json:"fields"`

	// Round counts completed negotiation exchanges.
	Round int `json:"round"`

	// Lookup is the contact (email or mobile) being verified on the status path.
	Lookup string `json:"lookup,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewSession starts a conversation at the welcome step with empty fields.
func NewSession(id string, now time.Time) Session {
	return Session{ID: id, Step: StepWelcome, CreatedAt: now}
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	c := s
	c.Fields = s.Fields.Clone()
	return c
}
