package domain

import (
	"fmt"
	"strings"
	"time"
)

// Representative is the merchant representative assigned on completion.
type Representative struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

// HistoryEntry is one checkpoint in a customer's conversation history.
type HistoryEntry struct {
	Step      Step              `json:"step"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}

// StoredCustomer is the durable, email-keyed checkpoint of a Session.
// ConversationHistory is append-only and only grows through the store's
// AppendHistory.
type StoredCustomer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BusinessName string `json:"business_name"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number,omitempty"`

	ServiceType         ServiceType `json:"service_type,omitempty"`
	SelectedPOSModel    string      `json:"selected_pos_model,omitempty"`
	SelectedPGPlan      string      `json:"selected_pg_plan,omitempty"`
	SelectedPricingPlan string      `json:"selected_pricing_plan,omitempty"`
	BusinessCategory    string      `json:"business_category,omitempty"`
	AnnualTurnover      string      `json:"annual_turnover,omitempty"`

	OnboardingStep Step      `json:"onboarding_step,omitempty"`
	LastVisit      time.Time `json:"last_visit"`

	ConversationHistory []HistoryEntry `json:"conversation_history"`

	IsOnboardingComplete   bool            `json:"is_onboarding_complete"`
	AssignedRepresentative *Representative `json:"assigned_representative,omitempty"`

	KYC        *KYCRecord `json:"kyc,omitempty"`
	CaseNumber string     `json:"case_number,omitempty"`
}

// Clone returns a deep copy.
func (c *StoredCustomer) Clone() *StoredCustomer {
	if c == nil {
		return nil
	}
	out := *c
	out.ConversationHistory = make([]HistoryEntry, len(c.ConversationHistory))
	for i, h := range c.ConversationHistory {
		out.ConversationHistory[i] = h.clone()
	}
	if c.AssignedRepresentative != nil {
		rep := *c.AssignedRepresentative
		out.AssignedRepresentative = &rep
	}
	out.KYC = c.KYC.Clone()
	return &out
}

func (h HistoryEntry) clone() HistoryEntry {
	if h.Data == nil {
		return h
	}
	data := make(map[string]string, len(h.Data))
	for k, v := range h.Data {
		data[k] = v
	}
	h.Data = data
	return h
}

// ============================================================
// Projection — Session <-> StoredCustomer
// ============================================================

// Project builds the checkpoint for s. Identity that belongs to the stored
// record (ID, history, representative) is carried over from existing, which
// may be nil for a first checkpoint.
func Project(s Session, existing *StoredCustomer) *StoredCustomer {
	f := s.Fields
	c := &StoredCustomer{
		ID:                   f.CustomerID,
		Name:                 f.Name,
		BusinessName:         f.BusinessName,
		Email:                f.Email,
		MobileNumber:         f.MobileNumber,
		ServiceType:          f.ServiceType,
		SelectedPOSModel:     f.SelectedPOSModel,
		SelectedPGPlan:       f.SelectedPGPlan,
		SelectedPricingPlan:  f.SelectedPricingPlan,
		BusinessCategory:     f.BusinessCategory,
		AnnualTurnover:       f.AnnualTurnover,
		OnboardingStep:       s.Step,
		KYC:                  f.KYC.Clone(),
		CaseNumber:           f.CaseNumber,
		IsOnboardingComplete: s.Step == StepCompleted,
		ConversationHistory:  []HistoryEntry{},
	}
	if existing != nil {
		prev := existing.Clone()
		if c.ID == "" {
			c.ID = prev.ID
		}
		c.ConversationHistory = prev.ConversationHistory
		c.AssignedRepresentative = prev.AssignedRepresentative
		c.IsOnboardingComplete = c.IsOnboardingComplete || prev.IsOnboardingComplete
		if c.CaseNumber == "" {
			c.CaseNumber = prev.CaseNumber
		}
	}
	return c
}

// Restore copies the saved answers of c onto f, keeping whatever f already
// holds for identity (name, business name, email) and the customer ID.
func (c *StoredCustomer) Restore(f Fields) Fields {
	out := f.Clone()
	if c == nil {
		return out
	}
	out.CustomerID = c.ID
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&out.Name, c.Name)
	fill(&out.BusinessName, c.BusinessName)
	fill(&out.Email, c.Email)
	out.MobileNumber = c.MobileNumber
	out.ServiceType = c.ServiceType
	out.SelectedPOSModel = c.SelectedPOSModel
	out.SelectedPGPlan = c.SelectedPGPlan
	out.SelectedPricingPlan = c.SelectedPricingPlan
	out.BusinessCategory = c.BusinessCategory
	out.AnnualTurnover = c.AnnualTurnover
	if c.KYC != nil {
		out.KYC = c.KYC.Clone()
	}
	return out
}

// CheckpointData is the step-local payload recorded in history entries.
func CheckpointData(s Session) map[string]string {
	f := s.Fields
	data := map[string]string{}
	put := func(k, v string) {
		if v != "" {
			data[k] = v
		}
	}
	switch s.Step {
	case StepPOSOptions, StepPGOptions:
		put("service_type", string(f.ServiceType))
		put("pos_model", f.SelectedPOSModel)
	case StepExistingCustomer:
		put("service_type", string(f.ServiceType))
		put("pos_model", f.SelectedPOSModel)
		put("pg_plan", f.SelectedPGPlan)
	case StepKYCConfirmation:
		put("mobile", f.MobileNumber)
		if f.KYC != nil {
			put("account", f.KYC.AccountNumber)
		}
	case StepPANUpload:
		put("gst_document", f.Documents.GST)
	case StepIncorporationUpload:
		put("pan_document", f.Documents.PAN)
	case StepMOAUpload:
		put("incorporation_document", f.Documents.Incorporation)
	case StepEvaluation:
		put("moa_document", f.Documents.MOA)
	case StepCompleted:
		put("case_number", f.CaseNumber)
	}
	return data
}

// ============================================================
// Summarize — human readable snapshot of a stored customer
// ============================================================

// Summarize renders c as the multi-line snapshot shown to returning customers.
func Summarize(c *StoredCustomer) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	mobile := c.MobileNumber
	if mobile == "" {
		mobile = "Not provided"
	}

	b.WriteString("🔍 Customer History Found!\n\n")
	fmt.Fprintf(&b, "👤 Name: %s\n", c.Name)
	fmt.Fprintf(&b, "🏢 Business: %s\n", c.BusinessName)
	fmt.Fprintf(&b, "📧 Email: %s\n", c.Email)
	fmt.Fprintf(&b, "📱 Mobile: %s\n", mobile)
	fmt.Fprintf(&b, "📅 Last Visit: %s\n", c.LastVisit.Format("02 Jan 2006"))
	fmt.Fprintf(&b, "📊 Progress Steps: %d\n\n", len(c.ConversationHistory))

	optional := []struct{ label, value string }{
		{"🛠️ Service Interest", string(c.ServiceType)},
		{"🏪 POS Model", c.SelectedPOSModel},
		{"💳 PG Plan", c.SelectedPGPlan},
		{"🏢 Category", c.BusinessCategory},
		{"💰 Turnover", c.AnnualTurnover},
	}
	for _, o := range optional {
		if o.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", o.label, o.value)
		}
	}

	if c.IsOnboardingComplete {
		b.WriteString("\n✅ Status: Onboarding Complete\n")
		if c.CaseNumber != "" {
			fmt.Fprintf(&b, "📋 Case Number: %s\n", c.CaseNumber)
		}
		if c.AssignedRepresentative != nil {
			fmt.Fprintf(&b, "👨‍💼 Representative: %s (%s)\n",
				c.AssignedRepresentative.Name, c.AssignedRepresentative.Mobile)
		}
	} else {
		b.WriteString("\n⏳ Status: Onboarding In Progress\n")
		if c.OnboardingStep != "" {
			fmt.Fprintf(&b, "📍 Last Step: %s\n", c.OnboardingStep)
		}
	}
	return b.String()
}
