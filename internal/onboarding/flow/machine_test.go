package flow_test

import (
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/catalog"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/flow"
)

var now = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

func newMachine(t *testing.T) *flow.Machine {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return flow.New(cat)
}

func at(step domain.Step) domain.Session {
	s := domain.NewSession("sess-1", now)
	s.Step = step
	s.Fields = domain.Fields{
		Name:         "Asha Rao",
		BusinessName: "Rao Traders",
		Email:        "asha@raotraders.in",
		ServiceType:  domain.ServiceBoth,
	}
	if step == domain.StepStatusOTPVerification {
		s.Lookup = "asha@raotraders.in"
	}
	return s
}

func facts() flow.Facts { return flow.Facts{Now: now} }

func mockKYC() *domain.KYCRecord {
	return &domain.KYCRecord{
		FullName:           "John Smith",
		BusinessName:       "Smith Electronics Ltd",
		RegistrationNumber: "REG123456789",
		Address:            "123 Business Street, Commerce City, CC 12345",
		AccountNumber:      "ACC-789456123",
		Status:             domain.KYCVerified,
	}
}

func TestEveryStepHasHandlerAndTransitions(t *testing.T) {
	m := newMachine(t)
	for _, step := range domain.AllSteps() {
		if !m.Handles(step) {
			t.Errorf("step %q has no handler", step)
		}
		if step != domain.StepCompleted && len(flow.NextSteps(step)) == 0 {
			t.Errorf("step %q has no outgoing transitions", step)
		}
	}
	if !flow.IsTerminal(domain.StepCompleted) {
		t.Error("expected completed to be terminal")
	}
}

func TestTransitionOutsideTableIsRejected(t *testing.T) {
	m := newMachine(t)
	m.ReplaceHandler(domain.StepName, func(s domain.Session, _ domain.Event, _ flow.Facts) flow.Result {
		s.Fields.Name = "Skipped Ahead"
		return m.Move(s, domain.StepCompleted)
	})

	res := m.Transition(at(domain.StepName), domain.TextEvent("Asha"), facts())
	if res.Outcome != flow.OutcomeRejected {
		t.Fatalf("expected rejection, got %s", res.Outcome)
	}
	if res.Session.Step != domain.StepName || res.Session.Fields.Name != "Asha Rao" {
		t.Errorf("session must be left untouched, got step %q name %q", res.Session.Step, res.Session.Fields.Name)
	}
	if !strings.Contains(res.Reason, "illegal transition") {
		t.Errorf("unexpected reason %q", res.Reason)
	}
}

func TestEveryDeclaredOptionIsAccepted(t *testing.T) {
	m := newMachine(t)
	for _, step := range domain.AllSteps() {
		for _, c := range m.Choices(step) {
			s := at(step)
			if step == domain.StepKYCConfirmation {
				s.Fields.KYC = mockKYC()
			}
			res := m.Transition(s, domain.OptionEvent(c.Label), facts())
			if res.Outcome != flow.OutcomeAccepted {
				t.Errorf("%s: option %q was %s (%s)", step, c.Label, res.Outcome, res.Reason)
				continue
			}
			if len(res.Messages) == 0 {
				t.Errorf("%s: option %q produced no message", step, c.Label)
			}
			if !flow.IsValidTransition(step, res.Session.Step) {
				t.Errorf("%s: option %q moved to %q outside the transition table", step, c.Label, res.Session.Step)
			}
		}
	}
}

func TestUnknownOptionIsRejected(t *testing.T) {
	m := newMachine(t)
	for _, step := range domain.AllSteps() {
		if m.Choices(step) == nil {
			continue
		}
		s := at(step)
		res := m.Transition(s, domain.OptionEvent("Definitely not an option"), facts())
		if res.Outcome != flow.OutcomeRejected {
			t.Errorf("%s: expected rejection, got %s", step, res.Outcome)
		}
		if res.Session.Step != step {
			t.Errorf("%s: rejected option moved the session to %q", step, res.Session.Step)
		}
		if len(res.Messages) == 0 || len(res.Options) == 0 {
			t.Errorf("%s: expected fallback message and options, got %v %v", step, res.Messages, res.Options)
		}
	}
}

func TestOptionTypedAsText(t *testing.T) {
	m := newMachine(t)
	res := m.Transition(at(domain.StepExistingCustomer), domain.TextEvent("No, I'm new"), facts())
	if res.Session.Step != domain.StepBusinessCategory {
		t.Errorf("expected typed label to select the option, got %q", res.Session.Step)
	}
}

func TestLegacyLabelAlias(t *testing.T) {
	m := newMachine(t)
	res := m.Transition(at(domain.StepEvaluation), domain.OptionEvent("Download Application PDF"), facts())
	if res.Session.Step != domain.StepOTPVerification {
		t.Errorf("expected alias to be accepted, got %q (%s)", res.Session.Step, res.Reason)
	}
}

func TestInvalidInputStaysPut(t *testing.T) {
	m := newMachine(t)
	tests := []struct {
		step domain.Step
		ev   domain.Event
	}{
		{domain.StepName, domain.TextEvent("   ")},
		{domain.StepBusinessName, domain.TextEvent("")},
		{domain.StepEmail, domain.TextEvent("not-an-email")},
		{domain.StepMobileNumber, domain.TextEvent("12345")},
		{domain.StepMobileNumber, domain.TextEvent("98765432101")},
		{domain.StepBusinessCategory, domain.TextEvent("Space Mining")},
		{domain.StepAnnualTurnover, domain.TextEvent(" ")},
		{domain.StepNegotiation, domain.TextEvent("")},
		{domain.StepGSTUpload, domain.UploadEvent(domain.SlotPAN, "pan.pdf")},
		{domain.StepPANUpload, domain.UploadEvent(domain.SlotPAN, "  ")},
		{domain.StepOTPVerification, domain.OTPEvent("12345", "654321")},
		{domain.StepOTPVerification, domain.OTPEvent("123456", "abcdef")},
		{domain.StepStatusCheckContact, domain.TextEvent("nobody")},
		{domain.StepStatusOTPVerification, domain.OTPEvent("", "")},
	}
	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			s := at(tt.step)
			if n := m.Need(s, tt.ev); !n.None() {
				t.Errorf("expected no facts needed for invalid input, got %+v", n)
			}
			res := m.Transition(s, tt.ev, facts())
			if res.Outcome != flow.OutcomeRetry {
				t.Errorf("expected retry, got %s (%s)", res.Outcome, res.Reason)
			}
			if res.Session.Step != tt.step {
				t.Errorf("expected to stay at %q, got %q", tt.step, res.Session.Step)
			}
			if len(res.Messages) == 0 || res.Messages[0] == "" {
				t.Error("expected a non-empty retry message")
			}
		})
	}
}

func TestWrongEventKindIsRejected(t *testing.T) {
	m := newMachine(t)
	tests := []struct {
		step domain.Step
		ev   domain.Event
	}{
		{domain.StepName, domain.UploadEvent(domain.SlotGST, "gst.pdf")},
		{domain.StepEmail, domain.OTPEvent("123456", "654321")},
		{domain.StepGSTUpload, domain.TextEvent("here you go")},
		{domain.StepOTPVerification, domain.UploadEvent(domain.SlotMOA, "moa.pdf")},
		{domain.StepWelcome, domain.OTPEvent("123456", "654321")},
	}
	for _, tt := range tests {
		res := m.Transition(at(tt.step), tt.ev, facts())
		if res.Outcome != flow.OutcomeRejected || res.Session.Step != tt.step {
			t.Errorf("%s: expected rejection in place, got %s at %q", tt.step, res.Outcome, res.Session.Step)
		}
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepGSTUpload)
	s.Fields.KYC = mockKYC()
	before := s.Clone()

	m.Transition(s, domain.UploadEvent(domain.SlotGST, "gst.pdf"), flow.Facts{
		Now:       now,
		Extracted: &domain.KYCRecord{GSTNumber: "29ABCDE1234F1Z5"},
	})

	if s.Step != before.Step || s.Fields.Documents != before.Fields.Documents || s.Fields.KYC.GSTNumber != "" {
		t.Error("expected the input session to be left untouched")
	}
}

func TestScenarioA_InvalidEmail(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepEmail)
	s.Fields.Email = ""
	res := m.Transition(s, domain.TextEvent("not-an-email"), facts())
	if res.Session.Step != domain.StepEmail {
		t.Errorf("expected to stay at email, got %q", res.Session.Step)
	}
	if !strings.Contains(res.Messages[0], "valid email") {
		t.Errorf("expected valid email prompt, got %q", res.Messages[0])
	}
}

func TestScenarioB_MobileNumber(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepMobileNumber)
	ev := domain.TextEvent("98765 43210")

	need := m.Need(s, ev)
	if need.KYCMobile != "9876543210" {
		t.Fatalf("expected KYC lookup for normalized mobile, got %+v", need)
	}

	found := m.Transition(s, ev, flow.Facts{Now: now, KYC: mockKYC()})
	if found.Session.Step != domain.StepKYCConfirmation {
		t.Errorf("expected kycConfirmation, got %q", found.Session.Step)
	}
	if !strings.Contains(found.Messages[0], "fetch your KYC") {
		t.Errorf("expected KYC fetch message, got %q", found.Messages[0])
	}
	if found.Session.Fields.MobileNumber != "9876543210" || found.Session.Fields.KYC.AccountNumber != "ACC-789456123" {
		t.Errorf("unexpected fields %+v", found.Session.Fields)
	}

	missing := m.Transition(s, ev, facts())
	if missing.Session.Step != domain.StepBusinessCategory {
		t.Errorf("expected new-customer path without KYC, got %q", missing.Session.Step)
	}
	if missing.Session.Fields.IsExistingCustomer {
		t.Error("expected merchant without KYC to be treated as new")
	}
}

func TestScenarioC_UploadsMergeCumulatively(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepGSTUpload)

	uploads := []struct {
		slot      domain.UploadSlot
		file      string
		extracted *domain.KYCRecord
		want      domain.Step
	}{
		{domain.SlotGST, "gst.pdf", &domain.KYCRecord{GSTNumber: "29ABCDE1234F1Z5"}, domain.StepPANUpload},
		{domain.SlotPAN, "pan.pdf", &domain.KYCRecord{PANNumber: "ABCDE1234F"}, domain.StepIncorporationUpload},
		{domain.SlotIncorporation, "coi.pdf", &domain.KYCRecord{RegistrationNumber: "REG123456789", BusinessName: "Extracted Name"}, domain.StepMOAUpload},
		{domain.SlotMOA, "moa.pdf", &domain.KYCRecord{
			Directors: []domain.DirectorDetail{{Name: "John Smith", Designation: "Managing Director & CEO", Shareholding: "60%"}},
			Shareholding: []domain.ShareholdingDetail{
				{ShareholderName: "John Smith", SharePercentage: 60, ShareType: "Equity Shares"},
				{ShareholderName: "Jane Smith", SharePercentage: 25, ShareType: "Equity Shares"},
			},
		}, domain.StepEvaluation},
	}

	for _, u := range uploads {
		ev := domain.UploadEvent(u.slot, u.file)
		if need := m.Need(s, ev); need.Extract == nil || need.Extract.Slot != u.slot {
			t.Fatalf("%s: expected extraction need, got %+v", u.slot, need)
		}
		res := m.Transition(s, ev, flow.Facts{Now: now, Extracted: u.extracted})
		if res.Session.Step != u.want {
			t.Fatalf("%s: expected %q, got %q (%s)", u.slot, u.want, res.Session.Step, res.Reason)
		}
		s = res.Session
	}

	k := s.Fields.KYC
	if k.GSTNumber != "29ABCDE1234F1Z5" || k.PANNumber != "ABCDE1234F" || k.RegistrationNumber != "REG123456789" {
		t.Errorf("expected cumulative merge, got %+v", k)
	}
	if k.BusinessName != "Rao Traders" || k.FullName != "Asha Rao" {
		t.Errorf("expected identity from the session, got %q / %q", k.FullName, k.BusinessName)
	}
	if len(k.Directors) != 1 || len(k.Shareholding) != 2 {
		t.Errorf("expected MOA details, got %+v", k)
	}
	for _, slot := range []domain.UploadSlot{domain.SlotGST, domain.SlotPAN, domain.SlotIncorporation, domain.SlotMOA} {
		if !s.Fields.Documents.Has(slot) {
			t.Errorf("expected %s document to be recorded", slot)
		}
	}
}

func TestEvaluation_WarnsOnShareholdingTotal(t *testing.T) {
	m := newMachine(t)
	res := m.Transition(at(domain.StepMOAUpload), domain.UploadEvent(domain.SlotMOA, "moa.pdf"), flow.Facts{
		Now: now,
		Extracted: &domain.KYCRecord{Shareholding: []domain.ShareholdingDetail{
			{ShareholderName: "A", SharePercentage: 60},
			{ShareholderName: "B", SharePercentage: 25},
		}},
	})
	summary := res.Messages[len(res.Messages)-1]
	if !strings.Contains(summary, "85%") {
		t.Errorf("expected shareholding warning, got %q", summary)
	}
	if res.Session.Step != domain.StepEvaluation {
		t.Errorf("expected permissive advance, got %q", res.Session.Step)
	}
}

func TestScenarioD_OTPCompletes(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepOTPVerification)
	ev := domain.OTPEvent("123456", "654321")

	if need := m.Need(s, ev); need.OTP == nil {
		t.Fatal("expected OTP verification need")
	}

	wrong := m.Transition(s, ev, flow.Facts{Now: now, OTPVerified: false})
	if wrong.Session.Step != domain.StepOTPVerification || wrong.Outcome != flow.OutcomeRetry {
		t.Errorf("expected retry on mismatch, got %s at %q", wrong.Outcome, wrong.Session.Step)
	}

	ok := m.Transition(s, ev, flow.Facts{Now: now, OTPVerified: true})
	if ok.Session.Step != domain.StepCompleted {
		t.Fatalf("expected completed, got %q", ok.Session.Step)
	}
	if !strings.HasPrefix(ok.Session.Fields.CaseNumber, "CASE") || len(ok.Session.Fields.CaseNumber) != 12 {
		t.Errorf("unexpected case number %q", ok.Session.Fields.CaseNumber)
	}
	if len(ok.Effects) != 1 || ok.Effects[0].Kind != flow.EffectNotifyCompletion {
		t.Errorf("expected completion notification, got %+v", ok.Effects)
	}
	if !strings.Contains(ok.Messages[0], "Mr. Devesh Kumar") {
		t.Error("expected the representative in the completion message")
	}
}

func TestScenarioE_ReturningCustomerBranch(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepEmail)
	s.Fields.Email = ""
	ev := domain.TextEvent("Asha@RaoTraders.in")

	if need := m.Need(s, ev); need.Customer != "asha@raotraders.in" {
		t.Fatalf("expected lookup by normalized email, got %+v", need)
	}

	fresh := m.Transition(s, ev, facts())
	known := m.Transition(s, ev, flow.Facts{Now: now, Customer: &domain.StoredCustomer{
		ID: "CUST_1", Name: "Asha Rao", Email: "asha@raotraders.in", LastVisit: now,
	}})

	if fresh.Session.Step != domain.StepServiceSelection {
		t.Errorf("expected service selection for unknown email, got %q", fresh.Session.Step)
	}
	if known.Session.Step != domain.StepReturningCustomer {
		t.Errorf("expected returning-customer prompt, got %q", known.Session.Step)
	}
	if known.Session.Fields.CustomerID != "CUST_1" {
		t.Errorf("expected customer id to be carried, got %q", known.Session.Fields.CustomerID)
	}
}

func TestReturningCustomer_ContinueRestores(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepReturningCustomer)
	ev := domain.OptionEvent(flow.LabelContinueSaved)

	if need := m.Need(s, ev); need.Customer != s.Fields.Email {
		t.Fatalf("expected stored record lookup, got %+v", need)
	}
	res := m.Transition(s, ev, flow.Facts{Now: now, Customer: &domain.StoredCustomer{
		ID: "CUST_1", Email: s.Fields.Email, MobileNumber: "9876543210",
		BusinessCategory: "Food & Beverage", AnnualTurnover: "1-5 Cr",
	}})
	if res.Session.Fields.BusinessCategory != "Food & Beverage" || res.Session.Fields.MobileNumber != "9876543210" {
		t.Errorf("expected saved details to be restored, got %+v", res.Session.Fields)
	}
	if res.Session.Fields.Name != "Asha Rao" {
		t.Error("expected the typed name to be kept")
	}
}

func TestEmailIsImmutable(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepEmail)
	res := m.Transition(s, domain.TextEvent("other@example.com"), facts())
	if res.Outcome != flow.OutcomeRetry || res.Session.Fields.Email != "asha@raotraders.in" {
		t.Errorf("expected the email change to be refused, got %s %q", res.Outcome, res.Session.Fields.Email)
	}
}

func TestServiceSelectionBranches(t *testing.T) {
	m := newMachine(t)
	tests := map[string][]domain.Step{
		"Payment Gateway":            {domain.StepPGOptions, domain.StepExistingCustomer},
		"POS Machine":                {domain.StepPOSOptions, domain.StepExistingCustomer},
		"Both POS & Payment Gateway": {domain.StepPOSOptions, domain.StepPGOptions, domain.StepExistingCustomer},
	}
	for label, want := range tests {
		s := at(domain.StepServiceSelection)
		res := m.Transition(s, domain.OptionEvent(label), facts())
		var got []domain.Step
		for res.Session.Step != domain.StepExistingCustomer && len(got) < 5 {
			got = append(got, res.Session.Step)
			res = m.Transition(res.Session, domain.OptionEvent(res.Options[0]), facts())
		}
		got = append(got, res.Session.Step)
		if len(got) != len(want) {
			t.Errorf("%s: expected path %v, got %v", label, want, got)
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s: expected path %v, got %v", label, want, got)
				break
			}
		}
	}
}

func TestNegotiationCycleTerminates(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepPricingOptions)
	res := m.Transition(s, domain.OptionEvent(flow.LabelNegotiate), facts())
	if res.Session.Step != domain.StepNegotiation {
		t.Fatalf("expected negotiation, got %q", res.Session.Step)
	}

	var offers []string
	for round := 1; round <= 3; round++ {
		res = m.Transition(res.Session, domain.TextEvent("Can you lower the MDR?"), facts())
		if res.Session.Step != domain.StepNegotiationResponse {
			t.Fatalf("round %d: expected negotiationResponse, got %q", round, res.Session.Step)
		}
		if res.Session.Round != round {
			t.Errorf("expected round %d, got %d", round, res.Session.Round)
		}
		offers = append(offers, res.Session.Fields.NegotiatedOffer)
		res = m.Transition(res.Session, domain.OptionEvent(flow.LabelDiscussFurther), facts())
	}
	if offers[0] == offers[1] {
		t.Error("expected the second offer to improve on the first")
	}

	res = m.Transition(res.Session, domain.TextEvent("OK, last try"), facts())
	res = m.Transition(res.Session, domain.OptionEvent(flow.LabelAcceptOffer), facts())
	if res.Session.Step != domain.StepGSTUpload {
		t.Errorf("expected accept to move to gstUpload, got %q", res.Session.Step)
	}
	if !strings.HasPrefix(res.Session.Fields.SelectedPricingPlan, "Negotiated: ") {
		t.Errorf("expected negotiated plan, got %q", res.Session.Fields.SelectedPricingPlan)
	}
	if len(res.Session.Fields.NegotiationNotes) != 4 {
		t.Errorf("expected 4 notes, got %d", len(res.Session.Fields.NegotiationNotes))
	}
}

func TestKYCConfirmation(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepKYCConfirmation)
	s.Fields.KYC = mockKYC()

	link := m.Transition(s, domain.OptionEvent(flow.LabelLinkAccount), facts())
	if link.Session.Step != domain.StepPDFGeneration {
		t.Errorf("expected pdfGeneration, got %q", link.Session.Step)
	}
	if link.Session.Fields.ConfirmLinking == nil || !*link.Session.Fields.ConfirmLinking {
		t.Error("expected linking to be confirmed")
	}
	if link.Session.Fields.KYC.BusinessName != "Rao Traders" {
		t.Errorf("expected KYC business name from the session, got %q", link.Session.Fields.KYC.BusinessName)
	}

	separate := m.Transition(s, domain.OptionEvent(flow.LabelNewAccount), facts())
	if separate.Session.Step != domain.StepCompleted || separate.Session.Fields.CaseNumber == "" {
		t.Errorf("expected completion with a case number, got %q %q", separate.Session.Step, separate.Session.Fields.CaseNumber)
	}
}

func TestExportEffects(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepPDFGeneration)
	res := m.Transition(s, domain.OptionEvent(flow.LabelGeneratePDF), facts())

	if len(res.Effects) != 2 || res.Effects[0].Kind != flow.EffectExportPDF || res.Effects[1].Kind != flow.EffectOpenOTP {
		t.Fatalf("unexpected effects %+v", res.Effects)
	}
	if res.Effects[1].Mobile != s.Fields.Email {
		t.Errorf("expected email fallback without a mobile number, got %q", res.Effects[1].Mobile)
	}

	resend := m.Transition(res.Session, domain.OptionEvent(flow.LabelResendOTP), facts())
	if resend.Session.Step != domain.StepOTPVerification || len(resend.Effects) != 1 || resend.Effects[0].Kind != flow.EffectResendOTP {
		t.Errorf("expected resend in place, got %q %+v", resend.Session.Step, resend.Effects)
	}
}

func TestCompletedRejectsInput(t *testing.T) {
	m := newMachine(t)
	s := at(domain.StepCompleted)
	s.Fields.CaseNumber = "CASE12345678"
	res := m.Transition(s, domain.TextEvent("hello?"), facts())
	if res.Outcome != flow.OutcomeRejected || res.Session.Step != domain.StepCompleted {
		t.Errorf("expected rejection at completed, got %s %q", res.Outcome, res.Session.Step)
	}
	if !strings.Contains(res.Messages[0], "CASE12345678") {
		t.Errorf("expected case number in message, got %q", res.Messages[0])
	}
}

func TestStatusCheckPath(t *testing.T) {
	m := newMachine(t)
	start := m.Start("sess-2", now)
	res := m.Transition(start.Session, domain.OptionEvent(flow.LabelCheckStatus), facts())
	if res.Session.Step != domain.StepStatusCheckContact {
		t.Fatalf("expected statusCheckContact, got %q", res.Session.Step)
	}

	if need := m.Need(res.Session, domain.TextEvent("98765 43210")); need.Customer != "9876543210" {
		t.Errorf("expected lookup by normalized mobile, got %+v", need)
	}

	miss := m.Transition(res.Session, domain.TextEvent("ghost@example.com"), facts())
	if miss.Session.Step != domain.StepStatusCheckContact || !strings.Contains(miss.Messages[0], "No application found") {
		t.Errorf("expected not-found message, got %q %v", miss.Session.Step, miss.Messages)
	}
	if len(miss.Options) != 2 {
		t.Errorf("expected recovery options, got %v", miss.Options)
	}

	cust := &domain.StoredCustomer{ID: "CUST_1", Name: "Asha Rao", BusinessName: "Rao Traders",
		Email: "asha@raotraders.in", MobileNumber: "9876543210", OnboardingStep: "panUpload", LastVisit: now}
	found := m.Transition(res.Session, domain.TextEvent("asha@raotraders.in"), flow.Facts{Now: now, Customer: cust})
	if found.Session.Step != domain.StepStatusOTPVerification || found.Session.Lookup != "asha@raotraders.in" {
		t.Fatalf("expected OTP gate, got %q lookup %q", found.Session.Step, found.Session.Lookup)
	}
	if len(found.Effects) != 1 || found.Effects[0].Kind != flow.EffectOpenOTP || found.Effects[0].Mobile != "9876543210" {
		t.Errorf("unexpected effects %+v", found.Effects)
	}
	if strings.Contains(found.Messages[0], "9876543210") {
		t.Error("expected the mobile number to be masked")
	}

	codes := domain.OTPEvent("123456", "654321")
	if need := m.Need(found.Session, codes); need.OTP == nil || need.Customer != "asha@raotraders.in" {
		t.Fatalf("expected OTP and customer lookup, got %+v", need)
	}
	done := m.Transition(found.Session, codes, flow.Facts{Now: now, Customer: cust, OTPVerified: true})
	if done.Session.Step != domain.StepWelcome || done.Session.Lookup != "" {
		t.Errorf("expected return to welcome, got %q", done.Session.Step)
	}
	if !strings.Contains(strings.Join(done.Messages, "\n"), "Onboarding In Progress") {
		t.Errorf("expected status summary, got %v", done.Messages)
	}

	restart := m.Transition(miss.Session, domain.OptionEvent(flow.LabelStartApplication), facts())
	if restart.Session.Step != domain.StepName {
		t.Errorf("expected start new application to ask for a name, got %q", restart.Session.Step)
	}
}

func TestProgress(t *testing.T) {
	tests := map[domain.Step]int{
		domain.StepWelcome:         6,
		domain.StepEmail:           24,
		domain.StepMOAUpload:       71,
		domain.StepOTPVerification: 94,
		domain.StepCompleted:       100,
		domain.StepPricingOptions:  flow.Progress(domain.StepAnnualTurnover),
	}
	for step, want := range tests {
		if got := flow.Progress(step); got != want {
			t.Errorf("%s: expected %d%%, got %d%%", step, want, got)
		}
	}
}

func TestCheckpointSteps(t *testing.T) {
	for _, step := range []domain.Step{
		domain.StepPOSOptions, domain.StepPGOptions, domain.StepKYCConfirmation,
		domain.StepPANUpload, domain.StepIncorporationUpload, domain.StepMOAUpload,
		domain.StepEvaluation, domain.StepCompleted,
	} {
		if !flow.IsCheckpoint(step) {
			t.Errorf("expected %s to be a checkpoint", step)
		}
	}
	if flow.IsCheckpoint(domain.StepName) {
		t.Error("expected name not to be a checkpoint")
	}
}
