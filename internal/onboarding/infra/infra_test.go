package infra_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/resilience"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/infra"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/port"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSimulatedExtractor_PerSlot(t *testing.T) {
	ex := infra.NewSimulatedExtractor()
	ctx := context.Background()

	tests := []struct {
		slot  odomain.UploadSlot
		check func(*odomain.KYCRecord) bool
	}{
		{odomain.SlotGST, func(k *odomain.KYCRecord) bool { return k.GSTNumber == "29ABCDE1234F1Z5" && k.PANNumber == "" }},
		{odomain.SlotPAN, func(k *odomain.KYCRecord) bool { return k.PANNumber == "ABCDE1234F" && k.GSTNumber == "" }},
		{odomain.SlotIncorporation, func(k *odomain.KYCRecord) bool { return k.RegistrationNumber == "REG123456789" }},
		{odomain.SlotMOA, func(k *odomain.KYCRecord) bool { return len(k.Directors) == 3 && k.ShareholdingTotal() == 100 }},
	}
	for _, tt := range tests {
		t.Run(string(tt.slot), func(t *testing.T) {
			k, err := ex.Extract(ctx, odomain.Upload{Slot: tt.slot, FileName: "doc.pdf"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(k) {
				t.Errorf("unexpected record for %s: %+v", tt.slot, k)
			}
		})
	}

	if _, err := ex.Extract(ctx, odomain.Upload{Slot: "passport", FileName: "x.pdf"}); err == nil {
		t.Error("expected error for unknown slot")
	}
}

func TestStaticKYCDirectory(t *testing.T) {
	known := &odomain.KYCRecord{FullName: "Asha Rao", AccountNumber: "ACC-1"}
	dir := infra.NewStaticKYCDirectory(map[string]*odomain.KYCRecord{"9876543210": known}, nil)

	got, err := dir.LookupByMobile(context.Background(), "9876543210")
	if err != nil || got == nil || got.FullName != "Asha Rao" {
		t.Fatalf("expected hit, got %+v, %v", got, err)
	}
	got.FullName = "changed"
	if known.FullName != "Asha Rao" {
		t.Error("lookup must return a copy")
	}

	miss, err := dir.LookupByMobile(context.Background(), "9000000000")
	if err != nil || miss != nil {
		t.Errorf("expected (nil, nil) on a miss, got %+v, %v", miss, err)
	}

	demo, _ := infra.NewDemoKYCDirectory().LookupByMobile(context.Background(), "9000000000")
	if demo == nil || demo.AccountNumber != "ACC-789456123" {
		t.Errorf("demo directory should resolve every number, got %+v", demo)
	}
}

func sampleSession() odomain.Session {
	s := odomain.NewSession("sess-42", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	s.Step = odomain.StepEvaluation
	s.Fields = odomain.Fields{
		Name:                "Priya Sharma",
		BusinessName:        "Sharma (Traders) & Sons",
		Email:               "priya@example.com",
		MobileNumber:        "9876543210",
		ServiceType:         odomain.ServiceBoth,
		SelectedPOSModel:    "Android POS",
		SelectedPricingPlan: "Standard",
		Documents:           odomain.Documents{GST: "gst.pdf", MOA: "moa.pdf"},
		KYC:                 infra.DemoKYCRecord(),
	}
	return s
}

func TestRenderApplication(t *testing.T) {
	text, err := infra.RenderApplication(sampleSession(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"Session: sess-42",
		"Name: Priya Sharma",
		"Service: both",
		"POS model: Android POS",
		"GST: 29ABCDE1234F1Z5",
		"- Jane Smith: 25% Equity Shares",
		"Total: 100%",
		"PAN document: Not uploaded",
		"MOA: moa.pdf",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered application missing %q\n%s", want, text)
		}
	}
}

func TestPDFExporter_WritesFile(t *testing.T) {
	dir := t.TempDir()
	exp := infra.NewPDFExporter(dir + "/artifacts")

	path, err := exp.Export(context.Background(), sampleSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, "sess-42.pdf") {
		t.Errorf("unexpected path %q", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	pdf := string(raw)
	if !strings.HasPrefix(pdf, "%PDF-") || !strings.HasSuffix(strings.TrimSpace(pdf), "%%EOF") {
		t.Error("output is not a complete PDF")
	}
	if !strings.Contains(pdf, "/Producer") {
		t.Error("missing document info")
	}
}

func TestPDFExporter_NonLatinText(t *testing.T) {
	s := sampleSession()
	s.Fields.BusinessName = "Chai Point ₹ Express • मुंबई"

	path, err := infra.NewPDFExporter(t.TempDir()).Export(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected a written pdf, got %v, %v", info, err)
	}
}

func TestPDFExporter_RejectsPathLikeIDs(t *testing.T) {
	exp := infra.NewPDFExporter(t.TempDir())
	s := sampleSession()
	for _, id := range []string{"", "../escape", "a/b", ".."} {
		s.ID = id
		if _, err := exp.Export(context.Background(), s); err == nil {
			t.Errorf("expected error for id %q", id)
		}
	}
}

type recordingSender struct {
	to, code string
	err      error
}

func (r *recordingSender) SendCode(_ context.Context, to, code string) error {
	r.to, r.code = to, code
	return r.err
}

func fixedChallenger(sender infra.CodeSender, ttl time.Duration) *infra.OTPChallenger {
	return infra.NewOTPChallenger(infra.OTPConfig{
		TTL:             ttl,
		MaxAttempts:     3,
		FixedMobileCode: "123456",
		FixedEmailCode:  "654321",
	}, sender, zap.NewNop())
}

func TestOTPChallenger_VerifyFixedCodes(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	o := fixedChallenger(sender, time.Minute)

	if err := o.Open(ctx, "s1", port.OTPChannels{Mobile: "9876543210", Email: "a@b.com"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if sender.to != "a@b.com" || sender.code != "654321" {
		t.Errorf("email code not delivered: %+v", sender)
	}

	ok, err := o.Verify(ctx, "s1", odomain.OTPCodes{Mobile: "123456", Email: "000000"})
	if err != nil || ok {
		t.Fatalf("half-correct pair must fail, got %v, %v", ok, err)
	}
	ok, err = o.Verify(ctx, "s1", odomain.OTPCodes{Mobile: "123456", Email: "654321"})
	if err != nil || !ok {
		t.Fatalf("expected verified, got %v, %v", ok, err)
	}

	// A verified challenge is consumed.
	ok, _ = o.Verify(ctx, "s1", odomain.OTPCodes{Mobile: "123456", Email: "654321"})
	if ok {
		t.Error("challenge must not verify twice")
	}
}

func TestOTPChallenger_AttemptsExhausted(t *testing.T) {
	ctx := context.Background()
	o := fixedChallenger(nil, time.Minute)
	_ = o.Open(ctx, "s1", port.OTPChannels{Email: "a@b.com"})

	for i := 0; i < 3; i++ {
		_, _ = o.Verify(ctx, "s1", odomain.OTPCodes{Mobile: "1", Email: "2"})
	}
	ok, _ := o.Verify(ctx, "s1", odomain.OTPCodes{Mobile: "123456", Email: "654321"})
	if ok {
		t.Fatal("locked challenge must not verify")
	}

	if err := o.Resend(ctx, "s1"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	ok, _ = o.Verify(ctx, "s1", odomain.OTPCodes{Mobile: "123456", Email: "654321"})
	if !ok {
		t.Error("resend should reset attempts")
	}
}

func TestOTPChallenger_Expiry(t *testing.T) {
	ctx := context.Background()
	o := fixedChallenger(nil, time.Millisecond)
	_ = o.Open(ctx, "s1", port.OTPChannels{Email: "a@b.com"})
	time.Sleep(10 * time.Millisecond)

	ok, err := o.Verify(ctx, "s1", odomain.OTPCodes{Mobile: "123456", Email: "654321"})
	if err != nil || ok {
		t.Errorf("expired challenge must fail, got %v, %v", ok, err)
	}
}

func TestOTPChallenger_ResendUnknownSession(t *testing.T) {
	o := fixedChallenger(nil, time.Minute)
	err := o.Resend(context.Background(), "missing")

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOTPChallenger_SenderFailure(t *testing.T) {
	o := fixedChallenger(&recordingSender{err: errors.New("smtp down")}, time.Minute)
	if err := o.Open(context.Background(), "s1", port.OTPChannels{Email: "a@b.com"}); err == nil {
		t.Error("expected delivery failure to surface")
	}
}

func TestOTPChallenger_RandomCodes(t *testing.T) {
	o := infra.NewOTPChallenger(infra.OTPConfig{}, nil, zap.NewNop())
	_ = o.Open(context.Background(), "s1", port.OTPChannels{Email: "a@b.com"})

	ok, _ := o.Verify(context.Background(), "s1", odomain.OTPCodes{Mobile: "", Email: ""})
	if ok {
		t.Error("empty codes must not verify")
	}
}

func TestOTPChallenger_LogsCodesWithoutDeliveryChannel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	o := infra.NewOTPChallenger(infra.OTPConfig{}, nil, zap.New(core))
	ctx := context.Background()

	if err := o.Open(ctx, "s1", port.OTPChannels{Mobile: "9876543210", Email: "a@b.com"}); err != nil {
		t.Fatalf("open: %v", err)
	}

	entries := logs.FilterMessage("otp issued without delivery channel").All()
	if len(entries) != 1 {
		t.Fatalf("expected one issue entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	mobile, _ := fields["mobile_code"].(string)
	email, _ := fields["email_code"].(string)
	if len(mobile) != 6 || len(email) != 6 {
		t.Fatalf("codes missing from log: %v", fields)
	}

	ok, err := o.Verify(ctx, "s1", odomain.OTPCodes{Mobile: mobile, Email: email})
	if err != nil || !ok {
		t.Errorf("logged codes must verify, got %v, %v", ok, err)
	}
}

func TestOTPChallenger_DeliveredCodesStayOutOfInfoLog(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sender := &recordingSender{}
	o := infra.NewOTPChallenger(infra.OTPConfig{}, sender, zap.New(core))

	if err := o.Open(context.Background(), "s1", port.OTPChannels{Mobile: "9876543210", Email: "a@b.com"}); err != nil {
		t.Fatalf("open: %v", err)
	}

	for _, e := range logs.All() {
		fields := e.ContextMap()
		if _, ok := fields["email_code"]; ok {
			t.Errorf("email code logged in %q", e.Message)
		}
		if _, ok := fields["mobile_code"]; ok && e.Level != zapcore.DebugLevel {
			t.Errorf("mobile code logged at %s", e.Level)
		}
	}
	if logs.FilterMessage("otp issued").Len() != 1 {
		t.Error("expected an otp issued entry")
	}
}

func newAgent(url string) *infra.HelpAgentClient {
	return infra.NewHelpAgentClient(http.DefaultClient, url,
		resilience.NewCircuitBreaker("help-agent-test"),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond})
}

func TestHelpAgentClient_Success(t *testing.T) {
	var got odomain.AgentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(odomain.AgentResponse{Answer: "Upload your GST certificate.", TokensUsed: 42})
	}))
	defer srv.Close()

	resp, err := newAgent(srv.URL).SendChat(context.Background(), &odomain.AgentRequest{Query: "documents?", Step: "gstUpload"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "Upload your GST certificate." || resp.TokensUsed != 42 {
		t.Errorf("unexpected response %+v", resp)
	}
	if got.Query != "documents?" || got.Step != "gstUpload" {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestHelpAgentClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newAgent(srv.URL).SendChat(context.Background(), &odomain.AgentRequest{Query: "x"})
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) || ext.Service != "help-agent" {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestHelpAgentClient_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(odomain.AgentResponse{Answer: "ok"})
	}))
	defer srv.Close()

	resp, err := newAgent(srv.URL).SendChat(context.Background(), &odomain.AgentRequest{Query: "x"})
	if err != nil || resp.Answer != "ok" {
		t.Fatalf("expected success after retries, got %+v, %v", resp, err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}
